/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notification

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/blnkfinance/portalsync/config"
	"github.com/blnkfinance/portalsync/internal/request"
	"github.com/sirupsen/logrus"
)

const syncErrorTitle = "Sync Error"

// SlackNotification posts title and err to the configured Slack webhook.
func SlackNotification(title string, err error) error {
	conf, cfgErr := config.Fetch()
	if cfgErr != nil {
		return cfgErr
	}
	if conf.Notification.Slack.WebhookUrl == "" {
		return nil
	}

	message := map[string]interface{}{
		"blocks": []interface{}{
			map[string]interface{}{
				"type": "header",
				"text": map[string]interface{}{"type": "plain_text", "text": title + " 🐞", "emoji": true},
			},
			map[string]interface{}{
				"type": "section",
				"fields": []interface{}{
					map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf("*Error:*\n%v", err)},
					map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf("*Time:*\n%v", time.Now().Format(time.RFC822))},
				},
			},
		},
	}

	payload, mErr := request.ToJsonReq(message)
	if mErr != nil {
		return mErr
	}

	req, rErr := http.NewRequest(http.MethodPost, conf.Notification.Slack.WebhookUrl, payload)
	if rErr != nil {
		return rErr
	}

	// Slack answers with plain "ok", so the body is not decoded.
	var response json.RawMessage
	resp, callErr := request.Call(req, &response)
	if resp != nil && resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	if resp == nil {
		return callErr
	}
	return nil
}

// NotifyError logs systemError and forwards it to Slack when configured.
// It does not block the caller.
func NotifyError(systemError error) {
	go notify("Error From Portal Sync", systemError)
}

// NotifySyncError raises an operator-visible "Sync Error" for a failed sync
// leg. It does not block the caller.
func NotifySyncError(syncErr error) {
	go notify(syncErrorTitle, syncErr)
}

func notify(title string, systemError error) {
	logrus.WithField("notification", title).Error(systemError)
	if err := SlackNotification(title, systemError); err != nil {
		logrus.Errorf("failed to send slack notification: %v", err)
	}
}
