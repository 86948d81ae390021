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

package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/blnkfinance/portalsync/config"
	"github.com/blnkfinance/portalsync/model"
	"github.com/sirupsen/logrus"
)

const (
	HeaderEventID = "X-Sync-Event-ID"
	HeaderSource  = "X-Sync-Source"
	maxBodyBytes  = 1 << 20
)

// Client posts sync envelopes to the Collection Portal ingestion endpoint.
// Each Send is a single attempt; retries belong to the caller.
type Client struct {
	url     string
	headers map[string]string
	http    *http.Client
}

func NewClient(cfg config.PortalConfig) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:     cfg.Url,
		headers: cfg.Headers,
		http:    &http.Client{Timeout: timeout},
	}
}

// Send delivers event to the portal. A nil error means the portal accepted it.
func (c *Client) Send(ctx context.Context, event model.SyncEvent) (*model.PortalResponse, error) {
	payloadBytes, err := json.Marshal(event.Envelope())
	if err != nil {
		return nil, &DeliveryError{Kind: FailureValidation, Message: "failed to marshal envelope", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, &DeliveryError{Kind: FailureNetwork, Message: "failed to create request", Err: err}
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventID, event.ID)
	req.Header.Set(HeaderSource, string(event.Source))

	fields := logrus.Fields{
		"event_id":  event.ID,
		"type":      event.Type,
		"entity_id": event.EntityID,
	}
	logrus.WithFields(fields).Debug("Sending sync event to collection portal")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &DeliveryError{Kind: FailureNetwork, Message: "failed to execute request", Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &DeliveryError{Kind: FailureNetwork, StatusCode: resp.StatusCode, Message: "failed to read response body", Err: err}
	}

	fields["status_code"] = resp.StatusCode
	result, err := classify(resp.StatusCode, body)
	if err != nil {
		logrus.WithFields(fields).WithError(err).Warn("Collection portal rejected sync event")
		return result, err
	}

	logrus.WithFields(fields).Info("Sync event delivered to collection portal")
	return result, nil
}

// portalBody tolerates responses that omit the success flag.
type portalBody struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func classify(statusCode int, body []byte) (*model.PortalResponse, error) {
	var parsed portalBody
	isJSON := len(body) > 0 && json.Unmarshal(body, &parsed) == nil

	result := &model.PortalResponse{Message: parsed.Message, Error: parsed.Error}
	message := parsed.Error
	if message == "" {
		message = parsed.Message
	}
	if message == "" && len(body) > 0 && !isJSON {
		message = string(body)
	}

	switch {
	case statusCode >= 500:
		return result, &DeliveryError{Kind: FailureServer, StatusCode: statusCode, Message: orStatus(message, statusCode)}
	case statusCode >= 400:
		return result, &DeliveryError{Kind: FailureValidation, StatusCode: statusCode, Message: orStatus(message, statusCode)}
	case statusCode < 200 || statusCode >= 300:
		return result, &DeliveryError{Kind: FailureServer, StatusCode: statusCode, Message: orStatus(message, statusCode)}
	}

	// 2xx with an empty or non-JSON body is an acceptance.
	if isJSON && parsed.Success != nil && !*parsed.Success {
		return result, &DeliveryError{Kind: FailureValidation, StatusCode: statusCode, Message: orStatus(message, statusCode)}
	}
	result.Success = true
	return result, nil
}

func orStatus(message string, statusCode int) string {
	if message != "" {
		return message
	}
	return fmt.Sprintf("unexpected response %s", http.StatusText(statusCode))
}
