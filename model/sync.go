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

package model

import (
	"encoding/json"
	"time"
)

// SyncType names the kind of a sync envelope. The outbound set and the inbound
// set overlap on visit_completion_sync and collection_activity_sync.
type SyncType string

const (
	SyncTypeLoanUpdate             SyncType = "loan_update"
	SyncTypeLoanStatusSync         SyncType = "loan_status_sync"
	SyncTypeVisitCompletionSync    SyncType = "visit_completion_sync"
	SyncTypeCollectionActivitySync SyncType = "collection_activity_sync"
	SyncTypePortalWebhook          SyncType = "webhook_from_collection_portal"
)

type SyncSource string

const (
	SourceLocal  SyncSource = "local"
	SourcePortal SyncSource = "portal"
)

// SyncEvent is one cross-system change. It is transient: it lives in the work
// queue between the change feed and the dispatcher and is never stored in the
// database. Each event maps to exactly one outbound call.
type SyncEvent struct {
	ID        string          `json:"id"`
	Type      SyncType        `json:"type"`
	EntityID  string          `json:"entity_id"`
	Data      json.RawMessage `json:"data"`
	Source    SyncSource      `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewSyncEvent marshals data into a locally sourced event.
func NewSyncEvent(syncType SyncType, entityID string, data interface{}) (SyncEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return SyncEvent{}, err
	}
	return SyncEvent{
		ID:        GenerateUUIDWithSuffix("sev"),
		Type:      syncType,
		EntityID:  entityID,
		Data:      raw,
		Source:    SourceLocal,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Envelope returns the wire form of the event.
func (e SyncEvent) Envelope() Envelope {
	return Envelope{Type: e.Type, Payload: e.Data}
}

// Envelope is the request body exchanged with the portal in both directions.
type Envelope struct {
	Type    SyncType        `json:"type"`
	Action  string          `json:"action,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// PortalResponse is the response body in both directions.
type PortalResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SyncStatus is a point-in-time copy of the outbound sync state.
type SyncStatus struct {
	IsConnected bool       `json:"isConnected"`
	LastSync    *time.Time `json:"lastSync"`
	SyncCount   int64      `json:"syncCount"`
}
