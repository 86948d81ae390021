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

package portalsync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blnkfinance/portalsync/internal/portal"
	"github.com/blnkfinance/portalsync/model"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Sender performs one delivery attempt to the Collection Portal.
type Sender interface {
	Send(ctx context.Context, event model.SyncEvent) (*model.PortalResponse, error)
}

// Dispatcher pushes local sync events to the portal.
type Dispatcher struct {
	sender Sender
	status *StatusTracker
	notify func(error)
}

func NewDispatcher(sender Sender, status *StatusTracker, notify func(error)) *Dispatcher {
	if notify == nil {
		notify = func(error) {}
	}
	return &Dispatcher{sender: sender, status: status, notify: notify}
}

// Deliver sends event once without touching the sync status.
func (d *Dispatcher) Deliver(ctx context.Context, event model.SyncEvent) error {
	ctx, span := tracer.Start(ctx, "Deliver Sync Event")
	defer span.End()
	span.SetAttributes(
		attribute.String("sync.event_id", event.ID),
		attribute.String("sync.type", string(event.Type)),
		attribute.String("sync.entity_id", event.EntityID),
	)

	if _, err := d.sender.Send(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Dispatch delivers event and counts it on success. A failed delivery raises
// a Sync Error notification and leaves the status untouched.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.SyncEvent) error {
	if err := d.Deliver(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"event_id":  event.ID,
			"type":      event.Type,
			"entity_id": event.EntityID,
		}).Errorf("sync delivery failed: %v", err)
		d.notify(fmt.Errorf("%s for %s: %w", event.Type, event.EntityID, err))
		return err
	}

	d.status.RecordSync(1)
	return nil
}

// ProcessSyncTask is the worker handler for queued sync events. Retryable
// failures are returned as-is so the queue reschedules the task; rejected
// payloads skip retry and go straight to the archive.
func (d *Dispatcher) ProcessSyncTask(ctx context.Context, task *asynq.Task) error {
	var event model.SyncEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		logrus.Error(err)
		return fmt.Errorf("decode sync task: %v: %w", err, asynq.SkipRetry)
	}

	err := d.Dispatch(ctx, event)
	if err == nil {
		logrus.Infof(" [*] Sync event delivered %s", event.ID)
		return nil
	}

	if !portal.IsRetryable(err) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logrus.Infof("Sync event %s pushed back for retry (%d/%d) due to error: %v", event.ID, retried, maxRetry, err)
	return err
}
