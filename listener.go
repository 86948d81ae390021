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
	"fmt"

	"github.com/blnkfinance/portalsync/model"
	"github.com/sirupsen/logrus"
)

// ChangeHandler turns row-level change notifications into outbound sync
// events. Only updates are forwarded; visits only once they are completed.
type ChangeHandler struct {
	queue  Enqueuer
	notify func(error)
}

func NewChangeHandler(queue Enqueuer, notify func(error)) *ChangeHandler {
	if notify == nil {
		notify = func(error) {}
	}
	return &ChangeHandler{queue: queue, notify: notify}
}

// HandleChange enqueues the sync event for change, if there is one. A failed
// handoff is logged and notified; the caller keeps listening.
func (h *ChangeHandler) HandleChange(ctx context.Context, change model.ChangeEvent) error {
	if change.Operation != model.OperationUpdate {
		return nil
	}

	event, ok, err := syncEventFor(change)
	if err != nil {
		logrus.WithField("table", change.Table).Errorf("unreadable change notification: %v", err)
		return err
	}
	if !ok {
		return nil
	}

	if err := h.queue.Enqueue(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"type":      event.Type,
			"entity_id": event.EntityID,
		}).Errorf("failed to hand off sync event: %v", err)
		h.notify(fmt.Errorf("%s for %s: %w", event.Type, event.EntityID, err))
		return err
	}
	return nil
}

func syncEventFor(change model.ChangeEvent) (model.SyncEvent, bool, error) {
	switch change.Table {
	case model.TableLoans:
		var loan model.LoanRecord
		if err := change.DecodeNew(&loan); err != nil {
			return model.SyncEvent{}, false, fmt.Errorf("decode loan row: %w", err)
		}
		if loan.LoanID == "" {
			return model.SyncEvent{}, false, fmt.Errorf("loan row has no loan_id")
		}
		event, err := model.NewSyncEvent(model.SyncTypeLoanUpdate, loan.LoanID, loan.SyncPayload())
		return event, err == nil, err

	case model.TableVisits:
		var visit model.VisitRecord
		if err := change.DecodeNew(&visit); err != nil {
			return model.SyncEvent{}, false, fmt.Errorf("decode visit row: %w", err)
		}
		if visit.Status != model.VisitStatusCompleted {
			return model.SyncEvent{}, false, nil
		}
		event, err := model.NewSyncEvent(model.SyncTypeVisitCompletionSync, visit.ID, visit.SyncPayload())
		return event, err == nil, err
	}
	return model.SyncEvent{}, false, nil
}
