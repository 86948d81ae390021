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
	"strings"
	"time"

	"github.com/blnkfinance/portalsync/database"
	"github.com/blnkfinance/portalsync/internal/apierror"
	"github.com/blnkfinance/portalsync/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const MessageSyncCompleted = "Sync completed successfully"

// Processor applies envelopes pushed by the portal to the local tables.
// Every envelope touches at most one row and never changes the sync status.
type Processor struct {
	datasource database.IDataSource
	now        func() time.Time
}

func NewProcessor(datasource database.IDataSource) *Processor {
	return &Processor{datasource: datasource, now: func() time.Time { return time.Now().UTC() }}
}

// Process dispatches env on its type. Unknown types fail with UNKNOWN_TYPE and
// mutate nothing.
func (p *Processor) Process(ctx context.Context, env model.Envelope) error {
	ctx, span := tracer.Start(ctx, "Process Inbound Sync")
	defer span.End()
	span.SetAttributes(attribute.String("sync.type", string(env.Type)), attribute.String("sync.action", env.Action))

	logrus.WithFields(logrus.Fields{
		"type":   env.Type,
		"action": env.Action,
	}).Info("Collection Portal sync event received")

	var err error
	switch env.Type {
	case model.SyncTypeLoanStatusSync:
		err = p.loanStatusSync(ctx, env.Payload)
	case model.SyncTypeVisitCompletionSync:
		err = p.visitCompletionSync(ctx, env.Payload)
	case model.SyncTypeCollectionActivitySync:
		err = p.collectionActivitySync(ctx, env.Payload)
	case model.SyncTypePortalWebhook:
		err = p.portalWebhook(ctx, env.Payload)
	default:
		err = apierror.NewAPIError(apierror.ErrUnknownType, fmt.Sprintf("unknown sync type: %s", env.Type), nil)
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "payload is required", nil)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "payload is malformed: "+err.Error(), err)
	}
	return nil
}

func invalid(err error) error {
	return apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
}

func (p *Processor) loanStatusSync(ctx context.Context, raw json.RawMessage) error {
	var update model.LoanSync
	if err := decodePayload(raw, &update); err != nil {
		return err
	}
	return p.applyLoanUpdate(ctx, update)
}

func (p *Processor) applyLoanUpdate(ctx context.Context, update model.LoanSync) error {
	if err := update.Validate(); err != nil {
		return invalid(err)
	}
	// An empty note clears the stored one.
	if update.Notes != nil && strings.TrimSpace(*update.Notes) == "" {
		update.Notes = nil
	}

	if err := p.datasource.UpdateLoanStatus(ctx, update, p.now()); err != nil {
		return err
	}
	logrus.Infof("Loan %s status synced successfully", update.LoanID)
	return nil
}

func (p *Processor) visitCompletionSync(ctx context.Context, raw json.RawMessage) error {
	var completion model.VisitCompletion
	if err := decodePayload(raw, &completion); err != nil {
		return err
	}
	if err := completion.Validate(); err != nil {
		return invalid(err)
	}

	now := p.now()
	completedAt := now
	if completion.CompletedAt != nil {
		completedAt = *completion.CompletedAt
	}

	if err := p.datasource.CompleteVisit(ctx, completion, completedAt, now); err != nil {
		return err
	}
	logrus.Infof("Visit %s completion synced successfully", completion.VisitID)
	return nil
}

func (p *Processor) collectionActivitySync(ctx context.Context, raw json.RawMessage) error {
	var activity model.CollectionActivity
	if err := decodePayload(raw, &activity); err != nil {
		return err
	}
	if err := activity.Validate(); err != nil {
		return invalid(err)
	}

	task, err := p.datasource.CreateTask(ctx, activity.ToTask(p.now()))
	if err != nil {
		return err
	}
	logrus.WithField("task_id", task.ID).Infof("Collection activity for loan %s synced successfully", activity.LoanID)
	return nil
}

func (p *Processor) portalWebhook(ctx context.Context, raw json.RawMessage) error {
	var webhook model.PortalWebhook
	if err := decodePayload(raw, &webhook); err != nil {
		return err
	}
	if err := webhook.Validate(); err != nil {
		return invalid(err)
	}

	switch webhook.EventType {
	case model.PortalEventPaymentReceived:
		var payment model.PaymentReceived
		if err := decodePayload(webhook.Data, &payment); err != nil {
			return err
		}
		return p.applyLoanUpdate(ctx, payment.LoanSync())
	case model.PortalEventLoanDefaulted:
		var defaulted model.LoanDefaulted
		if err := decodePayload(webhook.Data, &defaulted); err != nil {
			return err
		}
		return p.applyLoanUpdate(ctx, defaulted.LoanSync())
	case model.PortalEventLoanUpdate:
		var update model.LoanSync
		if err := decodePayload(webhook.Data, &update); err != nil {
			return err
		}
		return p.applyLoanUpdate(ctx, update)
	default:
		logrus.Infof("Unhandled webhook event: %s", webhook.EventType)
		return nil
	}
}
