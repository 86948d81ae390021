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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/portalsync/database"
	"github.com/blnkfinance/portalsync/database/mocks"
	"github.com/blnkfinance/portalsync/internal/apierror"
	"github.com/blnkfinance/portalsync/model"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var inboundNow = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func newTestProcessor() (*Processor, *mocks.MockDataSource) {
	ds := &mocks.MockDataSource{}
	p := NewProcessor(ds)
	p.now = fixedClock(inboundNow)
	return p, ds
}

func envelope(syncType model.SyncType, payload string) model.Envelope {
	return model.Envelope{Type: syncType, Payload: json.RawMessage(payload)}
}

func assertCode(t *testing.T, err error, code apierror.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	got, ok := apierror.CodeOf(err)
	require.True(t, ok, "expected an APIError, got %v", err)
	assert.Equal(t, code, got)
}

func TestProcess_LoanStatusSync(t *testing.T) {
	p, ds := newTestProcessor()
	ds.On("UpdateLoanStatus", mock.Anything, mock.MatchedBy(func(u model.LoanSync) bool {
		return u.LoanID == "L1" &&
			*u.Status == "current" &&
			u.RecoveryAmount.Valid && u.RecoveryAmount.Decimal.Equal(decimal.RequireFromString("300.25")) &&
			*u.LastPaymentDate == "2024-05-30" &&
			*u.Notes == "paid in cash"
	}), inboundNow).Return(nil)

	err := p.Process(context.Background(), envelope(model.SyncTypeLoanStatusSync,
		`{"loan_id":"L1","status":"current","recovery_amount":300.25,"last_payment_date":"2024-05-30","notes":"paid in cash"}`))
	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestProcess_LoanStatusSync_AppliedTwice(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewProcessor(database.Datasource{Conn: db})
	p.now = fixedClock(inboundNow)

	// Redelivery writes the same row again and creates nothing new.
	for i := 0; i < 2; i++ {
		sqlMock.ExpectExec("UPDATE loans").
			WithArgs("L1", "current", "300.25", "2024-05-30", "paid in cash", inboundNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	env := envelope(model.SyncTypeLoanStatusSync,
		`{"loan_id":"L1","status":"current","recovery_amount":300.25,"last_payment_date":"2024-05-30","notes":"paid in cash"}`)
	require.NoError(t, p.Process(context.Background(), env))
	require.NoError(t, p.Process(context.Background(), env))
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestProcess_LoanStatusSync_EmptyNotesCleared(t *testing.T) {
	p, ds := newTestProcessor()
	ds.On("UpdateLoanStatus", mock.Anything, mock.MatchedBy(func(u model.LoanSync) bool {
		return u.LoanID == "L1" && u.Notes == nil && !u.RecoveryAmount.Valid && u.LastPaymentDate == nil
	}), inboundNow).Return(nil)

	require.NoError(t, p.Process(context.Background(), envelope(model.SyncTypeLoanStatusSync, `{"loan_id":"L1","status":"overdue","notes":""}`)))
	ds.AssertExpectations(t)
}

func TestProcess_LoanStatusSync_NotFound(t *testing.T) {
	p, ds := newTestProcessor()
	ds.On("UpdateLoanStatus", mock.Anything, mock.Anything, inboundNow).
		Return(apierror.NewAPIError(apierror.ErrNotFound, "update target not found: loan L404", nil))

	err := p.Process(context.Background(), envelope(model.SyncTypeLoanStatusSync, `{"loan_id":"L404","status":"current"}`))
	assertCode(t, err, apierror.ErrNotFound)
}

func TestProcess_ValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		syncType model.SyncType
		payload  string
	}{
		{"loan without loan_id", model.SyncTypeLoanStatusSync, `{"status":"current"}`},
		{"loan with bad date", model.SyncTypeLoanStatusSync, `{"loan_id":"L1","last_payment_date":"30/05/2024"}`},
		{"visit without visit_id", model.SyncTypeVisitCompletionSync, `{"outcome":"no_answer"}`},
		{"activity without amount", model.SyncTypeCollectionActivitySync, `{"loan_id":"L1","activity_type":"call"}`},
		{"activity without type", model.SyncTypeCollectionActivitySync, `{"loan_id":"L1","amount":100}`},
		{"webhook without event_type", model.SyncTypePortalWebhook, `{"data":{"loan_id":"L1"}}`},
		{"webhook without data", model.SyncTypePortalWebhook, `{"event_type":"payment_received"}`},
		{"empty payload", model.SyncTypeLoanStatusSync, ``},
		{"malformed payload", model.SyncTypeVisitCompletionSync, `{"visit_id":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ds := newTestProcessor()
			err := p.Process(context.Background(), envelope(tt.syncType, tt.payload))
			assertCode(t, err, apierror.ErrInvalidInput)
			ds.AssertNotCalled(t, "UpdateLoanStatus", mock.Anything, mock.Anything, mock.Anything)
			ds.AssertNotCalled(t, "CompleteVisit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			ds.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
		})
	}
}

func TestProcess_VisitCompletionSync(t *testing.T) {
	completedAt := time.Date(2024, 5, 31, 15, 0, 0, 0, time.UTC)
	p, ds := newTestProcessor()
	ds.On("CompleteVisit", mock.Anything, mock.MatchedBy(func(c model.VisitCompletion) bool {
		return c.VisitID == "v9" && *c.Outcome == "promise_to_pay"
	}), completedAt, inboundNow).Return(nil)

	err := p.Process(context.Background(), envelope(model.SyncTypeVisitCompletionSync,
		`{"visit_id":"v9","outcome":"promise_to_pay","notes":"friday","completed_at":"2024-05-31T15:00:00Z"}`))
	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestProcess_VisitCompletionSync_DefaultsCompletedAt(t *testing.T) {
	p, ds := newTestProcessor()
	ds.On("CompleteVisit", mock.Anything, mock.Anything, inboundNow, inboundNow).Return(nil)

	require.NoError(t, p.Process(context.Background(), envelope(model.SyncTypeVisitCompletionSync, `{"visit_id":"v9"}`)))
	ds.AssertExpectations(t)
}

func TestProcess_VisitCompletionSync_NotFound(t *testing.T) {
	p, ds := newTestProcessor()
	ds.On("CompleteVisit", mock.Anything, mock.Anything, inboundNow, inboundNow).
		Return(apierror.NewAPIError(apierror.ErrNotFound, "update target not found: visit v0", nil))

	err := p.Process(context.Background(), envelope(model.SyncTypeVisitCompletionSync, `{"visit_id":"v0"}`))
	assertCode(t, err, apierror.ErrNotFound)
}

func TestProcess_CollectionActivitySync(t *testing.T) {
	p, ds := newTestProcessor()
	ds.On("CreateTask", mock.Anything, mock.MatchedBy(func(task model.TaskRecord) bool {
		return task.Title == "Collection Activity: field_visit" &&
			task.Description == "Amount: 150. Notes: left receipt" &&
			task.Type == model.TaskTypeCollection &&
			task.Status == model.TaskStatusCompleted &&
			task.Priority == model.TaskPriorityMedium &&
			*task.LoanID == "L7" &&
			task.DueAt.Equal(time.Date(2024, 5, 29, 12, 0, 0, 0, time.UTC))
	})).Return(model.TaskRecord{ID: gofakeit.UUID()}, nil)

	err := p.Process(context.Background(), envelope(model.SyncTypeCollectionActivitySync,
		`{"loan_id":"L7","activity_type":"field_visit","amount":150,"notes":"left receipt","timestamp":"2024-05-29T12:00:00Z"}`))
	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestProcess_CollectionActivitySync_InsertFailure(t *testing.T) {
	p, ds := newTestProcessor()
	ds.On("CreateTask", mock.Anything, mock.Anything).Return(model.TaskRecord{}, errors.New("connection reset"))

	err := p.Process(context.Background(), envelope(model.SyncTypeCollectionActivitySync,
		`{"loan_id":"L7","activity_type":"call","amount":20}`))
	assert.EqualError(t, err, "connection reset")
}

func TestProcess_WebhookPaymentReceived(t *testing.T) {
	p, ds := newTestProcessor()
	ds.On("UpdateLoanStatus", mock.Anything, mock.MatchedBy(func(u model.LoanSync) bool {
		return u.LoanID == "L5" &&
			*u.Status == model.LoanStatusCurrent &&
			u.RecoveryAmount.Decimal.Equal(decimal.NewFromInt(500)) &&
			*u.LastPaymentDate == "2024-05-31" &&
			*u.Notes == "Payment received: 500"
	}), inboundNow).Return(nil)

	err := p.Process(context.Background(), envelope(model.SyncTypePortalWebhook,
		`{"event_type":"payment_received","data":{"loan_id":"L5","amount":500,"payment_date":"2024-05-31"}}`))
	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestProcess_WebhookLoanDefaulted(t *testing.T) {
	p, ds := newTestProcessor()
	ds.On("UpdateLoanStatus", mock.Anything, mock.MatchedBy(func(u model.LoanSync) bool {
		return u.LoanID == "L6" &&
			*u.Status == model.LoanStatusDefault &&
			!u.RecoveryAmount.Valid &&
			u.LastPaymentDate == nil &&
			*u.Notes == "Loan defaulted: borrower relocated"
	}), inboundNow).Return(nil)

	err := p.Process(context.Background(), envelope(model.SyncTypePortalWebhook,
		`{"event_type":"loan_defaulted","data":{"loan_id":"L6","reason":"borrower relocated"}}`))
	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestProcess_WebhookLoanUpdate(t *testing.T) {
	p, ds := newTestProcessor()
	ds.On("UpdateLoanStatus", mock.Anything, mock.MatchedBy(func(u model.LoanSync) bool {
		return u.LoanID == "L8" && *u.Status == "restructured"
	}), inboundNow).Return(nil)

	err := p.Process(context.Background(), envelope(model.SyncTypePortalWebhook,
		`{"event_type":"loan_update","data":{"loan_id":"L8","status":"restructured","notes":"new plan"}}`))
	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestProcess_WebhookUnknownEventIsNoop(t *testing.T) {
	p, ds := newTestProcessor()

	err := p.Process(context.Background(), envelope(model.SyncTypePortalWebhook,
		`{"event_type":"borrower_moved","data":{"loan_id":"L9"}}`))
	require.NoError(t, err)
	ds.AssertNotCalled(t, "UpdateLoanStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_UnknownType(t *testing.T) {
	p, ds := newTestProcessor()

	err := p.Process(context.Background(), envelope("loan_deleted", `{"loan_id":"L1"}`))
	assertCode(t, err, apierror.ErrUnknownType)
	assert.Contains(t, err.Error(), "unknown sync type: loan_deleted")
	assert.Empty(t, ds.Calls)
}
