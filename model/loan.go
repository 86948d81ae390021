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
	"time"

	"github.com/shopspring/decimal"
)

// Loan statuses the sync engine writes itself. Other values coming from the
// portal or the field app are stored as-is.
const (
	LoanStatusCurrent = "current"
	LoanStatusOverdue = "overdue"
	LoanStatusDefault = "default"
)

// LoanRecord is a loan under collection. LoanID is the business key shared with
// the Collection Portal; ID is the internal row id and never leaves this service.
type LoanRecord struct {
	ID              string              `json:"-"`
	LoanID          string              `json:"loan_id"`
	Status          string              `json:"status"`
	RecoveryAmount  decimal.NullDecimal `json:"recovery_amount"`
	LastPaymentDate *string             `json:"last_payment_date"` // YYYY-MM-DD
	Notes           *string             `json:"notes"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// LoanSync is the loan shape exchanged with the portal, outbound as a
// loan_update payload and inbound as a loan_status_sync payload.
// Nil Status, RecoveryAmount and LastPaymentDate leave the stored value untouched
// when applied locally; Notes is always written.
type LoanSync struct {
	LoanID          string              `json:"loan_id"`
	Status          *string             `json:"status,omitempty"`
	RecoveryAmount  decimal.NullDecimal `json:"recovery_amount"`
	LastPaymentDate *string             `json:"last_payment_date"`
	Notes           *string             `json:"notes"`
}

// SyncPayload builds the outbound payload from the loan's current fields.
func (l LoanRecord) SyncPayload() LoanSync {
	status := l.Status
	return LoanSync{
		LoanID:          l.LoanID,
		Status:          &status,
		RecoveryAmount:  l.RecoveryAmount,
		LastPaymentDate: l.LastPaymentDate,
		Notes:           l.Notes,
	}
}
