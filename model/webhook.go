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

	"github.com/shopspring/decimal"
)

// Portal webhook sub-events understood by the inbound processor. Anything else
// is accepted and ignored.
const (
	PortalEventPaymentReceived = "payment_received"
	PortalEventLoanDefaulted   = "loan_defaulted"
	PortalEventLoanUpdate      = "loan_update"
)

// PortalWebhook is the webhook_from_collection_portal payload.
type PortalWebhook struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

type PaymentReceived struct {
	LoanID      string              `json:"loan_id"`
	Amount      decimal.NullDecimal `json:"amount"`
	PaymentDate *string             `json:"payment_date"`
}

// LoanSync converts the payment into a loan status update that marks the loan current.
func (p PaymentReceived) LoanSync() LoanSync {
	status := LoanStatusCurrent
	notes := "Payment received: " + p.Amount.Decimal.String()
	return LoanSync{
		LoanID:          p.LoanID,
		Status:          &status,
		RecoveryAmount:  p.Amount,
		LastPaymentDate: p.PaymentDate,
		Notes:           &notes,
	}
}

type LoanDefaulted struct {
	LoanID string `json:"loan_id"`
	Reason string `json:"reason"`
}

// LoanSync converts the default notice into a loan status update. Amount and
// payment date are left as stored.
func (d LoanDefaulted) LoanSync() LoanSync {
	status := LoanStatusDefault
	notes := "Loan defaulted: " + d.Reason
	return LoanSync{
		LoanID: d.LoanID,
		Status: &status,
		Notes:  &notes,
	}
}
