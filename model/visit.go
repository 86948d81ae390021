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

import "time"

type VisitStatus string

const (
	VisitStatusPlanned   VisitStatus = "planned"
	VisitStatusPending   VisitStatus = "pending"
	VisitStatusCompleted VisitStatus = "completed"
)

// VisitRecord is a scheduled or completed field visit.
type VisitRecord struct {
	ID          string      `json:"id"`
	LoanID      *string     `json:"loan_id"`
	Status      VisitStatus `json:"status"`
	Outcome     *string     `json:"outcome"`
	Notes       *string     `json:"notes"`
	CompletedAt *time.Time  `json:"completed_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// VisitCompletion is the visit_completion_sync payload. LoanID is only sent
// outbound; the inbound handler matches on VisitID.
type VisitCompletion struct {
	VisitID     string     `json:"visit_id"`
	LoanID      *string    `json:"loan_id,omitempty"`
	Outcome     *string    `json:"outcome"`
	Notes       *string    `json:"notes"`
	CompletedAt *time.Time `json:"completed_at"`
}

// SyncPayload builds the outbound completion payload for the visit.
func (v VisitRecord) SyncPayload() VisitCompletion {
	return VisitCompletion{
		VisitID:     v.ID,
		LoanID:      v.LoanID,
		Outcome:     v.Outcome,
		Notes:       v.Notes,
		CompletedAt: v.CompletedAt,
	}
}
