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

const (
	TaskTypeCollection    = "Collection"
	TaskStatusCompleted   = "completed"
	TaskPriorityMedium    = "medium"
	collectionTitlePrefix = "Collection Activity: "
)

// TaskRecord is a unit of work. This service only creates tasks as the record
// of a collection activity reported by the portal.
type TaskRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	LoanID      *string   `json:"loan_id"`
	DueAt       time.Time `json:"due_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CollectionActivity is the collection_activity_sync payload.
type CollectionActivity struct {
	LoanID       string              `json:"loan_id"`
	ActivityType string              `json:"activity_type"`
	Amount       decimal.NullDecimal `json:"amount"`
	Notes        *string             `json:"notes"`
	Timestamp    *time.Time          `json:"timestamp"`
}

// ToTask summarizes the activity as an already-completed task. dueAt is used
// when the activity carries no timestamp.
func (a CollectionActivity) ToTask(dueAt time.Time) TaskRecord {
	if a.Timestamp != nil {
		dueAt = *a.Timestamp
	}
	loanID := a.LoanID
	return TaskRecord{
		Title:       collectionTitlePrefix + a.ActivityType,
		Description: "Amount: " + a.Amount.Decimal.String() + ". Notes: " + StringValue(a.Notes),
		Type:        TaskTypeCollection,
		Status:      TaskStatusCompleted,
		Priority:    TaskPriorityMedium,
		LoanID:      &loanID,
		DueAt:       dueAt,
	}
}
