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

package database

import (
	"context"
	"time"

	"github.com/blnkfinance/portalsync/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	loan  // Interface for loan-related operations
	visit // Interface for visit-related operations
	task  // Interface for task-related operations
}

type loan interface {
	// UpdateLoanStatus applies a portal status update by business key.
	UpdateLoanStatus(ctx context.Context, update model.LoanSync, updatedAt time.Time) error
	// GetRecentLoans returns loans changed at or after since, oldest first.
	GetRecentLoans(ctx context.Context, since time.Time) ([]model.LoanRecord, error)
	GetLoanByLoanID(ctx context.Context, loanID string) (*model.LoanRecord, error)
}

type visit interface {
	CompleteVisit(ctx context.Context, completion model.VisitCompletion, completedAt, updatedAt time.Time) error
}

type task interface {
	// CreateTask inserts a task and returns it with its generated id.
	CreateTask(ctx context.Context, task model.TaskRecord) (model.TaskRecord, error)
}
