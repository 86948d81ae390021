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

	"github.com/blnkfinance/portalsync/internal/apierror"
	"github.com/blnkfinance/portalsync/model"
	"github.com/lib/pq"
)

func (d Datasource) CreateTask(ctx context.Context, task model.TaskRecord) (model.TaskRecord, error) {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO tasks (title, description, type, status, priority, loan_id, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, task.Title, task.Description, task.Type, task.Status, task.Priority, task.LoanID, task.DueAt, task.CreatedAt, task.UpdatedAt).Scan(&task.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code.Name() {
			case "not_null_violation", "check_violation":
				return model.TaskRecord{}, apierror.NewAPIError(apierror.ErrInvalidInput, "Task violates table constraints", err)
			default:
				return model.TaskRecord{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.TaskRecord{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create task", err)
	}

	return task, nil
}
