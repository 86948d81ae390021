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
)

// CompleteVisit marks the visit completed with the portal's outcome and notes.
// A nil outcome or notes keeps the stored value.
func (d Datasource) CompleteVisit(ctx context.Context, completion model.VisitCompletion, completedAt, updatedAt time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE visits
		SET status = $2,
			outcome = COALESCE($3, outcome),
			notes = COALESCE($4, notes),
			completed_at = $5,
			updated_at = $6
		WHERE id = $1
	`, completion.VisitID, string(model.VisitStatusCompleted), completion.Outcome, completion.Notes, completedAt, updatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete visit", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "update target not found: visit "+completion.VisitID, nil)
	}
	return nil
}
