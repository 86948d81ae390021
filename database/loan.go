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
	"database/sql"
	"errors"
	"time"

	"github.com/blnkfinance/portalsync/internal/apierror"
	"github.com/blnkfinance/portalsync/model"
)

const loanColumns = `id, loan_id, status, recovery_amount, to_char(last_payment_date, 'YYYY-MM-DD'), notes, updated_at`

// UpdateLoanStatus writes a portal status update onto the loan identified by
// update.LoanID. Nil status, amount and payment date keep the stored values;
// notes are always overwritten. A missing loan is reported as not found.
func (d Datasource) UpdateLoanStatus(ctx context.Context, update model.LoanSync, updatedAt time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE loans
		SET status = COALESCE($2, status),
			recovery_amount = COALESCE($3, recovery_amount),
			last_payment_date = COALESCE($4::date, last_payment_date),
			notes = $5,
			updated_at = $6
		WHERE loan_id = $1
	`, update.LoanID, update.Status, update.RecoveryAmount, update.LastPaymentDate, update.Notes, updatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update loan", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "update target not found: loan "+update.LoanID, nil)
	}
	return nil
}

// GetRecentLoans returns every loan whose updated_at is at or after since.
func (d Datasource) GetRecentLoans(ctx context.Context, since time.Time) ([]model.LoanRecord, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+loanColumns+`
		FROM loans
		WHERE updated_at >= $1
		ORDER BY updated_at ASC
	`, since)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve recent loans", err)
	}
	defer rows.Close()

	loans := []model.LoanRecord{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan loan data", err)
		}
		loans = append(loans, loan)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over loans", err)
	}

	return loans, nil
}

func (d Datasource) GetLoanByLoanID(ctx context.Context, loanID string) (*model.LoanRecord, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+loanColumns+`
		FROM loans
		WHERE loan_id = $1
	`, loanID)

	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "loan not found: "+loanID, err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve loan", err)
	}
	return &loan, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLoan(row rowScanner) (model.LoanRecord, error) {
	var (
		loan            model.LoanRecord
		lastPaymentDate sql.NullString
		notes           sql.NullString
	)
	err := row.Scan(&loan.ID, &loan.LoanID, &loan.Status, &loan.RecoveryAmount, &lastPaymentDate, &notes, &loan.UpdatedAt)
	if err != nil {
		return model.LoanRecord{}, err
	}
	if lastPaymentDate.Valid {
		loan.LastPaymentDate = &lastPaymentDate.String
	}
	if notes.Valid {
		loan.Notes = &notes.String
	}
	return loan, nil
}
