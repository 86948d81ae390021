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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/portalsync/internal/apierror"
	"github.com/blnkfinance/portalsync/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

func TestUpdateLoanStatus_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	update := model.LoanSync{
		LoanID:          "LN-1001",
		Status:          ptr.String(model.LoanStatusCurrent),
		RecoveryAmount:  decimal.NewNullDecimal(decimal.RequireFromString("120.5")),
		LastPaymentDate: ptr.String("2024-04-30"),
		Notes:           ptr.String("Payment received: 120.5"),
	}

	mock.ExpectExec("UPDATE loans").
		WithArgs("LN-1001", "current", "120.5", "2024-04-30", "Payment received: 120.5", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateLoanStatus(context.Background(), update, now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLoanStatus_PartialUpdateSendsNulls(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now().UTC()

	// Absent fields reach the database as NULL so COALESCE keeps the stored value.
	mock.ExpectExec("UPDATE loans").
		WithArgs("LN-1002", "default", nil, nil, "Loan defaulted: absconded", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	update := model.LoanDefaulted{LoanID: "LN-1002", Reason: "absconded"}.LoanSync()
	err = ds.UpdateLoanStatus(context.Background(), update, now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLoanStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE loans").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateLoanStatus(context.Background(), model.LoanSync{LoanID: "missing"}, time.Now())
	require.Error(t, err)
	code, ok := apierror.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, code)
	assert.Contains(t, err.Error(), "update target not found")
}

func TestUpdateLoanStatus_DatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE loans").
		WillReturnError(errors.New("connection refused"))

	err = ds.UpdateLoanStatus(context.Background(), model.LoanSync{LoanID: "LN-1"}, time.Now())
	require.Error(t, err)
	code, _ := apierror.CodeOf(err)
	assert.Equal(t, apierror.ErrInternalServer, code)
}

func TestGetRecentLoans_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	since := time.Now().Add(-24 * time.Hour)
	updated := time.Now().Add(-time.Hour)

	rows := sqlmock.NewRows([]string{"id", "loan_id", "status", "recovery_amount", "last_payment_date", "notes", "updated_at"}).
		AddRow("row-1", "LN-1", "current", "250.00", "2024-04-30", "called borrower", updated).
		AddRow("row-2", "LN-2", "overdue", nil, nil, nil, updated)

	mock.ExpectQuery("SELECT (.+) FROM loans WHERE updated_at >= \\$1 ORDER BY updated_at ASC").
		WithArgs(since).
		WillReturnRows(rows)

	loans, err := ds.GetRecentLoans(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, loans, 2)

	assert.Equal(t, "LN-1", loans[0].LoanID)
	assert.True(t, loans[0].RecoveryAmount.Valid)
	assert.True(t, decimal.RequireFromString("250").Equal(loans[0].RecoveryAmount.Decimal))
	assert.Equal(t, "2024-04-30", *loans[0].LastPaymentDate)
	assert.Equal(t, "called borrower", *loans[0].Notes)

	assert.Equal(t, "overdue", loans[1].Status)
	assert.False(t, loans[1].RecoveryAmount.Valid)
	assert.Nil(t, loans[1].LastPaymentDate)
	assert.Nil(t, loans[1].Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentLoans_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM loans").
		WillReturnRows(sqlmock.NewRows([]string{"id", "loan_id", "status", "recovery_amount", "last_payment_date", "notes", "updated_at"}))

	loans, err := ds.GetRecentLoans(context.Background(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, loans)
	assert.Empty(t, loans)
}

func TestGetRecentLoans_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM loans").
		WillReturnError(errors.New("relation \"loans\" does not exist"))

	loans, err := ds.GetRecentLoans(context.Background(), time.Now())
	assert.Error(t, err)
	assert.Nil(t, loans)
}

func TestGetLoanByLoanID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM loans WHERE loan_id = \\$1").
		WithArgs("LN-404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "loan_id", "status", "recovery_amount", "last_payment_date", "notes", "updated_at"}))

	loan, err := ds.GetLoanByLoanID(context.Background(), "LN-404")
	assert.Nil(t, loan)
	code, _ := apierror.CodeOf(err)
	assert.Equal(t, apierror.ErrNotFound, code)
}
