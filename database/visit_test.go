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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/portalsync/internal/apierror"
	"github.com/blnkfinance/portalsync/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

func TestCompleteVisit_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	completedAt := time.Date(2024, 5, 2, 15, 30, 0, 0, time.UTC)
	now := completedAt.Add(time.Minute)

	completion := model.VisitCompletion{
		VisitID: "visit-1",
		Outcome: ptr.String("promise_to_pay"),
		Notes:   ptr.String("Borrower will pay Friday"),
	}

	mock.ExpectExec("UPDATE visits").
		WithArgs("visit-1", "completed", "promise_to_pay", "Borrower will pay Friday", completedAt, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.CompleteVisit(context.Background(), completion, completedAt, now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteVisit_KeepsStoredOutcomeAndNotes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	completedAt := time.Date(2024, 5, 2, 15, 30, 0, 0, time.UTC)

	mock.ExpectExec(`outcome = COALESCE\(\$3, outcome\),\s+notes = COALESCE\(\$4, notes\)`).
		WithArgs("visit-1", "completed", nil, nil, completedAt, completedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.CompleteVisit(context.Background(), model.VisitCompletion{VisitID: "visit-1"}, completedAt, completedAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteVisit_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE visits").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.CompleteVisit(context.Background(), model.VisitCompletion{VisitID: "ghost"}, time.Now(), time.Now())
	code, ok := apierror.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, code)
}
