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

package mocks

import (
	"context"
	"time"

	"github.com/blnkfinance/portalsync/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Loan methods

func (m *MockDataSource) UpdateLoanStatus(ctx context.Context, update model.LoanSync, updatedAt time.Time) error {
	args := m.Called(ctx, update, updatedAt)
	return args.Error(0)
}

func (m *MockDataSource) GetRecentLoans(ctx context.Context, since time.Time) ([]model.LoanRecord, error) {
	args := m.Called(ctx, since)
	loans, _ := args.Get(0).([]model.LoanRecord)
	return loans, args.Error(1)
}

func (m *MockDataSource) GetLoanByLoanID(ctx context.Context, loanID string) (*model.LoanRecord, error) {
	args := m.Called(ctx, loanID)
	loan, _ := args.Get(0).(*model.LoanRecord)
	return loan, args.Error(1)
}

// Visit methods

func (m *MockDataSource) CompleteVisit(ctx context.Context, completion model.VisitCompletion, completedAt, updatedAt time.Time) error {
	args := m.Called(ctx, completion, completedAt, updatedAt)
	return args.Error(0)
}

// Task methods

func (m *MockDataSource) CreateTask(ctx context.Context, task model.TaskRecord) (model.TaskRecord, error) {
	args := m.Called(ctx, task)
	return args.Get(0).(model.TaskRecord), args.Error(1)
}
