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

package portalsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blnkfinance/portalsync/config"
	"github.com/blnkfinance/portalsync/database"
	"github.com/blnkfinance/portalsync/internal/apierror"
	redlock "github.com/blnkfinance/portalsync/internal/lock"
	"github.com/blnkfinance/portalsync/model"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const sweepLockKey = "portalsync:sweep"

// Locker guards a single sweep run across processes.
type Locker interface {
	Lock(ctx context.Context, ttl time.Duration) error
	Unlock(ctx context.Context) error
}

// LockFactory returns a fresh lock owned by one sweep run.
type LockFactory func(owner string) Locker

// RedisLockFactory builds sweep locks on the shared Redis client.
func RedisLockFactory(client redis.UniversalClient) LockFactory {
	return func(owner string) Locker {
		return redlock.NewLocker(client, sweepLockKey, owner)
	}
}

type SweepOptions struct {
	Lookback        time.Duration
	ContinueOnError bool
	LockTTL         time.Duration
}

// SweepOptionsFromConfig reads the sweep section of the configuration.
func SweepOptionsFromConfig(cfg config.SweepConfig) SweepOptions {
	return SweepOptions{
		Lookback:        cfg.Lookback(),
		ContinueOnError: cfg.ContinueOnError,
		LockTTL:         cfg.LockTTL(),
	}
}

type SweepResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Sweeper re-sends every recently changed loan to the portal. It replays the
// current state of each loan and does not diff against what the portal has.
type Sweeper struct {
	datasource database.IDataSource
	dispatcher *Dispatcher
	status     *StatusTracker
	locks      LockFactory
	options    SweepOptions
	now        func() time.Time
}

func NewSweeper(datasource database.IDataSource, dispatcher *Dispatcher, status *StatusTracker, locks LockFactory, options SweepOptions) *Sweeper {
	if options.Lookback <= 0 {
		options.Lookback = config.DEFAULT_LOOKBACK_HOURS * time.Hour
	}
	if options.LockTTL <= 0 {
		options.LockTTL = 5 * time.Minute
	}
	return &Sweeper{
		datasource: datasource,
		dispatcher: dispatcher,
		status:     status,
		locks:      locks,
		options:    options,
		now:        time.Now,
	}
}

// ManualSync sends every loan updated within lookback (the configured window
// when lookback is zero) and records the delivered count once. By default the
// first failed delivery aborts the run and leaves the status untouched.
func (s *Sweeper) ManualSync(ctx context.Context, lookback time.Duration) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "Manual Reconciliation Sweep")
	defer span.End()

	if lookback <= 0 {
		lookback = s.options.Lookback
	}

	if s.locks != nil {
		lock := s.locks(model.GenerateUUIDWithSuffix("sweep"))
		if err := lock.Lock(ctx, s.options.LockTTL); err != nil {
			if errors.Is(err, redlock.ErrLockHeld) {
				return SweepResult{}, apierror.NewAPIError(apierror.ErrConflict, "a reconciliation sweep is already running", nil)
			}
			return SweepResult{}, fmt.Errorf("acquire sweep lock: %w", err)
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				logrus.Warnf("release sweep lock: %v", err)
			}
		}()
	}

	since := s.now().Add(-lookback)
	loans, err := s.datasource.GetRecentLoans(ctx, since)
	if err != nil {
		return SweepResult{}, fmt.Errorf("query recent loans: %w", err)
	}
	span.SetAttributes(attribute.Int("sweep.candidates", len(loans)))

	var result SweepResult
	for _, loan := range loans {
		if err := s.deliver(ctx, loan); err != nil {
			if !s.options.ContinueOnError {
				span.RecordError(err)
				err = fmt.Errorf("sweep aborted after %d of %d loans: %w", result.Processed, len(loans), err)
				s.dispatcher.notify(err)
				return result, err
			}
			result.Failed++
			continue
		}
		result.Processed++
	}

	s.status.RecordSweep(result.Processed)

	logrus.WithFields(logrus.Fields{
		"processed": result.Processed,
		"failed":    result.Failed,
		"since":     since.Format(time.RFC3339),
	}).Info("Manual sync completed")

	if result.Failed > 0 {
		s.dispatcher.notify(fmt.Errorf("manual sync failed for %d of %d loans", result.Failed, len(loans)))
	}
	return result, nil
}

func (s *Sweeper) deliver(ctx context.Context, loan model.LoanRecord) error {
	event, err := model.NewSyncEvent(model.SyncTypeLoanUpdate, loan.LoanID, loan.SyncPayload())
	if err != nil {
		return err
	}
	if err := s.dispatcher.Deliver(ctx, event); err != nil {
		logrus.WithField("loan_id", loan.LoanID).Errorf("manual sync delivery failed: %v", err)
		return err
	}
	return nil
}

// SyncLoan re-sends one loan by its business key. Unlike a sweep it counts
// toward the status as soon as the portal accepts it.
func (s *Sweeper) SyncLoan(ctx context.Context, loanID string) error {
	ctx, span := tracer.Start(ctx, "Single Loan Resync")
	defer span.End()
	span.SetAttributes(attribute.String("sync.entity_id", loanID))

	loan, err := s.datasource.GetLoanByLoanID(ctx, loanID)
	if err != nil {
		return err
	}
	event, err := model.NewSyncEvent(model.SyncTypeLoanUpdate, loan.LoanID, loan.SyncPayload())
	if err != nil {
		return err
	}
	return s.dispatcher.Dispatch(ctx, event)
}
