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
	"embed"
	"errors"
	"time"

	"github.com/blnkfinance/portalsync/config"
	"github.com/blnkfinance/portalsync/database"
	"github.com/blnkfinance/portalsync/internal/notification"
	"github.com/blnkfinance/portalsync/internal/portal"
	redis_db "github.com/blnkfinance/portalsync/internal/redis-db"
	"github.com/blnkfinance/portalsync/model"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("portalsync")

//go:embed sql/*.sql
var SQLFiles embed.FS

// PortalSync wires the sync engine: change feed handling, outbound delivery,
// inbound webhook processing and the reconciliation sweep, all reporting to
// one StatusTracker.
type PortalSync struct {
	datasource database.IDataSource
	status     *StatusTracker
	queue      *Queue
	redis      *redis_db.Redis
	dispatcher *Dispatcher
	changes    *ChangeHandler
	inbound    *Processor
	sweeper    *Sweeper
}

// Dependencies lets callers assemble a PortalSync from their own parts.
type Dependencies struct {
	DataSource database.IDataSource
	Sender     Sender
	Enqueuer   Enqueuer
	Locks      LockFactory
	Notify     func(error)
	Sweep      SweepOptions
}

// NewPortalSync builds the engine from the loaded configuration.
func NewPortalSync(db database.IDataSource) (*PortalSync, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	redisClient, err := redis_db.NewRedisClient(configuration.Redis.Dns)
	if err != nil {
		return nil, err
	}

	queue, err := NewQueue(configuration)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	ps := NewWithDependencies(Dependencies{
		DataSource: db,
		Sender:     portal.NewClient(configuration.Portal),
		Enqueuer:   queue,
		Locks:      RedisLockFactory(redisClient.Client()),
		Notify:     notification.NotifySyncError,
		Sweep:      SweepOptionsFromConfig(configuration.Sweep),
	})
	ps.queue = queue
	ps.redis = redisClient
	return ps, nil
}

func NewWithDependencies(deps Dependencies) *PortalSync {
	status := NewStatusTracker()
	dispatcher := NewDispatcher(deps.Sender, status, deps.Notify)
	return &PortalSync{
		datasource: deps.DataSource,
		status:     status,
		dispatcher: dispatcher,
		changes:    NewChangeHandler(deps.Enqueuer, deps.Notify),
		inbound:    NewProcessor(deps.DataSource),
		sweeper:    NewSweeper(deps.DataSource, dispatcher, status, deps.Locks, deps.Sweep),
	}
}

// Status is the tracker the change feed reports its connection state to.
func (p *PortalSync) Status() *StatusTracker {
	return p.status
}

func (p *PortalSync) SyncStatus() model.SyncStatus {
	return p.status.Snapshot()
}

func (p *PortalSync) ChangeHandler() *ChangeHandler {
	return p.changes
}

// Queue is nil when the engine was assembled without the asynq queue.
func (p *PortalSync) Queue() *Queue {
	return p.queue
}

// ProcessSyncTask is the asynq handler for every sync queue.
func (p *PortalSync) ProcessSyncTask(ctx context.Context, task *asynq.Task) error {
	return p.dispatcher.ProcessSyncTask(ctx, task)
}

// ProcessInbound applies an envelope received from the portal.
func (p *PortalSync) ProcessInbound(ctx context.Context, env model.Envelope) error {
	return p.inbound.Process(ctx, env)
}

// ManualSync runs the reconciliation sweep over the last lookback.
func (p *PortalSync) ManualSync(ctx context.Context, lookback time.Duration) (SweepResult, error) {
	return p.sweeper.ManualSync(ctx, lookback)
}

// SyncLoan re-sends a single loan to the portal.
func (p *PortalSync) SyncLoan(ctx context.Context, loanID string) error {
	return p.sweeper.SyncLoan(ctx, loanID)
}

// FailedEvents lists archived sync events that will not be retried.
func (p *PortalSync) FailedEvents(limit int) ([]model.SyncEvent, error) {
	if p.queue == nil {
		return []model.SyncEvent{}, nil
	}
	return p.queue.ArchivedEvents(limit)
}

func (p *PortalSync) Close() error {
	var err error
	if p.queue != nil {
		err = errors.Join(err, p.queue.Close())
	}
	if p.redis != nil {
		err = errors.Join(err, p.redis.Close())
	}
	return err
}
