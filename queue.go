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
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/blnkfinance/portalsync/config"
	redis_db "github.com/blnkfinance/portalsync/internal/redis-db"
	"github.com/blnkfinance/portalsync/model"
	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Enqueuer hands a sync event to the outbound worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, event model.SyncEvent) error
}

// Queue routes sync events onto a fixed set of asynq queues. Every event for
// one entity lands on the same queue, so with a single worker per queue the
// portal sees that entity's changes in commit order.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector

	prefix   string
	count    int
	maxRetry int
}

// RedisConnOpt converts the configured Redis address into asynq options.
func RedisConnOpt(dns string) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(dns)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Username:  redisOption.Username,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

func NewQueue(conf *config.Configuration) (*Queue, error) {
	queueOptions, err := RedisConnOpt(conf.Redis.Dns)
	if err != nil {
		return nil, err
	}
	return newQueue(asynq.NewClient(queueOptions), asynq.NewInspector(queueOptions), conf.Queue), nil
}

func newQueue(client *asynq.Client, inspector *asynq.Inspector, cfg config.QueueConfig) *Queue {
	count := cfg.NumberOfQueues
	if count <= 0 {
		count = config.DEFAULT_NUMBER_OF_QUEUES
	}
	prefix := cfg.SyncQueue
	if prefix == "" {
		prefix = config.DEFAULT_SYNC_QUEUE
	}
	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = config.DEFAULT_MAX_RETRY
	}
	return &Queue{Client: client, Inspector: inspector, prefix: prefix, count: count, maxRetry: maxRetry}
}

// Enqueue serializes event and schedules it on the queue owning its entity.
// The event id doubles as the task id, so enqueuing the same event twice is
// rejected by Redis.
func (q *Queue) Enqueue(ctx context.Context, event model.SyncEvent) error {
	ctx, span := tracer.Start(ctx, "Adding Sync Event To Redis Queue")
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	queueName := q.QueueName(event)
	task := asynq.NewTask(queueName, payload,
		asynq.TaskID(event.ID),
		asynq.Queue(queueName),
		asynq.MaxRetry(q.maxRetry),
	)

	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			logrus.Warnf("sync event %s already queued", event.ID)
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("enqueue sync event %s: %w", event.ID, err)
	}

	logrus.WithFields(logrus.Fields{
		"event_id":  event.ID,
		"type":      event.Type,
		"entity_id": event.EntityID,
		"queue":     info.Queue,
	}).Info(" [*] Successfully enqueued sync event")
	return nil
}

// QueueName returns the queue that owns event's entity.
func (q *Queue) QueueName(event model.SyncEvent) string {
	index := int(hashEntityKey(entityKey(event)) % uint32(q.count))
	return fmt.Sprintf("%s_%d", q.prefix, index+1)
}

// QueueNames lists every sync queue, for the worker server and the inspector.
func (q *Queue) QueueNames() []string {
	names := make([]string, 0, q.count)
	for i := 1; i <= q.count; i++ {
		names = append(names, fmt.Sprintf("%s_%d", q.prefix, i))
	}
	return names
}

// ArchivedEvents returns the events that exhausted their retries or were
// rejected by the portal, newest first per queue.
func (q *Queue) ArchivedEvents(limit int) ([]model.SyncEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	events := []model.SyncEvent{}
	for _, name := range q.QueueNames() {
		tasks, err := q.Inspector.ListArchivedTasks(name, asynq.PageSize(limit))
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return nil, err
		}
		for _, info := range tasks {
			var event model.SyncEvent
			if err := json.Unmarshal(info.Payload, &event); err != nil {
				logrus.Errorf("archived task %s has an unreadable payload: %v", info.ID, err)
				continue
			}
			events = append(events, event)
		}
	}
	return events, nil
}

func (q *Queue) Close() error {
	return errors.Join(q.Client.Close(), q.Inspector.Close())
}

// entityKey scopes the entity id by kind so a loan and a visit sharing an id
// are not serialized against each other.
func entityKey(event model.SyncEvent) string {
	return string(event.Type) + ":" + event.EntityID
}

func hashEntityKey(key string) uint32 {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(key))
	return hasher.Sum32()
}

// RetryDelay is the asynq RetryDelayFunc for sync tasks: exponential from 5s,
// doubling, capped at 10 minutes, with jitter.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.Multiplier = 2
	b.MaxInterval = 10 * time.Minute
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 0; i < n; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
