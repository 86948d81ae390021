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

package pg_listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blnkfinance/portalsync/model"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ChangeHandler receives every decoded change notification, in commit order.
type ChangeHandler interface {
	HandleChange(ctx context.Context, change model.ChangeEvent) error
}

// ConnectionObserver is told when the subscription goes up or down.
type ConnectionObserver interface {
	SetConnected(connected bool)
}

type ListenerConfig struct {
	PgConnStr    string
	Channel      string
	MinReconnect time.Duration
	MaxReconnect time.Duration
	PingInterval time.Duration
}

// listenerConn is the subset of *pq.Listener the DBListener drives.
type listenerConn interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

type connFactory func(cfg ListenerConfig, callback pq.EventCallbackType) listenerConn

func newPQListener(cfg ListenerConfig, callback pq.EventCallbackType) listenerConn {
	return pq.NewListener(cfg.PgConnStr, cfg.MinReconnect, cfg.MaxReconnect, callback)
}

// DBListener holds one LISTEN subscription on the change channel and feeds
// its notifications to a ChangeHandler.
type DBListener struct {
	config   ListenerConfig
	handler  ChangeHandler
	observer ConnectionObserver
	newConn  connFactory

	mu       sync.Mutex
	conn     listenerConn
	cancel   context.CancelFunc
	done     chan struct{}
	closeErr error
}

func NewDBListener(config ListenerConfig, handler ChangeHandler, observer ConnectionObserver) *DBListener {
	if config.PingInterval <= 0 {
		config.PingInterval = 90 * time.Second
	}
	return &DBListener{
		config:   config,
		handler:  handler,
		observer: observer,
		newConn:  newPQListener,
	}
}

// Start subscribes to the channel and begins delivering notifications until
// ctx is cancelled or Stop is called. Calling Start on a running listener is
// a no-op.
func (d *DBListener) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return nil
	}
	if d.config.Channel == "" {
		return errors.New("listener channel is required")
	}

	conn := d.newConn(d.config, d.onEvent)
	if err := conn.Listen(d.config.Channel); err != nil {
		_ = conn.Close()
		return fmt.Errorf("listen on channel %s: %w", d.config.Channel, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.conn = conn
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.run(loopCtx, conn, d.done)

	logrus.WithField("channel", d.config.Channel).Info("listening for PostgreSQL change notifications")
	return nil
}

// Stop tears the subscription down and waits for the delivery loop to exit.
// Stopping a listener that is not running is a no-op.
func (d *DBListener) Stop() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if done == nil {
		return nil
	}

	cancel()
	<-done

	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.closeErr
	d.closeErr = nil
	return err
}

// teardown releases conn once its delivery loop has exited, whether through
// Stop, a cancelled Start context or a closed notification channel. The
// listener can be started again afterwards.
func (d *DBListener) teardown(conn listenerConn) {
	err := conn.Close()

	d.mu.Lock()
	if d.conn == conn {
		d.conn, d.cancel, d.done = nil, nil, nil
		d.closeErr = err
	}
	d.mu.Unlock()

	d.observer.SetConnected(false)
	logrus.WithField("channel", d.config.Channel).Info("stopped listening for PostgreSQL change notifications")
}

func (d *DBListener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		d.observer.SetConnected(true)
	case pq.ListenerEventReconnected:
		logrus.Warn("change feed reconnected, notifications sent while disconnected were not received")
		d.observer.SetConnected(true)
	case pq.ListenerEventDisconnected:
		logrus.Errorf("change feed disconnected: %v", err)
		d.observer.SetConnected(false)
	case pq.ListenerEventConnectionAttemptFailed:
		logrus.Errorf("change feed connection attempt failed: %v", err)
	}
}

func (d *DBListener) run(ctx context.Context, conn listenerConn, done chan struct{}) {
	defer close(done)
	defer d.teardown(conn)

	notifications := conn.NotificationChannel()
	ticker := time.NewTicker(d.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if n == nil {
				// pq sends nil after re-establishing the connection.
				logrus.Warn("change feed connection was re-established, some changes may have been missed")
				continue
			}
			d.handleNotification(ctx, n)
		case <-ticker.C:
			go func() {
				if err := conn.Ping(); err != nil {
					logrus.Errorf("change feed ping failed: %v", err)
				}
			}()
		}
	}
}

func (d *DBListener) handleNotification(ctx context.Context, notification *pq.Notification) {
	var change model.ChangeEvent
	if err := json.Unmarshal([]byte(notification.Extra), &change); err != nil {
		logrus.Errorf("Error unmarshalling notification payload: %v", err)
		return
	}

	if err := d.handler.HandleChange(ctx, change); err != nil {
		logrus.WithFields(logrus.Fields{
			"table":     change.Table,
			"operation": change.Operation,
		}).Errorf("Error handling notification: %v", err)
	}
}
