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
	"sync"
	"time"

	"github.com/blnkfinance/portalsync/model"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []model.SyncEvent
	failOn map[string]error
	err    error
}

func (f *fakeSender) Send(_ context.Context, event model.SyncEvent) (*model.PortalResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[event.EntityID]; ok {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, event)
	return &model.PortalResponse{Success: true, Message: "Sync completed successfully"}, nil
}

func (f *fakeSender) events() []model.SyncEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SyncEvent(nil), f.sent...)
}

type fakeEnqueuer struct {
	mu     sync.Mutex
	events []model.SyncEvent
	err    error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, event model.SyncEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type notifications struct {
	mu   sync.Mutex
	errs []error
}

func (n *notifications) notify(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *notifications) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

type fakeLock struct {
	mu       sync.Mutex
	held     bool
	lockErr  error
	unlocked int
}

func (f *fakeLock) Lock(context.Context, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return f.lockErr
	}
	f.held = true
	return nil
}

func (f *fakeLock) Unlock(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	f.unlocked++
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
