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
	"sync"
	"time"

	"github.com/blnkfinance/portalsync/model"
)

// StatusTracker holds the outbound sync state shared by the change feed, the
// dispatcher and the reconciliation sweep. It is safe for concurrent use.
type StatusTracker struct {
	mu        sync.RWMutex
	connected bool
	lastSync  *time.Time
	count     int64
	now       func() time.Time
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{now: time.Now}
}

// SetConnected records whether the change feed subscription is live.
func (s *StatusTracker) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// RecordSync adds n successful deliveries and stamps lastSync once.
// Non-positive n is ignored.
func (s *StatusTracker) RecordSync(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.count += int64(n)
	s.lastSync = &now
}

// RecordSweep records a completed manual sweep. lastSync is stamped even when
// the sweep found nothing to deliver.
func (s *StatusTracker) RecordSweep(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if n > 0 {
		s.count += int64(n)
	}
	s.lastSync = &now
}

func (s *StatusTracker) Snapshot() model.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := model.SyncStatus{IsConnected: s.connected, SyncCount: s.count}
	if s.lastSync != nil {
		last := *s.lastSync
		status.LastSync = &last
	}
	return status
}
