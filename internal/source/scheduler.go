// Copyright (c) 2025-present deep.rent GmbH (https://www.deep.rent)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package source

import (
	"context"
	"sync"
	"time"
)

// onceScheduler arms at most one pending timer at a time: a single
// background worker, not a pool. RefreshAheadSource uses it to fire a
// scheduled refresh shortly before a cached set would otherwise expire.
// Scheduling again before a pending timer fires cancels it, so missed
// schedules under load are simply dropped -- the lazy, request-driven path
// in RefreshAheadSource picks up the slack.
type onceScheduler struct {
	mu     sync.Mutex
	timer  *time.Timer
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

func newOnceScheduler() *onceScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &onceScheduler{ctx: ctx, cancel: cancel}
}

// schedule arms job to run after delay, replacing any job armed by a
// previous call that has not yet fired.
func (s *onceScheduler) schedule(delay time.Duration, job func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done() // cancelled before it fired; release its accounted slot
	}

	ctx := s.ctx
	s.wg.Add(1)
	s.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	})
}

// close cancels a pending, not-yet-fired timer and waits for a job already
// running to finish.
func (s *onceScheduler) close() {
	s.mu.Lock()
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}
