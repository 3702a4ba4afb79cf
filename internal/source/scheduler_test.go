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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOnceScheduler_FiresAfterDelay(t *testing.T) {
	s := newOnceScheduler()
	defer s.close()

	fired := make(chan struct{})
	s.schedule(10*time.Millisecond, func(ctx context.Context) { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("job never fired")
	}
}

func TestOnceScheduler_RescheduleCancelsPrevious(t *testing.T) {
	s := newOnceScheduler()
	defer s.close()

	var firstRan atomic.Bool
	s.schedule(5*time.Millisecond, func(ctx context.Context) { firstRan.Store(true) })

	secondRan := make(chan struct{})
	s.schedule(15*time.Millisecond, func(ctx context.Context) { close(secondRan) })

	select {
	case <-secondRan:
	case <-time.After(time.Second):
		t.Fatal("second job never fired")
	}
	assert.False(t, firstRan.Load(), "rescheduling must cancel a not-yet-fired prior job")
}

func TestOnceScheduler_CloseCancelsPending(t *testing.T) {
	s := newOnceScheduler()

	ran := make(chan struct{})
	s.schedule(50*time.Millisecond, func(ctx context.Context) { close(ran) })
	s.close()

	select {
	case <-ran:
		t.Fatal("close must cancel a pending, not-yet-fired job")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOnceScheduler_ScheduleAfterCloseIsNoOp(t *testing.T) {
	s := newOnceScheduler()
	s.close()

	ran := make(chan struct{})
	s.schedule(0, func(ctx context.Context) { close(ran) })

	select {
	case <-ran:
		t.Fatal("a job scheduled after close must not run")
	case <-time.After(20 * time.Millisecond):
	}
}
