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
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/deep-rent/jwkstack/internal/events"
	"github.com/deep-rent/jwkstack/internal/jwkset"
	"github.com/deep-rent/jwkstack/internal/util"
)

// markerUnset stands in for "no generation currently scheduled". Real
// expiration times are always positive UnixNano values, so this sentinel
// can never collide with one.
const markerUnset = int64(math.MinInt64)

// RefreshAheadSource extends CachingSource with proactive, background
// refresh: once a cached set is within refreshAheadTime of expiring, a
// request that observes it schedules an asynchronous refresh and still
// returns the (soon to expire) cached value immediately. A successful
// background refresh populates the cache ahead of time, so subsequent
// foreground callers never block on it.
//
// The composition deliberately does not try to "override" CachingSource's
// refresh logic: both the foreground path and the async refresh-ahead task
// call down into the same embedded CachingSource, which in turn invokes
// onRefreshed after every successful fetch, wherever it originated. That
// single hook is where scheduled-mode's next timer gets armed.
type RefreshAheadSource struct {
	*CachingSource

	refreshAheadTime time.Duration
	scheduled        bool
	clock            util.Clock

	// marker holds the UnixNano of the expiration time an async refresh
	// has already been scheduled for, or markerUnset. It gates the fast,
	// lock-free check that avoids acquiring lazyLock on every request.
	marker atomic.Int64

	lazyLock sync.Mutex

	executor  *backgroundExecutor
	scheduler *onceScheduler
}

// RefreshAheadSourceOption configures a RefreshAheadSource.
type RefreshAheadSourceOption func(*RefreshAheadSource)

// WithRefreshAheadListener registers a Listener notified of both the
// caching layer's and the refresh-ahead layer's events.
func WithRefreshAheadListener(l events.Listener) RefreshAheadSourceOption {
	return func(s *RefreshAheadSource) { s.listener = events.OrDiscard(l) }
}

// WithRefreshAheadLabel overrides the source label used in emitted events.
func WithRefreshAheadLabel(label string) RefreshAheadSourceOption {
	return func(s *RefreshAheadSource) {
		if label != "" {
			s.label = label
		}
	}
}

// WithRefreshAheadClock overrides the clock used to timestamp background
// refreshes, which run independently of any caller-supplied "now". Tests
// substitute a synthetic clock to drive scheduling deterministically.
func WithRefreshAheadClock(clock util.Clock) RefreshAheadSourceOption {
	return func(s *RefreshAheadSource) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewRefreshAheadSource wraps inner with a proactively-refreshing cache.
// refreshAheadTime+refreshTimeout must not exceed ttl, or the construction
// is invalid and NewRefreshAheadSource returns an error. When scheduled is
// true, every successful refresh also arms a one-shot background timer
// that fires shortly before the new entry would otherwise expire, in
// addition to the lazy, request-driven trigger.
func NewRefreshAheadSource(
	inner Source,
	ttl, refreshTimeout, refreshAheadTime time.Duration,
	scheduled bool,
	opts ...RefreshAheadSourceOption,
) (*RefreshAheadSource, error) {
	if ttl != jwkset.Forever && refreshAheadTime+refreshTimeout > ttl {
		return nil, fmt.Errorf(
			"refresh-ahead time (%s) plus cache refresh timeout (%s) must not exceed cache time-to-live (%s)",
			refreshAheadTime, refreshTimeout, ttl,
		)
	}

	s := &RefreshAheadSource{
		CachingSource:    NewCachingSource(inner, ttl, refreshTimeout, WithCachingLabel("refresh-ahead")),
		refreshAheadTime: refreshAheadTime,
		scheduled:        scheduled,
		clock:            util.DefaultClock,
		executor:         newBackgroundExecutor(1),
	}
	s.marker.Store(markerUnset)
	if scheduled {
		s.scheduler = newOnceScheduler()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.CachingSource.onRefreshed = s.handleRefreshed
	return s, nil
}

func (s *RefreshAheadSource) Get(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error) {
	set, err := s.CachingSource.Get(ctx, eval, now)
	if err != nil {
		return nil, err
	}

	entry := s.snapshot()
	if entry != nil && entry.Expiration.Sub(now) <= s.refreshAheadTime {
		s.scheduleLazyRefresh(entry)
	}
	return set, nil
}

// scheduleLazyRefresh arms exactly one asynchronous refresh per cache
// generation (identified by its expiration time): the fast path rejects
// every caller but the first to observe a given generation without ever
// taking lazyLock.
func (s *RefreshAheadSource) scheduleLazyRefresh(entry *jwkset.Cached[jwk.Set]) {
	target := entry.Expiration.UnixNano()
	if s.marker.Load() >= target {
		return
	}

	s.lazyLock.Lock()
	defer s.lazyLock.Unlock()
	if s.marker.Load() >= target {
		return
	}
	s.marker.Store(target)
	s.executor.submit(s.refreshAheadTask())
}

// refreshAheadTask performs one forced background refresh and reports its
// outcome. handleRefreshed takes care of arming the next scheduled timer on
// success; on failure the marker is reset so a future request can retry.
func (s *RefreshAheadSource) refreshAheadTask() func(context.Context) {
	return func(ctx context.Context) {
		now := s.clock()
		s.listener(ctx, events.NewScheduledRefreshInitiated(s.label, now))

		set, err := s.loadBlocking(ctx, jwkset.ForceRefresh(), now)
		if err != nil {
			s.marker.Store(markerUnset)
			s.listener(ctx, events.NewUnableToRefreshAheadOfExpiration(s.label, now))
			s.listener(ctx, events.NewScheduledRefreshFailed(s.label, now, err))
			return
		}
		s.listener(ctx, events.NewScheduledRefreshCompleted(s.label, now, set))
	}
}

// handleRefreshed is invoked by the embedded CachingSource after every
// successful refresh, whether triggered by a foreground Get, the lazy
// refresh-ahead path, or the scheduled timer. When scheduled mode is
// disabled this only reports that fact; when enabled it arms the next
// one-shot timer relative to the entry that was just cached.
func (s *RefreshAheadSource) handleRefreshed(ctx context.Context, now time.Time, cached *jwkset.Cached[jwk.Set]) {
	if !s.scheduled {
		s.listener(ctx, events.NewRefreshNotScheduled(s.label, now))
		return
	}

	delay := cached.Expiration.Sub(now) - s.refreshAheadTime - s.refreshTimeout
	if delay < 0 {
		delay = 0
	}
	scheduledFor := now.Add(delay)
	s.scheduler.schedule(delay, func(ctx context.Context) {
		if e := s.snapshot(); e != nil {
			s.scheduleLazyRefresh(e)
		}
	})
	s.listener(ctx, events.NewRefreshScheduled(s.label, now, scheduledFor))
}

// Close releases the scheduler and executor before closing the inner
// source, so no background task observes a closed inner source mid-fetch.
func (s *RefreshAheadSource) Close() error {
	if s.scheduler != nil {
		s.scheduler.close()
	}
	s.executor.close()
	return s.CachingSource.Close()
}

var _ Source = (*RefreshAheadSource)(nil)
