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
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/deep-rent/jwkstack/internal/events"
	"github.com/deep-rent/jwkstack/internal/jwkset"
)

// CachingSource is the central component of the pipeline: a time-to-live
// cache over an inner source, with a blocking single-flight refresh. Only
// one goroutine at a time ever calls the inner source to repopulate the
// cache; every other concurrent caller either reuses the result or waits
// for it, bounded by cacheRefreshTimeout.
type CachingSource struct {
	inner Source
	ttl   time.Duration

	// refreshTimeout bounds how long a waiting caller blocks for a
	// refresh already in flight before giving up. It does not bound the
	// goroutine that actually performs the fetch.
	refreshTimeout time.Duration

	mu         sync.Mutex
	cached     *jwkset.Cached[jwk.Set]
	refreshing bool
	// refreshed is closed, then replaced, every time the goroutine holding
	// refreshing finishes its fetch (successfully or not), waking every
	// goroutine currently waiting on it.
	refreshed chan struct{}

	// waiters estimates how many goroutines are currently blocked on a
	// refresh, for the QueueLength fields of emitted events.
	waiters atomic.Int32

	listener events.Listener
	label    string

	// onRefreshed, when set, is invoked synchronously after every successful
	// refresh, whether triggered by a foreground Get or an async background
	// fetch. RefreshAheadSource uses it to arm its scheduled timer at the
	// one place every refresh funnels through, regardless of origin.
	onRefreshed func(ctx context.Context, now time.Time, cached *jwkset.Cached[jwk.Set])
}

// CachingSourceOption configures a CachingSource.
type CachingSourceOption func(*CachingSource)

// WithCachingListener registers a Listener notified of the caching layer's
// refresh-lifecycle events.
func WithCachingListener(l events.Listener) CachingSourceOption {
	return func(s *CachingSource) { s.listener = events.OrDiscard(l) }
}

// WithCachingLabel overrides the source label used in emitted events.
func WithCachingLabel(label string) CachingSourceOption {
	return func(s *CachingSource) {
		if label != "" {
			s.label = label
		}
	}
}

// NewCachingSource wraps inner with a time-to-live cache. A refresh that
// finds the cache already being repopulated by another goroutine waits up
// to refreshTimeout before failing with Unavailable.
func NewCachingSource(inner Source, ttl, refreshTimeout time.Duration, opts ...CachingSourceOption) *CachingSource {
	s := &CachingSource{
		inner:          inner,
		ttl:            ttl,
		refreshTimeout: refreshTimeout,
		refreshed:      make(chan struct{}),
		listener:       events.Discard,
		label:          "caching",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CachingSource) Get(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error) {
	entry := s.snapshot()

	switch {
	case entry == nil:
		return s.loadBlocking(ctx, jwkset.NoRefresh(), now)
	case eval.RequiresRefresh(entry.Value):
		return s.loadBlocking(ctx, eval, now)
	case entry.IsExpired(now):
		return s.loadBlocking(ctx, jwkset.ReferenceComparison(entry.Value), now)
	default:
		return entry.Value, nil
	}
}

func (s *CachingSource) snapshot() *jwkset.Cached[jwk.Set] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached
}

// loadBlocking implements the single-flight refresh with a real try-lock:
// the first goroutine to find no refresh in progress becomes the fetcher
// for eval and blocks on the inner source without a timeout. Every other
// concurrent caller waits on refreshed, bounded by refreshTimeout, then
// re-checks its own evaluator against whatever the fetcher left behind.
// A result is only ever accepted if it satisfies the evaluator of the
// goroutine accepting it -- never a different evaluator picked by arrival
// order -- so a ForceRefresh caller can never be handed a stale value that
// only a weaker ReferenceComparison would have tolerated.
func (s *CachingSource) loadBlocking(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error) {
	for {
		s.mu.Lock()
		if !s.refreshing {
			s.refreshing = true
			s.mu.Unlock()
			return s.fetch(ctx, eval, now)
		}
		wake := s.refreshed
		s.mu.Unlock()

		queued := s.waiters.Add(1)
		s.listener(ctx, events.NewWaitingForRefresh(s.label, now, int(queued)))

		timer := time.NewTimer(s.refreshTimeout)
		select {
		case <-wake:
			timer.Stop()
			s.waiters.Add(-1)
		case <-timer.C:
			s.waiters.Add(-1)
			s.listener(ctx, events.NewRefreshTimedOut(s.label, now, int(s.waiters.Load())))
			return nil, NewUnavailable("timeout while waiting for cache refresh", nil)
		case <-ctx.Done():
			timer.Stop()
			s.waiters.Add(-1)
			return nil, ctx.Err()
		}

		entry := s.snapshot()
		if entry != nil && !eval.RequiresRefresh(entry.Value) {
			return entry.Value, nil
		}
		// The fetch that just finished was driven by someone else's
		// evaluator and didn't satisfy this one (or it failed outright):
		// loop around and try to become the fetcher for our own.
	}
}

// fetch is run by the single goroutine that won the try-lock in
// loadBlocking. It always performs the inner call: the caller already
// determined, under its own evaluator, that a refresh is required.
func (s *CachingSource) fetch(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error) {
	queueLength := int(s.waiters.Load())
	s.listener(ctx, events.NewRefreshInitiated(s.label, now, queueLength))

	set, err := s.inner.Get(ctx, eval, now)

	// Store the new entry in the same critical section that releases the
	// try-lock, so every waiter woken below already sees it.
	var cached *jwkset.Cached[jwk.Set]
	s.mu.Lock()
	if err == nil {
		cached = jwkset.NewCached(set, now, s.ttl)
		s.cached = cached
	}
	s.refreshing = false
	wake := s.refreshed
	s.refreshed = make(chan struct{})
	s.mu.Unlock()
	close(wake)

	if err != nil {
		s.listener(ctx, events.NewUnableToRefresh(s.label, now, err))
		return nil, err
	}

	s.listener(ctx, events.NewRefreshCompleted(s.label, now, set, queueLength))
	if s.onRefreshed != nil {
		s.onRefreshed(ctx, now, cached)
	}
	return set, nil
}

func (s *CachingSource) Close() error { return s.inner.Close() }

var _ Source = (*CachingSource)(nil)
