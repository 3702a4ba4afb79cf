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

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/deep-rent/jwkstack/internal/events"
	"github.com/deep-rent/jwkstack/internal/jwkset"
)

// RateLimiter protects the upstream endpoint from request storms. It fills
// two tokens at the start of every minInterval window: the time-based cache
// spends at most one of them per interval under normal operation, leaving a
// second for a concurrent refresh-ahead task or a selector-miss re-query. A
// third call within the same window is rejected with ErrRateLimitReached,
// which distinguishes pathological behavior (e.g. a stream of unknown
// key-ids) from an outage.
type RateLimiter struct {
	inner       Source
	minInterval time.Duration

	mu              sync.Mutex
	nextOpeningTime time.Time
	counter         int

	listener events.Listener
	label    string
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimitListener registers a Listener notified of RateLimited events.
func WithRateLimitListener(l events.Listener) RateLimiterOption {
	return func(s *RateLimiter) { s.listener = events.OrDiscard(l) }
}

// WithRateLimitLabel overrides the source label used in emitted events.
func WithRateLimitLabel(label string) RateLimiterOption {
	return func(s *RateLimiter) {
		if label != "" {
			s.label = label
		}
	}
}

// NewRateLimiter wraps inner with a token-bucket rate limiter that allows
// at most two calls per minInterval.
func NewRateLimiter(inner Source, minInterval time.Duration, opts ...RateLimiterOption) *RateLimiter {
	s := &RateLimiter{
		inner:       inner,
		minInterval: minInterval,
		listener:    events.Discard,
		label:       "rate-limiter",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RateLimiter) Get(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error) {
	if !s.allow(now) {
		s.listener(ctx, events.NewRateLimited(s.label, now))
		return nil, ErrRateLimitReached
	}
	return s.inner.Get(ctx, eval, now)
}

// allow consumes a token if one is available, opening a fresh window of two
// tokens if minInterval has elapsed since the last one was opened.
func (s *RateLimiter) allow(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.Before(s.nextOpeningTime) {
		s.nextOpeningTime = now.Add(s.minInterval)
		s.counter = 1 // one token consumed now, one left in this window
		return true
	}
	if s.counter > 0 {
		s.counter--
		return true
	}
	return false
}

func (s *RateLimiter) Close() error { return s.inner.Close() }

var _ Source = (*RateLimiter)(nil)
