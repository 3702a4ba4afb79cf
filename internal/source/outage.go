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
	"errors"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/deep-rent/jwkstack/internal/events"
	"github.com/deep-rent/jwkstack/internal/jwkset"
)

// OutageSource serves the last-known-good JWK set when its inner source
// fails, for as long as that set remains within outageTTL of its last
// successful fetch. It exists to mask short upstream outages from the
// application.
type OutageSource struct {
	inner     Source
	outageTTL time.Duration

	mu     sync.Mutex
	cached *jwkset.Cached[jwk.Set]

	listener events.Listener
	label    string
}

// OutageSourceOption configures an OutageSource.
type OutageSourceOption func(*OutageSource)

// WithOutageListener registers a Listener notified of Outage events.
func WithOutageListener(l events.Listener) OutageSourceOption {
	return func(s *OutageSource) { s.listener = events.OrDiscard(l) }
}

// WithOutageLabel overrides the source label used in emitted events.
func WithOutageLabel(label string) OutageSourceOption {
	return func(s *OutageSource) {
		if label != "" {
			s.label = label
		}
	}
}

// NewOutageSource wraps inner with an outage-tolerant cache that keeps
// serving the last successful set for up to outageTTL after it was
// fetched, once the inner source starts failing.
func NewOutageSource(inner Source, outageTTL time.Duration, opts ...OutageSourceOption) *OutageSource {
	s := &OutageSource{
		inner:     inner,
		outageTTL: outageTTL,
		listener:  events.Discard,
		label:     "outage",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OutageSource) Get(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error) {
	set, err := s.inner.Get(ctx, eval, now)
	if err == nil {
		s.mu.Lock()
		s.cached = jwkset.NewCached(set, now, s.outageTTL)
		s.mu.Unlock()
		return set, nil
	}

	var unavailable *Unavailable
	if !errors.As(err, &unavailable) {
		return nil, err
	}

	s.mu.Lock()
	cached := s.cached
	s.mu.Unlock()

	if cached == nil || !cached.IsValid(now) {
		return nil, err
	}

	// Clone so an upper decorator's ReferenceComparison evaluator can still
	// observe that this is "the same content but not the pinned instance"
	// and decide to retry a real refresh rather than settling for stale
	// content forever.
	clone, cloneErr := cached.Value.Clone()
	if cloneErr != nil {
		return nil, err
	}

	// The caller may still demand a refresh even of the clone, e.g. via
	// ForceRefresh. In that case the outage cache cannot satisfy the
	// request, so the original failure is surfaced.
	if eval.RequiresRefresh(clone) {
		return nil, err
	}

	remaining := cached.Expiration.Sub(now)
	s.listener(ctx, events.NewOutage(s.label, now, err, remaining))

	return clone, nil
}

func (s *OutageSource) Close() error { return s.inner.Close() }

var _ Source = (*OutageSource)(nil)
