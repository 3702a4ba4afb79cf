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

// Package selector converts the internal JWKSetSource contract into the
// application-facing, selector-driven lookup: a Wrapper asks its inner
// source for the current set, applies a caller-supplied matcher, and on an
// empty match re-queries the source with a ReferenceComparison evaluator
// pinned to the set it just observed. This is the mechanism by which a
// request for a newly rotated key-id forces exactly one bounded cache
// refresh, without the application ever having to reason about caching.
package selector

import (
	"context"
	"errors"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/deep-rent/jwkstack/internal/jwkset"
	"github.com/deep-rent/jwkstack/internal/source"
	"github.com/deep-rent/jwkstack/internal/util"
)

// Matcher applies a selection predicate to a JWK set, returning the subset
// of keys it matches.
type Matcher func(set jwk.Set) []jwk.Key

// Wrapper adapts a source.Source into the selector-driven, application
// facing lookup operation.
type Wrapper struct {
	inner source.Source
	clock util.Clock
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithClock overrides the clock a Wrapper reads "now" from. Production
// code uses util.DefaultClock; tests substitute a synthetic one.
func WithClock(clock util.Clock) Option {
	return func(w *Wrapper) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// New wraps inner with the selector-driven lookup protocol.
func New(inner source.Source, opts ...Option) *Wrapper {
	w := &Wrapper{inner: inner, clock: util.DefaultClock}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Select returns the keys in the current set that match. If none match, it
// re-queries the inner source with an evaluator pinned to the set it just
// observed, giving any refresh mechanism in the stack exactly one chance to
// move past that instance before matching again.
//
// A RateLimitReached failure on the first query is surfaced unchanged; on
// the second, miss-driven query it is treated as "no matching key", since a
// rejected re-query is observationally identical to an unknown key-id that
// never rotated in.
func (w *Wrapper) Select(ctx context.Context, match Matcher) ([]jwk.Key, error) {
	now := w.clock()

	set, err := w.inner.Get(ctx, jwkset.NoRefresh(), now)
	if err != nil {
		return nil, err
	}

	if matches := match(set); len(matches) > 0 {
		return matches, nil
	}

	next, err := w.inner.Get(ctx, jwkset.ReferenceComparison(set), now)
	if err != nil {
		if errors.Is(err, source.ErrRateLimitReached) {
			return nil, nil
		}
		return nil, err
	}

	return match(next), nil
}

func (w *Wrapper) Close() error { return w.inner.Close() }
