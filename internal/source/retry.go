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
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/deep-rent/jwkstack/internal/events"
	"github.com/deep-rent/jwkstack/internal/jwkset"
)

// RetrySource retries its inner source exactly once when it fails with
// Unavailable. Any other error, and a second Unavailable, is propagated
// unchanged.
type RetrySource struct {
	inner    Source
	listener events.Listener
	label    string
}

// RetrySourceOption configures a RetrySource.
type RetrySourceOption func(*RetrySource)

// WithRetryListener registers a Listener notified of Retrial events.
func WithRetryListener(l events.Listener) RetrySourceOption {
	return func(s *RetrySource) { s.listener = events.OrDiscard(l) }
}

// WithRetryLabel overrides the source label used in emitted events.
func WithRetryLabel(label string) RetrySourceOption {
	return func(s *RetrySource) {
		if label != "" {
			s.label = label
		}
	}
}

// NewRetrySource wraps inner with a single-retry decorator.
func NewRetrySource(inner Source, opts ...RetrySourceOption) *RetrySource {
	s := &RetrySource{inner: inner, listener: events.Discard, label: "retry"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RetrySource) Get(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error) {
	set, err := s.inner.Get(ctx, eval, now)
	if err == nil {
		return set, nil
	}

	var unavailable *Unavailable
	if !errors.As(err, &unavailable) {
		return nil, err
	}

	s.listener(ctx, events.NewRetrial(s.label, now, err))

	return s.inner.Get(ctx, eval, now)
}

func (s *RetrySource) Close() error { return s.inner.Close() }

var _ Source = (*RetrySource)(nil)
