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
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/deep-rent/jwkstack/internal/events"
	"github.com/deep-rent/jwkstack/internal/jwkset"
)

// HealthReporter wraps a source purely to observe it: on every call it
// emits a HealthReport reflecting whether the call succeeded, then returns
// the call's own result unchanged. It does no polling of its own; health is
// observed per-call only.
type HealthReporter struct {
	inner    Source
	listener events.Listener
	label    string
}

// HealthReporterOption configures a HealthReporter.
type HealthReporterOption func(*HealthReporter)

// WithHealthListener registers a Listener notified of HealthReport events.
func WithHealthListener(l events.Listener) HealthReporterOption {
	return func(s *HealthReporter) { s.listener = events.OrDiscard(l) }
}

// WithHealthLabel overrides the source label used in emitted events.
func WithHealthLabel(label string) HealthReporterOption {
	return func(s *HealthReporter) {
		if label != "" {
			s.label = label
		}
	}
}

// NewHealthReporter wraps inner with per-call health reporting.
func NewHealthReporter(inner Source, opts ...HealthReporterOption) *HealthReporter {
	s := &HealthReporter{inner: inner, listener: events.Discard, label: "health"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HealthReporter) Get(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error) {
	set, err := s.inner.Get(ctx, eval, now)
	if err != nil {
		s.listener(ctx, events.NewHealthReport(s.label, now, events.Unhealthy, err))
		return nil, err
	}
	s.listener(ctx, events.NewHealthReport(s.label, now, events.Healthy, nil))
	return set, nil
}

func (s *HealthReporter) Close() error { return s.inner.Close() }

var _ Source = (*HealthReporter)(nil)
