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
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deep-rent/jwkstack/internal/events"
	"github.com/deep-rent/jwkstack/internal/jwkset"
)

func TestRateLimiter_AllowsTwoCallsPerInterval(t *testing.T) {
	inner := newCountingSource(jwk.NewSet())
	rl := NewRateLimiter(inner, time.Minute)
	now := time.Unix(0, 0)

	_, err := rl.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)

	_, err = rl.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)

	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestRateLimiter_RejectsThirdCallWithinInterval(t *testing.T) {
	inner := newCountingSource(jwk.NewSet())
	rl := NewRateLimiter(inner, time.Minute)
	now := time.Unix(0, 0)

	_, err := rl.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)
	_, err = rl.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)

	_, err = rl.Get(context.Background(), jwkset.NoRefresh(), now)
	assert.ErrorIs(t, err, ErrRateLimitReached)
	assert.EqualValues(t, 2, inner.calls.Load(), "a rejected call must not reach the inner source")
}

func TestRateLimiter_NewWindowAfterMinIntervalElapses(t *testing.T) {
	inner := newCountingSource(jwk.NewSet())
	rl := NewRateLimiter(inner, time.Minute)
	now := time.Unix(0, 0)

	_, err := rl.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)
	_, err = rl.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)
	_, err = rl.Get(context.Background(), jwkset.NoRefresh(), now)
	require.ErrorIs(t, err, ErrRateLimitReached)

	later := now.Add(time.Minute)
	_, err = rl.Get(context.Background(), jwkset.NoRefresh(), later)
	require.NoError(t, err, "a new interval must reopen two fresh tokens")
	_, err = rl.Get(context.Background(), jwkset.NoRefresh(), later)
	require.NoError(t, err)

	assert.EqualValues(t, 4, inner.calls.Load())
}

func TestRateLimiter_RejectionEmitsRateLimitedEvent(t *testing.T) {
	inner := newCountingSource(jwk.NewSet())
	var sources []string
	rl := NewRateLimiter(inner, time.Minute,
		WithRateLimitListener(func(_ context.Context, e events.Event) { sources = append(sources, e.Source()) }),
		WithRateLimitLabel("jwks"),
	)
	now := time.Unix(0, 0)

	_, _ = rl.Get(context.Background(), jwkset.NoRefresh(), now)
	_, _ = rl.Get(context.Background(), jwkset.NoRefresh(), now)
	_, err := rl.Get(context.Background(), jwkset.NoRefresh(), now)

	assert.ErrorIs(t, err, ErrRateLimitReached)
	assert.Equal(t, []string{"jwks"}, sources)
}

func TestRateLimiter_Close_DelegatesToInner(t *testing.T) {
	inner := newCountingSource(jwk.NewSet())
	rl := NewRateLimiter(inner, time.Minute)
	assert.NoError(t, rl.Close())
}
