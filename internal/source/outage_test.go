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
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deep-rent/jwkstack/internal/jwkset"
)

// scriptedSource returns a scripted sequence of (set, err) pairs, one per
// call, repeating the last entry once exhausted.
type scriptedSource struct {
	sets  []jwk.Set
	errs  []error
	calls int
}

func (s *scriptedSource) Get(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error) {
	idx := s.calls
	if idx >= len(s.sets) {
		idx = len(s.sets) - 1
	}
	s.calls++
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	return s.sets[idx], err
}

func (s *scriptedSource) Close() error { return nil }

func newKeyFor(t *testing.T, kid string) jwk.Key {
	t.Helper()
	key, err := jwk.Import([]byte("this-is-a-32-byte-test-secret!!"))
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))
	return key
}

func setFor(t *testing.T, kid string) jwk.Set {
	t.Helper()
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(newKeyFor(t, kid)))
	return set
}

func TestOutageSource_ServesStaleSetWithinTTLAfterFailure(t *testing.T) {
	good := setFor(t, "a")
	inner := &scriptedSource{
		sets: []jwk.Set{good, jwk.NewSet()},
		errs: []error{nil, NewUnavailable("upstream down", nil)},
	}
	os := NewOutageSource(inner, time.Minute)
	now := time.Unix(0, 0)

	set, err := os.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)
	assert.Same(t, good, set)

	clone, err := os.Get(context.Background(), jwkset.NoRefresh(), now.Add(5*time.Second))
	require.NoError(t, err, "a failure within outageTTL of the last success must be masked")
	assert.NotSame(t, good, clone, "the outage value must be a clone, not the original reference")

	gotA, _ := clone.LookupKeyID("a")
	wantA, _ := good.LookupKeyID("a")
	wantKID, _ := wantA.KeyID()
	gotKID, _ := gotA.KeyID()
	assert.Equal(t, wantKID, gotKID)
}

func TestOutageSource_StopsServingStaleSetAfterTTLExpires(t *testing.T) {
	good := setFor(t, "a")
	failure := NewUnavailable("upstream down", nil)
	inner := &scriptedSource{
		sets: []jwk.Set{good, jwk.NewSet()},
		errs: []error{nil, failure},
	}
	os := NewOutageSource(inner, time.Minute)
	now := time.Unix(0, 0)

	_, err := os.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)

	_, err = os.Get(context.Background(), jwkset.NoRefresh(), now.Add(2*time.Minute))
	assert.ErrorIs(t, err, failure, "once the outage cache itself has expired the original error must surface")
}

func TestOutageSource_ForceRefreshRejectsStaleClone(t *testing.T) {
	good := setFor(t, "a")
	failure := NewUnavailable("upstream down", nil)
	inner := &scriptedSource{
		sets: []jwk.Set{good, jwk.NewSet()},
		errs: []error{nil, failure},
	}
	os := NewOutageSource(inner, time.Minute)
	now := time.Unix(0, 0)

	_, err := os.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)

	_, err = os.Get(context.Background(), jwkset.ForceRefresh(), now.Add(5*time.Second))
	assert.ErrorIs(t, err, failure, "ForceRefresh must never accept a stale outage clone, even within outageTTL")
}

func TestOutageSource_ReferenceComparisonAcceptsStaleClone(t *testing.T) {
	good := setFor(t, "a")
	failure := NewUnavailable("upstream down", nil)
	inner := &scriptedSource{
		sets: []jwk.Set{good, jwk.NewSet()},
		errs: []error{nil, failure},
	}
	os := NewOutageSource(inner, time.Minute)
	now := time.Unix(0, 0)

	_, err := os.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)

	otherPinned := jwk.NewSet()
	set, err := os.Get(context.Background(), jwkset.ReferenceComparison(otherPinned), now.Add(5*time.Second))
	require.NoError(t, err)
	assert.NotNil(t, set)
}

func TestOutageSource_NonUnavailableErrorPassesThroughUnchanged(t *testing.T) {
	good := setFor(t, "a")
	boom := errors.New("boom")
	inner := &scriptedSource{
		sets: []jwk.Set{good, jwk.NewSet()},
		errs: []error{nil, boom},
	}
	os := NewOutageSource(inner, time.Minute)
	now := time.Unix(0, 0)

	_, err := os.Get(context.Background(), jwkset.NoRefresh(), now)
	require.NoError(t, err)

	_, err = os.Get(context.Background(), jwkset.NoRefresh(), now.Add(5*time.Second))
	assert.ErrorIs(t, err, boom, "a non-Unavailable error is never masked by the outage cache")
}

func TestOutageSource_NoPriorSuccessSurfacesFailureImmediately(t *testing.T) {
	failure := NewUnavailable("upstream down", nil)
	inner := &scriptedSource{sets: []jwk.Set{jwk.NewSet()}, errs: []error{failure}}
	os := NewOutageSource(inner, time.Minute)

	_, err := os.Get(context.Background(), jwkset.NoRefresh(), time.Unix(0, 0))
	assert.ErrorIs(t, err, failure, "with nothing cached yet, there is no outage value to fall back on")
}

func TestOutageSource_Close_DelegatesToInner(t *testing.T) {
	inner := &scriptedSource{sets: []jwk.Set{jwk.NewSet()}}
	os := NewOutageSource(inner, time.Minute)
	assert.NoError(t, os.Close())
}
