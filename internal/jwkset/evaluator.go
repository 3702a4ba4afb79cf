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

package jwkset

import "github.com/lestrrat-go/jwx/v3/jwk"

// RefreshEvaluator is the coordination token threaded through every call in
// the decorator stack. It lets an inner decorator (typically the caching
// layer) decide whether a request requires a fresh fetch from upstream, or
// whether the currently cached set already satisfies the caller.
//
// The zero value is not valid; construct one with NoRefresh, ForceRefresh,
// or ReferenceComparison.
type RefreshEvaluator interface {
	// RequiresRefresh reports whether the given (currently cached) set fails
	// to satisfy this evaluator, meaning the caller should trigger a refresh.
	RequiresRefresh(set jwk.Set) bool
}

type noRefresh struct{}

func (noRefresh) RequiresRefresh(jwk.Set) bool { return false }

// NoRefresh is the default evaluator: it never demands a refresh, and is
// satisfied by whatever the cache currently holds (fetching once if empty).
func NoRefresh() RefreshEvaluator { return noRefresh{} }

type forceRefresh struct{}

func (forceRefresh) RequiresRefresh(jwk.Set) bool { return true }

// ForceRefresh unconditionally demands a refresh, regardless of what is
// cached. RefreshAheadSource uses it for its background refresh-ahead
// fetches, where the cached set is known to be close to expiry.
func ForceRefresh() RefreshEvaluator { return forceRefresh{} }

// referenceComparison demands a refresh unless the cache has moved on from
// the pinned set. It intentionally compares by reference (Go interface
// identity), not by content: two fetches that happen to return equal JWKs
// during a rotation window must still be distinguishable, or a selector
// miss would never trigger a real refresh.
type referenceComparison struct {
	pinned jwk.Set
}

func (r referenceComparison) RequiresRefresh(set jwk.Set) bool {
	return set == r.pinned
}

// ReferenceComparison demands a refresh only if the candidate set is the
// very same instance as pinned. This is the mechanism by which a caller
// that has just observed a stale or non-matching set (e.g. a selector miss)
// can ask the cache to move past exactly that instance, without forcing a
// refresh if another goroutine has already refreshed past it.
func ReferenceComparison(pinned jwk.Set) RefreshEvaluator {
	return referenceComparison{pinned: pinned}
}
