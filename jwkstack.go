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

// Package jwkstack resolves signing keys from a remote JWKS endpoint
// through a composable decorator stack: caching with single-flight
// refresh, proactive refresh-ahead, rate limiting, outage tolerance, retry,
// health reporting, and a key-matching-driven refresh protocol so that an
// application never has to reason about cache staleness itself.
//
// Construct a stack with a Builder and call Select with a Selector that
// picks the key(s) an incoming token claims to have been signed with.
package jwkstack

import (
	"context"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Selector picks the subset of a JWK set an application is interested in,
// typically every key matching an incoming token's key-id. It must not
// retain set beyond the call.
type Selector func(set jwk.Set) []jwk.Key

// ByKeyID returns a Selector matching the single key whose "kid" equals
// kid, if present.
func ByKeyID(kid string) Selector {
	return func(set jwk.Set) []jwk.Key {
		if key, ok := set.LookupKeyID(kid); ok {
			return []jwk.Key{key}
		}
		return nil
	}
}

// JWKSource is the application-facing entry point into the pipeline: it
// resolves the keys matching a Selector, transparently triggering whatever
// cache refreshes are needed, and releases every resource owned by the
// stack on Close.
type JWKSource interface {
	Select(ctx context.Context, selector Selector) ([]jwk.Key, error)
	Close() error
}
