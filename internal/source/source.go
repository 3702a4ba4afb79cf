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

// Package source implements the JWK set resolution pipeline: a stack of
// decorators standing between an application and a remote JWKS endpoint.
// Each decorator implements Source and wraps another Source, adding one
// concern (retry, outage tolerance, health reporting, rate limiting,
// caching, or refresh-ahead caching). The stack is assembled by the root
// jwkstack package's Builder (builder.go) into the canonical order below.
//
//	application -> SelectorWrapper (internal/selector)
//	            -> RefreshAheadSource | CachingSource
//	            -> RateLimiter
//	            -> HealthReporter
//	            -> OutageSource
//	            -> RetrySource
//	            -> URLSource -> HTTP
package source

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/deep-rent/jwkstack/internal/jwkset"
)

// Source is the contract every decorator in the pipeline implements. Get
// returns the JWK set that satisfies eval as of now; now is supplied by the
// caller (not read from the system clock) so the caching layers can be
// driven deterministically in tests.
//
// Close releases any resources the source owns (executors, schedulers,
// cached state). Calls made after Close returns are undefined.
type Source interface {
	Get(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error)
	Close() error
}

// SourceFunc adapts a function to the Source interface for sources that own
// no closeable resources.
type SourceFunc func(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error)

func (f SourceFunc) Get(ctx context.Context, eval jwkset.RefreshEvaluator, now time.Time) (jwk.Set, error) {
	return f(ctx, eval, now)
}

func (SourceFunc) Close() error { return nil }
