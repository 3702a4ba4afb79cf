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

import "fmt"

// Unavailable wraps a transient failure to obtain a JWK set: an I/O error,
// a non-2xx HTTP response, or a parse failure from the leaf source, or a
// cache-refresh timeout from CachingSource. RetrySource and OutageSource
// recover from it locally where they can; it is surfaced otherwise.
type Unavailable struct {
	Message string
	Err     error
}

func (e *Unavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jwk set unavailable: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("jwk set unavailable: %s", e.Message)
}

func (e *Unavailable) Unwrap() error { return e.Err }

// NewUnavailable constructs an Unavailable error.
func NewUnavailable(message string, cause error) *Unavailable {
	return &Unavailable{Message: message, Err: cause}
}

// RateLimitReached is returned by RateLimiter when a call is rejected
// because both tokens for the current interval have already been spent. It
// is never retried by the pipeline itself; SelectorWrapper treats it as "no
// matching key found" only when it results from the selector's second,
// miss-driven call, and surfaces it otherwise.
type RateLimitReached struct{}

func (*RateLimitReached) Error() string { return "rate limit reached" }

// ErrRateLimitReached is the sentinel instance returned by RateLimiter.
var ErrRateLimitReached = &RateLimitReached{}
