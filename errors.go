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

package jwkstack

import (
	"errors"
	"fmt"

	"github.com/deep-rent/jwkstack/internal/source"
)

// Unavailable reports a transient failure to obtain a JWK set: an I/O
// error, a non-2xx HTTP response, a parse failure, or a cache-refresh
// timeout. It is recovered locally by the retry and outage layers where
// possible, and surfaced otherwise.
type Unavailable = source.Unavailable

// RateLimitReached reports that a call was rejected because the pipeline's
// rate limiter had no tokens left for the current interval.
type RateLimitReached = source.RateLimitReached

// ErrRateLimitReached is the sentinel instance returned by a rate-limited
// stack. Select treats it as "no matching key" when it results from the
// selector's miss-driven re-query, and surfaces it otherwise.
var ErrRateLimitReached = source.ErrRateLimitReached

// KeySourceException is the generic error kind surfaced to applications
// for any failure that is neither an Unavailable nor a RateLimitReached.
// It exists so Select always fails with one of a small, documented set of
// error kinds, regardless of which decorator in the stack raised the
// underlying cause.
type KeySourceException struct {
	Err error
}

func (e *KeySourceException) Error() string {
	return fmt.Sprintf("key source exception: %v", e.Err)
}

func (e *KeySourceException) Unwrap() error { return e.Err }

// wrap classifies err into one of the documented error kinds, leaving an
// already-classified Unavailable or RateLimitReached untouched and wrapping
// anything else as a KeySourceException.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var unavailable *Unavailable
	if errors.As(err, &unavailable) {
		return err
	}
	if errors.Is(err, ErrRateLimitReached) {
		return err
	}
	var alreadyWrapped *KeySourceException
	if errors.As(err, &alreadyWrapped) {
		return err
	}
	return &KeySourceException{Err: err}
}
