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
	"context"
	"errors"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// FailoverSource wraps a primary JWKSource and a secondary. On any error
// from the primary, it retries the same selector against the secondary;
// the secondary's result or error becomes the call's result. Closing
// closes both, regardless of whether either close fails.
type FailoverSource struct {
	primary, secondary JWKSource
}

// NewFailoverSource wraps primary with a fallback to secondary.
func NewFailoverSource(primary, secondary JWKSource) *FailoverSource {
	return &FailoverSource{primary: primary, secondary: secondary}
}

func (f *FailoverSource) Select(ctx context.Context, selector Selector) ([]jwk.Key, error) {
	keys, err := f.primary.Select(ctx, selector)
	if err == nil {
		return keys, nil
	}
	return f.secondary.Select(ctx, selector)
}

func (f *FailoverSource) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}

var _ JWKSource = (*FailoverSource)(nil)
