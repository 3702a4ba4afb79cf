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

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/deep-rent/jwkstack/internal/selector"
	"github.com/deep-rent/jwkstack/internal/source"
)

// selectorSource adapts an internal/selector.Wrapper to the public
// JWKSource interface, classifying its errors into the documented kinds.
type selectorSource struct {
	wrapper *selector.Wrapper
}

func newSelectorSource(inner source.Source, opts ...selector.Option) *selectorSource {
	return &selectorSource{wrapper: selector.New(inner, opts...)}
}

func (s *selectorSource) Select(ctx context.Context, sel Selector) ([]jwk.Key, error) {
	keys, err := s.wrapper.Select(ctx, func(set jwk.Set) []jwk.Key { return sel(set) })
	if err != nil {
		return nil, wrap(err)
	}
	return keys, nil
}

func (s *selectorSource) Close() error { return wrap(s.wrapper.Close()) }

var _ JWKSource = (*selectorSource)(nil)
