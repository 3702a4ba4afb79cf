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

	"github.com/deep-rent/jwkstack/internal/jwkset"
	"github.com/deep-rent/jwkstack/internal/retriever"
)

// Parser turns the raw bytes retrieved from a URLSource's location into a
// JWK set. JSON parsing and JWK cryptographic material are out of scope for
// this package; Parser is the contract an application supplies to do that
// work. ParseJWK, from the jwx library, is the default.
type Parser func(body []byte) (jwk.Set, error)

// ParseJWK parses body as a JSON JWK set using github.com/lestrrat-go/jwx.
func ParseJWK(body []byte) (jwk.Set, error) {
	return jwk.Parse(body)
}

// URLSource is the leaf of the decorator stack: it fetches a resource via
// the injected Retriever and parses it into a JWK set. Every call performs
// a fresh fetch; URLSource applies no caching of its own.
type URLSource struct {
	location  string
	retriever retriever.Retriever
	parse     Parser
}

// NewURLSource creates a URLSource that fetches location via r and parses
// the response with parse. If parse is nil, ParseJWK is used.
func NewURLSource(location string, r retriever.Retriever, parse Parser) *URLSource {
	if parse == nil {
		parse = ParseJWK
	}
	return &URLSource{location: location, retriever: r, parse: parse}
}

// Get implements Source. It ignores eval and now: the leaf has no cache to
// evaluate against, so every call fetches. A failure of any kind -- I/O,
// non-2xx status, or parse error -- is reported as Unavailable, since by
// contract all such failures are transient.
func (s *URLSource) Get(ctx context.Context, _ jwkset.RefreshEvaluator, _ time.Time) (jwk.Set, error) {
	body, err := s.retriever.Retrieve(ctx, s.location)
	if err != nil {
		return nil, NewUnavailable("fetch failed", err)
	}
	set, err := s.parse(body)
	if err != nil {
		return nil, NewUnavailable("parse failed", err)
	}
	return set, nil
}

// Close implements Source. URLSource owns no resources.
func (s *URLSource) Close() error { return nil }

var _ Source = (*URLSource)(nil)
