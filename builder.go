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
	"fmt"
	"time"

	"github.com/deep-rent/jwkstack/internal/config"
	"github.com/deep-rent/jwkstack/internal/events"
	"github.com/deep-rent/jwkstack/internal/jwkset"
	"github.com/deep-rent/jwkstack/internal/logger"
	"github.com/deep-rent/jwkstack/internal/retriever"
	"github.com/deep-rent/jwkstack/internal/selector"
	"github.com/deep-rent/jwkstack/internal/source"
	"github.com/deep-rent/jwkstack/internal/util"
)

const (
	defaultHTTPConnectTimeout = 500 * time.Millisecond
	defaultHTTPReadTimeout    = 500 * time.Millisecond
	defaultHTTPSizeLimit      = 50 * 1024 // 50 KiB

	defaultCacheTimeToLive      = 5 * time.Minute
	defaultCacheRefreshTimeout  = 15 * time.Second
	defaultRefreshAheadTime     = 30 * time.Second
	defaultRateLimitMinInterval = 30 * time.Second
)

// Builder validates a configuration and assembles it into the canonical
// decorator stack: failover -> selector -> (refresh-ahead or caching) ->
// rate-limiter -> health-reporter -> outage -> retry -> leaf. A decorator
// whose toggle is left at its default of "off" is omitted entirely, rather
// than installed as a no-op.
type Builder struct {
	leaf       source.Source
	leafSet    bool
	urlToFetch string

	clock util.Clock

	httpConnectTimeout time.Duration
	httpReadTimeout    time.Duration
	httpSizeLimit      int64
	httpHeaders        map[string]string

	caching             bool
	cacheForever        bool
	cacheTTL            time.Duration
	cacheRefreshTimeout time.Duration

	refreshAhead     bool
	refreshAheadTime time.Duration
	scheduled        bool

	rateLimited       bool
	rateLimitInterval time.Duration

	outageTolerant bool
	outageTTL      time.Duration
	outageTTLSet   bool

	secondary JWKSource

	listener events.Listener
}

// NewBuilder creates a Builder with every documented default applied and
// no leaf source configured. Exactly one of WithURL, WithFile, or
// WithSource must be called before Build.
func NewBuilder() *Builder {
	return &Builder{
		httpConnectTimeout:  defaultHTTPConnectTimeout,
		httpReadTimeout:     defaultHTTPReadTimeout,
		httpSizeLimit:       defaultHTTPSizeLimit,
		httpHeaders:         map[string]string{},
		cacheTTL:            defaultCacheTimeToLive,
		cacheRefreshTimeout: defaultCacheRefreshTimeout,
		refreshAheadTime:    defaultRefreshAheadTime,
		rateLimitInterval:   defaultRateLimitMinInterval,
		listener:            events.Discard,
	}
}

// WithURL configures the leaf to fetch the JWK set over HTTP(S) from url.
// The retriever itself is constructed lazily in Build, once every HTTP
// option has been applied.
func (b *Builder) WithURL(url string) *Builder {
	b.leaf = nil
	b.leafSet = true
	b.urlToFetch = url
	return b
}

// WithFile configures the leaf to read the JWK set from a local file path,
// re-read on every fetch.
func (b *Builder) WithFile(path string) *Builder {
	b.leaf = source.NewURLSource(path, retriever.NewFile(), nil)
	b.leafSet = true
	return b
}

// WithSource installs an arbitrary leaf source, bypassing the built-in URL
// and file retrievers entirely.
func (b *Builder) WithSource(leaf source.Source) *Builder {
	b.leaf = leaf
	b.leafSet = true
	return b
}

// HTTPConnectTimeout overrides the default 500ms TCP+TLS handshake budget
// for a URL leaf. It has no effect on a file or user-supplied leaf.
func (b *Builder) HTTPConnectTimeout(d time.Duration) *Builder {
	b.httpConnectTimeout = d
	return b
}

// HTTPReadTimeout overrides the default 500ms read budget for a URL leaf.
// The overall request deadline is the connect timeout plus this value.
func (b *Builder) HTTPReadTimeout(d time.Duration) *Builder {
	b.httpReadTimeout = d
	return b
}

// HTTPSizeLimit overrides the default 50KiB response size cap for a URL
// leaf.
func (b *Builder) HTTPSizeLimit(n int64) *Builder {
	b.httpSizeLimit = n
	return b
}

// HTTPHeader adds a header sent with every request made by a URL leaf.
func (b *Builder) HTTPHeader(key, value string) *Builder {
	b.httpHeaders[key] = value
	return b
}

// Cache enables the time-to-live cache with single-flight refresh.
func (b *Builder) Cache() *Builder {
	b.caching = true
	return b
}

// CacheForever enables the cache with an infinite time-to-live and disables
// refresh-ahead, which would otherwise have nothing to refresh toward.
func (b *Builder) CacheForever() *Builder {
	b.caching = true
	b.cacheForever = true
	b.refreshAhead = false
	return b
}

// CacheTimeToLive overrides the default 5 minute cache time-to-live.
func (b *Builder) CacheTimeToLive(d time.Duration) *Builder {
	b.cacheTTL = d
	return b
}

// CacheRefreshTimeout overrides the default 15s bound on how long a caller
// waits for a refresh already in flight.
func (b *Builder) CacheRefreshTimeout(d time.Duration) *Builder {
	b.cacheRefreshTimeout = d
	return b
}

// RefreshAhead enables proactive background refresh on top of the cache.
// It implies Cache.
func (b *Builder) RefreshAhead() *Builder {
	b.caching = true
	b.refreshAhead = true
	return b
}

// RefreshAheadScheduled enables proactive background refresh with an
// additional scheduled timer armed after every successful refresh, rather
// than relying solely on the lazy, request-driven trigger. It implies
// Cache.
func (b *Builder) RefreshAheadScheduled() *Builder {
	b.caching = true
	b.refreshAhead = true
	b.scheduled = true
	return b
}

// RefreshAheadTime overrides the default 30s window before expiry in which
// a background refresh is triggered.
func (b *Builder) RefreshAheadTime(d time.Duration) *Builder {
	b.refreshAheadTime = d
	return b
}

// RateLimited enables the token-bucket rate limiter in front of the leaf.
// It implies Cache.
func (b *Builder) RateLimited() *Builder {
	b.caching = true
	b.rateLimited = true
	return b
}

// RateLimitMinInterval overrides the default 30s interval in which the
// rate limiter admits two calls.
func (b *Builder) RateLimitMinInterval(d time.Duration) *Builder {
	b.rateLimitInterval = d
	return b
}

// OutageTolerant enables serving the last-known-good set while the leaf is
// failing.
func (b *Builder) OutageTolerant() *Builder {
	b.outageTolerant = true
	return b
}

// OutageCacheTimeToLive overrides the outage cache's time-to-live. Its
// default, when unset, is ten times the configured cache time-to-live (or
// ten times the default cache time-to-live, if caching is disabled).
func (b *Builder) OutageCacheTimeToLive(d time.Duration) *Builder {
	b.outageTTL = d
	b.outageTTLSet = true
	return b
}

// Failover wraps the assembled stack with a fallback to secondary on any
// error from the primary stack.
func (b *Builder) Failover(secondary JWKSource) *Builder {
	b.secondary = secondary
	return b
}

// WithListener registers a Listener notified of every event raised by any
// decorator in the assembled stack.
func (b *Builder) WithListener(l events.Listener) *Builder {
	b.listener = events.OrDiscard(l)
	return b
}

// WithDefaultLogging wires the assembled stack to a structured JSON logger
// at the given level ("debug", "info", "warn", "error", or "silent"; see
// logger.New), via events.SlogListener. It is a convenience for the common
// case of wanting production logging without assembling the logger and the
// listener adapter by hand; WithListener remains the way to observe events
// with anything more specific.
func (b *Builder) WithDefaultLogging(level string) *Builder {
	b.listener = logger.NewListener(level)
	return b
}

// WithClock overrides the clock the assembled stack's application-facing
// entry point reads "now" from. Production code has no need to call this;
// tests substitute a synthetic clock to drive cache expiry and
// refresh-ahead windows deterministically.
func (b *Builder) WithClock(clock util.Clock) *Builder {
	b.clock = clock
	return b
}

// NewBuilderFromFile loads a YAML configuration file and applies it to a
// fresh Builder, as FromConfig does. It is the entry point for operators
// who describe a stack declaratively rather than by chaining Builder calls.
func NewBuilderFromFile(path string) (*Builder, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewBuilder().FromConfig(cfg), nil
}

// FromConfig applies every non-zero field of cfg to b, in the same order a
// caller would invoke the corresponding Builder methods. Fields left at
// their zero value leave the Builder's existing setting (default or
// previously configured) untouched.
func (b *Builder) FromConfig(cfg *config.Config) *Builder {
	switch {
	case cfg.URL != "":
		b.WithURL(cfg.URL)
	case cfg.File != "":
		b.WithFile(cfg.File)
	}

	if cfg.HTTP.ConnectTimeout != 0 {
		b.HTTPConnectTimeout(time.Duration(cfg.HTTP.ConnectTimeout))
	}
	if cfg.HTTP.ReadTimeout != 0 {
		b.HTTPReadTimeout(time.Duration(cfg.HTTP.ReadTimeout))
	}
	if cfg.HTTP.SizeLimit != 0 {
		b.HTTPSizeLimit(cfg.HTTP.SizeLimit)
	}
	for k, v := range cfg.HTTP.Headers {
		b.HTTPHeader(k, v)
	}

	if cfg.Cache.Enabled {
		b.Cache()
	}
	if cfg.Cache.Forever {
		b.CacheForever()
	}
	if cfg.Cache.TimeToLive != 0 {
		b.CacheTimeToLive(time.Duration(cfg.Cache.TimeToLive))
	}
	if cfg.Cache.RefreshTimeout != 0 {
		b.CacheRefreshTimeout(time.Duration(cfg.Cache.RefreshTimeout))
	}

	if cfg.RefreshAhead.Enabled {
		if cfg.RefreshAhead.Scheduled {
			b.RefreshAheadScheduled()
		} else {
			b.RefreshAhead()
		}
	}
	if cfg.RefreshAhead.Time != 0 {
		b.RefreshAheadTime(time.Duration(cfg.RefreshAhead.Time))
	}

	if cfg.RateLimit.Enabled {
		b.RateLimited()
	}
	if cfg.RateLimit.MinInterval != 0 {
		b.RateLimitMinInterval(time.Duration(cfg.RateLimit.MinInterval))
	}

	if cfg.Outage.Enabled {
		b.OutageTolerant()
	}
	if cfg.Outage.TimeToLive != 0 {
		b.OutageCacheTimeToLive(time.Duration(cfg.Outage.TimeToLive))
	}

	return b
}

func (b *Builder) validate() error {
	if !b.leafSet {
		return fmt.Errorf("jwkstack: no leaf source configured (call WithURL, WithFile, or WithSource)")
	}
	if b.rateLimited && !b.caching {
		return fmt.Errorf("jwkstack: rate limiting requires caching")
	}
	if b.refreshAhead && !b.caching {
		return fmt.Errorf("jwkstack: refresh-ahead caching requires caching")
	}
	if b.refreshAhead && b.cacheForever {
		return fmt.Errorf("jwkstack: refresh-ahead caching is not supported with a non-expiring cache")
	}
	if b.caching && b.rateLimited && !b.cacheForever && b.cacheTTL <= b.rateLimitInterval {
		return fmt.Errorf("jwkstack: cache time-to-live (%s) must exceed the rate limit interval (%s)", b.cacheTTL, b.rateLimitInterval)
	}
	outageForever := b.outageTTLSet && b.outageTTL == jwkset.Forever
	if b.outageTolerant && b.cacheForever && outageForever {
		return fmt.Errorf("jwkstack: outage tolerance is not necessary with a non-expiring cache")
	}
	return nil
}

// Build validates the configuration and assembles the decorator stack,
// returning a ready-to-use JWKSource.
func (b *Builder) Build() (JWKSource, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	leaf := b.leaf
	if leaf == nil {
		httpOpts := append([]retriever.HTTPOption{
			retriever.WithConnectTimeout(b.httpConnectTimeout),
			retriever.WithReadTimeout(b.httpReadTimeout),
			retriever.WithSizeLimit(b.httpSizeLimit),
		}, b.headerOptions()...)
		leaf = source.NewURLSource(b.urlToFetch, retriever.NewHTTP(httpOpts...), nil)
	}

	var chain source.Source = leaf
	chain = source.NewRetrySource(chain, source.WithRetryListener(b.listener))
	if b.outageTolerant {
		chain = source.NewOutageSource(chain, b.resolvedOutageTTL(), source.WithOutageListener(b.listener))
	}
	chain = source.NewHealthReporter(chain, source.WithHealthListener(b.listener))

	if b.rateLimited {
		chain = source.NewRateLimiter(chain, b.rateLimitInterval, source.WithRateLimitListener(b.listener))
	}

	if b.caching {
		ttl := b.cacheTTL
		if b.cacheForever {
			ttl = jwkset.Forever
		}
		if b.refreshAhead {
			ra, err := source.NewRefreshAheadSource(
				chain, ttl, b.cacheRefreshTimeout, b.refreshAheadTime, b.scheduled,
				source.WithRefreshAheadListener(b.listener),
				source.WithRefreshAheadClock(b.clock),
			)
			if err != nil {
				return nil, fmt.Errorf("jwkstack: %w", err)
			}
			chain = ra
		} else {
			chain = source.NewCachingSource(chain, ttl, b.cacheRefreshTimeout, source.WithCachingListener(b.listener))
		}
	}

	primary := JWKSource(newSelectorSource(chain, selector.WithClock(b.clock)))

	if b.secondary != nil {
		return NewFailoverSource(primary, b.secondary), nil
	}
	return primary, nil
}

// resolvedOutageTTL applies the outage-TTL default: ten times the
// effective cache time-to-live when caching is enabled, or ten times the
// package default otherwise, unless the caller overrode it explicitly.
func (b *Builder) resolvedOutageTTL() time.Duration {
	if b.outageTTLSet {
		return b.outageTTL
	}
	base := defaultCacheTimeToLive
	if b.caching && !b.cacheForever {
		base = b.cacheTTL
	}
	if base == jwkset.Forever || base > jwkset.Forever/10 {
		return jwkset.Forever
	}
	return base * 10
}

func (b *Builder) headerOptions() []retriever.HTTPOption {
	opts := make([]retriever.HTTPOption, 0, len(b.httpHeaders))
	for k, v := range b.httpHeaders {
		opts = append(opts, retriever.WithHeader(k, v))
	}
	return opts
}
