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

// Package events defines the event taxonomy emitted by the JWK set
// resolution pipeline, and the listener mechanism applications use to
// observe it.
package events

import (
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Event is the common interface implemented by every event kind. Source
// identifies which decorator instance raised the event (e.g. "caching" or
// "rate-limiter:jwks"), which is useful when several decorators of the same
// kind are stacked (as with a FailoverSource's two arms).
type Event interface {
	// Source returns a human-readable label for the decorator that raised
	// the event.
	Source() string
	// At returns the time the event was raised: the caller-supplied "now"
	// of the call that raised it, or the background clock's reading for a
	// background refresh.
	At() time.Time
}

// base is embedded by every concrete event to satisfy the Event interface.
type base struct {
	source string
	at     time.Time
}

func (b base) Source() string { return b.source }
func (b base) At() time.Time  { return b.at }

func newBase(source string, now time.Time) base {
	return base{source: source, at: now}
}

// RefreshInitiated is raised by CachingSource when it is about to fetch a
// new set from its inner source, either because the cache was empty,
// expired, or the caller's evaluator demanded it.
type RefreshInitiated struct {
	base
	// QueueLength estimates how many goroutines are currently waiting on
	// this source's refresh to complete.
	QueueLength int
}

func NewRefreshInitiated(source string, now time.Time, queueLength int) RefreshInitiated {
	return RefreshInitiated{base: newBase(source, now), QueueLength: queueLength}
}

// RefreshCompleted is raised by CachingSource after a refresh successfully
// replaced the cached set.
type RefreshCompleted struct {
	base
	Set         jwk.Set
	QueueLength int
}

func NewRefreshCompleted(source string, now time.Time, set jwk.Set, queueLength int) RefreshCompleted {
	return RefreshCompleted{base: newBase(source, now), Set: set, QueueLength: queueLength}
}

// WaitingForRefresh is raised when a goroutine finds a refresh already in
// flight and must wait for it instead of triggering its own.
type WaitingForRefresh struct {
	base
	QueueLength int
}

func NewWaitingForRefresh(source string, now time.Time, queueLength int) WaitingForRefresh {
	return WaitingForRefresh{base: newBase(source, now), QueueLength: queueLength}
}

// RefreshTimedOut is raised when a waiting goroutine gives up after
// cacheRefreshTimeout without the in-flight refresh completing.
type RefreshTimedOut struct {
	base
	QueueLength int
}

func NewRefreshTimedOut(source string, now time.Time, queueLength int) RefreshTimedOut {
	return RefreshTimedOut{base: newBase(source, now), QueueLength: queueLength}
}

// UnableToRefresh is raised by CachingSource when a refresh attempt fails.
// The cached value, if any, is left unchanged and the error is returned to
// the caller.
type UnableToRefresh struct {
	base
	Err error
}

func NewUnableToRefresh(source string, now time.Time, err error) UnableToRefresh {
	return UnableToRefresh{base: newBase(source, now), Err: err}
}

// RefreshScheduled is raised by RefreshAheadSource when it has armed a
// one-shot timer for a future background refresh.
type RefreshScheduled struct {
	base
	ScheduledFor time.Time
}

func NewRefreshScheduled(source string, now, scheduledFor time.Time) RefreshScheduled {
	return RefreshScheduled{base: newBase(source, now), ScheduledFor: scheduledFor}
}

// RefreshNotScheduled is raised by RefreshAheadSource after a successful
// refresh when no timer was armed because scheduled mode is disabled.
type RefreshNotScheduled struct{ base }

func NewRefreshNotScheduled(source string, now time.Time) RefreshNotScheduled {
	return RefreshNotScheduled{base: newBase(source, now)}
}

// ScheduledRefreshInitiated is raised when a background (lazy or timer
// driven) refresh-ahead fetch begins.
type ScheduledRefreshInitiated struct{ base }

func NewScheduledRefreshInitiated(source string, now time.Time) ScheduledRefreshInitiated {
	return ScheduledRefreshInitiated{base: newBase(source, now)}
}

// ScheduledRefreshCompleted is raised when a background refresh-ahead fetch
// succeeds.
type ScheduledRefreshCompleted struct {
	base
	Set jwk.Set
}

func NewScheduledRefreshCompleted(source string, now time.Time, set jwk.Set) ScheduledRefreshCompleted {
	return ScheduledRefreshCompleted{base: newBase(source, now), Set: set}
}

// ScheduledRefreshFailed is raised when a background refresh-ahead fetch
// fails. The pipeline never surfaces this error to a foreground caller; it
// only resets internal state so a future request can retry.
type ScheduledRefreshFailed struct {
	base
	Err error
}

func NewScheduledRefreshFailed(source string, now time.Time, err error) ScheduledRefreshFailed {
	return ScheduledRefreshFailed{base: newBase(source, now), Err: err}
}

// UnableToRefreshAheadOfExpiration is raised when a scheduled or lazy
// refresh-ahead attempt fails, meaning the cache will expire before a
// successful background refresh could replace it.
type UnableToRefreshAheadOfExpiration struct{ base }

func NewUnableToRefreshAheadOfExpiration(source string, now time.Time) UnableToRefreshAheadOfExpiration {
	return UnableToRefreshAheadOfExpiration{base: newBase(source, now)}
}

// RateLimited is raised by RateLimiter when a call is rejected because both
// tokens for the current interval have been spent.
type RateLimited struct{ base }

func NewRateLimited(source string, now time.Time) RateLimited {
	return RateLimited{base: newBase(source, now)}
}

// Retrial is raised by RetrySource when it retries an inner call after a
// transient failure.
type Retrial struct {
	base
	Err error
}

func NewRetrial(source string, now time.Time, err error) Retrial {
	return Retrial{base: newBase(source, now), Err: err}
}

// Outage is raised by OutageSource when it serves a cloned, last-known-good
// set because the inner source is currently failing.
type Outage struct {
	base
	Err       error
	Remaining time.Duration
}

func NewOutage(source string, now time.Time, err error, remaining time.Duration) Outage {
	return Outage{base: newBase(source, now), Err: err, Remaining: remaining}
}

// HealthStatus enumerates the health states a HealthReporter can observe.
type HealthStatus int

const (
	// Healthy means the most recent call to the wrapped source succeeded.
	Healthy HealthStatus = iota
	// Unhealthy means the most recent call to the wrapped source failed.
	Unhealthy
)

func (s HealthStatus) String() string {
	if s == Healthy {
		return "HEALTHY"
	}
	return "NOT_HEALTHY"
}

// HealthReport is raised by HealthReporter after every call to its wrapped
// source, healthy or not.
type HealthReport struct {
	base
	Status HealthStatus
	Err    error // nil when Status == Healthy
}

func NewHealthReport(source string, now time.Time, status HealthStatus, err error) HealthReport {
	return HealthReport{base: newBase(source, now), Status: status, Err: err}
}
