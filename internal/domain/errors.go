// Package domain defines core entities and domain-specific errors
// shared by the saga coordinator, the read aggregator, and the HTTP surface.
package domain

import "errors"

// Error taxonomy (sentinels).
var (
	// ErrNotFound is surfaced as 404 and is never masked by a breaker fallback.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamTransport covers connection refused, DNS failure, and timeouts.
	ErrUpstreamTransport = errors.New("upstream transport error")
	// ErrUpstreamApplication covers a well-formed non-2xx response from an upstream.
	ErrUpstreamApplication = errors.New("upstream application error")
	// ErrBreakerOpen is returned by the breaker when it short-circuits a call that has no fallback.
	ErrBreakerOpen = errors.New("breaker open")
	// ErrInternal covers unexpected internal failures not attributable to an upstream.
	ErrInternal = errors.New("internal error")
)
