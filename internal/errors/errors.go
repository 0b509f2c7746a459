// Package errors defines domain-level errors used throughout the gateway.
// These errors represent business logic failures and are mapped to appropriate
// HTTP status codes at the API boundary.
//
// NOTE: Important for developers
// When adding a new error here, you MUST consider how it should be handled when
// returned from API endpoints.
//
// Unmapped errors will default to HTTP 500 Internal Server Error.
//
// Don't forget to:
// 1. Add your error to mapError (internal/daemon/api_server.go)
// 2. Add a test case to TestMapError (internal/daemon/api_server_test.go)
package errors

import (
	"errors"
)

var (
	// ErrValidation indicates that a descriptor, patch, or set of routing hints
	// failed validation. Caller's fault, never retried.
	// Recommended to map to HTTP 400 Bad Request.
	ErrValidation = errors.New("validation failed")

	// ErrServerNotFound indicates that the requested server id does not exist
	// for the caller's tenant, or refers to a soft-deleted record.
	// Recommended to map to HTTP 404 Not Found.
	ErrServerNotFound = errors.New("server not found")

	// ErrDuplicateName indicates a registration conflict: the (tenant, name)
	// pair is already taken by a live record.
	// Recommended to map to HTTP 409 Conflict.
	ErrDuplicateName = errors.New("server name already registered")

	// ErrNoEligibleServer indicates that the capability intersection was empty,
	// or that every matching server was unroutable even after the
	// degraded-allowed escalation.
	// Recommended to map to HTTP 503 Service Unavailable.
	ErrNoEligibleServer = errors.New("no eligible server")

	// ErrAllCandidatesFailed indicates that every attempted candidate failed at
	// the transport level. The wrapping error carries per-candidate diagnostics.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrAllCandidatesFailed = errors.New("all candidates failed")

	// ErrRouterTimeout indicates the caller-supplied routing deadline elapsed
	// before any backend produced a response.
	// Recommended to map to HTTP 504 Gateway Timeout.
	ErrRouterTimeout = errors.New("routing deadline exceeded")

	// ErrHealthNotTracked indicates that health monitoring is not enabled for
	// the specified server.
	// Recommended to map to HTTP 404 Not Found.
	ErrHealthNotTracked = errors.New("server health is not being tracked")
)
