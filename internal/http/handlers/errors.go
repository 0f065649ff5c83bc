// Package handlers defines HTTP-layer error codes used across all dashboard
// API endpoints.
//
// These symbolic constants are mapped to HTTP responses via the `fail()`
// helper and give clients a stable, machine-readable error taxonomy that
// supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes (bad_request, not_found, conflict) mirror common HTTP
//     status semantics.
//   - Domain-specific codes (send_failed, assign_failed) are reserved for
//     business errors that status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeSendFailed       = "send_failed"
	ErrCodeAssignFailed     = "assign_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeStatsFailed      = "stats_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
