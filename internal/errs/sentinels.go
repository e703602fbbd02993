// Package errs contains sentinel errors and typed errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across codec/model/client layers.
var (
	// ErrDecode marks a malformed or unrecognized JSON shape.
	ErrDecode = errors.New("decode error")

	// ErrValidation marks a structurally valid value that violates a semantic rule.
	ErrValidation = errors.New("validation error")

	// ErrProtocol marks a failure reported by the backend with an error-detail body.
	ErrProtocol = errors.New("protocol error")

	// ErrNotFound indicates the backend does not know the requested entity (404).
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the backend refused a change because of conflicting state (409).
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized indicates failed authentication/authorization (401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrChallengeRequired indicates a 202 where the caller expected a final result.
	ErrChallengeRequired = errors.New("challenge required")

	// ErrUnknownChallenge indicates a challenge id that was not issued for this operation.
	ErrUnknownChallenge = errors.New("unknown challenge")

	// ErrChallengeUnsatisfied indicates a retry before enough challenges were confirmed.
	ErrChallengeUnsatisfied = errors.New("challenge set not satisfied")

	// ErrAlreadyRetried indicates a second resubmission of a consumed challenge set.
	ErrAlreadyRetried = errors.New("operation already retried")

	// ErrBodyMismatch indicates the resent body differs from the one that produced the challenges.
	ErrBodyMismatch = errors.New("request body differs from original")

	// ErrReplyTooLarge indicates a reply body above the transport's limit.
	ErrReplyTooLarge = errors.New("reply too large")

	// ErrRateLimited indicates a TAN retransmission requested before earliest_retransmission.
	ErrRateLimited = errors.New("rate limited")
)
