package domain

import "errors"

// Rejection taxonomy for the admission pipeline. Handlers translate these
// into HTTP status codes and stable machine-readable error codes; the
// pipeline wraps them with context via fmt.Errorf("...: %w", err).
var (
	// ErrMalformedRequest covers missing or mistyped fields before any
	// cryptography runs.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrInvalidSignature means the signature bytes could not be decoded or
	// recovered: a format failure, not an authentication failure.
	ErrInvalidSignature = errors.New("invalid signature format")

	// ErrSignerMismatch means the signature recovered cleanly but to a
	// different address than the claimed principal. Security-relevant.
	ErrSignerMismatch = errors.New("signer mismatch")

	ErrExpired        = errors.New("order expired")
	ErrStaleTimestamp = errors.New("stale or future-dated signature")

	ErrPriceOutOfRange   = errors.New("price out of range")
	ErrSizeNotPositive   = errors.New("size must be positive")
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrAmountTooLarge    = errors.New("amount exceeds maximum")

	// ErrNonceUsed means the (principal, nonce) pair has already been
	// admitted. Permanent; the caller must sign with a fresh nonce.
	ErrNonceUsed = errors.New("nonce already used")

	ErrNotFound = errors.New("not found")
)
