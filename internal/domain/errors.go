// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers. The HTTP layer maps
// these to status codes; the engine matches them with errors.Is.
var (
	// ErrNotFound covers unknown links and already-terminated records alike,
	// so a caller cannot distinguish "never existed" from "deleted".
	ErrNotFound = errors.New("content not found")

	// ErrExpired is returned when a record's expiry lapsed before the access.
	ErrExpired = errors.New("content expired")

	// ErrLimitReached is returned when the view cap (or one-time flag) has
	// been exhausted.
	ErrLimitReached = errors.New("view limit reached")

	// ErrSecretRequired is returned when a record is secret-gated and no
	// candidate was supplied.
	ErrSecretRequired = errors.New("secret required")

	// ErrSecretIncorrect is returned when the supplied candidate does not
	// match the stored hash.
	ErrSecretIncorrect = errors.New("secret incorrect")

	// ErrForbidden is returned for owner-only operations attempted by a
	// non-owner.
	ErrForbidden = errors.New("forbidden")

	ErrInvalidID  = errors.New("invalid link id")
	ErrTTLInvalid = errors.New("expiry duration invalid")
)
