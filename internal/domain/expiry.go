// Package domain expiry.go contains expiry arithmetic for shared content.
package domain

import (
	"math"
	"time"
)

// ComputeExpiry returns the absolute expiry timestamp for content created at
// now with a lifetime of the given number of minutes. Fractional minutes are
// valid; sub-minute expirations are a supported use case.
func ComputeExpiry(now time.Time, minutes float64) time.Time {
	return now.Add(time.Duration(minutes * float64(time.Minute)))
}

// IsExpired reports whether expiresAt has lapsed at instant now. The
// comparison is strictly after: a record expiring exactly now is still live
// for this check. The result is advisory; callers must re-check at the
// moment of action rather than caching it.
func IsExpired(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}

// ValidateExpiryMinutes checks that minutes is positive, finite, and within
// the configured maximum lifetime. Returns ErrTTLInvalid on any violation.
// There is no lower bound beyond zero; sub-minute lifetimes are legal.
func ValidateExpiryMinutes(minutes float64, max time.Duration) error {
	if minutes <= 0 || math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return ErrTTLInvalid
	}
	// Compare in float space: converting a huge product to time.Duration
	// wraps negative and would slip past the bound.
	if max > 0 && minutes > max.Minutes() {
		return ErrTTLInvalid
	}
	return nil
}
