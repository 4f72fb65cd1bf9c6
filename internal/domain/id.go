// Package domain id.go contains functions to generate, parse, and validate link IDs
package domain

import "crypto/rand"

// LinkID is the externally visible identifier for a shared item. It is a
// 12-character string over a URL-safe base62 alphabet, drawn from a
// cryptographic entropy source so identifiers cannot be enumerated.
type LinkID string

const (
	linkIDLen      = 12
	linkIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewLinkID generates a new random LinkID. Rejection sampling keeps the
// distribution uniform over the alphabet. Entropy source failures propagate;
// there is no weaker fallback generator.
func NewLinkID() (LinkID, error) {
	out := make([]byte, 0, linkIDLen)
	buf := make([]byte, 2*linkIDLen)
	for len(out) < linkIDLen {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			// 62*4 = 248; reject 248..255 to avoid modulo bias.
			if b >= 248 {
				continue
			}
			out = append(out, linkIDAlphabet[b%62])
			if len(out) == linkIDLen {
				break
			}
		}
	}
	return LinkID(out), nil
}

// ParseLinkID validates s and returns it as a LinkID. It enforces:
// - length == 12
// - only [0-9a-zA-Z]
// Returns ErrInvalidID on failure.
func ParseLinkID(s string) (LinkID, error) {
	if !isValidLinkID(s) {
		return "", ErrInvalidID
	}
	return LinkID(s), nil
}

// String returns the string form of the LinkID.
func (id LinkID) String() string { return string(id) }

// Valid reports whether the ID satisfies the same rules as ParseLinkID.
func (id LinkID) Valid() bool { return isValidLinkID(string(id)) }

// isValidLinkID performs validation without allocating errors.
func isValidLinkID(s string) bool {
	if len(s) != linkIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}
