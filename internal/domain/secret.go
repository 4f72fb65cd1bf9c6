// Package domain secret.go contains access-secret hashing and verification.
package domain

import "golang.org/x/crypto/bcrypt"

// secretCost is the bcrypt work factor for access secrets. The default cost
// lands near 100ms per hash on commodity hardware, slowing offline guessing.
const secretCost = bcrypt.DefaultCost

// HashSecret returns a one-way salted hash of the given access secret.
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), secretCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifySecret reports whether candidate matches the stored hash. An empty
// hash means the record carries no secret, and any candidate (including an
// empty one) is admitted: the gate is open, not skipped. The underlying
// bcrypt comparison is constant-time with respect to the hash contents.
func VerifySecret(candidate, hash string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
