// Package auth: one-time secrets.
//
// Magic links and OAuth state both need unguessable random values. Magic-link
// secrets are additionally stored hashed, so a leaked database row can't be
// replayed as a login link.
//
// WHY BCRYPT FOR A RANDOM SECRET?
// A 256-bit random secret doesn't need key stretching, but bcrypt gives us a
// salted, constant-time-compared hash with no extra code, and link
// verification is rare enough that its cost doesn't matter.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const defaultCost = 12

// RandomToken returns n bytes of crypto/rand entropy, hex encoded.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewState returns a 256-bit OAuth state value.
func NewState() (string, error) {
	return RandomToken(32)
}

// SecretHasher hashes and verifies one-time secrets with bcrypt.
type SecretHasher struct {
	cost int
}

func NewSecretHasher() *SecretHasher {
	return &SecretHasher{cost: defaultCost}
}

// NewSecretHasherForTest uses a low bcrypt cost so tests stay fast.
// Do NOT use in production.
func NewSecretHasherForTest() *SecretHasher {
	return &SecretHasher{cost: bcrypt.MinCost}
}

// Hash hashes secret. Secrets longer than 72 bytes are rejected because
// bcrypt would silently truncate them.
func (h *SecretHasher) Hash(secret string) (string, error) {
	if len(secret) > 72 {
		return "", fmt.Errorf("auth: secret must be 72 bytes or fewer")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing secret: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil iff secret matches hash.
func (h *SecretHasher) Verify(hash, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: secret does not match")
		}
		return fmt.Errorf("auth: comparing secret hash: %w", err)
	}
	return nil
}
