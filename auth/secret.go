package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes secrets and verifies plaintext against a stored hash.
// Verify returns nil on match.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) error
}

// BcryptHasher implements PasswordHasher with bcrypt, whose comparison is
// salted, adaptive and constant-time.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher creates a BcryptHasher. bcrypt.DefaultCost is used if cost <= 0.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Verify(hash, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// SecretVerifier checks client secrets against their stored hashes.
type SecretVerifier struct {
	hasher PasswordHasher
}

func NewSecretVerifier(hasher PasswordHasher) *SecretVerifier {
	return &SecretVerifier{hasher: hasher}
}

// ValidateSecret reports whether supplied matches the client's secret hash.
// Any mismatch, including a malformed stored hash, yields false.
func (v *SecretVerifier) ValidateSecret(client *Client, supplied string) bool {
	if client == nil || client.SecretHash == "" || supplied == "" {
		return false
	}
	return v.hasher.Verify(client.SecretHash, supplied) == nil
}
