package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultTokenBytes is the amount of randomness behind every code and token value.
const DefaultTokenBytes = 32

// TokenGenerator produces opaque, URL-safe credential values.
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomGenerator draws values from crypto/rand and encodes them as unpadded base64url.
type RandomGenerator struct {
	Size int
}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{Size: DefaultTokenBytes}
}

func (g *RandomGenerator) Generate() (string, error) {
	size := g.Size
	if size < DefaultTokenBytes {
		size = DefaultTokenBytes
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
