package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidateSecret(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	verifier := NewSecretVerifier(hasher)

	hash, err := hasher.Hash("s1-correct-horse")
	require.NoError(t, err)
	client := &Client{ID: "c", ClientID: "app", SecretHash: hash}

	assert.True(t, verifier.ValidateSecret(client, "s1-correct-horse"))

	t.Run("mutated byte", func(t *testing.T) {
		secret := []byte("s1-correct-horse")
		for i := range secret {
			mutated := append([]byte(nil), secret...)
			mutated[i] ^= 0x01
			assert.False(t, verifier.ValidateSecret(client, string(mutated)), "position %d", i)
		}
	})

	t.Run("empty secret", func(t *testing.T) {
		assert.False(t, verifier.ValidateSecret(client, ""))
	})

	t.Run("nil client", func(t *testing.T) {
		assert.False(t, verifier.ValidateSecret(nil, "s1-correct-horse"))
	})

	t.Run("malformed stored hash", func(t *testing.T) {
		broken := &Client{ID: "c", ClientID: "app", SecretHash: "plaintext-not-a-hash"}
		assert.False(t, verifier.ValidateSecret(broken, "plaintext-not-a-hash"))
	})
}

func TestBcryptHasherDefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).Cost)
	assert.Equal(t, 12, NewBcryptHasher(12).Cost)
}

func TestBcryptHasherRejectsTooLongSecret(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash(string(make([]byte, 73)))
	assert.Error(t, err)
}

func TestRandomGenerator(t *testing.T) {
	gen := NewRandomGenerator()
	seen := make(map[string]struct{})

	for i := 0; i < 500; i++ {
		value, err := gen.Generate()
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(value)
		require.NoError(t, err)
		assert.Len(t, raw, DefaultTokenBytes)

		_, dup := seen[value]
		require.False(t, dup, "duplicate value %s", value)
		seen[value] = struct{}{}
	}
}

func TestRandomGeneratorEnforcesMinimumSize(t *testing.T) {
	value, err := (&RandomGenerator{Size: 8}).Generate()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(value)
	require.NoError(t, err)
	assert.Len(t, raw, DefaultTokenBytes)
}
