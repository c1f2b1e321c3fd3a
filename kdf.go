package sealdb

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// NormalizeMasterKey hashes a passphrase into a fixed-length master key.
// The result is deterministic and never stored.
func NormalizeMasterKey(passphrase string) [KeySize]byte {
	return sha256.Sum256([]byte(passphrase))
}

// DeriveKey derives a chunk encryption key from a passphrase, a salt and a
// context string. The context provides domain separation between chunks that
// share the same salt: the key for chunk i is derived with context "chunk_i",
// an unchunked container uses the empty context.
//
// Derivation is PBKDF2-SHA256 over the normalized master key, salted with
// salt||context. The iteration cost is intentional and recomputed on every
// call to resist brute force on a weak passphrase.
func DeriveKey(passphrase string, salt []byte, context string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if err := ValidateSalt(salt); err != nil {
		return nil, err
	}

	master := NormalizeMasterKey(passphrase)
	defer zeroKey(&master)

	salted := make([]byte, 0, len(salt)+len(context))
	salted = append(salted, salt...)
	salted = append(salted, context...)

	return pbkdf2.Key(master[:], salted, KDFIterations, KeySize, sha256.New), nil
}

// ChunkContext returns the key derivation context for chunk index i
func ChunkContext(i uint32) string {
	return fmt.Sprintf("chunk_%d", i)
}

// GenerateSalt generates a new random key derivation salt
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// zeroKey wipes a fixed-size key from memory
func zeroKey(k *[KeySize]byte) {
	for i := range k {
		k[i] = 0
	}
}
