package sealdb

import (
	"fmt"
)

// Input validation helpers for defensive programming

// ValidateChunkSize checks that a chunk size is within acceptable bounds
func ValidateChunkSize(size int) error {
	if size < MinChunkSize {
		return &ValidationError{
			Field:   "chunkSize",
			Value:   size,
			Message: fmt.Sprintf("chunk size %d below minimum %d", size, MinChunkSize),
		}
	}
	if size > MaxChunkSize {
		return &ValidationError{
			Field:   "chunkSize",
			Value:   size,
			Message: fmt.Sprintf("chunk size %d above maximum %d", size, MaxChunkSize),
		}
	}
	return nil
}

// ValidateKey checks that a derived key has the expected size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ValidationError{
			Field:   "key",
			Message: "key cannot be nil",
		}
	}
	if len(key) != expectedSize {
		return &ValidationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, expected %d bytes", len(key), expectedSize),
		}
	}
	return nil
}

// ValidateSalt checks that a key derivation salt is usable
func ValidateSalt(salt []byte) error {
	if len(salt) == 0 {
		return &ValidationError{
			Field:   "salt",
			Message: "salt cannot be empty",
		}
	}
	return nil
}

// ValidateIV checks that an AEAD nonce has the expected size
func ValidateIV(iv []byte) error {
	if iv == nil {
		return &ValidationError{
			Field:   "iv",
			Message: "iv cannot be nil",
		}
	}
	if len(iv) != IVSize {
		return &ValidationError{
			Field:   "iv",
			Value:   len(iv),
			Message: fmt.Sprintf("invalid iv size: got %d bytes, expected %d bytes", len(iv), IVSize),
		}
	}
	return nil
}
