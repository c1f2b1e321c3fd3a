package sealdb

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// cipherEngine provides AEAD encryption/decryption for one derived key
type cipherEngine interface {
	// Seal encrypts plaintext with the given nonce, returning ciphertext
	// with the auth tag appended
	Seal(nonce, plaintext []byte) ([]byte, error)

	// Open decrypts ciphertext (with trailing auth tag) with the given nonce
	Open(nonce, ciphertext []byte) ([]byte, error)

	// NonceSize returns the size of nonces in bytes
	NonceSize() int

	// Overhead returns the authentication tag size
	Overhead() int
}

// aeadEngine implements cipherEngine over any crypto/cipher AEAD
type aeadEngine struct {
	aead cipher.AEAD
}

func (e *aeadEngine) Seal(nonce, plaintext []byte) ([]byte, error) {
	if len(nonce) != e.aead.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.aead.NonceSize(), len(nonce))
	}
	return e.aead.Seal(nil, nonce, plaintext, nil), nil
}

func (e *aeadEngine) Open(nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != e.aead.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.aead.NonceSize(), len(nonce))
	}
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func (e *aeadEngine) NonceSize() int { return e.aead.NonceSize() }
func (e *aeadEngine) Overhead() int  { return e.aead.Overhead() }

// newCipherEngine creates a new cipher engine for the algorithm and key
func newCipherEngine(algorithm Algorithm, key []byte) (cipherEngine, error) {
	if err := ValidateKey(key, KeySize); err != nil {
		return nil, err
	}

	switch algorithm {
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
		return &aeadEngine{aead: aead}, nil
	case AlgorithmChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
		}
		return &aeadEngine{aead: aead}, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// generateIV generates a random nonce. A fresh IV per chunk keeps every
// (key, IV) pair unique even though chunks of one container share a salt.
func generateIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}
	return iv, nil
}

// EncryptedChunk is one encrypted unit of a container. Index is 0-based and
// contiguous within the container; the auth tag is stored separately from the
// ciphertext in the wire format.
type EncryptedChunk struct {
	Index      uint32 // Position of this chunk's plaintext in the buffer
	IV         []byte // Random nonce, unique per chunk
	Ciphertext []byte // Encrypted chunk data (without auth tag)
	AuthTag    []byte // AEAD authentication tag
}

// encryptChunk encrypts one plaintext chunk under a derived key with a fresh
// random IV
func encryptChunk(index uint32, plaintext, derivedKey []byte, algorithm Algorithm) (EncryptedChunk, error) {
	engine, err := newCipherEngine(algorithm, derivedKey)
	if err != nil {
		return EncryptedChunk{}, err
	}

	iv, err := generateIV()
	if err != nil {
		return EncryptedChunk{}, err
	}

	sealed, err := engine.Seal(iv, plaintext)
	if err != nil {
		return EncryptedChunk{}, err
	}

	// Seal appends the tag to the ciphertext; split it off
	tagStart := len(sealed) - engine.Overhead()
	return EncryptedChunk{
		Index:      index,
		IV:         iv,
		Ciphertext: sealed[:tagStart],
		AuthTag:    sealed[tagStart:],
	}, nil
}

// decryptChunk decrypts and verifies one chunk. Decryption is atomic: either
// fully verified plaintext is returned, or an IntegrityError, never partial
// or unverified output.
func decryptChunk(chunk EncryptedChunk, derivedKey []byte, algorithm Algorithm) ([]byte, error) {
	engine, err := newCipherEngine(algorithm, derivedKey)
	if err != nil {
		return nil, err
	}
	if err := ValidateIV(chunk.IV); err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(chunk.Ciphertext)+len(chunk.AuthTag))
	sealed = append(sealed, chunk.Ciphertext...)
	sealed = append(sealed, chunk.AuthTag...)

	plaintext, err := engine.Open(chunk.IV, sealed)
	if err != nil {
		return nil, NewIntegrityError(chunk.Index, err)
	}
	return plaintext, nil
}
