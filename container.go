package sealdb

import (
	"sort"
)

// Metadata holds the shared parameters of an encrypted container. ChunkCount
// is present and greater than one iff the container is chunked; ChunkSize, if
// present, bounds every chunk's plaintext length except possibly the last.
type Metadata struct {
	Salt       []byte
	Algorithm  Algorithm
	ChunkCount int
	ChunkSize  int
}

// Chunked reports whether the metadata describes a chunked container
func (m Metadata) Chunked() bool {
	return m.ChunkCount > 1
}

// Container is an encrypted byte buffer: shared metadata plus chunks ordered
// by index. A container is created fresh on every encrypt call (new random
// salt, new random IV per chunk) and consumed once on decrypt.
type Container struct {
	Metadata Metadata
	Chunks   []EncryptedChunk
}

// EncryptSimple encrypts data as a single chunk. The key is derived from the
// passphrase and a fresh random salt with no context suffix.
func EncryptSimple(data []byte, passphrase string, algorithm Algorithm) (*Container, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey(passphrase, salt, "")
	if err != nil {
		return nil, err
	}

	chunk, err := encryptChunk(0, data, key, algorithm)
	if err != nil {
		return nil, err
	}

	return &Container{
		Metadata: Metadata{Salt: salt, Algorithm: algorithm},
		Chunks:   []EncryptedChunk{chunk},
	}, nil
}

// EncryptChunked splits data into ceil(len/chunkSize) contiguous chunks and
// encrypts each under its own derived key (context "chunk_i") with its own
// random IV. All chunks share one salt.
func EncryptChunked(data []byte, passphrase string, chunkSize int, algorithm Algorithm) (*Container, error) {
	if err := ValidateChunkSize(chunkSize); err != nil {
		return nil, err
	}

	chunkCount := (len(data) + chunkSize - 1) / chunkSize
	if chunkCount <= 1 {
		// A single chunk is a simple container; chunkCount is only
		// recorded when it is greater than one
		return EncryptSimple(data, passphrase, algorithm)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	chunks := make([]EncryptedChunk, 0, chunkCount)
	for i := 0; i < chunkCount; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}

		key, err := DeriveKey(passphrase, salt, ChunkContext(uint32(i)))
		if err != nil {
			return nil, err
		}

		chunk, err := encryptChunk(uint32(i), data[start:end], key, algorithm)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	return &Container{
		Metadata: Metadata{
			Salt:       salt,
			Algorithm:  algorithm,
			ChunkCount: chunkCount,
			ChunkSize:  chunkSize,
		},
		Chunks: chunks,
	}, nil
}

// EncryptAuto encrypts data and serializes the container to wire-format
// bytes. Buffers no larger than chunkSize are encrypted as a single simple
// container, larger buffers are chunked. This is the sole entry point used
// by persistence.
func EncryptAuto(data []byte, passphrase string, chunkSize int, algorithm Algorithm) ([]byte, error) {
	if err := ValidateChunkSize(chunkSize); err != nil {
		return nil, err
	}

	var container *Container
	var err error
	if len(data) <= chunkSize {
		container, err = EncryptSimple(data, passphrase, algorithm)
	} else {
		container, err = EncryptChunked(data, passphrase, chunkSize, algorithm)
	}
	if err != nil {
		return nil, err
	}

	return MarshalContainer(container)
}

// DecryptAuto deserializes wire-format bytes and decrypts the contained
// buffer. Chunked containers are reassembled in ascending index order
// regardless of stored order. Any chunk whose integrity check fails aborts
// the whole decrypt with an IntegrityError; no partial buffer is returned.
func DecryptAuto(raw []byte, passphrase string) ([]byte, error) {
	container, err := UnmarshalContainer(raw)
	if err != nil {
		return nil, err
	}
	return DecryptContainer(container, passphrase)
}

// DecryptContainer decrypts an already-parsed container. Callers that need
// the container metadata as well as the plaintext parse once and decrypt
// from the result.
func DecryptContainer(c *Container, passphrase string) ([]byte, error) {
	if c.Metadata.Chunked() {
		return decryptChunked(c, passphrase)
	}
	return decryptSimple(c, passphrase)
}

func decryptSimple(c *Container, passphrase string) ([]byte, error) {
	if len(c.Chunks) != 1 {
		return nil, NewFormatError(-1, "simple container must hold exactly one chunk")
	}

	key, err := DeriveKey(passphrase, c.Metadata.Salt, "")
	if err != nil {
		return nil, err
	}
	return decryptChunk(c.Chunks[0], key, c.Metadata.Algorithm)
}

func decryptChunked(c *Container, passphrase string) ([]byte, error) {
	if len(c.Chunks) != c.Metadata.ChunkCount {
		return nil, NewFormatError(-1, "chunk count does not match metadata")
	}

	// Defensive against reordering by storage or transport
	chunks := make([]EncryptedChunk, len(c.Chunks))
	copy(chunks, c.Chunks)
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})

	var plaintext []byte
	for _, chunk := range chunks {
		key, err := DeriveKey(passphrase, c.Metadata.Salt, ChunkContext(chunk.Index))
		if err != nil {
			return nil, err
		}
		part, err := decryptChunk(chunk, key, c.Metadata.Algorithm)
		if err != nil {
			return nil, err
		}
		plaintext = append(plaintext, part...)
	}
	return plaintext, nil
}
