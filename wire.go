package sealdb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Wire format for one container, big-endian lengths:
//
//	[u32 metadataLength][metadataLength bytes: JSON metadata]
//	repeat chunkCount times (or once if unchunked):
//	  [u32 index]
//	  [u16 ivLength][iv bytes]
//	  [u16 authTagLength][authTag bytes (0 length = absent)]
//	  [u32 dataLength][ciphertext bytes]
//
// Chunks are written in container order; the index field authoritatively
// reorders them on decrypt.

// wireMetadata is the JSON encoding of container metadata. The salt is
// base64-encoded by encoding/json's []byte handling.
type wireMetadata struct {
	Salt       []byte `json:"salt"`
	Algorithm  string `json:"algorithm"`
	ChunkCount int    `json:"chunkCount,omitempty"`
	ChunkSize  int    `json:"chunkSize,omitempty"`
}

// MarshalContainer serializes a container to wire-format bytes
func MarshalContainer(c *Container) ([]byte, error) {
	meta, err := json.Marshal(wireMetadata{
		Salt:       c.Metadata.Salt,
		Algorithm:  c.Metadata.Algorithm.String(),
		ChunkCount: c.Metadata.ChunkCount,
		ChunkSize:  c.Metadata.ChunkSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, uint32(len(meta))); err != nil {
		return nil, fmt.Errorf("failed to write metadata length: %w", err)
	}
	buf.Write(meta)

	for _, chunk := range c.Chunks {
		if err := writeChunk(buf, chunk); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeChunk(buf *bytes.Buffer, chunk EncryptedChunk) error {
	if len(chunk.IV) > 0xFFFF {
		return NewValidationError("iv", len(chunk.IV), "iv too long for wire format")
	}
	if len(chunk.AuthTag) > 0xFFFF {
		return NewValidationError("authTag", len(chunk.AuthTag), "auth tag too long for wire format")
	}

	binary.Write(buf, binary.BigEndian, chunk.Index)
	binary.Write(buf, binary.BigEndian, uint16(len(chunk.IV)))
	buf.Write(chunk.IV)
	binary.Write(buf, binary.BigEndian, uint16(len(chunk.AuthTag)))
	buf.Write(chunk.AuthTag)
	binary.Write(buf, binary.BigEndian, uint32(len(chunk.Ciphertext)))
	buf.Write(chunk.Ciphertext)
	return nil
}

// UnmarshalContainer parses wire-format bytes back into a container. Parsing
// that runs past buffer bounds or finds an inconsistent chunk count fails
// with a FormatError.
func UnmarshalContainer(raw []byte) (*Container, error) {
	r := &wireReader{buf: raw}

	metaLen, err := r.readUint32("metadata length")
	if err != nil {
		return nil, err
	}
	metaBytes, err := r.readBytes(int(metaLen), "metadata")
	if err != nil {
		return nil, err
	}

	var meta wireMetadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, &FormatError{Offset: 4, Message: "invalid metadata JSON", Err: err}
	}
	algorithm, err := ParseAlgorithm(meta.Algorithm)
	if err != nil {
		return nil, &FormatError{Offset: 4, Message: "unknown algorithm " + meta.Algorithm, Err: err}
	}

	chunkCount := meta.ChunkCount
	if chunkCount <= 1 {
		chunkCount = 1
	}

	// The metadata is not authenticated; a claimed chunk count that cannot
	// fit in the remaining bytes (each chunk carries at least 12 header
	// bytes) is inconsistent, not grounds for a huge allocation
	if remaining := len(raw) - r.off; chunkCount > remaining/12 {
		return nil, NewFormatError(r.off, fmt.Sprintf("chunk count %d exceeds buffer capacity", chunkCount))
	}

	chunks := make([]EncryptedChunk, 0, chunkCount)
	for i := 0; i < chunkCount; i++ {
		chunk, err := r.readChunk()
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if r.off != len(raw) {
		return nil, NewFormatError(r.off, "trailing bytes after last chunk")
	}

	return &Container{
		Metadata: Metadata{
			Salt:       meta.Salt,
			Algorithm:  algorithm,
			ChunkCount: meta.ChunkCount,
			ChunkSize:  meta.ChunkSize,
		},
		Chunks: chunks,
	}, nil
}

// wireReader is a bounds-checked cursor over a wire-format buffer
type wireReader struct {
	buf []byte
	off int
}

func (r *wireReader) readBytes(n int, what string) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, NewFormatError(r.off, fmt.Sprintf("truncated %s: need %d bytes, have %d", what, n, len(r.buf)-r.off))
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *wireReader) readUint32(what string) (uint32, error) {
	b, err := r.readBytes(4, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *wireReader) readUint16(what string) (uint16, error) {
	b, err := r.readBytes(2, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *wireReader) readChunk() (EncryptedChunk, error) {
	index, err := r.readUint32("chunk index")
	if err != nil {
		return EncryptedChunk{}, err
	}
	ivLen, err := r.readUint16("iv length")
	if err != nil {
		return EncryptedChunk{}, err
	}
	iv, err := r.readBytes(int(ivLen), "iv")
	if err != nil {
		return EncryptedChunk{}, err
	}
	tagLen, err := r.readUint16("auth tag length")
	if err != nil {
		return EncryptedChunk{}, err
	}
	tag, err := r.readBytes(int(tagLen), "auth tag")
	if err != nil {
		return EncryptedChunk{}, err
	}
	dataLen, err := r.readUint32("data length")
	if err != nil {
		return EncryptedChunk{}, err
	}
	data, err := r.readBytes(int(dataLen), "ciphertext")
	if err != nil {
		return EncryptedChunk{}, err
	}

	chunk := EncryptedChunk{
		Index:      index,
		IV:         append([]byte(nil), iv...),
		Ciphertext: append([]byte(nil), data...),
	}
	if tagLen > 0 {
		chunk.AuthTag = append([]byte(nil), tag...)
	}
	return chunk, nil
}
