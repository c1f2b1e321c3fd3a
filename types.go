package sealdb

// Algorithm represents the AEAD algorithm used to encrypt a container
type Algorithm uint8

const (
	// AlgorithmAES256GCM uses AES-256 with Galois/Counter Mode
	AlgorithmAES256GCM Algorithm = iota
	// AlgorithmChaCha20Poly1305 uses ChaCha20 stream cipher with Poly1305 MAC
	AlgorithmChaCha20Poly1305
)

// String returns the wire-format name of the algorithm
func (a Algorithm) String() string {
	switch a {
	case AlgorithmAES256GCM:
		return "aes-256-gcm"
	case AlgorithmChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// ParseAlgorithm converts a wire-format algorithm name back to an Algorithm
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "aes-256-gcm":
		return AlgorithmAES256GCM, nil
	case "chacha20-poly1305":
		return AlgorithmChaCha20Poly1305, nil
	default:
		return 0, ErrUnsupportedAlgorithm
	}
}

const (
	// KeySize is the derived key size in bytes (AES-256 / ChaCha20 key length)
	KeySize = 32

	// SaltSize is the per-container key derivation salt size in bytes
	SaltSize = 32

	// IVSize is the AEAD nonce size in bytes (12 for both supported algorithms)
	IVSize = 12

	// TagSize is the AEAD authentication tag size in bytes
	TagSize = 16

	// KDFIterations is the PBKDF2 iteration count for passphrase key derivation
	KDFIterations = 100000

	// DefaultChunkSize is the default plaintext chunk size (64 KB)
	DefaultChunkSize = 64 * 1024

	// MinChunkSize is the minimum allowed chunk size (64 bytes, for testing)
	MinChunkSize = 64

	// MaxChunkSize is the maximum allowed chunk size (16 MB)
	MaxChunkSize = 16 * 1024 * 1024
)

// Options configures a document store
type Options struct {
	// Algorithm selects the AEAD algorithm for newly written containers
	Algorithm Algorithm

	// ChunkSize is the plaintext chunk size threshold; buffers no larger
	// than this are encrypted as a single chunk
	ChunkSize int
}

// DefaultOptions returns the options used when none are supplied
func DefaultOptions() Options {
	return Options{
		Algorithm: AlgorithmAES256GCM,
		ChunkSize: DefaultChunkSize,
	}
}

// Validate checks if the options are valid
func (o Options) Validate() error {
	if o.Algorithm != AlgorithmAES256GCM && o.Algorithm != AlgorithmChaCha20Poly1305 {
		return ErrUnsupportedAlgorithm
	}
	return ValidateChunkSize(o.ChunkSize)
}
