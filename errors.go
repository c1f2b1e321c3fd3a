package sealdb

import (
	"errors"
	"fmt"
)

// Error types represent different categories of errors

// IntegrityError represents an authentication tag verification failure during
// chunk decryption. It covers both a wrong passphrase and corrupted or
// tampered ciphertext; the two cases are indistinguishable by design.
type IntegrityError struct {
	ChunkIndex uint32 // Chunk index, if applicable
	Message    string // Human-readable error message
	Err        error  // Underlying error, if any
}

func (e *IntegrityError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("integrity error: chunk %d: %s", e.ChunkIndex, e.Message)
	}
	return fmt.Sprintf("integrity error: chunk %d: authentication failed", e.ChunkIndex)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// FormatError represents a wire-format parsing failure: reading past buffer
// bounds or finding an inconsistent chunk count.
type FormatError struct {
	Offset  int    // Byte offset where parsing failed, -1 if unknown
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("format error at offset %d: %s", e.Offset, e.Message)
	}
	return fmt.Sprintf("format error: %s", e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// NotFoundError represents an operation addressed to a nonexistent collection
// or document
type NotFoundError struct {
	Kind string // "collection" or "document"
	Name string // Collection name or document id
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// DuplicateError represents an insert with an id or name already present
type DuplicateError struct {
	Kind string // "collection" or "document"
	Name string // Collection name or document id
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.Name)
}

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Common sentinel errors
var (
	ErrAuthFailed           = errors.New("authentication failed - data may be corrupted or tampered")
	ErrUnsupportedAlgorithm = errors.New("unsupported encryption algorithm")
	ErrEmptyPassphrase      = errors.New("passphrase cannot be empty")
	ErrWrongMagic           = errors.New("decrypted payload has wrong magic tag")
	ErrStoreClosed          = errors.New("store is closed")
	ErrNotImplemented       = errors.New("update modifier not implemented")
	ErrUnknownOperator      = errors.New("unknown query operator")
	ErrUnknownModifier      = errors.New("unknown update modifier")
)

// Helper functions for creating structured errors

// NewIntegrityError creates a new integrity error for a chunk
func NewIntegrityError(chunkIndex uint32, err error) error {
	return &IntegrityError{
		ChunkIndex: chunkIndex,
		Message:    err.Error(),
		Err:        err,
	}
}

// NewFormatError creates a new wire-format error
func NewFormatError(offset int, message string) error {
	return &FormatError{
		Offset:  offset,
		Message: message,
	}
}

// NewNotFoundError creates a new not-found error
func NewNotFoundError(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// NewDuplicateError creates a new duplicate error
func NewDuplicateError(kind, name string) error {
	return &DuplicateError{Kind: kind, Name: name}
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Error checking helpers

// IsIntegrityError checks if an error is an integrity error
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsFormatError checks if an error is a wire-format error
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsNotFoundError checks if an error is a not-found error
func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsDuplicateError checks if an error is a duplicate error
func IsDuplicateError(err error) bool {
	var de *DuplicateError
	return errors.As(err, &de)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
