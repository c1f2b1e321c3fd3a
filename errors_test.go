package sealdb

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorTypes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		check   func(error) bool
		message string
	}{
		{
			"integrity",
			NewIntegrityError(3, ErrAuthFailed),
			IsIntegrityError,
			"chunk 3",
		},
		{
			"format",
			NewFormatError(17, "truncated iv"),
			IsFormatError,
			"offset 17",
		},
		{
			"not found",
			NewNotFoundError("collection", "users"),
			IsNotFoundError,
			"collection not found: users",
		},
		{
			"duplicate",
			NewDuplicateError("document", "u1"),
			IsDuplicateError,
			"document already exists: u1",
		},
		{
			"validation",
			NewValidationError("chunkSize", 3, "too small"),
			IsValidationError,
			"chunkSize",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Fatalf("checker rejected its own error type: %v", tt.err)
			}
			if !strings.Contains(tt.err.Error(), tt.message) {
				t.Fatalf("error %q does not mention %q", tt.err.Error(), tt.message)
			}
		})
	}
}

func TestErrorCheckers_RejectOtherErrors(t *testing.T) {
	plain := errors.New("some other failure")
	for name, check := range map[string]func(error) bool{
		"integrity": IsIntegrityError,
		"format":    IsFormatError,
		"not found": IsNotFoundError,
		"duplicate": IsDuplicateError,
	} {
		if check(plain) {
			t.Fatalf("%s checker accepted a plain error", name)
		}
		if check(nil) {
			t.Fatalf("%s checker accepted nil", name)
		}
	}
}

func TestIntegrityError_Unwrap(t *testing.T) {
	err := NewIntegrityError(0, ErrAuthFailed)
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatal("integrity error does not unwrap to ErrAuthFailed")
	}

	wrapped := fmt.Errorf("decrypt: %w", err)
	if !IsIntegrityError(wrapped) {
		t.Fatal("checker missed a wrapped integrity error")
	}
}
