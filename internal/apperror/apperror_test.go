package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case checks that errors.Is() identifies the kind through the chain,
// including when a caller has wrapped the error again with fmt.Errorf("%w").

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("vinyl", "7"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("username", "username is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "bob"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "ConflictMessage wraps ErrConflict",
			err:       ConflictMessage("this user is already registered"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid credentials"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "double wrapped Forbidden still matches",
			err:       fmt.Errorf("service/user: %w", Forbidden("admins cannot delete themselves")),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("vinyl", "7"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Conflict does NOT match ErrNotReady",
			err:       Conflict("user", "bob"),
			target:    ErrNotReady,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("vinyl", "7"),
			wantMessage: "vinyl not found with id 7",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("password", "passwords do not match"),
			wantMessage: "passwords do not match",
		},
		{
			name:        "Conflict message includes resource and id",
			err:         Conflict("order", "42"),
			wantMessage: "order conflict with id 42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("vinyl", "7")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")
	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}
