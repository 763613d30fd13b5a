package model

import (
	"errors"
	"testing"
)

func TestErrorEnvelope_Error(t *testing.T) {
	e := &ErrorEnvelope{Code: ErrNotFound, Message: "Category not found"}
	want := "NOT_FOUND: Category not found"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorEnvelope_implements_error(t *testing.T) {
	var _ error = (*ErrorEnvelope)(nil)
}

func TestNewNotFoundError(t *testing.T) {
	e := NewNotFoundError("resource missing")
	if e.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", e.Code, ErrNotFound)
	}
	if e.Message != "resource missing" {
		t.Errorf("Message = %q, want %q", e.Message, "resource missing")
	}
}

func TestNewUnauthorizedError_pointsAtLogin(t *testing.T) {
	e := NewUnauthorizedError("session expired")
	if e.Code != ErrUnauthorized {
		t.Errorf("Code = %q, want %q", e.Code, ErrUnauthorized)
	}
	if e.RecoveryRoute != LoginRoute {
		t.Errorf("RecoveryRoute = %q, want %q", e.RecoveryRoute, LoginRoute)
	}
}

func TestNewValidationError(t *testing.T) {
	details := []FieldError{
		{Field: "email", Code: "REQUIRED", Message: "Email is required"},
	}
	e := NewValidationError(details)
	if e.Code != ErrValidationError {
		t.Errorf("Code = %q, want %q", e.Code, ErrValidationError)
	}
	if len(e.Details) != 1 {
		t.Fatalf("Details length = %d, want 1", len(e.Details))
	}
	if e.Details[0].Field != "email" {
		t.Errorf("Details[0].Field = %q, want %q", e.Details[0].Field, "email")
	}
}

func TestConstructors_codes(t *testing.T) {
	tests := []struct {
		name string
		err  *ErrorEnvelope
		want string
	}{
		{"internal", NewInternalError(), ErrInternalError},
		{"unavailable", NewBackendUnavailableError(), ErrBackendUnavailable},
		{"timeout", NewBackendTimeoutError(), ErrBackendTimeout},
		{"rate limited", NewRateLimitedError(), ErrRateLimited},
		{"superseded", NewSupersededError(), ErrSuperseded},
		{"confirmation expired", NewConfirmationExpiredError(), ErrConfirmationExpired},
		{"conflict", NewConflictError("busy"), ErrConflict},
		{"bad request", NewBadRequestError("bad"), ErrBadRequest},
		{"forbidden", NewForbiddenError("no"), ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.want {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.want)
			}
			if tt.err.Message == "" {
				t.Error("Message is empty")
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	if !IsCode(NewNotFoundError("x"), ErrNotFound) {
		t.Error("IsCode(NOT_FOUND) = false, want true")
	}
	if IsCode(NewNotFoundError("x"), ErrConflict) {
		t.Error("IsCode(CONFLICT) = true, want false")
	}
	if IsCode(errors.New("plain"), ErrNotFound) {
		t.Error("IsCode(plain error) = true, want false")
	}
	if IsCode(nil, ErrNotFound) {
		t.Error("IsCode(nil) = true, want false")
	}
}
