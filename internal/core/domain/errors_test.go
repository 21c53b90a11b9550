package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "error with type and message",
			err:      &APIError{Type: ErrorTypeInvalidRequest, Message: "bad request"},
			expected: "invalid_request: bad request",
		},
		{
			name:     "error with type, code, and message",
			err:      &APIError{Type: ErrorTypeInvalidRequest, Code: ErrorCodeUnknownModel, Message: "no such model"},
			expected: "invalid_request (unknown_model): no such model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected int
	}{
		{"invalid request", &APIError{Type: ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"permission error", &APIError{Type: ErrorTypePermission}, http.StatusForbidden},
		{"not found error", &APIError{Type: ErrorTypeNotFound}, http.StatusNotFound},
		{"conflict error", &APIError{Type: ErrorTypeConflict}, http.StatusConflict},
		{"rate limit error", &APIError{Type: ErrorTypeRateLimit}, http.StatusTooManyRequests},
		{"server error", &APIError{Type: ErrorTypeServer}, http.StatusInternalServerError},
		{"unknown error type", &APIError{Type: ErrorType("unknown")}, http.StatusInternalServerError},
		{
			name:     "explicit status code",
			err:      &APIError{Type: ErrorTypeInvalidRequest, StatusCode: http.StatusUnprocessableEntity},
			expected: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func(string) *APIError
		expectedType ErrorType
		expectedCode ErrorCode
	}{
		{"ErrInvalidRequest", ErrInvalidRequest, ErrorTypeInvalidRequest, ""},
		{"ErrPermission", ErrPermission, ErrorTypePermission, ""},
		{"ErrNotFound", ErrNotFound, ErrorTypeNotFound, ""},
		{"ErrConflict", ErrConflict, ErrorTypeConflict, ""},
		{"ErrRateLimit", ErrRateLimit, ErrorTypeRateLimit, ErrorCodeRateLimitExceeded},
		{"ErrServer", ErrServer, ErrorTypeServer, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor("message")
			if err.Type != tt.expectedType {
				t.Errorf("Type = %v, want %v", err.Type, tt.expectedType)
			}
			if err.Code != tt.expectedCode {
				t.Errorf("Code = %v, want %v", err.Code, tt.expectedCode)
			}
			if err.Message != "message" {
				t.Errorf("Message = %q, want %q", err.Message, "message")
			}
		})
	}
}

func TestAPIError_Chaining(t *testing.T) {
	err := NewAPIError(ErrorTypeInvalidRequest, "test").
		WithCode(ErrorCodeUnknownRelation).
		WithParam("tags").
		WithStatusCode(http.StatusUnprocessableEntity)

	if err.Code != ErrorCodeUnknownRelation {
		t.Errorf("Code = %v, want %v", err.Code, ErrorCodeUnknownRelation)
	}
	if err.Param != "tags" {
		t.Errorf("Param = %q, want %q", err.Param, "tags")
	}
	if err.HTTPStatusCode() != http.StatusUnprocessableEntity {
		t.Errorf("HTTPStatusCode() = %d, want %d", err.HTTPStatusCode(), http.StatusUnprocessableEntity)
	}
}

func TestAsAPIError(t *testing.T) {
	wrapped := fmt.Errorf("create tag: %w", ErrConflict("duplicate"))
	if got := AsAPIError(wrapped); got.Type != ErrorTypeConflict {
		t.Errorf("wrapped APIError type = %v, want %v", got.Type, ErrorTypeConflict)
	}

	plain := AsAPIError(errors.New("disk on fire"))
	if plain.Type != ErrorTypeServer {
		t.Errorf("plain error type = %v, want %v", plain.Type, ErrorTypeServer)
	}
	if plain.Message != "disk on fire" {
		t.Errorf("plain error message = %q", plain.Message)
	}
}
