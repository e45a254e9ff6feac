package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "transient service error",
			err:  ServiceError("rate limited", true, nil),
			want: true,
		},
		{
			name: "permanent service error",
			err:  ServiceError("bad request", false, nil),
			want: false,
		},
		{
			name: "decode error is never transient",
			err:  DecodeError("not a PDF", nil),
			want: false,
		},
		{
			name: "wrapped transient error",
			err:  fmt.Errorf("extract: %w", ServiceError("timeout", true, nil)),
			want: true,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDecode(t *testing.T) {
	if !IsDecode(DecodeError("encrypted", nil)) {
		t.Error("DecodeError should be recognized")
	}
	if IsDecode(ValidationErr("bad shape", nil)) {
		t.Error("ValidationErr should not be a decode error")
	}
	if !IsDecode(fmt.Errorf("open: %w", DecodeError("no pages", nil))) {
		t.Error("wrapped DecodeError should be recognized")
	}
}

func TestDomainError_Error(t *testing.T) {
	inner := errors.New("connection refused")
	err := ServiceError("request failed", true, inner)

	msg := err.Error()
	if !strings.Contains(msg, "service") {
		t.Errorf("message missing type: %q", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("message missing cause: %q", msg)
	}
	if !errors.Is(err, inner) {
		t.Error("Unwrap should reach the inner error")
	}
}

func TestIsType(t *testing.T) {
	if !IsType(ValidationErr("bad grid", nil), ErrorTypeValidation) {
		t.Error("validation error should match its type")
	}
	if IsType(IOError("write failed", nil), ErrorTypeValidation) {
		t.Error("io error should not match validation type")
	}
}
