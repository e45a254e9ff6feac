package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeDecode         ErrorType = "decode"
	ErrorTypeClassification ErrorType = "classification"
	ErrorTypeService        ErrorType = "service"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeIO             ErrorType = "io"
)

// DomainError represents a domain-specific error with context.
// Transient is meaningful only for service errors and drives the
// orchestrator's retry-vs-fail transition.
type DomainError struct {
	Type      ErrorType
	Message   string
	Transient bool
	Err       error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// DecodeError signals that the PDF byte stream could not be decoded.
// It is the only error that aborts a whole run.
func DecodeError(message string, err error) *DomainError {
	return NewError(ErrorTypeDecode, message, err)
}

// ClassificationError records a content unit the classifier could not
// recognize. It is always recovered locally via the text fail-open
// path and never surfaces past the classifier.
func ClassificationError(message string, err error) *DomainError {
	return NewError(ErrorTypeClassification, message, err)
}

// ServiceError signals a failure of the external AI service. The
// transient flag marks failures likely to succeed on retry
// (network, timeout, rate limit).
func ServiceError(message string, transient bool, err error) *DomainError {
	return &DomainError{
		Type:      ErrorTypeService,
		Message:   message,
		Transient: transient,
		Err:       err,
	}
}

// ValidationErr signals malformed extractor output, such as a table
// whose column counts do not match the input grid.
func ValidationErr(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// IsTransient reports whether err is a transient service error.
func IsTransient(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == ErrorTypeService && de.Transient
	}
	return false
}

// IsDecode reports whether err is a fatal decode error.
func IsDecode(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == ErrorTypeDecode
	}
	return false
}

// IsType reports whether err is a domain error of the given type.
func IsType(err error, t ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == t
	}
	return false
}
