package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable machine-readable error codes.
const (
	CodeValidation              = "VALIDATION_FAILED"
	CodeNotFound                = "NOT_FOUND"
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodeSlugGenerationExhausted = "SLUG_GENERATION_EXHAUSTED"
	CodeRepository              = "REPOSITORY_ERROR"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeInternal                = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewInvalidTransition reports a state machine violation for entity.
func NewInvalidTransition(entity string, from, to string) error {
	return NewDomainError(
		CodeInvalidTransition,
		fmt.Sprintf("invalid %s transition from %q to %q", entity, from, to),
		http.StatusConflict,
		map[string]any{"entity": entity, "from": from, "to": to},
	)
}

// NewSlugGenerationExhausted reports that no free slug was found within the attempt bound.
func NewSlugGenerationExhausted(base string, attempts int) error {
	return NewDomainError(
		CodeSlugGenerationExhausted,
		fmt.Sprintf("unable to generate unique slug for %q", base),
		http.StatusConflict,
		map[string]any{"base": base, "attempts": attempts},
	)
}

// NewRepositoryError wraps an opaque store failure.
func NewRepositoryError(err error) error {
	return &DomainError{
		Code:       CodeRepository,
		Message:    "repository failure",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given DomainError code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// FromStatus builds a DomainError for a bare transport status code.
func FromStatus(status int, message string) *DomainError {
	code := CodeInternal
	switch status {
	case http.StatusBadRequest:
		code = CodeValidation
	case http.StatusUnauthorized:
		code = CodeUnauthorized
	case http.StatusForbidden:
		code = CodeForbidden
	case http.StatusNotFound:
		code = CodeNotFound
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}
