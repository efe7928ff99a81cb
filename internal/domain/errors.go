package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors shared by the repository, service and API layers.
var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrDimensionMismatch    = errors.New("vector dimension mismatch")
	ErrCheckDisabled        = errors.New("auto check is disabled for this client")
	ErrAnalysisMissing      = errors.New("video analysis not found, analyze the video first")
	ErrIndexDisabled        = errors.New("template vector index is not configured")
)

// ValidationError lists every invalid field of a request.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a problem with a field.
func (e *ValidationError) Add(field, reason string) {
	e.Fields[field] = reason
}

// OrNil returns e when at least one field was recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// EmbeddingUnavailableError carries the upstream detail of a failed oracle call.
// StatusCode is 0 when the request never got a response.
type EmbeddingUnavailableError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *EmbeddingUnavailableError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("embedding unavailable: %s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("embedding unavailable: %s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("embedding unavailable: %s: %s", e.Provider, e.Body)
	}
}

func (e *EmbeddingUnavailableError) Is(target error) bool {
	return target == ErrEmbeddingUnavailable
}

func (e *EmbeddingUnavailableError) Unwrap() error {
	return e.Err
}

// Transient reports whether a retry by the caller might succeed.
func (e *EmbeddingUnavailableError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
