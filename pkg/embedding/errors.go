package embedding

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies provider failures for the retry loop.
type ErrorKind int

const (
	// KindTransient marks rate-limit and availability failures worth retrying
	KindTransient ErrorKind = iota
	// KindFatal marks auth and request failures that retrying cannot fix
	KindFatal
)

// ProviderError is a typed embedding provider failure. Retry logic is a plain
// loop over this type rather than catch/rethrow control flow.
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("embedding provider: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("embedding provider: %s", e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying.
func (e *ProviderError) Transient() bool { return e.Kind == KindTransient }

// classifyStatus maps an HTTP status to an error kind. Only rate limiting and
// service unavailability are retryable.
func classifyStatus(status int) ErrorKind {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return KindTransient
	default:
		return KindFatal
	}
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient()
}
