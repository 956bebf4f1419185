// Package errors provides structured error types for the devtrack agent.
package errors

import (
	"errors"
	"fmt"
)

// ErrTimeout marks an external call that exceeded its deadline, so logs can
// distinguish a slow collaborator from one that refused the request.
var ErrTimeout = errors.New("operation timed out")

// APIError represents an error from an external API call.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// Classify maps transport-level timeouts onto ErrTimeout, preserving the
// original error text. Non-timeout errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
