package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when the backend rejects the API key (401).
	ErrInvalidCredentials = errors.New("backend rejected the api key")

	// ErrQuotaExceeded is returned when the backend rate-limits the caller (429).
	ErrQuotaExceeded = errors.New("backend quota exceeded")

	// ErrEmptyReply is wrapped in a BackendError when a 200 response carries
	// no candidate text.
	ErrEmptyReply = errors.New("backend returned no candidate text")
)

// BadRequestError is returned for 400 responses. Detail holds the backend's
// own explanation.
type BadRequestError struct {
	Detail string
}

func (e *BadRequestError) Error() string {
	return "backend bad request: " + e.Detail
}

// BackendError covers every other failure. Status is 0 when no HTTP response
// was received (transport error or timeout).
type BackendError struct {
	Status int
	Body   string
	Err    error
}

func (e *BackendError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("backend unreachable: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("backend error: status %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("backend error: status %d: %s", e.Status, e.Body)
	}
}

func (e *BackendError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline, either the per-attempt
// timeout or the caller's.
func (e *BackendError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// retryable reports whether another attempt may succeed: transport failures,
// timeouts and 5xx. Credentials, quota and bad requests are terminal.
func retryable(err error) bool {
	var be *BackendError
	if !errors.As(err, &be) {
		return false
	}
	if errors.Is(be.Err, ErrEmptyReply) {
		return false
	}
	return be.Status == 0 || be.Status >= 500
}
