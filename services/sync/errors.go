package sync

import (
	"errors"
	"fmt"
)

// Session error codes.
const (
	CodeNetwork             = "network"
	CodeEndpointUnavailable = "endpointUnavailable"
)

// SessionError classifies a fetch failure. Network errors are transient and
// retried with backoff; endpoint-unavailable errors stop the session.
type SessionError struct {
	Code    string
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func NewNetworkError(msg string, err error) error {
	return &SessionError{Code: CodeNetwork, Message: msg, Err: err}
}

func NewEndpointUnavailable(msg string) error {
	return &SessionError{Code: CodeEndpointUnavailable, Message: msg}
}

// IsEndpointUnavailable reports whether err marks the polled endpoint as
// permanently gone for this session's lifetime.
func IsEndpointUnavailable(err error) bool {
	var se *SessionError
	return errors.As(err, &se) && se.Code == CodeEndpointUnavailable
}
