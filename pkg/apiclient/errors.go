package apiclient

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport wraps failures to reach the gateway at all.
	ErrTransport = errors.New("transport failure")
	// ErrDecode wraps responses that are not valid envelopes.
	ErrDecode = errors.New("malformed response")
)

const (
	fallbackMessage             = "API call failed"
	fallbackMessageAfterRefresh = "API call failed after refresh"
	refreshFailedMessage        = "session refresh failed"
)

// Error is a non-OK response that was not recovered by a refresh.
type Error struct {
	StatusCode int
	Message    string
	ErrorCode  string
}

func (e *Error) Error() string {
	if e.ErrorCode == "" {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
}

func newError(statusCode int, env Envelope, fallback string) *Error {
	msg := env.Message
	if msg == "" {
		msg = fallback
	}

	return &Error{
		StatusCode: statusCode,
		Message:    msg,
		ErrorCode:  env.ErrorCode,
	}
}
