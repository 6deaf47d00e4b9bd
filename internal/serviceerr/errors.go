package serviceerr

import (
	"net/http"
)

type Code string

const (
	CodeInvalidRequest      Code = "invalid_request"
	CodeUnauthorized        Code = "unauthorized"
	CodeAccessDenied        Code = "access_denied"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeFingerprintMismatch Code = "fingerprint_mismatch"
	CodeSessionExpired      Code = "session_expired"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeUnknown             Code = "unknown"
)

// Error is a coded service error. The code selects the HTTP status the
// gateway answers with; the description ends up in the envelope message.
type Error struct {
	Err         Code
	Description string
}

var (
	ErrInvalidRequest      = &Error{Err: CodeInvalidRequest}
	ErrUnauthorized        = &Error{Err: CodeUnauthorized, Description: "unauthorized"}
	ErrAccessDenied        = &Error{Err: CodeAccessDenied, Description: "access denied"}
	ErrNotFound            = &Error{Err: CodeNotFound, Description: "not found"}
	ErrConflict            = &Error{Err: CodeConflict, Description: "already exists"}
	ErrFingerprintMismatch = &Error{Err: CodeFingerprintMismatch, Description: "fingerprint mismatch"}
	ErrSessionExpired      = &Error{Err: CodeSessionExpired, Description: "session expired"}
	ErrUpstreamUnavailable = &Error{Err: CodeUpstreamUnavailable, Description: "backend unavailable"}
	ErrUnknown             = &Error{Err: CodeUnknown, Description: "unknown error"}
)

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

// Is matches on the code so that wrapped copies with a different
// description still satisfy errors.Is against the predefined values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Err == t.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeSessionExpired:
		return http.StatusUnauthorized
	case CodeAccessDenied, CodeFingerprintMismatch:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithDescription returns a copy of the error carrying the given description.
func (e *Error) WithDescription(description string) *Error {
	return &Error{Err: e.Err, Description: description}
}
