package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// ErrorCodeTokenExpired marks a 401 that can be recovered by refreshing
	// the access token.
	ErrorCodeTokenExpired = "TOKEN_EXPIRED"
	// ErrorCodeRefreshTokenExpired marks a refresh failure that ends the session.
	ErrorCodeRefreshTokenExpired = "REFRESH_TOKEN_EXPIRED"
)

const (
	DefaultRefreshPath = "/api/auth/refresh-token"
	SignInPath         = "/sign-in"
)

// Envelope is the JSON wrapper every gateway route answers with.
type Envelope struct {
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
	Status    int             `json:"status,omitempty"`

	// RedirectToLogin is only sent by the refresh endpoint.
	RedirectToLogin bool `json:"redirectToLogin,omitempty"`
}

func (e Envelope) tokenExpired() bool {
	return e.ErrorCode == ErrorCodeTokenExpired
}

func (e Envelope) sessionEnded() bool {
	return e.ErrorCode == ErrorCodeRefreshTokenExpired || e.RedirectToLogin
}

// DecodeData unmarshals the data member into v. A missing data member
// leaves v untouched.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 || bytes.Equal(e.Data, []byte("null")) {
		return nil
	}

	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: data: %w", ErrDecode, err)
	}

	return nil
}

// decodeEnvelope parses a response body. An empty body yields an empty envelope.
func decodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if len(bytes.TrimSpace(body)) == 0 {
		return env, nil
	}

	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return env, nil
}
