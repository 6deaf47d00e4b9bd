package session

import (
	"encoding/json"
	"time"
)

// Profile is the server side companion of a signed-in browser session.
// The tokens themselves live only in the browser's cookies.
type Profile struct {
	ID          string
	Fingerprint string
	Email       string
	// PendingEmail is the address waiting for OTP verification or for the
	// role choice after a Google login.
	PendingEmail string
	Account      json.RawMessage
	Expiry       time.Time
}
