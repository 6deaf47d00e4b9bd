// Package activity keeps a log of what happens on the gateway and derives
// the statistics shown on the admin dashboard from it.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSignIn            Kind = "sign_in"
	KindSignInFailed      Kind = "sign_in_failed"
	KindSignUp            Kind = "sign_up"
	KindOTPVerified       Kind = "otp_verified"
	KindGoogleLogin       Kind = "google_login"
	KindRoleChosen        Kind = "role_chosen"
	KindLogout            Kind = "logout"
	KindTokenRefreshed    Kind = "token_refreshed"
	KindSessionExpired    Kind = "session_expired"
	KindAssessmentCreated Kind = "assessment_created"
	KindQuestionCreated   Kind = "question_created"
)

type Event struct {
	ID         uuid.UUID
	Kind       Kind
	Email      string
	Subject    string
	OccurredAt time.Time
}

type Statistics struct {
	Totals         map[Kind]int64 `json:"totals"`
	Last24h        map[Kind]int64 `json:"last24h"`
	ActiveSessions int            `json:"activeSessions"`
	GeneratedAt    time.Time      `json:"generatedAt"`
}

type Repository interface {
	Insert(ctx context.Context, event Event) error
	// CountByKind counts the events that occurred at or after since.
	// A zero since counts everything.
	CountByKind(ctx context.Context, since time.Time) (map[Kind]int64, error)
	// DeleteBefore removes events older than before and reports how many.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
