package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	slogctx "github.com/veqryn/slog-context"

	"github.com/lexislearn/admin-gateway/internal/config"
	"github.com/lexislearn/admin-gateway/internal/serviceerr"
)

const defaultProfileLifetime = 7 * 24 * time.Hour

type Manager struct {
	profiles Repository
	cache    *cache.Cache

	accessTokenCookie  config.CookieTemplate
	refreshTokenCookie config.CookieTemplate
	sessionIDCookie    config.CookieTemplate

	profileLifetime time.Duration
	now             func() time.Time
}

func NewManager(cfg *config.Session, profiles Repository) *Manager {
	lifetime := time.Duration(cfg.RefreshTokenCookie.MaxAge) * time.Second
	if lifetime <= 0 {
		lifetime = defaultProfileLifetime
	}

	var profileCache *cache.Cache
	if cfg.ProfileCacheTTL > 0 {
		profileCache = cache.New(cfg.ProfileCacheTTL, 2*cfg.ProfileCacheTTL)
	}

	return &Manager{
		profiles:           profiles,
		cache:              profileCache,
		accessTokenCookie:  cfg.AccessTokenCookie,
		refreshTokenCookie: cfg.RefreshTokenCookie,
		sessionIDCookie:    cfg.SessionIDCookie,
		profileLifetime:    lifetime,
		now:                time.Now,
	}
}

// Begin creates the profile of a freshly signed-in user.
func (m *Manager) Begin(ctx context.Context, fingerprint, email string, account json.RawMessage) (Profile, error) {
	profile := Profile{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Email:       email,
		Account:     account,
		Expiry:      m.now().Add(m.profileLifetime),
	}

	if err := m.store(ctx, profile); err != nil {
		return Profile{}, err
	}

	slogctx.Debug(ctx, "Profile created", "profileID", profile.ID)

	return profile, nil
}

// Load returns the profile bound to the given id. The fingerprint must match
// the one the profile was created with.
func (m *Manager) Load(ctx context.Context, id, fingerprint string) (Profile, error) {
	if id == "" {
		return Profile{}, serviceerr.ErrNotFound.WithDescription("no profile id")
	}

	profile, err := m.load(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	if !profile.Expiry.After(m.now()) {
		m.forget(id)
		return Profile{}, serviceerr.ErrNotFound.WithDescription("profile expired")
	}

	if profile.Fingerprint != fingerprint {
		slogctx.Warn(ctx, "Profile fingerprint mismatch", "profileID", id)
		return Profile{}, serviceerr.ErrFingerprintMismatch
	}

	return profile, nil
}

// RememberPendingEmail stores the email awaiting verification on the
// profile with the given id, creating a new profile when there is none.
func (m *Manager) RememberPendingEmail(ctx context.Context, id, fingerprint, email string) (Profile, error) {
	profile, err := m.Load(ctx, id, fingerprint)
	switch {
	case err == nil:
	case errors.Is(err, serviceerr.ErrNotFound), errors.Is(err, serviceerr.ErrFingerprintMismatch):
		profile = Profile{
			ID:          uuid.NewString(),
			Fingerprint: fingerprint,
			Expiry:      m.now().Add(m.profileLifetime),
		}
	default:
		return Profile{}, err
	}

	profile.PendingEmail = email
	if err := m.store(ctx, profile); err != nil {
		return Profile{}, err
	}

	return profile, nil
}

// End removes the profile. Ending an unknown profile is not an error.
func (m *Manager) End(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	m.forget(id)

	err := m.profiles.DeleteProfile(ctx, id)
	if err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		return fmt.Errorf("deleting profile: %w", err)
	}

	return nil
}

// ActiveProfiles counts the profiles that have not expired yet.
func (m *Manager) ActiveProfiles(ctx context.Context) (int, error) {
	profiles, err := m.profiles.ListProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing profiles: %w", err)
	}

	now := m.now()
	active := 0
	for _, p := range profiles {
		if p.Expiry.After(now) {
			active++
		}
	}

	return active, nil
}

func (m *Manager) load(ctx context.Context, id string) (Profile, error) {
	if m.cache != nil {
		if cached, ok := m.cache.Get(id); ok {
			if profile, ok := cached.(Profile); ok {
				return profile, nil
			}
		}
	}

	profile, err := m.profiles.LoadProfile(ctx, id)
	if err != nil {
		return Profile{}, fmt.Errorf("loading profile: %w", err)
	}

	m.remember(profile)

	return profile, nil
}

func (m *Manager) store(ctx context.Context, profile Profile) error {
	if err := m.profiles.StoreProfile(ctx, profile); err != nil {
		return fmt.Errorf("storing profile: %w", err)
	}

	m.remember(profile)

	return nil
}

// The cache is per process: a profile ended on another replica stays
// visible here for up to the cache TTL.
func (m *Manager) remember(profile Profile) {
	if m.cache != nil {
		m.cache.Set(profile.ID, profile, cache.DefaultExpiration)
	}
}

func (m *Manager) forget(id string) {
	if m.cache != nil {
		m.cache.Delete(id)
	}
}
