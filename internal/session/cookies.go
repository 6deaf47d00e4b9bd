package session

import (
	"context"
	"fmt"
	"net/http"

	slogctx "github.com/veqryn/slog-context"
)

func (m *Manager) AccessTokenCookieName() string  { return m.accessTokenCookie.Name }
func (m *Manager) RefreshTokenCookieName() string { return m.refreshTokenCookie.Name }
func (m *Manager) SessionIDCookieName() string    { return m.sessionIDCookie.Name }

// MakeAccessTokenCookie never lets the cookie outlive the token it carries
// when the token is a JWT with an exp claim.
func (m *Manager) MakeAccessTokenCookie(ctx context.Context, token string) (*http.Cookie, error) {
	c := m.accessTokenCookie.ToCookie(token)

	if exp, err := TokenExpiry(token); err == nil {
		remaining := int(exp.Sub(m.now()).Seconds())
		if remaining > 0 && (c.MaxAge <= 0 || remaining < c.MaxAge) {
			c.MaxAge = remaining
		}
	} else {
		slogctx.Debug(ctx, "Access token expiry unknown, using the configured max age", "error", err)
	}

	return validated(ctx, c, "Access token")
}

func (m *Manager) MakeRefreshTokenCookie(ctx context.Context, token string) (*http.Cookie, error) {
	return validated(ctx, m.refreshTokenCookie.ToCookie(token), "Refresh token")
}

func (m *Manager) MakeSessionIDCookie(ctx context.Context, id string) (*http.Cookie, error) {
	return validated(ctx, m.sessionIDCookie.ToCookie(id), "Session ID")
}

// ClearCookies returns cookies that drop every session cookie from the browser.
func (m *Manager) ClearCookies() []*http.Cookie {
	cookies := []*http.Cookie{
		m.accessTokenCookie.ToExpiredCookie(),
		m.refreshTokenCookie.ToExpiredCookie(),
		m.sessionIDCookie.ToExpiredCookie(),
	}

	for _, c := range cookies {
		c.SameSite = http.SameSiteStrictMode
	}

	return cookies
}

func validated(ctx context.Context, c *http.Cookie, kind string) (*http.Cookie, error) {
	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("invalid %s cookie: %w", kind, err)
	}

	if !c.Secure {
		slogctx.Warn(ctx, kind+" cookie is not marked as Secure; this is not recommended in production environments")
	}
	if !c.HttpOnly {
		slogctx.Warn(ctx, kind+" cookie is not marked as HttpOnly; this is not recommended in production environments")
	}

	return c, nil
}
