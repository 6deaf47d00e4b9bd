package session_test

import (
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"github.com/lexislearn/admin-gateway/internal/config"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type testClaims struct {
	jwt.Claims

	Email string `json:"email,omitempty"`
}

func signToken(t *testing.T, claims testClaims) string {
	t.Helper()

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: testSigningKey}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	require.NoError(t, err)

	return token
}

func expiringIn(d time.Duration) *jwt.NumericDate {
	return jwt.NewNumericDate(time.Now().Add(d))
}

func testSessionConfig() *config.Session {
	return &config.Session{
		AccessTokenCookie: config.CookieTemplate{
			Name: "accessToken", Path: "/", MaxAge: 3600,
			Secure: true, HTTPOnly: true, SameSite: config.CookieSameSiteLax,
		},
		RefreshTokenCookie: config.CookieTemplate{
			Name: "refreshToken", Path: "/", MaxAge: 7 * 24 * 3600,
			Secure: true, HTTPOnly: true, SameSite: config.CookieSameSiteLax,
		},
		SessionIDCookie: config.CookieTemplate{
			Name: "sessionID", Path: "/", MaxAge: 7 * 24 * 3600,
			Secure: true, HTTPOnly: true, SameSite: config.CookieSameSiteLax,
		},
		ProfileCacheTTL: time.Minute,
	}
}
