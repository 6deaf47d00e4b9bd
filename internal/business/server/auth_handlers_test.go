package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexislearn/admin-gateway/internal/activity"
	"github.com/lexislearn/admin-gateway/internal/backend"
	"github.com/lexislearn/admin-gateway/internal/config"
	sessionmock "github.com/lexislearn/admin-gateway/internal/session/mock"
)

const signInData = `{"data":{"accessToken":"access-1","refreshToken":"refresh-1","role":"ADMIN","fullName":"Ada"},"message":"Login successful"}`

func TestSignIn(t *testing.T) {
	tests := []struct {
		name        string
		upstream    http.HandlerFunc
		wantStatus  int
		wantCookies []string
		wantKinds   []activity.Kind
		wantMessage string
	}{
		{
			name:        "Success sets the session cookies",
			upstream:    reply(http.StatusOK, signInData),
			wantStatus:  http.StatusOK,
			wantCookies: []string{"accessToken", "refreshToken", "sessionID"},
			wantKinds:   []activity.Kind{activity.KindSignIn},
			wantMessage: "Login successful",
		},
		{
			name:        "Rejected credentials are relayed",
			upstream:    reply(http.StatusUnauthorized, `{"message":"Invalid credentials"}`),
			wantStatus:  http.StatusUnauthorized,
			wantKinds:   []activity.Kind{activity.KindSignInFailed},
			wantMessage: "Invalid credentials",
		},
		{
			name:        "Success without tokens",
			upstream:    reply(http.StatusOK, `{"data":{"role":"ADMIN"}}`),
			wantStatus:  http.StatusInternalServerError,
			wantKinds:   []activity.Kind{},
			wantMessage: "backend sign-in response carries no tokens",
		},
		{
			name:        "Non JSON upstream",
			upstream:    reply(http.StatusOK, `<html>`),
			wantStatus:  http.StatusInternalServerError,
			wantKinds:   []activity.Kind{},
			wantMessage: "backend answered POST /auth/sign-in with a non-JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, be := newFakeBackend(t, map[string]http.HandlerFunc{"POST /auth/sign-in": tt.upstream})
			tg := newTestGateway(t, be)

			rec := tg.serve(newRequest(http.MethodPost, "/api/auth/sign-in", `{"email":"ada@example.com","password":"secret"}`))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMessage, decodeBody(t, rec)["message"])
			assert.Equal(t, tt.wantKinds, eventKinds(tg.events.Events()))

			cookies := responseCookies(rec)
			assert.Len(t, cookies, len(tt.wantCookies))
			for _, name := range tt.wantCookies {
				assert.Contains(t, cookies, name)
			}

			calls := fb.Calls()
			require.Len(t, calls, 1)
			assert.JSONEq(t, `{"email":"ada@example.com","password":"secret"}`, calls[0].Body)
		})
	}
}

func TestSignIn_Profile(t *testing.T) {
	_, be := newFakeBackend(t, map[string]http.HandlerFunc{"POST /auth/sign-in": reply(http.StatusOK, signInData)})
	tg := newTestGateway(t, be)

	rec := tg.serve(newRequest(http.MethodPost, "/api/auth/sign-in", `{"email":"ada@example.com","password":"secret"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := responseCookies(rec)
	assert.Equal(t, "access-1", cookies["accessToken"].Value)
	assert.Equal(t, 3600, cookies["accessToken"].MaxAge)
	assert.Equal(t, "refresh-1", cookies["refreshToken"].Value)
	assert.Equal(t, 7*24*3600, cookies["refreshToken"].MaxAge)
	assert.True(t, cookies["refreshToken"].HttpOnly)

	profile, ok := tg.profiles.Get(cookies["sessionID"].Value)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, testFingerprint(t), profile.Fingerprint)
	assert.JSONEq(t, `{"role":"ADMIN","fullName":"Ada"}`, string(profile.Account))
}

func TestSignIn_ReplacesPreviousProfile(t *testing.T) {
	_, be := newFakeBackend(t, map[string]http.HandlerFunc{"POST /auth/sign-in": reply(http.StatusOK, signInData)})
	tg := newTestGateway(t, be, sessionmock.WithProfile(testProfile(t, "old", "old@example.com", "")))

	rec := tg.serve(newRequest(http.MethodPost, "/api/auth/sign-in", `{"email":"ada@example.com"}`,
		&http.Cookie{Name: "sessionID", Value: "old"}))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.False(t, tg.profiles.Has("old"))
	assert.True(t, tg.profiles.Has(responseCookies(rec)["sessionID"].Value))
}

func TestSignIn_BackendUnavailable(t *testing.T) {
	be := backend.NewClient(config.Backend{URL: "http://127.0.0.1:1", Timeout: time.Second})
	tg := newTestGateway(t, be)

	rec := tg.serve(newRequest(http.MethodPost, "/api/auth/sign-in", `{"email":"ada@example.com"}`))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "backend unavailable", decodeBody(t, rec)["message"])
}

func TestSignUp(t *testing.T) {
	tests := []struct {
		name        string
		upstream    http.HandlerFunc
		wantStatus  int
		wantMessage string
		wantPending bool
		wantKinds   []activity.Kind
	}{
		{
			name:        "Success remembers the email",
			upstream:    reply(http.StatusCreated, `{"message":"Check your inbox"}`),
			wantStatus:  http.StatusCreated,
			wantMessage: "Check your inbox",
			wantPending: true,
			wantKinds:   []activity.Kind{activity.KindSignUp},
		},
		{
			name:        "Validation messages are joined",
			upstream:    reply(http.StatusBadRequest, `{"messages":["email is invalid","password is too short"]}`),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "email is invalid, password is too short",
			wantKinds:   []activity.Kind{},
		},
		{
			name:        "Failure without message",
			upstream:    reply(http.StatusConflict, `{}`),
			wantStatus:  http.StatusConflict,
			wantMessage: "Register failed",
			wantKinds:   []activity.Kind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, be := newFakeBackend(t, map[string]http.HandlerFunc{"POST /auth/sign-up": tt.upstream})
			tg := newTestGateway(t, be)

			rec := tg.serve(newRequest(http.MethodPost, "/api/auth/sign-up", `{"email":"new@example.com","password":"secret"}`))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMessage, decodeBody(t, rec)["message"])
			assert.Equal(t, tt.wantKinds, eventKinds(tg.events.Events()))

			idCookie, ok := responseCookies(rec)["sessionID"]
			if !assert.Equal(t, tt.wantPending, ok) || !ok {
				return
			}

			profile, ok := tg.profiles.Get(idCookie.Value)
			require.True(t, ok)
			assert.Equal(t, "new@example.com", profile.PendingEmail)
		})
	}
}

func TestVerifyOTP(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		withProfile bool
		wantStatus  int
		wantMessage string
		wantForward string
	}{
		{
			name:        "Email and OTP in the body",
			body:        `{"email":"new@example.com","otpInput":"123456"}`,
			wantStatus:  http.StatusOK,
			wantMessage: "Verified",
			wantForward: `{"email":"new@example.com","otpInput":"123456"}`,
		},
		{
			name:        "Email remembered on the profile",
			body:        `{"otpInput":"123456"}`,
			withProfile: true,
			wantStatus:  http.StatusOK,
			wantMessage: "Verified",
			wantForward: `{"email":"pending@example.com","otpInput":"123456"}`,
		},
		{
			name:        "Missing email",
			body:        `{"otpInput":"123456"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Email and OTP are required",
		},
		{
			name:        "Missing OTP",
			body:        `{"email":"new@example.com"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Email and OTP are required",
		},
		{
			name:        "Malformed body",
			body:        `{"email":`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, be := newFakeBackend(t, map[string]http.HandlerFunc{
				"POST /auth/verify-otp": reply(http.StatusOK, `{"message":"Verified"}`),
			})
			tg := newTestGateway(t, be, sessionmock.WithProfile(testProfile(t, "profile-1", "", "pending@example.com")))

			var cookies []*http.Cookie
			if tt.withProfile {
				cookies = append(cookies, &http.Cookie{Name: "sessionID", Value: "profile-1"})
			}

			rec := tg.serve(newRequest(http.MethodPost, "/api/auth/verify-otp", tt.body, cookies...))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMessage, decodeBody(t, rec)["message"])

			calls := fb.Calls()
			if tt.wantForward == "" {
				assert.Empty(t, calls)
				return
			}
			require.Len(t, calls, 1)
			assert.JSONEq(t, tt.wantForward, calls[0].Body)
			assert.Equal(t, []activity.Kind{activity.KindOTPVerified}, eventKinds(tg.events.Events()))
		})
	}
}

func TestResendOTP(t *testing.T) {
	fb, be := newFakeBackend(t, map[string]http.HandlerFunc{
		"POST /auth/resend-otp": reply(http.StatusOK, `{"message":"Sent"}`),
	})
	tg := newTestGateway(t, be, sessionmock.WithProfile(testProfile(t, "profile-1", "", "pending@example.com")))

	rec := tg.serve(newRequest(http.MethodPost, "/api/auth/resend-otp", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email is required", decodeBody(t, rec)["message"])

	rec = tg.serve(newRequest(http.MethodPost, "/api/auth/resend-otp", "", &http.Cookie{Name: "sessionID", Value: "profile-1"}))
	assert.Equal(t, http.StatusOK, rec.Code)

	calls := fb.Calls()
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"email":"pending@example.com"}`, calls[0].Body)
}

func TestGoogleLogin(t *testing.T) {
	_, be := newFakeBackend(t, map[string]http.HandlerFunc{
		"POST /auth/google": reply(http.StatusOK, `{"message":"Choose a role","data":{"newUser":true}}`),
	})
	tg := newTestGateway(t, be)

	rec := tg.serve(newRequest(http.MethodPost, "/api/auth/google-login", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "idToken is required", decodeBody(t, rec)["message"])

	body, err := json.Marshal(map[string]string{"idToken": signIDToken(t, "google@example.com")})
	require.NoError(t, err)

	rec = tg.serve(newRequest(http.MethodPost, "/api/auth/google-login", string(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Choose a role", decodeBody(t, rec)["message"])

	idCookie, ok := responseCookies(rec)["sessionID"]
	require.True(t, ok)

	profile, ok := tg.profiles.Get(idCookie.Value)
	require.True(t, ok)
	assert.Equal(t, "google@example.com", profile.PendingEmail)
	assert.Equal(t, []activity.Kind{activity.KindGoogleLogin}, eventKinds(tg.events.Events()))
}

func TestChooseRole(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		cookies     []*http.Cookie
		upstream    http.HandlerFunc
		wantStatus  int
		wantMessage string
		wantForward string
		wantCookies []string
	}{
		{
			name:        "Missing role",
			body:        `{"email":"google@example.com"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "role is required",
		},
		{
			name:        "Missing email and no profile",
			body:        `{"role":"TEACHER"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "email is missing, please sign in again",
		},
		{
			name:        "Email remembered on the profile",
			body:        `{"role":"TEACHER"}`,
			cookies:     []*http.Cookie{{Name: "sessionID", Value: "profile-1"}},
			upstream:    reply(http.StatusOK, `{"message":"Role saved"}`),
			wantStatus:  http.StatusOK,
			wantMessage: "Role saved",
			wantForward: `{"email":"google@example.com","role":"TEACHER"}`,
		},
		{
			name:        "Backend signs the user in",
			body:        `{"email":"google@example.com","role":"TEACHER"}`,
			upstream:    reply(http.StatusOK, `{"message":"Welcome","data":{"accessToken":"access-1","refreshToken":"refresh-1"}}`),
			wantStatus:  http.StatusOK,
			wantMessage: "Welcome",
			wantForward: `{"email":"google@example.com","role":"TEACHER"}`,
			wantCookies: []string{"accessToken", "refreshToken", "sessionID"},
		},
		{
			name:        "Backend failure is relayed",
			body:        `{"email":"google@example.com","role":"TEACHER"}`,
			upstream:    reply(http.StatusUnprocessableEntity, `{"message":"Unknown role"}`),
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "Unknown role",
			wantForward: `{"email":"google@example.com","role":"TEACHER"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := map[string]http.HandlerFunc{}
			if tt.upstream != nil {
				handlers["POST /auth/choose-role-after-loginGoogle"] = tt.upstream
			}
			fb, be := newFakeBackend(t, handlers)
			tg := newTestGateway(t, be, sessionmock.WithProfile(testProfile(t, "profile-1", "", "google@example.com")))

			rec := tg.serve(newRequest(http.MethodPost, "/api/auth/choose-role", tt.body, tt.cookies...))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMessage, decodeBody(t, rec)["message"])

			cookies := responseCookies(rec)
			assert.Len(t, cookies, len(tt.wantCookies))

			calls := fb.Calls()
			if tt.wantForward == "" {
				assert.Empty(t, calls)
				return
			}
			require.Len(t, calls, 1)
			assert.JSONEq(t, tt.wantForward, calls[0].Body)
		})
	}
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name            string
		upstream        http.HandlerFunc
		wantStatus      int
		wantMessage     string
		wantCleared     bool
		wantProfileGone bool
	}{
		{
			name:            "Backend message",
			upstream:        reply(http.StatusOK, `{"message":"Bye"}`),
			wantStatus:      http.StatusOK,
			wantMessage:     "Bye",
			wantCleared:     true,
			wantProfileGone: true,
		},
		{
			name:            "Fallback message",
			upstream:        reply(http.StatusOK, `{}`),
			wantStatus:      http.StatusOK,
			wantMessage:     "Logout successful",
			wantCleared:     true,
			wantProfileGone: true,
		},
		{
			name:        "Backend failure keeps the session",
			upstream:    reply(http.StatusInternalServerError, `{"message":"Try again"}`),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Try again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, be := newFakeBackend(t, map[string]http.HandlerFunc{"POST /auth/logout": tt.upstream})
			tg := newTestGateway(t, be, sessionmock.WithProfile(testProfile(t, "profile-1", "ada@example.com", "")))

			rec := tg.serve(newRequest(http.MethodPost, "/api/auth/logout", "",
				&http.Cookie{Name: "accessToken", Value: "access-1"},
				&http.Cookie{Name: "refreshToken", Value: "refresh-1"},
				&http.Cookie{Name: "sessionID", Value: "profile-1"},
			))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMessage, decodeBody(t, rec)["message"])
			assert.Equal(t, tt.wantProfileGone, !tg.profiles.Has("profile-1"))

			calls := fb.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, "Bearer access-1", calls[0].Authorization)
			assert.Contains(t, calls[0].Cookie, "refreshToken=refresh-1")

			cookies := responseCookies(rec)
			if !tt.wantCleared {
				assert.Empty(t, cookies)
				return
			}

			for _, name := range []string{"accessToken", "refreshToken", "sessionID"} {
				require.Contains(t, cookies, name)
				assert.Empty(t, cookies[name].Value)
				assert.Negative(t, cookies[name].MaxAge)
				assert.Equal(t, http.SameSiteStrictMode, cookies[name].SameSite)
			}
			assert.Equal(t, []activity.Kind{activity.KindLogout}, eventKinds(tg.events.Events()))
		})
	}
}

func TestRefreshToken(t *testing.T) {
	refreshCookie := &http.Cookie{Name: "refreshToken", Value: "refresh-1"}

	tests := []struct {
		name          string
		cookies       []*http.Cookie
		upstream      http.HandlerFunc
		wantStatus    int
		wantErrorCode any
		wantRedirect  any
		wantAccess    string
		wantRefresh   string
		wantCleared   bool
		wantKinds     []activity.Kind
	}{
		{
			name:        "Rotates both tokens",
			cookies:     []*http.Cookie{refreshCookie},
			upstream:    reply(http.StatusOK, `{"data":{"accessToken":"access-2","refreshToken":"refresh-2"}}`),
			wantStatus:  http.StatusOK,
			wantAccess:  "access-2",
			wantRefresh: "refresh-2",
			wantKinds:   []activity.Kind{activity.KindTokenRefreshed},
		},
		{
			name:       "Keeps the refresh token when none is issued",
			cookies:    []*http.Cookie{refreshCookie},
			upstream:   reply(http.StatusOK, `{"data":{"accessToken":"access-2"}}`),
			wantStatus: http.StatusOK,
			wantAccess: "access-2",
			wantKinds:  []activity.Kind{activity.KindTokenRefreshed},
		},
		{
			name:          "Missing refresh cookie",
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "REFRESH_TOKEN_EXPIRED",
			wantRedirect:  true,
			wantCleared:   true,
			wantKinds:     []activity.Kind{activity.KindSessionExpired},
		},
		{
			name:          "Refresh token rejected",
			cookies:       []*http.Cookie{refreshCookie},
			upstream:      reply(http.StatusUnauthorized, `{"message":"Refresh token expired"}`),
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "REFRESH_TOKEN_EXPIRED",
			wantRedirect:  true,
			wantCleared:   true,
			wantKinds:     []activity.Kind{activity.KindSessionExpired},
		},
		{
			name:          "Refresh token revoked",
			cookies:       []*http.Cookie{refreshCookie},
			upstream:      reply(http.StatusForbidden, `{}`),
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "REFRESH_TOKEN_EXPIRED",
			wantRedirect:  true,
			wantCleared:   true,
			wantKinds:     []activity.Kind{activity.KindSessionExpired},
		},
		{
			name:       "Other failures are relayed",
			cookies:    []*http.Cookie{refreshCookie},
			upstream:   reply(http.StatusServiceUnavailable, `{"message":"Maintenance"}`),
			wantStatus: http.StatusServiceUnavailable,
			wantKinds:  []activity.Kind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := map[string]http.HandlerFunc{}
			if tt.upstream != nil {
				handlers["POST /auth/refresh-token"] = tt.upstream
			}
			fb, be := newFakeBackend(t, handlers)
			tg := newTestGateway(t, be)

			rec := tg.serve(newRequest(http.MethodPost, "/api/auth/refresh-token", "", tt.cookies...))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantErrorCode, body["errorCode"])
			assert.Equal(t, tt.wantRedirect, body["redirectToLogin"])
			assert.Equal(t, tt.wantKinds, eventKinds(tg.events.Events()))
			assert.NotContains(t, rec.Body.String(), "access-2", "tokens never reach the response body")

			if tt.upstream != nil {
				calls := fb.Calls()
				require.Len(t, calls, 1)
				assert.Contains(t, calls[0].Cookie, "refreshToken=refresh-1")
			}

			cookies := responseCookies(rec)
			if tt.wantCleared {
				require.Contains(t, cookies, "accessToken")
				assert.Negative(t, cookies["accessToken"].MaxAge)
				require.Contains(t, cookies, "refreshToken")
				assert.Negative(t, cookies["refreshToken"].MaxAge)
				return
			}

			if tt.wantAccess != "" {
				require.Contains(t, cookies, "accessToken")
				assert.Equal(t, tt.wantAccess, cookies["accessToken"].Value)
			}

			if tt.wantRefresh != "" {
				require.Contains(t, cookies, "refreshToken")
				assert.Equal(t, tt.wantRefresh, cookies["refreshToken"].Value)
			} else {
				assert.NotContains(t, cookies, "refreshToken")
			}
		})
	}
}
