package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/require"

	"github.com/lexislearn/admin-gateway/internal/activity"
	activitymock "github.com/lexislearn/admin-gateway/internal/activity/mock"
	"github.com/lexislearn/admin-gateway/internal/backend"
	"github.com/lexislearn/admin-gateway/internal/config"
	"github.com/lexislearn/admin-gateway/internal/session"
	sessionmock "github.com/lexislearn/admin-gateway/internal/session/mock"
	"github.com/lexislearn/admin-gateway/pkg/fingerprint"
)

const testUserAgent = "gateway-test"

// upstreamCall is what the fake backend saw.
type upstreamCall struct {
	Method        string
	Path          string
	Authorization string
	Cookie        string
	Body          string
}

// fakeBackend answers "METHOD /path" keys with canned handlers and records
// every call it receives.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []upstreamCall
	handlers map[string]http.HandlerFunc
}

func newFakeBackend(t *testing.T, handlers map[string]http.HandlerFunc) (*fakeBackend, *backend.Client) {
	t.Helper()

	fb := &fakeBackend{handlers: handlers}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	return fb, backend.NewClient(config.Backend{URL: srv.URL, Timeout: 5 * time.Second})
}

func (fb *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	fb.mu.Lock()
	fb.calls = append(fb.calls, upstreamCall{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Cookie:        r.Header.Get("Cookie"),
		Body:          string(body),
	})
	h, ok := fb.handlers[r.Method+" "+r.URL.Path]
	fb.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such route"}`))
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	h(w, r)
}

func (fb *fakeBackend) Calls() []upstreamCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	return append([]upstreamCall(nil), fb.calls...)
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

type testGateway struct {
	handler  http.Handler
	profiles *sessionmock.Repository
	events   *activitymock.Repository
	sessions *session.Manager
}

func testConfig() *config.Config {
	template := func(name string, maxAge int) config.CookieTemplate {
		return config.CookieTemplate{
			Name: name, Path: "/", MaxAge: maxAge,
			HTTPOnly: true, SameSite: config.CookieSameSiteLax,
		}
	}

	return &config.Config{
		BaseConfig: commoncfg.BaseConfig{
			Application: commoncfg.Application{Name: "test-app"},
		},
		HTTP: config.HTTPServer{Address: "localhost:0", ShutdownTimeout: time.Second},
		Session: config.Session{
			AccessTokenCookie:  template("accessToken", 3600),
			RefreshTokenCookie: template("refreshToken", 7*24*3600),
			SessionIDCookie:    template("sessionID", 7*24*3600),
			ProfileCacheTTL:    time.Minute,
			PublicPaths:        []string{"/sign-in", "/sign-up", "/landing"},
		},
	}
}

func newTestGateway(t *testing.T, be Backend, profileOpts ...sessionmock.RepositoryOption) *testGateway {
	t.Helper()

	cfg := testConfig()
	require.NoError(t, initMeters(t.Context(), cfg))

	profiles := sessionmock.NewInMemRepository(profileOpts...)
	events := activitymock.NewInMemRepository()
	sessions := session.NewManager(&cfg.Session, profiles)

	gw := NewGateway(be, sessions, activity.NewService(events))

	return &testGateway{
		handler:  createHTTPServer(t.Context(), cfg, gw).Handler,
		profiles: profiles,
		events:   events,
		sessions: sessions,
	}
}

func newRequest(method, path, body string, cookies ...*http.Cookie) *http.Request {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("User-Agent", testUserAgent)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	return req
}

func (tg *testGateway) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	tg.handler.ServeHTTP(rec, req)

	return rec
}

// testFingerprint is the fingerprint of every request built by newRequest.
func testFingerprint(t *testing.T) string {
	t.Helper()

	fp, err := fingerprint.FromHTTPRequest(newRequest(http.MethodGet, "/", ""))
	require.NoError(t, err)

	return fp
}

func testProfile(t *testing.T, id, email, pendingEmail string) session.Profile {
	t.Helper()

	return session.Profile{
		ID:           id,
		Fingerprint:  testFingerprint(t),
		Email:        email,
		PendingEmail: pendingEmail,
		Expiry:       time.Now().Add(time.Hour),
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())

	return body
}

func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	cookies := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}

	return cookies
}

func eventKinds(events []activity.Event) []activity.Kind {
	kinds := make([]activity.Kind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}

	return kinds
}

func signIDToken(t *testing.T, email string) string {
	t.Helper()

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte("0123456789abcdef0123456789abcdef")},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	claims := struct {
		jwt.Claims

		Email string `json:"email"`
	}{
		Claims: jwt.Claims{Expiry: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Email:  email,
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	require.NoError(t, err)

	return token
}
