package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/lexislearn/admin-gateway/internal/activity"
	"github.com/lexislearn/admin-gateway/internal/backend"
	"github.com/lexislearn/admin-gateway/internal/serviceerr"
	"github.com/lexislearn/admin-gateway/internal/session"
	"github.com/lexislearn/admin-gateway/pkg/apiclient"
	"github.com/lexislearn/admin-gateway/pkg/fingerprint"
)

// Backend is the upstream API the gateway forwards to.
type Backend interface {
	Do(ctx context.Context, req backend.Request) (*backend.Response, error)
}

// Gateway holds the route handlers. Every handler has the
// nethttp.StrictHTTPHandlerFunc shape and receives the raw JSON request
// body as its request argument.
type Gateway struct {
	backend  Backend
	sessions *session.Manager
	activity *activity.Service
}

func NewGateway(be Backend, sessions *session.Manager, activitySvc *activity.Service) *Gateway {
	return &Gateway{
		backend:  be,
		sessions: sessions,
		activity: activitySvc,
	}
}

type envelope struct {
	Data            any    `json:"data,omitempty"`
	Message         string `json:"message,omitempty"`
	ErrorCode       string `json:"errorCode,omitempty"`
	Status          int    `json:"status,omitempty"`
	RedirectToLogin bool   `json:"redirectToLogin,omitempty"`
}

// response is what the route handlers hand back to the adapter in http_server.go.
type response struct {
	status  int
	body    any
	cookies []*http.Cookie
}

func (r *response) visit(w http.ResponseWriter) error {
	for _, c := range r.cookies {
		http.SetCookie(w, c)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.status)

	return json.NewEncoder(w).Encode(r.body)
}

func jsonResponse(status int, body any, cookies ...*http.Cookie) *response {
	return &response{status: status, body: body, cookies: cookies}
}

func messageResponse(status int, message string, cookies ...*http.Cookie) *response {
	return jsonResponse(status, envelope{Message: message}, cookies...)
}

// relay answers with the backend's status and body unchanged.
func relay(resp *backend.Response, cookies ...*http.Cookie) *response {
	return jsonResponse(resp.StatusCode, resp.Body, cookies...)
}

func tokenExpiredResponse() *response {
	return jsonResponse(http.StatusUnauthorized, envelope{
		ErrorCode: apiclient.ErrorCodeTokenExpired,
		Message:   "Access token expired",
		Status:    http.StatusUnauthorized,
	})
}

func sessionEndedResponse(message string, cookies []*http.Cookie) *response {
	return jsonResponse(http.StatusUnauthorized, envelope{
		ErrorCode:       apiclient.ErrorCodeRefreshTokenExpired,
		Message:         message,
		Status:          http.StatusUnauthorized,
		RedirectToLogin: true,
	}, cookies...)
}

// writeError answers for handler errors. Coded service errors keep their
// status and description, anything else is an opaque 500.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	var svcErr *serviceerr.Error
	if errors.As(err, &svcErr) {
		status = svcErr.HTTPStatus()
		if svcErr.Description != "" {
			message = svcErr.Description
		}
	}

	if status >= http.StatusInternalServerError {
		slogctx.Error(ctx, "Request failed", "error", err)
	} else {
		slogctx.Debug(ctx, "Request rejected", "error", err)
	}

	if err := messageResponse(status, message).visit(w); err != nil {
		slogctx.Error(ctx, "Failed to write the error response", "error", err)
	}
}

func requestBody(request any) json.RawMessage {
	body, _ := request.(json.RawMessage)
	return body
}

// decode reads the request body into v. An empty body leaves v untouched.
func decode(request any, v any) error {
	body := requestBody(request)
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, v); err != nil {
		return serviceerr.ErrInvalidRequest.WithDescription("Invalid request body")
	}

	return nil
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}

	return c.Value
}

func (g *Gateway) accessToken(r *http.Request) string {
	return cookieValue(r, g.sessions.AccessTokenCookieName())
}

// profile returns the server side profile bound to the request's session id
// cookie, if there is a valid one.
func (g *Gateway) profile(ctx context.Context, r *http.Request) (session.Profile, bool) {
	id := cookieValue(r, g.sessions.SessionIDCookieName())
	if id == "" {
		return session.Profile{}, false
	}

	fp, err := fingerprint.ExtractFingerprint(ctx)
	if err != nil {
		slogctx.Warn(ctx, "Request without fingerprint", "error", err)
		return session.Profile{}, false
	}

	p, err := g.sessions.Load(ctx, id, fp)
	if err != nil {
		slogctx.Debug(ctx, "No usable profile", "error", err)
		return session.Profile{}, false
	}

	return p, true
}

// rememberPendingEmail stores the email on the request's profile and returns
// the session id cookie to set. Failures only cost the convenience of not
// having to type the email again, so they are logged and swallowed.
func (g *Gateway) rememberPendingEmail(ctx context.Context, r *http.Request, email string) []*http.Cookie {
	if email == "" {
		return nil
	}

	fp, _ := fingerprint.ExtractFingerprint(ctx)
	id := cookieValue(r, g.sessions.SessionIDCookieName())

	p, err := g.sessions.RememberPendingEmail(ctx, id, fp, email)
	if err != nil {
		slogctx.Error(ctx, "Failed to remember the pending email", "error", err)
		return nil
	}

	c, err := g.sessions.MakeSessionIDCookie(ctx, p.ID)
	if err != nil {
		slogctx.Error(ctx, "Failed to make the session id cookie", "error", err)
		return nil
	}

	return []*http.Cookie{c}
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// tokenCookies turns a token pair into cookies. An empty refresh token keeps
// the current refresh cookie in place.
func (g *Gateway) tokenCookies(ctx context.Context, tokens tokenPair) ([]*http.Cookie, error) {
	access, err := g.sessions.MakeAccessTokenCookie(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	cookies := []*http.Cookie{access}
	if tokens.RefreshToken == "" {
		return cookies, nil
	}

	refresh, err := g.sessions.MakeRefreshTokenCookie(ctx, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}

	return append(cookies, refresh), nil
}

// establish sets up a signed-in session from a backend response whose data
// carries a token pair: token cookies plus a fresh profile.
func (g *Gateway) establish(ctx context.Context, r *http.Request, email string, resp *backend.Response) ([]*http.Cookie, bool, error) {
	var account json.RawMessage
	if err := resp.Data(&account); err != nil {
		return nil, false, nil //nolint:nilerr
	}

	var tokens tokenPair
	if err := json.Unmarshal(account, &tokens); err != nil || tokens.AccessToken == "" {
		return nil, false, nil //nolint:nilerr
	}

	if tokens.RefreshToken == "" {
		return nil, false, serviceerr.ErrUnknown.WithDescription("backend issued an access token without a refresh token")
	}

	cookies, err := g.tokenCookies(ctx, tokens)
	if err != nil {
		return nil, false, err
	}

	if old := cookieValue(r, g.sessions.SessionIDCookieName()); old != "" {
		if err := g.sessions.End(ctx, old); err != nil {
			slogctx.Warn(ctx, "Failed to end the previous profile", "error", err)
		}
	}

	fp, _ := fingerprint.ExtractFingerprint(ctx)

	profile, err := g.sessions.Begin(ctx, fp, email, withoutTokens(account))
	if err != nil {
		slogctx.Error(ctx, "Failed to create the profile", "error", err)
		return cookies, true, nil
	}

	idCookie, err := g.sessions.MakeSessionIDCookie(ctx, profile.ID)
	if err != nil {
		return nil, false, err
	}

	return append(cookies, idCookie), true, nil
}

// withoutTokens drops the token members from an account object so that
// they never reach the profile store.
func withoutTokens(account json.RawMessage) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(account, &fields); err != nil {
		return nil
	}

	delete(fields, "accessToken")
	delete(fields, "refreshToken")

	b, err := json.Marshal(fields)
	if err != nil {
		return nil
	}

	return b
}
