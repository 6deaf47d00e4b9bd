package server

import (
	"cmp"
	"context"
	"encoding/json"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/lexislearn/admin-gateway/internal/activity"
	"github.com/lexislearn/admin-gateway/internal/backend"
	"github.com/lexislearn/admin-gateway/internal/serviceerr"
	"github.com/lexislearn/admin-gateway/internal/session"
)

type emailBody struct {
	Email string `json:"email"`
}

func (g *Gateway) signIn(ctx context.Context, _ http.ResponseWriter, r *http.Request, request any) (any, error) {
	var body emailBody
	if err := decode(request, &body); err != nil {
		return nil, err
	}

	resp, err := g.backend.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/auth/sign-in",
		Body:   requestBody(request),
	})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		g.activity.Record(ctx, activity.KindSignInFailed, body.Email, "")
		return relay(resp), nil
	}

	cookies, ok, err := g.establish(ctx, r, body.Email, resp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serviceerr.ErrUnknown.WithDescription("backend sign-in response carries no tokens")
	}

	g.activity.Record(ctx, activity.KindSignIn, body.Email, "")

	return relay(resp, cookies...), nil
}

func (g *Gateway) signUp(ctx context.Context, _ http.ResponseWriter, r *http.Request, request any) (any, error) {
	var body emailBody
	if err := decode(request, &body); err != nil {
		return nil, err
	}

	resp, err := g.backend.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/auth/sign-up",
		Body:   requestBody(request),
	})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return messageResponse(resp.StatusCode, cmp.Or(resp.Message(), "Register failed")), nil
	}

	cookies := g.rememberPendingEmail(ctx, r, body.Email)
	g.activity.Record(ctx, activity.KindSignUp, body.Email, "")

	return relay(resp, cookies...), nil
}

// pendingEmail falls back to the email remembered on the profile when the
// request does not name one.
func (g *Gateway) pendingEmail(ctx context.Context, r *http.Request, email string) string {
	if email != "" {
		return email
	}

	if p, ok := g.profile(ctx, r); ok {
		return p.PendingEmail
	}

	return ""
}

func (g *Gateway) verifyOTP(ctx context.Context, _ http.ResponseWriter, r *http.Request, request any) (any, error) {
	var body struct {
		Email    string `json:"email"`
		OTPInput string `json:"otpInput"`
	}
	if err := decode(request, &body); err != nil {
		return nil, err
	}

	body.Email = g.pendingEmail(ctx, r, body.Email)
	if body.Email == "" || body.OTPInput == "" {
		return messageResponse(http.StatusBadRequest, "Email and OTP are required"), nil
	}

	forward, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := g.backend.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/auth/verify-otp",
		Body:   forward,
	})
	if err != nil {
		return nil, err
	}

	if resp.OK() {
		g.activity.Record(ctx, activity.KindOTPVerified, body.Email, "")
	}

	return relay(resp), nil
}

func (g *Gateway) resendOTP(ctx context.Context, _ http.ResponseWriter, r *http.Request, request any) (any, error) {
	var body emailBody
	if err := decode(request, &body); err != nil {
		return nil, err
	}

	body.Email = g.pendingEmail(ctx, r, body.Email)
	if body.Email == "" {
		return messageResponse(http.StatusBadRequest, "Email is required"), nil
	}

	forward, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := g.backend.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/auth/resend-otp",
		Body:   forward,
	})
	if err != nil {
		return nil, err
	}

	return relay(resp), nil
}

func (g *Gateway) googleLogin(ctx context.Context, _ http.ResponseWriter, r *http.Request, request any) (any, error) {
	var body struct {
		IDToken string `json:"idToken"`
	}
	if err := decode(request, &body); err != nil {
		return nil, err
	}

	if body.IDToken == "" {
		return messageResponse(http.StatusBadRequest, "idToken is required"), nil
	}

	resp, err := g.backend.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/auth/google",
		Body:   requestBody(request),
	})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return relay(resp), nil
	}

	email, err := session.EmailFromIDToken(body.IDToken)
	if err != nil {
		slogctx.Warn(ctx, "Cannot read the email of the Google id token", "error", err)
	}

	g.activity.Record(ctx, activity.KindGoogleLogin, email, "")

	return relay(resp, g.rememberPendingEmail(ctx, r, email)...), nil
}

func (g *Gateway) chooseRole(ctx context.Context, _ http.ResponseWriter, r *http.Request, request any) (any, error) {
	var body struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decode(request, &body); err != nil {
		return nil, err
	}

	if body.Role == "" {
		return messageResponse(http.StatusBadRequest, "role is required"), nil
	}

	body.Email = g.pendingEmail(ctx, r, body.Email)
	if body.Email == "" {
		return messageResponse(http.StatusBadRequest, "email is missing, please sign in again"), nil
	}

	forward, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := g.backend.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/auth/choose-role-after-loginGoogle",
		Body:   forward,
	})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return relay(resp), nil
	}

	// Some backend versions sign the user in right away.
	cookies, _, err := g.establish(ctx, r, body.Email, resp)
	if err != nil {
		return nil, err
	}

	g.activity.Record(ctx, activity.KindRoleChosen, body.Email, body.Role)

	return relay(resp, cookies...), nil
}

func (g *Gateway) logout(ctx context.Context, _ http.ResponseWriter, r *http.Request, _ any) (any, error) {
	resp, err := g.backend.Do(ctx, backend.Request{
		Method:      http.MethodPost,
		Path:        "/auth/logout",
		AccessToken: g.accessToken(r),
		Cookie:      r.Header.Get("Cookie"),
	})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return relay(resp), nil
	}

	email := ""
	if p, ok := g.profile(ctx, r); ok {
		email = p.Email
	}

	if err := g.sessions.End(ctx, cookieValue(r, g.sessions.SessionIDCookieName())); err != nil {
		slogctx.Error(ctx, "Failed to end the profile", "error", err)
	}

	g.activity.Record(ctx, activity.KindLogout, email, "")

	return messageResponse(http.StatusOK, cmp.Or(resp.Message(), "Logout successful"), g.sessions.ClearCookies()...), nil
}

// refreshToken exchanges the refresh cookie for a new token pair. Every
// failure that means the refresh token is gone is reported with
// REFRESH_TOKEN_EXPIRED so that clients end the session instead of retrying.
func (g *Gateway) refreshToken(ctx context.Context, _ http.ResponseWriter, r *http.Request, _ any) (any, error) {
	if cookieValue(r, g.sessions.RefreshTokenCookieName()) == "" {
		return g.endSession(ctx, r, "Refresh token not found"), nil
	}

	resp, err := g.backend.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh-token",
		Cookie: r.Header.Get("Cookie"),
	})
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return g.endSession(ctx, r, cmp.Or(resp.Message(), "Refresh token expired")), nil
	case !resp.OK():
		return relay(resp), nil
	}

	var tokens tokenPair
	if err := resp.Data(&tokens); err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, serviceerr.ErrUnknown.WithDescription("backend refresh response carries no access token")
	}

	cookies, err := g.tokenCookies(ctx, tokens)
	if err != nil {
		return nil, err
	}

	email := ""
	if p, ok := g.profile(ctx, r); ok {
		email = p.Email
	}
	g.activity.Record(ctx, activity.KindTokenRefreshed, email, "")

	return messageResponse(http.StatusOK, cmp.Or(resp.Message(), "Token refreshed"), cookies...), nil
}

func (g *Gateway) endSession(ctx context.Context, r *http.Request, message string) *response {
	email := ""
	if p, ok := g.profile(ctx, r); ok {
		email = p.Email
	}

	if err := g.sessions.End(ctx, cookieValue(r, g.sessions.SessionIDCookieName())); err != nil {
		slogctx.Error(ctx, "Failed to end the profile", "error", err)
	}

	g.activity.Record(ctx, activity.KindSessionExpired, email, "")

	return sessionEndedResponse(message, g.sessions.ClearCookies())
}
