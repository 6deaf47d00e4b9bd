package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime/strictmiddleware/nethttp"
	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/lexislearn/admin-gateway/internal/config"
	"github.com/lexislearn/admin-gateway/internal/middleware/publicpath"
	"github.com/lexislearn/admin-gateway/internal/serviceerr"
	"github.com/lexislearn/admin-gateway/pkg/apiclient"
	"github.com/lexislearn/admin-gateway/pkg/fingerprint"
)

const maxRequestBodySize = 1 << 20

type route struct {
	pattern     string
	operationID string
	handler     nethttp.StrictHTTPHandlerFunc
}

func (g *Gateway) routes() []route {
	return []route{
		{"POST /api/auth/sign-in", "SignIn", g.signIn},
		{"POST /api/auth/sign-up", "SignUp", g.signUp},
		{"POST /api/auth/verify-otp", "VerifyOTP", g.verifyOTP},
		{"POST /api/auth/resend-otp", "ResendOTP", g.resendOTP},
		{"POST /api/auth/google-login", "GoogleLogin", g.googleLogin},
		{"POST /api/auth/choose-role", "ChooseRole", g.chooseRole},
		{"POST /api/auth/logout", "Logout", g.logout},
		{"POST " + apiclient.DefaultRefreshPath, "RefreshToken", g.refreshToken},
		{"POST /api/admin/assessment-test-creation", "CreateAssessment", g.createAssessment},
		{"GET /api/admin/assessment-tests-getting", "ListAssessments", g.listAssessments},
		{"POST /api/admin/assessment/{testId}/questions", "CreateQuestion", g.createQuestion},
		{"GET /api/admin/assessment/{testId}/questions-answers-getting", "ListQuestions", g.listQuestions},
		{"GET /api/admin/statistics", "Statistics", g.statistics},
	}
}

// strictHandler adapts a strict handler to net/http: it reads the request
// body, runs the handler through the middlewares and writes its response.
func strictHandler(f nethttp.StrictHTTPHandlerFunc, operationID string, middlewares []nethttp.StrictHTTPMiddlewareFunc) http.HandlerFunc {
	for _, mw := range middlewares {
		f = mw(f, operationID)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
		if err != nil {
			writeError(ctx, w, serviceerr.ErrInvalidRequest.WithDescription("Invalid request body"))
			return
		}

		var request any
		if len(body) > 0 {
			request = json.RawMessage(body)
		}

		resp, err := f(ctx, w, r, request)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		visitor, ok := resp.(interface{ visit(http.ResponseWriter) error })
		if !ok {
			writeError(ctx, w, serviceerr.ErrUnknown.WithDescription("unexpected response type"))
			return
		}

		if err := visitor.visit(w); err != nil {
			slogctx.Error(ctx, "Failed to write the response", "error", err)
		}
	}
}

// createHTTPServer creates the gateway http server using the given config
func createHTTPServer(_ context.Context, cfg *config.Config, gw *Gateway) *http.Server {
	middlewares := []nethttp.StrictHTTPMiddlewareFunc{
		newTraceMiddleware(cfg),
	}

	mux := http.NewServeMux()
	mux.Handle("GET /ping", strictHandler(ping, "Ping", middlewares))
	for _, rt := range gw.routes() {
		mux.Handle(rt.pattern, strictHandler(rt.handler, rt.operationID, middlewares))
	}

	var handler http.Handler = mux
	handler = publicpath.Middleware(gw.sessions.AccessTokenCookieName(), cfg.Session.PublicPaths)(handler)
	handler = fingerprint.FingerprintCtxMiddleware(handler)

	return &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: handler,
	}
}

// StartHTTPServer starts the gateway http server using the given config.
func StartHTTPServer(ctx context.Context, cfg *config.Config, gw *Gateway) error {
	if err := initMeters(ctx, cfg); err != nil {
		return err
	}

	server := createHTTPServer(ctx, cfg, gw)

	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	// Parse network if the address if provided in the format of network://address.
	// Otherwise use tcp network by default. Some integration tests are easier to implement
	// by binding a listener to a unix socket rather than a TCP port.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
		}

		slogctx.Info(ctx, "Stopped an HTTP server")
	}()

	<-ctx.Done()

	shutdownCtx, shutdownRelease := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}
