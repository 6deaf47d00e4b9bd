package server

import (
	"context"
	"net/http"

	slogctx "github.com/veqryn/slog-context"
)

// ping answers liveness probes of load balancers in front of the gateway.
// It goes through the same tracing middleware as every other route.
func ping(ctx context.Context, _ http.ResponseWriter, r *http.Request, _ any) (any, error) {
	slogctx.Debug(ctx, "Ping", "remoteAddr", r.RemoteAddr)

	return jsonResponse(http.StatusOK, map[string]string{"result": "ping"}), nil
}
