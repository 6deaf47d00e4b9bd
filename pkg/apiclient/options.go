package apiclient

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/metric"

	slogctx "github.com/veqryn/slog-context"
)

// SessionExpiredHandler takes the user back to the sign-in entry point once
// the session cannot be recovered. The client has already ended its
// Session when the handler runs.
type SessionExpiredHandler interface {
	SessionExpired(ctx context.Context)
}

type SessionExpiredFunc func(ctx context.Context)

func (f SessionExpiredFunc) SessionExpired(ctx context.Context) { f(ctx) }

// Notifier shows a message to the user.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

type NotifierFunc func(ctx context.Context, message string)

func (f NotifierFunc) Notify(ctx context.Context, message string) { f(ctx, message) }

type logNotifier struct{}

func (logNotifier) Notify(ctx context.Context, message string) {
	slogctx.Warn(ctx, "API client notification", "message", message)
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSession makes the client send and update the given session.
func WithSession(session *Session) Option {
	return func(c *Client) {
		c.session = session
	}
}

func WithSessionExpiredHandler(h SessionExpiredHandler) Option {
	return func(c *Client) {
		c.onExpired = h
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithRefreshPath overrides DefaultRefreshPath.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithoutRefreshCoalescing makes every invocation that sees an expired
// access token issue its own refresh call, even when another one is
// already in flight.
func WithoutRefreshCoalescing() Option {
	return func(c *Client) {
		c.coalesce = false
	}
}

func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *Client) {
		c.meterProvider = provider
	}
}
