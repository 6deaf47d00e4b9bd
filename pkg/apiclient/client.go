// Package apiclient issues authenticated requests against the admin gateway.
//
// Every request carries the session cookies. A 401 answered with the
// TOKEN_EXPIRED error code triggers one call to the refresh endpoint and,
// if that succeeds, exactly one retry of the original request. A refresh
// rejected with REFRESH_TOKEN_EXPIRED (or redirectToLogin) ends the session
// and hands control to the SessionExpiredHandler. The client never refreshes
// twice within one invocation.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	slogctx "github.com/veqryn/slog-context"
)

const defaultTimeout = 30 * time.Second

// Kind tells the caller which terminal state an invocation ended in.
type Kind int

const (
	// Success carries the parsed envelope of a 2xx response.
	Success Kind = iota
	// TerminalRedirect means the session is gone and the user was sent
	// to the sign-in entry point. There is no envelope.
	TerminalRedirect
	// RefreshFailed means the refresh call failed for a reason other than
	// an expired refresh token. The user has been notified. There is no envelope.
	RefreshFailed
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case TerminalRedirect:
		return "terminal_redirect"
	case RefreshFailed:
		return "refresh_failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Outcome struct {
	Kind       Kind
	StatusCode int
	Envelope   Envelope
}

// Request describes one logical call. Path is resolved against the base
// URL unless it is absolute. Session cookies are only sent to and taken
// from the base URL's origin.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// JSONRequest marshals body into a Request. A nil body sends no payload.
func JSONRequest(method, path string, body any) (Request, error) {
	req := Request{Method: method, Path: path}
	if body == nil {
		return req, nil
	}

	b, err := json.Marshal(body)
	if err != nil {
		return Request{}, fmt.Errorf("encoding request body: %w", err)
	}

	req.Body = b

	return req, nil
}

type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	session       *Session
	onExpired     SessionExpiredHandler
	notifier      Notifier
	refreshPath   string
	coalesce      bool
	meterProvider metric.MeterProvider

	refreshes singleflight.Group
	metrics   *metrics
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
		session:       NewSession(),
		onExpired:     SessionExpiredFunc(func(context.Context) {}),
		notifier:      logNotifier{},
		refreshPath:   DefaultRefreshPath,
		coalesce:      true,
		meterProvider: otel.GetMeterProvider(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.metrics, err = newMetrics(c.meterProvider)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) Session() *Session {
	return c.session
}

// Do performs one logical request. Errors are also passed to the notifier.
// TerminalRedirect and RefreshFailed outcomes are returned with a nil error.
func (c *Client) Do(ctx context.Context, req Request) (Outcome, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	ctx = slogctx.With(ctx, "method", req.Method, "path", req.Path)

	outcome, err := c.do(ctx, req)
	if err != nil {
		c.metrics.request(ctx, "error")
		slogctx.Error(ctx, "API call error", "error", err)
		c.notifier.Notify(ctx, userMessage(err))

		return Outcome{}, err
	}

	c.metrics.request(ctx, outcome.Kind.String())

	return outcome, nil
}

func (c *Client) do(ctx context.Context, req Request) (Outcome, error) {
	status, env, err := c.send(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	if status == http.StatusUnauthorized && env.tokenExpired() {
		return c.recoverExpired(ctx, req)
	}

	if !isOK(status) {
		return Outcome{}, newError(status, env, fallbackMessage)
	}

	return Outcome{Kind: Success, StatusCode: status, Envelope: env}, nil
}

func (c *Client) recoverExpired(ctx context.Context, req Request) (Outcome, error) {
	slogctx.Debug(ctx, "Access token expired, refreshing")

	refreshed, err := c.refresh(ctx)
	if err != nil {
		return Outcome{}, err
	}

	if refreshed.Kind != Success {
		return refreshed, nil
	}

	status, env, err := c.send(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	if !isOK(status) {
		return Outcome{}, newError(status, env, fallbackMessageAfterRefresh)
	}

	return Outcome{Kind: Success, StatusCode: status, Envelope: env}, nil
}

// refresh calls the refresh endpoint, sharing one in-flight call between
// concurrent invocations when coalescing is enabled.
func (c *Client) refresh(ctx context.Context) (Outcome, error) {
	if !c.coalesce {
		return c.refreshOnce(ctx)
	}

	// The shared call outlives whichever caller started it; each caller
	// still stops waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		return c.refreshOnce(shared)
	})

	select {
	case <-ctx.Done():
		return Outcome{}, fmt.Errorf("refreshing session: %w", ctx.Err())
	case res := <-ch:
		if res.Shared {
			slogctx.Debug(ctx, "Joined an in-flight token refresh")
		}

		if res.Err != nil {
			return Outcome{}, res.Err
		}

		return res.Val.(Outcome), nil
	}
}

func (c *Client) refreshOnce(ctx context.Context) (Outcome, error) {
	status, env, err := c.send(ctx, Request{Method: http.MethodPost, Path: c.refreshPath})
	if err != nil {
		c.metrics.refresh(ctx, "error")
		return Outcome{}, fmt.Errorf("refreshing session: %w", err)
	}

	switch {
	case isOK(status):
		c.metrics.refresh(ctx, "ok")
		return Outcome{Kind: Success, StatusCode: status}, nil
	case env.sessionEnded():
		c.metrics.refresh(ctx, "session_ended")
		slogctx.Info(ctx, "Session expired, redirecting to sign in", "redirect", SignInPath)
		c.session.End()
		c.onExpired.SessionExpired(ctx)

		return Outcome{Kind: TerminalRedirect, StatusCode: status}, nil
	default:
		c.metrics.refresh(ctx, "failed")
		slogctx.Warn(ctx, "Session refresh failed", "status", status, "message", env.Message)
		c.notifier.Notify(ctx, refreshFailedMessage)

		return Outcome{Kind: RefreshFailed, StatusCode: status}, nil
	}
}

func (c *Client) send(ctx context.Context, req Request) (int, Envelope, error) {
	target, err := c.resolve(req.Path)
	if err != nil {
		return 0, Envelope{}, err
	}

	// Session cookies belong to the gateway origin only.
	sameOrigin := c.sameOrigin(target)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return 0, Envelope{}, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for key, values := range req.Header {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	if sameOrigin {
		c.session.attach(httpReq)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, Envelope{}, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, req.Path, err)
	}
	defer resp.Body.Close()

	if sameOrigin {
		c.session.absorb(resp)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, Envelope{}, fmt.Errorf("%w: reading response body: %w", ErrTransport, err)
	}

	env, err := decodeEnvelope(b)
	if err != nil {
		return 0, Envelope{}, fmt.Errorf("%s %s answered %d: %w", method, req.Path, resp.StatusCode, err)
	}

	return resp.StatusCode, env, nil
}

func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parsing request path: %w", err)
	}

	if ref.IsAbs() {
		return ref, nil
	}

	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	u.RawPath = ""
	u.RawQuery = ref.RawQuery

	return &u, nil
}

func (c *Client) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.baseURL.Scheme) && strings.EqualFold(u.Host, c.baseURL.Host)
}

func isOK(status int) bool {
	return status >= 200 && status < 300
}

func userMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	return err.Error()
}

// Result is an Outcome whose envelope data has been decoded into T.
type Result[T any] struct {
	Outcome
	Data T
}

// Call performs req and decodes the data member of a successful envelope.
func Call[T any](ctx context.Context, c *Client, req Request) (Result[T], error) {
	outcome, err := c.Do(ctx, req)
	if err != nil {
		return Result[T]{}, err
	}

	res := Result[T]{Outcome: outcome}
	if outcome.Kind != Success {
		return res, nil
	}

	if err := outcome.Envelope.DecodeData(&res.Data); err != nil {
		slogctx.Error(ctx, "Decoding response data", "error", err)
		c.notifier.Notify(ctx, userMessage(err))

		return res, err
	}

	return res, nil
}
