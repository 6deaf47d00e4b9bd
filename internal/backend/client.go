// Package backend talks to the upstream REST API that owns accounts,
// assessments and questions. The gateway never interprets most of what it
// receives; it forwards request bodies and relays status and JSON as is.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	slogctx "github.com/veqryn/slog-context"

	"github.com/lexislearn/admin-gateway/internal/config"
	"github.com/lexislearn/admin-gateway/internal/serviceerr"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(cfg config.Backend, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type Request struct {
	Method string
	Path   string
	// Body is sent verbatim. Nil sends no payload.
	Body json.RawMessage
	// AccessToken is sent as a bearer token when set.
	AccessToken string
	// Cookie is forwarded as the Cookie header when set.
	Cookie string
}

type Response struct {
	StatusCode int
	Body       json.RawMessage
	Header     http.Header
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type errorBody struct {
	Message  string   `json:"message"`
	Messages []string `json:"messages"`
}

// Message returns the backend's message, falling back to its joined
// validation messages.
func (r *Response) Message() string {
	var body errorBody
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return ""
	}

	if body.Message != "" {
		return body.Message
	}

	return strings.Join(body.Messages, ", ")
}

// Data decodes the data member of the response body into v.
func (r *Response) Data(v any) error {
	var body struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(r.Body, &body); err != nil {
		return fmt.Errorf("decoding backend response: %w", err)
	}

	if len(body.Data) == 0 {
		return serviceerr.ErrUnknown.WithDescription("backend response has no data")
	}

	if err := json.Unmarshal(body.Data, v); err != nil {
		return fmt.Errorf("decoding backend data: %w", err)
	}

	return nil
}

func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("creating backend request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if req.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	}

	if req.Cookie != "" {
		httpReq.Header.Set("Cookie", req.Cookie)
	}

	slogctx.Debug(ctx, "Calling backend", "method", req.Method, "path", req.Path)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", serviceerr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", serviceerr.ErrUpstreamUnavailable, err)
	}

	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		b = []byte("{}")
	}

	if !json.Valid(b) {
		return nil, serviceerr.ErrUnknown.WithDescription(
			fmt.Sprintf("backend answered %s %s with a non-JSON body", req.Method, req.Path))
	}

	slogctx.Debug(ctx, "Backend answered", "method", req.Method, "path", req.Path, "status", resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       b,
		Header:     resp.Header,
	}, nil
}
