// Package console is a terminal front end for the admin gateway. It signs
// in once, keeps the session cookies in a YAML file and reuses them for
// every later command, refreshing the access token transparently.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	slogctx "github.com/veqryn/slog-context"

	"github.com/lexislearn/admin-gateway/internal/config"
	"github.com/lexislearn/admin-gateway/pkg/apiclient"
)

// ErrSessionExpired is returned when a command ended on the sign-in redirect.
var ErrSessionExpired = errors.New("session expired")

type Assessment struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	IsDeleted   bool   `json:"isDeleted"`
}

type Option struct {
	Content string `json:"content"`
	Correct bool   `json:"correct"`
}

type Question struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Options []Option `json:"options"`
}

type Statistics struct {
	Totals         map[string]int64 `json:"totals"`
	Last24h        map[string]int64 `json:"last24h"`
	ActiveSessions int              `json:"activeSessions"`
	GeneratedAt    time.Time        `json:"generatedAt"`
}

type Console struct {
	client *apiclient.Client
	store  *SessionStore
	out    io.Writer
}

// New restores the stored session and builds a client around it.
func New(cfg config.Console, out io.Writer, opts ...apiclient.Option) (*Console, error) {
	store := NewSessionStore(cfg.SessionFile)

	state, err := store.Load()
	if err != nil {
		return nil, err
	}

	c := &Console{store: store, out: out}

	clientOpts := []apiclient.Option{
		apiclient.WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		}),
		apiclient.WithSession(apiclient.RestoreSession(state)),
		apiclient.WithSessionExpiredHandler(apiclient.SessionExpiredFunc(c.sessionExpired)),
		apiclient.WithNotifier(apiclient.NotifierFunc(func(ctx context.Context, message string) {
			slogctx.Warn(ctx, "Gateway call failed", "message", message)
		})),
	}

	c.client, err = apiclient.New(cfg.GatewayURL, append(clientOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating gateway client: %w", err)
	}

	return c, nil
}

func (c *Console) sessionExpired(ctx context.Context) {
	if err := c.store.Remove(); err != nil {
		slogctx.Error(ctx, "Failed to remove the session file", "error", err)
	}

	fmt.Fprintf(c.out, "Your session has expired. Sign in again with: admin-gateway console sign-in (%s)\n", apiclient.SignInPath)
}

// persist writes the session back after every call so that rotated
// tokens survive the process.
func (c *Console) persist() error {
	session := c.client.Session()
	if !session.Active() {
		return c.store.Remove()
	}

	return c.store.Save(session.Snapshot())
}

func (c *Console) call(ctx context.Context, req apiclient.Request, out any) (apiclient.Outcome, error) {
	outcome, err := c.client.Do(ctx, req)
	if perr := c.persist(); perr != nil {
		slogctx.Error(ctx, "Failed to persist the session", "error", perr)
	}
	if err != nil {
		return outcome, err
	}

	switch outcome.Kind {
	case apiclient.TerminalRedirect:
		return outcome, ErrSessionExpired
	case apiclient.RefreshFailed:
		return outcome, errors.New("could not refresh the session, try again later")
	}

	if out == nil {
		return outcome, nil
	}

	return outcome, decodeLoose(outcome.Envelope.Data, out)
}

// decodeLoose decodes backend data whose scalar types vary between
// deployments, ids in particular arrive both as numbers and as strings.
func decodeLoose(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}

	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}

	return nil
}

func (c *Console) SignIn(ctx context.Context, email, password string) error {
	req, err := apiclient.JSONRequest(http.MethodPost, "/api/auth/sign-in", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}

	outcome, err := c.call(ctx, req, nil)
	if err != nil {
		return err
	}

	c.client.Session().SetEmail(email)
	if err := c.persist(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Signed in as %s. %s\n", email, outcome.Envelope.Message)

	return nil
}

func (c *Console) SignOut(ctx context.Context) error {
	email := c.client.Session().Email()

	_, err := c.call(ctx, apiclient.Request{Method: http.MethodPost, Path: "/api/auth/logout"}, nil)

	// The local session is gone whatever the gateway answered.
	c.client.Session().End()
	if rerr := c.store.Remove(); rerr != nil {
		return rerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Signed out %s\n", email)

	return nil
}

func (c *Console) ListTests(ctx context.Context) error {
	var tests []Assessment
	if _, err := c.call(ctx, apiclient.Request{Method: http.MethodGet, Path: "/api/admin/assessment-tests-getting"}, &tests); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDESCRIPTION\tCREATED")
	for _, t := range tests {
		if t.IsDeleted {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Description, t.CreatedAt)
	}

	return tw.Flush()
}

func (c *Console) CreateTest(ctx context.Context, title, description string) error {
	req, err := apiclient.JSONRequest(http.MethodPost, "/api/admin/assessment-test-creation", map[string]string{
		"title":       title,
		"description": description,
	})
	if err != nil {
		return err
	}

	var created Assessment
	if _, err := c.call(ctx, req, &created); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Created test %s (%s)\n", created.ID, created.Title)

	return nil
}

func (c *Console) ListQuestions(ctx context.Context, testID string) error {
	var questions []Question
	path := "/api/admin/assessment/" + url.PathEscape(testID) + "/questions-answers-getting"
	if _, err := c.call(ctx, apiclient.Request{Method: http.MethodGet, Path: path}, &questions); err != nil {
		return err
	}

	if len(questions) == 0 {
		fmt.Fprintf(c.out, "Test %s has no questions\n", testID)
		return nil
	}

	for i, q := range questions {
		fmt.Fprintf(c.out, "%d. %s\n", i+1, q.Content)
		for j, o := range q.Options {
			mark := " "
			if o.Correct {
				mark = "*"
			}
			fmt.Fprintf(c.out, "   %s %c) %s\n", mark, 'a'+j, o.Content)
		}
	}

	return nil
}

// AddQuestion adds a question to a test. correct is the 1-based position
// of the right answer in options.
func (c *Console) AddQuestion(ctx context.Context, testID, content string, options []string, correct int) error {
	opts := make([]Option, len(options))
	for i, o := range options {
		opts[i] = Option{Content: o, Correct: i+1 == correct}
	}

	req, err := apiclient.JSONRequest(http.MethodPost, "/api/admin/assessment/"+url.PathEscape(testID)+"/questions", map[string]any{
		"content": content,
		"options": opts,
	})
	if err != nil {
		return err
	}

	outcome, err := c.call(ctx, req, nil)
	if err != nil {
		return err
	}

	msg := outcome.Envelope.Message
	if msg == "" {
		msg = "Question added"
	}
	fmt.Fprintln(c.out, msg)

	return nil
}

func (c *Console) Stats(ctx context.Context) error {
	var stats Statistics
	if _, err := c.call(ctx, apiclient.Request{Method: http.MethodGet, Path: "/api/admin/statistics"}, &stats); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Active sessions\t%d\n", stats.ActiveSessions)
	fmt.Fprintln(tw, "EVENT\tTOTAL\tLAST 24H")
	for _, kind := range slices.Sorted(maps.Keys(stats.Totals)) {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", kind, stats.Totals[kind], stats.Last24h[kind])
	}

	return tw.Flush()
}
