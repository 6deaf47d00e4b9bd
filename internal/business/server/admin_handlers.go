package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	slogctx "github.com/veqryn/slog-context"

	"github.com/lexislearn/admin-gateway/internal/activity"
	"github.com/lexislearn/admin-gateway/internal/backend"
)

const requiredOptions = 4

type questionOption struct {
	Content string `json:"content"`
	Correct bool   `json:"correct"`
}

type createQuestionBody struct {
	Content string           `json:"content"`
	Options []questionOption `json:"options"`
}

func (b createQuestionBody) validate() string {
	if b.Content == "" || len(b.Options) != requiredOptions {
		return "Invalid request body. Content and 4 options are required."
	}

	for _, o := range b.Options {
		if o.Correct {
			return ""
		}
	}

	return "At least one option must be marked as correct"
}

// forwardAdmin calls the backend on behalf of the signed-in admin. An
// upstream 401 always becomes the TOKEN_EXPIRED envelope so that clients
// refresh and retry.
func (g *Gateway) forwardAdmin(ctx context.Context, r *http.Request, method, path string, body json.RawMessage) (*backend.Response, *response, error) {
	resp, err := g.backend.Do(ctx, backend.Request{
		Method:      method,
		Path:        path,
		Body:        body,
		AccessToken: g.accessToken(r),
	})
	if err != nil {
		return nil, nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, tokenExpiredResponse(), nil
	case !resp.OK():
		return nil, relay(resp), nil
	}

	return resp, nil, nil
}

func (g *Gateway) adminEmail(ctx context.Context, r *http.Request) string {
	if p, ok := g.profile(ctx, r); ok {
		return p.Email
	}

	return ""
}

func (g *Gateway) createAssessment(ctx context.Context, _ http.ResponseWriter, r *http.Request, request any) (any, error) {
	if g.accessToken(r) == "" {
		return messageResponse(http.StatusUnauthorized, "accessToken not found. Please sign in again."), nil
	}

	var body struct {
		Title string `json:"title"`
	}
	if err := decode(request, &body); err != nil {
		return nil, err
	}

	resp, failed, err := g.forwardAdmin(ctx, r, http.MethodPost, "/assessment", requestBody(request))
	if err != nil || failed != nil {
		return failed, err
	}

	g.activity.Record(ctx, activity.KindAssessmentCreated, g.adminEmail(ctx, r), body.Title)

	return jsonResponse(http.StatusOK, resp.Body), nil
}

func (g *Gateway) listAssessments(ctx context.Context, _ http.ResponseWriter, r *http.Request, _ any) (any, error) {
	resp, failed, err := g.forwardAdmin(ctx, r, http.MethodGet, "/assessment/all", nil)
	if err != nil || failed != nil {
		return failed, err
	}

	return jsonResponse(http.StatusOK, resp.Body), nil
}

func (g *Gateway) createQuestion(ctx context.Context, _ http.ResponseWriter, r *http.Request, request any) (any, error) {
	testID := r.PathValue("testId")
	if testID == "" {
		return messageResponse(http.StatusBadRequest, "Test ID is required"), nil
	}

	var body createQuestionBody
	if err := decode(request, &body); err != nil {
		return nil, err
	}

	if msg := body.validate(); msg != "" {
		return messageResponse(http.StatusBadRequest, msg), nil
	}

	path := "/assessment/" + url.PathEscape(testID) + "/questionsOptions"
	resp, failed, err := g.forwardAdmin(ctx, r, http.MethodPost, path, requestBody(request))
	if err != nil || failed != nil {
		return failed, err
	}

	g.activity.Record(ctx, activity.KindQuestionCreated, g.adminEmail(ctx, r), testID)

	return jsonResponse(http.StatusOK, resp.Body), nil
}

// listQuestions answers with the question list of one assessment wrapped in
// an envelope.
func (g *Gateway) listQuestions(ctx context.Context, _ http.ResponseWriter, r *http.Request, _ any) (any, error) {
	testID := r.PathValue("testId")
	if testID == "" {
		return messageResponse(http.StatusBadRequest, "Test ID is required"), nil
	}

	path := "/assessment/" + url.PathEscape(testID) + "/assessmentTest"
	resp, failed, err := g.forwardAdmin(ctx, r, http.MethodGet, path, nil)
	if err != nil || failed != nil {
		return failed, err
	}

	var data struct {
		Questions json.RawMessage `json:"question_assessments"`
	}
	if err := resp.Data(&data); err != nil {
		return nil, err
	}

	questions := data.Questions
	if len(questions) == 0 || string(questions) == "null" {
		questions = json.RawMessage("[]")
	}

	return jsonResponse(http.StatusOK, envelope{Data: questions}), nil
}

func (g *Gateway) statistics(ctx context.Context, _ http.ResponseWriter, r *http.Request, _ any) (any, error) {
	if g.accessToken(r) == "" {
		return tokenExpiredResponse(), nil
	}

	stats, err := g.activity.Statistics(ctx)
	if err != nil {
		return nil, err
	}

	stats.ActiveSessions, err = g.sessions.ActiveProfiles(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to count active sessions", "error", err)
	}

	return jsonResponse(http.StatusOK, envelope{Data: stats}), nil
}
