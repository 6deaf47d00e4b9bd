package backend_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexislearn/admin-gateway/internal/backend"
	"github.com/lexislearn/admin-gateway/internal/config"
	"github.com/lexislearn/admin-gateway/internal/serviceerr"
)

func TestClient_Do(t *testing.T) {
	var (
		gotMethod, gotPath, gotAuth, gotCookie, gotContentType string
		gotBody                                                []byte
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotCookie = r.Header.Get("Cookie")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"created","data":{"id":"42"}}`))
	}))
	defer server.Close()

	client := backend.NewClient(config.Backend{URL: server.URL + "/api/v1/", Timeout: time.Second})

	resp, err := client.Do(t.Context(), backend.Request{
		Method:      http.MethodPost,
		Path:        "/assessment",
		Body:        json.RawMessage(`{"title":"Placement"}`),
		AccessToken: "token-one",
		Cookie:      "refreshToken=r1",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/v1/assessment", gotPath)
	assert.Equal(t, "Bearer token-one", gotAuth)
	assert.Equal(t, "refreshToken=r1", gotCookie)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"title":"Placement"}`, string(gotBody))

	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "created", resp.Message())

	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, resp.Data(&data))
	assert.Equal(t, "42", data.ID)
}

func TestClient_DoErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantBody  string
		assertErr assert.ErrorAssertionFunc
		wantIs    error
	}{
		{
			name:      "Non-2xx is relayed, not an error",
			status:    http.StatusBadRequest,
			body:      `{"message":"Title is required"}`,
			wantBody:  `{"message":"Title is required"}`,
			assertErr: assert.NoError,
		},
		{
			name:      "Empty body becomes an empty object",
			status:    http.StatusNoContent,
			wantBody:  `{}`,
			assertErr: assert.NoError,
		},
		{
			name:      "Non-JSON body",
			status:    http.StatusBadGateway,
			body:      `<html>bad gateway</html>`,
			assertErr: assert.Error,
			wantIs:    serviceerr.ErrUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := backend.NewClient(config.Backend{URL: server.URL}, backend.WithHTTPClient(server.Client()))

			resp, err := client.Do(t.Context(), backend.Request{Method: http.MethodGet, Path: "/assessment/all"})
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}

			if !tt.assertErr(t, err, fmt.Sprintf("Do() error = %v", err)) || err != nil {
				return
			}

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, string(resp.Body))
		})
	}
}

func TestClient_DoUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := backend.NewClient(config.Backend{URL: url, Timeout: time.Second})

	_, err := client.Do(t.Context(), backend.Request{Method: http.MethodGet, Path: "/assessment/all"})

	assert.ErrorIs(t, err, serviceerr.ErrUpstreamUnavailable)
}

func TestResponse_Message(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "message", body: `{"message":"Email already exists"}`, want: "Email already exists"},
		{name: "validation messages", body: `{"messages":["email must be an email","password is too short"]}`, want: "email must be an email, password is too short"},
		{name: "message wins", body: `{"message":"Bad request","messages":["x"]}`, want: "Bad request"},
		{name: "nothing", body: `{}`, want: ""},
		{name: "array body", body: `[1,2]`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &backend.Response{Body: json.RawMessage(tt.body)}
			assert.Equal(t, tt.want, resp.Message())
		})
	}
}

func TestResponse_DataMissing(t *testing.T) {
	resp := &backend.Response{Body: json.RawMessage(`{"message":"ok"}`)}

	var v map[string]any
	assert.ErrorIs(t, resp.Data(&v), serviceerr.ErrUnknown)
}
