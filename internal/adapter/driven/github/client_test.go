package github_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	ghAdapter "github.com/ericfisherdev/formrelay/internal/adapter/driven/github"
	"github.com/ericfisherdev/formrelay/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) (*ghAdapter.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(
		server.Client(),
		server.URL+"/",
		"test-token",
	)
	require.NoError(t, err)

	return client, server
}

// capturedRequest records what the fake GitHub API received.
type capturedRequest struct {
	Method  string
	Path    string
	Auth    string
	Accept  string
	Content string
	Body    []byte
}

func testTarget() model.DispatchTarget {
	return model.DispatchTarget{
		Owner:    "acme",
		Repo:     "reports",
		Workflow: "report.yml",
		Ref:      "main",
	}
}

func testDispatch() model.WorkflowDispatch {
	return model.WorkflowDispatch{
		Ref: "main",
		Inputs: map[string]string{
			"start": "2026-10-01",
			"end":   "2026-10-07",
		},
	}
}

func TestDispatchWorkflow_Success(t *testing.T) {
	var got capturedRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = capturedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Auth:    r.Header.Get("Authorization"),
			Accept:  r.Header.Get("Accept"),
			Content: r.Header.Get("Content-Type"),
			Body:    body,
		}
		w.WriteHeader(http.StatusNoContent)
	})

	client, _ := newTestClient(t, handler)
	status, err := client.DispatchWorkflow(context.Background(), testTarget(), testDispatch())

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/repos/acme/reports/actions/workflows/report.yml/dispatches", got.Path)
	assert.Equal(t, "Bearer test-token", got.Auth)
	assert.Equal(t, "application/vnd.github+json", got.Accept)
	assert.Equal(t, "application/json", got.Content)

	var body struct {
		Ref    string            `json:"ref"`
		Inputs map[string]string `json:"inputs"`
	}
	require.NoError(t, json.Unmarshal(got.Body, &body))
	assert.Equal(t, "main", body.Ref)
	assert.Equal(t, map[string]string{"start": "2026-10-01", "end": "2026-10-07"}, body.Inputs)
}

func TestDispatchWorkflow_BodyIsDeterministic(t *testing.T) {
	var bodies [][]byte
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusNoContent)
	})

	client, _ := newTestClient(t, handler)
	for range 3 {
		_, err := client.DispatchWorkflow(context.Background(), testTarget(), testDispatch())
		require.NoError(t, err)
	}

	require.Len(t, bodies, 3)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[0], bodies[2])
	assert.JSONEq(t, `{"ref":"main","inputs":{"end":"2026-10-07","start":"2026-10-01"}}`, string(bodies[0]))
}

func TestDispatchWorkflow_EscapesWorkflowName(t *testing.T) {
	var rawPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	})

	target := testTarget()
	target.Workflow = "weekly report.yml"

	client, _ := newTestClient(t, handler)
	_, err := client.DispatchWorkflow(context.Background(), target, testDispatch())

	require.NoError(t, err)
	assert.Equal(t, "/repos/acme/reports/actions/workflows/weekly%20report.yml/dispatches", rawPath)
}

func TestDispatchWorkflow_APIErrorReturnsStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Unexpected inputs provided: [\"start\"]"}`))
	})

	client, _ := newTestClient(t, handler)
	status, err := client.DispatchWorkflow(context.Background(), testTarget(), testDispatch())

	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, err.Error(), "Unexpected inputs provided")
	assert.Contains(t, err.Error(), "acme/reports")
}

func TestDispatchWorkflow_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})

	client, _ := newTestClient(t, handler)
	status, err := client.DispatchWorkflow(context.Background(), testTarget(), testDispatch())

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDispatchWorkflow_TransportErrorHasNoStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/", "test-token")
	require.NoError(t, err)
	server.Close()

	status, err := client.DispatchWorkflow(context.Background(), testTarget(), testDispatch())

	require.Error(t, err)
	assert.Equal(t, 0, status)
}

func TestDispatchWorkflow_CanceledContext(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client, _ := newTestClient(t, handler)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := client.DispatchWorkflow(ctx, testTarget(), testDispatch())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, status)
}

func TestGetWorkflow(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/repos/acme/reports/actions/workflows/report.yml", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    int64(161335),
			"name":  "Weekly report",
			"path":  ".github/workflows/report.yml",
			"state": "active",
		})
	})

	client, _ := newTestClient(t, handler)
	wf, err := client.GetWorkflow(context.Background(), testTarget())

	require.NoError(t, err)
	require.NotNil(t, wf)
	assert.Equal(t, int64(161335), wf.ID)
	assert.Equal(t, "Weekly report", wf.Name)
	assert.Equal(t, ".github/workflows/report.yml", wf.Path)
	assert.Equal(t, "active", wf.State)
}

func TestGetWorkflow_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})

	client, _ := newTestClient(t, handler)
	wf, err := client.GetWorkflow(context.Background(), testTarget())

	require.Error(t, err)
	assert.Nil(t, wf)
	assert.Contains(t, err.Error(), "report.yml")
}

func TestNewClient_CustomAPIURLUsesETagCache(t *testing.T) {
	var calls int
	var lastIfNoneMatch string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		lastIfNoneMatch = r.Header.Get("If-None-Match")
		assert.Equal(t, "/api/v3/repos/acme/reports/actions/workflows/report.yml", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		if lastIfNoneMatch == `"wf-v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"wf-v1"`)
		_, _ = w.Write([]byte(`{"id":7,"name":"Weekly report","path":".github/workflows/report.yml","state":"active"}`))
	}))
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClient("test-token", server.URL+"/api/v3")
	require.NoError(t, err)

	first, err := client.GetWorkflow(context.Background(), testTarget())
	require.NoError(t, err)
	second, err := client.GetWorkflow(context.Background(), testTarget())
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, `"wf-v1"`, lastIfNoneMatch)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(7), second.ID)
}

func TestNewClient_DispatchIsNotResentAfterSecondaryRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/reports/actions/workflows/report.yml/dispatches", r.URL.Path)
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"You have exceeded a secondary rate limit. Please wait a few minutes before you try again.",` +
				`"documentation_url":"https://docs.github.com/rest/overview/rate-limits-for-the-rest-api#about-secondary-rate-limits"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClient("test-token", server.URL)
	require.NoError(t, err)

	status, err := client.DispatchWorkflow(context.Background(), testTarget(), testDispatch())

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, int32(1), calls.Load(), "dispatch must reach GitHub exactly once")
}

func TestNewClient_InvalidAPIURL(t *testing.T) {
	_, err := ghAdapter.NewClient("test-token", "://bad")
	assert.Error(t, err)
}
