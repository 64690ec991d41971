// Package github implements the WorkflowDispatcher port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"

	"github.com/ericfisherdev/formrelay/internal/domain/model"
	"github.com/ericfisherdev/formrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WorkflowDispatcher = (*Client)(nil)

// acceptHeader is the media type GitHub recommends for REST calls.
const acceptHeader = "application/vnd.github+json"

// Client implements the driven.WorkflowDispatcher port using the go-github library.
// Lookups and dispatches go through separate go-github clients: the dispatch
// POST must reach GitHub at most once, so its transport never resends.
type Client struct {
	lookup   *gh.Client
	dispatch *gh.Client
}

// NewClient creates a GitHub API client with two transport stacks.
//
// Workflow lookups:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit primary + secondary limiters (sleeps and resends on 429)
//  3. go-github (bearer token auth)
//
// Workflow dispatches:
//  1. go-github-ratelimit primary limiter only, sharing state with the lookup
//     stack. It refuses calls while the primary limit is exhausted and never resends.
//  2. go-github (bearer token auth)
//
// apiURL overrides the REST root, e.g. for GitHub Enterprise Server
// ("https://ghe.example.com/api/v3/"). Empty means api.github.com.
func NewClient(token, apiURL string) (*Client, error) {
	dispatchLimiter := github_ratelimit.NewPrimaryLimiter(http.DefaultTransport)
	lookupTransport := github_ratelimit.New(
		httpcache.NewMemoryCacheTransport(),
		github_primary_ratelimit.WithSharedState(dispatchLimiter.GetState()),
	)

	lookup, err := newGitHubClient(&http.Client{Transport: lookupTransport}, apiURL, token)
	if err != nil {
		return nil, err
	}
	dispatch, err := newGitHubClient(&http.Client{Transport: dispatchLimiter}, apiURL, token)
	if err != nil {
		return nil, err
	}

	return &Client{lookup: lookup, dispatch: dispatch}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client, err := newGitHubClient(httpClient, baseURL, token)
	if err != nil {
		return nil, err
	}
	return &Client{lookup: client, dispatch: client}, nil
}

func newGitHubClient(httpClient *http.Client, baseURL, token string) (*gh.Client, error) {
	client := gh.NewClient(httpClient).WithAuthToken(token)
	if baseURL == "" {
		return client, nil
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return client, nil
}

// DispatchWorkflow triggers a workflow_dispatch event for target.
// GitHub answers a successful dispatch with 204 No Content. On API errors the
// response status code is returned together with the error.
func (c *Client) DispatchWorkflow(ctx context.Context, target model.DispatchTarget, dispatch model.WorkflowDispatch) (int, error) {
	u := dispatchPath(target)

	inputs := make(map[string]any, len(dispatch.Inputs))
	for k, v := range dispatch.Inputs {
		inputs[k] = v
	}
	body := gh.CreateWorkflowDispatchEventRequest{
		Ref:    dispatch.Ref,
		Inputs: inputs,
	}

	req, err := c.dispatch.NewRequest(http.MethodPost, u, body)
	if err != nil {
		return 0, fmt.Errorf("building dispatch request for %s: %w", target.FullName(), err)
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.dispatch.Do(ctx, req, nil)
	statusCode := responseStatus(resp, err)
	if err != nil {
		return statusCode, fmt.Errorf("dispatching %s on %s@%s: %w", target.Workflow, target.FullName(), dispatch.Ref, err)
	}

	logRateLimit(resp, target.FullName()+"/dispatches")

	return statusCode, nil
}

// GetWorkflow looks up the configured workflow file. Repeated lookups are
// answered from the ETag cache when GitHub reports 304 Not Modified.
func (c *Client) GetWorkflow(ctx context.Context, target model.DispatchTarget) (*model.Workflow, error) {
	wf, resp, err := c.lookup.Actions.GetWorkflowByFileName(ctx, target.Owner, target.Repo, target.Workflow)
	if err != nil {
		return nil, fmt.Errorf("fetching workflow %s on %s: %w", target.Workflow, target.FullName(), err)
	}

	logRateLimit(resp, target.FullName()+"/workflow")

	return &model.Workflow{
		ID:    wf.GetID(),
		Name:  wf.GetName(),
		Path:  wf.GetPath(),
		State: wf.GetState(),
	}, nil
}

// dispatchPath returns the API path, relative to the client base URL, of the
// dispatch endpoint for target. The workflow file name is path-escaped.
func dispatchPath(target model.DispatchTarget) string {
	return fmt.Sprintf("repos/%s/%s/actions/workflows/%s/dispatches",
		url.PathEscape(target.Owner),
		url.PathEscape(target.Repo),
		url.PathEscape(target.Workflow),
	)
}

// responseStatus extracts the HTTP status code from a go-github call,
// preferring the error response when the call failed.
func responseStatus(resp *gh.Response, err error) int {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	return 0
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"status_code", resp.StatusCode,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
