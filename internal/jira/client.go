// Package jira reads functional documentation (epics, features, stories,
// requirements) from a JIRA project.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jira "github.com/andygrunwald/go-jira"

	"github.com/elhajjaji/wara9a/internal/logging"
)

// searchPageSize is the number of issues requested per search call.
const searchPageSize = 100

// Client handles interactions with the JIRA API
type Client struct {
	client  *jira.Client
	baseURL string
}

// APIError carries the HTTP status of a failed JIRA call. StatusCode is 0
// when no response was received.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v (status: %d)", e.Err, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(resp *jira.Response, err error) *APIError {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	return &APIError{StatusCode: status, Err: err}
}

// NewClient creates a new JIRA client for baseURL. Requests are sent with
// basic authentication when both username and token are set, anonymously
// otherwise.
func NewClient(baseURL, username, token string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("jira url is required")
	}
	if username == "" || token == "" {
		logging.Warn("jira credentials not set, using anonymous access", "url", baseURL)
	}

	var httpClient *http.Client
	if username != "" && token != "" {
		// Create JIRA authentication transport
		tp := jira.BasicAuthTransport{
			Username: username,
			Password: token,
		}
		httpClient = tp.Client()
	}

	client, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	return &Client{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// SearchIssues runs jql and returns at most limit issues, following
// pagination until the result set or the limit is exhausted.
func (c *Client) SearchIssues(ctx context.Context, jql string, limit int) ([]jira.Issue, error) {
	var all []jira.Issue
	startAt := 0
	for len(all) < limit {
		opts := &jira.SearchOptions{
			StartAt:    startAt,
			MaxResults: min(searchPageSize, limit-len(all)),
			Fields:     []string{"*all"},
		}

		issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search JIRA issues: %w", newAPIError(resp, err))
		}
		all = append(all, issues...)

		logging.Debug("fetched jira issues page",
			"start_at", startAt,
			"count", len(issues),
			"total", resp.Total)

		startAt += len(issues)
		if len(issues) == 0 || startAt >= resp.Total {
			break
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// GetProject retrieves a project including its versions.
func (c *Client) GetProject(ctx context.Context, key string) (*jira.Project, error) {
	project, resp, err := c.client.Project.GetWithContext(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get JIRA project %s: %w", key, newAPIError(resp, err))
	}
	return project, nil
}

// BrowseURL returns the web URL of an issue.
func (c *Client) BrowseURL(key string) string {
	return fmt.Sprintf("%s/browse/%s", c.baseURL, key)
}

// ProjectURL returns the web URL of a project.
func (c *Client) ProjectURL(key string) string {
	return fmt.Sprintf("%s/projects/%s", c.baseURL, key)
}
