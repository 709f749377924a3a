// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/elhajjaji/wara9a/internal/logging"
)

// DefaultDomain is the public GitHub host.
const DefaultDomain = "github.com"

// rateLimitWarningThreshold is the remaining request count below which a
// warning is logged.
const rateLimitWarningThreshold = 100

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client
	domain string
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	// Token authenticates requests; public repositories work without one.
	Token string

	// Domain is github.com or the host of a GitHub Enterprise instance.
	Domain string

	// RequestsPerSecond throttles outgoing requests. Zero disables throttling.
	RequestsPerSecond float64

	// BaseURL overrides the API endpoint derived from Domain.
	BaseURL string
}

// APIURL returns the REST endpoint for a GitHub domain.
func APIURL(domain string) string {
	if domain == "" || domain == DefaultDomain {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// rateLimitedTransport waits on a token bucket before every request.
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// NewClient creates a GitHub API client. For domains other than github.com
// the Enterprise endpoint https://<domain>/api/v3/ is used.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	domain := opts.Domain
	if domain == "" {
		domain = DefaultDomain
	}

	transport := http.DefaultTransport
	if opts.RequestsPerSecond > 0 {
		transport = &rateLimitedTransport{
			base:    transport,
			limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		}
	}
	httpClient := &http.Client{Transport: transport}

	if opts.Token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: opts.Token},
		)
		httpClient = oauth2.NewClient(ctx, ts)
	}

	client := github.NewClient(httpClient)

	apiURL := opts.BaseURL
	if apiURL == "" && domain != DefaultDomain {
		apiURL = APIURL(domain)
	}
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}

		client.BaseURL = parsedURL

		// For GitHub Enterprise, set the upload URL to the same endpoint
		client.UploadURL = parsedURL
	}

	logging.Debug("github configuration",
		"domain", domain,
		"api_url", client.BaseURL.String(),
		"token", logging.MaskSensitive(opts.Token))

	return &Client{client: client, domain: domain}, nil
}

// Domain returns the GitHub host the client talks to.
func (c *Client) Domain() string {
	return c.domain
}

// splitRepository splits "owner/repo" into its parts.
func splitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

// GetRepository retrieves repository metadata and warns when the API rate
// limit is close to exhaustion.
func (c *Client) GetRepository(ctx context.Context, repository string) (*github.Repository, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	r, resp, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s: %w", repository, err)
	}
	if resp != nil && resp.Rate.Limit > 0 && resp.Rate.Remaining < rateLimitWarningThreshold {
		logging.Warn("github rate limit nearly exhausted",
			"remaining", resp.Rate.Remaining,
			"limit", resp.Rate.Limit,
			"reset", resp.Rate.Reset.Time)
	}
	return r, nil
}

// GetLanguages returns the bytes of code per language.
func (c *Client) GetLanguages(ctx context.Context, repository string) (map[string]int, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	languages, _, err := c.client.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages for %s: %w", repository, err)
	}
	return languages, nil
}

// GetCommits retrieves up to limit commits, most recent first, from branch
// (the default branch when empty).
func (c *Client) GetCommits(ctx context.Context, repository, branch string, limit int) ([]*github.RepositoryCommit, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{
		SHA: branch,
		ListOptions: github.ListOptions{
			PerPage: pageSize(limit),
		},
	}

	var all []*github.RepositoryCommit
	for len(all) < limit {
		commits, resp, err := c.client.Repositories.ListCommits(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list commits for %s: %w", repository, err)
		}
		all = append(all, commits...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return truncate(all, limit), nil
}

// GetCommit retrieves a single commit including its file list and stats.
func (c *Client) GetCommit(ctx context.Context, repository, sha string) (*github.RepositoryCommit, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	commit, _, err := c.client.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", sha, err)
	}
	return commit, nil
}

// GetPullRequests retrieves up to limit pull requests in any state, most
// recently updated first.
func (c *Client) GetPullRequests(ctx context.Context, repository string, limit int) ([]*github.PullRequest, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.PullRequestListOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: github.ListOptions{
			PerPage: pageSize(limit),
		},
	}

	var all []*github.PullRequest
	for len(all) < limit {
		prs, resp, err := c.client.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests for %s: %w", repository, err)
		}
		all = append(all, prs...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return truncate(all, limit), nil
}

// GetReviews retrieves the reviews submitted on a pull request.
func (c *Client) GetReviews(ctx context.Context, repository string, number int) ([]*github.PullRequestReview, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	reviews, _, err := c.client.PullRequests.ListReviews(ctx, owner, repo, number, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for %s#%d: %w", repository, number, err)
	}
	return reviews, nil
}

// GetReleases retrieves up to limit releases, newest first.
func (c *Client) GetReleases(ctx context.Context, repository string, limit int) ([]*github.RepositoryRelease, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{PerPage: pageSize(limit)}

	var all []*github.RepositoryRelease
	for len(all) < limit {
		releases, resp, err := c.client.Repositories.ListReleases(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list releases for %s: %w", repository, err)
		}
		all = append(all, releases...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return truncate(all, limit), nil
}

// GetIssues retrieves up to limit issues in any state. Pull requests, which
// the issues endpoint also returns, are filtered out.
func (c *Client) GetIssues(ctx context.Context, repository string, limit int) ([]*github.Issue, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.IssueListByRepoOptions{
		State: "all",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var result []*github.Issue
	for len(result) < limit {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			logging.Error("failed to fetch github issues", "repository", repository, "error", err)
			return nil, fmt.Errorf("failed to fetch GitHub issues: %w", err)
		}

		for _, issue := range issues {
			// Skip pull requests (they're also returned by the Issues API)
			if issue.PullRequestLinks != nil {
				continue
			}
			result = append(result, issue)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return truncate(result, limit), nil
}

func pageSize(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

func truncate[T any](items []T, limit int) []T {
	if limit >= 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
