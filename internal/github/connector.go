package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/connector"
	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// SourceType is the "type" value of GitHub sources.
const SourceType = "github"

// releaseLimit caps how many releases are collected.
const releaseLimit = 100

// Connector collects repository, commit, pull request and release data
// from GitHub. With include_issues it also derives functional data from
// labeled issues.
type Connector struct {
	// baseURL overrides the API endpoint; tests point it at a local server.
	baseURL string
}

// NewConnector returns the GitHub connector.
func NewConnector() *Connector {
	return &Connector{}
}

func (c *Connector) Type() string                 { return SourceType }
func (c *Connector) Category() connector.Category { return connector.CategoryCodeHost }
func (c *Connector) DisplayName() string          { return "GitHub" }

func (c *Connector) Description() string {
	return "Repository metadata, commits, pull requests and releases from GitHub or GitHub Enterprise"
}

func (c *Connector) RequiredConfigFields() []string {
	return []string{"repo"}
}

func (c *Connector) OptionalConfigFields() []string {
	return []string{"token", "domain", "branch", "max_commits", "max_pull_requests", "enrich_commits", "include_issues", "max_issues", "requests_per_second"}
}

// ValidateConfig checks the repository format and the collection limits.
func (c *Connector) ValidateConfig(src config.Source) []error {
	cs := src.CodeHost
	if cs == nil {
		return []error{fmt.Errorf("source %q is not a code-host source", src.Name)}
	}

	var errs []error
	if cs.Repo == "" {
		errs = append(errs, errors.New("repo is required"))
	} else if _, _, err := splitRepository(cs.Repo); err != nil {
		errs = append(errs, err)
	}
	if cs.MaxCommits < 1 {
		errs = append(errs, errors.New("max_commits must be at least 1"))
	}
	if cs.MaxPullRequests < 0 {
		errs = append(errs, errors.New("max_pull_requests must not be negative"))
	}
	if cs.EnrichCommits < 0 {
		errs = append(errs, errors.New("enrich_commits must not be negative"))
	}
	if cs.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests_per_second must not be negative"))
	}
	return errs
}

// Collect fetches the repository's data.
func (c *Connector) Collect(ctx context.Context, src config.Source) (*models.ProjectData, error) {
	if errs := c.ValidateConfig(src); len(errs) > 0 {
		return nil, connector.NewConfigError(SourceType, errs...)
	}
	cs := src.CodeHost

	client, err := NewClient(ctx, ClientOptions{
		Token:             cs.Token,
		Domain:            cs.Domain,
		RequestsPerSecond: cs.RequestsPerSecond,
		BaseURL:           c.baseURL,
	})
	if err != nil {
		return nil, connector.NewConfigError(SourceType, err)
	}

	logging.Info("collecting github data", "source", src.Name, "repository", cs.Repo)

	repo, err := client.GetRepository(ctx, cs.Repo)
	if err != nil {
		return nil, classify(err)
	}
	languages, err := client.GetLanguages(ctx, cs.Repo)
	if err != nil {
		return nil, classify(err)
	}

	commits, err := c.collectCommits(ctx, client, cs)
	if err != nil {
		return nil, classify(err)
	}

	pullRequests := []models.TechnicalPullRequest{}
	if cs.MaxPullRequests > 0 {
		pullRequests, err = c.collectPullRequests(ctx, client, cs, commits)
		if err != nil {
			return nil, classify(err)
		}
	}

	rawReleases, err := client.GetReleases(ctx, cs.Repo, releaseLimit)
	if err != nil {
		return nil, classify(err)
	}
	releases := make([]models.Release, 0, len(rawReleases))
	for _, r := range rawReleases {
		releases = append(releases, convertRelease(r))
	}

	now := time.Now().UTC()
	data := &models.ProjectData{
		Repository: convertRepository(repo, languages),
		Releases:   releases,
		TechnicalData: &models.TechnicalData{
			Commits:        commits,
			PullRequests:   pullRequests,
			CodeMetrics:    map[string]models.CodeMetrics{},
			TechnicalDebt:  []models.TechnicalDebt{},
			RepositoryName: repo.GetFullName(),
			RepositoryURL:  repo.GetHTMLURL(),
			DefaultBranch:  repo.GetDefaultBranch(),
			CollectedAt:    now,
			SourceType:     models.SourceGitHub,
		},
		CollectedAt:  now,
		SourceType:   models.SourceGitHub,
		SourceConfig: src.Redacted(),
	}

	if cs.IncludeIssues && cs.MaxIssues > 0 {
		issues, err := client.GetIssues(ctx, cs.Repo, cs.MaxIssues)
		if err != nil {
			return nil, classify(err)
		}
		functional := functionalFromIssues(issues, client.Domain())
		functional.CollectedAt = now
		functional.SourceType = models.SourceGitHub
		functional.ProjectName = repo.GetName()
		functional.ProjectKey = repo.GetFullName()
		data.FunctionalData = functional
	}

	logging.Info("collected github data",
		"source", src.Name,
		"commits", len(commits),
		"pull_requests", len(pullRequests),
		"releases", len(releases))

	return data, nil
}

// collectCommits lists commits and fetches the file-level changes of the
// first EnrichCommits of them. Enrichment failures are logged and skipped.
func (c *Connector) collectCommits(ctx context.Context, client *Client, cs *config.CodeHostSource) ([]models.TechnicalCommit, error) {
	raw, err := client.GetCommits(ctx, cs.Repo, cs.Branch, cs.MaxCommits)
	if err != nil {
		return nil, err
	}

	commits := make([]models.TechnicalCommit, 0, len(raw))
	for i, rc := range raw {
		if i < cs.EnrichCommits {
			detailed, err := client.GetCommit(ctx, cs.Repo, rc.GetSHA())
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logging.Warn("failed to enrich commit", "sha", rc.GetSHA(), "error", err)
			} else {
				rc = detailed
			}
		}
		commit := convertCommit(rc)
		commit.Branch = cs.Branch
		commits = append(commits, commit)
	}
	return commits, nil
}

// collectPullRequests lists pull requests and attaches reviewers, approvals
// and the collected commits that belong to each of them.
func (c *Connector) collectPullRequests(ctx context.Context, client *Client, cs *config.CodeHostSource, commits []models.TechnicalCommit) ([]models.TechnicalPullRequest, error) {
	raw, err := client.GetPullRequests(ctx, cs.Repo, cs.MaxPullRequests)
	if err != nil {
		return nil, err
	}

	prs := make([]models.TechnicalPullRequest, 0, len(raw))
	for _, pr := range raw {
		converted := convertPullRequest(pr)
		converted.Commits = commitsOf(pr, commits)

		reviews, err := client.GetReviews(ctx, cs.Repo, pr.GetNumber())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.Warn("failed to fetch reviews", "pull_request", pr.GetNumber(), "error", err)
		} else {
			converted.Reviewers, converted.Approvals = reviewersFrom(pr, reviews)
		}
		prs = append(prs, converted)
	}
	return prs, nil
}

// classify maps GitHub API failures onto the connector error taxonomy.
func classify(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &connector.Error{Type: SourceType, Err: fmt.Errorf("rate limit exceeded, resets at %s: %w", rateErr.Rate.Reset.Format(time.RFC3339), err)}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return &connector.ConnectionError{Type: SourceType, Err: fmt.Errorf("invalid or missing token: %w", err)}
		case http.StatusForbidden:
			return &connector.Error{Type: SourceType, Err: fmt.Errorf("access denied or rate limited: %w", err)}
		case http.StatusNotFound:
			return &connector.Error{Type: SourceType, Err: fmt.Errorf("repository not found: %w", err)}
		}
		if respErr.Response.StatusCode >= http.StatusInternalServerError {
			return &connector.ConnectionError{Type: SourceType, Err: err}
		}
		return &connector.Error{Type: SourceType, Err: err}
	}

	if strings.Contains(err.Error(), "invalid repository format") {
		return connector.NewConfigError(SourceType, err)
	}
	return &connector.ConnectionError{Type: SourceType, Err: err}
}

func convertRepository(r *github.Repository, languages map[string]int) models.Repository {
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if languages[names[i]] != languages[names[j]] {
			return languages[names[i]] > languages[names[j]]
		}
		return names[i] < names[j]
	})

	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}

	return models.Repository{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		URL:           r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Languages:     names,
		Topics:        topics,
		CreatedAt:     timePtr(r.GetCreatedAt()),
		UpdatedAt:     timePtr(r.GetUpdatedAt()),
		StarsCount:    r.GetStargazersCount(),
		ForksCount:    r.GetForksCount(),
	}
}

func convertCommit(rc *github.RepositoryCommit) models.TechnicalCommit {
	commit := rc.GetCommit()
	author := models.Author{
		Name:  commit.GetAuthor().GetName(),
		Email: commit.GetAuthor().GetEmail(),
	}
	if u := rc.GetAuthor(); u != nil {
		author.Username = u.GetLogin()
		author.AvatarURL = u.GetAvatarURL()
	}

	changes := make([]models.CodeChange, 0, len(rc.Files))
	for _, f := range rc.Files {
		changes = append(changes, models.CodeChange{
			FilePath:    f.GetFilename(),
			ChangeType:  models.NormalizeChangeType(f.GetStatus()),
			Additions:   f.GetAdditions(),
			Deletions:   f.GetDeletions(),
			Changes:     f.GetChanges(),
			OldFilePath: f.GetPreviousFilename(),
			Language:    models.LanguageOf(f.GetFilename()),
		})
	}

	parents := make([]string, 0, len(rc.Parents))
	for _, p := range rc.Parents {
		parents = append(parents, p.GetSHA())
	}
	issues, prs := models.References(commit.GetMessage())

	return models.TechnicalCommit{
		SHA:            rc.GetSHA(),
		Message:        commit.GetMessage(),
		MessageSubject: models.SubjectOf(commit.GetMessage()),
		Author:         author,
		Date:           commit.GetAuthor().GetDate().Time,
		URL:            rc.GetHTMLURL(),
		Changes:        changes,
		FilesChanged:   len(rc.Files),
		Additions:      rc.GetStats().GetAdditions(),
		Deletions:      rc.GetStats().GetDeletions(),
		ParentSHAs:     parents,
		IsMerge:        len(parents) > 1,
		Tags:           []string{},
		LinkedIssues:   issues,
		LinkedPRs:      prs,
	}
}

func convertPullRequest(pr *github.PullRequest) models.TechnicalPullRequest {
	status := models.PullRequestStatus(pr.GetState())
	switch {
	case pr.MergedAt != nil:
		status = models.PullRequestMerged
	case pr.GetDraft() && pr.GetState() == "open":
		status = models.PullRequestDraft
	case pr.GetState() != "open":
		status = models.PullRequestClosed
	}

	labels := make([]models.Label, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, convertLabel(l))
	}

	issues, _ := models.References(pr.GetTitle() + "\n\n" + pr.GetBody())

	return models.TechnicalPullRequest{
		ID:                  strconv.FormatInt(pr.GetID(), 10),
		Number:              pr.GetNumber(),
		Title:               pr.GetTitle(),
		Description:         pr.GetBody(),
		Status:              status,
		Author:              authorFrom(pr.GetUser()),
		CreatedAt:           pr.GetCreatedAt().Time,
		UpdatedAt:           pr.GetUpdatedAt().Time,
		MergedAt:            timePtr(pr.GetMergedAt()),
		ClosedAt:            timePtr(pr.GetClosedAt()),
		SourceBranch:        pr.GetHead().GetRef(),
		TargetBranch:        pr.GetBase().GetRef(),
		CommitsCount:        pr.GetCommits(),
		Commits:             []models.TechnicalCommit{},
		Additions:           pr.GetAdditions(),
		Deletions:           pr.GetDeletions(),
		ChangedFiles:        pr.GetChangedFiles(),
		Reviewers:           []models.Author{},
		Approvals:           []models.Author{},
		CommentsCount:       pr.GetComments(),
		ReviewCommentsCount: pr.GetReviewComments(),
		Labels:              labels,
		Milestone:           pr.GetMilestone().GetTitle(),
		LinkedIssues:        issues,
		URL:                 pr.GetHTMLURL(),
	}
}

// commitsOf returns the collected commits that belong to pr: its merge
// commit and every commit whose message references it.
func commitsOf(pr *github.PullRequest, commits []models.TechnicalCommit) []models.TechnicalCommit {
	number := strconv.Itoa(pr.GetNumber())
	out := []models.TechnicalCommit{}
	for _, c := range commits {
		if (pr.GetMergeCommitSHA() != "" && c.SHA == pr.GetMergeCommitSHA()) || slices.Contains(c.LinkedPRs, number) {
			out = append(out, c)
		}
	}
	return out
}

// reviewersFrom returns the requested reviewers plus everyone who submitted
// a review, and the subset whose latest review approved the change.
func reviewersFrom(pr *github.PullRequest, reviews []*github.PullRequestReview) ([]models.Author, []models.Author) {
	seen := make(map[string]bool)
	reviewers := []models.Author{}
	for _, u := range pr.RequestedReviewers {
		if !seen[u.GetLogin()] {
			seen[u.GetLogin()] = true
			reviewers = append(reviewers, authorFrom(u))
		}
	}

	latest := make(map[string]string)
	var order []string
	for _, r := range reviews {
		login := r.GetUser().GetLogin()
		if !seen[login] {
			seen[login] = true
			reviewers = append(reviewers, authorFrom(r.GetUser()))
		}
		if _, ok := latest[login]; !ok {
			order = append(order, login)
		}
		if state := r.GetState(); state != "COMMENTED" {
			latest[login] = state
		}
	}

	approvals := []models.Author{}
	for _, login := range order {
		if latest[login] == "APPROVED" {
			approvals = append(approvals, models.Author{Name: login, Username: login})
		}
	}
	return reviewers, approvals
}

func convertRelease(r *github.RepositoryRelease) models.Release {
	return models.Release{
		Tag:          r.GetTagName(),
		Name:         r.GetName(),
		Description:  r.GetBody(),
		Author:       authorFrom(r.GetAuthor()),
		CreatedAt:    r.GetCreatedAt().Time,
		PublishedAt:  timePtr(r.GetPublishedAt()),
		IsPrerelease: r.GetPrerelease(),
		IsDraft:      r.GetDraft(),
		URL:          r.GetHTMLURL(),
	}
}

func convertLabel(l *github.Label) models.Label {
	return models.Label{
		Name:        l.GetName(),
		Color:       l.GetColor(),
		Description: l.GetDescription(),
	}
}

func authorFrom(u *github.User) models.Author {
	name := u.GetName()
	if name == "" {
		name = u.GetLogin()
	}
	return models.Author{
		Name:      name,
		Email:     u.GetEmail(),
		Username:  u.GetLogin(),
		AvatarURL: u.GetAvatarURL(),
	}
}

func timePtr(ts github.Timestamp) *time.Time {
	if ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}
