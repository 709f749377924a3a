// Package localfiles collects project documentation from a directory on
// disk: README and CHANGELOG files, git history and source code metrics.
package localfiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/connector"
	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// SourceType is the "type" value of local file sources.
const SourceType = "local_files"

var readmeNames = []string{"README.md", "README.txt", "README.rst", "README"}

// Connector reads a local project directory.
type Connector struct {
	git GitRunner
	now func() time.Time
}

// NewConnector returns a connector that shells out to the git binary.
func NewConnector() *Connector {
	return &Connector{git: execGit, now: time.Now}
}

func (c *Connector) Type() string                 { return SourceType }
func (c *Connector) Category() connector.Category { return connector.CategoryFiles }
func (c *Connector) DisplayName() string          { return "Local files" }

func (c *Connector) Description() string {
	return "README, CHANGELOG, git history and code metrics from a local directory"
}

func (c *Connector) RequiredConfigFields() []string {
	return []string{"path"}
}

func (c *Connector) OptionalConfigFields() []string {
	return []string{"patterns", "max_commits", "scan_debt"}
}

// ValidateConfig checks that path names an existing directory.
func (c *Connector) ValidateConfig(src config.Source) []error {
	fs := src.Files
	if fs == nil {
		return []error{fmt.Errorf("source %q is not a local files source", src.Name)}
	}

	var errs []error
	if fs.Path == "" {
		errs = append(errs, errors.New("path is required"))
	} else if info, err := os.Stat(fs.Path); err != nil {
		errs = append(errs, fmt.Errorf("path does not exist: %s", fs.Path))
	} else if !info.IsDir() {
		errs = append(errs, fmt.Errorf("path must be a directory: %s", fs.Path))
	}
	if fs.MaxCommits < 0 {
		errs = append(errs, errors.New("max_commits must not be negative"))
	}
	for _, pattern := range fs.Patterns {
		if _, err := filepath.Match(strings.ReplaceAll(pattern, "**", "*"), ""); err != nil {
			errs = append(errs, fmt.Errorf("invalid pattern %q: %w", pattern, err))
		}
	}
	return errs
}

// Collect reads the directory. Missing git metadata is not an error; the
// result simply carries no commits.
func (c *Connector) Collect(ctx context.Context, src config.Source) (*models.ProjectData, error) {
	if errs := c.ValidateConfig(src); len(errs) > 0 {
		return nil, connector.NewConfigError(SourceType, errs...)
	}
	fs := src.Files

	root, err := filepath.Abs(fs.Path)
	if err != nil {
		return nil, &connector.Error{Type: SourceType, Err: fmt.Errorf("failed to resolve path: %w", err)}
	}
	now := c.now().UTC()

	logging.Info("collecting local files", "source", src.Name, "path", root)

	scan, err := scanTree(ctx, root, fs.Patterns, fs.ScanDebt, now)
	if err != nil {
		return nil, &connector.Error{Type: SourceType, Err: err}
	}
	logging.Debug("scanned local files",
		"documents", scan.documents,
		"languages", scan.languages,
		"debt_items", len(scan.debt))

	repo := models.Repository{
		Name:          filepath.Base(root),
		FullName:      filepath.Base(root),
		Description:   readmeDescription(readFirst(root, scan.documents, "README", readmeNames)),
		DefaultBranch: "main",
		Languages:     scan.languages,
		Topics:        []string{},
		UpdatedAt:     &now,
	}

	commits := []models.TechnicalCommit{}
	if isGitRepo(root) {
		info := readGitInfo(ctx, c.git, root)
		if info.branch != "" {
			repo.DefaultBranch = info.branch
		}
		repo.URL = info.remoteURL
		repo.CreatedAt = info.firstCommit

		commits, err = readCommits(ctx, c.git, root, info.branch, fs.MaxCommits)
		if err != nil {
			logging.Warn("failed to read git commits", "source", src.Name, "error", err)
			commits = []models.TechnicalCommit{}
		}
	} else {
		logging.Debug("not a git repository, skipping history", "path", root)
	}

	releases := parseChangelog(readFirst(root, scan.documents, "CHANGELOG", changelogNames), now)

	data := &models.ProjectData{
		TechnicalData: &models.TechnicalData{
			Commits:        commits,
			PullRequests:   []models.TechnicalPullRequest{},
			CodeMetrics:    scan.metrics,
			TechnicalDebt:  scan.debt,
			RepositoryName: repo.Name,
			RepositoryURL:  repo.URL,
			DefaultBranch:  repo.DefaultBranch,
			CollectedAt:    now,
			SourceType:     models.SourceLocalFiles,
		},
		Repository:   repo,
		Releases:     releases,
		CollectedAt:  now,
		SourceType:   models.SourceLocalFiles,
		SourceConfig: src.Redacted(),
	}

	logging.Info("collected local files",
		"source", src.Name,
		"commits", len(commits),
		"releases", len(releases),
		"languages", len(scan.languages))

	return data, nil
}

// readFirst returns the content of the first matched document whose base
// name starts with prefix, falling back to the well-known names in root.
func readFirst(root string, documents []string, prefix string, fallbacks []string) string {
	candidates := make([]string, 0, len(documents)+len(fallbacks))
	for _, doc := range documents {
		if strings.HasPrefix(strings.ToUpper(filepath.Base(doc)), prefix) {
			candidates = append(candidates, doc)
		}
	}
	candidates = append(candidates, fallbacks...)

	for _, name := range candidates {
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
		if err == nil {
			return string(content)
		}
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("failed to read file", "file", name, "error", err)
		}
	}
	return ""
}
