package localfiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/connector"
	"github.com/elhajjaji/wara9a/pkg/models"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func filesSource(t *testing.T, path string, extra map[string]any) config.Source {
	t.Helper()
	record := map[string]any{"type": "local_files", "name": "local", "path": path}
	for k, v := range extra {
		record[k] = v
	}
	src, err := config.ParseSource(record)
	require.NoError(t, err)
	return src
}

// fakeGit answers the git commands issued by the connector.
func fakeGit(calls *[]string) GitRunner {
	return func(_ context.Context, _ string, args ...string) (string, error) {
		*calls = append(*calls, strings.Join(args, " "))
		switch {
		case args[0] == "branch":
			return "develop\n", nil
		case args[0] == "remote":
			return "git@github.com:acme/demo.git\n", nil
		case args[0] == "log" && args[1] == "--reverse":
			return "2023-01-01T09:00:00Z\n2023-02-01T09:00:00Z\n", nil
		case args[0] == "log":
			return strings.Join([]string{
				"aaaaaaaaaaaa\x1fAda\x1fada@example.com\x1f2024-04-02T10:00:00+02:00\x1fp1\x1fHEAD -> develop, tag: v1.1.0\x1ffeat: add exporter for DOC-3 (#4)",
				"bbbbbbbbbbbb\x1fBob\x1fbob@example.com\x1f2024-04-01T10:00:00Z\x1fp1 p2\x1f\x1fMerge branch 'x' | with pipe",
				"garbage line",
			}, "\n") + "\n", nil
		}
		return "", errors.New("unexpected git command")
	}
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".git/HEAD": "ref: refs/heads/develop\n",
		"README.md": "# Demo\n\n[![build](x)](y)\n\nA tool that writes docs.\n",
		"CHANGELOG.md": "# Changelog\n\n## [Unreleased]\n\n## [1.1.0] - 2024-04-02\n### Added\n- exporter\n\n" +
			"## [1.0.0] - 2024-01-15\n- first release\n",
		"main.go":                   "package main\n\n// entry point\nfunc main() {\n\t// TODO: parse flags\n}\n",
		"util/helpers.go":           "package util\n\n// FIXME handle errors\nfunc Help() {}\n",
		"scripts/run.py":            "# HACK around path\nprint('hi')\n",
		"node_modules/lib/index.js": "// TODO ignored\n",
		".hidden/skip.go":           "package skip\n",
		"docs/guide/setup.md":       "# Setup\n",
	})

	var calls []string
	c := &Connector{git: fakeGit(&calls), now: func() time.Time { return fixedNow }}

	data, err := c.Collect(context.Background(), filesSource(t, root, map[string]any{"max_commits": 10}))
	require.NoError(t, err)

	assert.Equal(t, models.SourceLocalFiles, data.SourceType)
	assert.Equal(t, fixedNow, data.CollectedAt)
	assert.Nil(t, data.FunctionalData)

	repo := data.Repository
	assert.Equal(t, filepath.Base(root), repo.Name)
	assert.Equal(t, "A tool that writes docs.", repo.Description)
	assert.Equal(t, "develop", repo.DefaultBranch)
	assert.Equal(t, "git@github.com:acme/demo.git", repo.URL)
	require.NotNil(t, repo.CreatedAt)
	assert.Equal(t, 2023, repo.CreatedAt.Year())
	assert.Equal(t, []string{"Go", "Python"}, repo.Languages)

	assert.Contains(t, calls, "log --max-count=10 --format=%H\x1f%an\x1f%ae\x1f%cI\x1f%P\x1f%D\x1f%s")

	tech := data.TechnicalData
	require.NotNil(t, tech)
	require.Len(t, tech.Commits, 2, "malformed lines are skipped")
	assert.Equal(t, "feat: add exporter for DOC-3 (#4)", tech.Commits[0].MessageSubject)
	assert.Equal(t, []string{"v1.1.0"}, tech.Commits[0].Tags)
	assert.Equal(t, "develop", tech.Commits[0].Branch)
	assert.Equal(t, []string{"p1"}, tech.Commits[0].ParentSHAs)
	assert.Equal(t, []string{"DOC-3"}, tech.Commits[0].LinkedIssues)
	assert.Equal(t, []string{"4"}, tech.Commits[0].LinkedPRs)
	assert.True(t, tech.Commits[1].IsMerge)
	assert.Equal(t, []string{"p1", "p2"}, tech.Commits[1].ParentSHAs)
	assert.Equal(t, "Merge branch 'x' | with pipe", tech.Commits[1].Message)

	assert.Equal(t, filepath.Base(root), tech.RepositoryName)
	assert.Equal(t, "git@github.com:acme/demo.git", tech.RepositoryURL)
	assert.Equal(t, "develop", tech.DefaultBranch)
	assert.Equal(t, fixedNow, tech.CollectedAt)
	assert.Equal(t, models.SourceLocalFiles, tech.SourceType)

	require.Len(t, tech.CodeMetrics, 2)
	goMetrics, ok := tech.CodeMetrics["Go"]
	require.True(t, ok)
	assert.Equal(t, "Go", goMetrics.Language)
	assert.Equal(t, 2, goMetrics.FilesCount)
	assert.Equal(t, 3, goMetrics.CommentLines)
	assert.Equal(t, 2, goMetrics.BlankLines)

	require.Len(t, tech.TechnicalDebt, 3)
	byTitle := map[string]models.TechnicalDebt{}
	for _, d := range tech.TechnicalDebt {
		byTitle[d.Title] = d
	}
	assert.Equal(t, models.PriorityLow, byTitle["parse flags"].Severity)
	assert.Equal(t, "main.go", byTitle["parse flags"].FilePath)
	assert.Equal(t, 5, byTitle["parse flags"].LineNumber)
	assert.Equal(t, models.PriorityHigh, byTitle["handle errors"].Severity)
	assert.Equal(t, models.PriorityMedium, byTitle["around path"].Severity)
	assert.Equal(t, models.DebtTodo, byTitle["parse flags"].Type)
	assert.Equal(t, models.DebtBug, byTitle["handle errors"].Type)
	assert.Equal(t, models.DebtCodeSmell, byTitle["around path"].Type)

	require.Len(t, data.Releases, 2)
	assert.Equal(t, "v1.1.0", data.Releases[0].Tag)
	assert.Equal(t, "- exporter", data.Releases[0].Description)
	latest := data.LatestRelease()
	require.NotNil(t, latest)
	assert.Equal(t, "v1.1.0", latest.Tag)
}

func TestCollectWithoutGit(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"app.py": "x = 1\n"})

	c := &Connector{
		git: func(context.Context, string, ...string) (string, error) {
			t.Fatal("git must not run outside a repository")
			return "", nil
		},
		now: func() time.Time { return fixedNow },
	}

	data, err := c.Collect(context.Background(), filesSource(t, root, map[string]any{"scan_debt": false}))
	require.NoError(t, err)
	assert.Empty(t, data.TechnicalData.Commits)
	assert.Empty(t, data.TechnicalData.TechnicalDebt)
	assert.Empty(t, data.Releases)
	assert.Equal(t, "main", data.Repository.DefaultBranch)
	assert.Equal(t, []string{"Python"}, data.Repository.Languages)
}

func TestCollectGitFailureIsNotFatal(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{".git/HEAD": "x"})

	c := &Connector{
		git: func(context.Context, string, ...string) (string, error) {
			return "", errors.New("git: command not found")
		},
		now: func() time.Time { return fixedNow },
	}

	data, err := c.Collect(context.Background(), filesSource(t, root, nil))
	require.NoError(t, err)
	assert.Empty(t, data.TechnicalData.Commits)
	assert.Nil(t, data.Repository.CreatedAt)
}

func TestCollectCancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.go": "package a\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewConnector().Collect(ctx, filesSource(t, root, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestValidateConfig(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	testCases := []struct {
		name    string
		record  map[string]any
		wantErr string
	}{
		{name: "Valid", record: map[string]any{"path": root}},
		{name: "Missing path", record: map[string]any{"path": ""}, wantErr: "path is required"},
		{name: "Path does not exist", record: map[string]any{"path": filepath.Join(root, "nope")}, wantErr: "does not exist"},
		{name: "Path is a file", record: map[string]any{"path": file}, wantErr: "must be a directory"},
		{name: "Negative commits", record: map[string]any{"path": root, "max_commits": -1}, wantErr: "max_commits"},
		{name: "Bad pattern", record: map[string]any{"path": root, "patterns": []string{"[a-"}}, wantErr: "invalid pattern"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.record["type"] = "local_files"
			src, err := config.ParseSource(tc.record)
			require.NoError(t, err)

			errs := NewConnector().ValidateConfig(src)
			if tc.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			assert.Contains(t, errors.Join(errs...).Error(), tc.wantErr)
		})
	}

	_, err := NewConnector().Collect(context.Background(), filesSource(t, file, nil))
	var cfgErr *connector.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestMatchesAny(t *testing.T) {
	patterns := []string{"README.md", "docs/**/*.md"}

	testCases := []struct {
		path     string
		expected bool
	}{
		{path: "README.md", expected: true},
		{path: "docs/index.md", expected: true},
		{path: "docs/guide/deep/setup.md", expected: true},
		{path: "docs/image.png", expected: false},
		{path: "src/README.md", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, matchesAny(tc.path, patterns))
		})
	}
}

func TestReadmeDescription(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected string
	}{
		{name: "ATX heading", content: "# Title\n\nFirst line.\nSecond.", expected: "First line."},
		{name: "Setext heading", content: "Title\n=====\n\nBody text", expected: "Body text"},
		{name: "Badges skipped", content: "# T\n[![ci](a)](b)\n![logo](c)\nReal", expected: "Real"},
		{name: "Only headings", content: "# A\n## B\n", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, readmeDescription(tc.content))
		})
	}
}
