package localfiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// gitTimeout bounds each git invocation.
const gitTimeout = 30 * time.Second

// fieldSep separates the fields of the git log format.
const fieldSep = "\x1f"

// GitRunner runs a git command in dir and returns its standard output.
type GitRunner func(ctx context.Context, dir string, args ...string) (string, error)

// execGit is the GitRunner backed by the git binary.
func execGit(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git %s failed: %w (stderr: %s)", args[0], err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return string(output), nil
}

// isGitRepo reports whether dir holds a .git directory or file.
func isGitRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// gitInfo is the repository metadata read from git.
type gitInfo struct {
	branch      string
	remoteURL   string
	firstCommit *time.Time
}

func readGitInfo(ctx context.Context, run GitRunner, dir string) gitInfo {
	var info gitInfo

	if out, err := run(ctx, dir, "branch", "--show-current"); err == nil {
		info.branch = strings.TrimSpace(out)
	} else {
		logging.Warn("failed to read git branch", "path", dir, "error", err)
	}

	if out, err := run(ctx, dir, "remote", "get-url", "origin"); err == nil {
		info.remoteURL = strings.TrimSpace(out)
	}

	if out, err := run(ctx, dir, "log", "--reverse", "--format=%cI"); err == nil {
		first, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(first)); err == nil {
			info.firstCommit = &t
		}
	}

	return info
}

// readCommits returns the last limit commits, most recent first.
func readCommits(ctx context.Context, run GitRunner, dir, branch string, limit int) ([]models.TechnicalCommit, error) {
	if limit <= 0 {
		return []models.TechnicalCommit{}, nil
	}
	format := strings.Join([]string{"%H", "%an", "%ae", "%cI", "%P", "%D", "%s"}, fieldSep)
	out, err := run(ctx, dir, "log", fmt.Sprintf("--max-count=%d", limit), "--format="+format)
	if err != nil {
		return nil, err
	}
	return parseGitLog(out, branch), nil
}

// parseGitLog parses the output of readCommits' log format. Malformed lines
// are skipped.
func parseGitLog(out, branch string) []models.TechnicalCommit {
	commits := []models.TechnicalCommit{}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, fieldSep, 7)
		if len(parts) != 7 {
			logging.Debug("skipping malformed git log line", "line", line)
			continue
		}

		date, err := time.Parse(time.RFC3339, parts[3])
		if err != nil {
			logging.Debug("skipping git commit with invalid date", "sha", parts[0], "error", err)
			continue
		}

		parents := strings.Fields(parts[4])
		issues, prs := models.References(parts[6])
		commits = append(commits, models.TechnicalCommit{
			SHA:            parts[0],
			Message:        parts[6],
			MessageSubject: models.SubjectOf(parts[6]),
			Author:         models.Author{Name: parts[1], Email: parts[2]},
			Date:           date,
			Branch:         branch,
			Changes:        []models.CodeChange{},
			ParentSHAs:     parents,
			IsMerge:        len(parents) > 1,
			Tags:           tagsFromDecoration(parts[5]),
			LinkedIssues:   issues,
			LinkedPRs:      prs,
		})
	}
	return commits
}

// tagsFromDecoration extracts tag names from a %D ref list such as
// "HEAD -> main, tag: v1.0.0".
func tagsFromDecoration(refs string) []string {
	tags := []string{}
	for _, ref := range strings.Split(refs, ",") {
		if tag, ok := strings.CutPrefix(strings.TrimSpace(ref), "tag: "); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}
