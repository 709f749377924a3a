package localfiles

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/elhajjaji/wara9a/pkg/models"
)

// changelogNames are tried in order when no pattern names a changelog.
var changelogNames = []string{"CHANGELOG.md", "CHANGELOG.txt", "CHANGELOG", "HISTORY.md"}

// versionHeader matches "## [1.0.0] - 2024-01-01", "## Version 1.0.0 (2024-01-01)",
// "# v1.0.0" and similar release headings.
var versionHeader = regexp.MustCompile(`(?i)^##?\s*(?:version\s+)?\[?v?(\d+\.\d+\.\d+[^\]\s()]*)\]?\s*[-–]?\s*\(?(\d{4}-\d{2}-\d{2})?\)?`)

// parseChangelog extracts releases from changelog content, newest version
// first. Releases without a date are kept but never count as published.
func parseChangelog(content string, now time.Time) []models.Release {
	var releases []models.Release
	var current *models.Release
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Description = strings.TrimSpace(strings.Join(body, "\n"))
		releases = append(releases, *current)
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := versionHeader.FindStringSubmatch(trimmed); m != nil {
			flush()
			current = newChangelogRelease(m[1], m[2], now)
			body = nil
			continue
		}
		if current == nil || trimmed == "" && len(body) == 0 || strings.HasPrefix(trimmed, "###") {
			continue
		}
		body = append(body, line)
	}
	flush()

	sort.SliceStable(releases, func(i, j int) bool {
		return semver.Compare(releases[i].Tag, releases[j].Tag) > 0
	})
	if releases == nil {
		releases = []models.Release{}
	}
	return releases
}

func newChangelogRelease(version, date string, now time.Time) *models.Release {
	tag := "v" + version
	release := &models.Release{
		Tag:          tag,
		Name:         version,
		Author:       models.Author{Name: "unknown"},
		CreatedAt:    now,
		IsPrerelease: isPrerelease(tag),
	}
	if date != "" {
		if t, err := time.Parse("2006-01-02", date); err == nil {
			release.CreatedAt = t
			release.PublishedAt = &t
		}
	}
	return release
}

// isPrerelease reports whether tag carries a semver prerelease suffix or a
// conventional alpha/beta/rc marker.
func isPrerelease(tag string) bool {
	if semver.IsValid(tag) && semver.Prerelease(tag) != "" {
		return true
	}
	lower := strings.ToLower(tag)
	for _, marker := range []string{"alpha", "beta", "rc"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
