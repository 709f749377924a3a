package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestLatestRelease(t *testing.T) {
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		releases []Release
		wantTag  string
	}{
		{
			name:     "No releases",
			releases: nil,
			wantTag:  "",
		},
		{
			name: "Draft with the newest date is excluded",
			releases: []Release{
				{Tag: "v1.0.0", PublishedAt: ptrTime(jan)},
				{Tag: "v2.0.0", PublishedAt: ptrTime(mar), IsDraft: true},
				{Tag: "v1.1.0", PublishedAt: ptrTime(feb)},
			},
			wantTag: "v1.1.0",
		},
		{
			name: "Unpublished releases are excluded",
			releases: []Release{
				{Tag: "v3.0.0"},
				{Tag: "v1.0.0", PublishedAt: ptrTime(jan)},
			},
			wantTag: "v1.0.0",
		},
		{
			name: "Only drafts",
			releases: []Release{
				{Tag: "v1.0.0", PublishedAt: ptrTime(jan), IsDraft: true},
			},
			wantTag: "",
		},
		{
			name: "Order of the list does not matter",
			releases: []Release{
				{Tag: "v3.0.0", PublishedAt: ptrTime(mar)},
				{Tag: "v1.0.0", PublishedAt: ptrTime(jan)},
			},
			wantTag: "v3.0.0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := &ProjectData{Releases: tc.releases}
			latest := data.LatestRelease()
			if tc.wantTag == "" {
				assert.Nil(t, latest)
				return
			}
			require.NotNil(t, latest)
			assert.Equal(t, tc.wantTag, latest.Tag)
		})
	}
}

func TestDocumentationTypes(t *testing.T) {
	testCases := []struct {
		name string
		data ProjectData
		want []string
	}{
		{
			name: "Nothing collected",
			data: ProjectData{},
			want: []string{"legacy"},
		},
		{
			name: "Empty aggregates are not data",
			data: ProjectData{FunctionalData: &FunctionalData{}, TechnicalData: &TechnicalData{}},
			want: []string{"legacy"},
		},
		{
			name: "Both kinds",
			data: ProjectData{
				FunctionalData: &FunctionalData{Epics: []Epic{{ID: "1"}}},
				TechnicalData:  &TechnicalData{Commits: []TechnicalCommit{{SHA: "abc"}}},
			},
			want: []string{"functional", "technical"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.data.DocumentationTypes())
		})
	}
}

func TestFunctionalDataValidate(t *testing.T) {
	data := &FunctionalData{
		Epics:    []Epic{{ID: "E1", Key: "P-1"}},
		Features: []Feature{{ID: "F1", Key: "P-2", EpicID: "E1"}, {ID: "F2", Key: "P-3", EpicID: "E9"}},
		UserStories: []UserStory{
			{ID: "S1", Key: "P-4", EpicID: "E1", FeatureID: "F1"},
			{ID: "S2", Key: "P-5", FeatureID: "F7"},
		},
	}

	errs := data.Validate()
	assert.Len(t, errs, 2)

	dropped := data.DropDanglingLinks()
	assert.Equal(t, 2, dropped)
	assert.Empty(t, data.Validate())
	assert.Equal(t, "E1", data.Features[0].EpicID)
	assert.Empty(t, data.Features[1].EpicID)
	assert.Equal(t, "F1", data.UserStories[0].FeatureID)
	assert.Empty(t, data.UserStories[1].FeatureID)
}

func TestOpenQueries(t *testing.T) {
	data := &FunctionalData{
		Epics: []Epic{
			{ID: "1", Status: StatusOpen},
			{ID: "2", Status: StatusClosed},
			{ID: "3", Status: StatusInProgress},
		},
		Features:     []Feature{{ID: "4", Status: StatusResolved}},
		UserStories:  []UserStory{{ID: "5", Status: StatusOpen}},
		Requirements: []Requirement{{ID: "6", Status: StatusInProgress}},
	}

	open := data.OpenEpics()
	require.Len(t, open, 2)
	assert.Equal(t, "1", open[0].ID)
	assert.Equal(t, "3", open[1].ID)

	items := data.OpenWorkItems()
	require.Len(t, items, 2)
	assert.Equal(t, "story", items[0].Kind)
	assert.Equal(t, "requirement", items[1].Kind)
}

func TestNormalizeStatus(t *testing.T) {
	testCases := map[string]IssueStatus{
		"To Do":       StatusOpen,
		"In Progress": StatusInProgress,
		"Done":        StatusClosed,
		"Resolved":    StatusResolved,
		"whatever":    StatusOpen,
	}
	for input, want := range testCases {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, want, NormalizeStatus(input))
		})
	}
}

func TestRecentCommitsKeepsCollectionOrder(t *testing.T) {
	var commits []TechnicalCommit
	for i := 0; i < 15; i++ {
		commits = append(commits, TechnicalCommit{SHA: string(rune('a' + i))})
	}
	data := &ProjectData{TechnicalData: &TechnicalData{Commits: commits}}

	recent := data.RecentCommits(10)
	require.Len(t, recent, 10)
	assert.Equal(t, "a", recent[0].SHA)
	assert.Equal(t, "j", recent[9].SHA)

	assert.Nil(t, (&ProjectData{}).RecentCommits(10))
}

func TestTechnicalAggregates(t *testing.T) {
	data := &TechnicalData{
		Commits: []TechnicalCommit{
			{Author: Author{Name: "Ada"}, Additions: 10, Deletions: 2},
			{Author: Author{Username: "bob"}, Additions: 5, Deletions: 1},
		},
		PullRequests: []TechnicalPullRequest{
			{Number: 1, Status: PullRequestMerged},
			{Number: 2, Status: PullRequestOpen},
		},
	}

	assert.Equal(t, 15, data.TotalAdditions())
	assert.Equal(t, 3, data.TotalDeletions())
	assert.Len(t, data.CommitsByAuthor("bob"), 1)
	merged := data.MergedPullRequests()
	require.Len(t, merged, 1)
	assert.Equal(t, 1, merged[0].Number)
}

func TestEmptyProjectData(t *testing.T) {
	data := EmptyProjectData("demo", "a demo project")
	assert.Equal(t, "demo", data.Repository.Name)
	assert.Equal(t, "a demo project", data.Repository.Description)
	assert.Equal(t, SourceCustom, data.SourceType)
	assert.Nil(t, data.FunctionalData)
	assert.Nil(t, data.TechnicalData)
	assert.False(t, data.CollectedAt.IsZero())
}

func TestReferences(t *testing.T) {
	testCases := []struct {
		name    string
		message string
		issues  []string
		prs     []string
	}{
		{
			name:    "plain message",
			message: "chore: bump deps",
			issues:  []string{},
			prs:     []string{},
		},
		{
			name:    "merge commit",
			message: "Merge pull request #42 from acme/feature\n\nFixes #7",
			issues:  []string{"7"},
			prs:     []string{"42"},
		},
		{
			name:    "squash merge",
			message: "feat: export csv (#12)\n\nCloses #3, refs DOC-9 and #3",
			issues:  []string{"3", "DOC-9"},
			prs:     []string{"12"},
		},
		{
			name:    "anchors are not references",
			message: "docs: link to page#12",
			issues:  []string{},
			prs:     []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			issues, prs := References(tc.message)
			assert.Equal(t, tc.issues, issues)
			assert.Equal(t, tc.prs, prs)
		})
	}
}

func TestLanguageOf(t *testing.T) {
	assert.Equal(t, "Go", LanguageOf("cmd/main.go"))
	assert.Equal(t, "Python", LanguageOf("SCRIPT.PY"))
	assert.Equal(t, "", LanguageOf("README"))
}

func TestLanguagesBySize(t *testing.T) {
	metrics := map[string]CodeMetrics{
		"Shell":  {FilesCount: 2},
		"Go":     {FilesCount: 5},
		"Python": {FilesCount: 2},
	}
	assert.Equal(t, []string{"Go", "Python", "Shell"}, LanguagesBySize(metrics))
	assert.Empty(t, LanguagesBySize(nil))
}

func TestCollectionMetadataFields(t *testing.T) {
	collected := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tech := &TechnicalData{
		Commits: []TechnicalCommit{{
			SHA:          "abc",
			ParentSHAs:   []string{"p1", "p2"},
			LinkedIssues: []string{"7"},
			LinkedPRs:    []string{"42"},
			Changes:      []CodeChange{{FilePath: "a.go", Changes: 3, Language: "Go"}},
		}},
		PullRequests:   []TechnicalPullRequest{{ID: "1001", Number: 42, LinkedIssues: []string{"7"}}},
		CodeMetrics:    map[string]CodeMetrics{"Go": {Language: "Go", FilesCount: 1}},
		TechnicalDebt:  []TechnicalDebt{{ID: "a.go:1", Type: DebtTodo}},
		RepositoryName: "acme/demo",
		RepositoryURL:  "https://github.com/acme/demo",
		DefaultBranch:  "main",
		CollectedAt:    collected,
		SourceType:     SourceGitHub,
	}
	functional := &FunctionalData{CollectedAt: collected, SourceType: SourceJira, ProjectName: "Docs", ProjectKey: "DOC"}

	raw, err := json.Marshal(map[string]any{"technical": tech, "functional": functional})
	require.NoError(t, err)

	var decoded struct {
		Technical  map[string]any `json:"technical"`
		Functional map[string]any `json:"functional"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "acme/demo", decoded.Technical["repository_name"])
	assert.Equal(t, "https://github.com/acme/demo", decoded.Technical["repository_url"])
	assert.Equal(t, "main", decoded.Technical["default_branch"])
	assert.Equal(t, "github", decoded.Technical["source_type"])
	assert.Equal(t, "2024-05-01T12:00:00Z", decoded.Technical["collected_at"])
	assert.Contains(t, decoded.Technical["code_metrics"], "Go")

	commit := decoded.Technical["commits"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{"p1", "p2"}, commit["parent_shas"])
	assert.Equal(t, []any{"7"}, commit["linked_issues"])
	assert.Equal(t, []any{"42"}, commit["linked_prs"])
	change := commit["changes"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(3), change["changes"])
	assert.Equal(t, "Go", change["language"])

	pr := decoded.Technical["pull_requests"].([]any)[0].(map[string]any)
	assert.Equal(t, "1001", pr["id"])
	assert.Equal(t, []any{"7"}, pr["linked_issues"])

	debt := decoded.Technical["technical_debt"].([]any)[0].(map[string]any)
	assert.Equal(t, "todo", debt["type"])

	assert.Equal(t, "DOC", decoded.Functional["project_key"])
	assert.Equal(t, "Docs", decoded.Functional["project_name"])
	assert.Equal(t, "jira", decoded.Functional["source_type"])
}
