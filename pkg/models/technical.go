package models

import (
	"sort"
	"strings"
	"time"
)

// CodeChange is a single file touched by a commit.
type CodeChange struct {
	FilePath    string     `json:"file_path"`
	ChangeType  ChangeType `json:"change_type"`
	Additions   int        `json:"additions"`
	Deletions   int        `json:"deletions"`
	Changes     int        `json:"changes"`
	OldFilePath string     `json:"old_file_path,omitempty"`
	Language    string     `json:"language,omitempty"`
}

// TechnicalCommit is a commit normalized across code hosts and local git.
type TechnicalCommit struct {
	SHA            string       `json:"sha"`
	Message        string       `json:"message"`
	MessageSubject string       `json:"message_subject"`
	Author         Author       `json:"author"`
	Date           time.Time    `json:"date"`
	URL            string       `json:"url,omitempty"`
	Branch         string       `json:"branch,omitempty"`
	Changes        []CodeChange `json:"changes"`
	FilesChanged   int          `json:"files_changed"`
	Additions      int          `json:"additions"`
	Deletions      int          `json:"deletions"`
	ParentSHAs     []string     `json:"parent_shas"`
	IsMerge        bool         `json:"is_merge"`
	Tags           []string     `json:"tags"`
	LinkedIssues   []string     `json:"linked_issues"`
	LinkedPRs      []string     `json:"linked_prs"`
}

// ShortSHA returns the abbreviated commit hash.
func (c TechnicalCommit) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// SubjectOf returns the first line of a commit message.
func SubjectOf(message string) string {
	subject, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(subject)
}

// TechnicalPullRequest is a pull (or merge) request.
type TechnicalPullRequest struct {
	ID                  string            `json:"id"`
	Number              int               `json:"number"`
	Title               string            `json:"title"`
	Description         string            `json:"description,omitempty"`
	Status              PullRequestStatus `json:"status"`
	Author              Author            `json:"author"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	MergedAt            *time.Time        `json:"merged_at,omitempty"`
	ClosedAt            *time.Time        `json:"closed_at,omitempty"`
	SourceBranch        string            `json:"source_branch"`
	TargetBranch        string            `json:"target_branch"`
	CommitsCount        int               `json:"commits_count"`
	Commits             []TechnicalCommit `json:"commits"`
	Additions           int               `json:"additions"`
	Deletions           int               `json:"deletions"`
	ChangedFiles        int               `json:"changed_files"`
	Reviewers           []Author          `json:"reviewers"`
	Approvals           []Author          `json:"approvals"`
	CommentsCount       int               `json:"comments_count"`
	ReviewCommentsCount int               `json:"review_comments_count"`
	Labels              []Label           `json:"labels"`
	Milestone           string            `json:"milestone,omitempty"`
	LinkedIssues        []string          `json:"linked_issues"`
	URL                 string            `json:"url,omitempty"`
}

// CodeMetrics is a snapshot of the code base size for one language.
type CodeMetrics struct {
	Language     string    `json:"language"`
	FilesCount   int       `json:"files_count"`
	LinesOfCode  int       `json:"lines_of_code"`
	BlankLines   int       `json:"blank_lines"`
	CommentLines int       `json:"comment_lines"`
	Complexity   *float64  `json:"complexity,omitempty"`
	MeasuredAt   time.Time `json:"measured_at"`
}

// Technical debt kinds.
const (
	DebtTodo      = "todo"
	DebtBug       = "bug"
	DebtCodeSmell = "code_smell"
)

// TechnicalDebt is a known shortcut or problem in the code.
type TechnicalDebt struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Severity       Priority   `json:"severity"`
	FilePath       string     `json:"file_path,omitempty"`
	LineNumber     int        `json:"line_number,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	URL            string     `json:"url,omitempty"`
}

// TechnicalData groups the technical documentation collected from a source.
// CodeMetrics is keyed by language.
type TechnicalData struct {
	Commits        []TechnicalCommit      `json:"commits"`
	PullRequests   []TechnicalPullRequest `json:"pull_requests"`
	CodeMetrics    map[string]CodeMetrics `json:"code_metrics"`
	TechnicalDebt  []TechnicalDebt        `json:"technical_debt"`
	RepositoryName string                 `json:"repository_name,omitempty"`
	RepositoryURL  string                 `json:"repository_url,omitempty"`
	DefaultBranch  string                 `json:"default_branch,omitempty"`
	CollectedAt    time.Time              `json:"collected_at"`
	SourceType     SourceType             `json:"source_type,omitempty"`
}

// IsEmpty reports whether no technical entity was collected.
func (t *TechnicalData) IsEmpty() bool {
	return t == nil || len(t.Commits)+len(t.PullRequests)+len(t.CodeMetrics)+len(t.TechnicalDebt) == 0
}

// MergedPullRequests returns the pull requests that were merged.
func (t *TechnicalData) MergedPullRequests() []TechnicalPullRequest {
	if t == nil {
		return nil
	}
	var merged []TechnicalPullRequest
	for _, pr := range t.PullRequests {
		if pr.Status == PullRequestMerged {
			merged = append(merged, pr)
		}
	}
	return merged
}

// CommitsByAuthor returns the commits whose author matches name, username or email.
func (t *TechnicalData) CommitsByAuthor(who string) []TechnicalCommit {
	if t == nil {
		return nil
	}
	var out []TechnicalCommit
	for _, c := range t.Commits {
		if c.Author.Name == who || c.Author.Username == who || c.Author.Email == who {
			out = append(out, c)
		}
	}
	return out
}

// LanguagesBySize returns the languages of metrics, largest file count
// first and ties by name.
func LanguagesBySize(metrics map[string]CodeMetrics) []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := metrics[names[i]], metrics[names[j]]
		if a.FilesCount != b.FilesCount {
			return a.FilesCount > b.FilesCount
		}
		return names[i] < names[j]
	})
	return names
}

// TotalAdditions sums the added lines across all commits.
func (t *TechnicalData) TotalAdditions() int {
	if t == nil {
		return 0
	}
	total := 0
	for _, c := range t.Commits {
		total += c.Additions
	}
	return total
}

// TotalDeletions sums the deleted lines across all commits.
func (t *TechnicalData) TotalDeletions() int {
	if t == nil {
		return 0
	}
	total := 0
	for _, c := range t.Commits {
		total += c.Deletions
	}
	return total
}
