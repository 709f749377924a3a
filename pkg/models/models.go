// Package models defines the normalized project data shared by every
// connector, the collection pipeline and the document generators.
package models

import (
	"strings"
	"time"
)

// IssueStatus is the normalized lifecycle state of a functional work item.
type IssueStatus string

const (
	StatusOpen       IssueStatus = "open"
	StatusInProgress IssueStatus = "in_progress"
	StatusResolved   IssueStatus = "resolved"
	StatusClosed     IssueStatus = "closed"
)

// IsOpen reports whether the status still counts as outstanding work.
func (s IssueStatus) IsOpen() bool {
	return s == StatusOpen || s == StatusInProgress
}

// NormalizeStatus maps a tracker-specific status name onto an IssueStatus.
// Unknown names are treated as open.
func NormalizeStatus(name string) IssueStatus {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "in progress", "in_progress", "in review", "in development", "doing", "indeterminate":
		return StatusInProgress
	case "resolved", "fixed":
		return StatusResolved
	case "done", "closed", "complete", "completed", "cancelled", "canceled", "won't do":
		return StatusClosed
	default:
		return StatusOpen
	}
}

// Priority is the normalized priority of a work item.
type Priority string

const (
	PriorityCritical  Priority = "critical"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
	PriorityUndefined Priority = "undefined"
)

// NormalizePriority maps a tracker-specific priority name onto a Priority.
func NormalizePriority(name string) Priority {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "highest", "blocker", "critical", "p0":
		return PriorityCritical
	case "high", "major", "p1":
		return PriorityHigh
	case "medium", "normal", "p2":
		return PriorityMedium
	case "low", "lowest", "minor", "trivial", "p3", "p4":
		return PriorityLow
	default:
		return PriorityUndefined
	}
}

// ChangeType describes what happened to a file in a code change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

// NormalizeChangeType maps a code host file status (e.g. "removed") onto a ChangeType.
func NormalizeChangeType(status string) ChangeType {
	switch strings.ToLower(status) {
	case "added", "a":
		return ChangeAdded
	case "removed", "deleted", "d":
		return ChangeDeleted
	case "renamed", "r":
		return ChangeRenamed
	default:
		return ChangeModified
	}
}

// PullRequestStatus is the normalized state of a pull request.
type PullRequestStatus string

const (
	PullRequestOpen   PullRequestStatus = "open"
	PullRequestClosed PullRequestStatus = "closed"
	PullRequestMerged PullRequestStatus = "merged"
	PullRequestDraft  PullRequestStatus = "draft"
)

// SourceType identifies which kind of source produced a ProjectData value.
type SourceType string

const (
	SourceGitHub     SourceType = "github"
	SourceJira       SourceType = "jira"
	SourceLocalFiles SourceType = "local_files"
	SourceCustom     SourceType = "custom"
)

// Author identifies a person across sources.
type Author struct {
	// Name is the display name (e.g., "Jane Doe")
	Name string `json:"name"`

	// Email is the e-mail address, when the source exposes it
	Email string `json:"email,omitempty"`

	// Username is the login on the source system
	Username string `json:"username,omitempty"`

	// AvatarURL points to the author's avatar image
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DisplayName returns the best available human readable identifier.
func (a Author) DisplayName() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Username != "":
		return a.Username
	case a.Email != "":
		return a.Email
	default:
		return "unknown"
	}
}

// Label is a tag attached to a work item or pull request.
type Label struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// LabelNames returns the names of the given labels in order.
func LabelNames(labels []Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}

// Repository describes the project's repository or, for ticketing-only
// sources, the tracked project itself.
type Repository struct {
	// Name is the short repository name (e.g., "wara9a")
	Name string `json:"name"`

	// FullName includes the owner (e.g., "elhajjaji/wara9a")
	FullName string `json:"full_name"`

	// Description is the repository's one-line summary
	Description string `json:"description,omitempty"`

	// URL is the browsable address of the repository
	URL string `json:"url,omitempty"`

	// DefaultBranch is the branch considered the mainline
	DefaultBranch string `json:"default_branch"`

	// Languages lists the languages in use, most used first
	Languages []string `json:"languages"`

	// Topics are the free-form topics attached to the repository
	Topics []string `json:"topics"`

	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	StarsCount int        `json:"stars_count"`
	ForksCount int        `json:"forks_count"`
}

// Release is a published (or drafted) version of the project.
type Release struct {
	Tag          string     `json:"tag"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Author       Author     `json:"author"`
	CreatedAt    time.Time  `json:"created_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	IsPrerelease bool       `json:"is_prerelease"`
	IsDraft      bool       `json:"is_draft"`
	URL          string     `json:"url,omitempty"`
}
