package models

import (
	"fmt"
	"time"
)

// Epic is a large body of work grouping features and stories.
type Epic struct {
	ID                 string      `json:"id"`
	Key                string      `json:"key"`
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	Status             IssueStatus `json:"status"`
	Priority           Priority    `json:"priority"`
	Author             Author      `json:"author"`
	Assignee           *Author     `json:"assignee,omitempty"`
	Labels             []Label     `json:"labels"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
	ClosedAt           *time.Time  `json:"closed_at,omitempty"`
	StartDate          *time.Time  `json:"start_date,omitempty"`
	DueDate            *time.Time  `json:"due_date,omitempty"`
	URL                string      `json:"url,omitempty"`
	BusinessValue      string      `json:"business_value,omitempty"`
	AcceptanceCriteria []string    `json:"acceptance_criteria"`
}

// Feature is a deliverable capability, optionally part of an epic.
type Feature struct {
	ID                 string      `json:"id"`
	Key                string      `json:"key"`
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	Status             IssueStatus `json:"status"`
	Priority           Priority    `json:"priority"`
	Author             Author      `json:"author"`
	Assignee           *Author     `json:"assignee,omitempty"`
	Labels             []Label     `json:"labels"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
	ClosedAt           *time.Time  `json:"closed_at,omitempty"`
	URL                string      `json:"url,omitempty"`
	EpicID             string      `json:"epic_id,omitempty"`
	EpicKey            string      `json:"epic_key,omitempty"`
	AcceptanceCriteria []string    `json:"acceptance_criteria"`
}

// UserStory is a unit of user-facing work.
type UserStory struct {
	ID                 string      `json:"id"`
	Key                string      `json:"key"`
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	Status             IssueStatus `json:"status"`
	Priority           Priority    `json:"priority"`
	Author             Author      `json:"author"`
	Assignee           *Author     `json:"assignee,omitempty"`
	Labels             []Label     `json:"labels"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
	ClosedAt           *time.Time  `json:"closed_at,omitempty"`
	URL                string      `json:"url,omitempty"`
	UserPersona        string      `json:"user_persona,omitempty"`
	UserGoal           string      `json:"user_goal,omitempty"`
	UserBenefit        string      `json:"user_benefit,omitempty"`
	EpicID             string      `json:"epic_id,omitempty"`
	FeatureID          string      `json:"feature_id,omitempty"`
	StoryPoints        *int        `json:"story_points,omitempty"`
	Sprint             string      `json:"sprint,omitempty"`
	AcceptanceCriteria []string    `json:"acceptance_criteria"`
}

// Requirement is a functional or non-functional requirement.
type Requirement struct {
	ID                 string      `json:"id"`
	Key                string      `json:"key"`
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	Status             IssueStatus `json:"status"`
	Priority           Priority    `json:"priority"`
	Author             Author      `json:"author"`
	Labels             []Label     `json:"labels"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
	URL                string      `json:"url,omitempty"`
	Type               string      `json:"type"`
	Category           string      `json:"category,omitempty"`
	VerificationMethod string      `json:"verification_method,omitempty"`
	LinkedStories      []string    `json:"linked_stories"`
}

// FunctionalData groups the functional documentation collected from a source.
type FunctionalData struct {
	Epics        []Epic        `json:"epics"`
	Features     []Feature     `json:"features"`
	UserStories  []UserStory   `json:"user_stories"`
	Requirements []Requirement `json:"requirements"`
	CollectedAt  time.Time     `json:"collected_at"`
	SourceType   SourceType    `json:"source_type,omitempty"`
	ProjectName  string        `json:"project_name,omitempty"`
	ProjectKey   string        `json:"project_key,omitempty"`
}

// IsEmpty reports whether no functional entity was collected.
func (f *FunctionalData) IsEmpty() bool {
	return f == nil || len(f.Epics)+len(f.Features)+len(f.UserStories)+len(f.Requirements) == 0
}

// OpenEpics returns the epics that are open or in progress.
func (f *FunctionalData) OpenEpics() []Epic {
	if f == nil {
		return nil
	}
	var open []Epic
	for _, e := range f.Epics {
		if e.Status.IsOpen() {
			open = append(open, e)
		}
	}
	return open
}

// FeaturesByEpic returns the features attached to the given epic ID.
func (f *FunctionalData) FeaturesByEpic(epicID string) []Feature {
	if f == nil {
		return nil
	}
	var out []Feature
	for _, feat := range f.Features {
		if feat.EpicID == epicID {
			out = append(out, feat)
		}
	}
	return out
}

// StoriesByEpic returns the user stories attached to the given epic ID.
func (f *FunctionalData) StoriesByEpic(epicID string) []UserStory {
	if f == nil {
		return nil
	}
	var out []UserStory
	for _, s := range f.UserStories {
		if s.EpicID == epicID {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that every parent reference points at an entity present
// in the same FunctionalData. It returns one error per dangling reference.
func (f *FunctionalData) Validate() []error {
	if f == nil {
		return nil
	}
	epics := make(map[string]bool, len(f.Epics))
	for _, e := range f.Epics {
		epics[e.ID] = true
	}
	features := make(map[string]bool, len(f.Features))
	for _, feat := range f.Features {
		features[feat.ID] = true
	}

	var errs []error
	for _, feat := range f.Features {
		if feat.EpicID != "" && !epics[feat.EpicID] {
			errs = append(errs, fmt.Errorf("feature %s references unknown epic %s", feat.Key, feat.EpicID))
		}
	}
	for _, s := range f.UserStories {
		if s.EpicID != "" && !epics[s.EpicID] {
			errs = append(errs, fmt.Errorf("user story %s references unknown epic %s", s.Key, s.EpicID))
		}
		if s.FeatureID != "" && !features[s.FeatureID] {
			errs = append(errs, fmt.Errorf("user story %s references unknown feature %s", s.Key, s.FeatureID))
		}
	}
	return errs
}

// DropDanglingLinks clears every parent reference that Validate would report.
// Connectors call it before returning so that the collected value is
// internally consistent.
func (f *FunctionalData) DropDanglingLinks() int {
	if f == nil {
		return 0
	}
	epics := make(map[string]bool, len(f.Epics))
	for _, e := range f.Epics {
		epics[e.ID] = true
	}
	features := make(map[string]bool, len(f.Features))
	for _, feat := range f.Features {
		features[feat.ID] = true
	}

	dropped := 0
	for i := range f.Features {
		if f.Features[i].EpicID != "" && !epics[f.Features[i].EpicID] {
			f.Features[i].EpicID, f.Features[i].EpicKey = "", ""
			dropped++
		}
	}
	for i := range f.UserStories {
		if f.UserStories[i].EpicID != "" && !epics[f.UserStories[i].EpicID] {
			f.UserStories[i].EpicID = ""
			dropped++
		}
		if f.UserStories[i].FeatureID != "" && !features[f.UserStories[i].FeatureID] {
			f.UserStories[i].FeatureID = ""
			dropped++
		}
	}
	return dropped
}

// WorkItem is a flattened view over any functional entity, used where
// documents list work regardless of its kind.
type WorkItem struct {
	Kind     string      `json:"kind"`
	ID       string      `json:"id"`
	Key      string      `json:"key"`
	Title    string      `json:"title"`
	Status   IssueStatus `json:"status"`
	Priority Priority    `json:"priority"`
	URL      string      `json:"url,omitempty"`
}

// OpenWorkItems lists the open or in-progress features, user stories and
// requirements in collection order.
func (f *FunctionalData) OpenWorkItems() []WorkItem {
	if f == nil {
		return nil
	}
	var items []WorkItem
	for _, feat := range f.Features {
		if feat.Status.IsOpen() {
			items = append(items, WorkItem{Kind: "feature", ID: feat.ID, Key: feat.Key, Title: feat.Title, Status: feat.Status, Priority: feat.Priority, URL: feat.URL})
		}
	}
	for _, s := range f.UserStories {
		if s.Status.IsOpen() {
			items = append(items, WorkItem{Kind: "story", ID: s.ID, Key: s.Key, Title: s.Title, Status: s.Status, Priority: s.Priority, URL: s.URL})
		}
	}
	for _, r := range f.Requirements {
		if r.Status.IsOpen() {
			items = append(items, WorkItem{Kind: "requirement", ID: r.ID, Key: r.Key, Title: r.Title, Status: r.Status, Priority: r.Priority, URL: r.URL})
		}
	}
	return items
}
