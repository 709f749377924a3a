package models

import "time"

// ProjectData is everything collected about a project from one source.
// It is the single value handed from collection to generation.
type ProjectData struct {
	FunctionalData *FunctionalData `json:"functional_data,omitempty"`
	TechnicalData  *TechnicalData  `json:"technical_data,omitempty"`
	Repository     Repository      `json:"repository"`
	Releases       []Release       `json:"releases"`
	CollectedAt    time.Time       `json:"collected_at"`
	SourceType     SourceType      `json:"source_type"`
	SourceConfig   map[string]any  `json:"source_config"`
}

// EmptyProjectData builds the value used when no source produced data.
func EmptyProjectData(name, description string) *ProjectData {
	return &ProjectData{
		Repository: Repository{
			Name:          name,
			FullName:      name,
			Description:   description,
			DefaultBranch: "main",
			Languages:     []string{},
			Topics:        []string{},
		},
		Releases:     []Release{},
		CollectedAt:  time.Now().UTC(),
		SourceType:   SourceCustom,
		SourceConfig: map[string]any{},
	}
}

// HasFunctionalData reports whether any functional entity is present.
func (p *ProjectData) HasFunctionalData() bool {
	return !p.FunctionalData.IsEmpty()
}

// HasTechnicalData reports whether any technical entity is present.
func (p *ProjectData) HasTechnicalData() bool {
	return !p.TechnicalData.IsEmpty()
}

// DocumentationTypes lists the kinds of documentation the data can back.
// A project with neither kind is documented the "legacy" way (README and
// changelog only).
func (p *ProjectData) DocumentationTypes() []string {
	var types []string
	if p.HasFunctionalData() {
		types = append(types, "functional")
	}
	if p.HasTechnicalData() {
		types = append(types, "technical")
	}
	if len(types) == 0 {
		types = append(types, "legacy")
	}
	return types
}

// LatestRelease returns the most recently published non-draft release, or
// nil when no release qualifies.
func (p *ProjectData) LatestRelease() *Release {
	var latest *Release
	for i := range p.Releases {
		r := &p.Releases[i]
		if r.IsDraft || r.PublishedAt == nil {
			continue
		}
		if latest == nil || r.PublishedAt.After(*latest.PublishedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil
	}
	out := *latest
	return &out
}

// RecentCommits returns at most n commits in collection order.
func (p *ProjectData) RecentCommits(n int) []TechnicalCommit {
	if p.TechnicalData == nil {
		return nil
	}
	commits := p.TechnicalData.Commits
	if len(commits) > n {
		commits = commits[:n]
	}
	return append([]TechnicalCommit(nil), commits...)
}

// Counts summarizes how many entities of each kind were collected.
type Counts struct {
	Epics        int `json:"epics"`
	Features     int `json:"features"`
	UserStories  int `json:"user_stories"`
	Requirements int `json:"requirements"`
	Commits      int `json:"commits"`
	PullRequests int `json:"pull_requests"`
	Releases     int `json:"releases"`
	DebtItems    int `json:"debt_items"`
}

// Issues is the number of epics, features and user stories.
func (c Counts) Issues() int {
	return c.Epics + c.Features + c.UserStories
}

// Counts returns the entity counts for the data.
func (p *ProjectData) Counts() Counts {
	c := Counts{Releases: len(p.Releases)}
	if f := p.FunctionalData; f != nil {
		c.Epics = len(f.Epics)
		c.Features = len(f.Features)
		c.UserStories = len(f.UserStories)
		c.Requirements = len(f.Requirements)
	}
	if t := p.TechnicalData; t != nil {
		c.Commits = len(t.Commits)
		c.PullRequests = len(t.PullRequests)
		c.DebtItems = len(t.TechnicalDebt)
	}
	return c
}
