package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/connector"
	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// SourceType is the "type" value of JIRA sources.
const SourceType = "jira"

// Custom fields commonly used by JIRA Cloud for epic links and story points.
var (
	epicLinkFields    = []string{"customfield_10014", "customfield_10008"}
	storyPointsFields = []string{"customfield_10016", "customfield_10026", "customfield_10002"}
)

var (
	userStoryPattern = regexp.MustCompile(`(?is)\bas an?\s+(.+?),?\s+i want(?: to)?\s+(.+?)(?:,?\s+so that\s+(.+?))?(?:\.|\n|$)`)
	listItemPattern  = regexp.MustCompile(`^\s*(?:[-*#]+|\d+[.)])\s+(?:\[[ xX]\]\s+)?(.+)$`)
	wikiHeading      = regexp.MustCompile(`^h[1-6]\.\s`)
)

// Connector collects epics, features, stories and requirements from JIRA.
type Connector struct{}

// NewConnector returns the JIRA connector.
func NewConnector() *Connector {
	return &Connector{}
}

func (c *Connector) Type() string                 { return SourceType }
func (c *Connector) Category() connector.Category { return connector.CategoryTicketing }
func (c *Connector) DisplayName() string          { return "JIRA" }

func (c *Connector) Description() string {
	return "Epics, features, user stories, requirements and versions from a JIRA project"
}

func (c *Connector) RequiredConfigFields() []string {
	return []string{"url", "project"}
}

func (c *Connector) OptionalConfigFields() []string {
	return []string{"username", "token", "jql", "max_issues", "include_epics", "include_stories"}
}

// ValidateConfig checks that the JIRA instance and project are set.
func (c *Connector) ValidateConfig(src config.Source) []error {
	ts := src.Ticketing
	if ts == nil {
		return []error{fmt.Errorf("source %q is not a ticketing source", src.Name)}
	}

	var errs []error
	if ts.URL == "" {
		errs = append(errs, errors.New("url is required (or set JIRA_URL)"))
	} else if !strings.HasPrefix(ts.URL, "http://") && !strings.HasPrefix(ts.URL, "https://") {
		errs = append(errs, fmt.Errorf("url must start with http:// or https://, got %q", ts.URL))
	}
	if ts.Project == "" {
		errs = append(errs, errors.New("project is required"))
	}
	if ts.MaxIssues < 1 {
		errs = append(errs, errors.New("max_issues must be at least 1"))
	}
	if (ts.Username == "") != (ts.Token == "") {
		errs = append(errs, errors.New("username and token must be set together"))
	}
	return errs
}

// Collect fetches the project's issues and versions.
func (c *Connector) Collect(ctx context.Context, src config.Source) (*models.ProjectData, error) {
	if errs := c.ValidateConfig(src); len(errs) > 0 {
		return nil, connector.NewConfigError(SourceType, errs...)
	}
	ts := src.Ticketing

	client, err := NewClient(ts.URL, ts.Username, ts.Token)
	if err != nil {
		return nil, connector.NewConfigError(SourceType, err)
	}

	logging.Info("collecting jira data", "source", src.Name, "project", ts.Project)

	project, err := client.GetProject(ctx, ts.Project)
	if err != nil {
		return nil, classify(err)
	}

	issues, err := client.SearchIssues(ctx, buildJQL(ts), ts.MaxIssues)
	if err != nil {
		return nil, classify(err)
	}

	now := time.Now().UTC()
	functional := classifyIssues(issues, client, ts)
	functional.CollectedAt = now
	functional.SourceType = models.SourceJira
	functional.ProjectName = project.Name
	functional.ProjectKey = project.Key

	data := &models.ProjectData{
		FunctionalData: functional,
		Repository: models.Repository{
			Name:        project.Name,
			FullName:    project.Key,
			Description: project.Description,
			URL:         client.ProjectURL(project.Key),
			Languages:   []string{},
			Topics:      []string{},
		},
		Releases:     convertVersions(project.Versions, client.ProjectURL(project.Key)),
		CollectedAt:  now,
		SourceType:   models.SourceJira,
		SourceConfig: src.Redacted(),
	}

	logging.Info("collected jira data",
		"source", src.Name,
		"epics", len(functional.Epics),
		"features", len(functional.Features),
		"user_stories", len(functional.UserStories),
		"requirements", len(functional.Requirements),
		"releases", len(data.Releases))

	return data, nil
}

// buildJQL scopes the search to the project and appends the optional filter.
func buildJQL(ts *config.TicketingSource) string {
	jql := fmt.Sprintf("project = \"%s\"", ts.Project)
	if ts.JQL != "" {
		jql += fmt.Sprintf(" AND (%s)", ts.JQL)
	}
	return jql + " ORDER BY created DESC"
}

// classify maps JIRA API failures onto the connector error taxonomy.
func classify(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return &connector.Error{Type: SourceType, Err: err}
	}
	switch {
	case apiErr.StatusCode == 0:
		return &connector.ConnectionError{Type: SourceType, Err: err}
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return &connector.ConnectionError{Type: SourceType, Err: fmt.Errorf("authentication failed: %w", err)}
	case apiErr.StatusCode == http.StatusNotFound:
		return &connector.Error{Type: SourceType, Err: fmt.Errorf("project not found: %w", err)}
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return &connector.ConnectionError{Type: SourceType, Err: err}
	default:
		return &connector.Error{Type: SourceType, Err: err}
	}
}

// issueKind maps a JIRA issue type onto a functional kind. Sub-tasks and
// unknown types return "".
func issueKind(typeName string) string {
	switch strings.ToLower(typeName) {
	case "epic":
		return "epic"
	case "feature":
		return "feature"
	case "story", "user story", "task", "bug", "improvement":
		return "story"
	case "requirement", "functional requirement", "non-functional requirement":
		return "requirement"
	default:
		return ""
	}
}

// classifyIssues converts issues into functional entities and resolves
// parent links between them. Links to issues outside the result are dropped.
func classifyIssues(issues []jira.Issue, client *Client, ts *config.TicketingSource) *models.FunctionalData {
	data := &models.FunctionalData{
		Epics:        []models.Epic{},
		Features:     []models.Feature{},
		UserStories:  []models.UserStory{},
		Requirements: []models.Requirement{},
	}

	idByKey := make(map[string]string, len(issues))
	kindByID := make(map[string]string, len(issues))
	for _, issue := range issues {
		if issue.Fields == nil {
			continue
		}
		idByKey[issue.Key] = issue.ID
		kindByID[issue.ID] = issueKind(issue.Fields.Type.Name)
	}

	featureEpic := make(map[string]string)
	for _, issue := range issues {
		f := issue.Fields
		if f == nil {
			continue
		}

		common := commonFields(issue, client)
		parentID := parentOf(issue, idByKey)

		switch kindByID[issue.ID] {
		case "epic":
			if !ts.IncludeEpics {
				continue
			}
			epic := models.Epic{
				ID:                 common.id,
				Key:                common.key,
				Title:              f.Summary,
				Description:        f.Description,
				Status:             common.status,
				Priority:           common.priority,
				Author:             common.author,
				Assignee:           common.assignee,
				Labels:             common.labels,
				CreatedAt:          common.created,
				UpdatedAt:          common.updated,
				ClosedAt:           common.resolved,
				URL:                common.url,
				AcceptanceCriteria: acceptanceCriteria(f.Description),
			}
			if due := time.Time(f.Duedate); !due.IsZero() {
				epic.DueDate = &due
			}
			data.Epics = append(data.Epics, epic)

		case "feature":
			epicID := ""
			if kindByID[parentID] == "epic" {
				epicID = parentID
				featureEpic[common.id] = epicID
			}
			data.Features = append(data.Features, models.Feature{
				ID:                 common.id,
				Key:                common.key,
				Title:              f.Summary,
				Description:        f.Description,
				Status:             common.status,
				Priority:           common.priority,
				Author:             common.author,
				Assignee:           common.assignee,
				Labels:             common.labels,
				CreatedAt:          common.created,
				UpdatedAt:          common.updated,
				ClosedAt:           common.resolved,
				URL:                common.url,
				EpicID:             epicID,
				EpicKey:            keyOf(epicID, issues),
				AcceptanceCriteria: acceptanceCriteria(f.Description),
			})

		case "story":
			if !ts.IncludeStories {
				continue
			}
			story := models.UserStory{
				ID:                 common.id,
				Key:                common.key,
				Title:              f.Summary,
				Description:        f.Description,
				Status:             common.status,
				Priority:           common.priority,
				Author:             common.author,
				Assignee:           common.assignee,
				Labels:             common.labels,
				CreatedAt:          common.created,
				UpdatedAt:          common.updated,
				ClosedAt:           common.resolved,
				URL:                common.url,
				StoryPoints:        storyPoints(f),
				Sprint:             sprintOf(f),
				AcceptanceCriteria: acceptanceCriteria(f.Description),
			}
			switch kindByID[parentID] {
			case "epic":
				story.EpicID = parentID
			case "feature":
				story.FeatureID = parentID
			}
			if m := userStoryPattern.FindStringSubmatch(f.Description); m != nil {
				story.UserPersona = strings.TrimSpace(m[1])
				story.UserGoal = strings.TrimSpace(m[2])
				story.UserBenefit = strings.TrimSpace(m[3])
			}
			data.UserStories = append(data.UserStories, story)

		case "requirement":
			category := ""
			if len(f.Components) > 0 && f.Components[0] != nil {
				category = f.Components[0].Name
			}
			reqType := "functional"
			if strings.Contains(strings.ToLower(f.Type.Name), "non-functional") {
				reqType = "non-functional"
			}
			data.Requirements = append(data.Requirements, models.Requirement{
				ID:            common.id,
				Key:           common.key,
				Title:         f.Summary,
				Description:   f.Description,
				Status:        common.status,
				Priority:      common.priority,
				Author:        common.author,
				Labels:        common.labels,
				CreatedAt:     common.created,
				UpdatedAt:     common.updated,
				URL:           common.url,
				Type:          reqType,
				Category:      category,
				LinkedStories: linkedIssues(f, idByKey),
			})
		}
	}

	// Stories under a feature inherit the feature's epic.
	for i := range data.UserStories {
		s := &data.UserStories[i]
		if s.EpicID == "" && s.FeatureID != "" {
			s.EpicID = featureEpic[s.FeatureID]
		}
	}

	if dropped := data.DropDanglingLinks(); dropped > 0 {
		logging.Debug("dropped links to issues outside the collected set", "count", dropped)
	}
	return data
}

type issueCommon struct {
	id       string
	key      string
	status   models.IssueStatus
	priority models.Priority
	author   models.Author
	assignee *models.Author
	labels   []models.Label
	created  time.Time
	updated  time.Time
	resolved *time.Time
	url      string
}

func commonFields(issue jira.Issue, client *Client) issueCommon {
	f := issue.Fields
	common := issueCommon{
		id:       issue.ID,
		key:      issue.Key,
		status:   normalizeStatus(f.Status),
		priority: models.PriorityUndefined,
		author:   authorFrom(f.Reporter),
		labels:   make([]models.Label, 0, len(f.Labels)),
		created:  time.Time(f.Created),
		updated:  time.Time(f.Updated),
		url:      client.BrowseURL(issue.Key),
	}
	if f.Reporter == nil {
		common.author = authorFrom(f.Creator)
	}
	if f.Assignee != nil {
		a := authorFrom(f.Assignee)
		common.assignee = &a
	}
	if f.Priority != nil {
		common.priority = models.NormalizePriority(f.Priority.Name)
	}
	for _, l := range f.Labels {
		common.labels = append(common.labels, models.Label{Name: l})
	}
	if resolved := time.Time(f.Resolutiondate); !resolved.IsZero() {
		common.resolved = &resolved
	}
	return common
}

// normalizeStatus prefers the status category, which is stable across
// workflows, and falls back to the status name.
func normalizeStatus(s *jira.Status) models.IssueStatus {
	if s == nil {
		return models.StatusOpen
	}
	switch s.StatusCategory.Key {
	case jira.StatusCategoryComplete:
		if strings.EqualFold(s.Name, "resolved") {
			return models.StatusResolved
		}
		return models.StatusClosed
	case jira.StatusCategoryInProgress:
		return models.StatusInProgress
	case jira.StatusCategoryToDo:
		return models.StatusOpen
	}
	return models.NormalizeStatus(s.Name)
}

// parentOf returns the ID of the issue's parent or epic, if it was collected.
func parentOf(issue jira.Issue, idByKey map[string]string) string {
	f := issue.Fields
	if f.Parent != nil {
		if f.Parent.ID != "" {
			return f.Parent.ID
		}
		if id, ok := idByKey[f.Parent.Key]; ok {
			return id
		}
	}
	if f.Epic != nil {
		if id, ok := idByKey[f.Epic.Key]; ok {
			return id
		}
		return strconv.Itoa(f.Epic.ID)
	}
	for _, field := range epicLinkFields {
		if key, ok := f.Unknowns[field].(string); ok && key != "" {
			return idByKey[key]
		}
	}
	return ""
}

func keyOf(id string, issues []jira.Issue) string {
	if id == "" {
		return ""
	}
	for _, issue := range issues {
		if issue.ID == id {
			return issue.Key
		}
	}
	return ""
}

// linkedIssues returns the IDs of collected issues linked to a requirement.
func linkedIssues(f *jira.IssueFields, idByKey map[string]string) []string {
	linked := []string{}
	for _, link := range f.IssueLinks {
		if link == nil {
			continue
		}
		for _, other := range []*jira.Issue{link.InwardIssue, link.OutwardIssue} {
			if other == nil {
				continue
			}
			if id, ok := idByKey[other.Key]; ok {
				linked = append(linked, id)
			}
		}
	}
	return linked
}

func storyPoints(f *jira.IssueFields) *int {
	for _, field := range storyPointsFields {
		if v, ok := f.Unknowns[field].(float64); ok {
			points := int(v)
			return &points
		}
	}
	return nil
}

// sprintOf returns the name of the first sprint of the issue, if any.
func sprintOf(f *jira.IssueFields) string {
	if f.Sprint != nil {
		return f.Sprint.Name
	}
	return ""
}

// acceptanceCriteria extracts the list items following an "Acceptance
// Criteria" heading. Descriptions may use JIRA wiki markup (h3. headings,
// # numbered lists) or markdown (## headings).
func acceptanceCriteria(description string) []string {
	criteria := []string{}
	inSection, markdown := false, false
	for _, line := range strings.Split(description, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if !inSection {
			if strings.Contains(lower, "acceptance criteria") {
				inSection = true
				markdown = strings.HasPrefix(trimmed, "#")
			}
			continue
		}
		if wikiHeading.MatchString(lower) || markdown && strings.HasPrefix(trimmed, "#") {
			break
		}
		if m := listItemPattern.FindStringSubmatch(line); m != nil {
			criteria = append(criteria, strings.TrimSpace(m[1]))
		}
	}
	return criteria
}

func authorFrom(u *jira.User) models.Author {
	if u == nil {
		return models.Author{Name: "unknown"}
	}
	username := u.Name
	if username == "" {
		username = u.AccountID
	}
	return models.Author{
		Name:      u.DisplayName,
		Email:     u.EmailAddress,
		Username:  username,
		AvatarURL: u.AvatarUrls.Four8X48,
	}
}

// convertVersions maps project versions onto releases. Unreleased versions
// are drafts; archived ones are skipped.
func convertVersions(versions []jira.Version, projectURL string) []models.Release {
	releases := make([]models.Release, 0, len(versions))
	for _, v := range versions {
		if v.Archived != nil && *v.Archived {
			continue
		}
		released := v.Released != nil && *v.Released

		release := models.Release{
			Tag:         v.Name,
			Name:        v.Name,
			Description: v.Description,
			IsDraft:     !released,
			URL:         fmt.Sprintf("%s/versions/%s", projectURL, v.ID),
		}
		if start, err := time.Parse("2006-01-02", v.StartDate); err == nil {
			release.CreatedAt = start
		}
		if date, err := time.Parse("2006-01-02", v.ReleaseDate); err == nil {
			if release.CreatedAt.IsZero() {
				release.CreatedAt = date
			}
			if released {
				release.PublishedAt = &date
			}
		}
		releases = append(releases, release)
	}
	return releases
}
