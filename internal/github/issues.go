package github

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// Issue kinds recognized from labels.
const (
	kindEpic        = "epic"
	kindFeature     = "feature"
	kindStory       = "story"
	kindRequirement = "requirement"
)

var (
	priorityLabel  = regexp.MustCompile(`(?i)^(?:priority[:/ -]?)?(p[0-4]|critical|high|medium|low)$`)
	shortIssueLink = regexp.MustCompile(`(?:^|\s|\()#(\d+)\b`)
	checklistItem  = regexp.MustCompile(`^\s*[-*]\s+(?:\[[ xX]\]\s+)?(.+)$`)
)

// functionalFromIssues derives epics, features, stories and requirements
// from labeled GitHub issues. Issues without a recognized label are ignored.
//
// Epic and feature bodies may list their children in a "## Issues" section,
// either as full issue URLs on the given domain or as #N references. Links
// to issues that were not collected are dropped.
func functionalFromIssues(issues []*github.Issue, domain string) *models.FunctionalData {
	data := &models.FunctionalData{
		Epics:        []models.Epic{},
		Features:     []models.Feature{},
		UserStories:  []models.UserStory{},
		Requirements: []models.Requirement{},
	}

	epicOf := make(map[int]string)
	featureOf := make(map[int]string)
	for _, issue := range issues {
		id := strconv.Itoa(issue.GetNumber())
		switch issueKind(issue) {
		case kindEpic:
			for _, child := range parseChildIssues(issue.GetBody(), domain) {
				epicOf[child] = id
			}
		case kindFeature:
			for _, child := range parseChildIssues(issue.GetBody(), domain) {
				featureOf[child] = id
			}
		}
	}

	for _, issue := range issues {
		number := issue.GetNumber()
		id := strconv.Itoa(number)
		key := fmt.Sprintf("#%d", number)
		labels := make([]models.Label, 0, len(issue.Labels))
		for _, l := range issue.Labels {
			labels = append(labels, convertLabel(l))
		}
		status := issueStatus(issue)
		priority := issuePriority(issue)
		criteria := parseChecklist(findSection(issue.GetBody(), "Acceptance Criteria"))
		var assignee *models.Author
		if u := issue.GetAssignee(); u != nil {
			a := authorFrom(u)
			assignee = &a
		}

		switch issueKind(issue) {
		case kindEpic:
			data.Epics = append(data.Epics, models.Epic{
				ID:                 id,
				Key:                key,
				Title:              issue.GetTitle(),
				Description:        issue.GetBody(),
				Status:             status,
				Priority:           priority,
				Author:             authorFrom(issue.GetUser()),
				Assignee:           assignee,
				Labels:             labels,
				CreatedAt:          issue.GetCreatedAt().Time,
				UpdatedAt:          issue.GetUpdatedAt().Time,
				ClosedAt:           timePtr(issue.GetClosedAt()),
				URL:                issue.GetHTMLURL(),
				AcceptanceCriteria: criteria,
			})
		case kindFeature:
			epicID := epicOf[number]
			epicKey := ""
			if epicID != "" {
				epicKey = "#" + epicID
			}
			data.Features = append(data.Features, models.Feature{
				ID:                 id,
				Key:                key,
				Title:              issue.GetTitle(),
				Description:        issue.GetBody(),
				Status:             status,
				Priority:           priority,
				Author:             authorFrom(issue.GetUser()),
				Assignee:           assignee,
				Labels:             labels,
				CreatedAt:          issue.GetCreatedAt().Time,
				UpdatedAt:          issue.GetUpdatedAt().Time,
				ClosedAt:           timePtr(issue.GetClosedAt()),
				URL:                issue.GetHTMLURL(),
				EpicID:             epicID,
				EpicKey:            epicKey,
				AcceptanceCriteria: criteria,
			})
		case kindStory:
			data.UserStories = append(data.UserStories, models.UserStory{
				ID:                 id,
				Key:                key,
				Title:              issue.GetTitle(),
				Description:        issue.GetBody(),
				Status:             status,
				Priority:           priority,
				Author:             authorFrom(issue.GetUser()),
				Assignee:           assignee,
				Labels:             labels,
				CreatedAt:          issue.GetCreatedAt().Time,
				UpdatedAt:          issue.GetUpdatedAt().Time,
				ClosedAt:           timePtr(issue.GetClosedAt()),
				URL:                issue.GetHTMLURL(),
				EpicID:             epicOf[number],
				FeatureID:          featureOf[number],
				Sprint:             issue.GetMilestone().GetTitle(),
				AcceptanceCriteria: criteria,
			})
		case kindRequirement:
			data.Requirements = append(data.Requirements, models.Requirement{
				ID:            id,
				Key:           key,
				Title:         issue.GetTitle(),
				Description:   issue.GetBody(),
				Status:        status,
				Priority:      priority,
				Author:        authorFrom(issue.GetUser()),
				Labels:        labels,
				CreatedAt:     issue.GetCreatedAt().Time,
				UpdatedAt:     issue.GetUpdatedAt().Time,
				URL:           issue.GetHTMLURL(),
				Type:          "functional",
				LinkedStories: linkedStories(issue.GetBody(), domain),
			})
		}
	}

	if dropped := data.DropDanglingLinks(); dropped > 0 {
		logging.Debug("dropped links to issues outside the collected set", "count", dropped)
	}
	return data
}

// issueKind returns the functional kind encoded in the issue's labels.
func issueKind(issue *github.Issue) string {
	for _, l := range issue.Labels {
		switch strings.ToLower(l.GetName()) {
		case "epic":
			return kindEpic
		case "feature":
			return kindFeature
		case "story", "user story", "user-story":
			return kindStory
		case "requirement":
			return kindRequirement
		}
	}
	return ""
}

func issueStatus(issue *github.Issue) models.IssueStatus {
	if issue.GetState() == "closed" {
		return models.StatusClosed
	}
	for _, l := range issue.Labels {
		switch strings.ToLower(l.GetName()) {
		case "in progress", "in-progress", "wip":
			return models.StatusInProgress
		}
	}
	return models.StatusOpen
}

func issuePriority(issue *github.Issue) models.Priority {
	for _, l := range issue.Labels {
		if m := priorityLabel.FindStringSubmatch(l.GetName()); m != nil {
			return models.NormalizePriority(m[1])
		}
	}
	return models.PriorityUndefined
}

// findSection extracts the body of a "## <heading>" section from a
// markdown description. It returns the content up to the next "## "
// header, or an empty string if the section is missing.
func findSection(description, heading string) string {
	parts := strings.Split(description, "## "+heading)
	if len(parts) < 2 {
		return ""
	}

	nextSectionIdx := strings.Index(parts[1], "## ")
	if nextSectionIdx != -1 {
		return parts[1][:nextSectionIdx]
	}
	return parts[1]
}

// parseChildIssues extracts issue numbers from the "## Issues" section of a
// description. Both full links on gitHubDomain and #N references count.
func parseChildIssues(description string, gitHubDomain string) []int {
	var childNums []int
	issuesSection := findSection(description, "Issues")
	if issuesSection == "" {
		return childNums
	}

	escapedDomain := regexp.QuoteMeta(gitHubDomain)
	pattern := fmt.Sprintf(`https://%s/[^/]+/[^/]+/issues/(\d+)`, escapedDomain)
	re := regexp.MustCompile(pattern)

	matches := re.FindAllStringSubmatch(issuesSection, -1)
	matches = append(matches, shortIssueLink.FindAllStringSubmatch(issuesSection, -1)...)
	for _, match := range matches {
		if len(match) > 1 {
			if num, err := strconv.Atoi(match[1]); err == nil {
				childNums = append(childNums, num)
			}
		}
	}

	logging.Debug("parsed child issues",
		"count", len(childNums),
		"issues", childNums)

	return childNums
}

// linkedStories returns the #N references of a requirement's "## Stories" section.
func linkedStories(description, domain string) []string {
	section := findSection(description, "Stories")
	if section == "" {
		return []string{}
	}
	nums := parseChildIssues("## Issues"+section, domain)
	out := make([]string, 0, len(nums))
	for _, n := range nums {
		out = append(out, strconv.Itoa(n))
	}
	return out
}

func parseChecklist(section string) []string {
	items := []string{}
	for _, line := range strings.Split(section, "\n") {
		if m := checklistItem.FindStringSubmatch(line); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
		}
	}
	return items
}
