package models

import "regexp"

var (
	mergedPullRequest   = regexp.MustCompile(`^Merge pull request #(\d+)\b`)
	squashedPullRequest = regexp.MustCompile(`\(#(\d+)\)\s*$`)
	hashReference       = regexp.MustCompile(`(?:^|[\s(\[,])#(\d+)\b`)
	issueKeyReference   = regexp.MustCompile(`\b([A-Z][A-Z0-9]+-\d+)\b`)
)

// References extracts the issues and pull requests a message refers to.
// "Merge pull request #N" and a trailing "(#N)" on the subject name pull
// requests; every other #N and JIRA style keys such as "ABC-12" name issues.
// Both lists are deduplicated, keep first-seen order and are never nil.
func References(message string) (issues, pullRequests []string) {
	issues, pullRequests = []string{}, []string{}
	seen := make(map[string]bool)
	add := func(list *[]string, ref string) {
		if !seen[ref] {
			seen[ref] = true
			*list = append(*list, ref)
		}
	}

	subject := SubjectOf(message)
	for _, re := range []*regexp.Regexp{mergedPullRequest, squashedPullRequest} {
		if m := re.FindStringSubmatch(subject); m != nil {
			add(&pullRequests, m[1])
		}
	}
	for _, m := range hashReference.FindAllStringSubmatch(message, -1) {
		add(&issues, m[1])
	}
	for _, m := range issueKeyReference.FindAllStringSubmatch(message, -1) {
		add(&issues, m[1])
	}
	return issues, pullRequests
}
