package generate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// recentCommitLimit is how many commits the recentCommits helper exposes.
const recentCommitLimit = 10

// BuildContext assembles the values a template renders against.
//
// Models are converted to plain JSON-shaped values (maps, slices, strings
// and float64 numbers) so templates address fields by their snake_case
// names. Variables declared on the template override any key built here.
// Neither cfg nor data is modified.
func BuildContext(cfg *config.Config, tmpl config.TemplateConfig, data *models.ProjectData, now time.Time) (map[string]any, error) {
	if data == nil {
		data = models.EmptyProjectData(cfg.Project.Name, cfg.Project.Description)
	}

	values := map[string]any{
		"project":            cfg.Project,
		"data":               data,
		"config":             configView(cfg),
		"template":           tmpl,
		"latestRelease":      data.LatestRelease(),
		"openIssues":         orEmpty(data.FunctionalData.OpenWorkItems()),
		"openEpics":          orEmpty(data.FunctionalData.OpenEpics()),
		"recentCommits":      orEmpty(data.RecentCommits(recentCommitLimit)),
		"documentationTypes": data.DocumentationTypes(),
	}

	ctx := make(map[string]any, len(values)+len(tmpl.Variables)+1)
	for key, value := range values {
		plain, err := toPlain(value)
		if err != nil {
			return nil, fmt.Errorf("failed to build template context key %s: %w", key, err)
		}
		ctx[key] = plain
	}
	ctx["generatedAt"] = now

	for key, value := range tmpl.Variables {
		ctx[key] = value
	}
	return ctx, nil
}

// toPlain converts v into the values encoding/json would decode it into.
func toPlain(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// orEmpty keeps nil slices from becoming null in the context.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// configView is the run configuration as templates see it. Source
// credentials are masked.
func configView(cfg *config.Config) map[string]any {
	sources := make([]map[string]any, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		sources = append(sources, map[string]any{
			"type":     src.Type,
			"name":     src.Name,
			"enabled":  src.Enabled,
			"kind":     src.Kind,
			"settings": src.Redacted(),
		})
	}

	templates := make([]map[string]any, 0, len(cfg.Templates))
	for _, tc := range cfg.Templates {
		templates = append(templates, map[string]any{
			"name":    tc.Name,
			"output":  tc.Output,
			"enabled": tc.Enabled,
		})
	}

	return map[string]any{
		"project":        cfg.Project,
		"sources":        sources,
		"templates":      templates,
		"output":         cfg.Output,
		"parallel":       cfg.Parallel,
		"failure_policy": cfg.FailurePolicy,
	}
}
