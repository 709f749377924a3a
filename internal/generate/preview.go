package generate

import "github.com/elhajjaji/wara9a/internal/config"

// SourceSummary describes one source in a preview.
type SourceSummary struct {
	Type    string
	Name    string
	Enabled bool
}

// TemplateSummary describes one template in a preview.
type TemplateSummary struct {
	Name           string
	Output         string
	CustomTemplate bool
}

// Summary is what a run would do, computed from the configuration alone.
type Summary struct {
	ProjectName     string
	OutputDirectory string
	Formats         []string
	Sources         []SourceSummary
	Templates       []TemplateSummary
	EstimatedFiles  int
}

// Preview summarizes the enabled sources and templates of cfg without
// collecting or writing anything.
func Preview(cfg *config.Config) Summary {
	s := Summary{
		ProjectName:     cfg.Project.Name,
		OutputDirectory: cfg.Output.Directory,
		Formats:         append([]string(nil), cfg.Output.Formats...),
	}
	for _, src := range cfg.EnabledSources() {
		s.Sources = append(s.Sources, SourceSummary{Type: src.Type, Name: src.Name, Enabled: src.Enabled})
	}
	for _, t := range cfg.EnabledTemplates() {
		s.Templates = append(s.Templates, TemplateSummary{
			Name:           t.Name,
			Output:         t.Output,
			CustomTemplate: t.TemplateFile != "",
		})
	}
	s.EstimatedFiles = len(s.Templates) * len(s.Formats)
	return s
}
