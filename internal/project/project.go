// Package project is the composition point: it wires the built-in
// connectors, the template engine and the output generators around one
// configuration and exposes the operations front ends call.
package project

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/elhajjaji/wara9a/internal/collect"
	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/connector"
	"github.com/elhajjaji/wara9a/internal/deps"
	"github.com/elhajjaji/wara9a/internal/generate"
	"github.com/elhajjaji/wara9a/internal/github"
	"github.com/elhajjaji/wara9a/internal/jira"
	"github.com/elhajjaji/wara9a/internal/localfiles"
	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/internal/output"
	"github.com/elhajjaji/wara9a/internal/render"
)

// DefaultRegistry returns a connector registry holding the built-in
// connectors.
func DefaultRegistry() *connector.Registry {
	r := connector.NewRegistry(nil)
	r.Register(github.NewConnector())
	r.Register(jira.NewConnector())
	r.Register(localfiles.NewConnector())
	return r
}

// Project ties a configuration to the collaborators that act on it.
type Project struct {
	cfg        *config.Config
	connectors *connector.Registry
	engine     *render.Engine
	outputs    *output.Registry
}

// Open loads the configuration file at path and builds a project on the
// default registry.
func Open(path string) (*Project, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, nil)
}

// New builds a project for cfg. A nil registry uses DefaultRegistry.
// Template files are resolved relative to the configuration file.
func New(cfg *config.Config, connectors *connector.Registry) (*Project, error) {
	if connectors == nil {
		connectors = DefaultRegistry()
	}

	engine, err := render.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize template engine: %w", err)
	}
	baseDir := "."
	if cfg.Path != "" {
		baseDir = filepath.Dir(cfg.Path)
	}
	for _, tc := range cfg.Templates {
		if tc.TemplateFile == "" {
			continue
		}
		path := tc.TemplateFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		engine.SetTemplateFile(tc.Name, path)
		logging.Debug("using template file", "template", tc.Name, "path", path)
	}

	return &Project{
		cfg:        cfg,
		connectors: connectors,
		engine:     engine,
		outputs:    output.DefaultRegistry(),
	}, nil
}

// Config returns the project configuration. Changes made to it before an
// operation apply to that operation.
func (p *Project) Config() *config.Config {
	return p.cfg
}

// Connectors returns the connector registry.
func (p *Project) Connectors() *connector.Registry {
	return p.connectors
}

// Outputs returns the output generator registry.
func (p *Project) Outputs() *output.Registry {
	return p.outputs
}

// Collect runs every enabled source and returns the merged data.
func (p *Project) Collect(ctx context.Context) (*collect.Result, error) {
	return p.collector().Collect(ctx, p.cfg.Sources)
}

// Generate validates the configuration, collects once and writes the
// documents selected by opts.
func (p *Project) Generate(ctx context.Context, opts generate.RunOptions) (*generate.Result, error) {
	orch := generate.NewOrchestrator(p.cfg, generate.Options{
		Collector: p.collector(),
		Renderer:  p.engine,
		Outputs:   p.outputs,
		Checker:   p.checker(),
	})
	return orch.Run(ctx, opts)
}

// Preview summarizes what Generate would produce.
func (p *Project) Preview() generate.Summary {
	return generate.Preview(p.cfg)
}

// CheckDependencies reports missing capabilities without running anything.
func (p *Project) CheckDependencies() deps.Report {
	return p.checker().Check(p.cfg)
}

// Validate returns every problem that would make a run fail or skip work:
// configuration errors, unknown source types, unknown templates and
// unknown output formats.
func (p *Project) Validate() []error {
	var problems []error
	if err := config.Validate(p.cfg); err != nil {
		problems = append(problems, err)
	}
	for _, src := range p.cfg.Sources {
		if !p.connectors.Has(src.Type) {
			problems = append(problems, fmt.Errorf("source %s: %w: %s", src.Name, connector.ErrNotFound, src.Type))
		}
	}
	for _, tc := range p.cfg.Templates {
		if !p.engine.HasTemplate(tc.Name) {
			problems = append(problems, fmt.Errorf("%w: %s", render.ErrTemplateNotFound, tc.Name))
		}
	}
	for _, format := range p.cfg.Output.Formats {
		if !p.outputs.Has(format) {
			problems = append(problems, fmt.Errorf("%w: %s", output.ErrGeneratorNotFound, format))
		}
	}
	return problems
}

func (p *Project) collector() *collect.Orchestrator {
	return collect.NewOrchestrator(p.connectors, collect.Options{
		Project:       p.cfg.Project,
		FailurePolicy: p.cfg.FailurePolicy,
		Parallel:      p.cfg.Parallel,
		SourceTimeout: p.cfg.SourceTimeout,
	})
}

func (p *Project) checker() *deps.Checker {
	return deps.NewChecker(p.connectors, p.outputs)
}
