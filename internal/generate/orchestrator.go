// Package generate turns collected project data into documents: it builds
// the template context, renders each template once and hands the result to
// every requested output format.
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elhajjaji/wara9a/internal/collect"
	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/deps"
	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/internal/output"
	"github.com/elhajjaji/wara9a/internal/render"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// Renderer renders named templates.
type Renderer interface {
	Render(name string, ctx map[string]any) (string, error)
	HasTemplate(name string) bool
}

// Collector gathers project data from the configured sources.
type Collector interface {
	Collect(ctx context.Context, sources []config.Source) (*collect.Result, error)
}

// DependencyChecker reports missing capabilities before collection.
type DependencyChecker interface {
	Check(cfg *config.Config) deps.Report
}

// Failure records one template or (template, format) pair that produced no file.
type Failure struct {
	Template string
	Format   string
	Err      error
}

func (f Failure) Error() string {
	if f.Format == "" {
		return fmt.Sprintf("template %s: %v", f.Template, f.Err)
	}
	return fmt.Sprintf("template %s (%s): %v", f.Template, f.Format, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Stats summarizes a generation run for the operator.
type Stats struct {
	RunID                 string
	StartedAt             time.Time
	EndedAt               time.Time
	Duration              time.Duration
	FilesGenerated        int
	SourcesEnabled        int
	TemplatesEnabled      int
	CommitsProcessed      int
	IssuesProcessed       int
	RequirementsProcessed int
	PullRequestsProcessed int
}

// Result is what a generation run produced. Files and Failures are in
// template then format order.
type Result struct {
	Files     []string
	Failures  []Failure
	Stats     Stats
	Outcomes  []collect.Outcome
	Cancelled bool
	State     State
}

// RunOptions narrows a run. Empty fields fall back to the configuration.
type RunOptions struct {
	Templates []string
	Formats   []string
	OutputDir string
	Clean     bool
}

// Options holds the collaborators of an Orchestrator.
type Options struct {
	Collector Collector
	Renderer  Renderer
	Outputs   *output.Registry
	// Checker is optional.
	Checker DependencyChecker
	Now     func() time.Time
}

// Orchestrator drives validation, collection, rendering and emission.
// Each call to Run or Generate is an independent run with its own state.
type Orchestrator struct {
	cfg  *config.Config
	opts Options
}

// NewOrchestrator returns an orchestrator for cfg.
func NewOrchestrator(cfg *config.Config, opts Options) *Orchestrator {
	if opts.Outputs == nil {
		opts.Outputs = output.DefaultRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{cfg: cfg, opts: opts}
}

// Run validates the configuration, collects every enabled source once and
// generates the requested documents from the merged data.
//
// An invalid configuration, or a failure under the abort policy, ends the
// run in the Failed state and is returned as the error. Other failures are
// only recorded in the result.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	r := o.newRun()

	r.transition(StateValidating)
	if err := config.Validate(o.cfg); err != nil {
		return r.fail(err)
	}
	if o.opts.Checker != nil && o.cfg.CheckDependencies {
		for _, w := range o.opts.Checker.Check(o.cfg).Warnings {
			logging.Warn("dependency check", "subject", w.Subject, "problem", w.Message)
		}
	}

	r.transition(StateCollecting)
	collected, err := o.opts.Collector.Collect(ctx, o.cfg.Sources)
	if collected != nil {
		r.result.Outcomes = collected.Outcomes
		r.result.Cancelled = collected.Cancelled
		r.result.Stats.RunID = collected.RunID
	}
	if err != nil {
		return r.fail(fmt.Errorf("failed to collect project data: %w", err))
	}
	if collected == nil {
		return r.fail(errors.New("collector returned no result"))
	}
	if collected.Cancelled {
		r.finish(collected.Data)
		return r.result, nil
	}

	if err := o.generate(ctx, r, collected.Data, opts); err != nil {
		return r.fail(err)
	}
	r.finish(collected.Data)
	return r.result, nil
}

// Generate renders templates from already collected data into formats.
// Empty templates or formats select the enabled ones from the configuration.
func (o *Orchestrator) Generate(ctx context.Context, data *models.ProjectData, templates, formats []string) (*Result, error) {
	r := o.newRun()
	if err := o.generate(ctx, r, data, RunOptions{Templates: templates, Formats: formats}); err != nil {
		return r.fail(err)
	}
	r.finish(data)
	return r.result, nil
}

func (o *Orchestrator) newRun() *run {
	return &run{
		state: StateIdle,
		now:   o.opts.Now,
		result: &Result{
			State: StateIdle,
			Stats: Stats{
				RunID:            uuid.NewString(),
				StartedAt:        o.opts.Now(),
				SourcesEnabled:   len(o.cfg.EnabledSources()),
				TemplatesEnabled: len(o.cfg.EnabledTemplates()),
			},
		},
	}
}

func (o *Orchestrator) generate(ctx context.Context, r *run, data *models.ProjectData, opts RunOptions) error {
	if data == nil {
		data = models.EmptyProjectData(o.cfg.Project.Name, o.cfg.Project.Description)
	}

	templates := o.selectTemplates(opts.Templates)
	formats := opts.Formats
	if len(formats) == 0 {
		formats = o.cfg.Output.Formats
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = o.cfg.Output.Directory
	}

	if opts.Clean || o.cfg.Output.CleanBefore {
		if err := cleanDir(outDir); err != nil {
			return err
		}
	}

	logging.Info("generating documents",
		"run_id", r.result.Stats.RunID,
		"templates", len(templates),
		"formats", formats,
		"output_dir", outDir)

	for _, name := range templates {
		if ctx.Err() != nil {
			r.result.Cancelled = true
			logging.Warn("generation cancelled", "run_id", r.result.Stats.RunID, "files", len(r.result.Files))
			return nil
		}

		r.transition(StateRendering)
		tmpl, ok := o.cfg.Template(name)
		if !ok || !tmpl.Enabled {
			logging.Warn("skipping template that is not declared or not enabled", "template", name)
			continue
		}
		if !o.opts.Renderer.HasTemplate(name) {
			r.record(Failure{Template: name, Err: fmt.Errorf("%w: %s", render.ErrTemplateNotFound, name)})
			continue
		}

		tctx, err := BuildContext(o.cfg, tmpl, data, o.opts.Now())
		if err != nil {
			if abort := r.recordAbortable(o.cfg.FailurePolicy, Failure{Template: name, Err: err}); abort != nil {
				return abort
			}
			continue
		}

		content, err := o.opts.Renderer.Render(name, tctx)
		if err != nil {
			if abort := r.recordAbortable(o.cfg.FailurePolicy, Failure{Template: name, Err: err}); abort != nil {
				return abort
			}
			continue
		}

		r.transition(StateEmitting)
		for _, format := range formats {
			if ctx.Err() != nil {
				r.result.Cancelled = true
				return nil
			}
			path, err := o.emit(format, content, outDir, tmpl.Output, tctx)
			if err != nil {
				if abort := r.recordAbortable(o.cfg.FailurePolicy, Failure{Template: name, Format: format, Err: err}); abort != nil {
					return abort
				}
				continue
			}
			r.result.Files = append(r.result.Files, path)
		}
	}
	return nil
}

func (o *Orchestrator) emit(format, content, outDir, templateOutput string, tctx map[string]any) (string, error) {
	gen, err := o.opts.Outputs.Get(format)
	if err != nil {
		return "", err
	}
	return gen.Generate(content, OutputPath(outDir, templateOutput, gen.Extension()), tctx)
}

// selectTemplates returns the names to generate: the requested ones, or
// every enabled template in declared order.
func (o *Orchestrator) selectTemplates(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	var names []string
	for _, t := range o.cfg.EnabledTemplates() {
		names = append(names, t.Name)
	}
	return names
}

// OutputPath joins dir with the template's output name, its extension
// replaced by ext. Every format of a template shares the same base name.
func OutputPath(dir, templateOutput, ext string) string {
	base := strings.TrimSuffix(templateOutput, filepath.Ext(templateOutput))
	return filepath.Join(dir, base+ext)
}

// cleanDir removes the regular files directly inside dir.
func cleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clean output directory: %w", err)
		}
		removed++
	}
	logging.Info("output directory cleaned", "directory", dir, "files_removed", removed)
	return nil
}

// run is the mutable state of one Run or Generate call.
type run struct {
	state  State
	now    func() time.Time
	result *Result
}

func (r *run) transition(to State) {
	if !r.state.canTransition(to) {
		panic(fmt.Sprintf("generate: invalid state transition %s -> %s", r.state, to))
	}
	r.state = to
	r.result.State = to
}

func (r *run) record(f Failure) {
	logging.Error("document generation failed",
		"template", f.Template,
		"format", f.Format,
		"error", f.Err)
	r.result.Failures = append(r.result.Failures, f)
}

// recordAbortable records f and returns it as an error when policy says the
// run must stop. Missing templates and formats never stop a run.
func (r *run) recordAbortable(policy config.FailurePolicy, f Failure) error {
	r.record(f)
	if policy != config.FailAbort {
		return nil
	}
	if errors.Is(f.Err, render.ErrTemplateNotFound) || errors.Is(f.Err, output.ErrGeneratorNotFound) {
		return nil
	}
	return f
}

func (r *run) fail(err error) (*Result, error) {
	r.transition(StateFailed)
	r.stamp()
	return r.result, err
}

func (r *run) finish(data *models.ProjectData) {
	if data != nil {
		c := data.Counts()
		r.result.Stats.CommitsProcessed = c.Commits
		r.result.Stats.IssuesProcessed = c.Issues()
		r.result.Stats.RequirementsProcessed = c.Requirements
		r.result.Stats.PullRequestsProcessed = c.PullRequests
	}
	r.transition(StateDone)
	r.stamp()

	logging.Info("generation finished",
		"run_id", r.result.Stats.RunID,
		"files", r.result.Stats.FilesGenerated,
		"failures", len(r.result.Failures),
		"duration", r.result.Stats.Duration)
}

func (r *run) stamp() {
	r.result.Stats.EndedAt = r.now()
	r.result.Stats.Duration = r.result.Stats.EndedAt.Sub(r.result.Stats.StartedAt)
	r.result.Stats.FilesGenerated = len(r.result.Files)
}
