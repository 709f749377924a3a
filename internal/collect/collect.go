// Package collect runs the configured sources through their connectors and
// merges the results into the single ProjectData used for generation.
package collect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/connector"
	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// defaultMaxParallel bounds concurrent collections in parallel mode.
const defaultMaxParallel = 4

var (
	// ErrNotAttempted marks sources that were never collected because the
	// run stopped before reaching them.
	ErrNotAttempted = errors.New("source not attempted")
	// ErrAborted is the cause recorded when the abort policy stops a run.
	ErrAborted = errors.New("collection aborted after a source failure")
)

// Outcome records how one source fared. Skipped outcomes belong to sources
// that were never attempted; their Err wraps ErrNotAttempted and the reason.
type Outcome struct {
	SourceName string
	SourceType string
	Success    bool
	Skipped    bool
	Err        error
	Duration   time.Duration
}

func skippedOutcome(src config.Source, cause error) Outcome {
	return Outcome{
		SourceName: src.Name,
		SourceType: src.Type,
		Skipped:    true,
		Err:        fmt.Errorf("%w: %w", ErrNotAttempted, cause),
	}
}

// Result is the outcome of one collection run. Data is never nil.
type Result struct {
	RunID     string
	Data      *models.ProjectData
	Outcomes  []Outcome
	Cancelled bool
}

// Succeeded returns the number of sources that collected successfully.
func (r *Result) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failures returns the outcomes of attempted sources that failed, in
// declared order.
func (r *Result) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Success && !o.Skipped {
			failed = append(failed, o)
		}
	}
	return failed
}

// Skipped returns the outcomes of sources that were never attempted.
func (r *Result) Skipped() []Outcome {
	var skipped []Outcome
	for _, o := range r.Outcomes {
		if o.Skipped {
			skipped = append(skipped, o)
		}
	}
	return skipped
}

// Options configures an Orchestrator.
type Options struct {
	// Project provides the metadata of the fallback data used when no
	// source succeeds.
	Project       config.ProjectConfig
	FailurePolicy config.FailurePolicy
	Parallel      bool
	MaxParallel   int
	// SourceTimeout bounds each Collect call. Zero means no limit.
	SourceTimeout time.Duration
	Merger        Merger
}

// Orchestrator collects sources through a connector registry.
type Orchestrator struct {
	registry *connector.Registry
	opts     Options
}

// NewOrchestrator returns an orchestrator using registry to resolve
// connectors. Unset options take their defaults: continue on failure,
// sequential collection, first-wins merge.
func NewOrchestrator(registry *connector.Registry, opts Options) *Orchestrator {
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.FailContinue
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = defaultMaxParallel
	}
	if opts.Merger == nil {
		opts.Merger = FirstWins{}
	}
	return &Orchestrator{registry: registry, opts: opts}
}

// Collect runs every enabled source, in declared order unless parallel mode
// is on, and merges the successful results.
//
// Under the continue policy failures are only recorded in the outcomes and
// the returned error is nil. Under the abort policy the first failure in
// declared order stops the run and is returned alongside the partial result.
// A cancelled ctx yields the outcomes gathered so far with Cancelled set.
// Either way every enabled source gets an outcome; the ones never reached
// are marked Skipped.
func (o *Orchestrator) Collect(ctx context.Context, sources []config.Source) (*Result, error) {
	var enabled []config.Source
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		} else {
			logging.Debug("skipping disabled source", "source", src.Name)
		}
	}

	result := &Result{RunID: uuid.NewString()}
	logging.Info("starting collection",
		"run_id", result.RunID,
		"sources", len(enabled),
		"parallel", o.opts.Parallel)

	var collected []*models.ProjectData
	var runErr error
	if o.opts.Parallel {
		collected, runErr = o.collectParallel(ctx, enabled, result)
	} else {
		collected, runErr = o.collectSequential(ctx, enabled, result)
	}

	if ctx.Err() != nil {
		result.Cancelled = true
		logging.Warn("collection cancelled",
			"run_id", result.RunID,
			"completed", len(result.Outcomes)-len(result.Skipped()),
			"skipped", len(result.Skipped()))
	}

	data, err := o.opts.Merger.Merge(collected)
	if err != nil {
		return nil, fmt.Errorf("failed to merge collected data: %w", err)
	}
	if data == nil {
		logging.Warn("no source collected successfully, using project metadata only",
			"project", o.opts.Project.Name)
		data = models.EmptyProjectData(o.opts.Project.Name, o.opts.Project.Description)
	}
	if data.Repository.Name == "" {
		data.Repository.Name = o.opts.Project.Name
		data.Repository.FullName = o.opts.Project.Name
	}
	result.Data = data

	logging.Info("collection finished",
		"run_id", result.RunID,
		"succeeded", result.Succeeded(),
		"failed", len(result.Failures()),
		"skipped", len(result.Skipped()))

	return result, runErr
}

func (o *Orchestrator) collectSequential(ctx context.Context, sources []config.Source, result *Result) ([]*models.ProjectData, error) {
	var collected []*models.ProjectData
	var runErr error
	for _, src := range sources {
		if ctx.Err() != nil {
			result.Outcomes = append(result.Outcomes, skippedOutcome(src, ctx.Err()))
			continue
		}
		if runErr != nil {
			result.Outcomes = append(result.Outcomes, skippedOutcome(src, ErrAborted))
			continue
		}
		outcome, data := o.collectOne(ctx, src)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Success {
			collected = append(collected, data)
			continue
		}
		if o.opts.FailurePolicy == config.FailAbort && ctx.Err() == nil {
			runErr = fmt.Errorf("source %s failed: %w", src.Name, outcome.Err)
		}
	}
	return collected, runErr
}

// collectParallel runs sources concurrently and buffers results by index so
// that merge order matches declared order regardless of completion order.
//
// Under the abort policy the first failure cancels the sources still
// running and prevents new ones from starting. The reported error is the
// lowest-index genuine failure, not whichever finished first; sources that
// only failed because of that cancellation do not count.
func (o *Orchestrator) collectParallel(ctx context.Context, sources []config.Source, result *Result) ([]*models.ProjectData, error) {
	outcomes := make([]Outcome, len(sources))
	data := make([]*models.ProjectData, len(sources))
	abort := o.opts.FailurePolicy == config.FailAbort

	gctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var g errgroup.Group
	g.SetLimit(o.opts.MaxParallel)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if gctx.Err() != nil {
				outcomes[i] = skippedOutcome(src, context.Cause(gctx))
				return nil
			}
			outcomes[i], data[i] = o.collectOne(gctx, src)
			if abort && !outcomes[i].Success {
				cancel(ErrAborted)
			}
			return nil
		})
	}
	_ = g.Wait()

	aborted := errors.Is(context.Cause(gctx), ErrAborted)

	var collected []*models.ProjectData
	var runErr error
	for i, outcome := range outcomes {
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Success {
			collected = append(collected, data[i])
			continue
		}
		if !abort || runErr != nil || outcome.Skipped || ctx.Err() != nil {
			continue
		}
		if aborted && errors.Is(outcome.Err, context.Canceled) {
			continue
		}
		runErr = fmt.Errorf("source %s failed: %w", sources[i].Name, outcome.Err)
	}
	return collected, runErr
}

// collectOne resolves, validates and collects a single source.
func (o *Orchestrator) collectOne(ctx context.Context, src config.Source) (Outcome, *models.ProjectData) {
	start := time.Now()
	outcome := Outcome{SourceName: src.Name, SourceType: src.Type}

	fail := func(err error) (Outcome, *models.ProjectData) {
		outcome.Err = err
		outcome.Duration = time.Since(start)
		logging.Error("source failed",
			"source", src.Name,
			"type", src.Type,
			"error", err)
		return outcome, nil
	}

	c, err := o.registry.Resolve(src.Type)
	if err != nil {
		return fail(err)
	}
	if errs := c.ValidateConfig(src); len(errs) > 0 {
		return fail(connector.NewConfigError(c.Type(), errs...))
	}

	cctx := ctx
	if o.opts.SourceTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, o.opts.SourceTimeout)
		defer cancel()
	}

	logging.Debug("collecting source", "source", src.Name, "type", src.Type)
	data, err := c.Collect(cctx, src)
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", o.opts.SourceTimeout, err)
		}
		return fail(err)
	}
	if data == nil {
		return fail(&connector.Error{Type: src.Type, Err: errors.New("connector returned no data")})
	}

	outcome.Success = true
	outcome.Duration = time.Since(start)
	logging.Info("source collected",
		"source", src.Name,
		"type", src.Type,
		"duration", outcome.Duration)
	return outcome, data
}
