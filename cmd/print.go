package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/elhajjaji/wara9a/internal/collect"
	"github.com/elhajjaji/wara9a/internal/deps"
	"github.com/elhajjaji/wara9a/internal/generate"
	"github.com/elhajjaji/wara9a/pkg/models"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	accent  = color.New(color.FgCyan).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
)

func printOutcomes(w io.Writer, outcomes []collect.Outcome) {
	fmt.Fprintln(w, heading("Sources"))
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "  no enabled source")
		return
	}
	for _, o := range outcomes {
		status, detail := success("ok"), failure
		switch {
		case o.Skipped:
			status, detail = warning("skipped"), warning
		case !o.Success:
			status = failure("failed")
		}
		fmt.Fprintf(w, "  %-20s %-12s %-8s %s\n", o.SourceName, o.SourceType, status, o.Duration.Round(time.Millisecond))
		if o.Err != nil {
			fmt.Fprintf(w, "    %s\n", detail(o.Err))
		}
	}
}

func printCounts(w io.Writer, c models.Counts) {
	fmt.Fprintln(w, heading("Collected"))
	fmt.Fprintf(w, "  Commits:       %d\n", c.Commits)
	fmt.Fprintf(w, "  Pull requests: %d\n", c.PullRequests)
	fmt.Fprintf(w, "  Releases:      %d\n", c.Releases)
	fmt.Fprintf(w, "  Epics:         %d\n", c.Epics)
	fmt.Fprintf(w, "  Features:      %d\n", c.Features)
	fmt.Fprintf(w, "  User stories:  %d\n", c.UserStories)
	fmt.Fprintf(w, "  Requirements:  %d\n", c.Requirements)
	fmt.Fprintf(w, "  Debt items:    %d\n", c.DebtItems)
}

func printGenerateResult(w io.Writer, r *generate.Result) {
	printOutcomes(w, r.Outcomes)

	fmt.Fprintln(w, heading("Files"))
	if len(r.Files) == 0 {
		fmt.Fprintln(w, "  no file generated")
	}
	for _, f := range r.Files {
		fmt.Fprintf(w, "  %s %s\n", success("✓"), f)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %s %s\n", failure("✗"), f.Error())
	}
	if r.Cancelled {
		fmt.Fprintln(w, warning("run cancelled, results are partial"))
	}

	s := r.Stats
	fmt.Fprintln(w, heading("Statistics"))
	fmt.Fprintf(w, "  Run:           %s\n", s.RunID)
	fmt.Fprintf(w, "  Duration:      %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Files:         %d\n", s.FilesGenerated)
	fmt.Fprintf(w, "  Sources:       %d\n", s.SourcesEnabled)
	fmt.Fprintf(w, "  Templates:     %d\n", s.TemplatesEnabled)
	fmt.Fprintf(w, "  Commits:       %d\n", s.CommitsProcessed)
	fmt.Fprintf(w, "  Issues:        %d\n", s.IssuesProcessed)
	fmt.Fprintf(w, "  Requirements:  %d\n", s.RequirementsProcessed)
	fmt.Fprintf(w, "  Pull requests: %d\n", s.PullRequestsProcessed)
}

func printPreview(w io.Writer, s generate.Summary) {
	fmt.Fprintf(w, "%s %s\n", heading("Preview of"), bold(s.ProjectName))
	fmt.Fprintf(w, "  Output directory: %s\n", s.OutputDirectory)
	fmt.Fprintf(w, "  Formats:          %s\n", strings.Join(s.Formats, ", "))

	fmt.Fprintln(w, heading("Sources"))
	for _, src := range s.Sources {
		fmt.Fprintf(w, "  %-20s %s\n", src.Name, src.Type)
	}
	fmt.Fprintln(w, heading("Templates"))
	for _, t := range s.Templates {
		note := ""
		if t.CustomTemplate {
			note = " " + accent("(custom)")
		}
		fmt.Fprintf(w, "  %-20s %s%s\n", t.Name, t.Output, note)
	}
	fmt.Fprintf(w, "\n%d file(s) would be generated\n", s.EstimatedFiles)
}

func printReport(w io.Writer, r deps.Report) {
	if r.OK() {
		fmt.Fprintf(w, "%s all dependencies are available\n", success("✓"))
		return
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "%s %s\n", warning("!"), warn.String())
	}
	fmt.Fprintf(w, "\n%d warning(s)\n", len(r.Warnings))
}
