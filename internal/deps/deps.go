// Package deps reports capabilities a configuration needs but the running
// binary or host lacks. Its findings are warnings: a run only fails later,
// if and when the missing capability is actually used.
package deps

import (
	"fmt"
	"os/exec"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/connector"
	"github.com/elhajjaji/wara9a/internal/output"
)

// Warning is one missing capability.
type Warning struct {
	// Subject names what is affected, e.g. "source github" or "format pdf".
	Subject string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Subject, w.Message)
}

// Report is the outcome of a check.
type Report struct {
	Warnings []Warning
}

// OK reports whether nothing is missing.
func (r Report) OK() bool {
	return len(r.Warnings) == 0
}

// Checker inspects a configuration against the registered connectors and
// output generators.
type Checker struct {
	connectors *connector.Registry
	outputs    *output.Registry
	lookPath   func(file string) (string, error)
}

// NewChecker returns a checker using the given registries.
func NewChecker(connectors *connector.Registry, outputs *output.Registry) *Checker {
	return &Checker{
		connectors: connectors,
		outputs:    outputs,
		lookPath:   exec.LookPath,
	}
}

// Check lists what the enabled sources and the output formats of cfg need
// but cannot get.
func (c *Checker) Check(cfg *config.Config) Report {
	var report Report
	add := func(subject, format string, args ...any) {
		report.Warnings = append(report.Warnings, Warning{Subject: subject, Message: fmt.Sprintf(format, args...)})
	}

	for _, src := range cfg.EnabledSources() {
		subject := "source " + src.Name
		if !c.connectors.Has(src.Type) {
			add(subject, "no connector is registered for type %q", src.Type)
			continue
		}

		switch {
		case src.CodeHost != nil:
			if src.CodeHost.Token == "" {
				add(subject, "no token set (token or GITHUB_TOKEN); requests are unauthenticated and heavily rate limited")
			}
		case src.Ticketing != nil:
			if src.Ticketing.Username == "" || src.Ticketing.Token == "" {
				add(subject, "no credentials set (username/token or JIRA_USERNAME/JIRA_TOKEN); only public projects are readable")
			}
		case src.Files != nil:
			if _, err := c.lookPath("git"); err != nil {
				add(subject, "git executable not found; commits and repository details will be skipped")
			}
		}
	}

	for _, format := range cfg.Output.Formats {
		if !c.outputs.Has(format) {
			add("format "+format, "no output generator is registered; available: %v", c.outputs.Names())
		}
	}

	return report
}
