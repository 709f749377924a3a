package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/elhajjaji/wara9a/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or validate the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the loaded configuration with credentials masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		return printConfig(cmd.OutOrStdout(), p.Config())
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration against the available connectors, templates and formats",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		problems := p.Validate()
		if len(problems) == 0 {
			fmt.Fprintf(out, "%s configuration is valid\n", success("✓"))
			return nil
		}
		for _, problem := range problems {
			fmt.Fprintf(out, "%s %v\n", failure("✗"), problem)
		}
		return fmt.Errorf("configuration has %d problem(s)", len(problems))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func printConfig(w io.Writer, cfg *config.Config) error {
	p := cfg.Project
	fmt.Fprintln(w, heading("Project"))
	fmt.Fprintf(w, "  Name:        %s\n", p.Name)
	for _, field := range []struct{ label, value string }{
		{"Version", p.Version},
		{"Description", p.Description},
		{"Author", p.Author},
		{"License", p.License},
		{"Homepage", p.Homepage},
		{"Repository", p.Repository},
	} {
		if field.value != "" {
			fmt.Fprintf(w, "  %-12s %s\n", field.label+":", field.value)
		}
	}

	fmt.Fprintln(w, heading("Sources"))
	for _, src := range cfg.Sources {
		state := success("enabled")
		if !src.Enabled {
			state = warning("disabled")
		}
		fmt.Fprintf(w, "  %s (%s) %s\n", bold(src.Name), src.Type, state)
		settings, err := sourceSettings(src)
		if err != nil {
			return err
		}
		for _, line := range settings {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}

	fmt.Fprintln(w, heading("Templates"))
	for _, t := range cfg.Templates {
		state := success("enabled")
		if !t.Enabled {
			state = warning("disabled")
		}
		line := fmt.Sprintf("  %-12s -> %-16s %s", t.Name, t.Output, state)
		if t.TemplateFile != "" {
			line += " " + accent("("+t.TemplateFile+")")
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w, heading("Output"))
	fmt.Fprintf(w, "  Directory:      %s\n", cfg.Output.Directory)
	fmt.Fprintf(w, "  Formats:        %s\n", strings.Join(cfg.Output.Formats, ", "))
	fmt.Fprintf(w, "  Clean before:   %t\n", cfg.Output.CleanBefore)

	fmt.Fprintln(w, heading("Run"))
	fmt.Fprintf(w, "  Parallel:       %t\n", cfg.Parallel)
	fmt.Fprintf(w, "  Failure policy: %s\n", cfg.FailurePolicy)
	fmt.Fprintf(w, "  Source timeout: %s\n", cfg.SourceTimeout)
	fmt.Fprintf(w, "  Log level:      %s\n", cfg.LogLevel)
	return nil
}

// sourceSettings renders the masked source record as YAML lines, without
// the fields already shown in the heading.
func sourceSettings(src config.Source) ([]string, error) {
	settings := src.Redacted()
	for _, key := range []string{"type", "name", "enabled"} {
		delete(settings, key)
	}
	if len(settings) == 0 {
		return nil, nil
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode source %s: %w", src.Name, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n"), nil
}
