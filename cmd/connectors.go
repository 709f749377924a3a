package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/elhajjaji/wara9a/internal/connector"
	"github.com/elhajjaji/wara9a/internal/project"
	"github.com/elhajjaji/wara9a/internal/render"
)

// categoryTitles orders and names the connector groups.
var categoryTitles = []struct {
	category connector.Category
	title    string
}{
	{connector.CategoryTicketing, "Ticketing connectors (functional documentation)"},
	{connector.CategoryCodeHost, "Code host connectors (technical documentation)"},
	{connector.CategoryFiles, "File connectors"},
}

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "List the available connectors",
	Long: `List the available connectors grouped by category.

With --test, every enabled source of the configuration is probed with a
minimal collection and reported as reachable or not.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		test, err := cmd.Flags().GetBool("test")
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !test {
			printConnectors(out, project.DefaultRegistry())
			return nil
		}

		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		printConnectors(out, p.Connectors())

		fmt.Fprintln(out, heading("Connection tests"))
		failed := 0
		for _, src := range p.Config().EnabledSources() {
			c, err := p.Connectors().Resolve(src.Type)
			if err != nil {
				fmt.Fprintf(out, "  %-20s %s %v\n", src.Name, failure("✗"), err)
				failed++
				continue
			}
			if connector.TestConnection(cmd.Context(), c, src) {
				fmt.Fprintf(out, "  %-20s %s\n", src.Name, success("✓"))
			} else {
				fmt.Fprintf(out, "  %-20s %s\n", src.Name, failure("✗"))
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d source(s) could not be reached", failed)
		}
		return nil
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the built-in templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := render.NewEngine()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, heading("Built-in templates"))
		for _, name := range engine.Names() {
			fmt.Fprintf(out, "  %-12s %s\n", name, templateDescription(name))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectorsCmd)
	rootCmd.AddCommand(templatesCmd)
	connectorsCmd.Flags().Bool("test", false, "probe every enabled source of the configuration")
}

func printConnectors(w io.Writer, registry *connector.Registry) {
	grouped := registry.ByCategory()
	if len(grouped) == 0 {
		fmt.Fprintln(w, warning("no connector available"))
		return
	}

	printed := make(map[connector.Category]bool)
	for _, ct := range categoryTitles {
		printConnectorGroup(w, ct.title, grouped[ct.category])
		printed[ct.category] = true
	}

	var others []connector.Category
	for category := range grouped {
		if !printed[category] {
			others = append(others, category)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })
	for _, category := range others {
		printConnectorGroup(w, string(category)+" connectors", grouped[category])
	}
}

func printConnectorGroup(w io.Writer, title string, connectors []connector.Connector) {
	if len(connectors) == 0 {
		return
	}
	fmt.Fprintln(w, heading(title))
	for _, c := range connectors {
		info := connector.Describe(c)
		fmt.Fprintf(w, "  %-12s %-16s %s\n", accent(info.Type), info.DisplayName, info.Description)
		if len(info.RequiredFields) > 0 {
			fmt.Fprintf(w, "  %-12s %-16s requires: %s\n", "", "", strings.Join(info.RequiredFields, ", "))
		}
	}
}

func templateDescription(name string) string {
	switch name {
	case "readme":
		return "General project overview"
	case "changelog":
		return "Release history"
	case "technical":
		return "Architecture, activity and technical debt"
	case "functional":
		return "Epics, features, user stories and requirements"
	default:
		return "Custom template"
	}
}
