package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/logging"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a wara9a.yml for a project",
	Long: `Create a wara9a.yml configuration file and the output directory.

The generated configuration reads the local working tree and renders the
README and changelog templates as Markdown. A GitHub source is added
when --github-repo is given; its token is read from GITHUB_TOKEN.

Example:
  wara9a init -n my-project -g owner/my-project`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := cmd.Flags().GetString("dir")
		if err != nil {
			return err
		}
		name, err := cmd.Flags().GetString("name")
		if err != nil {
			return err
		}
		githubRepo, err := cmd.Flags().GetString("github-repo")
		if err != nil {
			return err
		}
		outputDir, err := cmd.Flags().GetString("output-dir")
		if err != nil {
			return err
		}
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		if dir == "" {
			if dir, err = os.Getwd(); err != nil {
				return fmt.Errorf("failed to resolve working directory: %w", err)
			}
		}
		if name == "" {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("failed to resolve project directory: %w", err)
			}
			name = filepath.Base(abs)
		}

		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		if path == "" {
			path = filepath.Join(dir, config.DefaultFile)
		}
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("project already exists: %s (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to access %s: %w", path, err)
		}

		cfg, err := initialConfig(name, githubRepo, outputDir)
		if err != nil {
			return err
		}
		if err := config.Save(cfg, path); err != nil {
			return err
		}
		outPath := filepath.Join(dir, outputDir)
		if err := os.MkdirAll(outPath, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		logging.Info("project initialized", "config", path, "project", name)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s wara9a project %s created\n", success("✓"), bold(name))
		fmt.Fprintf(out, "  Configuration: %s\n", path)
		fmt.Fprintf(out, "  Output:        %s\n", outPath)
		fmt.Fprintf(out, "  Sources:       %d configured, %d enabled\n", len(cfg.Sources), len(cfg.EnabledSources()))
		fmt.Fprintf(out, "  Templates:     %d declared, %d enabled\n", len(cfg.Templates), len(cfg.EnabledTemplates()))
		fmt.Fprintf(out, "\nRun %s to generate the documentation.\n", accent("wara9a generate"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("name", "n", "", "project name (default: directory name)")
	initCmd.Flags().StringP("dir", "d", "", "project directory (default: current directory)")
	initCmd.Flags().StringP("github-repo", "g", "", "GitHub repository to add as a source (owner/repo)")
	initCmd.Flags().StringP("output-dir", "o", "docs", "output directory, relative to the project directory")
	initCmd.Flags().BoolP("force", "f", false, "overwrite an existing configuration")
}

// initialConfig returns the default configuration for name, with the
// GitHub source enabled for githubRepo when it is set.
func initialConfig(name, githubRepo, outputDir string) (*config.Config, error) {
	cfg := config.DefaultConfig(name)
	cfg.Output.Directory = outputDir
	if githubRepo == "" {
		return cfg, nil
	}

	gh, err := config.ParseSource(map[string]any{
		"type":        "github",
		"name":        "github",
		"repo":        githubRepo,
		"token":       "${GITHUB_TOKEN}",
		"max_commits": 100,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub source: %w", err)
	}
	for i, src := range cfg.Sources {
		if src.Type == gh.Type {
			cfg.Sources[i] = gh
			return cfg, nil
		}
	}
	cfg.Sources = append(cfg.Sources, gh)
	return cfg, nil
}
