// Package cmd provides the command-line interface for wara9a.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/internal/project"
)

// Version is set at build time.
var Version = "dev"

// logFile is the open log file when file logging is enabled.
var logFile *os.File

var rootCmd = &cobra.Command{
	Use:   "wara9a",
	Short: "Generate project documentation from GitHub, Jira and local files",
	Long: `wara9a collects project data from code hosts, issue trackers and the local
working tree, merges it into one model and renders README, changelog,
technical and functional documents as Markdown and HTML.

Sources, templates and output formats are declared in wara9a.yml. Run
"wara9a init" to create one.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configureLogging(cmd, "", "")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogFile()
	},
}

// Execute runs the root command.
func Execute() error {
	defer closeLogFile()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "configuration file (default \"wara9a.yml\")")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "directory for a dated log file, written alongside stderr")
}

// configureLogging sets the log level and destination. Flags win over the
// configuration values cfgLevel and cfgLogDir, which may be empty.
func configureLogging(cmd *cobra.Command, cfgLevel, cfgLogDir string) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}
	logDir, err := cmd.Flags().GetString("log-file")
	if err != nil {
		return err
	}
	if logDir == "" {
		logDir = cfgLogDir
	}

	level := logging.ParseLevel(os.Getenv("WARA9A_LOG_LEVEL"))
	if cfgLevel != "" {
		level = logging.ParseLevel(cfgLevel)
	}
	if verbose {
		level = logging.LevelDebug
	}

	var w io.Writer = cmd.ErrOrStderr()
	if logDir != "" && logFile == nil {
		f, err := logging.OpenLogFile(logDir, "wara9a")
		if err != nil {
			return err
		}
		logFile = f
	}
	if logFile != nil {
		w = io.MultiWriter(w, logFile)
	}
	logging.SetupLogger(w, level)
	return nil
}

func closeLogFile() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// configPath returns the --config flag or the default file name.
func configPath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	if path == "" {
		path = config.DefaultFile
	}
	return path, nil
}

// loadProject opens the configured project and applies its logging settings.
func loadProject(cmd *cobra.Command) (*project.Project, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	p, err := project.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := configureLogging(cmd, p.Config().LogLevel, p.Config().LogFile); err != nil {
		return nil, err
	}
	logging.Debug("configuration loaded", "path", path, "sources", len(p.Config().Sources))
	return p, nil
}
