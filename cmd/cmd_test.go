package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elhajjaji/wara9a/internal/collect"
	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/deps"
)

func init() {
	color.NoColor = true
}

// executeCommand runs the root command with args and returns its output.
// Flags are reset afterwards so runs do not leak into each other.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer resetFlags(rootCmd)

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// writeProject creates a small source tree and a configuration reading it.
func writeProject(t *testing.T, formats string) (cfgPath, outDir string) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README.md"), []byte("# Demo\n\nDemo project.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	outDir = filepath.Join(root, "docs")
	cfg := fmt.Sprintf(`
project:
  name: demo
sources:
  - type: local_files
    name: local
    path: %s
  - type: github
    name: upstream
    enabled: false
    repo: acme/demo
    token: ghp_very_secret_token
templates:
  - name: readme
    output: README.md
output:
  directory: %s
  formats: %s
check_dependencies: false
`, src, outDir, formats)

	cfgPath = filepath.Join(root, "wara9a.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, outDir
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := executeCommand(t, "init", "-d", dir, "-n", "demo", "-g", "acme/demo")
	require.NoError(t, err)
	assert.Contains(t, out, "wara9a project demo created")
	assert.DirExists(t, filepath.Join(dir, "docs"))

	cfg, err := config.LoadConfig(filepath.Join(dir, config.DefaultFile))
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Project.Name)
	require.Len(t, cfg.EnabledSources(), 2)
	assert.Equal(t, "acme/demo", cfg.EnabledSources()[1].CodeHost.Repo)

	_, err = executeCommand(t, "init", "-d", dir, "-n", "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = executeCommand(t, "init", "-d", dir, "-n", "other", "--force")
	require.NoError(t, err)
	cfg, err = config.LoadConfig(filepath.Join(dir, config.DefaultFile))
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Project.Name)
}

func TestInitialConfig(t *testing.T) {
	testCases := []struct {
		name          string
		githubRepo    string
		expectEnabled int
		expectRepo    string
	}{
		{
			name:          "local files only",
			expectEnabled: 1,
			expectRepo:    "owner/demo",
		},
		{
			name:          "with GitHub repository",
			githubRepo:    "acme/demo",
			expectEnabled: 2,
			expectRepo:    "acme/demo",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := initialConfig("demo", tc.githubRepo, "site")
			require.NoError(t, err)
			assert.Equal(t, "site", cfg.Output.Directory)
			assert.Len(t, cfg.EnabledSources(), tc.expectEnabled)

			var repo string
			for _, src := range cfg.Sources {
				if src.Type == "github" {
					repo = src.CodeHost.Repo
				}
			}
			assert.Equal(t, tc.expectRepo, repo)
		})
	}
}

func TestGenerateCommand(t *testing.T) {
	cfgPath, outDir := writeProject(t, "[markdown]")

	out, err := executeCommand(t, "generate", "-c", cfgPath, "-f", "markdown", "-f", "html")
	require.NoError(t, err)
	assert.Contains(t, out, "Statistics")
	assert.FileExists(t, filepath.Join(outDir, "README.md"))
	assert.FileExists(t, filepath.Join(outDir, "README.html"))

	other := filepath.Join(t.TempDir(), "site")
	_, err = executeCommand(t, "generate", "-c", cfgPath, "-o", other)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(other, "README.md"))
	assert.NoFileExists(t, filepath.Join(other, "README.html"))
}

func TestGenerateCommandFailures(t *testing.T) {
	cfgPath, _ := writeProject(t, "[markdown]")

	out, err := executeCommand(t, "generate", "-c", cfgPath, "-f", "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 document(s) could not be generated")
	assert.Contains(t, out, "generator not found")

	_, err = executeCommand(t, "generate", "-c", filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestGeneratePreview(t *testing.T) {
	cfgPath, outDir := writeProject(t, "[markdown, html]")

	out, err := executeCommand(t, "generate", "-c", cfgPath, "--preview")
	require.NoError(t, err)
	assert.Contains(t, out, "Preview of demo")
	assert.Contains(t, out, "2 file(s) would be generated")
	assert.NoDirExists(t, outDir)
}

func TestCollectCommand(t *testing.T) {
	cfgPath, _ := writeProject(t, "[markdown]")

	out, err := executeCommand(t, "collect", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "Releases:      0")
}

func TestConfigCommands(t *testing.T) {
	cfgPath, _ := writeProject(t, "[markdown]")

	out, err := executeCommand(t, "config", "show", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "upstream (github) disabled")
	assert.Contains(t, out, "repo: acme/demo")
	assert.NotContains(t, out, "ghp_very_secret_token")

	out, err = executeCommand(t, "config", "validate", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")
}

func TestConfigValidateProblems(t *testing.T) {
	cfgPath, _ := writeProject(t, "[markdown, pdf]")

	out, err := executeCommand(t, "config", "validate", "-c", cfgPath)
	require.Error(t, err)
	assert.Contains(t, out, "generator not found: pdf")
}

func TestConnectorsCommand(t *testing.T) {
	out, err := executeCommand(t, "connectors")
	require.NoError(t, err)
	assert.Contains(t, out, "Ticketing connectors")
	assert.Contains(t, out, "Code host connectors")
	assert.Contains(t, out, "File connectors")
	for _, typ := range []string{"jira", "github", "local_files"} {
		assert.Contains(t, out, typ)
	}
}

func TestConnectorsTest(t *testing.T) {
	cfgPath, _ := writeProject(t, "[markdown]")

	out, err := executeCommand(t, "connectors", "--test", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Connection tests")
	assert.Contains(t, out, "local")
}

func TestTemplatesCommand(t *testing.T) {
	out, err := executeCommand(t, "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "readme")
	assert.Contains(t, out, "Release history")
}

func TestDepsCheckCommand(t *testing.T) {
	cfgPath, _ := writeProject(t, "[markdown, pdf]")

	out, err := executeCommand(t, "deps", "check", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "format pdf")
}

func TestPrintReport(t *testing.T) {
	testCases := []struct {
		name     string
		report   deps.Report
		expected string
	}{
		{
			name:     "no warnings",
			expected: "all dependencies are available",
		},
		{
			name: "warnings",
			report: deps.Report{Warnings: []deps.Warning{
				{Subject: "source upstream", Message: "no token configured"},
			}},
			expected: "! source upstream: no token configured\n\n1 warning(s)\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			printReport(&buf, tc.report)
			assert.Contains(t, buf.String(), tc.expected)
		})
	}
}

func TestPrintOutcomes(t *testing.T) {
	outcomes := []collect.Outcome{
		{SourceName: "upstream", SourceType: "github", Success: true},
		{SourceName: "tracker", SourceType: "jira", Err: errors.New("refused")},
		{SourceName: "local", SourceType: "local_files", Skipped: true, Err: collect.ErrNotAttempted},
	}

	var buf bytes.Buffer
	printOutcomes(&buf, outcomes)
	out := buf.String()

	assert.Regexp(t, `upstream\s+github\s+ok`, out)
	assert.Regexp(t, `tracker\s+jira\s+failed`, out)
	assert.Contains(t, out, "refused")
	assert.Regexp(t, `local\s+local_files\s+skipped`, out)
	assert.Contains(t, out, "source not attempted")
}

func TestSourceSettings(t *testing.T) {
	src, err := config.ParseSource(map[string]any{
		"type":  "github",
		"name":  "upstream",
		"repo":  "acme/demo",
		"token": "ghp_very_secret_token",
	})
	require.NoError(t, err)

	lines, err := sourceSettings(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"repo: acme/demo", "token: ghp_...***"}, lines)
}
