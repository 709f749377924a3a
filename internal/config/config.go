// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "wara9a.yml"

// FailurePolicy decides what happens when one source fails to collect.
type FailurePolicy string

const (
	// FailContinue records the failure and moves on to the next source.
	FailContinue FailurePolicy = "continue"
	// FailAbort stops the run at the first failure.
	FailAbort FailurePolicy = "abort"
)

// Config holds all configuration parameters for a documentation run.
type Config struct {
	Project           ProjectConfig
	Sources           []Source
	Templates         []TemplateConfig
	Output            OutputConfig
	LogLevel          string
	LogFile           string
	Parallel          bool
	FailurePolicy     FailurePolicy
	SourceTimeout     time.Duration
	CheckDependencies bool

	// Path is the file the configuration was loaded from, if any.
	Path string
}

// ProjectConfig holds the project metadata shown in generated documents.
type ProjectConfig struct {
	Name        string `mapstructure:"name" yaml:"name" json:"name"`
	Version     string `mapstructure:"version" yaml:"version,omitempty" json:"version,omitempty"`
	Description string `mapstructure:"description" yaml:"description,omitempty" json:"description,omitempty"`
	Author      string `mapstructure:"author" yaml:"author,omitempty" json:"author,omitempty"`
	License     string `mapstructure:"license" yaml:"license,omitempty" json:"license,omitempty"`
	Homepage    string `mapstructure:"homepage" yaml:"homepage,omitempty" json:"homepage,omitempty"`
	Repository  string `mapstructure:"repository" yaml:"repository,omitempty" json:"repository,omitempty"`
}

// TemplateConfig declares one document to generate.
type TemplateConfig struct {
	Name         string         `json:"name"`
	Output       string         `json:"output"`
	TemplateFile string         `json:"template_file,omitempty"`
	Description  string         `json:"description,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
	Enabled      bool           `json:"enabled"`
}

// OutputConfig controls where and in which formats documents are written.
type OutputConfig struct {
	Directory   string   `mapstructure:"directory" yaml:"directory" json:"directory"`
	Formats     []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	CleanBefore bool     `mapstructure:"clean_before" yaml:"clean_before" json:"clean_before"`
}

// document is the on-disk shape of the configuration file.
type document struct {
	Project           ProjectConfig      `mapstructure:"project" yaml:"project"`
	Sources           []map[string]any   `mapstructure:"sources" yaml:"sources"`
	Templates         []templateDocument `mapstructure:"templates" yaml:"templates"`
	Output            OutputConfig       `mapstructure:"output" yaml:"output"`
	LogLevel          string             `mapstructure:"log_level" yaml:"log_level"`
	LogFile           string             `mapstructure:"log_file" yaml:"log_file,omitempty"`
	Parallel          bool               `mapstructure:"parallel" yaml:"parallel"`
	FailurePolicy     string             `mapstructure:"failure_policy" yaml:"failure_policy"`
	SourceTimeout     string             `mapstructure:"source_timeout" yaml:"source_timeout"`
	CheckDependencies bool               `mapstructure:"check_dependencies" yaml:"check_dependencies"`
}

type templateDocument struct {
	Name         string         `mapstructure:"name" yaml:"name"`
	Output       string         `mapstructure:"output" yaml:"output"`
	TemplateFile string         `mapstructure:"template_file" yaml:"template_file,omitempty"`
	Description  string         `mapstructure:"description" yaml:"description,omitempty"`
	Variables    map[string]any `mapstructure:"variables" yaml:"variables,omitempty"`
	Enabled      *bool          `mapstructure:"enabled" yaml:"enabled,omitempty"`
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// ErrNotFound is returned by LoadConfig when the configuration file does not exist.
var ErrNotFound = errors.New("configuration file not found")

// LoadConfig reads the configuration file at path (DefaultFile when empty)
// and overlays environment variables. The result is validated.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to access configuration file: %w", err)
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	cfg.Path = path

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("wara9a")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("log_level", "info")
	v.SetDefault("failure_policy", string(FailContinue))
	v.SetDefault("source_timeout", "60s")
	v.SetDefault("check_dependencies", true)
	v.SetDefault("output.directory", "output")
	v.SetDefault("output.formats", []string{"markdown"})

	// Map specific environment variables
	v.BindEnv("log_level", "WARA9A_LOG_LEVEL")
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg := &Config{
		Project:           doc.Project,
		Output:            doc.Output,
		LogLevel:          doc.LogLevel,
		LogFile:           doc.LogFile,
		Parallel:          doc.Parallel,
		FailurePolicy:     FailurePolicy(strings.ToLower(doc.FailurePolicy)),
		CheckDependencies: doc.CheckDependencies,
	}

	if doc.SourceTimeout != "" {
		timeout, err := time.ParseDuration(doc.SourceTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid source_timeout %q: %w", doc.SourceTimeout, err)
		}
		cfg.SourceTimeout = timeout
	}

	for i, raw := range doc.Sources {
		src, err := ParseSource(raw)
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		applyEnvFallbacks(v, &src)
		cfg.Sources = append(cfg.Sources, src)
	}

	for _, td := range doc.Templates {
		tc := TemplateConfig{
			Name:         td.Name,
			Output:       td.Output,
			TemplateFile: td.TemplateFile,
			Description:  td.Description,
			Variables:    td.Variables,
			Enabled:      td.Enabled == nil || *td.Enabled,
		}
		cfg.Templates = append(cfg.Templates, tc)
	}

	return cfg, nil
}

// applyEnvFallbacks fills credentials left empty in the file from the
// environment variables bound in newViper.
func applyEnvFallbacks(v *viper.Viper, src *Source) {
	if cs := src.CodeHost; cs != nil {
		if cs.Token == "" {
			cs.Token = v.GetString("github.token")
		}
		if domain := v.GetString("github.domain"); domain != "" && src.Raw["domain"] == nil {
			cs.Domain = domain
		}
	}
	if ts := src.Ticketing; ts != nil {
		if ts.URL == "" {
			ts.URL = v.GetString("jira.url")
		}
		if ts.Username == "" {
			ts.Username = v.GetString("jira.username")
		}
		if ts.Token == "" {
			ts.Token = v.GetString("jira.token")
		}
	}
}

// Validate ensures that the run configuration is usable. Connector specific
// settings are checked later by each connector.
func Validate(cfg *Config) error {
	var problems []string

	if strings.TrimSpace(cfg.Project.Name) == "" {
		problems = append(problems, "project.name is required")
	}

	names := make(map[string]bool)
	for i, src := range cfg.Sources {
		if src.Type == "" {
			problems = append(problems, fmt.Sprintf("sources[%d]: type is required", i))
		}
		if names[src.Name] {
			problems = append(problems, fmt.Sprintf("sources[%d]: duplicate source name %q", i, src.Name))
		}
		names[src.Name] = true
	}

	templates := make(map[string]bool)
	for i, tc := range cfg.Templates {
		if tc.Name == "" {
			problems = append(problems, fmt.Sprintf("templates[%d]: name is required", i))
		}
		if tc.Output == "" {
			problems = append(problems, fmt.Sprintf("templates[%d]: output is required", i))
		}
		if templates[tc.Name] {
			problems = append(problems, fmt.Sprintf("templates[%d]: duplicate template %q", i, tc.Name))
		}
		templates[tc.Name] = true
	}

	if cfg.Output.Directory == "" {
		problems = append(problems, "output.directory is required")
	}
	if len(cfg.Output.Formats) == 0 {
		problems = append(problems, "output.formats must list at least one format")
	}

	switch cfg.FailurePolicy {
	case FailContinue, FailAbort:
	default:
		problems = append(problems, fmt.Sprintf("failure_policy must be %q or %q, got %q", FailContinue, FailAbort, cfg.FailurePolicy))
	}
	if cfg.SourceTimeout < 0 {
		problems = append(problems, "source_timeout must not be negative")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// EnabledSources returns the enabled sources in declared order.
func (c *Config) EnabledSources() []Source {
	var out []Source
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// EnabledTemplates returns the enabled templates in declared order.
func (c *Config) EnabledTemplates() []TemplateConfig {
	var out []TemplateConfig
	for _, t := range c.Templates {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// Template looks up a declared template by name.
func (c *Config) Template(name string) (TemplateConfig, bool) {
	for _, t := range c.Templates {
		if t.Name == name {
			return t, true
		}
	}
	return TemplateConfig{}, false
}

// DefaultConfig returns the configuration written by "wara9a init".
func DefaultConfig(projectName string) *Config {
	local, _ := ParseSource(map[string]any{
		"type": "local_files",
		"name": "local",
		"path": ".",
	})
	gh, _ := ParseSource(map[string]any{
		"type":        "github",
		"name":        "github",
		"enabled":     false,
		"repo":        "owner/" + projectName,
		"token":       "${GITHUB_TOKEN}",
		"max_commits": 100,
	})

	return &Config{
		Project: ProjectConfig{
			Name:        projectName,
			Version:     "1.0.0",
			Description: "Project documentation generated with wara9a",
		},
		Sources: []Source{local, gh},
		Templates: []TemplateConfig{
			{Name: "readme", Output: "README.md", Enabled: true},
			{Name: "changelog", Output: "CHANGELOG.md", Enabled: true},
			{Name: "technical", Output: "TECHNICAL.md", Enabled: false},
			{Name: "functional", Output: "FUNCTIONAL.md", Enabled: false},
		},
		Output: OutputConfig{
			Directory: "docs",
			Formats:   []string{"markdown"},
		},
		LogLevel:          "info",
		FailurePolicy:     FailContinue,
		SourceTimeout:     60 * time.Second,
		CheckDependencies: true,
	}
}

// Save writes the configuration as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	doc := document{
		Project:           cfg.Project,
		Output:            cfg.Output,
		LogLevel:          cfg.LogLevel,
		LogFile:           cfg.LogFile,
		Parallel:          cfg.Parallel,
		FailurePolicy:     string(cfg.FailurePolicy),
		CheckDependencies: cfg.CheckDependencies,
	}
	if cfg.SourceTimeout > 0 {
		doc.SourceTimeout = cfg.SourceTimeout.String()
	}
	for _, src := range cfg.Sources {
		doc.Sources = append(doc.Sources, src.Raw)
	}
	for _, tc := range cfg.Templates {
		enabled := tc.Enabled
		doc.Templates = append(doc.Templates, templateDocument{
			Name:         tc.Name,
			Output:       tc.Output,
			TemplateFile: tc.TemplateFile,
			Description:  tc.Description,
			Variables:    tc.Variables,
			Enabled:      &enabled,
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create configuration directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
