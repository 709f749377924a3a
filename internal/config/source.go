package config

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/elhajjaji/wara9a/internal/logging"
)

// SourceKind is the category a source record was decoded into.
type SourceKind string

const (
	KindTicketing SourceKind = "ticketing"
	KindCodeHost  SourceKind = "code-host"
	KindFiles     SourceKind = "files"
	// KindCustom is used for types provided by plugin connectors. Only the
	// raw record is available for them.
	KindCustom SourceKind = "custom"
)

// sourceKinds maps the built-in source types onto their kind.
var sourceKinds = map[string]SourceKind{
	"jira":        KindTicketing,
	"github":      KindCodeHost,
	"local_files": KindFiles,
}

// KindOf returns the kind a source type decodes into.
func KindOf(sourceType string) SourceKind {
	if kind, ok := sourceKinds[sourceType]; ok {
		return kind
	}
	return KindCustom
}

// Source is one entry of the "sources" list. The variant matching Kind is
// populated at load time; the others are nil.
type Source struct {
	Type    string
	Name    string
	Enabled bool
	Kind    SourceKind

	Ticketing *TicketingSource
	CodeHost  *CodeHostSource
	Files     *FilesSource

	// Raw is the record as written in the configuration file. ${VAR}
	// references are kept so the record can be saved back unchanged.
	Raw map[string]any
}

// TicketingSource configures an issue tracker such as Jira.
type TicketingSource struct {
	URL            string `mapstructure:"url"`
	Project        string `mapstructure:"project"`
	Username       string `mapstructure:"username"`
	Token          string `mapstructure:"token"`
	JQL            string `mapstructure:"jql"`
	MaxIssues      int    `mapstructure:"max_issues"`
	IncludeEpics   bool   `mapstructure:"include_epics"`
	IncludeStories bool   `mapstructure:"include_stories"`
}

// CodeHostSource configures a code hosting platform such as GitHub.
type CodeHostSource struct {
	Repo              string  `mapstructure:"repo"`
	Token             string  `mapstructure:"token"`
	Domain            string  `mapstructure:"domain"`
	Branch            string  `mapstructure:"branch"`
	MaxCommits        int     `mapstructure:"max_commits"`
	MaxPullRequests   int     `mapstructure:"max_pull_requests"`
	EnrichCommits     int     `mapstructure:"enrich_commits"`
	IncludeIssues     bool    `mapstructure:"include_issues"`
	MaxIssues         int     `mapstructure:"max_issues"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// FilesSource configures collection from a local directory.
type FilesSource struct {
	Path       string   `mapstructure:"path"`
	Patterns   []string `mapstructure:"patterns"`
	MaxCommits int      `mapstructure:"max_commits"`
	ScanDebt   bool     `mapstructure:"scan_debt"`
}

func defaultTicketing() TicketingSource {
	return TicketingSource{
		MaxIssues:      200,
		IncludeEpics:   true,
		IncludeStories: true,
	}
}

func defaultCodeHost() CodeHostSource {
	return CodeHostSource{
		Domain:            "github.com",
		MaxCommits:        100,
		MaxPullRequests:   50,
		EnrichCommits:     5,
		MaxIssues:         100,
		RequestsPerSecond: 10,
	}
}

func defaultFiles() FilesSource {
	return FilesSource{
		Path:       ".",
		Patterns:   []string{"README.md", "CHANGELOG.md", "docs/**/*.md"},
		MaxCommits: 50,
		ScanDebt:   true,
	}
}

// ParseSource decodes a raw source record into its typed variant.
// The record must carry a "type"; "name" defaults to the type and
// "enabled" defaults to true.
func ParseSource(record map[string]any) (Source, error) {
	raw := lowerKeys(record)
	values := expandRecord(raw)

	sourceType, _ := values["type"].(string)
	sourceType = strings.TrimSpace(sourceType)
	if sourceType == "" {
		return Source{}, fmt.Errorf("source is missing a type")
	}

	src := Source{
		Type:    sourceType,
		Name:    sourceType,
		Enabled: true,
		Kind:    KindOf(sourceType),
		Raw:     raw,
	}
	if name, ok := values["name"].(string); ok && name != "" {
		src.Name = name
	}
	if enabled, ok := values["enabled"].(bool); ok {
		src.Enabled = enabled
	}

	var err error
	switch src.Kind {
	case KindTicketing:
		ts := defaultTicketing()
		err = decode(values, &ts)
		src.Ticketing = &ts
	case KindCodeHost:
		cs := defaultCodeHost()
		err = decode(values, &cs)
		src.CodeHost = &cs
	case KindFiles:
		fs := defaultFiles()
		err = decode(values, &fs)
		src.Files = &fs
	}
	if err != nil {
		return Source{}, fmt.Errorf("failed to decode %s source %q: %w", src.Type, src.Name, err)
	}
	return src, nil
}

func decode(raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// Values returns the raw record with ${VAR} references expanded. Plugin
// connectors, which have no typed variant, read their settings from it.
func (s Source) Values() map[string]any {
	return expandRecord(s.Raw)
}

// Limited returns a copy of the source whose collection limits are capped
// at n. Connection tests use it to keep the probe cheap.
func (s Source) Limited(n int) Source {
	out := s
	out.Raw = maps.Clone(s.Raw)
	if out.Raw == nil {
		out.Raw = map[string]any{}
	}
	if s.Ticketing != nil {
		ts := *s.Ticketing
		ts.MaxIssues = min(ts.MaxIssues, n)
		out.Ticketing = &ts
		out.Raw["max_issues"] = ts.MaxIssues
	}
	if s.CodeHost != nil {
		cs := *s.CodeHost
		cs.MaxCommits = min(cs.MaxCommits, n)
		cs.MaxPullRequests = min(cs.MaxPullRequests, n)
		cs.MaxIssues = min(cs.MaxIssues, n)
		cs.EnrichCommits = 0
		out.CodeHost = &cs
		out.Raw["max_commits"] = cs.MaxCommits
		out.Raw["max_pull_requests"] = cs.MaxPullRequests
	}
	if s.Files != nil {
		fs := *s.Files
		fs.MaxCommits = min(fs.MaxCommits, n)
		fs.ScanDebt = false
		out.Files = &fs
		out.Raw["max_commits"] = fs.MaxCommits
	}
	return out
}

// Redacted returns the raw record with credentials masked, suitable for
// logging or embedding in collected data.
func (s Source) Redacted() map[string]any {
	out := make(map[string]any, len(s.Raw))
	for k, v := range s.Raw {
		if isSecretKey(k) {
			str, _ := v.(string)
			out[k] = logging.MaskSensitive(str)
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "token") || strings.Contains(key, "password") || strings.Contains(key, "secret")
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with the environment value.
// Unset variables expand to the empty string.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

func expandRecord(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = expandValue(v)
	}
	return out
}

func lowerKeys(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[strings.ToLower(k)] = v
	}
	return out
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnv(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = expandValue(item)
		}
		return items
	case map[string]any:
		return expandRecord(val)
	default:
		return v
	}
}
