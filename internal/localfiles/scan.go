package localfiles

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/elhajjaji/wara9a/pkg/models"
)

const (
	// maxScannedFiles caps how many source files are measured.
	maxScannedFiles = 1000
	// maxFileSize is the largest file read for metrics and debt markers.
	maxFileSize = 1 << 20
)

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	"venv":         true,
	"target":       true,
}

// commentPrefixes lists the line comment markers counted per language.
var commentPrefixes = map[string][]string{
	"Python":     {"#"},
	"Ruby":       {"#"},
	"Shell":      {"#"},
	"PowerShell": {"#"},
	"R":          {"#"},
	"SQL":        {"--"},
	"Lua":        {"--"},
	"Haskell":    {"--"},
	"Clojure":    {";"},
	"HTML":       {"<!--"},
	"OCaml":      {"(*"},
}

// defaultCommentPrefixes apply to C-like languages.
var defaultCommentPrefixes = []string{"//", "/*", "*", "*/"}

var debtMarker = regexp.MustCompile(`\b(TODO|FIXME|HACK|XXX)\b[:(\s]*(.*)$`)

// scanResult aggregates everything learned from walking the tree.
type scanResult struct {
	languages []string
	metrics   map[string]models.CodeMetrics
	debt      []models.TechnicalDebt
	documents []string
}

type languageStats struct {
	files, code, blank, comment int
}

// scanTree walks root and measures source files. Debt markers are only
// collected when scanDebt is set. documents lists the files matching
// patterns, relative to root.
func scanTree(ctx context.Context, root string, patterns []string, scanDebt bool, now time.Time) (*scanResult, error) {
	stats := make(map[string]*languageStats)
	result := &scanResult{
		metrics:   map[string]models.CodeMetrics{},
		debt:      []models.TechnicalDebt{},
		documents: []string{},
	}
	scanned := 0

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || skippedDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(rel, patterns) {
			result.documents = append(result.documents, rel)
		}

		lang := models.LanguageOf(p)
		if lang == "" || scanned >= maxScannedFiles {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}
		scanned++

		s := stats[lang]
		if s == nil {
			s = &languageStats{}
			stats[lang] = s
		}
		s.files++

		debt, err := measureFile(p, rel, lang, s, scanDebt)
		if err != nil {
			return nil
		}
		result.debt = append(result.debt, debt...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	for lang, s := range stats {
		result.metrics[lang] = models.CodeMetrics{
			Language:     lang,
			FilesCount:   s.files,
			LinesOfCode:  s.code,
			BlankLines:   s.blank,
			CommentLines: s.comment,
			MeasuredAt:   now,
		}
	}
	result.languages = models.LanguagesBySize(result.metrics)
	return result, nil
}

// measureFile counts code, blank and comment lines of one file into s and
// returns the debt markers it contains.
func measureFile(absPath, relPath, lang string, s *languageStats, scanDebt bool) ([]models.TechnicalDebt, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	prefixes, ok := commentPrefixes[lang]
	if !ok {
		prefixes = defaultCommentPrefixes
	}

	var debt []models.TechnicalDebt
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxFileSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			s.blank++
		case hasAnyPrefix(line, prefixes):
			s.comment++
		default:
			s.code++
		}

		if !scanDebt {
			continue
		}
		if m := debtMarker.FindStringSubmatch(line); m != nil {
			debt = append(debt, newDebt(m[1], strings.TrimSpace(m[2]), relPath, lineNo))
		}
	}
	return debt, scanner.Err()
}

func newDebt(marker, text, relPath string, line int) models.TechnicalDebt {
	title := text
	if title == "" {
		title = marker
	}
	return models.TechnicalDebt{
		ID:          fmt.Sprintf("%s:%d", relPath, line),
		Type:        debtType(marker),
		Title:       title,
		Description: fmt.Sprintf("%s marker in %s", marker, relPath),
		Severity:    debtSeverity(marker),
		FilePath:    relPath,
		LineNumber:  line,
	}
}

func debtType(marker string) string {
	switch marker {
	case "FIXME":
		return models.DebtBug
	case "HACK", "XXX":
		return models.DebtCodeSmell
	default:
		return models.DebtTodo
	}
}

func debtSeverity(marker string) models.Priority {
	switch marker {
	case "FIXME":
		return models.PriorityHigh
	case "HACK", "XXX":
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// matchesAny reports whether rel matches one of the glob patterns. A "**"
// segment matches any number of directories.
func matchesAny(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchGlob(strings.Split(pattern, "/"), strings.Split(rel, "/")) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, segments []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			for i := 0; i <= len(segments); i++ {
				if matchGlob(pattern[1:], segments[i:]) {
					return true
				}
			}
			return false
		}
		if len(segments) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], segments[0]); !ok {
			return false
		}
		pattern, segments = pattern[1:], segments[1:]
	}
	return len(segments) == 0
}

// readmeDescription returns the first prose line of the README, skipping
// headings, badges and underlined titles.
func readmeDescription(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || isUnderline(line) ||
			strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "[![") ||
			strings.HasPrefix(line, "![") ||
			strings.HasPrefix(line, "<") {
			continue
		}
		if i+1 < len(lines) && isUnderline(strings.TrimSpace(lines[i+1])) {
			continue
		}
		return line
	}
	return ""
}

func isUnderline(line string) bool {
	return line != "" && (strings.Trim(line, "=") == "" || strings.Trim(line, "-") == "")
}
