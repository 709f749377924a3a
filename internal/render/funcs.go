package render

import (
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"time"
	"unicode"
)

// funcMap returns the helpers available to every template.
func funcMap() template.FuncMap {
	return template.FuncMap{
		"date":     formatDate,
		"default":  defaultValue,
		"truncate": truncate,
		"join":     join,
		"upper":    strings.ToUpper,
		"lower":    strings.ToLower,
		"title":    title,
		"add":      add,
		"indent":   indent,
		"shortsha": shortSHA,
	}
}

// formatDate formats a time given as time.Time, *time.Time or an RFC 3339
// string. Anything else, including nil, formats as an empty string.
func formatDate(layout string, value any) string {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(layout)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(layout)
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return v
		}
		return t.Format(layout)
	default:
		return ""
	}
}

// defaultValue returns fallback when value is empty.
func defaultValue(fallback, value any) any {
	if isEmpty(value) {
		return fallback
	}
	return value
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return !v.Bool()
	default:
		return v.IsZero()
	}
}

// truncate shortens s to at most n runes, adding an ellipsis if needed.
func truncate(n int, s string) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// join concatenates the elements of a slice with sep.
func join(sep string, list any) string {
	v := reflect.ValueOf(list)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return ""
	}
	parts := make([]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		parts = append(parts, fmt.Sprint(v.Index(i).Interface()))
	}
	return strings.Join(parts, sep)
}

// title upper-cases the first letter of every word.
func title(s string) string {
	prev := ' '
	return strings.Map(func(r rune) rune {
		out := r
		if unicode.IsSpace(prev) || prev == '-' || prev == '_' {
			out = unicode.ToUpper(r)
		}
		prev = r
		return out
	}, s)
}

// add sums integers, accepting the float64 values produced by JSON decoding.
func add(a, b any) (int, error) {
	x, err := toInt(a)
	if err != nil {
		return 0, err
	}
	y, err := toInt(b)
	if err != nil {
		return 0, err
	}
	return x + y, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("add: unsupported operand %T", v)
	}
}

// indent prefixes every line after the first with n spaces.
func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	return strings.ReplaceAll(s, "\n", "\n"+pad)
}

// shortSHA abbreviates a commit hash to seven characters.
func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
