package store

import (
	"fmt"
	"strings"
)

// EnvPair is one KEY=VALUE entry parsed from dotenv text.
type EnvPair struct {
	Key   string
	Value string
	Line  int
}

// LineError is a per-line parse or import failure. Imports are
// partial-success by design, so these are reported, never fatal.
type LineError struct {
	Line int
	Err  string
}

func (e LineError) String() string { return fmt.Sprintf("line %d: %s", e.Line, e.Err) }

// ParseEnv parses dotenv text. Blank lines and #-comments are skipped, an
// optional "export " prefix is accepted, one layer of matching quotes is
// stripped and \" / \\ escapes inside double quotes are resolved.
func ParseEnv(text string) ([]EnvPair, []LineError) {
	var pairs []EnvPair
	var errs []LineError

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			errs = append(errs, LineError{Line: lineNo, Err: "missing '='"})
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			errs = append(errs, LineError{Line: lineNo, Err: "empty key"})
			continue
		}
		pairs = append(pairs, EnvPair{Key: key, Value: unquote(strings.TrimSpace(value)), Line: lineNo})
	}
	return pairs, errs
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		inner := v[1 : len(v)-1]
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		return inner
	}
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v[1 : len(v)-1]
	}
	return v
}

// FormatEnvLine renders one dotenv line, quoting only when needed.
func FormatEnvLine(key, value string) string {
	if needsQuoting(value) {
		escaped := strings.ReplaceAll(value, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return key + `="` + escaped + `"`
	}
	return key + "=" + value
}

func needsQuoting(v string) bool {
	if v == "" {
		return false
	}
	return strings.ContainsAny(v, " \t#'\"\\\n")
}
