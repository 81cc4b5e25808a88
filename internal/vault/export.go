package vault

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Cemililkim/Clerk/internal/store"
)

// Export formats.
const (
	FormatEnv  = "env"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ExportEnv renders an environment's decrypted variables in the requested
// format, keys sorted for stable output.
func (e *Engine) ExportEnv(ctx context.Context, envID uint64, format string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return "", err
	}
	values, err := e.decryptEnvironmentLocked(envID)
	if err != nil {
		return "", err
	}
	vars, err := e.st.ListVariables(envID)
	if err != nil {
		return "", err
	}
	_ = e.st.AppendAudit("export", "environment", envID, "", "format="+format)

	switch format {
	case FormatEnv:
		return renderDotenv(values), nil
	case FormatJSON:
		buf, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return "", err
		}
		return string(buf) + "\n", nil
	case FormatCSV:
		return renderCSV(vars, values)
	default:
		return "", fmt.Errorf("unsupported export format %q (want env, json, or csv)", format)
	}
}

func renderDotenv(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(store.FormatEnvLine(k, values[k]))
		b.WriteByte('\n')
	}
	return b.String()
}

func renderCSV(vars []store.Variable, values map[string]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"key", "value", "description"}); err != nil {
		return "", err
	}
	for _, v := range vars {
		if err := w.Write([]string{v.Key, values[v.Key], v.Description}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}
