// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/fraiseql/specql-sub006/internal/cli/output"
	"github.com/fraiseql/specql-sub006/internal/testutil"
)

// SetupTestProject creates a temporary project holding the shared test
// registry under registry/domain_registry.yaml and a specql.yaml pointing at
// it. extra is appended to the config file. It returns the project root.
func SetupTestProject(t *testing.T, extra string) string {
	t.Helper()

	tmpDir := t.TempDir()
	regDir := filepath.Join(tmpDir, "registry")
	if err := os.MkdirAll(regDir, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", regDir, err)
	}
	if err := os.WriteFile(filepath.Join(regDir, "domain_registry.yaml"), []byte(testutil.RegistryYAML), 0o644); err != nil {
		t.Fatalf("failed to write registry: %v", err)
	}

	cfg := "registry_path: registry/domain_registry.yaml\noutput_dir: generated\n" + extra
	if err := os.WriteFile(filepath.Join(tmpDir, "specql.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to write specql.yaml: %v", err)
	}
	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for unclosed code fences, empty headers and
// tables whose rows disagree on the column count.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}

	columns := 0
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
		if !strings.HasPrefix(trimmed, "|") {
			columns = 0
			continue
		}
		n := strings.Count(trimmed, "|")
		if columns == 0 {
			columns = n
		} else if n != columns {
			t.Errorf("table row at line %d has %d separators, expected %d: %q", i+1, n, columns, line)
		}
	}
}
