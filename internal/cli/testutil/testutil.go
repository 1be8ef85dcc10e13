// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/legacyscan/internal/cli/config"
	"github.com/leapstack-labs/legacyscan/internal/cli/output"
	"github.com/leapstack-labs/legacyscan/internal/testutil"
)

// Project is a temporary legacy source tree with a dictionary and a
// config file pointing at both.
type Project struct {
	Root       string
	Dictionary string
	StatePath  string
	ConfigFile string
}

// Dictionary is the dictionary CSV written by SetupTestProject.
const Dictionary = "table,field,mapping,group\ngdr_card_acct,mbr_since_dt,card.member_since,cards\n"

// SetupTestProject creates a source tree of Hive scripts and a shell
// driver, plus a dictionary and state path outside the tree.
func SetupTestProject(t *testing.T) *Project {
	t.Helper()

	root := testutil.WriteTree(t, map[string]string{
		"sql/load.hql":  "INSERT OVERWRITE TABLE stage SELECT a.mbr_since_dt FROM gdr_card_acct a;\n",
		"sql/mart.hql":  "INSERT INTO mart SELECT * FROM stage;\n",
		"bin/run.sh":    "hive -f sql/load.hql\nhive -f sql/mart.hql\n",
		"docs/notes.md": "SVC_CARD_0042 is retired\n",
	})

	home := t.TempDir()
	return &Project{
		Root:       root,
		Dictionary: testutil.WriteFile(t, home, "fields.csv", Dictionary),
		StatePath:  filepath.Join(home, ".legacyscan", "state.db"),
		ConfigFile: filepath.Join(home, "legacyscan.yaml"),
	}
}

// LoadConfig writes the project's config file with the given output mode
// and loads it as the current configuration. Extra YAML lines are
// appended verbatim.
func (p *Project) LoadConfig(t *testing.T, mode output.Mode, extra ...string) *config.Config {
	t.Helper()

	var b strings.Builder
	b.WriteString("root: " + p.Root + "\n")
	b.WriteString("dictionary:\n  - " + p.Dictionary + "\n")
	b.WriteString("state_path: " + p.StatePath + "\n")
	b.WriteString("output: " + string(mode) + "\n")
	for _, line := range extra {
		b.WriteString(line + "\n")
	}
	testutil.WriteFile(t, filepath.Dir(p.ConfigFile), filepath.Base(p.ConfigFile), b.String())

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	cfg, err := config.LoadConfig(p.ConfigFile, nil)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
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

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
