package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{"auto tty", ModeAuto, true, ModeText},
		{"auto pipe", ModeAuto, false, ModeMarkdown},
		{"empty is auto", "", false, ModeMarkdown},
		{"explicit text", ModeText, false, ModeText},
		{"explicit json", ModeJSON, true, ModeJSON},
		{"explicit markdown", ModeMarkdown, true, ModeMarkdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTest(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
			assert.Equal(t, tt.isTTY, r.IsTTY())
		})
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestHeaderAndKeyValue(t *testing.T) {
	r, out, _ := newTest(ModeMarkdown, false)
	r.Header(1, "Scan")
	r.Header(2, "Occurrences")
	r.KeyValue("Files", "3")

	assert.Equal(t, "# Scan\n\n## Occurrences\n\n- **Files:** 3\n", out.String())

	r, out, _ = newTest(ModeText, false)
	r.Header(1, "Scan")
	r.KeyValue("Files", "3")
	assert.Contains(t, out.String(), "Scan")
	assert.Contains(t, out.String(), "Files: 3")
	assert.NotContains(t, out.String(), "\x1b[", "no colour without a terminal")
}

func TestTable(t *testing.T) {
	header := []string{"Table", "Field"}
	rows := [][]string{{"gdr_card_acct", "mbr_since_dt"}}

	r, out, _ := newTest(ModeMarkdown, false)
	r.Table(header, rows)
	assert.Contains(t, strings.ToLower(out.String()), "| table | field |")
	assert.Contains(t, out.String(), "| gdr_card_acct | mbr_since_dt |")

	r, out, _ = newTest(ModeText, false)
	r.Table(header, rows)
	assert.Contains(t, out.String(), "┌")
	assert.Contains(t, out.String(), "gdr_card_acct")

	r, out, _ = newTest(ModeText, false)
	r.Table(header, nil)
	assert.Equal(t, "(none)\n", out.String())
}

func TestJSON(t *testing.T) {
	r, out, _ := newTest(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"files": 2}))
	assert.Equal(t, "{\n  \"files\": 2\n}\n", out.String())
}

func TestProgress(t *testing.T) {
	r, _, errOut := newTest(ModeText, true)
	r.Progress("Scanning", 0.5)
	r.Progress("Scanning", 1)
	r.ProgressDone()
	r.ProgressDone()

	s := errOut.String()
	assert.Contains(t, s, " 50%")
	assert.Contains(t, s, "100%")
	assert.Equal(t, 1, strings.Count(s, "\n"))

	r, _, errOut = newTest(ModeMarkdown, false)
	r.Progress("Scanning", 0.5)
	r.ProgressDone()
	assert.Empty(t, errOut.String(), "no progress outside a terminal")
}

func TestWarningGoesToErrOut(t *testing.T) {
	r, out, errOut := newTest(ModeText, false)
	r.Warning("2 files failed")
	assert.Empty(t, out.String())
	assert.Equal(t, "2 files failed\n", errOut.String())
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "# A", FormatHeader(0, "A"))
	assert.Equal(t, "### A", FormatHeader(3, "A"))
	assert.Equal(t, "- **k:** v", FormatKeyValue("k", "v"))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
	assert.Equal(t, "10 MB", FormatBytes(10_000_000))
	assert.Equal(t, "0 B", FormatBytes(-1))
	assert.Equal(t, "never", FormatAgo(time.Time{}))
	assert.Contains(t, FormatAgo(time.Now().Add(-3*time.Minute)), "minutes ago")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "██░░", progressBar(0.5, 4))
	assert.Equal(t, "░░░░", progressBar(-1, 4))
	assert.Equal(t, "████", progressBar(2, 4))
}
