package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// FormatHeader formats a markdown header.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue formats a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

// FormatCount formats a count with thousands separators.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatBytes formats a byte size, e.g. "10 MB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// FormatAgo formats a time relative to now, e.g. "3 minutes ago".
func FormatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// Table renders rows under header. Text mode draws a boxed table,
// markdown mode a pipe table.
func (r *Renderer) Table(header []string, rows [][]string) {
	if len(rows) == 0 {
		r.Muted("(none)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	hr := make(table.Row, len(header))
	for i, h := range header {
		hr[i] = h
	}
	t.AppendHeader(hr)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		r.Println()
		return
	}
	t.Render()
}
