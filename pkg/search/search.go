// Package search finds literal identifiers, such as service IDs, across
// the Source Set.
package search

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// Options controls a search.
type Options struct {
	// IgnoreCase matches without regard to letter case.
	IgnoreCase bool
	// Context is the number of lines kept before and after each hit.
	Context int
	// Unique keeps only the first hit of each file.
	Unique bool
}

// Hit is one matching line.
type Hit struct {
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	// Context is the matching line, surrounded by Options.Context lines on
	// each side, joined with newlines.
	Context string `json:"context"`
}

// Search returns every line containing needle, ordered by file path and
// line. A line with several matches is reported once, at the first.
func Search(files []core.SourceFile, needle string, opts Options) []Hit {
	if needle == "" {
		return nil
	}
	if opts.IgnoreCase {
		needle = strings.ToLower(needle)
	}

	sorted := append([]core.SourceFile(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var hits []Hit
	for _, f := range sorted {
		lines := f.Lines()
		for i, line := range lines {
			hay := line
			if opts.IgnoreCase {
				hay = strings.ToLower(line)
			}
			col := strings.Index(hay, needle)
			if col < 0 {
				continue
			}
			hits = append(hits, Hit{
				FilePath: f.Path,
				Line:     i + 1,
				Column:   col + 1,
				Context:  window(lines, i, opts.Context),
			})
			if opts.Unique {
				break
			}
		}
	}
	return hits
}

func window(lines []string, i, n int) string {
	if n < 0 {
		n = 0
	}
	lo, hi := max(i-n, 0), min(i+n+1, len(lines))
	return strings.Join(lines[lo:hi], "\n")
}

// Files returns the distinct paths of hits, in order.
func Files(hits []Hit) []string {
	var out []string
	for i, h := range hits {
		if i == 0 || hits[i-1].FilePath != h.FilePath {
			out = append(out, h.FilePath)
		}
	}
	return out
}
