package scan

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/dictionary"
)

// Stats summarizes a scan.
type Stats struct {
	// Files
	Files      int
	ByLanguage map[core.Language]int
	Failed     int
	Skipped    int

	// Structure
	Statements int
	Blocks     int

	// Dictionary
	Entries      int
	EntriesFound int
	PerEntry     []EntryCount

	// Timing
	Duration time.Duration
}

// EntryCount is the number of occurrences of one dictionary entry.
type EntryCount struct {
	Entry       core.DictionaryEntry `json:"entry"`
	Occurrences int                  `json:"occurrences"`
	Files       int                  `json:"files"`
}

// Languages returns the languages seen, in name order.
func (s *Stats) Languages() []core.Language {
	langs := make([]core.Language, 0, len(s.ByLanguage))
	for l := range s.ByLanguage {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Summary returns a human-readable summary.
func (s *Stats) Summary() string {
	var langs []string
	for _, l := range s.Languages() {
		langs = append(langs, fmt.Sprintf("%s %d", l, s.ByLanguage[l]))
	}
	return fmt.Sprintf(
		"Files: %d analyzed (%s), %d failed, %d skipped | "+
			"Statements: %d | Blocks: %d | "+
			"Entries: %d of %d found | "+
			"Duration: %s",
		s.Files, strings.Join(langs, ", "), s.Failed, s.Skipped,
		s.Statements, s.Blocks,
		s.EntriesFound, s.Entries,
		s.Duration.Round(time.Millisecond),
	)
}

func (s *Stats) collect(res *Result, dict *dictionary.Dictionary) {
	s.ByLanguage = make(map[core.Language]int)
	for _, fa := range res.Files {
		if fa.Failed {
			s.Failed++
			continue
		}
		s.Files++
		s.ByLanguage[fa.Language]++
		s.Statements += len(fa.Statements)
		s.Blocks += len(fa.Blocks)
	}

	s.Entries = dict.Len()
	type tally struct {
		entry core.DictionaryEntry
		n     int
		files map[string]bool
	}
	counts := make(map[string]*tally)
	var order []string
	for _, o := range res.Occurrences {
		key := o.Entry.Key()
		t, ok := counts[key]
		if !ok {
			t = &tally{entry: o.Entry, files: make(map[string]bool)}
			counts[key] = t
			order = append(order, key)
		}
		t.n++
		t.files[o.FilePath] = true
	}
	s.EntriesFound = len(order)
	s.PerEntry = make([]EntryCount, 0, len(order))
	for _, key := range order {
		t := counts[key]
		s.PerEntry = append(s.PerEntry, EntryCount{Entry: t.entry, Occurrences: t.n, Files: len(t.files)})
	}
}
