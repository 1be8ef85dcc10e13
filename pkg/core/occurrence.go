package core

import (
	"sort"
	"strings"
)

// Occurrence is a confirmed match of a dictionary entry in source text.
type Occurrence struct {
	Entry    DictionaryEntry `json:"entry"`
	FilePath string          `json:"file_path"`
	Line     int             `json:"line"`
	Column   int             `json:"column"`
	// ResolvedTable is the literal matched table or the base table an alias
	// resolved to. It is never an alias.
	ResolvedTable  string `json:"resolved_table"`
	Qualifier      string `json:"qualifier,omitempty"`
	StatementIndex int    `json:"statement_index"`
	StatementText  string `json:"statement_text"`
	LineText       string `json:"line_text"`
	// Function and Class name the code symbols around the line, if any.
	Function string `json:"function,omitempty"`
	Class    string `json:"class,omitempty"`
}

// SortOccurrences orders occurrences by (table, field, file, line, column).
// Table and field compare case-insensitively with the raw value as a tiebreak.
func SortOccurrences(occ []Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		return occurrenceLess(occ[i], occ[j])
	})
}

func occurrenceLess(a, b Occurrence) bool {
	if c := compareFold(a.Entry.Table, b.Entry.Table); c != 0 {
		return c < 0
	}
	if c := compareFold(a.Entry.Field, b.Entry.Field); c != 0 {
		return c < 0
	}
	if a.FilePath != b.FilePath {
		return a.FilePath < b.FilePath
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	if a.Column != b.Column {
		return a.Column < b.Column
	}
	return a.ResolvedTable < b.ResolvedTable
}

func compareFold(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
