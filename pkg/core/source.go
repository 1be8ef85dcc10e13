package core

import "strings"

// SourceFile is one member of the Source Set handed to a scan.
type SourceFile struct {
	Path     string
	Language Language
	Text     string
	// Hash is a content digest computed at ingestion.
	Hash uint64
}

// Lines splits the file text into physical lines.
// A trailing newline does not produce an extra empty line, and an empty
// file is a single empty line so every file has at least line 1.
func (f SourceFile) Lines() []string {
	return SplitLines(f.Text)
}

// SplitLines splits text into lines using the rules described on SourceFile.Lines.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// DictionaryEntry is one legacy reference to look for.
// An empty Field means a table-level reference. An empty or "*" Table means
// the field is table-agnostic.
type DictionaryEntry struct {
	Table string `json:"table" yaml:"table"`
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
	// Mapping is the target-system mapping carried for reporting.
	Mapping string `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	// Group is the sheet or section the entry was loaded from.
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
}

// IsTableOnly reports whether the entry references a table without a field.
func (e DictionaryEntry) IsTableOnly() bool {
	return e.Field == ""
}

// IsTableAgnostic reports whether the entry's field applies to any table.
func (e DictionaryEntry) IsTableAgnostic() bool {
	return e.Field != "" && (e.Table == "" || e.Table == "*")
}

// Key returns the normalized (table, field) identity used for deduplication.
func (e DictionaryEntry) Key() string {
	table := strings.ToLower(strings.TrimSpace(e.Table))
	if table == "*" {
		table = ""
	}
	return table + "\x00" + strings.ToLower(strings.TrimSpace(e.Field))
}

// String renders the entry as table.field or table.
func (e DictionaryEntry) String() string {
	if e.Field == "" {
		return e.Table
	}
	if e.IsTableAgnostic() {
		return "*." + e.Field
	}
	return e.Table + "." + e.Field
}
