package core

import (
	"fmt"
	"sort"
)

// =============================================================================
// Diagnostics
// =============================================================================

// DiagnosticKind names a non-fatal problem found during a scan.
type DiagnosticKind string

// Diagnostic kinds.
const (
	// UnreadableFile is an I/O or decoding failure; the file is skipped.
	UnreadableFile DiagnosticKind = "UnreadableFile"
	// MalformedStatement is a statement that could not be closed confidently;
	// it is kept as OTHER code.
	MalformedStatement DiagnosticKind = "MalformedStatement"
	// UnresolvedAlias is a qualified reference whose qualifier is not in scope.
	UnresolvedAlias DiagnosticKind = "UnresolvedAlias"
	// UnresolvedImport is a dependency that matches no scanned file.
	UnresolvedImport DiagnosticKind = "UnresolvedImport"
	// DictionaryAmbiguity is a duplicate (table, field) dictionary entry.
	DictionaryAmbiguity DiagnosticKind = "DictionaryAmbiguity"
	// TextReference is a table-level dictionary name inside a comment or a
	// SQL string literal. It is reported but not matched.
	TextReference DiagnosticKind = "TextReference"
)

// DiagnosticKinds returns all kinds in report order.
func DiagnosticKinds() []DiagnosticKind {
	return []DiagnosticKind{UnreadableFile, MalformedStatement, UnresolvedAlias, UnresolvedImport, DictionaryAmbiguity, TextReference}
}

// Diagnostic is one recorded problem.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Path    string         `json:"path,omitempty"`
	Line    int            `json:"line,omitempty"`
	Message string         `json:"message"`
}

// String formats the diagnostic as path:line: kind: message.
func (d Diagnostic) String() string {
	switch {
	case d.Path != "" && d.Line > 0:
		return fmt.Sprintf("%s:%d: %s: %s", d.Path, d.Line, d.Kind, d.Message)
	case d.Path != "":
		return fmt.Sprintf("%s: %s: %s", d.Path, d.Kind, d.Message)
	default:
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
}

// Report collects the diagnostics of one scan.
type Report struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Add appends diagnostics to the report.
func (r *Report) Add(diags ...Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, diags...)
}

// Sort orders diagnostics by path, line, kind and message.
func (r *Report) Sort() {
	sort.SliceStable(r.Diagnostics, func(i, j int) bool {
		a, b := r.Diagnostics[i], r.Diagnostics[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Message < b.Message
	})
}

// Count returns the number of diagnostics of the given kind.
func (r *Report) Count(kind DiagnosticKind) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Counts returns the number of diagnostics per kind.
func (r *Report) Counts() map[DiagnosticKind]int {
	counts := make(map[DiagnosticKind]int)
	for _, d := range r.Diagnostics {
		counts[d.Kind]++
	}
	return counts
}

// Len returns the number of diagnostics.
func (r *Report) Len() int {
	return len(r.Diagnostics)
}

// Filter returns the diagnostics of one kind.
func (r *Report) Filter(kind DiagnosticKind) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
