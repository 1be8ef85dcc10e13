package core

import "strings"

// =============================================================================
// Statement
// =============================================================================

// StatementKind classifies a statement.
type StatementKind string

// Statement kinds. Code units and unrecognized text are KindOther.
const (
	KindSelect StatementKind = "SELECT"
	KindInsert StatementKind = "INSERT"
	KindCreate StatementKind = "CREATE"
	KindMerge  StatementKind = "MERGE"
	KindUpdate StatementKind = "UPDATE"
	KindDelete StatementKind = "DELETE"
	KindOther  StatementKind = "OTHER"
)

// IsWrite reports whether statements of this kind modify a table.
func (k StatementKind) IsWrite() bool {
	switch k {
	case KindInsert, KindCreate, KindMerge, KindUpdate, KindDelete:
		return true
	}
	return false
}

// Control keywords attached to statements that open a conditional or loop.
const (
	ControlIf    = "if"
	ControlFor   = "for"
	ControlWhile = "while"
	ControlCase  = "case"
)

// Statement is a contiguous run of source lines classified as one query or code unit.
type Statement struct {
	FilePath  string
	Index     int // 0-based position in the file
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Text      string
	Kind      StatementKind
	Language  Language
	// Unit is the syntactic unit for code statements (e.g. function_definition).
	Unit string
	// Name is set when the statement defines a function, method or class.
	Name string
	// Control is one of the Control* keywords when the statement is a
	// conditional or loop, empty otherwise.
	Control string
}

// LineCount returns the number of lines the statement spans.
func (s Statement) LineCount() int {
	return s.EndLine - s.StartLine + 1
}

// Contains reports whether the 1-based line belongs to the statement.
func (s Statement) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}

// Line returns the text of an absolute line inside the statement.
func (s Statement) Line(line int) string {
	if !s.Contains(line) {
		return ""
	}
	lines := SplitLines(s.Text)
	idx := line - s.StartLine
	if idx >= len(lines) {
		return ""
	}
	return lines[idx]
}

// IsDefinition reports whether the statement defines a named unit.
func (s Statement) IsDefinition() bool {
	return s.Name != ""
}

// =============================================================================
// Table references, joins and imports
// =============================================================================

// TableRole says whether a table reference reads or writes.
type TableRole int

// Table roles.
const (
	RoleRead TableRole = iota
	RoleWrite
)

// String returns the role name.
func (r TableRole) String() string {
	if r == RoleWrite {
		return "write"
	}
	return "read"
}

// TableRef is a table named by a read or write clause.
type TableRef struct {
	Name  string
	Alias string
	Role  TableRole
	Line  int
}

// BaseName returns the last dotted segment of the table name.
func (t TableRef) BaseName() string {
	return BaseName(t.Name)
}

// BaseName returns the last dotted segment of a possibly qualified name.
func BaseName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Join records two base tables joined in one statement.
type Join struct {
	Left  string
	Right string
	// On holds the join conditions as written, e.g. "a.id = b.id".
	On []string
}

// ImportStyle distinguishes dotted module imports from file path references.
type ImportStyle int

// Import styles.
const (
	ImportModule ImportStyle = iota
	ImportPath
)

// ImportRef is a reference from one source file to another.
type ImportRef struct {
	Raw   string
	Style ImportStyle
	Line  int
}

// AnalyzedStatement is a statement together with the facts extracted from it.
type AnalyzedStatement struct {
	Statement
	Sources []string
	Targets []string
	Imports []ImportRef
	Joins   []Join
	// Block is the index of the block that owns the statement.
	Block int
}

// ReadsOrWrites reports whether the statement touches any table.
func (s AnalyzedStatement) ReadsOrWrites() bool {
	return len(s.Sources) > 0 || len(s.Targets) > 0
}
