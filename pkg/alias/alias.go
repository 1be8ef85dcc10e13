// Package alias resolves the tables a statement reads and writes and the
// aliases that stand for them.
//
// Each statement gets a fresh Map; nothing leaks between statements.
package alias

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/lexer"
	"github.com/leapstack-labs/legacyscan/pkg/token"
)

// BindingKind says what a name in the map stands for.
type BindingKind int

// Binding kinds.
const (
	BindTable BindingKind = iota
	BindCTE
	BindDerived
)

// String returns the kind name.
func (k BindingKind) String() string {
	switch k {
	case BindCTE:
		return "cte"
	case BindDerived:
		return "derived"
	default:
		return "table"
	}
}

// Binding maps a name (alias, table or CTE) to what it refers to.
type Binding struct {
	Name   string
	Target string // base table as written; the CTE or alias name otherwise
	Kind   BindingKind
	Line   int
}

// IsTable reports whether the binding resolves to a real table.
func (b Binding) IsTable() bool {
	return b.Kind == BindTable
}

// Map is the alias map of one statement.
type Map struct {
	bindings map[string]Binding
	// Tables lists every table reference in source order.
	Tables []core.TableRef
	// Joins are the join relationships between base tables.
	Joins []core.Join
	// Redefined lists names that were bound again to something else.
	Redefined []string

	refs map[int]bool // offsets of table-name and alias-definition tokens
}

func newMap() *Map {
	return &Map{
		bindings: make(map[string]Binding),
		refs:     make(map[int]bool),
	}
}

// Lookup returns the binding for a name, comparing case-insensitively.
func (m *Map) Lookup(name string) (Binding, bool) {
	b, ok := m.bindings[strings.ToLower(name)]
	return b, ok
}

// Resolve resolves a qualifier such as "d" or "db.t". A qualified name that
// is not bound falls back to its last segment.
func (m *Map) Resolve(qualifier string) (Binding, bool) {
	if b, ok := m.Lookup(qualifier); ok {
		return b, true
	}
	if strings.Contains(qualifier, ".") {
		return m.Lookup(core.BaseName(qualifier))
	}
	return Binding{}, false
}

// Bindings returns all bindings sorted by name.
func (m *Map) Bindings() []Binding {
	out := make([]Binding, 0, len(m.bindings))
	for _, b := range m.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// Len returns the number of bindings.
func (m *Map) Len() int {
	return len(m.bindings)
}

// IsReference reports whether the token names a table or defines an alias.
func (m *Map) IsReference(tok token.Token) bool {
	return m.refs[tok.Pos.Offset]
}

// BaseTables returns the distinct tables referenced, first spelling kept,
// in source order.
func (m *Map) BaseTables() []string {
	return distinct(m.Tables, func(core.TableRef) bool { return true })
}

// Sources returns the distinct tables read.
func (m *Map) Sources() []string {
	return distinct(m.Tables, func(t core.TableRef) bool { return t.Role == core.RoleRead })
}

// Targets returns the distinct tables written.
func (m *Map) Targets() []string {
	return distinct(m.Tables, func(t core.TableRef) bool { return t.Role == core.RoleWrite })
}

func distinct(refs []core.TableRef, keep func(core.TableRef) bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range refs {
		if !keep(t) {
			continue
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t.Name)
	}
	return out
}

// bind records name -> target, noting redefinitions.
func (m *Map) bind(name, target string, kind BindingKind, line int) {
	key := strings.ToLower(name)
	if old, ok := m.bindings[key]; ok {
		if old.Kind != kind || !strings.EqualFold(old.Target, target) {
			m.Redefined = append(m.Redefined, name)
		}
	}
	m.bindings[key] = Binding{Name: name, Target: target, Kind: kind, Line: line}
}

// ResolveText tokenizes text with the rules of lang and resolves it.
func ResolveText(text string, lang core.Language) *Map {
	toks, _ := lexer.TokenizeAt(text, 1, lexer.OptionsFor(lang))
	return ResolveFor(lang, toks)
}

// ResolveFor resolves tokens of a statement written in lang.
func ResolveFor(lang core.Language, toks []token.Token) *Map {
	return Resolve(SQLView(lang, toks))
}

// SQLView returns the tokens that may carry SQL. In Python, Java and Scala
// that is string literals and their contents; every other language is taken
// whole.
func SQLView(lang core.Language, toks []token.Token) []token.Token {
	if !lang.IsPython() && lang != core.LangJava && lang != core.LangScala {
		return toks
	}
	var out []token.Token
	for _, tok := range toks {
		if tok.Embedded || tok.Type == token.STRING {
			out = append(out, tok)
		}
	}
	return out
}

// Resolve builds the alias map of one statement from its tokens.
func Resolve(toks []token.Token) *Map {
	r := &resolver{
		toks:   toks,
		m:      newMap(),
		frames: []frame{{kind: frameGroup}},
	}
	r.run()
	r.resolveJoins()
	return r.m
}
