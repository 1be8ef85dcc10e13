// Package matcher finds dictionary references in the tokens of one statement.
//
// Matching is whole-token and case-insensitive. Qualified references
// (q.field) are attributed through the statement's alias map; unqualified
// words are attributed by co-occurrence with the tables the statement names.
package matcher

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/leapstack-labs/legacyscan/pkg/alias"
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/dictionary"
	"github.com/leapstack-labs/legacyscan/pkg/lexer"
	"github.com/leapstack-labs/legacyscan/pkg/token"
)

// Matcher matches one dictionary against statements. It holds no per-statement
// state and is safe for concurrent use.
type Matcher struct {
	dict   *dictionary.Dictionary
	logger *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Matcher for a dictionary.
func New(dict *dictionary.Dictionary, opts ...Option) *Matcher {
	m := &Matcher{
		dict:   dict,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// chain is a run of words joined by dots, e.g. db.t.field.
type chain struct {
	toks []token.Token
}

func (c chain) parts() []string {
	out := make([]string, len(c.toks))
	for i, t := range c.toks {
		out[i] = t.Literal
	}
	return out
}

func (c chain) text() string {
	return strings.Join(c.parts(), ".")
}

// qualifier is everything but the last part.
func (c chain) qualifier() string {
	p := c.parts()
	return strings.Join(p[:len(p)-1], ".")
}

func (c chain) last() token.Token {
	return c.toks[len(c.toks)-1]
}

// readChain collects word(.word)* starting at i and returns the index after it.
func readChain(toks []token.Token, i int) (chain, int) {
	c := chain{toks: []token.Token{toks[i]}}
	j := i + 1
	for j+1 < len(toks) && toks[j].Type == token.DOT && toks[j+1].IsWord() {
		c.toks = append(c.toks, toks[j+1])
		j += 2
	}
	return c, j
}

// statementScope is the per-call state of Match.
type statementScope struct {
	m     *Matcher
	stmt  core.Statement
	am    *alias.Map
	bases []string
	occ   []core.Occurrence
	diags []core.Diagnostic
}

// Match returns the occurrences in a statement's tokens and an
// UnresolvedAlias diagnostic for every qualified dictionary field whose
// qualifier is not in scope. Tokens of Python, Java and Scala statements are
// narrowed to their string literals first.
//
// tables names tables the statement touches outside its SQL, such as
// spark.table("t") or spark.read.parquet("t"). Unqualified fields are
// attributed to them as well as to the tables of the alias map.
func (m *Matcher) Match(stmt core.Statement, toks []token.Token, am *alias.Map, tables ...string) ([]core.Occurrence, []core.Diagnostic) {
	if m.dict == nil || m.dict.Len() == 0 {
		return nil, nil
	}
	s := &statementScope{m: m, stmt: stmt, am: am, bases: scope(am.BaseTables(), tables)}
	toks = alias.SQLView(stmt.Language, toks)

	if stmt.Language.IsSQL() {
		for _, tok := range toks {
			if tok.Type == token.STRING && !tok.Embedded {
				s.diags = append(s.diags, m.textReferences(stmt.FilePath, tok.Literal, tok.Pos.Line, "string literal")...)
			}
		}
	}

	for i := 0; i < len(toks); {
		tok := toks[i]
		if !tok.IsWord() || i > 0 && toks[i-1].Type == token.DOT {
			i++
			continue
		}
		c, next := readChain(toks, i)
		i = next

		if am.IsReference(c.toks[0]) {
			// Table name or alias definition: only table-level entries apply.
			s.tableOnly(c.toks[0], c.text())
			continue
		}
		for _, t := range c.toks {
			s.tableOnly(t, t.Literal)
		}
		if len(c.toks) == 1 {
			s.unqualified(tok)
			continue
		}
		s.qualified(c)
	}
	return s.occ, s.diags
}

// TextReferences reports table-level dictionary names written inside
// comments. Commented-out code is not matched, but a migration still needs
// to know it names a legacy table.
func (m *Matcher) TextReferences(path string, comments []lexer.Comment) []core.Diagnostic {
	if m.dict == nil || m.dict.Len() == 0 {
		return nil
	}
	var out []core.Diagnostic
	for _, c := range comments {
		out = append(out, m.textReferences(path, c.Text, c.Pos.Line, "comment")...)
	}
	return out
}

// textReferences emits one TextReference per distinct table-level entry
// named in text. line is the line text starts on.
func (m *Matcher) textReferences(path, text string, line int, where string) []core.Diagnostic {
	var out []core.Diagnostic
	seen := make(map[string]bool)
	for _, w := range textWords(text) {
		e, ok := m.dict.TableOnly(w.text)
		if !ok || seen[strings.ToLower(w.text)] {
			continue
		}
		seen[strings.ToLower(w.text)] = true
		out = append(out, core.Diagnostic{
			Kind:    core.TextReference,
			Path:    path,
			Line:    line + w.line,
			Message: fmt.Sprintf("table %s is named in a %s", e.Table, where),
		})
	}
	return out
}

type textWord struct {
	text string
	line int // lines after the start of the text
}

// textWords splits free text into dotted identifiers.
func textWords(text string) []textWord {
	var out []textWord
	line := 0
	for _, ln := range strings.Split(text, "\n") {
		for _, f := range strings.FieldsFunc(ln, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.'
		}) {
			if f = strings.Trim(f, "."); f != "" {
				out = append(out, textWord{text: f, line: line})
			}
		}
		line++
	}
	return out
}

// scope appends extra to bases, skipping names already present.
func scope(bases, extra []string) []string {
	if len(extra) == 0 {
		return bases
	}
	seen := make(map[string]bool, len(bases)+len(extra))
	for _, b := range bases {
		seen[strings.ToLower(b)] = true
	}
	for _, t := range extra {
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		bases = append(bases, t)
	}
	return bases
}

func (s *statementScope) emit(e core.DictionaryEntry, tok token.Token, table, qualifier string) {
	s.occ = append(s.occ, core.Occurrence{
		Entry:          e,
		FilePath:       s.stmt.FilePath,
		Line:           tok.Pos.Line,
		Column:         tok.Pos.Column,
		ResolvedTable:  table,
		Qualifier:      qualifier,
		StatementIndex: s.stmt.Index,
		StatementText:  s.stmt.Text,
		LineText:       s.stmt.Line(tok.Pos.Line),
	})
}

// fieldEntry returns the entry for field on table, falling back to a
// table-agnostic entry.
func (s *statementScope) fieldEntry(table, field string) (core.DictionaryEntry, bool) {
	if e, ok := s.m.dict.Field(table, field); ok {
		return e, true
	}
	return s.m.dict.Agnostic(field)
}

func (s *statementScope) tableOnly(tok token.Token, name string) {
	if e, ok := s.m.dict.TableOnly(name); ok {
		s.emit(e, tok, name, "")
	}
}

func (s *statementScope) qualified(c chain) {
	q := c.qualifier()
	field := c.last()

	if b, ok := s.am.Resolve(q); ok {
		if !b.IsTable() {
			return // CTE or derived table
		}
		if e, ok := s.fieldEntry(b.Target, field.Literal); ok {
			s.emit(e, field, b.Target, q)
		}
		return
	}

	if s.m.dict.HasTable(q) {
		if e, ok := s.fieldEntry(q, field.Literal); ok {
			s.emit(e, field, q, q)
		}
		return
	}

	if s.m.dict.HasField(field.Literal) {
		s.diags = append(s.diags, core.Diagnostic{
			Kind:    core.UnresolvedAlias,
			Path:    s.stmt.FilePath,
			Line:    field.Pos.Line,
			Message: fmt.Sprintf("qualifier %q of %s is not defined in this statement", q, c.text()),
		})
		s.m.logger.Debug("unresolved qualifier", slog.String("path", s.stmt.FilePath), slog.String("reference", c.text()))
	}
}

// unqualified attributes a bare word to every table of the statement that
// has it as a field. Table-agnostic fields match once per table.
func (s *statementScope) unqualified(tok token.Token) {
	for _, table := range s.bases {
		if e, ok := s.fieldEntry(table, tok.Literal); ok {
			s.emit(e, tok, table, "")
		}
	}
}
