package block

import (
	"regexp"
	"sort"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/alias"
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/token"
)

// call is one link of a method chain such as spark.read.parquet("x").
type call struct {
	name string
	args []string // literal value of each string argument, "" otherwise
	tok  token.Token
}

func (c call) arg(i int) string {
	if i < len(c.args) {
		return c.args[i]
	}
	return ""
}

// Spark method names, lower case.
var (
	formatMethods = map[string]bool{
		"parquet": true, "csv": true, "json": true, "orc": true,
		"avro": true, "text": true, "load": true, "textfile": true,
	}
	writeFormats = map[string]bool{
		"parquet": true, "csv": true, "json": true, "orc": true,
		"avro": true, "text": true, "save": true,
	}
	optionKeys = map[string]bool{"dbtable": true, "path": true, "table": true}
)

// Facts extracts the tables a statement reads and writes, the files and
// modules it imports and the joins it performs.
func Facts(stmt core.Statement, toks []token.Token, am *alias.Map) core.AnalyzedStatement {
	as := core.AnalyzedStatement{Statement: stmt}
	sources := am.Sources()
	targets := am.Targets()

	host := hostTokens(toks)
	for _, ch := range chains(host) {
		s, t := sparkTables(ch)
		sources = append(sources, s...)
		targets = append(targets, t...)
	}

	as.Sources = Distinct(sources)
	as.Targets = Distinct(targets)
	as.Joins = am.Joins
	as.Imports = imports(stmt.Language, host)
	return as
}

// hostTokens drops the tokens lexed from string contents, keeping the
// STRING tokens themselves.
func hostTokens(toks []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if !t.Embedded {
			out = append(out, t)
		}
	}
	return out
}

// chains splits host tokens into method chains.
func chains(toks []token.Token) [][]call {
	var (
		out [][]call
		cur []call
	)
	flush := func() {
		if len(cur) > 1 {
			out = append(out, cur)
		}
		cur = nil
	}

	for i := 0; i < len(toks); {
		t := toks[i]
		switch {
		case t.Type == token.DOT && len(cur) > 0 && i+1 < len(toks) && toks[i+1].IsWord():
			c, next := readCall(toks, i+1)
			cur = append(cur, c)
			i = next
		case t.Type == token.ILLEGAL && t.Literal == "\\":
			i++ // line continuation
		case t.Type == token.IDENT:
			flush()
			c, next := readCall(toks, i)
			cur = append(cur, c)
			i = next
		default:
			flush()
			i++
		}
	}
	flush()
	return out
}

// readCall reads name[(args)] at i.
func readCall(toks []token.Token, i int) (call, int) {
	c := call{name: strings.ToLower(toks[i].Literal), tok: toks[i]}
	j := i + 1
	if j >= len(toks) || toks[j].Type != token.LPAREN {
		return c, j
	}

	depth := 0
	arg := ""
	argToks := 0
	for ; j < len(toks); j++ {
		t := toks[j]
		switch {
		case t.Type == token.LPAREN:
			depth++
			if depth == 1 {
				continue
			}
		case t.Type == token.RPAREN:
			depth--
			if depth == 0 {
				if argToks > 0 {
					c.args = append(c.args, literalArg(arg, argToks))
				}
				return c, j + 1
			}
		case t.Type == token.COMMA && depth == 1:
			c.args = append(c.args, literalArg(arg, argToks))
			arg, argToks = "", 0
			continue
		}
		if depth == 1 && t.Type == token.STRING {
			arg = t.Literal
		}
		argToks++
	}
	return c, j
}

// literalArg keeps an argument only when it is a lone string literal.
func literalArg(s string, n int) string {
	if n != 1 {
		return ""
	}
	return s
}

// sparkTables reads the tables of one chain. The chain is a reader after
// .read and a writer after .write.
func sparkTables(ch []call) (sources, targets []string) {
	mode := ""
	add := func(name string, write bool) {
		if name == "" {
			return
		}
		if write {
			targets = append(targets, name)
		} else {
			sources = append(sources, name)
		}
	}

	for _, c := range ch {
		switch c.name {
		case "read", "readstream":
			mode = "read"
			continue
		case "write", "writestream":
			mode = "write"
			continue
		case "table":
			add(c.arg(0), false)
		case "saveastable", "insertinto", "writeto":
			add(c.arg(0), true)
		case "jdbc":
			if mode != "" {
				add(c.arg(1), mode == "write")
			}
		case "option":
			if mode != "" && optionKeys[strings.ToLower(c.arg(0))] {
				add(c.arg(1), mode == "write")
			}
		default:
			switch {
			case mode == "read" && formatMethods[c.name]:
				add(c.arg(0), false)
			case mode == "write" && writeFormats[c.name]:
				add(c.arg(0), true)
			}
		}
	}
	return sources, targets
}

// pathPattern matches file references to scannable code and SQL.
var pathPattern = func() *regexp.Regexp {
	var exts []string
	for _, ext := range core.SupportedExtensions() {
		lang, _ := core.LanguageFromPath("x" + ext)
		if lang.IsCode() || lang.IsSQL() {
			exts = append(exts, regexp.QuoteMeta(strings.TrimPrefix(ext, ".")))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(exts)))
	return regexp.MustCompile(`[A-Za-z0-9_./~${}:-]*[A-Za-z0-9_}]\.(?i:` + strings.Join(exts, "|") + `)\b`)
}()

// imports collects module imports (Python, Java, Scala) and path references.
func imports(lang core.Language, toks []token.Token) []core.ImportRef {
	type importKey struct {
		raw   string
		style core.ImportStyle
	}
	var out []core.ImportRef
	seen := make(map[importKey]bool)
	add := func(raw string, style core.ImportStyle, line int) {
		key := importKey{raw, style}
		if raw == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, core.ImportRef{Raw: raw, Style: style, Line: line})
	}

	modules := lang.IsPython() || lang == core.LangJava || lang == core.LangScala
	if modules {
		for _, imp := range moduleImports(lang, toks) {
			add(imp.Raw, core.ImportModule, imp.Line)
		}
	}

	// In Python, Java and Scala a dotted host word is a module or a method
	// call, so only string literals can name files.
	for _, w := range words(toks) {
		if modules && !w.literal {
			continue
		}
		for _, loc := range pathPattern.FindAllStringIndex(w.text, -1) {
			if loc[1] < len(w.text) && (w.text[loc[1]] == '(' || w.text[loc[1]] == '.') {
				continue // spark.sql(...), a.sql.b
			}
			add(w.text[loc[0]:loc[1]], core.ImportPath, w.line)
		}
	}
	return out
}

// moduleImports reads import statements from host tokens.
func moduleImports(lang core.Language, toks []token.Token) []core.ImportRef {
	var out []core.ImportRef
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Type == token.FROM && lang.IsPython():
			name, next := dottedName(toks, i+1, false)
			if next >= len(toks) || toks[next].Type != token.IMPORT {
				continue
			}
			if name != "" && !strings.HasPrefix(name, ".") {
				out = append(out, core.ImportRef{Raw: name, Line: t.Pos.Line})
			}
			i = next // the imported names are not modules
		case t.Type == token.IMPORT:
			j := i + 1
			if j < len(toks) && strings.EqualFold(toks[j].Literal, "static") {
				j++
			}
			for {
				name, next := dottedName(toks, j, lang == core.LangScala)
				if name == "" {
					break
				}
				if !strings.HasPrefix(name, ".") {
					out = append(out, core.ImportRef{Raw: name, Line: t.Pos.Line})
				}
				j = next
				if lang.IsPython() && j+1 < len(toks) && toks[j].Type == token.AS {
					j += 2
				}
				if !lang.IsPython() || j >= len(toks) || toks[j].Type != token.COMMA {
					break
				}
				j++
			}
			i = j - 1
		}
	}
	return out
}

// dottedName reads a.b.c at j. Java's trailing ".*" and Scala's "._" and
// "{A, B}" selectors are dropped.
func dottedName(toks []token.Token, j int, scala bool) (string, int) {
	var parts []string
	for j < len(toks) {
		t := toks[j]
		if t.Type == token.DOT && len(parts) == 0 {
			parts = append(parts, "")
			j++
			continue
		}
		if !t.IsWord() || t.Type == token.IMPORT || t.Type == token.AS {
			break
		}
		if scala && t.Literal == "_" {
			break
		}
		parts = append(parts, t.Literal)
		j++
		if j >= len(toks) || toks[j].Type != token.DOT {
			break
		}
		if j+1 < len(toks) && (toks[j+1].Type == token.STAR || toks[j+1].Type == token.LBRACE) {
			j += 2
			break
		}
		j++
	}
	name := strings.Join(parts, ".")
	if scala && j < len(toks) && toks[j].Type == token.LBRACE {
		for j < len(toks) && toks[j].Type != token.RBRACE {
			j++
		}
	}
	return name, j
}

// word is a run of adjacent host tokens, or the contents of a string literal.
type word struct {
	text    string
	line    int
	literal bool
}

func words(toks []token.Token) []word {
	var out []word
	var b strings.Builder
	line := 0
	flush := func() {
		if b.Len() > 0 {
			out = append(out, word{text: b.String(), line: line})
		}
		b.Reset()
	}

	for i, t := range toks {
		if t.Type == token.STRING {
			flush()
			out = append(out, word{text: t.Literal, line: t.Pos.Line, literal: true})
			continue
		}
		if i == 0 || toks[i-1].Type == token.STRING || t.Pos.Offset != toks[i-1].End.Offset+1 {
			flush()
			line = t.Pos.Line
		}
		b.WriteString(t.Literal)
	}
	flush()
	return out
}

// Distinct deduplicates names case-insensitively, keeping the first
// spelling, and sorts them.
func Distinct(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i]), strings.ToLower(out[j])
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}
