// Package splitter partitions a source file into statements.
//
// The result is total: statements cover lines 1..N in order with no gap
// and no overlap. Blank and comment-only lines attach to the preceding
// statement; leading ones attach to the first.
package splitter

import (
	"context"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/lexer"
	"github.com/leapstack-labs/legacyscan/pkg/token"
)

// segment is a run of code lines before trivia lines are attached.
type segment struct {
	start, end int // 1-based, inclusive
	kind       core.StatementKind
	unit       string
	name       string
	control    string
}

// Split partitions text into statements using the rules of lang.
func Split(path string, lang core.Language, text string) ([]core.Statement, []core.Diagnostic) {
	return SplitContext(context.Background(), path, lang, text)
}

// SplitContext is Split with a context for the code-language parser.
func SplitContext(ctx context.Context, path string, lang core.Language, text string) ([]core.Statement, []core.Diagnostic) {
	lines := core.SplitLines(text)
	toks, lexErrs := lexer.TokenizeAt(strings.Join(lines, "\n"), 1, lexer.OptionsFor(lang))
	idx := indexLines(len(lines), toks)

	var segs []segment
	var diags []core.Diagnostic
	switch {
	case lang.IsSQL():
		segs, diags = splitSQL(path, idx, lexErrs)
	case lang.IsCode():
		var ok bool
		segs, ok = splitCode(ctx, lang, lines, idx)
		if !ok {
			segs = splitIndented(lines, idx)
		}
	case lang == core.LangText:
		segs = splitParagraphs(idx)
	default:
		segs = splitIndented(lines, idx)
	}

	return assemble(path, lang, lines, segs), diags
}

// lineIndex groups tokens by the line they start on and records lines
// that lie inside a multi-line token.
type lineIndex struct {
	n       int
	tokens  [][]token.Token // index 1..n
	covered []bool          // line continues a token from an earlier line
}

func indexLines(n int, toks []token.Token) *lineIndex {
	idx := &lineIndex{
		n:       n,
		tokens:  make([][]token.Token, n+2),
		covered: make([]bool, n+2),
	}
	for _, tok := range toks {
		first, last := tok.Lines()
		if first < 1 || first > n {
			continue
		}
		idx.tokens[first] = append(idx.tokens[first], tok)
		for l := first + 1; l <= last && l <= n; l++ {
			idx.covered[l] = true
		}
	}
	return idx
}

// hasCode reports whether the line holds anything but whitespace and comments.
func (idx *lineIndex) hasCode(line int) bool {
	return len(idx.tokens[line]) > 0 || idx.covered[line]
}

// hasSubstance is hasCode ignoring lines made only of closing punctuation.
func (idx *lineIndex) hasSubstance(line int) bool {
	if idx.covered[line] {
		return true
	}
	for _, tok := range idx.tokens[line] {
		switch tok.Type {
		case token.RBRACE, token.RPAREN, token.RBRACKET, token.SEMICOLON, token.COMMA:
		default:
			return true
		}
	}
	return false
}

// assemble turns code segments into statements covering every line.
func assemble(path string, lang core.Language, lines []string, segs []segment) []core.Statement {
	n := len(lines)
	if len(segs) == 0 {
		segs = []segment{{start: 1, end: n, kind: core.KindOther}}
	}

	segs[0].start = 1
	for i := range segs {
		if i+1 < len(segs) {
			segs[i].end = segs[i+1].start - 1
		} else {
			segs[i].end = n
		}
	}

	stmts := make([]core.Statement, 0, len(segs))
	for i, s := range segs {
		stmts = append(stmts, core.Statement{
			FilePath:  path,
			Index:     i,
			StartLine: s.start,
			EndLine:   s.end,
			Text:      strings.Join(lines[s.start-1:s.end], "\n"),
			Kind:      s.kind,
			Language:  lang,
			Unit:      s.unit,
			Name:      s.name,
			Control:   s.control,
		})
	}
	return stmts
}

// splitIndented starts a statement at every zero-indent code line outside
// open brackets. Config, YAML and JSON use it, and code languages fall
// back to it when the parser is unavailable.
func splitIndented(lines []string, idx *lineIndex) []segment {
	var segs []segment
	depth := 0
	for l := 1; l <= idx.n; l++ {
		if !idx.hasCode(l) {
			continue
		}
		line := lines[l-1]
		zeroIndent := len(line) > 0 && line[0] != ' ' && line[0] != '\t'
		if len(segs) == 0 || depth == 0 && zeroIndent && !idx.covered[l] {
			segs = append(segs, segment{start: l, kind: core.KindOther})
		}
		for _, tok := range idx.tokens[l] {
			switch tok.Type {
			case token.LPAREN, token.LBRACKET, token.LBRACE:
				depth++
			case token.RPAREN, token.RBRACKET, token.RBRACE:
				if depth > 0 {
					depth--
				}
			}
		}
	}
	return segs
}

// splitParagraphs starts a statement at each code line that follows a
// blank line, so prose and pasted queries stay whole.
func splitParagraphs(idx *lineIndex) []segment {
	var segs []segment
	prevBlank := true
	for l := 1; l <= idx.n; l++ {
		if !idx.hasCode(l) {
			prevBlank = true
			continue
		}
		if prevBlank {
			segs = append(segs, segment{start: l, kind: core.KindOther})
		}
		prevBlank = false
	}
	return segs
}
