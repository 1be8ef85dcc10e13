package splitter

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/lexer"
	"github.com/leapstack-labs/legacyscan/pkg/token"
)

// startVerbs open a new statement when they begin a line that does not
// continue the current one.
var startVerbs = map[token.TokenType]bool{
	token.SELECT:   true,
	token.INSERT:   true,
	token.CREATE:   true,
	token.WITH:     true,
	token.MERGE:    true,
	token.UPDATE:   true,
	token.DELETE:   true,
	token.DROP:     true,
	token.ALTER:    true,
	token.TRUNCATE: true,
	token.USE:      true,
	token.SET:      true,
	token.REPLACE:  true,
}

// startWords are non-keyword verbs that open statements (lower case).
var startWords = map[string]bool{
	"analyze": true, "msck": true, "grant": true, "revoke": true,
	"explain": true, "describe": true, "show": true, "load": true,
	"exec": true, "execute": true, "call": true, "begin": true,
	"commit": true, "rollback": true, "declare": true, "refresh": true,
	"invalidate": true, "compute": true, "add": true, "upsert": true,
	"copy": true, "unload": true, "vacuum": true, "optimize": true,
	"cache": true, "uncache": true, "export": true,
}

// continuationKeywords continue the open statement when they begin a line.
var continuationKeywords = map[token.TokenType]bool{
	token.FROM: true, token.JOIN: true, token.INNER: true, token.LEFT: true,
	token.RIGHT: true, token.FULL: true, token.CROSS: true, token.OUTER: true,
	token.LATERAL: true, token.WHERE: true, token.AND: true, token.OR: true,
	token.NOT: true, token.ON: true, token.USING: true, token.GROUP: true,
	token.ORDER: true, token.HAVING: true, token.QUALIFY: true, token.LIMIT: true,
	token.UNION: true, token.INTERSECT: true, token.EXCEPT: true, token.WHEN: true,
	token.THEN: true, token.ELSE: true, token.END: true, token.AS: true,
	token.BY: true, token.IN: true, token.IS: true, token.LIKE: true,
	token.BETWEEN: true, token.PARTITION: true, token.OVER: true, token.VALUES: true,
	token.INTO: true, token.TABLE: true, token.OVERWRITE: true, token.DISTINCT: true,
	token.ASC: true, token.DESC: true, token.CASE: true, token.ALL: true,
	token.EXISTS: true, token.IF: true,
}

// continuationWords are non-keyword clause words, mostly Hive DDL (lower case).
var continuationWords = map[string]bool{
	"sort": true, "distribute": true, "cluster": true, "stored": true,
	"location": true, "tblproperties": true, "partitioned": true,
	"clustered": true, "row": true, "fields": true, "lines": true,
	"collection": true, "map": true, "comment": true, "options": true,
	"window": true, "offset": true, "fetch": true, "returning": true,
	"matched": true, "serde": true, "serdeproperties": true,
	"inputformat": true, "outputformat": true, "skewed": true,
}

// danglingKeywords at the end of a line mean the statement goes on.
var danglingKeywords = map[token.TokenType]bool{
	token.SELECT: true, token.FROM: true, token.WHERE: true, token.AND: true,
	token.OR: true, token.ON: true, token.BY: true, token.JOIN: true,
	token.AS: true, token.SET: true, token.VALUES: true, token.INTO: true,
	token.TABLE: true, token.UNION: true, token.ALL: true, token.INTERSECT: true,
	token.EXCEPT: true, token.IN: true, token.IS: true, token.NOT: true,
	token.LIKE: true, token.BETWEEN: true, token.THEN: true, token.ELSE: true,
	token.WHEN: true, token.CASE: true, token.USING: true, token.HAVING: true,
	token.LEFT: true, token.RIGHT: true, token.INNER: true, token.OUTER: true,
	token.FULL: true, token.CROSS: true, token.DISTINCT: true, token.WITH: true,
	token.RECURSIVE: true, token.INSERT: true, token.OVERWRITE: true,
	token.CREATE: true, token.VIEW: true, token.PARTITION: true, token.OVER: true,
	token.GROUP: true, token.ORDER: true, token.MERGE: true, token.UPDATE: true,
	token.DELETE: true, token.REPLACE: true, token.TEMPORARY: true, token.IF: true,
	token.LATERAL: true, token.QUALIFY: true, token.LIMIT: true, token.EXISTS: true,
}

// danglingOperators at the end of a line mean the expression goes on.
var danglingOperators = map[token.TokenType]bool{
	token.COMMA: true, token.LPAREN: true, token.EQ: true, token.NE: true,
	token.LT: true, token.GT: true, token.LE: true, token.GE: true,
	token.PLUS: true, token.MINUS: true, token.SLASH: true, token.PERCENT: true,
	token.DPIPE: true, token.DOT: true,
}

// leadingOperators at the start of a line continue the expression above.
var leadingOperators = map[token.TokenType]bool{
	token.COMMA: true, token.RPAREN: true, token.DOT: true, token.EQ: true,
	token.NE: true, token.LT: true, token.GT: true, token.LE: true,
	token.GE: true, token.PLUS: true, token.MINUS: true, token.STAR: true,
	token.SLASH: true, token.PERCENT: true, token.DPIPE: true,
}

// sqlUnit is the statement being accumulated.
type sqlUnit struct {
	open     bool
	sql      bool // false for a run of non-SQL text
	start    int
	first    token.Token
	depth    int
	dangling bool
	awaiting bool            // body not seen yet: INSERT ... SELECT, WITH ... SELECT
	body     token.TokenType // verb whose body is awaited
	hasTerm  bool            // statement text contains INSERT at top level
}

func isStart(tok token.Token, fromStarts bool) bool {
	if startVerbs[tok.Type] {
		return true
	}
	if fromStarts && tok.Type == token.FROM {
		// Hive multi-insert: FROM src INSERT OVERWRITE ...
		return true
	}
	return tok.Type == token.IDENT && startWords[strings.ToLower(tok.Literal)]
}

func isContinuation(tok token.Token) bool {
	if continuationKeywords[tok.Type] || leadingOperators[tok.Type] {
		return true
	}
	return tok.Type == token.IDENT && continuationWords[strings.ToLower(tok.Literal)]
}

func isDangling(tok token.Token) bool {
	return danglingKeywords[tok.Type] || danglingOperators[tok.Type]
}

// satisfiesBody reports whether tok provides the body a statement waits for.
func satisfiesBody(first token.TokenType, tok token.Token, depth int) bool {
	switch first {
	case token.INSERT, token.REPLACE:
		return tok.Type == token.SELECT || tok.Type == token.VALUES || tok.Type == token.WITH && depth == 0
	case token.WITH:
		return depth == 0 && (tok.Type == token.SELECT || tok.Type == token.INSERT ||
			tok.Type == token.UPDATE || tok.Type == token.DELETE || tok.Type == token.MERGE)
	case token.FROM:
		return depth == 0 && (tok.Type == token.INSERT || tok.Type == token.SELECT)
	case token.UPDATE:
		return tok.Type == token.SET
	case token.MERGE:
		return tok.Type == token.WHEN
	}
	return true
}

func awaitsBody(first token.TokenType) bool {
	switch first {
	case token.INSERT, token.REPLACE, token.WITH, token.FROM, token.UPDATE, token.MERGE:
		return true
	}
	return false
}

// splitSQL groups SQL lines into statements.
func splitSQL(path string, idx *lineIndex, lexErrs []lexer.Error) ([]segment, []core.Diagnostic) {
	var (
		segs  []segment
		diags []core.Diagnostic
		cur   sqlUnit
	)

	flush := func() {
		if cur.open {
			segs = append(segs, segment{start: cur.start, kind: cur.kind()})
		}
		cur = sqlUnit{}
	}

	for l := 1; l <= idx.n; l++ {
		toks := idx.tokens[l]
		if len(toks) == 0 && !idx.covered[l] {
			continue // trivia
		}

		if !idx.covered[l] {
			first := toks[0]
			switch {
			case cur.open && cur.sql && cur.continues(first):
			case cur.open && !cur.sql && !isStart(first, true):
			default:
				flush()
				cur = sqlUnit{open: true, start: l, first: first, sql: isStart(first, true), body: first.Type}
				cur.awaiting = cur.sql && awaitsBody(first.Type)
			}
		}

		for _, tok := range toks {
			if cur.awaiting && satisfiesBody(cur.body, tok, cur.depth) {
				// WITH ... INSERT INTO t goes on to wait for the insert's body.
				cur.awaiting = tok.Type == token.INSERT || tok.Type == token.WITH
				cur.body = tok.Type
			}
			if tok.Type == token.INSERT && cur.depth == 0 {
				cur.hasTerm = true
			}
			switch tok.Type {
			case token.LPAREN:
				cur.depth++
			case token.RPAREN:
				if cur.depth > 0 {
					cur.depth--
				}
			}
		}

		if len(toks) > 0 {
			last := toks[len(toks)-1]
			cur.dangling = isDangling(last)
			if last.Type == token.SEMICOLON && cur.depth == 0 {
				flush()
			}
		}
	}

	// A statement still open at EOF closes at the last line.
	if cur.open && cur.sql && (cur.depth > 0 || unterminatedAfter(lexErrs, cur.start)) {
		diags = append(diags, core.Diagnostic{
			Kind:    core.MalformedStatement,
			Path:    path,
			Line:    cur.start,
			Message: fmt.Sprintf("statement starting at line %d is not closed", cur.start),
		})
		cur.sql = false
	}
	flush()

	return segs, diags
}

// continues reports whether a line starting with first belongs to the unit.
func (u *sqlUnit) continues(first token.Token) bool {
	if u.depth > 0 || u.dangling {
		return true
	}
	if u.awaiting && satisfiesBody(u.body, first, u.depth) {
		return true
	}
	if first.Type == token.INSERT && u.first.Type == token.FROM {
		return true // Hive multi-insert
	}
	if first.Type == token.SET && (u.first.Type == token.UPDATE || u.first.Type == token.MERGE) {
		return true
	}
	if first.Type == token.WITH && u.first.Type == token.CREATE {
		return true // WITH SERDEPROPERTIES, WITH (options)
	}
	if isStart(first, false) {
		return false
	}
	return isContinuation(first)
}

// kind classifies the unit by its first token.
func (u *sqlUnit) kind() core.StatementKind {
	if !u.sql {
		return core.KindOther
	}
	switch u.first.Type {
	case token.SELECT:
		return core.KindSelect
	case token.INSERT, token.REPLACE:
		return core.KindInsert
	case token.CREATE:
		return core.KindCreate
	case token.MERGE:
		return core.KindMerge
	case token.UPDATE:
		return core.KindUpdate
	case token.DELETE:
		return core.KindDelete
	case token.WITH, token.FROM:
		if u.hasTerm {
			return core.KindInsert
		}
		return core.KindSelect
	}
	return core.KindOther
}

// unterminatedAfter reports a lexical error at or after line.
func unterminatedAfter(errs []lexer.Error, line int) bool {
	for _, e := range errs {
		if e.Pos.Line >= line {
			return true
		}
	}
	return false
}
