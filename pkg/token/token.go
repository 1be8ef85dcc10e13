// Package token defines the tokens shared by the lexer, the statement
// splitter and the alias resolver.
//
// Keywords are the SQL words the scanner needs to recognize statements,
// read/write clauses and joins. Everything else is an IDENT.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

//nolint:revive // ALL_CAPS names follow SQL token conventions
const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // identifier
	NUMBER // 123, 45.67, 1e10
	STRING // 'hello', "hello", """hello"""

	// Operators and punctuation
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	DPIPE     // ||
	EQ        // =
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	DOT       // .
	COMMA     // ,
	SEMICOLON // ;
	COLON     // :
	DOLLAR    // $
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	LBRACE    // {
	RBRACE    // }

	// Keywords (alphabetical)
	ALL
	ALTER
	AND
	AS
	ASC
	BETWEEN
	BY
	CASE
	CAST
	CREATE
	CROSS
	DELETE
	DESC
	DISTINCT
	DROP
	ELSE
	END
	EXCEPT
	EXISTS
	FROM
	FULL
	GROUP
	HAVING
	IF
	IMPORT
	IN
	INNER
	INSERT
	INTERSECT
	INTO
	IS
	JOIN
	LATERAL
	LEFT
	LIKE
	LIMIT
	MERGE
	NOT
	NULL
	ON
	OR
	ORDER
	OUTER
	OVER
	OVERWRITE
	PARTITION
	QUALIFY
	RECURSIVE
	REPLACE
	RIGHT
	SELECT
	SET
	TABLE
	TEMPORARY
	THEN
	TRUNCATE
	UNION
	UPDATE
	USE
	USING
	VALUES
	VIEW
	WHEN
	WHERE
	WITH
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// tokenNames maps token types to their string representations.
var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	DPIPE:     "||",
	EQ:        "=",
	NE:        "!=",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	DOT:       ".",
	COMMA:     ",",
	SEMICOLON: ";",
	COLON:     ":",
	DOLLAR:    "$",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACKET:  "[",
	RBRACKET:  "]",
	LBRACE:    "{",
	RBRACE:    "}",

	ALL:       "ALL",
	ALTER:     "ALTER",
	AND:       "AND",
	AS:        "AS",
	ASC:       "ASC",
	BETWEEN:   "BETWEEN",
	BY:        "BY",
	CASE:      "CASE",
	CAST:      "CAST",
	CREATE:    "CREATE",
	CROSS:     "CROSS",
	DELETE:    "DELETE",
	DESC:      "DESC",
	DISTINCT:  "DISTINCT",
	DROP:      "DROP",
	ELSE:      "ELSE",
	END:       "END",
	EXCEPT:    "EXCEPT",
	EXISTS:    "EXISTS",
	FROM:      "FROM",
	FULL:      "FULL",
	GROUP:     "GROUP",
	HAVING:    "HAVING",
	IF:        "IF",
	IMPORT:    "IMPORT",
	IN:        "IN",
	INNER:     "INNER",
	INSERT:    "INSERT",
	INTERSECT: "INTERSECT",
	INTO:      "INTO",
	IS:        "IS",
	JOIN:      "JOIN",
	LATERAL:   "LATERAL",
	LEFT:      "LEFT",
	LIKE:      "LIKE",
	LIMIT:     "LIMIT",
	MERGE:     "MERGE",
	NOT:       "NOT",
	NULL:      "NULL",
	ON:        "ON",
	OR:        "OR",
	ORDER:     "ORDER",
	OUTER:     "OUTER",
	OVER:      "OVER",
	OVERWRITE: "OVERWRITE",
	PARTITION: "PARTITION",
	QUALIFY:   "QUALIFY",
	RECURSIVE: "RECURSIVE",
	REPLACE:   "REPLACE",
	RIGHT:     "RIGHT",
	SELECT:    "SELECT",
	SET:       "SET",
	TABLE:     "TABLE",
	TEMPORARY: "TEMPORARY",
	THEN:      "THEN",
	TRUNCATE:  "TRUNCATE",
	UNION:     "UNION",
	UPDATE:    "UPDATE",
	USE:       "USE",
	USING:     "USING",
	VALUES:    "VALUES",
	VIEW:      "VIEW",
	WHEN:      "WHEN",
	WHERE:     "WHERE",
	WITH:      "WITH",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":       ALL,
	"alter":     ALTER,
	"and":       AND,
	"as":        AS,
	"asc":       ASC,
	"between":   BETWEEN,
	"by":        BY,
	"case":      CASE,
	"cast":      CAST,
	"create":    CREATE,
	"cross":     CROSS,
	"delete":    DELETE,
	"desc":      DESC,
	"distinct":  DISTINCT,
	"drop":      DROP,
	"else":      ELSE,
	"end":       END,
	"except":    EXCEPT,
	"exists":    EXISTS,
	"from":      FROM,
	"full":      FULL,
	"group":     GROUP,
	"having":    HAVING,
	"if":        IF,
	"import":    IMPORT,
	"in":        IN,
	"inner":     INNER,
	"insert":    INSERT,
	"intersect": INTERSECT,
	"into":      INTO,
	"is":        IS,
	"join":      JOIN,
	"lateral":   LATERAL,
	"left":      LEFT,
	"like":      LIKE,
	"limit":     LIMIT,
	"merge":     MERGE,
	"not":       NOT,
	"null":      NULL,
	"on":        ON,
	"or":        OR,
	"order":     ORDER,
	"outer":     OUTER,
	"over":      OVER,
	"overwrite": OVERWRITE,
	"partition": PARTITION,
	"qualify":   QUALIFY,
	"recursive": RECURSIVE,
	"replace":   REPLACE,
	"right":     RIGHT,
	"select":    SELECT,
	"set":       SET,
	"table":     TABLE,
	"temporary": TEMPORARY,
	"then":      THEN,
	"truncate":  TRUNCATE,
	"union":     UNION,
	"update":    UPDATE,
	"use":       USE,
	"using":     USING,
	"values":    VALUES,
	"view":      VIEW,
	"when":      WHEN,
	"where":     WHERE,
	"with":      WITH,
}

// LookupIdent returns the token type for the given lowercase identifier.
// If the identifier is a keyword, the keyword token type is returned.
// Otherwise, IDENT is returned.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= ALL && t <= WITH
}

// IsOperator returns true if the token type is an operator or punctuation.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= RBRACE
}

// Position represents a location in the source code.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	// End is the position of the token's last character.
	End Position
	// Embedded marks tokens lexed from the contents of a host-language
	// string literal.
	Embedded bool
}

// IsWord reports whether the token is an identifier or a keyword.
// Keywords count as words because legacy column names often collide with them.
func (t Token) IsWord() bool {
	return t.Type == IDENT || IsKeyword(t.Type)
}

// Is reports whether the token has the given type.
func (t Token) Is(tt TokenType) bool {
	return t.Type == tt
}

// Lines returns the first and last line the token spans.
func (t Token) Lines() (int, int) {
	end := t.End.Line
	if end < t.Pos.Line {
		end = t.Pos.Line
	}
	return t.Pos.Line, end
}

// String formats the token for debugging.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Type, t.Literal, t.Pos.Line, t.Pos.Column)
}
