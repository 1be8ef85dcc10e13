// Package lexer tokenizes source text of every supported language into
// SQL-flavoured tokens with absolute positions.
package lexer

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/token"
)

// Error is a lexical problem such as an unterminated literal or comment.
type Error struct {
	Pos token.Position
	Msg string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Comment is the text of a line or block comment, markers included.
type Comment struct {
	Text string
	Pos  token.Position
}

// Lexer tokenizes one input.
type Lexer struct {
	input   string
	opts    Options
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	last    token.Position // position of the previously read char
	pending  []token.Token  // embedded tokens waiting to be returned
	comments []Comment
	errors   []Error
}

// New creates a new Lexer for the given input.
func New(input string, opts Options) *Lexer {
	return NewAt(input, 1, opts)
}

// NewAt creates a Lexer whose first line is numbered startLine.
func NewAt(input string, startLine int, opts Options) *Lexer {
	if startLine < 1 {
		startLine = 1
	}
	l := &Lexer{
		input: input,
		opts:  opts,
		line:  startLine,
		col:   0,
	}
	l.readChar()
	return l
}

// Comments returns the comments skipped so far.
func (l *Lexer) Comments() []Comment {
	return l.comments
}

// Errors returns the lexical errors seen so far.
func (l *Lexer) Errors() []Error {
	return l.errors
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	l.last = l.currentPos()
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	return l.peekAt(1)
}

// peekAt returns the character n positions ahead without advancing.
func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

// currentPos returns the current position.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}

	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	if l.eof() {
		return token.Token{Type: token.EOF, Pos: pos, End: pos}
	}

	if strings.IndexByte(l.opts.Quotes, l.ch) >= 0 {
		return l.readStringToken(pos)
	}

	var tok token.Token
	switch l.ch {
	case '+':
		tok = l.newToken(token.PLUS, "+")
	case '-':
		tok = l.newToken(token.MINUS, "-")
	case '*':
		tok = l.newToken(token.STAR, "*")
	case '/':
		tok = l.newToken(token.SLASH, "/")
	case '%':
		tok = l.newToken(token.PERCENT, "%")
	case '=':
		tok = l.newToken(token.EQ, "=")
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = token.Token{Type: token.LE, Literal: "<=", Pos: pos}
		case '>':
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "<>", Pos: pos}
		default:
			tok = l.newToken(token.LT, "<")
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GE, Literal: ">=", Pos: pos}
		} else {
			tok = l.newToken(token.GT, ">")
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "!=", Pos: pos}
		} else {
			tok = l.newToken(token.ILLEGAL, "!")
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = token.Token{Type: token.DPIPE, Literal: "||", Pos: pos}
		} else {
			tok = l.newToken(token.ILLEGAL, "|")
		}
	case '.':
		tok = l.newToken(token.DOT, ".")
	case ',':
		tok = l.newToken(token.COMMA, ",")
	case ';':
		tok = l.newToken(token.SEMICOLON, ";")
	case ':':
		tok = l.newToken(token.COLON, ":")
	case '$':
		tok = l.newToken(token.DOLLAR, "$")
	case '(':
		tok = l.newToken(token.LPAREN, "(")
	case ')':
		tok = l.newToken(token.RPAREN, ")")
	case '[':
		tok = l.newToken(token.LBRACKET, "[")
	case ']':
		tok = l.newToken(token.RBRACKET, "]")
	case '{':
		tok = l.newToken(token.LBRACE, "{")
	case '}':
		tok = l.newToken(token.RBRACE, "}")
	case '"':
		if l.opts.DoubleQuoteIdent {
			return l.readQuotedIdentifier(pos, '"')
		}
		tok = l.newToken(token.ILLEGAL, `"`)
	case '`':
		if l.opts.Backticks {
			return l.readQuotedIdentifier(pos, '`')
		}
		tok = l.newToken(token.ILLEGAL, "`")
	default:
		switch {
		case isIdentStart(l.ch):
			lit := l.readIdentifier()
			return token.Token{Type: token.LookupIdent(strings.ToLower(lit)), Literal: lit, Pos: pos, End: l.last}
		case isDigit(l.ch):
			lit := l.readNumber()
			return token.Token{Type: token.NUMBER, Literal: lit, Pos: pos, End: l.last}
		default:
			tok = l.newToken(token.ILLEGAL, string(l.ch))
		}
	}

	l.readChar()
	tok.Pos = pos
	tok.End = l.last
	return tok
}

// newToken creates a new token.
func (l *Lexer) newToken(tokenType token.TokenType, literal string) token.Token {
	return token.Token{Type: tokenType, Literal: literal, Pos: l.currentPos()}
}

// skipWhitespaceAndComments skips whitespace and comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v' {
			l.readChar()
		}

		if l.atLineComment() {
			l.skipLineComment()
			continue
		}

		if l.opts.BlockComments && l.ch == '/' && l.peekChar() == '*' {
			l.skipBlockComment()
			continue
		}

		break
	}
}

func (l *Lexer) atLineComment() bool {
	if l.eof() {
		return false
	}
	rest := l.input[l.pos:]
	for _, prefix := range l.opts.LineComments {
		if !strings.HasPrefix(rest, prefix) {
			continue
		}
		if prefix == "#" && l.opts.StrictHash && l.pos > 0 && !isSpace(l.input[l.pos-1]) {
			continue
		}
		return true
	}
	return false
}

// skipLineComment skips a line comment.
func (l *Lexer) skipLineComment() {
	start := l.currentPos()
	for l.ch != '\n' && !l.eof() {
		l.readChar()
	}
	l.comments = append(l.comments, Comment{Text: l.input[start.Offset:l.pos], Pos: start})
}

// skipBlockComment skips a block comment.
func (l *Lexer) skipBlockComment() {
	start := l.currentPos()
	l.readChar() // skip '/'
	l.readChar() // skip '*'

	for {
		if l.eof() {
			l.errors = append(l.errors, Error{Pos: start, Msg: "unterminated block comment"})
			l.comments = append(l.comments, Comment{Text: l.input[start.Offset:], Pos: start})
			return
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // skip '*'
			l.readChar() // skip '/'
			l.comments = append(l.comments, Comment{Text: l.input[start.Offset:l.pos], Pos: start})
			return
		}
		l.readChar()
	}
}

// readStringToken reads a string literal opened by the current quote and,
// for host languages, queues the tokens of its contents.
func (l *Lexer) readStringToken(pos token.Position) token.Token {
	q := l.ch
	triple := l.opts.TripleQuotes && l.peekChar() == q && l.peekAt(2) == q

	width := 1
	if triple {
		width = 3
	}
	for i := 0; i < width; i++ {
		l.readChar()
	}

	// Contents start right after the last opening quote.
	contentStart := token.Position{Line: l.last.Line, Column: l.last.Column + 1, Offset: l.pos}
	lit, contentEnd := l.readString(q, triple, pos)
	tok := token.Token{Type: token.STRING, Literal: lit, Pos: pos, End: l.last}

	if l.opts.LexStringContents && contentEnd > contentStart.Offset {
		l.pending = append(l.pending, embeddedTokens(l.input[contentStart.Offset:contentEnd], contentStart)...)
	}
	return tok
}

// readString reads the body of a literal after its opening quote(s).
// It returns the unescaped literal and the offset where the contents end.
func (l *Lexer) readString(q byte, triple bool, start token.Position) (string, int) {
	var result strings.Builder
	for {
		if l.eof() {
			l.errors = append(l.errors, Error{Pos: start, Msg: "unterminated string literal"})
			return result.String(), l.pos
		}
		if l.ch == '\n' && !triple && l.opts.SingleLineStrings {
			l.errors = append(l.errors, Error{Pos: start, Msg: "unterminated string literal"})
			return result.String(), l.pos
		}
		if l.ch == '\\' && l.opts.Escapes {
			// Escaped char is kept verbatim.
			l.readChar()
			if !l.eof() {
				result.WriteByte(l.ch)
				l.readChar()
			}
			continue
		}
		if l.ch == q {
			if triple {
				if l.peekChar() == q && l.peekAt(2) == q {
					end := l.pos
					l.readChar()
					l.readChar()
					l.readChar()
					return result.String(), end
				}
				result.WriteByte(l.ch)
				l.readChar()
				continue
			}
			if l.opts.DoubledQuotes && l.peekChar() == q {
				// Doubled quote escape
				result.WriteByte(q)
				l.readChar()
				l.readChar()
				continue
			}
			end := l.pos
			l.readChar() // skip closing quote
			return result.String(), end
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
}

// readQuotedIdentifier reads a "quoted" or `quoted` identifier.
// Handles doubled quotes as escape: "col""name" -> col"name
func (l *Lexer) readQuotedIdentifier(pos token.Position, q byte) token.Token {
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		if l.eof() {
			l.errors = append(l.errors, Error{Pos: pos, Msg: "unterminated quoted identifier"})
			break
		}
		if l.ch == q {
			if l.peekChar() == q {
				result.WriteByte(q)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			break
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return token.Token{Type: token.IDENT, Literal: result.String(), Pos: pos, End: l.last}
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentStart(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || (l.peekChar() == '+' || l.peekChar() == '-') && isDigit(l.peekAt(2))) {
		l.readChar() // skip 'e' or 'E'
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

// embeddedTokens lexes the contents of a host string with SQL rules and
// shifts the positions so they point into the host input.
func embeddedTokens(content string, at token.Position) []token.Token {
	sub := NewAt(content, at.Line, SQLOptions())
	var out []token.Token
	for {
		tok := sub.NextToken()
		if tok.Type == token.EOF {
			break
		}
		tok.Pos = shift(tok.Pos, at)
		tok.End = shift(tok.End, at)
		tok.Embedded = true
		out = append(out, tok)
	}
	return out
}

func shift(p, at token.Position) token.Position {
	if p.Line == at.Line {
		p.Column += at.Column - 1
	}
	p.Offset += at.Offset
	return p
}

// isIdentStart returns true if ch can start an identifier. Bytes of
// multi-byte UTF-8 sequences are accepted so accented names stay whole.
func isIdentStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch >= 0x80
}

// isDigit returns true if ch is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// Tokenize returns all tokens from the input, ending with EOF.
func Tokenize(input string, opts Options) []token.Token {
	l := New(input, opts)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return tokens
}

// TokenizeAt tokenizes text whose first line is startLine. The EOF token is
// not included.
func TokenizeAt(text string, startLine int, opts Options) ([]token.Token, []Error) {
	toks, _, errs := TokenizeWithComments(text, startLine, opts)
	return toks, errs
}

// TokenizeWithComments is TokenizeAt that also returns the skipped
// comments in source order.
func TokenizeWithComments(text string, startLine int, opts Options) ([]token.Token, []Comment, []Error) {
	l := NewAt(text, startLine, opts)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		tokens = append(tokens, tok)
	}
	return tokens, l.Comments(), l.Errors()
}
