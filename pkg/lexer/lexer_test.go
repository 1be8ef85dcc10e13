package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/token"
)

func types(toks []token.Token) []token.TokenType {
	out := make([]token.TokenType, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Type)
	}
	return out
}

func literals(toks []token.Token) []string {
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Literal)
	}
	return out
}

func TestTokenize_SQL(t *testing.T) {
	toks := Tokenize("SELECT d.mbr_since_dt FROM gdr_card_acct d WHERE d.status='A';", SQLOptions())

	assert.Equal(t, []token.TokenType{
		token.SELECT, token.IDENT, token.DOT, token.IDENT,
		token.FROM, token.IDENT, token.IDENT,
		token.WHERE, token.IDENT, token.DOT, token.IDENT, token.EQ, token.STRING,
		token.SEMICOLON, token.EOF,
	}, types(toks))
	assert.Equal(t, "A", toks[12].Literal)
	assert.Equal(t, 1, toks[1].Pos.Line)
	assert.Equal(t, 8, toks[1].Pos.Column)
	assert.Equal(t, 7, toks[1].Pos.Offset)
}

func TestTokenize_Comments(t *testing.T) {
	tests := []struct {
		name string
		lang core.Language
		src  string
		want []string
	}{
		{"sql line comment", core.LangSQL, "a -- b\nc", []string{"a", "c", ""}},
		{"sql block comment", core.LangSQL, "a /* b\n b */ c", []string{"a", "c", ""}},
		{"python hash", core.LangPython, "x = 1 # from t\ny", []string{"x", "=", "1", "y", ""}},
		{"shell strict hash", core.LangShell, "echo ${#arr} # note", []string{"echo", "$", "{", "#", "arr", "}", ""}},
		{"java slashes", core.LangJava, "int a; // from t\n/* x */ b", []string{"int", "a", ";", "b", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := Tokenize(tt.src, OptionsFor(tt.lang))
			assert.Equal(t, tt.want, literals(toks))
		})
	}
}

func TestTokenizeWithComments(t *testing.T) {
	src := "SELECT 1 -- reads gdr_card_acct\n/* old:\n FROM legacy_t */ FROM t"
	toks, comments, errs := TokenizeWithComments(src, 3, SQLOptions())

	assert.Empty(t, errs)
	assert.Equal(t, []string{"SELECT", "1", "FROM", "t"}, literals(toks))
	require.Len(t, comments, 2)
	assert.Equal(t, "-- reads gdr_card_acct", comments[0].Text)
	assert.Equal(t, 3, comments[0].Pos.Line)
	assert.Equal(t, 10, comments[0].Pos.Column)
	assert.Equal(t, "/* old:\n FROM legacy_t */", comments[1].Text)
	assert.Equal(t, 4, comments[1].Pos.Line)

	_, comments, errs = TokenizeWithComments("a /* open", 1, SQLOptions())
	require.Len(t, errs, 1)
	require.Len(t, comments, 1)
	assert.Equal(t, "/* open", comments[0].Text)
}

func TestTokenize_Strings(t *testing.T) {
	t.Run("doubled quote", func(t *testing.T) {
		toks := Tokenize("'it''s'", SQLOptions())
		require.Equal(t, token.STRING, toks[0].Type)
		assert.Equal(t, "it's", toks[0].Literal)
	})

	t.Run("quoted identifiers", func(t *testing.T) {
		toks := Tokenize("\"My Table\".`col`", SQLOptions())
		assert.Equal(t, []token.TokenType{token.IDENT, token.DOT, token.IDENT, token.EOF}, types(toks))
		assert.Equal(t, "My Table", toks[0].Literal)
		assert.Equal(t, "col", toks[2].Literal)
	})

	t.Run("hive double quotes are strings", func(t *testing.T) {
		toks := Tokenize(`"a\"b"`, OptionsFor(core.LangHive))
		require.Equal(t, token.STRING, toks[0].Type)
		assert.Equal(t, `a"b`, toks[0].Literal)
	})

	t.Run("multi-line literal end", func(t *testing.T) {
		toks := Tokenize("x = 'a\nb'\ny", SQLOptions())
		require.Len(t, toks, 5)
		first, last := toks[2].Lines()
		assert.Equal(t, 1, first)
		assert.Equal(t, 2, last)
		assert.Equal(t, 3, toks[3].Pos.Line)
	})
}

func TestTokenize_EmbeddedSQL(t *testing.T) {
	src := "df = spark.sql(\"SELECT a.x FROM t a\")"
	toks := Tokenize(src, OptionsFor(core.LangPySpark))

	var embedded []token.Token
	for _, tok := range toks {
		if tok.Embedded {
			embedded = append(embedded, tok)
		}
	}
	require.Len(t, embedded, 7)
	assert.Equal(t, token.SELECT, embedded[0].Type)
	assert.Equal(t, token.FROM, embedded[4].Type)

	// Embedded positions point into the host text.
	assert.Equal(t, 17, embedded[0].Pos.Column)
	assert.Equal(t, "SELECT", src[embedded[0].Pos.Offset:embedded[0].Pos.Offset+6])
	assert.Equal(t, "t", src[embedded[5].Pos.Offset:embedded[5].Pos.Offset+1])

	// The STRING token precedes its contents.
	for i, tok := range toks {
		if tok.Type == token.STRING {
			assert.True(t, toks[i+1].Embedded)
			assert.Equal(t, "SELECT a.x FROM t a", tok.Literal)
		}
	}
}

func TestTokenize_TripleQuotedLines(t *testing.T) {
	src := "q = \"\"\"\nSELECT *\n  FROM legacy_t\n\"\"\"\nrun(q)"
	toks, errs := TokenizeAt(src, 10, OptionsFor(core.LangPython))
	require.Empty(t, errs)

	for _, tok := range toks {
		if tok.Literal == "legacy_t" {
			assert.Equal(t, 12, tok.Pos.Line)
			assert.Equal(t, 8, tok.Pos.Column)
			assert.True(t, tok.Embedded)
		}
		if tok.Literal == "run" {
			assert.Equal(t, 14, tok.Pos.Line)
		}
	}
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name string
		lang core.Language
		src  string
	}{
		{"unterminated sql string", core.LangSQL, "SELECT 'abc"},
		{"unterminated block comment", core.LangSQL, "SELECT /* abc"},
		{"python string at end of line", core.LangPython, "x = 'abc\ny = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := TokenizeAt(tt.src, 1, OptionsFor(tt.lang))
			assert.Len(t, errs, 1)
		})
	}

	// The python literal stops at end of line so the next line still lexes.
	toks, _ := TokenizeAt("x = 'abc\ny = 1", 1, OptionsFor(core.LangPython))
	assert.Equal(t, "y", toks[len(toks)-3].Literal)
}

func TestTokenize_Templates(t *testing.T) {
	toks := Tokenize("FROM ${DB}.t x", SQLOptions())
	assert.Equal(t, []token.TokenType{
		token.FROM, token.DOLLAR, token.LBRACE, token.IDENT, token.RBRACE,
		token.DOT, token.IDENT, token.IDENT, token.EOF,
	}, types(toks))
}

func TestTokenize_TextHasNoQuotes(t *testing.T) {
	toks := Tokenize("don't use legacy_t", OptionsFor(core.LangText))
	assert.Contains(t, literals(toks), "legacy_t")
}
