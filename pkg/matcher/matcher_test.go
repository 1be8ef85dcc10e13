package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/legacyscan/pkg/alias"
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/dictionary"
	"github.com/leapstack-labs/legacyscan/pkg/lexer"
)

func newMatcher(t *testing.T, entries ...core.DictionaryEntry) *Matcher {
	t.Helper()
	d, diags := dictionary.New(entries)
	require.Empty(t, diags)
	return New(d)
}

func match(m *Matcher, lang core.Language, text string) ([]core.Occurrence, []core.Diagnostic) {
	stmt := core.Statement{FilePath: "f", Index: 0, StartLine: 1, EndLine: len(core.SplitLines(text)), Text: text, Language: lang}
	toks, _ := lexer.TokenizeAt(text, 1, lexer.OptionsFor(lang))
	return m.Match(stmt, toks, alias.ResolveFor(lang, toks))
}

func TestMatch_AliasResolvedField(t *testing.T) {
	m := newMatcher(t, core.DictionaryEntry{Table: "gdr_card_acct", Field: "mbr_since_dt"})

	occ, diags := match(m, core.LangSQL, "SELECT d.mbr_since_dt FROM gdr_card_acct d WHERE d.status='A'")

	assert.Empty(t, diags)
	require.Len(t, occ, 1)
	assert.Equal(t, "gdr_card_acct", occ[0].ResolvedTable)
	assert.Equal(t, "d", occ[0].Qualifier)
	assert.Equal(t, 1, occ[0].Line)
	assert.Equal(t, 10, occ[0].Column)
	assert.Equal(t, "SELECT d.mbr_since_dt FROM gdr_card_acct d WHERE d.status='A'", occ[0].LineText)
}

func TestMatch_Qualified(t *testing.T) {
	entries := []core.DictionaryEntry{
		{Table: "acct", Field: "status"},
		{Table: "cust", Field: "dob"},
		{Table: "*", Field: "ssn"},
	}

	tests := []struct {
		name     string
		sql      string
		resolved []string
		diags    int
	}{
		{"as alias", "SELECT a.status FROM acct AS a", []string{"acct"}, 0},
		{"literal table qualifier", "SELECT acct.status FROM acct", []string{"acct"}, 0},
		{"schema chain", "SELECT edw.acct.status FROM edw.acct", []string{"edw.acct"}, 0},
		{"dictionary table not in statement", "SELECT cust.dob FROM other", []string{"cust"}, 0},
		{"agnostic field through alias", "SELECT a.ssn FROM acct a", []string{"acct"}, 0},
		{"cte qualifier is silent", "WITH c AS (SELECT 1) SELECT c.status FROM c", nil, 0},
		{"derived qualifier is silent", "SELECT x.status FROM (SELECT status FROM acct) x", []string{"acct"}, 0},
		{"undefined qualifier", "SELECT z.status FROM acct a", nil, 1},
		{"undefined qualifier on unknown field", "SELECT z.other FROM acct a", nil, 0},
		{"field of another table", "SELECT a.dob FROM acct a", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMatcher(t, entries...)
			occ, diags := match(m, core.LangSQL, tt.sql)

			var got []string
			for _, o := range occ {
				got = append(got, o.ResolvedTable)
			}
			assert.Equal(t, tt.resolved, got)
			assert.Len(t, diags, tt.diags)
			for _, d := range diags {
				assert.Equal(t, core.UnresolvedAlias, d.Kind)
			}
		})
	}
}

func TestMatch_Unqualified(t *testing.T) {
	m := newMatcher(t,
		core.DictionaryEntry{Table: "acct", Field: "status"},
		core.DictionaryEntry{Table: "cust", Field: "status"},
		core.DictionaryEntry{Field: "ssn"},
	)

	t.Run("co-occurrence with every table that has the field", func(t *testing.T) {
		occ, _ := match(m, core.LangSQL, "SELECT status FROM acct JOIN cust ON acct.id = cust.id")
		require.Len(t, occ, 2)
		assert.Equal(t, "acct", occ[0].ResolvedTable)
		assert.Equal(t, "cust", occ[1].ResolvedTable)
		assert.Empty(t, occ[0].Qualifier)
	})

	t.Run("no table in the statement", func(t *testing.T) {
		occ, _ := match(m, core.LangSQL, "SELECT status, ssn")
		assert.Empty(t, occ)
	})

	t.Run("agnostic once per base table", func(t *testing.T) {
		occ, _ := match(m, core.LangSQL, "SELECT ssn FROM a x JOIN a y ON x.k = y.k JOIN b ON 1=1")
		require.Len(t, occ, 2)
		assert.Equal(t, "a", occ[0].ResolvedTable)
		assert.Equal(t, "b", occ[1].ResolvedTable)
	})

	t.Run("whole token and case insensitive", func(t *testing.T) {
		occ, _ := match(m, core.LangSQL, "SELECT STATUS, status_cd, my_status FROM acct")
		require.Len(t, occ, 1)
		assert.Equal(t, "STATUS", occ[0].LineText[7:13])
	})

	t.Run("several on one line", func(t *testing.T) {
		occ, _ := match(m, core.LangSQL, "SELECT status, status FROM acct")
		require.Len(t, occ, 2)
		assert.Equal(t, 8, occ[0].Column)
		assert.Equal(t, 16, occ[1].Column)
	})
}

func TestMatch_TableOnly(t *testing.T) {
	m := newMatcher(t, core.DictionaryEntry{Table: "legacy_t"})

	occ, _ := match(m, core.LangSQL, "INSERT INTO legacy_t SELECT * FROM db.legacy_t JOIN legacy_t_hist h ON 1 = 1")
	require.Len(t, occ, 2)
	assert.Equal(t, "legacy_t", occ[0].ResolvedTable)
	assert.Equal(t, "db.legacy_t", occ[1].ResolvedTable)

	occ, _ = match(m, core.LangShell, "hive -e \"select * from legacy_t\"\necho legacy_t\n")
	assert.Len(t, occ, 2)
}

func TestMatch_HostLanguageOnlySeesStrings(t *testing.T) {
	m := newMatcher(t, core.DictionaryEntry{Table: "acct", Field: "status"})

	src := "status = 1\ndf = spark.sql(\"\"\"\nSELECT a.status\nFROM acct a\n\"\"\")\nrow.status\n"
	occ, diags := match(m, core.LangPySpark, src)

	assert.Empty(t, diags, "host attribute access is not a qualified reference")
	require.Len(t, occ, 1)
	assert.Equal(t, 3, occ[0].Line)
	assert.Equal(t, "SELECT a.status", occ[0].LineText)
}

func TestMatch_DataFrameTablesInScope(t *testing.T) {
	m := newMatcher(t, core.DictionaryEntry{Table: "gdr_card_acct", Field: "mbr_since_dt"})

	src := `df = spark.table("gdr_card_acct").select("mbr_since_dt", "status")`
	stmt := core.Statement{FilePath: "df.py", StartLine: 1, EndLine: 1, Text: src, Language: core.LangPySpark}
	toks, _ := lexer.TokenizeAt(src, 1, lexer.OptionsFor(core.LangPySpark))
	am := alias.ResolveFor(core.LangPySpark, toks)

	occ, _ := m.Match(stmt, toks, am)
	assert.Empty(t, occ, "no SQL names the table")

	occ, diags := m.Match(stmt, toks, am, "gdr_card_acct", "GDR_CARD_ACCT")
	assert.Empty(t, diags)
	require.Len(t, occ, 1, "duplicate scope tables match once")
	assert.Equal(t, "gdr_card_acct", occ[0].ResolvedTable)
	assert.Equal(t, "mbr_since_dt", occ[0].Entry.Field)
	assert.Equal(t, 1, occ[0].Line)
}

func TestTextReferences(t *testing.T) {
	m := newMatcher(t,
		core.DictionaryEntry{Table: "legacy_t"},
		core.DictionaryEntry{Table: "acct", Field: "status"},
	)

	src := "SELECT 1 -- was: FROM legacy_t, legacy_t_hist\n/* acct\n LEGACY_T */ FROM t"
	_, comments, _ := lexer.TokenizeWithComments(src, 1, lexer.SQLOptions())
	diags := m.TextReferences("old.sql", comments)

	require.Len(t, diags, 2, "one per comment; field tables and longer names are ignored")
	assert.Equal(t, core.TextReference, diags[0].Kind)
	assert.Equal(t, "old.sql", diags[0].Path)
	assert.Equal(t, 1, diags[0].Line)
	assert.Contains(t, diags[0].Message, "legacy_t is named in a comment")
	assert.Equal(t, 3, diags[1].Line)
}

func TestMatch_TableInSQLStringLiteral(t *testing.T) {
	m := newMatcher(t, core.DictionaryEntry{Table: "legacy_t"})

	occ, diags := match(m, core.LangSQL, "SELECT * FROM audit WHERE tbl = 'legacy_t'")
	assert.Empty(t, occ)
	require.Len(t, diags, 1)
	assert.Equal(t, core.TextReference, diags[0].Kind)
	assert.Contains(t, diags[0].Message, "string literal")

	occ, diags = match(m, core.LangShell, "hive -e \"select * from legacy_t\"\n")
	assert.Len(t, occ, 1, "shell strings carry SQL and are matched")
	assert.Empty(t, diags)
}

func TestMatch_EmptyDictionary(t *testing.T) {
	d, _ := dictionary.New(nil)
	occ, diags := match(New(d), core.LangSQL, "SELECT a.b FROM t a")
	assert.Empty(t, occ)
	assert.Empty(t, diags)
}
