package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/legacyscan/pkg/alias"
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/lexer"
	"github.com/leapstack-labs/legacyscan/pkg/splitter"
	"github.com/leapstack-labs/legacyscan/pkg/token"
)

// analyze runs split -> tokenize -> resolve -> facts over a whole file.
func analyze(t *testing.T, path string, lang core.Language, src string) []core.AnalyzedStatement {
	t.Helper()
	stmts, _ := splitter.Split(path, lang, src)
	toks, _ := lexer.TokenizeAt(src, 1, lexer.OptionsFor(lang))

	out := make([]core.AnalyzedStatement, 0, len(stmts))
	for _, s := range stmts {
		var own []token.Token
		for _, tok := range toks {
			if s.Contains(tok.Pos.Line) {
				own = append(own, tok)
			}
		}
		out = append(out, Facts(s, own, alias.ResolveFor(lang, own)))
	}
	return out
}

func facts(t *testing.T, lang core.Language, src string) core.AnalyzedStatement {
	t.Helper()
	toks, _ := lexer.TokenizeAt(src, 1, lexer.OptionsFor(lang))
	stmt := core.Statement{FilePath: "f", StartLine: 1, EndLine: len(core.SplitLines(src)), Text: src, Language: lang}
	return Facts(stmt, toks, alias.ResolveFor(lang, toks))
}

func TestFacts_SQL(t *testing.T) {
	f := facts(t, core.LangSQL, "INSERT INTO Tgt SELECT * FROM src a JOIN dim d ON a.k = d.k JOIN SRC b ON b.x = a.x")

	assert.Equal(t, []string{"dim", "src"}, f.Sources, "deduplicated case-insensitively and sorted")
	assert.Equal(t, []string{"Tgt"}, f.Targets)
	require.NotEmpty(t, f.Joins)
	assert.Equal(t, "src", f.Joins[0].Left)
	assert.Empty(t, f.Imports)
}

func TestFacts_Spark(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		sources []string
		targets []string
	}{
		{
			name:    "table read and saveAsTable",
			src:     "df = spark.table(\"edw.acct\")\ndf.write.mode(\"overwrite\").saveAsTable(\"edw.acct_out\")",
			sources: []string{"edw.acct"},
			targets: []string{"edw.acct_out"},
		},
		{
			name:    "format readers only after read",
			src:     "df = spark.read.parquet(\"/data/in\")\nx = json.load(\"cfg\")",
			sources: []string{"/data/in"},
		},
		{
			name:    "format writers after write",
			src:     "df.write.format(\"orc\").save(\"/data/out\")\ndf.write.csv(\"/data/out.csv\")",
			targets: []string{"/data/out", "/data/out.csv"},
		},
		{
			name:    "jdbc options",
			src:     "df = spark.read.format(\"jdbc\").option(\"url\", u).option(\"dbtable\", \"legacy.t\").load()",
			sources: []string{"legacy.t"},
		},
		{
			name:    "jdbc call",
			src:     "df.write.jdbc(url, \"stage.t\", props)",
			targets: []string{"stage.t"},
		},
		{
			name:    "insertInto",
			src:     "df.write.insertInto(\"t\")",
			targets: []string{"t"},
		},
		{
			name:    "read then write in one chain",
			src:     "spark.read.orc(\"/a\").write.parquet(\"/b\")",
			sources: []string{"/a"},
			targets: []string{"/b"},
		},
		{
			name:    "continued lines",
			src:     "df = spark.read \\\n    .option(\"path\", \"/c\") \\\n    .load()",
			sources: []string{"/c"},
		},
		{
			name:    "embedded sql",
			src:     "spark.sql(\"INSERT INTO t2 SELECT * FROM t1\")",
			sources: []string{"t1"},
			targets: []string{"t2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := facts(t, core.LangPySpark, tt.src)
			assert.Equal(t, tt.sources, f.Sources)
			assert.Equal(t, tt.targets, f.Targets)
		})
	}
}

func TestFacts_Imports(t *testing.T) {
	raws := func(imps []core.ImportRef) map[string]core.ImportStyle {
		out := make(map[string]core.ImportStyle)
		for _, i := range imps {
			out[i.Raw] = i.Style
		}
		return out
	}

	t.Run("python", func(t *testing.T) {
		f := facts(t, core.LangPython, "import os, etl.common as c\nfrom jobs.load import run\nfrom . import sibling\nfrom pyspark.sql import SparkSession\nsubprocess.call([\"sh\", \"bin/run.sh\"])\nspark.sql(\"x\")")
		assert.Equal(t, map[string]core.ImportStyle{
			"os":          core.ImportModule,
			"etl.common":  core.ImportModule,
			"jobs.load":   core.ImportModule,
			"pyspark.sql": core.ImportModule,
			"bin/run.sh":  core.ImportPath,
		}, raws(f.Imports))
	})

	t.Run("java", func(t *testing.T) {
		f := facts(t, core.LangJava, "import java.sql.Connection;\nimport static com.acme.Util.run;\nimport com.acme.etl.*;")
		assert.Equal(t, map[string]core.ImportStyle{
			"java.sql.Connection": core.ImportModule,
			"com.acme.Util.run":   core.ImportModule,
			"com.acme.etl":        core.ImportModule,
		}, raws(f.Imports))
	})

	t.Run("scala", func(t *testing.T) {
		f := facts(t, core.LangScala, "import org.apache.spark.sql._\nimport com.acme.{A, B}")
		assert.Equal(t, map[string]core.ImportStyle{
			"org.apache.spark.sql": core.ImportModule,
			"com.acme":             core.ImportModule,
		}, raws(f.Imports))
	})

	t.Run("shell", func(t *testing.T) {
		f := facts(t, core.LangShell, "source ./env.sh\nhive -f ${SQL_DIR}/load.hql\nspark-submit --master yarn jobs/x.py \"$D/y.py\"\n# old.sh\ncat notes.txt")
		assert.Equal(t, map[string]core.ImportStyle{
			"./env.sh":            core.ImportPath,
			"${SQL_DIR}/load.hql": core.ImportPath,
			"jobs/x.py":           core.ImportPath,
			"$D/y.py":             core.ImportPath,
		}, raws(f.Imports))
		require.Len(t, f.Imports, 4)
		assert.Equal(t, 2, f.Imports[1].Line)
	})

	t.Run("hive source", func(t *testing.T) {
		f := facts(t, core.LangHive, "source /opt/etl/common.hql;")
		assert.Equal(t, map[string]core.ImportStyle{"/opt/etl/common.hql": core.ImportPath}, raws(f.Imports))
	})
}

func TestExtract_SQL(t *testing.T) {
	src := "SET x=1;\nSET y=2;\nINSERT INTO t SELECT * FROM s;\nSELECT * FROM t;\n"
	stmts := analyze(t, "a.hql", core.LangHQL, src)
	blocks := Extract("a.hql", core.LangHQL, stmts)

	require.Len(t, blocks, 3)
	assert.Equal(t, core.BlockData, blocks[0].Role)
	assert.Equal(t, 0, blocks[0].FirstStatement)
	assert.Equal(t, 1, blocks[0].LastStatement)
	assert.Equal(t, core.StageTransform, blocks[1].Stage())
	assert.Equal(t, core.StageExtract, blocks[2].Stage())
	assert.Equal(t, "a.hql#2", blocks[2].ID)
	assert.Equal(t, 4, blocks[2].StartLine)

	for i, s := range stmts {
		assert.Equal(t, []int{0, 0, 1, 2}[i], s.Block)
	}
}

func TestExtract_PySparkChain(t *testing.T) {
	src := `import os
from pyspark.sql import SparkSession

spark = SparkSession.builder.getOrCreate()
df = spark.table("legacy.acct")
out = df.filter("x > 1")
out.write.saveAsTable("mart.acct")
log = 1

def helper():
    return spark.table("legacy.cust")

if os.environ.get("FULL"):
    spark.sql("INSERT INTO mart.full SELECT * FROM legacy.acct")
`
	stmts := analyze(t, "job.py", core.LangPySpark, src)
	blocks := Extract("job.py", core.LangPySpark, stmts)
	require.Len(t, blocks, 5)

	assert.Equal(t, core.BlockImports, blocks[0].Role)
	assert.True(t, blocks[0].IsOrchestration())

	chain := blocks[1]
	assert.Equal(t, core.BlockData, chain.Role)
	assert.Equal(t, []string{"legacy.acct"}, chain.Sources)
	assert.Equal(t, []string{"mart.acct"}, chain.Targets)
	assert.Equal(t, core.StageTransform, chain.Stage())
	assert.Equal(t, 4, chain.StartLine)
	assert.Equal(t, 7, chain.EndLine)

	assert.Equal(t, core.BlockData, blocks[2].Role)
	assert.Equal(t, core.StageNone, blocks[2].Stage())

	assert.Equal(t, core.BlockDefinition, blocks[3].Role)
	assert.Equal(t, "helper", blocks[3].Name)
	assert.Equal(t, core.StageExtract, blocks[3].Stage())

	assert.Equal(t, core.BlockControl, blocks[4].Role)
	assert.Equal(t, core.ControlIf, blocks[4].Control)
	assert.Equal(t, []string{"mart.full"}, blocks[4].Targets)
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"a", "B", "c"}, Distinct([]string{"c", "B", "a", "b", "", "C"}))
	assert.Empty(t, Distinct(nil))
}
