package symbols

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/legacyscan/pkg/core"
)

func extract(t *testing.T, path string, lang core.Language, src string) ([]core.Class, []core.Function) {
	t.Helper()
	classes, funcs, err := Extract(context.Background(), path, lang, src)
	require.NoError(t, err)
	return classes, funcs
}

func byName(funcs []core.Function) map[string]core.Function {
	out := make(map[string]core.Function, len(funcs))
	for _, f := range funcs {
		out[f.QualifiedName()] = f
	}
	return out
}

func TestExtract_Python(t *testing.T) {
	src := `class Loader(base.Job, Mixin):
    retries = 3

    def __init__(self, spark):
        self.spark = spark

    def run(self, day):
        df = self.read(day)
        helper(df)
        return df.select("x")

    def read(self, day):
        return self.spark.table("gdr_card_acct")

def helper(df):
    log(df)
`
	classes, funcs := extract(t, "jobs/load.py", core.LangPySpark, src)

	require.Len(t, classes, 1)
	c := classes[0]
	assert.Equal(t, "Loader", c.Name)
	assert.Equal(t, "jobs/load.py", c.FilePath)
	assert.Equal(t, 1, c.StartLine)
	assert.Equal(t, 13, c.EndLine)
	assert.Equal(t, []string{"base.Job", "Mixin"}, c.Bases)
	assert.Equal(t, []string{"__init__", "run", "read"}, c.Methods)
	assert.Equal(t, []string{"retries", "spark"}, c.Attributes)

	require.Len(t, funcs, 4)
	got := byName(funcs)
	run := got["Loader.run"]
	assert.Equal(t, "Loader", run.Class)
	assert.Equal(t, 7, run.StartLine)
	assert.Equal(t, 10, run.EndLine)
	assert.Equal(t, []string{"self", "day"}, run.Parameters)
	assert.Equal(t, []string{"df.select", "helper", "self.read"}, run.Calls)
	assert.Equal(t, []string{"self.spark.table"}, got["Loader.read"].Calls)

	helper := got["helper"]
	assert.False(t, helper.IsMethod())
	assert.Equal(t, []string{"df"}, helper.Parameters)
	assert.Equal(t, []string{"log"}, helper.Calls)
	assert.Equal(t, "helper", funcs[3].Name, "sorted by line")
}

func TestExtract_Java(t *testing.T) {
	src := `public class CardJob extends BaseJob implements Runnable, Serializable {
    private String table = "gdr_card_acct";
    private int a, b;

    public void run() {
        load(table);
        this.audit.write("x");
    }

    void load(String name) {
        Util.log(name);
    }
}
`
	classes, funcs := extract(t, "src/CardJob.java", core.LangJava, src)

	require.Len(t, classes, 1)
	assert.Equal(t, "CardJob", classes[0].Name)
	assert.Equal(t, []string{"BaseJob", "Runnable", "Serializable"}, classes[0].Bases)
	assert.Equal(t, []string{"run", "load"}, classes[0].Methods)
	assert.Equal(t, []string{"a", "b", "table"}, classes[0].Attributes)

	got := byName(funcs)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"load", "this.audit.write"}, got["CardJob.run"].Calls)
	assert.Equal(t, []string{"name"}, got["CardJob.load"].Parameters)
	assert.Equal(t, []string{"Util.log"}, got["CardJob.load"].Calls)
}

func TestExtract_Scala(t *testing.T) {
	src := `object Job extends App {
  val table = "gdr_card_acct"
  def run(day: String): Unit = {
    load(day)
  }
}
`
	classes, funcs := extract(t, "src/Job.scala", core.LangScala, src)

	require.Len(t, classes, 1)
	assert.Equal(t, "Job", classes[0].Name)
	assert.Contains(t, classes[0].Bases, "App")
	assert.Equal(t, []string{"run"}, classes[0].Methods)
	assert.Equal(t, []string{"table"}, classes[0].Attributes)

	require.Len(t, funcs, 1)
	assert.Equal(t, "Job.run", funcs[0].QualifiedName())
	assert.Equal(t, []string{"day"}, funcs[0].Parameters)
	assert.Equal(t, []string{"load"}, funcs[0].Calls)
}

func TestExtract_Shell(t *testing.T) {
	src := `extract() {
  hive -f load.hql
}
run_all() {
  extract
  echo done
}
run_all
`
	classes, funcs := extract(t, "bin/run.sh", core.LangShell, src)

	assert.Empty(t, classes)
	require.Len(t, funcs, 2)
	assert.Equal(t, "extract", funcs[0].Name)
	assert.Equal(t, []string{"hive"}, funcs[0].Calls)
	assert.Equal(t, "run_all", funcs[1].Name)
	assert.Equal(t, []string{"echo", "extract"}, funcs[1].Calls)
	assert.Equal(t, 4, funcs[1].StartLine)
	assert.Equal(t, 7, funcs[1].EndLine)
}

func TestExtract_NoGrammar(t *testing.T) {
	classes, funcs := extract(t, "a.sql", core.LangSQL, "SELECT 1;")
	assert.Nil(t, classes)
	assert.Nil(t, funcs)
}
