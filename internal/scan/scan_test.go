package scan

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/legacyscan/internal/source"
	"github.com/leapstack-labs/legacyscan/internal/testutil"
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/lineage"
	"github.com/leapstack-labs/legacyscan/pkg/views"
)

var dict = []core.DictionaryEntry{
	{Table: "gdr_card_acct", Field: "mbr_since_dt", Mapping: "card.member_since"},
	{Table: "target_tbl"},
}

func sources() []core.SourceFile {
	return []core.SourceFile{
		{Path: "b.sql", Language: core.LangSQL, Text: "SELECT d.mbr_since_dt FROM gdr_card_acct d WHERE d.status='A';\nSELECT * FROM target_tbl;\n"},
		{Path: "a.sql", Language: core.LangSQL, Text: "INSERT INTO target_tbl SELECT * FROM src;\n"},
		{Path: "jobs/run.sh", Language: core.LangShell, Text: "hive -f a.sql\n"},
	}
}

func TestScan(t *testing.T) {
	s := New(Options{Dictionary: dict, Logger: testutil.NewTestLogger(t)})

	res, err := s.Scan(context.Background(), sources())
	require.NoError(t, err)

	paths := make([]string, 0, len(res.Files))
	for _, fa := range res.Files {
		paths = append(paths, fa.Path)
	}
	assert.Equal(t, []string{"a.sql", "b.sql", "jobs/run.sh"}, paths)

	var fieldHits []core.Occurrence
	for _, o := range res.Occurrences {
		if o.Entry.Field == "mbr_since_dt" {
			fieldHits = append(fieldHits, o)
		}
	}
	require.Len(t, fieldHits, 1)
	assert.Equal(t, "gdr_card_acct", fieldHits[0].ResolvedTable)
	assert.Equal(t, "b.sql", fieldHits[0].FilePath)
	assert.Equal(t, 1, fieldHits[0].Line)

	_, ok := res.Graph.Node(lineage.TableID("target_tbl"))
	assert.True(t, ok)
	_, ok = res.Graph.Node(lineage.ScriptID("jobs/run.sh"))
	assert.True(t, ok)

	assert.Equal(t, 3, res.Stats.Files)
	assert.Equal(t, 2, res.Stats.ByLanguage[core.LangSQL])
	assert.Equal(t, 1, res.Stats.ByLanguage[core.LangShell])
	assert.Equal(t, 2, res.Stats.Entries)
	assert.Equal(t, 2, res.Stats.EntriesFound)
	assert.Equal(t, 4, res.Stats.Statements)
	assert.Contains(t, res.Stats.Summary(), "Entries: 2 of 2 found")
}

func TestScan_PySparkDataFrameFields(t *testing.T) {
	s := New(Options{Dictionary: dict})

	src := "from pyspark.sql import SparkSession\n" +
		"spark = SparkSession.builder.getOrCreate()\n" +
		"df = spark.table(\"gdr_card_acct\").select(\"mbr_since_dt\", \"status\")\n" +
		"df.write.saveAsTable(\"mart_cards\")\n"
	res, err := s.Scan(context.Background(), []core.SourceFile{{Path: "jobs/df.py", Language: core.LangPySpark, Text: src}})
	require.NoError(t, err)

	require.Len(t, res.Occurrences, 1)
	o := res.Occurrences[0]
	assert.Equal(t, "mbr_since_dt", o.Entry.Field)
	assert.Equal(t, "gdr_card_acct", o.ResolvedTable)
	assert.Equal(t, 3, o.Line)

	reads := res.Graph.EdgesTo(lineage.TableID("gdr_card_acct"))
	require.Len(t, reads, 1)
	assert.Equal(t, lineage.ScriptID("jobs/df.py"), reads[0].From)
}

func TestScan_OccurrenceEnclosingSymbols(t *testing.T) {
	src := "class Loader:\n" +
		"    def run(self):\n" +
		"        df = spark.table(\"gdr_card_acct\").select(\"mbr_since_dt\")\n" +
		"        return df\n"
	res, err := New(Options{Dictionary: dict}).Scan(context.Background(), []core.SourceFile{{Path: "jobs/loader.py", Language: core.LangPySpark, Text: src}})
	require.NoError(t, err)

	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "Loader.run", res.Occurrences[0].Function)
	assert.Equal(t, "Loader", res.Occurrences[0].Class)

	require.Len(t, res.Files, 1)
	require.Len(t, res.Files[0].Classes, 1)
	assert.Equal(t, []string{"run"}, res.Files[0].Classes[0].Methods)
	require.Len(t, res.Files[0].Functions, 1)
	assert.Equal(t, []string{"select", "spark.table"}, res.Files[0].Functions[0].Calls)
}

func TestScan_QueryDependencyAcrossFiles(t *testing.T) {
	res, err := New(Options{Dictionary: dict}).Scan(context.Background(), sources())
	require.NoError(t, err)

	p, err := res.Projector(4)
	require.NoError(t, err)
	v, err := p.Project(views.NameQueryDependency, views.Params{})
	require.NoError(t, err)

	require.Len(t, v.Edges, 1)
	assert.Equal(t, views.StatementID("a.sql", 0), v.Edges[0].From)
	assert.Equal(t, views.StatementID("b.sql", 1), v.Edges[0].To)
}

func TestScan_Deterministic(t *testing.T) {
	first, err := New(Options{Dictionary: dict, Workers: 1}).Scan(context.Background(), sources())
	require.NoError(t, err)
	second, err := New(Options{Dictionary: dict, Workers: 8}).Scan(context.Background(), sources())
	require.NoError(t, err)

	assert.Equal(t, first.Occurrences, second.Occurrences)
	assert.Equal(t, first.Report, second.Report)
	assert.Equal(t, first.Graph.Edges(), second.Graph.Edges())
}

func TestScan_Progress(t *testing.T) {
	var (
		mu  sync.Mutex
		got []float64
	)
	s := New(Options{Dictionary: dict, Workers: 2, Progress: func(f float64) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, f)
	}})

	_, err := s.Scan(context.Background(), sources())
	require.NoError(t, err)

	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
	assert.InDelta(t, 1.0, got[len(got)-1], 1e-9)
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var last float64
	s := New(Options{Dictionary: dict, Progress: func(f float64) { last = f }, Workers: 1})
	res, err := s.Scan(ctx, sources())

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Stats.Skipped)
	assert.Empty(t, res.Files)
	assert.InDelta(t, 1.0, last, 1e-9)
}

func TestScan_Errors(t *testing.T) {
	s := New(Options{})

	_, err := s.Scan(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptySourceSet)

	_, err = s.ScanSet(context.Background(), &source.Set{})
	assert.ErrorIs(t, err, ErrEmptySourceSet)

	_, err = s.ScanSet(context.Background(), &source.Set{
		Diagnostics: []core.Diagnostic{{Kind: core.UnreadableFile, Path: "x.sql", Message: "denied"}},
	})
	assert.ErrorIs(t, err, ErrNoReadableSources)
}

func TestScanSet_CarriesLoaderDiagnostics(t *testing.T) {
	set := &source.Set{
		Files:       sources(),
		Diagnostics: []core.Diagnostic{{Kind: core.UnreadableFile, Path: "big.sql", Message: "too large"}},
	}
	res, err := New(Options{Dictionary: dict}).ScanSet(context.Background(), set)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Report.Count(core.UnreadableFile))
	assert.Equal(t, 1, res.Stats.Failed)
}

func TestScan_DictionaryAmbiguity(t *testing.T) {
	entries := append([]core.DictionaryEntry{{Table: "GDR_CARD_ACCT", Field: "MBR_SINCE_DT"}}, dict...)
	res, err := New(Options{Dictionary: entries}).Scan(context.Background(), sources())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Report.Count(core.DictionaryAmbiguity))
	assert.Equal(t, 2, res.Stats.Entries)
}

func TestScan_CommentedTableReference(t *testing.T) {
	src := "-- retired: INSERT INTO target_tbl SELECT * FROM src;\nSELECT * FROM src;\n"
	res, err := New(Options{Dictionary: dict}).Scan(context.Background(), []core.SourceFile{{Path: "old.sql", Language: core.LangSQL, Text: src}})
	require.NoError(t, err)

	assert.Empty(t, res.Occurrences)
	assert.Equal(t, 1, res.Report.Count(core.TextReference))
	_, ok := res.Graph.Node(lineage.TableID("target_tbl"))
	assert.False(t, ok, "commented-out writes are not lineage")
}

func TestScan_LoadedTree(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"sql/load.hql":  "INSERT OVERWRITE TABLE stage SELECT a.mbr_since_dt FROM gdr_card_acct a;\n",
		"sql/mart.hql":  "INSERT INTO mart SELECT * FROM stage;\n",
		"bin/run.sh":    "hive -f sql/load.hql\nhive -f sql/mart.hql\n",
		"docs/notes.md": "ignored\n",
	})
	set, err := source.NewLoader(source.Options{}).Load(context.Background(), root)
	require.NoError(t, err)

	res, err := New(Options{Dictionary: dict}).ScanSet(context.Background(), set)
	require.NoError(t, err)

	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "sql/load.hql", res.Occurrences[0].FilePath)

	deps := res.Graph.EdgesFrom(lineage.ScriptID("bin/run.sh"))
	var targets []string
	for _, e := range deps {
		if e.Kind == lineage.DependsOn {
			targets = append(targets, e.To)
		}
	}
	assert.Equal(t, []string{lineage.ScriptID("sql/load.hql"), lineage.ScriptID("sql/mart.hql")}, targets)
	assert.Empty(t, res.Report.Filter(core.UnresolvedImport))
}

func TestWatch(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"a.sql": "SELECT 1;\n"})
	s := New(Options{Logger: testutil.NewTestLogger(t)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, []string{root}, 20*time.Millisecond, func(_ context.Context, changed []string) error {
			calls <- changed
			return nil
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	testutil.WriteFile(t, root, "b.sql", "SELECT 2;\n")
	testutil.WriteFile(t, root, "notes.md", "ignored\n")

	select {
	case changed := <-calls:
		assert.Equal(t, []string{filepath.Join(root, "b.sql")}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no rescan after a file change")
	}

	cancel()
	require.NoError(t, <-done)
}
