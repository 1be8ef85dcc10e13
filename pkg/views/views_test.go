package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/legacyscan/pkg/alias"
	"github.com/leapstack-labs/legacyscan/pkg/block"
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/lexer"
	"github.com/leapstack-labs/legacyscan/pkg/lineage"
	"github.com/leapstack-labs/legacyscan/pkg/splitter"
	"github.com/leapstack-labs/legacyscan/pkg/token"
)

// analyzeFile runs the per-file pipeline without dictionary matching.
func analyzeFile(t *testing.T, path, src string) core.FileAnalysis {
	t.Helper()
	lang, ok := core.LanguageFromPath(path)
	require.True(t, ok, path)

	stmts, _ := splitter.Split(path, lang, src)
	toks, _ := lexer.TokenizeAt(src, 1, lexer.OptionsFor(lang))
	analyzed := make([]core.AnalyzedStatement, 0, len(stmts))
	for _, s := range stmts {
		var own []token.Token
		for _, tok := range toks {
			if s.Contains(tok.Pos.Line) {
				own = append(own, tok)
			}
		}
		analyzed = append(analyzed, block.Facts(s, own, alias.ResolveFor(lang, own)))
	}
	blocks := block.Extract(path, lang, analyzed)
	return core.FileAnalysis{Path: path, Language: lang, Statements: analyzed, Blocks: blocks}
}

func input(files ...core.FileAnalysis) Input {
	g, _ := lineage.Build(files)
	return Input{Graph: g, Files: files}
}

type edge struct {
	from, to, kind string
}

func edges(v View) []edge {
	out := []edge{}
	for _, e := range v.Edges {
		out = append(out, edge{e.From, e.To, e.Kind})
	}
	return out
}

func nodeIDs(v View) []string {
	out := []string{}
	for _, n := range v.Nodes {
		out = append(out, n.ID)
	}
	return out
}

func blk(path string, i int, sources, targets []string) core.Block {
	return core.Block{ID: core.BlockID(path, i), FilePath: path, Index: i, Role: core.BlockSQL, StartLine: i + 1, EndLine: i + 1, Sources: sources, Targets: targets}
}

func TestQueryDependency_CrossFile(t *testing.T) {
	a := analyzeFile(t, "a.sql", "INSERT INTO target_tbl SELECT * FROM src;\nSELECT 1;\n")
	b := analyzeFile(t, "b.sql", "SELECT * FROM target_tbl;\n")

	v := QueryDependency(input(a, b))

	require.Len(t, v.Edges, 1)
	e := v.Edges[0]
	assert.Equal(t, StatementID("a.sql", 0), e.From)
	assert.Equal(t, StatementID("b.sql", 0), e.To)
	assert.Equal(t, "target_tbl", e.Label)

	from, ok := v.Node(e.From)
	require.True(t, ok)
	to, ok := v.Node(e.To)
	require.True(t, ok)
	assert.Equal(t, "a.sql#0", from.Attrs["block"])
	assert.Equal(t, "b.sql#0", to.Attrs["block"])
	assert.Equal(t, "0", from.Attrs["order"])
	assert.Equal(t, "1", to.Attrs["order"])

	assert.Equal(t, []string{"a.sql@0", "b.sql@0"}, nodeIDs(v), "statements without tables are not nodes")
}

func TestQueryDependency_SelfReadIsNotAnEdge(t *testing.T) {
	f := analyzeFile(t, "a.sql", "INSERT INTO t SELECT * FROM t;\n")
	v := QueryDependency(input(f))
	assert.Empty(t, v.Edges)
	assert.Empty(t, v.Warnings)
}

func TestQueryDependency_Cycle(t *testing.T) {
	f := analyzeFile(t, "a.sql", "INSERT INTO x SELECT * FROM y;\nINSERT INTO y SELECT * FROM x;\n")
	v := QueryDependency(input(f))
	assert.Len(t, v.Edges, 2)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "cycle")
	for _, n := range v.Nodes {
		assert.NotContains(t, n.Attrs, "order")
	}
}

func TestETL(t *testing.T) {
	files := []core.FileAnalysis{
		{Path: "load.hql", Blocks: []core.Block{
			blk("load.hql", 0, []string{"raw"}, nil),
			blk("load.hql", 1, nil, nil),
			blk("load.hql", 2, []string{"raw"}, []string{"Stage"}),
		}},
		{Path: "mart.hql", Blocks: []core.Block{
			blk("mart.hql", 0, []string{"stage"}, []string{"mart"}),
			blk("mart.hql", 1, nil, []string{"audit"}),
		}},
	}

	v := ETL(input(files...))

	assert.Equal(t, []string{"load.hql#0", "load.hql#2", "mart.hql#0", "mart.hql#1"}, nodeIDs(v))
	assert.Equal(t, []edge{
		{"load.hql#0", "load.hql#2", "next"},
		{"load.hql#2", "mart.hql#0", "feeds"},
		{"mart.hql#0", "mart.hql#1", "next"},
	}, edges(v))

	stages := map[string]string{}
	for _, n := range v.Nodes {
		stages[n.ID] = n.Type
	}
	assert.Equal(t, map[string]string{
		"load.hql#0": "Extract",
		"load.hql#2": "Transform",
		"mart.hql#0": "Transform",
		"mart.hql#1": "Load",
	}, stages)
	assert.Equal(t, "Stage", v.Edges[1].Label)
}

func TestDFD(t *testing.T) {
	files := []core.FileAnalysis{
		{Path: "x.sql", Blocks: []core.Block{
			blk("x.sql", 0, []string{"a"}, []string{"b"}),
			blk("x.sql", 1, nil, nil),
		}},
	}

	v := DFD(input(files...))
	assert.Equal(t, []string{"table:a", "table:b", "x.sql#0"}, nodeIDs(v))
	assert.Equal(t, []edge{
		{"table:a", "x.sql#0", "read"},
		{"x.sql#0", "table:b", "write"},
	}, edges(v))

	p, ok := v.Node("x.sql#0")
	require.True(t, ok)
	assert.Equal(t, TypeProcess, p.Type)
	assert.Equal(t, "Transform", p.Attrs["stage"])
	s, _ := v.Node("table:a")
	assert.Equal(t, TypeDataStore, s.Type)
}

func TestERD(t *testing.T) {
	f := analyzeFile(t, "m.sql", "INSERT INTO mart SELECT a.x FROM acct a JOIN cust c ON a.cid = c.id;\n")
	in := input(f)
	in.Occurrences = []core.Occurrence{
		{Entry: core.DictionaryEntry{Table: "acct", Field: "status"}, ResolvedTable: "acct"},
		{Entry: core.DictionaryEntry{Table: "acct", Field: "Open_Dt"}, ResolvedTable: "ACCT"},
		{Entry: core.DictionaryEntry{Table: "acct"}, ResolvedTable: "acct"},
	}

	v := ERD(in)

	assert.Equal(t, []string{"table:acct", "table:cust", "table:mart"}, nodeIDs(v))
	acct, _ := v.Node("table:acct")
	assert.Equal(t, "open_dt, status", acct.Attrs["fields"])

	assert.Equal(t, []edge{
		{"table:acct", "table:cust", "join"},
		{"table:acct", "table:mart", "feeds"},
		{"table:cust", "table:mart", "feeds"},
	}, edges(v))
	assert.Equal(t, "a.cid = c.id", v.Edges[0].Label)
}

func TestControlFlow(t *testing.T) {
	path := "job.py"
	blocks := []core.Block{
		{ID: core.BlockID(path, 0), FilePath: path, Role: core.BlockData},
		{ID: core.BlockID(path, 1), FilePath: path, Role: core.BlockControl, Control: core.ControlIf},
		{ID: core.BlockID(path, 2), FilePath: path, Role: core.BlockData},
		{ID: core.BlockID(path, 3), FilePath: path, Role: core.BlockControl, Control: core.ControlFor},
	}
	files := []core.FileAnalysis{
		{Path: path, Blocks: blocks},
		{Path: "other.sh", Blocks: []core.Block{{ID: "other.sh#0", FilePath: "other.sh", Role: core.BlockData}}},
	}

	v := ControlFlow(input(files...), ControlFlowParams{File: path})
	assert.Equal(t, []edge{
		{"job.py#0", "job.py#1", "conditional"},
		{"job.py#0", "job.py#2", "skip"},
		{"job.py#1", "job.py#2", "next"},
		{"job.py#2", "job.py#3", "next"},
		{"job.py#3", "job.py#3", "loop"},
	}, edges(v))
	assert.Len(t, v.Nodes, 4)
	n, _ := v.Node("job.py#1")
	assert.Equal(t, "if", n.Attrs["control"])

	all := ControlFlow(input(files...), ControlFlowParams{})
	assert.Len(t, all.Nodes, 5)

	missing := ControlFlow(input(files...), ControlFlowParams{File: "nope.py"})
	assert.Empty(t, missing.Nodes)
	assert.Len(t, missing.Warnings, 1)
}

func lineageInput() Input {
	return input(
		core.FileAnalysis{Path: "load.sh", Language: core.LangShell, Blocks: []core.Block{
			{ID: "load.sh#0", Imports: []core.ImportRef{{Raw: "mart.hql", Style: core.ImportPath}}},
		}},
		core.FileAnalysis{Path: "mart.hql", Language: core.LangHQL, Blocks: []core.Block{
			blk("mart.hql", 0, []string{"stage_acct"}, []string{"mart_acct"}),
		}},
		core.FileAnalysis{Path: "feed.py", Language: core.LangPySpark, Blocks: []core.Block{
			blk("feed.py", 0, []string{"raw_acct"}, []string{"stage_acct"}),
		}},
	)
}

func TestLineage(t *testing.T) {
	in := lineageInput()

	t.Run("whole graph", func(t *testing.T) {
		v := Lineage(in, LineageParams{})
		assert.Len(t, v.Nodes, 6)
		assert.Len(t, v.Edges, 5)
		assert.Empty(t, v.Warnings)
		n, _ := v.Node("script:mart.hql")
		assert.Equal(t, "3", n.Attrs["degree"])
		assert.Equal(t, "hql", n.Attrs["language"])
	})

	t.Run("center with default hops", func(t *testing.T) {
		v := Lineage(in, LineageParams{Center: "stage_acct"})
		assert.Equal(t, []string{"script:feed.py", "script:mart.hql", "table:stage_acct"}, nodeIDs(v))
		assert.Len(t, v.Edges, 2)
	})

	t.Run("center by path with two hops", func(t *testing.T) {
		v := Lineage(in, LineageParams{Center: "feed.py", Hops: 2})
		assert.Equal(t, []string{"script:feed.py", "script:mart.hql", "table:raw_acct", "table:stage_acct"}, nodeIDs(v))
	})

	t.Run("unknown center", func(t *testing.T) {
		v := Lineage(in, LineageParams{Center: "nope"})
		assert.Empty(t, v.Nodes)
		assert.Len(t, v.Warnings, 1)
	})

	t.Run("keyword keeps neighbours", func(t *testing.T) {
		v := Lineage(in, LineageParams{Keyword: "RAW"})
		assert.Equal(t, []string{"script:feed.py", "table:raw_acct"}, nodeIDs(v))
	})

	t.Run("keyword with center filters", func(t *testing.T) {
		v := Lineage(in, LineageParams{Center: "mart.hql", Keyword: "acct"})
		assert.Equal(t, []string{"script:mart.hql", "table:mart_acct", "table:stage_acct"}, nodeIDs(v))
	})

	t.Run("max nodes keeps the best connected", func(t *testing.T) {
		v := Lineage(in, LineageParams{MaxNodes: 2})
		assert.Equal(t, []string{"script:feed.py", "script:mart.hql"}, nodeIDs(v), "degree ties break by ID")
		assert.Len(t, v.Warnings, 1)
	})
}

func TestWorkflow(t *testing.T) {
	in := lineageInput()

	v := Workflow(in, WorkflowParams{})
	assert.Equal(t, []string{"script:feed.py", "script:load.sh", "script:mart.hql"}, nodeIDs(v))
	assert.Equal(t, []edge{{"script:load.sh", "script:mart.hql", "depends_on"}}, edges(v))
	levels := map[string]string{}
	for _, n := range v.Nodes {
		levels[n.ID] = n.Attrs["level"]
	}
	assert.Equal(t, map[string]string{"script:feed.py": "0", "script:load.sh": "1", "script:mart.hql": "0"}, levels)

	ends := map[string][2]string{}
	for _, n := range v.Nodes {
		ends[n.ID] = [2]string{n.Attrs["entry"], n.Attrs["terminal"]}
	}
	assert.Equal(t, map[string][2]string{
		"script:feed.py":  {"true", "true"},
		"script:load.sh":  {"", "true"},
		"script:mart.hql": {"true", ""},
	}, ends, "load.sh runs mart.hql, so mart.hql is an entry and load.sh terminal")

	withTables := Workflow(in, WorkflowParams{IncludeTables: true})
	assert.Len(t, withTables.Nodes, 6)
	assert.Len(t, withTables.Edges, 5)
	n, _ := withTables.Node("script:load.sh")
	assert.Equal(t, "4", n.Attrs["level"], "raw -> feed -> stage -> mart.hql -> load.sh")
}

func TestWorkflow_Cycle(t *testing.T) {
	in := input(
		core.FileAnalysis{Path: "a.sh", Blocks: []core.Block{{ID: "a.sh#0", Imports: []core.ImportRef{{Raw: "b.sh", Style: core.ImportPath}}}}},
		core.FileAnalysis{Path: "b.sh", Blocks: []core.Block{{ID: "b.sh#0", Imports: []core.ImportRef{{Raw: "a.sh", Style: core.ImportPath}}}}},
	)
	v := Workflow(in, WorkflowParams{})
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "cycle")
	for _, n := range v.Nodes {
		assert.Empty(t, n.Attrs["entry"], "a cycle has no entry")
		assert.Empty(t, n.Attrs["level"])
	}
}

func TestProject(t *testing.T) {
	in := lineageInput()
	for _, name := range Names() {
		v, err := Project(in, name, Params{})
		require.NoError(t, err, name)
		assert.Equal(t, name, v.Name)
	}

	_, err := Project(in, "gantt", Params{})
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestProjector(t *testing.T) {
	p, err := NewProjector(lineageInput(), 2)
	require.NoError(t, err)
	assert.Equal(t, Names(), p.Names())

	first, err := p.Project(NameLineage, Params{})
	require.NoError(t, err)
	again, err := p.Project(NameLineage, Params{})
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, p.Cached())

	_, err = p.Project(NameLineage, Params{LineageParams: LineageParams{Center: "feed.py"}})
	require.NoError(t, err)
	_, err = p.Project(NameETL, Params{})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Cached(), "least recently used projection is evicted")

	_, err = p.Project("nope", Params{})
	assert.ErrorIs(t, err, ErrUnknownView)
}

func codeInput() Input {
	job := core.FileAnalysis{
		Path:     "jobs/load.py",
		Language: core.LangPySpark,
		Classes: []core.Class{
			{Name: "Loader", FilePath: "jobs/load.py", StartLine: 1, EndLine: 10, Bases: []string{"base.Job"}, Methods: []string{"run", "read"}, Attributes: []string{"spark"}},
			{Name: "Job", FilePath: "jobs/load.py", StartLine: 12, EndLine: 14, Bases: []string{"Base"}},
		},
		Functions: []core.Function{
			{Name: "run", Class: "Loader", FilePath: "jobs/load.py", StartLine: 2, EndLine: 5, Parameters: []string{"self"}, Calls: []string{"helper", "self.read", "spark.table"}},
			{Name: "read", Class: "Loader", FilePath: "jobs/load.py", StartLine: 7, EndLine: 10, Calls: []string{"self.read"}},
			{Name: "helper", FilePath: "jobs/load.py", StartLine: 16, EndLine: 17, Calls: []string{"emit"}},
		},
	}
	util := core.FileAnalysis{
		Path:     "jobs/util.py",
		Language: core.LangPySpark,
		Functions: []core.Function{
			{Name: "emit", FilePath: "jobs/util.py", StartLine: 1, EndLine: 2},
			{Name: "helper", FilePath: "jobs/util.py", StartLine: 4, EndLine: 5, Calls: []string{"emit"}},
		},
	}
	return Input{Files: []core.FileAnalysis{job, util}}
}

func TestCalls(t *testing.T) {
	v := Calls(codeInput())

	run := "func:jobs/load.py#Loader.run"
	read := "func:jobs/load.py#Loader.read"
	helper := "func:jobs/load.py#helper"
	emit := "func:jobs/util.py#emit"
	assert.Equal(t, []string{read, run, helper, emit, "func:jobs/util.py#helper"}, nodeIDs(v))

	assert.Equal(t, []edge{
		{run, read, "calls"},
		{run, helper, "calls"},
		{helper, emit, "calls"},
		{"func:jobs/util.py#helper", emit, "calls"},
	}, edges(v), "same-file helper wins; self-calls are dropped")

	n, ok := v.Node(run)
	require.True(t, ok)
	assert.Equal(t, TypeMethod, n.Type)
	assert.Equal(t, "Loader.run", n.Label)
	assert.Equal(t, "Loader", n.Attrs["class"])
	assert.Equal(t, "2-5", n.Attrs["lines"])
	assert.Equal(t, "self", n.Attrs["parameters"])
	assert.Equal(t, "1", n.Attrs["external"], "spark.table is not declared")

	n, _ = v.Node(emit)
	assert.Equal(t, TypeFunction, n.Type)
	assert.Empty(t, n.Attrs["external"])
	assert.Empty(t, v.Warnings)
}

func TestCalls_Ambiguous(t *testing.T) {
	in := Input{Files: []core.FileAnalysis{
		{Path: "a.py", Functions: []core.Function{{Name: "load", FilePath: "a.py", StartLine: 1, EndLine: 2}}},
		{Path: "b.py", Functions: []core.Function{{Name: "load", FilePath: "b.py", StartLine: 1, EndLine: 2}}},
		{Path: "c.py", Functions: []core.Function{{Name: "main", FilePath: "c.py", StartLine: 1, EndLine: 3, Calls: []string{"load"}}}},
	}}
	v := Calls(in)
	assert.Empty(t, v.Edges)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "1 calls match more than one function")
}

func TestClasses(t *testing.T) {
	v := Classes(codeInput())

	loader := "class:jobs/load.py#Loader"
	job := "class:jobs/load.py#Job"
	assert.Equal(t, []string{"class:Base", job, loader}, nodeIDs(v))
	assert.Equal(t, []edge{
		{job, "class:Base", "inherits"},
		{loader, job, "inherits"},
	}, edges(v), "base.Job resolves to the declared Job")

	n, ok := v.Node(loader)
	require.True(t, ok)
	assert.Equal(t, TypeClass, n.Type)
	assert.Equal(t, "run, read", n.Attrs["methods"])
	assert.Equal(t, "spark", n.Attrs["attributes"])
	assert.Equal(t, "1-10", n.Attrs["lines"])

	n, _ = v.Node("class:Base")
	assert.Equal(t, TypeExternal, n.Type)
}
