package views

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/legacyscan/internal/dag"
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/lineage"
)

// StatementID returns the view node ID of a statement.
func StatementID(path string, index int) string {
	return fmt.Sprintf("%s@%d", path, index)
}

// QueryDependency projects statement-to-statement dependencies: A points
// at B when B reads a table that A writes. Nodes carry the ID of the block
// that owns the statement and, when the view is acyclic, a topological order.
func QueryDependency(in Input) View {
	b := newBuilder(NameQueryDependency)

	type stmtRef struct {
		id   string
		stmt core.AnalyzedStatement
	}
	var stmts []stmtRef
	readers := make(map[string][]string) // table ID -> statement IDs
	for _, f := range in.files() {
		for _, s := range f.Statements {
			if !s.ReadsOrWrites() {
				continue
			}
			id := StatementID(f.Path, s.Index)
			stmts = append(stmts, stmtRef{id, s})
			b.node(Node{
				ID:    id,
				Label: fmt.Sprintf("%s:%s %s", f.Path, lines(s.StartLine, s.EndLine), s.Kind),
				Type:  string(s.Kind),
				Attrs: map[string]string{
					"file":  f.Path,
					"lines": lines(s.StartLine, s.EndLine),
					"block": core.BlockID(f.Path, s.Block),
				},
			})
			for _, t := range s.Sources {
				key := lineage.TableID(t)
				readers[key] = append(readers[key], id)
			}
		}
	}

	d := dag.NewGraph()
	for _, s := range stmts {
		d.AddNode(s.id, nil)
	}
	for _, s := range stmts {
		for _, t := range s.stmt.Targets {
			for _, r := range readers[lineage.TableID(t)] {
				if r == s.id {
					continue
				}
				b.edge(s.id, r, "reads_from", in.tableLabel(t), 1)
				// both statements were added above and r != s.id
				_ = d.AddEdge(s.id, r)
			}
		}
	}

	if cyclic, path := d.HasCycle(); cyclic {
		b.warn("cycle: %s", strings.Join(path, " -> "))
		return b.build()
	}
	order, _ := d.TopologicalSort()
	for i, n := range order {
		b.attr(n.ID, "order", strconv.Itoa(i))
	}
	return b.build()
}

// ERD projects tables as entities. An entity lists the dictionary fields
// matched against it; join edges come from the joins of each statement and
// feeds edges from blocks that read one table and write another.
func ERD(in Input) View {
	b := newBuilder(NameERD)
	entity := func(name string) string {
		id := lineage.TableID(name)
		b.node(Node{ID: id, Label: in.tableLabel(name), Type: "entity"})
		return id
	}

	if in.Graph != nil {
		for _, n := range in.Graph.Nodes() {
			if n.Type == lineage.TableNode {
				entity(n.Name)
			}
		}
	}

	fields := make(map[string]map[string]bool)
	for _, o := range in.Occurrences {
		if o.Entry.Field == "" || o.ResolvedTable == "" {
			continue
		}
		id := entity(o.ResolvedTable)
		if fields[id] == nil {
			fields[id] = make(map[string]bool)
		}
		fields[id][strings.ToLower(o.Entry.Field)] = true
	}
	for id, set := range fields {
		names := make([]string, 0, len(set))
		for f := range set {
			names = append(names, f)
		}
		sort.Strings(names)
		b.attr(id, "fields", strings.Join(names, ", "))
	}

	for _, f := range in.files() {
		for _, s := range f.Statements {
			for _, j := range s.Joins {
				left, right := entity(j.Left), entity(j.Right)
				if left == right {
					continue
				}
				if right < left {
					left, right = right, left
				}
				b.edge(left, right, "join", strings.Join(j.On, ", "), 1)
			}
		}
		for _, blk := range f.Blocks {
			for _, s := range blk.Sources {
				for _, t := range blk.Targets {
					from, to := entity(s), entity(t)
					if from != to {
						b.edge(from, to, "feeds", "feeds", 1)
					}
				}
			}
		}
	}
	return b.build()
}
