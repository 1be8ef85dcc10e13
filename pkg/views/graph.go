package views

import (
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/legacyscan/internal/dag"
	"github.com/leapstack-labs/legacyscan/pkg/lineage"
)

// Defaults for LineageParams.
const (
	DefaultHops     = 1
	DefaultMaxNodes = 200
)

// LineageParams narrows the lineage view.
type LineageParams struct {
	// Center is a node ID, a script path or a table name.
	Center string
	// Hops is the undirected distance kept around Center. Zero means
	// DefaultHops.
	Hops int
	// Keyword keeps nodes whose name contains it, case-insensitively.
	Keyword string
	// MaxNodes caps an uncentered view. Zero means DefaultMaxNodes.
	MaxNodes int
}

// WorkflowParams configures the workflow view.
type WorkflowParams struct {
	IncludeTables bool
}

// Lineage projects the whole lineage graph, optionally narrowed to the
// neighbourhood of a center node or to nodes matching a keyword.
func Lineage(in Input, p LineageParams) View {
	b := newBuilder(NameLineage)
	if in.Graph == nil {
		return b.build()
	}
	hops := p.Hops
	if hops <= 0 {
		hops = DefaultHops
	}
	maxNodes := p.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	d := in.Graph.DAG()
	keep := d.NodeIDs()

	if p.Center != "" {
		center, ok := findNode(in.Graph, p.Center)
		if !ok {
			b.warn("center %q matches no node", p.Center)
			return b.build()
		}
		keep = d.Neighborhood([]string{center}, hops)
		if p.Keyword != "" {
			keep = filter(keep, func(id string) bool { return id == center || matchesKeyword(in.Graph, id, p.Keyword) })
		}
	} else if p.Keyword != "" {
		matched := filter(keep, func(id string) bool { return matchesKeyword(in.Graph, id, p.Keyword) })
		keep = d.Neighborhood(matched, 1)
	}

	if p.Center == "" && len(keep) > maxNodes {
		b.warn("showing the %d most connected of %d nodes", maxNodes, len(keep))
		keep = topByDegree(d, keep, maxNodes)
	}

	kept := make(map[string]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
		n, _ := in.Graph.Node(id)
		b.node(graphNode(n))
		b.attr(id, "degree", strconv.Itoa(d.Degree(id)))
	}
	for _, e := range in.Graph.Edges() {
		if kept[e.From] && kept[e.To] {
			b.edge(e.From, e.To, string(e.Kind), string(e.Kind), e.Weight)
		}
	}
	return b.build()
}

// Workflow projects the script dependency graph. With IncludeTables the
// read and write edges and their tables are added. Nodes with nothing
// upstream are marked entry and nodes with nothing downstream terminal;
// nodes carry their execution level when the graph is acyclic.
func Workflow(in Input, p WorkflowParams) View {
	b := newBuilder(NameWorkflow)
	if in.Graph == nil {
		return b.build()
	}

	kinds := []lineage.EdgeKind{lineage.DependsOn}
	if p.IncludeTables {
		kinds = append(kinds, lineage.Reads, lineage.Writes)
	}
	var ids []string
	for _, n := range in.Graph.Nodes() {
		if n.Type == lineage.ScriptNode || p.IncludeTables {
			b.node(graphNode(n))
			ids = append(ids, n.ID)
		}
	}
	want := make(map[lineage.EdgeKind]bool)
	for _, k := range kinds {
		want[k] = true
	}
	for _, e := range in.Graph.Edges() {
		if want[e.Kind] {
			b.edge(e.From, e.To, string(e.Kind), string(e.Kind), e.Weight)
		}
	}

	d := in.Graph.DAG(kinds...).Subgraph(ids)
	for _, id := range d.GetRoots() {
		b.attr(id, "entry", "true")
	}
	for _, id := range d.GetLeaves() {
		b.attr(id, "terminal", "true")
	}
	if cyclic, path := d.HasCycle(); cyclic {
		b.warn("cycle: %s", strings.Join(path, " -> "))
		return b.build()
	}
	levels, _ := d.GetExecutionLevels()
	for level, members := range levels {
		for _, id := range members {
			b.attr(id, "level", strconv.Itoa(level))
		}
	}
	return b.build()
}

func graphNode(n lineage.Node) Node {
	out := Node{ID: n.ID, Label: n.Name, Type: string(n.Type)}
	if n.Language != "" {
		out.Attrs = map[string]string{"language": string(n.Language)}
	}
	return out
}

// findNode accepts a node ID, a script path or a table name.
func findNode(g *lineage.Graph, ref string) (string, bool) {
	for _, id := range []string{ref, lineage.ScriptID(ref), lineage.TableID(ref)} {
		if _, ok := g.Node(id); ok {
			return id, true
		}
	}
	for _, n := range g.Nodes() {
		if strings.EqualFold(n.Name, ref) {
			return n.ID, true
		}
	}
	return "", false
}

func matchesKeyword(g *lineage.Graph, id, keyword string) bool {
	n, _ := g.Node(id)
	return strings.Contains(strings.ToLower(n.Name), strings.ToLower(keyword))
}

// topByDegree keeps the n best connected nodes, ties broken by ID.
func topByDegree(d *dag.Graph, ids []string, n int) []string {
	ranked := append([]string(nil), ids...)
	sort.SliceStable(ranked, func(i, j int) bool {
		di, dj := d.Degree(ranked[i]), d.Degree(ranked[j])
		if di != dj {
			return di > dj
		}
		return ranked[i] < ranked[j]
	})
	return ranked[:n]
}

func filter(ids []string, keep func(string) bool) []string {
	var out []string
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}
