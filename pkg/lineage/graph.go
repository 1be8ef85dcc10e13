// Package lineage builds the lineage graph of a scan: scripts, the tables
// they read and write, and the scripts they depend on.
package lineage

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/legacyscan/internal/dag"
	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// NodeType is the kind of a graph node.
type NodeType string

// Node types.
const (
	ScriptNode NodeType = "script"
	TableNode  NodeType = "table"
)

// EdgeKind is the relationship an edge records.
type EdgeKind string

// Edge kinds. Every edge starts at a script.
const (
	Reads     EdgeKind = "reads"
	Writes    EdgeKind = "writes"
	DependsOn EdgeKind = "depends_on"
)

// EdgeKinds returns all edge kinds.
func EdgeKinds() []EdgeKind {
	return []EdgeKind{Reads, Writes, DependsOn}
}

// Node is a script or a table.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	// Name is the file path of a script, or the first spelling of a table.
	Name     string        `json:"name"`
	Language core.Language `json:"language,omitempty"`
}

// Edge is a weighted relationship between two nodes.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
	// Weight is the number of blocks that contributed the edge.
	Weight int `json:"weight"`
	// Blocks lists the contributing block IDs.
	Blocks []string `json:"blocks,omitempty"`
}

// ScriptID returns the node ID of a script.
func ScriptID(path string) string {
	return "script:" + path
}

// TableID returns the node ID of a table. Table names compare
// case-insensitively, and qualifier segments that are only a template
// placeholder (${DB}.t, {schema}.t) are dropped, so t names one node
// whatever database the placeholder expands to.
func TableID(name string) string {
	parts := strings.Split(name, ".")
	kept := parts[:0]
	for i, p := range parts {
		if i < len(parts)-1 && p != "" && templatePattern.ReplaceAllString(p, "") == "" {
			continue
		}
		kept = append(kept, p)
	}
	return "table:" + strings.ToLower(strings.Join(kept, "."))
}

type edgeKey struct {
	from, to string
	kind     EdgeKind
}

// Graph is the lineage graph of one scan. It is immutable once built.
type Graph struct {
	nodes map[string]*Node
	edges map[edgeKey]*Edge
	out   map[string][]*Edge
	in    map[string][]*Edge
}

func newGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[edgeKey]*Edge),
		out:   make(map[string][]*Edge),
		in:    make(map[string][]*Edge),
	}
}

// addNode keeps the first node registered under an ID.
func (g *Graph) addNode(n Node) {
	if _, ok := g.nodes[n.ID]; !ok {
		g.nodes[n.ID] = &n
	}
}

// addEdge adds one block's contribution to an edge.
func (g *Graph) addEdge(from, to string, kind EdgeKind, blockID string) {
	key := edgeKey{from, to, kind}
	e, ok := g.edges[key]
	if !ok {
		e = &Edge{From: from, To: to, Kind: kind}
		g.edges[key] = e
		g.out[from] = append(g.out[from], e)
		g.in[to] = append(g.in[to], e)
	}
	for _, b := range e.Blocks {
		if b == blockID {
			return
		}
	}
	e.Blocks = append(e.Blocks, blockID)
	e.Weight = len(e.Blocks)
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges sorted by (from, to, kind).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, copyEdge(e))
	}
	sortEdges(out)
	return out
}

// EdgesFrom returns the edges leaving a node.
func (g *Graph) EdgesFrom(id string) []Edge {
	return collect(g.out[id])
}

// EdgesTo returns the edges entering a node.
func (g *Graph) EdgesTo(id string) []Edge {
	return collect(g.in[id])
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// DAG returns a traversal graph holding every node and the edges of the
// given kinds (all kinds when none are given). Edges follow data flow: a
// table points at the scripts that read it, a script points at the tables
// it writes, and a script points at the scripts that depend on it.
// Node data is the lineage Node.
func (g *Graph) DAG(kinds ...EdgeKind) *dag.Graph {
	if len(kinds) == 0 {
		kinds = EdgeKinds()
	}
	want := make(map[EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	d := dag.NewGraph()
	for _, n := range g.Nodes() {
		d.AddNode(n.ID, n)
	}
	for _, e := range g.Edges() {
		if !want[e.Kind] {
			continue
		}
		from, to := e.From, e.To
		if e.Kind != Writes {
			from, to = to, from
		}
		// both endpoints exist and self-edges are never built
		_ = d.AddEdge(from, to)
	}
	return d
}

// Restore rebuilds a graph from exported nodes and edges. Edges whose
// endpoints are missing are dropped.
func Restore(nodes []Node, edges []Edge) *Graph {
	g := newGraph()
	for _, n := range nodes {
		g.addNode(n)
	}
	for _, e := range edges {
		if _, ok := g.nodes[e.From]; !ok {
			continue
		}
		if _, ok := g.nodes[e.To]; !ok {
			continue
		}
		key := edgeKey{e.From, e.To, e.Kind}
		if _, dup := g.edges[key]; dup {
			continue
		}
		ce := copyEdge(&e)
		g.edges[key] = &ce
		g.out[e.From] = append(g.out[e.From], &ce)
		g.in[e.To] = append(g.in[e.To], &ce)
	}
	return g
}

func copyEdge(e *Edge) Edge {
	c := *e
	c.Blocks = append([]string(nil), e.Blocks...)
	return c
}

func collect(edges []*Edge) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, copyEdge(e))
	}
	sortEdges(out)
	return out
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
}
