// Package dag provides directed graph traversal for lineage views.
// It supports cycle detection, topological ordering, execution levels and
// depth-limited walks in either direction.
package dag

import (
	"fmt"
	"sort"
)

// Node is a vertex of the graph.
type Node struct {
	// ID is the unique identifier (lineage node id)
	ID string
	// Data holds the caller's payload
	Data any
}

// Graph is a directed graph. Edges point from producer to consumer, so a
// node's parents are its upstream and its children its downstream.
type Graph struct {
	nodes    map[string]*Node
	children map[string][]string
	parents  map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode adds a node, or replaces the data of an existing one.
func (g *Graph) AddNode(id string, data any) {
	if n, ok := g.nodes[id]; ok {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
}

// AddEdge adds parent -> child. Both nodes must exist. Self-loops are
// rejected and duplicate edges are ignored.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, ok := g.nodes[parentID]; !ok {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, ok := g.nodes[childID]; !ok {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}
	if !contains(g.children[parentID], childID) {
		g.children[parentID] = append(g.children[parentID], childID)
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// GetParents returns the direct upstream nodes, sorted.
func (g *Graph) GetParents(id string) []string {
	return sorted(g.parents[id])
}

// GetChildren returns the direct downstream nodes, sorted.
func (g *Graph) GetChildren(id string) []string {
	return sorted(g.children[id])
}

// Degree returns the number of edges touching a node.
func (g *Graph) Degree(id string) int {
	return len(g.parents[id]) + len(g.children[id])
}

// NodeIDs returns all node IDs, sorted.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, c := range g.children {
		n += len(c)
	}
	return n
}

// HasCycle reports whether the graph has a cycle and returns one cycle as a
// path that starts and ends at the same node.
func (g *Graph) HasCycle() (bool, []string) {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, c := range sorted(g.children[id]) {
			switch color[c] {
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == c {
						cycle = append(append([]string{}, stack[i:]...), c)
						break
					}
				}
				return true
			case white:
				if visit(c) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.NodeIDs() {
		if color[id] == white && visit(id) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns nodes with every parent before its children.
// Ties are broken by ID so the order is deterministic.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	levels, err := g.GetExecutionLevels()
	if err != nil {
		return nil, err
	}
	out := make([]*Node, 0, len(g.nodes))
	for _, level := range levels {
		for _, id := range level {
			out = append(out, g.nodes[id])
		}
	}
	return out, nil
}

// GetExecutionLevels groups nodes by depth: level 0 has no parents and a
// node sits one level below its deepest parent.
func (g *Graph) GetExecutionLevels() ([][]string, error) {
	if cyclic, path := g.HasCycle(); cyclic {
		return nil, fmt.Errorf("cycle detected: %v", path)
	}

	indegree := make(map[string]int, len(g.nodes))
	var frontier []string
	for _, id := range g.NodeIDs() {
		indegree[id] = len(g.parents[id])
		if indegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	var levels [][]string
	for len(frontier) > 0 {
		levels = append(levels, frontier)
		var next []string
		for _, id := range frontier {
			for _, c := range g.children[id] {
				indegree[c]--
				if indegree[c] == 0 {
					next = append(next, c)
				}
			}
		}
		sort.Strings(next)
		frontier = next
	}
	return levels, nil
}

// GetUpstreamNodes returns the nodes reachable by following parents, up to
// depth steps (depth <= 0 means unlimited). The start node is excluded.
func (g *Graph) GetUpstreamNodes(id string, depth int) []string {
	return g.walk(id, depth, func(n string) []string { return g.parents[n] })
}

// GetDownstreamNodes returns the nodes reachable by following children, up
// to depth steps (depth <= 0 means unlimited). The start node is excluded.
func (g *Graph) GetDownstreamNodes(id string, depth int) []string {
	return g.walk(id, depth, func(n string) []string { return g.children[n] })
}

// Neighborhood returns the start nodes and every node within hops
// undirected steps of them, sorted.
func (g *Graph) Neighborhood(ids []string, hops int) []string {
	seen := make(map[string]bool)
	var frontier []string
	for _, id := range ids {
		if _, ok := g.nodes[id]; ok && !seen[id] {
			seen[id] = true
			frontier = append(frontier, id)
		}
	}
	for step := 0; step < hops && len(frontier) > 0; step++ {
		var next []string
		for _, id := range frontier {
			for _, n := range append(append([]string{}, g.parents[id]...), g.children[id]...) {
				if !seen[n] {
					seen[n] = true
					next = append(next, n)
				}
			}
		}
		frontier = next
	}
	return keys(seen)
}

// walk is a breadth-first search along next.
func (g *Graph) walk(id string, depth int, next func(string) []string) []string {
	seen := map[string]bool{id: true}
	frontier := []string{id}
	for step := 0; len(frontier) > 0 && (depth <= 0 || step < depth); step++ {
		var level []string
		for _, n := range frontier {
			for _, m := range next(n) {
				if !seen[m] {
					seen[m] = true
					level = append(level, m)
				}
			}
		}
		frontier = level
	}
	delete(seen, id)
	return keys(seen)
}

// GetRoots returns nodes with no parents.
func (g *Graph) GetRoots() []string {
	var roots []string
	for _, id := range g.NodeIDs() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// GetLeaves returns nodes with no children.
func (g *Graph) GetLeaves() []string {
	var leaves []string
	for _, id := range g.NodeIDs() {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Subgraph returns a new graph with only the given nodes and the edges
// between them.
func (g *Graph) Subgraph(ids []string) *Graph {
	sub := NewGraph()
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			keep[id] = true
			sub.AddNode(id, n.Data)
		}
	}
	for id := range keep {
		for _, c := range g.children[id] {
			if keep[c] {
				_ = sub.AddEdge(id, c)
			}
		}
	}
	return sub
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
