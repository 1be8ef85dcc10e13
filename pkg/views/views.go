// Package views projects the lineage graph and per-file analyses into
// diagram views: lineage, workflow, etl, dfd, query, erd and controlflow
// over data, and calls and classes over code. Every view is a pure
// function of an Input.
package views

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/lineage"
)

// View names.
const (
	NameLineage         = "lineage"
	NameWorkflow        = "workflow"
	NameETL             = "etl"
	NameDFD             = "dfd"
	NameQueryDependency = "query"
	NameERD             = "erd"
	NameControlFlow     = "controlflow"
	NameCalls           = "calls"
	NameClasses         = "classes"
)

// ErrUnknownView is returned for a view name not in Names.
var ErrUnknownView = errors.New("unknown view")

// Names returns the view names in presentation order.
func Names() []string {
	return []string{NameLineage, NameWorkflow, NameETL, NameDFD, NameQueryDependency, NameERD, NameControlFlow, NameCalls, NameClasses}
}

// Input is everything a view may read. It must not change after the first
// projection.
type Input struct {
	Graph       *lineage.Graph
	Files       []core.FileAnalysis
	Occurrences []core.Occurrence
}

// Node is a vertex of a view.
type Node struct {
	ID    string            `json:"id"`
	Label string            `json:"label"`
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Edge is a directed, labelled connection of a view.
type Edge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Kind   string `json:"kind"`
	Label  string `json:"label,omitempty"`
	Weight int    `json:"weight"`
}

// View is one projection. Nodes are sorted by ID and edges by
// (from, to, kind, label).
type View struct {
	Name     string   `json:"name"`
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Warnings []string `json:"warnings,omitempty"`
}

// Node returns a node by ID.
func (v View) Node(id string) (Node, bool) {
	i := sort.Search(len(v.Nodes), func(i int) bool { return v.Nodes[i].ID >= id })
	if i < len(v.Nodes) && v.Nodes[i].ID == id {
		return v.Nodes[i], true
	}
	return Node{}, false
}

// Params carries the options of every view. Each view reads only its own
// fields, so one value can drive any projection.
type Params struct {
	LineageParams
	WorkflowParams
	ControlFlowParams
}

// Project computes the named view.
func Project(in Input, name string, p Params) (View, error) {
	switch name {
	case NameLineage:
		return Lineage(in, p.LineageParams), nil
	case NameWorkflow:
		return Workflow(in, p.WorkflowParams), nil
	case NameETL:
		return ETL(in), nil
	case NameDFD:
		return DFD(in), nil
	case NameQueryDependency:
		return QueryDependency(in), nil
	case NameERD:
		return ERD(in), nil
	case NameControlFlow:
		return ControlFlow(in, p.ControlFlowParams), nil
	case NameCalls:
		return Calls(in), nil
	case NameClasses:
		return Classes(in), nil
	default:
		return View{}, fmt.Errorf("%w %q (want one of %s)", ErrUnknownView, name, strings.Join(Names(), ", "))
	}
}

// builder accumulates a view, merging duplicate edges.
type builder struct {
	view  View
	nodes map[string]int
	edges map[edgeKey]int
}

type edgeKey struct {
	from, to, kind string
}

func newBuilder(name string) *builder {
	return &builder{
		view:  View{Name: name, Nodes: []Node{}, Edges: []Edge{}},
		nodes: make(map[string]int),
		edges: make(map[edgeKey]int),
	}
}

// node adds a node once; later calls for the same ID are ignored.
func (b *builder) node(n Node) {
	if _, ok := b.nodes[n.ID]; ok {
		return
	}
	b.nodes[n.ID] = len(b.view.Nodes)
	b.view.Nodes = append(b.view.Nodes, n)
}

func (b *builder) has(id string) bool {
	_, ok := b.nodes[id]
	return ok
}

func (b *builder) attr(id, key, value string) {
	i, ok := b.nodes[id]
	if !ok {
		return
	}
	n := &b.view.Nodes[i]
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

// edge adds weight to the (from, to, kind) edge. Labels of merged edges
// are joined as a sorted set.
func (b *builder) edge(from, to, kind, label string, weight int) {
	key := edgeKey{from, to, kind}
	if i, ok := b.edges[key]; ok {
		e := &b.view.Edges[i]
		e.Weight += weight
		e.Label = mergeLabels(e.Label, label)
		return
	}
	b.edges[key] = len(b.view.Edges)
	b.view.Edges = append(b.view.Edges, Edge{From: from, To: to, Kind: kind, Label: label, Weight: weight})
}

func (b *builder) warn(format string, args ...any) {
	b.view.Warnings = append(b.view.Warnings, fmt.Sprintf(format, args...))
}

func (b *builder) build() View {
	sort.Slice(b.view.Nodes, func(i, j int) bool { return b.view.Nodes[i].ID < b.view.Nodes[j].ID })
	sort.Slice(b.view.Edges, func(i, j int) bool {
		x, y := b.view.Edges[i], b.view.Edges[j]
		if x.From != y.From {
			return x.From < y.From
		}
		if x.To != y.To {
			return x.To < y.To
		}
		if x.Kind != y.Kind {
			return x.Kind < y.Kind
		}
		return x.Label < y.Label
	})
	return b.view
}

func mergeLabels(a, b string) string {
	set := make(map[string]bool)
	for _, s := range []string{a, b} {
		for _, part := range strings.Split(s, ", ") {
			if part != "" {
				set[part] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// files returns the analyzed files in path order, skipping failed ones.
func (in Input) files() []*core.FileAnalysis {
	out := make([]*core.FileAnalysis, 0, len(in.Files))
	for i := range in.Files {
		if !in.Files[i].Failed {
			out = append(out, &in.Files[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// tableLabel returns the display name of a table.
func (in Input) tableLabel(name string) string {
	if in.Graph != nil {
		if n, ok := in.Graph.Node(lineage.TableID(name)); ok {
			return n.Name
		}
	}
	return name
}

func lines(start, end int) string {
	if start == end {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}
