package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/lineage"
	"github.com/leapstack-labs/legacyscan/pkg/views"
)

// Format is a view output format.
type Format string

// View formats.
const (
	FormatJSON    Format = "json"
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatDOT, FormatMermaid:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, dot or mermaid)", s)
	}
}

// WriteView writes a view in the given format.
func WriteView(w io.Writer, v views.View, f Format) error {
	switch f {
	case FormatJSON:
		return WriteViewJSON(w, v)
	case FormatDOT:
		return WriteViewDOT(w, v)
	case FormatMermaid:
		return WriteViewMermaid(w, v)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// GraphView presents the whole lineage graph as a view.
func GraphView(g *lineage.Graph) views.View {
	v := views.View{Name: "graph", Nodes: []views.Node{}, Edges: []views.Edge{}}
	for _, n := range g.Nodes() {
		v.Nodes = append(v.Nodes, views.Node{ID: n.ID, Label: n.Name, Type: string(n.Type)})
	}
	for _, e := range g.Edges() {
		v.Edges = append(v.Edges, views.Edge{From: e.From, To: e.To, Kind: string(e.Kind), Label: string(e.Kind), Weight: e.Weight})
	}
	return v
}

// WriteGraphDOT writes the lineage graph as a Graphviz digraph.
func WriteGraphDOT(w io.Writer, g *lineage.Graph) error {
	return WriteViewDOT(w, GraphView(g))
}

// dotShapes maps node types to Graphviz shapes; unknown types are boxes.
var dotShapes = map[string]string{
	"table":             "cylinder",
	views.TypeDataStore: "cylinder",
	"entity":            "record",
	views.TypeProcess:   "ellipse",
	"control":           "diamond",
}

// WriteViewDOT writes a view as a Graphviz digraph.
func WriteViewDOT(w io.Writer, v views.View) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", dotQuote(v.Name))
	bw.WriteString("  rankdir=LR;\n")
	bw.WriteString("  node [fontname=\"Helvetica\", fontsize=10];\n")
	for _, n := range v.Nodes {
		shape, ok := dotShapes[n.Type]
		if !ok {
			shape = "box"
		}
		label := n.Label
		if f := n.Attrs["fields"]; f != "" {
			label += "\n" + strings.ReplaceAll(f, ", ", "\n")
		}
		fmt.Fprintf(bw, "  %s [label=%s, shape=%s];\n", dotQuote(n.ID), dotQuote(label), shape)
	}
	for _, e := range v.Edges {
		attrs := []string{"weight=" + fmt.Sprint(max(e.Weight, 1))}
		if e.Label != "" {
			attrs = append([]string{"label=" + dotQuote(e.Label)}, attrs...)
		}
		switch e.Kind {
		case "skip", "conditional":
			attrs = append(attrs, "style=dashed")
		}
		fmt.Fprintf(bw, "  %s -> %s [%s];\n", dotQuote(e.From), dotQuote(e.To), strings.Join(attrs, ", "))
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

func dotQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

// WriteViewMermaid writes a view as a Mermaid flowchart. Node IDs are
// replaced with positional identifiers because Mermaid IDs cannot carry
// paths.
func WriteViewMermaid(w io.Writer, v views.View) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("flowchart LR\n")

	ids := make(map[string]string, len(v.Nodes))
	for i, n := range v.Nodes {
		id := fmt.Sprintf("n%d", i)
		ids[n.ID] = id
		open, closing := mermaidShape(n.Type)
		fmt.Fprintf(bw, "    %s%s\"%s\"%s\n", id, open, mermaidEscape(n.Label), closing)
	}
	for _, e := range v.Edges {
		from, to := ids[e.From], ids[e.To]
		if from == "" || to == "" {
			continue
		}
		arrow := "-->"
		if e.Kind == "skip" || e.Kind == "conditional" {
			arrow = "-.->"
		}
		if e.Label != "" {
			fmt.Fprintf(bw, "    %s %s|\"%s\"| %s\n", from, arrow, mermaidEscape(e.Label), to)
		} else {
			fmt.Fprintf(bw, "    %s %s %s\n", from, arrow, to)
		}
	}
	return bw.Flush()
}

func mermaidShape(typ string) (string, string) {
	switch typ {
	case "table", views.TypeDataStore, "entity":
		return "[(", ")]"
	case views.TypeProcess:
		return "([", "])"
	case "control":
		return "{", "}"
	default:
		return "[", "]"
	}
}

func mermaidEscape(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "\n", "<br/>").Replace(s)
}
