// Package export writes scan results as JSON, CSV, Graphviz DOT and Mermaid.
package export

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/lineage"
	"github.com/leapstack-labs/legacyscan/pkg/views"
)

// GraphVersion is the version of the graph JSON document.
const GraphVersion = 1

// GraphDocument is the JSON form of a lineage graph.
type GraphDocument struct {
	Version int            `json:"version"`
	Nodes   []lineage.Node `json:"nodes"`
	Edges   []lineage.Edge `json:"edges"`
}

// WriteGraphJSON writes the graph's sorted nodes and edges.
func WriteGraphJSON(w io.Writer, g *lineage.Graph) error {
	doc := GraphDocument{Version: GraphVersion, Nodes: g.Nodes(), Edges: g.Edges()}
	return encode(w, doc)
}

// ReadGraphJSON reads a document written by WriteGraphJSON.
func ReadGraphJSON(r io.Reader) (*lineage.Graph, error) {
	var doc GraphDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	if doc.Version != GraphVersion {
		return nil, fmt.Errorf("unsupported graph version %d", doc.Version)
	}
	return lineage.Restore(doc.Nodes, doc.Edges), nil
}

// WriteViewJSON writes a view.
func WriteViewJSON(w io.Writer, v views.View) error {
	return encode(w, v)
}

// WriteOccurrencesJSON writes occurrences as a JSON array.
func WriteOccurrencesJSON(w io.Writer, occ []core.Occurrence) error {
	if occ == nil {
		occ = []core.Occurrence{}
	}
	return encode(w, occ)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
