package output

import (
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/search"
)

// ScanOutput is the JSON form of the scan command.
type ScanOutput struct {
	Root        string            `json:"root"`
	RunID       string            `json:"run_id,omitempty"`
	Summary     ScanSummary       `json:"summary"`
	Entries     []EntrySummary    `json:"entries"`
	Occurrences []core.Occurrence `json:"occurrences"`
	Diagnostics []core.Diagnostic `json:"diagnostics"`
}

// ScanSummary holds the counts of one scan.
type ScanSummary struct {
	Files        int            `json:"files"`
	Failed       int            `json:"failed"`
	Skipped      int            `json:"skipped"`
	Languages    map[string]int `json:"languages"`
	Statements   int            `json:"statements"`
	Blocks       int            `json:"blocks"`
	Entries      int            `json:"entries"`
	EntriesFound int            `json:"entries_found"`
	Occurrences  int            `json:"occurrences"`
	Diagnostics  int            `json:"diagnostics"`
	Nodes        int            `json:"nodes"`
	Edges        int            `json:"edges"`
	DurationMS   int64          `json:"duration_ms"`
}

// EntrySummary is the occurrence count of one dictionary entry.
type EntrySummary struct {
	Table       string `json:"table"`
	Field       string `json:"field,omitempty"`
	Mapping     string `json:"mapping,omitempty"`
	Group       string `json:"group,omitempty"`
	Occurrences int    `json:"occurrences"`
	Files       int    `json:"files"`
}

// LineageOutput is the JSON form of the lineage command.
type LineageOutput struct {
	Root string `json:"root"`
	// Parents and Children are the root's direct data-flow neighbours.
	Parents  []string      `json:"parents"`
	Children []string      `json:"children"`
	Nodes    []LineageNode `json:"nodes"`
	Edges    []LineageEdge `json:"edges"`
	Stats    LineageStats  `json:"stats"`
}

// LineageNode is a node in lineage output.
type LineageNode struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}

// LineageEdge is a data-flow edge in lineage output.
type LineageEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LineageStats counts a lineage result.
type LineageStats struct {
	TotalNodes      int `json:"total_nodes"`
	UpstreamCount   int `json:"upstream_count"`
	DownstreamCount int `json:"downstream_count"`
}

// SearchOutput is the JSON form of the search command.
type SearchOutput struct {
	Needle string       `json:"needle"`
	Files  int          `json:"files"`
	Hits   []search.Hit `json:"hits"`
}
