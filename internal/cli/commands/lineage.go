package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/legacyscan/internal/cli/output"
	"github.com/leapstack-labs/legacyscan/internal/dag"
	"github.com/leapstack-labs/legacyscan/pkg/lineage"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Upstream   bool
	Downstream bool
	Depth      int
	Run        string
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <node> [root]",
		Short: "Show lineage for a script or table",
		Long: `Display what flows into a script or table and what it flows into.

A node is a node ID (script:<path>, table:<name>), a script path relative
to the root, or a table name. Upstream follows data flow backwards: the
tables a script reads and the scripts that write those tables.`,
		Example: `  # Full lineage of a table
  legacyscan lineage gdr_card_acct

  # Only what a script depends on, two steps back
  legacyscan lineage jobs/load_cards.hql --downstream=false --depth 2

  # Lineage from the latest saved run instead of a new scan
  legacyscan lineage gdr_card_acct --run latest`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], rootArg(args, 1), opts)
		},
	}

	addScanFlags(cmd)
	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream sources")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream consumers")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "Use the graph of a saved run (ID, ID prefix or \"latest\")")

	return cmd
}

func runLineage(cmd *cobra.Command, ref, root string, opts *LineageOptions) error {
	cc := NewCommandContext(cmd, root)
	ctx := cmd.Context()

	g, err := lineageGraph(ctx, cc, opts.Run)
	if err != nil {
		return err
	}
	node, ok := resolveNode(g, ref)
	if !ok {
		return fmt.Errorf("node not found: %s", ref)
	}

	d := g.DAG()
	var upstream, downstream []string
	if opts.Upstream {
		upstream = d.GetUpstreamNodes(node.ID, opts.Depth)
	}
	if opts.Downstream {
		downstream = d.GetDownstreamNodes(node.ID, opts.Depth)
	}

	if cc.Renderer.EffectiveMode() == output.ModeJSON {
		return cc.Renderer.JSON(lineageOutput(g, d, node, upstream, downstream))
	}
	lineageText(cc.Renderer, g, d, node, upstream, downstream, opts)
	return nil
}

// lineageGraph scans, or loads the graph of a saved run.
func lineageGraph(ctx context.Context, cc *CommandContext, runRef string) (*lineage.Graph, error) {
	if runRef == "" {
		res, _, err := cc.Scan(ctx)
		if err != nil {
			return nil, err
		}
		return res.Graph, nil
	}

	store, cleanup, err := cc.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var runID string
	if runRef == "latest" {
		run, err := store.GetLatestRun(ctx, cc.Cfg.Root)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("no saved runs for %s (scan with --save first)", cc.Cfg.Root)
		}
		runID = run.ID
	} else {
		run, err := store.GetRun(ctx, runRef)
		if err != nil {
			return nil, err
		}
		runID = run.ID
	}
	cc.Logger.Debug("using saved run", slog.String("run", runID))
	return store.Graph(ctx, runID)
}

// resolveNode finds a node by ID, script path or table name.
func resolveNode(g *lineage.Graph, ref string) (lineage.Node, bool) {
	for _, id := range []string{ref, lineage.ScriptID(ref), lineage.TableID(ref)} {
		if n, ok := g.Node(id); ok {
			return n, true
		}
	}
	return lineage.Node{}, false
}

// lineageText outputs lineage in text or markdown format.
func lineageText(r *output.Renderer, g *lineage.Graph, d *dag.Graph, node lineage.Node, upstream, downstream []string, opts *LineageOptions) {
	r.Header(1, fmt.Sprintf("Lineage for: %s (%s)", node.Name, node.Type))

	names := func(ids []string) string {
		if len(ids) == 0 {
			return "(none)"
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			n, _ := g.Node(id)
			out[i] = n.Name
		}
		return strings.Join(out, ", ")
	}
	r.Printf("Direct inputs: %s\n", names(d.GetParents(node.ID)))
	r.Printf("Direct outputs: %s\n", names(d.GetChildren(node.ID)))
	r.Println()

	list := func(title string, ids []string) {
		r.Header(2, fmt.Sprintf("%s (%d)", title, len(ids)))
		if len(ids) == 0 {
			r.Muted("(none)")
		}
		for _, id := range ids {
			n, _ := g.Node(id)
			r.Printf("- %s %s\n", n.Name, r.Styles().Muted.Render("("+string(n.Type)+")"))
		}
		r.Println()
	}
	if opts.Upstream {
		list("Upstream", upstream)
	}
	if opts.Downstream {
		list("Downstream", downstream)
	}
}

// lineageOutput builds the JSON form: the node, its upstream and
// downstream nodes, and the data-flow edges among them.
func lineageOutput(g *lineage.Graph, d *dag.Graph, node lineage.Node, upstream, downstream []string) output.LineageOutput {
	out := output.LineageOutput{
		Root:     node.ID,
		Parents:  append([]string{}, d.GetParents(node.ID)...),
		Children: append([]string{}, d.GetChildren(node.ID)...),
		Nodes:    []output.LineageNode{},
		Edges:    []output.LineageEdge{},
		Stats: output.LineageStats{
			UpstreamCount:   len(upstream),
			DownstreamCount: len(downstream),
		},
	}

	nodeSet := map[string]bool{node.ID: true}
	for _, id := range upstream {
		nodeSet[id] = true
	}
	for _, id := range downstream {
		nodeSet[id] = true
	}
	ids := make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n, _ := g.Node(id)
		out.Nodes = append(out.Nodes, output.LineageNode{
			ID:       n.ID,
			Type:     string(n.Type),
			Name:     n.Name,
			Language: string(n.Language),
		})
		for _, parent := range d.GetParents(id) {
			if nodeSet[parent] {
				out.Edges = append(out.Edges, output.LineageEdge{From: parent, To: id})
			}
		}
	}
	out.Stats.TotalNodes = len(out.Nodes)
	return out
}
