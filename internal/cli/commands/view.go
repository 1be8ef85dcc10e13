package commands

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/legacyscan/internal/cli/output"
	"github.com/leapstack-labs/legacyscan/pkg/export"
	"github.com/leapstack-labs/legacyscan/pkg/views"
)

// ViewOptions holds options for the view command.
type ViewOptions struct {
	Center        string
	Keyword       string
	IncludeTables bool
	File          string
	Format        string
	Out           string
}

// NewViewCommand creates the view command.
func NewViewCommand() *cobra.Command {
	opts := &ViewOptions{}

	cmd := &cobra.Command{
		Use:   "view <name> [root]",
		Short: "Project a diagram view of the scan",
		Long: `Project one of the diagram views of a scan:

  lineage      scripts and the tables they read and write
  workflow     script dependency levels
  etl          read/transform/write blocks with next and feeds edges
  dfd          processes and data stores
  query        statement to statement dependencies
  erd          tables joined in the same statement
  controlflow  blocks of a file in order
  calls        function call graph of Python, Java, Scala and shell code
  classes      classes with their methods, attributes and bases

Views print as text, or as JSON, Graphviz DOT or Mermaid with --format.`,
		Example: `  # Lineage around one table, two hops out
  legacyscan view lineage --center gdr_card_acct --hops 2

  # Mermaid flowchart of the ETL view
  legacyscan view etl --format mermaid

  # Call graph of the Python and Java jobs
  legacyscan view calls --format mermaid

  # Control flow of one script written to a file
  legacyscan view controlflow --file jobs/load.sh --format dot --out diagrams/`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: views.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, args[0], rootArg(args, 1), opts)
		},
	}

	addScanFlags(cmd)
	cmd.Flags().StringVar(&opts.Center, "center", "", "Center the lineage view on a node ID, script path or table name")
	cmd.Flags().Int("hops", 0, "Distance kept around --center")
	cmd.Flags().StringVar(&opts.Keyword, "keyword", "", "Keep lineage nodes whose name contains this")
	cmd.Flags().Int("max-nodes", 0, "Cap on nodes of an uncentered lineage view")
	cmd.Flags().BoolVar(&opts.IncludeTables, "include-tables", false, "Show tables in the workflow view")
	cmd.Flags().StringVar(&opts.File, "file", "", "File of the control-flow view")
	cmd.Flags().StringVar(&opts.Format, "format", "", "View format (text|json|dot|mermaid); default follows --output")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the view to a file or directory instead of stdout")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "dot", "mermaid"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runView(cmd *cobra.Command, name, root string, opts *ViewOptions) error {
	if !slices.Contains(views.Names(), name) {
		return fmt.Errorf("%w %q (want one of %s)", views.ErrUnknownView, name, strings.Join(views.Names(), ", "))
	}
	if name == views.NameControlFlow && opts.File == "" {
		return fmt.Errorf("the controlflow view needs --file")
	}

	cc := NewCommandContext(cmd, root)
	r := cc.Renderer

	format := opts.Format
	if format == "" {
		format = "text"
		if r.EffectiveMode() == output.ModeJSON {
			format = string(export.FormatJSON)
		}
	}
	var exportFormat export.Format
	if format != "text" {
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		exportFormat = f
	} else if opts.Out != "" {
		return fmt.Errorf("--out needs --format json, dot or mermaid")
	}

	res, _, err := cc.Scan(cmd.Context())
	if err != nil {
		return err
	}
	p, err := res.Projector(cc.Cfg.Views.CacheSize, views.WithLogger(cc.Logger))
	if err != nil {
		return err
	}

	params := views.Params{
		LineageParams: views.LineageParams{
			Center:   opts.Center,
			Hops:     cc.Cfg.Views.Hops,
			Keyword:  opts.Keyword,
			MaxNodes: cc.Cfg.Views.MaxNodes,
		},
		WorkflowParams:    views.WorkflowParams{IncludeTables: opts.IncludeTables},
		ControlFlowParams: views.ControlFlowParams{File: opts.File},
	}
	v, err := p.Project(name, params)
	if err != nil {
		return err
	}
	for _, w := range v.Warnings {
		r.Warning("warning: " + w)
	}

	switch {
	case exportFormat == "":
		renderView(r, v)
		return nil
	case opts.Out != "":
		path := export.ResolvePath(opts.Out, viewExt(exportFormat), time.Now())
		if err := writeFile(path, func(w io.Writer) error { return export.WriteView(w, v, exportFormat) }); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(r.ErrWriter(), r.Styles().Success.Render(fmt.Sprintf("Wrote %s view to %s", v.Name, path)))
		return nil
	default:
		return export.WriteView(r.Writer(), v, exportFormat)
	}
}

func viewExt(f export.Format) string {
	switch f {
	case export.FormatDOT:
		return ".dot"
	case export.FormatMermaid:
		return ".mmd"
	default:
		return ".json"
	}
}

// renderView renders a view as node and edge tables.
func renderView(r *output.Renderer, v views.View) {
	r.Header(1, fmt.Sprintf("View: %s (%d nodes, %d edges)", v.Name, len(v.Nodes), len(v.Edges)))

	r.Header(2, "Nodes")
	nodes := make([][]string, 0, len(v.Nodes))
	for _, n := range v.Nodes {
		nodes = append(nodes, []string{n.ID, n.Label, n.Type})
	}
	r.Table([]string{"ID", "Label", "Type"}, nodes)
	r.Println()

	r.Header(2, "Edges")
	edges := make([][]string, 0, len(v.Edges))
	for _, e := range v.Edges {
		edges = append(edges, []string{e.From, e.To, e.Kind, e.Label, strconv.Itoa(e.Weight)})
	}
	r.Table([]string{"From", "To", "Kind", "Label", "Weight"}, edges)
}
