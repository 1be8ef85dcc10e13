package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/legacyscan/internal/cli/output"
	"github.com/leapstack-labs/legacyscan/internal/scan"
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/export"
)

// ScanOptions holds options for the scan command.
type ScanOptions struct {
	CSV             string
	OccurrencesJSON string
	GraphJSON       string
	DOT             string
	Watch           bool
	Limit           int
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	opts := &ScanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Scan sources for dictionary references",
		Long: `Scan every supported file under the root for references to the
dictionary's tables and fields, and build the lineage graph.

Reports a summary, every occurrence and every diagnostic. Results can be
exported as CSV or JSON, and the lineage graph as JSON or Graphviz DOT.
An export flag naming a directory gets a timestamped file inside it.`,
		Example: `  # Scan the current project
  legacyscan scan --dictionary fields.csv

  # Scan a directory and export occurrences to a timestamped CSV
  legacyscan scan ./legacy --dictionary fields.csv --csv reports/

  # Save the run to the state database
  legacyscan scan --save

  # Rescan whenever a file changes
  legacyscan scan --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, rootArg(args, 0), opts)
		},
	}

	addScanFlags(cmd)
	cmd.Flags().StringVar(&opts.CSV, "csv", "", "Write occurrences as CSV to a file or directory")
	cmd.Flags().StringVar(&opts.OccurrencesJSON, "occurrences-json", "", "Write occurrences as JSON to a file or directory")
	cmd.Flags().StringVar(&opts.GraphJSON, "graph-json", "", "Write the lineage graph as JSON to a file or directory")
	cmd.Flags().StringVar(&opts.DOT, "dot", "", "Write the lineage graph as DOT to a file or directory")
	cmd.Flags().Bool("save", false, "Save the run to the state database")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Rescan when files change")
	cmd.Flags().Duration("debounce", 0, "Quiet period before a rescan in watch mode")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Occurrences shown (0 = all)")

	return cmd
}

// rootArg returns args[i], or "" when absent.
func rootArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func runScan(cmd *cobra.Command, root string, opts *ScanOptions) error {
	cc := NewCommandContext(cmd, root)
	ctx := cmd.Context()

	s, err := cc.Scanner()
	if err != nil {
		return err
	}
	res, _, err := cc.RunScan(ctx, s)
	if err != nil {
		if res != nil {
			_ = reportScan(ctx, cc, res, opts)
		}
		return err
	}
	if err := reportScan(ctx, cc, res, opts); err != nil {
		return err
	}

	if !opts.Watch {
		return nil
	}
	cc.Renderer.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", cc.Cfg.Root))
	return s.Watch(ctx, []string{cc.Cfg.Root}, cc.Cfg.Scan.WatchDebounce, func(ctx context.Context, changed []string) error {
		cc.Renderer.Muted(fmt.Sprintf("%d file(s) changed, rescanning", len(changed)))
		res, _, err := cc.RunScan(ctx, s)
		if err != nil {
			return err
		}
		return reportScan(ctx, cc, res, opts)
	})
}

// reportScan writes the exports, saves the run when configured, and
// renders the result.
func reportScan(ctx context.Context, cc *CommandContext, res *scan.Result, opts *ScanOptions) error {
	if err := writeScanExports(cc.Renderer, res, opts, time.Now()); err != nil {
		return err
	}

	var runID string
	if cc.Cfg.Scan.Save {
		store, cleanup, err := cc.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()
		run, err := store.SaveRun(ctx, cc.Cfg.Root, res)
		if err != nil {
			return err
		}
		runID = run.ID
	}

	if cc.Renderer.EffectiveMode() == output.ModeJSON {
		return cc.Renderer.JSON(toScanOutput(cc.Cfg.Root, runID, res))
	}
	renderScan(cc.Renderer, cc.Cfg.Root, runID, res, opts.Limit)
	return nil
}

func writeScanExports(r *output.Renderer, res *scan.Result, opts *ScanOptions, now time.Time) error {
	exports := []struct {
		target string
		ext    string
		what   string
		write  func(io.Writer) error
	}{
		{opts.CSV, ".csv", "occurrences", func(w io.Writer) error { return export.WriteOccurrencesCSV(w, res.Occurrences) }},
		{opts.OccurrencesJSON, ".json", "occurrences", func(w io.Writer) error { return export.WriteOccurrencesJSON(w, res.Occurrences) }},
		{opts.GraphJSON, ".json", "lineage graph", func(w io.Writer) error { return export.WriteGraphJSON(w, res.Graph) }},
		{opts.DOT, ".dot", "lineage graph", func(w io.Writer) error { return export.WriteGraphDOT(w, res.Graph) }},
	}
	for _, e := range exports {
		if e.target == "" {
			continue
		}
		path := export.ResolvePath(e.target, e.ext, now)
		if err := writeFile(path, e.write); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(r.ErrWriter(), r.Styles().Success.Render(fmt.Sprintf("Wrote %s to %s", e.what, path)))
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := export.CreateFile(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// renderScan renders a scan as styled text or markdown.
func renderScan(r *output.Renderer, root, runID string, res *scan.Result, limit int) {
	st := res.Stats

	r.Header(1, "Scan of "+root)
	r.KeyValue("Files", fmt.Sprintf("%s analyzed (%s)", output.FormatCount(st.Files), languageList(st)))
	if st.Failed > 0 || st.Skipped > 0 {
		r.KeyValue("Not analyzed", fmt.Sprintf("%d failed, %d skipped", st.Failed, st.Skipped))
	}
	r.KeyValue("Statements", output.FormatCount(st.Statements))
	r.KeyValue("Blocks", output.FormatCount(st.Blocks))
	r.KeyValue("Entries found", fmt.Sprintf("%d of %d", st.EntriesFound, st.Entries))
	r.KeyValue("Lineage", fmt.Sprintf("%d nodes, %d edges", res.Graph.NodeCount(), res.Graph.EdgeCount()))
	r.KeyValue("Duration", st.Duration.Round(time.Millisecond).String())
	if runID != "" {
		r.KeyValue("Run", runID)
	}
	r.Println()

	if len(st.PerEntry) > 0 {
		r.Header(2, "Entries")
		rows := make([][]string, 0, len(st.PerEntry))
		for _, ec := range st.PerEntry {
			rows = append(rows, []string{
				ec.Entry.Table, ec.Entry.Field, ec.Entry.Mapping, ec.Entry.Group,
				strconv.Itoa(ec.Occurrences), strconv.Itoa(ec.Files),
			})
		}
		r.Table([]string{"Table", "Field", "Mapping", "Group", "Occurrences", "Files"}, rows)
		r.Println()
	}

	r.Header(2, fmt.Sprintf("Occurrences (%s)", output.FormatCount(len(res.Occurrences))))
	occ := res.Occurrences
	if limit > 0 && len(occ) > limit {
		occ = occ[:limit]
	}
	rows := make([][]string, 0, len(occ))
	for _, o := range occ {
		rows = append(rows, []string{
			o.Entry.Table, o.Entry.Field,
			o.FilePath + ":" + strconv.Itoa(o.Line),
			o.ResolvedTable, truncate(strings.TrimSpace(o.LineText), 60),
		})
	}
	r.Table([]string{"Table", "Field", "Location", "Resolved", "Code"}, rows)
	if len(occ) < len(res.Occurrences) {
		r.Muted(fmt.Sprintf("... %d more (use --limit 0 or --csv)", len(res.Occurrences)-len(occ)))
	}

	if res.HasDiagnostics() {
		r.Println()
		r.Header(2, fmt.Sprintf("Diagnostics (%s)", output.FormatCount(res.Report.Len())))
		renderDiagnostics(r, res.Report.Diagnostics)
	}
}

func renderDiagnostics(r *output.Renderer, diags []core.Diagnostic) {
	rows := make([][]string, 0, len(diags))
	for _, d := range diags {
		line := ""
		if d.Line > 0 {
			line = strconv.Itoa(d.Line)
		}
		rows = append(rows, []string{string(d.Kind), d.Path, line, d.Message})
	}
	r.Table([]string{"Kind", "Path", "Line", "Message"}, rows)
}

func languageList(st scan.Stats) string {
	langs := st.Languages()
	if len(langs) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(langs))
	for _, l := range langs {
		parts = append(parts, fmt.Sprintf("%s %d", l, st.ByLanguage[l]))
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func toScanOutput(root, runID string, res *scan.Result) output.ScanOutput {
	st := res.Stats
	out := output.ScanOutput{
		Root:  root,
		RunID: runID,
		Summary: output.ScanSummary{
			Files:        st.Files,
			Failed:       st.Failed,
			Skipped:      st.Skipped,
			Languages:    make(map[string]int, len(st.ByLanguage)),
			Statements:   st.Statements,
			Blocks:       st.Blocks,
			Entries:      st.Entries,
			EntriesFound: st.EntriesFound,
			Occurrences:  len(res.Occurrences),
			Diagnostics:  res.Report.Len(),
			Nodes:        res.Graph.NodeCount(),
			Edges:        res.Graph.EdgeCount(),
			DurationMS:   st.Duration.Milliseconds(),
		},
		Entries:     make([]output.EntrySummary, 0, len(st.PerEntry)),
		Occurrences: res.Occurrences,
		Diagnostics: res.Report.Diagnostics,
	}
	for l, n := range st.ByLanguage {
		out.Summary.Languages[string(l)] = n
	}
	for _, ec := range st.PerEntry {
		out.Entries = append(out.Entries, output.EntrySummary{
			Table:       ec.Entry.Table,
			Field:       ec.Entry.Field,
			Mapping:     ec.Entry.Mapping,
			Group:       ec.Entry.Group,
			Occurrences: ec.Occurrences,
			Files:       ec.Files,
		})
	}
	if out.Occurrences == nil {
		out.Occurrences = []core.Occurrence{}
	}
	if out.Diagnostics == nil {
		out.Diagnostics = []core.Diagnostic{}
	}
	return out
}
