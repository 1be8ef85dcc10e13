package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/legacyscan/internal/cli/output"
	"github.com/leapstack-labs/legacyscan/internal/state"
	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// NewRunsCommand creates the runs command and its subcommands.
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect saved scan runs",
		Long: `Inspect the scan runs saved with "legacyscan scan --save".

Runs are addressed by ID or by any unique ID prefix.`,
	}

	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())
	cmd.AddCommand(newRunsDiffCommand())
	cmd.AddCommand(newRunsDeleteCommand())
	return cmd
}

func newRunsListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd, "")
			store, cleanup, err := cc.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				if runs == nil {
					runs = []*state.Run{}
				}
				return r.JSON(runs)
			}

			r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					output.FormatAgo(run.StartedAt),
					run.Root,
					output.FormatCount(run.Files),
					fmt.Sprintf("%d/%d", run.EntriesFound, run.Entries),
					output.FormatCount(run.Occurrences),
					output.FormatCount(run.Diagnostics),
				})
			}
			r.Table([]string{"ID", "Started", "Root", "Files", "Entries", "Occurrences", "Diagnostics"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Runs shown (0 = all)")
	return cmd
}

func newRunsShowCommand() *cobra.Command {
	var kinds []string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc := NewCommandContext(cmd, "")
			store, cleanup, err := cc.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			occ, err := store.Occurrences(ctx, run.ID)
			if err != nil {
				return err
			}
			diagKinds := make([]core.DiagnosticKind, 0, len(kinds))
			for _, k := range kinds {
				diagKinds = append(diagKinds, core.DiagnosticKind(k))
			}
			diags, err := store.Diagnostics(ctx, run.ID, diagKinds...)
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				if occ == nil {
					occ = []core.Occurrence{}
				}
				if diags == nil {
					diags = []core.Diagnostic{}
				}
				return r.JSON(struct {
					*state.Run
					OccurrenceList []core.Occurrence `json:"occurrence_list"`
					DiagnosticList []core.Diagnostic `json:"diagnostic_list"`
				}{run, occ, diags})
			}

			r.Header(1, "Run "+run.ID)
			r.KeyValue("Root", run.Root)
			r.KeyValue("Started", fmt.Sprintf("%s (%s)", run.StartedAt.Local().Format(time.DateTime), output.FormatAgo(run.StartedAt)))
			r.KeyValue("Duration", run.Duration.Round(time.Millisecond).String())
			r.KeyValue("Files", fmt.Sprintf("%d analyzed, %d failed, %d skipped", run.Files, run.Failed, run.Skipped))
			r.KeyValue("Statements", output.FormatCount(run.Statements))
			r.KeyValue("Blocks", output.FormatCount(run.Blocks))
			r.KeyValue("Entries found", fmt.Sprintf("%d of %d", run.EntriesFound, run.Entries))
			r.Println()

			r.Header(2, fmt.Sprintf("Occurrences (%s)", output.FormatCount(len(occ))))
			rows := make([][]string, 0, len(occ))
			for _, o := range occ {
				rows = append(rows, []string{
					o.Entry.Table, o.Entry.Field,
					o.FilePath + ":" + strconv.Itoa(o.Line),
					o.ResolvedTable, truncate(strings.TrimSpace(o.LineText), 60),
				})
			}
			r.Table([]string{"Table", "Field", "Location", "Resolved", "Code"}, rows)

			if len(diags) > 0 {
				r.Println()
				r.Header(2, fmt.Sprintf("Diagnostics (%s)", output.FormatCount(len(diags))))
				renderDiagnostics(r, diags)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Only diagnostics of these kinds")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, 0, len(core.DiagnosticKinds()))
		for _, k := range core.DiagnosticKinds() {
			names = append(names, string(k))
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newRunsDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <base> <head>",
		Short: "List files added, removed or modified between two runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc := NewCommandContext(cmd, "")
			store, cleanup, err := cc.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			base, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			head, err := store.GetRun(ctx, args[1])
			if err != nil {
				return err
			}
			added, removed, modified, err := store.ChangedFiles(ctx, base.ID, head.ID)
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string][]string{
					"added":    nonNil(added),
					"removed":  nonNil(removed),
					"modified": nonNil(modified),
				})
			}

			r.Header(1, fmt.Sprintf("Changes %s..%s", shortID(base.ID), shortID(head.ID)))
			rows := make([][]string, 0, len(added)+len(removed)+len(modified))
			for _, p := range added {
				rows = append(rows, []string{r.Styles().Success.Render("added"), p})
			}
			for _, p := range removed {
				rows = append(rows, []string{r.Styles().Error.Render("removed"), p})
			}
			for _, p := range modified {
				rows = append(rows, []string{r.Styles().Warning.Render("modified"), p})
			}
			r.Table([]string{"Change", "File"}, rows)
			return nil
		},
	}
}

func newRunsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc := NewCommandContext(cmd, "")
			store, cleanup, err := cc.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteRun(ctx, run.ID); err != nil {
				return err
			}
			cc.Renderer.Success("Deleted run " + run.ID)
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
