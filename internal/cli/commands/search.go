package commands

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/legacyscan/internal/cli/output"
	"github.com/leapstack-labs/legacyscan/pkg/search"
)

// SearchOptions holds options for the search command.
type SearchOptions struct {
	IgnoreCase bool
	Context    int
	Unique     bool
	FilesOnly  bool
}

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	opts := &SearchOptions{}

	cmd := &cobra.Command{
		Use:   "search <needle> [root]",
		Short: "Find a literal identifier, such as a service ID",
		Long: `Search every supported source file for a literal string, typically a
service or job identifier that is not in the dictionary.

Matching is by substring, one hit per line. --unique keeps the first hit
of each file.`,
		Example: `  # Where is a service ID used?
  legacyscan search SVC_CARD_0042

  # Case-insensitive, with two lines of context
  legacyscan search svc_card_0042 -i -C 2

  # Only the files that mention it
  legacyscan search SVC_CARD_0042 --files-only`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], rootArg(args, 1), opts)
		},
	}

	addScanFlags(cmd)
	cmd.Flags().BoolVarP(&opts.IgnoreCase, "ignore-case", "i", false, "Match without regard to case")
	cmd.Flags().IntVarP(&opts.Context, "context", "C", 0, "Lines of context around each hit")
	cmd.Flags().BoolVar(&opts.Unique, "unique", false, "Keep only the first hit of each file")
	cmd.Flags().BoolVarP(&opts.FilesOnly, "files-only", "l", false, "Print only the matching file paths")

	return cmd
}

func runSearch(cmd *cobra.Command, needle, root string, opts *SearchOptions) error {
	if strings.TrimSpace(needle) == "" {
		return fmt.Errorf("search needle must not be empty")
	}
	if opts.Context < 0 {
		return fmt.Errorf("--context must not be negative")
	}

	cc := NewCommandContext(cmd, root)
	r := cc.Renderer

	set, err := cc.LoadSources(cmd.Context())
	if err != nil {
		return err
	}
	for _, d := range set.Diagnostics {
		cc.Logger.Warn("unreadable file", slog.String("diagnostic", d.String()))
	}

	hits := search.Search(set.Files, needle, search.Options{
		IgnoreCase: opts.IgnoreCase,
		Context:    opts.Context,
		Unique:     opts.Unique,
	})
	files := search.Files(hits)

	if r.EffectiveMode() == output.ModeJSON {
		if hits == nil {
			hits = []search.Hit{}
		}
		return r.JSON(output.SearchOutput{Needle: needle, Files: len(files), Hits: hits})
	}

	if opts.FilesOnly {
		for _, f := range files {
			r.Println(f)
		}
		return nil
	}

	r.Header(1, fmt.Sprintf("%q: %s hits in %s files", needle,
		output.FormatCount(len(hits)), output.FormatCount(len(files))))
	if opts.Context == 0 {
		rows := make([][]string, 0, len(hits))
		for _, h := range hits {
			rows = append(rows, []string{h.FilePath, strconv.Itoa(h.Line), strconv.Itoa(h.Column), truncate(strings.TrimSpace(h.Context), 80)})
		}
		r.Table([]string{"File", "Line", "Column", "Code"}, rows)
		return nil
	}

	markdown := r.EffectiveMode() == output.ModeMarkdown
	for _, h := range hits {
		loc := fmt.Sprintf("%s:%d", h.FilePath, h.Line)
		if markdown {
			r.Println(output.FormatHeader(3, loc))
			r.Println("```")
			r.Println(h.Context)
			r.Println("```")
			r.Println()
			continue
		}
		r.Println(r.Styles().Info.Render(loc))
		r.Println(h.Context)
		r.Println()
	}
	return nil
}
