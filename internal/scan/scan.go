// Package scan runs the per-file analysis pipeline over a Source Set and
// assembles the occurrence list, diagnostics report and lineage graph.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/legacyscan/internal/source"
	"github.com/leapstack-labs/legacyscan/pkg/alias"
	"github.com/leapstack-labs/legacyscan/pkg/block"
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/dictionary"
	"github.com/leapstack-labs/legacyscan/pkg/lexer"
	"github.com/leapstack-labs/legacyscan/pkg/lineage"
	"github.com/leapstack-labs/legacyscan/pkg/matcher"
	"github.com/leapstack-labs/legacyscan/pkg/splitter"
	"github.com/leapstack-labs/legacyscan/pkg/symbols"
	"github.com/leapstack-labs/legacyscan/pkg/token"
	"github.com/leapstack-labs/legacyscan/pkg/views"
)

var (
	// ErrEmptySourceSet is returned when there is nothing to scan.
	ErrEmptySourceSet = errors.New("source set is empty")
	// ErrNoReadableSources is returned when every file failed to load or analyze.
	ErrNoReadableSources = errors.New("no readable source files")
)

// Options configures a Scanner.
type Options struct {
	// Dictionary is the raw entry list; it is deduplicated once per scan.
	Dictionary []core.DictionaryEntry
	// Workers bounds the number of files analyzed at once.
	// Zero means GOMAXPROCS.
	Workers int
	// Progress receives the completed fraction after each file.
	Progress func(fraction float64)
	Logger   *slog.Logger
}

// Result is the merged output of one scan.
type Result struct {
	Files       []core.FileAnalysis
	Occurrences []core.Occurrence
	Graph       *lineage.Graph
	Report      core.Report
	Stats       Stats
}

// HasDiagnostics returns true if any diagnostics were recorded.
func (r *Result) HasDiagnostics() bool {
	return r.Report.Len() > 0
}

// ViewInput returns the input the view projections work from.
func (r *Result) ViewInput() views.Input {
	return views.Input{Graph: r.Graph, Files: r.Files, Occurrences: r.Occurrences}
}

// Projector returns a caching view projector over the result.
func (r *Result) Projector(cacheSize int, opts ...views.ProjectorOption) (*views.Projector, error) {
	return views.NewProjector(r.ViewInput(), cacheSize, opts...)
}

// Scanner analyzes source files concurrently.
type Scanner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Scanner{opts: opts, logger: logger}
}

// ScanSet scans a loaded Source Set. Files the loader could not read are
// carried into the report.
func (s *Scanner) ScanSet(ctx context.Context, set *source.Set) (*Result, error) {
	if len(set.Files) == 0 {
		if len(set.Diagnostics) > 0 {
			return nil, ErrNoReadableSources
		}
		return nil, ErrEmptySourceSet
	}
	res, err := s.Scan(ctx, set.Files)
	if res != nil && len(set.Diagnostics) > 0 {
		res.Report.Add(set.Diagnostics...)
		res.Report.Sort()
		res.Stats.Failed += len(set.Diagnostics)
	}
	return res, err
}

// Scan runs the pipeline over files. A cancelled context stops workers from
// starting new files; the partial result is returned with ctx.Err().
func (s *Scanner) Scan(ctx context.Context, files []core.SourceFile) (*Result, error) {
	if len(files) == 0 {
		return nil, ErrEmptySourceSet
	}
	start := time.Now()

	dict, dictDiags := dictionary.New(s.opts.Dictionary)
	m := matcher.New(dict, matcher.WithLogger(s.logger))

	s.logger.Info("starting scan",
		slog.Int("files", len(files)),
		slog.Int("entries", dict.Len()),
		slog.Int("workers", s.opts.Workers))

	analyses := make([]core.FileAnalysis, len(files))
	ran := make([]bool, len(files))
	p := newProgress(len(files), s.opts.Progress)

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.opts.Workers)
	for i, f := range files {
		eg.Go(func() error {
			if egctx.Err() != nil {
				p.advance()
				return nil
			}
			analyses[i] = s.analyze(egctx, m, f)
			ran[i] = true
			p.advance()
			return nil
		})
	}
	_ = eg.Wait()

	res := &Result{}
	res.Report.Add(dictDiags...)
	for i, fa := range analyses {
		if !ran[i] {
			res.Stats.Skipped++
			continue
		}
		res.Files = append(res.Files, fa)
	}
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })

	for _, fa := range res.Files {
		res.Occurrences = append(res.Occurrences, fa.Occurrences...)
		res.Report.Add(fa.Diagnostics...)
	}
	core.SortOccurrences(res.Occurrences)

	g, graphDiags := lineage.Build(res.Files)
	res.Graph = g
	res.Report.Add(graphDiags...)
	res.Report.Sort()

	res.Stats.collect(res, dict)
	res.Stats.Duration = time.Since(start)

	s.logger.Info("scan completed",
		slog.Int("files", res.Stats.Files),
		slog.Int("skipped", res.Stats.Skipped),
		slog.Int("occurrences", len(res.Occurrences)),
		slog.Int("diagnostics", res.Report.Len()),
		slog.Int64("duration_ms", res.Stats.Duration.Milliseconds()))

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if res.Stats.Failed == len(res.Files) {
		return res, ErrNoReadableSources
	}
	return res, nil
}

// analyze runs split, tokenize, resolve, match, facts and blocks for one
// file. A panic anywhere in the pipeline fails only this file.
func (s *Scanner) analyze(ctx context.Context, m *matcher.Matcher, f core.SourceFile) (fa core.FileAnalysis) {
	lines := core.SplitLines(f.Text)
	fa = core.FileAnalysis{Path: f.Path, Language: f.Language, Hash: f.Hash, Lines: len(lines)}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("file analysis panicked", slog.String("path", f.Path), slog.Any("panic", r))
			fa = core.FileAnalysis{
				Path:     f.Path,
				Language: f.Language,
				Hash:     f.Hash,
				Lines:    len(lines),
				Failed:   true,
				Diagnostics: []core.Diagnostic{{
					Kind:    core.UnreadableFile,
					Path:    f.Path,
					Message: fmt.Sprintf("analysis failed: %v", r),
				}},
			}
		}
	}()

	stmts, diags := splitter.SplitContext(ctx, f.Path, f.Language, f.Text)
	fa.Diagnostics = append(fa.Diagnostics, diags...)

	text := strings.Join(lines, "\n")
	toks, comments, _ := lexer.TokenizeWithComments(text, 1, lexer.OptionsFor(f.Language))
	fa.Diagnostics = append(fa.Diagnostics, m.TextReferences(f.Path, comments)...)
	fa.Statements = make([]core.AnalyzedStatement, 0, len(stmts))
	for _, stmt := range stmts {
		var own []token.Token
		toks, own = takeStatement(toks, stmt)

		am := alias.ResolveFor(f.Language, own)
		facts := block.Facts(stmt, own, am)
		occ, d := m.Match(stmt, own, am, append(facts.Sources, facts.Targets...)...)
		fa.Occurrences = append(fa.Occurrences, occ...)
		fa.Diagnostics = append(fa.Diagnostics, d...)
		fa.Statements = append(fa.Statements, facts)
	}
	fa.Blocks = block.Extract(f.Path, f.Language, fa.Statements)

	if f.Language.IsCode() {
		classes, funcs, err := symbols.Extract(ctx, f.Path, f.Language, text)
		if err != nil {
			s.logger.Debug("symbol extraction failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		}
		fa.Classes, fa.Functions = classes, funcs
		for i := range fa.Occurrences {
			o := &fa.Occurrences[i]
			o.Function, o.Class = core.Enclosing(classes, funcs, o.Line)
		}
	}

	s.logger.Debug("analyzed file",
		slog.String("path", f.Path),
		slog.String("language", string(f.Language)),
		slog.Int("statements", len(fa.Statements)),
		slog.Int("blocks", len(fa.Blocks)),
		slog.Int("occurrences", len(fa.Occurrences)))
	return fa
}

// takeStatement splits off the leading tokens that start inside stmt.
// Tokens arrive in source order, so statements consume them in turn.
func takeStatement(toks []token.Token, stmt core.Statement) (rest, own []token.Token) {
	n := 0
	for n < len(toks) && toks[n].Pos.Line <= stmt.EndLine {
		n++
	}
	for _, tok := range toks[:n] {
		if tok.Pos.Line >= stmt.StartLine {
			own = append(own, tok)
		}
	}
	return toks[n:], own
}

// progress reports a monotonic completed fraction.
type progress struct {
	mu    sync.Mutex
	total int
	n     int
	fn    func(float64)
}

func newProgress(total int, fn func(float64)) *progress {
	return &progress{total: total, fn: fn}
}

// advance counts one finished or skipped file, so the fraction always
// ends at 1.
func (p *progress) advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	if p.fn != nil {
		p.fn(float64(p.n) / float64(p.total))
	}
}
