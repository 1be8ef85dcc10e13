package state

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/legacyscan/internal/scan"
	"github.com/leapstack-labs/legacyscan/pkg/export"
)

// timeLayout is fixed width so start times order correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, root, started_at, duration_ms, files, failed, skipped,
	statements, blocks, occurrences, diagnostics, entries, entries_found`

// SaveRun persists a scan result in one transaction and returns the new run.
func (s *SQLiteStore) SaveRun(ctx context.Context, root string, res *scan.Result) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &Run{
		ID:           generateID(),
		Root:         root,
		StartedAt:    time.Now().UTC().Add(-res.Stats.Duration),
		Duration:     res.Stats.Duration,
		Files:        res.Stats.Files,
		Failed:       res.Stats.Failed,
		Skipped:      res.Stats.Skipped,
		Statements:   res.Stats.Statements,
		Blocks:       res.Stats.Blocks,
		Occurrences:  len(res.Occurrences),
		Diagnostics:  res.Report.Len(),
		Entries:      res.Stats.Entries,
		EntriesFound: res.Stats.EntriesFound,
	}
	s.logger.Debug("saving run", slog.String("id", run.ID), slog.String("root", root))

	var graph bytes.Buffer
	if res.Graph != nil {
		if err := export.WriteGraphJSON(&graph, res.Graph); err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Root, run.StartedAt.Format(timeLayout), run.Duration.Milliseconds(),
		run.Files, run.Failed, run.Skipped, run.Statements, run.Blocks,
		run.Occurrences, run.Diagnostics, run.Entries, run.EntriesFound,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	for _, f := range res.Files {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_files (run_id, path, language, hash, lines, failed) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, f.Path, string(f.Language), int64(f.Hash), f.Lines, f.Failed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to save file %s: %w", f.Path, err)
		}
	}

	for i, o := range res.Occurrences {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO occurrences (run_id, seq, table_name, field_name, mapping, entry_group,
				file_path, line, col, resolved_table, qualifier, statement_index, line_text,
				function_name, class_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, o.Entry.Table, o.Entry.Field, o.Entry.Mapping, o.Entry.Group,
			o.FilePath, o.Line, o.Column, o.ResolvedTable, o.Qualifier, o.StatementIndex, o.LineText,
			o.Function, o.Class,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to save occurrence: %w", err)
		}
	}

	for i, d := range res.Report.Diagnostics {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO diagnostics (run_id, seq, kind, path, line, message) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, i, string(d.Kind), d.Path, d.Line, d.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to save diagnostic: %w", err)
		}
	}

	if graph.Len() > 0 {
		_, err := tx.ExecContext(ctx, `INSERT INTO run_graphs (run_id, graph) VALUES (?, ?)`, run.ID, graph.String())
		if err != nil {
			return nil, fmt.Errorf("failed to save graph: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Info("saved run",
		slog.String("id", run.ID),
		slog.Int("occurrences", run.Occurrences),
		slog.Int("diagnostics", run.Diagnostics))
	return run, nil
}

// GetRun retrieves a run by ID or by a unique ID prefix.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRunNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id LIMIT 2`,
		id, escapeLike(id)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, id)
	}
}

// GetLatestRun retrieves the most recent run for a root. It returns nil
// without error when there are none.
func (s *SQLiteStore) GetLatestRun(ctx context.Context, root string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE root = ? ORDER BY started_at DESC LIMIT 1`, root)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// ListRuns retrieves the most recent runs, newest first, up to limit.
// A limit of zero or less lists every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and everything recorded with it.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	if s.db == nil {
		return errNotOpened
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		var (
			r          Run
			startedAt  string
			durationMS int64
		)
		err := rows.Scan(&r.ID, &r.Root, &startedAt, &durationMS,
			&r.Files, &r.Failed, &r.Skipped, &r.Statements, &r.Blocks,
			&r.Occurrences, &r.Diagnostics, &r.Entries, &r.EntriesFound)
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s has a bad start time: %w", r.ID, err)
		}
		r.StartedAt = t
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// escapeLike makes a user-supplied prefix literal inside LIKE. SQLite has
// no default escape character, so wildcards are rejected instead.
func escapeLike(s string) string {
	if strings.ContainsAny(s, "%_") {
		return "\x00"
	}
	return s
}
