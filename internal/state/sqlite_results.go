package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/export"
	"github.com/leapstack-labs/legacyscan/pkg/lineage"
)

// Files returns the files scanned in a run, in path order.
func (s *SQLiteStore) Files(ctx context.Context, runID string) ([]File, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, language, hash, lines, failed FROM run_files WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []File
	for rows.Next() {
		var (
			f    File
			hash int64
		)
		if err := rows.Scan(&f.Path, &f.Language, &hash, &f.Lines, &f.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.Hash = uint64(hash)
		files = append(files, f)
	}
	return files, rows.Err()
}

// ChangedFiles compares two runs by content hash. It returns the paths
// added, removed and modified from base to head.
func (s *SQLiteStore) ChangedFiles(ctx context.Context, baseID, headID string) (added, removed, modified []string, err error) {
	base, err := s.Files(ctx, baseID)
	if err != nil {
		return nil, nil, nil, err
	}
	head, err := s.Files(ctx, headID)
	if err != nil {
		return nil, nil, nil, err
	}

	hashes := make(map[string]uint64, len(base))
	for _, f := range base {
		hashes[f.Path] = f.Hash
	}
	for _, f := range head {
		h, ok := hashes[f.Path]
		switch {
		case !ok:
			added = append(added, f.Path)
		case h != f.Hash:
			modified = append(modified, f.Path)
		}
		delete(hashes, f.Path)
	}
	for _, f := range base {
		if _, ok := hashes[f.Path]; ok {
			removed = append(removed, f.Path)
		}
	}
	return added, removed, modified, nil
}

// Occurrences returns the occurrences of a run in their saved order.
func (s *SQLiteStore) Occurrences(ctx context.Context, runID string) ([]core.Occurrence, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, field_name, mapping, entry_group, file_path, line, col,
			resolved_table, qualifier, statement_index, line_text, function_name, class_name
		FROM occurrences WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Occurrence
	for rows.Next() {
		var o core.Occurrence
		err := rows.Scan(&o.Entry.Table, &o.Entry.Field, &o.Entry.Mapping, &o.Entry.Group,
			&o.FilePath, &o.Line, &o.Column, &o.ResolvedTable, &o.Qualifier, &o.StatementIndex, &o.LineText,
			&o.Function, &o.Class)
		if err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Diagnostics returns the diagnostics of a run, optionally limited to kinds.
func (s *SQLiteStore) Diagnostics(ctx context.Context, runID string, kinds ...core.DiagnosticKind) ([]core.Diagnostic, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	query := `SELECT kind, path, line, message FROM diagnostics WHERE run_id = ?`
	args := []any{runID}
	if len(kinds) > 0 {
		query += ` AND kind IN (?` + strings.Repeat(", ?", len(kinds)-1) + `)`
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Diagnostic
	for rows.Next() {
		var (
			d    core.Diagnostic
			kind string
		)
		if err := rows.Scan(&kind, &d.Path, &d.Line, &d.Message); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		d.Kind = core.DiagnosticKind(kind)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Graph returns the lineage graph saved with a run.
func (s *SQLiteStore) Graph(ctx context.Context, runID string) (*lineage.Graph, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT graph FROM run_graphs WHERE run_id = ?`, runID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no graph for %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}

	g, err := export.ReadGraphJSON(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to decode graph of run %s: %w", runID, err)
	}
	return g, nil
}
