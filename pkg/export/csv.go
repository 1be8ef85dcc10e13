package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// occurrenceHeader is the CSV column order.
var occurrenceHeader = []string{
	"table", "field", "mapping", "group",
	"file", "line", "column", "resolved_table", "qualifier",
	"statement_index", "line_text",
}

// WriteOccurrencesCSV writes one row per occurrence, in the given order.
func WriteOccurrencesCSV(w io.Writer, occ []core.Occurrence) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(occurrenceHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, o := range occ {
		row := []string{
			o.Entry.Table,
			o.Entry.Field,
			o.Entry.Mapping,
			o.Entry.Group,
			o.FilePath,
			strconv.Itoa(o.Line),
			strconv.Itoa(o.Column),
			o.ResolvedTable,
			o.Qualifier,
			strconv.Itoa(o.StatementIndex),
			strings.TrimSpace(o.LineText),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// TimestampedName returns legacyscan-<yyyymmdd-hhmmss><ext>.
func TimestampedName(ext string, now time.Time) string {
	return "legacyscan-" + now.Format("20060102-150405") + ext
}

// ResolvePath returns where an export flag value points. A value naming
// an existing directory, or ending in a separator, gets a timestamped
// file name inside it.
func ResolvePath(target, ext string, now time.Time) string {
	if strings.HasSuffix(target, "/") || strings.HasSuffix(target, string(os.PathSeparator)) {
		return filepath.Join(target, TimestampedName(ext, now))
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return filepath.Join(target, TimestampedName(ext, now))
	}
	return target
}

// CreateFile creates an export file, making parent directories as needed.
func CreateFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}
