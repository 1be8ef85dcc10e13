package dictionary

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// LoadError is a dictionary file that could not be read or parsed.
type LoadError struct {
	Path string
	Line int // 0 when the error is not tied to a line
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("dictionary %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("dictionary %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ErrUnsupportedFormat is returned for dictionary files that are neither
// CSV/TSV nor YAML/JSON.
var ErrUnsupportedFormat = errors.New("unsupported dictionary format")

// ErrNoColumns is returned when a CSV header names no table or field column.
var ErrNoColumns = errors.New("no table or field column")

// LoadFile reads dictionary entries from a .csv, .tsv, .yaml, .yml or .json file.
func LoadFile(path string) ([]core.DictionaryEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	group := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(bytes.NewReader(data), path, group, ',')
	case ".tsv":
		return readCSV(bytes.NewReader(data), path, group, '\t')
	case ".yaml", ".yml", ".json":
		return readYAML(data, path)
	default:
		return nil, &LoadError{Path: path, Err: ErrUnsupportedFormat}
	}
}

// LoadCSV reads comma-separated entries. Rows without a Group get group.
func LoadCSV(r io.Reader, group string) ([]core.DictionaryEntry, error) {
	return readCSV(r, "<csv>", group, ',')
}

// LoadYAML reads entries from a YAML (or JSON) document.
func LoadYAML(data []byte) ([]core.DictionaryEntry, error) {
	return readYAML(data, "<yaml>")
}

// Header aliases, lower case. The legacy spreadsheets spell "Attrribute"
// with a double r.
var (
	tableHeaders   = []string{"legacy_table", "table", "table_name", "tablename"}
	fieldHeaders   = []string{"attribute", "attrribute", "field", "field_name", "column", "column_name"}
	mappingHeaders = []string{"c360_mapping", "mapping", "target_mapping", "mapping_in_c360"}
	groupHeaders   = []string{"sheet", "group", "section"}
)

type columns struct {
	table, field, mapping, group int
}

// headerColumns maps a header row to column indexes, or false when the
// row is data rather than a header.
func headerColumns(row []string) (columns, bool) {
	cols := columns{table: -1, field: -1, mapping: -1, group: -1}
	find := func(names []string) int {
		for i, cell := range row {
			h := strings.ToLower(strings.TrimSpace(cell))
			h = strings.ReplaceAll(h, " ", "_")
			for _, n := range names {
				if h == n {
					return i
				}
			}
		}
		return -1
	}
	cols.table = find(tableHeaders)
	cols.field = find(fieldHeaders)
	cols.mapping = find(mappingHeaders)
	cols.group = find(groupHeaders)
	if cols.table < 0 && cols.field < 0 && cols.mapping < 0 && cols.group < 0 {
		return columns{table: 0, field: 1, mapping: 2, group: 3}, false
	}
	return cols, true
}

func readCSV(r io.Reader, path, group string, comma rune) ([]core.DictionaryEntry, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var (
		entries []core.DictionaryEntry
		cols    columns
		first   = true
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &LoadError{Path: path, Line: line, Err: err}
		}
		if first {
			first = false
			var isHeader bool
			cols, isHeader = headerColumns(row)
			if isHeader {
				if cols.table < 0 && cols.field < 0 {
					line, _ := cr.FieldPos(0)
					return nil, &LoadError{Path: path, Line: line, Err: ErrNoColumns}
				}
				continue
			}
		}

		e := core.DictionaryEntry{
			Table:   cell(row, cols.table),
			Field:   cell(row, cols.field),
			Mapping: cell(row, cols.mapping),
			Group:   cell(row, cols.group),
		}
		if e.Group == "" {
			e.Group = group
		}
		if e.Table == "" && e.Field == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// yamlDoc is the mapping form of a dictionary file:
//
//	entries:
//	  - {table: t, field: f}
//	groups:
//	  - name: Demographics
//	    entries:
//	      - {table: t, field: g, mapping: customer.g}
type yamlDoc struct {
	Entries []core.DictionaryEntry `yaml:"entries"`
	Groups  []yamlGroup            `yaml:"groups"`
}

type yamlGroup struct {
	Name    string                 `yaml:"name"`
	Entries []core.DictionaryEntry `yaml:"entries"`
}

// readYAML accepts either a bare list of entries or a yamlDoc mapping.
func readYAML(data []byte, path string) ([]core.DictionaryEntry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]

	if doc.Kind == yaml.SequenceNode {
		var entries []core.DictionaryEntry
		if err := doc.Decode(&entries); err != nil {
			return nil, &LoadError{Path: path, Line: doc.Line, Err: err}
		}
		return entries, nil
	}

	var parsed yamlDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&parsed); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	entries := parsed.Entries
	for _, g := range parsed.Groups {
		for _, e := range g.Entries {
			if e.Group == "" {
				e.Group = g.Name
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// LoadFiles reads and concatenates several dictionary files in order.
func LoadFiles(paths ...string) ([]core.DictionaryEntry, error) {
	var all []core.DictionaryEntry
	for _, p := range paths {
		entries, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}
