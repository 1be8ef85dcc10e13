// Package dictionary holds the legacy table/field dictionary a scan looks for.
//
// A Dictionary is built once per scan and is read-only afterwards, so it can
// be shared by all workers without locking.
package dictionary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// Dictionary indexes entries by table and field, case-insensitively.
type Dictionary struct {
	entries []core.DictionaryEntry

	byBase    map[string][]core.DictionaryEntry // lower base table name -> field entries
	agnostic  map[string]core.DictionaryEntry   // lower field -> table-agnostic entry
	tableOnly map[string]core.DictionaryEntry   // lower base table name -> table-level entry
	fields    map[string]bool                   // lower field names of any entry
	tables    map[string]bool                   // lower base names of every dictionary table
}

// New builds a dictionary. Entries are deduplicated by (lower table, lower
// field); the later entry wins and each duplicate yields a
// DictionaryAmbiguity diagnostic. Blank rows are ignored.
func New(entries []core.DictionaryEntry) (*Dictionary, []core.Diagnostic) {
	var diags []core.Diagnostic
	byKey := make(map[string]int)
	var kept []core.DictionaryEntry

	for _, e := range entries {
		e.Table = strings.TrimSpace(e.Table)
		e.Field = strings.TrimSpace(e.Field)
		if e.Table == "*" && e.Field == "" || e.Table == "" && e.Field == "" {
			continue
		}
		key := e.Key()
		if i, ok := byKey[key]; ok {
			diags = append(diags, core.Diagnostic{
				Kind:    core.DictionaryAmbiguity,
				Message: fmt.Sprintf("duplicate entry %s (was %s); the later one wins", e, kept[i]),
			})
			kept[i] = e
			continue
		}
		byKey[key] = len(kept)
		kept = append(kept, e)
	}

	d := &Dictionary{
		byBase:    make(map[string][]core.DictionaryEntry),
		agnostic:  make(map[string]core.DictionaryEntry),
		tableOnly: make(map[string]core.DictionaryEntry),
		fields:    make(map[string]bool),
		tables:    make(map[string]bool),
	}
	for _, e := range kept {
		d.add(e)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if at, bt := strings.ToLower(a.Table), strings.ToLower(b.Table); at != bt {
			return at < bt
		}
		return strings.ToLower(a.Field) < strings.ToLower(b.Field)
	})
	d.entries = kept
	return d, diags
}

func (d *Dictionary) add(e core.DictionaryEntry) {
	field := strings.ToLower(e.Field)
	switch {
	case e.IsTableAgnostic():
		d.agnostic[field] = e
		d.fields[field] = true
	case e.IsTableOnly():
		base := lowerBase(e.Table)
		d.tableOnly[base] = e
		d.tables[base] = true
	default:
		base := lowerBase(e.Table)
		d.byBase[base] = append(d.byBase[base], e)
		d.fields[field] = true
		d.tables[base] = true
	}
}

func lowerBase(name string) string {
	return strings.ToLower(core.BaseName(name))
}

// SameTable reports whether a dictionary table and a table named in source
// refer to the same table. Names compare case-insensitively; when either side
// is unqualified only the last segments are compared.
func SameTable(dictTable, name string) bool {
	if strings.EqualFold(dictTable, name) {
		return true
	}
	if strings.Contains(dictTable, ".") && strings.Contains(name, ".") {
		return false
	}
	return strings.EqualFold(core.BaseName(dictTable), core.BaseName(name))
}

// Entries returns the deduplicated entries sorted by table and field.
func (d *Dictionary) Entries() []core.DictionaryEntry {
	out := make([]core.DictionaryEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len returns the number of distinct entries.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// Field returns the entry for (table, field), where table is a name as
// written in source.
func (d *Dictionary) Field(table, field string) (core.DictionaryEntry, bool) {
	for _, e := range d.byBase[lowerBase(table)] {
		if strings.EqualFold(e.Field, field) && SameTable(e.Table, table) {
			return e, true
		}
	}
	return core.DictionaryEntry{}, false
}

// Agnostic returns the table-agnostic entry for a field.
func (d *Dictionary) Agnostic(field string) (core.DictionaryEntry, bool) {
	e, ok := d.agnostic[strings.ToLower(field)]
	return e, ok
}

// AgnosticEntries returns every table-agnostic entry.
func (d *Dictionary) AgnosticEntries() []core.DictionaryEntry {
	var out []core.DictionaryEntry
	for _, e := range d.entries {
		if e.IsTableAgnostic() {
			out = append(out, e)
		}
	}
	return out
}

// TableOnly returns the table-level entry for a table named in source.
func (d *Dictionary) TableOnly(table string) (core.DictionaryEntry, bool) {
	e, ok := d.tableOnly[lowerBase(table)]
	if !ok || !SameTable(e.Table, table) {
		return core.DictionaryEntry{}, false
	}
	return e, true
}

// TableOnlyEntries returns every table-level entry.
func (d *Dictionary) TableOnlyEntries() []core.DictionaryEntry {
	var out []core.DictionaryEntry
	for _, e := range d.entries {
		if e.IsTableOnly() {
			out = append(out, e)
		}
	}
	return out
}

// FieldsOf returns the field entries of a table named in source.
func (d *Dictionary) FieldsOf(table string) []core.DictionaryEntry {
	var out []core.DictionaryEntry
	for _, e := range d.byBase[lowerBase(table)] {
		if SameTable(e.Table, table) {
			out = append(out, e)
		}
	}
	return out
}

// HasField reports whether any entry names the field.
func (d *Dictionary) HasField(field string) bool {
	return d.fields[strings.ToLower(field)]
}

// HasTable reports whether any entry names the table.
func (d *Dictionary) HasTable(table string) bool {
	return d.tables[lowerBase(table)]
}

// Tables returns the distinct dictionary tables, first spelling kept, sorted.
func (d *Dictionary) Tables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range d.entries {
		if e.IsTableAgnostic() {
			continue
		}
		key := strings.ToLower(e.Table)
		if !seen[key] {
			seen[key] = true
			out = append(out, e.Table)
		}
	}
	return out
}
