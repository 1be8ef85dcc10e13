// Package state persists scan runs in SQLite: run summaries, file hashes,
// occurrences, diagnostics and the lineage graph of each run.
package state

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when no run matches an ID or ID prefix.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRunID is returned when an ID prefix matches several runs.
var ErrAmbiguousRunID = errors.New("run id prefix is ambiguous")

// Run is the persisted summary of one scan.
type Run struct {
	ID           string        `json:"id"`
	Root         string        `json:"root"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Files        int           `json:"files"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	Statements   int           `json:"statements"`
	Blocks       int           `json:"blocks"`
	Occurrences  int           `json:"occurrences"`
	Diagnostics  int           `json:"diagnostics"`
	Entries      int           `json:"entries"`
	EntriesFound int           `json:"entries_found"`
}

// File is one scanned file of a run.
type File struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Hash     uint64 `json:"hash"`
	Lines    int    `json:"lines"`
	Failed   bool   `json:"failed,omitempty"`
}
