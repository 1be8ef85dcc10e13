// Package testutil provides shared test helpers: loggers bound to a test
// and temporary source trees.
package testutil

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a debug logger that writes through t.Log, so
// output only shows for failing tests or with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(tbWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type tbWriter struct {
	t testing.TB
}

func (w tbWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// LogBuffer collects log output for assertions. It is safe for concurrent
// use by scan workers.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewCapturingLogger returns a debug logger writing into the returned buffer.
func NewCapturingLogger() (*slog.Logger, *LogBuffer) {
	lb := &LogBuffer{}
	return slog.New(slog.NewTextHandler(lb, &slog.HandlerOptions{Level: slog.LevelDebug})), lb
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
