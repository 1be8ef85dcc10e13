// Package source discovers and reads the Source Set: every supported file
// under a root, decoded to UTF-8, hashed and classified by language.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar"
	"github.com/minio/highwayhash"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
}

// hashKey is the fixed 32-byte highwayhash key; hashes are only compared
// between runs of this tool.
var hashKey = []byte("legacyscan/source/hash/key/00001")

// sparkPattern marks Python files that use Spark.
var sparkPattern = regexp.MustCompile(`(?m)^\s*(?:from\s+pyspark[\w.]*\s+import|import\s+pyspark)\b|\bSparkSession\b`)

// Options controls discovery.
type Options struct {
	// Exclude holds glob patterns (with ** support) matched against
	// slash-separated paths relative to the root.
	Exclude []string
	// MaxFileSize skips larger files with a diagnostic. Zero means no limit.
	MaxFileSize int64
	Logger      *slog.Logger
}

// Set is the result of loading a root.
type Set struct {
	Root  string
	Files []core.SourceFile
	// Diagnostics holds files that were found but could not be read.
	Diagnostics []core.Diagnostic
	// Unsupported counts files skipped for their extension.
	Unsupported int
	// Excluded counts files and directories skipped by name or pattern.
	Excluded int
}

// Loader reads source files through afs, so local paths and other afs
// URLs (mem://, file://) load alike.
type Loader struct {
	fs     afs.Service
	opts   Options
	logger *slog.Logger
}

// NewLoader creates a loader.
func NewLoader(opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{fs: afs.New(), opts: opts, logger: logger}
}

// Load walks root and reads every supported file. Files are returned in
// path order with paths relative to root.
func (l *Loader) Load(ctx context.Context, root string) (*Set, error) {
	for _, p := range l.opts.Exclude {
		if err := ValidatePattern(p); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
	}
	if ok, err := l.fs.Exists(ctx, root); err != nil || !ok {
		return nil, fmt.Errorf("source root %s does not exist", root)
	}

	set := &Set{Root: root}
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		rel := path.Join(parent, info.Name())
		if info.IsDir() {
			if l.skipDir(info.Name(), rel) {
				set.Excluded++
				return false, nil
			}
			return true, nil
		}
		if l.excluded(rel) {
			set.Excluded++
			return true, nil
		}
		if _, ok := core.LanguageFromPath(rel); !ok {
			set.Unsupported++
			return true, nil
		}
		if l.opts.MaxFileSize > 0 && info.Size() > l.opts.MaxFileSize {
			set.Diagnostics = append(set.Diagnostics, core.Diagnostic{
				Kind:    core.UnreadableFile,
				Path:    rel,
				Message: fmt.Sprintf("file size %d exceeds the limit of %d bytes", info.Size(), l.opts.MaxFileSize),
			})
			return true, nil
		}

		data, err := l.read(ctx, url.Join(baseURL, rel), reader)
		if err != nil {
			l.logger.Debug("unreadable file", slog.String("path", rel), slog.String("error", err.Error()))
			set.Diagnostics = append(set.Diagnostics, core.Diagnostic{Kind: core.UnreadableFile, Path: rel, Message: err.Error()})
			return true, nil
		}
		f, _ := NewFile(rel, data)
		set.Files = append(set.Files, f)
		return true, nil
	}

	if err := l.fs.Walk(ctx, root, visitor); err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Slice(set.Files, func(i, j int) bool { return set.Files[i].Path < set.Files[j].Path })
	l.logger.Debug("loaded source set",
		slog.String("root", root),
		slog.Int("files", len(set.Files)),
		slog.Int("unreadable", len(set.Diagnostics)),
		slog.Int("unsupported", set.Unsupported),
		slog.Int("excluded", set.Excluded))
	return set, nil
}

func (l *Loader) read(ctx context.Context, fileURL string, reader io.Reader) ([]byte, error) {
	if reader != nil {
		return io.ReadAll(reader)
	}
	return l.fs.DownloadWithURL(ctx, fileURL)
}

func (l *Loader) skipDir(name, rel string) bool {
	if strings.HasPrefix(name, ".") || skippedDirs[name] {
		return true
	}
	return l.excluded(rel)
}

func (l *Loader) excluded(rel string) bool {
	for _, p := range l.opts.Exclude {
		if l.match(p, rel) {
			return true
		}
		if !strings.Contains(p, "/") && l.match(p, path.Base(rel)) {
			return true
		}
	}
	return false
}

func (l *Loader) match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		l.logger.Warn("exclude pattern failed to match",
			slog.String("pattern", pattern),
			slog.String("path", name),
			slog.String("error", err.Error()))
		return false
	}
	return ok
}

// ValidatePattern reports whether an exclude pattern is well formed.
// doublestar stops parsing at the first mismatch, so each path segment is
// also checked with path.Match, which validates the whole segment.
func ValidatePattern(pattern string) error {
	if _, err := doublestar.Match(pattern, "x"); err != nil {
		return err
	}
	for _, seg := range strings.Split(pattern, "/") {
		if _, err := path.Match(seg, ""); err != nil {
			return err
		}
	}
	return nil
}

// NewFile builds a SourceFile from raw bytes: the text is decoded, hashed
// and classified. Python files that use Spark become PySpark. The second
// result is false for unsupported extensions.
func NewFile(p string, data []byte) (core.SourceFile, bool) {
	lang, ok := core.LanguageFromPath(p)
	text := Decode(data)
	if lang == core.LangPython && sparkPattern.MatchString(text) {
		lang = core.LangPySpark
	}
	return core.SourceFile{Path: p, Language: lang, Text: text, Hash: Hash(data)}, ok
}

// Decode converts file bytes to UTF-8 text. A UTF-8 or UTF-16 byte order
// mark selects the encoding; otherwise invalid UTF-8 is read as
// Windows-1252.
func Decode(data []byte) string {
	if hasBOM(data) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err == nil {
			return string(out)
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
	return string(out)
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE})
}

// Hash returns the highwayhash-64 digest of data.
func Hash(data []byte) uint64 {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		// only fails for a key that is not 32 bytes
		panic(err)
	}
	_, _ = h.Write(data)
	return h.Sum64()
}
