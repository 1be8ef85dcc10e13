package lineage

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// Build reduces the blocks of every analyzed file into a lineage graph.
// Files are visited in path order so table display names are stable.
// Path imports that match no scanned file are reported as diagnostics;
// module imports that match nothing are external packages and are dropped.
func Build(files []core.FileAnalysis) (*Graph, []core.Diagnostic) {
	sorted := make([]*core.FileAnalysis, 0, len(files))
	for i := range files {
		if !files[i].Failed {
			sorted = append(sorted, &files[i])
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	g := newGraph()
	idx := newPathIndex()
	for _, f := range sorted {
		g.addNode(Node{ID: ScriptID(f.Path), Type: ScriptNode, Name: f.Path, Language: f.Language})
		idx.add(f.Path)
	}

	var diags []core.Diagnostic
	for _, f := range sorted {
		script := ScriptID(f.Path)
		for _, b := range f.Blocks {
			for _, t := range b.Sources {
				g.addNode(Node{ID: TableID(t), Type: TableNode, Name: t})
				g.addEdge(script, TableID(t), Reads, b.ID)
			}
			for _, t := range b.Targets {
				g.addNode(Node{ID: TableID(t), Type: TableNode, Name: t})
				g.addEdge(script, TableID(t), Writes, b.ID)
			}
			for _, imp := range b.Imports {
				dep, ok := idx.resolve(f.Path, f.Language, imp)
				if !ok {
					if imp.Style == core.ImportPath {
						diags = append(diags, core.Diagnostic{
							Kind:    core.UnresolvedImport,
							Path:    f.Path,
							Line:    imp.Line,
							Message: fmt.Sprintf("%q matches no scanned file", imp.Raw),
						})
					}
					continue
				}
				if dep == f.Path {
					continue
				}
				g.addEdge(script, ScriptID(dep), DependsOn, b.ID)
			}
		}
	}
	return g, diags
}

// templatePattern matches shell and template placeholders: $VAR, ${VAR},
// {var} and {{var}}.
var templatePattern = regexp.MustCompile(`\$\{[^}]*\}|\$[A-Za-z_][A-Za-z0-9_]*|\{\{[^}]*\}\}|\{[^}]*\}`)

// pathIndex resolves imports against the scanned paths.
type pathIndex struct {
	paths []string
	exact map[string]string // cleaned lower path -> path
}

func newPathIndex() *pathIndex {
	return &pathIndex{exact: make(map[string]string)}
}

func (x *pathIndex) add(p string) {
	x.paths = append(x.paths, p)
	key := strings.ToLower(cleanPath(p))
	if _, ok := x.exact[key]; !ok {
		x.exact[key] = p
	}
}

// resolve returns the scanned path an import refers to.
func (x *pathIndex) resolve(from string, lang core.Language, imp core.ImportRef) (string, bool) {
	if imp.Style == core.ImportPath {
		ref := templatePattern.ReplaceAllString(strings.TrimSpace(imp.Raw), "")
		if !strings.HasPrefix(ref, "/") {
			rel := strings.ToLower(cleanPath(path.Join(path.Dir(from), ref)))
			if p, ok := x.exact[rel]; ok {
				return p, true
			}
		}
		return x.lookup(from, ref)
	}

	for _, name := range moduleNames(lang, imp.Raw) {
		base := strings.ReplaceAll(name, ".", "/")
		for _, candidate := range []string{base + ".py", base + "/__init__.py", base + ".java", base + ".scala"} {
			if p, ok := x.suffix(from, candidate, false); ok {
				return p, true
			}
		}
	}
	return "", false
}

// moduleNames lists the names to try for a module import. A Java or Scala
// import may name a member of a class, so its parent is tried as well.
func moduleNames(lang core.Language, raw string) []string {
	names := []string{raw}
	if lang == core.LangJava || lang == core.LangScala {
		if i := strings.LastIndex(raw, "."); i > 0 && strings.Contains(raw[:i], ".") {
			names = append(names, raw[:i])
		}
	}
	return names
}

// lookup resolves a path reference by exact path, then by shared suffix.
func (x *pathIndex) lookup(from, ref string) (string, bool) {
	cleaned := cleanPath(ref)
	if cleaned == "" {
		return "", false
	}
	if p, ok := x.exact[strings.ToLower(cleaned)]; ok {
		return p, true
	}
	return x.suffix(from, cleaned, true)
}

// suffix finds the scanned path sharing the longest run of trailing
// segments with ref. The whole of ref must match, or with either set the
// whole of the scanned path (an absolute deployment path such as
// /opt/etl/load.hql matches the scanned etl/load.hql). Ties prefer the
// importer's directory, then path order.
func (x *pathIndex) suffix(from, ref string, either bool) (string, bool) {
	refSegs := strings.Split(strings.ToLower(cleanPath(ref)), "/")
	best, bestScore := "", 0
	for _, p := range x.paths {
		segs := strings.Split(strings.ToLower(cleanPath(p)), "/")
		n := commonSuffix(refSegs, segs)
		if n == 0 {
			continue
		}
		if n < len(refSegs) && (!either || n < len(segs)) {
			continue
		}
		switch {
		case n > bestScore:
			best, bestScore = p, n
		case n == bestScore && preferred(from, p, best):
			best = p
		}
	}
	return best, best != ""
}

// preferred reports whether a beats b as the target of an import from.
func preferred(from, a, b string) bool {
	dir := path.Dir(from)
	if ad, bd := path.Dir(a) == dir, path.Dir(b) == dir; ad != bd {
		return ad
	}
	return a < b
}

func commonSuffix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}

// cleanPath normalizes a reference to a slash path without leading "/",
// "./" or "~/".
func cleanPath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	p = strings.TrimPrefix(p, "file://")
	p = strings.TrimPrefix(p, "~")
	if p == "" {
		return ""
	}
	p = strings.TrimLeft(path.Clean("/"+p), "/")
	if p == "." {
		return ""
	}
	return p
}
