package views

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// Node types of the code views.
const (
	TypeFunction = "function"
	TypeMethod   = "method"
	TypeClass    = "class"
	TypeExternal = "external"
)

// FunctionID returns the view node ID of a function.
func FunctionID(f core.Function) string {
	return "func:" + f.FilePath + "#" + f.QualifiedName()
}

// ClassID returns the view node ID of a class declared in path.
func ClassID(path, name string) string {
	return "class:" + path + "#" + name
}

// symbolIndex finds declarations by simple name, preferring the caller's
// own class, then its file, then a unique match anywhere.
type symbolIndex[T any] struct {
	byName map[string][]T
	path   func(T) string
}

func newSymbolIndex[T any](path func(T) string) *symbolIndex[T] {
	return &symbolIndex[T]{byName: make(map[string][]T), path: path}
}

func (x *symbolIndex[T]) add(name string, v T) {
	x.byName[name] = append(x.byName[name], v)
}

// lookup returns the candidates for name seen from file, narrowed by
// prefer. ambiguous is set when several candidates remain.
func (x *symbolIndex[T]) lookup(name, file string, prefer func(T) bool) (v T, ok, ambiguous bool) {
	cands := x.byName[name]
	for _, narrow := range []func(T) bool{
		prefer,
		func(c T) bool { return x.path(c) == file },
		func(T) bool { return true },
	} {
		if narrow == nil {
			continue
		}
		var hits []T
		for _, c := range cands {
			if narrow(c) {
				hits = append(hits, c)
			}
		}
		switch {
		case len(hits) == 1:
			return hits[0], true, false
		case len(hits) > 1:
			return v, false, true
		}
	}
	return v, false, false
}

// lastSegment returns the part after the last dot.
func lastSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Calls projects the function call graph of Python, Java, Scala and shell
// code. A call links to the declared function of the same simple name:
// a method of the caller's class first, then a function of its file, then
// the only declaration anywhere. Calls to undeclared names are counted in
// the caller's external attribute; ambiguous calls add a warning.
func Calls(in Input) View {
	b := newBuilder(NameCalls)
	idx := newSymbolIndex(func(f core.Function) string { return f.FilePath })

	var funcs []core.Function
	for _, f := range in.files() {
		for _, fn := range f.Functions {
			funcs = append(funcs, fn)
			if b.has(FunctionID(fn)) {
				continue // overload
			}
			idx.add(fn.Name, fn)
			typ := TypeFunction
			if fn.IsMethod() {
				typ = TypeMethod
			}
			attrs := map[string]string{
				"file":  fn.FilePath,
				"lines": lines(fn.StartLine, fn.EndLine),
			}
			if fn.Class != "" {
				attrs["class"] = fn.Class
			}
			if len(fn.Parameters) > 0 {
				attrs["parameters"] = strings.Join(fn.Parameters, ", ")
			}
			b.node(Node{ID: FunctionID(fn), Label: fn.QualifiedName(), Type: typ, Attrs: attrs})
		}
	}

	ambiguous := 0
	for _, fn := range funcs {
		external := 0
		for _, call := range fn.Calls {
			sameClass := func(c core.Function) bool {
				return fn.Class != "" && c.Class == fn.Class && c.FilePath == fn.FilePath
			}
			target, ok, amb := idx.lookup(lastSegment(call), fn.FilePath, sameClass)
			switch {
			case amb:
				ambiguous++
			case !ok:
				external++
			case FunctionID(target) != FunctionID(fn):
				b.edge(FunctionID(fn), FunctionID(target), "calls", call, 1)
			}
		}
		if external > 0 {
			b.attr(FunctionID(fn), "external", strconv.Itoa(external))
		}
	}
	if ambiguous > 0 {
		b.warn("%d calls match more than one function and were not linked", ambiguous)
	}
	return b.build()
}

// Classes projects a class diagram. Each class lists its methods and
// attributes; inherits edges point from a class to its bases. Bases that
// are not declared in the scanned code become external nodes.
func Classes(in Input) View {
	b := newBuilder(NameClasses)
	idx := newSymbolIndex(func(c core.Class) string { return c.FilePath })

	var classes []core.Class
	for _, f := range in.files() {
		for _, c := range f.Classes {
			if b.has(ClassID(c.FilePath, c.Name)) {
				continue
			}
			classes = append(classes, c)
			idx.add(c.Name, c)
			attrs := map[string]string{
				"file":  c.FilePath,
				"lines": lines(c.StartLine, c.EndLine),
			}
			if len(c.Methods) > 0 {
				attrs["methods"] = strings.Join(c.Methods, ", ")
			}
			if len(c.Attributes) > 0 {
				attrs["attributes"] = strings.Join(c.Attributes, ", ")
			}
			b.node(Node{ID: ClassID(c.FilePath, c.Name), Label: c.Name, Type: TypeClass, Attrs: attrs})
		}
	}

	for _, c := range classes {
		from := ClassID(c.FilePath, c.Name)
		for _, base := range c.Bases {
			to := "class:" + base
			if target, ok, _ := idx.lookup(lastSegment(base), c.FilePath, nil); ok {
				to = ClassID(target.FilePath, target.Name)
			} else {
				b.node(Node{ID: to, Label: base, Type: TypeExternal})
			}
			if to != from {
				b.edge(from, to, "inherits", "inherits", 1)
			}
		}
	}
	return b.build()
}
