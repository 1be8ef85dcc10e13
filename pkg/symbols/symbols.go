// Package symbols extracts classes, functions and call sites from Python,
// Java, Scala and shell files with tree-sitter.
package symbols

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/splitter"
)

// Node types per role, across the supported grammars.
var (
	classTypes = map[string]bool{
		"class_definition":      true, // python, scala
		"class_declaration":     true,
		"interface_declaration": true,
		"enum_declaration":      true,
		"record_declaration":    true,
		"object_definition":     true,
		"trait_definition":      true,
	}
	functionTypes = map[string]bool{
		"function_definition":     true, // python, scala, bash
		"method_declaration":      true,
		"constructor_declaration": true,
	}
	callTypes = map[string]bool{
		"call":              true, // python
		"method_invocation": true, // java
		"call_expression":   true, // scala
		"command":           true, // bash
	}
	// baseTypes hold the superclasses and interfaces of a class.
	baseTypes = map[string]bool{
		"argument_list":      true, // python superclasses
		"superclass":         true,
		"super_interfaces":   true,
		"extends_interfaces": true,
		"extends_clause":     true,
	}
	paramListTypes = map[string]bool{
		"parameters":        true,
		"formal_parameters": true,
	}
)

// Extract parses text and returns its classes and functions sorted by
// line. Languages without a grammar yield nothing.
func Extract(ctx context.Context, path string, lang core.Language, text string) ([]core.Class, []core.Function, error) {
	g := splitter.Grammar(lang)
	if g == nil {
		return nil, nil, nil
	}

	src := []byte(text)
	parser := sitter.NewParser()
	parser.SetLanguage(g)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, err
	}

	x := &extractor{path: path, src: src}
	x.walk(tree.RootNode(), nil, nil)

	classes := make([]core.Class, 0, len(x.classes))
	for _, c := range x.classes {
		c.Attributes = distinct(c.Attributes)
		classes = append(classes, *c)
	}
	funcs := make([]core.Function, 0, len(x.funcs))
	for _, f := range x.funcs {
		f.Calls = distinct(f.Calls)
		funcs = append(funcs, *f)
	}
	core.SortSymbols(classes, funcs)
	return classes, funcs, nil
}

type extractor struct {
	path    string
	src     []byte
	classes []*core.Class
	funcs   []*core.Function
}

func (x *extractor) text(n *sitter.Node) string {
	return n.Content(x.src)
}

// lines converts a node span to 1-based inclusive lines.
func lines(n *sitter.Node) (int, int) {
	start := int(n.StartPoint().Row) + 1
	end := int(n.EndPoint().Row) + 1
	if n.EndPoint().Column == 0 && end > start {
		end--
	}
	return start, end
}

// walk visits n with the innermost enclosing class and function.
func (x *extractor) walk(n *sitter.Node, cls *core.Class, fn *core.Function) {
	if n == nil {
		return
	}
	t := n.Type()
	switch {
	case classTypes[t]:
		cls = x.class(n)
		fn = nil
	case functionTypes[t]:
		fn = x.function(n, cls, fn)
	case callTypes[t]:
		if fn != nil {
			if name := x.callee(n); name != "" {
				fn.Calls = append(fn.Calls, name)
			}
		}
	default:
		if cls != nil {
			x.attributes(n, cls, fn)
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		x.walk(n.NamedChild(i), cls, fn)
	}
}

func (x *extractor) class(n *sitter.Node) *core.Class {
	c := &core.Class{FilePath: x.path}
	c.StartLine, c.EndLine = lines(n)
	if name := n.ChildByFieldName("name"); name != nil {
		c.Name = x.text(name)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch {
		case baseTypes[child.Type()]:
			c.Bases = append(c.Bases, x.typeNames(child)...)
		case child.Type() == "class_parameters":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if p := paramName(child.NamedChild(j), x.src); p != "" {
					c.Attributes = append(c.Attributes, p)
				}
			}
		}
	}
	x.classes = append(x.classes, c)
	return c
}

// typeNames collects the type names under a base clause, skipping type
// arguments and keyword arguments such as metaclass=.
func (x *extractor) typeNames(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "identifier", "type_identifier", "scoped_type_identifier", "stable_type_identifier", "attribute":
			out = append(out, x.text(child))
		case "generic_type":
			if base := child.NamedChild(0); base != nil {
				out = append(out, x.text(base))
			}
		case "type_arguments", "keyword_argument", "arguments":
		default:
			out = append(out, x.typeNames(child)...)
		}
	}
	return out
}

func (x *extractor) function(n *sitter.Node, cls *core.Class, outer *core.Function) *core.Function {
	f := &core.Function{FilePath: x.path}
	f.StartLine, f.EndLine = lines(n)
	if name := n.ChildByFieldName("name"); name != nil {
		f.Name = x.text(name)
	}
	if cls != nil && outer == nil {
		f.Class = cls.Name
		cls.Methods = append(cls.Methods, f.Name)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		list := n.NamedChild(i)
		if !paramListTypes[list.Type()] {
			continue
		}
		for j := 0; j < int(list.NamedChildCount()); j++ {
			if p := paramName(list.NamedChild(j), x.src); p != "" {
				f.Parameters = append(f.Parameters, p)
			}
		}
	}
	x.funcs = append(x.funcs, f)
	return f
}

func paramName(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	if n.Type() == "identifier" {
		return n.Content(src)
	}
	if name := n.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "identifier":
			return child.Content(src)
		case "variable_declarator":
			return paramName(child, src)
		}
	}
	return ""
}

// member splits a member access into its object and member name.
func member(n *sitter.Node, src []byte) (*sitter.Node, string, bool) {
	var obj, name *sitter.Node
	switch n.Type() {
	case "attribute": // python
		obj, name = n.ChildByFieldName("object"), n.ChildByFieldName("attribute")
	case "field_access": // java
		obj, name = n.ChildByFieldName("object"), n.ChildByFieldName("field")
	case "field_expression": // scala
		obj, name = n.ChildByFieldName("value"), n.ChildByFieldName("field")
	default:
		return nil, "", false
	}
	if name == nil {
		return nil, "", false
	}
	return obj, name.Content(src), true
}

// dotted renders a.b.c when every link is a plain name.
func dotted(n *sitter.Node, src []byte) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "identifier", "this", "type_identifier":
		return n.Content(src), true
	}
	obj, name, ok := member(n, src)
	if !ok {
		return "", false
	}
	prefix, ok := dotted(obj, src)
	if !ok {
		return "", false
	}
	return prefix + "." + name, true
}

// callee names the function a call invokes. Calls on computed receivers,
// such as spark.table("t").select(...), keep only the method name.
func (x *extractor) callee(n *sitter.Node) string {
	switch n.Type() {
	case "call", "call_expression":
		fn := n.ChildByFieldName("function")
		if name, ok := dotted(fn, x.src); ok {
			return name
		}
		if fn != nil {
			if _, name, ok := member(fn, x.src); ok {
				return name
			}
		}
	case "method_invocation":
		name := n.ChildByFieldName("name")
		if name == nil {
			return ""
		}
		if prefix, ok := dotted(n.ChildByFieldName("object"), x.src); ok {
			return prefix + "." + x.text(name)
		}
		return x.text(name)
	case "command":
		if name := n.ChildByFieldName("name"); name != nil {
			return strings.TrimSpace(x.text(name))
		}
	}
	return ""
}

// attributes records class fields: assignments in a Python class body or
// to self.x in its methods, Java field declarations and Scala vals.
func (x *extractor) attributes(n *sitter.Node, cls *core.Class, fn *core.Function) {
	switch n.Type() {
	case "assignment":
		left := n.ChildByFieldName("left")
		if left == nil {
			return
		}
		if fn == nil && left.Type() == "identifier" {
			cls.Attributes = append(cls.Attributes, x.text(left))
			return
		}
		if fn != nil && fn.Class == cls.Name {
			if obj, name, ok := member(left, x.src); ok && obj != nil && x.text(obj) == "self" {
				cls.Attributes = append(cls.Attributes, name)
			}
		}
	case "field_declaration":
		if fn != nil {
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if d := n.NamedChild(i); d.Type() == "variable_declarator" {
				if p := paramName(d, x.src); p != "" {
					cls.Attributes = append(cls.Attributes, p)
				}
			}
		}
	case "val_definition", "var_definition", "val_declaration", "var_declaration":
		if fn != nil {
			return
		}
		target := n.ChildByFieldName("pattern")
		if target == nil {
			target = n.ChildByFieldName("name")
		}
		if target != nil && target.Type() == "identifier" {
			cls.Attributes = append(cls.Attributes, x.text(target))
		}
	}
}

// distinct sorts names and drops duplicates and empty names.
func distinct(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	out := names[:0]
	for i, n := range names {
		if n != "" && (i == 0 || n != names[i-1]) {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
