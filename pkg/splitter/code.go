package splitter

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/scala"

	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// Grammar returns the tree-sitter language for a code language, or nil.
func Grammar(lang core.Language) *sitter.Language {
	switch lang {
	case core.LangPython, core.LangPySpark:
		return python.GetLanguage()
	case core.LangJava:
		return java.GetLanguage()
	case core.LangScala:
		return scala.GetLanguage()
	case core.LangShell:
		return bash.GetLanguage()
	}
	return nil
}

// containers are Java and Scala declarations whose body is descended one
// level so each member becomes its own statement.
var containers = map[string]bool{
	"class_declaration":     true,
	"interface_declaration": true,
	"enum_declaration":      true,
	"record_declaration":    true,
	"object_definition":     true,
	"class_definition":      true,
	"trait_definition":      true,
}

// definitions are units that carry a Name.
var definitions = map[string]bool{
	"function_definition":     true,
	"class_definition":        true,
	"decorated_definition":    true,
	"method_declaration":      true,
	"constructor_declaration": true,
	"class_declaration":       true,
	"interface_declaration":   true,
	"enum_declaration":        true,
	"record_declaration":      true,
	"object_definition":       true,
	"trait_definition":        true,
}

// controlOf maps conditional and loop node types to a Control keyword.
func controlOf(nodeType string) string {
	switch nodeType {
	case "if_statement", "if_expression":
		return core.ControlIf
	case "for_statement", "enhanced_for_statement", "c_style_for_statement", "for_expression":
		return core.ControlFor
	case "while_statement", "do_statement", "while_expression", "do_while_expression":
		return core.ControlWhile
	case "case_statement", "switch_statement", "switch_expression", "match_statement", "match_expression":
		return core.ControlCase
	}
	return ""
}

func isComment(nodeType string) bool {
	return strings.Contains(nodeType, "comment")
}

// splitCode segments a code file at its top-level syntactic units.
// It returns false when the file could not be parsed at all.
func splitCode(ctx context.Context, lang core.Language, lines []string, idx *lineIndex) ([]segment, bool) {
	g := Grammar(lang)
	if g == nil {
		return nil, false
	}

	src := []byte(strings.Join(lines, "\n"))
	parser := sitter.NewParser()
	parser.SetLanguage(g)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil || tree == nil {
		return nil, false
	}

	descend := lang == core.LangJava || lang == core.LangScala
	root := tree.RootNode()
	var units []segment
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil || isComment(child.Type()) {
			continue
		}
		units = append(units, unitsOf(child, src, descend)...)
	}

	sort.SliceStable(units, func(i, j int) bool { return units[i].start < units[j].start })
	units = mergeOverlaps(units)
	return fillGaps(units, idx), true
}

// unitsOf returns the segments for one top-level node.
func unitsOf(node *sitter.Node, src []byte, descend bool) []segment {
	seg := nodeSegment(node, src)
	if !descend || !containers[node.Type()] {
		return []segment{seg}
	}

	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return []segment{seg}
	}

	var members []segment
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		if m == nil || isComment(m.Type()) {
			continue
		}
		members = append(members, nodeSegment(m, src))
	}
	if len(members) == 0 {
		return []segment{seg}
	}

	// The declaration header keeps the container's name.
	out := make([]segment, 0, len(members)+1)
	if members[0].start > seg.start {
		header := seg
		header.end = members[0].start - 1
		out = append(out, header)
	}
	return append(out, members...)
}

// nodeSegment converts a node's span to 1-based lines.
func nodeSegment(node *sitter.Node, src []byte) segment {
	start := int(node.StartPoint().Row) + 1
	endPoint := node.EndPoint()
	end := int(endPoint.Row) + 1
	if endPoint.Column == 0 && end > start {
		end--
	}

	seg := segment{
		start:   start,
		end:     end,
		kind:    core.KindOther,
		unit:    node.Type(),
		control: controlOf(node.Type()),
	}
	if definitions[node.Type()] {
		seg.name = nodeName(node, src)
	}
	return seg
}

func nodeName(node *sitter.Node, src []byte) string {
	if node.Type() == "decorated_definition" {
		if def := node.ChildByFieldName("definition"); def != nil {
			node = def
		}
	}
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	return ""
}

// mergeOverlaps joins segments that share lines, keeping the first's metadata.
func mergeOverlaps(segs []segment) []segment {
	var out []segment
	for _, s := range segs {
		if n := len(out); n > 0 && s.start <= out[n-1].end {
			if s.end > out[n-1].end {
				out[n-1].end = s.end
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// fillGaps turns code lines between units into OTHER segments. Gaps with
// only blank, comment or closing-bracket lines stay trivia.
func fillGaps(units []segment, idx *lineIndex) []segment {
	var out []segment
	next := 1
	emitGap := func(from, to int) {
		for l := from; l <= to; l++ {
			if idx.hasSubstance(l) {
				out = append(out, segment{start: l, end: to, kind: core.KindOther})
				return
			}
		}
	}

	for _, u := range units {
		if u.start > next {
			emitGap(next, u.start-1)
		}
		out = append(out, u)
		next = u.end + 1
	}
	if next <= idx.n {
		emitGap(next, idx.n)
	}
	return out
}
