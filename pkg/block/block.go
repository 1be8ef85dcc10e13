// Package block derives per-statement facts and groups statements into
// blocks: named units of work with sources, targets and imports.
package block

import (
	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// Extract groups a file's statements into blocks and records each
// statement's block index in stmts.
//
// In SQL files every query is its own block and runs of other text form one
// block. In code files definitions and control statements are their own
// blocks, consecutive import-only statements form one block, and the rest
// accumulate into data blocks that close after a statement with targets.
func Extract(path string, lang core.Language, stmts []core.AnalyzedStatement) []core.Block {
	b := &builder{path: path, stmts: stmts, open: -1}
	if lang.IsSQL() {
		b.sql()
	} else {
		b.code()
	}
	b.close()
	return b.blocks
}

type builder struct {
	path   string
	stmts  []core.AnalyzedStatement
	blocks []core.Block

	open int // first statement of the block being accumulated, -1 when none
	last int // last statement added to the open block
	role core.BlockRole
}

func (b *builder) sql() {
	for i, s := range b.stmts {
		if s.Kind == core.KindOther {
			b.accumulate(i, core.BlockData)
			continue
		}
		b.close()
		b.single(i, core.BlockSQL)
	}
}

func (b *builder) code() {
	for i, s := range b.stmts {
		switch {
		case s.IsDefinition():
			b.close()
			b.single(i, core.BlockDefinition)
		case s.Control != "":
			b.close()
			b.single(i, core.BlockControl)
		case importOnly(s):
			b.accumulate(i, core.BlockImports)
		default:
			b.accumulate(i, core.BlockData)
			if len(s.Targets) > 0 {
				b.close()
			}
		}
	}
}

func importOnly(s core.AnalyzedStatement) bool {
	return len(s.Imports) > 0 && !s.ReadsOrWrites()
}

// accumulate adds statement i to the open block of the given role, closing
// a block of another role first.
func (b *builder) accumulate(i int, role core.BlockRole) {
	if b.open >= 0 && b.role != role {
		b.close()
	}
	if b.open < 0 {
		b.open = i
		b.role = role
	}
	b.last = i
}

func (b *builder) single(i int, role core.BlockRole) {
	b.open = i
	b.role = role
	b.closeAt(i)
}

// close ends the open block, if any.
func (b *builder) close() {
	if b.open >= 0 {
		b.closeAt(b.last)
	}
}

func (b *builder) closeAt(last int) {
	first := b.open
	b.open = -1

	blk := core.Block{
		ID:             core.BlockID(b.path, len(b.blocks)),
		FilePath:       b.path,
		Index:          len(b.blocks),
		Role:           b.role,
		StartLine:      b.stmts[first].StartLine,
		EndLine:        b.stmts[last].EndLine,
		FirstStatement: first,
		LastStatement:  last,
	}
	if first == last {
		blk.Name = b.stmts[first].Name
		blk.Control = b.stmts[first].Control
	}

	var sources, targets []string
	seen := make(map[core.ImportRef]bool)
	for i := first; i <= last; i++ {
		s := &b.stmts[i]
		s.Block = blk.Index
		sources = append(sources, s.Sources...)
		targets = append(targets, s.Targets...)
		for _, imp := range s.Imports {
			key := core.ImportRef{Raw: imp.Raw, Style: imp.Style}
			if !seen[key] {
				seen[key] = true
				blk.Imports = append(blk.Imports, imp)
			}
		}
	}
	blk.Sources = Distinct(sources)
	blk.Targets = Distinct(targets)
	b.blocks = append(b.blocks, blk)
}
