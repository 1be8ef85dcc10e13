package views

import (
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/lineage"
)

// Node types of the block views.
const (
	TypeDataStore = "DataStore"
	TypeProcess   = "Process"
)

// ControlFlowParams restricts the control-flow view to one file.
type ControlFlowParams struct {
	File string
}

// ETL projects the blocks that read or write tables, classified by stage.
// Consecutive stage blocks of a file are joined by next edges, and a block
// feeds every block of another file that reads one of its targets.
func ETL(in Input) View {
	b := newBuilder(NameETL)
	files := in.files()

	readers := make(map[string][]core.Block) // table ID -> reading blocks
	for _, f := range files {
		var prev string
		for _, blk := range f.Blocks {
			if blk.Stage() == core.StageNone {
				continue
			}
			b.node(blockNode(blk, string(blk.Stage())))
			if prev != "" {
				b.edge(prev, blk.ID, "next", "", 1)
			}
			prev = blk.ID
			for _, s := range blk.Sources {
				key := lineage.TableID(s)
				readers[key] = append(readers[key], blk)
			}
		}
	}

	for _, f := range files {
		for _, blk := range f.Blocks {
			for _, t := range blk.Targets {
				for _, r := range readers[lineage.TableID(t)] {
					if r.FilePath != blk.FilePath {
						b.edge(blk.ID, r.ID, "feeds", in.tableLabel(t), 1)
					}
				}
			}
		}
	}
	return b.build()
}

// DFD projects a data-flow diagram: tables are data stores, stage blocks
// are processes.
func DFD(in Input) View {
	b := newBuilder(NameDFD)
	store := func(name string) string {
		id := lineage.TableID(name)
		b.node(Node{ID: id, Label: in.tableLabel(name), Type: TypeDataStore})
		return id
	}

	for _, f := range in.files() {
		for _, blk := range f.Blocks {
			if blk.Stage() == core.StageNone {
				continue
			}
			b.node(blockNode(blk, TypeProcess))
			b.attr(blk.ID, "stage", string(blk.Stage()))
			for _, s := range blk.Sources {
				b.edge(store(s), blk.ID, "read", "read", 1)
			}
			for _, t := range blk.Targets {
				b.edge(blk.ID, store(t), "write", "write", 1)
			}
		}
	}
	return b.build()
}

// ControlFlow projects each file's block sequence. A conditional block is
// entered by a conditional edge and bypassed by a skip edge; a loop block
// has a loop edge to itself.
func ControlFlow(in Input, p ControlFlowParams) View {
	b := newBuilder(NameControlFlow)

	found := p.File == ""
	for _, f := range in.files() {
		if p.File != "" && f.Path != p.File {
			continue
		}
		found = true

		blocks := f.Blocks
		for i, blk := range blocks {
			b.node(blockNode(blk, string(blk.Role)))
			if blk.Control != "" {
				b.attr(blk.ID, "control", blk.Control)
			}
			if st := blk.Stage(); st != core.StageNone {
				b.attr(blk.ID, "stage", string(st))
			}

			if i > 0 {
				prev := blocks[i-1].ID
				if conditional(blk) {
					b.edge(prev, blk.ID, "conditional", "conditional", 1)
					if i+1 < len(blocks) {
						b.edge(prev, blocks[i+1].ID, "skip", "skip", 1)
					}
				} else {
					b.edge(prev, blk.ID, "next", "", 1)
				}
			}
			if loop(blk) {
				b.edge(blk.ID, blk.ID, "loop", "loop", 1)
			}
		}
	}
	if !found {
		b.warn("file %q was not scanned", p.File)
	}
	return b.build()
}

func conditional(b core.Block) bool {
	return b.Control == core.ControlIf || b.Control == core.ControlCase
}

func loop(b core.Block) bool {
	return b.Control == core.ControlFor || b.Control == core.ControlWhile
}

// blockNode labels a block by its file and either its name or its lines.
func blockNode(blk core.Block, typ string) Node {
	label := blk.FilePath + ":" + lines(blk.StartLine, blk.EndLine)
	if blk.Name != "" {
		label = blk.FilePath + ":" + blk.Name
	}
	attrs := map[string]string{
		"file":  blk.FilePath,
		"lines": lines(blk.StartLine, blk.EndLine),
	}
	if len(blk.Sources) > 0 {
		attrs["sources"] = strings.Join(blk.Sources, ", ")
	}
	if len(blk.Targets) > 0 {
		attrs["targets"] = strings.Join(blk.Targets, ", ")
	}
	return Node{ID: blk.ID, Label: label, Type: typ, Attrs: attrs}
}
