package core

import "fmt"

// BlockRole describes how a block was delimited.
type BlockRole string

// Block roles.
const (
	BlockSQL        BlockRole = "sql"
	BlockDefinition BlockRole = "definition"
	BlockControl    BlockRole = "control"
	BlockImports    BlockRole = "imports"
	BlockData       BlockRole = "data"
)

// Stage is the ETL stage of a block.
type Stage string

// ETL stages. StageNone marks blocks that neither read nor write tables.
const (
	StageNone      Stage = ""
	StageExtract   Stage = "Extract"
	StageTransform Stage = "Transform"
	StageLoad      Stage = "Load"
)

// Block is a named unit of work inside a file.
type Block struct {
	ID             string
	FilePath       string
	Index          int
	Name           string
	Role           BlockRole
	StartLine      int
	EndLine        int
	FirstStatement int
	LastStatement  int
	Sources        []string
	Targets        []string
	Imports        []ImportRef
	Control        string
}

// BlockID returns the stable identifier of the i-th block of a file.
func BlockID(path string, index int) string {
	return fmt.Sprintf("%s#%d", path, index)
}

// Stage classifies the block by its sources and targets.
func (b Block) Stage() Stage {
	switch {
	case len(b.Sources) > 0 && len(b.Targets) > 0:
		return StageTransform
	case len(b.Sources) > 0:
		return StageExtract
	case len(b.Targets) > 0:
		return StageLoad
	default:
		return StageNone
	}
}

// IsOrchestration reports whether the block only wires other scripts together.
func (b Block) IsOrchestration() bool {
	return len(b.Sources) == 0 && len(b.Targets) == 0 && len(b.Imports) > 0
}
