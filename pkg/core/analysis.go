package core

// FileAnalysis is the immutable output of scanning one file.
type FileAnalysis struct {
	Path        string
	Language    Language
	Hash        uint64
	Lines       int
	Statements  []AnalyzedStatement
	Blocks      []Block
	Occurrences []Occurrence
	Diagnostics []Diagnostic
	// Classes and Functions are the code symbols of Python, Java, Scala
	// and shell files.
	Classes   []Class
	Functions []Function
	// Failed is set when the file could not be analyzed at all.
	Failed bool
}

// Statement returns the i-th statement, or false when out of range.
func (f *FileAnalysis) Statement(i int) (AnalyzedStatement, bool) {
	if i < 0 || i >= len(f.Statements) {
		return AnalyzedStatement{}, false
	}
	return f.Statements[i], true
}

// StatementsOf returns the statements that belong to a block.
func (f *FileAnalysis) StatementsOf(b Block) []AnalyzedStatement {
	if b.FirstStatement < 0 || b.LastStatement >= len(f.Statements) || b.FirstStatement > b.LastStatement {
		return nil
	}
	return f.Statements[b.FirstStatement : b.LastStatement+1]
}
