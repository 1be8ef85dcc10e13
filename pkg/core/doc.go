// Package core defines the shared language of the legacyscan system.
//
// This package contains:
//   - Source inputs (Language, SourceFile, DictionaryEntry)
//   - Scan units (Statement, AnalyzedStatement, Block, Occurrence)
//   - Per-file outputs (FileAnalysis) and diagnostics (Diagnostic, Report)
//   - Code symbols (Class, Function)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
