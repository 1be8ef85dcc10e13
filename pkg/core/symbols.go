package core

import "sort"

// =============================================================================
// Code symbols
// =============================================================================

// Class is a class, interface, trait or object declared in code.
type Class struct {
	Name      string `json:"name"`
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	// Bases are the superclasses and interfaces as written.
	Bases      []string `json:"bases,omitempty"`
	Methods    []string `json:"methods,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
}

// Function is a function or method declared in code.
type Function struct {
	Name string `json:"name"`
	// Class is the enclosing class of a method, empty for functions.
	Class      string   `json:"class,omitempty"`
	FilePath   string   `json:"file_path"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Parameters []string `json:"parameters,omitempty"`
	// Calls are the distinct callee names as written (load, self.load, df.write).
	Calls []string `json:"calls,omitempty"`
}

// QualifiedName returns Class.Name for methods and Name otherwise.
func (f Function) QualifiedName() string {
	if f.Class != "" {
		return f.Class + "." + f.Name
	}
	return f.Name
}

// IsMethod reports whether the function belongs to a class.
func (f Function) IsMethod() bool {
	return f.Class != ""
}

// Contains reports whether the 1-based line is inside the function.
func (f Function) Contains(line int) bool {
	return line >= f.StartLine && line <= f.EndLine
}

// Contains reports whether the 1-based line is inside the class.
func (c Class) Contains(line int) bool {
	return line >= c.StartLine && line <= c.EndLine
}

// Enclosing returns the innermost function and class around a line.
// Either result is empty when no symbol encloses the line.
func Enclosing(classes []Class, funcs []Function, line int) (function, class string) {
	span := -1
	for _, f := range funcs {
		if f.Contains(line) && (span < 0 || f.EndLine-f.StartLine < span) {
			span = f.EndLine - f.StartLine
			function = f.QualifiedName()
		}
	}
	span = -1
	for _, c := range classes {
		if c.Contains(line) && (span < 0 || c.EndLine-c.StartLine < span) {
			span = c.EndLine - c.StartLine
			class = c.Name
		}
	}
	return function, class
}

// SortSymbols orders classes and functions by start line, then name.
func SortSymbols(classes []Class, funcs []Function) {
	sort.SliceStable(classes, func(i, j int) bool {
		if classes[i].StartLine != classes[j].StartLine {
			return classes[i].StartLine < classes[j].StartLine
		}
		return classes[i].Name < classes[j].Name
	})
	sort.SliceStable(funcs, func(i, j int) bool {
		if funcs[i].StartLine != funcs[j].StartLine {
			return funcs[i].StartLine < funcs[j].StartLine
		}
		return funcs[i].QualifiedName() < funcs[j].QualifiedName()
	})
}
