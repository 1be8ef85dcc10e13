package lexer

import "github.com/leapstack-labs/legacyscan/pkg/core"

// Options selects the lexical rules of one language.
type Options struct {
	// LineComments are the prefixes that start a comment running to end of line.
	LineComments []string
	// StrictHash makes '#' start a comment only at the start of a word,
	// so shell forms like ${#arr} are not comments.
	StrictHash bool
	// BlockComments enables /* ... */ comments.
	BlockComments bool
	// Quotes lists the characters that open string literals.
	Quotes string
	// TripleQuotes enables """...""" and '''...''' literals.
	TripleQuotes bool
	// DoubledQuotes treats a doubled quote inside a literal as an escaped quote.
	DoubledQuotes bool
	// Escapes enables backslash escapes inside literals.
	Escapes bool
	// SingleLineStrings ends a non-triple literal at the end of its line.
	SingleLineStrings bool
	// DoubleQuoteIdent lexes "name" as a quoted identifier.
	DoubleQuoteIdent bool
	// Backticks lexes `name` as a quoted identifier.
	Backticks bool
	// LexStringContents emits the tokens of each string literal's contents,
	// lexed with SQL rules, right after the STRING token.
	LexStringContents bool
}

// SQLOptions returns the ANSI SQL rules. They also apply to string contents
// of host languages.
func SQLOptions() Options {
	return Options{
		LineComments:     []string{"--"},
		BlockComments:    true,
		Quotes:           "'",
		DoubledQuotes:    true,
		DoubleQuoteIdent: true,
		Backticks:        true,
	}
}

// OptionsFor returns the lexical rules for a language.
func OptionsFor(lang core.Language) Options {
	switch lang {
	case core.LangSQL:
		return SQLOptions()
	case core.LangHQL, core.LangHive:
		// HiveQL quotes strings with either quote and escapes with backslash.
		return Options{
			LineComments:  []string{"--"},
			BlockComments: true,
			Quotes:        `'"`,
			DoubledQuotes: true,
			Escapes:       true,
			Backticks:     true,
		}
	case core.LangPython, core.LangPySpark:
		return Options{
			LineComments:      []string{"#"},
			Quotes:            `'"`,
			TripleQuotes:      true,
			Escapes:           true,
			SingleLineStrings: true,
			LexStringContents: true,
		}
	case core.LangShell:
		return Options{
			LineComments:      []string{"#"},
			StrictHash:        true,
			Quotes:            "'\"`",
			Escapes:           true,
			LexStringContents: true,
		}
	case core.LangJava:
		return Options{
			LineComments:      []string{"//"},
			BlockComments:     true,
			Quotes:            `"'`,
			TripleQuotes:      true,
			Escapes:           true,
			SingleLineStrings: true,
			LexStringContents: true,
		}
	case core.LangScala:
		return Options{
			LineComments:      []string{"//"},
			BlockComments:     true,
			Quotes:            `"`,
			TripleQuotes:      true,
			Escapes:           true,
			SingleLineStrings: true,
			LexStringContents: true,
		}
	case core.LangConfig, core.LangYAML:
		return Options{
			LineComments:      []string{"#"},
			StrictHash:        true,
			Quotes:            `'"`,
			SingleLineStrings: true,
			LexStringContents: true,
		}
	case core.LangJSON:
		return Options{
			Quotes:            `"`,
			Escapes:           true,
			SingleLineStrings: true,
			LexStringContents: true,
		}
	default:
		// Prose: apostrophes are not quotes.
		return Options{}
	}
}
