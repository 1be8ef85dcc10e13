package core

import (
	"path/filepath"
	"sort"
	"strings"
)

// =============================================================================
// Language
// =============================================================================

// Language is the closed set of source kinds the scanner understands.
// It is decided once at ingestion and never re-inspected afterwards.
type Language string

// Supported languages.
const (
	LangPython  Language = "python"
	LangPySpark Language = "pyspark"
	LangShell   Language = "shell"
	LangSQL     Language = "sql"
	LangHQL     Language = "hql"
	LangHive    Language = "hive"
	LangScala   Language = "scala"
	LangJava    Language = "java"
	LangConfig  Language = "config"
	LangYAML    Language = "yaml"
	LangJSON    Language = "json"
	LangText    Language = "text"
)

// AllLanguages returns every supported language in declaration order.
func AllLanguages() []Language {
	return []Language{
		LangPython, LangPySpark, LangShell, LangSQL, LangHQL, LangHive,
		LangScala, LangJava, LangConfig, LangYAML, LangJSON, LangText,
	}
}

// extensions maps lower-case file extensions to their language.
var extensions = map[string]Language{
	".py":         LangPython,
	".pyw":        LangPython,
	".pyspark":    LangPySpark,
	".sh":         LangShell,
	".bash":       LangShell,
	".ksh":        LangShell,
	".zsh":        LangShell,
	".sql":        LangSQL,
	".pls":        LangSQL,
	".plsql":      LangSQL,
	".pks":        LangSQL,
	".pkb":        LangSQL,
	".ddl":        LangSQL,
	".hql":        LangHQL,
	".hive":       LangHive,
	".scala":      LangScala,
	".sc":         LangScala,
	".java":       LangJava,
	".conf":       LangConfig,
	".cfg":        LangConfig,
	".ini":        LangConfig,
	".properties": LangConfig,
	".env":        LangConfig,
	".yaml":       LangYAML,
	".yml":        LangYAML,
	".json":       LangJSON,
	".txt":        LangText,
}

// LanguageFromPath returns the language for a file path based on its extension.
// The second return value is false for unsupported extensions.
func LanguageFromPath(path string) (Language, bool) {
	lang, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// SupportedExtensions returns the recognized extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ParseLanguage converts a string to a Language value.
func ParseLanguage(s string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllLanguages() {
		if l == known {
			return l, true
		}
	}
	return "", false
}

// IsSQL reports whether the language is a SQL dialect split statement by statement.
func (l Language) IsSQL() bool {
	return l == LangSQL || l == LangHQL || l == LangHive
}

// IsCode reports whether the language is a host programming language
// that may embed SQL inside string literals.
func (l Language) IsCode() bool {
	switch l {
	case LangPython, LangPySpark, LangShell, LangScala, LangJava:
		return true
	}
	return false
}

// IsPython reports whether the language is Python or PySpark.
func (l Language) IsPython() bool {
	return l == LangPython || l == LangPySpark
}
