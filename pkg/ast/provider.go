package ast

import (
	"context"

	"github.com/panbanda/callscope/pkg/parser"
)

// ErrUnsupportedLanguage is returned when parsing a file with an unsupported language.
var ErrUnsupportedLanguage = parser.ErrUnsupportedLanguage

// Language is the parser's language tag; lowered trees carry it unchanged.
type Language = parser.Language

const (
	LangGo         = parser.LangGo
	LangPython     = parser.LangPython
	LangTypeScript = parser.LangTypeScript
	LangJavaScript = parser.LangJavaScript
	LangTSX        = parser.LangTSX
	LangJava       = parser.LangJava
	LangUnknown    = parser.LangUnknown
)

// Provider produces syntax trees.
type Provider interface {
	// Parse reads and lowers the file at path.
	Parse(ctx context.Context, path string) (*File, error)

	// ParseSource lowers in-memory source in the given language.
	ParseSource(ctx context.Context, source []byte, lang Language, path string) (*File, error)

	// Language returns the detected language for a file path.
	Language(path string) Language

	// Close releases provider resources.
	Close()
}
