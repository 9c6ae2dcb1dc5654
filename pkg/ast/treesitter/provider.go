package treesitter

import (
	"context"
	"fmt"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/parser"
)

// Provider implements ast.Provider using tree-sitter. A Provider holds one
// tree-sitter parser and must not be shared between goroutines; workers each
// create their own.
type Provider struct {
	parser *parser.Parser
}

// New creates a new tree-sitter based provider.
func New() *Provider {
	return &Provider{
		parser: parser.New(),
	}
}

// Parse reads, parses and lowers the file at path.
func (p *Provider) Parse(ctx context.Context, path string) (*ast.File, error) {
	result, err := p.parser.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	defer result.Close()
	return lowerResult(result)
}

// ParseSource parses and lowers in-memory source.
func (p *Provider) ParseSource(ctx context.Context, source []byte, lang ast.Language, path string) (*ast.File, error) {
	if lang == ast.LangUnknown || lang == "" {
		return nil, fmt.Errorf("%w for file: %s", ast.ErrUnsupportedLanguage, path)
	}
	result, err := p.parser.Parse(ctx, source, lang, path)
	if err != nil {
		return nil, err
	}
	defer result.Close()
	return lowerResult(result)
}

// Language returns the detected language for a file path.
func (p *Provider) Language(path string) ast.Language {
	return parser.DetectLanguage(path)
}

// Close releases parser resources.
func (p *Provider) Close() {
	p.parser.Close()
}

func lowerResult(result *parser.ParseResult) (*ast.File, error) {
	file, err := Lower(result)
	if err != nil {
		return nil, fmt.Errorf("lowering %s: %w", result.Path, err)
	}
	return file, nil
}
