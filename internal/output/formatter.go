// Package output renders command results as text, markdown, JSON, YAML or TOON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/callscope/pkg/models"
	toon "github.com/toon-format/toon-go"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
	FormatTOON     Format = "toon"
)

var formatNames = map[string]Format{
	"text":     FormatText,
	"json":     FormatJSON,
	"markdown": FormatMarkdown,
	"md":       FormatMarkdown,
	"yaml":     FormatYAML,
	"yml":      FormatYAML,
	"toon":     FormatTOON,
}

// ParseFormat converts a format name or alias to a Format. Unknown names
// fall back to text.
func ParseFormat(s string) Format {
	if f, ok := formatNames[strings.ToLower(s)]; ok {
		return f
	}
	return FormatText
}

// Renderable is a view that knows its human-readable layouts. Structured
// formats encode RenderData instead.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	RenderData() any
}

// Formatter writes results in one format to stdout, a file, or any writer.
type Formatter struct {
	format  Format
	w       io.Writer
	closer  io.Closer
	colored bool
}

// NewFormatter writes to the file at output, or to stdout when output is
// empty. File output is never colored.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	if output == "" {
		return NewWriterFormatter(format, os.Stdout, colored), nil
	}
	f, err := os.Create(output)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	return &Formatter{format: format, w: f, closer: f}, nil
}

// NewWriterFormatter creates a formatter over an existing writer.
func NewWriterFormatter(format Format, w io.Writer, colored bool) *Formatter {
	return &Formatter{format: format, w: w, colored: colored}
}

// Close closes the output file, if the formatter opened one.
func (f *Formatter) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

func (f *Formatter) Colored() bool { return f.colored }

// Output writes data in the configured format. Plain values have no text
// layout, so text and markdown fall back to JSON.
func (f *Formatter) Output(data any) error {
	r, ok := data.(Renderable)
	if ok {
		data = r.RenderData()
	}
	switch f.format {
	case FormatJSON:
		return f.encodeJSON(data)
	case FormatYAML:
		return f.encodeYAML(data)
	case FormatTOON:
		return f.encodeTOON(data)
	case FormatMarkdown:
		if ok {
			return r.RenderMarkdown(f.w)
		}
		fmt.Fprintln(f.w, "```json")
		if err := f.encodeJSON(data); err != nil {
			return err
		}
		_, err := fmt.Fprintln(f.w, "```")
		return err
	default:
		if ok {
			return r.RenderText(f.w, f.colored)
		}
		return f.encodeJSON(data)
	}
}

func (f *Formatter) encodeJSON(data any) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// generic re-decodes data through its JSON tags so YAML and TOON output use
// the same field names as JSON.
func generic(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (f *Formatter) encodeYAML(data any) error {
	v, err := generic(data)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (f *Formatter) encodeTOON(data any) error {
	v, err := generic(data)
	if err != nil {
		return err
	}
	out, err := toon.Marshal(v, toon.WithIndent(2))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f.w, string(out))
	return err
}

// KindColor colors text by call kind.
func KindColor(kind models.CallKind, text string) string {
	switch kind {
	case models.CallDirect:
		return color.GreenString(text)
	case models.CallDynamic:
		return color.YellowString(text)
	case models.CallPatternDispatch:
		return color.CyanString(text)
	default:
		return text
	}
}
