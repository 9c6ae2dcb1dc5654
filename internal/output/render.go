package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// heading prints title underlined with rule. Nothing is printed for an
// empty title.
func heading(w io.Writer, title string, rule byte, colored bool, attrs ...color.Attribute) {
	if title == "" {
		return
	}
	if colored {
		color.New(attrs...).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat(string(rule), len(title)))
}

func markdownRow(w io.Writer, cells []string) {
	fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
}

// Table is a titled grid. Data, when set, replaces the rows in structured
// output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  []string
	Data    any
}

// NewTable creates a table that wraps structured data for serialization.
func NewTable(title string, headers []string, rows [][]string, footer []string, data any) *Table {
	return &Table{Title: title, Headers: headers, Rows: rows, Footer: footer, Data: data}
}

// RenderData returns Data, or one header-keyed map per row.
func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				m[h] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

var borderless = tw.Rendition{
	Borders:  tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
	Settings: tw.Settings{Separators: tw.Separators{BetweenColumns: tw.Off}},
}

var leftAligned = tw.CellAlignment{Global: tw.AlignLeft}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	if t.Title != "" {
		heading(w, t.Title, '=', colored, color.Bold)
		fmt.Fprintln(w)
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{Alignment: leftAligned, Formatting: tw.CellFormatting{AutoFormat: tw.On}},
			Row:    tw.CellConfig{Alignment: leftAligned},
			Footer: tw.CellConfig{Alignment: leftAligned},
		}),
		tablewriter.WithRendition(borderless),
	)
	table.Header(t.Headers)
	for _, row := range t.Rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if len(t.Footer) > 0 {
		cells := make([]any, len(t.Footer))
		for i, c := range t.Footer {
			cells[i] = c
		}
		table.Footer(cells...)
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}
	markdownRow(w, t.Headers)
	rule := make([]string, len(t.Headers))
	for i := range rule {
		rule[i] = "---"
	}
	markdownRow(w, rule)
	for _, row := range t.Rows {
		markdownRow(w, row)
	}
	if len(t.Footer) > 0 {
		markdownRow(w, t.Footer)
	}
	_, err := fmt.Fprintln(w)
	return err
}

// Section is a block of prose with nested subsections.
type Section struct {
	Title    string    `json:"title,omitempty"`
	Content  string    `json:"content,omitempty"`
	Sections []Section `json:"sections,omitempty"`
	Data     any       `json:"data,omitempty"`
}

func (s *Section) RenderData() any {
	if s.Data != nil {
		return s.Data
	}
	return s
}

func (s *Section) RenderText(w io.Writer, colored bool) error {
	s.text(w, colored, '=')
	return nil
}

func (s *Section) text(w io.Writer, colored bool, rule byte) {
	heading(w, s.Title, rule, colored, color.Bold)
	if s.Content != "" {
		fmt.Fprintln(w, s.Content)
	}
	for _, sub := range s.Sections {
		fmt.Fprintln(w)
		sub.text(w, colored, '-')
	}
}

func (s *Section) RenderMarkdown(w io.Writer) error {
	s.markdown(w, 2)
	return nil
}

func (s *Section) markdown(w io.Writer, level int) {
	if s.Title != "" {
		fmt.Fprintf(w, "%s %s\n\n", strings.Repeat("#", level), s.Title)
	}
	if s.Content != "" {
		fmt.Fprintf(w, "%s\n\n", s.Content)
	}
	for _, sub := range s.Sections {
		sub.markdown(w, level+1)
	}
}

// Report is a titled sequence of views rendered one after another.
type Report struct {
	Title    string
	Sections []Renderable
	Data     any
}

func (r *Report) RenderData() any {
	if r.Data != nil {
		return r.Data
	}
	parts := make([]any, len(r.Sections))
	for i, s := range r.Sections {
		parts[i] = s.RenderData()
	}
	return map[string]any{"title": r.Title, "sections": parts}
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	if r.Title != "" {
		heading(w, r.Title, '=', colored, color.Bold, color.FgCyan)
		fmt.Fprintln(w)
	}
	for i, s := range r.Sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := s.RenderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	if r.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", r.Title)
	}
	for _, s := range r.Sections {
		if err := s.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}
