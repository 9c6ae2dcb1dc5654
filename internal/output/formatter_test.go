package output

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/panbanda/callscope/internal/testutil"
	"github.com/panbanda/callscope/pkg/analyzer/graph"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"JSON", FormatJSON},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"yaml", FormatYAML},
		{"YML", FormatYAML},
		{"toon", FormatTOON},
		{"", FormatText},
		{"xml", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFormat(tt.input))
		})
	}
}

func TestNewFormatterWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	f, err := NewFormatter(FormatJSON, path, true)
	require.NoError(t, err)
	assert.False(t, f.Colored(), "file output is never colored")
	require.NoError(t, f.Output(map[string]int{"edges": 3}))
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"edges": 3}`, string(raw))

	_, err = NewFormatter(FormatText, "/nonexistent/directory/out.txt", false)
	assert.Error(t, err)
}

func sampleTable() *Table {
	return NewTable("Callers", []string{"Function", "Kind"},
		[][]string{{"notify_all", "dynamic"}, {"main", "direct"}},
		[]string{"2 callers", ""}, nil)
}

func TestTableRendering(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, sampleTable().RenderText(&buf, false))
		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "Callers\n=======\n"))
		assert.Contains(t, out, "notify_all")
		assert.Contains(t, out, "2 callers")
	})

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, sampleTable().RenderMarkdown(&buf))
		assert.Equal(t, "## Callers\n\n"+
			"| Function | Kind |\n"+
			"| --- | --- |\n"+
			"| notify_all | dynamic |\n"+
			"| main | direct |\n"+
			"| 2 callers |  |\n\n", buf.String())
	})

	t.Run("data", func(t *testing.T) {
		assert.Equal(t, []map[string]string{
			{"Function": "notify_all", "Kind": "dynamic"},
			{"Function": "main", "Kind": "direct"},
		}, sampleTable().RenderData())

		withData := NewTable("", nil, nil, nil, []int{1})
		assert.Equal(t, []int{1}, withData.RenderData())
	})
}

func TestSectionAndReport(t *testing.T) {
	sec := &Section{
		Title:    "Run",
		Content:  "fingerprint abc",
		Sections: []Section{{Title: "Details", Content: "none"}},
	}

	var md bytes.Buffer
	require.NoError(t, sec.RenderMarkdown(&md))
	assert.Equal(t, "## Run\n\nfingerprint abc\n\n### Details\n\nnone\n\n", md.String())

	var text bytes.Buffer
	require.NoError(t, sec.RenderText(&text, false))
	assert.Equal(t, "Run\n===\nfingerprint abc\n\nDetails\n-------\nnone\n", text.String())

	report := &Report{Title: "Call Graph", Sections: []Renderable{sec, sampleTable()}}
	data, ok := report.RenderData().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Call Graph", data["title"])
	assert.Len(t, data["sections"], 2)
}

func TestFormatterEncodings(t *testing.T) {
	type row struct {
		QualifiedName string          `json:"qualified_name"`
		Kind          models.CallKind `json:"kind"`
	}
	data := []row{{QualifiedName: "Concrete.update", Kind: models.CallDynamic}}

	tests := []struct {
		format Format
		check  func(t *testing.T, out string)
	}{
		{FormatJSON, func(t *testing.T, out string) {
			assert.JSONEq(t, `[{"qualified_name":"Concrete.update","kind":"dynamic"}]`, out)
		}},
		{FormatYAML, func(t *testing.T, out string) {
			assert.Contains(t, out, "qualified_name: Concrete.update")
			assert.Contains(t, out, "kind: dynamic")
		}},
		{FormatTOON, func(t *testing.T, out string) {
			assert.Contains(t, out, "qualified_name")
			assert.Contains(t, out, "Concrete.update")
		}},
		{FormatMarkdown, func(t *testing.T, out string) {
			assert.True(t, strings.HasPrefix(out, "```json\n"))
			assert.True(t, strings.HasSuffix(out, "```\n"))
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewWriterFormatter(tt.format, &buf, false).Output(data))
			tt.check(t, buf.String())
		})
	}
}

func TestFormatterRenderableUsesData(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable("t", []string{"A"}, [][]string{{"x"}}, nil, map[string]string{"a": "x"})
	require.NoError(t, NewWriterFormatter(FormatYAML, &buf, false).Output(table))
	assert.Equal(t, "a: x\n", buf.String())
}

func TestKindColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	for _, k := range []models.CallKind{models.CallDirect, models.CallDynamic, models.CallPatternDispatch, "other"} {
		assert.Equal(t, "edge", KindColor(k, "edge"))
	}
}

func analyzeObserver(t *testing.T) *graph.Result {
	t.Helper()
	root := t.TempDir()
	sources := map[string]string{
		"observer.py": "class Observer:\n    def update(self, event):\n        raise NotImplementedError\n",
		"concrete.py": "from observer import Observer\n\nclass Concrete(Observer):\n    def update(self, event):\n        print(event)\n",
		"subject.py":  "from concrete import Concrete\n\ndef notify_all(event):\n    observers = [Concrete(), Concrete()]\n    for o in observers:\n        o.update(event)\n",
	}
	testutil.CreateFileTree(t, root, sources)
	var files []string
	for _, n := range testutil.Names(sources) {
		files = append(files, filepath.Join(root, n))
	}
	res, err := graph.New(graph.WithRoot(root)).Analyze(context.Background(), files)
	require.NoError(t, err)
	return res
}

func TestCallGraphViews(t *testing.T) {
	res := analyzeObserver(t)
	impl := res.Find("Concrete.update")
	require.Len(t, impl, 1)

	t.Run("callers json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriterFormatter(FormatJSON, &buf, false).Output(Callers(res, impl[0])))
		var got NeighbourData
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "callers", got.Direction)
		assert.Equal(t, impl[0], got.Function)
		var kinds []models.CallKind
		for _, e := range got.Edges {
			assert.Equal(t, "notify_all", e.Function.QualifiedName)
			kinds = append(kinds, e.Kind)
		}
		assert.ElementsMatch(t, []models.CallKind{models.CallDynamic, models.CallPatternDispatch}, kinds)
	})

	t.Run("callees text", func(t *testing.T) {
		caller := res.Find("notify_all")
		require.Len(t, caller, 1)
		var buf bytes.Buffer
		require.NoError(t, Callees(res, caller[0]).RenderText(&buf, false))
		assert.Contains(t, buf.String(), "Callees of notify_all (subject.py:3)")
		assert.Contains(t, buf.String(), "concrete.py:4")
	})

	t.Run("patterns", func(t *testing.T) {
		table := Patterns(res, res.Patterns)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, "observer", table.Rows[0][0])
		assert.Empty(t, FilterPatterns(res.Patterns, models.PatternFactory))
		assert.Len(t, FilterPatterns(res.Patterns), 1)
		assert.Equal(t, []models.PatternInstance{}, Patterns(res, nil).RenderData())
	})

	t.Run("analysis markdown", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriterFormatter(FormatMarkdown, &buf, false).Output(Analysis(res)))
		out := buf.String()
		assert.Contains(t, out, "# Call Graph\n")
		assert.Contains(t, out, "## Call Graph Summary")
		assert.Contains(t, out, "| pattern_dispatch |")
	})

	t.Run("stats", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriterFormatter(FormatText, &buf, false).Output(Stats(res, res.Stats(5))))
		assert.Contains(t, buf.String(), "Call Graph Statistics")
		assert.Contains(t, buf.String(), res.RunID.String())
	})

	t.Run("functions", func(t *testing.T) {
		ids := res.Graph.AllFunctions()
		table := Functions(res, ids)
		assert.Len(t, table.Rows, len(ids))
	})
}
