package parser_test

import (
	"context"
	"testing"

	"github.com/panbanda/callscope/internal/testutil/scopes"
	"github.com/panbanda/callscope/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

func parseSource(t *testing.T, source string, lang parser.Language) *parser.ParseResult {
	t.Helper()
	p := parser.New()
	t.Cleanup(p.Close)

	result, err := p.Parse(context.Background(), []byte(source), lang, "fixture")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return result
}

// functionLines maps each function's dotted scope path to its declaration line.
func functionLines(result *parser.ParseResult) map[string]int {
	out := make(map[string]int)
	for _, fn := range scopes.Functions(result) {
		out[fn.QualifiedName] = fn.Line
	}
	return out
}

func TestFunctionScopes_Python(t *testing.T) {
	source := `import functools


@decorator
def f():
    return 1

@app.route(
    "/x",
)
def g(
    a=make_default(),
    b=2,
):
    return a

class Outer:
    @staticmethod
    def method():
        def inner():
            return lambda: 1
        return inner

    class Inner:
        def __init__(self):
            pass
`
	got := functionLines(parseSource(t, source, parser.LangPython))

	want := map[string]int{
		"f":                           5,
		"g":                           11,
		"Outer.method":                19,
		"Outer.method.inner":          20,
		"Outer.method.inner.<lambda>": 21,
		"Outer.Inner.__init__":        25,
	}
	for name, line := range want {
		if got[name] != line {
			t.Errorf("%s line = %d, want %d (all: %v)", name, got[name], line, got)
		}
	}
	if len(got) != len(want) {
		t.Errorf("got %d functions, want %d: %v", len(got), len(want), got)
	}
}

func TestFunctionScopes_Go(t *testing.T) {
	source := `package main

type Observer interface {
	Update(e string)
}

type Subject struct{}

func (s *Subject) Notify() {
	f := func() {}
	f()
}

func main() {}
`
	got := functionLines(parseSource(t, source, parser.LangGo))

	want := map[string]int{
		"Observer.Update":            4,
		"Subject.Notify":             9,
		"Subject.Notify.<anonymous>": 10,
		"main":                       14,
	}
	for name, line := range want {
		if got[name] != line {
			t.Errorf("%s line = %d, want %d (all: %v)", name, got[name], line, got)
		}
	}
}

func TestFunctionScopes_Java(t *testing.T) {
	source := `class Service {
  @Override
  public void run() {}

  @Inject
  Service() {}
}
`
	got := functionLines(parseSource(t, source, parser.LangJava))

	if got["Service.run"] != 3 {
		t.Errorf("Service.run line = %d, want 3", got["Service.run"])
	}
	if got["Service.Service"] != 6 {
		t.Errorf("Service.Service line = %d, want 6", got["Service.Service"])
	}
}

func TestFunctionScopes_JavaScript(t *testing.T) {
	source := `class Widget {
  render() {
    const handler = () => {};
    items.forEach(function () {});
  }
}
const build = function () {};
function run() {
  return (x) => x;
}
`
	got := functionLines(parseSource(t, source, parser.LangJavaScript))

	want := map[string]int{
		"Widget.render":             2,
		"Widget.render.handler":     3,
		"Widget.render.<anonymous>": 4,
		"build":                     7,
		"run":                       8,
		"run.<anonymous>":           9,
	}
	for name, line := range want {
		if got[name] != line {
			t.Errorf("%s line = %d, want %d (all: %v)", name, got[name], line, got)
		}
	}
	if len(got) != len(want) {
		t.Errorf("got %d functions, want %d: %v", len(got), len(want), got)
	}
}

func TestClassName(t *testing.T) {
	source := "class A:\n    pass\n\nclass B(A):\n    pass\n"
	result := parseSource(t, source, parser.LangPython)

	var names []string
	parser.WalkTyped(result.Root(), result.Source, func(node *sitter.Node, _ string, source []byte) bool {
		if scopes.IsClass(node, parser.LangPython) {
			names = append(names, scopes.ClassName(node, source, parser.LangPython))
		}
		return true
	})
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Errorf("class names = %v, want [A B]", names)
	}
}

func TestCleanGoTypeName(t *testing.T) {
	tests := map[string]string{
		"*Subject": "Subject",
		"Subject":  "Subject",
		"*List[T]": "List",
		" Store ":  "Store",
	}
	for in, want := range tests {
		if got := parser.CleanGoTypeName(in); got != want {
			t.Errorf("CleanGoTypeName(%q) = %q, want %q", in, got, want)
		}
	}
}
