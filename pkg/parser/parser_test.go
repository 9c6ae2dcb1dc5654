package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func TestNew(t *testing.T) {
	p := New()
	if p == nil {
		t.Fatal("New() returned nil")
	}
	if p.parser == nil {
		t.Error("parser field is nil")
	}
	p.Close()
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"main.go", LangGo},
		{"pkg/parser/parser.go", LangGo},
		{"script.py", LangPython},
		{"module.pyw", LangPython},
		{"types.pyi", LangPython},
		{"app.ts", LangTypeScript},
		{"app.mts", LangTypeScript},
		{"component.tsx", LangTSX},
		{"component.jsx", LangTSX},
		{"script.js", LangJavaScript},
		{"module.mjs", LangJavaScript},
		{"common.cjs", LangJavaScript},
		{"Main.java", LangJava},
		{"main.rs", LangUnknown},
		{"file.txt", LangUnknown},
		{"file", LangUnknown},
		{"Main.GO", LangGo},
		{"SCRIPT.PY", LangPython},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := DetectLanguage(tt.path); got != tt.want {
				t.Errorf("DetectLanguage(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestParseLanguage(t *testing.T) {
	tests := map[string]Language{
		"python": LangPython,
		"py":     LangPython,
		"golang": LangGo,
		"TS":     LangTypeScript,
		"js":     LangJavaScript,
		"java":   LangJava,
		"ruby":   LangUnknown,
	}
	for in, want := range tests {
		if got := ParseLanguage(in); got != want {
			t.Errorf("ParseLanguage(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGetTreeSitterLanguage(t *testing.T) {
	for _, lang := range SupportedLanguages() {
		t.Run(string(lang), func(t *testing.T) {
			tsLang, err := GetTreeSitterLanguage(lang)
			if err != nil {
				t.Errorf("GetTreeSitterLanguage(%v) returned error: %v", lang, err)
			}
			if tsLang == nil {
				t.Errorf("GetTreeSitterLanguage(%v) returned nil", lang)
			}
		})
	}

	_, err := GetTreeSitterLanguage(LangUnknown)
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("GetTreeSitterLanguage(LangUnknown) error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		source string
		lang   Language
	}{
		{"go function", "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n", LangGo},
		{"python function", "def hello():\n    print('hello')\n", LangPython},
		{"javascript function", "function hello() {\n  console.log('hello');\n}\n", LangJavaScript},
		{"java class", "class A {\n  void run() {}\n}\n", LangJava},
	}

	p := New()
	defer p.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Parse(context.Background(), []byte(tt.source), tt.lang, "test.file")
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if result.Language != tt.lang {
				t.Errorf("result.Language = %v, want %v", result.Language, tt.lang)
			}
			if result.Path != "test.file" {
				t.Errorf("result.Path = %v, want test.file", result.Path)
			}
			if result.Root().ChildCount() == 0 {
				t.Error("root node has no children")
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	tmpDir := t.TempDir()
	goFile := filepath.Join(tmpDir, "test.go")
	if err := os.WriteFile(goFile, []byte("package main\n\nfunc hello() {}\n"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	p := New()
	defer p.Close()

	result, err := p.ParseFile(context.Background(), goFile)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if result.Language != LangGo {
		t.Errorf("Language = %v, want go", result.Language)
	}

	if _, err := p.ParseFile(context.Background(), filepath.Join(tmpDir, "missing.go")); err == nil {
		t.Error("ParseFile() on missing file should fail")
	}

	txt := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ParseFile(context.Background(), txt); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("ParseFile() on .txt error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestGetNodeText(t *testing.T) {
	p := New()
	defer p.Close()

	source := []byte("def hello():\n    pass\n")
	result, err := p.Parse(context.Background(), source, LangPython, "t.py")
	if err != nil {
		t.Fatal(err)
	}

	var first *sitter.Node
	WalkTyped(result.Root(), source, func(node *sitter.Node, nodeType string, _ []byte) bool {
		if first == nil && nodeType == "identifier" {
			first = node
		}
		return first == nil
	})
	if first == nil {
		t.Fatal("no identifiers found")
	}
	if got := GetNodeText(first, source); got != "hello" {
		t.Errorf("GetNodeText() = %q, want hello", got)
	}
	if got := GetNodeText(nil, source); got != "" {
		t.Errorf("GetNodeText(nil) = %q, want empty", got)
	}
}

func TestWalkTyped_StopsDescending(t *testing.T) {
	p := New()
	defer p.Close()

	source := []byte("def outer():\n    def inner():\n        pass\n")
	result, err := p.Parse(context.Background(), source, LangPython, "t.py")
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	WalkTyped(result.Root(), source, func(_ *sitter.Node, nodeType string, _ []byte) bool {
		if nodeType == "function_definition" {
			count++
			return false
		}
		return true
	})
	if count != 1 {
		t.Errorf("visited %d function definitions, want 1", count)
	}
}
