package treesitter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderImplementsInterface(t *testing.T) {
	var _ ast.Provider = (*Provider)(nil)
}

func lower(t *testing.T, lang ast.Language, path, src string) *ast.File {
	t.Helper()
	p := New()
	defer p.Close()
	file, err := p.ParseSource(context.Background(), []byte(src), lang, path)
	require.NoError(t, err)
	return file
}

func findClass(stmts []*ast.Stmt, name string) *ast.ClassDef {
	var found *ast.ClassDef
	ast.Inspect(stmts, func(s *ast.Stmt) bool {
		if s.Kind == ast.StmtClass && s.Class.Name == name && found == nil {
			found = s.Class
		}
		return true
	})
	return found
}

func findFunction(stmts []*ast.Stmt, name string) *ast.FunctionDef {
	var found *ast.FunctionDef
	ast.Inspect(stmts, func(s *ast.Stmt) bool {
		if s.Kind == ast.StmtFunction && s.Function.Name == name && found == nil {
			found = s.Function
		}
		return true
	})
	return found
}

func TestProviderParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	content := `package main

import "fmt"

func main() {
	fmt.Println("hello")
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := New()
	defer p.Close()

	file, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, file.Path)
	assert.Equal(t, ast.LangGo, file.Language)
	require.Len(t, file.Imports, 1)
	assert.Equal(t, "fmt", file.Imports[0].Module)
	assert.Equal(t, "fmt", file.Imports[0].Alias)

	fn := findFunction(file.Body, "main")
	require.NotNil(t, fn)
	assert.Equal(t, 5, fn.Line)
	require.Len(t, fn.Body, 1)
	call := fn.Body[0].Value
	require.NotNil(t, call)
	assert.Equal(t, ast.ExprCall, call.Kind)
	assert.Equal(t, "fmt.Println", call.Object.DottedName())
}

func TestProviderUnsupportedLanguage(t *testing.T) {
	p := New()
	defer p.Close()

	_, err := p.Parse(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, ast.ErrUnsupportedLanguage)

	_, err = p.ParseSource(context.Background(), []byte("x"), ast.LangUnknown, "x")
	assert.ErrorIs(t, err, ast.ErrUnsupportedLanguage)
}

func TestProviderLanguage(t *testing.T) {
	p := New()
	defer p.Close()

	tests := map[string]ast.Language{
		"a.go":   ast.LangGo,
		"a.py":   ast.LangPython,
		"a.ts":   ast.LangTypeScript,
		"a.tsx":  ast.LangTSX,
		"a.js":   ast.LangJavaScript,
		"A.java": ast.LangJava,
		"a.rb":   ast.LangUnknown,
	}
	for path, want := range tests {
		assert.Equal(t, want, p.Language(path), path)
	}
}

func TestLowerPython(t *testing.T) {
	src := `from .observer import Observer as Obs
import handlers

class Subject(Base):
    def __init__(self):
        self.observers = []

    @abstractmethod
    def hook(self):
        pass

    def notify(self):
        for o in self.observers:
            o.update(self)
`
	file := lower(t, ast.LangPython, "subject.py", src)

	require.Len(t, file.Imports, 2)
	assert.Equal(t, ".observer", file.Imports[0].Module)
	require.Len(t, file.Imports[0].Names, 1)
	assert.Equal(t, "Obs", file.Imports[0].Names[0].Local())
	assert.Equal(t, "handlers", file.Imports[1].Module)

	cls := findClass(file.Body, "Subject")
	require.NotNil(t, cls)
	assert.Equal(t, []string{"Base"}, cls.Bases)
	assert.Len(t, cls.Methods(), 3)

	hook := findFunction(file.Body, "hook")
	require.NotNil(t, hook)
	assert.True(t, hook.Abstract)
	assert.True(t, hook.Stub)
	assert.Equal(t, 9, hook.Line)

	notify := findFunction(file.Body, "notify")
	require.NotNil(t, notify)
	require.Len(t, notify.Body, 1)
	loop := notify.Body[0]
	assert.Equal(t, ast.StmtFor, loop.Kind)
	assert.Equal(t, "self.observers", loop.Value.DottedName())
	require.Len(t, loop.Targets, 1)
	assert.Equal(t, "o", loop.Targets[0].Name)
	require.Len(t, loop.Body, 1)
	assert.Equal(t, "o.update", loop.Body[0].Value.Object.DottedName())

	init := findFunction(file.Body, "__init__")
	require.NotNil(t, init)
	require.Len(t, init.Body, 1)
	assert.Equal(t, ast.StmtAssign, init.Body[0].Kind)
	assert.Equal(t, ast.ExprCollection, init.Body[0].Value.Kind)
}

func TestLowerGo(t *testing.T) {
	src := `package obs

type Observer interface {
	Update(s *Subject)
}

type Subject struct {
	observers []Observer
}

func (s *Subject) Notify() {
	for _, o := range s.observers {
		o.Update(s)
	}
}
`
	file := lower(t, ast.LangGo, "obs.go", src)

	iface := findClass(file.Body, "Observer")
	require.NotNil(t, iface)
	assert.Equal(t, ast.ClassInterface, iface.Kind)
	require.Len(t, iface.Methods(), 1)
	assert.True(t, iface.Methods()[0].Abstract)
	assert.Equal(t, "Update", iface.Methods()[0].Name)

	st := findClass(file.Body, "Subject")
	require.NotNil(t, st)
	assert.Equal(t, ast.ClassStruct, st.Kind)
	require.Len(t, st.Body, 1)
	assert.Equal(t, "self.observers", st.Body[0].Targets[0].DottedName())
	assert.Equal(t, "[]Observer", st.Body[0].Annotation)

	notify := findFunction(file.Body, "Notify")
	require.NotNil(t, notify)
	assert.Equal(t, "Subject", notify.Receiver)
	require.Len(t, notify.Body, 1)
	loop := notify.Body[0]
	assert.Equal(t, ast.StmtFor, loop.Kind)
	assert.Equal(t, "self.observers", loop.Value.DottedName())
	assert.Equal(t, "o", loop.Targets[0].Name)
}

func TestLowerTypeScript(t *testing.T) {
	src := `import { Handler, Base as B } from "./handler";
import * as util from "./util";

class Router extends B implements Handler {
  constructor(private strategy: Strategy) {
    super();
  }

  route(): void {
    const h = new Handler();
    h.handle();
  }
}
`
	file := lower(t, ast.LangTypeScript, "router.ts", src)

	require.Len(t, file.Imports, 2)
	assert.Equal(t, "./handler", file.Imports[0].Module)
	require.Len(t, file.Imports[0].Names, 2)
	assert.Equal(t, "B", file.Imports[0].Names[1].Local())
	assert.Equal(t, "util", file.Imports[1].Alias)

	cls := findClass(file.Body, "Router")
	require.NotNil(t, cls)
	assert.Equal(t, []string{"B"}, cls.Bases)
	assert.Equal(t, []string{"Handler"}, cls.Interfaces)

	ctor := findFunction(file.Body, "constructor")
	require.NotNil(t, ctor)
	require.NotEmpty(t, ctor.Body)
	assert.Equal(t, "self.strategy", ctor.Body[0].Targets[0].DottedName())
	assert.Equal(t, "Strategy", ctor.Body[0].Annotation)

	route := findFunction(file.Body, "route")
	require.NotNil(t, route)
	require.Len(t, route.Body, 2)
	assert.Equal(t, "h", route.Body[0].Targets[0].Name)
	assert.True(t, route.Body[0].Value.New)
	assert.Equal(t, "Handler", route.Body[0].Value.Object.Name)
}

func TestLowerJava(t *testing.T) {
	src := `package app;

import com.acme.Listener;
import com.acme.util.*;

public class Bus implements Listener {
    private List<Listener> listeners = new ArrayList<>();

    @Override
    public void fire() {
        for (Listener l : listeners) {
            l.onEvent(this);
        }
    }
}
`
	file := lower(t, ast.LangJava, "Bus.java", src)

	require.Len(t, file.Imports, 2)
	assert.Equal(t, "com.acme", file.Imports[0].Module)
	assert.Equal(t, "Listener", file.Imports[0].Names[0].Name)
	assert.True(t, file.Imports[1].Wildcard)
	assert.Equal(t, "com.acme.util", file.Imports[1].Module)

	cls := findClass(file.Body, "Bus")
	require.NotNil(t, cls)
	assert.Equal(t, []string{"Listener"}, cls.Interfaces)

	fire := findFunction(file.Body, "fire")
	require.NotNil(t, fire)
	assert.True(t, fire.HasDecorator("Override"))
	assert.Equal(t, 10, fire.Line)
	require.Len(t, fire.Body, 1)
	loop := fire.Body[0]
	assert.Equal(t, ast.StmtFor, loop.Kind)
	assert.Equal(t, "Listener", loop.Annotation)
	assert.Equal(t, "listeners", loop.Value.Name)
}
