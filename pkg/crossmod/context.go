// Package crossmod holds the run-scoped state every per-file analysis shares:
// the class and function registry, the import table, the observer registry,
// the pattern evidence store and the shared type-flow tracker.
//
// A Context is created once per run and passed by reference to every worker.
// All registries are guarded by their own RWMutex. Inheritance, interface
// membership and implementations are computed at query time from whatever
// has been registered so far, so results do not depend on the order in which
// files were processed.
//
// When both are needed, the type-flow lock is acquired before the observer
// lock.
package crossmod

import (
	"path/filepath"
	"sync"

	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/typeflow"
)

// Context is the cross-module context of one analysis run.
type Context struct {
	modules *moduleIndex

	// registry: classes, functions, import bindings.
	regMu     sync.RWMutex
	classes   map[models.TypeID]*ClassInfo
	functions map[models.FunctionID]*FunctionInfo
	methods   map[models.TypeID]map[string][]models.FunctionID
	members   map[string]map[string][]models.FunctionID
	basenames map[string][]models.FunctionID
	bindings  map[string]map[string]Binding
	stars     map[string][]string
	filesOf   map[string][]string
	version   uint64

	hierMu    sync.Mutex
	hierVer   uint64
	hierarchy *hierarchy

	// observer registry.
	obsMu           sync.RWMutex
	interfaces      map[models.TypeID]struct{}
	implementations map[models.TypeID]map[models.FunctionID]struct{}
	dispatchSites   map[models.TypeID]map[models.FunctionID]struct{}

	flowMu sync.RWMutex
	flow   *typeflow.Tracker

	evMu     sync.Mutex
	evidence *Evidence
}

// New creates a context for the files of one run. root anchors absolute
// imports and the go.mod lookup.
func New(root string, files []string) *Context {
	return &Context{
		modules:         newModuleIndex(root, files),
		classes:         make(map[models.TypeID]*ClassInfo),
		functions:       make(map[models.FunctionID]*FunctionInfo),
		methods:         make(map[models.TypeID]map[string][]models.FunctionID),
		members:         make(map[string]map[string][]models.FunctionID),
		basenames:       make(map[string][]models.FunctionID),
		bindings:        make(map[string]map[string]Binding),
		stars:           make(map[string][]string),
		filesOf:         make(map[string][]string),
		interfaces:      make(map[models.TypeID]struct{}),
		implementations: make(map[models.TypeID]map[models.FunctionID]struct{}),
		dispatchSites:   make(map[models.TypeID]map[models.FunctionID]struct{}),
		flow:            typeflow.New(),
		evidence:        &Evidence{},
	}
}

// ModuleOf returns the module id of file. Python and JavaScript modules are
// files; Go and Java modules are package directories.
func (c *Context) ModuleOf(file string) string {
	return moduleOf(filepath.Clean(file))
}

// ResolveModule maps an import source written in file to a module id.
func (c *Context) ResolveModule(file, source string) (string, bool) {
	return c.modules.resolve(filepath.Clean(file), source)
}

// IsKnownFile reports whether file belongs to the run.
func (c *Context) IsKnownFile(file string) bool {
	return c.modules.files[filepath.Clean(file)]
}

// Stats summarizes the registries.
type Stats struct {
	Classes       int `json:"classes"`
	Functions     int `json:"functions"`
	Bindings      int `json:"bindings"`
	Interfaces    int `json:"interfaces"`
	TypeFlowFacts int `json:"typeflow_facts"`
	TypeFlowLinks int `json:"typeflow_links"`
}

// Stats returns registry sizes.
func (c *Context) Stats() Stats {
	var s Stats
	c.regMu.RLock()
	s.Classes = len(c.classes)
	s.Functions = len(c.functions)
	for _, b := range c.bindings {
		s.Bindings += len(b)
	}
	c.regMu.RUnlock()

	c.flowMu.RLock()
	s.TypeFlowFacts = c.flow.Size()
	s.TypeFlowLinks = c.flow.Links()
	c.flowMu.RUnlock()

	c.obsMu.RLock()
	s.Interfaces = len(c.interfaces)
	c.obsMu.RUnlock()
	return s
}
