package crossmod

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/panbanda/callscope/pkg/parser"
	"golang.org/x/mod/modfile"
)

var (
	pythonProbes = []string{".py", "/__init__.py"}
	jsProbes     = []string{
		".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs",
		"/index.ts", "/index.tsx", "/index.js", "/index.jsx",
	}
)

// moduleIndex maps import sources to module ids over the known file set.
// It never touches the file system after construction.
type moduleIndex struct {
	root      string
	files     map[string]bool
	dirs      map[parser.Language]map[string]bool
	goModPath string
}

func newModuleIndex(root string, files []string) *moduleIndex {
	idx := &moduleIndex{
		root:  filepath.Clean(root),
		files: make(map[string]bool, len(files)),
		dirs:  make(map[parser.Language]map[string]bool),
	}
	for _, f := range files {
		f = filepath.Clean(f)
		idx.files[f] = true
		lang := familyOf(parser.DetectLanguage(f))
		if idx.dirs[lang] == nil {
			idx.dirs[lang] = make(map[string]bool)
		}
		idx.dirs[lang][filepath.Dir(f)] = true
	}
	idx.scanGoMod()
	return idx
}

func (idx *moduleIndex) scanGoMod() {
	data, err := os.ReadFile(filepath.Join(idx.root, "go.mod"))
	if err != nil {
		return
	}
	idx.goModPath = modfile.ModulePath(data)
}

// familyOf folds TypeScript and TSX into JavaScript for module lookup.
func familyOf(lang parser.Language) parser.Language {
	if lang.IsJSFamily() {
		return parser.LangJavaScript
	}
	return lang
}

// moduleOf returns the module id of file: the file itself for Python and the
// JavaScript family, the package directory for Go and Java.
func moduleOf(file string) string {
	switch parser.DetectLanguage(file) {
	case parser.LangGo, parser.LangJava:
		return filepath.Dir(file)
	default:
		return file
	}
}

func (idx *moduleIndex) probe(base string, exts []string) (string, bool) {
	base = filepath.Clean(base)
	if idx.files[base] {
		return base, true
	}
	for _, ext := range exts {
		if idx.files[base+ext] {
			return base + ext, true
		}
	}
	return "", false
}

// resolve maps an import source written in file to a module id.
func (idx *moduleIndex) resolve(file, source string) (string, bool) {
	if source == "" {
		return "", false
	}
	switch familyOf(parser.DetectLanguage(file)) {
	case parser.LangPython:
		return idx.resolvePython(file, source)
	case parser.LangJavaScript:
		return idx.resolveJS(file, source)
	case parser.LangGo:
		return idx.resolveGo(source)
	case parser.LangJava:
		return idx.resolveJava(source)
	}
	return "", false
}

func (idx *moduleIndex) resolvePython(file, source string) (string, bool) {
	dots := len(source) - len(strings.TrimLeft(source, "."))
	rel := strings.ReplaceAll(source[dots:], ".", "/")

	if dots > 0 {
		base := filepath.Dir(file)
		for i := 1; i < dots; i++ {
			base = filepath.Dir(base)
		}
		if rel == "" {
			return idx.probe(filepath.Join(base, "__init__"), []string{".py"})
		}
		return idx.probe(filepath.Join(base, rel), pythonProbes)
	}

	for _, base := range []string{idx.root, filepath.Dir(file)} {
		if m, ok := idx.probe(filepath.Join(base, rel), pythonProbes); ok {
			return m, true
		}
	}
	// src layouts: accept a unique known file ending in the dotted path.
	return idx.uniqueSuffix(rel, pythonProbes)
}

func (idx *moduleIndex) uniqueSuffix(rel string, exts []string) (string, bool) {
	var found []string
	for _, ext := range exts {
		suffix := string(filepath.Separator) + filepath.FromSlash(rel+ext)
		for f := range idx.files {
			if strings.HasSuffix(f, suffix) {
				found = append(found, f)
			}
		}
		if len(found) > 0 {
			break
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

func (idx *moduleIndex) resolveJS(file, source string) (string, bool) {
	if !strings.HasPrefix(source, "./") && !strings.HasPrefix(source, "../") && source != "." && source != ".." {
		return "", false
	}
	return idx.probe(filepath.Join(filepath.Dir(file), source), jsProbes)
}

func (idx *moduleIndex) resolveGo(importPath string) (string, bool) {
	dirs := idx.dirs[parser.LangGo]
	if idx.goModPath != "" && (importPath == idx.goModPath || strings.HasPrefix(importPath, idx.goModPath+"/")) {
		rel := strings.TrimPrefix(strings.TrimPrefix(importPath, idx.goModPath), "/")
		dir := filepath.Join(idx.root, filepath.FromSlash(rel))
		if dirs[dir] {
			return dir, true
		}
	}
	return idx.longestDirSuffix(dirs, importPath)
}

func (idx *moduleIndex) resolveJava(pkg string) (string, bool) {
	return idx.longestDirSuffix(idx.dirs[parser.LangJava], strings.ReplaceAll(pkg, ".", "/"))
}

// longestDirSuffix finds the known directory whose root-relative path is the
// longest suffix of importPath. Ties are broken lexically for determinism.
func (idx *moduleIndex) longestDirSuffix(dirs map[string]bool, importPath string) (string, bool) {
	importPath = strings.Trim(importPath, "/")
	var best string
	bestLen := -1
	candidates := make([]string, 0, len(dirs))
	for d := range dirs {
		candidates = append(candidates, d)
	}
	slices.Sort(candidates)
	for _, d := range candidates {
		rel, err := filepath.Rel(idx.root, d)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		if importPath != rel && !strings.HasSuffix(importPath, "/"+rel) && !strings.HasSuffix(rel, "/"+importPath) {
			continue
		}
		if len(rel) > bestLen {
			best, bestLen = d, len(rel)
		}
	}
	return best, bestLen >= 0
}
