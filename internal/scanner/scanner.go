// Package scanner discovers the source files a run analyzes.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/panbanda/callscope/pkg/parser"
)

// Scanner finds source files in a directory.
type Scanner struct {
	config    *config.Config
	languages map[parser.Language]bool
	matchers  []gitignore.Matcher
}

// NewScanner creates a new file scanner. A nil config uses the defaults.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Scanner{config: cfg}
	if len(cfg.Analysis.Languages) > 0 {
		s.languages = make(map[parser.Language]bool)
		for _, name := range cfg.Analysis.Languages {
			lang := parser.ParseLanguage(name)
			s.languages[lang] = true
			// TS and TSX share a configured name in practice.
			if lang == parser.LangTypeScript {
				s.languages[parser.LangTSX] = true
			}
		}
	}
	return s
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns loads exclusion patterns from both config and .gitignore files.
// Config dirs and patterns are parsed as gitignore patterns.
func (s *Scanner) loadExcludePatterns(root string) {
	s.matchers = nil
	var patterns []gitignore.Pattern

	for _, dir := range s.config.Exclude.Dirs {
		patterns = append(patterns, gitignore.ParsePattern(strings.TrimSuffix(dir, "/")+"/", nil))
	}
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}

	if s.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(root); gitRoot != "" {
			// ReadPatterns walks every .gitignore below the git root.
			if gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil {
				s.matchers = append(s.matchers, rootedMatcher{
					matcher: gitignore.NewMatcher(gitPatterns),
					root:    gitRoot,
					base:    root,
				})
			}
		}
	}

	if len(patterns) > 0 {
		s.matchers = append(s.matchers, gitignore.NewMatcher(patterns))
	}
}

// rootedMatcher matches paths relative to base against patterns read
// relative to root.
type rootedMatcher struct {
	matcher    gitignore.Matcher
	root, base string
}

func (m rootedMatcher) Match(path []string, isDir bool) bool {
	abs := filepath.Join(append([]string{m.base}, path...)...)
	rel, err := filepath.Rel(m.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return m.matcher.Match(strings.Split(rel, string(filepath.Separator)), isDir)
}

// isExcluded checks if a path relative to the scan root matches any exclusion pattern.
func (s *Scanner) isExcluded(path string, isDir bool) bool {
	if len(s.matchers) == 0 || path == "." {
		return false
	}
	pathParts := strings.Split(path, string(filepath.Separator))
	for _, m := range s.matchers {
		if m.Match(pathParts, isDir) {
			return true
		}
	}
	return false
}

func (s *Scanner) accepts(path string) bool {
	lang := parser.DetectLanguage(path)
	if lang == parser.LangUnknown {
		return false
	}
	return s.languages == nil || s.languages[lang]
}

// ScanDir recursively scans a directory for source files, in lexical order.
// Validates that all paths stay within the root directory to prevent traversal attacks.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 1024)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(absRoot)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, _ := filepath.Rel(absRoot, path)

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if s.isExcluded(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.isExcluded(relPath, false) {
			return nil
		}
		if s.accepts(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, walkErr
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// ScanPaths scans every path, directories recursively, and returns the
// deduplicated, sorted union.
func (s *Scanner) ScanPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if ok, _ := s.ScanFile(p); ok {
				abs, err := filepath.Abs(p)
				if err != nil {
					return nil, err
				}
				out = append(out, abs)
			}
			continue
		}
		found, err := s.ScanDir(p)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ScanFile checks if a single file should be analyzed.
func (s *Scanner) ScanFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if s.config.ShouldExclude(path) {
		return false, nil
	}
	return s.accepts(path), nil
}

// GroupByLanguage groups files by their detected language.
func GroupByLanguage(files []string) map[parser.Language][]string {
	groups := make(map[parser.Language][]string)
	for _, f := range files {
		lang := parser.DetectLanguage(f)
		if lang != parser.LangUnknown {
			groups[lang] = append(groups[lang], f)
		}
	}
	return groups
}
