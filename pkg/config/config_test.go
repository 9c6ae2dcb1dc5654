package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.True(t, cfg.Analysis.BasenameFallback)
	assert.Zero(t, cfg.Analysis.Workers)
	assert.Equal(t, int64(1<<20), cfg.Analysis.MaxFileSize)
	assert.Empty(t, cfg.Analysis.Patterns)
	assert.True(t, cfg.Exclude.Gitignore)
	assert.NotEmpty(t, cfg.Exclude.Dirs)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, 1000, cfg.Neo4j.BatchSize)
	assert.NoError(t, cfg.Validate())
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "callscope.toml",
			content: `
[analysis]
workers = 4
resolve_workers = 2
patterns = ["observer", "factory"]
basename_fallback = false

[exclude]
dirs = ["vendor", "custom_exclude"]

[output]
format = "json"

[neo4j]
uri = "neo4j://graph:7687"
batch_size = 50
`,
		},
		{
			name: "yaml",
			file: "callscope.yaml",
			content: `
analysis:
  workers: 4
  resolve_workers: 2
  patterns: [observer, factory]
  basename_fallback: false
exclude:
  dirs: [vendor, custom_exclude]
output:
  format: json
neo4j:
  uri: neo4j://graph:7687
  batch_size: 50
`,
		},
		{
			name: "json",
			file: "callscope.json",
			content: `{
  "analysis": {"workers": 4, "resolve_workers": 2, "patterns": ["observer", "factory"], "basename_fallback": false},
  "exclude": {"dirs": ["vendor", "custom_exclude"]},
  "output": {"format": "json"},
  "neo4j": {"uri": "neo4j://graph:7687", "batch_size": 50}
}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, 4, cfg.Analysis.Workers)
			assert.Equal(t, 2, cfg.Analysis.ResolveWorkers)
			assert.Equal(t, []string{"observer", "factory"}, cfg.Analysis.Patterns)
			assert.False(t, cfg.Analysis.BasenameFallback)
			assert.Contains(t, cfg.Exclude.Dirs, "custom_exclude")
			assert.Equal(t, "json", cfg.Output.Format)
			assert.Equal(t, "neo4j://graph:7687", cfg.Neo4j.URI)
			assert.Equal(t, 50, cfg.Neo4j.BatchSize)

			// Unset keys keep their defaults.
			assert.True(t, cfg.Exclude.Gitignore)
			assert.Equal(t, "neo4j", cfg.Neo4j.User)
		})
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/callscope.toml")
	assert.Error(t, err)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "callscope.toml", "this is not [valid toml"))
	assert.Error(t, err)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown pattern", "[analysis]\npatterns = [\"visitor\"]\n"},
		{"negative workers", "[analysis]\nworkers = -1\n"},
		{"unknown format", "[output]\nformat = \"html\"\n"},
		{"bad neo4j scheme", "[neo4j]\nuri = \"http://localhost\"\n"},
		{"zero batch", "[neo4j]\nbatch_size = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "callscope.toml", tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := LoadOrDefault()
	assert.Equal(t, DefaultConfig(), cfg)
	_, found := Find()
	assert.False(t, found)

	require.NoError(t, os.MkdirAll(".callscope", 0755))
	require.NoError(t, os.WriteFile(filepath.Join(".callscope", "callscope.yml"), []byte("analysis:\n  workers: 3\n"), 0644))

	path, found := Find()
	require.True(t, found)
	assert.Equal(t, filepath.Join(".callscope", "callscope.yml"), path)
	assert.Equal(t, 3, LoadOrDefault().Analysis.Workers)
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exclude.Patterns = append(cfg.Exclude.Patterns, "*_generated.go")

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("vendor", "pkg", "file.go"), true},
		{filepath.Join("src", "node_modules", "pkg", "file.js"), true},
		{"app.min.js", true},
		{"model_generated.go", true},
		{"main.go", false},
		{filepath.Join("pkg", "vendor_utils.go"), false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ShouldExclude(tt.path))
		})
	}
}
