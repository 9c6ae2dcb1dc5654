// Package config loads callscope settings from TOML, YAML or JSON files.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

// ErrInvalidConfig wraps schema violations.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration options for callscope.
type Config struct {
	Analysis AnalysisConfig `koanf:"analysis" json:"analysis" toml:"analysis"`
	Exclude  ExcludeConfig  `koanf:"exclude" json:"exclude" toml:"exclude"`
	Output   OutputConfig   `koanf:"output" json:"output" toml:"output"`
	Neo4j    Neo4jConfig    `koanf:"neo4j" json:"neo4j" toml:"neo4j"`
}

// AnalysisConfig controls extraction and resolution.
type AnalysisConfig struct {
	// Workers bounds per-file extraction; 0 means 2x NumCPU.
	Workers int `koanf:"workers" json:"workers" toml:"workers"`
	// ResolveWorkers bounds cross-file resolution; 0 means NumCPU.
	ResolveWorkers int `koanf:"resolve_workers" json:"resolve_workers" toml:"resolve_workers"`
	// MaxFileSize skips larger files, in bytes; 0 disables the limit.
	MaxFileSize int64 `koanf:"max_file_size" json:"max_file_size" toml:"max_file_size"`
	// Languages restricts analysis; empty means every supported language.
	Languages []string `koanf:"languages" json:"languages" toml:"languages"`
	// Patterns names the enabled recognizers; empty enables all.
	Patterns         []string `koanf:"patterns" json:"patterns" toml:"patterns"`
	BasenameFallback bool     `koanf:"basename_fallback" json:"basename_fallback" toml:"basename_fallback"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" json:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" json:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" json:"gitignore" toml:"gitignore"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" json:"format" toml:"format"` // text, json, yaml, markdown, toon
}

// Neo4jConfig configures the graph export sink.
type Neo4jConfig struct {
	URI       string `koanf:"uri" json:"uri" toml:"uri"`
	User      string `koanf:"user" json:"user" toml:"user"`
	Password  string `koanf:"password" json:"password" toml:"password"`
	Database  string `koanf:"database" json:"database" toml:"database"`
	BatchSize int    `koanf:"batch_size" json:"batch_size" toml:"batch_size"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MaxFileSize:      1 << 20,
			BasenameFallback: true,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.min.js",
				"*.d.ts",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".callscope",
				"dist",
				"build",
				"__pycache__",
				".venv",
			},
			Gitignore: true,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Neo4j: Neo4jConfig{
			URI:       "bolt://localhost:7687",
			User:      "neo4j",
			Database:  "neo4j",
			BatchSize: 1000,
		},
	}
}

// Load loads configuration from a file over the defaults and validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// configNames are searched in order in each search directory.
var configNames = []string{
	"callscope.toml",
	"callscope.yaml",
	"callscope.yml",
	"callscope.json",
}

// Find returns the first config file in the standard locations.
func Find() (string, bool) {
	for _, dir := range []string{".", ".callscope"} {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path, ok := Find(); ok {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("callscope.schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("callscope.schema.json")
}

// Validate checks the config against the embedded JSON Schema.
func (c *Config) Validate() error {
	sch, err := compileSchema()
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
