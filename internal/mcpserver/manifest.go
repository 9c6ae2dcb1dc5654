package mcpserver

import (
	"encoding/json"
)

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	serverName     = "io.github.panbanda/callscope"
	repositoryURL  = "https://github.com/panbanda/callscope"
	imageName      = "ghcr.io/panbanda/callscope"
)

// Manifest is the registry entry (server.json) describing the server.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package is one way to launch the server.
type Package struct {
	RegistryType         string     `json:"registryType"`
	Identifier           string     `json:"identifier"`
	PackageArguments     []Argument `json:"packageArguments,omitempty"`
	EnvironmentVariables []EnvVar   `json:"environmentVariables,omitempty"`
	Transport            Transport  `json:"transport"`
}

type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// EnvVar documents an environment variable the server reads.
type EnvVar struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
	IsSecret    bool   `json:"isSecret,omitempty"`
}

type Transport struct {
	Type string `json:"type"`
}

// GenerateManifest renders the registry manifest for version, which
// defaults to 0.0.0 for development builds.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}

	container := Package{
		RegistryType:     "oci",
		Identifier:       imageName + ":" + version,
		PackageArguments: []Argument{{Type: "positional", Value: "mcp"}},
		EnvironmentVariables: []EnvVar{{
			Name:        "CALLSCOPE_CONFIG",
			Description: "Path to a callscope.toml, .yaml or .json configuration file",
		}},
		Transport: Transport{Type: "stdio"},
	}

	return json.MarshalIndent(Manifest{
		Schema:      manifestSchema,
		Name:        serverName,
		Description: "Multi-language call graphs with cross-file and design-pattern dispatch resolution",
		Version:     version,
		Repository:  &Repository{URL: repositoryURL, Source: "github"},
		Packages:    []Package{container},
	}, "", "  ")
}
