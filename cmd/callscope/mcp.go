package main

import (
	"fmt"
	"log/slog"

	"github.com/panbanda/callscope/internal/mcpserver"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes call-graph
queries as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "callscope": {
        "command": "callscope",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - callers_of       Functions that call a function
  - callees_of       Functions a function calls
  - list_functions   Functions, methods and closures in the graph
  - patterns         Design-pattern instances and their dispatch edges
  - graph_stats      Sizes, resolution outcome, hubs and recursion groups`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP registry manifest (server.json)",
				Action: runMCPManifestCmd,
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	// stdout carries the protocol; logs stay on stderr.
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if c.Bool("verbose") {
		logger = appLogger(c)
	}
	server := mcpserver.NewServer(version, appConfig(c), logger)
	return server.Run(c.Context)
}

func runMCPManifestCmd(c *cli.Context) error {
	raw, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(raw))
	return err
}
