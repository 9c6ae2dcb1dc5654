// Package mcpserver exposes call-graph queries as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/callscope/internal/scanner"
	"github.com/panbanda/callscope/pkg/analyzer/graph"
	"github.com/panbanda/callscope/pkg/config"
)

// Server wraps the MCP server and registers the call-graph tools.
type Server struct {
	server *mcp.Server
	cfg    *config.Config
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*graph.Result
}

// NewServer creates a new MCP server with every callscope tool registered.
// A nil cfg uses the defaults.
func NewServer(version string, cfg *config.Config, logger *slog.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "callscope",
			Version: version,
		},
		nil,
	)

	s := &Server{
		server: server,
		cfg:    cfg,
		logger: logger,
		cache:  make(map[string]*graph.Result),
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools adds the call-graph tools to the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "callers_of",
		Description: describeCallersOf(),
	}, s.handleCallersOf)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "callees_of",
		Description: describeCalleesOf(),
	}, s.handleCalleesOf)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_functions",
		Description: describeListFunctions(),
	}, s.handleListFunctions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "patterns",
		Description: describePatterns(),
	}, s.handlePatterns)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "graph_stats",
		Description: describeGraphStats(),
	}, s.handleGraphStats)
}

// analyze returns the graph of paths, reusing the last run for the same
// paths unless refresh is set.
func (s *Server) analyze(ctx context.Context, paths []string, refresh bool) (*graph.Result, error) {
	key := cacheKey(paths)
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.cache[key]; ok && !refresh {
		return res, nil
	}

	files, err := scanner.NewScanner(s.cfg).ScanPaths(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errNoFiles
	}
	opts, err := graph.OptionsFromConfig(s.cfg)
	if err != nil {
		return nil, err
	}
	if len(paths) == 1 {
		if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
			opts = append(opts, graph.WithRoot(paths[0]))
		}
	}
	opts = append(opts, graph.WithLogger(s.logger))
	res, err := graph.New(opts...).Analyze(ctx, files)
	if err != nil {
		return nil, err
	}
	s.cache[key] = res
	return res, nil
}

// Invalidate drops every cached graph.
func (s *Server) Invalidate() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

func cacheKey(paths []string) string {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	return strings.Join(sorted, "\x00")
}
