package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/pkg/analyzer/graph"
	"github.com/panbanda/callscope/pkg/models"
)

var errNoFiles = errors.New("no source files found")

// AnalyzeInput is the base input for all tools.
type AnalyzeInput struct {
	Paths   []string `json:"paths,omitempty" jsonschema:"Paths to analyze. Defaults to current directory if empty."`
	Format  string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
	Refresh bool     `json:"refresh,omitempty" jsonschema:"Rebuild the graph instead of reusing the last one for these paths."`
}

// FunctionInput names the function a neighbour query starts from.
type FunctionInput struct {
	AnalyzeInput
	Function string `json:"function" jsonschema:"Function to query: qualified name (Class.method), bare name, or file:qualified_name."`
}

// ListFunctionsInput filters the function listing.
type ListFunctionsInput struct {
	AnalyzeInput
	Filter string `json:"filter,omitempty" jsonschema:"Only list functions whose qualified name contains this text."`
	File   string `json:"file,omitempty" jsonschema:"Only list functions whose file path ends with this suffix."`
}

// PatternsInput filters the pattern listing.
type PatternsInput struct {
	AnalyzeInput
	Kind string `json:"kind,omitempty" jsonschema:"Only list one pattern kind: observer, singleton, factory, strategy, callback, or template_method."`
}

// StatsInput tunes the statistics view.
type StatsInput struct {
	AnalyzeInput
	Top int `json:"top,omitempty" jsonschema:"Number of top-ranked functions to include. Default 10."`
}

func getPaths(input AnalyzeInput) []string {
	if len(input.Paths) == 0 {
		return []string{"."}
	}
	return input.Paths
}

func getFormat(input AnalyzeInput) output.Format {
	if input.Format == "" || input.Format == "text" {
		return output.FormatTOON
	}
	return output.ParseFormat(input.Format)
}

func formatOutput(data any, format output.Format) (string, error) {
	var buf bytes.Buffer
	if err := output.NewWriterFormatter(format, &buf, false).Output(data); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// resolveFunction finds the single function input names.
func resolveFunction(res *graph.Result, query string) (models.FunctionID, error) {
	if strings.TrimSpace(query) == "" {
		return models.FunctionID{}, errors.New("function is required")
	}
	ids := res.Find(query)
	switch len(ids) {
	case 0:
		return models.FunctionID{}, fmt.Errorf("no function matches %q", query)
	case 1:
		return ids[0], nil
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = res.Rel(id.File) + ":" + id.QualifiedName
	}
	return models.FunctionID{}, fmt.Errorf("%q is ambiguous, use one of: %s", query, strings.Join(names, ", "))
}

// Tool handlers

func (s *Server) handleCallersOf(ctx context.Context, req *mcp.CallToolRequest, input FunctionInput) (*mcp.CallToolResult, any, error) {
	return s.neighbours(ctx, input, output.Callers)
}

func (s *Server) handleCalleesOf(ctx context.Context, req *mcp.CallToolRequest, input FunctionInput) (*mcp.CallToolResult, any, error) {
	return s.neighbours(ctx, input, output.Callees)
}

func (s *Server) neighbours(ctx context.Context, input FunctionInput, view func(*graph.Result, models.FunctionID) *output.Table) (*mcp.CallToolResult, any, error) {
	res, err := s.analyze(ctx, getPaths(input.AnalyzeInput), input.Refresh)
	if err != nil {
		return toolError(err.Error())
	}
	id, err := resolveFunction(res, input.Function)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(view(res, id).RenderData(), getFormat(input.AnalyzeInput))
}

func (s *Server) handleListFunctions(ctx context.Context, req *mcp.CallToolRequest, input ListFunctionsInput) (*mcp.CallToolResult, any, error) {
	res, err := s.analyze(ctx, getPaths(input.AnalyzeInput), input.Refresh)
	if err != nil {
		return toolError(err.Error())
	}
	var ids []models.FunctionID
	for _, id := range res.Graph.AllFunctions() {
		if input.Filter != "" && !strings.Contains(id.QualifiedName, input.Filter) {
			continue
		}
		if input.File != "" && !strings.HasSuffix(res.Rel(id.File), input.File) {
			continue
		}
		ids = append(ids, id)
	}
	if ids == nil {
		ids = []models.FunctionID{}
	}
	return toolResult(ids, getFormat(input.AnalyzeInput))
}

func (s *Server) handlePatterns(ctx context.Context, req *mcp.CallToolRequest, input PatternsInput) (*mcp.CallToolResult, any, error) {
	res, err := s.analyze(ctx, getPaths(input.AnalyzeInput), input.Refresh)
	if err != nil {
		return toolError(err.Error())
	}
	var kinds []models.PatternKind
	if input.Kind != "" {
		kinds = append(kinds, models.PatternKind(strings.ToLower(input.Kind)))
	}
	instances := output.FilterPatterns(res.Patterns, kinds...)
	return toolResult(output.Patterns(res, instances).RenderData(), getFormat(input.AnalyzeInput))
}

func (s *Server) handleGraphStats(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, any, error) {
	res, err := s.analyze(ctx, getPaths(input.AnalyzeInput), input.Refresh)
	if err != nil {
		return toolError(err.Error())
	}
	top := input.Top
	if top <= 0 {
		top = 10
	}
	return toolResult(res.Stats(top), getFormat(input.AnalyzeInput))
}
