package main

import (
	"strings"

	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/pkg/analyzer/graph"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/urfave/cli/v2"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Build the call graph and print its edges, patterns and summary",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Print only the summary",
			},
		},
		Action: runAnalyzeCmd,
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	res, err := buildGraph(c, getPaths(c))
	if err != nil {
		return err
	}
	if c.Bool("summary") {
		return render(c, output.Summary(res))
	}
	return render(c, output.Analysis(res))
}

func callersCmd() *cli.Command {
	return &cli.Command{
		Name:      "callers",
		Usage:     "List the functions that call a function",
		ArgsUsage: "<function> [path...]",
		Description: `The function may be a qualified name (Class.method), a bare name,
or file:qualified_name when the name is ambiguous.`,
		Action: func(c *cli.Context) error {
			return runNeighboursCmd(c, output.Callers)
		},
	}
}

func calleesCmd() *cli.Command {
	return &cli.Command{
		Name:      "callees",
		Usage:     "List the functions a function calls",
		ArgsUsage: "<function> [path...]",
		Description: `The function may be a qualified name (Class.method), a bare name,
or file:qualified_name when the name is ambiguous.`,
		Action: func(c *cli.Context) error {
			return runNeighboursCmd(c, output.Callees)
		},
	}
}

func runNeighboursCmd(c *cli.Context, view func(*graph.Result, models.FunctionID) *output.Table) error {
	query, paths, err := queryArgs(c)
	if err != nil {
		return err
	}
	res, err := buildGraph(c, paths)
	if err != nil {
		return err
	}
	id, err := findFunction(res, query)
	if err != nil {
		return err
	}
	return render(c, view(res, id))
}

func functionsCmd() *cli.Command {
	return &cli.Command{
		Name:      "functions",
		Aliases:   []string{"fn"},
		Usage:     "List the functions of the call graph",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "filter",
				Usage: "Only list functions whose qualified name contains this text",
			},
		},
		Action: runFunctionsCmd,
	}
}

func runFunctionsCmd(c *cli.Context) error {
	res, err := buildGraph(c, getPaths(c))
	if err != nil {
		return err
	}
	filter := c.String("filter")
	ids := make([]models.FunctionID, 0, res.Graph.NodeCount())
	for _, id := range res.Graph.AllFunctions() {
		if filter == "" || strings.Contains(id.QualifiedName, filter) {
			ids = append(ids, id)
		}
	}
	return render(c, output.Functions(res, ids))
}
