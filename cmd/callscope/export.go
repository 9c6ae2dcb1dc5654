package main

import (
	"github.com/fatih/color"
	"github.com/panbanda/callscope/internal/export"
	"github.com/urfave/cli/v2"
)

func exportCmd() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Load the call graph into Neo4j",
		ArgsUsage: "[path...]",
		Description: `Upserts (:Function) nodes keyed by a stable hash of file, line and
qualified name, [:CALLS {kind}] relationships carrying count and provenance,
and (:Pattern) nodes linked from their implementations by [:IMPLEMENTS].

Connection settings default to the [neo4j] section of the config file.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "uri",
				Usage: "Neo4j bolt URI",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "Neo4j username",
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Neo4j password",
				EnvVars: []string{"CALLSCOPE_NEO4J_PASSWORD"},
			},
			&cli.StringFlag{
				Name:  "database",
				Usage: "Neo4j database",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Rows per UNWIND statement",
			},
			&cli.BoolFlag{
				Name:  "clean",
				Usage: "Remove previously exported functions, calls and patterns first",
			},
		},
		Action: runExportCmd,
	}
}

func runExportCmd(c *cli.Context) error {
	neo := appConfig(c).Neo4j
	if v := c.String("uri"); v != "" {
		neo.URI = v
	}
	if v := c.String("user"); v != "" {
		neo.User = v
	}
	if v := c.String("password"); v != "" {
		neo.Password = v
	}
	if v := c.String("database"); v != "" {
		neo.Database = v
	}
	if v := c.Int("batch-size"); v > 0 {
		neo.BatchSize = v
	}

	runner, err := export.Dial(c.Context, neo)
	if err != nil {
		return err
	}
	defer runner.Close(c.Context)

	res, err := buildGraph(c, getPaths(c))
	if err != nil {
		return err
	}

	st, err := export.New(runner,
		export.WithBatchSize(neo.BatchSize),
		export.WithClean(c.Bool("clean")),
		export.WithLogger(appLogger(c)),
	).Export(c.Context, res)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(c.App.Writer, "Exported %d functions, %d calls, %d patterns to %s\n",
		st.Functions, st.Edges, st.Patterns, neo.URI)
	return nil
}
