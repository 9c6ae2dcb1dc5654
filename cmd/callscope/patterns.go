package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/urfave/cli/v2"
)

func patternsCmd() *cli.Command {
	return &cli.Command{
		Name:      "patterns",
		Usage:     "List design-pattern instances that produce dispatch edges",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Only list these kinds: observer, singleton, factory, strategy, callback, template_method",
			},
		},
		Action: runPatternsCmd,
	}
}

func runPatternsCmd(c *cli.Context) error {
	var kinds []models.PatternKind
	for _, k := range c.StringSlice("kind") {
		kind := models.PatternKind(strings.ToLower(k))
		if !slices.Contains(models.AllPatternKinds(), kind) {
			return fmt.Errorf("unknown pattern kind %q", k)
		}
		kinds = append(kinds, kind)
	}

	res, err := buildGraph(c, getPaths(c))
	if err != nil {
		return err
	}
	return render(c, output.Patterns(res, output.FilterPatterns(res.Patterns, kinds...)))
}

func statsCmd() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Summarize the call graph: resolution, hubs and recursion",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "top",
				Value: 10,
				Usage: "Number of top-ranked functions to show",
			},
		},
		Action: runStatsCmd,
	}
}

func runStatsCmd(c *cli.Context) error {
	res, err := buildGraph(c, getPaths(c))
	if err != nil {
		return err
	}
	return render(c, output.Stats(res, res.Stats(c.Int("top"))))
}
