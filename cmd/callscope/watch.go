package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/pkg/watch"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Rebuild the call graph whenever source files change",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before a rebuild",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	root, err := filepath.Abs(c.Args().First())
	if err != nil {
		return err
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	cfg := appConfig(c)
	logger := appLogger(c)
	rebuilder, err := watch.NewRebuilder(root, cfg, logger)
	if err != nil {
		return err
	}

	res, err := rebuilder.Build(c.Context)
	if err != nil {
		return err
	}
	if err := render(c, output.Summary(res)); err != nil {
		return err
	}

	w, err := watch.NewWatcher(root, cfg, watch.WithDebounce(c.Duration("debounce")), watch.WithLogger(logger))
	if err != nil {
		return err
	}
	defer w.Stop()

	out := c.App.Writer
	rebuilder.Rebuild(w, func(u watch.Update) {
		rel := make([]string, len(u.Changed))
		for i, p := range u.Changed {
			rel[i] = res.Rel(p)
		}
		color.New(color.FgYellow).Fprintf(out, "\nChanged: %s\n", strings.Join(rel, ", "))
		fmt.Fprintln(out, strings.Repeat("-", 40))
		if u.Err != nil {
			color.New(color.FgRed).Fprintf(out, "Rebuild failed: %v\n", u.Err)
			return
		}
		if err := render(c, output.Summary(u.Result)); err != nil {
			logger.Warn("rendering summary", slog.Any("error", err))
		}
	})

	color.New(color.FgCyan).Fprintf(out, "Watching for changes in %s... (Ctrl+C to stop)\n", root)
	if err := w.Start(c.Context); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
