package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/internal/progress"
	"github.com/panbanda/callscope/internal/remote"
	"github.com/panbanda/callscope/internal/scanner"
	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/analyzer/graph"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/urfave/cli/v2"
)

var errNoFiles = errors.New("no source files found")

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// queryArgs splits "<function> [path...]" arguments.
func queryArgs(c *cli.Context) (string, []string, error) {
	if c.Args().Len() == 0 {
		return "", nil, fmt.Errorf("usage: %s %s", c.Command.Name, c.Command.ArgsUsage)
	}
	paths := c.Args().Tail()
	if len(paths) == 0 {
		paths = []string{"."}
	}
	return c.Args().First(), paths, nil
}

func appConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func appLogger(c *cli.Context) *slog.Logger {
	if l, ok := c.App.Metadata[metaLogger].(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func getFormat(c *cli.Context) output.Format {
	if f := c.String("format"); f != "" {
		return output.ParseFormat(f)
	}
	return output.ParseFormat(appConfig(c).Output.Format)
}

// newFormatter writes to the --output file, or to the app's writer.
func newFormatter(c *cli.Context) (*output.Formatter, error) {
	if path := c.String("output"); path != "" {
		return output.NewFormatter(getFormat(c), path, false)
	}
	return output.NewWriterFormatter(getFormat(c), c.App.Writer, !color.NoColor), nil
}

func render(c *cli.Context, data any) error {
	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(data)
}

// resolvePaths clones remote references into temp directories. The returned
// cleanup removes every clone and is safe to call after an error.
func resolvePaths(c *cli.Context, paths []string) ([]string, func(), error) {
	var sources []*remote.Source
	cleanup := func() {
		for _, s := range sources {
			s.Cleanup()
		}
	}

	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		src, err := remote.Parse(p)
		if err != nil {
			return nil, cleanup, err
		}
		if src == nil {
			resolved = append(resolved, p)
			continue
		}

		var progressOut io.Writer
		if c.Bool("verbose") {
			progressOut = c.App.ErrWriter
		}
		spinner := progress.NewSpinnerTo(c.App.ErrWriter, "Cloning "+src.Display()+"...")
		err = src.Clone(c.Context, progressOut, true)
		if err != nil {
			spinner.FinishError(err)
			return nil, cleanup, fmt.Errorf("cloning %s: %w", src.Display(), err)
		}
		spinner.FinishSuccess()
		appLogger(c).Debug("cloned remote repository", "source", src.Display(), "dir", src.CloneDir)
		sources = append(sources, src)
		resolved = append(resolved, src.CloneDir)
	}
	return resolved, cleanup, nil
}

// buildGraph scans paths and analyzes every source file found.
func buildGraph(c *cli.Context, paths []string) (*graph.Result, error) {
	cfg := appConfig(c)
	paths, cleanup, err := resolvePaths(c, paths)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", p, err)
		}
		abs = append(abs, a)
	}

	files, err := scanner.NewScanner(cfg).ScanPaths(abs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errNoFiles
	}
	if logger := appLogger(c); logger.Enabled(c.Context, slog.LevelDebug) {
		for lang, group := range scanner.GroupByLanguage(files) {
			logger.Debug("scanned", slog.String("language", string(lang)), slog.Int("files", len(group)))
		}
	}

	opts, err := graph.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if len(abs) == 1 {
		if info, err := os.Stat(abs[0]); err == nil && info.IsDir() {
			opts = append(opts, graph.WithRoot(abs[0]))
		}
	}
	opts = append(opts, graph.WithLogger(appLogger(c)))

	tracker := progress.NewTrackerTo(c.App.ErrWriter, "Building call graph...", len(files))
	ctx := analyzer.WithTracker(c.Context, tracker.Analysis())
	a := graph.New(opts...)
	defer a.Close()
	res, err := a.Analyze(ctx, files)
	if err != nil {
		tracker.FinishError(err)
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	tracker.FinishSuccess()
	return res, nil
}

// findFunction resolves a query to exactly one function.
func findFunction(res *graph.Result, query string) (models.FunctionID, error) {
	ids := res.Find(query)
	switch len(ids) {
	case 0:
		return models.FunctionID{}, fmt.Errorf("no function matches %q", query)
	case 1:
		return ids[0], nil
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = "  " + res.Rel(id.File) + ":" + id.QualifiedName
	}
	return models.FunctionID{}, fmt.Errorf("%q is ambiguous, use one of:\n%s", query, strings.Join(names, "\n"))
}
