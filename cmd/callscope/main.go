package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/fatih/color"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

const (
	metaConfig   = "config"
	metaLogger   = "logger"
	metaPprofCPU = "pprofCPU"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		color.Red("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "callscope",
		Usage:     "Multi-language call graph construction and resolution",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Metadata:  make(map[string]interface{}),
		Description: `Callscope builds a call graph for a codebase, resolves calls across files,
and recognizes design patterns (observer, factory, strategy, callback, singleton,
template method) that turn indirect calls into edges.

Supports: Python, Go, JavaScript, TypeScript, Java`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"CALLSCOPE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, yaml, markdown, toon (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
			&cli.StringFlag{
				Name:  "pprof",
				Usage: "Enable pprof profiling and write to specified prefix (creates <prefix>.cpu.pprof and <prefix>.mem.pprof)",
			},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
			c.App.Metadata[metaLogger] = logger

			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			c.App.Metadata[metaConfig] = cfg

			if pprofPrefix := c.String("pprof"); pprofPrefix != "" {
				cpuFile, err := os.Create(pprofPrefix + ".cpu.pprof")
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				if err := pprof.StartCPUProfile(cpuFile); err != nil {
					cpuFile.Close()
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				c.App.Metadata[metaPprofCPU] = cpuFile
			}
			return nil
		},
		After: func(c *cli.Context) error {
			pprofPrefix := c.String("pprof")
			if pprofPrefix == "" {
				return nil
			}
			pprof.StopCPUProfile()
			if cpuFile, ok := c.App.Metadata[metaPprofCPU].(*os.File); ok {
				cpuFile.Close()
				appLogger(c).Info("CPU profile written", slog.String("path", pprofPrefix+".cpu.pprof"))
			}

			memFile, err := os.Create(pprofPrefix + ".mem.pprof")
			if err != nil {
				return fmt.Errorf("failed to create memory profile: %w", err)
			}
			defer memFile.Close()

			runtime.GC()
			if err := pprof.WriteHeapProfile(memFile); err != nil {
				return fmt.Errorf("failed to write memory profile: %w", err)
			}
			appLogger(c).Info("memory profile written", slog.String("path", pprofPrefix+".mem.pprof"))
			return nil
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			callersCmd(),
			calleesCmd(),
			functionsCmd(),
			patternsCmd(),
			statsCmd(),
			exportCmd(),
			watchCmd(),
			mcpCmd(),
			configCmd(),
		},
	}
}

// loadConfig reads path, or the first config file in the standard locations,
// over the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if found, ok := config.Find(); ok {
		return config.Load(found)
	}
	return config.DefaultConfig(), nil
}
