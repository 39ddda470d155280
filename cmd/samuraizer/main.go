package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/samuraizer-go/internal/cancellation"
	"github.com/standardbeagle/samuraizer-go/internal/config"
	"github.com/standardbeagle/samuraizer-go/internal/debug"
	"github.com/standardbeagle/samuraizer-go/internal/engine"
	"github.com/standardbeagle/samuraizer-go/internal/model"
	"github.com/standardbeagle/samuraizer-go/internal/progressivestore"
	"github.com/standardbeagle/samuraizer-go/internal/streambridge"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "samuraizer",
		Usage:   "Stream a repository's file structure and content as JSON",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Aliases: []string{"c"},
				Usage:   "Directory to search for a .samuraizer.kdl config file",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Directory to analyze (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "include-binary",
				Usage: "Include binary/image file contents as base64 (overrides config)",
			},
			&cli.StringFlag{
				Name:  "hash-algorithm",
				Usage: `Content hash algorithm, or "none" to disable hashing and caching`,
			},
			&cli.IntFlag{
				Name:  "threads",
				Usage: "Worker thread count (0 = auto-detect)",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the persistent content cache for this run",
			},
			&cli.BoolFlag{
				Name:  "sorted",
				Usage: "Emit entries sorted by full path instead of completion order",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging to stderr",
			},
		},
		Commands: []*cli.Command{
			configCommand(),
		},
		Action: runCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "samuraizer: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(c *cli.Context) error {
	if c.Bool("verbose") {
		debug.SetDebugOutput(os.Stderr)
		os.Setenv("DEBUG", "1")
	}

	cfg, err := config.LoadWithRoot(c.String("config-dir"), c.String("config-dir"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if c.Bool("include-binary") {
		cfg.Options.IncludeBinary = true
	}
	if c.IsSet("hash-algorithm") {
		if v := c.String("hash-algorithm"); v == "none" {
			cfg.Options.HashAlgorithm = ""
		} else {
			cfg.Options.HashAlgorithm = v
		}
	}
	if c.IsSet("threads") {
		cfg.Options.Threads = c.Int("threads")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := cancellation.NewSource()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			debug.Log("CLI", "received interrupt, cancelling run\n")
			src.Cancel()
			cancel()
		}
	}()
	defer signal.Stop(sigCh)

	opts := engine.Options{
		Root:            cfg.Project.Root,
		MaxFileSize:     cfg.Options.MaxFileSize,
		IncludeBinary:   cfg.Options.IncludeBinary,
		ExcludedFolders: cfg.Options.ExcludedFolders,
		ExcludedFiles:   cfg.Options.ExcludedFiles,
		ExcludePatterns: cfg.Options.ExcludePatterns,
		FollowSymlinks:  cfg.Options.FollowSymlinks,
		ImageExtensions: cfg.Options.ImageExtensions,
		Threads:         cfg.ResolveThreads(),
		Encoding:        cfg.Options.Encoding,
		HashAlgorithm:   cfg.Options.HashAlgorithm,
		ChunkSize:       cfg.Options.ChunkSize,
		MaxPendingTasks: cfg.Options.MaxPendingTasks,
		Cancellation:    src.Token(),
	}
	if cfg.Cache.Enabled && !c.Bool("no-cache") {
		opts.CacheDir = cfg.Project.Root
		opts.CacheMaxSizeMB = cfg.Cache.MaxSizeMB
	}

	enc := json.NewEncoder(os.Stdout)

	if c.Bool("sorted") {
		summary, err := engine.RunOrdered(ctx, opts, func(o progressivestore.Ordered) error {
			return enc.Encode(o.Entry)
		})
		if err != nil {
			return fmt.Errorf("failed to run: %w", err)
		}
		if summary != nil {
			return enc.Encode(model.Payload{Summary: summary})
		}
		return nil
	}

	payloads, cleanup, err := engine.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	defer cleanup()

	// The CLI's encode loop is the cooperative, single-goroutine consumer the
	// streaming bridge was built for: it never dispatches work itself, it just
	// pulls whatever the blocking pipeline has produced.
	bridge := streambridge.New(src.Token())
	bridge.Start(payloads)
	defer bridge.Stop()

	for {
		payload, ok := bridge.Next()
		if !ok {
			return nil
		}
		if err := enc.Encode(payload); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
}
