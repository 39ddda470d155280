package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/samuraizer-go/internal/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:    "init",
				Aliases: []string{"i"},
				Usage:   "Write a starter .samuraizer.kdl in the given directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory to write .samuraizer.kdl into",
						Value: ".",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing configuration file",
					},
					&cli.BoolFlag{
						Name:  "minimal",
						Usage: "Generate a minimal config with only commonly changed settings",
					},
				},
				Action: configInitCommand,
			},
			{
				Name:    "show",
				Aliases: []string{"s"},
				Usage:   "Print the resolved configuration for a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory to resolve configuration for",
						Value: ".",
					},
				},
				Action: configShowCommand,
			},
			{
				Name:    "validate",
				Aliases: []string{"v"},
				Usage:   "Load a directory's configuration and report likely misconfigurations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory to validate",
						Value: ".",
					},
				},
				Action: configValidateCommand,
			},
		},
	}
}

func configInitCommand(c *cli.Context) error {
	dir := c.String("dir")
	force := c.Bool("force")
	minimal := c.Bool("minimal")

	output := filepath.Join(dir, ".samuraizer.kdl")

	if !force {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", output)
		}
	}

	if err := os.WriteFile(output, []byte(generateKDLConfig(minimal)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Configuration file created: %s\n", output)
	fmt.Println("Edit the file to customize settings for your project.")
	return nil
}

func configShowCommand(c *cli.Context) error {
	cfg, err := config.LoadWithRoot(c.String("dir"), c.String("dir"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("project.root          %s\n", cfg.Project.Root)
	fmt.Printf("options.max_file_size %d\n", cfg.Options.MaxFileSize)
	fmt.Printf("options.include_binary %t\n", cfg.Options.IncludeBinary)
	fmt.Printf("options.follow_symlinks %t\n", cfg.Options.FollowSymlinks)
	fmt.Printf("options.threads       %d (resolved: %d)\n", cfg.Options.Threads, cfg.ResolveThreads())
	fmt.Printf("options.encoding      %s\n", cfg.Options.Encoding)
	fmt.Printf("options.hash_algorithm %q\n", cfg.Options.HashAlgorithm)
	fmt.Printf("options.chunk_size    %d\n", cfg.Options.ChunkSize)
	fmt.Printf("options.max_pending_tasks %d\n", cfg.Options.MaxPendingTasks)
	fmt.Printf("options.excluded_folders %v\n", cfg.Options.ExcludedFolders)
	fmt.Printf("options.excluded_files   %v\n", cfg.Options.ExcludedFiles)
	fmt.Printf("options.exclude_patterns %v\n", cfg.Options.ExcludePatterns)
	fmt.Printf("options.image_extensions %v\n", cfg.Options.ImageExtensions)
	fmt.Printf("cache.enabled         %t\n", cfg.Cache.Enabled)
	fmt.Printf("cache.max_size_mb     %d\n", cfg.Cache.MaxSizeMB)
	return nil
}

func configValidateCommand(c *cli.Context) error {
	dir := c.String("dir")

	cfg, err := config.LoadWithRoot(dir, dir)
	if err != nil {
		fmt.Printf("configuration validation failed: %v\n", err)
		return err
	}

	var warnings []string
	if cfg.Options.MaxFileSize <= 0 {
		warnings = append(warnings, "max_file_size is zero or negative, every file will be skipped as oversized")
	}
	if cfg.Options.ChunkSize <= 0 {
		warnings = append(warnings, "chunk_size is zero or negative, the pipeline falls back to its default of 256")
	}
	if cfg.Options.MaxPendingTasks <= 0 {
		warnings = append(warnings, "max_pending_tasks is zero or negative, the pipeline falls back to max(threads*4, chunk_size)")
	}
	if cfg.Cache.Enabled && cfg.Cache.MaxSizeMB < 0 {
		warnings = append(warnings, "cache.max_size_mb is negative, no cache size limit is enforced")
	}

	fmt.Println("configuration is valid")
	fmt.Printf("config source: %s\n", dir)
	fmt.Printf("threads=%d chunk_size=%d max_pending_tasks=%d\n",
		cfg.ResolveThreads(), cfg.Options.ChunkSize, cfg.Options.MaxPendingTasks)

	if len(warnings) > 0 {
		fmt.Println("\nwarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
	return nil
}

func generateKDLConfig(minimal bool) string {
	if minimal {
		return `// samuraizer project configuration

options {
    max_file_size "10MB"
    include_binary false
    threads 0
}

// exclude_patterns {
//     "**/*.generated.ts"
// }
`
	}

	return `// samuraizer project configuration

project {
    name "my-project"
}

options {
    max_file_size "10MB"
    include_binary false
    follow_symlinks false
    threads 0
    encoding "auto"
    hash_algorithm "xxh64"
    chunk_size 256
    max_pending_tasks 1000

    excluded_folders {
        ".git"
        "node_modules"
        "vendor"
        "dist"
        "build"
    }

    exclude_patterns {
        "**/*.min.js"
        "**/*.min.css"
    }

    image_extensions {
        ".png"
        ".jpg"
        ".jpeg"
        ".gif"
        ".svg"
    }
}

cache {
    enabled true
    max_size_mb 500
}

performance {
    max_goroutines 0
    startup_delay_ms 0
}
`
}
