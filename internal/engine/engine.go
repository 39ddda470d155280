// Package engine composes the Traversal Walker, Pattern/Exclusion Service,
// File Processor, Cache Store, Cache State Bus, Chunk Pipeline, and
// Progressive Store into the single consumer-facing operation:
// run(options) → sequence of payloads.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/standardbeagle/samuraizer-go/internal/cache"
	"github.com/standardbeagle/samuraizer-go/internal/cachestate"
	"github.com/standardbeagle/samuraizer-go/internal/cancellation"
	"github.com/standardbeagle/samuraizer-go/internal/debug"
	lcierrors "github.com/standardbeagle/samuraizer-go/internal/errors"
	"github.com/standardbeagle/samuraizer-go/internal/model"
	"github.com/standardbeagle/samuraizer-go/internal/patterns"
	"github.com/standardbeagle/samuraizer-go/internal/pipeline"
	"github.com/standardbeagle/samuraizer-go/internal/processor"
	"github.com/standardbeagle/samuraizer-go/internal/progressivestore"
	"github.com/standardbeagle/samuraizer-go/internal/walker"
)

// Options is the run(options) contract's full recognized key set.
type Options struct {
	Root            string
	MaxFileSize     int64
	IncludeBinary   bool
	ExcludedFolders []string
	ExcludedFiles   []string
	ExcludePatterns []string
	FollowSymlinks  bool
	ImageExtensions []string
	Threads         int
	Encoding        string
	HashAlgorithm   string // "" disables hashing and cache reads/writes
	ChunkSize       int
	MaxPendingTasks int

	// CacheDir, when non-empty, enables the persistent Cache Store rooted
	// there; CacheMaxSizeMB bounds its on-disk footprint (0 = unbounded),
	// enforced by an eviction pass when the run's cleanup function is called.
	CacheDir       string
	CacheMaxSizeMB int64

	// OnProgress mirrors the Chunk Pipeline's optional progress callback.
	OnProgress func(processedCount uint64)

	Cancellation cancellation.Token
}

// validateRoot rejects a missing or non-directory root before any walker,
// processor, or pipeline stage is constructed, so the error reaches the
// consumer before any chunk is emitted rather than as a silent empty run.
func validateRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return lcierrors.NewConfigError("root", root, err)
	}
	if !info.IsDir() {
		return lcierrors.NewConfigError("root", root, fmt.Errorf("not a directory"))
	}
	return nil
}

func imageExtensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[e] = true
	}
	return set
}

// Run executes one full traversal+processing pass and returns a channel of
// payloads: zero or more {entries} chunks, in emission order, followed by
// exactly one {summary}. The returned cleanup function releases the cache
// store (if one was opened); callers must invoke it once the channel is
// drained.
func Run(ctx context.Context, opts Options) (<-chan model.Payload, func(), error) {
	if err := validateRoot(opts.Root); err != nil {
		return nil, nil, err
	}

	token := opts.Cancellation
	matcher := patterns.NewMatcher()

	w := walker.New(walker.Options{
		Root:            opts.Root,
		ExcludedFolders: opts.ExcludedFolders,
		ExcludedFiles:   opts.ExcludedFiles,
		ExcludePatterns: opts.ExcludePatterns,
		FollowSymlinks:  opts.FollowSymlinks,
		Matcher:         matcher,
		Cancellation:    token,
	})

	var store *cache.Store
	var bus *cachestate.Bus
	cleanup := func() {}

	if opts.CacheDir != "" {
		bus = cachestate.New()
		threads := opts.Threads
		if threads <= 0 {
			threads = 1
		}
		maxBytes := opts.CacheMaxSizeMB * 1024 * 1024
		s, err := cache.Open(cache.CachePath(opts.CacheDir), threads, maxBytes, bus)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache store: %w", err)
		}
		store = s
		cleanup = func() {
			if err := store.EvictIfNeeded(); err != nil {
				debug.LogPipeline("cache eviction failed: %v", err)
			}
			if err := store.Close(); err != nil {
				debug.LogPipeline("cache store close failed: %v", err)
			}
		}
	}

	proc := processor.New(processor.Options{
		MaxFileSize:     opts.MaxFileSize,
		IncludeBinary:   opts.IncludeBinary,
		ImageExtensions: imageExtensionSet(opts.ImageExtensions),
		HashAlgorithm:   opts.HashAlgorithm,
		Encoding:        opts.Encoding,
	}, store, bus)

	pl := pipeline.New(w, proc, pipeline.Options{
		Threads:         opts.Threads,
		ChunkSize:       opts.ChunkSize,
		MaxPendingTasks: opts.MaxPendingTasks,
		HashAlgorithm:   opts.HashAlgorithm,
		OnProgress:      opts.OnProgress,
	}, token)

	return pl.Run(ctx), cleanup, nil
}

// RunOrdered drains a full run through the Progressive Store and replays it
// in ascending full-path order, for consumers (e.g. hierarchical
// formatters) that need sorted output rather than completion order.
func RunOrdered(ctx context.Context, opts Options, visit func(progressivestore.Ordered) error) (*model.Summary, error) {
	payloads, cleanup, err := Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	store, err := progressivestore.Open()
	if err != nil {
		return nil, fmt.Errorf("open progressive store: %w", err)
	}
	defer store.Close()

	var summary *model.Summary
	for payload := range payloads {
		if payload.Summary != nil {
			summary = payload.Summary
			continue
		}
		if err := store.WriteChunk(payload.Entries); err != nil {
			return nil, fmt.Errorf("write chunk to progressive store: %w", err)
		}
	}

	if err := store.Iterate(visit); err != nil {
		return nil, fmt.Errorf("iterate progressive store: %w", err)
	}
	return summary, nil
}
