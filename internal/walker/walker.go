// Package walker implements the Traversal Walker: an explicit depth-first
// stack-based enumeration of candidate files under exclusion rules, with
// symlink-cycle detection and cooperative cancellation.
package walker

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/standardbeagle/samuraizer-go/internal/cancellation"
	"github.com/standardbeagle/samuraizer-go/internal/debug"
	"github.com/standardbeagle/samuraizer-go/internal/model"
	"github.com/standardbeagle/samuraizer-go/internal/patterns"
)

// Options configures a Walker.
type Options struct {
	Root            string
	ExcludedFolders []string
	ExcludedFiles   []string
	ExcludePatterns []string
	FollowSymlinks  bool
	Matcher         *patterns.Matcher
	Cancellation    cancellation.Token
}

// Walker produces an ordered, lazily-enumerated set of absolute file paths
// under Root, honoring exclusion rules and tracking included/excluded
// counts. It is not safe for concurrent use by multiple goroutines; the
// scheduler drives it from a single goroutine via Next.
type Walker struct {
	opts Options

	excludedFolders map[string]bool
	excludedFiles   map[string]bool

	stack       []string // directories yet to be expanded, LIFO
	pending     []string // files discovered and ready to be yielded
	visitedDirs map[string]bool

	included atomic.Uint64
	excluded atomic.Uint64

	done bool
	err  error
}

// New constructs a Walker ready to enumerate opts.Root.
func New(opts Options) *Walker {
	w := &Walker{
		opts:            opts,
		excludedFolders: toSet(opts.ExcludedFolders),
		excludedFiles:   toSet(opts.ExcludedFiles),
		visitedDirs:     make(map[string]bool),
	}
	w.stack = append(w.stack, opts.Root)
	return w
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, i := range items {
		s[i] = true
	}
	return s
}

// Root returns the directory this Walker enumerates.
func (w *Walker) Root() string {
	return w.opts.Root
}

// Counters returns a snapshot of the included/excluded tallies observed so
// far. Safe to call concurrently with Next.
func (w *Walker) Counters() model.TraversalCounters {
	return model.TraversalCounters{
		Included: w.included.Load(),
		Excluded: w.excluded.Load(),
	}
}

// Err returns the error that stopped enumeration early, if any (walker
// directory errors are logged and skipped, not surfaced here; Err is
// reserved for cancellation).
func (w *Walker) Err() error {
	return w.err
}

// Next returns the next absolute file path to process. ok is false once
// the walker is exhausted or cancelled.
func (w *Walker) Next() (path string, ok bool) {
	for {
		if w.done {
			return "", false
		}

		if len(w.pending) > 0 {
			path = w.pending[len(w.pending)-1]
			w.pending = w.pending[:len(w.pending)-1]
			return path, true
		}

		if w.opts.Cancellation.IsCancellationRequested() {
			w.done = true
			w.err = cancellation.ErrCancelled
			return "", false
		}

		if len(w.stack) == 0 {
			w.done = true
			return "", false
		}

		dir := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		w.expand(dir)
	}
}

// expand reads one directory's entries, pushing subdirectories onto the
// stack and files onto the pending queue, applying exclusion rules.
func (w *Walker) expand(dir string) {
	if w.opts.FollowSymlinks || dir == w.opts.Root {
		canonical, ok := w.canonicalize(dir)
		if !ok {
			return
		}
		if w.visitedDirs[canonical] {
			return
		}
		w.visitedDirs[canonical] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		debug.LogWalker("skipping unreadable directory %s: %v", dir, err)
		return
	}

	for _, entry := range entries {
		if w.opts.Cancellation.IsCancellationRequested() {
			return
		}

		fullPath := filepath.Join(dir, entry.Name())
		relPath := w.relativeSlash(fullPath)
		isDir := entry.IsDir()

		if !isDir && w.opts.FollowSymlinks && entry.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(fullPath); err == nil && info.IsDir() {
				isDir = true
			}
		}

		if isDir {
			if w.isExcludedDir(entry.Name(), relPath) {
				continue
			}
			w.stack = append(w.stack, fullPath)
			continue
		}

		if w.isExcludedFile(entry.Name(), relPath) {
			w.excluded.Add(1)
			continue
		}

		w.pending = append(w.pending, fullPath)
		w.included.Add(1)
	}
}

func (w *Walker) isExcludedDir(name, relPath string) bool {
	if w.excludedFolders[name] {
		return true
	}
	return w.opts.Matcher.Matches(w.opts.ExcludePatterns, name, relPath)
}

func (w *Walker) isExcludedFile(name, relPath string) bool {
	if w.excludedFiles[name] {
		return true
	}
	return w.opts.Matcher.Matches(w.opts.ExcludePatterns, name, relPath)
}

func (w *Walker) relativeSlash(path string) string {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// canonicalize resolves path's symlinks for the cycle guard. ok is false
// when resolution fails; the warning is logged here and the caller skips
// the directory.
func (w *Walker) canonicalize(path string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		debug.LogWalker("skipping unresolvable symlink directory %s: %v", path, err)
		return "", false
	}
	return resolved, true
}
