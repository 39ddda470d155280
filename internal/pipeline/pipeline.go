// Package pipeline implements the Chunk Pipeline: it drains the Traversal
// Walker through a bounded worker pool and emits {entries} chunks followed
// by exactly one {summary}, honoring cooperative cancellation throughout.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/samuraizer-go/internal/cancellation"
	"github.com/standardbeagle/samuraizer-go/internal/debug"
	"github.com/standardbeagle/samuraizer-go/internal/model"
	"github.com/standardbeagle/samuraizer-go/internal/processor"
	"github.com/standardbeagle/samuraizer-go/internal/walker"
	"github.com/standardbeagle/samuraizer-go/pkg/pathutil"
)

const (
	defaultChunkSize = 256
)

// Options configures a Pipeline run.
type Options struct {
	Threads         int
	ChunkSize       int
	MaxPendingTasks int
	HashAlgorithm   string

	// OnProgress is invoked after each harvested file, with the running
	// processed count. Panics are recovered and logged, per spec's
	// "exceptions swallowed and logged" requirement.
	OnProgress func(processedCount uint64)
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.MaxPendingTasks <= 0 {
		o.MaxPendingTasks = o.Threads * 4
		if o.ChunkSize > o.MaxPendingTasks {
			o.MaxPendingTasks = o.ChunkSize
		}
	}
	return o
}

// Pipeline turns a Walker's lazy path stream into chunked payloads using a
// fixed-size worker pool.
type Pipeline struct {
	walker    *walker.Walker
	processor *processor.Processor
	opts      Options
	token     cancellation.Token
}

// New constructs a Pipeline over w, processing each yielded path with p.
func New(w *walker.Walker, p *processor.Processor, opts Options, token cancellation.Token) *Pipeline {
	return &Pipeline{walker: w, processor: p, opts: opts.withDefaults(), token: token}
}

type taskResult struct {
	path string
	info model.FileInfo
}

// Run starts the pipeline and returns a channel of payloads: zero or more
// {entries} chunks, in emission order, followed by exactly one {summary}.
// The channel is closed after the summary is sent.
func (pl *Pipeline) Run(ctx context.Context) <-chan model.Payload {
	out := make(chan model.Payload)
	go pl.drive(ctx, out)
	return out
}

func (pl *Pipeline) drive(ctx context.Context, out chan<- model.Payload) {
	defer close(out)

	tasks := make(chan string, pl.opts.MaxPendingTasks)
	results := make(chan taskResult, pl.opts.MaxPendingTasks)

	g, gCtx := errgroup.WithContext(ctx)

	for i := 0; i < pl.opts.Threads; i++ {
		g.Go(func() error {
			for path := range tasks {
				results <- taskResult{path: path, info: pl.processor.Process(path)}
			}
			return nil
		})
	}

	// Refill: a single goroutine drives the walker (not safe for concurrent
	// use) and feeds the bounded tasks channel; the channel's capacity is
	// the pending-task cap from spec §4.7.
	g.Go(func() error {
		defer close(tasks)
		for {
			if pl.token.IsCancellationRequested() {
				return nil
			}
			path, ok := pl.walker.Next()
			if !ok {
				return nil
			}
			select {
			case tasks <- path:
			case <-gCtx.Done():
				return nil
			}
		}
	})

	go func() {
		_ = g.Wait()
		close(results)
	}()

	pl.harvest(ctx, results, out)
}

// harvest implements the scheduler's harvest/emit loop: build chunks from
// completed results, force-flushing a residual chunk and the final summary
// once the walker is exhausted and every in-flight task has drained.
func (pl *Pipeline) harvest(ctx context.Context, results <-chan taskResult, out chan<- model.Payload) {
	chunk := make([]model.FileEntry, 0, pl.opts.ChunkSize)
	var failed []model.FailedFile
	var processedCount uint64
	stoppedEarly := false

	for res := range results {
		cancelled := pl.token.IsCancellationRequested() || ctx.Err() != nil
		if cancelled {
			stoppedEarly = true
			continue // discard: result was in flight when cancellation landed
		}

		processedCount++
		if res.info.Kind == model.KindError {
			failed = append(failed, model.FailedFile{File: res.path, Error: res.info.Message})
		}

		parent, filename := pathutil.ParentAndFilename(res.path, pl.walker.Root())
		chunk = append(chunk, model.FileEntry{Parent: parent, Filename: filename, Info: res.info})

		pl.reportProgress(processedCount)

		if len(chunk) >= pl.opts.ChunkSize {
			out <- model.Payload{Entries: chunk}
			chunk = make([]model.FileEntry, 0, pl.opts.ChunkSize)
		}
	}

	if pl.token.IsCancellationRequested() || pl.walker.Err() == cancellation.ErrCancelled {
		stoppedEarly = true
	}

	if len(chunk) > 0 {
		out <- model.Payload{Entries: chunk}
	}

	counters := pl.walker.Counters()
	total := counters.Included + counters.Excluded
	var excludedPct float64
	if total > 0 {
		excludedPct = float64(counters.Excluded) / float64(total) * 100
	}

	out <- model.Payload{Summary: &model.Summary{
		TotalFiles:         total,
		IncludedFiles:      counters.Included,
		ExcludedFiles:      counters.Excluded,
		ExcludedPercentage: excludedPct,
		ProcessedFiles:     processedCount,
		FailedFiles:        failed,
		StoppedEarly:       stoppedEarly,
		HashAlgorithm:      pl.opts.HashAlgorithm,
	}}
}

func (pl *Pipeline) reportProgress(processedCount uint64) {
	if pl.opts.OnProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			debug.LogPipeline("progress callback panicked: %v", r)
		}
	}()
	pl.opts.OnProgress(processedCount)
}
