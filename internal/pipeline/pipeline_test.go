package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/samuraizer-go/internal/cancellation"
	"github.com/standardbeagle/samuraizer-go/internal/model"
	"github.com/standardbeagle/samuraizer-go/internal/patterns"
	"github.com/standardbeagle/samuraizer-go/internal/processor"
	"github.com/standardbeagle/samuraizer-go/internal/walker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func collectPayloads(t *testing.T, ch <-chan model.Payload, timeout time.Duration) []model.Payload {
	t.Helper()
	var payloads []model.Payload
	deadline := time.After(timeout)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return payloads
			}
			payloads = append(payloads, p)
		case <-deadline:
			t.Fatal("timed out waiting for pipeline payloads")
		}
	}
}

func newTestPipeline(t *testing.T, root string, opts Options) (*Pipeline, *cancellation.Source) {
	t.Helper()
	src := cancellation.NewSource()
	w := walker.New(walker.Options{
		Root:    root,
		Matcher: patterns.NewMatcher(),
	})
	p := processor.New(processor.Options{
		MaxFileSize:     1 << 20,
		ImageExtensions: map[string]bool{},
		HashAlgorithm:   "",
		Encoding:        "auto",
	}, nil, nil)
	return New(w, p, opts, src.Token()), src
}

func TestPipelineEmitsEntriesThenOneSummary(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f"+string(rune('a'+i))+".txt"), []byte("x"), 0644))
	}

	pl, _ := newTestPipeline(t, dir, Options{Threads: 2, ChunkSize: 10})
	payloads := collectPayloads(t, pl.Run(context.Background()), 5*time.Second)

	require.NotEmpty(t, payloads)
	last := payloads[len(payloads)-1]
	require.NotNil(t, last.Summary)
	for _, p := range payloads[:len(payloads)-1] {
		assert.Nil(t, p.Summary)
		assert.NotNil(t, p.Entries)
	}

	assert.Equal(t, uint64(5), last.Summary.ProcessedFiles)
	assert.False(t, last.Summary.StoppedEarly)
}

func TestPipelineForceFlushesResidualChunk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.txt"), []byte("x"), 0644))

	pl, _ := newTestPipeline(t, dir, Options{Threads: 1, ChunkSize: 256})
	payloads := collectPayloads(t, pl.Run(context.Background()), 5*time.Second)

	require.Len(t, payloads, 2)
	require.Len(t, payloads[0].Entries, 1)
	require.NotNil(t, payloads[1].Summary)
}

func TestPipelineChunksAtChunkSize(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f"+string(rune('a'+i))+".txt"), []byte("x"), 0644))
	}

	pl, _ := newTestPipeline(t, dir, Options{Threads: 2, ChunkSize: 2})
	payloads := collectPayloads(t, pl.Run(context.Background()), 5*time.Second)

	entryChunks := payloads[:len(payloads)-1]
	require.Len(t, entryChunks, 3)
	for _, c := range entryChunks {
		assert.Len(t, c.Entries, 2)
	}
}

func TestPipelineCompletesWhenFileVanishesBeforeRun(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.txt"), []byte("x"), 0644))

	// Create then remove a file after the pipeline is constructed.
	ghost := filepath.Join(dir, "ghost.txt")
	require.NoError(t, os.WriteFile(ghost, []byte("x"), 0644))

	pl, _ := newTestPipeline(t, dir, Options{Threads: 1, ChunkSize: 256})
	// The walker reads directories lazily, only once Run starts pulling
	// paths, so it never lists the removed file; this test asserts the run
	// still completes with a summary.
	require.NoError(t, os.Remove(ghost))

	payloads := collectPayloads(t, pl.Run(context.Background()), 5*time.Second)
	last := payloads[len(payloads)-1]
	require.NotNil(t, last.Summary)
}

func TestPipelineProgressCallbackPanicIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644))

	calls := 0
	opts := Options{Threads: 1, ChunkSize: 256, OnProgress: func(uint64) {
		calls++
		panic("boom")
	}}
	pl, _ := newTestPipeline(t, dir, opts)

	var payloads []model.Payload
	assert.NotPanics(t, func() {
		payloads = collectPayloads(t, pl.Run(context.Background()), 5*time.Second)
	})
	assert.Equal(t, 1, calls)
	require.NotNil(t, payloads[len(payloads)-1].Summary)
}

func TestPipelineCancellationStopsEarly(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 50; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f"+string(rune('a'+i%26))+string(rune('0'+i/26))+".txt"), []byte("x"), 0644))
	}

	pl, src := newTestPipeline(t, dir, Options{Threads: 1, ChunkSize: 256})
	src.Cancel()

	payloads := collectPayloads(t, pl.Run(context.Background()), 5*time.Second)
	last := payloads[len(payloads)-1]
	require.NotNil(t, last.Summary)
	assert.True(t, last.Summary.StoppedEarly)
}
