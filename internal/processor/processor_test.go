package processor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/samuraizer-go/internal/cache"
	"github.com/standardbeagle/samuraizer-go/internal/cachestate"
	"github.com/standardbeagle/samuraizer-go/internal/model"
)

func defaultOptions() Options {
	return Options{
		MaxFileSize:     1024,
		IncludeBinary:   false,
		ImageExtensions: map[string]bool{".png": true},
		HashAlgorithm:   "xxhash",
		Encoding:        "auto",
	}
}

func TestProcessTinyTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	bus := cachestate.New()
	store, err := cache.Open(cache.CachePath(dir), 2, 0, bus)
	require.NoError(t, err)
	defer store.Close()

	p := New(defaultOptions(), store, bus)
	info := p.Process(path)

	assert.Equal(t, model.KindText, info.Kind)
	assert.Equal(t, "hello", info.Content)
	assert.Equal(t, "utf-8", info.Encoding, "plain ASCII must auto-detect as utf-8, not charset.DetermineEncoding's uncertain windows-1252 default")
	require.NotNil(t, info.Metadata)
	assert.Equal(t, uint64(5), info.Metadata.Size)
}

func TestProcessBinaryExcludedByPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0644))

	opts := defaultOptions()
	opts.IncludeBinary = false
	p := New(opts, nil, nil)

	info := p.Process(path)
	assert.Equal(t, model.KindExcluded, info.Kind)
	assert.Equal(t, model.ExcludedBinaryOrImage, info.ExcludedReason)
}

func TestProcessOverSizeTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))

	opts := defaultOptions()
	opts.MaxFileSize = 5
	p := New(opts, nil, nil)

	info := p.Process(path)
	assert.Equal(t, model.KindExcluded, info.Kind)
	assert.Equal(t, model.ExcludedFileSize, info.ExcludedReason)
	require.NotNil(t, info.Size)
	assert.Equal(t, uint64(10), *info.Size)
}

func TestProcessMissingFileReturnsStatFailedError(t *testing.T) {
	p := New(defaultOptions(), nil, nil)
	info := p.Process("/does/not/exist/at/all.txt")
	assert.Equal(t, model.KindError, info.Kind)
	assert.Equal(t, "stat_failed", info.ExceptionKind)
}

func TestProcessDirectoryReturnsIsADirectoryError(t *testing.T) {
	dir := t.TempDir()
	p := New(defaultOptions(), nil, nil)
	info := p.Process(dir)
	assert.Equal(t, model.KindError, info.Kind)
	assert.Equal(t, "is_a_directory", info.ExceptionKind)
}

func TestCacheHitSkipsRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	bus := cachestate.New()
	store, err := cache.Open(cache.CachePath(dir), 2, 0, bus)
	require.NoError(t, err)
	defer store.Close()

	p := New(defaultOptions(), store, bus)

	reads := 0
	p.OnRead(func() { reads++ })

	first := p.Process(path)
	require.True(t, store.Flush(2*time.Second))
	assert.Equal(t, 1, reads)

	second := p.Process(path)
	assert.Equal(t, 1, reads, "cache hit must not read file content again")
	assert.Equal(t, first, second)
}

func TestProcessRespectsForcedEncoding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain ascii"), 0644))

	opts := defaultOptions()
	opts.Encoding = "utf-8"
	p := New(opts, nil, nil)

	info := p.Process(path)
	assert.Equal(t, model.KindText, info.Kind)
	assert.Equal(t, "plain ascii", info.Content)
}

func TestProcessBoundarySizeEqualsMaxIsIncluded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exact.txt")
	content := []byte("0123456789")
	require.NoError(t, os.WriteFile(path, content, 0644))

	opts := defaultOptions()
	opts.MaxFileSize = int64(len(content))
	p := New(opts, nil, nil)

	info := p.Process(path)
	assert.Equal(t, model.KindText, info.Kind)
}
