package progressivestore

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/samuraizer-go/internal/model"
)

func textEntry(parent, filename, content string) model.FileEntry {
	return model.FileEntry{
		Parent:   parent,
		Filename: filename,
		Info:     model.NewText("utf-8", content, model.Metadata{Size: uint64(len(content))}),
	}
}

func TestWriteChunkThenIterateOrdersByPath(t *testing.T) {
	s, err := Open()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteChunk([]model.FileEntry{
		textEntry("b", "z.txt", "z"),
		textEntry("a", "m.txt", "m"),
		textEntry("", "root.txt", "r"),
	}))

	var paths []string
	require.NoError(t, s.Iterate(func(o Ordered) error {
		paths = append(paths, o.Entry.Path())
		return nil
	}))

	assert.Equal(t, []string{"a/m.txt", "b/z.txt", "root.txt"}, paths)
}

func TestIteratePreSplitsPathParts(t *testing.T) {
	s, err := Open()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteChunk([]model.FileEntry{
		textEntry("x/y", "f.txt", "content"),
	}))

	var got Ordered
	require.NoError(t, s.Iterate(func(o Ordered) error {
		got = o
		return nil
	}))

	assert.Equal(t, []string{"x", "y", "f.txt"}, got.Parts)
	assert.Equal(t, "content", got.Entry.Info.Content)
}

func TestWriteChunkReplacesOnSamePath(t *testing.T) {
	s, err := Open()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteChunk([]model.FileEntry{textEntry("", "a.txt", "first")}))
	require.NoError(t, s.WriteChunk([]model.FileEntry{textEntry("", "a.txt", "second")}))

	var contents []string
	require.NoError(t, s.Iterate(func(o Ordered) error {
		contents = append(contents, o.Entry.Info.Content)
		return nil
	}))

	require.Len(t, contents, 1)
	assert.Equal(t, "second", contents[0])
}

func TestEmptyChunkIsNoOp(t *testing.T) {
	s, err := Open()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteChunk(nil))

	var count int
	require.NoError(t, s.Iterate(func(Ordered) error {
		count++
		return nil
	}))
	assert.Equal(t, 0, count)
}

func TestCloseDeletesTempFile(t *testing.T) {
	s, err := Open()
	require.NoError(t, err)

	path := s.path
	require.NoError(t, s.Close())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpenProducesExpectedFilenamePattern(t *testing.T) {
	s, err := Open()
	require.NoError(t, err)
	defer s.Close()

	base := s.path[strings.LastIndex(s.path, string(os.PathSeparator))+1:]
	assert.True(t, strings.HasPrefix(base, "samuraizer_results"))
	assert.True(t, strings.HasSuffix(base, ".db"))
}
