// Package processor implements the File Processor: stat, cache lookup,
// hash, classify, and decode a single path into a model.FileInfo.
// Control flow is ported from original_source's file_processor.py.
package processor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/standardbeagle/samuraizer-go/internal/cache"
	"github.com/standardbeagle/samuraizer-go/internal/cachestate"
	"github.com/standardbeagle/samuraizer-go/internal/classify"
	"github.com/standardbeagle/samuraizer-go/internal/debug"
	lcierrors "github.com/standardbeagle/samuraizer-go/internal/errors"
	"github.com/standardbeagle/samuraizer-go/internal/hashing"
	"github.com/standardbeagle/samuraizer-go/internal/model"
)

// Options configures a Processor, mirroring the run(options) keys that
// affect per-file handling.
type Options struct {
	MaxFileSize     int64
	IncludeBinary   bool
	ImageExtensions map[string]bool
	HashAlgorithm   string // "" disables hashing and cache lookups/writes
	Encoding        string // "" or "auto" triggers charset detection
}

// Processor turns an absolute path into a model.FileInfo.
type Processor struct {
	opts  Options
	cache *cache.Store
	bus   *cachestate.Bus

	// readCount is incremented each time file content is actually read
	// from disk (not served from cache); tests use it to verify cache
	// hits short-circuit I/O, per spec's round-trip property.
	readCount func()
}

// New constructs a Processor. cacheStore and bus may both be nil to run
// with caching disabled entirely.
func New(opts Options, cacheStore *cache.Store, bus *cachestate.Bus) *Processor {
	return &Processor{opts: opts, cache: cacheStore, bus: bus}
}

// OnRead installs a hook invoked every time file content is read from
// disk; used by tests to assert cache hits skip I/O.
func (p *Processor) OnRead(fn func()) {
	p.readCount = fn
}

func (p *Processor) countRead() {
	if p.readCount != nil {
		p.readCount()
	}
}

func (p *Processor) cacheEnabled() bool {
	return p.opts.HashAlgorithm != "" && p.cache != nil && (p.bus == nil || !p.bus.Disabled())
}

// Process runs the full File Processor contract against absPath,
// returning the resulting FileInfo. It never returns an error: failures
// are captured into model.FileInfo of kind error, per spec §7.
func (p *Processor) Process(absPath string) model.FileInfo {
	info, err := os.Stat(absPath)
	if err != nil {
		fe := lcierrors.NewStatFailed(absPath, err)
		return model.NewError(fe.Error(), string(fe.Kind))
	}
	if info.IsDir() {
		fe := lcierrors.NewIsADirectory(absPath)
		return model.NewError(fe.Error(), string(fe.Kind))
	}

	size := uint64(info.Size())
	mtime := float64(info.ModTime().UnixNano()) / 1e9

	if int64(size) > p.opts.MaxFileSize {
		sz := size
		return model.NewExcluded(model.ExcludedFileSize, &sz)
	}

	if p.cacheEnabled() {
		if rec, ok := p.cache.Get(absPath); ok && rec.Valid(size, mtime, p.opts.HashAlgorithm) {
			return rec.FileInfo
		}
	}

	content, err := os.ReadFile(absPath)
	p.countRead()
	if err != nil {
		fe := lcierrors.NewFileError("read", absPath, err)
		return model.NewError(fe.Error(), string(fe.Kind))
	}

	var contentHash string
	hashOK := false
	if p.opts.HashAlgorithm != "" {
		contentHash, hashOK = hashing.HashFile(bytes.NewReader(content))
	}

	isImage := classify.IsImageExtension(absPath, p.opts.ImageExtensions)
	isBinary := classify.IsBinary(absPath, content)

	if (isBinary || isImage) && !p.opts.IncludeBinary {
		return model.NewExcluded(model.ExcludedBinaryOrImage, nil)
	}

	meta := p.buildMetadata(size, info)

	var result model.FileInfo
	if isBinary || isImage {
		if size > uint64(p.opts.MaxFileSize) {
			sz := size
			result = model.NewExcluded(model.ExcludedBinaryTooLarge, &sz)
		} else {
			b64 := base64.StdEncoding.EncodeToString(content)
			if isImage {
				result = model.NewImage(b64, meta)
			} else {
				result = model.NewBinary(b64, meta)
			}
		}
	} else {
		encodingName, text := p.decodeText(content)
		result = model.NewText(encodingName, text, meta)
	}

	if p.cacheEnabled() && hashOK && result.Kind != model.KindError {
		algo := p.opts.HashAlgorithm
		p.cache.Put(model.CacheRecord{
			FilePath:      absPath,
			ContentHash:   &contentHash,
			HashAlgorithm: &algo,
			FileInfo:      result,
			Size:          size,
			Mtime:         mtime,
		})
	}

	return result
}

func (p *Processor) buildMetadata(size uint64, info os.FileInfo) model.Metadata {
	return model.Metadata{
		Size:        size,
		Modified:    info.ModTime().UTC(),
		Permissions: fmt.Sprintf("%04o", info.Mode().Perm()),
		Timezone:    "UTC",
	}
}

// decodeText resolves the text encoding (forced or auto-detected) and
// returns the encoding name together with the decoded string. Detection
// or decode failures fall back to UTF-8 with replacement characters.
func (p *Processor) decodeText(content []byte) (encodingName string, text string) {
	forced := p.opts.Encoding
	if forced != "" && !strings.EqualFold(forced, "auto") {
		if enc, name, ok := charset.Lookup(forced); ok {
			decoded, err := enc.NewDecoder().Bytes(content)
			if err == nil {
				return name, string(decoded)
			}
		}
		debug.LogProcessor("forced encoding %q unusable, falling back to utf-8 replacement", forced)
		return "utf-8", toValidUTF8(content)
	}

	// DetermineEncoding falls back to charmap.Windows1252 with certain=false
	// when it finds no BOM or other positive signal — it never detects
	// UTF-8 without a BOM. Treat that uncertain default as detection
	// failure (spec: detection failure falls back to UTF-8) rather than
	// trusting it, or plain ASCII/UTF-8 text would be mislabeled
	// "windows-1252".
	enc, name, certain := charset.DetermineEncoding(content, "")
	if certain {
		decoded, err := enc.NewDecoder().Bytes(content)
		if err == nil {
			return name, string(decoded)
		}
	}
	return "utf-8", toValidUTF8(content)
}

func toValidUTF8(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), string(utf8.RuneError))
}
