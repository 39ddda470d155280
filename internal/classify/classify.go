// Package classify determines whether file content is binary or image,
// combining a fast extension check with magic-number content sniffing.
// Adapted from standardbeagle-lci's binary detector for the spec's
// narrower is_binary/is_image split.
package classify

import (
	"bytes"
	"path/filepath"
	"strings"
)

// magicCheckBytes is how many leading bytes are inspected for binary
// signatures and the null-byte/non-printable heuristic.
const magicCheckBytes = 512

// knownBinaryExtensions are extensions that are binary regardless of
// content (fonts, archives, executables, media, compiled documents).
var knownBinaryExtensions = map[string]bool{
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".7z": true, ".rar": true, ".jar": true, ".war": true, ".ear": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".obj": true, ".bin": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".wav": true, ".flac": true, ".ogg": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
	".pyc": true, ".pyo": true, ".class": true, ".pickle": true, ".pkl": true,
}

// IsImageExtension reports whether path's extension (including the leading
// dot, any case) is in the configured lowercase image-extension set.
func IsImageExtension(path string, imageExtensions map[string]bool) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	return imageExtensions[ext]
}

// IsBinaryByExtension reports whether path's extension is known-binary,
// without touching file content. Minified text assets (.min.js, .min.css)
// and source maps are explicitly text.
func IsBinaryByExtension(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".min.js") || strings.HasSuffix(lower, ".min.css") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return knownBinaryExtensions[ext]
}

// IsBinaryContent inspects the leading bytes of content for known binary
// signatures, falling back to a null-byte / non-printable-ratio heuristic.
func IsBinaryContent(content []byte) bool {
	if len(content) == 0 {
		return false
	}

	checkLen := magicCheckBytes
	if len(content) < checkLen {
		checkLen = len(content)
	}
	sample := content[:checkLen]

	signatures := [][]byte{
		{0x1F, 0x8B}, // gzip
		{0x50, 0x4B, 0x03, 0x04}, {0x50, 0x4B, 0x05, 0x06}, // zip
		{0x89, 0x50, 0x4E, 0x47}, // png
		{0xFF, 0xD8, 0xFF},       // jpeg
		{0x47, 0x49, 0x46, 0x38}, // gif
		{0x25, 0x50, 0x44, 0x46}, // pdf
		{0x7F, 0x45, 0x4C, 0x46}, // elf
		{0x4D, 0x5A},             // dos/windows exe
		{0xCA, 0xFE, 0xBA, 0xBE}, // mach-o
		{0x77, 0x4F, 0x46, 0x46}, {0x77, 0x4F, 0x46, 0x32}, // woff/woff2
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(sample, sig) {
			return true
		}
	}

	var nullBytes, nonPrintable int
	for _, b := range sample {
		if b == 0 {
			nullBytes++
		}
		if b < 0x20 && b != 0x09 && b != 0x0A && b != 0x0D {
			nonPrintable++
		}
	}
	if nullBytes > len(sample)/100 {
		return true
	}
	if nonPrintable > len(sample)*30/100 {
		return true
	}
	return false
}

// IsBinary combines extension and content checks: extension wins fast,
// content sniffing covers unknown or ambiguous extensions.
func IsBinary(path string, content []byte) bool {
	if IsBinaryByExtension(path) {
		return true
	}
	return IsBinaryContent(content)
}
