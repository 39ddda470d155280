// Package model holds the data types produced and consumed by the
// analysis engine: file entries, the tagged FileInfo variant, cache
// records, traversal counters, and the run summary.
package model

import (
	"encoding/json"
	"time"
)

// Kind discriminates the FileInfo variants.
type Kind string

const (
	KindText     Kind = "text"
	KindBinary   Kind = "binary"
	KindImage    Kind = "image"
	KindExcluded Kind = "excluded"
	KindError    Kind = "error"
)

// ExcludedReason enumerates why the processor excluded a file.
type ExcludedReason string

const (
	ExcludedFileSize       ExcludedReason = "file_size"
	ExcludedBinaryOrImage  ExcludedReason = "binary_or_image"
	ExcludedBinaryTooLarge ExcludedReason = "binary_too_large"
)

// Metadata is attached to any non-error, non-excluded FileInfo.
type Metadata struct {
	Size        uint64     `json:"size"`
	Created     *time.Time `json:"created,omitempty"`
	Modified    time.Time  `json:"modified"`
	Permissions string     `json:"permissions"`
	Timezone    string     `json:"timezone"`
}

// FileInfo is a tagged variant; exactly one payload field is meaningful
// for a given Kind. Its wire encoding is handled entirely by
// MarshalJSON/UnmarshalJSON below (via fileInfoWire) rather than struct
// tags, so these fields carry no json tags of their own.
type FileInfo struct {
	Kind Kind

	// Text payload.
	Encoding string
	Content  string

	// Binary/Image payload.
	ContentBase64 string

	// Excluded payload.
	ExcludedReason ExcludedReason
	Size           *uint64

	// Error payload.
	Message       string
	ExceptionKind string

	*Metadata
}

// fileInfoWire is the on-the-wire shape of FileInfo. Both the Excluded
// variant's own Size and the embedded Metadata's Size serialize to the
// same "size" key; encoding/json's dominant-field rule would otherwise
// silently drop whichever sits at the deeper struct depth (Metadata's),
// so FileInfo disambiguates the two explicitly via MarshalJSON/UnmarshalJSON
// instead of relying on the embedded-field promotion.
type fileInfoWire struct {
	Kind Kind `json:"type"`

	Encoding string `json:"encoding,omitempty"`
	Content  string `json:"content,omitempty"`

	ContentBase64 string `json:"content_base64,omitempty"`

	ExcludedReason ExcludedReason `json:"reason,omitempty"`

	Message       string `json:"message,omitempty"`
	ExceptionKind string `json:"exception_kind,omitempty"`

	Size        *uint64    `json:"size,omitempty"`
	Created     *time.Time `json:"created,omitempty"`
	Modified    *time.Time `json:"modified,omitempty"`
	Permissions string     `json:"permissions,omitempty"`
	Timezone    string     `json:"timezone,omitempty"`
}

// MarshalJSON implements json.Marshaler so Metadata.Size survives encoding
// instead of being shadowed by the Excluded variant's own Size field.
func (f FileInfo) MarshalJSON() ([]byte, error) {
	w := fileInfoWire{
		Kind:           f.Kind,
		Encoding:       f.Encoding,
		Content:        f.Content,
		ContentBase64:  f.ContentBase64,
		ExcludedReason: f.ExcludedReason,
		Message:        f.Message,
		ExceptionKind:  f.ExceptionKind,
	}
	if f.Metadata != nil {
		size := f.Metadata.Size
		modified := f.Metadata.Modified
		w.Size = &size
		w.Created = f.Metadata.Created
		w.Modified = &modified
		w.Permissions = f.Metadata.Permissions
		w.Timezone = f.Metadata.Timezone
	} else {
		w.Size = f.Size
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, routing the wire "size" key
// back to Metadata.Size for Text/Binary/Image and to the Excluded
// variant's own Size for Excluded, per Kind.
func (f *FileInfo) UnmarshalJSON(data []byte) error {
	var w fileInfoWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*f = FileInfo{
		Kind:           w.Kind,
		Encoding:       w.Encoding,
		Content:        w.Content,
		ContentBase64:  w.ContentBase64,
		ExcludedReason: w.ExcludedReason,
		Message:        w.Message,
		ExceptionKind:  w.ExceptionKind,
	}

	switch w.Kind {
	case KindExcluded:
		f.Size = w.Size
	case KindText, KindBinary, KindImage:
		meta := Metadata{
			Created:     w.Created,
			Permissions: w.Permissions,
			Timezone:    w.Timezone,
		}
		if w.Size != nil {
			meta.Size = *w.Size
		}
		if w.Modified != nil {
			meta.Modified = *w.Modified
		}
		f.Metadata = &meta
	}
	return nil
}

// NewText builds a Text FileInfo.
func NewText(encoding, content string, meta Metadata) FileInfo {
	return FileInfo{Kind: KindText, Encoding: encoding, Content: content, Metadata: &meta}
}

// NewBinary builds a Binary FileInfo.
func NewBinary(contentBase64 string, meta Metadata) FileInfo {
	return FileInfo{Kind: KindBinary, ContentBase64: contentBase64, Metadata: &meta}
}

// NewImage builds an Image FileInfo (transported like Binary).
func NewImage(contentBase64 string, meta Metadata) FileInfo {
	return FileInfo{Kind: KindImage, ContentBase64: contentBase64, Metadata: &meta}
}

// NewExcluded builds an Excluded FileInfo. size is nil unless the reason
// carries a size (file_size, binary_too_large).
func NewExcluded(reason ExcludedReason, size *uint64) FileInfo {
	return FileInfo{Kind: KindExcluded, ExcludedReason: reason, Size: size}
}

// NewError builds an Error FileInfo.
func NewError(message, exceptionKind string) FileInfo {
	return FileInfo{Kind: KindError, Message: message, ExceptionKind: exceptionKind}
}

// FileEntry is one produced record.
type FileEntry struct {
	Parent   string   `json:"parent"`
	Filename string   `json:"filename"`
	Info     FileInfo `json:"info"`
}

// Path returns parent+"/"+filename, or just filename when parent is empty.
// This is the Progressive Store's ordering key.
func (e FileEntry) Path() string {
	if e.Parent == "" {
		return e.Filename
	}
	return e.Parent + "/" + e.Filename
}

// CacheRecord is the persisted unit, keyed by absolute resolved path.
type CacheRecord struct {
	FilePath      string
	ContentHash   *string
	HashAlgorithm *string
	FileInfo      FileInfo
	Size          uint64
	Mtime         float64
}

// Valid reports whether the record may be used for a file whose current
// size, mtime, and configured hash algorithm match these values.
func (r CacheRecord) Valid(size uint64, mtime float64, hashAlgorithm string) bool {
	if r.Size != size || r.Mtime != mtime {
		return false
	}
	if r.HashAlgorithm == nil {
		return hashAlgorithm == ""
	}
	return *r.HashAlgorithm == hashAlgorithm
}

// TraversalCounters is the walker's monotonic included/excluded tally.
type TraversalCounters struct {
	Included uint64
	Excluded uint64
}

// FailedFile is one row of Summary.FailedFiles.
type FailedFile struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Summary is emitted exactly once, as the final payload of a run.
type Summary struct {
	TotalFiles         uint64       `json:"total_files"`
	IncludedFiles      uint64       `json:"included_files"`
	ExcludedFiles      uint64       `json:"excluded_files"`
	ExcludedPercentage float64      `json:"excluded_percentage"`
	ProcessedFiles     uint64       `json:"processed_files"`
	FailedFiles        []FailedFile `json:"failed_files"`
	StoppedEarly       bool         `json:"stopped_early"`
	HashAlgorithm      string       `json:"hash_algorithm,omitempty"`
}

// Payload is exactly one of Entries or Summary, matching the consumer
// stream contract: zero or more {entries}, then exactly one {summary}.
type Payload struct {
	Entries []FileEntry `json:"entries,omitempty"`
	Summary *Summary    `json:"summary,omitempty"`
}
