// Package hashing computes the 64-bit content hash used to validate cache
// entries. The hash is content-addressed and collision-resistant enough
// for cache validation, but is explicitly not cryptographic.
package hashing

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Algorithm is the name of the hash this package computes (64-bit xxHash).
// Cache records store the run's configured hash_algorithm option rather
// than this constant, so changing that option invalidates existing records.
const Algorithm = "xxhash"

// chunkSize is the fixed read size used while hashing, per spec §4.4.
const chunkSize = 64 * 1024

// HashFile computes the content hash of r, consuming it entirely. It
// returns the hash formatted as lowercase hex, matching the cache
// database's TEXT file_hash column. On any read error it returns false
// for ok, signaling "do not cache" to the caller.
func HashFile(r io.Reader) (hash string, ok bool) {
	h := xxhash.New()
	buf := make([]byte, chunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", false
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", false
		}
	}

	return fmt.Sprintf("%016x", h.Sum64()), true
}

// HashBytes computes the content hash of an in-memory buffer.
func HashBytes(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}
