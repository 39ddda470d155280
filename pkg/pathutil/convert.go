// Package pathutil converts between absolute and relative paths.
//
// The engine walks the filesystem using absolute paths internally, for
// consistency and to avoid ambiguity, but every FileEntry emitted on the
// stream carries a parent path relative to the scan root. This package is
// the conversion layer between the two representations.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/project/src/main.go", "/home/user/project") → "src/main.go"
//   - ToRelative("/other/location/file.go", "/home/user/project") → "/other/location/file.go" (outside root)
//   - ToRelative("src/main.go", "/home/user/project") → "src/main.go" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}

	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}

// ParentAndFilename splits an absolute file path into the FileEntry
// (parent, filename) pair: parent is the containing directory's path
// relative to rootDir using forward slashes, or "" for files directly
// under rootDir; filename is the base name.
func ParentAndFilename(absPath, rootDir string) (parent, filename string) {
	filename = filepath.Base(absPath)
	relDir := ToRelative(filepath.Dir(absPath), rootDir)
	if relDir == "." {
		return "", filename
	}
	return filepath.ToSlash(relDir), filename
}
