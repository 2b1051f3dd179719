// Package ingest discovers files to extract, either by walking a directory once or by
// watching directories for new files.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/doc-extractor/constants"
)

// FileResult is the per-file outcome of a directory run.
type FileResult struct {
	Path string
	Err  error
}

// DirStats summarizes a directory run.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// Supported reports whether path has an extension some extractor handles.
func Supported(path string) bool {
	return constants.FormatFromExt(filepath.Ext(path)) != constants.FormatUnsupported
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}
