package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
)

// HandleFunc processes one discovered file.
type HandleFunc func(ctx context.Context, path string) error

// WalkDirectory walks root, skips hidden entries if requested, and calls fn for each
// file with a supported extension. A failing file does not stop the walk; a cancelled
// ctx does.
func WalkDirectory(ctx context.Context, root string, skipHidden bool, fn HandleFunc) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("%w: root path is required", common.ErrInvalidInput)
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}
		stats.Matched++

		err := fn(ctx, path)
		results = append(results, FileResult{Path: path, Err: err})
		if err != nil {
			stats.Failed++
			return nil
		}
		stats.Succeeded++
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, err
}
