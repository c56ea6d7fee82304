package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"nwbconv/internal/logging"
)

// SortedSuffix marks directories created by the spike sorter wrapper.
const SortedSuffix = "_sorted"

// SortedDir is one sorter output directory found on disk.
type SortedDir struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// Failure records a directory that could not be removed.
type Failure struct {
	Path string
	Err  error
}

// CleanOptions tunes CleanStale.
type CleanOptions struct {
	OlderThan time.Duration
	DryRun    bool
	Logger    *slog.Logger
}

// CleanResult lists what a cleanup pass removed (or would remove, for a dry run).
type CleanResult struct {
	Removed  []SortedDir
	Failures []Failure
}

// FreedBytes totals the size of the removed directories.
func (r CleanResult) FreedBytes() int64 {
	var n int64
	for _, d := range r.Removed {
		n += d.Size
	}
	return n
}

// ListSorted returns the *_sorted directories directly under root, oldest
// first. An empty or missing root yields nothing.
func ListSorted(root string) ([]SortedDir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var found []SortedDir
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), SortedSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		p := filepath.Join(root, entry.Name())
		found = append(found, SortedDir{Name: entry.Name(), Path: p, ModTime: info.ModTime(), Size: treeSize(p)})
	}
	slices.SortFunc(found, func(a, b SortedDir) int { return a.ModTime.Compare(b.ModTime) })
	return found, nil
}

// CleanStale deletes sorter output under root whose modification time is
// older than opts.OlderThan.
func CleanStale(ctx context.Context, root string, opts CleanOptions) CleanResult {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	var res CleanResult
	dirs, err := ListSorted(root)
	if err != nil {
		res.Failures = append(res.Failures, Failure{Path: root, Err: err})
		return res
	}

	cutoff := time.Now().Add(-opts.OlderThan)
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, Failure{Path: d.Path, Err: err})
			break
		}
		if !d.ModTime.Before(cutoff) {
			continue
		}
		if !opts.DryRun {
			if err := os.RemoveAll(d.Path); err != nil {
				res.Failures = append(res.Failures, Failure{Path: d.Path, Err: err})
				logging.WarnWithContext(logger, "failed to remove sorter output directory", "sorted_cleanup_failed",
					logging.String("path", d.Path),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
					logging.Error(err),
				)
				continue
			}
			logger.Info("removed sorter output directory",
				logging.String("path", d.Path),
				logging.Duration("age", time.Since(d.ModTime).Round(time.Second)),
				logging.Size("size", d.Size),
			)
		}
		res.Removed = append(res.Removed, d)
	}
	return res
}

// treeSize sums regular file sizes below dir, skipping unreadable entries.
func treeSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
