// Package cleanup removes partially downloaded directory trees in the
// background. Deletion keeps going past individual file errors: the
// supervised downloader or the user may still be touching files when a
// cancelled download is being swept away.
package cleanup

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const progressInterval = 500 * time.Millisecond

// Progress receives the running count of files deleted so far. Called
// at most twice per second.
type Progress func(filesDeleted int)

// Done receives the terminal outcome. A nil error means the root
// directory is gone.
type Done func(err error)

// Worker deletes directory trees off the caller's goroutine.
type Worker struct {
	interval time.Duration
}

func NewWorker() *Worker {
	return &Worker{interval: progressInterval}
}

// Delete removes dir and everything beneath it on a background
// goroutine and returns immediately. Outcomes are reported only through
// the callbacks; Delete itself never fails and never panics the caller.
// Either callback may be nil.
func (w *Worker) Delete(dir string, onProgress Progress, onDone Done) {
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("cleanup: panic while deleting %s: %v", dir, r)
			}
			if onDone != nil {
				onDone(err)
			}
		}()
		err = w.deleteTree(dir, onProgress)
	}()
}

func (w *Worker) deleteTree(dir string, onProgress Progress) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	var subdirs []string
	deleted := 0
	lastReport := time.Time{}

	// Pass one: files. Errors on individual files are skipped; files
	// can legitimately disappear underneath the walk.
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("cleanup: skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != dir {
				subdirs = append(subdirs, path)
			}
			return nil
		}
		if err := os.Remove(path); err != nil {
			slog.Debug("cleanup: failed to delete file", "path", path, "error", err)
			return nil
		}
		deleted++
		if onProgress != nil && time.Since(lastReport) >= w.interval {
			lastReport = time.Now()
			onProgress(deleted)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("cleanup: walk %s: %w", dir, walkErr)
	}

	if onProgress != nil {
		onProgress(deleted)
	}

	// Pass two: directories, deepest first, then the root.
	sort.Slice(subdirs, func(i, j int) bool {
		return strings.Count(subdirs[i], string(os.PathSeparator)) > strings.Count(subdirs[j], string(os.PathSeparator))
	})
	for _, sub := range subdirs {
		if err := os.Remove(sub); err != nil {
			slog.Debug("cleanup: failed to delete directory", "path", sub, "error", err)
		}
	}

	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("cleanup: delete root %s: %w", dir, err)
	}
	slog.Info("cleanup finished", "dir", dir, "files", deleted)
	return nil
}
