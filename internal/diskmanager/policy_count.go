// policy_count.go - count based retention policy for result images
package diskmanager

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pestwatch/pestwatch/internal/errors"
	"github.com/pestwatch/pestwatch/internal/logging"
)

// maxDeletions caps the number of files removed in one cleanup run.
const maxDeletions = 1000

var diskLogger *slog.Logger

// InitLogger sets up the diskmanager service logger.
func InitLogger() {
	diskLogger = logging.ForService("diskmanager")
}

// resultFile is one result image with the timestamp used for eviction order.
type resultFile struct {
	Path     string
	Modified time.Time
	statOK   bool
}

// CountBasedCleanup removes the oldest result images until at most maxCount
// remain. Files whose metadata cannot be read sort as oldest and are evicted
// first. Running under the cap is a no-op. Returns the number of deleted
// files.
func CountBasedCleanup(resultDir string, maxCount int) (int, error) {
	if diskLogger == nil {
		InitLogger()
	}

	if maxCount < 0 {
		return 0, errors.Newf("result retention cap must not be negative: %d", maxCount).
			Component("diskmanager").
			Category(errors.CategoryValidation).
			Build()
	}

	files, err := listResultFiles(resultDir)
	if err != nil {
		return 0, err
	}

	excess := len(files) - maxCount
	if excess <= 0 {
		return 0, nil
	}
	if excess > maxDeletions {
		diskLogger.Warn("capping deletions for this run",
			"excess", excess, "max_deletions", maxDeletions)
		excess = maxDeletions
	}

	// Oldest first; unreadable metadata counts as oldest.
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].statOK != files[j].statOK {
			return !files[i].statOK
		}
		return files[i].Modified.Before(files[j].Modified)
	})

	deleted := 0
	for _, file := range files[:excess] {
		if err := os.Remove(file.Path); err != nil {
			diskLogger.Error("failed to remove result image",
				"path", file.Path, "error", err)
			return deleted, errors.New(fmt.Errorf("removing result image: %w", err)).
				Component("diskmanager").
				Category(errors.CategoryDiskCleanup).
				Context("path", file.Path).
				Build()
		}
		deleted++
		diskLogger.Debug("result image evicted", "path", file.Path)
	}

	diskLogger.Info("count retention policy applied",
		"dir", resultDir, "files_deleted", deleted, "max_count", maxCount)
	return deleted, nil
}

func listResultFiles(resultDir string) ([]resultFile, error) {
	entries, err := os.ReadDir(resultDir)
	if err != nil {
		return nil, errors.New(fmt.Errorf("listing result directory: %w", err)).
			Component("diskmanager").
			Category(errors.CategoryDiskCleanup).
			Context("dir", resultDir).
			Build()
	}

	files := make([]resultFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file := resultFile{Path: filepath.Join(resultDir, entry.Name())}
		if info, err := entry.Info(); err == nil {
			file.Modified = info.ModTime()
			file.statOK = true
		}
		files = append(files, file)
	}
	return files, nil
}
