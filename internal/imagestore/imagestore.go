// Package imagestore owns the pending and result image directories and the
// filename contract that links them.
//
// Pending filenames carry a fixed-width capture timestamp token so that
// lexical sort order equals capture order:
//
//	YYYYMMDD_HHMMSS_ffffff_xxxxxxxx.jpg
//
// ffffff is the microsecond fraction and xxxxxxxx is a random hex suffix, so
// two captures landing within the same microsecond still get distinct names.
// Result filenames are the pending filename with the "result_" marker prefix,
// which keeps the join between detections and result images reversible.
package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pestwatch/pestwatch/internal/errors"
)

// ResultPrefix is the marker prepended to a pending filename to form the
// corresponding result filename.
const ResultPrefix = "result_"

const pendingTimeFormat = "20060102_150405"

// Store manages the two image directories.
type Store struct {
	BacklogDir string
	ResultDir  string
}

// New creates a Store and ensures both directories exist.
func New(backlogDir, resultDir string) (*Store, error) {
	for _, dir := range []string{backlogDir, resultDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(fmt.Errorf("creating image directory %s: %w", dir, err)).
				Component("imagestore").
				Category(errors.CategoryFileIO).
				Build()
		}
	}
	return &Store{BacklogDir: backlogDir, ResultDir: resultDir}, nil
}

// NewPendingName generates a pending filename for a capture received at the
// given instant.
func NewPendingName(now time.Time, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%06d_%s%s",
		now.Format(pendingTimeFormat), now.Nanosecond()/1000, suffix, ext)
}

// ResultNameFor returns the result filename for a pending filename.
func ResultNameFor(pendingName string) string {
	return ResultPrefix + pendingName
}

// OriginalNameFor reverses ResultNameFor. The second return value is false
// when the name does not carry the result marker.
func OriginalNameFor(resultName string) (string, bool) {
	original := strings.TrimPrefix(resultName, ResultPrefix)
	return original, original != resultName
}

// WritePending stores raw capture bytes as a new pending image and returns
// the generated filename.
func (s *Store) WritePending(data []byte, now time.Time) (string, error) {
	name := NewPendingName(now, ".jpg")
	path := filepath.Join(s.BacklogDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.New(fmt.Errorf("writing pending image: %w", err)).
			Component("imagestore").
			Category(errors.CategoryFileIO).
			Context("file", name).
			Build()
	}
	return name, nil
}

// ListPending returns the pending filenames in lexical order, which by the
// naming contract is capture order.
func (s *Store) ListPending() ([]string, error) {
	return listDir(s.BacklogDir)
}

// ListResults returns the result filenames in lexical order.
func (s *Store) ListResults() ([]string, error) {
	return listDir(s.ResultDir)
}

// PendingPath returns the absolute path of a pending image.
func (s *Store) PendingPath(name string) string {
	return filepath.Join(s.BacklogDir, name)
}

// ResultPath returns the absolute path of a result image.
func (s *Store) ResultPath(name string) string {
	return filepath.Join(s.ResultDir, name)
}

// RemovePending deletes a pending image.
func (s *Store) RemovePending(name string) error {
	if err := os.Remove(filepath.Join(s.BacklogDir, name)); err != nil {
		return errors.New(fmt.Errorf("removing pending image: %w", err)).
			Component("imagestore").
			Category(errors.CategoryFileIO).
			Context("file", name).
			Build()
	}
	return nil
}

// PurgeAll empties both directories. Detection rows are intentionally left
// untouched: history outlives the image files.
func (s *Store) PurgeAll() error {
	var errs []error
	for _, dir := range []string{s.BacklogDir, s.ResultDir} {
		names, err := listDir(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, name := range names {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				errs = append(errs, fmt.Errorf("removing %s: %w", name, err))
			}
		}
	}
	if len(errs) > 0 {
		return errors.New(errors.Join(errs...)).
			Component("imagestore").
			Category(errors.CategoryFileIO).
			Build()
	}
	return nil
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.New(fmt.Errorf("listing %s: %w", dir, err)).
			Component("imagestore").
			Category(errors.CategoryFileIO).
			Build()
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
