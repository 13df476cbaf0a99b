// Package detector defines the object detection port and its gocv-backed
// implementation. Builds without the gocv tag get a stub so the rest of the
// module compiles and tests without OpenCV installed.
package detector

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"

	"github.com/pestwatch/pestwatch/internal/errors"
)

// Detection is one object the model found in an image. Box coordinates are
// pixels in the source image.
type Detection struct {
	Label      string
	Confidence float64
	Box        image.Rectangle
}

// Detector runs object detection against an image file.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
	Close() error
}

// ErrUnavailable marks a detector that cannot run inference at all, as
// opposed to failing on one particular image. Callers keep their input and
// stop instead of discarding work.
var ErrUnavailable = errors.NewStd("detector unavailable")

// loadLabels reads the class labels file, one label per line. Blank lines are
// skipped so padded label files stay usable.
func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("opening labels file: %w", err)).
			Component("detector").
			Category(errors.CategoryLabelLoad).
			Context("path", path).
			Build()
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(fmt.Errorf("reading labels file: %w", err)).
			Component("detector").
			Category(errors.CategoryLabelLoad).
			Context("path", path).
			Build()
	}
	if len(labels) == 0 {
		return nil, errors.Newf("labels file %s is empty", path).
			Component("detector").
			Category(errors.CategoryLabelLoad).
			Build()
	}
	return labels, nil
}
