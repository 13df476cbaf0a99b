//go:build !gocv
// +build !gocv

package detector

import (
	"context"
	"fmt"

	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/errors"
)

// GoCVDetector is the stub used when the binary is built without the gocv
// tag. Construction succeeds so wiring can be exercised; inference reports
// the missing OpenCV support.
type GoCVDetector struct {
	labels []string
}

// NewGoCVDetector validates the labels file but loads no model.
func NewGoCVDetector(settings *conf.ModelSettings) (*GoCVDetector, error) {
	labels, err := loadLabels(settings.LabelsPath)
	if err != nil {
		return nil, err
	}
	return &GoCVDetector{labels: labels}, nil
}

// Detect always fails: inference requires a build with the gocv tag.
func (d *GoCVDetector) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	return nil, errors.New(fmt.Errorf("built without gocv support: %w", ErrUnavailable)).
		Component("detector").
		Category(errors.CategoryModelInit).
		Build()
}

// Close is a no-op on the stub.
func (d *GoCVDetector) Close() error {
	return nil
}
