//go:build gocv
// +build gocv

package detector

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/errors"
)

// GoCVDetector runs an ONNX object detection model through the OpenCV DNN
// module. The model is expected to emit YOLO-style rows:
// cx, cy, w, h, objectness, per-class scores.
type GoCVDetector struct {
	mu         sync.Mutex // DNN forward passes are not reentrant
	net        gocv.Net
	labels     []string
	inputSize  int
	confidence float32
	nms        float32
}

// NewGoCVDetector loads the model and labels configured in settings.
func NewGoCVDetector(settings *conf.ModelSettings) (*GoCVDetector, error) {
	labels, err := loadLabels(settings.LabelsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(settings.Path)
	if net.Empty() {
		return nil, errors.Newf("failed to load detection model from %s", settings.Path).
			Component("detector").
			Category(errors.CategoryModelLoad).
			Build()
	}

	return &GoCVDetector{
		net:        net,
		labels:     labels,
		inputSize:  settings.InputSize,
		confidence: float32(settings.Confidence),
		nms:        float32(settings.NMS),
	}, nil
}

// Detect runs inference against the image at imagePath and returns the boxes
// that survive the confidence gate and non-maximum suppression.
func (d *GoCVDetector) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return nil, errors.Newf("failed to decode image %s", imagePath).
			Component("detector").
			Category(errors.CategoryImageDecode).
			Build()
	}
	defer img.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(img, 1.0/255.0,
		image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	return d.decodeOutput(&output, img.Cols(), img.Rows())
}

// decodeOutput converts the raw network output to pixel-space detections.
func (d *GoCVDetector) decodeOutput(output *gocv.Mat, imgWidth, imgHeight int) ([]Detection, error) {
	dims := output.Size()
	if len(dims) < 3 {
		return nil, errors.Newf("unexpected model output shape %v", dims).
			Component("detector").
			Category(errors.CategoryInference).
			Build()
	}
	rows, cols := dims[1], dims[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading model output: %w", err)).
			Component("detector").
			Category(errors.CategoryInference).
			Build()
	}

	// Boxes come out relative to the network input square; scale back to the
	// source image.
	scaleX := float32(imgWidth) / float32(d.inputSize)
	scaleY := float32(imgHeight) / float32(d.inputSize)

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		objectness := row[4]
		if objectness < d.confidence {
			continue
		}

		classID := 0
		best := float32(0)
		for c := 5; c < cols; c++ {
			if row[c] > best {
				best = row[c]
				classID = c - 5
			}
		}
		score := objectness * best
		if score < d.confidence {
			continue
		}

		cx, cy, w, h := row[0]*scaleX, row[1]*scaleY, row[2]*scaleX, row[3]*scaleY
		box := image.Rect(
			int(cx-w/2), int(cy-h/2),
			int(cx+w/2), int(cy+h/2),
		).Intersect(image.Rect(0, 0, imgWidth, imgHeight))

		boxes = append(boxes, box)
		scores = append(scores, score)
		classIDs = append(classIDs, classID)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, scores, d.confidence, d.nms)

	detections := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		label := "unknown"
		if classIDs[idx] < len(d.labels) {
			label = d.labels[classIDs[idx]]
		}
		detections = append(detections, Detection{
			Label:      label,
			Confidence: float64(scores[idx]),
			Box:        boxes[idx],
		})
	}
	return detections, nil
}

// Close releases the network.
func (d *GoCVDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
