// Package annotate draws detection boxes and labels onto result images.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/errors"
	"github.com/pestwatch/pestwatch/internal/logging"
	"github.com/pestwatch/pestwatch/internal/taxonomy"
)

const boxBorderWidth = 3

var (
	labelTextColor       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelBackgroundColor = color.RGBA{R: 0, G: 0, B: 0, A: 180}
)

// Box is one annotation to draw: a detection joined with its category.
type Box struct {
	Rect       image.Rectangle
	Label      string
	Confidence float64
	Category   taxonomy.Category
}

// Renderer draws annotations with a configured font face. Construction never
// fails: when the scalable font cannot be loaded the renderer degrades to the
// built-in bitmap face.
type Renderer struct {
	face     font.Face
	scalable bool
	logger   *slog.Logger
}

// NewRenderer builds a renderer from the annotation settings.
func NewRenderer(settings *conf.AnnotationSettings) *Renderer {
	logger := logging.ForService("annotate")

	face, err := loadFace(settings)
	if err != nil {
		logger.Warn("scalable font unavailable, falling back to bitmap labels",
			"font_path", settings.FontPath, "error", err)
		return &Renderer{face: basicfont.Face7x13, scalable: false, logger: logger}
	}
	return &Renderer{face: face, scalable: true, logger: logger}
}

func loadFace(settings *conf.AnnotationSettings) (font.Face, error) {
	if settings.FontPath == "" {
		return nil, fmt.Errorf("no font path configured")
	}
	data, err := os.ReadFile(settings.FontPath)
	if err != nil {
		return nil, fmt.Errorf("reading font file: %w", err)
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font file: %w", err)
	}
	size := settings.FontSize
	if size <= 0 {
		size = 18
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size: size,
		DPI:  72,
	})
	if err != nil {
		return nil, fmt.Errorf("creating font face: %w", err)
	}
	return face, nil
}

// Load decodes an image file into a drawable RGBA canvas.
func Load(path string) (*image.RGBA, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.New(fmt.Errorf("decoding image: %w", err)).
			Component("annotate").
			Category(errors.CategoryImageDecode).
			Context("path", path).
			Build()
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)
	return canvas, nil
}

// Save encodes the annotated canvas to the given path; the format follows
// the file extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.New(fmt.Errorf("encoding result image: %w", err)).
			Component("annotate").
			Category(errors.CategoryImageEncode).
			Context("path", path).
			Build()
	}
	return nil
}

// Annotate draws every box onto the canvas. A box that cannot be drawn is
// logged and skipped; annotation never fails the caller.
func (r *Renderer) Annotate(canvas *image.RGBA, boxes []Box) {
	for i := range boxes {
		r.drawBox(canvas, &boxes[i])
	}
}

func (r *Renderer) drawBox(canvas *image.RGBA, box *Box) {
	rect := box.Rect.Intersect(canvas.Bounds())
	if rect.Empty() {
		r.logger.Warn("skipping box outside image bounds",
			"label", box.Label, "box", box.Rect.String())
		return
	}

	outline := box.Category.Color()
	drawRectangle(canvas, rect, outline, boxBorderWidth)

	label := fmt.Sprintf("%s %.2f (%s)", box.Label, box.Confidence, box.Category)
	r.drawLabel(canvas, rect, label)
}

// drawRectangle draws an unfilled rectangle of the given border width.
func drawRectangle(canvas *image.RGBA, rect image.Rectangle, col color.RGBA, width int) {
	bounds := canvas.Bounds()
	for w := 0; w < width; w++ {
		inner := rect.Inset(w)
		if inner.Empty() {
			return
		}
		for x := inner.Min.X; x < inner.Max.X; x++ {
			setIfInside(canvas, bounds, x, inner.Min.Y, col)
			setIfInside(canvas, bounds, x, inner.Max.Y-1, col)
		}
		for y := inner.Min.Y; y < inner.Max.Y; y++ {
			setIfInside(canvas, bounds, inner.Min.X, y, col)
			setIfInside(canvas, bounds, inner.Max.X-1, y, col)
		}
	}
}

func setIfInside(canvas *image.RGBA, bounds image.Rectangle, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(bounds) {
		canvas.Set(x, y, col)
	}
}

// drawLabel renders the label text above the box. With a scalable face the
// text sits on a filled background for legibility; the bitmap fallback draws
// plain text.
func (r *Renderer) drawLabel(canvas *image.RGBA, rect image.Rectangle, label string) {
	metrics := r.face.Metrics()
	textWidth := font.MeasureString(r.face, label).Ceil()

	// Above the box, clamped into the image when the box touches the top.
	baselineY := rect.Min.Y - metrics.Descent.Ceil() - 2
	if baselineY-metrics.Ascent.Ceil() < canvas.Bounds().Min.Y {
		baselineY = rect.Min.Y + metrics.Ascent.Ceil() + 2
	}

	if r.scalable {
		bg := image.Rect(
			rect.Min.X, baselineY-metrics.Ascent.Ceil()-1,
			rect.Min.X+textWidth+4, baselineY+metrics.Descent.Ceil()+1,
		).Intersect(canvas.Bounds())
		draw.Draw(canvas, bg, image.NewUniform(labelBackgroundColor), image.Point{}, draw.Over)
	}

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(labelTextColor),
		Face: r.face,
		Dot:  fixed.Point26_6{X: fixed.I(rect.Min.X + 2), Y: fixed.I(baselineY)},
	}
	drawer.DrawString(label)
}
