// Package backlog implements the detection pipeline core: draining the
// pending image directory through inference, annotation and persistence.
package backlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pestwatch/pestwatch/internal/annotate"
	"github.com/pestwatch/pestwatch/internal/datastore"
	"github.com/pestwatch/pestwatch/internal/detector"
	"github.com/pestwatch/pestwatch/internal/diskmanager"
	"github.com/pestwatch/pestwatch/internal/errors"
	"github.com/pestwatch/pestwatch/internal/imagestore"
	"github.com/pestwatch/pestwatch/internal/logging"
	"github.com/pestwatch/pestwatch/internal/observability"
	"github.com/pestwatch/pestwatch/internal/taxonomy"
)

const dateLayout = "2006-01-02"

// Notifier receives a best-effort signal after a drain pass completes. The
// signal carries no payload; subscribers re-fetch state.
type Notifier interface {
	NotifyChanged()
}

// Processor drains the backlog. At most one pass runs at a time; overlapping
// triggers coalesce into a single queued pass because a pass always drains
// everything pending.
type Processor struct {
	store      datastore.Interface
	images     *imagestore.Store
	detector   detector.Detector
	renderer   *annotate.Renderer
	metrics    *observability.Metrics
	notifier   Notifier
	maxResults int
	logger     *slog.Logger

	passMu  sync.Mutex
	trigger chan struct{}

	// now is swappable for tests
	now func() time.Time
}

// New creates a Processor. metrics and notifier may be nil.
func New(store datastore.Interface, images *imagestore.Store, det detector.Detector,
	renderer *annotate.Renderer, maxResults int) *Processor {
	return &Processor{
		store:      store,
		images:     images,
		detector:   det,
		renderer:   renderer,
		maxResults: maxResults,
		logger:     logging.ForService("backlog"),
		trigger:    make(chan struct{}, 1),
		now:        time.Now,
	}
}

// SetMetrics attaches the metrics collectors.
func (p *Processor) SetMetrics(m *observability.Metrics) { p.metrics = m }

// SetNotifier attaches the live update notifier.
func (p *Processor) SetNotifier(n Notifier) { p.notifier = n }

// Trigger queues a drain pass. Non-blocking: a pass already queued absorbs
// the signal.
func (p *Processor) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run consumes trigger signals until the context is cancelled. Intended to
// run on its own goroutine alongside the web server.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.trigger:
			if err := p.ProcessBacklog(ctx); err != nil {
				p.logger.Error("backlog pass failed", "error", err)
			}
		}
	}
}

// ProcessBacklog drains all currently pending images in capture order. The
// pass survives individual image failures; only store unavailability aborts
// it, leaving unprocessed pending files in place for the next trigger.
func (p *Processor) ProcessBacklog(ctx context.Context) error {
	p.passMu.Lock()
	defer p.passMu.Unlock()

	started := p.now()

	pending, err := p.images.ListPending()
	if err != nil {
		return err
	}

	var passErr error
	for _, name := range pending {
		if err := ctx.Err(); err != nil {
			passErr = err
			break
		}
		if err := p.processImage(ctx, name); err != nil {
			if errors.IsCategory(err, errors.CategoryDatabase) || errors.Is(err, detector.ErrUnavailable) {
				// Store or detector unavailability is fatal for the pass.
				// The pending file stays, so the next trigger retries it; the
				// duplicate rows a retry can produce are an accepted
				// trade-off.
				if p.metrics != nil {
					p.metrics.PassFailures.Inc()
				}
				passErr = err
				break
			}
			// Per-image failures are contained: log and continue the pass.
			p.logger.Error("skipping image for this pass", "image", name, "error", err)
		}
	}

	if p.maxResults >= 0 {
		evicted, err := diskmanager.CountBasedCleanup(p.images.ResultDir, p.maxResults)
		if err != nil {
			p.logger.Error("result retention failed", "error", err)
		} else if p.metrics != nil {
			p.metrics.ResultsEvicted.Add(float64(evicted))
		}
	}

	if p.metrics != nil {
		p.metrics.PassDuration.Observe(p.now().Sub(started).Seconds())
	}

	if passErr == nil && p.notifier != nil {
		p.notifier.NotifyChanged()
		if p.metrics != nil {
			p.metrics.BroadcastsTotal.Inc()
		}
	}

	return passErr
}

// processImage runs one pending image through the pipeline. The pending file
// is removed only after its result image and detections are durably written;
// a crash in between leaves the pending file for the next pass.
func (p *Processor) processImage(ctx context.Context, name string) error {
	path := p.images.PendingPath(name)

	found, err := p.detector.Detect(ctx, path)
	if err != nil {
		if errors.Is(err, detector.ErrUnavailable) {
			// No inference is possible at all. Keep the capture so a build
			// with a working detector can still process it.
			return err
		}
		// A failed model invocation on one image counts as zero detections:
		// the capture is discarded rather than wedging the backlog.
		p.logger.Warn("detector failed, discarding image", "image", name, "error", err)
		found = nil
	}

	if len(found) == 0 {
		if p.metrics != nil {
			p.metrics.ImagesDiscarded.Inc()
		}
		return p.images.RemovePending(name)
	}

	canvas, err := annotate.Load(path)
	if err != nil {
		return err
	}

	day := p.now().Format(dateLayout)
	boxes := make([]annotate.Box, 0, len(found))
	records := make([]datastore.Detection, 0, len(found))
	for _, obj := range found {
		category := taxonomy.Classify(obj.Label)
		boxes = append(boxes, annotate.Box{
			Rect:       obj.Box,
			Label:      obj.Label,
			Confidence: obj.Confidence,
			Category:   category,
		})
		records = append(records, datastore.Detection{
			Date:          day,
			InsectName:    obj.Label,
			Category:      string(category),
			Confidence:    obj.Confidence,
			ImageFilename: name,
		})
	}

	p.renderer.Annotate(canvas, boxes)

	resultName := imagestore.ResultNameFor(name)
	if err := annotate.Save(canvas, p.images.ResultPath(resultName)); err != nil {
		return err
	}

	// Detections are written in the order the detector emitted them.
	for i := range records {
		if err := p.store.Save(&records[i]); err != nil {
			return err
		}
		if p.metrics != nil {
			p.metrics.DetectionsTotal.WithLabelValues(records[i].Category).Inc()
		}
	}

	if err := p.images.RemovePending(name); err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.ImagesProcessed.Inc()
	}
	p.logger.Info("image processed",
		"image", name, "detections", len(records), "result", resultName)
	return nil
}
