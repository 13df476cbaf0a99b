package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pestwatch/pestwatch/internal/analytics"
	"github.com/pestwatch/pestwatch/internal/camera"
	"github.com/pestwatch/pestwatch/internal/datastore"
	"github.com/pestwatch/pestwatch/internal/imagestore"
)

// maxUploadBytes bounds a single camera capture upload.
const maxUploadBytes = 32 << 20

// ingestResponse is returned after a capture is accepted.
type ingestResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

// snapshotResponse is the composite read model for dashboard loads and live
// polls.
type snapshotResponse struct {
	BacklogImages   []string                         `json:"backlog_images"`
	ResultImages    []string                         `json:"result_images"`
	Predictions     map[string][]datastore.Detection `json:"predictions"`
	AnalyticsData   *analytics.ChartData             `json:"analytics_data"`
	DailyCounts     []datastore.DailyCount           `json:"daily_counts"`
	TotalDetections int64                            `json:"total_detections"`
}

// IngestImage accepts raw capture bytes, stores them as a pending image and
// queues a processing pass. The pass itself completes asynchronously; live
// clients hear about it through the stream.
func (c *Controller) IngestImage(ctx echo.Context) error {
	data, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxUploadBytes))
	if err != nil {
		return c.jsonError(ctx, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err))
	}
	if len(data) == 0 {
		return c.jsonError(ctx, http.StatusBadRequest, fmt.Errorf("empty upload"))
	}

	filename, err := c.Images.WritePending(data, time.Now())
	if err != nil {
		return c.jsonError(ctx, http.StatusInternalServerError, err)
	}

	if c.metrics != nil {
		c.metrics.IngestTotal.Inc()
	}
	c.logger.Info("capture received", "filename", filename, "bytes", len(data))

	c.Processor.Trigger()

	return ctx.JSON(http.StatusOK, ingestResponse{Status: "ok", Filename: filename})
}

// GetSnapshot returns the full dashboard read model. Partial upstream
// failures degrade the affected section instead of failing the request.
func (c *Controller) GetSnapshot(ctx echo.Context) error {
	snapshot := snapshotResponse{
		Predictions: make(map[string][]datastore.Detection),
	}

	pending, err := c.Images.ListPending()
	if err != nil {
		c.logger.Warn("snapshot: listing backlog failed", "error", err)
	}
	snapshot.BacklogImages = pending

	results, err := c.Images.ListResults()
	if err != nil {
		c.logger.Warn("snapshot: listing results failed", "error", err)
	}
	snapshot.ResultImages = results

	for _, resultName := range results {
		original, ok := imagestore.OriginalNameFor(resultName)
		if !ok {
			continue
		}
		detections, err := c.DS.GetDetectionsByImage(original)
		if err != nil {
			c.logger.Warn("snapshot: prediction join failed",
				"result", resultName, "error", err)
			continue
		}
		snapshot.Predictions[resultName] = detections
	}

	chart, err := analytics.BuildChart(c.DS, analytics.DefaultWindowDays, time.Now())
	if err != nil {
		c.logger.Warn("snapshot: chart build failed", "error", err)
	}
	snapshot.AnalyticsData = chart

	startDate := time.Now().AddDate(0, 0, -analytics.DefaultWindowDays).Format("2006-01-02")
	if counts, err := c.DS.GetDailyCounts(startDate); err == nil {
		snapshot.DailyCounts = counts
	} else {
		c.logger.Warn("snapshot: daily counts failed", "error", err)
	}

	if count, err := c.DS.CountDetections(); err == nil {
		snapshot.TotalDetections = count
	}

	return ctx.JSON(http.StatusOK, snapshot)
}

// PurgeImages deletes all pending and result images. Detection history is
// intentionally preserved.
func (c *Controller) PurgeImages(ctx echo.Context) error {
	if err := c.Images.PurgeAll(); err != nil {
		return c.jsonError(ctx, http.StatusInternalServerError, err)
	}
	c.logger.Info("image directories purged")
	return ctx.NoContent(http.StatusNoContent)
}

// ControlCamera forwards stop/resume to the device and reports the outcome.
// A failed device call is a successful HTTP response carrying the failure.
func (c *Controller) ControlCamera(ctx echo.Context) error {
	action := camera.Action(ctx.Param("action"))

	if action != camera.ActionStop && action != camera.ActionResume {
		return c.jsonError(ctx, http.StatusBadRequest,
			fmt.Errorf("unsupported camera action %q", action))
	}

	outcome := c.Camera.Control(ctx.Request().Context(), action)
	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusBadGateway
	}
	return ctx.JSON(status, outcome)
}
