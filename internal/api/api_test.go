package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestwatch/pestwatch/internal/annotate"
	"github.com/pestwatch/pestwatch/internal/backlog"
	"github.com/pestwatch/pestwatch/internal/camera"
	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/datastore"
	"github.com/pestwatch/pestwatch/internal/detector"
	"github.com/pestwatch/pestwatch/internal/imagestore"
)

type fakeStore struct {
	detections []datastore.Detection
	byImage    map[string][]datastore.Detection
}

func (f *fakeStore) Open() error  { return nil }
func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) Save(d *datastore.Detection) error {
	f.detections = append(f.detections, *d)
	return nil
}

func (f *fakeStore) GetDetectionsSince(startDate string) ([]datastore.Detection, error) {
	var out []datastore.Detection
	for _, d := range f.detections {
		if d.Date >= startDate {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) GetDetectionsByImage(imageFilename string) ([]datastore.Detection, error) {
	return f.byImage[imageFilename], nil
}

func (f *fakeStore) CountDetections() (int64, error) {
	return int64(len(f.detections)), nil
}

func (f *fakeStore) GetDailyCounts(startDate string) ([]datastore.DailyCount, error) {
	return nil, nil
}

type noopDetector struct{}

func (noopDetector) Detect(ctx context.Context, imagePath string) ([]detector.Detection, error) {
	return nil, nil
}
func (noopDetector) Close() error { return nil }

func newTestController(t *testing.T, store *fakeStore) *Controller {
	t.Helper()

	backlogDir := filepath.Join(t.TempDir(), "backlog")
	resultDir := filepath.Join(t.TempDir(), "results")

	settings := &conf.Settings{}
	settings.Pipeline.Backlog.Path = backlogDir
	settings.Pipeline.Results.Path = resultDir
	settings.Pipeline.Results.MaxCount = 15
	settings.WebServer.Port = "8080"

	images, err := imagestore.New(backlogDir, resultDir)
	require.NoError(t, err)

	renderer := annotate.NewRenderer(&settings.Pipeline.Annotation)
	processor := backlog.New(store, images, noopDetector{}, renderer, settings.Pipeline.Results.MaxCount)
	cam := camera.NewController(&conf.CameraSettings{Host: "http://127.0.0.1:1", Timeout: time.Second})

	return New(settings, store, images, processor, cam, nil)
}

func TestIngestImage(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images",
		bytes.NewReader([]byte("jpeg-bytes")))
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)

	require.NoError(t, c.IngestImage(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Filename)

	// The upload must land in the backlog directory under the returned name.
	data, err := os.ReadFile(c.Images.PendingPath(resp.Filename))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestIngestImageEmptyBody(t *testing.T) {
	c := newTestController(t, &fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)

	require.NoError(t, c.IngestImage(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	pending, err := c.Images.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGetSnapshot(t *testing.T) {
	original := "20260829_110000_000001_aabbccdd.jpg"
	resultName := imagestore.ResultNameFor(original)
	today := time.Now().Format("2006-01-02")

	store := &fakeStore{
		detections: []datastore.Detection{
			{Date: today, InsectName: "aphid", Category: "harmful", ImageFilename: original},
		},
		byImage: map[string][]datastore.Detection{
			original: {
				{Date: today, InsectName: "aphid", Category: "harmful", ImageFilename: original},
			},
		},
	}
	c := newTestController(t, store)

	require.NoError(t, os.WriteFile(c.Images.ResultPath(resultName), []byte("img"), 0o644))
	_, err := c.Images.WritePending([]byte("raw"), time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)

	require.NoError(t, c.GetSnapshot(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))

	assert.Len(t, snap.BacklogImages, 1)
	assert.Equal(t, []string{resultName}, snap.ResultImages)
	require.Contains(t, snap.Predictions, resultName)
	assert.Equal(t, "aphid", snap.Predictions[resultName][0].InsectName)
	assert.Equal(t, int64(1), snap.TotalDetections)
	require.NotNil(t, snap.AnalyticsData)
	assert.Len(t, snap.AnalyticsData.Datasets, 1)
}

func TestPurgeImages(t *testing.T) {
	c := newTestController(t, &fakeStore{})

	_, err := c.Images.WritePending([]byte("raw"), time.Now())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.Images.ResultPath("result_x.jpg"), []byte("img"), 0o644))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purge", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)

	require.NoError(t, c.PurgeImages(ctx))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	pending, err := c.Images.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
	results, err := c.Images.ListResults()
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestControlCameraInvalidAction(t *testing.T) {
	c := newTestController(t, &fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/camera/reboot", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)
	ctx.SetParamNames("action")
	ctx.SetParamValues("reboot")

	require.NoError(t, c.ControlCamera(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControlCameraForwardsToDevice(t *testing.T) {
	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/stop", r.URL.Path)
		_, _ = w.Write([]byte("stopped"))
	}))
	defer device.Close()

	c := newTestController(t, &fakeStore{})
	c.Camera = camera.NewController(&conf.CameraSettings{Host: device.URL, Timeout: time.Second})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/camera/stop", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)
	ctx.SetParamNames("action")
	ctx.SetParamValues("stop")

	require.NoError(t, c.ControlCamera(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)

	var outcome camera.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Success)
	assert.Equal(t, "stopped", outcome.DeviceResponse)
}

func TestControlCameraDeviceDown(t *testing.T) {
	c := newTestController(t, &fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/camera/resume", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)
	ctx.SetParamNames("action")
	ctx.SetParamValues("resume")

	require.NoError(t, c.ControlCamera(ctx))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestFileLoggingWhenEnabled(t *testing.T) {
	base := t.TempDir()
	logPath := filepath.Join(base, "logs", "pestwatch.log")

	settings := &conf.Settings{}
	settings.Main.Log.Enabled = true
	settings.Main.Log.Path = logPath
	settings.Main.Log.Level = "info"
	settings.Pipeline.Backlog.Path = filepath.Join(base, "backlog")
	settings.Pipeline.Results.Path = filepath.Join(base, "results")
	settings.Pipeline.Results.MaxCount = 15
	settings.WebServer.Port = "8080"

	store := &fakeStore{}
	images, err := imagestore.New(settings.Pipeline.Backlog.Path, settings.Pipeline.Results.Path)
	require.NoError(t, err)
	renderer := annotate.NewRenderer(&settings.Pipeline.Annotation)
	processor := backlog.New(store, images, noopDetector{}, renderer, settings.Pipeline.Results.MaxCount)
	cam := camera.NewController(&conf.CameraSettings{Host: "http://127.0.0.1:1", Timeout: time.Second})

	c := New(settings, store, images, processor, cam, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images",
		bytes.NewReader([]byte("jpeg-bytes")))
	rec := httptest.NewRecorder()
	require.NoError(t, c.IngestImage(c.Echo.NewContext(req, rec)))

	// The handler log line must land in the rotated file, tagged with the
	// service name.
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "capture received")
	assert.Contains(t, string(data), `"service":"api"`)
}

func TestSSEManagerNotifyChanged(t *testing.T) {
	m := NewSSEManager(newTestController(t, &fakeStore{}).logger)

	client := &SSEClient{
		ID:      "test-client",
		Channel: make(chan SSEEvent, 1),
		Done:    make(chan struct{}),
	}
	m.AddClient(client)
	require.Equal(t, 1, m.GetClientCount())

	m.NotifyChanged()

	select {
	case event := <-client.Channel:
		assert.Equal(t, "backlog_changed", event.EventType)
	case <-time.After(time.Second):
		t.Fatal("expected a backlog_changed event")
	}

	m.RemoveClient(client.ID)
	assert.Equal(t, 0, m.GetClientCount())
}

func TestSSEManagerDropsBlockedClient(t *testing.T) {
	m := NewSSEManager(newTestController(t, &fakeStore{}).logger)

	client := &SSEClient{
		ID:      "slow-client",
		Channel: make(chan SSEEvent), // unbuffered, nobody reading
		Done:    make(chan struct{}),
	}
	m.AddClient(client)

	m.NotifyChanged()
	assert.Equal(t, 0, m.GetClientCount())
}

func TestSSEManagerCloseAll(t *testing.T) {
	m := NewSSEManager(newTestController(t, &fakeStore{}).logger)

	for _, id := range []string{"a", "b", "c"} {
		m.AddClient(&SSEClient{
			ID:      id,
			Channel: make(chan SSEEvent, 1),
			Done:    make(chan struct{}),
		})
	}
	require.Equal(t, 3, m.GetClientCount())

	m.CloseAll()
	assert.Equal(t, 0, m.GetClientCount())
}
