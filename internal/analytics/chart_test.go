package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestwatch/pestwatch/internal/datastore"
)

// fakeStore serves canned detections through the datastore interface.
type fakeStore struct {
	detections []datastore.Detection
	err        error
}

func (f *fakeStore) Open() error                   { return nil }
func (f *fakeStore) Close() error                  { return nil }
func (f *fakeStore) Save(*datastore.Detection) error { return nil }
func (f *fakeStore) CountDetections() (int64, error) { return int64(len(f.detections)), nil }

func (f *fakeStore) GetDetectionsSince(startDate string) ([]datastore.Detection, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []datastore.Detection
	for _, d := range f.detections {
		if d.Date >= startDate {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) GetDetectionsByImage(name string) ([]datastore.Detection, error) {
	var out []datastore.Detection
	for _, d := range f.detections {
		if d.ImageFilename == name {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) GetDailyCounts(string) ([]datastore.DailyCount, error) { return nil, nil }

func TestBuildChartSingleHarmfulSpecies(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.Local)
	store := &fakeStore{detections: []datastore.Detection{
		{Date: "2026-08-27", InsectName: "rice_planthopper", Category: "harmful", ImageFilename: "a.jpg"},
		{Date: "2026-08-29", InsectName: "rice_planthopper", Category: "harmful", ImageFilename: "b.jpg"},
		// Two detections on one day still produce a single presence mark.
		{Date: "2026-08-29", InsectName: "rice_planthopper", Category: "harmful", ImageFilename: "b.jpg"},
	}}

	chart, err := BuildChart(store, 7, now)
	require.NoError(t, err)

	assert.Equal(t, []string{"27/08", "29/08"}, chart.Labels)
	require.Len(t, chart.Datasets, 1)

	series := chart.Datasets[0]
	assert.Equal(t, "rice_planthopper", series.Label)
	assert.Equal(t, []int{1, 1}, series.Data)
	assert.Equal(t, "rgba(220,53,69,0.8)", series.BackgroundColor)
}

func TestBuildChartPresenceNotCounts(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.Local)
	store := &fakeStore{detections: []datastore.Detection{
		{Date: "2026-08-28", InsectName: "armyworm", Category: "harmful"},
		{Date: "2026-08-29", InsectName: "little_gecko", Category: "safe"},
	}}

	chart, err := BuildChart(store, 7, now)
	require.NoError(t, err)
	require.Len(t, chart.Datasets, 2)

	// armyworm present only on the first date, gecko only on the second.
	assert.Equal(t, []int{1, 0}, chart.Datasets[0].Data)
	assert.Equal(t, []int{0, 1}, chart.Datasets[1].Data)
}

func TestBuildChartSortsByCategoryPriorityThenName(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.Local)
	store := &fakeStore{detections: []datastore.Detection{
		{Date: "2026-08-29", InsectName: "little_gecko", Category: "safe"},
		{Date: "2026-08-29", InsectName: "zz_mystery_bug", Category: "caution"},
		{Date: "2026-08-29", InsectName: "athetis_lepigone", Category: "caution"},
		{Date: "2026-08-29", InsectName: "bollworm", Category: "harmful"},
		{Date: "2026-08-29", InsectName: "armyworm", Category: "harmful"},
	}}

	chart, err := BuildChart(store, 7, now)
	require.NoError(t, err)

	var order []string
	for _, s := range chart.Datasets {
		order = append(order, s.Label)
	}
	assert.Equal(t, []string{
		"armyworm", "bollworm", // harmful, name order
		"athetis_lepigone", "zz_mystery_bug", // caution, name order
		"little_gecko", // safe
	}, order)
}

func TestBuildChartExcludesDetectionsOutsideWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.Local)
	store := &fakeStore{detections: []datastore.Detection{
		{Date: "2026-08-01", InsectName: "armyworm", Category: "harmful"},
		{Date: "2026-08-29", InsectName: "bollworm", Category: "harmful"},
	}}

	chart, err := BuildChart(store, 7, now)
	require.NoError(t, err)
	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, "bollworm", chart.Datasets[0].Label)
}

func TestBuildChartEmptyStore(t *testing.T) {
	t.Parallel()

	chart, err := BuildChart(&fakeStore{}, 7, time.Now())
	require.NoError(t, err)
	assert.Empty(t, chart.Labels)
	assert.Empty(t, chart.Datasets)
}

func TestBuildChartUnknownCategorySortsLastWithGray(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.Local)
	store := &fakeStore{detections: []datastore.Detection{
		{Date: "2026-08-29", InsectName: "odd_bug", Category: "mystery"},
		{Date: "2026-08-29", InsectName: "little_gecko", Category: "safe"},
	}}

	chart, err := BuildChart(store, 7, now)
	require.NoError(t, err)
	require.Len(t, chart.Datasets, 2)
	assert.Equal(t, "odd_bug", chart.Datasets[1].Label)
	assert.Equal(t, "rgba(108,117,125,0.8)", chart.Datasets[1].BackgroundColor)
}
