package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestStore opens an isolated in-memory database with the detections
// schema migrated.
func newTestStore(t *testing.T) *DataStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Detection{}))

	return &DataStore{DB: db}
}

func TestSaveRoundsConfidence(t *testing.T) {
	ds := newTestStore(t)

	d := &Detection{
		Date:          "2026-08-29",
		InsectName:    "rice_planthopper",
		Category:      "harmful",
		Confidence:    0.876543,
		ImageFilename: "20260829_110000_000001_aabbccdd.jpg",
	}
	require.NoError(t, ds.Save(d))

	got, err := ds.GetDetectionsByImage(d.ImageFilename)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.877, got[0].Confidence, 1e-9)
}

func TestSaveAllowsDuplicateContent(t *testing.T) {
	ds := newTestStore(t)

	// Two instances of the same insect in one image are two valid rows.
	for i := 0; i < 2; i++ {
		require.NoError(t, ds.Save(&Detection{
			Date:          "2026-08-29",
			InsectName:    "bollworm",
			Category:      "harmful",
			Confidence:    0.9,
			ImageFilename: "20260829_120000_000001_aabbccdd.jpg",
		}))
	}

	got, err := ds.GetDetectionsByImage("20260829_120000_000001_aabbccdd.jpg")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetDetectionsSinceWindow(t *testing.T) {
	ds := newTestStore(t)

	rows := []Detection{
		{Date: "2026-08-20", InsectName: "armyworm", Category: "harmful", ImageFilename: "a.jpg"},
		{Date: "2026-08-25", InsectName: "little_gecko", Category: "safe", ImageFilename: "b.jpg"},
		{Date: "2026-08-29", InsectName: "armyworm", Category: "harmful", ImageFilename: "c.jpg"},
	}
	for i := range rows {
		require.NoError(t, ds.Save(&rows[i]))
	}

	got, err := ds.GetDetectionsSince("2026-08-25")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ascending by date.
	assert.Equal(t, "2026-08-25", got[0].Date)
	assert.Equal(t, "2026-08-29", got[1].Date)
}

func TestGetDetectionsByImageIsExactMatch(t *testing.T) {
	ds := newTestStore(t)

	require.NoError(t, ds.Save(&Detection{Date: "2026-08-29", InsectName: "armyworm", ImageFilename: "x.jpg"}))
	require.NoError(t, ds.Save(&Detection{Date: "2026-08-29", InsectName: "armyworm", ImageFilename: "x.jpg.bak"}))

	got, err := ds.GetDetectionsByImage("x.jpg")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCountAndDailyCounts(t *testing.T) {
	ds := newTestStore(t)

	for _, d := range []Detection{
		{Date: "2026-08-28", InsectName: "armyworm", ImageFilename: "a.jpg"},
		{Date: "2026-08-28", InsectName: "bollworm", ImageFilename: "a.jpg"},
		{Date: "2026-08-29", InsectName: "armyworm", ImageFilename: "b.jpg"},
	} {
		row := d
		require.NoError(t, ds.Save(&row))
	}

	count, err := ds.CountDetections()
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	daily, err := ds.GetDailyCounts("2026-08-01")
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, DailyCount{Date: "2026-08-28", Count: 2}, daily[0])
	assert.Equal(t, DailyCount{Date: "2026-08-29", Count: 1}, daily[1])
}
