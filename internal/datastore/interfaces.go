// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/errors"
)

// Detection is one classified object instance found in one processed image.
// Rows are append-only: they are never updated and never expire.
type Detection struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Date          string `gorm:"index:idx_detections_date" json:"date"` // ISO calendar day, server-local
	InsectName    string `gorm:"index:idx_detections_name" json:"name"`
	Category      string `json:"category"` // derived once at detection time, never recomputed
	Confidence    float64 `json:"confidence"`
	ImageFilename string `gorm:"index:idx_detections_image" json:"image_filename"` // original backlog filename
	Timestamp     time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

// TableName sets the table name for the Detection model.
func (Detection) TableName() string {
	return "detections"
}

// Interface abstracts the underlying database implementation and defines the
// operations the rest of the application may perform on the detection log.
type Interface interface {
	Open() error
	Close() error
	// Save appends one detection row. Duplicate content is valid, e.g. two
	// instances of the same insect in one image.
	Save(detection *Detection) error
	// GetDetectionsSince returns all detections with Date >= startDate,
	// ascending by date then insertion order.
	GetDetectionsSince(startDate string) ([]Detection, error)
	// GetDetectionsByImage returns all detections recorded for the exact
	// original backlog filename.
	GetDetectionsByImage(imageFilename string) ([]Detection, error)
	CountDetections() (int64, error)
	GetDailyCounts(startDate string) ([]DailyCount, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided settings.
// Exactly one backend is expected to be enabled; conf validation enforces it.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// Save appends a detection row. Confidence is rounded to 3 decimals at write
// time; the insert is a single-row transaction, so readers never observe a
// partial record.
func (ds *DataStore) Save(detection *Detection) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	detection.Confidence = math.Round(detection.Confidence*1000) / 1000

	if err := ds.DB.Create(detection).Error; err != nil {
		return errors.New(fmt.Errorf("saving detection: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("insect_name", detection.InsectName).
			Build()
	}
	return nil
}

// GetDetectionsSince retrieves all detections recorded on or after startDate
// (inclusive), oldest date first.
func (ds *DataStore) GetDetectionsSince(startDate string) ([]Detection, error) {
	var detections []Detection
	err := ds.DB.Where("date >= ?", startDate).
		Order("date ASC, id ASC").
		Find(&detections).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("getting detections since %s: %w", startDate, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return detections, nil
}

// GetDetectionsByImage retrieves all detections for one original backlog
// filename, in insertion order.
func (ds *DataStore) GetDetectionsByImage(imageFilename string) ([]Detection, error) {
	var detections []Detection
	err := ds.DB.Where("image_filename = ?", imageFilename).
		Order("id ASC").
		Find(&detections).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("getting detections for image %s: %w", imageFilename, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("image_filename", imageFilename).
			Build()
	}
	return detections, nil
}

// CountDetections returns the total number of detection rows.
func (ds *DataStore) CountDetections() (int64, error) {
	var count int64
	if err := ds.DB.Model(&Detection{}).Count(&count).Error; err != nil {
		return 0, errors.New(fmt.Errorf("counting detections: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return count, nil
}

// Close closes the database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying database: %w", err)
	}
	return sqlDB.Close()
}
