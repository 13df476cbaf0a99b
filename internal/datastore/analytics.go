// internal/datastore/analytics.go
package datastore

import (
	"fmt"
)

// DailyCount represents detection counts by day.
type DailyCount struct {
	Date  string
	Count int
}

// GetDailyCounts retrieves detection counts grouped by day for all dates on
// or after startDate, oldest first.
func (ds *DataStore) GetDailyCounts(startDate string) ([]DailyCount, error) {
	var counts []DailyCount

	err := ds.DB.Model(&Detection{}).
		Select("date, COUNT(*) as count").
		Where("date >= ?", startDate).
		Group("date").
		Order("date ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("error getting daily detection counts: %w", err)
	}

	return counts, nil
}
