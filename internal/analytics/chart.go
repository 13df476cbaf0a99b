// Package analytics builds the chart-ready trend data served to the
// dashboard. Everything here is recomputed from the detection log on every
// call; the window is small enough that caching would only add staleness.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/pestwatch/pestwatch/internal/datastore"
	"github.com/pestwatch/pestwatch/internal/taxonomy"
)

// DefaultWindowDays is the trailing window of the dashboard trend chart.
const DefaultWindowDays = 7

const dateLayout = "2006-01-02"

// Series is one insect's presence vector across the window's dates.
type Series struct {
	Label           string            `json:"label"`
	Data            []int             `json:"data"`
	BackgroundColor string            `json:"backgroundColor"`
	InsectName      string            `json:"insect_name"`
	Category        taxonomy.Category `json:"category"`
}

// ChartData is the axis labels plus the per-insect series, ordered most
// dangerous category first.
type ChartData struct {
	Labels   []string `json:"labels"`
	Datasets []Series `json:"datasets"`
}

// BuildChart assembles a presence chart (not a count chart: any number of
// detections of an insect on a day renders as 1) for the trailing window
// ending today.
func BuildChart(store datastore.Interface, windowDays int, now time.Time) (*ChartData, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	startDate := now.AddDate(0, 0, -windowDays).Format(dateLayout)

	detections, err := store.GetDetectionsSince(startDate)
	if err != nil {
		return nil, fmt.Errorf("fetching chart window: %w", err)
	}

	// Distinct sorted dates, distinct insects with last-seen category.
	dateSet := make(map[string]struct{})
	categories := make(map[string]taxonomy.Category)
	present := make(map[string]map[string]struct{}) // insect -> dates seen
	for i := range detections {
		d := &detections[i]
		dateSet[d.Date] = struct{}{}
		categories[d.InsectName] = taxonomy.Category(d.Category)
		if present[d.InsectName] == nil {
			present[d.InsectName] = make(map[string]struct{})
		}
		present[d.InsectName][d.Date] = struct{}{}
	}

	dates := make([]string, 0, len(dateSet))
	for date := range dateSet {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	insects := make([]string, 0, len(present))
	for insect := range present {
		insects = append(insects, insect)
	}
	sort.Strings(insects)

	datasets := make([]Series, 0, len(insects))
	for _, insect := range insects {
		data := make([]int, len(dates))
		for i, date := range dates {
			if _, ok := present[insect][date]; ok {
				data[i] = 1
			}
		}
		category := categories[insect]
		datasets = append(datasets, Series{
			Label:           insect,
			Data:            data,
			BackgroundColor: category.ChartColor(),
			InsectName:      insect,
			Category:        category,
		})
	}

	// Category priority first; the name-sorted base order breaks ties and the
	// stable sort keeps it deterministic.
	sort.SliceStable(datasets, func(i, j int) bool {
		return datasets[i].Category.Priority() < datasets[j].Category.Priority()
	})

	labels := make([]string, len(dates))
	for i, date := range dates {
		labels[i] = shortDayLabel(date)
	}

	return &ChartData{Labels: labels, Datasets: datasets}, nil
}

// shortDayLabel renders an ISO date as the dd/mm axis label. Unparseable
// dates fall through unchanged rather than dropping the column.
func shortDayLabel(date string) string {
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return parsed.Format("02/01")
}
