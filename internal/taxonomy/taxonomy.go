// Package taxonomy classifies insect labels into risk categories and owns
// the category palette used by annotation and the dashboard chart.
package taxonomy

import (
	"image/color"
	"strings"
)

// Category is the risk class of a detected insect.
type Category string

const (
	CategoryHarmful Category = "harmful"
	CategoryCaution Category = "caution"
	CategorySafe    Category = "safe"
)

// insectCategories is the fixed classification table of the deployment.
// Labels the detector can emit that are not listed here default to caution.
var insectCategories = map[string]Category{
	"rice_planthopper":                CategoryHarmful,
	"rice_leaf_roller":                CategoryHarmful,
	"chilo_suppressalis":              CategoryHarmful,
	"armyworm":                        CategoryHarmful,
	"bollworm":                        CategoryHarmful,
	"meadow_borer":                    CategoryHarmful,
	"spodoptera_litura":               CategoryHarmful,
	"spodoptera_exigua":               CategoryHarmful,
	"stem_borer":                      CategoryHarmful,
	"plutella_xylostella":             CategoryHarmful,
	"spodoptera_cabbage":              CategoryHarmful,
	"scotogramma_trifolii_rottemberg": CategoryHarmful,
	"holotrichia_oblita":              CategoryHarmful,
	"holotrichia_parallela":           CategoryHarmful,
	"anomala_corpulenta":              CategoryHarmful,
	"gryllotalpa_orientalis":          CategoryHarmful,
	"agriotes_fuscicollis_miwa":       CategoryHarmful,
	"melahotus":                       CategoryHarmful,
	"athetis_lepigone":                CategoryCaution,
	"yellow_tiger":                    CategoryCaution,
	"land_tiger":                      CategoryCaution,
	"eight_character_tiger":           CategoryCaution,
	"nematode_trench":                 CategoryCaution,
	"little_gecko":                    CategorySafe,
}

// Classify returns the category for an insect label, case-insensitive.
// Unknown labels classify as caution so a new species is never presented as
// safe by default.
func Classify(label string) Category {
	if category, ok := insectCategories[strings.ToLower(label)]; ok {
		return category
	}
	return CategoryCaution
}

// Color returns the annotation outline color for the category. Categories
// outside the fixed set render neutral gray.
func (c Category) Color() color.RGBA {
	switch c {
	case CategoryHarmful:
		return color.RGBA{R: 220, G: 53, B: 69, A: 255}
	case CategorySafe:
		return color.RGBA{R: 40, G: 167, B: 69, A: 255}
	case CategoryCaution:
		return color.RGBA{R: 255, G: 193, B: 7, A: 255}
	default:
		return color.RGBA{R: 108, G: 117, B: 125, A: 255}
	}
}

// ChartColor returns the CSS rgba() fill used for the category's chart
// series.
func (c Category) ChartColor() string {
	switch c {
	case CategoryHarmful:
		return "rgba(220,53,69,0.8)"
	case CategorySafe:
		return "rgba(40,167,69,0.8)"
	case CategoryCaution:
		return "rgba(255,193,7,0.8)"
	default:
		return "rgba(108,117,125,0.8)"
	}
}

// Priority orders categories for chart presentation, most dangerous first.
func (c Category) Priority() int {
	switch c {
	case CategoryHarmful:
		return 0
	case CategoryCaution:
		return 1
	case CategorySafe:
		return 2
	default:
		return 3
	}
}
