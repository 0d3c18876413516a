package engine

import (
	"math"

	"github.com/prismview/prism/internal/dataset"
	"github.com/prismview/prism/pkg/models"
)

// zoomBudget maps a zoom level in [0,1] to a point budget for the chart
// kind. A wide view gets MinZoomRatio of the base budget; the budget grows
// linearly to the full base budget at maximum zoom, so panning out never
// loads more detail than the view can show.
func (c *Config) zoomBudget(kind models.ChartKind, zoom float64) int {
	if zoom < 0 {
		zoom = 0
	}
	if zoom > 1 {
		zoom = 1
	}
	base := float64(c.budgetFor(kind))
	budget := int(math.Ceil(base * (c.MinZoomRatio + (1-c.MinZoomRatio)*zoom)))
	if budget < 1 {
		budget = 1
	}
	return budget
}

// rangePredicates restricts the x domain to [start, end] before aggregation
// runs. Omitted bounds default to the full domain. Datetime axes compare on
// Unix nanoseconds, matching Column.Float.
func rangePredicates(xCol *dataset.Column, start, end *float64) []predicate {
	var preds []predicate
	if start != nil {
		lo := *start
		preds = append(preds, func(row int) bool {
			v, ok := xCol.Float(row)
			return ok && v >= lo
		})
	}
	if end != nil {
		hi := *end
		preds = append(preds, func(row int) bool {
			v, ok := xCol.Float(row)
			return ok && v <= hi
		})
	}
	return preds
}
