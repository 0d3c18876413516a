package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/prismview/prism/internal/dataset"
	"github.com/prismview/prism/pkg/models"
)

// aggregated is the output of the grouping stage: labels on the x axis and
// one aligned value vector per series. With no groupByField there is exactly
// one series; with one, each distinct group value becomes a series.
type aggregated struct {
	labels       []string
	seriesLabels []string
	values       [][]float64 // values[series][label]
	xNumeric     []float64   // parallel to labels when xIsNumeric
	xIsNumeric   bool
}

func (a *aggregated) pointCount() int { return len(a.labels) }

// cellState accumulates one (label, series) cell. Median keeps the raw
// values because it cannot be computed incrementally.
type cellState struct {
	count int
	sum   float64
	min   float64
	max   float64
	vals  []float64
}

func (c *cellState) add(v float64, agg models.Aggregation) {
	if c.count == 0 {
		c.min, c.max = v, v
	} else {
		if v < c.min {
			c.min = v
		}
		if v > c.max {
			c.max = v
		}
	}
	c.count++
	c.sum += v
	if agg == models.AggMedian {
		c.vals = append(c.vals, v)
	}
}

// finalize reduces the cell to its statistic. Median sorts the collected
// values and takes the true median: the middle value, or the mean of the two
// middle values for even-sized groups. It is never approximated by avg.
func (c *cellState) finalize(agg models.Aggregation) float64 {
	switch agg {
	case models.AggSum:
		return c.sum
	case models.AggAvg:
		return c.sum / float64(c.count)
	case models.AggCount:
		return float64(c.count)
	case models.AggMin:
		return c.min
	case models.AggMax:
		return c.max
	case models.AggMedian:
		sort.Float64s(c.vals)
		mid := len(c.vals) / 2
		if len(c.vals)%2 == 1 {
			return c.vals[mid]
		}
		return (c.vals[mid-1] + c.vals[mid]) / 2
	}
	return 0
}

type cellKey struct {
	label  int
	series int
}

// aggregate groups the selected rows by the x field, splits them into series
// by the groupBy field when present, and reduces each cell's y values.
// Rows whose x cell is null cannot form a labeled category and are skipped;
// groups that end up with no contributing values are dropped, not zeroed.
func (e *Engine) aggregate(ctx context.Context, ds *dataset.Dataset, rows []int, spec models.QuerySpec) (*aggregated, error) {
	xCol, _ := ds.Column(spec.XField)
	yCol, _ := ds.Column(spec.YField)
	var groupCol *dataset.Column
	if spec.GroupByField != "" {
		groupCol, _ = ds.Column(spec.GroupByField)
	}

	xIsNumeric := xCol.Field.Type.Numeric() || xCol.Field.Type == dataset.TypeDatetime

	labelIdx := make(map[string]int)
	var labels []string
	var xNumeric []float64

	seriesIdx := make(map[string]int)
	var seriesLabels []string
	if groupCol == nil {
		seriesIdx[""] = 0
		seriesLabels = []string{aggregationLabel(spec.Aggregation, spec.YField)}
	}

	cells := make(map[cellKey]*cellState)

	const cancelCheckInterval = 16384
	for n, row := range rows {
		if n%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		if xCol.IsNull(row) {
			continue
		}

		label := xCol.Label(row)
		li, ok := labelIdx[label]
		if !ok {
			li = len(labels)
			labelIdx[label] = li
			labels = append(labels, label)
			if xIsNumeric {
				v, _ := xCol.Float(row)
				xNumeric = append(xNumeric, v)
			}
		}

		si := 0
		if groupCol != nil {
			gl := groupCol.Label(row)
			si, ok = seriesIdx[gl]
			if !ok {
				si = len(seriesLabels)
				seriesIdx[gl] = si
				seriesLabels = append(seriesLabels, gl)
			}
		}

		v, ok := yValue(yCol, row, spec.Aggregation)
		if !ok {
			continue
		}
		key := cellKey{label: li, series: si}
		cell := cells[key]
		if cell == nil {
			cell = &cellState{}
			cells[key] = cell
		}
		cell.add(v, spec.Aggregation)
	}

	// Drop labels with no contributing cell in any series.
	keep := make([]int, 0, len(labels))
	for li := range labels {
		for si := range seriesLabels {
			if _, ok := cells[cellKey{label: li, series: si}]; ok {
				keep = append(keep, li)
				break
			}
		}
	}

	out := &aggregated{
		seriesLabels: seriesLabels,
		xIsNumeric:   xIsNumeric,
	}
	out.labels = make([]string, len(keep))
	if xIsNumeric {
		out.xNumeric = make([]float64, len(keep))
	}
	out.values = make([][]float64, len(seriesLabels))
	for si := range out.values {
		out.values[si] = make([]float64, len(keep))
	}
	for i, li := range keep {
		out.labels[i] = labels[li]
		if xIsNumeric {
			out.xNumeric[i] = xNumeric[li]
		}
		for si := range seriesLabels {
			if cell, ok := cells[cellKey{label: li, series: si}]; ok {
				out.values[si][i] = cell.finalize(spec.Aggregation)
			}
		}
	}

	sortAggregated(out, spec.SortBy, spec.SortOrder)
	return out, nil
}

// yValue extracts the y cell for aggregation. count accepts any non-null
// cell; the other statistics need a number, with datetimes widening to Unix
// nanoseconds for min/max.
func yValue(col *dataset.Column, row int, agg models.Aggregation) (float64, bool) {
	if col.IsNull(row) {
		return 0, false
	}
	if agg == models.AggCount {
		return 0, true
	}
	return col.Float(row)
}

// sortAggregated orders groups per the query's sort settings. Ties keep
// first-seen order in the filtered dataset, which sort.SliceStable
// guarantees.
func sortAggregated(a *aggregated, by models.SortBy, order models.SortOrder) {
	if by == models.SortByNone || by == "" || order == models.SortOrdNone || order == "" {
		return
	}
	// A filter can match nothing; there is no order to impose.
	if len(a.labels) == 0 || len(a.values) == 0 {
		return
	}
	idx := make([]int, len(a.labels))
	for i := range idx {
		idx[i] = i
	}

	var less func(i, j int) bool
	switch by {
	case models.SortByX:
		if a.xIsNumeric {
			less = func(i, j int) bool { return a.xNumeric[idx[i]] < a.xNumeric[idx[j]] }
		} else {
			less = func(i, j int) bool { return a.labels[idx[i]] < a.labels[idx[j]] }
		}
	case models.SortByY:
		primary := a.values[0]
		less = func(i, j int) bool { return primary[idx[i]] < primary[idx[j]] }
	default:
		return
	}
	if order == models.SortDesc {
		asc := less
		less = func(i, j int) bool { return asc(j, i) }
	}
	sort.SliceStable(idx, less)

	a.labels = reorderStrings(a.labels, idx)
	if a.xIsNumeric {
		a.xNumeric = reorderFloats(a.xNumeric, idx)
	}
	for si := range a.values {
		a.values[si] = reorderFloats(a.values[si], idx)
	}
}

func reorderStrings(s []string, idx []int) []string {
	out := make([]string, len(s))
	for i, j := range idx {
		out[i] = s[j]
	}
	return out
}

func reorderFloats(s []float64, idx []int) []float64 {
	out := make([]float64, len(s))
	for i, j := range idx {
		out[i] = s[j]
	}
	return out
}

// aggregationLabel renders the default series label, e.g. "Sum of revenue".
func aggregationLabel(agg models.Aggregation, yField string) string {
	switch agg {
	case models.AggSum:
		return fmt.Sprintf("Sum of %s", yField)
	case models.AggAvg:
		return fmt.Sprintf("Average of %s", yField)
	case models.AggCount:
		return fmt.Sprintf("Count of %s", yField)
	case models.AggMin:
		return fmt.Sprintf("Min of %s", yField)
	case models.AggMax:
		return fmt.Sprintf("Max of %s", yField)
	case models.AggMedian:
		return fmt.Sprintf("Median of %s", yField)
	}
	return yField
}
