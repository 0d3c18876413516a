package engine

import "github.com/prismview/prism/pkg/models"

// Config holds the rendering budgets the reduction engine enforces.
// The defaults mirror what a chart surface can meaningfully display; they
// are ceilings on output size, never on input size.
type Config struct {
	// BarLineBudget caps points for bar/line/area charts.
	BarLineBudget int

	// PieBudget caps pie slices; pies become unreadable well before bars do.
	PieBudget int

	// ScatterBudget caps scatter points after sampling.
	ScatterBudget int

	// MaxVisualPoints is the absolute ceiling for any result, and the
	// safety ceiling above which categorical group counts are reported as
	// a cardinality overflow.
	MaxVisualPoints int

	// TablePageCeiling is the hard per-page row cap. Requests above it are
	// clamped unconditionally.
	TablePageCeiling int

	// DefaultPageSize is used when a table request asks for zero or a
	// negative page size.
	DefaultPageSize int

	// MinZoomRatio is the fraction of a chart's budget granted at zoom
	// level 0. The budget grows linearly to the full budget at zoom 1.
	MinZoomRatio float64

	// ParallelScanThreshold is the row count above which filter scans are
	// split across goroutines.
	ParallelScanThreshold int
}

// DefaultConfig returns the stock budgets.
func DefaultConfig() *Config {
	return &Config{
		BarLineBudget:         500,
		PieBudget:             20,
		ScatterBudget:         10000,
		MaxVisualPoints:       50000,
		TablePageCeiling:      1000,
		DefaultPageSize:       100,
		MinZoomRatio:          0.2,
		ParallelScanThreshold: 100000,
	}
}

// budgetFor returns the point budget for a chart kind.
func (c *Config) budgetFor(kind models.ChartKind) int {
	switch kind {
	case models.ChartPie:
		return c.PieBudget
	case models.ChartScatter:
		return c.ScatterBudget
	default:
		return c.BarLineBudget
	}
}
