package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prismview/prism/internal/cache"
	"github.com/prismview/prism/internal/dataset"
	"github.com/prismview/prism/pkg/models"
)

// Engine executes visualization queries against the current dataset
// snapshot. It is stateless apart from its configuration: every operation
// reads an immutable Dataset and returns a fresh result, so concurrent
// queries need no coordination.
type Engine struct {
	store  *dataset.Store
	cfg    *Config
	cache  *cache.ResultCache
	logger zerolog.Logger
}

// New creates an engine. cache may be nil to disable result caching.
func New(store *dataset.Store, cfg *Config, resultCache *cache.ResultCache, logger zerolog.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		store:  store,
		cfg:    cfg,
		cache:  resultCache,
		logger: logger.With().Str("component", "viz-engine").Logger(),
	}
}

// Config returns the engine's budgets.
func (e *Engine) Config() *Config { return e.cfg }

// ExecuteChartQuery runs the full aggregation pipeline: validate, filter,
// aggregate, then reduce to the chart kind's budget. Categorical kinds fold
// to top-N + "Other"; continuous kinds sample systematically.
func (e *Engine) ExecuteChartQuery(ctx context.Context, spec models.QuerySpec) (*models.ChartResult, error) {
	budget := e.cfg.budgetFor(spec.ChartKind)
	return e.executeChart(ctx, "chart", spec, budget, nil, nil)
}

// ExecuteProgressiveQuery runs a chart query under a zoom-derived budget and
// an optional x-domain window. For a fixed (spec, zoom, range, dataset
// version) the result is byte-identical across calls, which is what makes
// caller-side caching and smooth pan/zoom possible.
func (e *Engine) ExecuteProgressiveQuery(ctx context.Context, spec models.QuerySpec, zoomLevel float64, rangeStart, rangeEnd *float64) (*models.ChartResult, error) {
	budget := e.cfg.zoomBudget(spec.ChartKind, zoomLevel)
	return e.executeChart(ctx, fmt.Sprintf("progressive:%g", clampZoom(zoomLevel)), spec, budget, rangeStart, rangeEnd)
}

func clampZoom(z float64) float64 {
	if z < 0 {
		return 0
	}
	if z > 1 {
		return 1
	}
	return z
}

func (e *Engine) executeChart(ctx context.Context, op string, spec models.QuerySpec, budget int, rangeStart, rangeEnd *float64) (*models.ChartResult, error) {
	start := time.Now()

	ds, ok := e.store.Current()
	if !ok {
		return nil, ErrNoData
	}
	if err := validateSpec(ds, spec); err != nil {
		return nil, err
	}

	key := e.cacheKey(op, ds.Version(), spec, rangeStart, rangeEnd)
	if e.cache != nil {
		if res, hit := e.cache.Get(key); hit {
			e.logger.Debug().Str("op", op).Msg("Result cache hit")
			return res, nil
		}
	}

	if budget > e.cfg.MaxVisualPoints {
		budget = e.cfg.MaxVisualPoints
	}

	preds := compileFilters(ds, spec.Filters)
	if rangeStart != nil || rangeEnd != nil {
		xCol, _ := ds.Column(spec.XField)
		preds = append(preds, rangePredicates(xCol, rangeStart, rangeEnd)...)
	}
	rows, err := e.filterRows(ctx, ds, preds)
	if err != nil {
		return nil, err
	}

	agg, err := e.aggregate(ctx, ds, rows, spec)
	if err != nil {
		return nil, err
	}

	var reduction models.ReductionInfo
	if spec.ChartKind.Categorical() {
		reduction = reduceCategorical(agg, budget, e.cfg.MaxVisualPoints)
	} else {
		reduction = reduceContinuous(agg, budget)
	}

	res := e.buildResult(ds, spec, agg, len(rows), reduction)

	if e.cache != nil {
		e.cache.Put(key, res)
	}

	e.logger.Info().
		Str("op", op).
		Str("chart_kind", string(spec.ChartKind)).
		Int("filtered_rows", len(rows)).
		Int("returned_points", reduction.ReturnedPoints).
		Str("reduction", string(reduction.Reason)).
		Dur("duration", time.Since(start)).
		Msg("Chart query completed")

	return res, nil
}

// ExecuteScatterQuery returns raw (x, y) points without aggregation, always
// reduced through the continuous sampling path: scatter series are point
// dense no matter what chart kind the query declares.
func (e *Engine) ExecuteScatterQuery(ctx context.Context, spec models.QuerySpec) (*models.ChartResult, error) {
	start := time.Now()

	ds, ok := e.store.Current()
	if !ok {
		return nil, ErrNoData
	}
	if err := validateScatterSpec(ds, spec); err != nil {
		return nil, err
	}

	key := e.cacheKey("scatter", ds.Version(), spec, nil, nil)
	if e.cache != nil {
		if res, hit := e.cache.Get(key); hit {
			e.logger.Debug().Str("op", "scatter").Msg("Result cache hit")
			return res, nil
		}
	}

	preds := compileFilters(ds, spec.Filters)
	rows, err := e.filterRows(ctx, ds, preds)
	if err != nil {
		return nil, err
	}

	xCol, _ := ds.Column(spec.XField)
	yCol, _ := ds.Column(spec.YField)

	agg := &aggregated{
		seriesLabels: []string{spec.YField},
		values:       [][]float64{nil},
	}
	for _, row := range rows {
		y, ok := yCol.Float(row)
		if !ok {
			continue
		}
		agg.labels = append(agg.labels, xCol.Label(row))
		agg.values[0] = append(agg.values[0], y)
	}

	budget := e.cfg.ScatterBudget
	if budget > e.cfg.MaxVisualPoints {
		budget = e.cfg.MaxVisualPoints
	}
	reduction := reduceContinuous(agg, budget)

	res := e.buildResult(ds, spec, agg, len(rows), reduction)
	res.Metadata.YLabel = spec.YField

	if e.cache != nil {
		e.cache.Put(key, res)
	}

	e.logger.Info().
		Str("op", "scatter").
		Int("filtered_rows", len(rows)).
		Int("returned_points", reduction.ReturnedPoints).
		Str("reduction", string(reduction.Reason)).
		Dur("duration", time.Since(start)).
		Msg("Scatter query completed")

	return res, nil
}

// validateScatterSpec relaxes the aggregation check (scatter plots raw
// points) but requires a numeric y axis.
func validateScatterSpec(ds *dataset.Dataset, spec models.QuerySpec) error {
	schema := ds.Schema()
	if _, ok := schema.Field(spec.XField); !ok {
		return &InvalidFieldError{Field: spec.XField, Available: schema.Names()}
	}
	yField, ok := schema.Field(spec.YField)
	if !ok {
		return &InvalidFieldError{Field: spec.YField, Available: schema.Names()}
	}
	if !yField.Type.Numeric() && yField.Type != dataset.TypeDatetime {
		return &TypeMismatchError{
			Field:    yField.Name,
			Expected: "numeric or datetime type",
			Got:      string(yField.Type),
			Operator: "scatter y-axis",
		}
	}
	return validateFilters(schema, spec.Filters)
}

// ExecuteTableQuery pages raw rows under the hard page-size ceiling.
func (e *Engine) ExecuteTableQuery(ctx context.Context, req models.TableRequest) (*models.TablePage, error) {
	start := time.Now()

	ds, ok := e.store.Current()
	if !ok {
		return nil, ErrNoData
	}
	page, err := e.executeTable(ctx, ds, req)
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Int("total_rows", page.TotalRows).
		Int("page", page.Page).
		Int("page_size", page.PageSize).
		Dur("duration", time.Since(start)).
		Msg("Table query completed")

	return page, nil
}

func (e *Engine) buildResult(ds *dataset.Dataset, spec models.QuerySpec, agg *aggregated, filteredRows int, reduction models.ReductionInfo) *models.ChartResult {
	series := make([]models.Series, len(agg.seriesLabels))
	for i, label := range agg.seriesLabels {
		series[i] = models.Series{Label: label, Values: agg.values[i]}
	}
	yLabel := aggregationLabel(spec.Aggregation, spec.YField)
	return &models.ChartResult{
		Labels: agg.labels,
		Series: series,
		Metadata: models.ChartMeta{
			Title:          spec.Title,
			XLabel:         spec.XField,
			YLabel:         yLabel,
			TotalRecords:   filteredRows,
			DatasetVersion: ds.Version(),
			Reduction:      reduction,
		},
	}
}

// cacheKey canonicalizes a request. The dataset version is part of the key,
// so a reload can never serve stale data; old keys simply age out.
func (e *Engine) cacheKey(op, version string, spec models.QuerySpec, rangeStart, rangeEnd *float64) string {
	specJSON, _ := json.Marshal(spec)
	key := op + "|" + version + "|" + string(specJSON)
	if rangeStart != nil {
		key += fmt.Sprintf("|s=%g", *rangeStart)
	}
	if rangeEnd != nil {
		key += fmt.Sprintf("|e=%g", *rangeEnd)
	}
	return key
}
