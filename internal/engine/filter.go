package engine

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/prismview/prism/internal/dataset"
	"github.com/prismview/prism/pkg/models"
)

// predicate evaluates one filter against a row. Predicates are compiled once
// per filter after validation, so the scan loop does no type switching.
type predicate func(row int) bool

// compileFilters turns validated filters into row predicates.
// A null cell fails every operator except is_null.
func compileFilters(ds *dataset.Dataset, filters []models.Filter) []predicate {
	preds := make([]predicate, 0, len(filters))
	for _, f := range filters {
		col, _ := ds.Column(f.Column)
		preds = append(preds, compileFilter(col, f))
	}
	return preds
}

func compileFilter(col *dataset.Column, f models.Filter) predicate {
	switch f.Operator {
	case models.OpIsNull:
		return col.IsNull
	case models.OpIsNotNull:
		return func(row int) bool { return !col.IsNull(row) }

	case models.OpContains:
		want := f.Value.(string)
		return func(row int) bool {
			s, ok := col.Str(row)
			return ok && strings.Contains(s, want)
		}
	case models.OpStartsWith:
		want := f.Value.(string)
		return func(row int) bool {
			s, ok := col.Str(row)
			return ok && strings.HasPrefix(s, want)
		}
	case models.OpEndsWith:
		want := f.Value.(string)
		return func(row int) bool {
			s, ok := col.Str(row)
			return ok && strings.HasSuffix(s, want)
		}

	case models.OpGt:
		return compileOrdered(col, f.Value, func(cmp int) bool { return cmp > 0 })
	case models.OpGte:
		return compileOrdered(col, f.Value, func(cmp int) bool { return cmp >= 0 })
	case models.OpLt:
		return compileOrdered(col, f.Value, func(cmp int) bool { return cmp < 0 })
	case models.OpLte:
		return compileOrdered(col, f.Value, func(cmp int) bool { return cmp <= 0 })

	case models.OpEq:
		eq := compileEquality(col, f.Value)
		return eq
	case models.OpNeq:
		eq := compileEquality(col, f.Value)
		return func(row int) bool { return !col.IsNull(row) && !eq(row) }
	}

	// Unreachable after validation.
	return func(int) bool { return false }
}

// compileOrdered builds a comparison predicate for numeric and datetime
// columns. The filter value was checked by the validator, with integer and
// float literals widening to float64.
func compileOrdered(col *dataset.Column, value interface{}, keep func(cmp int) bool) predicate {
	if col.Field.Type == dataset.TypeDatetime {
		want, _ := datetimeValue(value)
		return func(row int) bool {
			t, ok := col.Time(row)
			if !ok {
				return false
			}
			switch {
			case t.Before(want):
				return keep(-1)
			case t.After(want):
				return keep(1)
			default:
				return keep(0)
			}
		}
	}

	want, _ := numericValue(value)
	return func(row int) bool {
		v, ok := col.Float(row)
		if !ok {
			return false
		}
		switch {
		case v < want:
			return keep(-1)
		case v > want:
			return keep(1)
		default:
			return keep(0)
		}
	}
}

func compileEquality(col *dataset.Column, value interface{}) predicate {
	switch col.Field.Type {
	case dataset.TypeInteger, dataset.TypeFloat:
		want, _ := numericValue(value)
		return func(row int) bool {
			v, ok := col.Float(row)
			return ok && v == want
		}
	case dataset.TypeString:
		want := value.(string)
		return func(row int) bool {
			s, ok := col.Str(row)
			return ok && s == want
		}
	case dataset.TypeBoolean:
		want := value.(bool)
		return func(row int) bool {
			b, ok := col.Bool(row)
			return ok && b == want
		}
	case dataset.TypeDatetime:
		want, _ := datetimeValue(value)
		return func(row int) bool {
			t, ok := col.Time(row)
			return ok && t.Equal(want)
		}
	}
	return func(int) bool { return false }
}

// filterRows returns the indices of rows passing every predicate, in dataset
// order. Large scans are split across goroutines; chunk results are stitched
// back in order so the selection stays deterministic.
func (e *Engine) filterRows(ctx context.Context, ds *dataset.Dataset, preds []predicate) ([]int, error) {
	rows := ds.Rows()
	if rows == 0 {
		return nil, nil
	}
	if len(preds) == 0 {
		all := make([]int, rows)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	if rows < e.cfg.ParallelScanThreshold {
		return scanChunk(ctx, 0, rows, preds)
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > 8 {
		workers = 8
	}
	chunkSize := (rows + workers - 1) / workers
	chunks := make([][]int, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > rows {
			hi = rows
		}
		if lo >= hi {
			break
		}
		g.Go(func() error {
			selected, err := scanChunk(gctx, lo, hi, preds)
			if err != nil {
				return err
			}
			chunks[lo/chunkSize] = selected
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]int, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out, nil
}

// scanChunk evaluates predicates over [lo, hi), short-circuiting per row on
// the first failing predicate. Cancellation is checked periodically so a
// superseded query stops burning CPU.
func scanChunk(ctx context.Context, lo, hi int, preds []predicate) ([]int, error) {
	const cancelCheckInterval = 16384

	var out []int
rows:
	for i := lo; i < hi; i++ {
		if (i-lo)%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		for _, p := range preds {
			if !p(i) {
				continue rows
			}
		}
		out = append(out, i)
	}
	return out, nil
}
