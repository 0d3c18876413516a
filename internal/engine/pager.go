package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/prismview/prism/internal/dataset"
	"github.com/prismview/prism/pkg/models"
)

// executeTable pages raw rows: filter, optional stable single-column sort,
// then slice. The page-size ceiling is enforced here, inside the engine, so
// no caller can force a full-table load.
func (e *Engine) executeTable(ctx context.Context, ds *dataset.Dataset, req models.TableRequest) (*models.TablePage, error) {
	if err := validateTableRequest(ds, req); err != nil {
		return nil, err
	}

	preds := compileFilters(ds, req.Filters)
	rows, err := e.filterRows(ctx, ds, preds)
	if err != nil {
		return nil, err
	}

	if req.SortColumn != "" {
		sortCol, _ := ds.Column(req.SortColumn)
		sortRows(rows, sortCol, req.SortDesc)
	}

	var warnings []string

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = e.cfg.DefaultPageSize
	}
	if pageSize > e.cfg.TablePageCeiling {
		warnings = append(warnings, fmt.Sprintf(
			"page size %s clamped to the maximum of %s rows",
			formatCount(req.PageSize), formatCount(e.cfg.TablePageCeiling)))
		pageSize = e.cfg.TablePageCeiling
	}

	totalRows := len(rows)
	totalPages := 0
	if totalRows > 0 {
		totalPages = (totalRows + pageSize - 1) / pageSize
	}

	page := req.Page
	if totalPages > 0 {
		if page >= totalPages {
			warnings = append(warnings, fmt.Sprintf(
				"page %d is out of range, clamped to %d", req.Page, totalPages-1))
			page = totalPages - 1
		}
		if page < 0 {
			warnings = append(warnings, fmt.Sprintf(
				"page %d is out of range, clamped to 0", req.Page))
			page = 0
		}
	} else {
		page = 0
	}

	columns := req.Columns
	if len(columns) == 0 {
		columns = ds.Schema().Names()
	}
	cols := make([]*dataset.Column, len(columns))
	for i, name := range columns {
		cols[i], _ = ds.Column(name)
	}

	lo := page * pageSize
	hi := lo + pageSize
	if hi > totalRows {
		hi = totalRows
	}
	out := make([][]interface{}, 0, hi-lo)
	for _, row := range rows[lo:hi] {
		cells := make([]interface{}, len(cols))
		for i, col := range cols {
			cells[i] = col.Value(row)
		}
		out = append(out, cells)
	}

	return &models.TablePage{
		Columns:    columns,
		Rows:       out,
		TotalRows:  totalRows,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Warning:    strings.Join(warnings, "; "),
	}, nil
}

// sortRows orders row indices on one column, stably, with null cells last
// regardless of direction.
func sortRows(rows []int, col *dataset.Column, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		na, nb := col.IsNull(a), col.IsNull(b)
		if na || nb {
			return !na && nb
		}
		cmp := col.Compare(a, b)
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}
