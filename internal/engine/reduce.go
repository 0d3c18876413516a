package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/prismview/prism/pkg/models"
)

// OtherBucket is the synthetic category that absorbs groups folded away by
// top-N reduction.
const OtherBucket = "Other"

// reduceCategorical bounds a categorical (bar/pie) result to the budget by
// keeping the budget-1 largest categories and folding the rest into a
// single "Other" bucket. The fold is the only place reduction is allowed to
// synthesize a value; every kept value is exactly what the aggregator
// produced.
func reduceCategorical(a *aggregated, budget, ceiling int) models.ReductionInfo {
	n := a.pointCount()
	if n <= budget {
		return noReduction(n)
	}

	keepCount := budget - 1
	if keepCount < 1 {
		keepCount = 1
	}

	// Rank by magnitude of the primary series, ties by category key
	// ascending so the selection is deterministic.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	primary := a.values[0]
	sort.SliceStable(idx, func(i, j int) bool {
		mi, mj := math.Abs(primary[idx[i]]), math.Abs(primary[idx[j]])
		if mi != mj {
			return mi > mj
		}
		return a.labels[idx[i]] < a.labels[idx[j]]
	})

	kept := append([]int(nil), idx[:keepCount]...)
	folded := idx[keepCount:]
	cutoff := primary[kept[len(kept)-1]]

	// Preserve the aggregator's ordering among kept categories; "Other"
	// always renders last.
	sort.Ints(kept)

	labels := make([]string, 0, keepCount+1)
	values := make([][]float64, len(a.values))
	for si := range values {
		values[si] = make([]float64, 0, keepCount+1)
	}
	for _, i := range kept {
		labels = append(labels, a.labels[i])
		for si := range a.values {
			values[si] = append(values[si], a.values[si][i])
		}
	}
	labels = append(labels, OtherBucket)
	for si := range a.values {
		var sum float64
		for _, i := range folded {
			sum += a.values[si][i]
		}
		values[si] = append(values[si], sum)
	}

	a.labels = labels
	a.values = values
	a.xIsNumeric = false
	a.xNumeric = nil

	warning := fmt.Sprintf("Showing top %d of %s categories; the remaining %s are folded into %q",
		keepCount, formatCount(n), formatCount(len(folded)), OtherBucket)
	if n > ceiling {
		warning += fmt.Sprintf(". Group count %s exceeds the safety ceiling of %s",
			formatCount(n), formatCount(ceiling))
	}

	return models.ReductionInfo{
		Reduced:             true,
		Reason:              models.ReductionTopN,
		OriginalCardinality: n,
		ReturnedPoints:      len(labels),
		TopNCutoff:          &cutoff,
		WarningMessage:      warning,
	}
}

// reduceContinuous bounds a continuous (line/area/scatter) result by
// deterministic systematic sampling: every k-th point of the stably ordered
// sequence with k = ceil(n/budget), always keeping the first and last point.
// The selection depends only on the sequence and the budget, never on time
// or randomness, so identical inputs always yield the identical subset.
func reduceContinuous(a *aggregated, budget int) models.ReductionInfo {
	n := a.pointCount()
	if n <= budget {
		return noReduction(n)
	}

	k := (n + budget - 1) / budget
	var picked []int
	for i := 0; i < n; i += k {
		picked = append(picked, i)
	}
	if picked[len(picked)-1] != n-1 {
		picked = append(picked, n-1)
	}

	labels := make([]string, len(picked))
	var xNumeric []float64
	if a.xIsNumeric {
		xNumeric = make([]float64, len(picked))
	}
	values := make([][]float64, len(a.values))
	for si := range values {
		values[si] = make([]float64, len(picked))
	}
	for out, i := range picked {
		labels[out] = a.labels[i]
		if a.xIsNumeric {
			xNumeric[out] = a.xNumeric[i]
		}
		for si := range a.values {
			values[si][out] = a.values[si][i]
		}
	}
	a.labels = labels
	a.xNumeric = xNumeric
	a.values = values

	ratio := float64(budget) / float64(n)
	return models.ReductionInfo{
		Reduced:             true,
		Reason:              models.ReductionSampled,
		OriginalCardinality: n,
		ReturnedPoints:      len(picked),
		SampleRatio:         ratio,
		WarningMessage: fmt.Sprintf("Showing a %.1f%% systematic sample (%s of %s points)",
			ratio*100, formatCount(len(picked)), formatCount(n)),
	}
}

func noReduction(points int) models.ReductionInfo {
	return models.ReductionInfo{
		Reduced:             false,
		Reason:              models.ReductionNone,
		OriginalCardinality: points,
		ReturnedPoints:      points,
	}
}

// formatCount renders a count with thousands separators for warnings.
func formatCount(n int) string {
	if n < 0 {
		return "-" + formatCount(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
