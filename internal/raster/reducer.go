package raster

import (
	"fmt"
	"math"
	"slices"
)

type reducer struct {
	kind        string
	percentiles []float64
	left, right *reducer
}

func (r reducer) outputs() []string {
	switch r.kind {
	case "percentile":
		names := make([]string, len(r.percentiles))
		for i, p := range r.percentiles {
			names[i] = fmt.Sprintf("p%s", trimFloat(p))
		}
		return names
	case "combine":
		return append(r.left.outputs(), r.right.outputs()...)
	default:
		return []string{r.kind}
	}
}

// apply reduces values, in pixel or image order, to one result per output.
// An empty input yields nil results.
func (r reducer) apply(values []float64) []any {
	if r.kind == "combine" {
		return append(r.left.apply(values), r.right.apply(values)...)
	}
	out := make([]any, len(r.outputs()))
	if len(values) == 0 {
		return out
	}
	switch r.kind {
	case "mean":
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		out[0] = sum / float64(len(values))
	case "max":
		out[0] = slices.Max(values)
	case "min":
		out[0] = slices.Min(values)
	case "first":
		out[0] = values[0]
	case "percentile":
		sorted := slices.Clone(values)
		slices.Sort(sorted)
		for i, p := range r.percentiles {
			out[i] = Percentile(sorted, p)
		}
	}
	return out
}

// Percentile interpolates linearly between the closest ranks of sorted.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		return sorted[0]
	}
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func trimFloat(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
