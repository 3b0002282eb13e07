// Package concentration implements the stake-concentration statistics shared
// by every analysis module: the Herfindahl-Hirschman Index (HHI), the Gini
// coefficient and the Lorenz-curve coordinates rendered by the chart layer.
//
// All functions are pure, never mutate their input and never panic for any
// numeric input, including the empty slice. Degenerate inputs resolve to
// sentinel values, not errors: a zero-sum market has an HHI of 0 but an
// undefined (NaN) Gini coefficient. The two conventions are intentionally
// asymmetric and are pinned by tests.
package concentration

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Summary is the concentration record computed for one analysis group
// (a single LRT protocol, one AVS security market, or the overall market).
type Summary struct {
	Entities   int
	TotalStake float64
	HHI        float64
	Gini       float64 // NaN when undefined
}

// Point is one Lorenz-curve coordinate: the cumulative fraction of entities
// on X against the cumulative fraction of stake on Y, both in [0, 1].
type Point struct {
	X, Y float64
}

// HHI computes the Herfindahl-Hirschman Index of the given stake amounts.
// Shares are expressed on the 0-100 percentage scale, so the result lies in
// (0, 10000] whenever the sum is positive; 10000 means a single entity holds
// the entire market and values near 10000/n indicate near-perfect equality
// among n entities. A zero sum, including the empty input, yields 0.
func HHI(values []float64) float64 {
	total := floats.Sum(values)
	if total == 0 {
		return 0
	}

	var hhi float64
	for _, v := range values {
		share := v / total * 100
		hhi += share * share
	}

	return hhi
}

// Gini computes the Gini coefficient of the given stake amounts with the
// rank-based estimator sum((2i - n - 1) * x_i) / (n * sum(x)) over the
// ascending-sorted values. Negative amounts are invalid for stake and are
// discarded, not clamped. When nothing remains after filtering, or the
// remaining sum is zero, the coefficient is undefined and NaN is returned.
// The result lies in [0, 1): 0 is perfect equality.
func Gini(values []float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= 0 {
			sorted = append(sorted, v)
		}
	}

	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}

	sort.Float64s(sorted)

	total := floats.Sum(sorted)
	if total == 0 {
		return math.NaN()
	}

	var numerator float64
	for i, v := range sorted {
		rank := float64(i + 1)
		numerator += (2*rank - float64(n) - 1) * v
	}

	return numerator / (float64(n) * total)
}

// Summarize computes the full concentration record for one analysis group.
// Both statistics are taken over the same value slice.
func Summarize(values []float64) Summary {
	return Summary{
		Entities:   len(values),
		TotalStake: floats.Sum(values),
		HHI:        HHI(values),
		Gini:       Gini(values),
	}
}

// Lorenz returns the Lorenz-curve coordinates for the given stake amounts:
// entities sorted ascending by stake, with a leading origin point so the
// curve starts at (0, 0). Returns nil when the curve is undefined (no
// entities, or zero total stake).
func Lorenz(values []float64) []Point {
	if len(values) == 0 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	total := floats.Sum(sorted)
	if total <= 0 {
		return nil
	}

	n := len(sorted)
	points := make([]Point, 0, n+1)
	points = append(points, Point{})

	var cumulative float64
	for i, v := range sorted {
		cumulative += v
		points = append(points, Point{
			X: float64(i+1) / float64(n),
			Y: cumulative / total,
		})
	}

	return points
}
