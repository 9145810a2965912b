// Package errorest computes, per level, how much retrieving only a
// prefix of bit-planes contributes to the overall reconstruction error,
// and weights those per-level tables into the one global-metric scalar
// the size interpreter optimizes against.
//
// Grounded on refactor.hpp's record_level_max_e/record_level_mse error
// bookkeeping and spec.md §4.5's max_error/squared_error formulas. Rather
// than reimplementing the per-element omission-error arithmetic
// separately from internal/bitplane (as the original source's standalone
// record_level_max_e/record_level_mse functions do), the collectors here
// drive internal/bitplane's own Decode at every prefix length and measure
// against the source level buffer — the two are defined to agree by
// construction, so there is no separate formula to keep in sync.
package errorest

import (
	"fmt"
	"math"

	"github.com/mdr-go/mdr/internal/bitplane"
	"github.com/mdr-go/mdr/internal/mdrerr"
)

// Collector produces a per-prefix-length error table for one level.
type Collector interface {
	// Table returns err[0..P], where err[k] is this collector's error
	// metric when only the first k bit-planes of pl are retrieved.
	Table(orig []float64, pl *bitplane.Planes) ([]float64, error)
}

// MaxError collects max_error(B, n, P, M): the maximum absolute
// reconstruction error over all elements at each prefix length.
type MaxError struct{}

func (MaxError) Table(orig []float64, pl *bitplane.Planes) ([]float64, error) {
	return collect(orig, pl, func(diffs []float64) float64 {
		var m float64
		for _, d := range diffs {
			if d > m {
				m = d
			}
		}
		return m
	})
}

// SquaredError collects squared_error(B, n, P, e): the sum of squared
// reconstruction errors over all elements at each prefix length.
type SquaredError struct{}

func (SquaredError) Table(orig []float64, pl *bitplane.Planes) ([]float64, error) {
	return collect(orig, pl, func(diffs []float64) float64 {
		var s float64
		for _, d := range diffs {
			s += d * d
		}
		return s
	})
}

func collect(orig []float64, pl *bitplane.Planes, reduce func([]float64) float64) ([]float64, error) {
	if len(orig) != pl.N {
		return nil, fmt.Errorf("errorest: level has %d elements, table source has %d: %w", pl.N, len(orig), mdrerr.ErrPrecondition)
	}
	out := make([]float64, pl.P+1)
	diffs := make([]float64, pl.N)
	for k := 0; k <= pl.P; k++ {
		approx, err := pl.Decode(k)
		if err != nil {
			return nil, err
		}
		for j, v := range approx {
			diffs[j] = math.Abs(orig[j] - v)
		}
		out[k] = reduce(diffs)
	}
	return out, nil
}

// Estimator weights a set of per-level error tables into one global
// metric contribution.
type Estimator interface {
	// Weight returns c_i, the level weight applied before combining.
	Weight(levelIndex int) float64
	// Combine reduces one value per level (already weighted and, for
	// SquaredError tables, already reduced by this estimator) into the
	// single scalar compared against the caller's tolerance.
	Combine(perLevel []float64) float64
}

// LInf implements the L∞ estimator: g_i(k) = c_i * err_max_i(k), combined
// by taking the maximum across levels.
type LInf struct {
	// Weights holds c_i per level; a nil or short entry defaults to 1.
	Weights []float64
}

func (e LInf) Weight(levelIndex int) float64 {
	if levelIndex < len(e.Weights) {
		return e.Weights[levelIndex]
	}
	return 1
}

func (e LInf) Combine(perLevel []float64) float64 {
	var m float64
	for _, v := range perLevel {
		if v > m {
			m = v
		}
	}
	return m
}

// Sobolev implements the Sobolev-s estimator: g_i(k) = c_i(s) *
// sqrt(err_sq_i(k)), combined as an L2 norm across levels. c_i(s) grows
// with the level's refinement depth the way a wavelet coefficient's
// contribution to the H^s Sobolev norm grows with scale: finer levels
// (larger depth) are weighted by 2^(2*s*depth/rank).
type Sobolev struct {
	S      float64
	Levels int
	Rank   int
}

func (e Sobolev) Weight(levelIndex int) float64 {
	// depth is the level's distance from the coarsest level (index 0,
	// per spec.md §3's G0..GL / transform.LevelBoxes convention), so the
	// finest level (index e.Levels) gets the largest depth and thus the
	// largest weight.
	depth := levelIndex
	rank := e.Rank
	if rank < 1 {
		rank = 1
	}
	return math.Pow(2, 2*e.S*float64(depth)/float64(rank))
}

func (e Sobolev) Combine(perLevel []float64) float64 {
	var sumSq float64
	for _, v := range perLevel {
		sumSq += v * v
	}
	return math.Sqrt(sumSq)
}

// Weighted applies an estimator's per-level weight to a squared-error
// table, taking the square root so the result is directly comparable
// across levels (used ahead of Sobolev.Combine).
func Weighted(est Estimator, levelIndex int, errAtK float64, squared bool) float64 {
	v := errAtK
	if squared {
		v = math.Sqrt(v)
	}
	return est.Weight(levelIndex) * v
}
