// Package sizeinterp chooses, given a tolerance and each level's weighted
// error table and per-component byte sizes, which prefix of bit-planes
// to retrieve from every level.
//
// Grounded on refactor.hpp's refactored_data_reorganization_greedy_shuffling/
// ..._round_robin/..._in_order family and spec.md §4.6's SignExcludeGreedyBased
// description.
package sizeinterp

import (
	"container/heap"
	"fmt"

	"github.com/mdr-go/mdr/internal/mdrerr"
)

// Level is one level's weighted error table and per-component byte
// sizes, as produced by internal/errorest and internal/lossless.
type Level struct {
	// G holds g_i(0..P), the level's estimator-weighted error
	// contribution at each retrieved-bit-plane count. Must be
	// non-increasing, with G[P] == 0 at full retrieval.
	G []float64
	// Sizes holds the post-compression byte size of each stored
	// component: Sizes[0] is the prepended sign/starting-bitplane
	// component (0 for a negabinary-coded level), Sizes[1..P] are the P
	// bit-plane components.
	Sizes []int
	// Step is how many bit-planes one retrieval step advances: 1 for
	// sign-magnitude, 2 for negabinary.
	Step int
}

func (lv Level) planeCount() int { return len(lv.G) - 1 }

// cumulative returns the byte cost of retrieving the first p bit-planes
// of this level, per the convention that a level's first advance
// implicitly includes its prepended component: cumulative(0) == 0, and
// cumulative(p) for p >= 1 includes Sizes[0] exactly once.
func (lv Level) cumulative(p int) int {
	if p <= 0 {
		return 0
	}
	total := lv.Sizes[0]
	for k := 1; k <= p; k++ {
		total += lv.Sizes[k]
	}
	return total
}

// Plan is a retrieval schedule: how many bit-planes to retrieve from
// each level, and the total byte budget that requires.
type Plan struct {
	Prefixes   []int
	TotalBytes int
	Achieved   float64
}

// Combiner reduces one weighted error value per level into the single
// global scalar compared against a caller's tolerance — the Combine
// method of an internal/errorest.Estimator.
type Combiner func(perLevel []float64) float64

type candidate struct {
	level int
	from  int
	gain  float64
	cost  int
}

func ratio(c *candidate) float64 {
	if c.cost <= 0 {
		return c.gain * 1e18
	}
	return c.gain / float64(c.cost)
}

type candidateHeap []*candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	gi, gj := ratio(h[i]), ratio(h[j])
	if gi != gj {
		return gi > gj
	}
	return h[i].level < h[j].level
}
func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)   { *h = append(*h, x.(*candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// Greedy implements SignExcludeGreedyBased: repeatedly advance whichever
// level's next retrieval step yields the largest marginal error
// reduction per byte, until combine reaches tolerance or every level is
// fully retrieved. Ties are broken by smaller level index.
func Greedy(levels []Level, combine Combiner, tolerance float64) (Plan, error) {
	if err := validate(levels); err != nil {
		return Plan{}, err
	}
	n := len(levels)
	prefixes := make([]int, n)
	current := make([]float64, n)
	for i, lv := range levels {
		current[i] = lv.G[0]
	}

	h := &candidateHeap{}
	heap.Init(h)
	for i, lv := range levels {
		if c := nextCandidate(i, lv, 0); c != nil {
			heap.Push(h, c)
		}
	}

	total := 0
	for h.Len() > 0 && combine(current) > tolerance {
		c := heap.Pop(h).(*candidate)
		lv := levels[c.level]
		to := c.from + lv.Step
		if to > lv.planeCount() {
			to = lv.planeCount()
		}
		prefixes[c.level] = to
		current[c.level] = lv.G[to]
		total += c.cost
		if nc := nextCandidate(c.level, lv, to); nc != nil {
			heap.Push(h, nc)
		}
	}

	return Plan{Prefixes: prefixes, TotalBytes: total, Achieved: combine(current)}, nil
}

func nextCandidate(levelIdx int, lv Level, from int) *candidate {
	if from >= lv.planeCount() {
		return nil
	}
	to := from + lv.Step
	if to > lv.planeCount() {
		to = lv.planeCount()
	}
	return &candidate{
		level: levelIdx,
		from:  from,
		gain:  lv.G[from] - lv.G[to],
		cost:  lv.cumulative(to) - lv.cumulative(from),
	}
}

// RoundRobin advances every level's prefix by one step in turn until
// tolerance is met or every level is exhausted.
func RoundRobin(levels []Level, combine Combiner, tolerance float64) (Plan, error) {
	return fixedSchedule(levels, combine, tolerance, true)
}

// InOrder advances level 0 to completion, then level 1, and so on, until
// tolerance is met or every level is exhausted.
func InOrder(levels []Level, combine Combiner, tolerance float64) (Plan, error) {
	return fixedSchedule(levels, combine, tolerance, false)
}

func fixedSchedule(levels []Level, combine Combiner, tolerance float64, roundRobin bool) (Plan, error) {
	if err := validate(levels); err != nil {
		return Plan{}, err
	}
	n := len(levels)
	prefixes := make([]int, n)
	current := make([]float64, n)
	for i, lv := range levels {
		current[i] = lv.G[0]
	}
	total := 0
	advance := func(i int) bool {
		lv := levels[i]
		from := prefixes[i]
		if from >= lv.planeCount() {
			return false
		}
		to := from + lv.Step
		if to > lv.planeCount() {
			to = lv.planeCount()
		}
		total += lv.cumulative(to) - lv.cumulative(from)
		prefixes[i] = to
		current[i] = lv.G[to]
		return true
	}

	if roundRobin {
		for combine(current) > tolerance {
			advancedAny := false
			for i := range levels {
				if combine(current) <= tolerance {
					break
				}
				if advance(i) {
					advancedAny = true
				}
			}
			if !advancedAny {
				break
			}
		}
	} else {
		for i := range levels {
			if combine(current) <= tolerance {
				break
			}
			for combine(current) > tolerance && advance(i) {
			}
		}
	}
	return Plan{Prefixes: prefixes, TotalBytes: total, Achieved: combine(current)}, nil
}

func validate(levels []Level) error {
	if len(levels) == 0 {
		return fmt.Errorf("sizeinterp: no levels: %w", mdrerr.ErrPrecondition)
	}
	for i, lv := range levels {
		if len(lv.Sizes) != len(lv.G) {
			return fmt.Errorf("sizeinterp: level %d has %d error entries but %d size entries: %w", i, len(lv.G), len(lv.Sizes), mdrerr.ErrPrecondition)
		}
		if lv.Step != 1 && lv.Step != 2 {
			return fmt.Errorf("sizeinterp: level %d has invalid step %d: %w", i, lv.Step, mdrerr.ErrPrecondition)
		}
	}
	return nil
}
