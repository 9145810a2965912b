package sizeinterp

import "testing"

func sum(perLevel []float64) float64 {
	var s float64
	for _, v := range perLevel {
		s += v
	}
	return s
}

func max(perLevel []float64) float64 {
	var m float64
	for _, v := range perLevel {
		if v > m {
			m = v
		}
	}
	return m
}

func twoSignMagnitudeLevels() []Level {
	return []Level{
		{
			// coarse level: expensive to refine, small error to begin with
			G:     []float64{10, 8, 2, 0},
			Sizes: []int{1, 50, 50, 50},
			Step:  1,
		},
		{
			// fine level: cheap, large error reduction per byte
			G:     []float64{40, 5, 1, 0},
			Sizes: []int{1, 5, 5, 5},
			Step:  1,
		},
	}
}

func TestGreedyPrefersCheaperHigherGainLevelFirst(t *testing.T) {
	levels := twoSignMagnitudeLevels()
	plan, err := Greedy(levels, sum, 20)
	if err != nil {
		t.Fatalf("Greedy: %v", err)
	}
	if plan.Prefixes[1] == 0 {
		t.Fatalf("expected the cheap, high-gain level to be retrieved first: prefixes=%v", plan.Prefixes)
	}
	if plan.Achieved > 20 {
		t.Fatalf("Achieved = %v, exceeds tolerance 20", plan.Achieved)
	}
}

func TestGreedyStopsAsSoonAsToleranceIsMet(t *testing.T) {
	levels := twoSignMagnitudeLevels()
	plan, err := Greedy(levels, sum, 50)
	if err != nil {
		t.Fatalf("Greedy: %v", err)
	}
	if plan.Achieved > 50 {
		t.Fatalf("Achieved = %v, exceeds tolerance 50", plan.Achieved)
	}
	if plan.Prefixes[0] != 0 || plan.Prefixes[1] != 0 {
		t.Fatalf("expected no retrieval necessary when starting error already meets tolerance, got %v", plan.Prefixes)
	}
	if plan.TotalBytes != 0 {
		t.Fatalf("TotalBytes = %d, want 0", plan.TotalBytes)
	}
}

func TestGreedyRetrievesEverythingWhenToleranceIsZero(t *testing.T) {
	levels := twoSignMagnitudeLevels()
	plan, err := Greedy(levels, max, 0)
	if err != nil {
		t.Fatalf("Greedy: %v", err)
	}
	for i, lv := range levels {
		if plan.Prefixes[i] != lv.planeCount() {
			t.Fatalf("level %d prefix = %d, want full retrieval %d", i, plan.Prefixes[i], lv.planeCount())
		}
	}
	if plan.Achieved != 0 {
		t.Fatalf("Achieved = %v, want 0 at full retrieval", plan.Achieved)
	}
}

func TestNegabinaryAdvancesTwoPlanesPerStep(t *testing.T) {
	levels := []Level{
		{
			G:     []float64{10, 10, 6, 6, 0},
			Sizes: []int{0, 3, 3, 3, 3},
			Step:  2,
		},
	}
	plan, err := Greedy(levels, max, 7)
	if err != nil {
		t.Fatalf("Greedy: %v", err)
	}
	if plan.Prefixes[0]%2 != 0 {
		t.Fatalf("negabinary prefix %d is not a multiple of the 2-plane step", plan.Prefixes[0])
	}
	if plan.Prefixes[0] != 2 {
		t.Fatalf("prefix = %d, want 2 (enough to drop error from 10 to 6)", plan.Prefixes[0])
	}
}

func TestRoundRobinAdvancesLevelsInTurn(t *testing.T) {
	levels := twoSignMagnitudeLevels()
	plan, err := RoundRobin(levels, max, 3)
	if err != nil {
		t.Fatalf("RoundRobin: %v", err)
	}
	if plan.Achieved > 3 {
		t.Fatalf("Achieved = %v, exceeds tolerance 3", plan.Achieved)
	}
}

func TestInOrderExhaustsFirstLevelBeforeSecond(t *testing.T) {
	levels := twoSignMagnitudeLevels()
	plan, err := InOrder(levels, max, 1)
	if err != nil {
		t.Fatalf("InOrder: %v", err)
	}
	if plan.Prefixes[0] != levels[0].planeCount() {
		t.Fatalf("expected level 0 fully retrieved before level 1 starts, prefixes=%v", plan.Prefixes)
	}
}

func TestValidateRejectsEmptyLevels(t *testing.T) {
	if _, err := Greedy(nil, sum, 0); err == nil {
		t.Fatal("expected error for no levels")
	}
}

func TestValidateRejectsSizeLengthMismatch(t *testing.T) {
	levels := []Level{{G: []float64{1, 0}, Sizes: []int{1}, Step: 1}}
	if _, err := Greedy(levels, sum, 0); err == nil {
		t.Fatal("expected error for mismatched G/Sizes lengths")
	}
}

func TestValidateRejectsBadStep(t *testing.T) {
	levels := []Level{{G: []float64{1, 0}, Sizes: []int{0, 1}, Step: 3}}
	if _, err := Greedy(levels, sum, 0); err == nil {
		t.Fatal("expected error for invalid step")
	}
}
