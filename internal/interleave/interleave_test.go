package interleave

import (
	"math/rand"
	"testing"
)

func fullBuf(dims []int, seed int64) []float64 {
	n := 1
	for _, d := range dims {
		n *= d
	}
	r := rand.New(rand.NewSource(seed))
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = r.Float64()
	}
	return buf
}

func TestInterleaveRepositionRoundTrip(t *testing.T) {
	cases := []struct {
		name          string
		dims          []int
		fine          []int
		coarse        []int
	}{
		{"1d", []int{17}, []int{17}, []int{9}},
		{"2d-square", []int{8, 8}, []int{8, 8}, []int{4, 4}},
		{"2d-rect", []int{5, 9}, []int{5, 9}, []int{3, 5}},
		{"3d", []int{4, 5, 6}, []int{4, 5, 6}, []int{2, 3, 3}},
		{"fine-equals-coarse", []int{6, 6}, []int{6, 6}, []int{6, 6}},
	}
	for _, variant := range []Variant{Direct, SpaceFillingCurve} {
		for _, c := range cases {
			t.Run(variantName(variant)+"/"+c.name, func(t *testing.T) {
				iv := New(variant)
				n, err := Count(c.fine, c.coarse)
				if err != nil {
					t.Fatalf("Count: %v", err)
				}
				src := fullBuf(c.dims, 1)
				out := make([]float64, n)
				if err := iv.Interleave(src, c.dims, c.fine, c.coarse, out); err != nil {
					t.Fatalf("Interleave: %v", err)
				}
				dst := make([]float64, len(src))
				if err := iv.Reposition(out, c.dims, c.fine, c.coarse, dst); err != nil {
					t.Fatalf("Reposition: %v", err)
				}
				for i := range src {
					if isInsideCoarse(i, c.dims, c.coarse) {
						continue
					}
					if !isInsideFine(i, c.dims, c.fine) {
						continue
					}
					if dst[i] != src[i] {
						t.Fatalf("round trip mismatch at flat index %d: got %v want %v", i, dst[i], src[i])
					}
				}
			})
		}
	}
}

func TestCountMatchesVisitedCells(t *testing.T) {
	fine := []int{7, 11}
	coarse := []int{4, 6}
	n, err := Count(fine, coarse)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	dims := fine
	src := fullBuf(dims, 2)
	out := make([]float64, n)
	iv := New(Direct)
	if err := iv.Interleave(src, dims, fine, coarse, out); err != nil {
		t.Fatalf("Interleave: %v", err)
	}
	visited := 0
	if err := iv.walk(dims, fine, coarse, func(idx, pos int) { visited++ }); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if visited != n {
		t.Fatalf("Count = %d, but the traversal visited %d cells", n, visited)
	}
	want := 1
	for i := range fine {
		want *= fine[i]
	}
	inCoarse := 1
	for i := range coarse {
		inCoarse *= coarse[i]
	}
	want -= inCoarse
	if n != want {
		t.Fatalf("Count = %d, want %d", n, want)
	}
}

func TestValidateBoxesRejectsBadInput(t *testing.T) {
	iv := New(Direct)
	if _, err := Count([]int{4, 4}, []int{4}); err == nil {
		t.Fatal("expected rank mismatch error")
	}
	if _, err := Count([]int{1, 2, 3, 4}, []int{1, 2, 3, 4}); err == nil {
		t.Fatal("expected unsupported dimensionality error")
	}
	if err := iv.Interleave(nil, []int{4, 4}, []int{4, 4}, []int{6, 6}, nil); err == nil {
		t.Fatal("expected coarse-exceeds-fine error")
	}
}

func variantName(v Variant) string {
	if v == SpaceFillingCurve {
		return "morton"
	}
	return "direct"
}

func isInsideFine(flat int, dims, fine []int) bool {
	coord := unflatten(flat, dims)
	for d := range coord {
		if coord[d] >= fine[d] {
			return false
		}
	}
	return true
}

func isInsideCoarse(flat int, dims, coarse []int) bool {
	coord := unflatten(flat, dims)
	for d := range coord {
		if coord[d] >= coarse[d] {
			return false
		}
	}
	return true
}

func unflatten(flat int, dims []int) []int {
	s := strides(dims)
	coord := make([]int, len(dims))
	for d := range dims {
		coord[d] = (flat / s[d]) % dims[d]
	}
	return coord
}
