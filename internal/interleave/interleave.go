// Package interleave gathers a level's fine-only coefficients out of a
// decomposed array into a contiguous buffer, and scatters them back.
//
// Ported from the source system's DirectInterleaver (a plain row-major
// traversal of the fine box that skips any cell that is also inside the
// coarse box), generalized here to 1, 2, or 3 axes and to an optional
// space-filling-curve traversal order.
package interleave

import (
	"fmt"

	"github.com/mdr-go/mdr/internal/mdrerr"
)

// Variant selects the traversal order used to walk the fine box.
type Variant int

const (
	// Direct walks the fine box in row-major order.
	Direct Variant = iota
	// SpaceFillingCurve walks the fine box in Morton (Z-order) order,
	// which keeps spatially nearby coefficients close together in the
	// level buffer.
	SpaceFillingCurve
)

// Interleaver gathers/scatters one level's fine-only coefficients.
type Interleaver struct {
	Variant Variant
}

// New returns an Interleaver using the given traversal variant.
func New(v Variant) Interleaver {
	return Interleaver{Variant: v}
}

// Count returns the number of fine-only coefficients for the given fine
// and coarse box extents (n_i = |G_i| - |G_i-1| in the data model).
func Count(fine, coarse []int) (int, error) {
	if err := validateBoxes(fine, coarse); err != nil {
		return 0, err
	}
	total := 1
	for _, d := range fine {
		total *= d
	}
	inCoarse := 1
	for _, d := range coarse {
		inCoarse *= d
	}
	return total - inCoarse, nil
}

// Interleave writes the fine-only coefficients of buf (shaped dims, of
// which only the fine prefix box is populated) into out, in the
// interleaver's traversal order, skipping any cell wholly inside coarse.
func (iv Interleaver) Interleave(buf []float64, dims, fine, coarse []int, out []float64) error {
	return iv.walk(dims, fine, coarse, func(idx, pos int) {
		out[pos] = buf[idx]
	})
}

// Reposition is the exact inverse of Interleave: it writes each buffered
// coefficient back to the cell it came from, leaving other cells
// untouched.
func (iv Interleaver) Reposition(buf []float64, dims, fine, coarse []int, out []float64) error {
	return iv.walk(dims, fine, coarse, func(idx, pos int) {
		out[idx] = buf[pos]
	})
}

func (iv Interleaver) walk(dims, fine, coarse []int, visit func(idx, pos int)) error {
	if err := validateBoxes(fine, coarse); err != nil {
		return err
	}
	if len(dims) != len(fine) {
		return fmt.Errorf("interleave: dims %v and fine box %v rank mismatch: %w", dims, fine, mdrerr.ErrPrecondition)
	}
	s := strides(dims)
	switch iv.Variant {
	case SpaceFillingCurve:
		walkMorton(s, fine, coarse, visit)
	default:
		walkDirect(s, fine, coarse, visit)
	}
	return nil
}

// walkDirect performs the plain row-major traversal: every cell of the
// fine box in index order, skipping cells wholly inside the coarse box.
func walkDirect(s, fine, coarse []int, visit func(idx, pos int)) {
	r := len(fine)
	coord := make([]int, r)
	pos := 0
	var rec func(axis int)
	rec = func(axis int) {
		if axis == r {
			if insideBox(coord, coarse) {
				return
			}
			visit(flatIndex(s, coord), pos)
			pos++
			return
		}
		for c := 0; c < fine[axis]; c++ {
			coord[axis] = c
			rec(axis + 1)
		}
	}
	rec(0)
}

// walkMorton traverses the fine box in Morton (Z-order) order: for each
// axis d, bit b of that axis's coordinate sits at bit position b*r+d of
// the Morton code. Codes are visited in ascending order, skipping any
// decoded coordinate outside the fine box or inside the coarse box, which
// gives a deterministic, self-inverse bijection between Morton code order
// and buffer position.
func walkMorton(s, fine, coarse []int, visit func(idx, pos int)) {
	r := len(fine)
	maxDim := 0
	for _, d := range fine {
		if d > maxDim {
			maxDim = d
		}
	}
	bits := 0
	for (1 << bits) < maxDim {
		bits++
	}
	total := 1 << uint(bits*r)
	coord := make([]int, r)
	pos := 0
	for code := 0; code < total; code++ {
		decodeMorton(code, r, bits, coord)
		inFine := true
		for d := 0; d < r; d++ {
			if coord[d] >= fine[d] {
				inFine = false
				break
			}
		}
		if !inFine || insideBox(coord, coarse) {
			continue
		}
		visit(flatIndex(s, coord), pos)
		pos++
	}
}

func decodeMorton(code, r, bits int, coord []int) {
	for d := range coord {
		coord[d] = 0
	}
	for b := 0; b < bits; b++ {
		for d := 0; d < r; d++ {
			bit := (code >> uint(b*r+d)) & 1
			coord[d] |= bit << uint(b)
		}
	}
}

func insideBox(coord, box []int) bool {
	for d := range coord {
		if coord[d] >= box[d] {
			return false
		}
	}
	return true
}

func flatIndex(s, coord []int) int {
	idx := 0
	for d, c := range coord {
		idx += c * s[d]
	}
	return idx
}

func strides(dims []int) []int {
	r := len(dims)
	s := make([]int, r)
	acc := 1
	for d := r - 1; d >= 0; d-- {
		s[d] = acc
		acc *= dims[d]
	}
	return s
}

func validateBoxes(fine, coarse []int) error {
	if len(fine) != len(coarse) {
		return fmt.Errorf("interleave: fine box %v and coarse box %v rank mismatch: %w", fine, coarse, mdrerr.ErrPrecondition)
	}
	if len(fine) < 1 || len(fine) > 3 {
		return fmt.Errorf("interleave: unsupported dimensionality %d: %w", len(fine), mdrerr.ErrPrecondition)
	}
	for i := range fine {
		if fine[i] < coarse[i] {
			return fmt.Errorf("interleave: coarse box %v exceeds fine box %v: %w", coarse, fine, mdrerr.ErrPrecondition)
		}
	}
	return nil
}
