package errorest

import (
	"math"
	"math/rand"
	"testing"

	"github.com/mdr-go/mdr/internal/bitplane"
)

func sample(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = (r.Float64()*2 - 1) * 50
	}
	return out
}

func TestMaxErrorTableIsNonIncreasing(t *testing.T) {
	data := sample(128, 1)
	pl, err := bitplane.Encode(data, 20, bitplane.SignMagnitude)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	table, err := MaxError{}.Table(data, pl)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if len(table) != 21 {
		t.Fatalf("table length = %d, want 21", len(table))
	}
	for k := 1; k < len(table); k++ {
		if table[k] > table[k-1]+1e-9 {
			t.Fatalf("err_max increased at k=%d: %v > %v", k, table[k], table[k-1])
		}
	}
	if table[20] > 1e-6 {
		t.Fatalf("err_max at full retrieval = %v, want ~0", table[20])
	}
}

func TestSquaredErrorTableIsNonIncreasing(t *testing.T) {
	data := sample(128, 2)
	pl, err := bitplane.Encode(data, 20, bitplane.Negabinary)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	table, err := SquaredError{}.Table(data, pl)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	for k := 1; k < len(table); k++ {
		if table[k] > table[k-1]+1e-9 {
			t.Fatalf("err_sq increased at k=%d: %v > %v", k, table[k], table[k-1])
		}
	}
}

func TestLInfCombineTakesMax(t *testing.T) {
	e := LInf{}
	if got, want := e.Combine([]float64{1, 5, 3}), 5.0; got != want {
		t.Errorf("Combine = %v, want %v", got, want)
	}
}

func TestSobolevWeightGrowsWithDepth(t *testing.T) {
	e := Sobolev{S: 1, Levels: 4, Rank: 3}
	wCoarse := e.Weight(0) // coarsest level (spec's G0), depth 0
	wFine := e.Weight(4)   // finest level (spec's GL, e.Levels), depth 4
	if wFine <= wCoarse {
		t.Fatalf("expected finer level weight (%v) > coarser level weight (%v)", wFine, wCoarse)
	}
}

func TestSobolevCombineIsL2Norm(t *testing.T) {
	e := Sobolev{S: 0, Levels: 1, Rank: 1}
	got := e.Combine([]float64{3, 4})
	if math.Abs(got-5) > 1e-9 {
		t.Errorf("Combine([3,4]) = %v, want 5", got)
	}
}

func TestTableRejectsLengthMismatch(t *testing.T) {
	data := sample(16, 3)
	pl, err := bitplane.Encode(data, 8, bitplane.SignMagnitude)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := (MaxError{}).Table(data[:8], pl); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}
