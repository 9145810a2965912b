// Package bitplane extracts and reconstructs one level's coefficients as a
// stack of bit-planes relative to the level's own maximum-magnitude
// exponent, so that retrieving a prefix of planes yields a bounded-error
// approximation of the full level.
//
// Two codecs are provided. SignMagnitude folds each coefficient's sign
// into the bit-plane where it first becomes significant, rather than
// storing sign bits separately, since the magnitude bit at that position
// is always 1 and would otherwise be redundant. Negabinary represents
// coefficients in base -2 and carries no sign bit at all, at the cost of
// requiring an even plane count.
//
// Grounded on internal/entropy/t1.go's pooling and flag-array conventions
// and internal/bio/bio.go's bit-level primitives, generalized here from a
// single-bit stream to a fixed plane count packed word-wise. Exponent
// extraction uses math.Frexp/math.Ldexp rather than any bit-twiddling on
// the float's raw representation, so bit-planes are portable across
// platforms.
package bitplane

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/mdr-go/mdr/internal/mdrerr"
	"github.com/mdr-go/mdr/internal/transform"
)

// Codec selects the signed-integer representation bit-planes are drawn
// from.
type Codec int

const (
	// SignMagnitude stores a magnitude bit-plane stack plus a per-element
	// starting-bitplane index; sign is folded into the starting plane.
	SignMagnitude Codec = iota
	// Negabinary stores a base-(-2) bit-plane stack with no separate sign.
	Negabinary
)

const wordBits = 64

// Planes holds one level's encoded bit-plane stack.
type Planes struct {
	Codec    Codec
	N        int // element count
	P        int // number of encoded bit-planes
	Exponent int // e: exponent of the level's maximum magnitude

	// Starting holds, per element, the index of the first bit-plane at
	// which that element becomes non-zero, clamped to P. Sign-magnitude
	// only; nil for Negabinary.
	Starting []byte

	// Bits holds P bit-plane streams, each packed MSB-first into
	// ceil(N/64) words.
	Bits [][]uint64
}

func wordsFor(n int) int { return (n + wordBits - 1) / wordBits }

func setBit(words []uint64, j, bit int) {
	if bit == 0 {
		return
	}
	words[j/wordBits] |= uint64(1) << uint(wordBits-1-j%wordBits)
}

func getBit(words []uint64, j int) int {
	return int((words[j/wordBits] >> uint(wordBits-1-j%wordBits)) & 1)
}

// Encode extracts p bit-planes from data using the given codec.
func Encode[F transform.Float](data []F, p int, codec Codec) (*Planes, error) {
	var zero F
	maxP := int(unsafe.Sizeof(zero)) * 8
	if err := validate(len(data), p, maxP, codec); err != nil {
		return nil, err
	}

	n := len(data)
	levelMax := 0.0
	for _, v := range data {
		if a := math.Abs(float64(v)); a > levelMax {
			levelMax = a
		}
	}
	_, exp := math.Frexp(levelMax)

	pl := &Planes{Codec: codec, N: n, P: p, Exponent: exp}
	pl.Bits = make([][]uint64, p)
	for k := range pl.Bits {
		pl.Bits[k] = make([]uint64, wordsFor(n))
	}
	switch codec {
	case Negabinary:
		encodeNegabinary(data, pl)
	default:
		pl.Starting = make([]byte, n)
		encodeSignMagnitude(data, pl)
	}
	return pl, nil
}

func encodeSignMagnitude[F transform.Float](data []F, pl *Planes) {
	scale := math.Ldexp(1, pl.P-pl.Exponent)
	maxIC := uint64(1)<<uint(pl.P) - 1
	for j, v := range data {
		x := float64(v)
		sign := 0
		if x < 0 {
			sign = 1
		}
		ic := uint64(math.Round(math.Abs(x) * scale))
		if ic > maxIC {
			ic = maxIC
		}
		start := pl.P
		for k := 0; k < pl.P; k++ {
			if (ic>>uint(pl.P-1-k))&1 != 0 {
				start = k
				break
			}
		}
		pl.Starting[j] = byte(start)
		for k := start; k < pl.P; k++ {
			if k == start {
				setBit(pl.Bits[k], j, sign)
				continue
			}
			setBit(pl.Bits[k], j, int((ic>>uint(pl.P-1-k))&1))
		}
	}
}

func encodeNegabinary[F transform.Float](data []F, pl *Planes) {
	// P base-(-2) digits span roughly [-2^(P+1)/3, 2^P/3], so magnitudes
	// below 2^Exponent are scaled to below 2^(P-2) to stay representable.
	scale := math.Ldexp(1, pl.P-2-pl.Exponent)
	half := int64(1) << uint(pl.P-1)
	for j, v := range data {
		ic := int64(math.Round(float64(v) * scale))
		if ic >= half {
			ic = half - 1
		}
		if ic < -half {
			ic = -half
		}
		digits := toNegabinary(ic, pl.P)
		for k, d := range digits {
			setBit(pl.Bits[k], j, d)
		}
	}
}

// Decode reconstructs N float64 values using the first p bit-planes,
// p <= pl.P. Elements not yet significant within p planes decode to 0,
// giving the worst-case error bound named in the component design:
// 2^(Exponent-p) for sign-magnitude, a comparable bound for negabinary.
func (pl *Planes) Decode(p int) ([]float64, error) {
	if p < 0 || p > pl.P {
		return nil, fmt.Errorf("bitplane: retrieval count %d exceeds encoded count %d: %w", p, pl.P, mdrerr.ErrPrecondition)
	}
	out := make([]float64, pl.N)
	switch pl.Codec {
	case Negabinary:
		decodeNegabinary(pl, p, out)
	default:
		decodeSignMagnitude(pl, p, out)
	}
	return out, nil
}

func decodeSignMagnitude(pl *Planes, p int, out []float64) {
	shift := pl.Exponent - pl.P
	for j := range out {
		start := int(pl.Starting[j])
		if start >= p {
			continue
		}
		var ic uint64
		sign := 1.0
		for k := start; k < p; k++ {
			if k == start {
				ic |= uint64(1) << uint(pl.P-1-k)
				if getBit(pl.Bits[k], j) != 0 {
					sign = -1
				}
				continue
			}
			ic |= uint64(getBit(pl.Bits[k], j)) << uint(pl.P-1-k)
		}
		out[j] = sign * math.Ldexp(float64(ic), shift)
	}
}

func decodeNegabinary(pl *Planes, p int, out []float64) {
	shift := pl.Exponent + 2 - pl.P
	digits := make([]int, pl.P)
	for j := range out {
		for k := range digits {
			digits[k] = 0
		}
		for k := 0; k < p; k++ {
			digits[k] = getBit(pl.Bits[k], j)
		}
		out[j] = math.Ldexp(float64(fromNegabinary(digits)), shift)
	}
}

// toNegabinary converts v into exactly bits base-(-2) digits, MSB first
// (out[0] carries weight (-2)^(bits-1), out[bits-1] carries weight 1).
func toNegabinary(v int64, bits int) []int {
	out := make([]int, bits)
	n := v
	for i := bits - 1; i >= 0; i-- {
		rem := n % 2
		if rem < 0 {
			rem += 2
		}
		out[i] = int(rem)
		n = -(n - rem) / 2
	}
	return out
}

func fromNegabinary(digits []int) int64 {
	var v int64
	weight := int64(1)
	for i := len(digits) - 1; i >= 0; i-- {
		v += int64(digits[i]) * weight
		weight *= -2
	}
	return v
}

// ExponentOf returns the bit-plane exponent e for a level whose maximum
// absolute coefficient is levelMax, using the same math.Frexp convention
// Encode uses — callers that persist levelMax (the metadata's M_i field)
// instead of e itself can recover e deterministically at reconstruction
// time.
func ExponentOf(levelMax float64) int {
	_, e := math.Frexp(levelMax)
	return e
}

// PlaneBytes serializes bit-plane k's packed words to bytes, one
// little-endian uint64 per word, for storage in a level's component
// file.
func (pl *Planes) PlaneBytes(k int) []byte {
	words := pl.Bits[k]
	out := make([]byte, len(words)*8)
	for i, w := range words {
		binary.LittleEndian.PutUint64(out[i*8:], w)
	}
	return out
}

// DecodePlanes rebuilds a Planes value from components read back from
// storage: the full encoded plane count p (from the metadata), and the
// raw bytes of however many leading planes were actually retrieved
// (retrieved may be less than p). starting is nil for Negabinary.
func DecodePlanes(codec Codec, n, p, exponent int, starting []byte, retrievedPlaneBytes [][]byte) *Planes {
	pl := &Planes{Codec: codec, N: n, P: p, Exponent: exponent, Starting: starting}
	pl.Bits = make([][]uint64, p)
	for k, b := range retrievedPlaneBytes {
		words := make([]uint64, wordsFor(n))
		for i := range words {
			if (i+1)*8 <= len(b) {
				words[i] = binary.LittleEndian.Uint64(b[i*8:])
			}
		}
		pl.Bits[k] = words
	}
	return pl
}

func validate(n, p, maxP int, codec Codec) error {
	if n <= 0 {
		return fmt.Errorf("bitplane: empty level: %w", mdrerr.ErrPrecondition)
	}
	if p <= 0 || p > maxP {
		return fmt.Errorf("bitplane: bit-plane count %d exceeds element width %d: %w", p, maxP, mdrerr.ErrPrecondition)
	}
	if codec == Negabinary && p%2 != 0 {
		return fmt.Errorf("bitplane: negabinary requires an even bit-plane count, got %d: %w", p, mdrerr.ErrPrecondition)
	}
	return nil
}
