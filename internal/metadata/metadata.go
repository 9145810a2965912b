// Package metadata codecs the fixed-layout, little-endian metadata file
// that accompanies a set of level payload files: selection-time state
// (dims, per-level element counts and error bounds, the estimator mode,
// the chosen retrieval order) plus the optional per-bit-plane error
// tables that let a reconstruction choose a tolerance without touching
// any component body.
//
// Grounded on internal/box/box.go's Reader/Writer shape (plain
// io.Reader/io.Writer wrappers, encoding/binary field access,
// io.ReadFull plus %w-wrapped errors) generalized from box.go's
// big-endian, box-framed layout to the flat little-endian field table
// this format requires.
package metadata

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mdr-go/mdr/internal/mdrerr"
)

// maxVectorLen bounds any length-prefixed vector read from an untrusted
// file, so a corrupt count field cannot force an unbounded allocation.
const maxVectorLen = 1 << 32

// Metadata is the fully decoded contents of metadata.bin.
type Metadata struct {
	Option             int32
	EncodedBitplanes   int32
	LevelElements      []uint64
	LevelErrorBounds   []float64
	Dims               []uint64
	Order              []int32
	Mode               int32
	DataReorganization int32
	MaxVal             float64
	MinVal             float64
	TotalEncodedSize   uint64
	MSEEstimator       bool
	MaxEEstimator      bool
	ComponentSizes     [][]uint64
	BitplaneIndicators [][]uint8
	LosslessIndicators [][]uint8
	MaxE               [][]float64
	MSE                [][]float64
}

// NumLevels returns L+1, the level count implied by LevelElements.
func (m *Metadata) NumLevels() int { return len(m.LevelElements) }

// Write serializes m to w in the fixed field order.
func (m *Metadata) Write(w io.Writer) error {
	if err := m.validate(); err != nil {
		return err
	}
	fields := []any{m.Option, m.EncodedBitplanes, uint64(len(m.LevelElements))}
	for _, v := range fields {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("metadata: write header: %w", err)
		}
	}
	if err := writeU64Slice(w, m.LevelElements); err != nil {
		return err
	}
	if err := writeF64Slice(w, m.LevelErrorBounds); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(m.Dims))); err != nil {
		return fmt.Errorf("metadata: write num_dims: %w", err)
	}
	if err := writeU64Slice(w, m.Dims); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(m.Order))); err != nil {
		return fmt.Errorf("metadata: write order_size: %w", err)
	}
	if err := writeI32Slice(w, m.Order); err != nil {
		return err
	}
	tail := []any{
		m.Mode, m.DataReorganization, m.MaxVal, m.MinVal, m.TotalEncodedSize,
		boolByte(m.MSEEstimator), boolByte(m.MaxEEstimator),
	}
	for _, v := range tail {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("metadata: write field: %w", err)
		}
	}
	if err := writeU64LevelVector(w, m.ComponentSizes); err != nil {
		return err
	}
	if err := writeU8LevelVector(w, m.BitplaneIndicators); err != nil {
		return err
	}
	if err := writeU8LevelVector(w, m.LosslessIndicators); err != nil {
		return err
	}
	if m.MaxEEstimator {
		if err := writeF64LevelVector(w, m.MaxE); err != nil {
			return err
		}
	}
	if m.MSEEstimator {
		if err := writeF64LevelVector(w, m.MSE); err != nil {
			return err
		}
	}
	return nil
}

// Read deserializes a Metadata from r.
func Read(r io.Reader) (*Metadata, error) {
	m := &Metadata{}
	if err := binary.Read(r, binary.LittleEndian, &m.Option); err != nil {
		return nil, ioErr("option", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.EncodedBitplanes); err != nil {
		return nil, ioErr("encoded_bitplanes", err)
	}
	numLevels, err := readU64(r, "num_levels")
	if err != nil {
		return nil, err
	}
	if m.LevelElements, err = readU64Slice(r, numLevels); err != nil {
		return nil, err
	}
	if m.LevelErrorBounds, err = readF64Slice(r, numLevels); err != nil {
		return nil, err
	}
	numDims, err := readU64(r, "num_dims")
	if err != nil {
		return nil, err
	}
	if m.Dims, err = readU64Slice(r, numDims); err != nil {
		return nil, err
	}
	orderSize, err := readU64(r, "order_size")
	if err != nil {
		return nil, err
	}
	if m.Order, err = readI32Slice(r, orderSize); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &m.Mode); err != nil {
		return nil, ioErr("mode", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.DataReorganization); err != nil {
		return nil, ioErr("data_reorganization", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.MaxVal); err != nil {
		return nil, ioErr("max_val", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.MinVal); err != nil {
		return nil, ioErr("min_val", err)
	}
	if m.TotalEncodedSize, err = readU64(r, "total_encoded_size"); err != nil {
		return nil, err
	}
	mseFlag, err := readByte(r, "mse_estimator")
	if err != nil {
		return nil, err
	}
	maxEFlag, err := readByte(r, "max_e_estimator")
	if err != nil {
		return nil, err
	}
	m.MSEEstimator = mseFlag != 0
	m.MaxEEstimator = maxEFlag != 0

	if m.ComponentSizes, err = readU64LevelVector(r, numLevels); err != nil {
		return nil, err
	}
	if m.BitplaneIndicators, err = readU8LevelVector(r, numLevels); err != nil {
		return nil, err
	}
	if m.LosslessIndicators, err = readU8LevelVector(r, numLevels); err != nil {
		return nil, err
	}
	if m.MaxEEstimator {
		if m.MaxE, err = readF64LevelVector(r, numLevels); err != nil {
			return nil, err
		}
	}
	if m.MSEEstimator {
		if m.MSE, err = readF64LevelVector(r, numLevels); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metadata) validate() error {
	if len(m.LevelElements) != len(m.LevelErrorBounds) {
		return fmt.Errorf("metadata: %d level_elements but %d level_error_bounds: %w", len(m.LevelElements), len(m.LevelErrorBounds), mdrerr.ErrPrecondition)
	}
	for name, v := range map[string]int{
		"component_sizes":     len(m.ComponentSizes),
		"bitplane_indicators": len(m.BitplaneIndicators),
		"lossless_indicators": len(m.LosslessIndicators),
	} {
		if v != len(m.LevelElements) {
			return fmt.Errorf("metadata: %s has %d levels, want %d: %w", name, v, len(m.LevelElements), mdrerr.ErrPrecondition)
		}
	}
	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func ioErr(field string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("metadata: reading %s: %w", field, mdrerr.ErrIO)
	}
	return fmt.Errorf("metadata: reading %s: %w", field, err)
}

func readByte(r io.Reader, field string) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ioErr(field, err)
	}
	return b[0], nil
}

func readU64(r io.Reader, field string) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, ioErr(field, err)
	}
	if v > maxVectorLen {
		return 0, fmt.Errorf("metadata: %s = %d exceeds sane bound: %w", field, v, mdrerr.ErrCorruptMetadata)
	}
	return v, nil
}

func writeU64Slice(w io.Writer, vals []uint64) error {
	for _, v := range vals {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("metadata: write u64 vector: %w", err)
		}
	}
	return nil
}

func writeF64Slice(w io.Writer, vals []float64) error {
	for _, v := range vals {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("metadata: write f64 vector: %w", err)
		}
	}
	return nil
}

func writeI32Slice(w io.Writer, vals []int32) error {
	for _, v := range vals {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("metadata: write i32 vector: %w", err)
		}
	}
	return nil
}

func readU64Slice(r io.Reader, n uint64) ([]uint64, error) {
	out := make([]uint64, n)
	for i := range out {
		v, err := readU64(r, "u64 vector element")
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readF64Slice(r io.Reader, n uint64) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i]); err != nil {
			return nil, ioErr("f64 vector element", err)
		}
	}
	return out, nil
}

func readI32Slice(r io.Reader, n uint64) ([]int32, error) {
	out := make([]int32, n)
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i]); err != nil {
			return nil, ioErr("i32 vector element", err)
		}
	}
	return out, nil
}

// writeU64LevelVector / readU64LevelVector and their u8/f64 counterparts
// implement the `level-vector<X>` convention: a u64 count followed by
// count values of X, repeated once per level.

func writeU64LevelVector(w io.Writer, levels [][]uint64) error {
	for _, level := range levels {
		if err := binary.Write(w, binary.LittleEndian, uint64(len(level))); err != nil {
			return fmt.Errorf("metadata: write level-vector count: %w", err)
		}
		if err := writeU64Slice(w, level); err != nil {
			return err
		}
	}
	return nil
}

func readU64LevelVector(r io.Reader, numLevels uint64) ([][]uint64, error) {
	out := make([][]uint64, numLevels)
	for i := range out {
		n, err := readU64(r, "level-vector count")
		if err != nil {
			return nil, err
		}
		if out[i], err = readU64Slice(r, n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeU8LevelVector(w io.Writer, levels [][]uint8) error {
	for _, level := range levels {
		if err := binary.Write(w, binary.LittleEndian, uint64(len(level))); err != nil {
			return fmt.Errorf("metadata: write level-vector count: %w", err)
		}
		if len(level) > 0 {
			if _, err := w.Write(level); err != nil {
				return fmt.Errorf("metadata: write u8 vector: %w", err)
			}
		}
	}
	return nil
}

func readU8LevelVector(r io.Reader, numLevels uint64) ([][]uint8, error) {
	out := make([][]uint8, numLevels)
	for i := range out {
		n, err := readU64(r, "level-vector count")
		if err != nil {
			return nil, err
		}
		buf := make([]uint8, n)
		if n > 0 {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, ioErr("u8 vector", err)
			}
		}
		out[i] = buf
	}
	return out, nil
}

func writeF64LevelVector(w io.Writer, levels [][]float64) error {
	for _, level := range levels {
		if err := binary.Write(w, binary.LittleEndian, uint64(len(level))); err != nil {
			return fmt.Errorf("metadata: write level-vector count: %w", err)
		}
		if err := writeF64Slice(w, level); err != nil {
			return err
		}
	}
	return nil
}

func readF64LevelVector(r io.Reader, numLevels uint64) ([][]float64, error) {
	out := make([][]float64, numLevels)
	for i := range out {
		n, err := readU64(r, "level-vector count")
		if err != nil {
			return nil, err
		}
		if out[i], err = readF64Slice(r, n); err != nil {
			return nil, err
		}
	}
	return out, nil
}
