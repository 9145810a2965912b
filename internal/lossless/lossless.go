// Package lossless provides the adaptive per-component lossless
// compression step applied to bit-plane streams before they are written
// to a level's component file.
//
// Grounded on the original source's zstd_lossless_compress/
// zstd_lossless_decompress collaborators in refactor.hpp, implemented
// here with github.com/klauspost/compress/zstd — the codec the rest of
// the retrieval pack also reaches for in this exact adaptive-threshold
// role (segmentio/parquet-go, Anish-Chanda/cadence, codeninja55/go-radx).
// Encoder/decoder pooling mirrors the teacher's sync.Pool convention in
// internal/entropy/t1.go.
package lossless

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/mdr-go/mdr/internal/mdrerr"
)

// Threshold is the default input length, in bytes, at or below which
// Compress stores the input verbatim instead of invoking zstd — matching
// the LOSSLESS_THRESHOLD design default named in the component design.
const Threshold = 2000

var (
	encPool = sync.Pool{
		New: func() any {
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
			if err != nil {
				panic(fmt.Sprintf("lossless: zstd.NewWriter: %v", err))
			}
			return enc
		},
	}
	decPool = sync.Pool{
		New: func() any {
			dec, err := zstd.NewReader(nil)
			if err != nil {
				panic(fmt.Sprintf("lossless: zstd.NewReader: %v", err))
			}
			return dec
		},
	}
)

// Compressor applies the adaptive threshold policy: inputs longer than
// threshold are zstd-compressed; shorter inputs are stored verbatim. A
// zero-value Compressor uses Threshold.
type Compressor struct {
	Threshold int
}

// New returns a Compressor using the default threshold.
func New() Compressor {
	return Compressor{Threshold: Threshold}
}

// Compress returns the bytes to store for data, and whether they are
// zstd-compressed (the per-bit-plane lossless flag recorded in
// metadata).
func (c Compressor) Compress(data []byte) (out []byte, compressed bool) {
	threshold := c.Threshold
	if threshold == 0 {
		threshold = Threshold
	}
	if len(data) <= threshold {
		return append([]byte(nil), data...), false
	}
	enc := encPool.Get().(*zstd.Encoder)
	defer encPool.Put(enc)
	return enc.EncodeAll(data, nil), true
}

// Decompress inverts Compress given the flag recorded for this
// component.
func Decompress(data []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return data, nil
	}
	dec := decPool.Get().(*zstd.Decoder)
	defer decPool.Put(dec)
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("lossless: zstd decode: %w: %w", err, mdrerr.ErrCorruptMetadata)
	}
	return out, nil
}
