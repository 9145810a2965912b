// Package mdr implements a progressive, error-bounded lossy compressor
// for dense multidimensional floating-point arrays: Refactor decomposes
// an array into a multigrid hierarchy of bit-plane components and
// writes them to disk with metadata describing every component's
// contribution to a chosen global error metric; Reconstruct later reads
// back only as many components as a caller-supplied tolerance requires.
//
// Basic usage for refactoring:
//
//	err := mdr.Refactor("/data/run1", values, []int{256, 256, 256}, mdr.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Basic usage for reconstructing:
//
//	approx, dims, warning, err := mdr.Reconstruct[float64]("/data/run1", mdr.Config{Tolerance: 0.01})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Grounded on jpeg2000.go's Encode/Decode/DecodeMetadata façade shape
// (package-level entry points wrapping an internal encoder/decoder
// struct) and encoder.go/decoder.go's staged pipeline methods.
package mdr

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/mdr-go/mdr/internal/bitplane"
	"github.com/mdr-go/mdr/internal/componentio"
	"github.com/mdr-go/mdr/internal/errorest"
	"github.com/mdr-go/mdr/internal/interleave"
	"github.com/mdr-go/mdr/internal/lossless"
	"github.com/mdr-go/mdr/internal/mdrerr"
	"github.com/mdr-go/mdr/internal/metadata"
	"github.com/mdr-go/mdr/internal/sizeinterp"
	"github.com/mdr-go/mdr/internal/transform"
)

// Mode selects the global error metric the size interpreter optimizes
// against, matching metadata.bin's `mode` field (0 = L∞, 1 = Sobolev).
type Mode int32

const (
	ModeLInf Mode = iota
	ModeSobolev
)

// Reorganization selects which retrieval-planning schedule a
// Reconstruct call uses, matching metadata.bin's `data_reorganization`
// field.
type Reorganization int32

const (
	ReorgGreedy Reorganization = iota
	ReorgUniform
	ReorgRoundRobin
	ReorgInOrder
)

// Options configures a Refactor call.
type Options struct {
	// Levels is the target multigrid decomposition depth L.
	Levels int
	// Bitplanes is P, the number of bit-planes encoded per level.
	// Rounded up to the next even number when Codec is Negabinary.
	Bitplanes   int
	Codec       bitplane.Codec
	Interleaver interleave.Variant
	// LosslessThreshold overrides internal/lossless's default adaptive
	// threshold; zero keeps the default.
	LosslessThreshold int
	Metrics           *Metrics
}

// DefaultOptions returns the default Refactor options: 4 decomposition
// levels, 32 sign-magnitude bit-planes, direct traversal.
func DefaultOptions() Options {
	return Options{
		Levels:      4,
		Bitplanes:   32,
		Codec:       bitplane.SignMagnitude,
		Interleaver: interleave.Direct,
	}
}

func (o Options) normalize() Options {
	if o.Bitplanes <= 0 {
		o.Bitplanes = 32
	}
	if o.Codec == bitplane.Negabinary && o.Bitplanes%2 != 0 {
		o.Bitplanes++
	}
	if o.LosslessThreshold <= 0 {
		o.LosslessThreshold = lossless.Threshold
	}
	return o
}

// Config configures a Reconstruct call.
type Config struct {
	// Tolerance is τ, the maximum acceptable combined global error.
	Tolerance float64
	Mode      Mode
	// SobolevS is the smoothness parameter s, used only when Mode is
	// ModeSobolev.
	SobolevS float64
	// Weights overrides the L∞ estimator's per-level weights; nil uses
	// the identity weighting.
	Weights        []float64
	Reorganization Reorganization
	Metrics        *Metrics
}

func (c Config) estimator(numLevels, rank int) errorest.Estimator {
	if c.Mode == ModeSobolev {
		return errorest.Sobolev{S: c.SobolevS, Levels: numLevels - 1, Rank: rank}
	}
	return errorest.LInf{Weights: c.Weights}
}

// Warning reports a non-fatal condition alongside a successful
// Reconstruct: the retrieval plan could not bring the combined error
// under the requested tolerance, typically because every level has
// already been fully retrieved.
type Warning struct {
	ToleranceUnreachable bool
	Achieved             float64
	Tolerance            float64
}

func encodeOption(codec bitplane.Codec, variant interleave.Variant) int32 {
	return int32(codec) | int32(variant)<<1
}

func decodeOption(option int32) (bitplane.Codec, interleave.Variant) {
	return bitplane.Codec(option & 1), interleave.Variant((option >> 1) & 1)
}

func prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

func toFloat64[F transform.Float](buf []F) []float64 {
	out := make([]float64, len(buf))
	for i, v := range buf {
		out[i] = float64(v)
	}
	return out
}

func fromFloat64[F transform.Float](buf []float64) []F {
	out := make([]F, len(buf))
	for i, v := range buf {
		out[i] = F(v)
	}
	return out
}

func toIntSlice(vals []uint64) []int {
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = int(v)
	}
	return out
}

func fromIntSlice(vals []int) []uint64 {
	out := make([]uint64, len(vals))
	for i, v := range vals {
		out[i] = uint64(v)
	}
	return out
}

type levelArtifact struct {
	buf      []float64
	planes   *bitplane.Planes
	levelMax float64
	maxErr   []float64
	sqErr    []float64
}

// Refactor decomposes data (a row-major dense array of the given dims)
// into bit-plane components and writes metadata.bin plus one
// level_<i>.bin per level under dir.
func Refactor[F transform.Float](dir string, data []F, dims []int, opts Options) error {
	opts = opts.normalize()
	stop := opts.Metrics.Stage("refactor")
	defer stop()

	n := prod(dims)
	if len(data) != n {
		return fmt.Errorf("mdr: data has %d elements, dims %v imply %d: %w", len(data), dims, n, mdrerr.ErrPrecondition)
	}

	buf := append([]F(nil), data...)
	if err := transform.Decompose(buf, dims, opts.Levels); err != nil {
		return err
	}
	work := toFloat64(buf)

	boxes := transform.LevelBoxes(dims, opts.Levels)
	emptyBox := make([]int, len(dims))
	iv := interleave.New(opts.Interleaver)
	comp := lossless.Compressor{Threshold: opts.LosslessThreshold}

	artifacts := make([]levelArtifact, opts.Levels+1)
	g := new(errgroup.Group)
	for i := 0; i <= opts.Levels; i++ {
		i := i
		fine := boxes[i]
		coarse := emptyBox
		if i > 0 {
			coarse = boxes[i-1]
		}
		g.Go(func() error {
			count, err := interleave.Count(fine, coarse)
			if err != nil {
				return err
			}
			levelBuf := make([]float64, count)
			if err := iv.Interleave(work, dims, fine, coarse, levelBuf); err != nil {
				return err
			}
			planes, err := bitplane.Encode(levelBuf, opts.Bitplanes, opts.Codec)
			if err != nil {
				return err
			}
			maxErr, err := (errorest.MaxError{}).Table(levelBuf, planes)
			if err != nil {
				return err
			}
			sqErr, err := (errorest.SquaredError{}).Table(levelBuf, planes)
			if err != nil {
				return err
			}
			var levelMax float64
			for _, v := range levelBuf {
				if a := math.Abs(v); a > levelMax {
					levelMax = a
				}
			}
			artifacts[i] = levelArtifact{buf: levelBuf, planes: planes, levelMax: levelMax, maxErr: maxErr, sqErr: sqErr}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var minVal, maxVal float64 = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		x := float64(v)
		if x < minVal {
			minVal = x
		}
		if x > maxVal {
			maxVal = x
		}
	}

	md := &metadata.Metadata{
		Option:             encodeOption(opts.Codec, opts.Interleaver),
		EncodedBitplanes:   int32(opts.Bitplanes),
		LevelElements:      make([]uint64, opts.Levels+1),
		LevelErrorBounds:   make([]float64, opts.Levels+1),
		Dims:               fromIntSlice(dims),
		Mode:               0,
		DataReorganization: 0,
		MaxVal:             maxVal,
		MinVal:             minVal,
		MSEEstimator:       true,
		MaxEEstimator:      true,
		ComponentSizes:     make([][]uint64, opts.Levels+1),
		BitplaneIndicators: make([][]uint8, opts.Levels+1),
		LosslessIndicators: make([][]uint8, opts.Levels+1),
		MaxE:               make([][]float64, opts.Levels+1),
		MSE:                make([][]float64, opts.Levels+1),
	}

	writer := componentio.Writer{Dir: dir}
	var totalSize uint64
	var order []int32
	componentIndex := int32(0)
	for i, art := range artifacts {
		md.LevelElements[i] = uint64(len(art.buf))
		md.LevelErrorBounds[i] = art.levelMax
		md.MaxE[i] = art.maxErr
		md.MSE[i] = art.sqErr

		sizes := make([]uint64, 0, opts.Bitplanes+1)
		lossFlags := make([]uint8, 0, opts.Bitplanes+1)
		var startingOut []byte
		startingCompressed := false
		if opts.Codec == bitplane.SignMagnitude {
			startingOut, startingCompressed = comp.Compress(art.planes.Starting)
		}
		sizes = append(sizes, uint64(len(startingOut)))
		lossFlags = append(lossFlags, boolFlag(startingCompressed))
		order = append(order, componentIndex)
		componentIndex++

		planeBytes := make([][]byte, opts.Bitplanes)
		for k := 0; k < opts.Bitplanes; k++ {
			raw := art.planes.PlaneBytes(k)
			out, compressed := comp.Compress(raw)
			planeBytes[k] = out
			sizes = append(sizes, uint64(len(out)))
			lossFlags = append(lossFlags, boolFlag(compressed))
			order = append(order, componentIndex)
			componentIndex++
		}
		md.ComponentSizes[i] = sizes
		md.LosslessIndicators[i] = lossFlags
		md.BitplaneIndicators[i] = make([]uint8, len(sizes))
		for _, s := range sizes {
			totalSize += s
		}

		if err := writer.WriteLevel(i, componentio.LevelData{Starting: startingOut, Planes: planeBytes}); err != nil {
			return err
		}
		opts.Metrics.AddBytesWritten(sizesSum(sizes))
	}
	md.Order = order
	md.TotalEncodedSize = totalSize

	return writer.WriteMetadata(md)
}

func boolFlag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func sizesSum(sizes []uint64) uint64 {
	var total uint64
	for _, s := range sizes {
		total += s
	}
	return total
}

// Reconstruct reads metadata.bin and as much of each level_<i>.bin as
// cfg.Tolerance requires, and inverts the refactor pipeline to produce
// an approximation of the original array.
func Reconstruct[F transform.Float](dir string, cfg Config) ([]F, []int, Warning, error) {
	stop := cfg.Metrics.Stage("reconstruct")
	defer stop()

	retriever := componentio.Retriever{Dir: dir}
	md, err := retriever.ReadMetadata()
	if err != nil {
		return nil, nil, Warning{}, err
	}
	codec, variant := decodeOption(md.Option)
	numLevels := md.NumLevels()
	dims := toIntSlice(md.Dims)
	rank := len(dims)

	estimator := cfg.estimator(numLevels, rank)
	step := 1
	if codec == bitplane.Negabinary {
		step = 2
	}
	levels := make([]sizeinterp.Level, numLevels)
	for i := 0; i < numLevels; i++ {
		p := int(md.EncodedBitplanes)
		g := make([]float64, p+1)
		for k := 0; k <= p; k++ {
			var errAtK float64
			squared := cfg.Mode == ModeSobolev
			if squared {
				if !md.MSEEstimator {
					return nil, nil, Warning{}, fmt.Errorf("mdr: metadata has no mse table for Sobolev mode: %w", mdrerr.ErrPrecondition)
				}
				errAtK = md.MSE[i][k]
			} else {
				if !md.MaxEEstimator {
					return nil, nil, Warning{}, fmt.Errorf("mdr: metadata has no max_e table for L-infinity mode: %w", mdrerr.ErrPrecondition)
				}
				errAtK = md.MaxE[i][k]
			}
			g[k] = errorest.Weighted(estimator, i, errAtK, squared)
		}
		levels[i] = sizeinterp.Level{G: g, Sizes: toIntSlice(md.ComponentSizes[i]), Step: step}
	}

	var plan sizeinterp.Plan
	switch cfg.Reorganization {
	case ReorgRoundRobin:
		plan, err = sizeinterp.RoundRobin(levels, estimator.Combine, cfg.Tolerance)
	case ReorgInOrder:
		plan, err = sizeinterp.InOrder(levels, estimator.Combine, cfg.Tolerance)
	default:
		plan, err = sizeinterp.Greedy(levels, estimator.Combine, cfg.Tolerance)
	}
	if err != nil {
		return nil, nil, Warning{}, err
	}

	decompLevels := numLevels - 1
	boxes := transform.LevelBoxes(dims, decompLevels)
	emptyBox := make([]int, rank)
	iv := interleave.New(variant)

	// Mirror multigrid_data_recompose's recomposed_level/recompose_times
	// derivation: scan from the finest level backward for the first level
	// with any retrieved bit-plane components. plan.Prefixes[i] == 0
	// means only the always-present starting/sign component was read for
	// that level, contributing no detail; levels finer than the first
	// touched one found this way are never read at all, and the output
	// is recomposed only out to that level's extent instead of padded
	// with zero detail all the way to the full target resolution. If no
	// level beyond the coarsest has any retrieved detail, touchedLevel
	// stays 0 and the coarsest level's own extent is returned as-is.
	touchedLevel := 0
	for i := decompLevels; i >= 1; i-- {
		if plan.Prefixes[i] > 0 {
			touchedLevel = i
			break
		}
	}
	reducedDims := boxes[touchedLevel]
	reducedWork := make([]float64, prod(reducedDims))

	g := new(errgroup.Group)
	for i := 0; i <= touchedLevel; i++ {
		i := i
		fine := boxes[i]
		coarse := emptyBox
		if i > 0 {
			coarse = boxes[i-1]
		}
		g.Go(func() error {
			prefix := plan.Prefixes[i]
			sizes := md.ComponentSizes[i]
			payload, err := retriever.ReadLevel(i, sizes, prefix)
			if err != nil {
				return err
			}
			cfg.Metrics.AddBytesRead(sizesSum(sizes[:prefix+1]))

			flags := md.LosslessIndicators[i]
			var starting []byte
			if codec == bitplane.SignMagnitude {
				starting, err = lossless.Decompress(payload.Starting, flags[0] != 0)
				if err != nil {
					return err
				}
			}
			planeBytes := make([][]byte, len(payload.Planes))
			for k, raw := range payload.Planes {
				planeBytes[k], err = lossless.Decompress(raw, flags[k+1] != 0)
				if err != nil {
					return err
				}
			}

			exponent := bitplane.ExponentOf(md.LevelErrorBounds[i])
			pl := bitplane.DecodePlanes(codec, int(md.LevelElements[i]), int(md.EncodedBitplanes), exponent, starting, planeBytes)
			approx, err := pl.Decode(prefix)
			if err != nil {
				return err
			}
			return iv.Reposition(approx, reducedDims, fine, coarse, reducedWork)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, Warning{}, err
	}

	out := fromFloat64[F](reducedWork)
	if err := transform.Recompose(out, reducedDims, touchedLevel); err != nil {
		return nil, nil, Warning{}, err
	}

	warning := Warning{
		ToleranceUnreachable: plan.Achieved > cfg.Tolerance,
		Achieved:             plan.Achieved,
		Tolerance:            cfg.Tolerance,
	}
	return out, reducedDims, warning, nil
}

// ReadMetadata reads only metadata.bin, without touching any component
// file — the counterpart to jpeg2000.DecodeMetadata.
func ReadMetadata(dir string) (*metadata.Metadata, error) {
	return componentio.Retriever{Dir: dir}.ReadMetadata()
}
