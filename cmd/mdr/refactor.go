package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdr-go/mdr"
	"github.com/mdr-go/mdr/internal/bitplane"
	"github.com/mdr-go/mdr/internal/interleave"
)

func newRefactorCmd() *cobra.Command {
	var (
		inputPath string
		outDir    string
		dimsFlag  string
		levels    int
		bitplanes int
		codecFlag string
		ivFlag    string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "refactor",
		Short: "Decompose a raw row-major float64 array into a progressive, error-bounded refactored representation",
		RunE: func(cmd *cobra.Command, args []string) error {
			dims, err := parseDims(dimsFlag)
			if err != nil {
				return err
			}
			data, err := readFloat64File(inputPath)
			if err != nil {
				return err
			}
			codec, err := parseCodecFlag(codecFlag)
			if err != nil {
				return err
			}
			variant, err := parseInterleaverFlag(ivFlag)
			if err != nil {
				return err
			}
			opts := mdr.Options{
				Levels:      levels,
				Bitplanes:   bitplanes,
				Codec:       codec,
				Interleaver: variant,
				Metrics:     mdr.NewMetrics(newLogger(verbose)),
			}
			if err := mdr.Refactor(outDir, data, dims, opts); err != nil {
				return fmt.Errorf("refactor: %w", err)
			}
			fmt.Printf("wrote %s (%d elements, %d levels)\n", outDir, len(data), levels)
			return nil
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "path to a raw row-major float64 array (required)")
	cmd.Flags().StringVar(&outDir, "dir", "", "output directory for metadata.bin and level_*.bin (required)")
	cmd.Flags().StringVar(&dimsFlag, "dims", "", "comma-separated array dimensions, e.g. 256,256,256 (required)")
	cmd.Flags().IntVar(&levels, "levels", 4, "multigrid decomposition depth")
	cmd.Flags().IntVar(&bitplanes, "bitplanes", 32, "number of bit-planes encoded per level")
	cmd.Flags().StringVar(&codecFlag, "codec", "sign-magnitude", "bit-plane codec: sign-magnitude or negabinary")
	cmd.Flags().StringVar(&ivFlag, "interleaver", "direct", "level interleaver traversal: direct or sfc")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log stage timings")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("dir")
	cmd.MarkFlagRequired("dims")
	return cmd
}

func parseCodecFlag(s string) (bitplane.Codec, error) {
	switch strings.ToLower(s) {
	case "", "sign-magnitude", "signmagnitude":
		return bitplane.SignMagnitude, nil
	case "negabinary":
		return bitplane.Negabinary, nil
	default:
		return 0, fmt.Errorf("unknown codec %q (want sign-magnitude or negabinary)", s)
	}
}

func parseInterleaverFlag(s string) (interleave.Variant, error) {
	switch strings.ToLower(s) {
	case "", "direct":
		return interleave.Direct, nil
	case "sfc", "space-filling-curve":
		return interleave.SpaceFillingCurve, nil
	default:
		return 0, fmt.Errorf("unknown interleaver %q (want direct or sfc)", s)
	}
}

func readFloat64File(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("%s: length %d is not a multiple of 8 bytes", path, len(raw))
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		bits := binary.LittleEndian.Uint64(raw[i*8:])
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}
