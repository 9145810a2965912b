package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdr-go/mdr"
)

func newReconstructCmd() *cobra.Command {
	var (
		inDir      string
		outputPath string
		tolerance  float64
		modeFlag   string
		sobolevS   float64
		reorgFlag  string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Retrieve as much of a refactored array as a tolerance requires and write it back out as raw float64",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := parseModeFlag(modeFlag)
			if err != nil {
				return err
			}
			reorg, err := parseReorgFlag(reorgFlag)
			if err != nil {
				return err
			}
			cfg := mdr.Config{
				Tolerance:      tolerance,
				Mode:           mode,
				SobolevS:       sobolevS,
				Reorganization: reorg,
				Metrics:        mdr.NewMetrics(newLogger(verbose)),
			}
			approx, dims, warning, err := mdr.Reconstruct[float64](inDir, cfg)
			if err != nil {
				return fmt.Errorf("reconstruct: %w", err)
			}
			if err := writeFloat64File(outputPath, approx); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d elements, dims %v)\n", outputPath, len(approx), dims)
			if warning.ToleranceUnreachable {
				fmt.Printf("warning: tolerance %v not reachable, achieved %v\n", warning.Tolerance, warning.Achieved)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inDir, "dir", "", "directory containing metadata.bin and level_*.bin (required)")
	cmd.Flags().StringVar(&outputPath, "output", "", "path to write the reconstructed raw row-major float64 array (required)")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "maximum acceptable combined global error")
	cmd.Flags().StringVar(&modeFlag, "mode", "linf", "global error metric: linf or sobolev")
	cmd.Flags().Float64Var(&sobolevS, "sobolev-s", 0, "smoothness parameter s, used only with --mode sobolev")
	cmd.Flags().StringVar(&reorgFlag, "reorg", "greedy", "retrieval schedule: greedy, roundrobin, or inorder")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log stage timings")
	cmd.MarkFlagRequired("dir")
	cmd.MarkFlagRequired("output")
	return cmd
}

func parseModeFlag(s string) (mdr.Mode, error) {
	switch strings.ToLower(s) {
	case "", "linf", "l-infinity":
		return mdr.ModeLInf, nil
	case "sobolev":
		return mdr.ModeSobolev, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want linf or sobolev)", s)
	}
}

func parseReorgFlag(s string) (mdr.Reorganization, error) {
	switch strings.ToLower(s) {
	case "", "greedy":
		return mdr.ReorgGreedy, nil
	case "roundrobin", "round-robin":
		return mdr.ReorgRoundRobin, nil
	case "inorder", "in-order":
		return mdr.ReorgInOrder, nil
	default:
		return 0, fmt.Errorf("unknown reorganization %q (want greedy, roundrobin, or inorder)", s)
	}
}

func writeFloat64File(path string, data []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	buf := make([]byte, 8)
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return f.Close()
}
