package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mdr",
		Short:         "Progressive, error-bounded refactoring of multidimensional float arrays",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRefactorCmd())
	root.AddCommand(newReconstructCmd())
	return root
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func parseDims(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	dims := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid dims %q: %w", s, err)
		}
		dims[i] = n
	}
	return dims, nil
}

