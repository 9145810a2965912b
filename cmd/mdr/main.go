// Command mdr is a thin driver over the refactor/reconstruct pipeline:
// it parses flags, reads a raw row-major float64 array from disk, and
// calls into github.com/mdr-go/mdr. It holds no transform, retrieval,
// or metadata logic of its own.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mdr:", err)
		os.Exit(1)
	}
}
