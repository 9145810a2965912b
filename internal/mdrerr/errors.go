// Package mdrerr defines the sentinel errors shared across the
// refactor/reconstruct pipeline, so callers can classify a failure with
// errors.Is instead of matching on message text.
package mdrerr

import "errors"

var (
	// ErrPrecondition marks a precondition violation: mismatched dims or
	// buffer length, unsupported dimensionality, an oversized or
	// odd (for negabinary) bit-plane count, or an unknown mode/
	// reorganization id.
	ErrPrecondition = errors.New("mdr: precondition violation")

	// ErrIO marks a missing or short metadata or component file.
	ErrIO = errors.New("mdr: I/O failure")

	// ErrCorruptMetadata marks metadata whose length-prefixed vectors
	// exceed the file size, or a component whose decompressed length
	// does not match its declared length.
	ErrCorruptMetadata = errors.New("mdr: corrupted metadata")
)
