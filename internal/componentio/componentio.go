// Package componentio writes and retrieves the on-disk files that back
// a refactored array: metadata.bin plus one level_<i>.bin per level.
//
// Grounded on internal/box/box.go's read/write conventions
// (encoding/binary-backed records, io.ReadFull, %w-wrapped errors) and
// the jpeg2000.go doc examples' plain os.Open/os.Create usage — this
// format needs no box framing or filesystem abstraction beyond the
// standard library, the same as the teacher's own top-level file
// examples.
package componentio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mdr-go/mdr/internal/mdrerr"
	"github.com/mdr-go/mdr/internal/metadata"
)

const metadataFileName = "metadata.bin"

func levelFileName(levelIndex int) string {
	return fmt.Sprintf("level_%d.bin", levelIndex)
}

// LevelData is one level's payload: the prepended starting-bitplane
// component followed by its bit-plane components, in storage order,
// each already lossless-compressed (or not) per its indicator.
type LevelData struct {
	Starting []byte
	Planes   [][]byte
}

// Writer persists a refactored array's metadata and level payloads to a
// directory.
type Writer struct {
	Dir string
}

// WriteMetadata serializes md to <Dir>/metadata.bin.
func (w Writer) WriteMetadata(md *metadata.Metadata) error {
	f, err := os.Create(filepath.Join(w.Dir, metadataFileName))
	if err != nil {
		return fmt.Errorf("componentio: create metadata file: %w", mdrerr.ErrIO)
	}
	defer f.Close()
	if err := md.Write(f); err != nil {
		return err
	}
	return f.Close()
}

// WriteLevel writes one level's payload to <Dir>/level_<levelIndex>.bin:
// the starting component followed by each bit-plane component, in
// order, with no inter-component framing — boundaries are recoverable
// only from the metadata's component_sizes.
func (w Writer) WriteLevel(levelIndex int, data LevelData) error {
	path := filepath.Join(w.Dir, levelFileName(levelIndex))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("componentio: create %s: %w", path, mdrerr.ErrIO)
	}
	defer f.Close()
	if _, err := f.Write(data.Starting); err != nil {
		return fmt.Errorf("componentio: write %s starting component: %w", path, mdrerr.ErrIO)
	}
	for k, plane := range data.Planes {
		if _, err := f.Write(plane); err != nil {
			return fmt.Errorf("componentio: write %s plane %d: %w", path, k, mdrerr.ErrIO)
		}
	}
	return f.Close()
}

// Retriever reads back exactly the byte budget a retrieval plan calls
// for, never the whole component file.
type Retriever struct {
	Dir string
}

// ReadMetadata deserializes <Dir>/metadata.bin.
func (r Retriever) ReadMetadata() (*metadata.Metadata, error) {
	path := filepath.Join(r.Dir, metadataFileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("componentio: open %s: %w", path, mdrerr.ErrIO)
	}
	defer f.Close()
	return metadata.Read(f)
}

// ReadLevel reads the starting component plus the first prefixPlanes
// bit-plane components of level levelIndex, using componentSizes (that
// level's metadata.ComponentSizes entry) to know each component's exact
// byte length.
func (r Retriever) ReadLevel(levelIndex int, componentSizes []uint64, prefixPlanes int) (LevelData, error) {
	if len(componentSizes) == 0 {
		return LevelData{}, fmt.Errorf("componentio: level %d has no component sizes: %w", levelIndex, mdrerr.ErrPrecondition)
	}
	if prefixPlanes < 0 || prefixPlanes >= len(componentSizes) {
		return LevelData{}, fmt.Errorf("componentio: level %d prefix %d out of range [0, %d): %w", levelIndex, prefixPlanes, len(componentSizes), mdrerr.ErrPrecondition)
	}
	path := filepath.Join(r.Dir, levelFileName(levelIndex))
	f, err := os.Open(path)
	if err != nil {
		return LevelData{}, fmt.Errorf("componentio: open %s: %w", path, mdrerr.ErrIO)
	}
	defer f.Close()

	starting := make([]byte, componentSizes[0])
	if err := readExact(f, starting); err != nil {
		return LevelData{}, fmt.Errorf("componentio: %s starting component: %w", path, err)
	}

	planes := make([][]byte, 0, prefixPlanes)
	for k := 1; k <= prefixPlanes; k++ {
		buf := make([]byte, componentSizes[k])
		if err := readExact(f, buf); err != nil {
			return LevelData{}, fmt.Errorf("componentio: %s plane %d: %w", path, k-1, err)
		}
		planes = append(planes, buf)
	}
	return LevelData{Starting: starting, Planes: planes}, nil
}

func readExact(f *os.File, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if _, err := io.ReadFull(f, buf); err != nil {
		return mdrerr.ErrIO
	}
	return nil
}
