package componentio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mdr-go/mdr/internal/mdrerr"
	"github.com/mdr-go/mdr/internal/metadata"
)

func TestWriteReadLevelRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: dir}
	data := LevelData{
		Starting: []byte{1, 2, 3, 4},
		Planes:   [][]byte{{0xAA, 0xBB}, {0xCC}, {0xDD, 0xEE, 0xFF}},
	}
	if err := w.WriteLevel(0, data); err != nil {
		t.Fatalf("WriteLevel: %v", err)
	}

	r := Retriever{Dir: dir}
	sizes := []uint64{4, 2, 1, 3}

	got, err := r.ReadLevel(0, sizes, 3)
	if err != nil {
		t.Fatalf("ReadLevel: %v", err)
	}
	if !bytes.Equal(got.Starting, data.Starting) {
		t.Fatalf("starting mismatch: got %v want %v", got.Starting, data.Starting)
	}
	if len(got.Planes) != 3 {
		t.Fatalf("got %d planes, want 3", len(got.Planes))
	}
	for i, p := range got.Planes {
		if !bytes.Equal(p, data.Planes[i]) {
			t.Fatalf("plane %d mismatch: got %v want %v", i, p, data.Planes[i])
		}
	}
}

func TestReadLevelRetrievesOnlyRequestedPrefix(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: dir}
	data := LevelData{
		Starting: []byte{9, 9},
		Planes:   [][]byte{{1}, {2}, {3}},
	}
	if err := w.WriteLevel(1, data); err != nil {
		t.Fatalf("WriteLevel: %v", err)
	}

	r := Retriever{Dir: dir}
	sizes := []uint64{2, 1, 1, 1}
	got, err := r.ReadLevel(1, sizes, 1)
	if err != nil {
		t.Fatalf("ReadLevel: %v", err)
	}
	if len(got.Planes) != 1 || got.Planes[0][0] != 1 {
		t.Fatalf("expected only the first plane retrieved, got %v", got.Planes)
	}
}

func TestWriteReadMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	md := &metadata.Metadata{
		Option:             0,
		EncodedBitplanes:   4,
		LevelElements:      []uint64{10},
		LevelErrorBounds:   []float64{1},
		Dims:               []uint64{10},
		Order:              []int32{0},
		ComponentSizes:     [][]uint64{{1, 1, 1, 1, 1}},
		BitplaneIndicators: [][]uint8{{0, 0, 0, 0, 0}},
		LosslessIndicators: [][]uint8{{0, 0, 0, 0, 0}},
	}
	w := Writer{Dir: dir}
	if err := w.WriteMetadata(md); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	r := Retriever{Dir: dir}
	got, err := r.ReadMetadata()
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if got.EncodedBitplanes != md.EncodedBitplanes || got.NumLevels() != md.NumLevels() {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestReadMetadataMissingFile(t *testing.T) {
	r := Retriever{Dir: t.TempDir()}
	if _, err := r.ReadMetadata(); !errors.Is(err, mdrerr.ErrIO) {
		t.Fatalf("error = %v, want ErrIO", err)
	}
}

func TestReadLevelRejectsOutOfRangePrefix(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: dir}
	if err := w.WriteLevel(0, LevelData{Starting: []byte{1}}); err != nil {
		t.Fatalf("WriteLevel: %v", err)
	}
	r := Retriever{Dir: dir}
	if _, err := r.ReadLevel(0, []uint64{1}, 5); !errors.Is(err, mdrerr.ErrPrecondition) {
		t.Fatalf("error = %v, want ErrPrecondition", err)
	}
}

func TestReadLevelTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: dir}
	if err := w.WriteLevel(0, LevelData{Starting: []byte{1, 2}}); err != nil {
		t.Fatalf("WriteLevel: %v", err)
	}
	r := Retriever{Dir: dir}
	if _, err := r.ReadLevel(0, []uint64{2, 10}, 1); !errors.Is(err, mdrerr.ErrIO) {
		t.Fatalf("error = %v, want ErrIO", err)
	}
}
