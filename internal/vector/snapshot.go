package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/personaldrive/semidx/internal/semerr"
)

// Snapshot persists a FlatIndex and its identifier table as two artifacts:
// a vectors file (dimension, count, raw little-endian float32 data in slot
// order) and an identifiers file (count, then length-prefixed identifier
// strings in the same order). Both are written to a temporary file and
// renamed into place so a reader at rest never observes artifacts whose
// counts disagree.
type Snapshot struct {
	vectorsPath string
	idsPath     string
}

// NewSnapshot returns a snapshot store rooted at dir, using the conventional
// artifact names vectors.bin and ids.bin.
func NewSnapshot(dir string) *Snapshot {
	return &Snapshot{
		vectorsPath: filepath.Join(dir, "vectors.bin"),
		idsPath:     filepath.Join(dir, "ids.bin"),
	}
}

// VectorsPath returns the path of the vectors artifact.
func (s *Snapshot) VectorsPath() string { return s.vectorsPath }

// IDsPath returns the path of the identifiers artifact.
func (s *Snapshot) IDsPath() string { return s.idsPath }

// Save writes the full current state of idx and ids to disk. ids must have
// exactly one entry per stored vector.
func (s *Snapshot) Save(idx *FlatIndex, ids []string) error {
	if len(ids) != idx.Size() {
		return semerr.Newf(semerr.KindCorruptState,
			"identifier table length %d does not match index size %d", len(ids), idx.Size())
	}
	if err := os.MkdirAll(filepath.Dir(s.vectorsPath), 0755); err != nil {
		return semerr.Wrap(semerr.KindPersistenceFailed, "create snapshot dir", err)
	}
	if err := writeAtomic(s.idsPath, func(w io.Writer) error {
		return writeIDs(w, ids)
	}); err != nil {
		return semerr.Wrap(semerr.KindPersistenceFailed, "write identifier table", err)
	}
	if err := writeAtomic(s.vectorsPath, func(w io.Writer) error {
		return writeVectors(w, idx)
	}); err != nil {
		return semerr.Wrap(semerr.KindPersistenceFailed, "write vectors", err)
	}
	return nil
}

// Load reads both artifacts. When neither exists it returns (nil, nil, nil):
// a fresh empty state. When exactly one exists, or the two disagree in count,
// it fails with CorruptPersistedState rather than guessing.
func (s *Snapshot) Load() (*FlatIndex, []string, error) {
	vf, vErr := os.Open(s.vectorsPath)
	idf, iErr := os.Open(s.idsPath)
	if vf != nil {
		defer vf.Close()
	}
	if idf != nil {
		defer idf.Close()
	}

	vMissing := errors.Is(vErr, os.ErrNotExist)
	iMissing := errors.Is(iErr, os.ErrNotExist)
	switch {
	case vMissing && iMissing:
		return nil, nil, nil
	case vMissing != iMissing:
		return nil, nil, semerr.Newf(semerr.KindCorruptState,
			"one persisted artifact exists without the other (vectors=%t, ids=%t)", !vMissing, !iMissing)
	case vErr != nil:
		return nil, nil, semerr.Wrap(semerr.KindCorruptState, "open vectors artifact", vErr)
	case iErr != nil:
		return nil, nil, semerr.Wrap(semerr.KindCorruptState, "open identifiers artifact", iErr)
	}

	idx, err := readVectors(vf)
	if err != nil {
		return nil, nil, semerr.Wrap(semerr.KindCorruptState, "read vectors artifact", err)
	}
	ids, err := readIDs(idf)
	if err != nil {
		return nil, nil, semerr.Wrap(semerr.KindCorruptState, "read identifiers artifact", err)
	}
	if len(ids) != idx.Size() {
		return nil, nil, semerr.Newf(semerr.KindCorruptState,
			"persisted artifacts disagree: %d vectors, %d identifiers", idx.Size(), len(ids))
	}
	return idx, ids, nil
}

// writeAtomic writes via fn to path+".tmp", syncs, then renames over path.
func writeAtomic(path string, fn func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func writeVectors(w io.Writer, idx *FlatIndex) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.Dimensions())); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.Size())); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	buf := make([]byte, idx.Dimensions()*4)
	for slot := 0; slot < idx.Size(); slot++ {
		vec := idx.At(slot)
		for i, v := range vec {
			binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write vector %d: %w", slot, err)
		}
	}
	return nil
}

func readVectors(r io.Reader) (*FlatIndex, error) {
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	idx, err := NewFlatIndex(int(dim))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, int(dim)*4)
	vec := make([]float32, dim)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4 : (j+1)*4]))
		}
		if _, err := idx.Insert(vec); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func writeIDs(w io.Writer, ids []string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range ids {
		b := []byte(id)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
			return fmt.Errorf("write id %d length: %w", i, err)
		}
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("write id %d: %w", i, err)
		}
	}
	return nil
}

func readIDs(r io.Reader) ([]string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	ids := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("read id %d length: %w", i, err)
		}
		b := make([]byte, length)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, fmt.Errorf("read id %d: %w", i, err)
		}
		ids = append(ids, string(b))
	}
	return ids, nil
}
