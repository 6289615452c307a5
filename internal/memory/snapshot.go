package memory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"ctfe/internal/layout"
	"ctfe/internal/value"
)

// Current schema version - increment when Snapshot format changes
const snapshotSchemaVersion uint16 = 1

// ErrSchemaMismatch is returned when a snapshot was written by an
// incompatible version.
var ErrSchemaMismatch = errors.New("memory snapshot schema mismatch")

// Snapshot is the serialized form of a Store.
type Snapshot struct {
	Schema uint16          `msgpack:"schema"`
	Triple string          `msgpack:"triple"`
	Next   value.AllocID   `msgpack:"next"`
	Allocs []SnapshotAlloc `msgpack:"allocs"`
}

// SnapshotAlloc is one allocation in a Snapshot.
type SnapshotAlloc struct {
	ID    value.AllocID `msgpack:"id"`
	Alloc *Allocation   `msgpack:"alloc"`
}

// Snapshot copies the store into its serializable form, ordered by ID.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{Schema: snapshotSchemaVersion, Triple: s.target.Triple, Next: s.next}
	for id, a := range s.allocs {
		snap.Allocs = append(snap.Allocs, SnapshotAlloc{ID: id, Alloc: a})
	}
	sort.Slice(snap.Allocs, func(i, j int) bool { return snap.Allocs[i].ID < snap.Allocs[j].ID })
	return snap
}

// Save writes the store as msgpack.
func (s *Store) Save(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(s.Snapshot())
}

// Load reads a store written by Save.
func Load(r io.Reader) (*Store, error) {
	var snap Snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode memory snapshot: %w", err)
	}
	if snap.Schema != snapshotSchemaVersion {
		return nil, fmt.Errorf("%w: got %d want %d", ErrSchemaMismatch, snap.Schema, snapshotSchemaVersion)
	}
	target, err := layout.TargetFromTriple(snap.Triple)
	if err != nil {
		return nil, err
	}
	s := NewStore(target)
	s.next = snap.Next
	for _, rec := range snap.Allocs {
		a := rec.Alloc
		if a == nil || len(a.Init) != len(a.Bytes) {
			return nil, fmt.Errorf("memory snapshot: allocation %s is malformed", rec.ID)
		}
		if a.Relocs == nil {
			a.Relocs = make(map[uint64]value.AllocID)
		}
		s.allocs[rec.ID] = a
		if a.Name != "" {
			s.names[a.Name] = rec.ID
		}
		if rec.ID >= s.next {
			s.next = rec.ID + 1
		}
	}
	return s, nil
}

// SaveFile writes the store to path atomically.
func (s *Store) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "failed to remove temp file: %v\n", rmErr)
		}
	}()
	if err := s.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// LoadFile reads a store from path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
