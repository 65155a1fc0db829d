// Package memory implements store.Store with in-memory maps.
//
// Nothing survives the process; the snapshot round-trips through the
// same codec as the durable stores so engine tests exercise the real
// serialization path.
package memory

import (
	"fmt"
	"sync"

	"github.com/vdiskfs/vdiskfs/pkg/store"
)

// MemoryStore is a store.Store for tests and ephemeral runs.
type MemoryStore struct {
	mu       sync.RWMutex
	geo      store.Geometry
	blocks   map[uint32][]byte
	snapshot []byte
}

// New creates an empty in-memory store with the given geometry.
func New(geo store.Geometry) *MemoryStore {
	return &MemoryStore{
		geo:    geo,
		blocks: make(map[uint32][]byte),
	}
}

// Geometry implements store.Store.
func (st *MemoryStore) Geometry() store.Geometry {
	return st.geo
}

// ReadBlock returns one block, zero-filled when never written.
func (st *MemoryStore) ReadBlock(index uint32) ([]byte, error) {
	if index >= st.geo.BlockCount {
		return nil, &store.StoreError{
			Code:    store.ErrGeometry,
			Message: fmt.Sprintf("block index %d out of range (count %d)", index, st.geo.BlockCount),
		}
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	buf := make([]byte, st.geo.BlockSize)
	copy(buf, st.blocks[index])
	return buf, nil
}

// WriteBlock stores one block, zero-padded to the block size.
func (st *MemoryStore) WriteBlock(index uint32, data []byte) error {
	if index >= st.geo.BlockCount {
		return &store.StoreError{
			Code:    store.ErrGeometry,
			Message: fmt.Sprintf("block index %d out of range (count %d)", index, st.geo.BlockCount),
		}
	}
	if uint32(len(data)) > st.geo.BlockSize {
		return &store.StoreError{
			Code:    store.ErrGeometry,
			Message: fmt.Sprintf("payload of %d bytes exceeds block size %d", len(data), st.geo.BlockSize),
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	buf := make([]byte, st.geo.BlockSize)
	copy(buf, data)
	st.blocks[index] = buf
	return nil
}

// SaveSnapshot keeps the encoded snapshot; encoding errors surface the
// same way the durable stores report them.
func (st *MemoryStore) SaveSnapshot(snap *store.Snapshot) error {
	payload, err := store.EncodeSnapshot(snap)
	if err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: err.Error()}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.snapshot = payload
	return nil
}

// LoadSnapshot decodes the held snapshot, or (nil, nil) when none was
// ever saved.
func (st *MemoryStore) LoadSnapshot() (*store.Snapshot, error) {
	st.mu.RLock()
	payload := st.snapshot
	st.mu.RUnlock()

	if payload == nil {
		return nil, nil
	}
	snap, err := store.DecodeSnapshot(payload)
	if err != nil {
		return nil, &store.StoreError{Code: store.ErrCorrupt, Message: err.Error()}
	}
	return snap, nil
}

// Close is a no-op.
func (st *MemoryStore) Close() error {
	return nil
}
