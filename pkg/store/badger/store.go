// Package badger implements store.Store on BadgerDB.
//
// It offers the same contract as the disk image store with persistence
// delegated to an embedded transactional KV: snapshot saves are single
// Badger transactions, which gives the atomic metadata flush for free.
// Useful where a preallocated fixed-size image is awkward (shared dev
// machines, CI) while keeping the engine unchanged.
package badger

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vdiskfs/vdiskfs/internal/logger"
	"github.com/vdiskfs/vdiskfs/pkg/store"
)

// BadgerStore is a store.Store backed by a Badger database directory.
type BadgerStore struct {
	db  *badger.DB
	geo store.Geometry
}

// Config holds Badger-specific store options.
type Config struct {
	// DBPath is the directory holding the Badger database.
	DBPath string

	// InMemory runs Badger without touching disk. Only sensible for
	// tests; snapshots do not survive the process.
	InMemory bool
}

// Open opens or creates a Badger-backed store.
//
// The geometry is recorded on first open; reopening with a different
// geometry is rejected the same way the image store rejects a mismatched
// header.
func Open(cfg Config, geo store.Geometry) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &store.StoreError{Code: store.ErrIO, Message: fmt.Sprintf("failed to open badger store: %v", err), Path: cfg.DBPath}
	}

	st := &BadgerStore{db: db, geo: geo}
	if err := st.checkGeometry(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("Opened badger store at %s", cfg.DBPath)
	return st, nil
}

func encodeGeometry(geo store.Geometry) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], geo.BlockSize)
	binary.BigEndian.PutUint32(buf[4:8], geo.BlockCount)
	binary.BigEndian.PutUint32(buf[8:12], geo.InodeCapacity)
	return buf
}

func decodeGeometry(buf []byte) (store.Geometry, error) {
	if len(buf) != 12 {
		return store.Geometry{}, fmt.Errorf("invalid geometry record: %d bytes", len(buf))
	}
	return store.Geometry{
		BlockSize:     binary.BigEndian.Uint32(buf[0:4]),
		BlockCount:    binary.BigEndian.Uint32(buf[4:8]),
		InodeCapacity: binary.BigEndian.Uint32(buf[8:12]),
	}, nil
}

// checkGeometry records the geometry on first open and verifies it on
// every subsequent one.
func (st *BadgerStore) checkGeometry() error {
	return st.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyGeometry)
		if err == badger.ErrKeyNotFound {
			return txn.Set(keyGeometry, encodeGeometry(st.geo))
		}
		if err != nil {
			return &store.StoreError{Code: store.ErrIO, Message: "failed to read geometry record"}
		}

		return item.Value(func(val []byte) error {
			stored, err := decodeGeometry(val)
			if err != nil {
				return &store.StoreError{Code: store.ErrCorrupt, Message: err.Error()}
			}
			if stored != st.geo {
				return &store.StoreError{
					Code: store.ErrGeometry,
					Message: fmt.Sprintf("store geometry %d/%d/%d does not match configured %d/%d/%d",
						stored.BlockSize, stored.BlockCount, stored.InodeCapacity,
						st.geo.BlockSize, st.geo.BlockCount, st.geo.InodeCapacity),
				}
			}
			return nil
		})
	})
}

// Geometry implements store.Store.
func (st *BadgerStore) Geometry() store.Geometry {
	return st.geo
}

// ReadBlock returns one block, zero-filled when it was never written.
func (st *BadgerStore) ReadBlock(index uint32) ([]byte, error) {
	if index >= st.geo.BlockCount {
		return nil, &store.StoreError{
			Code:    store.ErrGeometry,
			Message: fmt.Sprintf("block index %d out of range (count %d)", index, st.geo.BlockCount),
		}
	}

	buf := make([]byte, st.geo.BlockSize)
	err := st.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBlock(index))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copy(buf, val)
			return nil
		})
	})
	if err != nil {
		return nil, &store.StoreError{Code: store.ErrIO, Message: fmt.Sprintf("failed to read block %d: %v", index, err)}
	}
	return buf, nil
}

// WriteBlock stores one block, zero-padded to the block size.
func (st *BadgerStore) WriteBlock(index uint32, data []byte) error {
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

	buf := make([]byte, st.geo.BlockSize)
	copy(buf, data)
	err := st.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyBlock(index), buf)
	})
	if err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: fmt.Sprintf("failed to write block %d: %v", index, err)}
	}
	return nil
}

// SaveSnapshot persists the snapshot in a single transaction.
func (st *BadgerStore) SaveSnapshot(snap *store.Snapshot) error {
	payload, err := store.EncodeSnapshot(snap)
	if err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: err.Error()}
	}

	if err := st.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keySnapshot, payload)
	}); err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: fmt.Sprintf("failed to save snapshot: %v", err)}
	}
	return nil
}

// LoadSnapshot returns the stored snapshot, or (nil, nil) for a fresh
// store. A snapshot record that fails to decode is corruption, not an
// empty store.
func (st *BadgerStore) LoadSnapshot() (*store.Snapshot, error) {
	var payload []byte
	err := st.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keySnapshot)
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &store.StoreError{Code: store.ErrIO, Message: fmt.Sprintf("failed to load snapshot: %v", err)}
	}

	snap, err := store.DecodeSnapshot(payload)
	if err != nil {
		return nil, &store.StoreError{Code: store.ErrCorrupt, Message: err.Error()}
	}
	return snap, nil
}

// Close flushes and closes the database.
func (st *BadgerStore) Close() error {
	return st.db.Close()
}
