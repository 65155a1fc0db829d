// Package store defines the backing-store contract for the filesystem
// engine: raw block IO plus atomic persistence of the metadata snapshot
// (block bitmap and inode table).
//
// Implementations live in subpackages:
//   - image:  a single fixed-size disk image file (the primary store)
//   - badger: a BadgerDB-backed store with the same semantics
//   - memory: an in-memory store for tests and ephemeral runs
//
// The engine treats every implementation identically: blocks are written
// through as content changes, and each mutating operation ends with one
// SaveSnapshot call that must be atomic — after a crash, LoadSnapshot
// returns either the previous snapshot or the new one, never a torn mix.
package store

// Geometry describes the fixed dimensions of a store.
//
// Block indices used by the engine are absolute offsets into the data
// region and share the bitmap's numbering space: index i addresses both
// bit i of the bitmap and block i of the data region.
type Geometry struct {
	// BlockSize is the size of one data block in bytes.
	BlockSize uint32

	// BlockCount is the total number of data blocks.
	BlockCount uint32

	// InodeCapacity is the maximum number of inode slots.
	InodeCapacity uint32
}

// DiskSize returns the capacity of the data region in bytes.
func (g Geometry) DiskSize() uint64 {
	return uint64(g.BlockSize) * uint64(g.BlockCount)
}

// DirEntryRecord is one serialized directory entry.
type DirEntryRecord struct {
	Name string
	ID   uint32
}

// InodeRecord is the serialized form of one inode table slot.
//
// Slots are positional: record i describes inode id i. Free slots are
// present with Allocated == false so the table round-trips at fixed
// capacity.
type InodeRecord struct {
	Allocated bool
	Name      string
	Kind      uint32
	Owner     string
	Creator   string
	Mode      uint32
	Size      uint64

	// CreatedAtNs and ModifiedAtNs are Unix nanoseconds. Stored as
	// integers rather than time.Time so the on-disk format stays a
	// fixed, codec-independent shape.
	CreatedAtNs  int64
	ModifiedAtNs int64

	Parent uint32
	Blocks []uint32

	// Children is the ordered child mapping of a directory, "." and ".."
	// first. Nil for files and symlinks.
	Children []DirEntryRecord
}

// Snapshot is the complete metadata state persisted by SaveSnapshot.
//
// Bitmap holds the block allocation bits packed into uint64 words
// (little-end bit first within a word). Inodes has exactly
// Geometry.InodeCapacity records.
type Snapshot struct {
	Bitmap []uint64
	Inodes []InodeRecord
}

// Store is the persistence contract consumed by the engine.
//
// WriteBlock and ReadBlock operate on whole blocks; WriteBlock accepts
// short payloads and zero-pads the remainder of the block. SaveSnapshot
// persists the metadata snapshot atomically. LoadSnapshot returns
// (nil, nil) when the store is freshly created and holds no snapshot yet;
// a store that holds data which cannot be verified reports a StoreError
// with ErrCorrupt instead of pretending to be empty.
type Store interface {
	Geometry() Geometry

	ReadBlock(index uint32) ([]byte, error)
	WriteBlock(index uint32, data []byte) error

	SaveSnapshot(snap *Snapshot) error
	LoadSnapshot() (*Snapshot, error)

	Close() error
}
