package vfs

import (
	"fmt"
	"sync"
	"time"

	"github.com/vdiskfs/vdiskfs/internal/logger"
	"github.com/vdiskfs/vdiskfs/pkg/store"
)

// Filesystem owns the in-memory metadata — block bitmap and inode
// table — over one backing store.
//
// Thread safety: a single read-write mutex guards all state. Sessions
// take the write lock for mutating operations and the read lock for
// queries, so concurrent sessions over one Filesystem observe consistent
// snapshots. Every mutating operation updates memory and then flushes
// one metadata snapshot to the store; a failed flush is reported to the
// caller while the in-memory state stays valid, so the caller can retry,
// export data, or abort cleanly.
type Filesystem struct {
	mu     sync.RWMutex
	st     store.Store
	geo    store.Geometry
	bitmap *Bitmap
	inodes *InodeTable
}

// Open loads a filesystem from the store, or initializes an empty one
// (allocating inode 0 as the root directory) when the store holds no
// snapshot yet.
//
// A snapshot that exists but fails verification or decoding surfaces as
// StorageCorrupt. Existing data is never discarded here; reformatting
// happens only through an explicit Format call.
func Open(st store.Store) (*Filesystem, error) {
	fs := &Filesystem{
		st:  st,
		geo: st.Geometry(),
	}

	snap, err := st.LoadSnapshot()
	if err != nil {
		if store.IsCorrupt(err) {
			return nil, &Error{Code: ErrStorageCorrupt, Message: err.Error()}
		}
		return nil, fmt.Errorf("failed to load backing store: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if snap == nil {
		fs.resetLocked()
		if err := fs.flushLocked(); err != nil {
			return nil, err
		}
		logger.Info("Initialized empty filesystem (%d blocks, %d inode slots)",
			fs.geo.BlockCount, fs.geo.InodeCapacity)
		return fs, nil
	}

	if err := fs.restoreLocked(snap); err != nil {
		return nil, err
	}
	logger.Debug("Loaded filesystem: %d/%d blocks free, %d/%d inodes free",
		fs.bitmap.FreeCount(), fs.bitmap.TotalCount(),
		fs.inodes.FreeCount(), fs.inodes.TotalCount())
	return fs, nil
}

// resetLocked builds the empty state: fresh pools and the root directory
// in slot 0, owned by the superuser and its own parent.
func (fs *Filesystem) resetLocked() {
	fs.bitmap = NewBitmap(fs.geo.BlockCount)
	fs.inodes = NewInodeTable(fs.geo.InodeCapacity)

	root, _ := fs.inodes.Allocate()
	now := time.Now()
	root.Name = Separator
	root.Kind = KindDirectory
	root.Owner = SuperUser
	root.Creator = SuperUser
	// World-writable so any session user can build a tree from scratch
	root.Mode = 0o777
	root.CreatedAt = now
	root.ModifiedAt = now
	root.Parent = RootID
	root.children = newChildSet(RootID, RootID)
}

// Reformat initializes empty metadata directly over a store, without
// loading what it currently holds. This is the recovery path for a store
// whose snapshot no longer verifies, so an unreadable disk can still be
// erased on explicit request.
func Reformat(st store.Store) error {
	fs := &Filesystem{
		st:  st,
		geo: st.Geometry(),
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.resetLocked()
	if err := fs.flushLocked(); err != nil {
		return err
	}
	logger.Info("Filesystem reformatted over unreadable store")
	return nil
}

// Format discards all metadata and reinitializes the empty filesystem.
// This is the only reformat path; it must be an explicit caller command.
func (fs *Filesystem) Format() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.resetLocked()
	if err := fs.flushLocked(); err != nil {
		return err
	}
	logger.Info("Filesystem formatted")
	return nil
}

// Stats reports pool occupancy.
func (fs *Filesystem) Stats() Stats {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return Stats{
		BlockSize:   fs.geo.BlockSize,
		TotalBlocks: fs.bitmap.TotalCount(),
		FreeBlocks:  fs.bitmap.FreeCount(),
		TotalInodes: fs.inodes.TotalCount(),
		FreeInodes:  fs.inodes.FreeCount(),
	}
}

// Close flushes nothing (every mutation already flushed) and releases
// the store.
func (fs *Filesystem) Close() error {
	return fs.st.Close()
}

// flushLocked persists the metadata snapshot as one unit.
func (fs *Filesystem) flushLocked() error {
	if err := fs.st.SaveSnapshot(fs.snapshotLocked()); err != nil {
		logger.Error("Metadata flush failed: %v", err)
		return fmt.Errorf("failed to persist metadata: %w", err)
	}
	return nil
}

// snapshotLocked converts the live state into its serialized form. The
// inode slice is positional at full capacity so slot ids survive the
// round trip.
func (fs *Filesystem) snapshotLocked() *store.Snapshot {
	records := make([]store.InodeRecord, fs.inodes.TotalCount())
	fs.inodes.live(func(ino *Inode) {
		rec := store.InodeRecord{
			Allocated:    true,
			Name:         ino.Name,
			Kind:         uint32(ino.Kind),
			Owner:        ino.Owner,
			Creator:      ino.Creator,
			Mode:         uint32(ino.Mode),
			Size:         ino.Size,
			CreatedAtNs:  ino.CreatedAt.UnixNano(),
			ModifiedAtNs: ino.ModifiedAt.UnixNano(),
			Parent:       uint32(ino.Parent),
			Blocks:       append([]uint32(nil), ino.Blocks...),
		}
		if ino.children != nil {
			rec.Children = make([]store.DirEntryRecord, 0, len(ino.children.order))
			for _, name := range ino.children.order {
				rec.Children = append(rec.Children, store.DirEntryRecord{
					Name: name,
					ID:   uint32(ino.children.ids[name]),
				})
			}
		}
		records[ino.ID] = rec
	})

	return &store.Snapshot{
		Bitmap: fs.bitmap.Words(),
		Inodes: records,
	}
}

// restoreLocked rebuilds the live state from a snapshot, validating the
// structural invariants a well-formed image always satisfies.
func (fs *Filesystem) restoreLocked(snap *store.Snapshot) error {
	if uint32(len(snap.Inodes)) > fs.geo.InodeCapacity {
		return &Error{
			Code:    ErrStorageCorrupt,
			Message: fmt.Sprintf("snapshot holds %d inode slots, capacity is %d", len(snap.Inodes), fs.geo.InodeCapacity),
		}
	}

	fs.bitmap = bitmapFromWords(snap.Bitmap, fs.geo.BlockCount)
	fs.inodes = NewInodeTable(fs.geo.InodeCapacity)

	for i, rec := range snap.Inodes {
		if !rec.Allocated {
			continue
		}
		ino := &Inode{
			ID:         InodeID(i),
			Name:       rec.Name,
			Kind:       FileKind(rec.Kind),
			Owner:      rec.Owner,
			Creator:    rec.Creator,
			Mode:       Mode(rec.Mode),
			Size:       rec.Size,
			CreatedAt:  time.Unix(0, rec.CreatedAtNs),
			ModifiedAt: time.Unix(0, rec.ModifiedAtNs),
			Parent:     InodeID(rec.Parent),
			Blocks:     append([]uint32(nil), rec.Blocks...),
		}
		if ino.Kind == KindDirectory {
			cs := &childSet{
				order: make([]string, 0, len(rec.Children)),
				ids:   make(map[string]InodeID, len(rec.Children)),
			}
			for _, entry := range rec.Children {
				cs.order = append(cs.order, entry.Name)
				cs.ids[entry.Name] = InodeID(entry.ID)
			}
			ino.children = cs
		}
		fs.inodes.slots[i] = ino
		fs.inodes.free--
	}

	root, err := fs.inodes.Get(RootID)
	if err != nil || !root.IsDirectory() || root.Parent != RootID {
		return &Error{Code: ErrStorageCorrupt, Message: "snapshot has no valid root directory"}
	}
	return nil
}
