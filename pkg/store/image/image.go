// Package image implements store.Store on a single fixed-size disk image
// file, the primary backing store of vdiskfs.
package image

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/vdiskfs/vdiskfs/internal/logger"
	"github.com/vdiskfs/vdiskfs/pkg/store"
)

// ImageStore is a store.Store backed by one preallocated image file.
//
// Block writes go straight to the data region; metadata saves alternate
// between the two snapshot slots. The file is sized at creation and never
// grows.
type ImageStore struct {
	path string
	file *os.File
	geo  store.Geometry

	slotSize   uint64
	dataOffset uint64
}

// Open opens an existing image at path, or creates and initializes a new
// one when the file does not exist.
//
// An existing image must carry the vdiskfs magic, the current format
// version, and the same geometry as requested; anything else is reported
// as corruption or a geometry mismatch, never repaired in place.
func Open(path string, geo store.Geometry) (*ImageStore, error) {
	st := &ImageStore{
		path:     path,
		geo:      geo,
		slotSize: slotSizeFor(geo),
	}
	st.dataOffset = headerSize + 2*st.slotSize

	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	switch {
	case err == nil:
		st.file = file
		if err := st.checkHeader(); err != nil {
			file.Close()
			return nil, err
		}
		return st, nil

	case os.IsNotExist(err):
		if err := st.initialize(); err != nil {
			return nil, err
		}
		return st, nil

	default:
		return nil, &store.StoreError{Code: store.ErrIO, Message: "failed to open image", Path: path}
	}
}

// initialize creates the image file, sizes it, and writes the header.
// Both metadata slots stay at generation 0, so LoadSnapshot reports a
// fresh store until the first save.
func (st *ImageStore) initialize() error {
	file, err := os.OpenFile(st.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: "failed to create image", Path: st.path}
	}

	total := int64(st.dataOffset + st.geo.DiskSize())
	if err := file.Truncate(total); err != nil {
		file.Close()
		return &store.StoreError{Code: store.ErrIO, Message: "failed to size image", Path: st.path}
	}

	hdr := encodeHeader(header{
		Version:       FormatVersion,
		BlockSize:     st.geo.BlockSize,
		BlockCount:    st.geo.BlockCount,
		InodeCapacity: st.geo.InodeCapacity,
	})
	if _, err := file.WriteAt(hdr, 0); err != nil {
		file.Close()
		return &store.StoreError{Code: store.ErrIO, Message: "failed to write image header", Path: st.path}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return &store.StoreError{Code: store.ErrIO, Message: "failed to sync new image", Path: st.path}
	}

	st.file = file
	logger.Info("Initialized disk image %s (%d blocks of %d bytes, %d inode slots)",
		st.path, st.geo.BlockCount, st.geo.BlockSize, st.geo.InodeCapacity)
	return nil
}

// checkHeader validates an existing image against the requested geometry.
func (st *ImageStore) checkHeader() error {
	buf := make([]byte, headerSize)
	if _, err := st.file.ReadAt(buf, 0); err != nil {
		return &store.StoreError{Code: store.ErrCorrupt, Message: "failed to read image header", Path: st.path}
	}

	hdr, err := decodeHeader(buf)
	if err != nil {
		return &store.StoreError{Code: store.ErrCorrupt, Message: fmt.Sprintf("invalid image header: %v", err), Path: st.path}
	}
	if hdr.Version != FormatVersion {
		return &store.StoreError{
			Code:    store.ErrCorrupt,
			Message: fmt.Sprintf("unsupported image format version %d", hdr.Version),
			Path:    st.path,
		}
	}
	if hdr.BlockSize != st.geo.BlockSize || hdr.BlockCount != st.geo.BlockCount || hdr.InodeCapacity != st.geo.InodeCapacity {
		return &store.StoreError{
			Code: store.ErrGeometry,
			Message: fmt.Sprintf("image geometry %d/%d/%d does not match configured %d/%d/%d",
				hdr.BlockSize, hdr.BlockCount, hdr.InodeCapacity,
				st.geo.BlockSize, st.geo.BlockCount, st.geo.InodeCapacity),
			Path: st.path,
		}
	}
	return nil
}

// Geometry implements store.Store.
func (st *ImageStore) Geometry() store.Geometry {
	return st.geo
}

// Path returns the image file location, used by backup tooling.
func (st *ImageStore) Path() string {
	return st.path
}

func (st *ImageStore) blockOffset(index uint32) (int64, error) {
	if index >= st.geo.BlockCount {
		return 0, &store.StoreError{
			Code:    store.ErrGeometry,
			Message: fmt.Sprintf("block index %d out of range (count %d)", index, st.geo.BlockCount),
		}
	}
	return int64(st.dataOffset + uint64(index)*uint64(st.geo.BlockSize)), nil
}

// ReadBlock returns the full contents of one block.
func (st *ImageStore) ReadBlock(index uint32) ([]byte, error) {
	off, err := st.blockOffset(index)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, st.geo.BlockSize)
	if _, err := st.file.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, &store.StoreError{Code: store.ErrIO, Message: fmt.Sprintf("failed to read block %d", index), Path: st.path}
	}
	return buf, nil
}

// WriteBlock writes data into one block, zero-padding the remainder.
func (st *ImageStore) WriteBlock(index uint32, data []byte) error {
	if uint32(len(data)) > st.geo.BlockSize {
		return &store.StoreError{
			Code:    store.ErrGeometry,
			Message: fmt.Sprintf("payload of %d bytes exceeds block size %d", len(data), st.geo.BlockSize),
		}
	}
	off, err := st.blockOffset(index)
	if err != nil {
		return err
	}
	buf := make([]byte, st.geo.BlockSize)
	copy(buf, data)
	if _, err := st.file.WriteAt(buf, off); err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: fmt.Sprintf("failed to write block %d", index), Path: st.path}
	}
	return nil
}

func (st *ImageStore) slotOffset(slot int) int64 {
	return int64(headerSize + uint64(slot)*st.slotSize)
}

func (st *ImageStore) readSlotHeader(slot int) (slotHeader, error) {
	buf := make([]byte, slotHeaderSize)
	if _, err := st.file.ReadAt(buf, st.slotOffset(slot)); err != nil {
		return slotHeader{}, &store.StoreError{Code: store.ErrIO, Message: "failed to read snapshot slot header", Path: st.path}
	}
	return decodeSlotHeader(buf), nil
}

// SaveSnapshot serializes the snapshot into the standby slot.
//
// The payload is written and synced before the slot header that makes it
// current, so a crash at any point leaves the other slot — the previous
// verified-good snapshot — untouched and selectable at load.
func (st *ImageStore) SaveSnapshot(snap *store.Snapshot) error {
	payload, err := store.EncodeSnapshot(snap)
	if err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: err.Error(), Path: st.path}
	}
	if uint64(len(payload)) > st.slotSize-slotHeaderSize {
		return &store.StoreError{
			Code:    store.ErrSnapshotTooLarge,
			Message: fmt.Sprintf("snapshot of %d bytes exceeds metadata slot of %d bytes", len(payload), st.slotSize-slotHeaderSize),
			Path:    st.path,
		}
	}

	hdrA, err := st.readSlotHeader(0)
	if err != nil {
		return err
	}
	hdrB, err := st.readSlotHeader(1)
	if err != nil {
		return err
	}

	// Target the older slot; the newer one stays intact as the fallback.
	target := 0
	nextGen := hdrB.Generation + 1
	if hdrA.Generation > hdrB.Generation {
		target = 1
		nextGen = hdrA.Generation + 1
	}

	off := st.slotOffset(target)
	if _, err := st.file.WriteAt(payload, off+slotHeaderSize); err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: "failed to write snapshot payload", Path: st.path}
	}
	if err := st.file.Sync(); err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: "failed to sync snapshot payload", Path: st.path}
	}

	sh := encodeSlotHeader(slotHeader{
		Generation: nextGen,
		PayloadLen: uint32(len(payload)),
		Checksum:   xxhash.Sum64(payload),
	})
	if _, err := st.file.WriteAt(sh, off); err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: "failed to write snapshot slot header", Path: st.path}
	}
	if err := st.file.Sync(); err != nil {
		return &store.StoreError{Code: store.ErrIO, Message: "failed to sync snapshot slot header", Path: st.path}
	}

	logger.Debug("Saved snapshot generation %d to slot %d (%d bytes)", nextGen, target, len(payload))
	return nil
}

// loadSlot reads and verifies one slot, returning nil when the slot is
// unwritten or fails verification.
func (st *ImageStore) loadSlot(slot int) (*store.Snapshot, uint64) {
	hdr, err := st.readSlotHeader(slot)
	if err != nil || hdr.Generation == 0 {
		return nil, 0
	}
	if uint64(hdr.PayloadLen) > st.slotSize-slotHeaderSize {
		return nil, 0
	}

	payload := make([]byte, hdr.PayloadLen)
	if _, err := st.file.ReadAt(payload, st.slotOffset(slot)+slotHeaderSize); err != nil {
		return nil, 0
	}
	if xxhash.Sum64(payload) != hdr.Checksum {
		logger.Warn("Snapshot slot %d failed checksum verification", slot)
		return nil, 0
	}

	snap, err := store.DecodeSnapshot(payload)
	if err != nil {
		logger.Warn("Snapshot slot %d failed to decode: %v", slot, err)
		return nil, 0
	}
	return snap, hdr.Generation
}

// LoadSnapshot returns the newest verifiable snapshot.
//
// A fresh image (both slots unwritten) yields (nil, nil). An image with
// written slots where none verifies is corrupt: the caller decides what
// to do, the store never reformats on its own.
func (st *ImageStore) LoadSnapshot() (*store.Snapshot, error) {
	snapA, genA := st.loadSlot(0)
	snapB, genB := st.loadSlot(1)

	if snapA == nil && snapB == nil {
		hdrA, errA := st.readSlotHeader(0)
		hdrB, errB := st.readSlotHeader(1)
		if errA == nil && errB == nil && hdrA.Generation == 0 && hdrB.Generation == 0 {
			return nil, nil
		}
		return nil, &store.StoreError{
			Code:    store.ErrCorrupt,
			Message: "no metadata slot passed verification",
			Path:    st.path,
		}
	}

	if genA >= genB && snapA != nil {
		return snapA, nil
	}
	if snapB != nil {
		return snapB, nil
	}
	return snapA, nil
}

// Close syncs and closes the image file.
func (st *ImageStore) Close() error {
	if err := st.file.Sync(); err != nil {
		st.file.Close()
		return &store.StoreError{Code: store.ErrIO, Message: "failed to sync image on close", Path: st.path}
	}
	return st.file.Close()
}
