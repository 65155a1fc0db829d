package image

import (
	"encoding/binary"
	"fmt"

	"github.com/vdiskfs/vdiskfs/pkg/store"
)

// On-disk layout
// ==============
//
//	offset 0                  header (one reserved 4 KiB region)
//	offset 4096               metadata slot A
//	offset 4096 + slotSize    metadata slot B
//	offset 4096 + 2*slotSize  data region (BlockCount blocks of BlockSize)
//
// The header records the format version and geometry and never changes
// after the image is created. The two metadata slots hold alternating
// generations of the serialized snapshot; saves always target the slot
// with the older generation, so the last verified-good snapshot survives
// a crash mid-save. Each slot starts with a small header carrying the
// generation, the payload length, and an xxhash checksum of the payload.

const (
	// Magic identifies a vdiskfs image file.
	Magic = "VDSK"

	// FormatVersion is bumped on incompatible layout changes.
	FormatVersion uint32 = 1

	// headerSize is the space reserved for the image header.
	headerSize = 4096

	// slotHeaderSize is the space reserved at the start of each metadata
	// slot: generation (8) + payload length (4) + checksum (8), padded.
	slotHeaderSize = 64

	// inodeSlotReserve is the metadata space provisioned per inode slot
	// when sizing the snapshot region. Generous for realistic names and
	// directory fan-out; a snapshot that outgrows the region fails the
	// save with ErrSnapshotTooLarge instead of overwriting block data.
	inodeSlotReserve = 512
)

// header mirrors the fixed fields at offset 0.
type header struct {
	Version       uint32
	BlockSize     uint32
	BlockCount    uint32
	InodeCapacity uint32
}

// slotSizeFor computes the per-slot metadata reservation for a geometry,
// rounded up to a 4 KiB boundary.
func slotSizeFor(geo store.Geometry) uint64 {
	bitmapBytes := uint64(geo.BlockCount+7) / 8
	raw := uint64(slotHeaderSize) + bitmapBytes + uint64(geo.InodeCapacity)*inodeSlotReserve
	return (raw + 4095) &^ 4095
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.BlockSize)
	binary.BigEndian.PutUint32(buf[12:16], h.BlockCount)
	binary.BigEndian.PutUint32(buf[16:20], h.InodeCapacity)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	var h header
	if len(buf) < 20 {
		return h, fmt.Errorf("header too short: %d bytes", len(buf))
	}
	if string(buf[0:4]) != Magic {
		return h, fmt.Errorf("bad magic %q", buf[0:4])
	}
	h.Version = binary.BigEndian.Uint32(buf[4:8])
	h.BlockSize = binary.BigEndian.Uint32(buf[8:12])
	h.BlockCount = binary.BigEndian.Uint32(buf[12:16])
	h.InodeCapacity = binary.BigEndian.Uint32(buf[16:20])
	return h, nil
}

// slotHeader mirrors the fixed fields at the start of a metadata slot.
//
// Generation 0 marks a slot that has never been written.
type slotHeader struct {
	Generation uint64
	PayloadLen uint32
	Checksum   uint64
}

func encodeSlotHeader(sh slotHeader) []byte {
	buf := make([]byte, slotHeaderSize)
	binary.BigEndian.PutUint64(buf[0:8], sh.Generation)
	binary.BigEndian.PutUint32(buf[8:12], sh.PayloadLen)
	binary.BigEndian.PutUint64(buf[12:20], sh.Checksum)
	return buf
}

func decodeSlotHeader(buf []byte) slotHeader {
	return slotHeader{
		Generation: binary.BigEndian.Uint64(buf[0:8]),
		PayloadLen: binary.BigEndian.Uint32(buf[8:12]),
		Checksum:   binary.BigEndian.Uint64(buf[12:20]),
	}
}
