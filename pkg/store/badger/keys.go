package badger

import (
	"encoding/binary"
)

// Key schema
// ==========
//
// All keys are prefixed by kind so the keyspace stays debuggable:
//
//	meta:geometry       image geometry, written once at creation
//	meta:snapshot       current metadata snapshot (bitmap + inode table)
//	block:<index BE32>  raw contents of one data block
//
// Block keys use a fixed-width big-endian index so they sort numerically
// under Badger's lexicographic ordering.

var (
	keyGeometry = []byte("meta:geometry")
	keySnapshot = []byte("meta:snapshot")
)

func keyBlock(index uint32) []byte {
	key := make([]byte, 6+4)
	copy(key, "block:")
	binary.BigEndian.PutUint32(key[6:], index)
	return key
}
