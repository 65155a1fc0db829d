package store

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Snapshot codec
// ==============
//
// Snapshots are serialized with XDR (RFC 4506). The format is a good fit
// for an on-disk metadata region: fixed-width big-endian integers, length-
// prefixed strings and arrays, no field names, and no dependence on map
// iteration order. JSON would be easier to eyeball but the snapshot schema
// is stable and the payload shares a file with raw block data, so the
// compact binary form wins here.

// EncodeSnapshot serializes a snapshot to XDR bytes.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot deserializes a snapshot from XDR bytes.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
