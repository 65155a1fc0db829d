package vfs

import (
	"fmt"
)

// InodeTable is the fixed-capacity inode slot array. Slot i holds inode
// id i; a nil slot is free. Allocation returns the lowest free slot so id
// 0 lands on the root directory at format time.
type InodeTable struct {
	slots []*Inode
	free  uint32
}

// NewInodeTable creates an empty table with the given capacity.
func NewInodeTable(capacity uint32) *InodeTable {
	return &InodeTable{
		slots: make([]*Inode, capacity),
		free:  capacity,
	}
}

// Allocate reserves the lowest free slot and returns a new inode bound to
// it. The caller fills in the record and links it into its parent.
func (t *InodeTable) Allocate() (*Inode, error) {
	for i, slot := range t.slots {
		if slot == nil {
			ino := &Inode{ID: InodeID(i)}
			t.slots[i] = ino
			t.free--
			return ino, nil
		}
	}
	return nil, &Error{Code: ErrOutOfInodes, Message: "no free inode slots available"}
}

// Get returns the inode by id.
func (t *InodeTable) Get(id InodeID) (*Inode, error) {
	if uint32(id) >= uint32(len(t.slots)) || t.slots[id] == nil {
		return nil, &Error{Code: ErrNotFound, Message: fmt.Sprintf("inode %d not allocated", id)}
	}
	return t.slots[id], nil
}

// Free releases the slot. The caller must have detached the inode from
// its parent mapping and released its blocks first.
func (t *InodeTable) Free(id InodeID) {
	if uint32(id) >= uint32(len(t.slots)) || t.slots[id] == nil {
		panic(fmt.Sprintf("vfs: free of unallocated inode %d", id))
	}
	t.slots[id] = nil
	t.free++
}

// Free count accessors for stats and tests.
func (t *InodeTable) FreeCount() uint32  { return t.free }
func (t *InodeTable) TotalCount() uint32 { return uint32(len(t.slots)) }

// live iterates allocated inodes in slot order.
func (t *InodeTable) live(fn func(*Inode)) {
	for _, slot := range t.slots {
		if slot != nil {
			fn(slot)
		}
	}
}
