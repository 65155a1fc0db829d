// Package vfs implements the filesystem engine: block allocation, the
// inode table, the linked directory tree, path resolution, file content
// storage, and the session-facing operation surface. Persistence is
// delegated to a store.Store; the engine flushes one metadata snapshot at
// the end of every mutating operation.
package vfs

import (
	"time"
)

// InodeID identifies one allocated inode. IDs are stable while the inode
// is allocated and may be reused after it is freed.
type InodeID uint32

// RootID is the inode id of the root directory. The root is allocated at
// format time and is its own parent.
const RootID InodeID = 0

// FileKind discriminates the three inode kinds.
type FileKind uint32

const (
	KindFile FileKind = iota
	KindDirectory
	KindSymlink
)

// String returns the display name of the kind.
func (k FileKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Inode is one filesystem entry: a file, directory, or symlink.
//
// Parent is a non-owning back-reference (an id to look up, never an
// ownership edge): freeing a directory must not cascade through it. For
// directories, children holds the ordered name mapping with "." and ".."
// pinned as the first two entries. For files the Blocks sequence holds
// content; for symlinks it encodes the unresolved target path string,
// stored through the same block mechanism and resolved only at traversal
// time.
type Inode struct {
	ID         InodeID
	Name       string
	Kind       FileKind
	Owner      string
	Creator    string
	Mode       Mode
	Size       uint64
	CreatedAt  time.Time
	ModifiedAt time.Time
	Parent     InodeID
	Blocks     []uint32

	children *childSet
}

// IsDirectory reports whether the inode is a directory.
func (ino *Inode) IsDirectory() bool {
	return ino.Kind == KindDirectory
}

// DirEntry is one listed directory entry.
type DirEntry struct {
	Name string
	Kind FileKind
	ID   InodeID
}

// Info is a read-only view of an inode's metadata, returned by Stat.
type Info struct {
	ID         InodeID
	Name       string
	Kind       FileKind
	Owner      string
	Creator    string
	Mode       Mode
	Size       uint64
	CreatedAt  time.Time
	ModifiedAt time.Time
	Blocks     int
}

// Stats reports pool occupancy for the whole filesystem.
type Stats struct {
	BlockSize   uint32
	TotalBlocks uint32
	FreeBlocks  uint32
	TotalInodes uint32
	FreeInodes  uint32
}

// WriteMode selects how write applies content to a file.
type WriteMode int

const (
	// Truncate replaces the whole content.
	Truncate WriteMode = iota

	// Append extends the current content, filling the partially-used
	// tail block before allocating new ones.
	Append
)
