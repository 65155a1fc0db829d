package vfs

import (
	"fmt"
	"time"
)

// File content storage
// ====================
//
// Content lives in an ordered sequence of fixed-size blocks referenced
// by the inode. Writes keep the allocation invariant safe against
// failure: new blocks are always allocated (and written) before old ones
// are freed, so an OutOfSpace mid-write leaves the previous content and
// the bitmap untouched. Trailing bytes in the last block beyond the
// declared size exist on disk but are never exposed by reads.

// blocksFor returns how many blocks n bytes occupy.
func (fs *Filesystem) blocksFor(n uint64) uint32 {
	bs := uint64(fs.geo.BlockSize)
	return uint32((n + bs - 1) / bs)
}

// readContentLocked concatenates the inode's blocks, truncated to
// exactly the declared size.
func (fs *Filesystem) readContentLocked(ino *Inode) ([]byte, error) {
	out := make([]byte, 0, ino.Size)
	remaining := ino.Size
	for _, index := range ino.Blocks {
		if remaining == 0 {
			break
		}
		block, err := fs.st.ReadBlock(index)
		if err != nil {
			return nil, fmt.Errorf("failed to read content block: %w", err)
		}
		take := uint64(len(block))
		if take > remaining {
			take = remaining
		}
		out = append(out, block[:take]...)
		remaining -= take
	}
	return out, nil
}

// allocateBlocksLocked reserves count blocks, rolling the reservation
// back if the pool runs out partway.
func (fs *Filesystem) allocateBlocksLocked(count uint32) ([]uint32, error) {
	indices := make([]uint32, 0, count)
	for range count {
		index, err := fs.bitmap.Allocate()
		if err != nil {
			for _, allocated := range indices {
				fs.bitmap.Free(allocated)
			}
			return nil, err
		}
		indices = append(indices, index)
	}
	return indices, nil
}

// writeContentLocked applies data to the inode per the write mode and
// updates size and modification time.
func (fs *Filesystem) writeContentLocked(ino *Inode, data []byte, mode WriteMode) error {
	switch mode {
	case Truncate:
		return fs.truncateWriteLocked(ino, data)
	case Append:
		return fs.appendWriteLocked(ino, data)
	default:
		return &Error{Code: ErrInvalidArgument, Message: fmt.Sprintf("unknown write mode %d", mode)}
	}
}

// truncateWriteLocked replaces the whole content with data.
func (fs *Filesystem) truncateWriteLocked(ino *Inode, data []byte) error {
	bs := int(fs.geo.BlockSize)

	newBlocks, err := fs.allocateBlocksLocked(fs.blocksFor(uint64(len(data))))
	if err != nil {
		return err
	}

	for i, index := range newBlocks {
		start := i * bs
		end := start + bs
		if end > len(data) {
			end = len(data)
		}
		if err := fs.st.WriteBlock(index, data[start:end]); err != nil {
			for _, allocated := range newBlocks {
				fs.bitmap.Free(allocated)
			}
			return fmt.Errorf("failed to write content block: %w", err)
		}
	}

	for _, index := range ino.Blocks {
		fs.bitmap.Free(index)
	}
	ino.Blocks = newBlocks
	ino.Size = uint64(len(data))
	ino.ModifiedAt = time.Now()
	return nil
}

// appendWriteLocked extends the content, filling the partially-used tail
// block before allocating additional ones.
func (fs *Filesystem) appendWriteLocked(ino *Inode, data []byte) error {
	if len(data) == 0 {
		ino.ModifiedAt = time.Now()
		return nil
	}

	bs := uint64(fs.geo.BlockSize)
	tailUsed := ino.Size % bs
	var tailSpace uint64
	if len(ino.Blocks) > 0 && tailUsed > 0 {
		tailSpace = bs - tailUsed
	}

	var extra uint32
	if uint64(len(data)) > tailSpace {
		extra = fs.blocksFor(uint64(len(data)) - tailSpace)
	}
	newBlocks, err := fs.allocateBlocksLocked(extra)
	if err != nil {
		return err
	}

	cleanup := func() {
		for _, allocated := range newBlocks {
			fs.bitmap.Free(allocated)
		}
	}

	rest := data
	if tailSpace > 0 {
		tailIndex := ino.Blocks[len(ino.Blocks)-1]
		block, err := fs.st.ReadBlock(tailIndex)
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to read tail block: %w", err)
		}

		fill := tailSpace
		if uint64(len(rest)) < fill {
			fill = uint64(len(rest))
		}
		copy(block[tailUsed:], rest[:fill])
		if err := fs.st.WriteBlock(tailIndex, block); err != nil {
			cleanup()
			return fmt.Errorf("failed to write tail block: %w", err)
		}
		rest = rest[fill:]
	}

	for i, index := range newBlocks {
		start := uint64(i) * bs
		end := start + bs
		if end > uint64(len(rest)) {
			end = uint64(len(rest))
		}
		if err := fs.st.WriteBlock(index, rest[start:end]); err != nil {
			cleanup()
			return fmt.Errorf("failed to write content block: %w", err)
		}
	}

	ino.Blocks = append(ino.Blocks, newBlocks...)
	ino.Size += uint64(len(data))
	ino.ModifiedAt = time.Now()
	return nil
}

// freeBlocksLocked returns all of an inode's blocks to the pool.
func (fs *Filesystem) freeBlocksLocked(ino *Inode) {
	for _, index := range ino.Blocks {
		fs.bitmap.Free(index)
	}
	ino.Blocks = nil
	ino.Size = 0
}
