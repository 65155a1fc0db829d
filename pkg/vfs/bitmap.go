package vfs

import (
	"fmt"
	"math/bits"
)

// Bitmap is the block allocator: one bit per data block, packed into
// uint64 words. Allocation returns the lowest free index so images stay
// dense near the front.
type Bitmap struct {
	words []uint64
	count uint32
	free  uint32
}

// NewBitmap creates an empty bitmap tracking count blocks.
func NewBitmap(count uint32) *Bitmap {
	return &Bitmap{
		words: make([]uint64, (count+63)/64),
		count: count,
		free:  count,
	}
}

// Allocate marks the lowest free block occupied and returns its index.
func (bm *Bitmap) Allocate() (uint32, error) {
	for w, word := range bm.words {
		if word == ^uint64(0) {
			continue
		}
		bit := uint32(bits.TrailingZeros64(^word))
		index := uint32(w)*64 + bit
		if index >= bm.count {
			break
		}
		bm.words[w] |= 1 << bit
		bm.free--
		return index, nil
	}
	return 0, &Error{Code: ErrOutOfSpace, Message: "no free blocks available"}
}

// Free clears the bit for index.
//
// Freeing a block that is not allocated is a caller logic error: it means
// the bitmap and the inode block lists have diverged, and continuing
// would corrupt the allocation invariant. It panics rather than being
// silently ignored.
func (bm *Bitmap) Free(index uint32) {
	if index >= bm.count {
		panic(fmt.Sprintf("vfs: free of out-of-range block %d", index))
	}
	w, bit := index/64, index%64
	if bm.words[w]&(1<<bit) == 0 {
		panic(fmt.Sprintf("vfs: double free of block %d", index))
	}
	bm.words[w] &^= 1 << bit
	bm.free++
}

// Occupied reports whether index is allocated.
func (bm *Bitmap) Occupied(index uint32) bool {
	if index >= bm.count {
		return false
	}
	return bm.words[index/64]&(1<<(index%64)) != 0
}

// Free count accessors for stats and tests.
func (bm *Bitmap) FreeCount() uint32  { return bm.free }
func (bm *Bitmap) TotalCount() uint32 { return bm.count }

// Words exposes the packed words for snapshot serialization.
func (bm *Bitmap) Words() []uint64 {
	out := make([]uint64, len(bm.words))
	copy(out, bm.words)
	return out
}

// bitmapFromWords rebuilds a bitmap from snapshot words, recomputing the
// free count.
func bitmapFromWords(words []uint64, count uint32) *Bitmap {
	bm := &Bitmap{
		words: make([]uint64, (count+63)/64),
		count: count,
	}
	copy(bm.words, words)

	used := uint32(0)
	for _, word := range bm.words {
		used += uint32(bits.OnesCount64(word))
	}
	bm.free = count - used
	return bm
}
