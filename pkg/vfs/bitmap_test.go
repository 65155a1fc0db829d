package vfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmapAllocateLowestFirst(t *testing.T) {
	bm := NewBitmap(10)

	for want := uint32(0); want < 10; want++ {
		index, err := bm.Allocate()
		require.NoError(t, err)
		require.Equal(t, want, index)
	}
	require.Equal(t, uint32(0), bm.FreeCount())

	_, err := bm.Allocate()
	require.Error(t, err)
	require.True(t, IsCode(err, ErrOutOfSpace))
}

func TestBitmapFreeReusesLowest(t *testing.T) {
	bm := NewBitmap(8)
	for range 8 {
		_, err := bm.Allocate()
		require.NoError(t, err)
	}

	bm.Free(5)
	bm.Free(2)
	require.Equal(t, uint32(2), bm.FreeCount())

	index, err := bm.Allocate()
	require.NoError(t, err)
	require.Equal(t, uint32(2), index)

	index, err = bm.Allocate()
	require.NoError(t, err)
	require.Equal(t, uint32(5), index)
}

func TestBitmapOccupied(t *testing.T) {
	bm := NewBitmap(70) // spans two words

	index, err := bm.Allocate()
	require.NoError(t, err)
	require.True(t, bm.Occupied(index))
	require.False(t, bm.Occupied(69))
	require.False(t, bm.Occupied(200))

	bm.Free(index)
	require.False(t, bm.Occupied(index))
}

func TestBitmapDoubleFreePanics(t *testing.T) {
	bm := NewBitmap(4)
	index, err := bm.Allocate()
	require.NoError(t, err)
	bm.Free(index)

	require.Panics(t, func() { bm.Free(index) })
	require.Panics(t, func() { bm.Free(100) })
}

func TestBitmapWordsRoundTrip(t *testing.T) {
	bm := NewBitmap(130) // three words, last one partial
	for range 70 {
		_, err := bm.Allocate()
		require.NoError(t, err)
	}
	bm.Free(3)
	bm.Free(64)

	restored := bitmapFromWords(bm.Words(), 130)
	require.Equal(t, bm.FreeCount(), restored.FreeCount())
	for i := uint32(0); i < 130; i++ {
		require.Equal(t, bm.Occupied(i), restored.Occupied(i), "block %d", i)
	}
}

func TestInodeTableAllocateLowest(t *testing.T) {
	table := NewInodeTable(4)

	first, err := table.Allocate()
	require.NoError(t, err)
	require.Equal(t, InodeID(0), first.ID)

	second, err := table.Allocate()
	require.NoError(t, err)
	require.Equal(t, InodeID(1), second.ID)

	table.Free(first.ID)
	reused, err := table.Allocate()
	require.NoError(t, err)
	require.Equal(t, InodeID(0), reused.ID)
}

func TestInodeTableExhaustion(t *testing.T) {
	table := NewInodeTable(2)
	for range 2 {
		_, err := table.Allocate()
		require.NoError(t, err)
	}

	_, err := table.Allocate()
	require.True(t, IsCode(err, ErrOutOfInodes))
}

func TestInodeTableGet(t *testing.T) {
	table := NewInodeTable(2)
	ino, err := table.Allocate()
	require.NoError(t, err)

	got, err := table.Get(ino.ID)
	require.NoError(t, err)
	require.Same(t, ino, got)

	_, err = table.Get(InodeID(1))
	require.True(t, IsCode(err, ErrNotFound))
	_, err = table.Get(InodeID(99))
	require.True(t, IsCode(err, ErrNotFound))
}
