package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferFIFO(t *testing.T) {
	b := NewBuffer(4)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Push(Frame{Sequence: uint64(i)}))
	}
	assert.Equal(t, 3, b.Len())

	for i := 0; i < 3; i++ {
		f, ok := b.Pop()
		require.True(t, ok)
		assert.Equal(t, uint64(i), f.Sequence)
	}
	_, ok := b.Pop()
	assert.False(t, ok)
	assert.Zero(t, b.Dropped())
}

// Pushing N+1 frames into a buffer of capacity N must retain the N most
// recent frames, verifiable by sequence numbers.
func TestBufferDropOldest(t *testing.T) {
	const capacity = 5
	b := NewBuffer(capacity)
	for i := 0; i < capacity+1; i++ {
		require.NoError(t, b.Push(Frame{Sequence: uint64(i)}))
	}

	assert.Equal(t, capacity, b.Len())
	assert.Equal(t, uint64(1), b.Dropped())

	got := make([]uint64, 0, capacity)
	for {
		f, ok := b.Pop()
		if !ok {
			break
		}
		got = append(got, f.Sequence)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got)
}

func TestBufferSustainedPressure(t *testing.T) {
	b := NewBuffer(2)
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Push(Frame{Sequence: uint64(i)}))
	}
	assert.Equal(t, uint64(8), b.Dropped())

	f, ok := b.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(8), f.Sequence)
	f, ok = b.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(9), f.Sequence)
}

func TestBufferClose(t *testing.T) {
	b := NewBuffer(2)
	require.NoError(t, b.Push(Frame{Sequence: 1}))
	b.Close()

	assert.ErrorIs(t, b.Push(Frame{Sequence: 2}), ErrClosed)
	_, ok := b.Pop()
	assert.False(t, ok)
}

func TestBoxCenter(t *testing.T) {
	b := Box{X1: 10, Y1: 20, X2: 30, Y2: 60}
	assert.Equal(t, Point{X: 20, Y: 40}, b.Center())
	assert.Equal(t, 20.0, b.Width())
	assert.Equal(t, 40.0, b.Height())
}
