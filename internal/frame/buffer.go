package frame

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Push after the buffer has been closed.
var ErrClosed = errors.New("frame: buffer closed")

// Buffer is the fixed-capacity hand-off between a capture goroutine and the
// executor loop. When full it discards its oldest frame to admit the newest:
// freshness over completeness. Push and Pop never block.
type Buffer struct {
	mu      sync.Mutex
	frames  []Frame
	head    int
	size    int
	dropped uint64
	closed  bool
}

// NewBuffer creates a buffer holding at most capacity frames. Capacity must
// be at least 1.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{frames: make([]Frame, capacity)}
}

// Push admits a frame, evicting the oldest one if the buffer is full.
func (b *Buffer) Push(f Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.size == len(b.frames) {
		// Overwrite the oldest slot.
		b.frames[b.head] = f
		b.head = (b.head + 1) % len(b.frames)
		b.dropped++
		return nil
	}
	b.frames[(b.head+b.size)%len(b.frames)] = f
	b.size++
	return nil
}

// Pop removes and returns the oldest buffered frame. The second return is
// false when the buffer is empty.
func (b *Buffer) Pop() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return Frame{}, false
	}
	f := b.frames[b.head]
	b.frames[b.head] = Frame{}
	b.head = (b.head + 1) % len(b.frames)
	b.size--
	return f, true
}

// Len reports the number of buffered frames.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped reports how many frames have been evicted under pressure.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close marks the buffer closed and releases buffered frames. Pop continues
// to drain nothing; Push returns ErrClosed.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.frames = make([]Frame, len(b.frames))
	b.head, b.size = 0, 0
}
