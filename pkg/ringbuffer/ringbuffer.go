// Package ringbuffer provides the blocking byte queue between the decoder
// goroutine and the audio callback. A full buffer holds the writer back and
// an empty one parks the reader, so the decoder never runs ahead of playback
// by more than the buffer's capacity.
package ringbuffer

import (
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Write after Close, and by Read once a closed
	// buffer has no data left.
	ErrClosed = errors.New("ringbuffer: closed")
	// ErrTooLarge is returned by Write when the request can never fit.
	ErrTooLarge = errors.New("ringbuffer: write larger than capacity")
)

// RingBuffer is a bounded circular byte buffer shared by one producer and
// one consumer. Writes are all-or-nothing and block until the whole request
// fits; reads are partial and block only while the buffer is empty.
//
// RingBuffer implements io.Reader and io.Writer. A single mutex guards the
// storage and cursors; two condition variables wake blocked readers and
// writers. There is no polling.
type RingBuffer struct {
	mu             sync.Mutex
	dataAvailable  *sync.Cond
	spaceAvailable *sync.Cond

	buffer   []byte
	writePos int
	readPos  int
	filled   int
	closed   bool
}

// New creates a ring buffer holding exactly size bytes.
func New(size int) *RingBuffer {
	if size <= 0 {
		panic("ringbuffer: size must be positive")
	}
	rb := &RingBuffer{
		buffer: make([]byte, size),
	}
	rb.dataAvailable = sync.NewCond(&rb.mu)
	rb.spaceAvailable = sync.NewCond(&rb.mu)
	return rb
}

// Write copies all of data into the buffer, blocking until there is room for
// the whole request. It never writes a partial request.
//
// Write returns ErrTooLarge when len(data) exceeds the capacity and ErrClosed
// when the buffer is closed before or while waiting.
func (rb *RingBuffer) Write(data []byte) (int, error) {
	n := len(data)
	if n == 0 {
		return 0, nil
	}
	if n > len(rb.buffer) {
		return 0, ErrTooLarge
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	for !rb.closed && rb.filled+n > len(rb.buffer) {
		rb.spaceAvailable.Wait()
	}
	if rb.closed {
		return 0, ErrClosed
	}

	first := copy(rb.buffer[rb.writePos:], data)
	if first < n {
		copy(rb.buffer, data[first:])
	}
	rb.writePos = (rb.writePos + n) % len(rb.buffer)
	rb.filled += n

	rb.dataAvailable.Signal()
	return n, nil
}

// Read copies up to len(p) bytes out of the buffer. It blocks while the
// buffer is empty and returns as soon as any data is available, so n may be
// smaller than len(p).
//
// After Close, Read drains what is left without blocking and then returns
// ErrClosed.
func (rb *RingBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	for !rb.closed && rb.filled == 0 {
		rb.dataAvailable.Wait()
	}
	if rb.filled == 0 {
		return 0, ErrClosed
	}

	n := min(len(p), rb.filled)
	first := copy(p[:n], rb.buffer[rb.readPos:])
	if first < n {
		copy(p[first:n], rb.buffer)
	}
	rb.readPos = (rb.readPos + n) % len(rb.buffer)
	rb.filled -= n

	rb.spaceAvailable.Signal()
	return n, nil
}

// Close wakes every blocked reader and writer. Further writes fail with
// ErrClosed; buffered data can still be read. Close is idempotent.
func (rb *RingBuffer) Close() error {
	rb.mu.Lock()
	rb.closed = true
	rb.mu.Unlock()

	rb.dataAvailable.Broadcast()
	rb.spaceAvailable.Broadcast()
	return nil
}

// Buffered returns the number of bytes available for reading.
// The value is a snapshot and may be stale by the time it is used.
func (rb *RingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.filled
}

// Free returns the number of bytes that can be written without blocking.
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.buffer) - rb.filled
}

// Size returns the capacity of the buffer.
func (rb *RingBuffer) Size() int {
	return len(rb.buffer)
}

// Drained reports whether all written data has been read.
func (rb *RingBuffer) Drained() bool {
	return rb.Buffered() == 0
}

// Closed reports whether Close has been called.
func (rb *RingBuffer) Closed() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.closed
}
