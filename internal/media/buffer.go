package media

import (
	"sync/atomic"
	"time"
)

/*
A SharedBuffer is a hardware-owned byte buffer lent to the capture pipeline.
The camera fills it and pushes it through its frame callback; whoever ends up
holding it must copy what it needs and Release() it as quickly as possible,
which hands the memory back to the device for the next frame.

Example usage:

	func onFrame(buf *SharedBuffer) {
		defer buf.Release() // Return the buffer to the device.
		n := copy(frame.Data, buf.Bytes())
		// ...
	}

The goal is to avoid per-frame allocations while making the point at which
the device may overwrite the bytes explicit.
*/
type SharedBuffer struct {
	data      []byte
	timestamp time.Time

	count   int32
	release func()
}

func NewSharedBuffer(data []byte, timestamp time.Time, release func()) *SharedBuffer {
	return &SharedBuffer{data, timestamp, 1, release}
}

// Bytes returns the underlying byte buffer. It is valid until Release.
func (buf *SharedBuffer) Bytes() []byte {
	return buf.data
}

// Timestamp returns the time at which the device captured the buffer.
func (buf *SharedBuffer) Timestamp() time.Time {
	return buf.timestamp
}

// Increments the hold count.
func (buf *SharedBuffer) Hold() {
	atomic.AddInt32(&buf.count, 1)
}

// Decrements the hold count. When the hold count reaches zero, the underlying
// byte buffer is handed back to its owner. Extra releases are ignored.
func (buf *SharedBuffer) Release() {
	if buf == nil {
		return
	}
	newCount := atomic.AddInt32(&buf.count, -1)
	if newCount == 0 && buf.release != nil {
		buf.release()
	}
}
