package media

import (
	"sync"

	"github.com/lanikai/alohacapture/internal/metrics"
)

// FrameMailbox carries the most recent camera buffer from the hardware
// callback to the video worker. It holds at most one buffer: Put overwrites
// (and releases) an unconsumed buffer instead of waiting, so the callback
// never blocks.
type FrameMailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    *SharedBuffer
	closed bool
	err    error

	overwrites uint64

	metrics *metrics.Capture
}

func NewFrameMailbox(m *metrics.Capture) *FrameMailbox {
	mb := &FrameMailbox{metrics: m}
	mb.cond = sync.NewCond(&mb.mu)
	return mb
}

// Put offers buf to the worker. The mailbox takes over the caller's hold on
// buf. After Close, buf is released immediately.
func (mb *FrameMailbox) Put(buf *SharedBuffer) {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		buf.Release()
		return
	}
	old := mb.buf
	mb.buf = buf
	if old != nil {
		mb.overwrites++
	}
	mb.cond.Signal()
	mb.mu.Unlock()

	if old != nil {
		old.Release()
		mb.metrics.FrameDropped(metrics.DropOverwrite)
	}
}

// Take blocks until a buffer is available or the mailbox is closed. After
// Close it returns nil and the error passed to Close.
func (mb *FrameMailbox) Take() (*SharedBuffer, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	for mb.buf == nil && !mb.closed {
		mb.cond.Wait()
	}
	if mb.closed {
		return nil, mb.err
	}
	buf := mb.buf
	mb.buf = nil
	return buf, nil
}

// Close wakes the waiting worker. A nil err means an orderly stop; a non-nil
// err reports why frames stopped arriving. Only the first Close counts.
func (mb *FrameMailbox) Close(err error) {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return
	}
	mb.closed = true
	mb.err = err
	pending := mb.buf
	mb.buf = nil
	mb.cond.Broadcast()
	mb.mu.Unlock()

	pending.Release()
}

// Overwrites returns how many buffers were replaced before the worker took
// them.
func (mb *FrameMailbox) Overwrites() uint64 {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.overwrites
}
