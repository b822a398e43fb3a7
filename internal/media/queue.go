package media

import (
	"sync"

	"github.com/lanikai/alohacapture/internal/metrics"
)

// DefaultQueueCapacity bounds how far the consumer may fall behind.
const DefaultQueueCapacity = 10

// FrameQueue is a bounded FIFO of captured frames waiting for the consumer.
//
// When the queue is full, TryEnqueue rejects the incoming frame instead of
// blocking: the camera callback path must never stall, and video tolerates
// dropped frames.
type FrameQueue struct {
	frames chan *Frame

	cancelOnce sync.Once
	cancelled  chan struct{}

	metrics *metrics.Capture
}

func NewFrameQueue(capacity int, m *metrics.Capture) *FrameQueue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &FrameQueue{
		frames:    make(chan *Frame, capacity),
		cancelled: make(chan struct{}),
		metrics:   m,
	}
}

// TryEnqueue adds f to the tail of the queue. It returns false, without
// blocking, if the queue is full or has been cancelled; the caller still owns
// f in that case.
func (q *FrameQueue) TryEnqueue(f *Frame) bool {
	select {
	case <-q.cancelled:
		return false
	default:
	}

	select {
	case q.frames <- f:
		q.metrics.SetQueueDepth(len(q.frames))
		return true
	default:
		return false
	}
}

// Dequeue removes the frame at the head of the queue, blocking until one is
// available. It returns nil once the queue has been cancelled.
func (q *FrameQueue) Dequeue() *Frame {
	// Cancellation wins over pending frames.
	select {
	case <-q.cancelled:
		return nil
	default:
	}

	select {
	case f := <-q.frames:
		q.metrics.SetQueueDepth(len(q.frames))
		return f
	case <-q.cancelled:
		return nil
	}
}

// Cancel wakes every blocked Dequeue and makes future calls return nil.
// Frames already queued stay queued until Clear.
func (q *FrameQueue) Cancel() {
	q.cancelOnce.Do(func() {
		close(q.cancelled)
	})
}

// Clear empties the queue, releasing each frame to pool. A nil pool simply
// drops the frames.
func (q *FrameQueue) Clear(pool *FramePool) {
	for {
		select {
		case f := <-q.frames:
			if pool != nil {
				pool.Release(f)
			}
		default:
			q.metrics.SetQueueDepth(0)
			return
		}
	}
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	return len(q.frames)
}

// Cap returns the queue capacity.
func (q *FrameQueue) Cap() int {
	return cap(q.frames)
}
