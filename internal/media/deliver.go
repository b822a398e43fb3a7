package media

import (
	"github.com/lanikai/alohacapture/internal/metrics"
)

// Deliver is the consumer side of the pending queue: it hands each frame to
// sink and recycles it into pool. It returns when the queue is cancelled.
func Deliver(queue *FrameQueue, pool *FramePool, sink Sink, m *metrics.Capture) {
	for {
		f := queue.Dequeue()
		if f == nil {
			return
		}
		if err := sink.WriteVideo(f); err != nil {
			m.CaptureError("video")
			log.Warn("Sink rejected video frame %d: %v", f.Seq, err)
		} else {
			m.FrameDelivered()
		}
		pool.Release(f)
	}
}
