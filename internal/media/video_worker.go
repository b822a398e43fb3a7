package media

import (
	"sync/atomic"
	"time"

	"github.com/lanikai/alohacapture/internal/metrics"
	"github.com/pkg/errors"
)

// VideoConfig wires a VideoWorker to its session.
type VideoConfig struct {
	Mailbox *FrameMailbox
	Pool    *FramePool
	Queue   *FrameQueue

	// Target frame rate. Frames arriving faster are skipped. Zero accepts
	// every frame.
	FrameRate int

	// Source handle stamped on every frame.
	Source string

	Metrics *metrics.Capture

	// Fatal receives unrecoverable capture errors. May be nil.
	Fatal func(error)
}

// VideoStats counts what a VideoWorker did with the buffers it took.
type VideoStats struct {
	Captured    uint64
	Dropped     uint64
	RateSkipped uint64
	Errors      uint64
}

// VideoWorker copies camera buffers into pooled frames and pushes them onto
// the pending queue.
type VideoWorker struct {
	*worker
	cfg VideoConfig

	minGap time.Duration
	last   time.Time
	seq    uint64

	captured    uint64
	dropped     uint64
	rateSkipped uint64
	errors      uint64
}

func NewVideoWorker(cfg VideoConfig) *VideoWorker {
	w := &VideoWorker{cfg: cfg}
	if cfg.FrameRate > 0 {
		// Allow a quarter interval of jitter before treating a frame as early.
		interval := time.Second / time.Duration(cfg.FrameRate)
		w.minGap = interval - interval/4
	}
	w.worker = newWorker("video", func() {
		cfg.Mailbox.Close(nil)
	})
	return w
}

// Start spawns the capture goroutine.
func (w *VideoWorker) Start() error {
	return w.start(w.run)
}

func (w *VideoWorker) run() {
	for {
		if w.stopping() {
			return
		}

		buf, err := w.cfg.Mailbox.Take()
		if buf == nil {
			if err != nil {
				log.Error("Video capture lost: %v", err)
				if w.cfg.Fatal != nil {
					w.cfg.Fatal(errors.Wrap(err, "video capture"))
				}
			}
			return
		}

		if w.stopping() {
			buf.Release()
			return
		}

		if err := w.capture(buf); err != nil {
			atomic.AddUint64(&w.errors, 1)
			w.cfg.Metrics.CaptureError("video")
			log.Warn("Skipping video frame: %v", err)
		}
	}
}

func (w *VideoWorker) capture(buf *SharedBuffer) error {
	defer buf.Release()

	ts := buf.Timestamp()
	if w.minGap > 0 && !w.last.IsZero() && ts.Sub(w.last) < w.minGap {
		atomic.AddUint64(&w.rateSkipped, 1)
		w.cfg.Metrics.FrameDropped(metrics.DropRate)
		return nil
	}

	data := buf.Bytes()
	size := w.cfg.Pool.Geometry().Size()
	if len(data) != size {
		return errors.Wrapf(errShortFrame, "got %d bytes, want %d", len(data), size)
	}

	f := w.cfg.Pool.Get()
	copy(f.Data, data)
	w.seq++
	f.Seq = w.seq
	f.Timestamp = ts
	f.Source = w.cfg.Source
	w.last = ts

	if !w.cfg.Queue.TryEnqueue(f) {
		// Queue saturated: drop the newest frame, keep the buffer.
		w.cfg.Pool.Release(f)
		atomic.AddUint64(&w.dropped, 1)
		w.cfg.Metrics.FrameDropped(metrics.DropQueueFull)
		log.Trace(5, "Pending queue full, dropped frame %d", w.seq)
		return nil
	}

	atomic.AddUint64(&w.captured, 1)
	w.cfg.Metrics.FrameCaptured()
	return nil
}

func (w *VideoWorker) Stats() VideoStats {
	return VideoStats{
		Captured:    atomic.LoadUint64(&w.captured),
		Dropped:     atomic.LoadUint64(&w.dropped),
		RateSkipped: atomic.LoadUint64(&w.rateSkipped),
		Errors:      atomic.LoadUint64(&w.errors),
	}
}
