package audio

import (
	"io"
	"sync"

	"github.com/lanikai/alohacapture/internal/media"
	"github.com/smallnest/ringbuffer"
)

// ringStream decouples a push-style capture callback from blocking reads.
// The callback writes into a ring buffer; Read waits until data arrives.
// When the reader falls behind, the newest samples are dropped.
type ringStream struct {
	mu   sync.Mutex
	cond *sync.Cond
	rb   *ringbuffer.RingBuffer

	closed bool
	err    error

	overruns uint64
}

func newRingStream(capacity int) *ringStream {
	s := &ringStream{rb: ringbuffer.New(capacity)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// push appends captured samples. Never blocks.
func (s *ringStream) push(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil || len(p) == 0 {
		return
	}

	n, _ := s.rb.Write(p)
	if n < len(p) {
		s.overruns++
		if s.overruns == 1 || s.overruns%100 == 0 {
			log.Warn("Audio ring buffer full, dropped %d bytes (%d overruns)", len(p)-n, s.overruns)
		}
	}
	if n > 0 {
		s.cond.Broadcast()
	}
}

// fail makes pending and future reads return err once buffered data is
// drained.
func (s *ringStream) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *ringStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.rb.Length() == 0 {
		if s.closed {
			return 0, errClosed
		}
		if s.err != nil {
			return 0, s.err
		}
		s.cond.Wait()
	}
	n, err := s.rb.Read(p)
	if err != nil && n == 0 {
		return 0, err
	}
	return n, nil
}

// shut wakes readers and discards buffered samples.
func (s *ringStream) shut() {
	s.mu.Lock()
	s.closed = true
	s.rb.Reset()
	s.cond.Broadcast()
	s.mu.Unlock()
}

var _ io.Reader = (*ringStream)(nil)

// Ring buffer capacity: one second of audio.
func ringCapacity(format media.AudioFormat) int {
	n := format.SampleRate * format.FrameBytes()
	if n < 4096 {
		n = 4096
	}
	return n
}
