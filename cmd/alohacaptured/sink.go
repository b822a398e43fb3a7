package main

import (
	"sync"
	"time"

	"github.com/lanikai/alohacapture"
	"github.com/lanikai/alohacapture/internal/media"
)

// statsSink stands in for an encoder: it counts what it receives and logs a
// line per interval.
type statsSink struct {
	interval time.Duration

	mu         sync.Mutex
	frames     int
	videoBytes int
	chunks     int
	audioBytes int
	lastSeq    uint64
	gaps       int
	lastLog    time.Time
	now        func() time.Time
}

func newStatsSink(interval time.Duration) *statsSink {
	return &statsSink{interval: interval, now: time.Now}
}

func (s *statsSink) WriteVideo(f *media.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames == 0 {
		log.Info("First frame: %v from %s", f.Geometry, f.Source)
	}
	// Sequence numbers skip where the pipeline dropped frames.
	if s.lastSeq != 0 && f.Seq != s.lastSeq+1 {
		s.gaps++
	}
	s.lastSeq = f.Seq
	s.frames++
	s.videoBytes += len(f.Data)
	s.maybeLog()
	return nil
}

func (s *statsSink) WriteAudio(c *media.AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks++
	s.audioBytes += len(c.Data)
	s.maybeLog()
	return nil
}

func (s *statsSink) maybeLog() {
	now := s.now()
	if s.lastLog.IsZero() {
		s.lastLog = now
		return
	}
	if now.Sub(s.lastLog) < s.interval {
		return
	}
	s.lastLog = now
	log.Info("%d frames (%d gaps), %d audio chunks", s.frames, s.gaps, s.chunks)
}

func (s *statsSink) summary(st alohacapture.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Info("Delivered %d frames (%.1f MiB), %d audio chunks (%.1f KiB)",
		s.frames, float64(s.videoBytes)/(1<<20), s.chunks, float64(s.audioBytes)/(1<<10))
	log.Info("Captured %d, dropped %d (queue full), %d (rate), %d overwritten; pool %d hits / %d misses",
		st.Video.Captured, st.Video.Dropped, st.Video.RateSkipped, st.Overwrites, st.Pool.Hits, st.Pool.Misses)
}
