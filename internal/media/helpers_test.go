package media

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// recordingSink keeps a copy of everything written to it.
type recordingSink struct {
	mu     sync.Mutex
	frames []Frame
	chunks []*AudioChunk
	fail   bool
}

func (s *recordingSink) WriteVideo(f *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink failure")
	}
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	s.frames = append(s.frames, c)
	return nil
}

func (s *recordingSink) WriteAudio(c *AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink failure")
	}
	s.chunks = append(s.chunks, c)
	return nil
}

func (s *recordingSink) videoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *recordingSink) audioCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
