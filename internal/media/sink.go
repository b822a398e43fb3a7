//////////////////////////////////////////////////////////////////////////////
//
// Delivery sink interface and universal implementations
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

// Sink receives captured media, typically an encoder or muxer. Calls come
// from capture goroutines and must return quickly; a slow WriteVideo makes
// the pending queue fill up and frames get dropped.
type Sink interface {
	// WriteVideo consumes one frame. f and f.Data are only valid for the
	// duration of the call; the frame is recycled afterwards.
	WriteVideo(f *Frame) error

	// WriteAudio consumes one chunk. The sink may retain c.
	WriteAudio(c *AudioChunk) error
}

// Discard is a Sink that accepts and drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) WriteVideo(*Frame) error      { return nil }
func (discard) WriteAudio(*AudioChunk) error { return nil }

// Tee returns a Sink that writes to every one of sinks in order. Each sink
// sees every frame; the first error is returned after all have been called.
func Tee(sinks ...Sink) Sink {
	switch len(sinks) {
	case 0:
		return Discard
	case 1:
		return sinks[0]
	}
	return tee(append([]Sink(nil), sinks...))
}

type tee []Sink

func (t tee) WriteVideo(f *Frame) error {
	var first error
	for _, s := range t {
		if err := s.WriteVideo(f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t tee) WriteAudio(c *AudioChunk) error {
	var first error
	for _, s := range t {
		if err := s.WriteAudio(c); err != nil && first == nil {
			first = err
		}
	}
	return first
}
