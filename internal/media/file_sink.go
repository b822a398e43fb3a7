//////////////////////////////////////////////////////////////////////////////
//
// Raw file sink
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileSink dumps raw captured media, useful for testing or piping into a
// player, e.g.
//
//	ffplay -f rawvideo -pixel_format nv21 -video_size 640x480 video.yuv
//	ffplay -f s16le -ar 44100 -ac 1 audio.pcm
//
// Either writer may be nil, in which case that stream is discarded.
type FileSink struct {
	mu    sync.Mutex
	video io.WriteCloser
	audio io.WriteCloser

	geometry Geometry
}

func NewFileSink(video, audio io.WriteCloser) *FileSink {
	return &FileSink{video: video, audio: audio}
}

// CreateFileSink creates (or truncates) the named files. An empty name
// discards that stream.
func CreateFileSink(videoPath, audioPath string) (*FileSink, error) {
	s := &FileSink{}
	if videoPath != "" {
		f, err := os.Create(videoPath)
		if err != nil {
			return nil, err
		}
		s.video = f
	}
	if audioPath != "" {
		f, err := os.Create(audioPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.audio = f
	}
	return s, nil
}

// WriteVideo appends the frame's pixels. All frames must share one geometry,
// since a raw stream has no way to signal a change.
func (s *FileSink) WriteVideo(f *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.video == nil {
		return nil
	}
	if s.geometry == (Geometry{}) {
		s.geometry = f.Geometry
	} else if f.Geometry != s.geometry {
		return errors.Errorf("frame geometry changed from %v to %v", s.geometry, f.Geometry)
	}
	_, err := s.video.Write(f.Data)
	return err
}

func (s *FileSink) WriteAudio(c *AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.audio == nil {
		return nil
	}
	_, err := s.audio.Write(c.Data)
	return err
}

// Close file sink
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for _, w := range []io.WriteCloser{s.video, s.audio} {
		if w == nil {
			continue
		}
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}
	s.video, s.audio = nil, nil
	return err
}
