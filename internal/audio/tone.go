package audio

import (
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/lanikai/alohacapture/internal/media"
	"github.com/pkg/errors"
)

func init() {
	Register("tone", func(path string) (media.AudioSource, error) {
		freq := 440.0
		if path != "" {
			f, err := strconv.ParseFloat(path, 64)
			if err != nil || f <= 0 {
				return nil, errors.Errorf("invalid tone frequency %q", path)
			}
			freq = f
		}
		return &Tone{Frequency: freq}, nil
	})
}

// Tone is a synthetic microphone producing a sine wave. By default reads
// are paced to the sample clock, like a real device.
type Tone struct {
	Frequency float64

	// Amplitude in [0, 1]. Zero means 0.5.
	Amplitude float64

	// Unpaced tones return samples as fast as they are read.
	Unpaced bool
}

func (t *Tone) Open(format media.AudioFormat) (io.ReadCloser, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, errors.Errorf("invalid audio format: %v", format)
	}
	amp := t.Amplitude
	if amp <= 0 || amp > 1 {
		amp = 0.5
	}
	return &toneStream{
		format: format,
		step:   2 * math.Pi * t.Frequency / float64(format.SampleRate),
		amp:    amp * math.MaxInt16,
		paced:  !t.Unpaced,
		start:  time.Now(),
		quit:   make(chan struct{}),
	}, nil
}

type toneStream struct {
	format media.AudioFormat
	step   float64
	amp    float64
	paced  bool

	start   time.Time
	samples int64
	phase   float64

	quit     chan struct{}
	quitOnce sync.Once
}

// Read fills p with whole sample frames.
func (s *toneStream) Read(p []byte) (int, error) {
	select {
	case <-s.quit:
		return 0, errClosed
	default:
	}

	fb := s.format.FrameBytes()
	frames := len(p) / fb
	if frames == 0 {
		return 0, io.ErrShortBuffer
	}

	if s.paced {
		due := s.start.Add(time.Duration(s.samples+int64(frames)) * time.Second / time.Duration(s.format.SampleRate))
		if d := time.Until(due); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-s.quit:
				t.Stop()
				return 0, errClosed
			}
		}
	}

	for i := 0; i < frames; i++ {
		v := uint16(int16(s.amp * math.Sin(s.phase)))
		for c := 0; c < s.format.Channels; c++ {
			binary.LittleEndian.PutUint16(p[i*fb+c*media.BytesPerSample:], v)
		}
		s.phase += s.step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
	s.samples += int64(frames)
	return frames * fb, nil
}

func (s *toneStream) Close() error {
	s.quitOnce.Do(func() { close(s.quit) })
	return nil
}
