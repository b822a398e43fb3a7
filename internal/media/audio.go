package media

import (
	"fmt"
	"io"
	"time"
)

// Audio samples are always signed 16-bit little-endian PCM.
const BytesPerSample = 2

// DefaultChunkSamples is the number of samples per channel in one chunk.
const DefaultChunkSamples = 1024

// AudioFormat describes interleaved S16LE PCM.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// FrameBytes is the size of one sample across all channels.
func (f AudioFormat) FrameBytes() int {
	return f.Channels * BytesPerSample
}

// Duration returns the playback time of n bytes of audio in this format.
func (f AudioFormat) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := int64(n / f.FrameBytes())
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%d Hz, %d ch, s16le", f.SampleRate, f.Channels)
}

// An AudioSource opens a microphone stream. Reads from the stream block
// until the requested bytes have been captured.
type AudioSource interface {
	Open(format AudioFormat) (io.ReadCloser, error)
}

// AudioChunk is a fixed-size run of captured samples. Chunks are allocated
// per read and handed to the sink, which may keep them.
type AudioChunk struct {
	AudioFormat

	Data []byte

	// Sample-clock time of the first sample, relative to the session start.
	Timestamp time.Time

	// Position of the chunk within its session, starting at 1.
	Seq uint64
}
