package media

import (
	"fmt"
	"time"
)

// PixelFormat identifies the memory layout of a raw video frame.
type PixelFormat string

const (
	// NV21 is YCrCb 4:2:0 semi-planar, 12 bits per pixel. It is the default
	// camera preview format.
	NV21 PixelFormat = "NV21"
	// NV12 is YCbCr 4:2:0 semi-planar, 12 bits per pixel.
	NV12 PixelFormat = "NV12"
	// YUYV is packed YCbCr 4:2:2, 16 bits per pixel.
	YUYV PixelFormat = "YUYV"
	// RGB24 is packed 8-bit RGB.
	RGB24 PixelFormat = "RGB24"
)

// FrameSize returns the number of bytes of one width x height frame, or 0 for
// an unknown format.
func (f PixelFormat) FrameSize(width, height int) int {
	switch f {
	case NV21, NV12:
		return width * height * 3 / 2
	case YUYV:
		return width * height * 2
	case RGB24:
		return width * height * 3
	}
	return 0
}

// Geometry describes the shape of frames produced during one capture session.
type Geometry struct {
	Width  int
	Height int
	Format PixelFormat
}

// Size is the frame buffer size in bytes.
func (g Geometry) Size() int {
	return g.Format.FrameSize(g.Width, g.Height)
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d %s", g.Width, g.Height, g.Format)
}

// A Frame is one captured video image. A Frame is owned by exactly one of the
// FramePool, the FrameQueue, or the goroutine currently filling or reading
// it; it is passed by pointer and never copied.
type Frame struct {
	Geometry

	// Raw pixel data. len(Data) == Geometry.Size() for pooled frames.
	Data []byte

	// Capture time reported by the device.
	Timestamp time.Time

	// Position of the frame within its session, starting at 1.
	Seq uint64

	// Identifies the camera that produced the frame.
	Source string
}

func newFrame(g Geometry) *Frame {
	return &Frame{
		Geometry: g,
		Data:     make([]byte, g.Size()),
	}
}

// reset clears per-capture metadata before a frame goes back into the pool.
func (f *Frame) reset() {
	f.Timestamp = time.Time{}
	f.Seq = 0
	f.Source = ""
}
