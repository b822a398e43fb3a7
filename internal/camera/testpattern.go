package camera

import (
	"strconv"
	"sync"
	"time"

	"github.com/lanikai/alohacapture/internal/media"
	"github.com/pkg/errors"
)

func init() {
	Register("testpattern", func(path string) (Camera, error) {
		fps := 30
		if path != "" {
			n, err := strconv.Atoi(path)
			if err != nil || n <= 0 {
				return nil, errors.Errorf("invalid test pattern frame rate %q", path)
			}
			fps = n
		}
		return NewTestPattern(fps), nil
	})
}

// Number of callback buffers a test pattern device cycles through.
const patternBuffers = 3

// TestPattern is a synthetic Camera rendering moving SMPTE colour bars. It
// offers a back and a front camera, mounted at 90 and 270 degrees like a
// typical phone.
type TestPattern struct {
	FrameRate int
	Sizes     []Size
}

func NewTestPattern(fps int) *TestPattern {
	return &TestPattern{
		FrameRate: fps,
		Sizes: []Size{
			{320, 240}, {640, 480}, {1280, 720}, {1920, 1080},
		},
	}
}

func (tp *TestPattern) Open(facing Facing) (Device, error) {
	orientation := 90
	if facing == FacingFront {
		orientation = 270
	}
	return &patternDevice{
		info: Info{
			ID:          "testpattern:" + facing.String(),
			Facing:      facing,
			Orientation: orientation,
		},
		fps:   tp.FrameRate,
		sizes: tp.Sizes,
		params: Parameters{
			PreviewSize: tp.Sizes[0],
			Format:      media.NV21,
			FocusMode:   FocusFixed,
		},
	}, nil
}

type patternDevice struct {
	info  Info
	fps   int
	sizes []Size

	mu          sync.Mutex
	params      Parameters
	orientation int
	cb          FrameCallback
	closed      bool

	// Free callback buffers. A buffer is lent to the callback and comes back
	// here on Release.
	free chan []byte

	quit chan struct{}
	done chan struct{}
}

func (d *patternDevice) Info() Info {
	return d.info
}

func (d *patternDevice) PreviewSizes() []Size {
	return append([]Size(nil), d.sizes...)
}

func (d *patternDevice) FocusModes() []FocusMode {
	return []FocusMode{FocusFixed, FocusContinuousVideo}
}

func (d *patternDevice) Configure(p Parameters) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errClosed
	}
	if d.quit != nil {
		return errStreaming
	}
	if p.Format != media.NV21 && p.Format != media.NV12 {
		return errors.Wrapf(errNotSupported, "pixel format %s", p.Format)
	}
	supported := false
	for _, s := range d.sizes {
		if s == p.PreviewSize {
			supported = true
		}
	}
	if !supported {
		return errors.Wrapf(errNotSupported, "preview size %v", p.PreviewSize)
	}
	if p.FocusMode == "" {
		p.FocusMode = FocusFixed
	}
	d.params = p
	return nil
}

func (d *patternDevice) SetDisplayOrientation(degrees int) error {
	d.mu.Lock()
	d.orientation = degrees
	d.mu.Unlock()
	return nil
}

func (d *patternDevice) SetFrameCallback(cb FrameCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

// A synthetic stream never fails.
func (d *patternDevice) SetErrorCallback(ErrorCallback) {}

func (d *patternDevice) callback() FrameCallback {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cb
}

func (d *patternDevice) StartStreaming() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errClosed
	}
	if d.quit != nil {
		return nil
	}

	size := d.params.Format.FrameSize(d.params.PreviewSize.Width, d.params.PreviewSize.Height)
	d.free = make(chan []byte, patternBuffers)
	for i := 0; i < patternBuffers; i++ {
		d.free <- make([]byte, size)
	}
	d.quit = make(chan struct{})
	d.done = make(chan struct{})
	go d.stream(d.params, d.free, d.quit, d.done)
	return nil
}

func (d *patternDevice) StopStreaming() error {
	d.mu.Lock()
	quit, done := d.quit, d.done
	d.quit, d.done = nil, nil
	d.mu.Unlock()

	if quit == nil {
		return nil
	}
	close(quit)
	<-done
	return nil
}

func (d *patternDevice) Close() error {
	err := d.StopStreaming()
	d.mu.Lock()
	d.closed = true
	d.cb = nil
	d.mu.Unlock()
	return err
}

func (d *patternDevice) stream(p Parameters, free chan []byte, quit, done chan struct{}) {
	defer close(done)

	fps := p.FrameRate
	if fps <= 0 {
		fps = d.fps
	}
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var n int
	for {
		select {
		case <-quit:
			return
		case now := <-ticker.C:
			var buf []byte
			select {
			case buf = <-free:
			default:
				// Every buffer is still lent out; the sensor drops this frame.
				log.Trace(6, "%s: no free buffer, dropping frame", d.info.ID)
				continue
			}

			cb := d.callback()
			if cb == nil {
				free <- buf
				continue
			}
			renderBars(buf, p.PreviewSize.Width, p.PreviewSize.Height, p.Format, n)
			n++
			cb(media.NewSharedBuffer(buf, now, func() {
				select {
				case free <- buf:
				default:
				}
			}))
		}
	}
}

// SMPTE bars as Y, U (Cb), V (Cr).
var barYUV = [7][3]uint8{
	{180, 128, 128}, // Gray
	{168, 44, 136},  // Yellow
	{145, 147, 44},  // Cyan
	{133, 63, 52},   // Green
	{63, 193, 204},  // Magenta
	{51, 109, 212},  // Red
	{28, 212, 120},  // Blue
}

// renderBars draws the bars into a 4:2:0 semi-planar buffer, scrolled
// horizontally by offset pixels.
func renderBars(buf []byte, width, height int, format media.PixelFormat, offset int) {
	barWidth := width / 7
	if barWidth == 0 {
		barWidth = 1
	}
	bar := func(x int) [3]uint8 {
		i := ((x + offset) % width) / barWidth
		if i >= 7 {
			i = 6
		}
		return barYUV[i]
	}

	for y := 0; y < height; y++ {
		row := buf[y*width : (y+1)*width]
		for x := range row {
			row[x] = bar(x)[0]
		}
	}

	// Interleaved chroma plane: VU for NV21, UV for NV12.
	chroma := buf[width*height:]
	for y := 0; y < height/2; y++ {
		for x := 0; x < width/2; x++ {
			c := bar(2 * x)
			i := y*width + 2*x
			if format == media.NV12 {
				chroma[i], chroma[i+1] = c[1], c[2]
			} else {
				chroma[i], chroma[i+1] = c[2], c[1]
			}
		}
	}
}
