package alohacapture

import (
	"io"
	"sync"
	"time"

	"github.com/lanikai/alohacapture/internal/camera"
	"github.com/lanikai/alohacapture/internal/media"
	"github.com/pkg/errors"
)

// fakeCamera hands out fakeDevices and records every open.
type fakeCamera struct {
	mu      sync.Mutex
	opens   []camera.Facing
	failing bool
	devices []*fakeDevice
}

func (c *fakeCamera) Open(facing camera.Facing) (camera.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return nil, errors.New("camera in use")
	}
	c.opens = append(c.opens, facing)
	orientation := 90
	if facing == camera.FacingFront {
		orientation = 270
	}
	d := &fakeDevice{
		info:  camera.Info{ID: "fake-" + facing.String(), Facing: facing, Orientation: orientation},
		sizes: []camera.Size{{Width: 1280, Height: 720}, {Width: 640, Height: 480}, {Width: 320, Height: 240}},
		focus: []camera.FocusMode{camera.FocusAuto, camera.FocusContinuousVideo},
	}
	c.devices = append(c.devices, d)
	return d, nil
}

func (c *fakeCamera) lastDevice() *fakeDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devices[len(c.devices)-1]
}

// fakeDevice pushes frames only when the test calls push.
type fakeDevice struct {
	info  camera.Info
	sizes []camera.Size
	focus []camera.FocusMode

	mu          sync.Mutex
	params      camera.Parameters
	orientation int
	cb          camera.FrameCallback
	errCb       camera.ErrorCallback
	streaming   bool
	closed      bool
	stops       int
}

func (d *fakeDevice) Info() camera.Info              { return d.info }
func (d *fakeDevice) PreviewSizes() []camera.Size    { return d.sizes }
func (d *fakeDevice) FocusModes() []camera.FocusMode { return d.focus }

func (d *fakeDevice) Configure(p camera.Parameters) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streaming {
		return errors.New("streaming")
	}
	d.params = p
	return nil
}

func (d *fakeDevice) SetDisplayOrientation(degrees int) error {
	d.mu.Lock()
	d.orientation = degrees
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) SetFrameCallback(cb camera.FrameCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

func (d *fakeDevice) SetErrorCallback(cb camera.ErrorCallback) {
	d.mu.Lock()
	d.errCb = cb
	d.mu.Unlock()
}

// fail kills the stream the way a lost device does and reports whether an
// error callback was registered.
func (d *fakeDevice) fail(err error) bool {
	d.mu.Lock()
	cb := d.errCb
	d.streaming = false
	d.mu.Unlock()

	if cb == nil {
		return false
	}
	cb(errors.Wrap(media.ErrDeviceLost, err.Error()))
	return true
}

func (d *fakeDevice) StartStreaming() error {
	d.mu.Lock()
	d.streaming = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) StopStreaming() error {
	d.mu.Lock()
	if d.streaming {
		d.stops++
	}
	d.streaming = false
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// push delivers one frame filled with b through the callback and reports
// whether anyone was listening. The returned channel closes on release.
func (d *fakeDevice) push(b byte, ts time.Time) (bool, <-chan struct{}) {
	d.mu.Lock()
	cb, p := d.cb, d.params
	d.mu.Unlock()

	released := make(chan struct{})
	if cb == nil {
		close(released)
		return false, released
	}
	data := make([]byte, p.Format.FrameSize(p.PreviewSize.Width, p.PreviewSize.Height))
	for i := range data {
		data[i] = b
	}
	var once sync.Once
	cb(media.NewSharedBuffer(data, ts, func() { once.Do(func() { close(released) }) }))
	return true, released
}

// fakeMic produces silence paced at the sample clock, or blocks forever
// when stuck until the test unsticks it.
type fakeMic struct {
	stuck chan struct{}
	eof   bool
}

func (m *fakeMic) Open(format media.AudioFormat) (io.ReadCloser, error) {
	return &fakeMicStream{mic: m, format: format}, nil
}

type fakeMicStream struct {
	mic    *fakeMic
	format media.AudioFormat
}

func (s *fakeMicStream) Read(p []byte) (int, error) {
	if s.mic.eof {
		return 0, io.EOF
	}
	if s.mic.stuck != nil {
		<-s.mic.stuck
		return 0, io.EOF
	}
	time.Sleep(s.format.Duration(len(p)))
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func (s *fakeMicStream) Close() error { return nil }

// countingSink counts writes and keeps video sequence numbers and first bytes.
type countingSink struct {
	mu     sync.Mutex
	seqs   []uint64
	first  []byte
	chunks int
}

func (s *countingSink) WriteVideo(f *media.Frame) error {
	s.mu.Lock()
	s.seqs = append(s.seqs, f.Seq)
	s.first = append(s.first, f.Data[0])
	s.mu.Unlock()
	return nil
}

func (s *countingSink) WriteAudio(c *media.AudioChunk) error {
	s.mu.Lock()
	s.chunks++
	s.mu.Unlock()
	return nil
}

func (s *countingSink) counts() (video, audio int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seqs), s.chunks
}

type fakeView struct {
	width, height int
}

func (v *fakeView) SetPreviewSize(width, height int) {
	v.width, v.height = width, height
}
