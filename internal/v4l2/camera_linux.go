//go:build linux
// +build linux

package v4l2

import (
	"strings"
	"sync"
	"time"

	"github.com/lanikai/alohacapture/internal/camera"
	"github.com/lanikai/alohacapture/internal/color"
	"github.com/lanikai/alohacapture/internal/logging"
	"github.com/lanikai/alohacapture/internal/media"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var log = logging.DefaultLogger.WithTag("v4l2")

func init() {
	camera.Register("v4l2", func(path string) (camera.Camera, error) {
		return Open(path)
	})
}

const (
	// Number of kernel buffers requested for streaming.
	numBuffers = 4

	// Poll interval of the streaming goroutine, bounding how long
	// StopStreaming waits for it.
	pollTimeoutMs = 100

	// How long StopStreaming waits for lent buffers to come back before
	// giving up on unmapping them.
	releaseTimeout = time.Second
)

// Software conversions from YUYV, for drivers without native 4:2:0 output.
var converters = map[media.PixelFormat]func(dst, src []byte, width, height int) error{
	media.NV21: color.YUYVToNV21,
	media.NV12: color.YUYVToNV12,
}

var formats = map[media.PixelFormat]uint32{
	media.NV21:  pixFmtNV21,
	media.NV12:  pixFmtNV12,
	media.YUYV:  pixFmtYUYV,
	media.RGB24: pixFmtRGB24,
}

// Sizes offered when the driver does not enumerate discrete frame sizes.
var fallbackSizes = []camera.Size{
	{Width: 320, Height: 240},
	{Width: 640, Height: 480},
	{Width: 1280, Height: 720},
}

// Camera maps the back and front facings onto V4L2 device paths.
type Camera struct {
	Back, Front string
}

// Open parses a source path of the form "<back>[,<front>]", e.g.
// "/dev/video0,/dev/video2". A single path serves both facings.
func Open(path string) (*Camera, error) {
	if path == "" {
		path = "/dev/video0"
	}
	parts := strings.Split(path, ",")
	if len(parts) > 2 {
		return nil, errors.Errorf("invalid v4l2 source path %q", path)
	}
	c := &Camera{Back: parts[0], Front: parts[0]}
	if len(parts) == 2 {
		c.Front = parts[1]
	}
	return c, nil
}

// Path returns the device node serving facing.
func (c *Camera) Path(facing camera.Facing) (string, error) {
	path := c.Back
	if facing == camera.FacingFront {
		path = c.Front
	}
	if path == "" {
		return "", errors.Errorf("no %s camera configured", facing)
	}
	return path, nil
}

func (c *Camera) Open(facing camera.Facing) (camera.Device, error) {
	path, err := c.Path(facing)
	if err != nil {
		return nil, err
	}

	dev, err := openDevice(path)
	if err != nil {
		return nil, err
	}
	log.Info("Opened %s camera %s", facing, path)

	d := &Device{
		info: camera.Info{
			ID:     path,
			Facing: facing,
		},
		dev: dev,
		params: camera.Parameters{
			Format:    media.NV21,
			FocusMode: camera.FocusFixed,
		},
	}
	if sizes := d.PreviewSizes(); len(sizes) > 0 {
		d.params.PreviewSize = sizes[0]
	}
	return d, nil
}

// Device is an opened V4L2 capture device. Frames are handed to the callback
// straight out of the kernel's mapped buffers; releasing one requeues it.
type Device struct {
	info camera.Info
	dev  *device

	mu          sync.Mutex
	params      camera.Parameters
	orientation int
	cb          camera.FrameCallback
	errCb       camera.ErrorCallback
	closed      bool

	// Incremented on every StartStreaming, so that buffers released after a
	// restart are not queued into the wrong stream.
	generation int
	streaming  bool

	// Buffers currently lent to the callback.
	lent sync.WaitGroup

	// Set when the driver only delivers YUYV and frames are converted to the
	// configured 4:2:0 format in user space.
	convert func(dst, src []byte, width, height int) error

	quit chan struct{}
	done chan struct{}
}

func (d *Device) Info() camera.Info {
	return d.info
}

func (d *Device) PreviewSizes() []camera.Size {
	d.mu.Lock()
	format := d.params.Format
	d.mu.Unlock()

	discrete := d.dev.frameSizes(formats[format])
	if len(discrete) == 0 && converters[format] != nil {
		discrete = d.dev.frameSizes(pixFmtYUYV)
	}
	var sizes []camera.Size
	for _, s := range discrete {
		sizes = append(sizes, camera.Size{Width: s[0], Height: s[1]})
	}
	if len(sizes) == 0 {
		sizes = append(sizes, fallbackSizes...)
	}
	return sizes
}

func (d *Device) FocusModes() []camera.FocusMode {
	return []camera.FocusMode{camera.FocusFixed}
}

func (d *Device) Configure(p camera.Parameters) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("camera closed")
	}
	if d.streaming {
		return errors.New("cannot configure while streaming")
	}
	if _, ok := formats[p.Format]; !ok {
		return errors.Errorf("unsupported pixel format %s", p.Format)
	}
	if p.FocusMode != "" && p.FocusMode != camera.FocusFixed {
		return errors.Errorf("unsupported focus mode %s", p.FocusMode)
	}
	d.params = p
	return nil
}

// V4L2 has no notion of display rotation; the value is only recorded.
func (d *Device) SetDisplayOrientation(degrees int) error {
	d.mu.Lock()
	d.orientation = degrees
	d.mu.Unlock()
	log.Debug("%s: display orientation %d", d.info.ID, degrees)
	return nil
}

func (d *Device) SetFrameCallback(cb camera.FrameCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

func (d *Device) SetErrorCallback(cb camera.ErrorCallback) {
	d.mu.Lock()
	d.errCb = cb
	d.mu.Unlock()
}

// lost reports a stream that died under us. The stream goroutine exits right
// after; StopStreaming still has to be called to unmap the buffers.
func (d *Device) lost(err error) {
	err = errors.Wrapf(media.ErrDeviceLost, "%s: %v", d.info.ID, err)
	log.Error("%v", err)

	d.mu.Lock()
	cb := d.errCb
	d.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (d *Device) StartStreaming() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("camera closed")
	}
	if d.streaming {
		return nil
	}

	p := d.params
	pix, err := d.dev.setFormat(p.PreviewSize.Width, p.PreviewSize.Height, formats[p.Format])
	if err != nil {
		return err
	}
	d.convert = nil
	if pix.pixelformat != formats[p.Format] && converters[p.Format] != nil {
		// Most webcams only speak YUYV.
		if pix, err = d.dev.setFormat(p.PreviewSize.Width, p.PreviewSize.Height, pixFmtYUYV); err != nil {
			return err
		}
		if pix.pixelformat == pixFmtYUYV {
			log.Info("%s: capturing YUYV, converting to %s", d.info.ID, p.Format)
			d.convert = converters[p.Format]
		}
	}
	if int(pix.width) != p.PreviewSize.Width || int(pix.height) != p.PreviewSize.Height {
		return errors.Errorf("%s: driver adjusted %v to %dx%d", d.info.ID, p.PreviewSize, pix.width, pix.height)
	}
	if pix.pixelformat != formats[p.Format] && d.convert == nil {
		return errors.Errorf("%s: driver does not support %s", d.info.ID, p.Format)
	}
	if p.FrameRate > 0 {
		if err := d.dev.setFrameRate(p.FrameRate); err != nil {
			log.Warn("%v", err)
		}
	}

	if err := d.dev.mapBuffers(numBuffers); err != nil {
		return err
	}
	for i := range d.dev.buffers {
		if err := d.dev.enqueue(i); err != nil {
			d.dev.unmapBuffers()
			return errors.Wrapf(err, "%s: VIDIOC_QBUF", d.info.ID)
		}
	}
	if err := d.dev.streamOn(); err != nil {
		d.dev.unmapBuffers()
		return errors.Wrapf(err, "%s: VIDIOC_STREAMON", d.info.ID)
	}

	d.generation++
	d.streaming = true
	d.quit = make(chan struct{})
	d.done = make(chan struct{})
	go d.stream(d.generation, p, d.convert, d.quit, d.done)
	return nil
}

func (d *Device) StopStreaming() error {
	d.mu.Lock()
	if !d.streaming {
		d.mu.Unlock()
		return nil
	}
	// Released buffers are no longer requeued from here on.
	d.streaming = false
	quit, done := d.quit, d.done
	d.quit, d.done = nil, nil
	d.mu.Unlock()

	close(quit)
	<-done

	err := d.dev.streamOff()

	released := make(chan struct{})
	go func() {
		d.lent.Wait()
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(releaseTimeout):
		// Someone still reads from a mapped buffer. Leaking the mapping is
		// better than pulling the memory out from under them.
		log.Error("%s: buffers not released after %v, leaving them mapped", d.info.ID, releaseTimeout)
		d.dev.buffers = nil
		return errors.Errorf("%s: buffers still lent out", d.info.ID)
	}

	if uerr := d.dev.unmapBuffers(); err == nil {
		err = uerr
	}
	return err
}

func (d *Device) Close() error {
	err := d.StopStreaming()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return err
	}
	d.closed = true
	d.cb = nil
	d.errCb = nil
	if cerr := d.dev.close(); err == nil {
		err = cerr
	}
	return err
}

// Requeue a buffer returned by the callback, unless the stream it came from
// has since stopped.
func (d *Device) requeue(generation, index int) {
	d.mu.Lock()
	if d.streaming && d.generation == generation {
		if err := d.dev.enqueue(index); err != nil {
			log.Warn("%s: requeue buffer %d: %v", d.info.ID, index, err)
		}
	}
	d.mu.Unlock()
	d.lent.Done()
}

func (d *Device) stream(generation int, p camera.Parameters, convert func(dst, src []byte, w, h int) error, quit, done chan struct{}) {
	defer close(done)

	w, h := p.PreviewSize.Width, p.PreviewSize.Height
	frameSize := p.Format.FrameSize(w, h)
	rawSize := frameSize

	// Converted frames live in our own memory, so the kernel buffer can be
	// requeued right away.
	var converted chan []byte
	if convert != nil {
		rawSize = media.YUYV.FrameSize(w, h)
		converted = make(chan []byte, numBuffers)
		for i := 0; i < numBuffers; i++ {
			converted <- make([]byte, frameSize)
		}
	}

	for {
		select {
		case <-quit:
			return
		default:
		}

		ready, err := d.dev.poll(pollTimeoutMs)
		if err != nil {
			d.lost(errors.Wrap(err, "poll"))
			return
		}
		if !ready {
			continue
		}

		index, n, err := d.dev.dequeue()
		if err == unix.EAGAIN {
			continue
		} else if err != nil {
			d.lost(errors.Wrap(err, "VIDIOC_DQBUF"))
			return
		}
		now := time.Now()

		d.mu.Lock()
		cb := d.cb
		d.mu.Unlock()
		if cb == nil || n < rawSize {
			if cb != nil {
				log.Debug("%s: short frame of %d bytes", d.info.ID, n)
			}
			d.dev.enqueue(index)
			continue
		}

		if convert != nil {
			var out []byte
			select {
			case out = <-converted:
			default:
				log.Trace(6, "%s: no free conversion buffer, dropping frame", d.info.ID)
				d.dev.enqueue(index)
				continue
			}
			err := convert(out, d.dev.buffers[index][:rawSize], w, h)
			d.dev.enqueue(index)
			if err != nil {
				log.Warn("%s: %v", d.info.ID, err)
				converted <- out
				continue
			}
			cb(media.NewSharedBuffer(out, now, func() {
				converted <- out
			}))
			continue
		}

		d.lent.Add(1)
		idx := index
		cb(media.NewSharedBuffer(d.dev.buffers[idx][:frameSize], now, func() {
			d.requeue(generation, idx)
		}))
	}
}
