package alohacapture

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lanikai/alohacapture/internal/camera"
	"github.com/lanikai/alohacapture/internal/logging"
	"github.com/lanikai/alohacapture/internal/media"
	"github.com/pkg/errors"
)

var log = logging.DefaultLogger.WithTag("capture")

// Capacity of the Errors channel. Further errors are logged and dropped
// until the caller catches up.
const errorBacklog = 8

// Controller owns the camera and drives the capture lifecycle: acquire the
// camera, preview, record, stop, release. Its methods are meant to be called
// from one control goroutine, but are safe for concurrent use.
type Controller struct {
	cfg Config

	mu         sync.Mutex
	facing     camera.Facing
	device     camera.Device
	previewing bool
	preview    camera.Size
	session    *Session

	// The session frames are routed to. Read by the camera callback, which
	// must never wait on mu: the device may be stopped while mu is held.
	liveMu sync.RWMutex
	live   *Session

	// Most recently stopped session, kept for Stats.
	last *Session

	errCh chan error
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Camera == nil {
		return nil, errNoCamera
	}
	if cfg.Microphone == nil {
		return nil, errNoMicrophone
	}
	if cfg.Sink == nil {
		cfg.Sink = media.Discard
	}
	if cfg.Display == nil {
		cfg.Display = camera.FixedDisplay(0)
	}
	if cfg.Session == (SessionConfig{}) {
		cfg.Session = DefaultSessionConfig()
	}
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}

	return &Controller{
		cfg:    cfg,
		facing: cfg.Session.Facing,
		errCh:  make(chan error, errorBacklog),
	}, nil
}

// Errors delivers device-level failures: cameras that cannot be opened and
// capture devices lost while recording.
func (c *Controller) Errors() <-chan error {
	return c.errCh
}

func (c *Controller) report(err error) {
	select {
	case c.errCh <- err:
	default:
		log.Warn("Error backlog full, dropping: %v", err)
	}
}

// Acquire opens the camera for the selected facing. It is a no-op when a
// camera is already acquired.
func (c *Controller) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return nil
	}
	dev, err := c.cfg.Camera.Open(c.facing)
	if err != nil {
		err = errors.Wrapf(ErrHardwareUnavailable, "%s camera: %v", c.facing, err)
		log.Error("%v", err)
		c.report(err)
		return err
	}
	c.device = dev
	log.Info("Acquired %s camera %s", c.facing, dev.Info().ID)
	return nil
}

// Release stops any recording and preview, then closes the camera.
func (c *Controller) Release() error {
	if err := c.StopRecording(); err != nil {
		log.Warn("Stopping recording on release: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}
	if err := c.stopPreview(); err != nil {
		log.Warn("Stopping preview on release: %v", err)
	}
	err := c.device.Close()
	log.Info("Released camera %s", c.device.Info().ID)
	c.device = nil
	return err
}

// SwitchFacing toggles between the back and front camera. It takes effect on
// the next Acquire.
func (c *Controller) SwitchFacing() camera.Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facing = c.facing.Toggle()
	return c.facing
}

func (c *Controller) Facing() camera.Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facing
}

// Acquired reports whether a camera is open.
func (c *Controller) Acquired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device != nil
}

// onFrame is the camera's frame callback. It never blocks: the buffer goes
// into the session mailbox, or straight back to the device when nothing is
// recording.
func (c *Controller) onFrame(buf *media.SharedBuffer) {
	c.liveMu.RLock()
	s := c.live
	c.liveMu.RUnlock()

	if s == nil {
		buf.Release()
		return
	}
	s.mailbox.Put(buf)
}

// onDeviceError is the camera's error callback. During a recording the loss
// ends the video worker, which reports it; otherwise it is reported here.
func (c *Controller) onDeviceError(err error) {
	c.liveMu.RLock()
	s := c.live
	c.liveMu.RUnlock()

	if s != nil {
		s.mailbox.Close(err)
		return
	}
	log.Error("Camera lost: %v", err)
	c.report(errors.Wrap(err, "preview failed"))
}

func (c *Controller) setLive(s *Session) {
	c.liveMu.Lock()
	c.live = s
	c.liveMu.Unlock()
}

// StartRecording begins a new session: fresh pool, queue and workers. The
// audio worker starts first, then the video worker, then delivery. Recording
// does not need a running preview; the video worker waits until frames
// arrive.
func (c *Controller) StartRecording() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return nil, ErrAlreadyRecording
	}

	sc := c.cfg.Session
	m := c.cfg.Metrics
	size, source := c.recordingSize()
	s := &Session{
		ID:      uuid.New().String(),
		Started: time.Now(),
		Facing:  c.facing,
		Geometry: media.Geometry{
			Width:  size.Width,
			Height: size.Height,
			Format: sc.PixelFormat,
		},
		Audio:     sc.AudioFormat(),
		FrameRate: sc.FrameRate,
		mailbox:   media.NewFrameMailbox(m),
		queue:     media.NewFrameQueue(sc.QueueCapacity, m),
		delivered: make(chan struct{}),
	}
	s.pool = media.NewFramePool(s.Geometry, sc.PoolCapacity, m)
	s.audio = media.NewAudioWorker(media.AudioConfig{
		Source:       c.cfg.Microphone,
		Format:       s.Audio,
		ChunkSamples: sc.ChunkSamples,
		Sink:         c.cfg.Sink,
		Metrics:      m,
		Fatal:        c.fatal,
	})
	s.video = media.NewVideoWorker(media.VideoConfig{
		Mailbox:   s.mailbox,
		Pool:      s.pool,
		Queue:     s.queue,
		FrameRate: sc.FrameRate,
		Source:    source,
		Metrics:   m,
		Fatal:     c.fatal,
	})

	if err := s.audio.Start(); err != nil {
		return nil, err
	}
	if err := s.video.Start(); err != nil {
		s.audio.StopRunning()
		s.audio.Join(sc.JoinTimeout)
		return nil, err
	}
	go func() {
		defer close(s.delivered)
		media.Deliver(s.queue, s.pool, c.cfg.Sink, m)
	}()

	c.session = s
	c.setLive(s)
	m.SetRecording(true)
	log.Info("Recording session %s: %v at %d fps, audio %v", s.ID, s.Geometry, s.FrameRate, s.Audio)
	return s, nil
}

// recordingSize picks the frame size for a new session and the source handle
// to stamp on its frames: the running preview's, else what a preview would
// negotiate, else the preferred size. Called with mu held.
func (c *Controller) recordingSize() (camera.Size, string) {
	sc := c.cfg.Session
	preferred := camera.Size{Width: sc.PreviewWidth, Height: sc.PreviewHeight}

	if c.device == nil {
		return preferred, "camera:" + c.facing.String()
	}
	source := c.device.Info().ID
	if c.previewing {
		return c.preview, source
	}
	if size, ok := camera.OptimalSize(c.device.PreviewSizes(), sc.PreviewWidth, sc.PreviewHeight); ok {
		return size, source
	}
	return preferred, source
}

func (c *Controller) fatal(err error) {
	c.report(errors.Wrap(err, "capture failed"))
}

// StopRecording asks both workers to stop, waits for them, and tears down
// the session's queue and pool. It returns ErrShutdownTimeout if a worker or
// the delivery loop did not finish within the join timeout. It is a no-op
// when not recording.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return nil
	}
	c.session = nil
	c.setLive(nil)

	start := time.Now()
	timeout := c.cfg.Session.JoinTimeout

	s.audio.StopRunning()
	s.video.StopRunning()

	var stuck []string
	if err := s.audio.Join(timeout); err != nil {
		stuck = append(stuck, "audio")
	}
	if err := s.video.Join(timeout); err != nil {
		stuck = append(stuck, "video")
	}

	s.queue.Cancel()
	if !waitClosed(s.delivered, timeout) {
		stuck = append(stuck, "delivery")
	}
	s.queue.Clear(s.pool)
	s.pool.Clear()

	elapsed := time.Since(start)
	c.cfg.Metrics.ObserveStop(elapsed)
	c.cfg.Metrics.SetRecording(false)
	c.last = s

	st := s.stats()
	log.Info("Stopped session %s after %v: %d frames, %d dropped, %d audio chunks",
		s.ID, time.Since(s.Started).Round(time.Millisecond), st.Video.Captured, st.Video.Dropped, st.Audio.Chunks)

	if len(stuck) > 0 {
		return errors.Wrapf(ErrShutdownTimeout, "session %s: %s", s.ID, strings.Join(stuck, ", "))
	}
	log.Debug("Session %s stopped in %v", s.ID, elapsed)
	return nil
}

// waitClosed waits for ch to close. A timeout <= 0 waits forever.
func waitClosed(ch <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		<-ch
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}

// Recording reports whether a session is active.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Session returns the active session, or nil.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Stats reports on the active session, or the last one if none is active.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	s := c.session
	if s == nil {
		s = c.last
	}
	c.mu.Unlock()

	if s == nil {
		return Stats{}
	}
	return s.stats()
}
