package alohacapture

import (
	"testing"
	"time"

	"github.com/lanikai/alohacapture/internal/camera"
	"github.com/lanikai/alohacapture/internal/media"
	"github.com/lanikai/alohacapture/internal/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type rig struct {
	cam  *fakeCamera
	mic  *fakeMic
	sink *countingSink
	ctl  *Controller
}

func newRig(t *testing.T, tweak func(*Config)) *rig {
	t.Helper()
	r := &rig{cam: &fakeCamera{}, mic: &fakeMic{}, sink: &countingSink{}}
	sc := DefaultSessionConfig()
	sc.SampleRate = 8000
	sc.ChunkSamples = 80
	sc.JoinTimeout = time.Second
	cfg := Config{
		Camera:     r.cam,
		Microphone: r.mic,
		Sink:       r.sink,
		Session:    sc,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	ctl, err := NewController(cfg)
	require.NoError(t, err)
	r.ctl = ctl
	return r
}

// previewing acquires the camera and starts the preview.
func (r *rig) previewing(t *testing.T) *fakeDevice {
	t.Helper()
	require.NoError(t, r.ctl.Acquire())
	_, err := r.ctl.StartPreview(nil)
	require.NoError(t, err)
	return r.cam.lastDevice()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewControllerValidates(t *testing.T) {
	_, err := NewController(Config{Microphone: &fakeMic{}})
	assert.Equal(t, errNoCamera, err)
	_, err = NewController(Config{Camera: &fakeCamera{}})
	assert.Equal(t, errNoMicrophone, err)

	sc := DefaultSessionConfig()
	sc.FrameRate = 0
	_, err = NewController(Config{Camera: &fakeCamera{}, Microphone: &fakeMic{}, Session: sc})
	assert.Error(t, err)

	ctl, err := NewController(Config{Camera: &fakeCamera{}, Microphone: &fakeMic{}})
	require.NoError(t, err)
	assert.Equal(t, camera.FacingFront, ctl.Facing())
}

func TestAcquireFailure(t *testing.T) {
	r := newRig(t, nil)
	r.cam.failing = true

	err := r.ctl.Acquire()
	assert.Equal(t, ErrHardwareUnavailable, errors.Cause(err))
	assert.False(t, r.ctl.Acquired())

	select {
	case reported := <-r.ctl.Errors():
		assert.Equal(t, ErrHardwareUnavailable, errors.Cause(reported))
	default:
		t.Fatal("acquire failure not reported")
	}

	// Preview without a camera is a no-op.
	size, err := r.ctl.StartPreview(&fakeView{})
	assert.NoError(t, err)
	assert.Equal(t, camera.Size{}, size)
}

func TestAcquireIdempotent(t *testing.T) {
	r := newRig(t, nil)
	require.NoError(t, r.ctl.Acquire())
	require.NoError(t, r.ctl.Acquire())
	assert.Len(t, r.cam.opens, 1)
	assert.True(t, r.ctl.Acquired())
}

func TestReleaseIdempotent(t *testing.T) {
	r := newRig(t, nil)
	assert.NoError(t, r.ctl.Release())

	dev := r.previewing(t)
	assert.NoError(t, r.ctl.Release())
	assert.NoError(t, r.ctl.Release())
	assert.True(t, dev.closed)
	assert.False(t, dev.streaming)
	assert.False(t, r.ctl.Acquired())
	assert.False(t, r.ctl.Previewing())
}

func TestSwitchFacing(t *testing.T) {
	r := newRig(t, nil)
	require.NoError(t, r.ctl.Acquire())
	assert.Equal(t, camera.FacingBack, r.ctl.SwitchFacing())

	// Takes effect on the next acquire.
	require.NoError(t, r.ctl.Release())
	require.NoError(t, r.ctl.Acquire())
	assert.Equal(t, []camera.Facing{camera.FacingFront, camera.FacingBack}, r.cam.opens)
}

func TestStartPreviewPortrait(t *testing.T) {
	r := newRig(t, nil)
	require.NoError(t, r.ctl.Acquire())

	view := &fakeView{}
	size, err := r.ctl.StartPreview(view)
	require.NoError(t, err)
	assert.Equal(t, camera.Size{Width: 640, Height: 480}, size)
	// Display at 0 degrees is portrait, so the view is swapped.
	assert.Equal(t, 480, view.width)
	assert.Equal(t, 640, view.height)

	dev := r.cam.lastDevice()
	assert.Equal(t, media.NV21, dev.params.Format)
	assert.Equal(t, camera.FocusContinuousVideo, dev.params.FocusMode)
	assert.Equal(t, 30, dev.params.FrameRate)
	assert.Equal(t, 90, dev.orientation)
	assert.True(t, dev.streaming)

	// Second call is a no-op.
	size, err = r.ctl.StartPreview(view)
	require.NoError(t, err)
	assert.Equal(t, camera.Size{Width: 640, Height: 480}, size)
}

func TestStartPreviewLandscape(t *testing.T) {
	r := newRig(t, func(cfg *Config) {
		cfg.Display = camera.FixedDisplay(90)
		cfg.Session.Facing = camera.FacingBack
	})
	require.NoError(t, r.ctl.Acquire())
	r.cam.lastDevice().focus = []camera.FocusMode{camera.FocusFixed}

	view := &fakeView{}
	_, err := r.ctl.StartPreview(view)
	require.NoError(t, err)
	assert.Equal(t, 640, view.width)
	assert.Equal(t, 480, view.height)

	dev := r.cam.lastDevice()
	assert.Equal(t, camera.FocusFixed, dev.params.FocusMode)
	assert.Equal(t, 0, dev.orientation)
}

func TestStopPreviewIdempotent(t *testing.T) {
	r := newRig(t, nil)
	assert.NoError(t, r.ctl.StopPreview())

	dev := r.previewing(t)
	assert.NoError(t, r.ctl.StopPreview())
	assert.NoError(t, r.ctl.StopPreview())
	assert.Equal(t, 1, dev.stops)

	ok, _ := dev.push(1, time.Now())
	assert.False(t, ok, "callback still registered")
}

func TestStartRecordingPreconditions(t *testing.T) {
	defer goleak.VerifyNone(t)

	// No camera: the session takes the preferred size.
	r := newRig(t, nil)
	s, err := r.ctl.StartRecording()
	require.NoError(t, err)
	assert.Equal(t, media.Geometry{Width: 640, Height: 480, Format: media.NV21}, s.Geometry)

	_, err = r.ctl.StartRecording()
	assert.Equal(t, ErrAlreadyRecording, err)
	require.NoError(t, r.ctl.StopRecording())
	require.NoError(t, r.ctl.Release())
}

func TestRecordingSizeFromCamera(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newRig(t, func(cfg *Config) {
		cfg.Session.PreviewWidth = 1200
		cfg.Session.PreviewHeight = 675
	})
	require.NoError(t, r.ctl.Acquire())

	s, err := r.ctl.StartRecording()
	require.NoError(t, err)
	assert.Equal(t, 1280, s.Geometry.Width)
	assert.Equal(t, 720, s.Geometry.Height)
	require.NoError(t, r.ctl.Release())
}

func TestRecordingBeforePreview(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newRig(t, nil)
	_, err := r.ctl.StartRecording()
	require.NoError(t, err)
	waitFor(t, "audio delivery", func() bool {
		_, audio := r.sink.counts()
		return audio >= 1
	})

	dev := r.previewing(t)
	ok, released := dev.push(7, time.Now())
	require.True(t, ok)
	<-released
	waitFor(t, "video delivery", func() bool {
		video, _ := r.sink.counts()
		return video == 1
	})

	require.NoError(t, r.ctl.StopRecording())
	assert.Equal(t, []byte{7}, r.sink.first)
	require.NoError(t, r.ctl.Release())
}

func TestPreviewFramesNotDelivered(t *testing.T) {
	r := newRig(t, nil)
	dev := r.previewing(t)

	ok, released := dev.push(1, time.Now())
	assert.True(t, ok)
	<-released
	video, _ := r.sink.counts()
	assert.Zero(t, video)
	require.NoError(t, r.ctl.Release())
}

func TestRecordingDeliversFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := prometheus.NewRegistry()
	m, err := metrics.NewCapture(reg)
	require.NoError(t, err)
	r := newRig(t, func(cfg *Config) { cfg.Metrics = m })
	dev := r.previewing(t)

	s, err := r.ctl.StartRecording()
	require.NoError(t, err)
	assert.True(t, r.ctl.Recording())
	assert.Same(t, s, r.ctl.Session())
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, media.Geometry{Width: 640, Height: 480, Format: media.NV21}, s.Geometry)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recording))

	t0 := time.Now()
	for i := 0; i < 5; i++ {
		_, released := dev.push(byte(i+1), t0.Add(time.Duration(i)*40*time.Millisecond))
		<-released
	}
	waitFor(t, "video delivery", func() bool {
		video, _ := r.sink.counts()
		return video == 5
	})
	waitFor(t, "audio delivery", func() bool {
		_, audio := r.sink.counts()
		return audio >= 2
	})

	require.NoError(t, r.ctl.StopRecording())
	assert.False(t, r.ctl.Recording())
	assert.Nil(t, r.ctl.Session())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Recording))

	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, r.sink.seqs)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, r.sink.first)

	// Nothing reaches the sink after stop.
	video, audio := r.sink.counts()
	ok, released := dev.push(9, time.Now())
	assert.True(t, ok, "preview keeps running after recording stops")
	<-released
	time.Sleep(20 * time.Millisecond)
	v2, a2 := r.sink.counts()
	assert.Equal(t, video, v2)
	assert.Equal(t, audio, a2)

	st := r.ctl.Stats()
	assert.EqualValues(t, 5, st.Video.Captured)
	assert.Zero(t, st.QueueDepth)
	assert.Zero(t, st.Pool.Pooled)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.FramesDelivered))

	require.NoError(t, r.ctl.Release())
}

func TestImmediateStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newRig(t, nil)
	r.previewing(t)
	for i := 0; i < 3; i++ {
		_, err := r.ctl.StartRecording()
		require.NoError(t, err)
		require.NoError(t, r.ctl.StopRecording())
	}
	assert.NoError(t, r.ctl.StopRecording())
	video, _ := r.sink.counts()
	assert.Zero(t, video)
	require.NoError(t, r.ctl.Release())
}

func TestReleaseStopsRecording(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newRig(t, nil)
	r.previewing(t)
	_, err := r.ctl.StartRecording()
	require.NoError(t, err)

	require.NoError(t, r.ctl.Release())
	assert.False(t, r.ctl.Recording())
}

func TestStopRecordingTimeout(t *testing.T) {
	r := newRig(t, func(cfg *Config) { cfg.Session.JoinTimeout = 20 * time.Millisecond })
	r.mic.stuck = make(chan struct{})
	r.previewing(t)
	_, err := r.ctl.StartRecording()
	require.NoError(t, err)

	err = r.ctl.StopRecording()
	assert.Equal(t, ErrShutdownTimeout, errors.Cause(err))
	assert.Contains(t, err.Error(), "audio")
	assert.False(t, r.ctl.Recording())

	// Let the stuck read return so the worker can exit.
	close(r.mic.stuck)
	require.NoError(t, r.ctl.Release())
}

func TestMicrophoneLost(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newRig(t, nil)
	r.mic.eof = true
	r.previewing(t)
	_, err := r.ctl.StartRecording()
	require.NoError(t, err)

	select {
	case err := <-r.ctl.Errors():
		assert.Equal(t, ErrDeviceLost, errors.Cause(err))
	case <-time.After(time.Second):
		t.Fatal("device loss not reported")
	}
	require.NoError(t, r.ctl.StopRecording())
	require.NoError(t, r.ctl.Release())
}

func TestCameraLostWhileRecording(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newRig(t, nil)
	dev := r.previewing(t)
	s, err := r.ctl.StartRecording()
	require.NoError(t, err)

	require.True(t, dev.fail(errors.New("VIDIOC_DQBUF: no such device")))
	select {
	case err := <-r.ctl.Errors():
		assert.Equal(t, ErrDeviceLost, errors.Cause(err))
	case <-time.After(time.Second):
		t.Fatal("camera loss not reported")
	}
	waitFor(t, "video worker exit", func() bool {
		return s.video.State() != media.Running
	})

	// Late frames are handed straight back.
	_, released := dev.push(3, time.Now())
	<-released
	video, _ := r.sink.counts()
	assert.Zero(t, video)

	require.NoError(t, r.ctl.StopRecording())
	assert.Equal(t, media.Joined, s.video.State())
	require.NoError(t, r.ctl.Release())

	select {
	case err := <-r.ctl.Errors():
		t.Fatalf("unexpected error: %v", err)
	default:
	}
}

func TestCameraLostWhilePreviewing(t *testing.T) {
	r := newRig(t, nil)
	dev := r.previewing(t)

	require.True(t, dev.fail(errors.New("poll: POLLERR")))
	select {
	case err := <-r.ctl.Errors():
		assert.Equal(t, ErrDeviceLost, errors.Cause(err))
	case <-time.After(time.Second):
		t.Fatal("camera loss not reported")
	}

	require.NoError(t, r.ctl.StopPreview())
	assert.False(t, dev.fail(errors.New("again")), "error callback still registered")
	require.NoError(t, r.ctl.Release())
}
