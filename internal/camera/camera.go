// Package camera defines the contract between camera hardware and the
// capture pipeline, plus helpers for negotiating preview parameters.
package camera

import (
	"strings"

	"github.com/lanikai/alohacapture/internal/logging"
	"github.com/lanikai/alohacapture/internal/media"
	"github.com/pkg/errors"
)

var log = logging.DefaultLogger.WithTag("camera")

var (
	errNotSupported = errors.New("not supported")
	errClosed       = errors.New("camera closed")
	errStreaming    = errors.New("camera is streaming")
)

// Facing identifies which way a camera points.
type Facing int

const (
	FacingBack Facing = iota
	FacingFront
)

// Toggle returns the other facing.
func (f Facing) Toggle() Facing {
	return (f + 1) % 2
}

func (f Facing) String() string {
	if f == FacingFront {
		return "front"
	}
	return "back"
}

// ParseFacing accepts "front" or "back".
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(s) {
	case "front", "user":
		return FacingFront, nil
	case "back", "rear", "environment":
		return FacingBack, nil
	}
	return FacingBack, errors.Errorf("unknown camera facing %q", s)
}

// MarshalText lets Facing appear in YAML configuration as a word.
func (f Facing) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Facing) UnmarshalText(text []byte) error {
	v, err := ParseFacing(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

type FocusMode string

const (
	FocusAuto            FocusMode = "auto"
	FocusFixed           FocusMode = "fixed"
	FocusContinuousVideo FocusMode = "continuous-video"
)

// Info describes an opened camera.
type Info struct {
	// Identifies the camera, e.g. "/dev/video0". Stamped on captured frames.
	ID string

	Facing Facing

	// Clockwise rotation in degrees needed to show the sensor image upright
	// in the device's natural orientation.
	Orientation int
}

// Parameters configure the preview stream.
type Parameters struct {
	PreviewSize Size
	Format      media.PixelFormat
	FocusMode   FocusMode

	// Capture rate in frames per second. Zero leaves the device default.
	FrameRate int
}

// FrameCallback receives each captured frame on the device's own goroutine.
// The callee owns buf and must Release it; until then the device cannot
// reuse that memory. The callback must not block.
type FrameCallback func(buf *media.SharedBuffer)

// ErrorCallback is told, on the device's own goroutine, that streaming ended
// because of an unrecoverable error. The error wraps media.ErrDeviceLost. No
// frames follow until streaming is restarted. Like FrameCallback it must not
// block.
type ErrorCallback func(err error)

// Device is an opened camera. Only one goroutine may configure it at a time.
type Device interface {
	Info() Info

	// Supported preview sizes and focus modes.
	PreviewSizes() []Size
	FocusModes() []FocusMode

	// Configure must be called while the stream is stopped.
	Configure(p Parameters) error

	SetDisplayOrientation(degrees int) error

	// SetFrameCallback registers cb for subsequent frames. nil unregisters.
	SetFrameCallback(cb FrameCallback)

	// SetErrorCallback registers cb for streaming failures. nil unregisters.
	SetErrorCallback(cb ErrorCallback)

	StartStreaming() error
	StopStreaming() error

	Close() error
}

// Camera enumerates and opens camera devices.
type Camera interface {
	Open(facing Facing) (Device, error)
}

// Display reports the current rotation of the screen showing the preview.
type Display interface {
	// Rotation in degrees: 0, 90, 180 or 270.
	Rotation() int
}

// FixedDisplay is a Display that never rotates.
type FixedDisplay int

func (d FixedDisplay) Rotation() int {
	return int(d)
}

// Landscape reports whether a display rotated by rotation degrees is in
// landscape, assuming a portrait natural orientation.
func Landscape(rotation int) bool {
	return rotation%180 != 0
}

// DisplayOrientation returns the clockwise rotation to apply to preview
// frames so they appear upright on a display rotated by rotation degrees.
// Front cameras are mirrored, so their rotation is compensated.
func DisplayOrientation(info Info, rotation int) int {
	rotation = ((rotation % 360) + 360) % 360
	if info.Facing == FacingFront {
		result := (info.Orientation + rotation) % 360
		return (360 - result) % 360
	}
	return (info.Orientation - rotation + 360) % 360
}

// SupportsFocus reports whether mode is in modes.
func SupportsFocus(modes []FocusMode, mode FocusMode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}
