package alohacapture

import (
	"github.com/lanikai/alohacapture/internal/media"
	"github.com/pkg/errors"
)

var (
	// ErrHardwareUnavailable means the camera could not be opened.
	ErrHardwareUnavailable = errors.New("camera unavailable")

	ErrAlreadyRecording = errors.New("already recording")

	// Re-exported from the media pipeline.
	ErrShutdownTimeout = media.ErrShutdownTimeout
	ErrDeviceLost      = media.ErrDeviceLost

	errNoCamera     = errors.New("no camera configured")
	errNoMicrophone = errors.New("no microphone configured")
)
