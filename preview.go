package alohacapture

import (
	"github.com/lanikai/alohacapture/internal/camera"
	"github.com/pkg/errors"
)

// PreviewView is the surface showing the camera preview. It is told the
// size to lay out, already rotated for the current display orientation.
type PreviewView interface {
	SetPreviewSize(width, height int)
}

// StartPreview configures the acquired camera and starts streaming. It
// returns the negotiated preview size, in sensor orientation. Without an
// acquired camera it does nothing and returns a zero size. A nil view is
// allowed.
func (c *Controller) StartPreview(view PreviewView) (camera.Size, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dev := c.device
	if dev == nil {
		return camera.Size{}, nil
	}
	if c.previewing {
		return c.preview, nil
	}

	sc := c.cfg.Session
	size, ok := camera.OptimalSize(dev.PreviewSizes(), sc.PreviewWidth, sc.PreviewHeight)
	if !ok {
		return camera.Size{}, errors.Errorf("camera %s reports no preview sizes", dev.Info().ID)
	}

	rotation := c.cfg.Display.Rotation()
	if view != nil {
		if camera.Landscape(rotation) {
			view.SetPreviewSize(size.Width, size.Height)
		} else {
			swapped := size.Swap()
			view.SetPreviewSize(swapped.Width, swapped.Height)
		}
	}

	params := camera.Parameters{
		PreviewSize: size,
		Format:      sc.PixelFormat,
		FocusMode:   camera.FocusFixed,
		FrameRate:   sc.FrameRate,
	}
	if camera.SupportsFocus(dev.FocusModes(), camera.FocusContinuousVideo) {
		params.FocusMode = camera.FocusContinuousVideo
	}
	if err := dev.Configure(params); err != nil {
		return camera.Size{}, errors.Wrap(err, "configure preview")
	}

	orientation := camera.DisplayOrientation(dev.Info(), rotation)
	if err := dev.SetDisplayOrientation(orientation); err != nil {
		log.Warn("Setting display orientation %d: %v", orientation, err)
	}

	dev.SetFrameCallback(c.onFrame)
	dev.SetErrorCallback(c.onDeviceError)
	if err := dev.StartStreaming(); err != nil {
		dev.SetFrameCallback(nil)
		dev.SetErrorCallback(nil)
		return camera.Size{}, errors.Wrap(err, "start preview")
	}

	c.previewing = true
	c.preview = size
	log.Info("Preview %v %s, focus %s, orientation %d", size, params.Format, params.FocusMode, orientation)
	return size, nil
}

// StopPreview unregisters the frame callback and halts streaming. It is
// idempotent. A running recording keeps going but receives no more frames.
func (c *Controller) StopPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopPreview()
}

func (c *Controller) stopPreview() error {
	if c.device == nil || !c.previewing {
		return nil
	}
	c.device.SetFrameCallback(nil)
	c.device.SetErrorCallback(nil)
	err := c.device.StopStreaming()
	c.previewing = false
	log.Debug("Preview stopped")
	return err
}

// Previewing reports whether the camera is streaming.
func (c *Controller) Previewing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previewing
}
