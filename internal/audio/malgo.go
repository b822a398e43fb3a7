package audio

import (
	"encoding/hex"
	"io"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/lanikai/alohacapture/internal/media"
	"github.com/pkg/errors"
)

func init() {
	Register("malgo", func(path string) (media.AudioSource, error) {
		return &Microphone{Device: path}, nil
	})
}

// Microphone captures from a miniaudio capture device.
type Microphone struct {
	// Substring of the device name or decoded device ID. Empty or "default"
	// selects the system default.
	Device string
}

// Devices lists the names of the available capture devices.
func Devices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "malgo context")
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate capture devices")
	}
	var names []string
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func (m *Microphone) Open(format media.AudioFormat) (io.ReadCloser, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Trace(6, "miniaudio: %s", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, errors.Wrap(err, "malgo context")
	}

	s := &malgoStream{
		ringStream: newRingStream(ringCapacity(format)),
		ctx:        ctx,
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.Alsa.NoMMap = 1

	if m.Device != "" && m.Device != "default" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			s.free()
			return nil, errors.Wrap(err, "enumerate capture devices")
		}
		found := false
		for _, info := range infos {
			if matchesDevice(info, m.Device) {
				cfg.Capture.DeviceID = info.ID.Pointer()
				log.Info("Using capture device %q", info.Name())
				found = true
				break
			}
		}
		if !found {
			s.free()
			return nil, errors.Errorf("no capture device matching %q", m.Device)
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			s.push(input)
		},
		Stop: func() {
			s.fail(errors.Wrap(media.ErrDeviceLost, "capture device stopped"))
		},
	}
	s.dev, err = malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		s.free()
		return nil, errors.Wrap(err, "init capture device")
	}
	if err := s.dev.Start(); err != nil {
		s.free()
		return nil, errors.Wrap(err, "start capture device")
	}
	log.Debug("Microphone started: %v", format)
	return s, nil
}

func matchesDevice(info malgo.DeviceInfo, want string) bool {
	if strings.Contains(info.Name(), want) {
		return true
	}
	id, err := hex.DecodeString(info.ID.String())
	return err == nil && strings.TrimRight(string(id), "\x00") == want
}

type malgoStream struct {
	*ringStream

	ctx *malgo.AllocatedContext
	dev *malgo.Device

	closeOnce sync.Once
}

func (s *malgoStream) Close() error {
	s.closeOnce.Do(func() {
		// Mark closed first, so the Stop callback is not reported as a lost
		// device.
		s.shut()
		s.free()
	})
	return nil
}

func (s *malgoStream) free() {
	if s.dev != nil {
		s.dev.Uninit()
		s.dev = nil
	}
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
	}
}
