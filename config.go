//////////////////////////////////////////////////////////////////////////////
//
// Config contains configuration data for a capture Controller
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package alohacapture

import (
	"io"
	"time"

	"github.com/lanikai/alohacapture/internal/camera"
	"github.com/lanikai/alohacapture/internal/media"
	"github.com/lanikai/alohacapture/internal/metrics"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the collaborators of a Controller.
type Config struct {
	Camera     camera.Camera
	Microphone media.AudioSource
	Sink       media.Sink

	// Reports screen rotation for preview orientation. Defaults to a display
	// fixed at 0 degrees.
	Display camera.Display

	// Optional. A nil Metrics records nothing.
	Metrics *metrics.Capture

	Session SessionConfig
}

// SessionConfig holds the capture parameters applied to each session.
type SessionConfig struct {
	Facing     camera.Facing `yaml:"facing"`
	FrameRate  int           `yaml:"frame_rate"`
	SampleRate int           `yaml:"sample_rate"`
	Channels   int           `yaml:"channels"`

	// Preferred preview size. The closest size the camera supports is used.
	PreviewWidth  int               `yaml:"preview_width"`
	PreviewHeight int               `yaml:"preview_height"`
	PixelFormat   media.PixelFormat `yaml:"pixel_format"`

	QueueCapacity int `yaml:"queue_capacity"`
	PoolCapacity  int `yaml:"pool_capacity"`

	// Samples per channel in each audio chunk.
	ChunkSamples int `yaml:"chunk_samples"`

	// Upper bound on how long StopRecording waits for each worker.
	JoinTimeout time.Duration `yaml:"join_timeout"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Facing:        camera.FacingFront,
		FrameRate:     30,
		SampleRate:    44100,
		Channels:      1,
		PreviewWidth:  640,
		PreviewHeight: 480,
		PixelFormat:   media.NV21,
		QueueCapacity: media.DefaultQueueCapacity,
		PoolCapacity:  media.DefaultPoolCapacity,
		ChunkSamples:  media.DefaultChunkSamples,
		JoinTimeout:   2 * time.Second,
	}
}

// LoadSessionConfig reads YAML from r on top of the defaults. Keys absent
// from the document keep their default values.
func LoadSessionConfig(r io.Reader) (SessionConfig, error) {
	cfg := DefaultSessionConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, errors.Wrap(err, "parse session config")
	}
	return cfg, cfg.Validate()
}

func (c SessionConfig) Validate() error {
	switch {
	case c.FrameRate <= 0:
		return errors.Errorf("frame rate must be positive, got %d", c.FrameRate)
	case c.SampleRate <= 0:
		return errors.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.Channels < 1 || c.Channels > 2:
		return errors.Errorf("channels must be 1 or 2, got %d", c.Channels)
	case c.PreviewWidth <= 0 || c.PreviewHeight <= 0:
		return errors.Errorf("invalid preview size %dx%d", c.PreviewWidth, c.PreviewHeight)
	case c.PixelFormat.FrameSize(c.PreviewWidth, c.PreviewHeight) == 0:
		return errors.Errorf("unknown pixel format %q", c.PixelFormat)
	case c.QueueCapacity < 1:
		return errors.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	case c.PoolCapacity < 1:
		return errors.Errorf("pool capacity must be positive, got %d", c.PoolCapacity)
	case c.ChunkSamples < 1:
		return errors.Errorf("chunk samples must be positive, got %d", c.ChunkSamples)
	case c.JoinTimeout < 0:
		return errors.Errorf("negative join timeout %v", c.JoinTimeout)
	}
	return nil
}

// AudioFormat is the microphone format used by sessions.
func (c SessionConfig) AudioFormat() media.AudioFormat {
	return media.AudioFormat{SampleRate: c.SampleRate, Channels: c.Channels}
}
