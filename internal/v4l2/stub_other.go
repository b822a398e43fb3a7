//go:build !linux
// +build !linux

package v4l2

import (
	"runtime"

	"github.com/lanikai/alohacapture/internal/camera"
	"github.com/pkg/errors"
)

func init() {
	camera.Register("v4l2", func(path string) (camera.Camera, error) {
		return nil, errors.Errorf("v4l2 cameras are not supported on %s", runtime.GOOS)
	})
}
