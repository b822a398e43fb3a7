// Copyright 2019 Lanikai Labs. All rights reserved.

// Package color converts between raw camera pixel layouts.
package color

import (
	"github.com/pkg/errors"
)

var errSize = errors.New("buffer too small")

// YUYVToNV21 converts packed YUYV (i.e. YUY2) 4:2:2 to semi-planar NV21
// 4:2:0. Chroma is taken from even rows.
func YUYVToNV21(dst, src []byte, width, height int) error {
	return yuyvToSemiPlanar(dst, src, width, height, true)
}

// YUYVToNV12 is YUYVToNV21 with U and V swapped in the chroma plane.
func YUYVToNV12(dst, src []byte, width, height int) error {
	return yuyvToSemiPlanar(dst, src, width, height, false)
}

func yuyvToSemiPlanar(dst, src []byte, width, height int, vu bool) error {
	if width%2 != 0 || height%2 != 0 {
		return errors.Errorf("odd frame size %dx%d", width, height)
	}
	stride := 2 * width
	if len(src) < stride*height {
		return errors.Wrapf(errSize, "source has %d bytes", len(src))
	}
	if len(dst) < width*height*3/2 {
		return errors.Wrapf(errSize, "destination has %d bytes", len(dst))
	}

	// Luma: every other byte.
	y := dst[:width*height]
	for i := range y {
		y[i] = src[2*i]
	}

	// Chroma: one Y0 U Y1 V macropixel per 2x2 block.
	uv := dst[width*height:]
	for row := 0; row < height/2; row++ {
		line := src[2*row*stride:]
		out := uv[row*width:]
		for col := 0; col < width/2; col++ {
			u, v := line[4*col+1], line[4*col+3]
			if vu {
				out[2*col], out[2*col+1] = v, u
			} else {
				out[2*col], out[2*col+1] = u, v
			}
		}
	}
	return nil
}
