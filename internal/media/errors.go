//////////////////////////////////////////////////////////////////////////////
//
// Media errors
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import "github.com/pkg/errors"

var (
	// ErrShutdownTimeout is returned by Join when a worker fails to exit in
	// time, which means its capture source never stopped delivering.
	ErrShutdownTimeout = errors.New("capture worker did not stop in time")

	// ErrDeviceLost reports unrecoverable loss of a capture device.
	ErrDeviceLost = errors.New("capture device lost")

	errWorkerStarted = errors.New("worker already started")
	errShortFrame    = errors.New("short frame")
)
