// Package media moves raw captured video frames and audio chunks from
// hardware capture contexts to a delivery sink.
//
// Video frames travel camera callback -> FrameMailbox -> VideoWorker ->
// FrameQueue -> Deliver -> Sink, with frame buffers recycled through a
// FramePool. Audio chunks travel microphone -> AudioWorker -> Sink directly.
package media

import (
	"github.com/lanikai/alohacapture/internal/logging"
)

var log = logging.DefaultLogger.WithTag("media")
