package alohacapture

import (
	"time"

	"github.com/lanikai/alohacapture/internal/camera"
	"github.com/lanikai/alohacapture/internal/media"
)

// Session is one recording, from StartRecording to StopRecording. Its
// exported fields are fixed when the session starts.
type Session struct {
	ID      string
	Started time.Time

	Facing   camera.Facing
	Geometry media.Geometry
	Audio    media.AudioFormat

	FrameRate int

	mailbox *media.FrameMailbox
	pool    *media.FramePool
	queue   *media.FrameQueue

	video *media.VideoWorker
	audio *media.AudioWorker

	// Closed when the delivery loop returns.
	delivered chan struct{}
}

// Stats summarizes the activity of a session.
type Stats struct {
	Video      media.VideoStats
	Audio      media.AudioStats
	Pool       media.PoolStats
	QueueDepth int

	// Camera buffers replaced before the video worker got to them.
	Overwrites uint64
}

func (s *Session) stats() Stats {
	return Stats{
		Video:      s.video.Stats(),
		Audio:      s.audio.Stats(),
		Pool:       s.pool.Stats(),
		QueueDepth: s.queue.Len(),
		Overwrites: s.mailbox.Overwrites(),
	}
}
