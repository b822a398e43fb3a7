package media

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/lanikai/alohacapture/internal/metrics"
	"github.com/pkg/errors"
)

// Pause after a transient read error, so a failing stream does not spin.
const audioRetryDelay = 10 * time.Millisecond

// AudioConfig wires an AudioWorker to its session.
type AudioConfig struct {
	Source AudioSource
	Format AudioFormat

	// Samples per channel in each delivered chunk.
	ChunkSamples int

	Sink    Sink
	Metrics *metrics.Capture

	// Fatal receives unrecoverable capture errors. May be nil.
	Fatal func(error)
}

// AudioStats counts chunks delivered by an AudioWorker.
type AudioStats struct {
	Chunks uint64
	Errors uint64
}

// AudioWorker reads fixed-size chunks from a microphone and hands them
// straight to the sink. Audio chunks are small, so there is no pool or queue.
type AudioWorker struct {
	*worker
	cfg AudioConfig

	chunks uint64
	errors uint64
}

func NewAudioWorker(cfg AudioConfig) *AudioWorker {
	if cfg.ChunkSamples <= 0 {
		cfg.ChunkSamples = DefaultChunkSamples
	}
	if cfg.Sink == nil {
		cfg.Sink = Discard
	}
	return &AudioWorker{
		worker: newWorker("audio", nil),
		cfg:    cfg,
	}
}

// Start spawns the capture goroutine. The microphone is opened by the
// goroutine itself, so Start does not block on the device.
func (w *AudioWorker) Start() error {
	return w.start(w.run)
}

func (w *AudioWorker) fatal(err error) {
	log.Error("Audio capture failed: %v", err)
	if w.cfg.Fatal != nil {
		w.cfg.Fatal(err)
	}
}

func (w *AudioWorker) run() {
	stream, err := w.cfg.Source.Open(w.cfg.Format)
	if err != nil {
		w.fatal(errors.Wrap(err, "open microphone"))
		return
	}
	defer stream.Close()

	chunkBytes := w.cfg.ChunkSamples * w.cfg.Format.FrameBytes()
	start := time.Now()
	var elapsed time.Duration
	var seq uint64

	for {
		if w.stopping() {
			return
		}

		data := make([]byte, chunkBytes)
		if _, err := io.ReadFull(stream, data); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF || errors.Cause(err) == ErrDeviceLost {
				w.fatal(errors.Wrap(ErrDeviceLost, err.Error()))
				return
			}
			atomic.AddUint64(&w.errors, 1)
			w.cfg.Metrics.CaptureError("audio")
			log.Warn("Skipping audio chunk: %v", err)
			time.Sleep(audioRetryDelay)
			continue
		}

		seq++
		chunk := &AudioChunk{
			AudioFormat: w.cfg.Format,
			Data:        data,
			Timestamp:   start.Add(elapsed),
			Seq:         seq,
		}
		elapsed += w.cfg.Format.Duration(len(data))

		if err := w.cfg.Sink.WriteAudio(chunk); err != nil {
			atomic.AddUint64(&w.errors, 1)
			w.cfg.Metrics.CaptureError("audio")
			log.Warn("Sink rejected audio chunk %d: %v", seq, err)
			continue
		}
		atomic.AddUint64(&w.chunks, 1)
		w.cfg.Metrics.AudioChunkDelivered()
	}
}

func (w *AudioWorker) Stats() AudioStats {
	return AudioStats{
		Chunks: atomic.LoadUint64(&w.chunks),
		Errors: atomic.LoadUint64(&w.errors),
	}
}
