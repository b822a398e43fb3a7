package media

import (
	"sync/atomic"

	"github.com/lanikai/alohacapture/internal/metrics"
)

// DefaultPoolCapacity covers one frame being filled and one being drained.
const DefaultPoolCapacity = 2

// FramePool is a fixed-capacity store of reusable frames of one geometry.
// Acquire and Release never block: an empty pool makes the caller allocate,
// a full pool discards the released frame. The pool is an optimization, not
// a throughput limit.
type FramePool struct {
	geometry Geometry
	frames   chan *Frame

	hits     uint64
	misses   uint64
	discards uint64

	metrics *metrics.Capture
}

// PoolStats is a snapshot of pool activity.
type PoolStats struct {
	Hits     uint64
	Misses   uint64
	Discards uint64
	Pooled   int
}

// NewFramePool creates a pool holding up to capacity frames and pre-allocates
// all of them.
func NewFramePool(g Geometry, capacity int, m *metrics.Capture) *FramePool {
	if capacity < 1 {
		capacity = DefaultPoolCapacity
	}
	p := &FramePool{
		geometry: g,
		frames:   make(chan *Frame, capacity),
		metrics:  m,
	}
	for i := 0; i < capacity; i++ {
		p.frames <- newFrame(g)
	}
	return p
}

// Geometry returns the shape of frames managed by the pool.
func (p *FramePool) Geometry() Geometry {
	return p.geometry
}

// Acquire takes a frame from the pool. It returns nil if the pool is empty.
func (p *FramePool) Acquire() *Frame {
	select {
	case f := <-p.frames:
		atomic.AddUint64(&p.hits, 1)
		p.metrics.PoolEvent(metrics.PoolHit)
		return f
	default:
		atomic.AddUint64(&p.misses, 1)
		p.metrics.PoolEvent(metrics.PoolMiss)
		return nil
	}
}

// Get is Acquire with the allocation fallback: it never returns nil.
func (p *FramePool) Get() *Frame {
	if f := p.Acquire(); f != nil {
		return f
	}
	return p.NewFrame()
}

// NewFrame allocates a fresh frame of the pool's geometry, bypassing the pool.
func (p *FramePool) NewFrame() *Frame {
	return newFrame(p.geometry)
}

// Release returns f to the pool. Frames of a different geometry, and frames
// released while the pool is full, are discarded.
func (p *FramePool) Release(f *Frame) {
	if f == nil {
		return
	}
	if f.Geometry != p.geometry || len(f.Data) != p.geometry.Size() {
		p.discard()
		return
	}
	f.reset()
	select {
	case p.frames <- f:
	default:
		p.discard()
	}
}

func (p *FramePool) discard() {
	atomic.AddUint64(&p.discards, 1)
	p.metrics.PoolEvent(metrics.PoolDiscard)
}

// Len returns the number of frames currently pooled.
func (p *FramePool) Len() int {
	return len(p.frames)
}

// Cap returns the pool capacity.
func (p *FramePool) Cap() int {
	return cap(p.frames)
}

// Clear discards every pooled frame.
func (p *FramePool) Clear() {
	for {
		select {
		case <-p.frames:
		default:
			return
		}
	}
}

func (p *FramePool) Stats() PoolStats {
	return PoolStats{
		Hits:     atomic.LoadUint64(&p.hits),
		Misses:   atomic.LoadUint64(&p.misses),
		Discards: atomic.LoadUint64(&p.discards),
		Pooled:   len(p.frames),
	}
}
