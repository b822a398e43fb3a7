package media

import (
	"sync"
	"testing"

	"github.com/lanikai/alohacapture/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vga = Geometry{Width: 640, Height: 480, Format: NV21}

func TestFrameSize(t *testing.T) {
	assert.Equal(t, 460800, vga.Size())
	assert.Equal(t, 640*480*2, YUYV.FrameSize(640, 480))
	assert.Equal(t, 0, PixelFormat("MJPG").FrameSize(640, 480))
}

func TestPoolPreallocates(t *testing.T) {
	p := NewFramePool(vga, 2, nil)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, 2, p.Cap())

	f := p.Acquire()
	require.NotNil(t, f)
	assert.Len(t, f.Data, vga.Size())
	assert.Equal(t, vga, f.Geometry)
}

func TestPoolCapacityTwo(t *testing.T) {
	m, err := metrics.NewCapture(prometheus.NewRegistry())
	require.NoError(t, err)
	p := NewFramePool(vga, 2, m)

	a := p.Acquire()
	b := p.Acquire()
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotSame(t, a, b)

	// Empty pool: Acquire misses, Get allocates.
	assert.Nil(t, p.Acquire())
	c := p.Get()
	require.NotNil(t, c)
	assert.Len(t, c.Data, vga.Size())

	p.Release(a)
	p.Release(b)
	// Pool is full again, so the third frame is discarded.
	p.Release(c)
	assert.Equal(t, 2, p.Len())

	s := p.Stats()
	assert.EqualValues(t, 2, s.Hits)
	assert.EqualValues(t, 2, s.Misses)
	assert.EqualValues(t, 1, s.Discards)
	assert.Equal(t, 2, s.Pooled)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PoolEvents.WithLabelValues(metrics.PoolHit)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PoolEvents.WithLabelValues(metrics.PoolMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PoolEvents.WithLabelValues(metrics.PoolDiscard)))
}

func TestPoolReturnsSameFrame(t *testing.T) {
	p := NewFramePool(vga, 1, nil)
	f := p.Acquire()
	f.Seq = 7
	f.Source = "back"
	p.Release(f)

	g := p.Acquire()
	assert.Same(t, f, g)
	// Metadata is cleared on release.
	assert.Zero(t, g.Seq)
	assert.Empty(t, g.Source)
}

func TestPoolDiscardsForeignGeometry(t *testing.T) {
	p := NewFramePool(vga, 2, nil)
	p.Acquire()

	other := NewFramePool(Geometry{Width: 320, Height: 240, Format: NV21}, 1, nil).NewFrame()
	p.Release(other)
	assert.Equal(t, 1, p.Len())
	assert.EqualValues(t, 1, p.Stats().Discards)

	p.Release(nil)
	assert.EqualValues(t, 1, p.Stats().Discards)
}

func TestPoolClear(t *testing.T) {
	p := NewFramePool(vga, 2, nil)
	p.Clear()
	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Acquire())
}

func TestPoolConcurrentUse(t *testing.T) {
	p := NewFramePool(Geometry{Width: 16, Height: 16, Format: NV12}, 4, nil)

	// Frames currently handed out. A frame must never be in here twice.
	var mu sync.Mutex
	inUse := make(map[*Frame]bool)
	var duplicates int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				f := p.Get()
				mu.Lock()
				if inUse[f] {
					duplicates++
				}
				inUse[f] = true
				mu.Unlock()

				f.Data[0] = id

				mu.Lock()
				delete(inUse, f)
				mu.Unlock()
				p.Release(f)
			}
		}(byte(i))
	}
	wg.Wait()

	assert.Zero(t, duplicates, "frame handed out twice before release")
	assert.Empty(t, inUse)

	assert.True(t, p.Len() <= p.Cap())
	s := p.Stats()
	assert.EqualValues(t, 8000, s.Hits+s.Misses)
}
