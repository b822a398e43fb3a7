package camera

import (
	"fmt"
	"math"
)

// Size is a frame size in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Swap returns the size rotated by 90 degrees.
func (s Size) Swap() Size {
	return Size{s.Height, s.Width}
}

// Sizes with an aspect ratio this close to the target count as matching.
const aspectTolerance = 0.1

// OptimalSize picks the supported size that best fits width x height: among
// sizes with a matching aspect ratio, the one whose height is closest to the
// target; failing that, the closest height overall. It returns false only if
// sizes is empty.
func OptimalSize(sizes []Size, width, height int) (Size, bool) {
	if len(sizes) == 0 || width <= 0 || height <= 0 {
		return Size{}, false
	}

	target := float64(width) / float64(height)
	best, found := Size{}, false
	minDiff := math.MaxInt32

	for _, s := range sizes {
		if s.Height == 0 {
			continue
		}
		ratio := float64(s.Width) / float64(s.Height)
		if math.Abs(ratio-target) > aspectTolerance {
			continue
		}
		if d := abs(s.Height - height); d < minDiff {
			best, found, minDiff = s, true, d
		}
	}
	if found {
		return best, true
	}

	minDiff = math.MaxInt32
	for _, s := range sizes {
		if d := abs(s.Height - height); d < minDiff {
			best, found, minDiff = s, true, d
		}
	}
	return best, found
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
