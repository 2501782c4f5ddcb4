package l4denoise

import (
	"fmt"

	"github.com/banshee-data/sonar.report/internal/sonar/l1frames"
)

// SuppressionPolicy decides when an isolated bin is treated as speckle.
type SuppressionPolicy int

const (
	// TemporalPolicy zeroes a non-zero bin when the same bin is zero in
	// both the previous and the next frame. Every bin is inspected.
	TemporalPolicy SuppressionPolicy = iota
	// TemporalOrSpatialPolicy additionally zeroes a non-zero bin whose two
	// range neighbours in the same beam are zero. The first and last bin of
	// each beam are left alone.
	TemporalOrSpatialPolicy
)

func (p SuppressionPolicy) String() string {
	switch p {
	case TemporalPolicy:
		return "temporal"
	case TemporalOrSpatialPolicy:
		return "temporal-or-spatial"
	}
	return fmt.Sprintf("SuppressionPolicy(%d)", int(p))
}

// ParseSuppressionPolicy accepts "temporal" or "temporal-or-spatial".
func ParseSuppressionPolicy(s string) (SuppressionPolicy, error) {
	switch s {
	case "temporal":
		return TemporalPolicy, nil
	case "temporal-or-spatial":
		return TemporalOrSpatialPolicy, nil
	}
	return 0, fmt.Errorf("unknown suppression policy %q", s)
}

// windowCapacity is the number of frames the filter needs: the frame being
// judged plus one neighbour on each side in time.
const windowCapacity = 3

// frameWindow is a fixed-capacity ring of frames, newest at position 0.
type frameWindow struct {
	buf  [windowCapacity]l1frames.Frame
	head int // slot of the newest frame
	size int
}

func (w *frameWindow) pushFront(f l1frames.Frame) {
	w.head = (w.head + windowCapacity - 1) % windowCapacity
	w.buf[w.head] = f
	if w.size < windowCapacity {
		w.size++
	}
}

// at returns the i-th frame counting from the newest.
func (w *frameWindow) at(i int) *l1frames.Frame {
	return &w.buf[(w.head+i)%windowCapacity]
}

func (w *frameWindow) dropOldest() {
	if w.size == 0 {
		return
	}
	w.buf[(w.head+w.size-1)%windowCapacity] = l1frames.Frame{}
	w.size--
}

func (w *frameWindow) clear() {
	*w = frameWindow{}
}

// SparsenessFilter removes isolated non-zero bins using the frame before
// and the frame after. A frame is emitted once it has both neighbours, so
// output lags input by one frame. After emitting, the oldest frame leaves
// the window and the processed frame stays behind as the past neighbour of
// the next one.
type SparsenessFilter struct {
	policy     SuppressionPolicy
	window     frameWindow
	suppressed int
}

// NewSparsenessFilter creates a filter with the given policy.
func NewSparsenessFilter(policy SuppressionPolicy) (*SparsenessFilter, error) {
	switch policy {
	case TemporalPolicy, TemporalOrSpatialPolicy:
	default:
		return nil, fmt.Errorf("sparseness filter: unknown policy %d", int(policy))
	}
	return &SparsenessFilter{policy: policy}, nil
}

// Push adds frame to the window. When the window is full it returns the
// processed middle frame and true. A frame whose shape differs from the
// frames already held clears the window first. Invalid frames are
// rejected and leave the window unchanged. frame is copied, never mutated.
func (s *SparsenessFilter) Push(frame l1frames.Frame) (l1frames.Frame, bool, error) {
	if err := frame.Validate(); err != nil {
		return l1frames.Frame{}, false, fmt.Errorf("sparseness filter: %w", err)
	}

	f := frame.Clone()
	if s.window.size > 0 && !s.window.at(0).SameShape(&f) {
		s.window.clear()
	}
	s.window.pushFront(f)
	if s.window.size < windowCapacity {
		return l1frames.Frame{}, false, nil
	}

	next, middle, prev := s.window.at(0), s.window.at(1), s.window.at(2)
	s.suppressed += s.suppress(middle, prev, next)
	out := middle.Clone()
	s.window.dropOldest()
	return out, true, nil
}

// suppress zeroes speckle in cur in place and returns how many bins it
// cleared. Decisions are made on the values cur had on entry.
func (s *SparsenessFilter) suppress(cur, prev, next *l1frames.Frame) int {
	n := cur.BinCount
	orig := make([]float32, n)
	cleared := 0
	for b := 0; b < cur.BeamCount; b++ {
		c, p, q := cur.Beam(b), prev.Beam(b), next.Beam(b)
		copy(orig, c)

		lo, hi := 0, n
		if s.policy == TemporalOrSpatialPolicy {
			lo, hi = 1, n-1
		}
		for i := lo; i < hi; i++ {
			if orig[i] == 0 {
				continue
			}
			isolated := p[i] == 0 && q[i] == 0
			if s.policy == TemporalOrSpatialPolicy && orig[i-1] == 0 && orig[i+1] == 0 {
				isolated = true
			}
			if isolated {
				c[i] = 0
				cleared++
			}
		}
	}
	return cleared
}

// Len is the number of frames currently held.
func (s *SparsenessFilter) Len() int { return s.window.size }

// Reset empties the window.
func (s *SparsenessFilter) Reset() { s.window.clear() }

// Suppressed is the running count of bins zeroed.
func (s *SparsenessFilter) Suppressed() int { return s.suppressed }

// Policy returns the configured policy.
func (s *SparsenessFilter) Policy() SuppressionPolicy { return s.policy }
