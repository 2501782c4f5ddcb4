package l1frames

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDegenerateFrame is returned for frames that cannot be mapped at
	// all: zero bins, zero beams, or a non-positive bin length.
	ErrDegenerateFrame = errors.New("degenerate frame")

	// ErrDimensionMismatch is returned when a vector length disagrees with
	// the frame's declared shape or with state established by an earlier
	// frame.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Frame is one sonar reading: BeamCount beams, each carrying BinCount
// range samples. Bins is row-major by beam, so beam b occupies
// Bins[b*BinCount : (b+1)*BinCount]. Intensities are normalised to [0, 1].
type Frame struct {
	Index     uint64
	Time      time.Time
	BinCount  int
	BeamCount int
	Bearings  []float64 // radians, len == BeamCount, non-decreasing
	Bins      []float32
	BinLength float64 // metres per bin
	BeamWidth float64 // radians; 0 when the head does not report it
}

// Validate checks the frame's shape before any mapping is attempted.
func (f *Frame) Validate() error {
	if f.BinCount <= 0 || f.BeamCount <= 0 {
		return fmt.Errorf("%w: bin_count=%d beam_count=%d", ErrDegenerateFrame, f.BinCount, f.BeamCount)
	}
	if f.BinLength <= 0 {
		return fmt.Errorf("%w: bin_length=%f", ErrDegenerateFrame, f.BinLength)
	}
	if len(f.Bearings) != f.BeamCount {
		return fmt.Errorf("%w: %d bearings for %d beams", ErrDimensionMismatch, len(f.Bearings), f.BeamCount)
	}
	if len(f.Bins) != f.BinCount*f.BeamCount {
		return fmt.Errorf("%w: %d bins, want %d", ErrDimensionMismatch, len(f.Bins), f.BinCount*f.BeamCount)
	}
	for i := 1; i < len(f.Bearings); i++ {
		if f.Bearings[i] < f.Bearings[i-1] {
			return fmt.Errorf("%w: bearings decrease at beam %d", ErrDegenerateFrame, i)
		}
	}
	return nil
}

// TotalRange is the distance covered by one beam.
func (f *Frame) TotalRange() float64 {
	return float64(f.BinCount) * f.BinLength
}

// Beam returns the bins of beam b. The slice aliases f.Bins.
func (f *Frame) Beam(b int) []float32 {
	return f.Bins[b*f.BinCount : (b+1)*f.BinCount]
}

// SameShape reports whether two frames carry identically sized bin vectors.
func (f *Frame) SameShape(o *Frame) bool {
	return f.BinCount == o.BinCount && f.BeamCount == o.BeamCount
}

// Clone returns a deep copy so filters can mutate bins without touching
// the caller's buffers.
func (f Frame) Clone() Frame {
	out := f
	out.Bearings = append([]float64(nil), f.Bearings...)
	out.Bins = append([]float32(nil), f.Bins...)
	return out
}
