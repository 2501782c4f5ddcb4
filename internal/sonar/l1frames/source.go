package l1frames

import (
	"context"
	"io"
)

// Source delivers frames in acquisition order. Next returns io.EOF once the
// stream is exhausted.
type Source interface {
	Next(ctx context.Context) (Frame, error)
}

// SliceSource replays a fixed set of frames.
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource creates a source over frames. The slice is not copied.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// Remaining returns how many frames have not been delivered yet.
func (s *SliceSource) Remaining() int {
	return len(s.frames) - s.pos
}
