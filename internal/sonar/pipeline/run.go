package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sonar.report/internal/sonar/imgproc"
	"github.com/banshee-data/sonar.report/internal/sonar/l1frames"
)

// Sink receives every Result produced by Run, in frame order.
type Sink interface {
	Consume(ctx context.Context, res Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res Result) error

func (f SinkFunc) Consume(ctx context.Context, res Result) error { return f(ctx, res) }

// MultiSink fans a Result out to several sinks, stopping at the first error.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, res Result) error {
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Consume(ctx, res); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats summarises one Run.
type Stats struct {
	Frames     int // frames accepted
	Dropped    int // frames rejected as degenerate or mismatched
	Emitted    int // frames that reached detection
	Detections int

	// Range statistics over all detections, zero when there were none.
	RangeMean   float64
	RangeStdDev float64
	RangeMin    float64
	RangeMax    float64

	Elapsed time.Duration
}

// summarise fills the range fields from the detection ranges.
func (s *Stats) summarise(ranges []float64) {
	if len(ranges) == 0 {
		return
	}
	s.RangeMean, s.RangeStdDev = stat.MeanStdDev(ranges, nil)
	if len(ranges) == 1 {
		// Sample deviation is undefined for one value.
		s.RangeStdDev = 0
	}
	s.RangeMin = floats.Min(ranges)
	s.RangeMax = floats.Max(ranges)
}

// dropped reports whether err rejects a single frame rather than the run.
func dropped(err error) bool {
	return errors.Is(err, l1frames.ErrDegenerateFrame) || errors.Is(err, l1frames.ErrDimensionMismatch)
}

// Run pulls frames from src until it returns io.EOF, processes each to
// completion and hands the result to sink, which may be nil. Rejected
// frames are logged, counted and skipped. Run stops early when ctx is
// cancelled or sink fails.
func (p *Pipeline) Run(ctx context.Context, src l1frames.Source, sink Sink) (Stats, error) {
	var st Stats
	var ranges []float64
	start := time.Now()

	finish := func(err error) (Stats, error) {
		st.summarise(ranges)
		st.Elapsed = time.Since(start)
		diagf("run finished: frames=%d dropped=%d emitted=%d detections=%d in %s",
			st.Frames, st.Dropped, st.Emitted, st.Detections, st.Elapsed)
		return st, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return finish(nil)
		}
		if err != nil {
			return finish(fmt.Errorf("read frame: %w", err))
		}

		res, err := p.Process(frame)
		if err != nil {
			if dropped(err) {
				st.Dropped++
				opsf("dropping frame: %v", err)
				continue
			}
			return finish(err)
		}
		st.Frames++
		if res.Ready {
			st.Emitted++
		}
		if res.Detected {
			st.Detections++
			ranges = append(ranges, res.Detection.Range)
		}
		if sink != nil {
			if err := sink.Consume(ctx, res); err != nil {
				return finish(fmt.Errorf("sink: %w", err))
			}
		}
	}
}

// Channel describes one sensor channel for RunChannels.
type Channel struct {
	Name   string
	Config *Config
	Ops    imgproc.Ops // nil selects imgproc.Default()
	Source l1frames.Source
	Sink   Sink
}

// RunChannels runs every channel on its own goroutine with its own
// Pipeline. Channels share nothing but ctx. The first channel to fail
// cancels the others; the stats of every channel that got as far as
// running are returned either way.
func RunChannels(ctx context.Context, channels []Channel) (map[string]Stats, error) {
	seen := make(map[string]bool, len(channels))
	pipes := make([]*Pipeline, len(channels))
	for i, ch := range channels {
		if ch.Name == "" || seen[ch.Name] {
			return nil, fmt.Errorf("channel %d: name %q is empty or repeated", i, ch.Name)
		}
		seen[ch.Name] = true
		if ch.Source == nil {
			return nil, fmt.Errorf("channel %s: no source", ch.Name)
		}
		p, err := New(ch.Config, ch.Ops)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
		}
		pipes[i] = p
	}

	var mu sync.Mutex
	out := make(map[string]Stats, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range channels {
		p := pipes[i]
		g.Go(func() error {
			st, err := p.Run(gctx, ch.Source, ch.Sink)
			mu.Lock()
			out[ch.Name] = st
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("channel %s: %w", ch.Name, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return out, err
}
