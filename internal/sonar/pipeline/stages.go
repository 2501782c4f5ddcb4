package pipeline

import (
	"github.com/banshee-data/sonar.report/internal/sonar/l1frames"
	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
	"github.com/banshee-data/sonar.report/internal/sonar/l4denoise"
)

// DenoiseStage turns the raw accumulated raster into the raster handed to
// detection. frame is the frame just painted into raw. The stage reports
// the frame whose data the output reflects, which lags the input for
// windowed filters, and ready=false while it has nothing to emit yet.
type DenoiseStage interface {
	Denoise(frame l1frames.Frame, raw *l3raster.ScanAccumulator) (out *l3raster.Raster, shown l1frames.Frame, ready bool, err error)
	Name() string
}

// passthrough hands the raw raster on unchanged.
type passthrough struct{}

func (passthrough) Name() string { return "none" }

func (passthrough) Denoise(frame l1frames.Frame, raw *l3raster.ScanAccumulator) (*l3raster.Raster, l1frames.Frame, bool, error) {
	return raw.Image().Clone(), frame, true, nil
}

// sparsenessStage filters frames in polar form and paints the survivors
// into an accumulator of its own.
type sparsenessStage struct {
	filter   *l4denoise.SparsenessFilter
	filtered *l3raster.ScanAccumulator
}

func (s *sparsenessStage) Name() string { return "sparseness" }

func (s *sparsenessStage) Denoise(frame l1frames.Frame, _ *l3raster.ScanAccumulator) (*l3raster.Raster, l1frames.Frame, bool, error) {
	mid, ok, err := s.filter.Push(frame)
	if err != nil || !ok {
		return nil, l1frames.Frame{}, false, err
	}
	if err := s.filtered.Update(mid); err != nil {
		return nil, l1frames.Frame{}, false, err
	}
	return s.filtered.Image().Clone(), mid, true, nil
}

// rlsStage smooths the accumulated raster pixel by pixel over time.
type rlsStage struct {
	rls *l4denoise.RLS
}

func (s *rlsStage) Name() string { return "rls-" + s.rls.Mode().String() }

func (s *rlsStage) Denoise(frame l1frames.Frame, raw *l3raster.ScanAccumulator) (*l3raster.Raster, l1frames.Frame, bool, error) {
	out, err := s.rls.FilterRaster(raw.Image())
	if err != nil {
		return nil, l1frames.Frame{}, false, err
	}
	return out, frame, true, nil
}
