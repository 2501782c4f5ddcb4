package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/sonar/imgproc"
	"github.com/banshee-data/sonar.report/internal/sonar/l1frames"
	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
	"github.com/banshee-data/sonar.report/internal/sonar/l4denoise"
	"github.com/banshee-data/sonar.report/internal/sonar/l5detect"
)

// Result is everything one processed frame produced. Rasters are private
// copies and stay valid after later frames.
type Result struct {
	FrameIndex uint64
	Time       time.Time

	// Ready is false while a windowed denoiser is still filling up. Only
	// Raw is set in that case.
	Ready bool

	Raw      *l3raster.Raster
	Mask     *l3raster.Mask
	Denoised *l3raster.Raster // after denoising, pre-blur and symmetric suppression
	Noise    *l3raster.Raster // symmetric noise estimate, nil when disabled
	ROI      *l3raster.Raster
	Band     l5detect.RowBand
	Binary   *l3raster.Raster

	// ShownIndex is the frame the denoised output reflects. It trails
	// FrameIndex by one with the sparseness denoiser.
	ShownIndex uint64
	MaxRange   float64

	Detection l5detect.Detection
	Detected  bool
}

// Pipeline processes the frames of one sensor channel. It is not safe for
// concurrent use; give every channel its own Pipeline.
type Pipeline struct {
	cfg        Config
	ops        imgproc.Ops
	raw        *l3raster.ScanAccumulator
	denoise    DenoiseStage
	symmetric  *l4denoise.SymmetricSuppressor
	localizer  *l5detect.BlobLocalizer
	processed  int
	detections int
}

// New validates cfg and builds a fresh set of components. ops nil selects
// imgproc.Default().
func New(cfg *Config, ops imgproc.Ops) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if ops == nil {
		ops = imgproc.Default()
	}

	raw, err := l3raster.NewScanAccumulator(cfg.Accumulator)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p := &Pipeline{cfg: *cfg, ops: ops, raw: raw}

	if p.denoise, err = newDenoiseStage(cfg); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.SymmetricSuppression {
		p.symmetric = l4denoise.NewSymmetricSuppressor(ops)
	}
	if p.localizer, err = l5detect.NewBlobLocalizer(cfg.Localizer, ops, raw.Mapper()); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	diagf("denoiser=%s pre-blur=%s/%d symmetric=%t roi=[%.1f, %.1f] threshold=%.2f",
		p.denoise.Name(), cfg.PreBlur, cfg.PreBlurSize, cfg.SymmetricSuppression,
		cfg.ROI.MinRange, cfg.ROI.MaxRange, cfg.Threshold)
	return p, nil
}

func newDenoiseStage(cfg *Config) (DenoiseStage, error) {
	mode, isRLS, err := rlsMode(cfg.Denoiser)
	if err != nil {
		return nil, err
	}
	if isRLS {
		rc := *cfg.RLS
		f, err := l4denoise.NewRLS(rc.WithMode(mode))
		if err != nil {
			return nil, err
		}
		return &rlsStage{rls: f}, nil
	}
	if cfg.Denoiser == config.DenoiserNone {
		return passthrough{}, nil
	}

	filter, err := l4denoise.NewSparsenessFilter(cfg.SparsenessPolicy)
	if err != nil {
		return nil, err
	}
	filtered, err := l3raster.NewScanAccumulator(cfg.Accumulator)
	if err != nil {
		return nil, err
	}
	return &sparsenessStage{filter: filter, filtered: filtered}, nil
}

// Process runs one frame through every stage. A frame that fails
// validation or disagrees with filter state is rejected with an error
// wrapping l1frames.ErrDegenerateFrame or l1frames.ErrDimensionMismatch;
// the pipeline stays usable for the next frame.
func (p *Pipeline) Process(frame l1frames.Frame) (Result, error) {
	if err := frame.Validate(); err != nil {
		return Result{}, fmt.Errorf("frame %d: %w", frame.Index, err)
	}
	res := Result{FrameIndex: frame.Index, Time: frame.Time}

	if err := p.raw.Update(frame); err != nil {
		return Result{}, fmt.Errorf("frame %d: %w", frame.Index, err)
	}
	res.Raw = p.raw.Image().Clone()
	res.Mask = p.raw.Mask().Clone()

	img, shown, ready, err := p.denoise.Denoise(frame, p.raw)
	if err != nil {
		return Result{}, fmt.Errorf("frame %d: %s: %w", frame.Index, p.denoise.Name(), err)
	}
	p.processed++
	if !ready {
		tracef("frame %d: %s filling", frame.Index, p.denoise.Name())
		return res, nil
	}
	res.Ready = true
	res.ShownIndex = shown.Index
	res.MaxRange = shown.TotalRange()

	img = p.preBlur(img)
	if p.symmetric != nil {
		img, res.Noise = p.symmetric.Suppress(img)
	}
	res.Denoised = img

	res.ROI, res.Band = p.cfg.ROI.Apply(img, shown.BinCount, shown.BinLength)
	res.Binary = p.ops.Threshold(res.ROI, p.cfg.Threshold)
	if p.cfg.MorphKernel > 0 && p.cfg.MorphIterations > 0 {
		res.Binary = p.ops.Open(res.Binary, p.cfg.MorphKernel, p.cfg.MorphIterations)
	}

	res.Detection, res.Detected = p.localizer.Localize(res.Binary, res.MaxRange)
	if res.Detected {
		p.detections++
		tracef("frame %d: target at %.2f m, %.1f deg (blob %d)", frame.Index,
			res.Detection.Range, res.Detection.Bearing*180/math.Pi, res.Detection.BlobSize)
	}
	return res, nil
}

func (p *Pipeline) preBlur(r *l3raster.Raster) *l3raster.Raster {
	switch p.cfg.PreBlur {
	case config.BlurBox:
		return p.ops.BoxBlur(r, p.cfg.PreBlurSize)
	case config.BlurMedian:
		return p.ops.MedianBlur(r, p.cfg.PreBlurSize)
	case config.BlurGaussian:
		return p.ops.GaussianBlur(r, p.cfg.PreBlurSize)
	}
	return r
}

// Config returns a copy of the configuration in use.
func (p *Pipeline) Config() Config { return p.cfg }

// Accumulator exposes the raw accumulator, mainly for its geometry.
func (p *Pipeline) Accumulator() *l3raster.ScanAccumulator { return p.raw }

// Processed is the number of frames accepted so far.
func (p *Pipeline) Processed() int { return p.processed }

// Detections is the number of frames that produced a detection.
func (p *Pipeline) Detections() int { return p.detections }
