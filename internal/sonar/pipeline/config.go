package pipeline

import (
	"fmt"
	"math"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
	"github.com/banshee-data/sonar.report/internal/sonar/l4denoise"
	"github.com/banshee-data/sonar.report/internal/sonar/l5detect"
)

// Config holds every stage setting of one Pipeline.
type Config struct {
	Accumulator *l3raster.AccumulatorConfig

	// Denoiser is one of the config.Denoiser* names. "sparseness" feeds the
	// filtered frames into a second accumulator; the rls-* modes filter the
	// accumulated raster pixel by pixel; "none" passes the raster through.
	Denoiser         string
	SparsenessPolicy l4denoise.SuppressionPolicy
	RLS              *l4denoise.RLSConfig // Mode is set from Denoiser

	// PreBlur smooths the denoised raster before symmetric suppression.
	// One of the config.Blur* names.
	PreBlur     string
	PreBlurSize int

	SymmetricSuppression bool

	ROI l5detect.RangeWindow

	// Threshold binarises the clipped raster: pixels above it become 1.
	Threshold float32

	// MorphKernel and MorphIterations drive the elliptical opening that
	// removes small foreground fragments before localization. A zero
	// kernel or iteration count skips the opening.
	MorphKernel     int
	MorphIterations int

	Localizer *l5detect.LocalizerConfig
}

// DefaultConfig returns the settings of config/tuning.defaults.json.
func DefaultConfig() *Config {
	return &Config{
		Accumulator:          l3raster.DefaultAccumulatorConfig(),
		Denoiser:             config.DenoiserSparseness,
		SparsenessPolicy:     l4denoise.TemporalOrSpatialPolicy,
		RLS:                  l4denoise.DefaultRLSConfig(),
		PreBlur:              config.BlurBox,
		PreBlurSize:          3,
		SymmetricSuppression: true,
		ROI:                  l5detect.DefaultRangeWindow(),
		Threshold:            0.1,
		MorphKernel:          5,
		MorphIterations:      2,
		Localizer:            l5detect.DefaultLocalizerConfig(),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Accumulator == nil || c.RLS == nil || c.Localizer == nil {
		return fmt.Errorf("accumulator, RLS and localizer configs are required")
	}
	if err := c.Accumulator.Validate(); err != nil {
		return err
	}
	mode, rls, err := rlsMode(c.Denoiser)
	if err != nil {
		return err
	}
	if rls {
		cfg := *c.RLS
		if err := cfg.WithMode(mode).Validate(); err != nil {
			return err
		}
	}
	switch c.PreBlur {
	case config.BlurNone, config.BlurBox, config.BlurMedian, config.BlurGaussian:
	default:
		return fmt.Errorf("unknown pre-blur %q", c.PreBlur)
	}
	if c.PreBlur != config.BlurNone && (c.PreBlurSize < 1 || c.PreBlurSize%2 == 0) {
		return fmt.Errorf("PreBlurSize must be a positive odd number, got %d", c.PreBlurSize)
	}
	if err := c.ROI.Validate(); err != nil {
		return err
	}
	if c.Threshold < 0 || c.Threshold >= 1 {
		return fmt.Errorf("Threshold must be in [0, 1), got %f", c.Threshold)
	}
	if c.MorphKernel < 0 || c.MorphIterations < 0 {
		return fmt.Errorf("morphology settings must be non-negative, got kernel %d iterations %d", c.MorphKernel, c.MorphIterations)
	}
	return c.Localizer.Validate()
}

// rlsMode maps a denoiser name to an RLS window mode. rls is false for the
// denoisers that do not use RLS.
func rlsMode(denoiser string) (mode l4denoise.WindowMode, rls bool, err error) {
	switch denoiser {
	case config.DenoiserNone, config.DenoiserSparseness:
		return 0, false, nil
	case config.DenoiserRLSInfinite:
		return l4denoise.InfiniteWindow, true, nil
	case config.DenoiserRLSSliding:
		return l4denoise.SlidingWindow, true, nil
	case config.DenoiserRLSAdaptive:
		return l4denoise.AdaptiveWindow, true, nil
	}
	return 0, false, fmt.Errorf("unknown denoiser %q", denoiser)
}

// ConfigFromTuning builds a Config from the JSON tuning file. Unset fields
// take their documented defaults.
func ConfigFromTuning(tc *config.TuningConfig) (*Config, error) {
	if tc == nil {
		tc = config.EmptyTuningConfig()
	}
	policy, err := l4denoise.ParseSuppressionPolicy(tc.GetSparsenessPolicy())
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Accumulator: l3raster.DefaultAccumulatorConfig().
			WithSize(tc.GetRasterWidth(), tc.GetRasterHeight()).
			WithSector(deg2rad(tc.GetSectorMinDeg()), deg2rad(tc.GetSectorMaxDeg())).
			WithDefaultBeamWidth(deg2rad(tc.GetDefaultBeamWidthDeg())),
		Denoiser:         tc.GetDenoiser(),
		SparsenessPolicy: policy,
		RLS: &l4denoise.RLSConfig{
			Window:          tc.GetRLSWindow(),
			LambdaMin:       tc.GetRLSLambdaMin(),
			LambdaMax:       tc.GetRLSLambdaMax(),
			VolatilityAlpha: tc.GetRLSVolatilityAlpha(),
			VolatilityRef:   tc.GetRLSVolatilityRef(),
		},
		PreBlur:              tc.GetPreBlur(),
		PreBlurSize:          tc.GetPreBlurSize(),
		SymmetricSuppression: tc.GetSymmetricSuppression(),
		ROI:                  l5detect.RangeWindow{MinRange: tc.GetROIMinRange(), MaxRange: tc.GetROIMaxRange()},
		Threshold:            float32(tc.GetThreshold()),
		MorphKernel:          tc.GetMorphKernel(),
		MorphIterations:      tc.GetMorphIterations(),
		Localizer: l5detect.DefaultLocalizerConfig().
			WithMinPixels(tc.GetMinBlobPixels()).
			WithDisplayRange(tc.GetDisplayRange()),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	return cfg, nil
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
