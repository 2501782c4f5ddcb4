package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Denoiser names accepted by the "denoiser" field.
const (
	DenoiserNone        = "none"
	DenoiserSparseness  = "sparseness"
	DenoiserRLSInfinite = "rls-infinite"
	DenoiserRLSSliding  = "rls-sliding"
	DenoiserRLSAdaptive = "rls-adaptive"
)

// Sparseness policy names accepted by the "sparseness_policy" field.
const (
	PolicyTemporal          = "temporal"
	PolicyTemporalOrSpatial = "temporal-or-spatial"
)

// Blur kernels accepted by the "pre_blur" field.
const (
	BlurNone     = "none"
	BlurBox      = "box"
	BlurMedian   = "median"
	BlurGaussian = "gaussian"
)

// TuningConfig represents the root configuration for the sonar detection
// pipeline. Every field is optional; the Get* methods supply a fallback
// when a field is absent from the JSON file.
type TuningConfig struct {
	// Raster geometry
	RasterWidth         *int     `json:"raster_width,omitempty"`
	RasterHeight        *int     `json:"raster_height,omitempty"`
	SectorMinDeg        *float64 `json:"sector_min_deg,omitempty"`
	SectorMaxDeg        *float64 `json:"sector_max_deg,omitempty"`
	DefaultBeamWidthDeg *float64 `json:"default_beam_width_deg,omitempty"`

	// Denoising
	Denoiser           *string  `json:"denoiser,omitempty"`
	SparsenessPolicy   *string  `json:"sparseness_policy,omitempty"`
	RLSWindow          *int     `json:"rls_window,omitempty"`
	RLSLambdaMin       *float64 `json:"rls_lambda_min,omitempty"`
	RLSLambdaMax       *float64 `json:"rls_lambda_max,omitempty"`
	RLSVolatilityAlpha *float64 `json:"rls_volatility_alpha,omitempty"`
	RLSVolatilityRef   *float64 `json:"rls_volatility_ref,omitempty"`

	// Conditioning
	PreBlur              *string `json:"pre_blur,omitempty"`
	PreBlurSize          *int    `json:"pre_blur_size,omitempty"`
	SymmetricSuppression *bool   `json:"symmetric_suppression,omitempty"`

	// Detection
	ROIMinRange     *float64 `json:"roi_min_range,omitempty"`
	ROIMaxRange     *float64 `json:"roi_max_range,omitempty"`
	Threshold       *float64 `json:"threshold,omitempty"`
	MorphKernel     *int     `json:"morph_kernel,omitempty"`
	MorphIterations *int     `json:"morph_iterations,omitempty"`
	MinBlobPixels   *int     `json:"min_blob_pixels,omitempty"`
	DisplayRange    *float64 `json:"display_range,omitempty"` // 0 means the frame's own total range
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in fallbacks. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		RasterWidth:          ptrInt(400),
		RasterHeight:         ptrInt(400),
		SectorMinDeg:         ptrFloat64(-45),
		SectorMaxDeg:         ptrFloat64(45),
		DefaultBeamWidthDeg:  ptrFloat64(1.8),
		Denoiser:             ptrString(DenoiserSparseness),
		SparsenessPolicy:     ptrString(PolicyTemporalOrSpatial),
		RLSWindow:            ptrInt(4),
		RLSLambdaMin:         ptrFloat64(0.5),
		RLSLambdaMax:         ptrFloat64(0.98),
		RLSVolatilityAlpha:   ptrFloat64(0.1),
		RLSVolatilityRef:     ptrFloat64(0.1),
		PreBlur:              ptrString(BlurBox),
		PreBlurSize:          ptrInt(3),
		SymmetricSuppression: ptrBool(true),
		ROIMinRange:          ptrFloat64(1),
		ROIMaxRange:          ptrFloat64(7),
		Threshold:            ptrFloat64(0.1),
		MorphKernel:          ptrInt(5),
		MorphIterations:      ptrInt(2),
		MinBlobPixels:        ptrInt(100),
		DisplayRange:         ptrFloat64(0),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the JSON file fall back to the Get* defaults, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches the current directory and its parents up to the repository root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,             // from cmd/sonar-replay
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/sonar/pipeline/
		"../../../../" + DefaultConfigPath,    // from internal/sonar/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.RasterWidth != nil && *c.RasterWidth <= 0 {
		return fmt.Errorf("raster_width must be positive, got %d", *c.RasterWidth)
	}
	if c.RasterHeight != nil && *c.RasterHeight <= 0 {
		return fmt.Errorf("raster_height must be positive, got %d", *c.RasterHeight)
	}
	if c.GetSectorMaxDeg() <= c.GetSectorMinDeg() {
		return fmt.Errorf("sector_max_deg (%f) must exceed sector_min_deg (%f)", c.GetSectorMaxDeg(), c.GetSectorMinDeg())
	}
	if c.DefaultBeamWidthDeg != nil && *c.DefaultBeamWidthDeg <= 0 {
		return fmt.Errorf("default_beam_width_deg must be positive, got %f", *c.DefaultBeamWidthDeg)
	}

	if c.Denoiser != nil {
		switch *c.Denoiser {
		case DenoiserNone, DenoiserSparseness, DenoiserRLSInfinite, DenoiserRLSSliding, DenoiserRLSAdaptive:
		default:
			return fmt.Errorf("unknown denoiser %q", *c.Denoiser)
		}
	}
	if c.SparsenessPolicy != nil {
		switch *c.SparsenessPolicy {
		case PolicyTemporal, PolicyTemporalOrSpatial:
		default:
			return fmt.Errorf("unknown sparseness_policy %q", *c.SparsenessPolicy)
		}
	}
	if c.RLSWindow != nil && *c.RLSWindow < 1 {
		return fmt.Errorf("rls_window must be at least 1, got %d", *c.RLSWindow)
	}
	lmin, lmax := c.GetRLSLambdaMin(), c.GetRLSLambdaMax()
	if lmin <= 0 || lmax > 1 || lmin > lmax {
		return fmt.Errorf("rls lambdas must satisfy 0 < min <= max <= 1, got min=%f max=%f", lmin, lmax)
	}
	if a := c.GetRLSVolatilityAlpha(); a <= 0 || a > 1 {
		return fmt.Errorf("rls_volatility_alpha must be in (0, 1], got %f", a)
	}
	if c.GetRLSVolatilityRef() <= 0 {
		return fmt.Errorf("rls_volatility_ref must be positive, got %f", c.GetRLSVolatilityRef())
	}

	if c.PreBlur != nil {
		switch *c.PreBlur {
		case BlurNone, BlurBox, BlurMedian, BlurGaussian:
		default:
			return fmt.Errorf("unknown pre_blur %q", *c.PreBlur)
		}
	}
	if s := c.GetPreBlurSize(); s < 1 || s%2 == 0 {
		return fmt.Errorf("pre_blur_size must be a positive odd number, got %d", s)
	}

	if c.GetROIMinRange() < 0 {
		return fmt.Errorf("roi_min_range must be non-negative, got %f", c.GetROIMinRange())
	}
	if c.GetROIMaxRange() <= 0 {
		return fmt.Errorf("roi_max_range must be positive, got %f", c.GetROIMaxRange())
	}
	if t := c.GetThreshold(); t < 0 || t > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", t)
	}
	if k := c.GetMorphKernel(); k < 1 || k%2 == 0 {
		return fmt.Errorf("morph_kernel must be a positive odd number, got %d", k)
	}
	if c.GetMorphIterations() < 0 {
		return fmt.Errorf("morph_iterations must be non-negative, got %d", c.GetMorphIterations())
	}
	if c.GetMinBlobPixels() < 0 {
		return fmt.Errorf("min_blob_pixels must be non-negative, got %d", c.GetMinBlobPixels())
	}
	if c.GetDisplayRange() < 0 {
		return fmt.Errorf("display_range must be non-negative, got %f", c.GetDisplayRange())
	}
	return nil
}

func (c *TuningConfig) GetRasterWidth() int {
	if c.RasterWidth == nil {
		return 400
	}
	return *c.RasterWidth
}

func (c *TuningConfig) GetRasterHeight() int {
	if c.RasterHeight == nil {
		return 400
	}
	return *c.RasterHeight
}

func (c *TuningConfig) GetSectorMinDeg() float64 {
	if c.SectorMinDeg == nil {
		return -45
	}
	return *c.SectorMinDeg
}

func (c *TuningConfig) GetSectorMaxDeg() float64 {
	if c.SectorMaxDeg == nil {
		return 45
	}
	return *c.SectorMaxDeg
}

func (c *TuningConfig) GetDefaultBeamWidthDeg() float64 {
	if c.DefaultBeamWidthDeg == nil {
		return 1.8
	}
	return *c.DefaultBeamWidthDeg
}

func (c *TuningConfig) GetDenoiser() string {
	if c.Denoiser == nil {
		return DenoiserSparseness
	}
	return *c.Denoiser
}

func (c *TuningConfig) GetSparsenessPolicy() string {
	if c.SparsenessPolicy == nil {
		return PolicyTemporalOrSpatial
	}
	return *c.SparsenessPolicy
}

func (c *TuningConfig) GetRLSWindow() int {
	if c.RLSWindow == nil {
		return 4
	}
	return *c.RLSWindow
}

func (c *TuningConfig) GetRLSLambdaMin() float64 {
	if c.RLSLambdaMin == nil {
		return 0.5
	}
	return *c.RLSLambdaMin
}

func (c *TuningConfig) GetRLSLambdaMax() float64 {
	if c.RLSLambdaMax == nil {
		return 0.98
	}
	return *c.RLSLambdaMax
}

func (c *TuningConfig) GetRLSVolatilityAlpha() float64 {
	if c.RLSVolatilityAlpha == nil {
		return 0.1
	}
	return *c.RLSVolatilityAlpha
}

func (c *TuningConfig) GetRLSVolatilityRef() float64 {
	if c.RLSVolatilityRef == nil {
		return 0.1
	}
	return *c.RLSVolatilityRef
}

func (c *TuningConfig) GetPreBlur() string {
	if c.PreBlur == nil {
		return BlurBox
	}
	return *c.PreBlur
}

func (c *TuningConfig) GetPreBlurSize() int {
	if c.PreBlurSize == nil {
		return 3
	}
	return *c.PreBlurSize
}

func (c *TuningConfig) GetSymmetricSuppression() bool {
	if c.SymmetricSuppression == nil {
		return true
	}
	return *c.SymmetricSuppression
}

func (c *TuningConfig) GetROIMinRange() float64 {
	if c.ROIMinRange == nil {
		return 1
	}
	return *c.ROIMinRange
}

func (c *TuningConfig) GetROIMaxRange() float64 {
	if c.ROIMaxRange == nil {
		return 7
	}
	return *c.ROIMaxRange
}

func (c *TuningConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return 0.1
	}
	return *c.Threshold
}

func (c *TuningConfig) GetMorphKernel() int {
	if c.MorphKernel == nil {
		return 5
	}
	return *c.MorphKernel
}

func (c *TuningConfig) GetMorphIterations() int {
	if c.MorphIterations == nil {
		return 2
	}
	return *c.MorphIterations
}

func (c *TuningConfig) GetMinBlobPixels() int {
	if c.MinBlobPixels == nil {
		return 100
	}
	return *c.MinBlobPixels
}

func (c *TuningConfig) GetDisplayRange() float64 {
	if c.DisplayRange == nil {
		return 0
	}
	return *c.DisplayRange
}
