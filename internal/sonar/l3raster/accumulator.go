package l3raster

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/banshee-data/sonar.report/internal/sonar/l1frames"
	"github.com/banshee-data/sonar.report/internal/sonar/l2geometry"
)

// AccumulatorConfig provides a configuration builder for ScanAccumulator.
type AccumulatorConfig struct {
	Size             l2geometry.Size
	Sector           l2geometry.Sector
	DefaultBeamWidth float64 // radians, used for single-beam frames that carry no width (default: 1.8°)
}

// DefaultAccumulatorConfig returns a 400x400 raster over a ±45° sector.
func DefaultAccumulatorConfig() *AccumulatorConfig {
	return &AccumulatorConfig{
		Size:             l2geometry.Size{Width: 400, Height: 400},
		Sector:           l2geometry.SymmetricSector(math.Pi / 4),
		DefaultBeamWidth: 1.8 * math.Pi / 180,
	}
}

// WithSize sets the raster size.
func (c *AccumulatorConfig) WithSize(width, height int) *AccumulatorConfig {
	c.Size = l2geometry.Size{Width: width, Height: height}
	return c
}

// WithSector sets the angular limits in radians.
func (c *AccumulatorConfig) WithSector(lo, hi float64) *AccumulatorConfig {
	c.Sector = l2geometry.Sector{Min: lo, Max: hi}
	return c
}

// WithDefaultBeamWidth sets the fallback beam width in radians.
func (c *AccumulatorConfig) WithDefaultBeamWidth(w float64) *AccumulatorConfig {
	c.DefaultBeamWidth = w
	return c
}

// Validate checks the configuration. Geometry errors wrap
// l2geometry.ErrInvalidGeometry.
func (c *AccumulatorConfig) Validate() error {
	if _, err := l2geometry.NewMapper(c.Size, c.Sector); err != nil {
		return err
	}
	if c.DefaultBeamWidth <= 0 {
		return fmt.Errorf("DefaultBeamWidth must be positive, got %f", c.DefaultBeamWidth)
	}
	return nil
}

// polarPixel is one raster pixel inside the sector and within maximum range.
type polarPixel struct {
	bearing float64
	radius  float64 // fraction of the raster height, [0, 1)
	index   int
}

// ScanAccumulator paints polar frames into a persistent cartesian raster.
// Each beam fills the pixels whose bearing falls inside the beam's angular
// span, so adjacent beams tile the sector without gaps. There is no reset:
// construct a new accumulator to start over.
//
// A ScanAccumulator is owned by a single pipeline and is not safe for
// concurrent use.
type ScanAccumulator struct {
	cfg    AccumulatorConfig
	mapper *l2geometry.Mapper
	image  *Raster
	mask   *Mask
	lut    []polarPixel // sorted by bearing
	frames int
}

// NewScanAccumulator builds the pixel lookup for cfg. It fails with
// l2geometry.ErrInvalidGeometry for an unusable size or sector.
func NewScanAccumulator(cfg *AccumulatorConfig) (*ScanAccumulator, error) {
	if cfg == nil {
		cfg = DefaultAccumulatorConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scan accumulator: %w", err)
	}
	mapper, err := l2geometry.NewMapper(cfg.Size, cfg.Sector)
	if err != nil {
		return nil, fmt.Errorf("scan accumulator: %w", err)
	}

	a := &ScanAccumulator{
		cfg:    *cfg,
		mapper: mapper,
		image:  NewRaster(cfg.Size.Width, cfg.Size.Height),
		mask:   NewMask(cfg.Size.Width, cfg.Size.Height),
	}
	a.buildLUT()
	return a, nil
}

func (a *ScanAccumulator) buildLUT() {
	h := float64(a.cfg.Size.Height)
	for y := 0; y < a.cfg.Size.Height; y++ {
		for x := 0; x < a.cfg.Size.Width; x++ {
			r, b := a.mapper.PixelPolar(image.Pt(x, y))
			if r >= h || !a.cfg.Sector.Contains(b) {
				continue
			}
			a.lut = append(a.lut, polarPixel{bearing: b, radius: r / h, index: y*a.cfg.Size.Width + x})
		}
	}
	sort.Slice(a.lut, func(i, j int) bool { return a.lut[i].bearing < a.lut[j].bearing })
}

// Update paints every beam of frame into the raster and marks the painted
// pixels valid. Each frame's bins span the full raster height regardless
// of earlier frames, so a change in bin or beam count is absorbed. A frame
// that fails validation is rejected before anything is written.
func (a *ScanAccumulator) Update(frame l1frames.Frame) error {
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("accumulator update: %w", err)
	}
	for b := 0; b < frame.BeamCount; b++ {
		lo, hi := a.beamSpan(&frame, b)
		a.paintBeam(frame.Beam(b), lo, hi)
	}
	a.frames++
	return nil
}

// beamSpan returns the bearing interval covered by beam b. Reported beam
// widths win; otherwise multi-beam frames split the gap to each neighbour
// and single beams fall back to DefaultBeamWidth.
func (a *ScanAccumulator) beamSpan(f *l1frames.Frame, b int) (lo, hi float64) {
	center := f.Bearings[b]
	if f.BeamWidth > 0 {
		return center - f.BeamWidth/2, center + f.BeamWidth/2
	}
	half := a.cfg.DefaultBeamWidth / 2
	if f.BeamCount == 1 {
		return center - half, center + half
	}

	var below, above float64
	if b > 0 {
		below = (center - f.Bearings[b-1]) / 2
	}
	if b < f.BeamCount-1 {
		above = (f.Bearings[b+1] - center) / 2
	}
	if b == 0 {
		below = above
	}
	if b == f.BeamCount-1 {
		above = below
	}
	if below <= 0 {
		below = half
	}
	if above <= 0 {
		above = half
	}
	return center - below, center + above
}

func (a *ScanAccumulator) paintBeam(bins []float32, lo, hi float64) {
	n := len(bins)
	start := sort.Search(len(a.lut), func(i int) bool { return a.lut[i].bearing >= lo })
	for i := start; i < len(a.lut) && a.lut[i].bearing <= hi; i++ {
		px := a.lut[i]
		bin := int(px.radius * float64(n))
		if bin >= n {
			continue
		}
		a.image.Pix[px.index] = bins[bin]
		a.mask.Valid[px.index] = true
	}
}

// Image returns the accumulated raster. The returned value is shared: a
// later Update mutates it in place.
func (a *ScanAccumulator) Image() *Raster { return a.image }

// Mask returns the validity mask, shared like Image.
func (a *ScanAccumulator) Mask() *Mask { return a.mask }

// Frames returns the number of frames applied so far.
func (a *ScanAccumulator) Frames() int { return a.frames }

// Mapper returns the geometry used by the accumulator.
func (a *ScanAccumulator) Mapper() *l2geometry.Mapper { return a.mapper }

// Coverable returns how many pixels lie inside the sector and range, i.e.
// the mask count after a complete sweep.
func (a *ScanAccumulator) Coverable() int { return len(a.lut) }

// Convert maps a single frame into a fresh raster without persistent state,
// for heads that image the whole sector on every ping.
func Convert(frame l1frames.Frame, cfg *AccumulatorConfig) (*Raster, *Mask, error) {
	a, err := NewScanAccumulator(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := a.Update(frame); err != nil {
		return nil, nil, err
	}
	return a.image, a.mask, nil
}
