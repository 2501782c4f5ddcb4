package l5detect

import (
	"fmt"
	"image"
	"math"

	"github.com/banshee-data/sonar.report/internal/monitoring"
	"github.com/banshee-data/sonar.report/internal/sonar/imgproc"
	"github.com/banshee-data/sonar.report/internal/sonar/l2geometry"
	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
)

var logf = monitoring.Tagged("detect")

// SelectBiggest returns the contour with the largest Size among those whose
// Size is at least minSize. Ties keep the earliest contour. ok is false when
// nothing qualifies.
func SelectBiggest(contours []imgproc.Contour, minSize int) (best imgproc.Contour, ok bool) {
	for _, c := range contours {
		if c.Size() < minSize {
			continue
		}
		if !ok || c.Size() > best.Size() {
			best, ok = c, true
		}
	}
	return best, ok
}

// LocalizerConfig provides a configuration builder for BlobLocalizer.
type LocalizerConfig struct {
	MinPixels    int     // smallest contour considered a target (default: 100)
	DisplayRange float64 // metres spanned by the raster height; 0 uses the frame range
}

// DefaultLocalizerConfig returns the default localizer settings.
func DefaultLocalizerConfig() *LocalizerConfig {
	return &LocalizerConfig{MinPixels: 100}
}

// WithMinPixels sets the minimum contour size.
func (c *LocalizerConfig) WithMinPixels(n int) *LocalizerConfig {
	c.MinPixels = n
	return c
}

// WithDisplayRange fixes the metric range of the raster height.
func (c *LocalizerConfig) WithDisplayRange(r float64) *LocalizerConfig {
	c.DisplayRange = r
	return c
}

// Validate checks if the configuration is valid.
func (c *LocalizerConfig) Validate() error {
	if c.MinPixels < 0 {
		return fmt.Errorf("MinPixels must be non-negative, got %d", c.MinPixels)
	}
	if c.DisplayRange < 0 || math.IsNaN(c.DisplayRange) {
		return fmt.Errorf("DisplayRange must be non-negative, got %f", c.DisplayRange)
	}
	return nil
}

// Detection is the blob picked from one binary raster.
type Detection struct {
	Box        image.Rectangle // bounds of the blob, Max exclusive
	Point      image.Point     // candidate nearest the sensor origin
	Candidates [3]image.Point  // left, middle and right of the bottom edge
	World      l2geometry.WorldPoint
	Range      float64 // metres from the sensor
	Bearing    float64 // radians, positive to the left
	BlobSize   int     // boundary pixels of the chosen contour
	BlobArea   int
}

// BlobLocalizer picks the biggest blob of a thresholded raster and reports
// the point of it nearest the sensor.
//
// The nearest point is approximated by sampling three points on the bottom
// edge of the blob's bounding box and keeping the one closest to the origin.
type BlobLocalizer struct {
	cfg    LocalizerConfig
	ops    imgproc.Ops
	mapper *l2geometry.Mapper
}

// NewBlobLocalizer creates a localizer for rasters laid out by mapper.
func NewBlobLocalizer(cfg *LocalizerConfig, ops imgproc.Ops, mapper *l2geometry.Mapper) (*BlobLocalizer, error) {
	if cfg == nil {
		cfg = DefaultLocalizerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("blob localizer: %w", err)
	}
	if ops == nil || mapper == nil {
		return nil, fmt.Errorf("blob localizer: ops and mapper are required")
	}
	return &BlobLocalizer{cfg: *cfg, ops: ops, mapper: mapper}, nil
}

// Localize finds the target in binary. maxRange is the metric range of the
// raster height and is overridden by a non-zero DisplayRange. ok is false
// when no contour reaches MinPixels.
func (l *BlobLocalizer) Localize(binary *l3raster.Raster, maxRange float64) (Detection, bool) {
	size := l.mapper.Size()
	if binary.Width != size.Width || binary.Height != size.Height {
		logf("raster %dx%d does not match mapper %dx%d", binary.Width, binary.Height, size.Width, size.Height)
		return Detection{}, false
	}

	blob, ok := SelectBiggest(l.ops.FindContours(binary), l.cfg.MinPixels)
	if !ok {
		return Detection{}, false
	}

	d := Detection{
		Box:      blob.Box,
		BlobSize: blob.Size(),
		BlobArea: blob.Area,
	}
	d.Candidates, d.Point = nearestCandidate(blob.Box, binary.Width, binary.Height)

	if l.cfg.DisplayRange > 0 {
		maxRange = l.cfg.DisplayRange
	}
	d.World = l.mapper.ToWorld(d.Point, maxRange)
	d.Range = d.World.Range()
	d.Bearing = d.World.Bearing()
	return d, true
}

// nearestCandidate samples the bottom edge of box at its left corner, middle
// and right corner and returns the samples with the one closest to the
// bottom-centre origin. Samples below the raster are pulled onto the last
// row. The first of equally close samples wins.
func nearestCandidate(box image.Rectangle, width, height int) ([3]image.Point, image.Point) {
	origin := image.Pt(width/2, height-1)
	y := min(box.Max.Y, height-1)

	var cands [3]image.Point
	best, bestDist := image.Point{}, math.Inf(1)
	for i := range cands {
		p := image.Pt(box.Min.X+i*box.Dx()/2, y)
		cands[i] = p
		d := math.Hypot(float64(p.X-origin.X), float64(p.Y-origin.Y))
		if d < bestDist {
			best, bestDist = p, d
		}
	}
	return cands, best
}
