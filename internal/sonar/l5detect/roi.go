package l5detect

import (
	"fmt"
	"image"

	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
)

// RangeWindow is a band of physical distances, in metres, kept by Apply.
type RangeWindow struct {
	MinRange float64
	MaxRange float64
}

// DefaultRangeWindow keeps 1 m to 7 m.
func DefaultRangeWindow() RangeWindow {
	return RangeWindow{MinRange: 1, MaxRange: 7}
}

// Validate checks if the window is usable.
func (w RangeWindow) Validate() error {
	if w.MinRange < 0 {
		return fmt.Errorf("MinRange must be non-negative, got %f", w.MinRange)
	}
	if w.MaxRange <= 0 {
		return fmt.Errorf("MaxRange must be positive, got %f", w.MaxRange)
	}
	return nil
}

// RowBand is the half-open row interval [Min, Max) left intact by Apply.
type RowBand struct {
	Min, Max int
}

// Empty reports whether the band holds no rows.
func (b RowBand) Empty() bool { return b.Max <= b.Min }

// Rows is the number of rows in the band.
func (b RowBand) Rows() int {
	if b.Empty() {
		return 0
	}
	return b.Max - b.Min
}

// Rect is the band as a rectangle of the given width.
func (b RowBand) Rect(width int) image.Rectangle {
	if b.Empty() {
		return image.Rectangle{}
	}
	return image.Rect(0, b.Min, width, b.Max)
}

// Apply returns a copy of r with every row outside the window zeroed, and
// the band that was kept. binCount and binLength describe the frames that
// produced r; the raster height spans binCount*binLength metres with range
// growing upwards from the bottom row.
//
// MaxRange beyond the sensor's total range is clamped to it. A window with
// MinRange >= MaxRange, or a sensor with no range, keeps nothing.
func (w RangeWindow) Apply(r *l3raster.Raster, binCount int, binLength float64) (*l3raster.Raster, RowBand) {
	out := r.Clone()
	rows := r.Height
	total := float64(binCount) * binLength
	if binCount <= 0 || binLength <= 0 {
		clear(out.Pix)
		return out, RowBand{}
	}

	lo, hi := max(w.MinRange, 0), min(w.MaxRange, total)
	if lo >= hi {
		clear(out.Pix)
		return out, RowBand{}
	}

	minBin := float64(binCount) * lo / total
	maxBin := float64(binCount) * hi / total
	res := float64(rows) / float64(binCount)
	band := RowBand{
		Min: clampRow(int(float64(rows)-res*maxBin), rows),
		Max: clampRow(int(float64(rows)-res*minBin), rows),
	}

	for y := 0; y < rows; y++ {
		if y < band.Min || y >= band.Max {
			clear(out.Row(y))
		}
	}
	return out, band
}

func clampRow(v, rows int) int {
	return min(max(v, 0), rows)
}
