package l2geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidGeometry is returned when a raster size or sector cannot
// describe a usable mapping.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Size is a raster size in pixels.
type Size struct {
	Width  int
	Height int
}

// Sector is the angular span covered by a scan, in radians.
type Sector struct {
	Min float64
	Max float64
}

// Contains reports whether bearing lies inside the sector, inclusive.
func (s Sector) Contains(bearing float64) bool {
	return bearing >= s.Min && bearing <= s.Max
}

// Span is the sector width in radians.
func (s Sector) Span() float64 { return s.Max - s.Min }

// SymmetricSector returns the sector [-halfAngle, +halfAngle].
func SymmetricSector(halfAngle float64) Sector {
	return Sector{Min: -halfAngle, Max: halfAngle}
}

// WorldPoint is a position relative to the sensor mount, in metres.
type WorldPoint struct {
	X float64 // forward
	Y float64 // left
}

// Range is the distance from the sensor.
func (w WorldPoint) Range() float64 { return math.Hypot(w.X, w.Y) }

// Bearing is the angle from the sensor axis, positive to the left.
func (w WorldPoint) Bearing() float64 { return math.Atan2(w.Y, w.X) }

// Mapper converts between polar sensor coordinates and raster pixels for a
// fixed raster size and sector. The sensor origin is the bottom-centre
// pixel (Width/2, Height-1) and the full raster height spans the maximum
// range, so pixels are square.
type Mapper struct {
	size   Size
	sector Sector
	origin image.Point
}

// NewMapper validates size and sector and returns a Mapper.
func NewMapper(size Size, sector Sector) (*Mapper, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("%w: raster size %dx%d", ErrInvalidGeometry, size.Width, size.Height)
	}
	if math.IsNaN(sector.Min) || math.IsNaN(sector.Max) || !(sector.Max > sector.Min) {
		return nil, fmt.Errorf("%w: sector [%f, %f]", ErrInvalidGeometry, sector.Min, sector.Max)
	}
	return &Mapper{
		size:   size,
		sector: sector,
		origin: image.Pt(size.Width/2, size.Height-1),
	}, nil
}

func (m *Mapper) Size() Size          { return m.size }
func (m *Mapper) Sector() Sector      { return m.sector }
func (m *Mapper) Origin() image.Point { return m.origin }

// Bounds is the raster rectangle.
func (m *Mapper) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.size.Width, m.size.Height)
}

// Resolution is the metric size of one pixel for the given maximum range.
func (m *Mapper) Resolution(maxRange float64) float64 {
	return maxRange / float64(m.size.Height)
}

// ToPixel maps the centre of bin binIndex (of binCount bins covering the
// full raster height) on the given bearing to a pixel. ok is false when the
// bearing is outside the sector or the pixel falls outside the raster.
func (m *Mapper) ToPixel(binIndex, binCount int, bearing float64) (p image.Point, ok bool) {
	if binCount <= 0 || binIndex < 0 || binIndex >= binCount {
		return image.Point{}, false
	}
	radius := (float64(binIndex) + 0.5) / float64(binCount) * float64(m.size.Height)
	return m.radialToPixel(radius, bearing)
}

// PolarToPixel maps a metric range and bearing to a pixel for the given
// maximum range.
func (m *Mapper) PolarToPixel(rangeM, bearing, maxRange float64) (image.Point, bool) {
	if maxRange <= 0 || rangeM < 0 {
		return image.Point{}, false
	}
	return m.radialToPixel(rangeM/m.Resolution(maxRange), bearing)
}

func (m *Mapper) radialToPixel(radius, bearing float64) (image.Point, bool) {
	if !m.sector.Contains(bearing) {
		return image.Point{}, false
	}
	sin, cos := math.Sincos(bearing)
	p := image.Pt(
		int(math.Round(float64(m.origin.X)-radius*sin)),
		int(math.Round(float64(m.origin.Y)-radius*cos)),
	)
	return p, p.In(m.Bounds())
}

// PixelPolar returns the distance of p from the origin in pixels and its
// bearing. It is the inverse of the forward mapping before rounding.
func (m *Mapper) PixelPolar(p image.Point) (radius, bearing float64) {
	qx := float64(m.origin.Y - p.Y)
	qy := float64(m.origin.X - p.X)
	return math.Hypot(qx, qy), math.Atan2(qy, qx)
}

// ToWorld converts a pixel to metric coordinates for the given maximum
// range. With q = (origin.y - p.y, origin.x - p.x) and r = maxRange/height:
// x = q.x*r, bearing = atan2(q.y, q.x), y = tan(bearing)*x. On the origin
// row the tangent is unbounded and y is taken from the column offset.
func (m *Mapper) ToWorld(p image.Point, maxRange float64) WorldPoint {
	qx := float64(m.origin.Y - p.Y)
	qy := float64(m.origin.X - p.X)
	r := m.Resolution(maxRange)

	x := qx * r
	if qx == 0 {
		return WorldPoint{X: 0, Y: qy * r}
	}
	bearing := math.Atan2(qy, qx)
	return WorldPoint{X: x, Y: math.Tan(bearing) * x}
}

// WorldToPixel is the inverse of ToWorld. The result may fall outside the
// raster.
func (m *Mapper) WorldToPixel(w WorldPoint, maxRange float64) image.Point {
	r := m.Resolution(maxRange)
	return image.Pt(
		int(math.Round(float64(m.origin.X)-w.Y/r)),
		int(math.Round(float64(m.origin.Y)-w.X/r)),
	)
}

// AspectRatioWidth returns the raster width that keeps pixels square when
// a sector of ±halfAngle is drawn into a raster of the given height.
func AspectRatioWidth(halfAngle float64, height int) int {
	if halfAngle >= math.Pi/2 {
		return 2 * height
	}
	return int(math.Ceil(2 * float64(height) * math.Sin(math.Abs(halfAngle))))
}
