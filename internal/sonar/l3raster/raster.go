package l3raster

import (
	"image"
	"image/color"

	"gonum.org/v1/gonum/floats"
)

// Raster is a dense single-channel intensity image stored row-major.
// Values are normalised to [0, 1].
type Raster struct {
	Width  int
	Height int
	Pix    []float32
}

// NewRaster allocates a zeroed raster.
func NewRaster(width, height int) *Raster {
	return &Raster{Width: width, Height: height, Pix: make([]float32, width*height)}
}

func (r *Raster) Bounds() image.Rectangle { return image.Rect(0, 0, r.Width, r.Height) }

func (r *Raster) Index(x, y int) int { return y*r.Width + x }

func (r *Raster) At(x, y int) float32 { return r.Pix[y*r.Width+x] }

func (r *Raster) Set(x, y int, v float32) { r.Pix[y*r.Width+x] = v }

// Row returns row y. The slice aliases Pix.
func (r *Raster) Row(y int) []float32 { return r.Pix[y*r.Width : (y+1)*r.Width] }

// SameSize reports whether o has the same dimensions.
func (r *Raster) SameSize(o *Raster) bool {
	return o != nil && r.Width == o.Width && r.Height == o.Height
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	out := &Raster{Width: r.Width, Height: r.Height, Pix: make([]float32, len(r.Pix))}
	copy(out.Pix, r.Pix)
	return out
}

// Crop copies the part of r inside rect. The result is empty when rect does
// not overlap the raster.
func (r *Raster) Crop(rect image.Rectangle) *Raster {
	rect = rect.Intersect(r.Bounds())
	out := NewRaster(rect.Dx(), rect.Dy())
	for y := 0; y < out.Height; y++ {
		src := r.Row(rect.Min.Y + y)[rect.Min.X:rect.Max.X]
		copy(out.Row(y), src)
	}
	return out
}

// Stats summarises a raster.
type Stats struct {
	Min     float64
	Max     float64
	Sum     float64
	NonZero int
}

// Stats returns min, max, sum and the count of non-zero pixels.
func (r *Raster) Stats() Stats {
	if len(r.Pix) == 0 {
		return Stats{}
	}
	vals := r.Float64s()
	nz := 0
	for _, v := range vals {
		if v != 0 {
			nz++
		}
	}
	return Stats{
		Min:     floats.Min(vals),
		Max:     floats.Max(vals),
		Sum:     floats.Sum(vals),
		NonZero: nz,
	}
}

// Float64s returns a float64 copy of the pixels.
func (r *Raster) Float64s() []float64 {
	out := make([]float64, len(r.Pix))
	for i, v := range r.Pix {
		out[i] = float64(v)
	}
	return out
}

// ToGray quantises the raster to 8 bits, clamping to [0, 1].
func (r *Raster) ToGray() *image.Gray {
	g := image.NewGray(r.Bounds())
	for i, v := range r.Pix {
		g.Pix[i] = toByte(v)
	}
	return g
}

// FromImage converts any image to a raster through the gray colour model.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	out := NewRaster(b.Dx(), b.Dy())
	if g, ok := img.(*image.Gray); ok && g.Stride == b.Dx() {
		for i, v := range g.Pix[:len(out.Pix)] {
			out.Pix[i] = float32(v) / 255
		}
		return out
	}
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out.Set(x, y, float32(c.Y)/255)
		}
	}
	return out
}

func toByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Mask marks which raster pixels have ever received a real beam sample.
type Mask struct {
	Width  int
	Height int
	Valid  []bool
}

// NewMask allocates an all-invalid mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Valid: make([]bool, width*height)}
}

func (m *Mask) At(x, y int) bool { return m.Valid[y*m.Width+x] }

// Count returns the number of valid pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Valid {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{Width: m.Width, Height: m.Height, Valid: make([]bool, len(m.Valid))}
	copy(out.Valid, m.Valid)
	return out
}
