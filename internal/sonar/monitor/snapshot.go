package monitor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
	"github.com/banshee-data/sonar.report/internal/sonar/pipeline"
)

// Colormap maps an intensity in [0, 1] to a colour.
type Colormap func(v float64) color.Color

// HCLColormap blends from low to high in HCL space, which keeps perceived
// brightness monotonic.
func HCLColormap(low, high colorful.Color) Colormap {
	return func(v float64) color.Color {
		v = min(max(v, 0), 1)
		return low.BlendHcl(high, v).Clamped()
	}
}

// DefaultColormap runs from near-black navy to warm yellow.
var DefaultColormap = HCLColormap(
	colorful.Color{R: 0.02, G: 0.02, B: 0.12},
	colorful.Color{R: 1.0, G: 0.88, B: 0.25},
)

var markerColor = color.NRGBA{R: 255, G: 32, B: 32, A: 255}

// SnapshotOptions controls WriteRasterPNG.
type SnapshotOptions struct {
	Colormap Colormap        // nil selects DefaultColormap
	Crop     image.Rectangle // empty keeps the whole raster
	Scale    int             // nearest-neighbour upscale factor, <=1 keeps size
	Marker   *image.Point    // drawn as a cross, in uncropped raster coordinates
}

// RenderRaster colours every pixel of r.
func RenderRaster(r *l3raster.Raster, cm Colormap) *image.NRGBA {
	if cm == nil {
		cm = DefaultColormap
	}
	img := image.NewNRGBA(r.Bounds())
	// 8-bit input only has 256 distinct colours.
	var lut [256]color.NRGBA
	for i := range lut {
		lut[i] = color.NRGBAModel.Convert(cm(float64(i) / 255)).(color.NRGBA)
	}
	gray := r.ToGray()
	for i, v := range gray.Pix {
		c := lut[v]
		img.Pix[4*i], img.Pix[4*i+1], img.Pix[4*i+2], img.Pix[4*i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// drawCross marks p with a 5-pixel cross, clipped to img.
func drawCross(img *image.NRGBA, p image.Point) {
	b := img.Bounds()
	for d := -2; d <= 2; d++ {
		for _, q := range []image.Point{image.Pt(p.X+d, p.Y), image.Pt(p.X, p.Y+d)} {
			if q.In(b) {
				img.SetNRGBA(q.X, q.Y, markerColor)
			}
		}
	}
}

// WriteRasterPNG renders r through the options and saves it to path. The
// format follows the file extension.
func WriteRasterPNG(path string, r *l3raster.Raster, o SnapshotOptions) error {
	if r == nil {
		return fmt.Errorf("no raster to write")
	}
	src := r
	offset := image.Point{}
	if !o.Crop.Empty() {
		crop := o.Crop.Intersect(r.Bounds())
		if crop.Empty() {
			return fmt.Errorf("crop %v is outside the %dx%d raster", o.Crop, r.Width, r.Height)
		}
		src = r.Crop(crop)
		offset = crop.Min
	}
	img := RenderRaster(src, o.Colormap)
	if o.Marker != nil {
		drawCross(img, o.Marker.Sub(offset))
	}

	var out image.Image = img
	if o.Scale > 1 {
		out = imaging.Resize(img, img.Bounds().Dx()*o.Scale, 0, imaging.NearestNeighbor)
	}
	if err := imaging.Save(out, path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SnapshotSink writes the denoised raster of every Nth ready result, marked
// with the detection point when there is one.
type SnapshotSink struct {
	dir       string
	sensorID  string
	every     int
	cropToROI bool
	scale     int
	seen      int
	written   int
}

// NewSnapshotSink writes into dir, creating it. every < 1 is treated as 1.
func NewSnapshotSink(dir, sensorID string, every int, cropToROI bool) (*SnapshotSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return &SnapshotSink{
		dir:       dir,
		sensorID:  sensorID,
		every:     max(every, 1),
		cropToROI: cropToROI,
		scale:     2,
	}, nil
}

// Consume implements pipeline.Sink.
func (s *SnapshotSink) Consume(_ context.Context, res pipeline.Result) error {
	if !res.Ready || res.Denoised == nil {
		return nil
	}
	s.seen++
	if (s.seen-1)%s.every != 0 {
		return nil
	}
	o := SnapshotOptions{Scale: s.scale}
	if s.cropToROI && !res.Band.Empty() {
		o.Crop = res.Band.Rect(res.Denoised.Width)
	}
	if res.Detected {
		p := res.Detection.Point
		o.Marker = &p
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%06d.png", s.sensorID, res.ShownIndex))
	if err := WriteRasterPNG(path, res.Denoised, o); err != nil {
		return err
	}
	s.written++
	return nil
}

// Written is the number of files written so far.
func (s *SnapshotSink) Written() int { return s.written }
