// Package imgproc exposes the general-purpose image operations the sonar
// pipeline consumes: thresholding, morphology, blurs, contour extraction and
// normalisation. The pipeline depends only on the Ops interface. The default
// backend is pure Go (bild and imaging); building with the gocv tag swaps in
// OpenCV.
package imgproc

import (
	"image"

	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
)

// Ops is the capability set used by the pipeline. Implementations never
// modify their inputs. Morphology and blur outputs may be quantised to the
// backend's working precision (1/255 for Pure).
type Ops interface {
	// Threshold returns 1 where src > level and 0 elsewhere.
	Threshold(src *l3raster.Raster, level float32) *l3raster.Raster
	// Open erodes then dilates, each iterations times, with a kernel x kernel
	// elliptical element (OpenCV MORPH_ELLIPSE).
	Open(src *l3raster.Raster, kernel, iterations int) *l3raster.Raster
	// Close dilates then erodes, each iterations times, with an elliptical kernel.
	Close(src *l3raster.Raster, kernel, iterations int) *l3raster.Raster
	Erode(src *l3raster.Raster, kernel, iterations int) *l3raster.Raster
	MedianBlur(src *l3raster.Raster, ksize int) *l3raster.Raster
	BoxBlur(src *l3raster.Raster, ksize int) *l3raster.Raster
	GaussianBlur(src *l3raster.Raster, ksize int) *l3raster.Raster
	// Normalize linearly rescales src so its minimum maps to 0 and its maximum to 1.
	Normalize(src *l3raster.Raster) *l3raster.Raster
	// FindContours returns the outer contour of every 8-connected foreground
	// region of a binary raster.
	FindContours(binary *l3raster.Raster) []Contour
}

// Contour is the outer boundary of one foreground region.
type Contour struct {
	Points []image.Point   // boundary pixels
	Area   int             // region area in pixels
	Box    image.Rectangle // axis-aligned bounds, Max exclusive
}

// Size is the number of boundary pixels, the measure used to rank blobs.
func (c Contour) Size() int { return len(c.Points) }

// BoundingRect returns the smallest rectangle containing pts, Max exclusive.
func BoundingRect(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0].Add(image.Pt(1, 1))}
	for _, p := range pts[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// GaussianSigma is the sigma OpenCV derives for a kernel of size ksize.
func GaussianSigma(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}
