package l4denoise

import (
	"github.com/banshee-data/sonar.report/internal/sonar/imgproc"
	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
)

// SymmetricSuppressor removes artefacts that appear mirrored about the
// vertical midline of a forward-looking image, such as electrical or
// acoustic cross-talk. It assumes real targets are not mirror-symmetric;
// anything that is symmetric enough is treated as noise.
//
// For each mirrored pixel pair the candidate noise is 1 - (left + right).
// The candidate is median filtered, values below Threshold are dropped,
// and the result is mirrored back to full width and subtracted from the
// input, clamping at zero. For odd widths the centre column belongs to
// neither half and is never modified.
//
// The median runs at the backend's working precision. With imgproc.Pure it
// is quantised to 1/255, so a candidate just under Threshold (0.799 against
// 0.8) can round up to it and be treated as noise.
type SymmetricSuppressor struct {
	ops          imgproc.Ops
	Threshold    float32 // default 0.8
	MedianKernel int     // default 3
}

// NewSymmetricSuppressor creates a suppressor using ops for the median.
func NewSymmetricSuppressor(ops imgproc.Ops) *SymmetricSuppressor {
	return &SymmetricSuppressor{ops: ops, Threshold: 0.8, MedianKernel: 3}
}

// Suppress returns the cleaned raster and the full-width noise estimate.
// src is not modified.
func (s *SymmetricSuppressor) Suppress(src *l3raster.Raster) (out, noise *l3raster.Raster) {
	w, h := src.Width, src.Height
	half := w / 2
	noise = l3raster.NewRaster(w, h)
	if half == 0 || h == 0 {
		return src.Clone(), noise
	}

	candidate := l3raster.NewRaster(half, h)
	for y := 0; y < h; y++ {
		row := src.Row(y)
		dst := candidate.Row(y)
		for j := 0; j < half; j++ {
			v := 1 - (row[half-1-j] + row[w-half+j])
			if v < 0 {
				// Negative candidates fall below Threshold either way.
				v = 0
			}
			dst[j] = v
		}
	}

	smoothed := s.ops.MedianBlur(candidate, s.MedianKernel)
	for y := 0; y < h; y++ {
		sm := smoothed.Row(y)
		nrow := noise.Row(y)
		for j, v := range sm {
			if v < s.Threshold {
				continue
			}
			nrow[w-half+j] = v
			nrow[half-1-j] = v
		}
	}

	out = l3raster.NewRaster(w, h)
	for i, v := range src.Pix {
		if d := v - noise.Pix[i]; d > 0 {
			out.Pix[i] = d
		}
	}
	return out, noise
}
