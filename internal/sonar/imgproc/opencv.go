//go:build gocv

package imgproc

import (
	"encoding/binary"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/banshee-data/sonar.report/internal/monitoring"
	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
)

// OpenCV implements Ops with gocv on 32-bit float matrices, so filter
// outputs keep full precision. Contour Area is the polygon area reported by
// OpenCV rather than a pixel count.
type OpenCV struct{}

var _ Ops = OpenCV{}

func toMat(r *l3raster.Raster) gocv.Mat {
	buf := make([]byte, 4*len(r.Pix))
	for i, v := range r.Pix {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	m, err := gocv.NewMatFromBytes(r.Height, r.Width, gocv.MatTypeCV32F, buf)
	if err != nil {
		monitoring.Logf("[imgproc] NewMatFromBytes %dx%d: %v", r.Width, r.Height, err)
		return gocv.NewMatWithSize(r.Height, r.Width, gocv.MatTypeCV32F)
	}
	return m
}

func fromMat(m gocv.Mat) *l3raster.Raster {
	out := l3raster.NewRaster(m.Cols(), m.Rows())
	data, err := m.DataPtrFloat32()
	if err != nil {
		monitoring.Logf("[imgproc] DataPtrFloat32: %v", err)
		return out
	}
	copy(out.Pix, data)
	return out
}

// run converts src, applies fn and converts the result back.
func run(src *l3raster.Raster, fn func(in gocv.Mat, out *gocv.Mat)) *l3raster.Raster {
	in := toMat(src)
	defer in.Close()
	out := gocv.NewMat()
	defer out.Close()
	fn(in, &out)
	return fromMat(out)
}

func (OpenCV) Threshold(src *l3raster.Raster, level float32) *l3raster.Raster {
	return run(src, func(in gocv.Mat, out *gocv.Mat) {
		gocv.Threshold(in, out, level, 1, gocv.ThresholdBinary)
	})
}

func morph(src *l3raster.Raster, kernel int, steps []func(in gocv.Mat, out *gocv.Mat, k gocv.Mat)) *l3raster.Raster {
	k := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernel, kernel))
	defer k.Close()
	cur := toMat(src)
	for _, step := range steps {
		next := gocv.NewMat()
		step(cur, &next, k)
		cur.Close()
		cur = next
	}
	defer cur.Close()
	return fromMat(cur)
}

func repeat(n int, fn func(in gocv.Mat, out *gocv.Mat, k gocv.Mat)) []func(gocv.Mat, *gocv.Mat, gocv.Mat) {
	steps := make([]func(gocv.Mat, *gocv.Mat, gocv.Mat), n)
	for i := range steps {
		steps[i] = fn
	}
	return steps
}

func erodeStep(in gocv.Mat, out *gocv.Mat, k gocv.Mat)  { gocv.Erode(in, out, k) }
func dilateStep(in gocv.Mat, out *gocv.Mat, k gocv.Mat) { gocv.Dilate(in, out, k) }

func (OpenCV) Open(src *l3raster.Raster, kernel, iterations int) *l3raster.Raster {
	steps := append(repeat(iterations, erodeStep), repeat(iterations, dilateStep)...)
	return morph(src, kernel, steps)
}

func (OpenCV) Close(src *l3raster.Raster, kernel, iterations int) *l3raster.Raster {
	steps := append(repeat(iterations, dilateStep), repeat(iterations, erodeStep)...)
	return morph(src, kernel, steps)
}

func (OpenCV) Erode(src *l3raster.Raster, kernel, iterations int) *l3raster.Raster {
	return morph(src, kernel, repeat(iterations, erodeStep))
}

func (OpenCV) MedianBlur(src *l3raster.Raster, ksize int) *l3raster.Raster {
	return run(src, func(in gocv.Mat, out *gocv.Mat) { gocv.MedianBlur(in, out, ksize) })
}

func (OpenCV) BoxBlur(src *l3raster.Raster, ksize int) *l3raster.Raster {
	return run(src, func(in gocv.Mat, out *gocv.Mat) { gocv.Blur(in, out, image.Pt(ksize, ksize)) })
}

func (OpenCV) GaussianBlur(src *l3raster.Raster, ksize int) *l3raster.Raster {
	return run(src, func(in gocv.Mat, out *gocv.Mat) {
		gocv.GaussianBlur(in, out, image.Pt(ksize, ksize), 0, 0, gocv.BorderDefault)
	})
}

func (OpenCV) Normalize(src *l3raster.Raster) *l3raster.Raster {
	return run(src, func(in gocv.Mat, out *gocv.Mat) {
		gocv.Normalize(in, out, 0, 1, gocv.NormMinMax)
	})
}

func (OpenCV) FindContours(bin *l3raster.Raster) []Contour {
	buf := make([]byte, len(bin.Pix))
	for i, v := range bin.Pix {
		if v > 0 {
			buf[i] = 255
		}
	}
	m, err := gocv.NewMatFromBytes(bin.Height, bin.Width, gocv.MatTypeCV8U, buf)
	if err != nil {
		monitoring.Logf("[imgproc] NewMatFromBytes %dx%d: %v", bin.Width, bin.Height, err)
		return nil
	}
	defer m.Close()

	found := gocv.FindContours(m, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer found.Close()

	contours := make([]Contour, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		pv := found.At(i)
		contours = append(contours, Contour{
			Points: pv.ToPoints(),
			Area:   int(math.Round(gocv.ContourArea(pv))),
			Box:    gocv.BoundingRect(pv),
		})
	}
	return contours
}
