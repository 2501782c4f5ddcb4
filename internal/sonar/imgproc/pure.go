package imgproc

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
)

// Pure implements Ops in Go. Filters and morphology run on an 8-bit copy
// of the raster, so their outputs are quantised to 1/255. Threshold compares
// the float values directly.
type Pure struct{}

var _ Ops = Pure{}

func (Pure) Threshold(src *l3raster.Raster, level float32) *l3raster.Raster {
	out := l3raster.NewRaster(src.Width, src.Height)
	for i, v := range src.Pix {
		if v > level {
			out.Pix[i] = 1
		}
	}
	return out
}

func (p Pure) Open(src *l3raster.Raster, kernel, iterations int) *l3raster.Raster {
	out := p.Erode(src, kernel, iterations)
	return p.dilate(out, kernel, iterations)
}

func (p Pure) Close(src *l3raster.Raster, kernel, iterations int) *l3raster.Raster {
	out := p.dilate(src, kernel, iterations)
	return p.Erode(out, kernel, iterations)
}

func (Pure) Erode(src *l3raster.Raster, kernel, iterations int) *l3raster.Raster {
	return morph(src, kernel, iterations, effect.Erode, true)
}

func (Pure) dilate(src *l3raster.Raster, kernel, iterations int) *l3raster.Raster {
	return morph(src, kernel, iterations, effect.Dilate, false)
}

// ellipseRows returns the half-width of every row of a ksize x ksize
// elliptical structuring element, top to bottom. The shape is the one
// OpenCV builds for MORPH_ELLIPSE: 3 gives a cross, 5 a 17-pixel disc.
func ellipseRows(ksize int) []int {
	r := ksize / 2
	rows := make([]int, 2*r+1)
	for i := range rows {
		dy := i - r
		rows[i] = int(math.Round(float64(r) * math.Sqrt(float64(r*r-dy*dy)/float64(r*r))))
	}
	return rows
}

// morph erodes (min) or dilates (max) with an elliptical element. bild only
// offers square windows, so each element row is applied as a one-row bild
// filter of that row's half-width and the shifted rows are combined.
// Pixels outside the raster are ignored, as with OpenCV's default border.
func morph(src *l3raster.Raster, kernel, iterations int, op func(image.Image, float64) *image.RGBA, erode bool) *l3raster.Raster {
	if kernel <= 1 || iterations <= 0 {
		return src.Clone()
	}
	rows := ellipseRows(kernel)
	r := len(rows) / 2
	w, h := src.Width, src.Height

	g := src.ToGray()
	for it := 0; it < iterations; it++ {
		byWidth := make(map[int]*image.Gray, 2)
		for _, a := range rows {
			if byWidth[a] == nil {
				byWidth[a] = filterRows(g, a, op)
			}
		}
		next := image.NewGray(g.Rect)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := byWidth[rows[r]].Pix[y*w+x]
				for i, a := range rows {
					yy := y + i - r
					if i == r || yy < 0 || yy >= h {
						continue
					}
					c := byWidth[a].Pix[yy*w+x]
					if (erode && c < v) || (!erode && c > v) {
						v = c
					}
				}
				next.Pix[y*w+x] = v
			}
		}
		g = next
	}
	return l3raster.FromImage(g)
}

// filterRows runs op with the given radius over every row of g on its own.
func filterRows(g *image.Gray, radius int, op func(image.Image, float64) *image.RGBA) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := out.Pix[y*w : (y+1)*w]
		if radius == 0 {
			copy(dst, src)
			continue
		}
		row := &image.Gray{Pix: src, Stride: w, Rect: image.Rect(0, 0, w, 1)}
		res := op(row, float64(radius))
		for x := range dst {
			dst[x] = res.Pix[4*x]
		}
	}
	return out
}

func (Pure) MedianBlur(src *l3raster.Raster, ksize int) *l3raster.Raster {
	return l3raster.FromImage(effect.Median(src.ToGray(), kernelRadius(ksize)))
}

func (Pure) BoxBlur(src *l3raster.Raster, ksize int) *l3raster.Raster {
	return l3raster.FromImage(blur.Box(src.ToGray(), kernelRadius(ksize)))
}

func (Pure) GaussianBlur(src *l3raster.Raster, ksize int) *l3raster.Raster {
	return l3raster.FromImage(imaging.Blur(src.ToGray(), GaussianSigma(ksize)))
}

func (Pure) Normalize(src *l3raster.Raster) *l3raster.Raster {
	out := l3raster.NewRaster(src.Width, src.Height)
	if len(src.Pix) == 0 {
		return out
	}
	vals := src.Float64s()
	lo, hi := floats.Min(vals), floats.Max(vals)
	if hi == lo {
		return out
	}
	floats.AddConst(-lo, vals)
	floats.Scale(1/(hi-lo), vals)
	for i, v := range vals {
		out.Pix[i] = float32(v)
	}
	return out
}

// FindContours labels 8-connected foreground regions with a breadth-first
// flood fill and reports each region's boundary pixels, area and bounds.
func (Pure) FindContours(binary *l3raster.Raster) []Contour {
	w, h := binary.Width, binary.Height
	fg := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && binary.Pix[y*w+x] > 0
	}

	seen := make([]bool, w*h)
	var contours []Contour
	var queue []image.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if seen[y*w+x] || !fg(x, y) {
				continue
			}
			var c Contour
			x0, y0, x1, y1 := x, y, x, y
			seen[y*w+x] = true
			queue = append(queue[:0], image.Pt(x, y))
			for len(queue) > 0 {
				p := queue[0]
				queue = queue[1:]
				c.Area++
				if p.X < x0 {
					x0 = p.X
				}
				if p.X > x1 {
					x1 = p.X
				}
				if p.Y < y0 {
					y0 = p.Y
				}
				if p.Y > y1 {
					y1 = p.Y
				}
				if !fg(p.X-1, p.Y) || !fg(p.X+1, p.Y) || !fg(p.X, p.Y-1) || !fg(p.X, p.Y+1) {
					c.Points = append(c.Points, p)
				}
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p.X+dx, p.Y+dy
						if (dx == 0 && dy == 0) || !fg(nx, ny) || seen[ny*w+nx] {
							continue
						}
						seen[ny*w+nx] = true
						queue = append(queue, image.Pt(nx, ny))
					}
				}
			}
			c.Box = image.Rect(x0, y0, x1+1, y1+1)
			contours = append(contours, c)
		}
	}
	return contours
}

func kernelRadius(ksize int) float64 {
	if ksize < 1 {
		return 0
	}
	return float64(ksize / 2)
}
