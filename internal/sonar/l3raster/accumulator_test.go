package l3raster

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonar.report/internal/sonar/l1frames"
	"github.com/banshee-data/sonar.report/internal/sonar/l2geometry"
)

const deg = math.Pi / 180

func beamFrame(bearing, width float64, bins []float32) l1frames.Frame {
	return l1frames.Frame{
		BinCount:  len(bins),
		BeamCount: 1,
		Bearings:  []float64{bearing},
		Bins:      bins,
		BinLength: 0.1,
		BeamWidth: width,
	}
}

func constBins(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rampBins(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i) / float32(n)
	}
	return out
}

func newAccumulator(t *testing.T, w, h int, half float64) *ScanAccumulator {
	t.Helper()
	a, err := NewScanAccumulator(DefaultAccumulatorConfig().WithSize(w, h).WithSector(-half, half))
	require.NoError(t, err)
	return a
}

func TestNewScanAccumulatorInvalidGeometry(t *testing.T) {
	_, err := NewScanAccumulator(DefaultAccumulatorConfig().WithSize(0, 10))
	assert.True(t, errors.Is(err, l2geometry.ErrInvalidGeometry), "got %v", err)

	_, err = NewScanAccumulator(DefaultAccumulatorConfig().WithSector(0.2, 0.2))
	assert.True(t, errors.Is(err, l2geometry.ErrInvalidGeometry), "got %v", err)

	_, err = NewScanAccumulator(DefaultAccumulatorConfig().WithDefaultBeamWidth(0))
	assert.Error(t, err)
}

func TestFullSweepCoversSectorWithoutSeams(t *testing.T) {
	a := newAccumulator(t, 60, 40, 45*deg)
	step := 1.8 * deg
	for k := 0; k <= 50; k++ {
		b := -45*deg + float64(k)*step
		if k == 50 {
			b = 45 * deg
		}
		require.NoError(t, a.Update(beamFrame(b, step, constBins(50, 1))))
	}

	assert.Equal(t, 51, a.Frames())
	assert.Equal(t, a.Coverable(), a.Mask().Count())
	for i, valid := range a.Mask().Valid {
		if valid && a.Image().Pix[i] != 1 {
			t.Fatalf("valid pixel %d has intensity %f", i, a.Image().Pix[i])
		}
	}
}

func TestPixelsOutsideSectorStayInvalid(t *testing.T) {
	a := newAccumulator(t, 60, 40, 20*deg)
	for k := -10; k <= 10; k++ {
		require.NoError(t, a.Update(beamFrame(float64(k)*2*deg, 2*deg, constBins(40, 0.7))))
	}

	assert.False(t, a.Mask().At(5, 35), "wide-angle pixel is outside the sector")
	assert.Zero(t, a.Image().At(5, 35))
	assert.True(t, a.Mask().At(30, 20), "on-axis pixel is inside the sector")
	assert.InDelta(t, 0.7, a.Image().At(30, 20), 1e-6)
}

func TestRangeMapsToRows(t *testing.T) {
	cfg := DefaultAccumulatorConfig().WithSize(60, 40).WithSector(-45*deg, 45*deg)
	frame := l1frames.Frame{
		BinCount:  100,
		BeamCount: 3,
		Bearings:  []float64{-10 * deg, 0, 10 * deg},
		Bins:      append(append(rampBins(100), rampBins(100)...), rampBins(100)...),
		BinLength: 0.2,
	}

	img, mask, err := Convert(frame, cfg)
	require.NoError(t, err)

	// Origin is (30, 39); 20 px up is half the range.
	require.True(t, mask.At(30, 19))
	assert.InDelta(t, 0.5, img.At(30, 19), 1e-6)
	// Further up means further out.
	assert.Greater(t, img.At(30, 5), img.At(30, 30))
}

func TestUpdatePersistsBetweenFrames(t *testing.T) {
	a := newAccumulator(t, 60, 40, 45*deg)
	require.NoError(t, a.Update(beamFrame(20*deg, 4*deg, constBins(40, 1))))
	require.NoError(t, a.Update(beamFrame(-20*deg, 4*deg, constBins(40, 0.5))))

	left := image.Pt(30-7, 39-20) // about +19 degrees
	right := image.Pt(30+7, 39-20)
	assert.True(t, a.Mask().At(left.X, left.Y))
	assert.True(t, a.Mask().At(right.X, right.Y))
	assert.Equal(t, float32(1), a.Image().At(left.X, left.Y))
	assert.Equal(t, float32(0.5), a.Image().At(right.X, right.Y))
}

func TestDegenerateFrameLeavesStateUnchanged(t *testing.T) {
	a := newAccumulator(t, 30, 20, 45*deg)
	require.NoError(t, a.Update(beamFrame(0, 10*deg, constBins(20, 0.4))))
	before := a.Image().Clone()
	beforeMask := a.Mask().Count()

	err := a.Update(l1frames.Frame{BinCount: 0, BeamCount: 1, Bearings: []float64{0}, BinLength: 0.1})
	assert.ErrorIs(t, err, l1frames.ErrDegenerateFrame)

	err = a.Update(l1frames.Frame{BinCount: 4, BeamCount: 1, Bearings: []float64{0}, Bins: []float32{1}, BinLength: 0.1})
	assert.ErrorIs(t, err, l1frames.ErrDimensionMismatch)

	assert.Equal(t, 1, a.Frames())
	assert.Equal(t, before.Pix, a.Image().Pix)
	assert.Equal(t, beforeMask, a.Mask().Count())
}

func TestBinCountChangeIsAbsorbed(t *testing.T) {
	a := newAccumulator(t, 30, 20, 45*deg)
	require.NoError(t, a.Update(beamFrame(0, 10*deg, constBins(20, 0.4))))
	require.NoError(t, a.Update(beamFrame(0, 10*deg, constBins(7, 0.9))))
	assert.InDelta(t, 0.9, a.Image().At(15, 10), 1e-6)
}

func TestBeamSpanFallbacks(t *testing.T) {
	a := newAccumulator(t, 30, 20, 45*deg)

	single := beamFrame(0.1, 0, constBins(4, 0))
	lo, hi := a.beamSpan(&single, 0)
	assert.InDelta(t, 0.1-0.9*deg, lo, 1e-12)
	assert.InDelta(t, 0.1+0.9*deg, hi, 1e-12)

	multi := l1frames.Frame{BinCount: 1, BeamCount: 3, Bearings: []float64{-0.2, 0, 0.1}, Bins: make([]float32, 3), BinLength: 1}
	lo, hi = a.beamSpan(&multi, 0)
	assert.InDelta(t, -0.3, lo, 1e-12)
	assert.InDelta(t, -0.1, hi, 1e-12)
	lo, hi = a.beamSpan(&multi, 1)
	assert.InDelta(t, -0.1, lo, 1e-12)
	assert.InDelta(t, 0.05, hi, 1e-12)
	lo, hi = a.beamSpan(&multi, 2)
	assert.InDelta(t, 0.05, lo, 1e-12)
	assert.InDelta(t, 0.15, hi, 1e-12)
}

func TestRasterHelpers(t *testing.T) {
	r := NewRaster(4, 3)
	r.Set(1, 1, 0.5)
	r.Set(3, 2, 1)

	st := r.Stats()
	assert.Equal(t, 0.0, st.Min)
	assert.Equal(t, 1.0, st.Max)
	assert.InDelta(t, 1.5, st.Sum, 1e-9)
	assert.Equal(t, 2, st.NonZero)

	c := r.Crop(image.Rect(1, 1, 10, 10))
	assert.Equal(t, 3, c.Width)
	assert.Equal(t, 2, c.Height)
	assert.Equal(t, float32(0.5), c.At(0, 0))
	assert.Equal(t, float32(1), c.At(2, 1))

	g := r.ToGray()
	assert.Equal(t, uint8(128), g.GrayAt(1, 1).Y)
	back := FromImage(g)
	assert.InDelta(t, 0.5, back.At(1, 1), 1.0/255)
	assert.Equal(t, float32(1), back.At(3, 2))
}
