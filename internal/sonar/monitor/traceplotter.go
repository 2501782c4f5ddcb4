package monitor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sonar.report/internal/sonar/pipeline"
)

// TraceSample is what TracePlotter keeps of one result.
type TraceSample struct {
	FrameIndex uint64
	Detected   bool
	Range      float64 // metres, valid when Detected
	Bearing    float64 // radians, valid when Detected
	BlobSize   int

	// Raw and denoised intensity at the probe pixel.
	ProbeValid    bool
	RawProbe      float64
	DenoisedProbe float64
}

// TracePlotter records detections and an optional probe pixel over a run
// and plots them afterwards.
type TracePlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	sensorID  string

	probe    image.Point
	hasProbe bool

	samples []TraceSample
}

// NewTracePlotter creates a plotter for one sensor channel.
func NewTracePlotter(sensorID string) *TracePlotter {
	return &TracePlotter{sensorID: sensorID}
}

// WithProbe samples the raw and denoised intensity of pixel p every frame,
// which shows how the denoiser tracks a single location.
func (tp *TracePlotter) WithProbe(p image.Point) *TracePlotter {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.probe = p
	tp.hasProbe = true
	return tp
}

// Start clears previous samples and begins recording into outputDir.
func (tp *TracePlotter) Start(outputDir string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	tp.outputDir = outputDir
	tp.enabled = true
	tp.samples = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (tp *TracePlotter) Stop() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (tp *TracePlotter) IsEnabled() bool {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.enabled
}

// Sample records res. Results still filling the denoiser window are skipped.
func (tp *TracePlotter) Sample(res pipeline.Result) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if !tp.enabled || !res.Ready {
		return
	}
	s := TraceSample{FrameIndex: res.ShownIndex, Detected: res.Detected}
	if res.Detected {
		s.Range = res.Detection.Range
		s.Bearing = res.Detection.Bearing
		s.BlobSize = res.Detection.BlobSize
	}
	if tp.hasProbe && res.Raw != nil && res.Denoised != nil &&
		tp.probe.In(res.Raw.Bounds()) && tp.probe.In(res.Denoised.Bounds()) {
		s.ProbeValid = true
		s.RawProbe = float64(res.Raw.At(tp.probe.X, tp.probe.Y))
		s.DenoisedProbe = float64(res.Denoised.At(tp.probe.X, tp.probe.Y))
	}
	tp.samples = append(tp.samples, s)
}

// Consume implements pipeline.Sink.
func (tp *TracePlotter) Consume(_ context.Context, res pipeline.Result) error {
	tp.Sample(res)
	return nil
}

// SampleCount returns the number of samples recorded since Start.
func (tp *TracePlotter) SampleCount() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.samples)
}

// OutputDir returns the current output directory for plots.
func (tp *TracePlotter) OutputDir() string {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.outputDir
}

// GeneratePlots writes the range, bearing and probe plots that have data.
// Returns the number of plots written.
func (tp *TracePlotter) GeneratePlots() (int, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(tp.samples) == 0 {
		return 0, nil
	}

	var rangePts, bearingPts, rawPts, denoisedPts plotter.XYs
	for _, s := range tp.samples {
		x := float64(s.FrameIndex)
		if s.Detected {
			rangePts = append(rangePts, plotter.XY{X: x, Y: s.Range})
			bearingPts = append(bearingPts, plotter.XY{X: x, Y: s.Bearing * 180 / math.Pi})
		}
		if s.ProbeValid {
			rawPts = append(rawPts, plotter.XY{X: x, Y: s.RawProbe})
			denoisedPts = append(denoisedPts, plotter.XY{X: x, Y: s.DenoisedProbe})
		}
	}

	colors := generateColors(2)
	count := 0
	if len(rangePts) > 0 {
		p := newTracePlot(fmt.Sprintf("%s - Target Range", tp.sensorID), "Range (m)")
		if err := addSeries(p, "range", rangePts, colors[0]); err != nil {
			return count, err
		}
		if err := tp.save(p, "range"); err != nil {
			return count, err
		}
		count++
	}
	if len(bearingPts) > 0 {
		p := newTracePlot(fmt.Sprintf("%s - Target Bearing", tp.sensorID), "Bearing (deg, +left)")
		if err := addSeries(p, "bearing", bearingPts, colors[0]); err != nil {
			return count, err
		}
		if err := tp.save(p, "bearing"); err != nil {
			return count, err
		}
		count++
	}
	if len(rawPts) > 0 {
		p := newTracePlot(fmt.Sprintf("%s - Probe (%d,%d)", tp.sensorID, tp.probe.X, tp.probe.Y), "Intensity")
		if err := addSeries(p, "raw", rawPts, colors[0]); err != nil {
			return count, err
		}
		if err := addSeries(p, "denoised", denoisedPts, colors[1]); err != nil {
			return count, err
		}
		if err := tp.save(p, "probe"); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func newTracePlot(title, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p
}

func addSeries(p *plot.Plot, label string, pts plotter.XYs, c color.Color) error {
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("%s series: %w", label, err)
	}
	line.Color = c
	line.Width = vg.Points(1)
	points.Color = c
	points.Radius = vg.Points(1.5)
	p.Add(line, points)
	p.Legend.Add(label, line, points)
	return nil
}

func (tp *TracePlotter) save(p *plot.Plot, kind string) error {
	file := filepath.Join(tp.outputDir, fmt.Sprintf("%s_%s.png", tp.sensorID, kind))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save %s plot: %w", kind, err)
	}
	return nil
}

// generateColors spreads n hues evenly around the HCL wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := range colors {
		colors[i] = colorful.Hcl(360*float64(i)/float64(n)+30, 0.6, 0.55).Clamped()
	}
	return colors
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir returns <baseDir>/<source>/<timestamp>, where source
// is the recording basename without extension or "synthetic".
func MakePlotOutputDir(baseDir, recording string) string {
	ts := FormatTimestamp(time.Now())
	name := "synthetic"
	if recording != "" {
		base := filepath.Base(recording)
		name = base[:len(base)-len(filepath.Ext(base))]
	}
	return filepath.Join(baseDir, name, ts)
}
