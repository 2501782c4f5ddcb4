package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/monitoring"
	"github.com/banshee-data/sonar.report/internal/sonar/imgproc"
	"github.com/banshee-data/sonar.report/internal/sonar/l1frames"
)

// sweepScanner images the whole ±45° sector on every frame with a clean
// target 4 m out at 10° left and nothing else.
func sweepScanner(limit int) *l1frames.SyntheticScanner {
	g := l1frames.NewSyntheticScanner(1)
	g.BinCount = 100
	g.BinLength = 0.1
	g.BeamsPerFrame = 51
	g.SpeckleProb = 0
	g.CrossTalkRange = 0
	g.Limit = limit
	return g
}

// plainConfig is a 100x100 pipeline with every optional stage off.
func plainConfig() *Config {
	cfg := DefaultConfig()
	cfg.Accumulator.WithSize(100, 100)
	cfg.Denoiser = config.DenoiserNone
	cfg.PreBlur = config.BlurNone
	cfg.SymmetricSuppression = false
	cfg.MorphKernel = 3
	cfg.MorphIterations = 1
	cfg.Localizer.WithMinPixels(10)
	return cfg
}

func newPipeline(t *testing.T, cfg *Config) *Pipeline {
	t.Helper()
	p, err := New(cfg, imgproc.Pure{})
	require.NoError(t, err)
	return p
}

func TestProcessDetectsTarget(t *testing.T) {
	p := newPipeline(t, plainConfig())
	res, err := p.Process(sweepScanner(0).NextFrame())
	require.NoError(t, err)

	require.True(t, res.Ready)
	assert.Equal(t, 10.0, res.MaxRange)
	assert.Equal(t, 60, res.Band.Rows(), "1 m to 7 m of a 10 m raster")
	require.True(t, res.Detected)

	d := res.Detection
	assert.InDelta(t, 3.8, d.Range, 0.4)
	assert.Greater(t, d.Bearing, 0.0, "target is left of the axis")
	assert.Less(t, d.Bearing, 0.35)
	assert.Less(t, d.Point.X, 50, "left of the centre column")
	assert.Equal(t, 1, p.Detections())
	assert.Nil(t, res.Noise)
}

func TestProcessResultsAreIndependentCopies(t *testing.T) {
	p := newPipeline(t, plainConfig())
	g := sweepScanner(0)
	first, err := p.Process(g.NextFrame())
	require.NoError(t, err)
	snapshot := first.Raw.Clone()

	blank := g.NextFrame()
	clear(blank.Bins)
	_, err = p.Process(blank)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Pix, first.Raw.Pix)
}

func TestSparsenessDenoiserLagsOneFrame(t *testing.T) {
	cfg := plainConfig()
	cfg.Denoiser = config.DenoiserSparseness
	p := newPipeline(t, cfg)
	g := sweepScanner(0)

	for i := 0; i < 2; i++ {
		res, err := p.Process(g.NextFrame())
		require.NoError(t, err)
		assert.False(t, res.Ready, "frame %d", i)
		assert.NotNil(t, res.Raw)
		assert.Nil(t, res.Binary)
	}
	res, err := p.Process(g.NextFrame())
	require.NoError(t, err)
	require.True(t, res.Ready)
	assert.Equal(t, uint64(2), res.FrameIndex)
	assert.Equal(t, uint64(1), res.ShownIndex)
	assert.True(t, res.Detected, "a persistent target survives the filter")
}

func TestRLSDenoisersEmitEveryFrame(t *testing.T) {
	for _, name := range []string{config.DenoiserRLSInfinite, config.DenoiserRLSSliding, config.DenoiserRLSAdaptive} {
		t.Run(name, func(t *testing.T) {
			cfg := plainConfig()
			cfg.Denoiser = name
			p := newPipeline(t, cfg)

			st, err := p.Run(context.Background(), sweepScanner(4), nil)
			require.NoError(t, err)
			assert.Equal(t, 4, st.Frames)
			assert.Equal(t, 4, st.Emitted)
			assert.Equal(t, 4, st.Detections, "a static scene keeps its target")
			assert.InDelta(t, 0, st.RangeStdDev, 1e-9)
		})
	}
}

func TestFullChainRuns(t *testing.T) {
	cfg := plainConfig()
	cfg.Denoiser = config.DenoiserSparseness
	cfg.PreBlur = config.BlurMedian
	cfg.SymmetricSuppression = true
	p := newPipeline(t, cfg)

	g := sweepScanner(6)
	g.SpeckleProb = 0.01
	g.CrossTalkRange = 0.5
	var results []Result
	st, err := p.Run(context.Background(), g, SinkFunc(func(_ context.Context, r Result) error {
		results = append(results, r)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 6, st.Frames)
	assert.Equal(t, 4, st.Emitted)
	require.Len(t, results, 6)
	for _, r := range results[2:] {
		require.NotNil(t, r.Noise)
		assert.Equal(t, r.Denoised.Width, r.Noise.Width)
	}
}

func TestRunDropsBadFrames(t *testing.T) {
	var buf bytes.Buffer
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) { fmt.Fprintf(&buf, format+"\n", v...) })
	defer monitoring.SetLogger(prev)

	g := sweepScanner(0)
	good := g.NextFrame()
	frames := []l1frames.Frame{
		good,
		{Index: 7, BinCount: 0, BeamCount: 1, Bearings: []float64{0}, BinLength: 0.1},
		{Index: 8, BinCount: 2, BeamCount: 1, Bearings: []float64{0}, Bins: []float32{1}, BinLength: 0.1},
		good,
	}
	p := newPipeline(t, plainConfig())
	st, err := p.Run(context.Background(), l1frames.NewSliceSource(frames), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Frames)
	assert.Equal(t, 2, st.Dropped)
	assert.Equal(t, 2, st.Detections)
	assert.Contains(t, buf.String(), "[pipeline] dropping frame: frame 7")
	assert.Contains(t, buf.String(), "dimension mismatch")
}

func TestProcessRejectsDegenerateFrame(t *testing.T) {
	p := newPipeline(t, plainConfig())
	_, err := p.Process(l1frames.Frame{BinCount: 4, BeamCount: 0})
	assert.ErrorIs(t, err, l1frames.ErrDegenerateFrame)
	assert.Equal(t, 0, p.Accumulator().Frames(), "nothing painted")
	assert.Equal(t, 0, p.Processed())
}

func TestRunStopsOnCancelAndSinkError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newPipeline(t, plainConfig())
	_, err := p.Run(ctx, sweepScanner(0), nil)
	assert.ErrorIs(t, err, context.Canceled)

	boom := errors.New("disk full")
	p = newPipeline(t, plainConfig())
	st, err := p.Run(context.Background(), sweepScanner(0), SinkFunc(func(context.Context, Result) error { return boom }))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, st.Frames)
}

func TestMultiSink(t *testing.T) {
	var calls []string
	mk := func(name string, err error) Sink {
		return SinkFunc(func(context.Context, Result) error {
			calls = append(calls, name)
			return err
		})
	}
	boom := errors.New("boom")
	err := MultiSink(mk("a", nil), nil, mk("b", boom), mk("c", nil)).Consume(context.Background(), Result{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestRunChannels(t *testing.T) {
	cfgA := plainConfig()
	cfgB := plainConfig()
	cfgB.Denoiser = config.DenoiserSparseness

	stats, err := RunChannels(context.Background(), []Channel{
		{Name: "port", Config: cfgA, Ops: imgproc.Pure{}, Source: sweepScanner(3)},
		{Name: "starboard", Config: cfgB, Ops: imgproc.Pure{}, Source: sweepScanner(5)},
	})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 3, stats["port"].Frames)
	assert.Equal(t, 3, stats["port"].Emitted)
	assert.Equal(t, 5, stats["starboard"].Frames)
	assert.Equal(t, 3, stats["starboard"].Emitted)
}

func TestRunChannelsRejectsBadSetup(t *testing.T) {
	src := sweepScanner(1)
	tests := []struct {
		name     string
		channels []Channel
	}{
		{"empty name", []Channel{{Source: src}}},
		{"repeated name", []Channel{{Name: "a", Source: src}, {Name: "a", Source: src}}},
		{"no source", []Channel{{Name: "a"}}},
		{"bad config", []Channel{{Name: "a", Source: src, Config: &Config{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunChannels(context.Background(), tt.channels)
			assert.Error(t, err)
		})
	}
}

func TestRunChannelsCancelsOthersOnFailure(t *testing.T) {
	boom := errors.New("boom")
	stats, err := RunChannels(context.Background(), []Channel{
		{Name: "bad", Config: plainConfig(), Source: sweepScanner(0),
			Sink: SinkFunc(func(context.Context, Result) error { return boom })},
		{Name: "endless", Config: plainConfig(), Source: sweepScanner(0)},
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.Contains(err.Error(), "channel bad"), err.Error())
	assert.Len(t, stats, 2)
}

func TestStatsSummarise(t *testing.T) {
	var st Stats
	st.summarise([]float64{2, 4, 6})
	assert.InDelta(t, 4, st.RangeMean, 1e-12)
	assert.InDelta(t, 2, st.RangeStdDev, 1e-12)
	assert.Equal(t, 2.0, st.RangeMin)
	assert.Equal(t, 6.0, st.RangeMax)

	var one Stats
	one.summarise([]float64{3})
	assert.Equal(t, 3.0, one.RangeMean)
	assert.Zero(t, one.RangeStdDev)
	assert.False(t, math.IsNaN(one.RangeStdDev))
}

func TestConfigFromTuningMatchesDefaults(t *testing.T) {
	got, err := ConfigFromTuning(config.MustLoadDefaultConfig())
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("ConfigFromTuning mismatch (-want +got):\n%s", diff)
	}

	empty, err := ConfigFromTuning(nil)
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), empty, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("empty tuning mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFromTuningRejectsBadValues(t *testing.T) {
	tc := config.EmptyTuningConfig()
	policy := "spatial"
	tc.SparsenessPolicy = &policy
	_, err := ConfigFromTuning(tc)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown denoiser", func(c *Config) { c.Denoiser = "kalman" }},
		{"even blur size", func(c *Config) { c.PreBlurSize = 4 }},
		{"unknown blur", func(c *Config) { c.PreBlur = "bilateral" }},
		{"threshold one", func(c *Config) { c.Threshold = 1 }},
		{"negative kernel", func(c *Config) { c.MorphKernel = -1 }},
		{"bad roi", func(c *Config) { c.ROI.MaxRange = 0 }},
		{"bad sliding window", func(c *Config) {
			c.Denoiser = config.DenoiserRLSSliding
			c.RLS.Window = 0
		}},
		{"missing localizer", func(c *Config) { c.Localizer = nil }},
		{"bad geometry", func(c *Config) { c.Accumulator.WithSize(0, 10) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
			_, err := New(cfg, nil)
			assert.Error(t, err)
		})
	}

	cfg := DefaultConfig()
	cfg.PreBlur = config.BlurNone
	cfg.PreBlurSize = 0
	assert.NoError(t, cfg.Validate(), "size is ignored without a blur")
}

func TestSetLogWriters(t *testing.T) {
	var ops, trace bytes.Buffer
	SetLogWriters(&ops, nil, &trace)
	defer SetLogWriters(nil, nil, nil)

	cfg := plainConfig()
	cfg.Denoiser = config.DenoiserSparseness
	p := newPipeline(t, cfg)
	_, err := p.Process(sweepScanner(0).NextFrame())
	require.NoError(t, err)
	_, err = p.Process(l1frames.Frame{})
	require.Error(t, err)

	assert.Contains(t, trace.String(), "[pipeline] ")
	assert.Contains(t, trace.String(), "sparseness filling")
	assert.Empty(t, ops.String(), "Process itself does not log failures")
}
