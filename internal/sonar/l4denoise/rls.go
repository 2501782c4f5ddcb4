package l4denoise

import (
	"fmt"
	"math"

	"github.com/banshee-data/sonar.report/internal/sonar/l1frames"
	"github.com/banshee-data/sonar.report/internal/sonar/l3raster"
)

// WindowMode selects how an RLS filter forgets old samples.
type WindowMode int

const (
	// InfiniteWindow weights every past sample equally (forgetting factor 1).
	InfiniteWindow WindowMode = iota
	// SlidingWindow averages exactly the last N samples.
	SlidingWindow
	// AdaptiveWindow lowers the forgetting factor where the signal is volatile.
	AdaptiveWindow
)

func (m WindowMode) String() string {
	switch m {
	case InfiniteWindow:
		return "infinite"
	case SlidingWindow:
		return "sliding"
	case AdaptiveWindow:
		return "adaptive"
	}
	return fmt.Sprintf("WindowMode(%d)", int(m))
}

// ParseWindowMode accepts "infinite", "sliding" or "adaptive".
func ParseWindowMode(s string) (WindowMode, error) {
	switch s {
	case "infinite":
		return InfiniteWindow, nil
	case "sliding":
		return SlidingWindow, nil
	case "adaptive":
		return AdaptiveWindow, nil
	}
	return 0, fmt.Errorf("unknown RLS window mode %q", s)
}

// RLSConfig provides a configuration builder for RLS.
type RLSConfig struct {
	Mode            WindowMode
	Window          int     // samples kept in sliding mode (default: 4)
	LambdaMin       float64 // forgetting factor under high volatility (default: 0.5)
	LambdaMax       float64 // forgetting factor in calm regions (default: 0.98)
	VolatilityAlpha float64 // smoothing of the volatility estimate (default: 0.1)
	VolatilityRef   float64 // volatility at which LambdaMin is reached (default: 0.1)
}

// DefaultRLSConfig returns an infinite-window configuration with the
// adaptive and sliding parameters at their defaults.
func DefaultRLSConfig() *RLSConfig {
	return &RLSConfig{
		Mode:            InfiniteWindow,
		Window:          4,
		LambdaMin:       0.5,
		LambdaMax:       0.98,
		VolatilityAlpha: 0.1,
		VolatilityRef:   0.1,
	}
}

// WithMode sets the window mode.
func (c *RLSConfig) WithMode(m WindowMode) *RLSConfig {
	c.Mode = m
	return c
}

// WithWindow sets the sliding window length.
func (c *RLSConfig) WithWindow(n int) *RLSConfig {
	c.Window = n
	return c
}

// WithLambdas sets the adaptive forgetting factor bounds.
func (c *RLSConfig) WithLambdas(lo, hi float64) *RLSConfig {
	c.LambdaMin, c.LambdaMax = lo, hi
	return c
}

// Validate checks if the configuration is valid.
func (c *RLSConfig) Validate() error {
	switch c.Mode {
	case InfiniteWindow, SlidingWindow, AdaptiveWindow:
	default:
		return fmt.Errorf("unknown window mode %d", int(c.Mode))
	}
	if c.Mode == SlidingWindow && c.Window < 1 {
		return fmt.Errorf("Window must be at least 1, got %d", c.Window)
	}
	if c.Mode == AdaptiveWindow {
		if c.LambdaMin <= 0 || c.LambdaMax > 1 || c.LambdaMin > c.LambdaMax {
			return fmt.Errorf("lambdas must satisfy 0 < LambdaMin <= LambdaMax <= 1, got %f, %f", c.LambdaMin, c.LambdaMax)
		}
		if c.VolatilityAlpha <= 0 || c.VolatilityAlpha > 1 {
			return fmt.Errorf("VolatilityAlpha must be in (0, 1], got %f", c.VolatilityAlpha)
		}
		if c.VolatilityRef <= 0 {
			return fmt.Errorf("VolatilityRef must be positive, got %f", c.VolatilityRef)
		}
	}
	return nil
}

// RLS is a bank of independent scalar recursive least-squares estimators,
// one per vector position. Each estimator tracks a constant-level model:
// with gain k = P/(λ+P) the estimate moves by k times the innovation and P
// shrinks to P/(λ+P). λ = 1 gives the running mean; λ < 1 settles at a gain
// of 1-λ, an effective window of 1/(1-λ) samples.
//
// State is sized lazily from the first vector and persists across calls.
type RLS struct {
	cfg RLSConfig
	n   int

	est     []float64
	p       []float64 // infinite and adaptive
	vol     []float64 // adaptive
	lambda  []float64 // adaptive, last forgetting factor used
	ring    []float64 // sliding, Window rows of n samples
	sum     []float64 // sliding
	head    int
	updates int
}

// NewRLS creates a filter. State is allocated on the first Filter call.
func NewRLS(cfg *RLSConfig) (*RLS, error) {
	if cfg == nil {
		cfg = DefaultRLSConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rls: %w", err)
	}
	return &RLS{cfg: *cfg}, nil
}

func (f *RLS) init(n int) {
	f.n = n
	f.est = make([]float64, n)
	switch f.cfg.Mode {
	case InfiniteWindow:
		f.p = make([]float64, n)
	case AdaptiveWindow:
		f.p = make([]float64, n)
		f.vol = make([]float64, n)
		f.lambda = make([]float64, n)
	case SlidingWindow:
		f.ring = make([]float64, n*f.cfg.Window)
		f.sum = make([]float64, n)
	}
}

// Filter smooths the frame's bin vector.
func (f *RLS) Filter(frame l1frames.Frame) ([]float32, error) {
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("rls filter: %w", err)
	}
	return f.FilterVector(frame.Bins)
}

// FilterRaster smooths every pixel of r and returns a new raster.
func (f *RLS) FilterRaster(r *l3raster.Raster) (*l3raster.Raster, error) {
	out, err := f.FilterVector(r.Pix)
	if err != nil {
		return nil, err
	}
	return &l3raster.Raster{Width: r.Width, Height: r.Height, Pix: out}, nil
}

// FilterVector folds x into the per-position estimates and returns them.
// A vector whose length differs from the first one is rejected with
// l1frames.ErrDimensionMismatch and leaves the state untouched.
func (f *RLS) FilterVector(x []float32) ([]float32, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("rls filter: %w: empty vector", l1frames.ErrDegenerateFrame)
	}
	if f.n == 0 {
		f.init(len(x))
	} else if len(x) != f.n {
		return nil, fmt.Errorf("rls filter: %w: got %d values, want %d", l1frames.ErrDimensionMismatch, len(x), f.n)
	}

	switch f.cfg.Mode {
	case InfiniteWindow:
		f.stepForgetting(x, func(int, float64) float64 { return 1 })
	case AdaptiveWindow:
		f.stepForgetting(x, f.adaptiveLambda)
	case SlidingWindow:
		f.stepSliding(x)
	}
	f.updates++

	out := make([]float32, f.n)
	for i, v := range f.est {
		out[i] = float32(v)
	}
	return out, nil
}

// sample returns x[i] as float64, substituting the current estimate for
// non-finite input so one bad sample cannot poison the state.
func (f *RLS) sample(x []float32, i int) float64 {
	v := float64(x[i])
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return f.est[i]
	}
	return v
}

func (f *RLS) stepForgetting(x []float32, lambdaFor func(i int, v float64) float64) {
	for i := range x {
		v := f.sample(x, i)
		if f.updates == 0 {
			f.est[i] = v
			f.p[i] = 1
			if f.lambda != nil {
				f.lambda[i] = f.cfg.LambdaMax
			}
			continue
		}
		lambda := lambdaFor(i, v)
		k := f.p[i] / (lambda + f.p[i])
		f.est[i] += k * (v - f.est[i])
		f.p[i] /= lambda + f.p[i]
	}
}

// adaptiveLambda updates the volatility of position i with the innovation
// of v and maps it linearly onto [LambdaMin, LambdaMax].
func (f *RLS) adaptiveLambda(i int, v float64) float64 {
	a := f.cfg.VolatilityAlpha
	f.vol[i] = (1-a)*f.vol[i] + a*math.Abs(v-f.est[i])
	ratio := math.Min(1, f.vol[i]/f.cfg.VolatilityRef)
	lambda := f.cfg.LambdaMax - (f.cfg.LambdaMax-f.cfg.LambdaMin)*ratio
	f.lambda[i] = lambda
	return lambda
}

func (f *RLS) stepSliding(x []float32) {
	w := f.cfg.Window
	row := f.ring[f.head*f.n : (f.head+1)*f.n]
	full := f.updates >= w
	for i := range x {
		v := f.sample(x, i)
		if full {
			f.sum[i] -= row[i]
		}
		row[i] = v
		f.sum[i] += v
	}
	f.head = (f.head + 1) % w

	count := f.updates + 1
	if count > w {
		count = w
	}
	// Re-sum once per revolution so subtraction error cannot accumulate.
	if f.head == 0 {
		for i := range f.sum {
			s := 0.0
			for r := 0; r < w; r++ {
				s += f.ring[r*f.n+i]
			}
			f.sum[i] = s
		}
	}
	for i := range f.est {
		f.est[i] = f.sum[i] / float64(count)
	}
}

// Estimate returns a copy of the current estimates, or nil before the
// first update.
func (f *RLS) Estimate() []float32 {
	if f.n == 0 {
		return nil
	}
	out := make([]float32, f.n)
	for i, v := range f.est {
		out[i] = float32(v)
	}
	return out
}

// EffectiveWindow is the number of samples currently shaping position i.
func (f *RLS) EffectiveWindow(i int) float64 {
	switch f.cfg.Mode {
	case SlidingWindow:
		return math.Min(float64(f.updates), float64(f.cfg.Window))
	case AdaptiveWindow:
		if f.lambda == nil || f.lambda[i] >= 1 {
			return float64(f.updates)
		}
		return math.Min(float64(f.updates), 1/(1-f.lambda[i]))
	}
	return float64(f.updates)
}

// Len is the vector length fixed by the first update, 0 before it.
func (f *RLS) Len() int { return f.n }

// Updates is the number of accepted vectors.
func (f *RLS) Updates() int { return f.updates }

// Mode returns the configured window mode.
func (f *RLS) Mode() WindowMode { return f.cfg.Mode }
