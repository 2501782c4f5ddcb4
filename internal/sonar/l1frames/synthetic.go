package l1frames

import (
	"context"
	"io"
	"math"
	"math/rand"
	"sync/atomic"
	"time"
)

// SyntheticScanner generates frames for a mechanically scanned sonar head
// sweeping back and forth across a sector. The scene holds one target, a
// speckle field, and a range band of cross-talk that is identical on every
// bearing. It is used by tests and the replay tool.
type SyntheticScanner struct {
	frameIndex atomic.Uint64
	start      time.Time

	// Configuration
	BinCount        int     // range samples per beam
	BinLength       float64 // metres per bin
	BeamsPerFrame   int     // 1 for a scanning head; >1 spans the whole sector per frame
	SectorMin       float64 // radians
	SectorMax       float64 // radians
	StepAngle       float64 // radians between successive scanning beams
	FrameInterval   time.Duration
	TargetRange     float64 // metres
	TargetBearing   float64 // radians
	TargetHalfWidth float64 // radians either side of TargetBearing
	TargetDepth     float64 // metres of range covered by the target return
	TargetIntensity float32
	SpeckleProb     float64 // per-bin probability of an isolated speckle
	CrossTalkRange  float64 // metres; 0 disables cross-talk
	CrossTalkLevel  float32
	Limit           int // frames to emit before io.EOF; 0 means unbounded

	bearing   float64
	direction float64
	rng       *rand.Rand
}

// NewSyntheticScanner creates a scanner with a 20 m range, ±45° sector and
// a target 4 m out, slightly left of the axis. seed makes runs repeatable.
func NewSyntheticScanner(seed int64) *SyntheticScanner {
	g := &SyntheticScanner{
		start:           time.Unix(0, 0).UTC(),
		BinCount:        200,
		BinLength:       0.1,
		BeamsPerFrame:   1,
		SectorMin:       -math.Pi / 4,
		SectorMax:       math.Pi / 4,
		StepAngle:       1.8 * math.Pi / 180,
		FrameInterval:   100 * time.Millisecond,
		TargetRange:     4,
		TargetBearing:   10 * math.Pi / 180,
		TargetHalfWidth: 6 * math.Pi / 180,
		TargetDepth:     0.6,
		TargetIntensity: 0.9,
		SpeckleProb:     0.01,
		CrossTalkRange:  0.5,
		CrossTalkLevel:  0.6,
		direction:       1,
		rng:             rand.New(rand.NewSource(seed)),
	}
	g.bearing = g.SectorMin
	return g
}

// NextFrame generates the next synthetic frame.
func (g *SyntheticScanner) NextFrame() Frame {
	idx := g.frameIndex.Add(1) - 1

	beams := g.BeamsPerFrame
	if beams < 1 {
		beams = 1
	}
	bearings := make([]float64, beams)
	if beams == 1 {
		bearings[0] = g.bearing
		g.advance()
	} else {
		step := (g.SectorMax - g.SectorMin) / float64(beams-1)
		for b := range bearings {
			bearings[b] = g.SectorMin + float64(b)*step
		}
	}

	bins := make([]float32, beams*g.BinCount)
	for b, bearing := range bearings {
		g.fillBeam(bins[b*g.BinCount:(b+1)*g.BinCount], bearing)
	}

	beamWidth := g.StepAngle
	if beams > 1 {
		beamWidth = 0
	}
	return Frame{
		Index:     idx,
		Time:      g.start.Add(time.Duration(idx) * g.FrameInterval),
		BinCount:  g.BinCount,
		BeamCount: beams,
		Bearings:  bearings,
		Bins:      bins,
		BinLength: g.BinLength,
		BeamWidth: beamWidth,
	}
}

// Next implements Source.
func (g *SyntheticScanner) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if g.Limit > 0 && g.frameIndex.Load() >= uint64(g.Limit) {
		return Frame{}, io.EOF
	}
	return g.NextFrame(), nil
}

// advance moves the head one step, reversing at the sector limits.
func (g *SyntheticScanner) advance() {
	next := g.bearing + g.direction*g.StepAngle
	if next > g.SectorMax || next < g.SectorMin {
		g.direction = -g.direction
		next = g.bearing + g.direction*g.StepAngle
	}
	g.bearing = next
}

func (g *SyntheticScanner) fillBeam(beam []float32, bearing float64) {
	if g.CrossTalkRange > 0 {
		if i := int(g.CrossTalkRange / g.BinLength); i < len(beam) {
			beam[i] = g.CrossTalkLevel
		}
	}

	if math.Abs(bearing-g.TargetBearing) <= g.TargetHalfWidth {
		first := int(g.TargetRange / g.BinLength)
		last := int((g.TargetRange + g.TargetDepth) / g.BinLength)
		for i := first; i <= last && i < len(beam); i++ {
			if i >= 0 {
				beam[i] = g.TargetIntensity
			}
		}
	}

	for i := range beam {
		if g.rng.Float64() < g.SpeckleProb {
			beam[i] = float32(0.5 + 0.5*g.rng.Float64())
		}
	}
}
