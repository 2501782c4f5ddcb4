package monitor

import (
	"context"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sonar.report/internal/sonar/l5detect"
	"github.com/banshee-data/sonar.report/internal/sonar/pipeline"
)

// DetectionLog collects detections per channel for the HTML report. It is
// safe for concurrent use by several channels.
type DetectionLog struct {
	mu        sync.Mutex
	byChannel map[string][]l5detect.Detection
}

// NewDetectionLog creates an empty log.
func NewDetectionLog() *DetectionLog {
	return &DetectionLog{byChannel: make(map[string][]l5detect.Detection)}
}

// Add records d against channel.
func (l *DetectionLog) Add(channel string, d l5detect.Detection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byChannel[channel] = append(l.byChannel[channel], d)
}

// Sink returns a pipeline.Sink that records the detections of one channel.
func (l *DetectionLog) Sink(channel string) pipeline.Sink {
	return pipeline.SinkFunc(func(_ context.Context, res pipeline.Result) error {
		if res.Detected {
			l.Add(channel, res.Detection)
		}
		return nil
	})
}

// Len is the total number of detections across channels.
func (l *DetectionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, d := range l.byChannel {
		n += len(d)
	}
	return n
}

// Render writes the report for everything collected so far.
func (l *DetectionLog) Render(w io.Writer, title string) error {
	l.mu.Lock()
	series := make(map[string][]l5detect.Detection, len(l.byChannel))
	for k, v := range l.byChannel {
		series[k] = slices.Clone(v)
	}
	l.mu.Unlock()
	return RenderDetectionReport(w, title, series)
}

// RenderDetectionReport writes an HTML scatter of world-frame detections,
// one series per channel. The horizontal axis is lateral offset with
// starboard positive, the vertical axis is forward distance.
func RenderDetectionReport(w io.Writer, title string, series map[string][]l5detect.Detection) error {
	names := make([]string, 0, len(series))
	pad := 1.0
	total := 0
	for name, ds := range series {
		names = append(names, name)
		for _, d := range ds {
			pad = max(pad, math.Abs(d.World.X), math.Abs(d.World.Y))
		}
		total += len(ds)
	}
	slices.Sort(names)
	pad = math.Ceil(pad)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("channels=%d detections=%d", len(names), total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "Lateral (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: pad, Name: "Forward (m)", NameLocation: "middle", NameGap: 30}),
	)
	for _, name := range names {
		pts := make([]opts.ScatterData, 0, len(series[name]))
		for _, d := range series[name] {
			// World Y points left; flip so starboard plots right.
			pts = append(pts, opts.ScatterData{Value: []interface{}{-d.World.Y, d.World.X, d.Range}})
		}
		scatter.AddSeries(name, pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}
	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render detection report: %w", err)
	}
	return nil
}
