package main

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/banshee-data/sonar.report/internal/sonar/pipeline"
	"github.com/banshee-data/sonar.report/internal/sonar/storage/sqlite"
)

// runRecorder stores one channel's run and its detections.
type runRecorder struct {
	runs       *sqlite.RunStore
	detections *sqlite.DetectionStore
	run        *sqlite.Run
}

func newRunRecorder(db *sql.DB, sensorID string, cfgJSON json.RawMessage) (*runRecorder, error) {
	r := &runRecorder{
		runs:       sqlite.NewRunStore(db),
		detections: sqlite.NewDetectionStore(db),
	}
	run, err := r.runs.Begin(sensorID, cfgJSON)
	if err != nil {
		return nil, err
	}
	r.run = run
	return r, nil
}

// Consume implements pipeline.Sink.
func (r *runRecorder) Consume(_ context.Context, res pipeline.Result) error {
	if !res.Detected {
		return nil
	}
	return r.detections.Insert(detectionRow(r.run.RunID, res))
}

func (r *runRecorder) finish(st pipeline.Stats) error {
	return r.runs.Finish(r.run.RunID, summaryOf(st))
}

func detectionRow(runID string, res pipeline.Result) *sqlite.Detection {
	d := res.Detection
	row := &sqlite.Detection{
		RunID:      runID,
		FrameIndex: res.ShownIndex,
		BoxMinX:    d.Box.Min.X,
		BoxMinY:    d.Box.Min.Y,
		BoxMaxX:    d.Box.Max.X,
		BoxMaxY:    d.Box.Max.Y,
		PixelX:     d.Point.X,
		PixelY:     d.Point.Y,
		WorldX:     d.World.X,
		WorldY:     d.World.Y,
		Range:      d.Range,
		Bearing:    d.Bearing,
		BlobSize:   d.BlobSize,
		BlobArea:   d.BlobArea,
	}
	if !res.Time.IsZero() {
		row.FrameTime = res.Time.UnixNano()
	}
	return row
}

func summaryOf(st pipeline.Stats) sqlite.RunSummary {
	return sqlite.RunSummary{
		Frames:      st.Frames,
		Dropped:     st.Dropped,
		Emitted:     st.Emitted,
		Detections:  st.Detections,
		RangeMean:   st.RangeMean,
		RangeStdDev: st.RangeStdDev,
		RangeMin:    st.RangeMin,
		RangeMax:    st.RangeMax,
	}
}
