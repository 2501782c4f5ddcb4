package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one replay of a sensor channel through the pipeline.
type Run struct {
	RunID      string          `json:"run_id"`
	SensorID   string          `json:"sensor_id"`
	ConfigJSON json.RawMessage `json:"config_json,omitempty"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt int64           `json:"finished_at,omitempty"` // 0 while running
	RunSummary
}

// RunSummary is written once a run completes.
type RunSummary struct {
	Frames      int     `json:"frames"`
	Dropped     int     `json:"dropped"`
	Emitted     int     `json:"emitted"`
	Detections  int     `json:"detections"`
	RangeMean   float64 `json:"range_mean"`
	RangeStdDev float64 `json:"range_stddev"`
	RangeMin    float64 `json:"range_min"`
	RangeMax    float64 `json:"range_max"`
}

// RunStore persists pipeline runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Begin records the start of a run for sensorID.
func (s *RunStore) Begin(sensorID string, configJSON json.RawMessage) (*Run, error) {
	if sensorID == "" {
		return nil, fmt.Errorf("sensor id is required")
	}
	run := &Run{
		RunID:      uuid.New().String(),
		SensorID:   sensorID,
		ConfigJSON: configJSON,
		StartedAt:  time.Now().UnixNano(),
	}
	var cfg interface{}
	if len(configJSON) > 0 {
		cfg = string(configJSON)
	}
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO sonar_runs (run_id, sensor_id, config_json, started_at)
			VALUES (?, ?, ?, ?)`,
			run.RunID, run.SensorID, cfg, run.StartedAt,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Finish stores the summary of a completed run.
func (s *RunStore) Finish(runID string, sum RunSummary) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`
			UPDATE sonar_runs SET
				finished_at = ?, frames = ?, dropped = ?, emitted = ?, detections = ?,
				range_mean = ?, range_stddev = ?, range_min = ?, range_max = ?
			WHERE run_id = ?`,
			time.Now().UnixNano(), sum.Frames, sum.Dropped, sum.Emitted, sum.Detections,
			sum.RangeMean, sum.RangeStdDev, sum.RangeMin, sum.RangeMax,
			runID,
		)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}

const runColumns = `run_id, sensor_id, config_json, started_at, finished_at,
	frames, dropped, emitted, detections,
	range_mean, range_stddev, range_min, range_max`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var cfg sql.NullString
	var finished sql.NullInt64
	var mean, sd, lo, hi sql.NullFloat64
	if err := row.Scan(
		&r.RunID, &r.SensorID, &cfg, &r.StartedAt, &finished,
		&r.Frames, &r.Dropped, &r.Emitted, &r.Detections,
		&mean, &sd, &lo, &hi,
	); err != nil {
		return nil, err
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	r.FinishedAt = finished.Int64
	r.RangeMean, r.RangeStdDev = mean.Float64, sd.Float64
	r.RangeMin, r.RangeMax = lo.Float64, hi.Float64
	return &r, nil
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM sonar_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListBySensor returns the runs of one sensor, newest first.
func (s *RunStore) ListBySensor(sensorID string) ([]*Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM sonar_runs
		WHERE sensor_id = ?
		ORDER BY started_at DESC, rowid DESC`, sensorID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes a run together with its detections.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM sonar_runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}
