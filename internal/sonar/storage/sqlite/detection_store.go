package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Detection is one localized target as stored.
type Detection struct {
	DetectionID string  `json:"detection_id"`
	RunID       string  `json:"run_id"`
	FrameIndex  uint64  `json:"frame_index"`
	FrameTime   int64   `json:"frame_time"` // unix nanoseconds
	BoxMinX     int     `json:"box_min_x"`
	BoxMinY     int     `json:"box_min_y"`
	BoxMaxX     int     `json:"box_max_x"`
	BoxMaxY     int     `json:"box_max_y"`
	PixelX      int     `json:"pixel_x"`
	PixelY      int     `json:"pixel_y"`
	WorldX      float64 `json:"world_x"`
	WorldY      float64 `json:"world_y"`
	Range       float64 `json:"range_m"`
	Bearing     float64 `json:"bearing_rad"`
	BlobSize    int     `json:"blob_size"`
	BlobArea    int     `json:"blob_area"`
	CreatedAt   int64   `json:"created_at"`
}

// DetectionStore persists detections against a run.
type DetectionStore struct {
	db *sql.DB
}

// NewDetectionStore creates a new DetectionStore.
func NewDetectionStore(db *sql.DB) *DetectionStore {
	return &DetectionStore{db: db}
}

// Insert persists d. If DetectionID is empty, a UUID is generated.
func (s *DetectionStore) Insert(d *Detection) error {
	if d.RunID == "" {
		return fmt.Errorf("detection needs a run id")
	}
	if d.DetectionID == "" {
		d.DetectionID = uuid.New().String()
	}
	if d.CreatedAt == 0 {
		d.CreatedAt = time.Now().UnixNano()
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO sonar_detections (
				detection_id, run_id, frame_index, frame_time,
				box_min_x, box_min_y, box_max_x, box_max_y,
				pixel_x, pixel_y, world_x, world_y, range_m, bearing_rad,
				blob_size, blob_area, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.DetectionID, d.RunID, int64(d.FrameIndex), d.FrameTime,
			d.BoxMinX, d.BoxMinY, d.BoxMaxX, d.BoxMaxY,
			d.PixelX, d.PixelY, d.WorldX, d.WorldY, d.Range, d.Bearing,
			d.BlobSize, d.BlobArea, d.CreatedAt,
		)
		return err
	})
}

// ListByRun returns the detections of a run in frame order.
func (s *DetectionStore) ListByRun(runID string) ([]*Detection, error) {
	rows, err := s.db.Query(`
		SELECT detection_id, run_id, frame_index, frame_time,
		       box_min_x, box_min_y, box_max_x, box_max_y,
		       pixel_x, pixel_y, world_x, world_y, range_m, bearing_rad,
		       blob_size, blob_area, created_at
		FROM sonar_detections
		WHERE run_id = ?
		ORDER BY frame_index ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var out []*Detection
	for rows.Next() {
		var d Detection
		var idx int64
		if err := rows.Scan(
			&d.DetectionID, &d.RunID, &idx, &d.FrameTime,
			&d.BoxMinX, &d.BoxMinY, &d.BoxMaxX, &d.BoxMaxY,
			&d.PixelX, &d.PixelY, &d.WorldX, &d.WorldY, &d.Range, &d.Bearing,
			&d.BlobSize, &d.BlobArea, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		d.FrameIndex = uint64(idx)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// CountByRun returns how many detections a run stored.
func (s *DetectionStore) CountByRun(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sonar_detections WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count detections: %w", err)
	}
	return n, nil
}
