package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sonar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// A second run has nothing to do.
	require.NoError(t, Migrate(db))

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrateDown(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, MigrateDown(db))

	version, _, err := SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	_, err = db.Exec(`SELECT 1 FROM sonar_runs`)
	assert.Error(t, err)

	require.NoError(t, Migrate(db))
	_, err = db.Exec(`SELECT 1 FROM sonar_runs`)
	assert.NoError(t, err)
}

func TestRunStoreLifecycle(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db)

	cfg := json.RawMessage(`{"denoiser":"sparseness"}`)
	run, err := store.Begin("port", cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.StartedAt)

	got, err := store.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "port", got.SensorID)
	assert.JSONEq(t, string(cfg), string(got.ConfigJSON))
	assert.Zero(t, got.FinishedAt)
	assert.Zero(t, got.Frames)

	sum := RunSummary{Frames: 10, Dropped: 1, Emitted: 9, Detections: 7,
		RangeMean: 3.5, RangeStdDev: 0.25, RangeMin: 3.1, RangeMax: 3.9}
	require.NoError(t, store.Finish(run.RunID, sum))

	got, err = store.Get(run.RunID)
	require.NoError(t, err)
	assert.NotZero(t, got.FinishedAt)
	assert.Equal(t, sum, got.RunSummary)
}

func TestRunStoreErrors(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db)

	_, err := store.Begin("", nil)
	assert.Error(t, err)

	_, err = store.Get("missing")
	assert.ErrorContains(t, err, "not found")
	assert.ErrorContains(t, store.Finish("missing", RunSummary{}), "not found")
	assert.ErrorContains(t, store.Delete("missing"), "not found")
}

func TestRunStoreListBySensor(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db)

	first, err := store.Begin("port", nil)
	require.NoError(t, err)
	second, err := store.Begin("port", nil)
	require.NoError(t, err)
	_, err = store.Begin("starboard", nil)
	require.NoError(t, err)

	runs, err := store.ListBySensor("port")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].RunID)
	assert.Equal(t, first.RunID, runs[1].RunID)
	assert.Nil(t, runs[0].ConfigJSON)

	runs, err = store.ListBySensor("bow")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestDetectionStore(t *testing.T) {
	db := setupTestDB(t)
	runs := NewRunStore(db)
	store := NewDetectionStore(db)

	run, err := runs.Begin("port", nil)
	require.NoError(t, err)

	for _, idx := range []uint64{7, 3, 5} {
		d := &Detection{
			RunID: run.RunID, FrameIndex: idx, FrameTime: int64(idx) * 1e9,
			BoxMinX: 10, BoxMinY: 20, BoxMaxX: 30, BoxMaxY: 40,
			PixelX: 30, PixelY: 40, WorldX: 2.3, WorldY: 0.2,
			Range: 2.31, Bearing: 0.087, BlobSize: 76, BlobArea: 400,
		}
		require.NoError(t, store.Insert(d))
		assert.NotEmpty(t, d.DetectionID)
		assert.NotZero(t, d.CreatedAt)
	}

	n, err := store.CountByRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := store.ListByRun(run.RunID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint64{3, 5, 7}, []uint64{list[0].FrameIndex, list[1].FrameIndex, list[2].FrameIndex})
	assert.Equal(t, int64(3e9), list[0].FrameTime)
	assert.InDelta(t, 2.31, list[0].Range, 1e-12)
	assert.Equal(t, 76, list[0].BlobSize)
}

func TestDetectionStoreRequiresRun(t *testing.T) {
	db := setupTestDB(t)
	store := NewDetectionStore(db)

	assert.Error(t, store.Insert(&Detection{}))
	// Foreign key: the run must exist.
	assert.Error(t, store.Insert(&Detection{RunID: "missing"}))
}

func TestDeleteRunCascades(t *testing.T) {
	db := setupTestDB(t)
	runs := NewRunStore(db)
	store := NewDetectionStore(db)

	run, err := runs.Begin("port", nil)
	require.NoError(t, err)
	require.NoError(t, store.Insert(&Detection{RunID: run.RunID, FrameIndex: 1}))
	require.NoError(t, runs.Delete(run.RunID))

	n, err := store.CountByRun(run.RunID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"locked", errors.New("database is locked"), true},
		{"busy code", errors.New("exec: SQLITE_BUSY (5)"), true},
		{"other", errors.New("no such table: sonar_runs"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isSQLiteBusy(tt.err))
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	busy := errors.New("database is locked")
	other := errors.New("constraint failed")

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"first try", []error{nil}, 1, nil},
		{"recovers", []error{busy, busy, nil}, 3, nil},
		{"other error returned at once", []error{other}, 1, other},
		{"gives up", []error{busy, busy, busy, busy, busy, busy}, 5, busy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryOnBusy(func() error {
				e := tt.errs[calls]
				calls++
				return e
			})
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}
