package navdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npresearchlab/navcity-analysis/internal/aggregate"
	"github.com/npresearchlab/navcity-analysis/internal/metrics"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "analysis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.db")
	db, err := Open(path)
	require.NoError(t, err)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	db.Close()

	// Reopening an already migrated database is a no-op.
	db, err = Open(path)
	require.NoError(t, err)
	db.Close()
}

func TestRunStoreLifecycle(t *testing.T) {
	db := openTestDB(t)
	store := NewRunStore(db)

	run := &Run{
		DataFolder:   "/data/YA_Data",
		OutputFolder: "/data/YA_Data",
		Steps:        "metrics,merge,average",
		Participants: 12,
	}
	require.NoError(t, store.Begin(run))
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.StartedAt)
	assert.Equal(t, StatusRunning, run.Status)

	got, err := store.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run, got)

	run.FilesCreated = 36
	run.Warnings = 2
	require.NoError(t, store.Complete(run))
	assert.Equal(t, StatusCompleted, run.Status)
	assert.NotZero(t, run.CompletedAt)

	got, err = store.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestRunStore_CompleteWithErrors(t *testing.T) {
	db := openTestDB(t)
	store := NewRunStore(db)

	run := &Run{DataFolder: "/data", OutputFolder: "/data", Steps: "metrics"}
	require.NoError(t, store.Begin(run))
	run.Errors = 3
	require.NoError(t, store.Complete(run))
	assert.Equal(t, StatusFailed, run.Status)
}

func TestRunStore_GetMissing(t *testing.T) {
	db := openTestDB(t)
	store := NewRunStore(db)

	_, err := store.Get("no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunStore_CompleteMissing(t *testing.T) {
	db := openTestDB(t)
	store := NewRunStore(db)

	err := store.Complete(&Run{RunID: "no-such-run", CompletedAt: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunStore_List(t *testing.T) {
	db := openTestDB(t)
	store := NewRunStore(db)

	older := &Run{DataFolder: "/a", OutputFolder: "/a", Steps: "metrics", StartedAt: 100}
	newer := &Run{DataFolder: "/b", OutputFolder: "/b", Steps: "metrics", StartedAt: 200}
	for _, r := range []*Run{older, newer} {
		require.NoError(t, store.Begin(r))
	}

	runs, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.RunID, runs[0].RunID, "newest run should list first")

	runs, err = store.List(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func testRun(t *testing.T, db *DB) *Run {
	t.Helper()
	run := &Run{DataFolder: "/data", OutputFolder: "/data", Steps: "metrics,merge"}
	require.NoError(t, NewRunStore(db).Begin(run))
	return run
}

func blockRow(pid string, block int, target string) aggregate.Row {
	rec := metrics.MetricRecord{Target: target}
	for _, col := range metrics.Columns {
		rec.SetValue(col, metrics.Num(float64(block)+0.5))
	}
	return aggregate.Row{Participant: pid, Block: block, MetricRecord: rec}
}

func TestMetricsStore_BlockRoundTrip(t *testing.T) {
	db := openTestDB(t)
	run := testRun(t, db)
	store := NewMetricsStore(db)

	rows := []aggregate.Row{
		blockRow("BNC01", 1, "Bank"),
		blockRow("BNC01", 1, "Pizzeria"),
		blockRow("NAV02", 2, "High School"),
	}
	// A null cell survives the round trip as a null.
	rows[1].SetValue("Speed", metrics.Value{})

	require.NoError(t, store.InsertBlockMetrics(run.RunID, rows))
	got, err := store.BlockMetrics(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestMetricsStore_AveragedRoundTrip(t *testing.T) {
	db := openTestDB(t)
	run := testRun(t, db)
	store := NewMetricsStore(db)

	row := aggregate.AveragedRow{Participant: "BNC01", Block: 1, Means: make(map[string]metrics.Value)}
	for _, col := range metrics.Columns {
		row.Means[col] = metrics.Num(4.25)
	}
	row.Means["Mean_Teleport_Distance"] = metrics.Value{}

	require.NoError(t, store.InsertAveragedMetrics(run.RunID, []aggregate.AveragedRow{row}))
	got, err := store.AveragedMetrics(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, []aggregate.AveragedRow{row}, got)
}

func TestMetricsStore_UnknownRunIsEmpty(t *testing.T) {
	db := openTestDB(t)
	store := NewMetricsStore(db)

	rows, err := store.BlockMetrics("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
