package aggregate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/npresearchlab/navcity-analysis/internal/config"
	"github.com/npresearchlab/navcity-analysis/internal/metrics"
	"github.com/npresearchlab/navcity-analysis/internal/monitoring"
	"github.com/npresearchlab/navcity-analysis/internal/testutil"
)

func testRecord(target string, total float64) metrics.MetricRecord {
	return metrics.MetricRecord{
		Target:               target,
		TotalTime:            metrics.Num(total),
		OrientationTime:      metrics.Num(1),
		NavigationTime:       metrics.Num(total - 1),
		Distance:             metrics.Num(10),
		Speed:                metrics.Num(10 / (total - 1)),
		MeanDwell:            metrics.Num(total / 2),
		Teleportations:       metrics.Num(2),
		MeanTeleportDistance: metrics.Num(10),
	}
}

func writeBlockFixture(t *testing.T, outputDir, pid string, block int, recs []metrics.MetricRecord) {
	t.Helper()
	dir := filepath.Join(outputDir, pid)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create participant dir: %v", err)
	}
	if err := metrics.WriteBlockCSV(filepath.Join(dir, metrics.BlockResultsName(block)), recs); err != nil {
		t.Fatalf("failed to write block fixture: %v", err)
	}
}

func TestMerge(t *testing.T) {
	testutil.QuietLogs(t)

	out := t.TempDir()
	writeBlockFixture(t, out, "BNC01", 1, []metrics.MetricRecord{testRecord("Bank", 5), testRecord("Pizzeria", 7)})
	writeBlockFixture(t, out, "BNC01", 2, []metrics.MetricRecord{testRecord("Bank", 6)})
	writeBlockFixture(t, out, "NAV02", 1, []metrics.MetricRecord{testRecord("High School", 9)})

	rows, err := Merge(out, []string{"BNC01", "NAV02"}, config.EmptyStudyConfig())
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	// Row count is the sum of the per-file row counts.
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}

	wantOrder := []struct {
		pid    string
		block  int
		target string
	}{
		{"BNC01", 1, "Bank"},
		{"BNC01", 1, "Pizzeria"},
		{"BNC01", 2, "Bank"},
		{"NAV02", 1, "High School"},
	}
	for i, w := range wantOrder {
		r := rows[i]
		if r.Participant != w.pid || r.Block != w.block || r.Target != w.target {
			t.Errorf("row %d = %s/b%d/%s, want %s/b%d/%s", i, r.Participant, r.Block, r.Target, w.pid, w.block, w.target)
		}
	}

	// BNC01 block 3, NAV02 blocks 2 and 3 are missing: warnings, not errors.
	if got := monitoring.WarningCount(); got != 3 {
		t.Errorf("warning count = %d, want 3", got)
	}
}

func TestMerge_DuplicateKeyFatal(t *testing.T) {
	testutil.QuietLogs(t)

	out := t.TempDir()
	writeBlockFixture(t, out, "BNC01", 1, []metrics.MetricRecord{testRecord("Bank", 5), testRecord("Bank", 6)})

	_, err := Merge(out, []string{"BNC01"}, config.EmptyStudyConfig())
	if err == nil {
		t.Fatal("expected duplicate key error, got nil")
	}
}

func TestMerge_NoParticipants(t *testing.T) {
	rows, err := Merge(t.TempDir(), nil, config.EmptyStudyConfig())
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestWriteReadMergedCSV(t *testing.T) {
	nullSpeed := testRecord("Pawn Shop", 4)
	nullSpeed.Speed = metrics.Value{}

	rows := []Row{
		{Participant: "BNC01", Block: 1, MetricRecord: testRecord("Bank", 5)},
		{Participant: "BNC01", Block: 2, MetricRecord: nullSpeed},
		{Participant: "NAV02", Block: 1, MetricRecord: testRecord("Pizzeria", 8)},
	}

	path := filepath.Join(t.TempDir(), MergedFileName)
	if err := WriteMergedCSV(path, rows); err != nil {
		t.Fatalf("WriteMergedCSV() error: %v", err)
	}

	got, err := ReadMergedCSV(path)
	if err != nil {
		t.Fatalf("ReadMergedCSV() error: %v", err)
	}
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMergedCSV_BadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("Who,What\nx,y\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := ReadMergedCSV(path); err == nil {
		t.Error("expected error for wrong header, got nil")
	}
}

func TestReadMergedCSV_Missing(t *testing.T) {
	if _, err := ReadMergedCSV(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}
