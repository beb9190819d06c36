package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/npresearchlab/navcity-analysis/internal/aggregate"
	"github.com/npresearchlab/navcity-analysis/internal/metrics"
)

func avgRow(pid string, block int, distance, speed float64) aggregate.AveragedRow {
	r := aggregate.AveragedRow{Participant: pid, Block: block, Means: make(map[string]metrics.Value)}
	for _, col := range metrics.Columns {
		r.Means[col] = metrics.Num(1)
	}
	r.Means["Distance"] = metrics.Num(distance)
	r.Means["Speed"] = metrics.Num(speed)
	return r
}

func TestByBlock(t *testing.T) {
	rows := []aggregate.AveragedRow{
		avgRow("BNC01", 2, 10, 1),
		avgRow("BNC01", 1, 12, 1.5),
		avgRow("NAV02", 1, 9, 0.8),
	}
	set := byBlock(rows)
	if diff := cmp.Diff([]string{"Block 1", "Block 2"}, set.labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if got := len(set.rows["Block 1"]); got != 2 {
		t.Errorf("Block 1 has %d rows, want 2", got)
	}
	if got := len(set.rows["Block 2"]); got != 1 {
		t.Errorf("Block 2 has %d rows, want 1", got)
	}
}

func TestByGroup(t *testing.T) {
	rows := []aggregate.GroupedAveragedRow{
		{Group: "Young", AveragedRow: avgRow("BNC01", 1, 10, 1)},
		{Group: "Older", AveragedRow: avgRow("NAV02", 1, 9, 0.8)},
		{Group: "Young", AveragedRow: avgRow("BNC03", 1, 11, 1.1)},
	}
	set := byGroup(rows)
	if diff := cmp.Diff([]string{"Young", "Older"}, set.labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if got := len(set.rows["Young"]); got != 2 {
		t.Errorf("Young has %d rows, want 2", got)
	}
}

func TestColumnMean(t *testing.T) {
	rows := []aggregate.AveragedRow{
		avgRow("BNC01", 1, 2, 1),
		avgRow("BNC02", 1, 4, 1),
		avgRow("BNC03", 1, 0, 1),
	}
	rows[2].Means["Distance"] = metrics.Value{}

	got, ok := columnMean(rows, "Distance")
	if !ok {
		t.Fatal("expected a mean over the valid distances")
	}
	if got != 3 {
		t.Errorf("mean = %v, want 3", got)
	}

	for i := range rows {
		rows[i].Means["Speed"] = metrics.Value{}
	}
	if _, ok := columnMean(rows, "Speed"); ok {
		t.Error("expected no mean when every value is null")
	}
}

func TestBuild(t *testing.T) {
	outputDir := t.TempDir()
	rows := []aggregate.AveragedRow{
		avgRow("BNC01", 1, 120.5, 1.2),
		avgRow("BNC01", 2, 98.2, 1.4),
		avgRow("NAV02", 1, 140.1, 0.9),
	}
	avgPath := filepath.Join(outputDir, aggregate.AveragedFileName)
	if err := aggregate.WriteAveragedCSV(avgPath, rows); err != nil {
		t.Fatalf("WriteAveragedCSV: %v", err)
	}

	path, err := Build(outputDir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if want := filepath.Join(outputDir, FileName); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	html := string(data)
	for _, want := range []string{"Averaged Metrics by Block", "Speed vs Distance", "Block 1", "Block 2"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(html, "Age Group") {
		t.Error("report has age-group charts without a combined table")
	}
}

func TestBuild_WithCombinedTable(t *testing.T) {
	outputDir := t.TempDir()
	rows := []aggregate.AveragedRow{
		avgRow("BNC01", 1, 120.5, 1.2),
		avgRow("NAV02", 1, 140.1, 0.9),
	}
	if err := aggregate.WriteAveragedCSV(filepath.Join(outputDir, aggregate.AveragedFileName), rows); err != nil {
		t.Fatalf("WriteAveragedCSV: %v", err)
	}
	grouped := []aggregate.GroupedAveragedRow{
		{Group: "Young", AveragedRow: rows[0]},
		{Group: "Older", AveragedRow: rows[1]},
	}
	if err := aggregate.WriteCombinedAveragedCSV(filepath.Join(outputDir, aggregate.CombinedAveragedFileName), grouped); err != nil {
		t.Fatalf("WriteCombinedAveragedCSV: %v", err)
	}

	path, err := Build(outputDir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	html := string(data)
	for _, want := range []string{"Averaged Metrics by Age Group", "Young", "Older"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestBuild_MissingAveragedTable(t *testing.T) {
	if _, err := Build(t.TempDir()); err == nil {
		t.Fatal("expected error when the averaged table is missing")
	}
}
