package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBlockResultsName(t *testing.T) {
	if got := BlockResultsName(2); got != "b2_results.csv" {
		t.Errorf("BlockResultsName(2) = %q, want b2_results.csv", got)
	}
}

func TestWriteReadBlockCSV(t *testing.T) {
	records := []MetricRecord{
		{
			Target:               "Bank",
			TotalTime:            Num(7),
			OrientationTime:      Num(3),
			NavigationTime:       Num(4),
			Distance:             Num(6.1),
			Speed:                Num(1.525),
			MeanDwell:            Num(7.0 / 3.0),
			Teleportations:       Num(3),
			MeanTeleportDistance: Num(3.05),
		},
		{
			Target:          "Pawn Shop",
			TotalTime:       Num(5),
			OrientationTime: Num(5),
			NavigationTime:  Num(0),
			Distance:        Num(0),
			// Speed null: no navigation happened.
			MeanDwell:      Num(5),
			Teleportations: Num(1),
		},
	}

	path := filepath.Join(t.TempDir(), "b1_results.csv")
	if err := WriteBlockCSV(path, records); err != nil {
		t.Fatalf("WriteBlockCSV() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back file: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	wantHeader := "Target_Name,Total_Time,Orientation_Time,Navigation_Time,Distance,Speed,Mean_Dwell,Teleportations,Mean_Teleport_Distance"
	if lines[0] != wantHeader {
		t.Errorf("header = %q, want %q", lines[0], wantHeader)
	}
	// Null Speed must be an empty cell, Teleportations a bare integer.
	if lines[2] != "Pawn Shop,5,5,0,0,,5,1," {
		t.Errorf("row 2 = %q, want %q", lines[2], "Pawn Shop,5,5,0,0,,5,1,")
	}

	got, err := ReadBlockCSV(path)
	if err != nil {
		t.Fatalf("ReadBlockCSV() error: %v", err)
	}
	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteBlockCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b1_results.csv")
	if err := WriteBlockCSV(path, nil); err != nil {
		t.Fatalf("WriteBlockCSV() error: %v", err)
	}

	got, err := ReadBlockCSV(path)
	if err != nil {
		t.Fatalf("ReadBlockCSV() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

func TestReadBlockCSV_Missing(t *testing.T) {
	if _, err := ReadBlockCSV(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestReadBlockCSV_BadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("Target,Speed\nBank,1\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := ReadBlockCSV(path); err == nil {
		t.Error("expected error for wrong header, got nil")
	}
}

func TestReadBlockCSV_BadCell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	header := "Target_Name,Total_Time,Orientation_Time,Navigation_Time,Distance,Speed,Mean_Dwell,Teleportations,Mean_Teleport_Distance"
	if err := os.WriteFile(path, []byte(header+"\nBank,x,,,,,,,\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	_, err := ReadBlockCSV(path)
	if err == nil {
		t.Fatal("expected error for bad cell, got nil")
	}
	if !strings.Contains(err.Error(), "Total_Time") {
		t.Errorf("error = %v, want Total_Time mention", err)
	}
}
