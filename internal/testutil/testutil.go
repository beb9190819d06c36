// Package testutil provides shared test fixtures for the analysis packages.
package testutil

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/npresearchlab/navcity-analysis/internal/config"
	"github.com/npresearchlab/navcity-analysis/internal/monitoring"
	"github.com/npresearchlab/navcity-analysis/internal/navlog"
)

// QuietLogs mutes the monitoring logger for the test and resets the warning
// counter so counts start from zero.
func QuietLogs(t *testing.T) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
	monitoring.ResetWarnings()
}

// LoadStudyConfig parses a study config from a JSON literal.
func LoadStudyConfig(t *testing.T, body string) *config.StudyConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err := config.LoadStudyConfig(path)
	if err != nil {
		t.Fatalf("LoadStudyConfig: %v", err)
	}
	return cfg
}

// RawLog builds a raw block file: the header, three device metadata rows,
// then the given data rows. Rows use the capture tool's layout, with the
// Euler triple parenthesized across the three angle cells:
//
//	1.0,0,-4.1,(0,10,350),Bank
func RawLog(dataRows ...string) string {
	rows := []string{
		"Lapsed Time,X,Z,X Euler Angle,Y Euler Angle,Z Euler Angle,Target Name",
		"0,0,0,(0,0,0),device-meta",
		"0,0,0,(0,0,0),device-meta",
		"0,0,0,(0,0,0),device-meta",
	}
	rows = append(rows, dataRows...)
	return strings.Join(rows, "\n") + "\n"
}

// WriteRawBlock writes a raw block file where the pipeline expects to find
// it and returns its path.
func WriteRawBlock(t *testing.T, dataFolder, pid string, block int, cfg *config.StudyConfig, dataRows ...string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dataFolder, pid), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	path := navlog.BlockFilePath(dataFolder, pid, block, cfg)
	if err := os.WriteFile(path, []byte(RawLog(dataRows...)), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
