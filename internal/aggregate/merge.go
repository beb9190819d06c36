// Package aggregate merges per-block metric files across participants and
// averages each participant's metrics per block.
package aggregate

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/npresearchlab/navcity-analysis/internal/config"
	"github.com/npresearchlab/navcity-analysis/internal/metrics"
	"github.com/npresearchlab/navcity-analysis/internal/monitoring"
)

// Result file names written into an output folder.
const (
	MergedFileName   = "merged_results.csv"
	AveragedFileName = "averaged_results.csv"
)

// Row is one merged results row: a block metric record tagged with its
// participant and block.
type Row struct {
	Participant string
	Block       int
	metrics.MetricRecord
}

// Merge reads every participant's block results files under outputDir and
// concatenates them, participants in the given order, blocks ascending.
// Missing block files are warnings (a participant may not have completed
// every block); a duplicate (participant, block, target) key is fatal.
func Merge(outputDir string, participants []string, cfg *config.StudyConfig) ([]Row, error) {
	type key struct {
		participant string
		block       int
		target      string
	}
	seen := make(map[key]bool)

	var rows []Row
	for _, pid := range participants {
		for block := 1; block <= cfg.GetBlocks(); block++ {
			path := blockResultsPath(outputDir, pid, block)
			if _, err := os.Stat(path); err != nil {
				monitoring.Warnf("%s not found", path)
				continue
			}
			records, err := metrics.ReadBlockCSV(path)
			if err != nil {
				return nil, fmt.Errorf("failed to merge %s block %d: %w", pid, block, err)
			}
			for _, rec := range records {
				k := key{pid, block, rec.Target}
				if seen[k] {
					return nil, fmt.Errorf("duplicate results row for %s block %d target %q", pid, block, rec.Target)
				}
				seen[k] = true
				rows = append(rows, Row{Participant: pid, Block: block, MetricRecord: rec})
			}
		}
	}
	return rows, nil
}

func blockResultsPath(outputDir, participant string, block int) string {
	return filepath.Join(outputDir, participant, metrics.BlockResultsName(block))
}

// WriteMergedCSV writes merged rows to path with Participant and Block_Num
// columns prepended to the metric columns.
func WriteMergedCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create merged file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"Participant", "Block_Num", "Target_Name"}, metrics.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		row := make([]string, 0, len(header))
		row = append(row, r.Participant, strconv.Itoa(r.Block), r.Target)
		for _, col := range metrics.Columns {
			v, _ := r.Value(col)
			row = append(row, v.String())
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadMergedCSV reads a merged results file back into rows.
func ReadMergedCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open merged file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("merged file %s is empty", path)
	}

	header := records[0]
	want := append([]string{"Participant", "Block_Num", "Target_Name"}, metrics.Columns...)
	if len(header) != len(want) {
		return nil, fmt.Errorf("merged file %s has %d columns, want %d", path, len(header), len(want))
	}
	for i := range want {
		if header[i] != want[i] {
			return nil, fmt.Errorf("merged file %s: column %d is %q, want %q", path, i, header[i], want[i])
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		block, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("merged file %s line %d: invalid block: %w", path, i+2, err)
		}
		row := Row{Participant: rec[0], Block: block, MetricRecord: metrics.MetricRecord{Target: rec[2]}}
		for j, col := range metrics.Columns {
			v, err := metrics.ParseValue(rec[j+3])
			if err != nil {
				return nil, fmt.Errorf("merged file %s line %d: invalid %s: %w", path, i+2, col, err)
			}
			row.SetValue(col, v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
