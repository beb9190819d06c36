package aggregate

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/npresearchlab/navcity-analysis/internal/metrics"
)

// Combined result file names, holding every age group's rows in one table.
const (
	CombinedMergedFileName   = "combined_merged_results.csv"
	CombinedAveragedFileName = "combined_averaged_results.csv"
)

// GroupedRow is a merged results row labeled with its age group.
type GroupedRow struct {
	Group string
	Row
}

// GroupedAveragedRow is an averaged results row labeled with its age group.
type GroupedAveragedRow struct {
	Group string
	AveragedRow
}

// WriteCombinedMergedCSV writes group-labeled merged rows to path with the
// Age_Group column prepended.
func WriteCombinedMergedCSV(path string, rows []GroupedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create combined merged file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"Age_Group", "Participant", "Block_Num", "Target_Name"}, metrics.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		row := make([]string, 0, len(header))
		row = append(row, r.Group, r.Participant, strconv.Itoa(r.Block), r.Target)
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

// ReadCombinedMergedCSV reads a combined merged results file back into rows.
func ReadCombinedMergedCSV(path string) ([]GroupedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open combined merged file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("combined merged file %s is empty", path)
	}

	header := records[0]
	want := append([]string{"Age_Group", "Participant", "Block_Num", "Target_Name"}, metrics.Columns...)
	if len(header) != len(want) {
		return nil, fmt.Errorf("combined merged file %s has %d columns, want %d", path, len(header), len(want))
	}
	for i := range want {
		if header[i] != want[i] {
			return nil, fmt.Errorf("combined merged file %s: column %d is %q, want %q", path, i, header[i], want[i])
		}
	}

	rows := make([]GroupedRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		block, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("combined merged file %s line %d: invalid block: %w", path, i+2, err)
		}
		row := GroupedRow{
			Group: rec[0],
			Row:   Row{Participant: rec[1], Block: block, MetricRecord: metrics.MetricRecord{Target: rec[3]}},
		}
		for j, col := range metrics.Columns {
			v, err := metrics.ParseValue(rec[j+4])
			if err != nil {
				return nil, fmt.Errorf("combined merged file %s line %d: invalid %s: %w", path, i+2, col, err)
			}
			row.SetValue(col, v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCombinedAveragedCSV writes group-labeled averaged rows to path with
// the Age_Group column prepended.
func WriteCombinedAveragedCSV(path string, rows []GroupedAveragedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create combined averaged file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"Age_Group", "Participant", "Block_Num"}, metrics.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		row := make([]string, 0, len(header))
		row = append(row, r.Group, r.Participant, strconv.Itoa(r.Block))
		for _, col := range metrics.Columns {
			row = append(row, r.Mean(col).String())
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCombinedAveragedCSV reads a combined averaged results file back into rows.
func ReadCombinedAveragedCSV(path string) ([]GroupedAveragedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open combined averaged file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("combined averaged file %s is empty", path)
	}

	header := records[0]
	want := append([]string{"Age_Group", "Participant", "Block_Num"}, metrics.Columns...)
	if len(header) != len(want) {
		return nil, fmt.Errorf("combined averaged file %s has %d columns, want %d", path, len(header), len(want))
	}
	for i := range want {
		if header[i] != want[i] {
			return nil, fmt.Errorf("combined averaged file %s: column %d is %q, want %q", path, i, header[i], want[i])
		}
	}

	rows := make([]GroupedAveragedRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		block, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("combined averaged file %s line %d: invalid block: %w", path, i+2, err)
		}
		row := GroupedAveragedRow{
			Group: rec[0],
			AveragedRow: AveragedRow{
				Participant: rec[1],
				Block:       block,
				Means:       make(map[string]metrics.Value, len(metrics.Columns)),
			},
		}
		for j, col := range metrics.Columns {
			v, err := metrics.ParseValue(rec[j+3])
			if err != nil {
				return nil, fmt.Errorf("combined averaged file %s line %d: invalid %s: %w", path, i+2, col, err)
			}
			row.Means[col] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
