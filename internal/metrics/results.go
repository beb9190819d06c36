package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
)

// BlockResultsName returns the per-block results file name, e.g.
// "b2_results.csv".
func BlockResultsName(block int) string {
	return fmt.Sprintf("b%d_results.csv", block)
}

// WriteBlockCSV writes one block's metric records to path. Null values
// become empty cells.
func WriteBlockCSV(path string, records []MetricRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"Target_Name"}, Columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		row := make([]string, 0, len(header))
		row = append(row, rec.Target)
		for _, col := range Columns {
			v, _ := rec.Value(col)
			row = append(row, v.String())
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadBlockCSV reads a block results file back into metric records.
func ReadBlockCSV(path string) ([]MetricRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("results file %s is empty", path)
	}

	header := records[0]
	want := append([]string{"Target_Name"}, Columns...)
	if len(header) != len(want) {
		return nil, fmt.Errorf("results file %s has %d columns, want %d", path, len(header), len(want))
	}
	for i := range want {
		if header[i] != want[i] {
			return nil, fmt.Errorf("results file %s: column %d is %q, want %q", path, i, header[i], want[i])
		}
	}

	out := make([]MetricRecord, 0, len(records)-1)
	for i, row := range records[1:] {
		rec := MetricRecord{Target: row[0]}
		for j, col := range Columns {
			v, err := ParseValue(row[j+1])
			if err != nil {
				return nil, fmt.Errorf("results file %s line %d: invalid %s: %w", path, i+2, col, err)
			}
			rec.SetValue(col, v)
		}
		out = append(out, rec)
	}
	return out, nil
}
