package aggregate

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/npresearchlab/navcity-analysis/internal/metrics"
)

// AveragedRow is the per-(participant, block) mean of each metric column
// across that block's targets.
type AveragedRow struct {
	Participant string
	Block       int
	Means       map[string]metrics.Value
}

// Average computes the arithmetic mean of each metric column per
// (participant, block) group, in first-encounter order. Null cells are
// skipped; a column with no valid values stays null.
func Average(rows []Row) []AveragedRow {
	type key struct {
		participant string
		block       int
	}
	groups := make(map[key][]Row)
	var order []key
	for _, r := range rows {
		k := key{r.Participant, r.Block}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]AveragedRow, 0, len(order))
	for _, k := range order {
		means := make(map[string]metrics.Value, len(metrics.Columns))
		for _, col := range metrics.Columns {
			var vals []float64
			for _, r := range groups[k] {
				if v, _ := r.Value(col); v.Valid {
					vals = append(vals, v.Float64)
				}
			}
			if len(vals) > 0 {
				means[col] = metrics.Num(stat.Mean(vals, nil))
			} else {
				means[col] = metrics.Value{}
			}
		}
		out = append(out, AveragedRow{Participant: k.participant, Block: k.block, Means: means})
	}
	return out
}

// Mean returns the averaged value of one metric column.
func (r *AveragedRow) Mean(column string) metrics.Value {
	return r.Means[column]
}

// SetMean sets the averaged value of one metric column.
func (r *AveragedRow) SetMean(column string, v metrics.Value) {
	if r.Means == nil {
		r.Means = make(map[string]metrics.Value)
	}
	r.Means[column] = v
}

// WriteAveragedCSV writes averaged rows to path.
func WriteAveragedCSV(path string, rows []AveragedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create averaged file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"Participant", "Block_Num"}, metrics.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		row := make([]string, 0, len(header))
		row = append(row, r.Participant, strconv.Itoa(r.Block))
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

// ReadAveragedCSV reads an averaged results file back into rows.
func ReadAveragedCSV(path string) ([]AveragedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open averaged file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("averaged file %s is empty", path)
	}

	header := records[0]
	want := append([]string{"Participant", "Block_Num"}, metrics.Columns...)
	if len(header) != len(want) {
		return nil, fmt.Errorf("averaged file %s has %d columns, want %d", path, len(header), len(want))
	}
	for i := range want {
		if header[i] != want[i] {
			return nil, fmt.Errorf("averaged file %s: column %d is %q, want %q", path, i, header[i], want[i])
		}
	}

	rows := make([]AveragedRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		block, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("averaged file %s line %d: invalid block: %w", path, i+2, err)
		}
		row := AveragedRow{Participant: rec[0], Block: block, Means: make(map[string]metrics.Value, len(metrics.Columns))}
		for j, col := range metrics.Columns {
			v, err := metrics.ParseValue(rec[j+2])
			if err != nil {
				return nil, fmt.Errorf("averaged file %s line %d: invalid %s: %w", path, i+2, col, err)
			}
			row.Means[col] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
