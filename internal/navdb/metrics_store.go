package navdb

import (
	"database/sql"
	"fmt"

	"github.com/npresearchlab/navcity-analysis/internal/aggregate"
	"github.com/npresearchlab/navcity-analysis/internal/metrics"
)

// MetricsStore persists the merged and averaged metric tables of a run.
// Null metric cells are stored as SQL NULLs.
type MetricsStore struct {
	db *DB
}

// NewMetricsStore creates a new MetricsStore.
func NewMetricsStore(db *DB) *MetricsStore {
	return &MetricsStore{db: db}
}

// nullable converts a metric value to its SQL binding.
func nullable(v metrics.Value) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

func scanValue(v sql.NullFloat64) metrics.Value {
	return metrics.Value{Float64: v.Float64, Valid: v.Valid}
}

// InsertBlockMetrics stores merged rows under runID in one transaction.
func (s *MetricsStore) InsertBlockMetrics(runID string, rows []aggregate.Row) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin block metrics: %w", err)
		}
		for _, r := range rows {
			args := []interface{}{runID, r.Participant, r.Block, r.Target}
			for _, col := range metrics.Columns {
				v, _ := r.Value(col)
				args = append(args, nullable(v))
			}
			if _, err := tx.Exec(`
				INSERT INTO block_metrics (
					run_id, participant, block, target,
					total_time, orientation_time, navigation_time, distance,
					speed, mean_dwell, teleportations, mean_teleport_distance
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert block metrics: %w", err)
			}
		}
		return tx.Commit()
	})
}

// BlockMetrics returns a run's merged rows in insertion order.
func (s *MetricsStore) BlockMetrics(runID string) ([]aggregate.Row, error) {
	rows, err := s.db.Query(`
		SELECT participant, block, target,
		       total_time, orientation_time, navigation_time, distance,
		       speed, mean_dwell, teleportations, mean_teleport_distance
		FROM block_metrics
		WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query block metrics: %w", err)
	}
	defer rows.Close()

	var out []aggregate.Row
	for rows.Next() {
		var r aggregate.Row
		vals := make([]sql.NullFloat64, len(metrics.Columns))
		dest := []interface{}{&r.Participant, &r.Block, &r.Target}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan block metrics row: %w", err)
		}
		for i, col := range metrics.Columns {
			r.SetValue(col, scanValue(vals[i]))
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertAveragedMetrics stores averaged rows under runID in one transaction.
func (s *MetricsStore) InsertAveragedMetrics(runID string, rows []aggregate.AveragedRow) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin averaged metrics: %w", err)
		}
		for _, r := range rows {
			args := []interface{}{runID, r.Participant, r.Block}
			for _, col := range metrics.Columns {
				args = append(args, nullable(r.Mean(col)))
			}
			if _, err := tx.Exec(`
				INSERT INTO averaged_metrics (
					run_id, participant, block,
					total_time, orientation_time, navigation_time, distance,
					speed, mean_dwell, teleportations, mean_teleport_distance
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert averaged metrics: %w", err)
			}
		}
		return tx.Commit()
	})
}

// AveragedMetrics returns a run's averaged rows in insertion order.
func (s *MetricsStore) AveragedMetrics(runID string) ([]aggregate.AveragedRow, error) {
	rows, err := s.db.Query(`
		SELECT participant, block,
		       total_time, orientation_time, navigation_time, distance,
		       speed, mean_dwell, teleportations, mean_teleport_distance
		FROM averaged_metrics
		WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query averaged metrics: %w", err)
	}
	defer rows.Close()

	var out []aggregate.AveragedRow
	for rows.Next() {
		r := aggregate.AveragedRow{Means: make(map[string]metrics.Value, len(metrics.Columns))}
		vals := make([]sql.NullFloat64, len(metrics.Columns))
		dest := []interface{}{&r.Participant, &r.Block}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan averaged metrics row: %w", err)
		}
		for i, col := range metrics.Columns {
			r.Means[col] = scanValue(vals[i])
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
