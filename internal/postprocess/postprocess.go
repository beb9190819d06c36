// Package postprocess organizes per-group analysis outputs into a base
// folder, applies configured data corrections, and combines age group
// results into single labeled tables.
package postprocess

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"github.com/npresearchlab/navcity-analysis/internal/aggregate"
	"github.com/npresearchlab/navcity-analysis/internal/config"
	"github.com/npresearchlab/navcity-analysis/internal/fsutil"
	"github.com/npresearchlab/navcity-analysis/internal/metrics"
	"github.com/npresearchlab/navcity-analysis/internal/monitoring"
	"github.com/npresearchlab/navcity-analysis/internal/security"
)

// Run executes the post-processing sequence on a base folder holding the age
// group output folders: organize tables, apply corrections, combine groups.
func Run(baseDir string, cfg *config.StudyConfig) error {
	if _, err := Organize(baseDir, cfg); err != nil {
		return err
	}
	if err := ApplyCorrections(baseDir, cfg); err != nil {
		return err
	}
	if err := Combine(baseDir, cfg); err != nil {
		return err
	}
	monitoring.Logf("Post-analysis cleanup completed!")
	return nil
}

// containedPath joins elem onto base and rejects results that escape base.
// Folder names and prefixes come from config files, so they are not trusted
// as path components.
func containedPath(base string, elem ...string) (string, error) {
	p := filepath.Join(append([]string{base}, elem...)...)
	if err := security.ValidatePathWithinDirectory(p, base); err != nil {
		return "", err
	}
	return p, nil
}

func organizedName(prefix, fileType string) string {
	return fmt.Sprintf("%s_%s_results.csv", prefix, fileType)
}

// Organize moves each age group's merged and averaged tables from the
// group's folder up into baseDir under the group prefix. Missing tables are
// warnings. Returns the destinations that now exist, keyed
// "<prefix>_merged" and "<prefix>_averaged".
func Organize(baseDir string, cfg *config.StudyConfig) (map[string]string, error) {
	monitoring.Logf("Organizing and renaming analysis output files...")

	fileTypes := []struct {
		kind string
		name string
	}{
		{"merged", aggregate.MergedFileName},
		{"averaged", aggregate.AveragedFileName},
	}

	moved := make(map[string]string)
	for _, group := range cfg.GetAgeGroups() {
		for _, ft := range fileTypes {
			src, err := containedPath(baseDir, group.Folder, ft.name)
			if err != nil {
				return moved, err
			}
			dest, err := containedPath(baseDir, organizedName(group.Prefix, ft.kind))
			if err != nil {
				return moved, err
			}

			if !fsutil.Exists(src) {
				monitoring.Warnf("%s not found", src)
				continue
			}
			if err := fsutil.MoveFile(src, dest); err != nil {
				return moved, fmt.Errorf("failed to move %s: %w", src, err)
			}
			monitoring.Logf("Moved: %s -> %s", src, dest)
			moved[group.Prefix+"_"+ft.kind] = dest
		}
	}

	monitoring.Logf("File organization completed!")
	return moved, nil
}

// ApplyCorrections applies every configured correction to its group's
// organized tables under baseDir. A correction whose tables are absent is
// skipped with a warning.
func ApplyCorrections(baseDir string, cfg *config.StudyConfig) error {
	for _, c := range cfg.GetCorrections() {
		mergedPath, err := containedPath(baseDir, organizedName(c.Group, "merged"))
		if err != nil {
			return err
		}
		averagedPath, err := containedPath(baseDir, organizedName(c.Group, "averaged"))
		if err != nil {
			return err
		}

		missing := false
		for _, path := range []string{mergedPath, averagedPath} {
			if !fsutil.Exists(path) {
				monitoring.Warnf("%s not found", path)
				missing = true
			}
		}
		if missing {
			continue
		}

		if err := Fix(mergedPath, averagedPath, c); err != nil {
			return err
		}
	}
	return nil
}

// Fix nulls one metric cell for a participant block target in the merged
// table and refreshes the participant's averaged column from the remaining
// merged values. Fixing Orientation_Time also removes the old value from
// Total_Time. A participant row that does not exist is a reported no-op.
func Fix(mergedPath, averagedPath string, c config.Correction) error {
	monitoring.Logf("Fixing %s %s %s error...", c.Participant, c.Target, c.Column)

	rows, err := aggregate.ReadMergedCSV(mergedPath)
	if err != nil {
		return err
	}

	found := false
	for i := range rows {
		r := &rows[i]
		if r.Participant != c.Participant || r.Block != c.Block || r.Target != c.Target {
			continue
		}
		found = true

		if c.Column == "Orientation_Time" {
			old, _ := r.Value("Orientation_Time")
			total, _ := r.Value("Total_Time")
			if old.Valid && total.Valid {
				r.SetValue("Total_Time", metrics.Num(total.Float64-old.Float64))
			} else {
				r.SetValue("Total_Time", metrics.Value{})
			}
		}
		r.SetValue(c.Column, metrics.Value{})
	}
	if !found {
		monitoring.Logf("Entry not found for %s block %d %s", c.Participant, c.Block, c.Target)
		return nil
	}

	if err := aggregate.WriteMergedCSV(mergedPath, rows); err != nil {
		return err
	}
	monitoring.Logf("Corrected merged results saved to %s", mergedPath)

	// The participant's remaining values across every block and target.
	var vals []float64
	for _, r := range rows {
		if r.Participant != c.Participant {
			continue
		}
		if v, _ := r.Value(c.Column); v.Valid {
			vals = append(vals, v.Float64)
		}
	}
	if len(vals) == 0 {
		monitoring.Logf("No valid %s values found for %s", c.Column, c.Participant)
		return nil
	}
	mean := stat.Mean(vals, nil)
	monitoring.Logf("New average %s for %s: %.6f", c.Column, c.Participant, mean)

	avgRows, err := aggregate.ReadAveragedCSV(averagedPath)
	if err != nil {
		return err
	}
	updated := false
	for i := range avgRows {
		if avgRows[i].Participant == c.Participant {
			avgRows[i].SetMean(c.Column, metrics.Num(mean))
			updated = true
		}
	}
	if !updated {
		return nil
	}
	if err := aggregate.WriteAveragedCSV(averagedPath, avgRows); err != nil {
		return err
	}
	monitoring.Logf("Updated %s's averaged %s", c.Participant, c.Column)
	return nil
}

// Combine concatenates every age group's organized tables under baseDir into
// single tables labeled with the group, in configured group order.
func Combine(baseDir string, cfg *config.StudyConfig) error {
	var mergedRows []aggregate.GroupedRow
	var averagedRows []aggregate.GroupedAveragedRow

	for _, group := range cfg.GetAgeGroups() {
		mergedPath, err := containedPath(baseDir, organizedName(group.Prefix, "merged"))
		if err != nil {
			return err
		}
		if fsutil.Exists(mergedPath) {
			rows, err := aggregate.ReadMergedCSV(mergedPath)
			if err != nil {
				return err
			}
			for _, r := range rows {
				mergedRows = append(mergedRows, aggregate.GroupedRow{Group: group.Label, Row: r})
			}
		}

		averagedPath, err := containedPath(baseDir, organizedName(group.Prefix, "averaged"))
		if err != nil {
			return err
		}
		if fsutil.Exists(averagedPath) {
			rows, err := aggregate.ReadAveragedCSV(averagedPath)
			if err != nil {
				return err
			}
			for _, r := range rows {
				averagedRows = append(averagedRows, aggregate.GroupedAveragedRow{Group: group.Label, AveragedRow: r})
			}
		}
	}

	if len(mergedRows) == 0 && len(averagedRows) == 0 {
		monitoring.Warnf("No data to combine")
		return nil
	}

	if len(mergedRows) > 0 {
		path := filepath.Join(baseDir, aggregate.CombinedMergedFileName)
		if err := aggregate.WriteCombinedMergedCSV(path, mergedRows); err != nil {
			return err
		}
		monitoring.Logf("Created: %s", path)
	}
	if len(averagedRows) > 0 {
		path := filepath.Join(baseDir, aggregate.CombinedAveragedFileName)
		if err := aggregate.WriteCombinedAveragedCSV(path, averagedRows); err != nil {
			return err
		}
		monitoring.Logf("Created: %s", path)
	}
	return nil
}
