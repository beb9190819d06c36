// Package navlog reads raw NavCity block logs into ordered sample sequences.
//
// A raw block file is the CSV written by the VR logger during one block of
// the navigation task: a header row, a few device metadata rows, then one
// row per frame until the final mission-complete row. Parsing reproduces the
// cleanup the analysis needs: time deltas clamped at zero, Euler angles
// stripped of their stray parentheses and revalued into (-180, 180], and
// sentinel rows removed only after time deltas are derived so the interval
// leading into a mission-complete row is never lost.
package navlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/npresearchlab/navcity-analysis/internal/config"
)

// Sample is one retained frame of a block log.
type Sample struct {
	Target string
	X      float64
	Z      float64

	// Euler angles as logged, revalued into (-180, 180], and the absolute
	// change of the revalued angle since the previous frame.
	XAngle, YAngle, ZAngle             float64
	XAngleRev, YAngleRev, ZAngleRev    float64
	XAngleDiff, YAngleDiff, ZAngleDiff float64

	// Time is the lapsed session time; TimeDiff is the non-negative delta
	// from the previous frame (0 for the first frame).
	Time     float64
	TimeDiff float64
}

// BlockLog is the parsed contents of one raw block file.
type BlockLog struct {
	Participant string
	Block       int
	Samples     []Sample

	// UnknownTargets counts rows whose target is neither canonical nor the
	// sentinel, keyed by the offending name. The rows stay in Samples;
	// downstream stages exclude them from canonical output.
	UnknownTargets map[string]int
}

// ReadBlockFile parses the raw block file at path and stamps the result with
// the participant id and block number.
func ReadBlockFile(path, participant string, block int, cfg *config.StudyConfig) (*BlockLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw file: %w", err)
	}
	defer f.Close()

	bl, err := ReadBlock(f, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	bl.Participant = participant
	bl.Block = block
	return bl, nil
}

// ReadBlock parses one raw block log from r.
func ReadBlock(r io.Reader, cfg *config.StudyConfig) (*BlockLog, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("raw file is empty")
	}

	cols := cfg.GetRawColumns()
	idx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		idx[name] = i
	}
	for _, name := range []string{cols.Time, cols.X, cols.Z, cols.XEuler, cols.YEuler, cols.ZEuler, cols.Target} {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	// Drop the device metadata rows at the top of the file.
	rows := records[1:]
	skip := cfg.GetMetadataRows()
	if len(rows) <= skip {
		rows = nil
	} else {
		rows = rows[skip:]
	}

	samples := make([]Sample, 0, len(rows))
	var prev *Sample
	for i, rec := range rows {
		line := i + skip + 2 // 1-based, counting the header
		s := Sample{Target: rec[idx[cols.Target]]}

		if s.Time, err = parseFloat(rec[idx[cols.Time]]); err != nil {
			return nil, fmt.Errorf("invalid time at line %d: %w", line, err)
		}
		if s.X, err = parseFloat(rec[idx[cols.X]]); err != nil {
			return nil, fmt.Errorf("invalid X at line %d: %w", line, err)
		}
		if s.Z, err = parseFloat(rec[idx[cols.Z]]); err != nil {
			return nil, fmt.Errorf("invalid Z at line %d: %w", line, err)
		}

		// The logger wraps the Euler triple in parentheses, which land on
		// the X and Z fields.
		if s.XAngle, err = parseFloat(strings.TrimPrefix(rec[idx[cols.XEuler]], "(")); err != nil {
			return nil, fmt.Errorf("invalid X Euler angle at line %d: %w", line, err)
		}
		if s.YAngle, err = parseFloat(rec[idx[cols.YEuler]]); err != nil {
			return nil, fmt.Errorf("invalid Y Euler angle at line %d: %w", line, err)
		}
		if s.ZAngle, err = parseFloat(strings.TrimSuffix(rec[idx[cols.ZEuler]], ")")); err != nil {
			return nil, fmt.Errorf("invalid Z Euler angle at line %d: %w", line, err)
		}

		s.XAngleRev = revalue(s.XAngle)
		s.YAngleRev = revalue(s.YAngle)
		s.ZAngleRev = revalue(s.ZAngle)

		if prev != nil {
			// Clock resets produce negative deltas; clamp them to zero.
			if d := s.Time - prev.Time; d > 0 {
				s.TimeDiff = d
			}
			s.XAngleDiff = math.Abs(s.XAngleRev - prev.XAngleRev)
			s.YAngleDiff = math.Abs(s.YAngleRev - prev.YAngleRev)
			s.ZAngleDiff = math.Abs(s.ZAngleRev - prev.ZAngleRev)
		}

		samples = append(samples, s)
		prev = &samples[len(samples)-1]
	}

	// Sentinel rows are removed only now, after time deltas exist.
	sentinel := cfg.GetSentinel()
	canonical := make(map[string]bool)
	for _, t := range cfg.GetTargets() {
		canonical[t] = true
	}
	kept := samples[:0]
	unknown := make(map[string]int)
	for _, s := range samples {
		if s.Target == sentinel {
			continue
		}
		if !canonical[s.Target] {
			unknown[s.Target]++
		}
		kept = append(kept, s)
	}

	return &BlockLog{Samples: kept, UnknownTargets: unknown}, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// revalue maps angles logged in [0, 360) into (-180, 180].
func revalue(v float64) float64 {
	if v > 180 {
		return -(360 - v)
	}
	return v
}
