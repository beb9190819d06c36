// Package metrics derives per-target navigation metrics from block logs and
// reads/writes the per-block results CSVs.
package metrics

import (
	"math"
	"strconv"
	"strings"

	"github.com/npresearchlab/navcity-analysis/internal/config"
	"github.com/npresearchlab/navcity-analysis/internal/navlog"
)

// Columns lists the metric column names in output order.
var Columns = []string{
	"Total_Time",
	"Orientation_Time",
	"Navigation_Time",
	"Distance",
	"Speed",
	"Mean_Dwell",
	"Teleportations",
	"Mean_Teleport_Distance",
}

// Value is a nullable metric scalar; the zero Value is null. A null CSV cell
// is empty, keeping null distinct from 0 end to end.
type Value struct {
	Float64 float64
	Valid   bool
}

// Num returns a valid Value.
func Num(v float64) Value {
	return Value{Float64: v, Valid: true}
}

// String renders the value for a CSV cell; null renders as the empty cell.
// Valid values use the shortest representation that round-trips exactly.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'g', -1, 64)
}

// ParseValue parses a CSV cell; the empty cell is null.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, err
	}
	return Num(f), nil
}

// MetricRecord holds the eight navigation metrics for one target of one
// block. Speed and Mean_Teleport_Distance are null when their denominators
// are zero; a correction pass may null any column later.
type MetricRecord struct {
	Target               string
	TotalTime            Value
	OrientationTime      Value
	NavigationTime       Value
	Distance             Value
	Speed                Value
	MeanDwell            Value
	Teleportations       Value
	MeanTeleportDistance Value

	// Warning carries a data-quality note, e.g. a negative navigation time.
	Warning string
}

// Value returns the named metric column.
func (r *MetricRecord) Value(column string) (Value, bool) {
	switch column {
	case "Total_Time":
		return r.TotalTime, true
	case "Orientation_Time":
		return r.OrientationTime, true
	case "Navigation_Time":
		return r.NavigationTime, true
	case "Distance":
		return r.Distance, true
	case "Speed":
		return r.Speed, true
	case "Mean_Dwell":
		return r.MeanDwell, true
	case "Teleportations":
		return r.Teleportations, true
	case "Mean_Teleport_Distance":
		return r.MeanTeleportDistance, true
	}
	return Value{}, false
}

// SetValue sets the named metric column. It reports whether the column exists.
func (r *MetricRecord) SetValue(column string, v Value) bool {
	switch column {
	case "Total_Time":
		r.TotalTime = v
	case "Orientation_Time":
		r.OrientationTime = v
	case "Navigation_Time":
		r.NavigationTime = v
	case "Distance":
		r.Distance = v
	case "Speed":
		r.Speed = v
	case "Mean_Dwell":
		r.MeanDwell = v
	case "Teleportations":
		r.Teleportations = v
	case "Mean_Teleport_Distance":
		r.MeanTeleportDistance = v
	default:
		return false
	}
	return true
}

// Compute derives the metrics for every canonical target visited in the
// block, in canonical target order. Never-visited targets produce no row,
// and non-canonical targets are excluded here (ingestion already counted
// them for reporting).
func Compute(bl *navlog.BlockLog, cfg *config.StudyConfig) []MetricRecord {
	groups := make(map[string][]navlog.Sample)
	for _, s := range bl.Samples {
		groups[s.Target] = append(groups[s.Target], s)
	}

	startX, startZ := cfg.GetStartX(), cfg.GetStartZ()
	records := make([]MetricRecord, 0, len(groups))
	for _, target := range cfg.GetTargets() {
		samples, ok := groups[target]
		if !ok {
			continue
		}
		records = append(records, computeTarget(target, samples, startX, startZ))
	}
	return records
}

// computeTarget derives one target's metrics from its ordered samples.
func computeTarget(target string, samples []navlog.Sample, startX, startZ float64) MetricRecord {
	var total, orientation float64
	for _, s := range samples {
		total += s.TimeDiff
		// Exact equality: the engine reports the start pose verbatim until
		// the first teleport.
		if s.X == startX && s.Z == startZ {
			orientation += s.TimeDiff
		}
	}
	navigation := total - orientation

	// Unique positions in first-visit order. Standing still or revisiting a
	// position adds nothing to the travelled path.
	type position struct{ x, z float64 }
	seen := make(map[position]bool, len(samples))
	path := make([]position, 0, len(samples))
	for _, s := range samples {
		p := position{s.X, s.Z}
		if seen[p] {
			continue
		}
		seen[p] = true
		path = append(path, p)
	}

	var distance float64
	for i := 1; i < len(path); i++ {
		dx := path[i].x - path[i-1].x
		dz := path[i].z - path[i-1].z
		distance += math.Sqrt(dx*dx + dz*dz)
	}
	teleports := len(path)

	rec := MetricRecord{
		Target:          target,
		TotalTime:       Num(total),
		OrientationTime: Num(orientation),
		NavigationTime:  Num(navigation),
		Distance:        Num(distance),
		Teleportations:  Num(float64(teleports)),
	}
	if navigation != 0 {
		rec.Speed = Num(distance / navigation)
	}
	if teleports > 0 {
		rec.MeanDwell = Num(total / float64(teleports))
	}
	if teleports > 1 {
		rec.MeanTeleportDistance = Num(distance / float64(teleports-1))
	}
	if navigation < 0 {
		rec.Warning = "negative navigation time"
	}
	return rec
}
