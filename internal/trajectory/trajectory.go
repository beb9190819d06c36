// Package trajectory reshapes block logs into per-target position tables.
//
// For each (participant, block, target) the retained rows are the unique
// positions, keeping the last occurrence of each, in order of last
// occurrence. Tables accumulate across participants into per-block files and
// an all-blocks file per target under the Target_Data folder.
package trajectory

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/npresearchlab/navcity-analysis/internal/config"
	"github.com/npresearchlab/navcity-analysis/internal/metrics"
	"github.com/npresearchlab/navcity-analysis/internal/navlog"
)

// DirName is the folder under the output directory holding target tables.
const DirName = "Target_Data"

// Point is one trajectory table row.
type Point struct {
	Participant string
	Block       int
	X           float64
	Z           float64
	Target      string
}

// FileName returns the table file name for a block selector ("b1", "b2",
// "all", ...) and target, e.g. "b1_Bank_results.csv". Target names appear
// verbatim, including any embedded or trailing spaces.
func FileName(selector, target string) string {
	return fmt.Sprintf("%s_%s_results.csv", selector, target)
}

// FromBlock extracts one block log's per-target trajectories. The returned
// map holds only targets with data.
func FromBlock(bl *navlog.BlockLog, cfg *config.StudyConfig) map[string][]Point {
	byTarget := make(map[string][]navlog.Sample)
	for _, s := range bl.Samples {
		byTarget[s.Target] = append(byTarget[s.Target], s)
	}

	out := make(map[string][]Point)
	for _, target := range cfg.GetTargets() {
		samples, ok := byTarget[target]
		if !ok {
			continue
		}
		deduped := dedupeKeepLast(samples)
		points := make([]Point, 0, len(deduped))
		for _, s := range deduped {
			points = append(points, Point{
				Participant: bl.Participant,
				Block:       bl.Block,
				X:           s.X,
				Z:           s.Z,
				Target:      s.Target,
			})
		}
		out[target] = points
	}
	return out
}

// dedupeKeepLast keeps the last occurrence of each (X, Z) position, rows
// emerging in order of last occurrence.
func dedupeKeepLast(samples []navlog.Sample) []navlog.Sample {
	type pos struct{ x, z float64 }
	last := make(map[pos]int, len(samples))
	for i, s := range samples {
		last[pos{s.X, s.Z}] = i
	}
	out := make([]navlog.Sample, 0, len(last))
	for i, s := range samples {
		if last[pos{s.X, s.Z}] == i {
			out = append(out, s)
		}
	}
	return out
}

// Collector accumulates trajectory points across participants and blocks.
type Collector struct {
	cfg      *config.StudyConfig
	perBlock map[int]map[string][]Point
	all      map[string][]Point
}

// NewCollector returns an empty Collector.
func NewCollector(cfg *config.StudyConfig) *Collector {
	return &Collector{
		cfg:      cfg,
		perBlock: make(map[int]map[string][]Point),
		all:      make(map[string][]Point),
	}
}

// Add extracts and stores one block log's trajectories.
func (c *Collector) Add(bl *navlog.BlockLog) {
	tables := FromBlock(bl, c.cfg)
	if len(tables) == 0 {
		return
	}
	block := c.perBlock[bl.Block]
	if block == nil {
		block = make(map[string][]Point)
		c.perBlock[bl.Block] = block
	}
	for target, points := range tables {
		block[target] = append(block[target], points...)
		c.all[target] = append(c.all[target], points...)
	}
}

// WriteAll writes every non-empty table under outputDir/Target_Data and
// returns the created file paths: per-block files first (blocks ascending,
// targets in canonical order), then the all-blocks files.
func (c *Collector) WriteAll(outputDir string) ([]string, error) {
	dir := filepath.Join(outputDir, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	var created []string
	for block := 1; block <= c.cfg.GetBlocks(); block++ {
		tables := c.perBlock[block]
		for _, target := range c.cfg.GetTargets() {
			points := tables[target]
			if len(points) == 0 {
				continue
			}
			path := filepath.Join(dir, FileName(fmt.Sprintf("b%d", block), target))
			if err := WriteCSV(path, points); err != nil {
				return created, err
			}
			created = append(created, path)
		}
	}
	for _, target := range c.cfg.GetTargets() {
		points := c.all[target]
		if len(points) == 0 {
			continue
		}
		path := filepath.Join(dir, FileName("all", target))
		if err := WriteCSV(path, points); err != nil {
			return created, err
		}
		created = append(created, path)
	}
	return created, nil
}

// WriteCSV writes one trajectory table to path.
func WriteCSV(path string, points []Point) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trajectory file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Participant", "Block_num", "X", "Z", "Target_Name"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			p.Participant,
			strconv.Itoa(p.Block),
			metrics.Num(p.X).String(),
			metrics.Num(p.Z).String(),
			p.Target,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV reads a trajectory table back from path.
func ReadCSV(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("trajectory file %s is empty", path)
	}

	points := make([]Point, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != 5 {
			return nil, fmt.Errorf("trajectory file %s line %d: %d fields, want 5", path, i+2, len(rec))
		}
		block, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("trajectory file %s line %d: invalid block: %w", path, i+2, err)
		}
		x, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("trajectory file %s line %d: invalid X: %w", path, i+2, err)
		}
		z, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("trajectory file %s line %d: invalid Z: %w", path, i+2, err)
		}
		points = append(points, Point{Participant: rec[0], Block: block, X: x, Z: z, Target: rec[4]})
	}
	return points, nil
}
