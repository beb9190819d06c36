// Package plots renders overhead movement maps for navigation blocks and
// per-target trajectory maps using gonum/plot.
package plots

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/npresearchlab/navcity-analysis/internal/config"
	"github.com/npresearchlab/navcity-analysis/internal/monitoring"
	"github.com/npresearchlab/navcity-analysis/internal/navlog"
	"github.com/npresearchlab/navcity-analysis/internal/trajectory"
)

// MapsDirName is the folder under Target_Data holding rendered target maps.
const MapsDirName = "maps"

// MovementPlotName returns the image name for one block's movement plot.
func MovementPlotName(block int) string {
	return fmt.Sprintf("b%d_movement.png", block)
}

// MovementPlot renders a participant block as an overhead path, one line per
// target in the target's display color. Targets outside the configured color
// table get generated colors.
func MovementPlot(bl *navlog.BlockLog, path string, cfg *config.StudyConfig) error {
	canonical := make(map[string]bool)
	for _, name := range cfg.GetTargets() {
		canonical[name] = true
	}

	groups := make(map[string]plotter.XYs)
	var extras []string
	for _, s := range bl.Samples {
		if _, ok := groups[s.Target]; !ok && !canonical[s.Target] {
			extras = append(extras, s.Target)
		}
		groups[s.Target] = append(groups[s.Target], plotter.XY{X: s.X, Y: s.Z})
	}

	// Canonical targets draw first so legends share an order across plots.
	order := make([]string, 0, len(groups))
	for _, name := range cfg.GetTargets() {
		if _, ok := groups[name]; ok {
			order = append(order, name)
		}
	}
	order = append(order, extras...)
	palette := paletteFor(order, cfg)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Block %d", bl.Participant, bl.Block)
	p.X.Label.Text = "X Position"
	p.Y.Label.Text = "Z Position"
	p.X.Min, p.X.Max = cfg.GetPlotXMin(), cfg.GetPlotXMax()
	p.Y.Min, p.Y.Max = cfg.GetPlotZMin(), cfg.GetPlotZMax()

	for _, name := range order {
		line, err := plotter.NewLine(groups[name])
		if err != nil {
			return fmt.Errorf("failed to draw %s: %w", name, err)
		}
		line.Color = palette[name]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// TargetMap renders every traversal of one target for a block selector
// ("all" or "b<n>"), one translucent line per participant block.
func TargetMap(target, selector string, points []trajectory.Point, path string, cfg *config.StudyConfig) error {
	type groupKey struct {
		participant string
		block       int
	}
	groups := make(map[groupKey]plotter.XYs)
	for _, pt := range points {
		k := groupKey{pt.Participant, pt.Block}
		groups[k] = append(groups[k], plotter.XY{X: pt.X, Y: pt.Z})
	}
	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].participant != keys[j].participant {
			return keys[i].participant < keys[j].participant
		}
		return keys[i].block < keys[j].block
	})

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %s", target, selector)
	p.X.Label.Text = "X Position"
	p.Y.Label.Text = "Z Position"
	p.X.Min, p.X.Max = cfg.GetPlotXMin(), cfg.GetPlotXMax()
	p.Y.Min, p.Y.Max = cfg.GetPlotZMin(), cfg.GetPlotZMax()

	colors := generateColors(len(keys))
	for i, k := range keys {
		line, err := plotter.NewLine(groups[k])
		if err != nil {
			return fmt.Errorf("failed to draw %s block %d: %w", k.participant, k.block, err)
		}
		if rgba, ok := colors[i].(color.RGBA); ok {
			rgba.A = 128
			line.Color = rgba
		} else {
			line.Color = colors[i]
		}
		line.Width = vg.Points(0.8)
		p.Add(line)
	}

	if err := p.Save(10*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// MapSelectors lists the per-block selectors plus the combined "all" set.
func MapSelectors(cfg *config.StudyConfig) []string {
	selectors := []string{"all"}
	for b := 1; b <= cfg.GetBlocks(); b++ {
		selectors = append(selectors, fmt.Sprintf("b%d", b))
	}
	return selectors
}

// TargetMaps renders overhead maps for every block selector and target from
// the trajectory tables under outputDir. Tables that were never written are
// warnings, not failures. Returns the paths of the images created.
func TargetMaps(outputDir string, cfg *config.StudyConfig) ([]string, error) {
	targetDir := filepath.Join(outputDir, trajectory.DirName)
	var created []string
	for _, selector := range MapSelectors(cfg) {
		selectorDir := filepath.Join(targetDir, MapsDirName, selector)
		if err := os.MkdirAll(selectorDir, 0o755); err != nil {
			return created, fmt.Errorf("failed to create %s: %w", selectorDir, err)
		}
		for _, target := range cfg.GetTargets() {
			tablePath := filepath.Join(targetDir, trajectory.FileName(selector, target))
			if _, err := os.Stat(tablePath); err != nil {
				monitoring.Warnf("%s not found", tablePath)
				continue
			}
			points, err := trajectory.ReadCSV(tablePath)
			if err != nil {
				return created, err
			}
			if len(points) == 0 {
				continue
			}
			imgPath := filepath.Join(selectorDir, fmt.Sprintf("%s_%s.png", selector, target))
			if err := TargetMap(target, selector, points, imgPath, cfg); err != nil {
				return created, err
			}
			created = append(created, imgPath)
		}
	}
	return created, nil
}
