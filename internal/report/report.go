// Package report renders a standalone HTML summary of averaged navigation
// metrics using go-echarts: per-block metric bars, a speed against distance
// scatter, and age-group breakdowns when a combined table is present.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/npresearchlab/navcity-analysis/internal/aggregate"
	"github.com/npresearchlab/navcity-analysis/internal/metrics"
)

// FileName is the report written into an output folder.
const FileName = "report.html"

const pageTitle = "NavCity Analysis"

// seriesSet groups averaged rows under chart series labels, in render order.
type seriesSet struct {
	labels []string
	rows   map[string][]aggregate.AveragedRow
}

// Build renders the report under outputDir from its averaged results table.
// A combined averaged table adds age-group charts when present. Returns the
// path of the report written.
func Build(outputDir string) (string, error) {
	avgRows, err := aggregate.ReadAveragedCSV(filepath.Join(outputDir, aggregate.AveragedFileName))
	if err != nil {
		return "", err
	}

	blocks := byBlock(avgRows)
	subtitle := fmt.Sprintf("participants=%d rows=%d", countParticipants(avgRows), len(avgRows))

	page := components.NewPage()
	page.AddCharts(
		metricsBar("Averaged Metrics by Block", subtitle, blocks),
		metricsScatter("Speed vs Distance", subtitle, blocks),
	)

	combinedPath := filepath.Join(outputDir, aggregate.CombinedAveragedFileName)
	if _, err := os.Stat(combinedPath); err == nil {
		grouped, err := aggregate.ReadCombinedAveragedCSV(combinedPath)
		if err != nil {
			return "", err
		}
		groups := byGroup(grouped)
		groupSubtitle := fmt.Sprintf("groups=%d rows=%d", len(groups.labels), len(grouped))
		page.AddCharts(
			metricsBar("Averaged Metrics by Age Group", groupSubtitle, groups),
			metricsScatter("Speed vs Distance by Age Group", groupSubtitle, groups),
		)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	path := filepath.Join(outputDir, FileName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func countParticipants(rows []aggregate.AveragedRow) int {
	seen := make(map[string]bool)
	for _, r := range rows {
		seen[r.Participant] = true
	}
	return len(seen)
}

// byBlock groups rows into one series per block, blocks ascending.
func byBlock(rows []aggregate.AveragedRow) seriesSet {
	byNum := make(map[int][]aggregate.AveragedRow)
	var nums []int
	for _, r := range rows {
		if _, ok := byNum[r.Block]; !ok {
			nums = append(nums, r.Block)
		}
		byNum[r.Block] = append(byNum[r.Block], r)
	}
	sort.Ints(nums)

	set := seriesSet{rows: make(map[string][]aggregate.AveragedRow, len(nums))}
	for _, n := range nums {
		label := fmt.Sprintf("Block %d", n)
		set.labels = append(set.labels, label)
		set.rows[label] = byNum[n]
	}
	return set
}

// byGroup groups rows into one series per age group, in first-encounter order.
func byGroup(rows []aggregate.GroupedAveragedRow) seriesSet {
	set := seriesSet{rows: make(map[string][]aggregate.AveragedRow)}
	for _, r := range rows {
		if _, ok := set.rows[r.Group]; !ok {
			set.labels = append(set.labels, r.Group)
		}
		set.rows[r.Group] = append(set.rows[r.Group], r.AveragedRow)
	}
	return set
}

// columnMean averages one metric column across rows, skipping nulls.
func columnMean(rows []aggregate.AveragedRow, column string) (float64, bool) {
	var vals []float64
	for _, r := range rows {
		if v := r.Mean(column); v.Valid {
			vals = append(vals, v.Float64)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	return stat.Mean(vals, nil), true
}

// metricsBar charts the mean of every metric column, one bar series per label.
func metricsBar(title, subtitle string, set seriesSet) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: pageTitle, Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	bar.SetXAxis(metrics.Columns)
	for _, label := range set.labels {
		data := make([]opts.BarData, 0, len(metrics.Columns))
		for _, col := range metrics.Columns {
			if m, ok := columnMean(set.rows[label], col); ok {
				data = append(data, opts.BarData{Value: m})
			} else {
				data = append(data, opts.BarData{})
			}
		}
		bar.AddSeries(label, data)
	}
	return bar
}

// metricsScatter plots each row's mean speed against its mean distance, one
// scatter series per label. Rows missing either value are skipped.
func metricsScatter(title, subtitle string, set seriesSet) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: pageTitle, Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Distance", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Speed", NameLocation: "middle", NameGap: 30}),
	)

	for _, label := range set.labels {
		var pts []opts.ScatterData
		for _, r := range set.rows[label] {
			distance := r.Mean("Distance")
			speed := r.Mean("Speed")
			if !distance.Valid || !speed.Valid {
				continue
			}
			pts = append(pts, opts.ScatterData{Value: []interface{}{distance.Float64, speed.Float64, r.Participant}})
		}
		scatter.AddSeries(label, pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}
	return scatter
}
