// Package pipeline drives the analysis steps over one or more study data
// folders: per-block metrics, merge, average, trajectory extraction, plots,
// the HTML report, and the post-analysis cleanup.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/npresearchlab/navcity-analysis/internal/aggregate"
	"github.com/npresearchlab/navcity-analysis/internal/config"
	"github.com/npresearchlab/navcity-analysis/internal/metrics"
	"github.com/npresearchlab/navcity-analysis/internal/monitoring"
	"github.com/npresearchlab/navcity-analysis/internal/navdb"
	"github.com/npresearchlab/navcity-analysis/internal/navlog"
	"github.com/npresearchlab/navcity-analysis/internal/plots"
	"github.com/npresearchlab/navcity-analysis/internal/postprocess"
	"github.com/npresearchlab/navcity-analysis/internal/report"
	"github.com/npresearchlab/navcity-analysis/internal/timeutil"
	"github.com/npresearchlab/navcity-analysis/internal/trajectory"
)

// Step names accepted by Run, in execution order.
const (
	StepMetrics      = "metrics"
	StepMerge        = "merge"
	StepAverage      = "average"
	StepTrajectories = "trajectories"
	StepPlots        = "plots"
	StepReport       = "report"
	StepPostProcess  = "post-process"
)

// AllSteps lists every known step in execution order.
var AllSteps = []string{
	StepMetrics,
	StepMerge,
	StepAverage,
	StepTrajectories,
	StepPlots,
	StepReport,
	StepPostProcess,
}

// DefaultSteps is what runs when no steps are selected. Post-processing
// moves and rewrites result files across folders, so it stays opt-in.
var DefaultSteps = []string{
	StepMetrics,
	StepMerge,
	StepAverage,
	StepTrajectories,
	StepPlots,
	StepReport,
}

// ValidateSteps rejects unknown step names.
func ValidateSteps(steps []string) error {
	for _, s := range steps {
		if !hasStep(AllSteps, s) {
			return fmt.Errorf("unknown step %q (valid steps: %s)", s, strings.Join(AllSteps, ", "))
		}
	}
	return nil
}

func hasStep(steps []string, name string) bool {
	for _, s := range steps {
		if s == name {
			return true
		}
	}
	return false
}

// Summary is the accounting for one Run. Errors counts input files that
// could not be processed plus step-level failures; a non-zero count means
// the run's exit status should be non-zero.
type Summary struct {
	Participants int
	FilesCreated int
	Warnings     int
	Errors       int
	Elapsed      time.Duration

	failedFiles map[string]bool
}

// fileFailed records a raw input file that could not be processed. A file
// that fails in several steps counts once.
func (s *Summary) fileFailed(path string) {
	if s.failedFiles == nil {
		s.failedFiles = make(map[string]bool)
	}
	if s.failedFiles[path] {
		return
	}
	s.failedFiles[path] = true
	s.Errors++
}

// Pipeline runs analysis steps with a shared study config.
type Pipeline struct {
	Config *config.StudyConfig
	Clock  timeutil.Clock

	// DB, when set, records each run and its merged and averaged metrics
	// for later querying. Persistence failures are warnings, never fatal.
	DB *navdb.DB

	runID string
}

// New returns a Pipeline using the real clock.
func New(cfg *config.StudyConfig) *Pipeline {
	return &Pipeline{Config: cfg, Clock: timeutil.RealClock{}}
}

// Options configures a Run.
type Options struct {
	// DataFolders are the input folders, each holding raw block files.
	DataFolders []string

	// OutputDir overrides the per-folder output location. With several
	// data folders each one gets a subdirectory named after its folder.
	OutputDir string

	// BaseFolder is where post-processing runs. Empty means the parent
	// of the first data folder.
	BaseFolder string

	// Steps selects the steps to run. Empty means DefaultSteps.
	Steps []string
}

// Run executes the selected steps over every data folder and returns the
// run's accounting. Per-file failures are counted and skipped; a folder
// that fails at the step level is abandoned without aborting its siblings.
func (p *Pipeline) Run(opts Options) *Summary {
	start := p.Clock.Now()
	monitoring.ResetWarnings()

	steps := opts.Steps
	if len(steps) == 0 {
		steps = DefaultSteps
	}

	sum := &Summary{}
	p.runID = p.beginRun(opts, steps)

	for _, folder := range opts.DataFolders {
		if _, err := os.Stat(folder); err != nil {
			monitoring.Warnf("Folder not found: %s", folder)
			sum.Errors++
			continue
		}
		if err := p.ProcessFolder(folder, p.outputDirFor(folder, opts), steps, sum); err != nil {
			sum.Errors++
			monitoring.Logf("Error processing %s: %v", folder, err)
		}
	}

	if hasStep(steps, StepPostProcess) {
		p.runPostProcess(opts, sum)
	}

	sum.Warnings = int(monitoring.WarningCount())
	sum.Elapsed = p.Clock.Since(start)
	p.completeRun(sum)
	p.logSummary(sum)
	return sum
}

// outputDirFor resolves where one data folder's results go.
func (p *Pipeline) outputDirFor(folder string, opts Options) string {
	if opts.OutputDir == "" {
		return folder
	}
	if len(opts.DataFolders) > 1 {
		return filepath.Join(opts.OutputDir, filepath.Base(folder))
	}
	return opts.OutputDir
}

// ProcessFolder runs the per-folder steps over one data folder, writing
// results under outputDir. Step-level failures abort the folder.
func (p *Pipeline) ProcessFolder(dataFolder, outputDir string, steps []string, sum *Summary) error {
	hash := strings.Repeat("#", 60)
	monitoring.Logf("%s", hash)
	monitoring.Logf("Processing: %s", dataFolder)
	if outputDir != dataFolder {
		monitoring.Logf("Output to: %s", outputDir)
	}
	monitoring.Logf("%s", hash)

	participants, err := navlog.DiscoverParticipants(dataFolder, p.Config)
	if err != nil {
		return err
	}
	preview := participants
	if len(preview) > 5 {
		preview = preview[:5]
	}
	monitoring.Logf("Found %d participants: %v...", len(participants), preview)
	if len(participants) == 0 {
		monitoring.Warnf("No participants found in folder")
		return nil
	}
	sum.Participants += len(participants)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	if hasStep(steps, StepMetrics) {
		stepBanner("Step 1: Calculating metrics for all participants...")
		p.runMetrics(dataFolder, outputDir, participants, sum)
	}
	if hasStep(steps, StepMerge) {
		stepBanner("Step 2: Merging block results...")
		if err := p.runMerge(outputDir, participants, sum); err != nil {
			return err
		}
	}
	if hasStep(steps, StepAverage) {
		stepBanner("Step 3: Averaging metrics across targets...")
		if err := p.runAverage(outputDir, participants, sum); err != nil {
			return err
		}
	}
	if hasStep(steps, StepTrajectories) {
		stepBanner("Step 4: Extracting target trajectories...")
		if err := p.runTrajectories(dataFolder, outputDir, participants, sum); err != nil {
			return err
		}
	}
	if hasStep(steps, StepPlots) {
		stepBanner("Step 5: Generating plots...")
		if err := p.runPlots(dataFolder, outputDir, participants, sum); err != nil {
			return err
		}
	}
	if hasStep(steps, StepReport) {
		stepBanner("Step 6: Building analysis report...")
		if err := p.runReport(outputDir, sum); err != nil {
			return err
		}
	}
	return nil
}

func stepBanner(title string) {
	eq := strings.Repeat("=", 60)
	monitoring.Logf("%s", eq)
	monitoring.Logf("%s", title)
	monitoring.Logf("%s", eq)
}

// runMetrics computes and writes per-block results for every participant.
// Failures here are per-file: counted, logged, and skipped.
func (p *Pipeline) runMetrics(dataFolder, outputDir string, participants []string, sum *Summary) {
	blocks := p.Config.GetBlocks()
	total := len(participants) * blocks
	count := 0
	for _, pid := range participants {
		for block := 1; block <= blocks; block++ {
			count++
			rawPath := navlog.BlockFilePath(dataFolder, pid, block, p.Config)
			if _, err := os.Stat(rawPath); err != nil {
				monitoring.Warnf("[%d/%d] Data not found for %s block %d", count, total, pid, block)
				sum.fileFailed(rawPath)
				continue
			}
			bl, err := navlog.ReadBlockFile(rawPath, pid, block, p.Config)
			if err != nil {
				monitoring.Logf("[%d/%d] Error processing %s block %d: %v", count, total, pid, block, err)
				sum.fileFailed(rawPath)
				continue
			}
			warnUnknownTargets(bl)

			records := metrics.Compute(bl, p.Config)
			for _, rec := range records {
				if rec.Warning != "" {
					monitoring.Warnf("%s block %d %s: %s", pid, block, rec.Target, rec.Warning)
				}
			}

			pidDir := filepath.Join(outputDir, pid)
			if err := os.MkdirAll(pidDir, 0o755); err != nil {
				monitoring.Logf("[%d/%d] Error processing %s block %d: %v", count, total, pid, block, err)
				sum.fileFailed(rawPath)
				continue
			}
			outPath := filepath.Join(pidDir, metrics.BlockResultsName(block))
			if err := metrics.WriteBlockCSV(outPath, records); err != nil {
				monitoring.Logf("[%d/%d] Error processing %s block %d: %v", count, total, pid, block, err)
				sum.fileFailed(rawPath)
				continue
			}
			sum.FilesCreated++
			monitoring.Logf("[%d/%d] Created: %s", count, total, outPath)
		}
	}
}

// warnUnknownTargets reports rows whose target name is not canonical. The
// rows stay out of canonical output but must not vanish silently.
func warnUnknownTargets(bl *navlog.BlockLog) {
	names := make([]string, 0, len(bl.UnknownTargets))
	for name := range bl.UnknownTargets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		monitoring.Warnf("%s block %d: %d rows with unrecognized target %q", bl.Participant, bl.Block, bl.UnknownTargets[name], name)
	}
}

func (p *Pipeline) runMerge(outputDir string, participants []string, sum *Summary) error {
	rows, err := aggregate.Merge(outputDir, participants, p.Config)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		monitoring.Warnf("No data to merge")
		return nil
	}
	path := filepath.Join(outputDir, aggregate.MergedFileName)
	if err := aggregate.WriteMergedCSV(path, rows); err != nil {
		return err
	}
	sum.FilesCreated++
	monitoring.Logf("Created: %s", path)
	monitoring.Logf("Total rows: %d", len(rows))
	p.recordBlockMetrics(rows)
	return nil
}

// runAverage recomputes its input from the block files rather than the
// merged table so the step can run on its own.
func (p *Pipeline) runAverage(outputDir string, participants []string, sum *Summary) error {
	rows, err := aggregate.Merge(outputDir, participants, p.Config)
	if err != nil {
		return err
	}
	averaged := aggregate.Average(rows)
	if len(averaged) == 0 {
		monitoring.Warnf("No data to average")
		return nil
	}
	path := filepath.Join(outputDir, aggregate.AveragedFileName)
	if err := aggregate.WriteAveragedCSV(path, averaged); err != nil {
		return err
	}
	sum.FilesCreated++
	monitoring.Logf("Created: %s", path)
	monitoring.Logf("Total rows: %d", len(averaged))
	p.recordAveragedMetrics(averaged)
	return nil
}

func (p *Pipeline) runTrajectories(dataFolder, outputDir string, participants []string, sum *Summary) error {
	collector := trajectory.NewCollector(p.Config)
	blocks := p.Config.GetBlocks()
	for _, pid := range participants {
		for block := 1; block <= blocks; block++ {
			rawPath := navlog.BlockFilePath(dataFolder, pid, block, p.Config)
			if _, err := os.Stat(rawPath); err != nil {
				monitoring.Warnf("Data not found for %s block %d", pid, block)
				sum.fileFailed(rawPath)
				continue
			}
			bl, err := navlog.ReadBlockFile(rawPath, pid, block, p.Config)
			if err != nil {
				monitoring.Logf("Error processing %s block %d: %v", pid, block, err)
				sum.fileFailed(rawPath)
				continue
			}
			collector.Add(bl)
		}
	}

	created, err := collector.WriteAll(outputDir)
	if err != nil {
		return err
	}
	for _, path := range created {
		monitoring.Logf("Created: %s", path)
	}
	sum.FilesCreated += len(created)
	return nil
}

func (p *Pipeline) runPlots(dataFolder, outputDir string, participants []string, sum *Summary) error {
	monitoring.Logf("Generating participant movement plots...")
	blocks := p.Config.GetBlocks()
	for _, pid := range participants {
		for block := 1; block <= blocks; block++ {
			rawPath := navlog.BlockFilePath(dataFolder, pid, block, p.Config)
			if _, err := os.Stat(rawPath); err != nil {
				monitoring.Warnf("Data not found for %s block %d", pid, block)
				sum.fileFailed(rawPath)
				continue
			}
			bl, err := navlog.ReadBlockFile(rawPath, pid, block, p.Config)
			if err != nil {
				monitoring.Logf("Error processing %s block %d: %v", pid, block, err)
				sum.fileFailed(rawPath)
				continue
			}
			pidDir := filepath.Join(outputDir, pid)
			if err := os.MkdirAll(pidDir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", pidDir, err)
			}
			plotPath := filepath.Join(pidDir, plots.MovementPlotName(block))
			if err := plots.MovementPlot(bl, plotPath, p.Config); err != nil {
				monitoring.Logf("Error processing %s block %d: %v", pid, block, err)
				sum.fileFailed(rawPath)
				continue
			}
			sum.FilesCreated++
			monitoring.Logf("Created: %s", plotPath)
		}
	}

	monitoring.Logf("Generating target maps...")
	created, err := plots.TargetMaps(outputDir, p.Config)
	if err != nil {
		return err
	}
	for _, path := range created {
		monitoring.Logf("Created: %s", path)
	}
	sum.FilesCreated += len(created)
	return nil
}

func (p *Pipeline) runReport(outputDir string, sum *Summary) error {
	if _, err := os.Stat(filepath.Join(outputDir, aggregate.AveragedFileName)); err != nil {
		monitoring.Warnf("No averaged results to report")
		return nil
	}
	path, err := report.Build(outputDir)
	if err != nil {
		return err
	}
	sum.FilesCreated++
	monitoring.Logf("Created: %s", path)
	return nil
}

// runPostProcess runs the cleanup over the base folder holding the age
// group folders. Its failures count as run errors but are not fatal.
func (p *Pipeline) runPostProcess(opts Options, sum *Summary) {
	base := opts.BaseFolder
	if base == "" && len(opts.DataFolders) > 0 {
		base = filepath.Dir(opts.DataFolders[0])
	}
	if base == "" {
		monitoring.Warnf("Cannot run post-process without valid base folder")
		return
	}
	if _, err := os.Stat(base); err != nil {
		monitoring.Warnf("Cannot run post-process without valid base folder")
		return
	}
	stepBanner("Step 7: Post-processing cleanup...")
	if err := postprocess.Run(base, p.Config); err != nil {
		sum.Errors++
		monitoring.Logf("Error in post-processing: %v", err)
	}
}

func (p *Pipeline) logSummary(sum *Summary) {
	eq := strings.Repeat("=", 60)
	monitoring.Logf("%s", eq)
	monitoring.Logf("Analysis Summary")
	monitoring.Logf("%s", eq)
	monitoring.Logf("Participants:  %d", sum.Participants)
	monitoring.Logf("Files created: %d", sum.FilesCreated)
	monitoring.Logf("Warnings:      %d", sum.Warnings)
	monitoring.Logf("Errors:        %d", sum.Errors)
	monitoring.Logf("Elapsed:       %s", sum.Elapsed.Round(time.Millisecond))
	monitoring.Logf("Analysis complete!")
}

func (p *Pipeline) beginRun(opts Options, steps []string) string {
	if p.DB == nil {
		return ""
	}
	run := &navdb.Run{
		DataFolder:   strings.Join(opts.DataFolders, ","),
		OutputFolder: opts.OutputDir,
		Steps:        strings.Join(steps, ","),
	}
	if err := navdb.NewRunStore(p.DB).Begin(run); err != nil {
		monitoring.Warnf("failed to record run: %v", err)
		return ""
	}
	return run.RunID
}

func (p *Pipeline) completeRun(sum *Summary) {
	if p.DB == nil || p.runID == "" {
		return
	}
	run := &navdb.Run{
		RunID:        p.runID,
		Participants: sum.Participants,
		FilesCreated: sum.FilesCreated,
		Warnings:     sum.Warnings,
		Errors:       sum.Errors,
	}
	if err := navdb.NewRunStore(p.DB).Complete(run); err != nil {
		monitoring.Warnf("failed to record run completion: %v", err)
	}
}

func (p *Pipeline) recordBlockMetrics(rows []aggregate.Row) {
	if p.DB == nil || p.runID == "" {
		return
	}
	if err := navdb.NewMetricsStore(p.DB).InsertBlockMetrics(p.runID, rows); err != nil {
		monitoring.Warnf("failed to record block metrics: %v", err)
	}
}

func (p *Pipeline) recordAveragedMetrics(rows []aggregate.AveragedRow) {
	if p.DB == nil || p.runID == "" {
		return
	}
	if err := navdb.NewMetricsStore(p.DB).InsertAveragedMetrics(p.runID, rows); err != nil {
		monitoring.Warnf("failed to record averaged metrics: %v", err)
	}
}
