// Package main is the NavCity analysis command. It processes raw VR
// navigation logs through the full pipeline and writes metric tables,
// trajectory data, plots, and an HTML report next to the data (or into an
// output directory).
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/npresearchlab/navcity-analysis/internal/config"
	"github.com/npresearchlab/navcity-analysis/internal/monitoring"
	"github.com/npresearchlab/navcity-analysis/internal/navdb"
	"github.com/npresearchlab/navcity-analysis/internal/pipeline"
	"github.com/npresearchlab/navcity-analysis/internal/version"
)

// Config holds the command line configuration.
type Config struct {
	OutputDir   string
	BaseFolder  string
	StudyConfig string
	DBPath      string
	Steps       string
	Quiet       bool
	ShowVersion bool
}

func main() {
	cfg := parseFlags()

	if cfg.ShowVersion {
		fmt.Println(version.String())
		return
	}

	folders := flag.Args()
	if len(folders) == 0 && cfg.BaseFolder == "" {
		fmt.Fprintln(os.Stderr, "Error: must specify data folders or -base-folder")
		flag.Usage()
		os.Exit(1)
	}

	var steps []string
	if cfg.Steps != "" {
		steps = splitSteps(cfg.Steps)
		if err := pipeline.ValidateSteps(steps); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	study := config.EmptyStudyConfig()
	if cfg.StudyConfig != "" {
		var err error
		study, err = config.LoadStudyConfig(cfg.StudyConfig)
		if err != nil {
			log.Fatalf("Failed to load study config: %v", err)
		}
	}

	if cfg.Quiet {
		monitoring.SetLogger(nil)
		log.SetOutput(io.Discard)
	}

	p := pipeline.New(study)
	var db *navdb.DB
	if cfg.DBPath != "" {
		var err error
		db, err = navdb.Open(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open results database: %v", err)
		}
		p.DB = db
	}

	sum := p.Run(pipeline.Options{
		DataFolders: folders,
		OutputDir:   cfg.OutputDir,
		BaseFolder:  cfg.BaseFolder,
		Steps:       steps,
	})

	if db != nil {
		db.Close()
	}
	if sum.Errors > 0 {
		os.Exit(1)
	}
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.OutputDir, "output", "", "Output directory for results (default: each data folder)")
	flag.StringVar(&config.BaseFolder, "base-folder", "", "Base data folder (parent of the age group folders) for post-processing")
	flag.StringVar(&config.StudyConfig, "study-config", "", "Path to a study configuration JSON file")
	flag.StringVar(&config.DBPath, "db", "", "SQLite database path for recording runs (optional)")
	flag.StringVar(&config.Steps, "steps", "", "Comma-separated steps to run (default: all except post-process)")
	flag.BoolVar(&config.Quiet, "quiet", false, "Suppress progress output")
	flag.BoolVar(&config.Quiet, "q", false, "Suppress progress output (alias for -quiet)")
	flag.BoolVar(&config.ShowVersion, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] DATA_FOLDER...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "NavCity Navigation Analysis Pipeline\n\n")
		fmt.Fprintf(os.Stderr, "This tool processes raw VR navigation logs through the analysis pipeline:\n")
		fmt.Fprintf(os.Stderr, "  1. Calculate per-target metrics for each participant and block\n")
		fmt.Fprintf(os.Stderr, "  2. Merge block results into a single table\n")
		fmt.Fprintf(os.Stderr, "  3. Average metrics across targets per participant\n")
		fmt.Fprintf(os.Stderr, "  4. Extract target-specific trajectory data\n")
		fmt.Fprintf(os.Stderr, "  5. Generate movement plots and target maps\n")
		fmt.Fprintf(os.Stderr, "  6. Build an HTML report of the averaged results\n\n")
		fmt.Fprintf(os.Stderr, "Post-processing (opt-in via -steps) organizes result files by age\n")
		fmt.Fprintf(os.Stderr, "group, applies configured corrections, and combines the groups into\n")
		fmt.Fprintf(os.Stderr, "a single table. It runs on the base folder, not the data folders.\n\n")
		fmt.Fprintf(os.Stderr, "Available steps: %s\n\n", strings.Join(pipeline.AllSteps, ", "))
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s /data/YA_Data /data/OA_Data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -steps metrics,merge /data/YA_Data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -base-folder /data -steps post-process\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -output ./results -db results.db /data/YA_Data\n", os.Args[0])
	}

	flag.Parse()
	return config
}

// splitSteps parses the comma-separated -steps value, dropping empty parts
// so trailing commas are harmless.
func splitSteps(s string) []string {
	var steps []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			steps = append(steps, part)
		}
	}
	return steps
}
