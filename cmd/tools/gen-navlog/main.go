// Command gen-navlog generates synthetic raw navigation block logs for
// exercising the analysis pipeline.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/npresearchlab/navcity-analysis/internal/config"
	"github.com/npresearchlab/navcity-analysis/internal/navlog"
)

func main() {
	output := flag.String("o", "testdata", "output folder")
	participants := flag.Int("n", 2, "number of participants")
	seed := flag.Int64("seed", 1, "random seed")
	cfgPath := flag.String("config", "", "study configuration JSON file")
	flag.Parse()

	cfg := config.EmptyStudyConfig()
	if *cfgPath != "" {
		var err error
		cfg, err = config.LoadStudyConfig(*cfgPath)
		if err != nil {
			log.Fatalf("failed to load study config: %v", err)
		}
	}

	rng := rand.New(rand.NewSource(*seed))
	prefixes := cfg.GetParticipantPrefixes()
	for i := 1; i <= *participants; i++ {
		pid := fmt.Sprintf("%s%02d", prefixes[(i-1)%len(prefixes)], i)
		dir := filepath.Join(*output, pid)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create %s: %v", dir, err)
		}
		for block := 1; block <= cfg.GetBlocks(); block++ {
			path := navlog.BlockFilePath(*output, pid, block, cfg)
			if err := writeBlock(path, rng, cfg); err != nil {
				log.Fatalf("failed to write %s: %v", path, err)
			}
			log.Printf("✓ Created: %s", path)
		}
	}
}

// writeBlock writes one raw block file: the header, the device metadata
// rows, then one trial per target ending in a sentinel row. The Euler
// triple is parenthesized across three cells, as the capture tool logs it.
func writeBlock(path string, rng *rand.Rand, cfg *config.StudyConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	cols := cfg.GetRawColumns()
	if err := w.Write([]string{cols.Time, cols.X, cols.Z, cols.XEuler, cols.YEuler, cols.ZEuler, cols.Target}); err != nil {
		return err
	}
	for i := 0; i < cfg.GetMetadataRows(); i++ {
		if err := w.Write([]string{"0", "0", "0", "(0", "0", "0)", "device-meta"}); err != nil {
			return err
		}
	}

	t := 0.0
	for _, target := range cfg.GetTargets() {
		x, z := cfg.GetStartX(), cfg.GetStartZ()

		// A few frames of looking around before the first teleport.
		for i := 0; i < 2+rng.Intn(3); i++ {
			t += 0.3 + rng.Float64()
			if err := w.Write(sampleRow(t, x, z, rng, target)); err != nil {
				return err
			}
		}

		// Teleport hops toward a waypoint somewhere on the map.
		wx := -70 + rng.Float64()*140
		wz := -50 + rng.Float64()*120
		for i := 0; i < 3+rng.Intn(5); i++ {
			t += 0.5 + 2*rng.Float64()
			x += (wx - x) * (0.3 + 0.4*rng.Float64())
			z += (wz - z) * (0.3 + 0.4*rng.Float64())
			if err := w.Write(sampleRow(t, x, z, rng, target)); err != nil {
				return err
			}
		}

		t += 0.5 + rng.Float64()
		if err := w.Write(sampleRow(t, x, z, rng, cfg.GetSentinel())); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func sampleRow(t, x, z float64, rng *rand.Rand, target string) []string {
	pitch := -10 + rng.Float64()*20
	yaw := rng.Float64() * 360
	roll := -5 + rng.Float64()*10
	return []string{
		num(t), num(x), num(z),
		"(" + num(pitch), num(yaw), num(roll) + ")",
		target,
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
