package navlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/npresearchlab/navcity-analysis/internal/config"
)

// DiscoverParticipants returns the participant directory names under
// dataFolder, sorted by name. A directory is a participant when its name
// starts with one of the configured prefixes.
func DiscoverParticipants(dataFolder string, cfg *config.StudyConfig) ([]string, error) {
	entries, err := os.ReadDir(dataFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to read data folder: %w", err)
	}

	prefixes := cfg.GetParticipantPrefixes()
	var participants []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(entry.Name(), prefix) {
				participants = append(participants, entry.Name())
				break
			}
		}
	}
	return participants, nil
}

// BlockFilePath returns the expected location of one raw block file.
func BlockFilePath(dataFolder, participant string, block int, cfg *config.StudyConfig) string {
	return filepath.Join(dataFolder, participant, cfg.RawFileName(participant, block))
}
