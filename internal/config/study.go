package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StudyConfig carries the constants of one navigation study: the canonical
// target order, start position, block range, raw file schema, display colors
// and the post-processing corrections. All fields are optional; the Get*
// methods supply the NavCity defaults, so a partial JSON file only overrides
// what it names.
type StudyConfig struct {
	// Targets is the canonical target visit order. Metric rows are emitted
	// in this order.
	Targets []string `json:"targets,omitempty"`

	// TargetColors maps target names to #rrggbb display colors.
	TargetColors map[string]string `json:"target_colors,omitempty"`

	// Start position of every trial. Orientation time is accumulated while
	// the participant is exactly at this position.
	StartX *float64 `json:"start_x,omitempty"`
	StartZ *float64 `json:"start_z,omitempty"`

	// Blocks is the number of blocks per session (1..Blocks).
	Blocks *int `json:"blocks,omitempty"`

	// MetadataRows is the number of device metadata rows at the top of each
	// raw file, skipped before parsing.
	MetadataRows *int `json:"metadata_rows,omitempty"`

	// Sentinel is the target value marking mission-complete rows.
	Sentinel *string `json:"sentinel,omitempty"`

	// ParticipantPrefixes are the directory name prefixes that identify
	// participant folders inside a data folder.
	ParticipantPrefixes []string `json:"participant_prefixes,omitempty"`

	// RawFilePattern names raw block files; %s is the participant id and
	// %d the block number.
	RawFilePattern *string `json:"raw_file_pattern,omitempty"`

	// RawColumns maps the raw CSV header names.
	RawColumns *RawSchema `json:"raw_columns,omitempty"`

	// Plot axis limits shared by movement plots and target maps.
	PlotXMin *float64 `json:"plot_x_min,omitempty"`
	PlotXMax *float64 `json:"plot_x_max,omitempty"`
	PlotZMin *float64 `json:"plot_z_min,omitempty"`
	PlotZMax *float64 `json:"plot_z_max,omitempty"`

	// AgeGroups drive post-processing organization and combination.
	AgeGroups []AgeGroup `json:"age_groups,omitempty"`

	// Corrections are known bad cells nulled out during post-processing.
	Corrections []Correction `json:"corrections,omitempty"`
}

// RawSchema names the columns of the raw VR logger CSV.
type RawSchema struct {
	Time   string `json:"time"`
	X      string `json:"x"`
	Z      string `json:"z"`
	XEuler string `json:"x_euler"`
	YEuler string `json:"y_euler"`
	ZEuler string `json:"z_euler"`
	Target string `json:"target"`
}

// AgeGroup describes one cohort of the study.
type AgeGroup struct {
	// Prefix is the short file prefix, e.g. "ya" for ya_merged_results.csv.
	Prefix string `json:"prefix"`
	// Label is the value written into the Age_Group column, e.g. "Young".
	Label string `json:"label"`
	// Folder is the conventional data subfolder name, e.g. "YA_Data".
	Folder string `json:"folder"`
}

// Correction identifies one cell of the merged results known to be erroneous.
type Correction struct {
	Participant string `json:"participant"`
	Block       int    `json:"block"`
	Target      string `json:"target"`
	Column      string `json:"column"`
	// Group is the age-group prefix whose result files carry the row.
	Group string `json:"group"`
}

// NavCity defaults. The trailing space in "Police station " matches the raw
// logger output and must be preserved.
var defaultTargets = []string{
	"Automobile shop",
	"Police station ",
	"Fire Station",
	"Bank",
	"Pawn Shop",
	"Pizzeria",
	"Quattroki Restaurant",
	"High School",
}

var defaultTargetColors = map[string]string{
	"Automobile shop":      "#000000",
	"Police station ":      "#ff0010",
	"Fire Station":         "#ff55c2",
	"Bank":                 "#9250fb",
	"Pawn Shop":            "#00b9ff",
	"Pizzeria":             "#034cb4",
	"Quattroki Restaurant": "#00c359",
	"High School":          "#ff8a33",
}

var defaultRawColumns = RawSchema{
	Time:   "Lapsed Time",
	X:      "X",
	Z:      "Z",
	XEuler: "X Euler Angle",
	YEuler: "Y Euler Angle",
	ZEuler: "Z Euler Angle",
	Target: "Target Name",
}

var defaultAgeGroups = []AgeGroup{
	{Prefix: "ya", Label: "Young", Folder: "YA_Data"},
	{Prefix: "oa", Label: "Older", Folder: "OA_Data"},
}

var defaultCorrections = []Correction{
	{Participant: "BNC39", Block: 1, Target: "Pawn Shop", Column: "Orientation_Time", Group: "oa"},
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyStudyConfig returns a StudyConfig with all fields unset; every Get*
// accessor then yields the NavCity default.
func EmptyStudyConfig() *StudyConfig {
	return &StudyConfig{}
}

// LoadStudyConfig loads a StudyConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file keep their default values,
// so partial configs are safe.
func LoadStudyConfig(path string) (*StudyConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyStudyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *StudyConfig) Validate() error {
	if c.Targets != nil {
		seen := make(map[string]bool, len(c.Targets))
		for _, target := range c.Targets {
			if target == "" {
				return fmt.Errorf("target names must not be empty")
			}
			if seen[target] {
				return fmt.Errorf("duplicate target %q", target)
			}
			seen[target] = true
		}
	}

	for name, hex := range c.TargetColors {
		if !isHexColor(hex) {
			return fmt.Errorf("invalid color %q for target %q (want #rrggbb)", hex, name)
		}
	}

	if c.Blocks != nil && *c.Blocks < 1 {
		return fmt.Errorf("blocks must be at least 1, got %d", *c.Blocks)
	}

	if c.MetadataRows != nil && *c.MetadataRows < 0 {
		return fmt.Errorf("metadata_rows must be non-negative, got %d", *c.MetadataRows)
	}

	if c.RawFilePattern != nil {
		if !strings.Contains(*c.RawFilePattern, "%s") || !strings.Contains(*c.RawFilePattern, "%d") {
			return fmt.Errorf("raw_file_pattern must contain %%s and %%d, got %q", *c.RawFilePattern)
		}
	}

	if c.RawColumns != nil {
		cols := map[string]string{
			"time":    c.RawColumns.Time,
			"x":       c.RawColumns.X,
			"z":       c.RawColumns.Z,
			"x_euler": c.RawColumns.XEuler,
			"y_euler": c.RawColumns.YEuler,
			"z_euler": c.RawColumns.ZEuler,
			"target":  c.RawColumns.Target,
		}
		for key, name := range cols {
			if name == "" {
				return fmt.Errorf("raw_columns.%s must not be empty", key)
			}
		}
	}

	if c.PlotXMin != nil && c.PlotXMax != nil && *c.PlotXMin >= *c.PlotXMax {
		return fmt.Errorf("plot_x_min must be less than plot_x_max")
	}
	if c.PlotZMin != nil && c.PlotZMax != nil && *c.PlotZMin >= *c.PlotZMax {
		return fmt.Errorf("plot_z_min must be less than plot_z_max")
	}

	for _, g := range c.AgeGroups {
		if g.Prefix == "" || g.Label == "" || g.Folder == "" {
			return fmt.Errorf("age group fields must not be empty: %+v", g)
		}
	}

	for _, fix := range c.Corrections {
		if fix.Participant == "" || fix.Target == "" || fix.Column == "" {
			return fmt.Errorf("correction fields must not be empty: %+v", fix)
		}
		if fix.Block < 1 {
			return fmt.Errorf("correction block must be at least 1, got %d", fix.Block)
		}
	}

	return nil
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// GetTargets returns the canonical target order or the default.
func (c *StudyConfig) GetTargets() []string {
	if c.Targets == nil {
		return append([]string(nil), defaultTargets...)
	}
	return append([]string(nil), c.Targets...)
}

// GetTargetColors returns the target color table or the default.
func (c *StudyConfig) GetTargetColors() map[string]string {
	src := c.TargetColors
	if src == nil {
		src = defaultTargetColors
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// GetStartX returns the start_x value or the default.
func (c *StudyConfig) GetStartX() float64 {
	if c.StartX == nil {
		return 0
	}
	return *c.StartX
}

// GetStartZ returns the start_z value or the default.
func (c *StudyConfig) GetStartZ() float64 {
	if c.StartZ == nil {
		return -4.1
	}
	return *c.StartZ
}

// GetBlocks returns the blocks value or the default.
func (c *StudyConfig) GetBlocks() int {
	if c.Blocks == nil {
		return 3
	}
	return *c.Blocks
}

// GetMetadataRows returns the metadata_rows value or the default.
func (c *StudyConfig) GetMetadataRows() int {
	if c.MetadataRows == nil {
		return 3
	}
	return *c.MetadataRows
}

// GetSentinel returns the sentinel value or the default.
func (c *StudyConfig) GetSentinel() string {
	if c.Sentinel == nil {
		return "Mission complete"
	}
	return *c.Sentinel
}

// GetParticipantPrefixes returns the participant_prefixes value or the default.
func (c *StudyConfig) GetParticipantPrefixes() []string {
	if c.ParticipantPrefixes == nil {
		return []string{"BNC", "NAV"}
	}
	return append([]string(nil), c.ParticipantPrefixes...)
}

// GetRawFilePattern returns the raw_file_pattern value or the default.
func (c *StudyConfig) GetRawFilePattern() string {
	if c.RawFilePattern == nil {
		return "Saved_data_%s_t%d.csv"
	}
	return *c.RawFilePattern
}

// RawFileName renders the raw block file name for a participant and block.
func (c *StudyConfig) RawFileName(participant string, block int) string {
	return fmt.Sprintf(c.GetRawFilePattern(), participant, block)
}

// GetRawColumns returns the raw column schema or the default.
func (c *StudyConfig) GetRawColumns() RawSchema {
	if c.RawColumns == nil {
		return defaultRawColumns
	}
	return *c.RawColumns
}

// GetPlotXMin returns the plot_x_min value or the default.
func (c *StudyConfig) GetPlotXMin() float64 {
	if c.PlotXMin == nil {
		return -80
	}
	return *c.PlotXMin
}

// GetPlotXMax returns the plot_x_max value or the default.
func (c *StudyConfig) GetPlotXMax() float64 {
	if c.PlotXMax == nil {
		return 80
	}
	return *c.PlotXMax
}

// GetPlotZMin returns the plot_z_min value or the default.
func (c *StudyConfig) GetPlotZMin() float64 {
	if c.PlotZMin == nil {
		return -60
	}
	return *c.PlotZMin
}

// GetPlotZMax returns the plot_z_max value or the default.
func (c *StudyConfig) GetPlotZMax() float64 {
	if c.PlotZMax == nil {
		return 80
	}
	return *c.PlotZMax
}

// GetAgeGroups returns the age_groups value or the default.
func (c *StudyConfig) GetAgeGroups() []AgeGroup {
	if c.AgeGroups == nil {
		return append([]AgeGroup(nil), defaultAgeGroups...)
	}
	return append([]AgeGroup(nil), c.AgeGroups...)
}

// GetCorrections returns the corrections value or the default.
func (c *StudyConfig) GetCorrections() []Correction {
	if c.Corrections == nil {
		return append([]Correction(nil), defaultCorrections...)
	}
	return append([]Correction(nil), c.Corrections...)
}
