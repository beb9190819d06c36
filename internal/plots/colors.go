package plots

import (
	"fmt"
	"image/color"

	"github.com/npresearchlab/navcity-analysis/internal/config"
)

// ParseHexColor parses a #rrggbb display color into an opaque RGBA.
func ParseHexColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// paletteFor assigns each name its configured display color; names outside
// the color table get procedurally generated distinct colors.
func paletteFor(names []string, cfg *config.StudyConfig) map[string]color.Color {
	configured := cfg.GetTargetColors()
	palette := make(map[string]color.Color, len(names))
	var missing []string
	for _, name := range names {
		if c, err := ParseHexColor(configured[name]); err == nil {
			palette[name] = c
		} else {
			missing = append(missing, name)
		}
	}
	for i, c := range generateColors(len(missing)) {
		palette[missing[i]] = c
	}
	return palette
}

// generateColors creates a palette of distinct colors by walking the hue
// circle at fixed saturation and lightness.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
