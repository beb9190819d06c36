package plots

import (
	"image/color"
	"testing"

	"github.com/npresearchlab/navcity-analysis/internal/config"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{in: "#000000", want: color.RGBA{A: 255}},
		{in: "#ff0010", want: color.RGBA{R: 255, G: 0, B: 16, A: 255}},
		{in: "#00b9ff", want: color.RGBA{R: 0, G: 185, B: 255, A: 255}},
		{in: "#034cb4", want: color.RGBA{R: 3, G: 76, B: 180, A: 255}},
		{in: "", wantErr: true},
		{in: "ff0010", wantErr: true},
		{in: "#ff001", wantErr: true},
		{in: "#gg0010", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseHexColor(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseHexColor(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGenerateColors(t *testing.T) {
	colors := generateColors(8)
	if len(colors) != 8 {
		t.Fatalf("expected 8 colors, got %d", len(colors))
	}
	seen := make(map[color.Color]bool)
	for i, c := range colors {
		if seen[c] {
			t.Errorf("color %d duplicates an earlier color: %v", i, c)
		}
		seen[c] = true
		rgba, ok := c.(color.RGBA)
		if !ok {
			t.Fatalf("color %d is not RGBA: %T", i, c)
		}
		if rgba.A != 255 {
			t.Errorf("color %d alpha = %d, want 255", i, rgba.A)
		}
	}

	if got := generateColors(0); got != nil {
		t.Errorf("generateColors(0) = %v, want nil", got)
	}
}

func TestHSLToRGB(t *testing.T) {
	// Zero saturation is a pure gray.
	r, g, b := hslToRGB(0.5, 0, 0.5)
	if r != 127 || g != 127 || b != 127 {
		t.Errorf("gray = (%d,%d,%d), want (127,127,127)", r, g, b)
	}

	// Hue zero at the palette's saturation and lightness is red-dominant.
	r, g, b = hslToRGB(0, 0.7, 0.5)
	if r <= g || r <= b {
		t.Errorf("hue 0 = (%d,%d,%d), want red channel dominant", r, g, b)
	}
	if g != b {
		t.Errorf("hue 0 = (%d,%d,%d), want green == blue", r, g, b)
	}
}

func TestPaletteFor(t *testing.T) {
	cfg := config.EmptyStudyConfig()
	palette := paletteFor([]string{"Bank", "Mystery Cafe"}, cfg)

	want := color.RGBA{R: 146, G: 80, B: 251, A: 255}
	if palette["Bank"] != want {
		t.Errorf("Bank = %v, want configured %v", palette["Bank"], want)
	}

	generated, ok := palette["Mystery Cafe"].(color.RGBA)
	if !ok {
		t.Fatalf("Mystery Cafe color missing from palette")
	}
	if generated.A != 255 {
		t.Errorf("generated alpha = %d, want 255", generated.A)
	}
	if generated == want {
		t.Error("generated color collides with the configured Bank color")
	}
}
