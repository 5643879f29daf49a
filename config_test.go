package fractal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/fractal/kernel"
)

const tomlConfig = `
width = 640
height = 480
workers = 3
backend = "sequential"
palette = "fire"
target_frame_ms = 20.0

[view]
center_x = -0.75
center_y = 0.1
iterations = 4000
formula = "Burning Ship"
shading = "inverted shadow"
render_mode = "banded"
quality = 2.0
`

const yamlConfig = `
width: 320
height: 200
view:
  julia: true
  julia_x: -0.8
  julia_y: 0.156
  formula: "3"
  flow_rate: 2.5
`

const jsonConfig = `{
  "width": 100,
  "height": 50,
  "palette": "#ff0000 #0000ff #000000",
  "view": {"scale": 0.01, "shading": "stripes"}
}`

// =============================================================================
// DecodeConfig Tests
// =============================================================================

func TestDecodeConfig_TOML(t *testing.T) {
	c, err := DecodeConfig([]byte(tomlConfig), "toml")
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	if c.Width != 640 || c.Height != 480 || c.Workers != 3 {
		t.Errorf("size/workers = %d %d %d", c.Width, c.Height, c.Workers)
	}
	if c.Backend != "sequential" || c.Palette != "fire" || c.TargetFrameMS != 20 {
		t.Errorf("backend/palette/target = %q %q %v", c.Backend, c.Palette, c.TargetFrameMS)
	}

	v, err := c.View()
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if v.CenterX != -0.75 || v.CenterY != 0.1 {
		t.Errorf("centre = (%v, %v)", v.CenterX, v.CenterY)
	}
	if v.Iterations != 4000 {
		t.Errorf("Iterations = %d, want 4000", v.Iterations)
	}
	if v.Formula != kernel.BurningShip {
		t.Errorf("Formula = %v, want %v", v.Formula, kernel.BurningShip)
	}
	if v.Shading != kernel.ShadingInvertedShadow {
		t.Errorf("Shading = %v, want %v", v.Shading, kernel.ShadingInvertedShadow)
	}
	if v.RenderMode != kernel.RenderBanded {
		t.Errorf("RenderMode = %v, want %v", v.RenderMode, kernel.RenderBanded)
	}
	if v.Quality != 2 {
		t.Errorf("Quality = %v, want 2", v.Quality)
	}
}

func TestDecodeConfig_YAML(t *testing.T) {
	c, err := DecodeConfig([]byte(yamlConfig), ".yml")
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	v, err := c.View()
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if !v.Julia || v.JuliaX != -0.8 || v.JuliaY != 0.156 {
		t.Errorf("julia = %v (%v, %v)", v.Julia, v.JuliaX, v.JuliaY)
	}
	if v.Formula != kernel.Multibrot4 {
		t.Errorf("Formula = %v, want %v", v.Formula, kernel.Multibrot4)
	}
	if v.FlowRate != 2.5 {
		t.Errorf("FlowRate = %v, want 2.5", v.FlowRate)
	}
	if v.CenterX != -0.5 || v.Iterations != DefaultIterations {
		t.Errorf("defaults not kept: centre %v, iterations %d", v.CenterX, v.Iterations)
	}
}

func TestDecodeConfig_JSON(t *testing.T) {
	c, err := DecodeConfig([]byte(jsonConfig), "JSON")
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	if c.Width != 100 || c.Initial.Scale != 0.01 {
		t.Errorf("width/scale = %d %v", c.Width, c.Initial.Scale)
	}
	opts, err := c.Options()
	if err != nil {
		t.Fatalf("Options() error = %v", err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.palette.Len() != 2 || o.palette.Entries[0] != 0xff0000ff {
		t.Errorf("palette = %v", o.palette)
	}
	if o.view == nil || o.view.Shading != kernel.ShadingStripes {
		t.Errorf("view = %+v", o.view)
	}
}

func TestDecodeConfig_UnknownFormat(t *testing.T) {
	if _, err := DecodeConfig([]byte("x"), "ini"); !errors.Is(err, ErrConfigFormat) {
		t.Errorf("DecodeConfig(ini) error = %v, want ErrConfigFormat", err)
	}
}

func TestDecodeConfig_Malformed(t *testing.T) {
	if _, err := DecodeConfig([]byte("width = ["), "toml"); err == nil {
		t.Error("DecodeConfig(malformed toml) succeeded")
	}
	if _, err := DecodeConfig([]byte("{"), "json"); err == nil {
		t.Error("DecodeConfig(malformed json) succeeded")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "view.toml")
	if err := os.WriteFile(path, []byte(tomlConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if c.Width != 640 {
		t.Errorf("Width = %d, want 640", c.Width)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("LoadConfig(missing) succeeded")
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestConfig_Options(t *testing.T) {
	c, err := DecodeConfig([]byte(tomlConfig), "toml")
	if err != nil {
		t.Fatal(err)
	}
	opts, err := c.Options()
	if err != nil {
		t.Fatalf("Options() error = %v", err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers != 3 {
		t.Errorf("workers = %d, want 3", o.workers)
	}
	if o.backend != BackendSequential {
		t.Errorf("backend = %v, want sequential", o.backend)
	}
	if o.target.Milliseconds() != 20 {
		t.Errorf("target = %v, want 20ms", o.target)
	}
	fire, _ := NamedPalette("fire")
	if o.palette.String() != fire.String() {
		t.Errorf("palette = %v, want fire", o.palette)
	}
}

func TestConfig_OptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		c    Config
	}{
		{"backend", Config{Backend: "gpu"}},
		{"palette", Config{Palette: "not-a-palette"}},
		{"formula", Config{Initial: ViewConfig{Formula: "Koch"}}},
		{"shading", Config{Initial: ViewConfig{Shading: "glow"}}},
		{"render mode", Config{Initial: ViewConfig{RenderMode: "dither"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.c.Options(); err == nil {
				t.Errorf("Options() succeeded for %+v", tt.c)
			}
		})
	}
}

// =============================================================================
// Name Parsing Tests
// =============================================================================

func TestParseFormula(t *testing.T) {
	tests := []struct {
		in      string
		want    kernel.Formula
		wantErr bool
	}{
		{"1", kernel.Mandelbrot, false},
		{"14", kernel.Tricorn, false},
		{"mandelbrot", kernel.Mandelbrot, false},
		{"Mandelbrot set", kernel.Mandelbrot, false},
		{"burning-ship", kernel.BurningShip, false},
		{"3rd power multibrot", kernel.Multibrot3, false},
		{"0", 0, true},
		{"99", 0, true},
		{"julia", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormula(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormula(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormula(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseShading(t *testing.T) {
	tests := []struct {
		in   string
		want kernel.Shading
	}{
		{"none", kernel.ShadingNone},
		{"default", kernel.ShadingNone},
		{"Shadow", kernel.ShadingShadow},
		{"inverted_shadow", kernel.ShadingInvertedShadow},
		{"STRIPES", kernel.ShadingStripes},
	}
	for _, tt := range tests {
		got, err := ParseShading(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseShading(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestParseRenderMode(t *testing.T) {
	for _, m := range []kernel.RenderMode{kernel.RenderSmooth, kernel.RenderBanded, kernel.RenderSharp, kernel.RenderSoft} {
		got, err := ParseRenderMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseRenderMode(%q) = %v, %v, want %v", m.String(), got, err, m)
		}
	}
	if _, err := ParseRenderMode("dither"); err == nil {
		t.Error("ParseRenderMode(dither) succeeded")
	}
}
