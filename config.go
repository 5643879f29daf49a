package fractal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sugawarayuuta/sonnet"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/fractal/kernel"
)

// Config is the file form of the viewer options and initial view.
//
// Example (TOML):
//
//	width = 1280
//	height = 720
//	workers = 8
//	palette = "fire"
//
//	[view]
//	center_x = -0.743643
//	center_y = 0.131825
//	scale = 1e-6
//	iterations = 4000
//	formula = "Mandelbrot set"
//	shading = "shadow"
type Config struct {
	Width   int    `toml:"width" yaml:"width" json:"width"`
	Height  int    `toml:"height" yaml:"height" json:"height"`
	Workers int    `toml:"workers" yaml:"workers" json:"workers"`
	Backend string `toml:"backend" yaml:"backend" json:"backend"`

	// MemoryLimit is the arena ceiling in bytes.
	MemoryLimit int `toml:"memory_limit" yaml:"memory_limit" json:"memory_limit"`

	// TargetFrameMS is the pass duration budgets aim for, in milliseconds.
	TargetFrameMS float64 `toml:"target_frame_ms" yaml:"target_frame_ms" json:"target_frame_ms"`

	// Palette is a built-in palette name or palette text for ParsePalette.
	Palette string `toml:"palette" yaml:"palette" json:"palette"`

	Initial ViewConfig `toml:"view" yaml:"view" json:"view"`
}

// ViewConfig is the file form of View. Names are matched case-insensitively.
type ViewConfig struct {
	CenterX    float64 `toml:"center_x" yaml:"center_x" json:"center_x"`
	CenterY    float64 `toml:"center_y" yaml:"center_y" json:"center_y"`
	Scale      float64 `toml:"scale" yaml:"scale" json:"scale"`
	Iterations int     `toml:"iterations" yaml:"iterations" json:"iterations"`
	Formula    string  `toml:"formula" yaml:"formula" json:"formula"`
	Julia      bool    `toml:"julia" yaml:"julia" json:"julia"`
	JuliaX     float64 `toml:"julia_x" yaml:"julia_x" json:"julia_x"`
	JuliaY     float64 `toml:"julia_y" yaml:"julia_y" json:"julia_y"`
	Shading    string  `toml:"shading" yaml:"shading" json:"shading"`
	RenderMode string  `toml:"render_mode" yaml:"render_mode" json:"render_mode"`
	Speed      float32 `toml:"speed" yaml:"speed" json:"speed"`
	FlowRate   float32 `toml:"flow_rate" yaml:"flow_rate" json:"flow_rate"`
	Quality    float64 `toml:"quality" yaml:"quality" json:"quality"`
}

// LoadConfig reads a configuration file. The format is chosen by extension:
// .toml, .yaml/.yml or .json.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return Config{}, err
	}
	c, err := DecodeConfig(data, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("fractal: config %s: %w", path, err)
	}
	return c, nil
}

// DecodeConfig decodes data in the given format ("toml", "yaml", "yml" or
// "json", with or without a leading dot).
func DecodeConfig(data []byte, format string) (Config, error) {
	var c Config
	var err error
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "toml":
		err = toml.Unmarshal(data, &c)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &c)
	case "json":
		err = sonnet.Unmarshal(data, &c)
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrConfigFormat, format)
	}
	if err != nil {
		return Config{}, err
	}
	return c, nil
}

// Options converts the configuration into viewer options.
func (c Config) Options() ([]Option, error) {
	var opts []Option
	if c.Workers != 0 {
		opts = append(opts, WithWorkers(c.Workers))
	}
	switch strings.ToLower(c.Backend) {
	case "", "pool":
	case "sequential":
		opts = append(opts, WithBackend(BackendSequential))
	default:
		return nil, fmt.Errorf("fractal: unknown backend %q", c.Backend)
	}
	if c.MemoryLimit > 0 {
		opts = append(opts, WithMemoryLimit(c.MemoryLimit))
	}
	if c.TargetFrameMS > 0 {
		opts = append(opts, WithTargetFrameTime(time.Duration(c.TargetFrameMS*float64(time.Millisecond))))
	}
	if c.Palette != "" {
		p, ok := NamedPalette(c.Palette)
		if !ok {
			var err error
			if p, err = ParsePalette(c.Palette); err != nil {
				return nil, err
			}
		}
		opts = append(opts, WithPalette(p))
	}

	v, err := c.View()
	if err != nil {
		return nil, err
	}
	return append(opts, WithView(v)), nil
}

// View converts the view section into a View. Unset fields take their
// defaults when the viewer is created.
func (c Config) View() (View, error) {
	vc := c.Initial
	v := DefaultView()
	if vc.CenterX != 0 || vc.CenterY != 0 {
		v.CenterX, v.CenterY = vc.CenterX, vc.CenterY
	}
	v.Scale = vc.Scale
	if vc.Iterations > 0 {
		v.Iterations = vc.Iterations
	}
	v.Julia, v.JuliaX, v.JuliaY = vc.Julia, vc.JuliaX, vc.JuliaY
	if vc.Speed > 0 {
		v.Speed = vc.Speed
	}
	v.FlowRate = vc.FlowRate
	if vc.Quality > 0 {
		v.Quality = vc.Quality
	}

	var err error
	if vc.Formula != "" {
		if v.Formula, err = ParseFormula(vc.Formula); err != nil {
			return View{}, err
		}
	}
	if vc.Shading != "" {
		if v.Shading, err = ParseShading(vc.Shading); err != nil {
			return View{}, err
		}
	}
	if vc.RenderMode != "" {
		if v.RenderMode, err = ParseRenderMode(vc.RenderMode); err != nil {
			return View{}, err
		}
	}
	return v, nil
}

func normalizeName(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, s)
}

// ParseFormula accepts a 1-based selector or a formula name such as
// "Burning Ship". A trailing "set" may be omitted.
func ParseFormula(s string) (kernel.Formula, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		if f := kernel.Formula(n); n > 0 && n < 256 && f.Valid() {
			return f, nil
		}
		return 0, fmt.Errorf("fractal: formula %d out of range", n)
	}
	want := strings.TrimSuffix(normalizeName(s), "set")
	for _, f := range kernel.Formulas() {
		if strings.TrimSuffix(normalizeName(f.String()), "set") == want {
			return f, nil
		}
	}
	return 0, fmt.Errorf("fractal: unknown formula %q", s)
}

// ParseShading accepts a shading name; "none" selects the default.
func ParseShading(s string) (kernel.Shading, error) {
	want := normalizeName(s)
	if want == "none" {
		return kernel.ShadingNone, nil
	}
	sh := kernel.ShadingNone
	for {
		if normalizeName(sh.String()) == want {
			return sh, nil
		}
		if sh = sh.Next(); sh == kernel.ShadingNone {
			return 0, fmt.Errorf("fractal: unknown shading %q", s)
		}
	}
}

// ParseRenderMode accepts a render mode name.
func ParseRenderMode(s string) (kernel.RenderMode, error) {
	want := normalizeName(s)
	m := kernel.RenderSmooth
	for {
		if normalizeName(m.String()) == want {
			return m, nil
		}
		if m = m.Next(); m == kernel.RenderSmooth {
			return 0, fmt.Errorf("fractal: unknown render mode %q", s)
		}
	}
}
