package kernel

import "strconv"

// Formula selects a member of the escape-time fractal family.
// Selectors are 1-based; 0 is invalid.
type Formula uint8

// Supported formulas.
const (
	Mandelbrot Formula = iota + 1
	Multibrot3
	Multibrot4
	Multibrot5
	Multibrot6
	Multibrot7
	BurningShip
	BurningShip3
	BurningShip4
	BurningShip5
	Celtic
	PerpendicularMandelbrot
	Buffalo
	Tricorn

	formulaCount = iota
)

// Formulas returns every supported formula in selector order.
func Formulas() []Formula {
	fs := make([]Formula, 0, formulaCount)
	for f := Mandelbrot; int(f) <= formulaCount; f++ {
		fs = append(fs, f)
	}
	return fs
}

// Valid reports whether f is a supported selector.
func (f Formula) Valid() bool {
	return f >= Mandelbrot && int(f) <= formulaCount
}

// Next returns the following formula, wrapping to Mandelbrot.
func (f Formula) Next() Formula {
	if !f.Valid() || int(f) == formulaCount {
		return Mandelbrot
	}
	return f + 1
}

// Prev returns the preceding formula, wrapping to the last one.
func (f Formula) Prev() Formula {
	if !f.Valid() || f == Mandelbrot {
		return Formula(formulaCount)
	}
	return f - 1
}

// String returns the display name.
func (f Formula) String() string {
	if !f.Valid() {
		return "Formula(" + strconv.Itoa(int(f)) + ")"
	}
	return formulas[f].name
}

// Power returns the degree of the iterated polynomial.
func (f Formula) Power() int {
	if !f.Valid() {
		return 2
	}
	return formulas[f].power
}

// formula is one family member: step returns f(z) before adding c.
type formula struct {
	name  string
	power int
	step  func(zr, zi float64) (float64, float64)
}

var formulas = [formulaCount + 1]formula{
	Mandelbrot:              {"Mandelbrot set", 2, powStep(2)},
	Multibrot3:              {"3rd Power Multibrot set", 3, powStep(3)},
	Multibrot4:              {"4th Power Multibrot set", 4, powStep(4)},
	Multibrot5:              {"5th Power Multibrot set", 5, powStep(5)},
	Multibrot6:              {"6th Power Multibrot set", 6, powStep(6)},
	Multibrot7:              {"7th Power Multibrot set", 7, powStep(7)},
	BurningShip:             {"Burning Ship", 2, shipStep(2)},
	BurningShip3:            {"3rd Power Burning Ship", 3, shipStep(3)},
	BurningShip4:            {"4th Power Burning Ship", 4, shipStep(4)},
	BurningShip5:            {"5th Power Burning Ship", 5, shipStep(5)},
	Celtic:                  {"Celtic", 2, celticStep},
	PerpendicularMandelbrot: {"Perpendicular Mandelbrot", 2, perpendicularStep},
	Buffalo:                 {"Buffalo", 2, buffaloStep},
	Tricorn:                 {"Tricorn", 2, tricornStep},
}

// pow returns (zr + zi·i)^n for n >= 1.
func pow(zr, zi float64, n int) (float64, float64) {
	r, i := zr, zi
	for k := 1; k < n; k++ {
		r, i = r*zr-i*zi, r*zi+i*zr
	}
	return r, i
}

func powStep(n int) func(zr, zi float64) (float64, float64) {
	return func(zr, zi float64) (float64, float64) {
		return pow(zr, zi, n)
	}
}

func shipStep(n int) func(zr, zi float64) (float64, float64) {
	return func(zr, zi float64) (float64, float64) {
		return pow(abs(zr), abs(zi), n)
	}
}

func celticStep(zr, zi float64) (float64, float64) {
	return abs(zr*zr - zi*zi), 2 * zr * zi
}

func perpendicularStep(zr, zi float64) (float64, float64) {
	return zr*zr - zi*zi, -2 * abs(zr) * zi
}

func buffaloStep(zr, zi float64) (float64, float64) {
	return abs(zr*zr - zi*zi), -2 * abs(zr*zi)
}

func tricornStep(zr, zi float64) (float64, float64) {
	return zr*zr - zi*zi, -2 * zr * zi
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Shading selects the per-pixel shading effect.
type Shading uint8

// Shading effects. ShadingShadow and ShadingInvertedShadow share the same
// shading data and differ only at colouring time.
const (
	ShadingNone Shading = iota
	ShadingShadow
	ShadingInvertedShadow
	ShadingStripes

	shadingCount = iota
)

// Next returns the following effect, wrapping to ShadingNone.
func (s Shading) Next() Shading {
	return (s + 1) % shadingCount
}

// Prev returns the preceding effect, wrapping to ShadingStripes.
func (s Shading) Prev() Shading {
	return (s + shadingCount - 1) % shadingCount
}

// String returns the display name.
func (s Shading) String() string {
	switch s {
	case ShadingNone:
		return "Default"
	case ShadingShadow:
		return "Shadow"
	case ShadingInvertedShadow:
		return "Inverted Shadow"
	case ShadingStripes:
		return "Stripes"
	default:
		return "Shading(" + strconv.Itoa(int(s)) + ")"
	}
}

// SharesData reports whether switching from s to t can reuse the shading
// values already computed for s.
func (s Shading) SharesData(t Shading) bool {
	shadow := func(x Shading) bool { return x == ShadingShadow || x == ShadingInvertedShadow }
	return shadow(s) && shadow(t)
}

// RenderMode selects how neighbouring palette entries are blended.
type RenderMode uint8

// Render modes.
const (
	RenderSmooth RenderMode = iota
	RenderBanded
	RenderSharp
	RenderSoft

	renderModeCount = iota
)

// Next returns the following mode, wrapping to RenderSmooth.
func (m RenderMode) Next() RenderMode {
	return (m + 1) % renderModeCount
}

// Prev returns the preceding mode, wrapping to RenderSoft.
func (m RenderMode) Prev() RenderMode {
	return (m + renderModeCount - 1) % renderModeCount
}

// String returns the display name.
func (m RenderMode) String() string {
	switch m {
	case RenderSmooth:
		return "Smooth"
	case RenderBanded:
		return "Banded"
	case RenderSharp:
		return "Sharp"
	case RenderSoft:
		return "Soft"
	default:
		return "RenderMode(" + strconv.Itoa(int(m)) + ")"
	}
}
