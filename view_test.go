package fractal

import (
	"math"
	"testing"

	"github.com/gogpu/fractal/kernel"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestNextQuality(t *testing.T) {
	tests := []struct {
		q, want float64
	}{
		{1, 1.1},
		{1.1, 1.25},
		{2, 0.5},
		{0.5, 1},
		{3, 1},
	}
	for _, tt := range tests {
		if got := NextQuality(tt.q); got != tt.want {
			t.Errorf("NextQuality(%v) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestView_Normalize(t *testing.T) {
	v := View{Formula: 99, FlowRate: -50}.normalize(300)
	if v.Quality != 1 {
		t.Errorf("Quality = %v, want 1", v.Quality)
	}
	if !approx(v.Scale, 0.01) {
		t.Errorf("Scale = %v, want 0.01", v.Scale)
	}
	if v.Iterations != DefaultIterations {
		t.Errorf("Iterations = %d, want %d", v.Iterations, DefaultIterations)
	}
	if v.Formula != kernel.Mandelbrot {
		t.Errorf("Formula = %v, want Mandelbrot", v.Formula)
	}
	if v.Speed != 1 {
		t.Errorf("Speed = %v, want 1", v.Speed)
	}
	if v.FlowRate != -MaxFlowRate {
		t.Errorf("FlowRate = %v, want %v", v.FlowRate, -MaxFlowRate)
	}
}

func TestRasterSize(t *testing.T) {
	tests := []struct {
		w, h   int
		q      float64
		ww, wh int
	}{
		{100, 50, 1, 100, 50},
		{100, 50, 2, 200, 100},
		{100, 50, 1.25, 125, 63},
		{1, 1, 0.5, 1, 1},
	}
	for _, tt := range tests {
		w, h := rasterSize(tt.w, tt.h, tt.q)
		if w != tt.ww || h != tt.wh {
			t.Errorf("rasterSize(%d, %d, %v) = %dx%d, want %dx%d", tt.w, tt.h, tt.q, w, h, tt.ww, tt.wh)
		}
	}
}

func TestView_Params(t *testing.T) {
	v := DefaultView().normalize(100)
	v.Quality = 2
	p := v.params(200, 100, DefaultPalette())

	if p.Width != 400 || p.Height != 200 {
		t.Errorf("raster = %dx%d, want 400x200", p.Width, p.Height)
	}
	if !approx(p.Scale, v.Scale/2) {
		t.Errorf("Scale = %v, want %v", p.Scale, v.Scale/2)
	}
	cx, cy := center(p)
	if !approx(cx, -0.5) || !approx(cy, 0) {
		t.Errorf("center = (%v, %v), want (-0.5, 0)", cx, cy)
	}
	if p.PaletteLen != DefaultPalette().Len() {
		t.Errorf("PaletteLen = %d", p.PaletteLen)
	}
}

func TestSetCenter(t *testing.T) {
	p := kernel.Params{Width: 10, Height: 20, Scale: 0.5}
	setCenter(&p, 1, 2)
	if p.OriginX != -1.5 || p.OriginY != -3 {
		t.Errorf("origin = (%v, %v), want (-1.5, -3)", p.OriginX, p.OriginY)
	}
	if cx, cy := center(p); cx != 1 || cy != 2 {
		t.Errorf("center = (%v, %v), want (1, 2)", cx, cy)
	}
}

func TestResizeFactor(t *testing.T) {
	if got := resizeFactor(100, 100, 100, 100); got != 1 {
		t.Errorf("same size factor = %v, want 1", got)
	}
	if got := resizeFactor(0, 0, 100, 100); got != 1 {
		t.Errorf("empty factor = %v, want 1", got)
	}
	want := math.Pow(0.25, resizeExponent)
	if got := resizeFactor(60, 40, 120, 80); !approx(got, want) {
		t.Errorf("doubling factor = %v, want %v", got, want)
	}
}
