package fractal

import (
	"math"

	"github.com/gogpu/fractal/kernel"
)

const (
	// DefaultIterations is the iteration cap of a fresh or reset view.
	DefaultIterations = 1000

	// defaultSpan is the plane height visible in a fresh view.
	defaultSpan = 3.0

	// resizeExponent damps the zoom compensation applied on resize.
	resizeExponent = 0.8

	// MaxFlowRate bounds the palette flow rate in both directions.
	MaxFlowRate = 10
)

// Qualities is the supersampling cycle used by CycleQuality.
var Qualities = []float64{1, 1.1, 1.25, 2, 0.5}

// NextQuality returns the quality after q in Qualities, or the first one
// when q is not in the cycle.
func NextQuality(q float64) float64 {
	for i, v := range Qualities {
		if v == q {
			return Qualities[(i+1)%len(Qualities)]
		}
	}
	return Qualities[0]
}

// View is the user-facing description of what is displayed.
type View struct {
	// CenterX and CenterY are the plane coordinates at the centre of the
	// output.
	CenterX float64
	CenterY float64

	// Scale is the plane distance between adjacent output pixels. Zero fits
	// the default span to the output height.
	Scale float64

	// Iterations is the iteration cap.
	Iterations int

	// Formula selects the fractal.
	Formula kernel.Formula

	// Julia renders the Julia set seeded at (JuliaX, JuliaY).
	Julia  bool
	JuliaX float64
	JuliaY float64

	Shading    kernel.Shading
	RenderMode kernel.RenderMode

	// Speed stretches the palette; FlowRate animates it.
	Speed    float32
	FlowRate float32

	// Quality is the supersampling factor: the raster is Quality times the
	// output size in each dimension.
	Quality float64
}

// DefaultView returns the initial Mandelbrot view.
func DefaultView() View {
	return View{
		CenterX:    -0.5,
		CenterY:    0,
		Iterations: DefaultIterations,
		Formula:    kernel.Mandelbrot,
		Speed:      1,
		Quality:    1,
	}
}

// defaultCenter is the home position for the given mode.
func defaultCenter(julia bool) (float64, float64) {
	if julia {
		return 0, 0
	}
	return -0.5, 0
}

// normalize fills unset fields with defaults for an output of the given
// height.
func (v View) normalize(height int) View {
	if v.Quality <= 0 {
		v.Quality = 1
	}
	if v.Scale <= 0 {
		v.Scale = defaultSpan / float64(max(height, 1))
	}
	if v.Iterations < 1 {
		v.Iterations = DefaultIterations
	}
	if !v.Formula.Valid() {
		v.Formula = kernel.Mandelbrot
	}
	if v.Speed <= 0 {
		v.Speed = 1
	}
	v.FlowRate = clampFlow(v.FlowRate)
	return v
}

func clampFlow(r float32) float32 {
	return max(-MaxFlowRate, min(MaxFlowRate, r))
}

// rasterSize returns the supersampled raster size for an output size.
func rasterSize(width, height int, quality float64) (int, int) {
	w := max(1, int(math.Round(float64(width)*quality)))
	h := max(1, int(math.Round(float64(height)*quality)))
	return w, h
}

// params converts a view for an output size into kernel parameters.
func (v View) params(width, height int, palette Palette) kernel.Params {
	w, h := rasterSize(width, height, v.Quality)
	scale := v.Scale / v.Quality
	p := kernel.Params{
		Formula:    v.Formula,
		Julia:      v.Julia,
		JuliaX:     v.JuliaX,
		JuliaY:     v.JuliaY,
		Width:      w,
		Height:     h,
		Scale:      scale,
		Iterations: v.Iterations,
		PaletteLen: palette.Len(),
		Interior:   palette.Interior,
		RenderMode: v.RenderMode,
		Shading:    v.Shading,
		Speed:      v.Speed,
	}
	setCenter(&p, v.CenterX, v.CenterY)
	return p
}

// center returns the plane coordinates at the middle of the raster.
func center(p kernel.Params) (float64, float64) {
	return p.OriginX + float64(p.Width)*p.Scale/2, p.OriginY + float64(p.Height)*p.Scale/2
}

// setCenter moves the origin so that (cx, cy) is at the middle of the raster.
func setCenter(p *kernel.Params, cx, cy float64) {
	p.OriginX = cx - float64(p.Width)*p.Scale/2
	p.OriginY = cy - float64(p.Height)*p.Scale/2
}

// resizeFactor is the scale compensation applied when the output changes
// from oldW×oldH to w×h.
func resizeFactor(oldW, oldH, w, h int) float64 {
	num := float64(oldW*oldW + oldH*oldH)
	den := float64(w*w + h*h)
	if num == 0 || den == 0 {
		return 1
	}
	return math.Pow(num/den, resizeExponent)
}
