package fractal

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gogpu/fractal/internal/arena"
	"github.com/gogpu/fractal/internal/driver"
	"github.com/gogpu/fractal/internal/invalidate"
	"github.com/gogpu/fractal/internal/parallel"
	"github.com/gogpu/fractal/kernel"
)

// Viewer is an interactive fractal renderer.
//
// Mutators (Pan, ZoomAt, SetPalette, Resize, ...) may be called from any
// goroutine. They never block on computation: each records what it
// invalidates and wakes the coordinator, which applies at most one
// invalidation per tick.
type Viewer struct {
	opts    options
	log     func() *slog.Logger
	mem     *arena.Arena
	backend parallel.Backend
	drv     *driver.Driver
	front   *frontBuffer

	// mu guards the output size, quality and palette. It is taken before
	// the driver's input lock.
	mu      sync.Mutex
	width   int
	height  int
	quality float64
	palette Palette

	closed atomic.Bool
}

// NewViewer creates a viewer for an output of width×height pixels.
// Workers are created by Start.
func NewViewer(width, height int, opts ...Option) (*Viewer, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("fractal: invalid size %dx%d", width, height)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.palette.Len() == 0 {
		return nil, fmt.Errorf("%w: palette has no entries", ErrInvalidPalette)
	}

	v := &Viewer{
		opts:    o,
		width:   width,
		height:  height,
		palette: o.palette,
	}
	v.log = Logger
	if o.logger != nil {
		l := o.logger
		v.log = func() *slog.Logger { return l }
	}

	view := DefaultView()
	if o.view != nil {
		view = *o.view
	}
	view = view.normalize(height)
	v.quality = view.Quality

	v.mem = arena.New(o.memoryLimit)
	switch o.backend {
	case BackendSequential:
		v.backend = parallel.NewSequential(v.mem, o.factory, v.log)
	default:
		v.backend = parallel.NewPool(o.workers, v.mem, o.factory, v.log)
	}

	v.front = &frontBuffer{user: o.presenter}
	v.drv = driver.New(driver.Config{
		Backend:   v.backend,
		Memory:    v.mem,
		Clock:     o.clock,
		Presenter: v.front,
		Target:    o.target,
		Logger:    v.log,
		Initial: driver.Input{
			Params:   view.params(width, height, v.palette),
			Palette:  v.palette.Entries,
			FlowRate: view.FlowRate,
		},
	})
	v.front.info = v.info
	return v, nil
}

// Start creates the workers. Workers whose kernel fails to load are left
// out and reported by Failures; Start fails only when none is ready.
func (v *Viewer) Start(ctx context.Context) error {
	if v.closed.Load() {
		return ErrClosed
	}
	return v.drv.Start(ctx)
}

// Failures returns the load failure of every worker that was left out.
func (v *Viewer) Failures() []error {
	return v.backend.Failures()
}

// Run starts the viewer if needed and runs the coordinator loop until ctx
// ends or a fatal error occurs.
func (v *Viewer) Run(ctx context.Context) error {
	if err := v.Start(ctx); err != nil {
		return err
	}
	return sessionError(v.drv.Run(ctx))
}

// RenderSync starts the viewer if needed and runs ticks until the current
// image is complete, without waiting for the clock.
func (v *Viewer) RenderSync(ctx context.Context) error {
	if err := v.Start(ctx); err != nil {
		return err
	}
	for {
		busy, err := v.drv.Step(ctx)
		if err != nil {
			return sessionError(err)
		}
		if !busy {
			return nil
		}
		// An animated palette never goes idle.
		if v.drv.Pending().FlowRate != 0 && v.drv.Stats().Done {
			return nil
		}
	}
}

// Close stops the workers. It is safe to call multiple times.
func (v *Viewer) Close() {
	if v.closed.CompareAndSwap(false, true) {
		v.drv.Close()
	}
}

// Err returns the fatal error that stopped the session, if any.
func (v *Viewer) Err() error {
	return sessionError(v.drv.Err())
}

// sessionError adds the caller-facing sentinel or advice to a driver error.
func sessionError(err error) error {
	switch {
	case errors.Is(err, ErrCapacity):
		return fmt.Errorf("%w (reduce the resolution or the quality factor)", err)
	case errors.Is(err, parallel.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

// Size returns the output size.
func (v *Viewer) Size() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

// View returns the view that will be displayed once pending changes apply.
func (v *Viewer) View() View {
	v.mu.Lock()
	q := v.quality
	v.mu.Unlock()

	in := v.drv.Pending()
	p := in.Params
	cx, cy := center(p)
	return View{
		CenterX:    cx,
		CenterY:    cy,
		Scale:      p.Scale * q,
		Iterations: p.Iterations,
		Formula:    p.Formula,
		Julia:      p.Julia,
		JuliaX:     p.JuliaX,
		JuliaY:     p.JuliaY,
		Shading:    p.Shading,
		RenderMode: p.RenderMode,
		Speed:      p.Speed,
		FlowRate:   in.FlowRate,
		Quality:    q,
	}
}

func (v *Viewer) info() viewInfo {
	p := v.drv.Pending().Params
	return viewInfo{formula: p.Formula, julia: p.Julia, iterations: p.Iterations}
}

// Status returns the progress of the current image.
func (v *Viewer) Status() Status {
	return newStatus(v.drv.Stats(), v.info())
}

// Image returns a copy of the last presented raster. Its size is the output
// size times the quality factor; use Scaled to reduce it.
func (v *Viewer) Image() *Image {
	return v.front.snapshot()
}

// =============================================================================
// Navigation
// =============================================================================

// Pan moves the view by (dx, dy) output pixels: the content under pixel
// (x, y) moves to (x+dx, y+dy). Pixels that stay on screen are kept.
func (v *Viewer) Pan(dx, dy int) {
	v.mu.Lock()
	q := v.quality
	v.mu.Unlock()
	v.drv.Pan(int(math.Round(float64(dx)*q)), int(math.Round(float64(dy)*q)))
}

// ZoomAt magnifies the view by factor about output pixel (x, y), which stays
// fixed. Factors below 1 zoom out.
func (v *Viewer) ZoomAt(x, y int, factor float64) {
	if factor <= 0 || math.IsInf(factor, 0) || math.IsNaN(factor) {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	q := v.quality
	v.drv.Update(func(in *driver.Input) {
		p := &in.Params
		ix, iy := float64(x)*q, float64(y)*q
		px, py := p.OriginX+ix*p.Scale, p.OriginY+iy*p.Scale
		p.Scale /= factor
		p.OriginX = px - ix*p.Scale
		p.OriginY = py - iy*p.Scale
	})
}

// Zoom magnifies the view by factor about its centre.
func (v *Viewer) Zoom(factor float64) {
	w, h := v.Size()
	v.ZoomAt(w/2, h/2, factor)
}

// SetCenter moves the view centre to plane point (x, y).
func (v *Viewer) SetCenter(x, y float64) {
	v.drv.Update(func(in *driver.Input) {
		setCenter(&in.Params, x, y)
	})
}

// Reset restores the home location and the default iteration cap.
func (v *Viewer) Reset() {
	_, h := v.Size()
	v.mu.Lock()
	defer v.mu.Unlock()
	q := v.quality
	v.drv.Recompute(func(in *driver.Input) {
		p := &in.Params
		p.Iterations = DefaultIterations
		p.Scale = defaultSpan / float64(h) / q
		cx, cy := defaultCenter(p.Julia)
		setCenter(p, cx, cy)
	})
}

// =============================================================================
// Fractal parameters
// =============================================================================

// SetIterations sets the iteration cap. Values below 1 are raised to 1.
func (v *Viewer) SetIterations(n int) {
	v.drv.Update(func(in *driver.Input) {
		in.Params.Iterations = max(n, 1)
	})
}

// SetFormula selects the fractal. Invalid selectors are ignored.
func (v *Viewer) SetFormula(f kernel.Formula) {
	if !f.Valid() {
		return
	}
	v.drv.Update(func(in *driver.Input) {
		in.Params.Formula = f
	})
}

// MakeJulia switches to the Julia set seeded at the plane point under
// output pixel (x, y) and recentres the view.
func (v *Viewer) MakeJulia(x, y int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	q := v.quality
	h := v.height
	v.drv.Update(func(in *driver.Input) {
		p := &in.Params
		p.JuliaX = p.OriginX + float64(x)*q*p.Scale
		p.JuliaY = p.OriginY + float64(y)*q*p.Scale
		p.Julia = true
		p.Scale = defaultSpan / float64(h) / q
		cx, cy := defaultCenter(true)
		setCenter(p, cx, cy)
	})
}

// ExitJulia returns from a Julia set to its parent fractal, centred on the
// seed.
func (v *Viewer) ExitJulia() {
	v.mu.Lock()
	defer v.mu.Unlock()
	q := v.quality
	h := v.height
	v.drv.Update(func(in *driver.Input) {
		p := &in.Params
		if !p.Julia {
			return
		}
		p.Julia = false
		p.Scale = defaultSpan / float64(h) / q
		setCenter(p, p.JuliaX, p.JuliaY)
	})
}

// SetShading selects the shading effect.
func (v *Viewer) SetShading(s kernel.Shading) {
	v.drv.Update(func(in *driver.Input) {
		in.Params.Shading = s
	})
}

// SetRenderMode selects how palette entries are blended.
func (v *Viewer) SetRenderMode(m kernel.RenderMode) {
	v.drv.Update(func(in *driver.Input) {
		in.Params.RenderMode = m
	})
}

// SetSpeed sets the palette stretch. Non-positive values are ignored.
func (v *Viewer) SetSpeed(s float32) {
	if s <= 0 {
		return
	}
	v.drv.Update(func(in *driver.Input) {
		in.Params.Speed = s
	})
}

// SetFlowRate sets the palette animation rate, clamped to
// [-MaxFlowRate, MaxFlowRate]. Zero stops the animation.
func (v *Viewer) SetFlowRate(r float32) {
	v.drv.Update(func(in *driver.Input) {
		in.FlowRate = clampFlow(r)
	})
}

// =============================================================================
// Palette
// =============================================================================

// Palette returns the active palette.
func (v *Viewer) Palette() Palette {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.palette.Clone()
}

// SetPalette replaces the palette. Only colours are recomputed.
func (v *Viewer) SetPalette(p Palette) error {
	if p.Len() == 0 {
		return fmt.Errorf("%w: palette has no entries", ErrInvalidPalette)
	}
	if p.Len() >= MaxPaletteColors {
		return fmt.Errorf("%w: %d entries exceeds the limit", ErrInvalidPalette, p.Len())
	}
	p = p.Clone()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.palette = p
	v.drv.Update(func(in *driver.Input) {
		in.Palette = p.Entries
		in.Params.Interior = p.Interior
	})
	return nil
}

// ImportPalette parses text with ParsePalette and activates the result.
// On error the active palette is unchanged.
func (v *Viewer) ImportPalette(text string) error {
	p, err := ParsePalette(text)
	if err != nil {
		return err
	}
	return v.SetPalette(p)
}

// =============================================================================
// Size
// =============================================================================

// Resize changes the output size. The view keeps its centre and is zoomed
// to compensate for the change of diagonal.
func (v *Viewer) Resize(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("fractal: invalid size %dx%d", width, height)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if width == v.width && height == v.height {
		return nil
	}
	factor := resizeFactor(v.width, v.height, width, height)
	q := v.quality
	v.width, v.height = width, height
	v.drv.Resize(invalidate.ResizeViewport, func(in *driver.Input) {
		p := &in.Params
		cx, cy := center(*p)
		p.Width, p.Height = rasterSize(width, height, q)
		p.Scale *= factor
		setCenter(p, cx, cy)
	})
	return nil
}

// Quality returns the supersampling factor.
func (v *Viewer) Quality() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quality
}

// SetQuality changes the supersampling factor. The visible region is
// unchanged; only the raster density changes.
func (v *Viewer) SetQuality(q float64) error {
	if q <= 0 || math.IsInf(q, 0) || math.IsNaN(q) {
		return fmt.Errorf("fractal: invalid quality %v", q)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if q == v.quality {
		return nil
	}
	old := v.quality
	v.quality = q
	w, h := v.width, v.height
	v.drv.Resize(invalidate.ResizeQuality, func(in *driver.Input) {
		p := &in.Params
		cx, cy := center(*p)
		p.Width, p.Height = rasterSize(w, h, q)
		p.Scale = p.Scale * old / q
		setCenter(p, cx, cy)
	})
	return nil
}

// CycleQuality advances the quality factor through Qualities.
func (v *Viewer) CycleQuality() float64 {
	q := NextQuality(v.Quality())
	_ = v.SetQuality(q)
	return q
}

// =============================================================================
// Inspection
// =============================================================================

// PixelInfo describes one raster pixel.
type PixelInfo struct {
	// X and Y are raster coordinates.
	X int
	Y int

	// PlaneX and PlaneY are the plane coordinates of the pixel.
	PlaneX float64
	PlaneY float64

	// Computed is false while the pixel still awaits computation.
	Computed bool

	// Interior is set for pixels that never escaped.
	Interior bool

	// Escape is the smooth escape value.
	Escape float32

	// PalettePosition is the position in the palette, or -1 for interior
	// pixels.
	PalettePosition float64

	// Shading is the shading value in [0, 1].
	Shading float32

	// Color is the output colour.
	Color color.RGBA
}

// Inspect reports the computed data of output pixel (x, y). It returns false
// outside the image. Inspect waits for the pass in flight to finish and must
// not be called from a Presenter.
func (v *Viewer) Inspect(x, y int) (PixelInfo, bool) {
	q := v.Quality()
	var info PixelInfo
	ok := false
	v.drv.WithMemory(func(mem *arena.Arena, p kernel.Params) {
		rx := int(float64(x) * q)
		ry := int(float64(y) * q)
		if rx < 0 || ry < 0 || rx >= p.Width || ry >= p.Height {
			return
		}
		i := ry*p.Width + rx
		iter := mem.Iterations()
		if i >= len(iter) {
			return
		}
		e := iter[i]
		info = PixelInfo{
			X:               rx,
			Y:               ry,
			PlaneX:          p.OriginX + float64(rx)*p.Scale,
			PlaneY:          p.OriginY + float64(ry)*p.Scale,
			Computed:        e != arena.Uncomputed,
			Interior:        e == arena.Interior,
			Escape:          e,
			PalettePosition: kernel.PalettePosition(p, e),
			Shading:         mem.Shading()[i],
			Color:           Unpack(mem.Colors()[i]),
		}
		ok = true
	})
	return info, ok
}
