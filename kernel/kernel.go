// Package kernel defines the per-pixel numeric kernel contract and ships a
// reference escape-time implementation.
//
// A kernel has two entry points operating on the shared arena:
//
//   - Compute consumes chunks from the shared cursor, computing escape values
//     for uncomputed pixels and colouring every pixel it visits, until its
//     work budget is spent. It reports the exclusive end of its last chunk,
//     or Exhausted once no pixels remain.
//   - Render recolours an explicit pixel range from already computed data and
//     ignores the cursor.
//
// Both are pure functions of the arena contents and their parameters.
// Implementations must only write pixels inside chunks they claimed (Compute)
// or the range they were given (Render).
package kernel

import (
	"github.com/gogpu/fractal/internal/arena"
	"github.com/gogpu/fractal/internal/sched"
)

// ClaimSize is the number of pixels the reference kernel claims per
// fetch-add. Small claims keep the budget check fine grained.
const ClaimSize = 32

// Params carries every argument of a kernel invocation.
type Params struct {
	// Formula selects the fractal family member.
	Formula Formula

	// Julia selects the Julia variant seeded at (JuliaX, JuliaY).
	Julia  bool
	JuliaX float64
	JuliaY float64

	// Width and Height are the raster size in pixels.
	Width  int
	Height int

	// OriginX and OriginY are the plane coordinates of pixel (0, 0).
	OriginX float64
	OriginY float64

	// Scale is the plane distance between adjacent pixels.
	Scale float64

	// Iterations is the iteration cap.
	Iterations int

	// PaletteLen is the number of distinct palette entries.
	PaletteLen int

	// Interior is the packed colour of non-escaping pixels.
	Interior uint32

	// RenderMode selects how palette entries are blended.
	RenderMode RenderMode

	// Shading selects the shading effect.
	Shading Shading

	// Speed stretches the palette along the escape value.
	Speed float32

	// Flow offsets the palette position.
	Flow float32
}

// Pixels returns Width*Height.
func (p Params) Pixels() int {
	return p.Width * p.Height
}

// Buffers are the arena views a kernel operates on. They must be re-derived
// after every arena growth.
type Buffers struct {
	Cursor     sched.Cursor
	Palette    []uint32
	Iterations []float32
	Shading    []float32
	Colors     []uint32
}

// BuffersFrom derives kernel views from the arena's active layout.
func BuffersFrom(a *arena.Arena) Buffers {
	return Buffers{
		Cursor:     sched.NewCursor(a.Cursor()),
		Palette:    a.Palette(),
		Iterations: a.Iterations(),
		Shading:    a.Shading(),
		Colors:     a.Colors(),
	}
}

// Kernel is the numeric collaborator invoked by workers.
type Kernel interface {
	// Compute claims chunks from b.Cursor until budget work units are spent
	// and returns the exclusive end of the last completed chunk, or
	// sched.Exhausted when no chunk could be claimed or the last chunk
	// reached the end of the image.
	Compute(b Buffers, p Params, budget int) sched.Result

	// Render recolours pixels [lo, hi) from iteration and shading data.
	Render(b Buffers, p Params, lo, hi int)
}

// Factory creates the kernel instance for one worker. A factory error means
// the worker's kernel is unavailable and the worker is never admitted.
type Factory func(worker int) (Kernel, error)

// Reference returns a Factory producing the reference escape-time kernel.
func Reference() Factory {
	return func(int) (Kernel, error) {
		return EscapeTime{}, nil
	}
}
