// Package fractal renders escape-time fractals interactively on a pool of
// parallel workers sharing one memory arena.
//
// # Overview
//
// A Viewer owns the arena, the workers and a coordinator goroutine. The
// coordinator runs one pass per display tick: every worker claims small
// chunks of pixels from a shared atomic cursor until its adaptive work
// budget is spent, so fast workers take more of the image and every pass
// takes roughly one frame. Interactions are classified by how much of the
// computed data they invalidate:
//
//   - a resize or quality change resets everything
//   - an iteration, formula, zoom or Julia change recomputes every pixel
//   - a pan by whole pixels keeps the pixels that stay on screen
//   - a palette, flow, speed or render mode change only recolours
//
// # Quick Start
//
//	v, err := fractal.NewViewer(800, 600, fractal.WithClock(fractal.InstantClock()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer v.Close()
//
//	if err := v.RenderSync(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	v.Image().SavePNG("mandelbrot.png")
//
// # Interactive use
//
// Run the coordinator with Run and call the mutators (Pan, ZoomAt,
// SetPalette, ...) from any goroutine. Frames are delivered to the
// Presenter given with WithPresenter.
//
// # Architecture
//
//   - internal/arena: shared memory layout and growth
//   - internal/sched: atomic work claims, cost model, progress
//   - internal/invalidate: invalidation state machine and pixel shift
//   - internal/parallel: worker pool, sequential backend, dirty bands
//   - internal/driver: tick loop, pass aggregation, estimates
//   - kernel: kernel contract and reference escape-time kernel
package fractal
