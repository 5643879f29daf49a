package driver

import (
	"time"

	"github.com/gogpu/fractal/internal/parallel"
)

// Frame is one presentation of the output raster.
//
// Pixels aliases the arena and is only valid for the duration of the
// Present call.
type Frame struct {
	Width  int
	Height int

	// Pixels is the RGBA output, 4 bytes per pixel in row-major order.
	Pixels []byte

	// Dirty lists the row spans that changed since the previous frame.
	// A presenter whose size differs from the frame must copy everything.
	Dirty []parallel.Span

	// Final is set for the frame that completes an image.
	Final bool

	// Stats is the driver state at the time of the frame. Its Generation
	// is the input generation the pixels were produced for.
	Stats Stats
}

// Presenter receives frames from the coordinator goroutine.
// Present must not call back into the Driver.
type Presenter interface {
	Present(f Frame)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(f Frame)

// Present implements Presenter.
func (fn PresenterFunc) Present(f Frame) { fn(f) }

// Stats is a snapshot of driver counters.
type Stats struct {
	// Generation is the current input generation, or in a Frame the
	// generation of the pass that produced it.
	Generation uint64

	// Workers is the number of admitted workers.
	Workers int

	// Total is the pixel count of the current image.
	Total int

	// Computed is the progress cursor: every pixel below it is done.
	Computed int

	// Highest is the largest progress index any worker reported.
	Highest int

	// Done reports whether the current image is complete.
	Done bool

	// Passes counts passes of the current computation.
	Passes int

	// TotalPasses counts every pass dispatched.
	TotalPasses uint64

	// RenderPasses counts render-tagged passes.
	RenderPasses uint64

	// Stale counts passes whose results were discarded.
	Stale uint64

	// Aborted counts aborted worker reports.
	Aborted uint64

	// Elapsed is the time spent on the current computation.
	Elapsed time.Duration

	// Remaining is the estimated time left.
	Remaining time.Duration

	// Performance is the per-worker throughput figure:
	// sum(budgets)/workers/factor/1000.
	Performance float64
}

// Percent returns the completed share of the image in [0, 100].
func (s Stats) Percent() float64 {
	if s.Done || s.Total == 0 {
		return 100
	}
	return 100 * float64(s.Computed) / float64(s.Total)
}
