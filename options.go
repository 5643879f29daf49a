package fractal

import (
	"log/slog"
	"time"

	"github.com/gogpu/fractal/internal/arena"
	"github.com/gogpu/fractal/internal/driver"
	"github.com/gogpu/fractal/kernel"
)

// Backend selects the execution context.
type Backend uint8

const (
	// BackendPool runs one goroutine per worker. This is the default.
	BackendPool Backend = iota

	// BackendSequential runs a single worker with no goroutine kept between
	// passes. Each request runs in a deferred task after dispatch returns.
	BackendSequential
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case BackendPool:
		return "pool"
	case BackendSequential:
		return "sequential"
	default:
		return "unknown"
	}
}

// Clock paces the coordinator loop. See TickerClock and InstantClock.
type Clock = driver.Clock

// Option configures a Viewer during creation.
//
// Example:
//
//	// Defaults: GOMAXPROCS workers, 60 Hz ticks, sky palette
//	v, err := fractal.NewViewer(800, 600)
//
//	// Headless, four workers
//	v, err := fractal.NewViewer(800, 600,
//	    fractal.WithWorkers(4),
//	    fractal.WithClock(fractal.InstantClock()))
type Option func(*options)

// options holds optional configuration for Viewer creation.
type options struct {
	workers     int
	backend     Backend
	factory     kernel.Factory
	memoryLimit int
	target      time.Duration
	clock       Clock
	presenter   Presenter
	palette     Palette
	view        *View
	logger      *slog.Logger
}

// defaultOptions returns the default viewer options.
func defaultOptions() options {
	return options{
		workers:     0, // GOMAXPROCS
		backend:     BackendPool,
		factory:     kernel.Reference(),
		memoryLimit: arena.DefaultLimit,
		palette:     DefaultPalette(),
	}
}

// WithWorkers sets the number of pool workers. Zero or negative selects
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithBackend selects the execution context.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithKernel replaces the reference escape-time kernel.
// The factory is called once per worker during Start.
func WithKernel(f kernel.Factory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithMemoryLimit sets the arena ceiling in bytes. It is rounded down to
// whole 64 KiB pages. Non-positive values keep the default of 1.25 GiB.
func WithMemoryLimit(bytes int) Option {
	return func(o *options) {
		if bytes > 0 {
			o.memoryLimit = bytes
		}
	}
}

// WithTargetFrameTime sets the pass duration the per-worker budgets aim for.
func WithTargetFrameTime(d time.Duration) Option {
	return func(o *options) {
		o.target = d
	}
}

// WithClock sets the tick source of the coordinator loop.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithPresenter sets the receiver of presented frames.
func WithPresenter(p Presenter) Option {
	return func(o *options) {
		o.presenter = p
	}
}

// WithPalette sets the initial palette.
func WithPalette(p Palette) Option {
	return func(o *options) {
		o.palette = p.Clone()
	}
}

// WithView sets the initial view. Unset fields are filled in for the
// size given to NewViewer, except the centre: a zero centre is the plane
// origin. Start from DefaultView to keep the home position.
func WithView(v View) Option {
	return func(o *options) {
		o.view = &v
	}
}

// WithLogger sets a logger for this viewer only. Without it the viewer
// follows SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// TickerClock returns a clock ticking every interval, 60 Hz when
// interval is not positive.
func TickerClock(interval time.Duration) Clock {
	return driver.NewTicker(interval)
}

// InstantClock returns a clock whose ticks are always ready. Use it for
// headless rendering.
func InstantClock() Clock {
	return driver.Instant{}
}
