// Package driver runs the per-tick coordinator loop of the renderer.
//
// Each tick the driver drains at most one invalidation transition, applies it
// to the shared arena, dispatches one pass to every worker and aggregates the
// results: budgets, progress cursor, time estimate and presentation. When
// nothing is pending it stops reading ticks and waits for input.
//
// Input is accepted from any goroutine through Update, Pan, Resize and
// Recompute. Each accepted change bumps the input generation; a pass
// dispatched under an older generation is discarded when it completes.
package driver

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/fractal/internal/arena"
	"github.com/gogpu/fractal/internal/invalidate"
	"github.com/gogpu/fractal/internal/parallel"
	"github.com/gogpu/fractal/internal/sched"
	"github.com/gogpu/fractal/kernel"
)

// PresentInterval is the minimum time between two intermediate frames.
const PresentInterval = 12 * time.Millisecond

// flowDivisor converts a flow rate into a per-tick palette offset.
const flowDivisor = 120

// ErrNotStarted is returned by Step and Run before Start succeeded.
var ErrNotStarted = errors.New("driver: not started")

// Input is the view state submitted by the caller.
type Input struct {
	// Params are the kernel parameters. PaletteLen is derived from Palette.
	Params kernel.Params

	// Palette holds the packed palette entries, interior excluded.
	Palette []uint32

	// FlowRate animates the palette offset while the image is complete.
	FlowRate float32
}

func (in Input) clone() Input {
	in.Palette = slices.Clone(in.Palette)
	return in
}

// Config configures a Driver.
type Config struct {
	// Backend executes passes. It is started by Driver.Start.
	Backend parallel.Backend

	// Memory is the arena shared with the backend.
	Memory *arena.Arena

	// Clock paces the loop. Nil selects a 60 Hz Ticker.
	Clock Clock

	// Presenter receives frames. Nil discards them.
	Presenter Presenter

	// Target is the frame time the cost model aims for.
	Target time.Duration

	// Logger returns the logger to use. Nil discards log output.
	Logger func() *slog.Logger

	// Initial is the first view.
	Initial Input
}

type mode uint8

const (
	modeIdle mode = iota
	modeCompute
	modeRender
)

// Driver is the frame coordinator.
type Driver struct {
	backend   parallel.Backend
	mem       *arena.Arena
	clock     Clock
	presenter Presenter
	model     sched.CostModel
	log       func() *slog.Logger

	// Input side, guarded by mu.
	mu      sync.Mutex
	pending Input
	machine invalidate.Machine
	gen     uint64
	wake    chan struct{}

	// Coordinator side. memMu is held while the arena is touched.
	memMu       sync.Mutex
	started     bool
	workers     []sched.Worker
	applied     Input
	mode        mode
	complete    bool
	claimed     int
	est         Estimator
	bands       *parallel.Bands
	shifter     invalidate.Shifter
	lastPresent time.Time
	inflight    int
	passGen     uint64

	statsMu sync.Mutex
	stats   Stats
	fatal   error
}

// New creates a driver. The first tick lays out the arena for cfg.Initial
// and starts computing it.
func New(cfg Config) *Driver {
	if cfg.Clock == nil {
		cfg.Clock = NewTicker(DefaultTickInterval)
	}
	if cfg.Presenter == nil {
		cfg.Presenter = PresenterFunc(func(Frame) {})
	}
	if cfg.Logger == nil {
		discard := slog.New(slog.DiscardHandler)
		cfg.Logger = func() *slog.Logger { return discard }
	}
	d := &Driver{
		backend:   cfg.Backend,
		mem:       cfg.Memory,
		clock:     cfg.Clock,
		presenter: cfg.Presenter,
		model:     sched.NewCostModel(cfg.Target),
		log:       cfg.Logger,
		pending:   cfg.Initial.clone(),
		wake:      make(chan struct{}, 1),
	}
	d.pending.Params.PaletteLen = len(d.pending.Palette)
	d.machine.MarkResize(invalidate.ResizeViewport)
	d.gen = 1
	return d
}

// Start starts the backend and creates one scheduler descriptor per
// admitted worker.
func (d *Driver) Start(ctx context.Context) error {
	d.memMu.Lock()
	defer d.memMu.Unlock()
	if d.started {
		return nil
	}
	if err := d.backend.Start(ctx); err != nil {
		return err
	}
	d.workers = sched.NewWorkers(d.backend.Workers())
	d.started = true

	d.statsMu.Lock()
	d.stats.Workers = len(d.workers)
	d.statsMu.Unlock()
	return nil
}

// Close stops the backend and the clock.
func (d *Driver) Close() {
	d.backend.Close()
	d.clock.Stop()
}

// =============================================================================
// Input side
// =============================================================================

// Update applies fn to the pending input and records the minimal
// invalidation for the difference. A change of raster size is recorded as a
// viewport resize.
func (d *Driver) Update(fn func(in *Input)) {
	d.mu.Lock()
	prev := d.pending.Params
	prevPalette := d.pending.Palette
	prevRate := d.pending.FlowRate
	fn(&d.pending)
	d.pending.Params.PaletteLen = len(d.pending.Palette)

	changed := false
	if prev.Width != d.pending.Params.Width || prev.Height != d.pending.Params.Height {
		d.machine.MarkResize(invalidate.ResizeViewport)
		changed = true
	}
	c := invalidate.Classify(prev, d.pending.Params)
	if !slices.Equal(prevPalette, d.pending.Palette) {
		c.Flags |= invalidate.FlagRecolor
	}
	if prevRate == 0 && d.pending.FlowRate != 0 {
		// Restart the animation of a completed image.
		c.Flags |= invalidate.FlagRecolor
	}
	if !c.None() {
		d.machine.Mark(c)
		changed = true
	}
	d.commit(changed)
}

// Resize applies fn, which is expected to change the raster size, and
// records a resize with the given cause.
func (d *Driver) Resize(cause invalidate.ResizeCause, fn func(in *Input)) {
	d.mu.Lock()
	fn(&d.pending)
	d.pending.Params.PaletteLen = len(d.pending.Palette)
	d.machine.MarkResize(cause)
	d.commit(true)
}

// Recompute applies fn and records a full recompute regardless of what
// changed.
func (d *Driver) Recompute(fn func(in *Input)) {
	d.mu.Lock()
	fn(&d.pending)
	d.pending.Params.PaletteLen = len(d.pending.Palette)
	d.machine.MarkFullRecompute()
	d.commit(true)
}

// Pan moves the view by whole pixels: content at (x, y) moves to
// (x+dx, y+dy). Already computed pixels are kept.
func (d *Driver) Pan(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	d.mu.Lock()
	p := &d.pending.Params
	p.OriginX -= float64(dx) * p.Scale
	p.OriginY -= float64(dy) * p.Scale
	d.machine.MarkShift(dx, dy)
	d.commit(true)
}

// commit bumps the generation when changed, releases mu and wakes the
// coordinator.
func (d *Driver) commit(changed bool) {
	if changed {
		d.gen++
	}
	d.mu.Unlock()
	if changed {
		d.signal()
	}
}

func (d *Driver) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending returns a copy of the pending input.
func (d *Driver) Pending() Input {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.clone()
}

// snapshot drains one transition and copies the input it applies to.
func (d *Driver) snapshot() (invalidate.Transition, Input, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.machine.Next(), d.pending.clone(), d.gen
}

func (d *Driver) generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen
}

func (d *Driver) hasPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.machine.Pending() != 0
}

// animate advances the palette flow of the pending input. It does not bump
// the generation: the image itself is complete.
func (d *Driver) animate() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	rate := d.pending.FlowRate
	n := float32(len(d.pending.Palette))
	if rate == 0 || n == 0 {
		return false
	}
	f := d.pending.Params.Flow + rate/flowDivisor
	for f >= n {
		f -= n
	}
	for f < 0 {
		f += n
	}
	d.pending.Params.Flow = f
	d.machine.MarkRecolor()
	return true
}

// =============================================================================
// Coordinator side
// =============================================================================

// Run is the coordinator loop. It returns when ctx ends or a fatal error
// stops the session.
func (d *Driver) Run(ctx context.Context) error {
	for {
		busy, err := d.Step(ctx)
		if err != nil {
			return err
		}
		if !busy {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.wake:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.clock.Tick():
		}
	}
}

// Step runs one tick: drain one transition, apply it and run one pass.
// It reports whether more work is pending.
func (d *Driver) Step(ctx context.Context) (bool, error) {
	if err := d.Err(); err != nil {
		return false, err
	}

	d.memMu.Lock()
	defer d.memMu.Unlock()
	if !d.started {
		return false, ErrNotStarted
	}
	if err := d.drain(ctx); err != nil {
		return true, err
	}

	tr, in, gen := d.snapshot()
	if tr.State != invalidate.Idle {
		if err := d.apply(tr, in); err != nil {
			d.fail(err)
			return false, err
		}
	}
	if d.mode == modeIdle {
		return d.hasPending(), nil
	}
	if err := d.pass(ctx, gen); err != nil {
		return true, err
	}
	return d.mode != modeIdle || d.hasPending(), nil
}

// apply performs a transition on the arena. The caller holds memMu and no
// pass is in flight.
func (d *Driver) apply(tr invalidate.Transition, in Input) error {
	p := in.Params
	pixels := p.Pixels()
	now := d.clock.Now()

	if tr.State == invalidate.Resizing || !slices.Equal(in.Palette, d.applied.Palette) {
		l, err := d.mem.Relayout(pixels, len(in.Palette))
		if err != nil {
			return err
		}
		d.mem.SetPalette(in.Palette)
		d.log().Debug("driver: relayout", "pixels", pixels, "palette", len(in.Palette), "bytes", l.Total)
	}

	switch tr.State {
	case invalidate.Resizing:
		invalidate.ResetIterations(d.mem.Iterations(), d.mem.Shading())
		invalidate.ClearColors(d.mem.Colors())
		d.bands = parallel.NewBands(p.Height, parallel.BandRows)
		d.startCompute(now)
		d.log().Info("driver: resize", "width", p.Width, "height", p.Height, "cause", tr.Cause)

	case invalidate.FullRecompute:
		invalidate.ResetIterations(d.mem.Iterations(), d.mem.Shading())
		d.startCompute(now)

	case invalidate.PixelShift:
		d.shifter.ShiftArena(d.mem, p.Width, p.Height, tr.DX, tr.DY, p.Shading != kernel.ShadingNone)
		d.startCompute(now)

	case invalidate.RecolorOnly:
		if tr.ClearShading {
			clear(d.mem.Shading())
		}
		invalidate.ClearColors(d.mem.Colors())
		if d.complete {
			d.mode = modeRender
		} else {
			d.startCompute(now)
		}
	}

	sched.NewCursor(d.mem.Cursor()).Reset()
	d.applied = in

	d.statsMu.Lock()
	d.stats.Total = pixels
	d.statsMu.Unlock()
	return nil
}

func (d *Driver) startCompute(now time.Time) {
	d.mode = modeCompute
	d.complete = false
	d.claimed = 0
	d.est.Restart(now)
}

// pass dispatches one pass to every worker and aggregates it.
func (d *Driver) pass(ctx context.Context, gen uint64) error {
	p := d.applied.Params
	total := p.Pixels()
	n := len(d.workers)
	d.passGen = gen

	if total == 0 {
		d.finish(d.clock.Now(), sched.NewTally(0))
		return nil
	}

	op := parallel.OpCompute
	if d.mode == modeRender {
		op = parallel.OpRender
	}
	for slot := range n {
		req := parallel.Request{Op: op, Generation: gen, Params: p}
		if op == parallel.OpCompute {
			req.Budget = d.workers[slot].Claim()
		} else {
			req.Lo = total * slot / n
			req.Hi = total * (slot + 1) / n
		}
		d.inflight++
		d.backend.Dispatch(slot, req)
	}

	progress := sched.NewTally(total)
	var aborted uint64
	var closed error
	for d.inflight > 0 {
		select {
		case r := <-d.backend.Completions():
			d.inflight--
			if errors.Is(r.Result.Err, parallel.ErrClosed) {
				closed = r.Result.Err
				continue
			}
			if r.Worker >= 0 && r.Worker < n {
				d.workers[r.Worker].Observe(d.model, r.Result, r.Duration)
			}
			if r.Result.Kind == sched.KindAborted {
				aborted++
				d.log().Warn("driver: worker aborted", "worker", r.Worker, "err", r.Result.Err)
			}
			progress.Report(r.Result)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if closed != nil {
		d.fail(closed)
		return closed
	}

	d.statsMu.Lock()
	d.stats.TotalPasses++
	d.stats.Aborted += aborted
	if op == parallel.OpRender {
		d.stats.RenderPasses++
	}
	d.stats.Performance = d.performance()
	d.statsMu.Unlock()

	if current := d.generation(); current != gen {
		d.statsMu.Lock()
		d.stats.Stale++
		d.statsMu.Unlock()
		d.log().Debug("driver: stale pass discarded", "generation", gen, "current", current)
		return nil
	}

	now := d.clock.Now()
	if op == parallel.OpRender {
		if d.bands != nil {
			d.bands.MarkAll()
		}
		d.mode = modeIdle
		d.present(now, true)
		d.animate()
		return nil
	}

	claimed := min(sched.NewCursor(d.mem.Cursor()).Load(), total)
	if d.bands != nil {
		d.bands.MarkPixels(d.claimed, claimed, p.Width)
	}
	d.claimed = max(d.claimed, claimed)

	if progress.Done() {
		d.finish(now, progress)
		return nil
	}

	remaining := d.est.Update(now, float64(progress.Cursor())/float64(total))
	d.statsMu.Lock()
	d.stats.Computed = progress.Cursor()
	d.stats.Highest = progress.Highest()
	d.stats.Done = false
	d.stats.Passes = d.est.Passes()
	d.stats.Elapsed = d.est.Elapsed()
	d.stats.Remaining = remaining
	d.statsMu.Unlock()
	d.present(now, false)
	return nil
}

// finish completes the current image.
func (d *Driver) finish(now time.Time, progress *sched.Tally) {
	d.mode = modeIdle
	d.complete = true
	d.est.Finish(now)

	d.statsMu.Lock()
	d.stats.Computed = progress.Cursor()
	d.stats.Highest = progress.Highest()
	d.stats.Done = true
	d.stats.Passes = d.est.Passes()
	d.stats.Elapsed = d.est.Elapsed()
	d.stats.Remaining = 0
	d.statsMu.Unlock()

	d.log().Debug("driver: image complete", "passes", d.est.Passes(), "elapsed", d.est.Elapsed())
	d.present(now, true)
	d.animate()
}

// present hands the output to the presenter, at most once per
// PresentInterval for intermediate frames.
func (d *Driver) present(now time.Time, final bool) {
	if !final && now.Sub(d.lastPresent) < PresentInterval {
		return
	}
	d.lastPresent = now

	var dirty []parallel.Span
	if d.bands != nil {
		dirty = d.bands.GetAndClear()
	}
	p := d.applied.Params
	st := d.Stats()
	st.Generation = d.passGen
	d.presenter.Present(Frame{
		Width:  p.Width,
		Height: p.Height,
		Pixels: d.mem.ColorBytes(),
		Dirty:  dirty,
		Final:  final,
		Stats:  st,
	})
}

// performance returns sum(budgets)/workers/factor/1000.
func (d *Driver) performance() float64 {
	if len(d.workers) == 0 || d.model.Factor == 0 {
		return 0
	}
	var sum float64
	for _, w := range d.workers {
		sum += w.Budget
	}
	return sum / float64(len(d.workers)) / d.model.Factor / 1000
}

// drain discards responses left over from a pass interrupted by ctx.
func (d *Driver) drain(ctx context.Context) error {
	for d.inflight > 0 {
		select {
		case <-d.backend.Completions():
			d.inflight--
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *Driver) fail(err error) {
	d.mode = modeIdle
	d.statsMu.Lock()
	d.fatal = err
	d.statsMu.Unlock()
	d.log().Warn("driver: stopped", "err", err)
}

// Err returns the fatal error that stopped the session, if any.
func (d *Driver) Err() error {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.fatal
}

// Stats returns a snapshot of the driver counters.
func (d *Driver) Stats() Stats {
	d.statsMu.Lock()
	s := d.stats
	d.statsMu.Unlock()
	s.Generation = d.generation()
	return s
}

// Budgets returns the current per-worker budgets.
func (d *Driver) Budgets() []float64 {
	d.memMu.Lock()
	defer d.memMu.Unlock()
	out := make([]float64, len(d.workers))
	for i, w := range d.workers {
		out[i] = w.Budget
	}
	return out
}

// WithMemory calls fn with the arena and the parameters it currently holds,
// while no pass is in flight.
func (d *Driver) WithMemory(fn func(mem *arena.Arena, p kernel.Params)) {
	d.memMu.Lock()
	defer d.memMu.Unlock()
	fn(d.mem, d.applied.Params)
}
