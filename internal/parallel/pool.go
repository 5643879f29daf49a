package parallel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/fractal/internal/arena"
	"github.com/gogpu/fractal/internal/sched"
	"github.com/gogpu/fractal/kernel"
)

// Pool is the parallel execution context: one goroutine per worker, all
// sharing one arena.
//
// Each worker has its own inbound request channel; every worker reports on a
// single completion channel tagged by slot. The completion channel holds one
// response per worker, so a worker never blocks on reporting.
//
// Thread safety: Dispatch and Close may be called from the coordinator while
// workers run. Start must be called once before Dispatch. A request that is
// queued when Close runs is answered with ErrClosed by its worker.
type Pool struct {
	// workers is the number of worker goroutines requested.
	workers int

	// mem is the shared arena.
	mem *arena.Arena

	// factory creates one kernel per worker.
	factory kernel.Factory

	// log returns the current logger.
	log func() *slog.Logger

	// requests holds one request channel per admitted slot.
	requests []chan Request

	// completions is the multiplexed response channel.
	completions chan Response

	// done signals workers to stop.
	done chan struct{}

	// group runs and waits for worker goroutines.
	group errgroup.Group

	// mu orders Dispatch against Close so that no request is queued after
	// the workers stopped draining.
	mu sync.RWMutex

	// running indicates whether the pool is accepting work.
	running atomic.Bool

	// failures lists the workers that were not admitted.
	failures []error
}

// NewPool creates a pool of the given number of workers over mem.
// If workers is 0 or negative, GOMAXPROCS is used. Workers are created by
// Start.
func NewPool(workers int, mem *arena.Arena, factory kernel.Factory, log func() *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = discardLogger
	}
	return &Pool{
		workers:     workers,
		mem:         mem,
		factory:     factory,
		log:         log,
		completions: make(chan Response, workers),
		done:        make(chan struct{}),
	}
}

// Start creates every worker's kernel concurrently and admits the ones that
// report ready. It fails only when no worker is ready or ctx ends first.
func (p *Pool) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}

	created := make([]kernel.Kernel, p.workers)
	errs := make([]error, p.workers)
	var handshake errgroup.Group
	for id := range p.workers {
		handshake.Go(func() error {
			created[id], errs[id] = p.newKernel(id)
			return nil
		})
	}
	ready := make(chan struct{})
	go func() {
		_ = handshake.Wait()
		close(ready)
	}()
	select {
	case <-ready:
	case <-ctx.Done():
		p.running.Store(false)
		return ctx.Err()
	}

	kernels := make([]kernel.Kernel, 0, p.workers)
	for id, k := range created {
		if err := errs[id]; err != nil {
			p.failures = append(p.failures, fmt.Errorf("worker %d: %w: %w", id, ErrKernelUnavailable, err))
			p.log().Warn("parallel: worker not admitted", "worker", id, "err", err)
			continue
		}
		kernels = append(kernels, k)
	}

	if len(kernels) == 0 {
		p.running.Store(false)
		return errors.Join(append([]error{ErrNoWorkers}, p.failures...)...)
	}

	p.requests = make([]chan Request, len(kernels))
	for slot, k := range kernels {
		p.requests[slot] = make(chan Request, 1)
		p.group.Go(func() error {
			p.worker(slot, k)
			return nil
		})
	}

	p.log().Info("parallel: pool started", "workers", len(kernels), "requested", p.workers)
	return nil
}

// newKernel runs the factory, converting a panic into an error.
func (p *Pool) newKernel(id int) (k kernel.Kernel, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	k, err = p.factory(id)
	if err == nil && k == nil {
		err = errors.New("factory returned nil kernel")
	}
	return k, err
}

// worker is the main loop for each worker goroutine.
func (p *Pool) worker(slot int, k kernel.Kernel) {
	queue := p.requests[slot]
	for {
		select {
		case <-p.done:
			select {
			case req := <-queue:
				p.completions <- closedResponse(slot, req)
			default:
			}
			return
		case req := <-queue:
			p.completions <- execute(p.mem, k, slot, req)
		}
	}
}

// Dispatch sends req to the worker in slot. If the pool is closed or slot
// is not admitted, req is answered with ErrClosed instead.
func (p *Pool) Dispatch(slot int, req Request) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running.Load() || slot < 0 || slot >= len(p.requests) {
		p.reject(slot, req)
		return
	}
	select {
	case p.requests[slot] <- req:
	default:
		// The slot already has an outstanding request.
		p.reject(slot, req)
	}
}

// reject answers req with ErrClosed without blocking the coordinator.
func (p *Pool) reject(slot int, req Request) {
	select {
	case p.completions <- closedResponse(slot, req):
	default:
		p.log().Warn("parallel: response dropped", "worker", slot, "generation", req.Generation)
	}
}

// Completions returns the multiplexed response channel.
func (p *Pool) Completions() <-chan Response {
	return p.completions
}

// Workers returns the number of admitted workers.
func (p *Pool) Workers() int {
	return len(p.requests)
}

// Failures returns the readiness failures of workers that were not admitted.
func (p *Pool) Failures() []error {
	return p.failures
}

// IsRunning returns true if the pool is still accepting work.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

// Close stops all workers. A worker that is executing finishes its claimed
// chunk first. Close is safe to call multiple times.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.mu.Unlock()
		return
	}
	close(p.done)
	p.mu.Unlock()
	_ = p.group.Wait()
}

// execute runs one request and times it. A kernel panic is reported as an
// aborted result rather than taking the worker down.
func execute(mem *arena.Arena, k kernel.Kernel, slot int, req Request) (resp Response) {
	resp = Response{Worker: slot, Generation: req.Generation, Op: req.Op}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp.Result = sched.Aborted(fmt.Errorf("kernel panic: %v", r))
		}
		resp.Duration = time.Since(start)
	}()

	b := kernel.BuffersFrom(mem)
	switch req.Op {
	case OpCompute:
		resp.Result = k.Compute(b, req.Params, req.Budget)
	case OpRender:
		k.Render(b, req.Params, req.Lo, req.Hi)
		resp.Result = sched.Rendered()
	default:
		resp.Result = sched.Aborted(fmt.Errorf("unknown op %d", req.Op))
	}
	return resp
}
