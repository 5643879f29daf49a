package parallel

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/gogpu/fractal/internal/arena"
	"github.com/gogpu/fractal/kernel"
)

// Sequential is the single-worker execution context. It keeps no worker
// goroutine between requests: Dispatch returns at once and the request runs
// in a deferred task that yields to the coordinator first. The response
// arrives on Completions, so the coordinator sees the same protocol as with
// a Pool and its dispatch step never nests kernel work.
type Sequential struct {
	mem         *arena.Arena
	factory     kernel.Factory
	log         func() *slog.Logger
	kernel      kernel.Kernel
	completions chan Response
	failures    []error

	// mu guards running and orders Dispatch against Close.
	mu      sync.Mutex
	running bool

	// exec serializes deferred tasks.
	exec sync.Mutex

	// pending tracks deferred tasks for Close.
	pending sync.WaitGroup
}

// NewSequential creates a single-worker backend over mem.
func NewSequential(mem *arena.Arena, factory kernel.Factory, log func() *slog.Logger) *Sequential {
	if log == nil {
		log = discardLogger
	}
	return &Sequential{
		mem:         mem,
		factory:     factory,
		log:         log,
		completions: make(chan Response, 1),
	}
}

// Start creates the kernel.
func (s *Sequential) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	k, err := s.factory(0)
	if err == nil && k == nil {
		err = fmt.Errorf("factory returned nil kernel")
	}
	if err != nil {
		err = fmt.Errorf("worker 0: %w: %w", ErrKernelUnavailable, err)
		s.failures = append(s.failures, err)
		return fmt.Errorf("%w: %w", ErrNoWorkers, err)
	}
	s.kernel = k
	s.running = true
	s.log().Info("parallel: sequential backend started")
	return nil
}

// Failures returns the readiness failure, if any.
func (s *Sequential) Failures() []error {
	return s.failures
}

// Workers returns 1 once started.
func (s *Sequential) Workers() int {
	if s.kernel == nil {
		return 0
	}
	return 1
}

// Dispatch schedules req and returns before it runs. If the backend is
// closed or slot is not 0, req is answered with ErrClosed.
func (s *Sequential) Dispatch(slot int, req Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || slot != 0 {
		select {
		case s.completions <- closedResponse(slot, req):
		default:
			s.log().Warn("parallel: response dropped", "worker", slot, "generation", req.Generation)
		}
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		runtime.Gosched()
		s.exec.Lock()
		resp := execute(s.mem, s.kernel, 0, req)
		s.exec.Unlock()
		s.completions <- resp
	}()
}

// Completions returns the response channel.
func (s *Sequential) Completions() <-chan Response {
	return s.completions
}

// Close stops the backend and waits for a scheduled request to finish.
// It is safe to call multiple times.
func (s *Sequential) Close() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.pending.Wait()
}
