package parallel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gogpu/fractal/internal/sched"
	"github.com/gogpu/fractal/kernel"
)

var (
	// ErrKernelUnavailable marks a worker whose kernel failed to initialize.
	ErrKernelUnavailable = errors.New("parallel: kernel unavailable")

	// ErrNoWorkers is returned when no worker passed the readiness handshake.
	ErrNoWorkers = errors.New("parallel: no worker is ready")

	// ErrClosed is the abort cause of a request the backend could not run
	// because it was closed or never started.
	ErrClosed = errors.New("parallel: backend closed")
)

// discard is the logger of a backend created without one.
var discard = slog.New(slog.DiscardHandler)

func discardLogger() *slog.Logger { return discard }

// Op selects the kernel entry point of a request.
type Op uint8

const (
	// OpCompute runs Kernel.Compute against the shared cursor.
	OpCompute Op = 1

	// OpRender runs Kernel.Render over [Lo, Hi).
	OpRender Op = 2
)

// String returns the op name.
func (o Op) String() string {
	switch o {
	case OpCompute:
		return "compute"
	case OpRender:
		return "render"
	default:
		return "unknown"
	}
}

// Request is one dispatch message to one worker.
type Request struct {
	// Op selects compute or render.
	Op Op

	// Generation tags the pass; responses echo it.
	Generation uint64

	// Params are the kernel parameters of the pass.
	Params kernel.Params

	// Budget is the worker's claim budget (compute only).
	Budget int

	// Lo and Hi bound the worker's sub-range (render only).
	Lo int
	Hi int
}

// Response is one worker report.
type Response struct {
	// Worker is the slot the request was dispatched to.
	Worker int

	// Generation echoes the request.
	Generation uint64

	// Op echoes the request.
	Op Op

	// Result is the kernel report.
	Result sched.Result

	// Duration is the worker's own kernel time.
	Duration time.Duration
}

// Backend is an execution context: a set of workers that each run one kernel
// invocation per request.
//
// Dispatch sends at most one outstanding request per worker; every request
// produces exactly one Response on Completions, including requests sent
// after Close, which come back aborted with ErrClosed. Workers never wait on
// each other, only on dispatch.
type Backend interface {
	// Start creates the workers and completes the readiness handshake.
	// Only workers that reported ready are admitted. Start fails only when
	// no worker is ready; individual failures are listed by Failures.
	Start(ctx context.Context) error

	// Failures returns the readiness failure of every worker that was not
	// admitted.
	Failures() []error

	// Workers returns the number of admitted workers.
	Workers() int

	// Dispatch sends req to the admitted worker slot.
	Dispatch(slot int, req Request)

	// Completions delivers responses tagged by worker slot.
	Completions() <-chan Response

	// Close stops all workers. It is safe to call multiple times.
	Close()
}

// closedResponse is the reply to a request that no worker will run.
func closedResponse(slot int, req Request) Response {
	return Response{Worker: slot, Generation: req.Generation, Op: req.Op, Result: sched.Aborted(ErrClosed)}
}
