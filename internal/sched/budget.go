package sched

import "time"

const (
	// DefaultBudget is the initial per-worker budget in work units.
	DefaultBudget = 200000

	// DefaultBias keeps a budget from collapsing after an unusually fast pass.
	DefaultBias = 5000

	// decay is the smoothing weight kept from the previous budget.
	decay = 0.9

	// maxGrowth bounds the per-pass increment relative to the budget.
	maxGrowth = 0.25
)

// CostModel is an exponentially smoothed proportional controller that drives
// a worker's chunk budget toward the value that makes its own pass duration
// match the target frame time:
//
//	W' = 0.9·W + clamp(factor·(W+bias)/max(d,1), floor, 0.25·W)
//
// where d is the worker's pass duration in milliseconds. In steady state the
// increment equals 0.1·W, so d settles at 10·factor·(W+bias)/W; with
// factor = 0.1·target that is the target frame time plus the bias share.
type CostModel struct {
	// Factor is the proportional gain in milliseconds.
	Factor float64

	// Bias is added to the budget before scaling.
	Bias float64

	// Floor is the smallest increment applied per pass.
	Floor float64

	// Max caps the budget. Zero means uncapped.
	Max float64
}

// NewCostModel returns the controller for the given target frame time.
// Non-positive targets select 34.5ms.
func NewCostModel(target time.Duration) CostModel {
	if target <= 0 {
		target = 34500 * time.Microsecond
	}
	return CostModel{
		Factor: 0.1 * millis(target),
		Bias:   DefaultBias,
		Floor:  DefaultBias,
	}
}

// Next returns the budget following w after a pass that took d.
func (m CostModel) Next(w float64, d time.Duration) float64 {
	ms := millis(d)
	if ms < 1 {
		ms = 1
	}
	step := m.Factor * (w + m.Bias) / ms
	if hi := maxGrowth * w; step > hi {
		step = hi
	}
	if step < m.Floor {
		step = m.Floor
	}
	next := decay*w + step
	if m.Max > 0 && next > m.Max {
		next = m.Max
	}
	return next
}

// Target returns the steady-state pass duration the controller converges to
// for budget w.
func (m CostModel) Target(w float64) time.Duration {
	if w <= 0 {
		return 0
	}
	ms := m.Factor / (1 - decay) * (w + m.Bias) / w
	return time.Duration(ms * float64(time.Millisecond))
}

// Worker describes one execution context from the scheduler's view.
// It is created at pool setup and destroyed on pool teardown.
type Worker struct {
	// ID is the worker's slot in the pool.
	ID int

	// Budget is the adaptive cost budget in work units.
	Budget float64

	// Last is the most recent report.
	Last Result
}

// NewWorkers returns n workers with the default budget.
func NewWorkers(n int) []Worker {
	ws := make([]Worker, n)
	for i := range ws {
		ws[i] = Worker{ID: i, Budget: DefaultBudget}
	}
	return ws
}

// Claim returns the budget as an integer claim size of at least one unit.
func (w *Worker) Claim() int {
	if w.Budget < 1 {
		return 1
	}
	return int(w.Budget)
}

// Observe records a report and, for compute progress, re-estimates the budget
// from the worker's own duration. Exhausted and aborted reports leave the
// budget unchanged because they carry no throughput information.
func (w *Worker) Observe(m CostModel, r Result, d time.Duration) {
	w.Last = r
	if r.Kind == KindProgress {
		w.Budget = m.Next(w.Budget, d)
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
