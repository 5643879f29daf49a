package driver

import "time"

const (
	// warmupPasses is the number of passes before the estimate switches to
	// linear extrapolation.
	warmupPasses = 15

	// minRemaining floors the warm-up estimate.
	minRemaining = 200 * time.Millisecond
)

// Estimator tracks elapsed time and predicts the remaining time of one image
// computation.
//
// During the first passes the previous image's total time, minus the time
// already spent, is a better guess than extrapolating from a few chunks at
// the top of the image.
type Estimator struct {
	start     time.Time
	passes    int
	prior     time.Duration
	elapsed   time.Duration
	remaining time.Duration
}

// Restart begins timing a new computation at now. The prior estimate is
// kept.
func (e *Estimator) Restart(now time.Time) {
	e.start = now
	e.passes = 0
	e.elapsed = 0
	e.remaining = max(e.prior, minRemaining)
}

// Update records a completed pass at now with the given completed fraction
// in [0, 1] and returns the remaining-time estimate.
func (e *Estimator) Update(now time.Time, ratio float64) time.Duration {
	e.passes++
	e.elapsed = now.Sub(e.start)

	if e.passes < warmupPasses || ratio <= 0 {
		e.remaining = max(e.prior-e.elapsed, minRemaining)
		return e.remaining
	}
	ratio = min(ratio, 1)
	e.prior = time.Duration(float64(e.elapsed) / ratio)
	e.remaining = time.Duration(float64(e.elapsed) * (1 - ratio) / ratio)
	return e.remaining
}

// Finish records completion at now. The elapsed time becomes the prior
// estimate for the next computation.
func (e *Estimator) Finish(now time.Time) {
	e.elapsed = now.Sub(e.start)
	e.prior = e.elapsed
	e.remaining = 0
}

// Elapsed returns the time spent on the current computation as of the last
// update.
func (e *Estimator) Elapsed() time.Duration { return e.elapsed }

// Remaining returns the last estimate.
func (e *Estimator) Remaining() time.Duration { return e.remaining }

// Passes returns the number of passes recorded since Restart.
func (e *Estimator) Passes() int { return e.passes }
