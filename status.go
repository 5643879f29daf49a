package fractal

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/fractal/internal/driver"
	"github.com/gogpu/fractal/kernel"
)

// Status describes the progress of the current image.
type Status struct {
	// Formula and Iterations describe what is being rendered.
	Formula    kernel.Formula
	Julia      bool
	Iterations int

	// Computed pixels are final; Total is the raster size.
	Computed int
	Total    int
	Done     bool

	// Elapsed is the time spent on the current image; Remaining is the
	// estimate of what is left.
	Elapsed   time.Duration
	Remaining time.Duration

	// Workers is the number of admitted workers.
	Workers int

	// Performance is the average per-worker budget normalised by the target
	// frame time, in thousands of work units per millisecond.
	Performance float64

	// Passes counts the passes of the current image.
	Passes int

	// Stale counts discarded passes since the viewer started.
	Stale uint64

	// Generation identifies the view state. From Viewer.Status it is the
	// latest accepted change; in a presented status it is the state the
	// image was computed for, so a frame is current once its Generation
	// reaches the one read after a change.
	Generation uint64
}

// viewInfo is the part of Status that comes from the view.
type viewInfo struct {
	formula    kernel.Formula
	julia      bool
	iterations int
}

func newStatus(s driver.Stats, v viewInfo) Status {
	return Status{
		Formula:     v.formula,
		Julia:       v.julia,
		Iterations:  v.iterations,
		Computed:    s.Computed,
		Total:       s.Total,
		Done:        s.Done,
		Elapsed:     s.Elapsed,
		Remaining:   s.Remaining,
		Workers:     s.Workers,
		Performance: s.Performance,
		Passes:      s.Passes,
		Stale:       s.Stale,
		Generation:  s.Generation,
	}
}

// Percent returns the completed share in [0, 100].
func (s Status) Percent() float64 {
	if s.Done || s.Total == 0 {
		return 100
	}
	return 100 * float64(s.Computed) / float64(s.Total)
}

// String formats the status in English.
func (s Status) String() string {
	return s.Format(language.English)
}

// Format formats the status with the number conventions of tag.
func (s Status) Format(tag language.Tag) string {
	p := message.NewPrinter(tag)

	name := s.Formula.String()
	if s.Julia {
		name += " (Julia)"
	}
	head := p.Sprintf("%s, %d iterations", name, s.Iterations)

	if s.Done {
		return p.Sprintf("%s: done in %.2fs (%d px, %d threads, %.1f perf)",
			head, s.Elapsed.Seconds(), s.Total, s.Workers, s.Performance)
	}
	return p.Sprintf("%s: %.1f%% (%d of %d px), %.2fs elapsed, ~%.2fs left, %d threads, %.1f perf",
		head, s.Percent(), s.Computed, s.Total, s.Elapsed.Seconds(), s.Remaining.Seconds(),
		s.Workers, s.Performance)
}
