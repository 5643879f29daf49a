package sched

// Tally aggregates the reports of one compute pass.
//
// The progress cursor is the minimum of the progress indices reported in the
// pass. A fast worker's tail does not represent a coherent completed prefix,
// so only the minimum is safe to treat as done. Exhausted and aborted
// workers do not contribute.
type Tally struct {
	total    int
	reports  int
	progress int
	min      int
	max      int
}

// NewTally starts aggregation for a pixel space of total pixels.
func NewTally(total int) *Tally {
	return &Tally{total: total, min: -1, max: -1}
}

// Report records one worker result.
func (p *Tally) Report(r Result) {
	p.reports++
	if r.Kind != KindProgress {
		return
	}
	if p.progress == 0 || r.Index < p.min {
		p.min = r.Index
	}
	if r.Index > p.max {
		p.max = r.Index
	}
	p.progress++
}

// Reports returns the number of results recorded.
func (p *Tally) Reports() int {
	return p.reports
}

// Done reports whether the image is complete: every worker was exhausted or
// aborted, or the minimum progress index reached the pixel count.
func (p *Tally) Done() bool {
	return p.progress == 0 || p.min >= p.total
}

// Cursor returns the progress cursor: the minimum reported progress index,
// or the pixel count once Done.
func (p *Tally) Cursor() int {
	if p.Done() {
		return p.total
	}
	return p.min
}

// Highest returns the largest reported progress index, or the pixel count
// once Done.
func (p *Tally) Highest() int {
	if p.Done() {
		return p.total
	}
	return p.max
}
