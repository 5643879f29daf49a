package sched

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// Claim Tests
// =============================================================================

func TestClaim_UniformBudgets(t *testing.T) {
	// 100x100 field, 4 workers, uniform budget 2500.
	var word atomic.Int64
	c := NewCursor(&word)
	const total = 10000

	var chunks []Chunk
	for range 4 {
		ch, ok := c.Claim(2500, total)
		if !ok {
			t.Fatal("claim exhausted early")
		}
		chunks = append(chunks, ch)
	}

	for i, ch := range chunks {
		if ch.Len() != 2500 {
			t.Errorf("chunk %d length = %d, want 2500", i, ch.Len())
		}
	}
	assertExactCover(t, chunks, total)

	if _, ok := c.Claim(2500, total); ok {
		t.Error("fifth claim should be exhausted")
	}
}

func TestClaim_PastEnd(t *testing.T) {
	var word atomic.Int64
	c := NewCursor(&word)

	ch, ok := c.Claim(7, 5)
	if !ok {
		t.Fatal("first claim should succeed")
	}
	if ch != (Chunk{0, 5}) {
		t.Errorf("chunk = %+v, want {0 5}", ch)
	}
	if _, ok := c.Claim(1, 5); ok {
		t.Error("claim past end should be exhausted")
	}
}

func TestClaim_MinimumOne(t *testing.T) {
	var word atomic.Int64
	c := NewCursor(&word)
	ch, ok := c.Claim(0, 10)
	if !ok || ch.Len() != 1 {
		t.Errorf("Claim(0) = %+v, %v; want one pixel", ch, ok)
	}
}

func TestClaim_Reset(t *testing.T) {
	var word atomic.Int64
	c := NewCursor(&word)
	c.Claim(100, 10)
	c.Reset()
	if c.Load() != 0 {
		t.Errorf("Load() after Reset = %d, want 0", c.Load())
	}
}

func TestClaim_ExactCoverConcurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := range 50 {
		total := 1 + rng.Intn(50000)
		workers := 1 + rng.Intn(16)

		var word atomic.Int64
		c := NewCursor(&word)

		var mu sync.Mutex
		var chunks []Chunk
		var wg sync.WaitGroup

		for w := range workers {
			seed := int64(trial*100 + w)
			wg.Add(1)
			go func() {
				defer wg.Done()
				r := rand.New(rand.NewSource(seed))
				for {
					ch, ok := c.Claim(1+r.Intn(3000), total)
					if !ok {
						return
					}
					mu.Lock()
					chunks = append(chunks, ch)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assertExactCover(t, chunks, total)
	}
}

func assertExactCover(t *testing.T, chunks []Chunk, total int) {
	t.Helper()
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Start < chunks[j].Start })
	next := 0
	for _, ch := range chunks {
		if ch.Start != next {
			t.Fatalf("gap or overlap at %d: chunk starts at %d", next, ch.Start)
		}
		if ch.End <= ch.Start {
			t.Fatalf("empty chunk %+v", ch)
		}
		next = ch.End
	}
	if next != total {
		t.Fatalf("cover ends at %d, want %d", next, total)
	}
}

// =============================================================================
// Tally Tests
// =============================================================================

func TestTally_Minimum(t *testing.T) {
	p := NewTally(1000)
	p.Report(Progress(400))
	p.Report(Progress(320))
	p.Report(Progress(512))
	p.Report(Exhausted())

	if p.Done() {
		t.Fatal("Done() = true, want false")
	}
	if got := p.Cursor(); got != 320 {
		t.Errorf("Cursor() = %d, want 320", got)
	}
	if got := p.Highest(); got != 512 {
		t.Errorf("Highest() = %d, want 512", got)
	}
	if got := p.Reports(); got != 4 {
		t.Errorf("Reports() = %d, want 4", got)
	}
}

func TestTally_AllExhausted(t *testing.T) {
	p := NewTally(1000)
	p.Report(Exhausted())
	p.Report(Aborted(errors.New("fault")))
	if !p.Done() {
		t.Error("Done() = false, want true")
	}
	if got := p.Cursor(); got != 1000 {
		t.Errorf("Cursor() = %d, want 1000", got)
	}
}

func TestTally_MinimumReachesTotal(t *testing.T) {
	p := NewTally(64)
	p.Report(Progress(64))
	p.Report(Progress(64))
	if !p.Done() {
		t.Error("Done() = false, want true")
	}
}

func TestTally_NonDecreasingAcrossPasses(t *testing.T) {
	// Simulate a lineage of passes where each worker claims from the shared
	// cursor with its own budget and reports its last chunk end.
	var word atomic.Int64
	c := NewCursor(&word)
	const total = 100000
	budgets := []int{900, 3000, 1700}

	prev := 0
	for pass := 0; pass < 1000; pass++ {
		p := NewTally(total)
		for _, b := range budgets {
			claimed := 0
			last := Exhausted()
			for claimed < b {
				ch, ok := c.Claim(32, total)
				if !ok {
					last = Exhausted()
					break
				}
				claimed += ch.Len()
				last = Progress(ch.End)
			}
			p.Report(last)
		}
		if p.Cursor() < prev {
			t.Fatalf("pass %d: cursor %d < previous %d", pass, p.Cursor(), prev)
		}
		prev = p.Cursor()
		if p.Done() {
			return
		}
	}
	t.Fatal("lineage never completed")
}

// =============================================================================
// Cost Model Tests
// =============================================================================

func TestCostModel_GrowthCapped(t *testing.T) {
	m := NewCostModel(34500 * time.Microsecond)
	w := 100000.0
	// A near-instant pass wants a huge increment; growth is capped at 25%.
	got := m.Next(w, 0)
	if want := 0.9*w + 0.25*w; math.Abs(got-want) > 1e-6 {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestCostModel_Floor(t *testing.T) {
	m := NewCostModel(34500 * time.Microsecond)
	w := 100000.0
	got := m.Next(w, time.Hour)
	if want := 0.9*w + DefaultBias; math.Abs(got-want) > 1e-6 {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestCostModel_Max(t *testing.T) {
	m := NewCostModel(30 * time.Millisecond)
	m.Max = 1000
	if got := m.Next(900, 0); got != 1000 {
		t.Errorf("Next = %v, want capped 1000", got)
	}
}

func TestCostModel_SlowWorkerGetsLess(t *testing.T) {
	// Four workers, one simulated 2x slower. Each worker's pass duration is
	// its budget divided by its throughput (units per millisecond).
	target := 33 * time.Millisecond
	m := NewCostModel(target)
	speeds := []float64{10000, 10000, 10000, 5000}
	ws := NewWorkers(len(speeds))

	duration := func(i int) time.Duration {
		return time.Duration(ws[i].Budget / speeds[i] * float64(time.Millisecond))
	}

	for range 200 {
		for i := range ws {
			ws[i].Observe(m, Progress(1), duration(i))
		}
	}

	tolerance := 3 * time.Millisecond
	lo, hi := duration(0), duration(0)
	for i := range ws {
		d := duration(i)
		lo = min(lo, d)
		hi = max(hi, d)
		if diff := d - target; diff < -tolerance || diff > tolerance {
			t.Errorf("worker %d duration %v not within %v of target %v", i, d, tolerance, target)
		}
	}
	if hi-lo > tolerance {
		t.Errorf("durations differ by %v, want < %v", hi-lo, tolerance)
	}
	if ws[3].Budget >= ws[0].Budget {
		t.Errorf("slow worker budget %v should be below fast worker budget %v", ws[3].Budget, ws[0].Budget)
	}
}

func TestCostModel_Target(t *testing.T) {
	m := NewCostModel(33 * time.Millisecond)
	w := 330000.0
	got := m.Target(w)
	want := time.Duration(33 * (w + DefaultBias) / w * float64(time.Millisecond))
	if diff := got - want; diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("Target = %v, want %v", got, want)
	}
}

func TestWorker_ObserveIgnoresExhausted(t *testing.T) {
	m := NewCostModel(30 * time.Millisecond)
	w := Worker{Budget: 1234}
	w.Observe(m, Exhausted(), time.Millisecond)
	if w.Budget != 1234 {
		t.Errorf("Budget = %v, want unchanged 1234", w.Budget)
	}
	if w.Last.Kind != KindExhausted {
		t.Errorf("Last = %v, want exhausted", w.Last)
	}
}

func TestResult_String(t *testing.T) {
	tests := []struct {
		r    Result
		want string
	}{
		{Progress(12), "progress(12)"},
		{Exhausted(), "exhausted"},
		{Rendered(), "rendered"},
		{Ready(), "ready"},
		{Failed(errors.New("boom")), "failed(boom)"},
		{Aborted(nil), "aborted"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.r.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkClaim(b *testing.B) {
	var word atomic.Int64
	c := NewCursor(&word)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, ok := c.Claim(32, math.MaxInt32); !ok {
				c.Reset()
			}
		}
	})
}
