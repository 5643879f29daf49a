package driver

import "time"

// DefaultTickInterval models a 60 Hz display refresh.
const DefaultTickInterval = time.Second / 60

// Clock supplies display-refresh ticks and the current time.
type Clock interface {
	// Tick delivers one value per refresh.
	Tick() <-chan time.Time

	// Now returns the current time.
	Now() time.Time

	// Stop releases the clock's resources.
	Stop()
}

// Ticker is a Clock driven by a time.Ticker.
type Ticker struct {
	t *time.Ticker
}

// NewTicker returns a Clock ticking every interval. Non-positive intervals
// select DefaultTickInterval.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{t: time.NewTicker(interval)}
}

// Tick implements Clock.
func (c *Ticker) Tick() <-chan time.Time { return c.t.C }

// Now implements Clock.
func (c *Ticker) Now() time.Time { return time.Now() }

// Stop implements Clock.
func (c *Ticker) Stop() { c.t.Stop() }

// Instant is a Clock whose ticks are always ready. It runs the loop as fast
// as passes complete and is used for headless rendering.
type Instant struct{}

var ready = func() chan time.Time {
	c := make(chan time.Time)
	close(c)
	return c
}()

// Tick implements Clock.
func (Instant) Tick() <-chan time.Time { return ready }

// Now implements Clock.
func (Instant) Now() time.Time { return time.Now() }

// Stop implements Clock.
func (Instant) Stop() {}
