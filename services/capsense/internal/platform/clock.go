package platform

import (
	"context"
	"sync"
	"time"

	"capsense-go/x/timex"
)

type ClockConfig struct {
	OscHz    uint32
	DriftPct int // actual = nominal * (100+DriftPct) / 100
	// MeasurePolls is how many Compensate polls a measurement takes.
	MeasurePolls int
}

// Clock models the low-accuracy wake oscillator and the sleep it times.
// The oscillator runs DriftPct off nominal; a measurement recovers the
// true rate so the wake match can be corrected.
type Clock struct {
	nominal  uint32
	actual   uint32
	polls    int
	mu       sync.Mutex
	measure  int // polls left, <0 when idle
	match    uint32
	onWake   func()
	feed     func()
	sleepFor func(ctx context.Context, d time.Duration) error
}

func NewClock(cfg ClockConfig) *Clock {
	if cfg.MeasurePolls <= 0 {
		cfg.MeasurePolls = 3
	}
	actual := uint32(int64(cfg.OscHz) * int64(100+cfg.DriftPct) / 100)
	return &Clock{
		nominal:  cfg.OscHz,
		actual:   actual,
		polls:    cfg.MeasurePolls,
		measure:  -1,
		sleepFor: sleepCtx,
	}
}

// ActualHz is the true oscillator rate.
func (c *Clock) ActualHz() uint32 { return c.actual }

// ---- Oscillator ----

func (c *Clock) StartMeasurement() {
	c.mu.Lock()
	c.measure = c.polls
	c.mu.Unlock()
}

func (c *Clock) Compensate(desiredUs uint32) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.measure < 0 {
		return 0, false
	}
	if c.measure > 0 {
		c.measure--
		return 0, false
	}
	return timex.CyclesFor(desiredUs, c.actual), true
}

func (c *Clock) StopMeasurement() {
	c.mu.Lock()
	c.measure = -1
	c.mu.Unlock()
}

// ---- WakeTimer ----

func (c *Clock) Enable(onWake func()) error {
	c.mu.Lock()
	c.onWake = onWake
	c.mu.Unlock()
	return nil
}

func (c *Clock) SetMatch(cycles uint32) {
	c.mu.Lock()
	c.match = cycles
	c.mu.Unlock()
}

// Period is how long the current match takes on the real oscillator.
func (c *Clock) Period() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return timex.DurationOf(c.match, c.actual)
}

// ---- Power ----

// EnterDeepSleep blocks until the wake match elapses, then services the
// watchdog and raises the wake callback.
func (c *Clock) EnterDeepSleep(ctx context.Context) error {
	if err := c.sleepFor(ctx, c.Period()); err != nil {
		return err
	}
	c.Feed()
	c.mu.Lock()
	wake := c.onWake
	c.mu.Unlock()
	if wake != nil {
		wake()
	}
	return nil
}

// Feed services the watchdog. Every wake feeds it; long waits outside the
// sleep cycle call it directly.
func (c *Clock) Feed() {
	c.mu.Lock()
	feed := c.feed
	c.mu.Unlock()
	if feed != nil {
		feed()
	}
}

// OnFeed installs the watchdog service hook run at every wake.
func (c *Clock) OnFeed(f func()) {
	c.mu.Lock()
	c.feed = f
	c.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
