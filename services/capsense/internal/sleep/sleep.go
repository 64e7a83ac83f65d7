// Package sleep bounds the main loop's duty cycle. Each cycle recalibrates
// the low-accuracy wake oscillator and then sleeps until the next wake.
package sleep

import (
	"context"
	"runtime"
	"sync/atomic"

	"capsense-go/errcode"
	"capsense-go/services/capsense/internal/halcore"
	"capsense-go/types"
	"capsense-go/x/timex"
)

type Config struct {
	IntervalUs uint32 // target wake period
	OscHz      uint32 // nominal oscillator frequency
}

// Cycle owns the wake flag and the compensated tick count.
type Cycle struct {
	osc halcore.Oscillator
	pwr halcore.Power
	wdt halcore.WakeTimer
	cfg Config

	nominal uint32
	woken   atomic.Bool // written from the wake callback
	ticks   uint32
	cycles  uint32
	polls   uint32
}

func New(osc halcore.Oscillator, pwr halcore.Power, wdt halcore.WakeTimer, cfg Config) *Cycle {
	return &Cycle{
		osc:     osc,
		pwr:     pwr,
		wdt:     wdt,
		cfg:     cfg,
		nominal: timex.CyclesFor(cfg.IntervalUs, cfg.OscHz),
	}
}

// Arm enables the periodic wake at the nominal count.
func (c *Cycle) Arm() error {
	if err := c.wdt.Enable(c.OnWake); err != nil {
		return errcode.Wrap(errcode.InitFailed, "sleep.arm", err)
	}
	c.ticks = c.nominal
	c.wdt.SetMatch(c.nominal)
	return nil
}

// OnWake is the wake interrupt handler. It only raises the flag.
func (c *Cycle) OnWake() { c.woken.Store(true) }

// Woken reports whether a wake event arrived since the last Trigger. No
// control flow depends on it.
func (c *Cycle) Woken() bool { return c.woken.Load() }

// Trigger runs one cycle: clear the flag, measure the oscillator until a
// compensated count is ready, program it, then sleep.
func (c *Cycle) Trigger(ctx context.Context) error {
	c.woken.Store(false)

	c.osc.StartMeasurement()
	var polls uint32
	for {
		ticks, ok := c.osc.Compensate(c.cfg.IntervalUs)
		polls++
		if ok {
			c.ticks = ticks
			break
		}
		if ctx.Err() != nil {
			c.osc.StopMeasurement()
			return ctx.Err()
		}
		runtime.Gosched()
	}
	c.osc.StopMeasurement()
	c.polls = polls
	c.cycles++

	c.wdt.SetMatch(c.ticks)
	return c.pwr.EnterDeepSleep(ctx)
}

// Compensated is the tick count programmed by the last cycle.
func (c *Cycle) Compensated() uint32 { return c.ticks }

func (c *Cycle) Nominal() uint32 { return c.nominal }

func (c *Cycle) Stats() types.SleepStats {
	return types.SleepStats{
		Cycles:      c.cycles,
		Compensated: c.ticks,
		Nominal:     c.nominal,
		Polls:       c.polls,
		Woken:       c.woken.Load(),
		TSms:        timex.NowMs(),
	}
}
