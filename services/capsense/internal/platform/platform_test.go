package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"capsense-go/services/capsense/config"
	"capsense-go/x/shmring"
)

func TestOpenSimBoard(t *testing.T) {
	b, err := config.Embedded("sim")
	if err != nil {
		t.Fatal(err)
	}
	r, err := Open(context.Background(), &b)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	if r.Sim == nil || r.FrontEnd == nil || r.Pins == nil {
		t.Fatalf("resources incomplete: %+v", r)
	}
	if r.TunerPort != nil || r.TunerRx != nil {
		t.Fatal("bus protocol must not open a serial port")
	}
	touched, _ := r.Sim.Touched()
	if touched != 1<<b.Widgets[1].FirstSlot {
		t.Fatalf("sim_touched not applied: %b", touched)
	}
}

func TestClockCompensatesDrift(t *testing.T) {
	c := NewClock(ClockConfig{OscHz: 40_000, DriftPct: 35, MeasurePolls: 2})
	if c.ActualHz() != 54_000 {
		t.Fatalf("actual=%d", c.ActualHz())
	}

	if _, ok := c.Compensate(10_000); ok {
		t.Fatal("compensate ready without a measurement")
	}
	c.StartMeasurement()
	polls := 0
	var ticks uint32
	for {
		polls++
		v, ok := c.Compensate(10_000)
		if ok {
			ticks = v
			break
		}
	}
	c.StopMeasurement()
	if polls != 3 || ticks != 540 {
		t.Fatalf("polls=%d ticks=%d", polls, ticks)
	}

	c.SetMatch(400)
	if p := c.Period(); p >= 8*time.Millisecond {
		t.Fatalf("uncompensated period=%v, expected short", p)
	}
	c.SetMatch(ticks)
	if p := c.Period(); p != 10*time.Millisecond {
		t.Fatalf("compensated period=%v", p)
	}
}

func TestClockSleepWakes(t *testing.T) {
	c := NewClock(ClockConfig{OscHz: 40_000})
	var slept time.Duration
	c.sleepFor = func(_ context.Context, d time.Duration) error { slept = d; return nil }

	woke, fed := 0, 0
	_ = c.Enable(func() { woke++ })
	c.OnFeed(func() { fed++ })
	c.SetMatch(400)

	if err := c.EnterDeepSleep(context.Background()); err != nil {
		t.Fatal(err)
	}
	if slept != 10*time.Millisecond || woke != 1 || fed != 1 {
		t.Fatalf("slept=%v woke=%d fed=%d", slept, woke, fed)
	}
}

func TestClockFeedOutsideSleep(t *testing.T) {
	c := NewClock(ClockConfig{OscHz: 40_000})
	c.Feed() // no hook installed

	woke, fed := 0, 0
	_ = c.Enable(func() { woke++ })
	c.OnFeed(func() { fed++ })
	c.Feed()
	c.Feed()
	if fed != 2 || woke != 0 {
		t.Fatalf("fed=%d woke=%d", fed, woke)
	}
}

func TestClockSleepCancelled(t *testing.T) {
	c := NewClock(ClockConfig{OscHz: 40_000})
	woke := false
	_ = c.Enable(func() { woke = true })
	c.SetMatch(40_000) // one second
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.EnterDeepSleep(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if woke {
		t.Fatal("wake raised on cancel")
	}
}

func TestMemPins(t *testing.T) {
	f := NewMemPins()
	if _, ok := f.ByNumber(-1); ok {
		t.Fatal("negative pin accepted")
	}
	p, _ := f.ByNumber(7)
	q, _ := f.ByNumber(7)
	if p != q {
		t.Fatal("pin handles not stable")
	}
	_ = p.ConfigureOutput(true)
	if !f.Level(7) || f.Level(8) {
		t.Fatal("levels wrong")
	}
}

func TestPumpCopiesUntilError(t *testing.T) {
	ring := shmring.New(16)
	chunks := [][]byte{[]byte("ab"), nil, []byte("cd")}
	timeout := errors.New("timeout")
	calls := 0
	recv := func(_ context.Context, buf []byte) (int, error) {
		if calls >= len(chunks) {
			return 0, errors.New("closed")
		}
		c := chunks[calls]
		calls++
		if c == nil {
			return 0, timeout
		}
		return copy(buf, c), nil
	}
	pump(context.Background(), ring, recv, func(err error) bool { return err == timeout })

	got := make([]byte, 8)
	n := ring.TryReadInto(got)
	if string(got[:n]) != "abcd" {
		t.Fatalf("ring=%q", got[:n])
	}
}
