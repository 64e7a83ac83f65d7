package capsense

import (
	"context"

	"capsense-go/bus"
	"capsense-go/errcode"
	"capsense-go/services/capsense/config"
	"capsense-go/services/capsense/internal/halcore"
	"capsense-go/types"
	"capsense-go/x/timex"
)

// Sleeper is the per-iteration duty-cycle bound.
type Sleeper interface {
	Trigger(ctx context.Context) error
	Stats() types.SleepStats
}

// Indicator mirrors one widget's state onto its output.
type Indicator interface {
	Update(id int)
}

type Deps struct {
	Sensing halcore.Sensing
	Sleep   Sleeper
	LEDs    Indicator
	Widgets []config.Widget
	// Optional telemetry.
	Conn       *bus.Connection
	StatsEvery int
}

// Pipeline is the round-robin scheduler. While widget current is being
// scanned, widget previous (whose scan has completed) is processed.
type Pipeline struct {
	d Deps
	n int

	current  int
	previous int

	shown   []int8 // last published state per widget, -1 unknown
	scanErr errcode.Code
	iters   uint32
}

func New(d Deps) (*Pipeline, error) {
	if d.Sensing == nil || d.Sleep == nil || d.LEDs == nil {
		return nil, &errcode.E{C: errcode.InitFailed, Op: "pipeline.new", Msg: "missing dependency"}
	}
	n := d.Sensing.NumWidgets()
	if n < 1 || n != len(d.Widgets) {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "pipeline.new", Msg: "widget count mismatch"}
	}
	shown := make([]int8, n)
	for i := range shown {
		shown[i] = -1
	}
	return &Pipeline{d: d, n: n, shown: shown}, nil
}

// Cursor returns the widget being scanned and the one last completed.
func (p *Pipeline) Cursor() (current, previous int) { return p.current, p.previous }

// Start resets the cursor and issues the first scan of widget 0.
func (p *Pipeline) Start() {
	p.current, p.previous = 0, 0
	p.scan(0)
}

// Step runs one iteration and reports whether the cursor advanced. A busy
// engine leaves every piece of state untouched.
func (p *Pipeline) Step(ctx context.Context) bool {
	if err := p.d.Sleep.Trigger(ctx); err != nil && ctx.Err() == nil {
		println("[capsense] sleep:", err.Error())
	}
	p.iters++
	if p.d.StatsEvery > 0 && p.iters%uint32(p.d.StatsEvery) == 0 && p.d.Conn != nil {
		p.d.Conn.Publish(p.d.Conn.NewMessage(TopicSleepStats, p.d.Sleep.Stats(), true))
	}

	if p.d.Sensing.IsBusy() {
		return false
	}

	p.current = (p.current + 1) % p.n
	p.scan(p.current)

	if err := p.d.Sensing.ProcessWidget(p.previous); err != nil {
		p.noteErr(err)
	}
	p.d.LEDs.Update(p.previous)
	p.publish(p.previous)

	p.previous = p.current

	if err := p.d.Sensing.RunTuner(ctx); err != nil && ctx.Err() == nil {
		println("[capsense] tuner:", err.Error())
	}
	return true
}

// Run starts the pipeline and steps until ctx ends.
func (p *Pipeline) Run(ctx context.Context) error {
	p.Start()
	for ctx.Err() == nil {
		p.Step(ctx)
	}
	return ctx.Err()
}

func (p *Pipeline) scan(id int) {
	w := p.d.Widgets[id]
	if err := p.d.Sensing.ScanSlots(w.FirstSlot, w.NumSlots); err != nil {
		p.noteErr(err)
	}
}

// noteErr logs each distinct error code once until a different one shows up.
func (p *Pipeline) noteErr(err error) {
	c := errcode.Of(err)
	if c == p.scanErr {
		return
	}
	p.scanErr = c
	println("[capsense] sensing:", err.Error())
}

func (p *Pipeline) publish(id int) {
	active := p.d.Sensing.IsWidgetActive(id)
	var v int8
	if active {
		v = 1
	}
	prev := p.shown[id]
	if prev == v {
		return
	}
	p.shown[id] = v

	name := p.d.Widgets[id].Name
	if active {
		println("[capsense]", name, "touched")
	} else if prev >= 0 {
		println("[capsense]", name, "released")
	}
	if p.d.Conn != nil {
		p.d.Conn.Publish(p.d.Conn.NewMessage(
			TopicWidgetState(name),
			types.WidgetState{Index: id, Name: name, Active: active, TSms: timex.NowMs()},
			true,
		))
	}
}
