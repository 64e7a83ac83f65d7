package capsense

import (
	"context"
	"testing"

	"capsense-go/bus"
	"capsense-go/services/capsense/config"
	"capsense-go/types"
)

// fakeSensing models split-phase scans: a scan stays busy for busyPolls
// IsBusy calls, then its widget has fresh data until it is processed.
type fakeSensing struct {
	t         *testing.T
	widgets   []config.Widget
	busyPolls int

	inflight int // -1 none
	left     int
	ready    []bool
	active   []bool

	scans    []int
	procs    []int
	tuner    int
	holdBusy bool
}

func newFakeSensing(t *testing.T, ws []config.Widget) *fakeSensing {
	return &fakeSensing{
		t:        t,
		widgets:  ws,
		inflight: -1,
		ready:    make([]bool, len(ws)),
		active:   make([]bool, len(ws)),
	}
}

func (f *fakeSensing) widgetAt(first uint8) int {
	for i, w := range f.widgets {
		if w.FirstSlot == first {
			return i
		}
	}
	f.t.Fatalf("scan of unknown slot %d", first)
	return -1
}

func (f *fakeSensing) Init() error   { return nil }
func (f *fakeSensing) Enable() error { return nil }

func (f *fakeSensing) IsBusy() bool {
	if f.holdBusy {
		return true
	}
	if f.inflight < 0 {
		return false
	}
	if f.left > 0 {
		f.left--
		return true
	}
	f.ready[f.inflight] = true
	f.inflight = -1
	return false
}

func (f *fakeSensing) ScanSlots(first, count uint8) error {
	if f.inflight >= 0 {
		f.t.Fatalf("overlapping scan while widget %d in flight", f.inflight)
	}
	w := f.widgetAt(first)
	f.inflight, f.left = w, f.busyPolls
	f.scans = append(f.scans, w)
	return nil
}

func (f *fakeSensing) ProcessWidget(id int) error {
	if !f.ready[id] {
		f.t.Fatalf("widget %d processed without a completed scan", id)
	}
	f.ready[id] = false
	f.procs = append(f.procs, id)
	return nil
}

func (f *fakeSensing) IsWidgetActive(id int) bool            { return f.active[id] }
func (f *fakeSensing) RunTuner(context.Context) error        { f.tuner++; return nil }
func (f *fakeSensing) CheckCommandIntegrity(cmd []byte) bool { return false }
func (f *fakeSensing) NumWidgets() int                       { return len(f.widgets) }

type fakeSleep struct{ n int }

func (s *fakeSleep) Trigger(context.Context) error { s.n++; return nil }
func (s *fakeSleep) Stats() types.SleepStats      { return types.SleepStats{Cycles: uint32(s.n)} }

type fakeLEDs struct{ updates []int }

func (l *fakeLEDs) Update(id int) { l.updates = append(l.updates, id) }

func widgets(n int) []config.Widget {
	ws := make([]config.Widget, n)
	for i := range ws {
		ws[i] = config.Widget{Name: string(rune('a' + i)), FirstSlot: uint8(i), NumSlots: 1}
	}
	return ws
}

func newTestPipeline(t *testing.T, n, busyPolls int) (*Pipeline, *fakeSensing, *fakeSleep, *fakeLEDs) {
	t.Helper()
	ws := widgets(n)
	fs := newFakeSensing(t, ws)
	fs.busyPolls = busyPolls
	sl := &fakeSleep{}
	leds := &fakeLEDs{}
	p, err := New(Deps{Sensing: fs, Sleep: sl, LEDs: leds, Widgets: ws})
	if err != nil {
		t.Fatal(err)
	}
	return p, fs, sl, leds
}

func TestCursorRoundRobin(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		p, fs, _, _ := newTestPipeline(t, n, 0)
		p.Start()
		for k := 1; k <= 3*n; k++ {
			cur, prev := p.Cursor()
			if cur != prev {
				t.Fatalf("n=%d: before step %d cur=%d prev=%d", n, k, cur, prev)
			}
			if !p.Step(context.Background()) {
				t.Fatalf("n=%d: step %d not taken", n, k)
			}
			if cur2, _ := p.Cursor(); cur2 != k%n {
				t.Fatalf("n=%d: step %d cursor=%d want %d", n, k, cur2, k%n)
			}
		}
		// scans: 0 then 1,2,...; processing lags scans by exactly one.
		for i, w := range fs.scans {
			if w != i%n {
				t.Fatalf("n=%d: scan %d of widget %d", n, i, w)
			}
		}
		if len(fs.procs) != len(fs.scans)-1 {
			t.Fatalf("n=%d: procs=%d scans=%d", n, len(fs.procs), len(fs.scans))
		}
		for i, w := range fs.procs {
			if w != fs.scans[i] {
				t.Fatalf("n=%d: processed %d at %d, scanned %d", n, w, i, fs.scans[i])
			}
		}
	}
}

func TestEachWidgetOncePerRound(t *testing.T) {
	p, fs, _, _ := newTestPipeline(t, 4, 2)
	p.Start()
	for len(fs.procs) < 8 {
		p.Step(context.Background())
	}
	for round := 0; round < 2; round++ {
		seen := map[int]bool{}
		for _, w := range fs.procs[round*4 : round*4+4] {
			if seen[w] {
				t.Fatalf("round %d: widget %d twice", round, w)
			}
			seen[w] = true
		}
	}
}

func TestBusyChangesNothing(t *testing.T) {
	p, fs, sl, leds := newTestPipeline(t, 3, 0)
	p.Start()
	p.Step(context.Background())
	p.Step(context.Background())

	cur, prev := p.Cursor()
	scans, procs, ups, tuner := len(fs.scans), len(fs.procs), len(leds.updates), fs.tuner
	sleeps := sl.n

	fs.holdBusy = true
	for i := 0; i < 10; i++ {
		if p.Step(context.Background()) {
			t.Fatal("step advanced while busy")
		}
	}
	c2, p2 := p.Cursor()
	if c2 != cur || p2 != prev {
		t.Fatalf("cursor moved: %d/%d -> %d/%d", cur, prev, c2, p2)
	}
	if len(fs.scans) != scans || len(fs.procs) != procs || len(leds.updates) != ups || fs.tuner != tuner {
		t.Fatal("busy iteration had side effects")
	}
	if sl.n != sleeps+10 {
		t.Fatalf("sleep ran %d times, want 10", sl.n-sleeps)
	}

	fs.holdBusy = false
	if !p.Step(context.Background()) {
		t.Fatal("no progress after busy cleared")
	}
}

func TestIndicatorFollowsProcessing(t *testing.T) {
	p, fs, _, leds := newTestPipeline(t, 3, 1)
	p.Start()
	for i := 0; i < 20; i++ {
		p.Step(context.Background())
	}
	if len(leds.updates) != len(fs.procs) {
		t.Fatalf("updates=%d procs=%d", len(leds.updates), len(fs.procs))
	}
	for i := range leds.updates {
		if leds.updates[i] != fs.procs[i] {
			t.Fatalf("update %d for widget %d, processed %d", i, leds.updates[i], fs.procs[i])
		}
	}
	if fs.tuner != len(fs.procs) {
		t.Fatalf("tuner=%d steps=%d", fs.tuner, len(fs.procs))
	}
}

func TestWidgetStatePublishedOnTransition(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("capsense")
	sub := b.NewConnection("obs").Subscribe(bus.T("capsense", "widget", "+", "state"))

	ws := widgets(2)
	fs := newFakeSensing(t, ws)
	p, err := New(Deps{Sensing: fs, Sleep: &fakeSleep{}, LEDs: &fakeLEDs{}, Widgets: ws, Conn: conn})
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	for i := 0; i < 6; i++ {
		p.Step(context.Background())
	}
	// Initial inactive state of each widget, once.
	if got := len(sub.Channel()); got != 2 {
		t.Fatalf("messages=%d want 2", got)
	}
	for len(sub.Channel()) > 0 {
		<-sub.Channel()
	}

	fs.active[1] = true
	for i := 0; i < 6; i++ {
		p.Step(context.Background())
	}
	if got := len(sub.Channel()); got != 1 {
		t.Fatalf("messages=%d want 1", got)
	}
	m := <-sub.Channel()
	st := m.Payload.(types.WidgetState)
	if st.Name != "b" || !st.Active || st.Index != 1 {
		t.Fatalf("state=%+v", st)
	}
}

func TestSleepStatsEvery(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("capsense")
	sub := b.NewConnection("obs").Subscribe(TopicSleepStats)

	ws := widgets(1)
	p, _ := New(Deps{Sensing: newFakeSensing(t, ws), Sleep: &fakeSleep{}, LEDs: &fakeLEDs{}, Widgets: ws, Conn: conn, StatsEvery: 3})
	p.Start()
	for i := 0; i < 7; i++ {
		p.Step(context.Background())
	}
	if got := len(sub.Channel()); got != 2 {
		t.Fatalf("stats messages=%d want 2", got)
	}
}

func TestNewRejects(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("missing deps accepted")
	}
	fs := newFakeSensing(t, nil)
	if _, err := New(Deps{Sensing: fs, Sleep: &fakeSleep{}, LEDs: &fakeLEDs{}}); err == nil {
		t.Fatal("zero widgets accepted")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, 2, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); err != context.Canceled {
		t.Fatalf("err=%v", err)
	}
}
