// Package sensing is the touch middleware driven by the scheduler. Scans run
// on a worker goroutine against the front end; processing and the tuner
// exchange run on the caller's goroutine.
package sensing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"capsense-go/bus"
	"capsense-go/errcode"
	"capsense-go/services/capsense/config"
	"capsense-go/services/capsense/internal/halcore"
	"capsense-go/services/capsense/tuner"
	"capsense-go/types"
	"capsense-go/x/timex"
)

var TopicTunerCommand = bus.T("tuner", "command")

// suspendPoll is how often a suspended tuner exchange re-polls the link.
const suspendPoll = 10 * time.Millisecond

type scanReq struct {
	first, count uint8
}

// Engine implements halcore.Sensing on top of a TouchFrontEnd.
type Engine struct {
	fe      halcore.TouchFrontEnd
	widgets []config.Widget
	conn    *bus.Connection // optional
	snap    *tuner.Snapshot
	tr      tuner.Transport
	keep    func() // optional, run on every suspended poll

	// scan worker
	reqQ  chan scanReq
	done  chan struct{}
	quit  chan struct{}
	busy  atomic.Bool
	start sync.Once
	stop  sync.Once

	mu       sync.Mutex // guards the fields below, written by the worker
	touched  uint16
	filtered [tuner.MaxSlots]uint16
	baseline [tuner.MaxSlots]uint16
	slotErr  [tuner.MaxSlots]error // outcome of the last scan of each slot
	scans    uint32

	// caller goroutine only
	active    []bool
	enabled   bool
	suspended bool
}

// New builds an engine for board b. conn may be nil.
func New(fe halcore.TouchFrontEnd, b *config.Board, conn *bus.Connection) *Engine {
	slots := int(b.Sensing.Electrodes)
	if slots > tuner.MaxSlots {
		slots = tuner.MaxSlots
	}
	e := &Engine{
		fe:      fe,
		widgets: b.Widgets,
		conn:    conn,
		snap:    tuner.NewSnapshot(len(b.Widgets), slots),
		tr:      tuner.None{},
		reqQ:    make(chan scanReq, 1),
		done:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		active:  make([]bool, len(b.Widgets)),
	}
	e.snap.SetThresholds(b.Sensing.TouchThreshold, b.Sensing.ReleaseThreshold)
	return e
}

// Snapshot is the image mirrored to the tuner.
func (e *Engine) Snapshot() *tuner.Snapshot { return e.snap }

// Attach selects the tuner transport. The default is tuner.None.
func (e *Engine) Attach(tr tuner.Transport) {
	if tr == nil {
		tr = tuner.None{}
	}
	e.tr = tr
}

// KeepAlive installs a hook run on every poll while the tuner holds the
// engine suspended. The platform uses it to service its watchdog.
func (e *Engine) KeepAlive(f func()) { e.keep = f }

func (e *Engine) NumWidgets() int { return len(e.widgets) }

// Init configures the front end. Failure leaves sensing disabled.
func (e *Engine) Init() error {
	if e.fe == nil {
		return errcode.SensingDisabled
	}
	if err := e.fe.Configure(); err != nil {
		return errcode.Wrap(errcode.SensingDisabled, "sensing.init", err)
	}
	th, rel := e.snap.Thresholds()
	if err := e.fe.SetThresholds(th, rel); err != nil {
		return errcode.Wrap(errcode.SensingDisabled, "sensing.init", err)
	}
	return nil
}

// Enable starts the scan worker and accepts scans from then on.
func (e *Engine) Enable() error {
	if e.fe == nil {
		return errcode.SensingDisabled
	}
	e.start.Do(func() { go e.worker() })
	e.enabled = true
	e.snap.SetFlag(tuner.FlagEnabled, true)
	return nil
}

// Close stops the scan worker.
func (e *Engine) Close() {
	e.stop.Do(func() { close(e.quit) })
}

func (e *Engine) IsBusy() bool { return e.busy.Load() }

// Done delivers one token per completed scan. It lets a caller wait for
// completion instead of polling IsBusy.
func (e *Engine) Done() <-chan struct{} { return e.done }

// ScanSlots starts an asynchronous scan. It never blocks; a scan already in
// flight yields errcode.Busy.
func (e *Engine) ScanSlots(first, count uint8) error {
	if !e.enabled {
		return errcode.SensingDisabled
	}
	if count == 0 || int(first)+int(count) > tuner.MaxSlots {
		return errcode.InvalidParams
	}
	if !e.busy.CompareAndSwap(false, true) {
		return errcode.Busy
	}
	e.reqQ <- scanReq{first: first, count: count}
	return nil
}

func (e *Engine) worker() {
	var filt, base [tuner.MaxSlots]uint16
	for {
		select {
		case <-e.quit:
			return
		case r := <-e.reqQ:
			touched, err := e.fe.Touched()
			if err == nil {
				err = e.fe.ReadFiltered(r.first, r.count, filt[:r.count])
			}
			if err == nil {
				err = e.fe.ReadBaseline(r.first, r.count, base[:r.count])
			}

			e.mu.Lock()
			for s := r.first; s < r.first+r.count; s++ {
				e.slotErr[s] = err
			}
			if err == nil {
				mask := slotMask(r.first, r.count)
				e.touched = e.touched&^mask | touched&mask
				copy(e.filtered[r.first:], filt[:r.count])
				copy(e.baseline[r.first:], base[:r.count])
				e.scans++
			}
			e.mu.Unlock()

			e.busy.Store(false)
			select {
			case e.done <- struct{}{}:
			default:
			}
		}
	}
}

func slotMask(first, count uint8) uint16 {
	return uint16((1<<count)-1) << first
}

// ProcessWidget derives the active state of widget id from the last
// completed scan of its slots and mirrors it into the snapshot.
func (e *Engine) ProcessWidget(id int) error {
	if id < 0 || id >= len(e.widgets) {
		return errcode.InvalidParams
	}
	w := e.widgets[id]

	e.mu.Lock()
	var err error
	active := e.touched&slotMask(w.FirstSlot, w.NumSlots) != 0
	for s := w.FirstSlot; s < w.FirstSlot+w.NumSlots; s++ {
		if err == nil {
			err = e.slotErr[s]
		}
		e.snap.SetSlot(int(s), tuner.SlotData{
			Filtered: e.filtered[s],
			Baseline: e.baseline[s],
			Diff:     int16(e.baseline[s]) - int16(e.filtered[s]),
		})
	}
	e.snap.SetScanCount(e.scans)
	e.mu.Unlock()

	e.snap.SetFlag(tuner.FlagScanError, err != nil)
	if err != nil {
		return errcode.Wrap(errcode.Error, "sensing.process", err)
	}
	e.active[id] = active
	e.snap.SetWidgetActive(id, active)
	return nil
}

func (e *Engine) IsWidgetActive(id int) bool {
	if id < 0 || id >= len(e.active) {
		return false
	}
	return e.active[id]
}

func (e *Engine) CheckCommandIntegrity(cmd []byte) bool { return tuner.Valid(cmd) }

// RunTuner sends one snapshot frame and executes at most one command. While
// the tool holds the firmware suspended it keeps exchanging until resumed.
func (e *Engine) RunTuner(ctx context.Context) error {
	for {
		if err := e.tr.Send(); err != nil {
			return err
		}
		if cmd, snap, ok := e.tr.Receive(); ok {
			e.execute(cmd, snap)
		}
		if !e.suspended {
			return nil
		}
		if e.keep != nil {
			e.keep()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(suspendPoll):
		}
	}
}

func (e *Engine) execute(raw []byte, snap *tuner.Snapshot) {
	c, err := tuner.ParseCommand(raw)
	if err != nil {
		return
	}
	switch c.Code {
	case tuner.CmdSuspend:
		e.suspended = true
	case tuner.CmdResume:
		e.suspended = false
	case tuner.CmdRestart:
		e.suspended = false
		err = e.restart()
	case tuner.CmdPing:
	case tuner.CmdWrite:
		if err = snap.Write(c.Offset, c.Data[:c.Size]); err == nil {
			th, rel := snap.Thresholds()
			err = e.fe.SetThresholds(th, rel)
		}
	}
	snap.SetFlag(tuner.FlagSuspended, e.suspended)
	snap.SetLastCommand(c.Counter, c.Code)
	if err != nil {
		println("[sensing] tuner", c.Code.String(), "failed:", err.Error())
	}

	if e.conn != nil {
		e.conn.Publish(e.conn.NewMessage(TopicTunerCommand, types.TunerCommand{
			Code:    uint8(c.Code),
			Name:    c.Code.String(),
			Counter: c.Counter,
			Status:  string(errcode.Of(err)),
			TSms:    timex.NowMs(),
		}, false))
	}
}

// restart reconfigures the front end and forgets widget state. Sensing
// stays disabled if the front end does not come back.
func (e *Engine) restart() error {
	for e.busy.Load() {
		<-e.done
	}
	e.enabled = false
	e.snap.SetFlag(tuner.FlagEnabled, false)
	for i := range e.active {
		e.active[i] = false
		e.snap.SetWidgetActive(i, false)
	}
	e.mu.Lock()
	e.touched = 0
	e.slotErr = [tuner.MaxSlots]error{}
	e.mu.Unlock()
	if err := e.Init(); err != nil {
		return err
	}
	return e.Enable()
}
