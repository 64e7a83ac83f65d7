// Package capsense wires a board's touch pipeline together: platform
// resources, the sensing engine, the tuner transport, the indicator LEDs and
// the sleep cycle.
package capsense

import (
	"context"
	"time"

	"capsense-go/bus"
	"capsense-go/errcode"
	"capsense-go/services/capsense/config"
	"capsense-go/services/capsense/internal/indicator"
	"capsense-go/services/capsense/internal/platform"
	"capsense-go/services/capsense/internal/sensing"
	"capsense-go/services/capsense/internal/sleep"
	"capsense-go/services/capsense/tuner"
	"capsense-go/types"
	"capsense-go/x/timex"
)

// System is a booted pipeline and everything it owns.
type System struct {
	Board    config.Board
	Res      *platform.Resources
	Engine   *sensing.Engine
	Sleep    *sleep.Cycle
	LEDs     *indicator.Driver
	Pipeline *Pipeline

	conn   *bus.Connection
	tuner  tuner.Transport
	status errcode.Code
}

// Boot brings the board up. Any returned error is fatal; a sensing front
// end that fails to start is not, and leaves the system with status
// sensing_disabled until a tuner Restart succeeds.
func Boot(ctx context.Context, conn *bus.Connection, b config.Board) (*System, error) {
	s := &System{Board: b, conn: conn, status: errcode.OK}
	s.publishState(types.LevelBooting)

	res, err := platform.Open(ctx, &s.Board)
	if err != nil {
		return nil, s.fail(err)
	}
	s.Res = res

	s.Engine = sensing.New(res.FrontEnd, &s.Board, conn)
	s.Engine.KeepAlive(res.Clock.Feed)

	var tr tuner.Transport
	switch b.Tuner.Protocol {
	case config.ProtocolUART:
		tr = tuner.NewUART(res.TunerPort, res.TunerRx, s.Engine.Snapshot(), s.Engine.CheckCommandIntegrity)
	case config.ProtocolBus:
		if conn == nil {
			return nil, s.fail(&errcode.E{C: errcode.InvalidConfig, Op: "capsense.boot", Msg: "bus tuner needs a bus connection"})
		}
		tr = tuner.NewBusWindow(conn, s.Engine.Snapshot(), s.Engine.CheckCommandIntegrity)
	default:
		tr = tuner.None{}
	}
	s.Engine.Attach(tr)
	s.tuner = tr

	outs := make([]indicator.Output, len(b.Widgets))
	for i, w := range b.Widgets {
		outs[i] = indicator.Output{Pin: w.LED.Pin, ActiveLow: w.LED.ActiveLow}
	}
	if s.LEDs, err = indicator.New(res.Pins, s.Engine.IsWidgetActive, outs); err != nil {
		return nil, s.fail(err)
	}

	s.Sleep = sleep.New(res.Clock, res.Clock, res.Clock, sleep.Config{
		IntervalUs: uint32(b.Sleep.IntervalMs) * 1000,
		OscHz:      b.Sleep.OscHz,
	})
	if err := s.Sleep.Arm(); err != nil {
		return nil, s.fail(err)
	}

	err = s.Engine.Init()
	if err == nil {
		err = s.Engine.Enable()
	}
	if err != nil {
		println("[capsense] sensing disabled:", err.Error())
		s.status = errcode.SensingDisabled
	}

	if s.Pipeline, err = New(Deps{
		Sensing:    s.Engine,
		Sleep:      s.Sleep,
		LEDs:       s.LEDs,
		Widgets:    b.Widgets,
		Conn:       conn,
		StatsEvery: b.Sleep.StatsEvery,
	}); err != nil {
		return nil, s.fail(err)
	}
	return s, nil
}

// Run waits the boot delay so a tool can queue a first command, serves one
// tuner exchange, then runs the pipeline until ctx ends.
func (s *System) Run(ctx context.Context) error {
	defer s.Close()

	if d := time.Duration(s.Board.BootDelayMs) * time.Millisecond; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if err := s.Engine.RunTuner(ctx); err != nil && ctx.Err() == nil {
		println("[capsense] tuner:", err.Error())
	}

	s.publishState(types.LevelRunning)
	println("[capsense] running:", s.Board.Board, "widgets:", len(s.Board.Widgets))
	err := s.Pipeline.Run(ctx)
	s.publishState(types.LevelHalted)
	return err
}

// Status is OK or SensingDisabled.
func (s *System) Status() errcode.Code { return s.status }

func (s *System) Close() {
	if s.Engine != nil {
		s.Engine.Close()
	}
	if c, ok := s.tuner.(interface{ Close() }); ok {
		c.Close()
	}
	if s.Res != nil {
		s.Res.Close()
	}
}

// Run boots board b and runs it until ctx ends.
func Run(ctx context.Context, conn *bus.Connection, b config.Board) error {
	s, err := Boot(ctx, conn, b)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

func (s *System) fail(err error) error {
	s.status = errcode.Of(err)
	s.publishState(types.LevelHalted)
	s.Close()
	return err
}

func (s *System) publishState(level string) {
	if s.conn == nil {
		return
	}
	st := ""
	if s.status != errcode.OK {
		st = string(s.status)
	}
	s.conn.Publish(s.conn.NewMessage(TopicState, types.PipelineState{
		Level:  level,
		Status: st,
		TSms:   timex.NowMs(),
	}, true))
}
