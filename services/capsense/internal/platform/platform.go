// Package platform opens the board resources the pipeline runs on: the
// touch front end, LED pins, the tuner serial link and the wake clock.
// Hardware back ends are selected by build tags; the sim driver works on
// every target.
package platform

import (
	"context"

	"capsense-go/services/capsense/config"
	"capsense-go/services/capsense/internal/halcore"
	"capsense-go/services/capsense/internal/sensing"
	"capsense-go/services/capsense/tuner"
	"capsense-go/x/shmring"
)

type Resources struct {
	FrontEnd halcore.TouchFrontEnd
	Pins     halcore.PinFactory
	Clock    *Clock

	// Set only for the uart tuner protocol.
	TunerPort tuner.Port
	TunerRx   *shmring.Ring

	// Set only for the sim driver.
	Sim *sensing.Sim

	closers []func()
}

// Open builds the resources for board b. Any error is a bring-up failure.
func Open(ctx context.Context, b *config.Board) (*Resources, error) {
	r := &Resources{Clock: NewClock(ClockConfig{
		OscHz:    b.Sleep.OscHz,
		DriftPct: b.Sleep.DriftPct,
	})}

	if b.Sensing.Driver == config.DriverSim {
		r.Sim = sensing.NewSim(b.Sensing.Electrodes)
		for _, w := range b.Sensing.SimTouched {
			r.Sim.Touch(b.Widgets[w].FirstSlot, true)
		}
		r.FrontEnd = r.Sim
		r.Pins = NewMemPins()
	}

	if b.Sensing.Driver != config.DriverSim || b.Tuner.Protocol == config.ProtocolUART {
		if err := openHW(ctx, b, r); err != nil {
			r.Close()
			return nil, err
		}
	}
	return r, nil
}

func (r *Resources) onClose(f func()) { r.closers = append(r.closers, f) }

// Close releases resources in reverse order of acquisition.
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// pump copies serial input into the ring until ctx ends. recv blocks until
// some bytes arrive or returns an error; timeout errors are retried.
func pump(ctx context.Context, ring *shmring.Ring, recv func(ctx context.Context, buf []byte) (int, error), retry func(error) bool) {
	buf := make([]byte, 32)
	for ctx.Err() == nil {
		n, err := recv(ctx, buf)
		if n > 0 {
			ring.TryWriteFrom(buf[:n])
		}
		if err != nil && !retry(err) {
			if ctx.Err() == nil {
				println("[platform] tuner rx stopped:", err.Error())
			}
			return
		}
	}
}
