// Package indicator mirrors widget activity onto one output pin per widget.
package indicator

import (
	"capsense-go/errcode"
	"capsense-go/services/capsense/internal/halcore"
)

// ActiveQuery reports whether a widget is currently active.
type ActiveQuery func(id int) bool

type output struct {
	pin       halcore.GPIOPin
	activeLow bool
}

// Driver holds no widget state of its own; the pin level is always a pure
// function of the query.
type Driver struct {
	active ActiveQuery
	outs   []output // indexed by widget id; nil pin = no LED
}

// Output describes the pin wired to one widget.
type Output struct {
	Pin       int // <0 for none
	ActiveLow bool
}

// New claims and configures one output per widget, all driven inactive.
func New(pf halcore.PinFactory, active ActiveQuery, outs []Output) (*Driver, error) {
	d := &Driver{active: active, outs: make([]output, len(outs))}
	for i, o := range outs {
		if o.Pin < 0 {
			continue
		}
		p, ok := pf.ByNumber(o.Pin)
		if !ok {
			return nil, &errcode.E{C: errcode.UnknownPin, Op: "indicator.new"}
		}
		if err := p.ConfigureOutput(o.ActiveLow); err != nil {
			return nil, errcode.Wrap(errcode.InitFailed, "indicator.new", err)
		}
		d.outs[i] = output{pin: p, activeLow: o.ActiveLow}
	}
	return d, nil
}

// Update drives widget id's pin from its active state. Unknown ids and
// widgets without a pin are ignored.
func (d *Driver) Update(id int) {
	if id < 0 || id >= len(d.outs) || d.outs[id].pin == nil {
		return
	}
	o := d.outs[id]
	o.pin.Set(d.active(id) != o.activeLow)
}
