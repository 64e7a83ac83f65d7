package config

import (
	"capsense-go/x/mathx"
)

// CommandPacketSize mirrors the tuner command size; the UART ring must hold
// two packets plus one byte.
const CommandPacketSize = 16

// Normalize fills defaults in place. It never rejects anything; Validate does.
func Normalize(b *Board) {
	for i := range b.Widgets {
		if b.Widgets[i].NumSlots == 0 {
			b.Widgets[i].NumSlots = 1
		}
	}

	s := &b.Sensing
	if s.Driver == "" {
		s.Driver = DriverSim
	}
	if s.Address == 0 {
		s.Address = 0x5A
	}
	if s.Electrodes == 0 {
		s.Electrodes = slotsUsed(b.Widgets)
	}
	if s.TouchThreshold == 0 {
		s.TouchThreshold = 12
	}
	if s.ReleaseThreshold == 0 {
		s.ReleaseThreshold = 6
	}
	s.Debounce = mathx.Clamp(s.Debounce, 0, 7)

	t := &b.Tuner
	if t.Protocol == "" {
		t.Protocol = ProtocolUART
	}
	if t.Baud == 0 {
		t.Baud = 115200
	}
	if t.DataBits == 0 {
		t.DataBits = 8
	}
	if t.StopBits == 0 {
		t.StopBits = 1
	}
	if t.RingSize == 0 {
		t.RingSize = int(mathx.NextPow2(uint32(2*CommandPacketSize + 1)))
	}

	sl := &b.Sleep
	if sl.IntervalMs <= 0 {
		sl.IntervalMs = 10
	}
	if sl.OscHz == 0 {
		sl.OscHz = 40000
	}
	sl.DriftPct = mathx.Clamp(sl.DriftPct, -60, 60)

	if b.I2C.Hz == 0 {
		b.I2C.Hz = 400_000
	}
	if b.BootDelayMs < 0 {
		b.BootDelayMs = 0
	}
}

func slotsUsed(ws []Widget) uint8 {
	var hi uint8
	for _, w := range ws {
		if end := w.FirstSlot + w.NumSlots; end > hi {
			hi = end
		}
	}
	return hi
}
