package config

import (
	"fmt"

	"capsense-go/errcode"
	"capsense-go/types"
)

// MaxSlots bounds the sensing slots any supported front end offers.
const MaxSlots = 12

// Validate checks board correctness declaratively. It does not mutate.
func Validate(b *Board) error {
	if len(b.Widgets) == 0 {
		return invalid("no widgets defined")
	}
	if b.Sensing.Electrodes > MaxSlots {
		return invalid(fmt.Sprintf("electrodes=%d exceeds %d", b.Sensing.Electrodes, MaxSlots))
	}

	// ------------------------------------------------------------
	// SLOT RANGES: inside the enabled electrodes, no overlap
	// ------------------------------------------------------------
	var owner [MaxSlots]string
	names := make(map[string]bool, len(b.Widgets))
	pins := make(map[int]string, len(b.Widgets))
	for i, w := range b.Widgets {
		if w.Name == "" {
			return invalid(fmt.Sprintf("widget %d has no name", i))
		}
		if names[w.Name] {
			return invalid(fmt.Sprintf("duplicate widget name %q", w.Name))
		}
		names[w.Name] = true

		end := int(w.FirstSlot) + int(w.NumSlots)
		if end > int(b.Sensing.Electrodes) {
			return invalid(fmt.Sprintf(
				"widget %q: slots %d-%d outside %d electrodes",
				w.Name, w.FirstSlot, end-1, b.Sensing.Electrodes,
			))
		}
		for s := int(w.FirstSlot); s < end; s++ {
			if owner[s] != "" {
				return invalid(fmt.Sprintf(
					"slot %d used by widgets %q and %q", s, owner[s], w.Name,
				))
			}
			owner[s] = w.Name
		}

		if w.LED.Pin < 0 {
			continue
		}
		if prev, ok := pins[w.LED.Pin]; ok {
			return invalid(fmt.Sprintf(
				"led pin %d used by widgets %q and %q", w.LED.Pin, prev, w.Name,
			))
		}
		pins[w.LED.Pin] = w.Name
	}

	switch b.Sensing.Driver {
	case DriverMPR121, DriverSim:
	default:
		return invalid(fmt.Sprintf("unknown sensing driver %q", b.Sensing.Driver))
	}
	if b.Sensing.ReleaseThreshold >= b.Sensing.TouchThreshold {
		return invalid("release_threshold must be below touch_threshold")
	}
	for _, idx := range b.Sensing.SimTouched {
		if idx < 0 || idx >= len(b.Widgets) {
			return invalid(fmt.Sprintf("sim_touched index %d out of range", idx))
		}
	}

	// ------------------------------------------------------------
	// TUNER
	// ------------------------------------------------------------
	switch b.Tuner.Protocol {
	case ProtocolUART:
		if b.Tuner.Port == "" {
			return invalid("tuner.port required for uart protocol")
		}
		rs := b.Tuner.RingSize
		if rs < 2*CommandPacketSize+1 || rs&(rs-1) != 0 {
			return invalid(fmt.Sprintf(
				"tuner.ring_size=%d must be a power of two >= %d", rs, 2*CommandPacketSize+1,
			))
		}
	case ProtocolBus, ProtocolNone:
	default:
		return invalid(fmt.Sprintf("unknown tuner protocol %q", b.Tuner.Protocol))
	}
	if _, ok := types.ParseParity(b.Tuner.Parity); !ok {
		return invalid(fmt.Sprintf("unknown tuner parity %q", b.Tuner.Parity))
	}

	// ------------------------------------------------------------
	// SLEEP: the wake timer cannot exceed 1698 ms at 40 kHz
	// ------------------------------------------------------------
	if b.Sleep.IntervalMs > 1698 {
		return invalid(fmt.Sprintf("sleep.interval_ms=%d exceeds 1698", b.Sleep.IntervalMs))
	}

	return nil
}

func invalid(msg string) error {
	return &errcode.E{C: errcode.InvalidConfig, Op: "config.Validate", Msg: msg}
}
