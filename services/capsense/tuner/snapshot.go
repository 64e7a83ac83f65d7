package tuner

import (
	"encoding/binary"

	"capsense-go/errcode"
)

// Snapshot layout, little endian. The tool reads it verbatim.
//
//	0      layout version
//	1      flags (bit0 enabled, bit1 suspended, bit2 scan error)
//	2      widget count
//	3      slot count
//	4-7    completed scan counter
//	8      touch threshold    (writable)
//	9      release threshold  (writable)
//	10-11  last command counter / code
//	12-23  widget status, one byte per widget (bit0 active)
//	24-95  per slot: filtered u16, baseline u16, diff i16
const (
	SnapshotVersion = 1
	MaxWidgets      = 12
	MaxSlots        = 12

	offVersion   = 0
	offFlags     = 1
	offWidgets   = 2
	offSlots     = 3
	offScans     = 4
	OffTouchTh   = 8
	OffReleaseTh = 9
	offLastCntr  = 10
	offLastCode  = 11
	offWidgetSt  = 12
	offSlotData  = offWidgetSt + MaxWidgets
	slotStride   = 6

	SnapshotSize = offSlotData + MaxSlots*slotStride

	writableLo = OffTouchTh
	writableHi = OffReleaseTh + 1
)

const (
	FlagEnabled   = 1 << 0
	FlagSuspended = 1 << 1
	FlagScanError = 1 << 2
)

// Snapshot is the fixed-size status image mirrored to the tuner.
type Snapshot struct {
	b [SnapshotSize]byte
}

// NewSnapshot returns a snapshot sized for the given topology.
func NewSnapshot(widgets, slots int) *Snapshot {
	s := &Snapshot{}
	s.b[offVersion] = SnapshotVersion
	s.b[offWidgets] = byte(widgets)
	s.b[offSlots] = byte(slots)
	return s
}

// ParseSnapshot copies a received snapshot image.
func ParseSnapshot(b []byte) (*Snapshot, error) {
	if len(b) != SnapshotSize || b[offVersion] != SnapshotVersion {
		return nil, errcode.InvalidPayload
	}
	s := &Snapshot{}
	copy(s.b[:], b)
	return s, nil
}

// Bytes exposes the image. Callers must not retain it across writes.
func (s *Snapshot) Bytes() []byte { return s.b[:] }

func (s *Snapshot) Widgets() int { return int(s.b[offWidgets]) }
func (s *Snapshot) Slots() int   { return int(s.b[offSlots]) }

func (s *Snapshot) Flags() byte { return s.b[offFlags] }

func (s *Snapshot) SetFlag(f byte, on bool) {
	if on {
		s.b[offFlags] |= f
	} else {
		s.b[offFlags] &^= f
	}
}

func (s *Snapshot) ScanCount() uint32 {
	return binary.LittleEndian.Uint32(s.b[offScans:])
}

func (s *Snapshot) SetScanCount(n uint32) {
	binary.LittleEndian.PutUint32(s.b[offScans:], n)
}

func (s *Snapshot) Thresholds() (touch, release uint8) {
	return s.b[OffTouchTh], s.b[OffReleaseTh]
}

func (s *Snapshot) SetThresholds(touch, release uint8) {
	s.b[OffTouchTh], s.b[OffReleaseTh] = touch, release
}

func (s *Snapshot) LastCommand() (counter uint8, code Code) {
	return s.b[offLastCntr], Code(s.b[offLastCode])
}

func (s *Snapshot) SetLastCommand(counter uint8, code Code) {
	s.b[offLastCntr], s.b[offLastCode] = counter, byte(code)
}

func (s *Snapshot) WidgetActive(i int) bool {
	if i < 0 || i >= MaxWidgets {
		return false
	}
	return s.b[offWidgetSt+i]&1 != 0
}

func (s *Snapshot) SetWidgetActive(i int, on bool) {
	if i < 0 || i >= MaxWidgets {
		return
	}
	if on {
		s.b[offWidgetSt+i] = 1
	} else {
		s.b[offWidgetSt+i] = 0
	}
}

// SlotData is one sensing slot as the tool sees it.
type SlotData struct {
	Filtered uint16
	Baseline uint16
	Diff     int16
}

func (s *Snapshot) Slot(i int) SlotData {
	if i < 0 || i >= MaxSlots {
		return SlotData{}
	}
	o := offSlotData + i*slotStride
	return SlotData{
		Filtered: binary.LittleEndian.Uint16(s.b[o:]),
		Baseline: binary.LittleEndian.Uint16(s.b[o+2:]),
		Diff:     int16(binary.LittleEndian.Uint16(s.b[o+4:])),
	}
}

func (s *Snapshot) SetSlot(i int, d SlotData) {
	if i < 0 || i >= MaxSlots {
		return
	}
	o := offSlotData + i*slotStride
	binary.LittleEndian.PutUint16(s.b[o:], d.Filtered)
	binary.LittleEndian.PutUint16(s.b[o+2:], d.Baseline)
	binary.LittleEndian.PutUint16(s.b[o+4:], uint16(d.Diff))
}

// Write stores tool-supplied bytes. Only the threshold bytes are writable.
func (s *Snapshot) Write(off uint16, data []byte) error {
	end := int(off) + len(data)
	if len(data) == 0 || int(off) < writableLo || end > writableHi {
		return errcode.InvalidParams
	}
	copy(s.b[off:end], data)
	return nil
}
