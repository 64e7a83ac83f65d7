// services/capsense/internal/halcore/types.go
package halcore

import (
	"context"
)

// ---- Sensing middleware ----

// Sensing is the touch middleware the scheduler drives. Scans are
// split-phase: ScanSlots starts one and IsBusy reports completion.
type Sensing interface {
	Init() error
	Enable() error
	IsBusy() bool
	ScanSlots(first, count uint8) error
	ProcessWidget(id int) error
	IsWidgetActive(id int) bool
	RunTuner(ctx context.Context) error
	CheckCommandIntegrity(cmd []byte) bool
	NumWidgets() int
}

// TouchFrontEnd is the capacitive controller under the middleware. It does
// its own filtering, baseline tracking and threshold detection.
type TouchFrontEnd interface {
	Configure() error
	Touched() (uint16, error)
	ReadFiltered(first, count uint8, dst []uint16) error
	ReadBaseline(first, count uint8, dst []uint16) error
	SetThresholds(touch, release uint8) error
}

// ---- Sleep cycle ----

// Oscillator is the low-accuracy clock measured against a precise reference.
type Oscillator interface {
	StartMeasurement()
	// Compensate returns the calibrated tick count for desiredUs, or
	// ok=false while the measurement is still running.
	Compensate(desiredUs uint32) (cycles uint32, ok bool)
	StopMeasurement()
}

// Power enters the low-power state until the next wake event.
type Power interface {
	EnterDeepSleep(ctx context.Context) error
}

// WakeTimer raises the periodic wake event. SetMatch takes a count in
// oscillator ticks.
type WakeTimer interface {
	Enable(onWake func()) error
	SetMatch(cycles uint32)
}

// ---- GPIO abstractions ----

type GPIOPin interface {
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// PinFactory supplies GPIO pins by the configured number scheme.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}
