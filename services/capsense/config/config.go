// Package config describes one board: its widget topology, the sensing
// front end, the tuner link and the sleep cycle. Boards are YAML files
// embedded in the firmware; host builds may also load one from disk.
package config

type Board struct {
	Board       string        `yaml:"board"`
	Widgets     []Widget      `yaml:"widgets"`
	Sensing     SensingConfig `yaml:"sensing"`
	Tuner       TunerConfig   `yaml:"tuner"`
	Sleep       SleepConfig   `yaml:"sleep"`
	I2C         I2CConfig     `yaml:"i2c"`
	BootDelayMs int           `yaml:"boot_delay_ms"`
}

// ---- WIDGETS ----

// Widget is one logical touch element made of NumSlots consecutive
// sensing slots starting at FirstSlot.
type Widget struct {
	Name      string    `yaml:"name"`
	FirstSlot uint8     `yaml:"first_slot"`
	NumSlots  uint8     `yaml:"num_slots"`
	LED       LEDConfig `yaml:"led"`
}

type LEDConfig struct {
	Pin       int  `yaml:"pin"` // <0 for none
	ActiveLow bool `yaml:"active_low"`
}

// ---- SENSING ----

const (
	DriverMPR121 = "mpr121"
	DriverSim    = "sim"
)

type SensingConfig struct {
	Driver           string `yaml:"driver"` // mpr121 | sim
	Bus              string `yaml:"bus"`    // i2c0 | i2c1 | /dev/i2c-1 name
	Address          uint16 `yaml:"address"`
	Electrodes       uint8  `yaml:"electrodes"`
	TouchThreshold   uint8  `yaml:"touch_threshold"`
	ReleaseThreshold uint8  `yaml:"release_threshold"`
	Debounce         uint8  `yaml:"debounce"`
	// Sim only: widget indices reported as touched at boot.
	SimTouched []int `yaml:"sim_touched"`
}

// ---- TUNER ----

const (
	ProtocolUART = "uart"
	ProtocolBus  = "bus"
	ProtocolNone = "none"
)

type TunerConfig struct {
	Protocol string `yaml:"protocol"` // uart | bus | none
	Port     string `yaml:"port"`     // uart0 | uart1 | /dev/ttyUSB0
	Baud     uint32 `yaml:"baud"`
	DataBits uint8  `yaml:"data_bits"`
	StopBits uint8  `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
	TX       int    `yaml:"tx"`
	RX       int    `yaml:"rx"`
	// RingSize must be a power of two able to hold two command packets.
	RingSize int `yaml:"ring_size"`
}

// ---- SLEEP ----

type SleepConfig struct {
	IntervalMs int    `yaml:"interval_ms"`
	OscHz      uint32 `yaml:"osc_hz"`
	// Sim only: simulated oscillator error in percent (-60..60).
	DriftPct int `yaml:"drift_pct"`
	// StatsEvery publishes sleep telemetry every N cycles (0 = never).
	StatsEvery int `yaml:"stats_every"`
}

// ---- I2C ----

type I2CConfig struct {
	SDA int    `yaml:"sda"`
	SCL int    `yaml:"scl"`
	Hz  uint32 `yaml:"hz"`
}
