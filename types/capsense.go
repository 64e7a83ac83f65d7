package types

// ---- Pipeline state (retained) ----

type PipelineState struct {
	Level  string `json:"level"`  // "booting", "running", "halted"
	Status string `json:"status"` // short code, e.g. "sensing_disabled"
	TSms   int64  `json:"ts_ms"`
}

const (
	LevelBooting = "booting"
	LevelRunning = "running"
	LevelHalted  = "halted"
)

// ---- Widget telemetry (retained per widget) ----

type WidgetState struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	TSms   int64  `json:"ts_ms"`
}

// ---- Sleep cycle telemetry ----

type SleepStats struct {
	Cycles      uint32 `json:"cycles"`
	Compensated uint32 `json:"compensated"` // oscillator ticks per wake interval
	Nominal     uint32 `json:"nominal"`
	Polls       uint32 `json:"polls"` // compensate polls in the last cycle
	Woken       bool   `json:"woken"`
	TSms        int64  `json:"ts_ms"`
}

// ---- Tuner ----

type TunerCommand struct {
	Code    uint8  `json:"code"`
	Name    string `json:"name"`
	Counter uint8  `json:"counter"`
	Status  string `json:"status"` // errcode string
	TSms    int64  `json:"ts_ms"`
}
