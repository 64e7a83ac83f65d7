package timex

import (
	"time"

	"capsense-go/x/mathx"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// CyclesFor returns how many ticks of a clock running at hz fit in us
// microseconds, rounded to nearest.
func CyclesFor(us, hz uint32) uint32 { return mathx.MulDiv(us, hz, 1_000_000) }

// DurationOf is the inverse of CyclesFor.
func DurationOf(cycles, hz uint32) time.Duration {
	if hz == 0 {
		return 0
	}
	return time.Duration(uint64(cycles) * uint64(time.Second) / uint64(hz))
}
