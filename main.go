package main

import (
	"context"
	"flag"
	"runtime"
	"time"

	"capsense-go/bus"
	"capsense-go/services/capsense"
	"capsense-go/services/capsense/config"
	"capsense-go/types"
)

func main() {
	boardName := flag.String("board", config.DefaultBoard, "embedded board name")
	boardFile := flag.String("config", "", "board YAML file (overrides -board)")
	flag.Parse()

	// Allow USB CDC to enumerate before we print.
	time.Sleep(usbSettle)
	println("[main] boot")

	var (
		board config.Board
		err   error
	)
	if *boardFile != "" {
		board, err = config.File(*boardFile)
	} else {
		board, err = config.Embedded(*boardName)
	}
	if err != nil {
		halt(err)
	}

	ctx := context.Background()
	b := bus.NewBus(8)
	conn := b.NewConnection("capsense")
	go monitor(b.NewConnection("monitor"))

	println("[main] booting board", board.Board)
	sys, err := capsense.Boot(ctx, conn, board)
	if err != nil {
		halt(err)
	}
	if err := sys.Run(ctx); err != nil {
		halt(err)
	}
}

// halt parks the firmware for good. Touch sensing has no safe fallback on
// hardware that failed to come up.
func halt(err error) {
	for {
		println("[main] fatal:", err.Error())
		time.Sleep(5 * time.Second)
	}
}

// monitor prints pipeline telemetry as it is published.
func monitor(c *bus.Connection) {
	sub := c.Subscribe(bus.T("capsense", "#"))
	cmds := c.Subscribe(bus.T("tuner", "command"))
	for {
		select {
		case m := <-sub.Channel():
			switch v := m.Payload.(type) {
			case types.PipelineState:
				println("[monitor] state", v.Level, v.Status)
			case types.WidgetState:
				println("[monitor] widget", v.Name, "active:", v.Active)
			case types.SleepStats:
				println("[monitor] sleep cycles:", v.Cycles, "ticks:", v.Compensated, "nominal:", v.Nominal, "polls:", v.Polls)
				printMem()
			}
		case m := <-cmds.Channel():
			if v, ok := m.Payload.(types.TunerCommand); ok {
				println("[monitor] tuner", v.Name, "counter:", v.Counter, "status:", v.Status)
			}
		}
	}
}

// printMem prints a compact snapshot of runtime memory stats without fmt.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"heapSys:", uint32(ms.HeapSys),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
