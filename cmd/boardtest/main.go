// cmd/boardtest/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"capsense-go/bus"
	"capsense-go/errcode"
	"capsense-go/services/capsense"
	"capsense-go/services/capsense/config"
	"capsense-go/types"
)

// ---------- Configuration ----------

const (
	// LED walk timing
	stepOn  = 300 * time.Millisecond
	stepOff = 150 * time.Millisecond

	// Each cycle watches this long for touches.
	cycleWindow = 10 * time.Second

	// Cycles: 0 = loop forever
	cyclesToRun = 0
)

func main() {
	boardName := flag.String("board", config.DefaultBoard, "embedded board name")
	flag.Parse()

	board, err := config.Embedded(*boardName)
	if err != nil {
		println("[boardtest] config:", err.Error())
		return
	}

	b := bus.NewBus(16)
	conn := b.NewConnection("capsense")
	ui := b.NewConnection("ui")

	sys, err := capsense.Boot(context.Background(), conn, board)
	if err != nil {
		println("[boardtest] boot failed:", err.Error())
		return
	}
	if sys.Status() != errcode.OK {
		println("[boardtest] sensing status:", string(sys.Status()))
	}

	walkLEDs(sys, board.Widgets)

	sub := ui.Subscribe(bus.T("capsense", "widget", "+", "state"))
	defer ui.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sys.Run(ctx) }()

	cycle := 0
	for {
		cycle++
		println("=== boardtest: cycle", cycle, "=== touch each widget within", int(cycleWindow/time.Second), "s")

		seen := map[string]bool{}
		deadline := time.NewTimer(cycleWindow)
	watch:
		for {
			select {
			case m := <-sub.Channel():
				if st, ok := m.Payload.(types.WidgetState); ok {
					println("widget", st.Name, "active:", st.Active)
					if st.Active {
						seen[st.Name] = true
					}
				}
			case err := <-done:
				println("[boardtest] pipeline stopped:", err.Error())
				return
			case <-deadline.C:
				break watch
			}
		}

		miss := make([]string, 0, len(board.Widgets))
		for _, w := range board.Widgets {
			if !seen[w.Name] {
				miss = append(miss, w.Name)
			}
		}
		if len(miss) == 0 {
			println("[PASS] every widget reported a touch")
		} else {
			println("[FAIL] never touched:", fmt.Sprintf("%v", miss))
		}

		if cyclesToRun > 0 && cycle >= cyclesToRun {
			println("completed", cycle, "cycles; halting")
			return
		}
	}
}

// walkLEDs lights each widget's LED in turn before the pipeline owns them.
func walkLEDs(sys *capsense.System, ws []config.Widget) {
	for _, w := range ws {
		pin, ok := sys.Res.Pins.ByNumber(w.LED.Pin)
		if !ok {
			println("[boardtest] no LED for", w.Name)
			continue
		}
		pin.Set(!w.LED.ActiveLow)
		println("led on:", w.Name)
		time.Sleep(stepOn)
		pin.Set(w.LED.ActiveLow)
		time.Sleep(stepOff)
	}
}
