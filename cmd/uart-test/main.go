//go:build rp2040 || rp2350

// uart-test checks the tuner link end to end on a Pico with UART1 TX (GP8)
// jumpered to UART0 RX (GP1). Command packets, mixed with noise, are sent on
// UART1 and must be recovered by the tuner transport listening on UART0.
package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"capsense-go/services/capsense/tuner"
	"capsense-go/x/shmring"
)

const (
	baud      = 115200
	packets   = 200
	perPacket = 2 * time.Second
)

func main() {
	println("[uart] boot …")
	time.Sleep(1500 * time.Millisecond)

	rx, tx := uartx.UART0, uartx.UART1
	if err := rx.Configure(uartx.UARTConfig{BaudRate: baud, TX: machine.GP0, RX: machine.GP1}); err != nil {
		println("[uart] FAIL: uart0 configure:", err.Error())
		return
	}
	if err := tx.Configure(uartx.UARTConfig{BaudRate: baud, TX: machine.GP8, RX: machine.GP9}); err != nil {
		println("[uart] FAIL: uart1 configure:", err.Error())
		return
	}

	ring := shmring.New(64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		buf := make([]byte, 32)
		for {
			n, err := rx.RecvSomeContext(ctx, buf)
			if n > 0 {
				ring.TryWriteFrom(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	snap := tuner.NewSnapshot(1, 1)
	link := tuner.NewUART(rx, ring, snap, tuner.Valid)

	// --- Frame length ---
	start := time.Now()
	if err := link.Send(); err != nil {
		println("[uart] FAIL: send:", err.Error())
		return
	}
	println("[uart] frame:", tuner.FrameSize, "bytes in", time.Since(start).Microseconds(), "us")

	// --- Resync under noise ---
	ok, lost := 0, 0
	for i := 0; i < packets; i++ {
		noise := make([]byte, i%5)
		for j := range noise {
			noise[j] = byte(0x0D + j)
		}
		pkt := tuner.Command{Code: tuner.CmdPing, Counter: uint8(i)}.Encode()
		_, _ = tx.Write(noise)
		_, _ = tx.Write(pkt[:])

		if waitCommand(link, ring, uint8(i), perPacket) {
			ok++
		} else {
			lost++
		}
	}
	println("[uart] resync: ok", ok, "lost", lost, "resyncs", link.Resyncs(), "drops", ring.Drops())
	if lost == 0 {
		println("[uart] resync: PASS")
	} else {
		println("[uart] resync: FAIL")
	}
}

func waitCommand(link *tuner.UART, ring *shmring.Ring, counter uint8, d time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	// The edge only fires on empty to non-empty; the tick covers bytes
	// that landed while a drain was in progress.
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		if raw, _, ok := link.Receive(); ok {
			c, err := tuner.ParseCommand(raw)
			return err == nil && c.Counter == counter
		}
		select {
		case <-ring.Readable():
		case <-tick.C:
		case <-deadline.C:
			return false
		}
	}
}
