//go:build rp2040 || rp2350

package platform

import (
	"context"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"capsense-go/drivers/mpr121"
	"capsense-go/errcode"
	"capsense-go/services/capsense/config"
	"capsense-go/services/capsense/internal/halcore"
	"capsense-go/services/capsense/internal/sensing"
	"capsense-go/services/capsense/tuner"
	"capsense-go/types"
	"capsense-go/x/shmring"
)

// watchdogMs must comfortably exceed one loop iteration including a
// blocking tuner frame at the configured baud.
const watchdogMs = 500

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}
func (r *rp2Pin) Set(b bool)  { r.p.Set(b) }
func (r *rp2Pin) Get() bool   { return r.p.Get() }
func (r *rp2Pin) Number() int { return r.n }

type rp2PinFactory struct{}

func (rp2PinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	if n < 0 || n > 29 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

func openHW(ctx context.Context, b *config.Board, r *Resources) error {
	if r.Pins == nil {
		r.Pins = rp2PinFactory{}
	}

	if b.Sensing.Driver == config.DriverMPR121 {
		var hw *machine.I2C
		switch b.Sensing.Bus {
		case "i2c0", "":
			hw = machine.I2C0
		case "i2c1":
			hw = machine.I2C1
		default:
			return &errcode.E{C: errcode.UnknownBus, Op: "platform.open", Msg: b.Sensing.Bus}
		}
		sda, scl := machine.Pin(b.I2C.SDA), machine.Pin(b.I2C.SCL)
		sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
		scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
		if err := hw.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: b.I2C.Hz}); err != nil {
			return errcode.Wrap(errcode.InitFailed, "platform.i2c", err)
		}
		r.FrontEnd = sensing.NewMPR121(mpr121.New(hw), b.Sensing)
	}

	if b.Tuner.Protocol == config.ProtocolUART {
		var u *uartx.UART
		switch b.Tuner.Port {
		case "uart0":
			u = uartx.UART0
		case "uart1":
			u = uartx.UART1
		default:
			return &errcode.E{C: errcode.UnknownBus, Op: "platform.open", Msg: b.Tuner.Port}
		}
		if err := u.Configure(uartx.UARTConfig{
			BaudRate: b.Tuner.Baud,
			TX:       machine.Pin(b.Tuner.TX),
			RX:       machine.Pin(b.Tuner.RX),
		}); err != nil {
			return errcode.Wrap(errcode.InitFailed, "platform.uart", err)
		}
		par, _ := types.ParseParity(b.Tuner.Parity)
		if err := u.SetFormat(b.Tuner.DataBits, b.Tuner.StopBits, uartParity(par)); err != nil {
			return errcode.Wrap(errcode.InitFailed, "platform.uart", err)
		}

		ring := shmring.New(b.Tuner.RingSize)
		pctx, cancel := context.WithCancel(ctx)
		go pump(pctx, ring, u.RecvSomeContext, func(error) bool { return false })
		r.onClose(cancel)
		// uartx.Write returns once bytes are in its TX ring.
		r.TunerPort = tuner.NewPacedPort(u, b.Tuner.Baud, types.CharBits(b.Tuner.DataBits, b.Tuner.StopBits, par))
		r.TunerRx = ring
	}

	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogMs}); err != nil {
		return errcode.Wrap(errcode.InitFailed, "platform.watchdog", err)
	}
	// Armed on the first wake, so a bring-up failure halts instead of
	// resetting in a loop.
	started := false
	r.Clock.OnFeed(func() {
		if !started {
			started = true
			if err := machine.Watchdog.Start(); err != nil {
				println("[platform] watchdog:", err.Error())
			}
			return
		}
		machine.Watchdog.Update()
	})
	return nil
}

func uartParity(p types.Parity) uartx.UARTParity {
	switch p {
	case types.ParityEven:
		return uartx.ParityEven
	case types.ParityOdd:
		return uartx.ParityOdd
	default:
		return uartx.ParityNone
	}
}
