//go:build linux && !baremetal && !(rp2040 || rp2350)

package platform

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"capsense-go/drivers/mpr121"
	"capsense-go/errcode"
	"capsense-go/services/capsense/config"
	"capsense-go/services/capsense/internal/halcore"
	"capsense-go/services/capsense/internal/sensing"
	"capsense-go/services/capsense/tuner"
	"capsense-go/types"
	"capsense-go/x/shmring"
)

// serialPoll bounds how long a blocked serial read holds the pump.
const serialPoll = 50 * time.Millisecond

type periphPin struct {
	p gpio.PinIO
	n int

	mu    sync.Mutex
	level bool
}

func (p *periphPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.level = initial
	p.mu.Unlock()
	return p.p.Out(gpio.Level(initial))
}

func (p *periphPin) Set(l bool) {
	p.mu.Lock()
	p.level = l
	p.mu.Unlock()
	if err := p.p.Out(gpio.Level(l)); err != nil {
		println("[platform] gpio", p.n, "write failed:", err.Error())
	}
}

// Get reports the driven level; reading back an output is not portable.
func (p *periphPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *periphPin) Number() int { return p.n }

type periphPins struct{}

func (periphPins) ByNumber(n int) (halcore.GPIOPin, bool) {
	if n < 0 {
		return nil, false
	}
	p := gpioreg.ByName("GPIO" + strconv.Itoa(n))
	if p == nil {
		return nil, false
	}
	return &periphPin{p: p, n: n}, true
}

func openHW(ctx context.Context, b *config.Board, r *Resources) error {
	if _, err := host.Init(); err != nil {
		return errcode.Wrap(errcode.InitFailed, "platform.host", err)
	}
	if r.Pins == nil {
		r.Pins = periphPins{}
	}

	if b.Sensing.Driver == config.DriverMPR121 {
		bus, err := i2creg.Open(b.Sensing.Bus)
		if err != nil {
			return &errcode.E{C: errcode.UnknownBus, Op: "platform.i2c", Msg: b.Sensing.Bus, Err: err}
		}
		r.onClose(func() { _ = bus.Close() })
		r.FrontEnd = sensing.NewMPR121(mpr121.New(bus), b.Sensing)
	}

	if b.Tuner.Protocol == config.ProtocolUART {
		par, _ := types.ParseParity(b.Tuner.Parity)
		port, err := serial.Open(&serial.Config{
			Address:  b.Tuner.Port,
			BaudRate: int(b.Tuner.Baud),
			DataBits: int(b.Tuner.DataBits),
			StopBits: int(b.Tuner.StopBits),
			Parity:   par.Letter(),
			Timeout:  serialPoll,
		})
		if err != nil {
			return &errcode.E{C: errcode.UnknownBus, Op: "platform.serial", Msg: b.Tuner.Port, Err: err}
		}

		ring := shmring.New(b.Tuner.RingSize)
		pctx, cancel := context.WithCancel(ctx)
		recv := func(_ context.Context, buf []byte) (int, error) { return port.Read(buf) }
		retry := func(err error) bool { return errors.Is(err, serial.ErrTimeout) }
		go pump(pctx, ring, recv, retry)
		r.onClose(func() {
			cancel()
			_ = port.Close()
		})
		// A tty write returns once the kernel has the bytes.
		r.TunerPort = tuner.NewPacedPort(port, b.Tuner.Baud, types.CharBits(b.Tuner.DataBits, b.Tuner.StopBits, par))
		r.TunerRx = ring
	}
	return nil
}
