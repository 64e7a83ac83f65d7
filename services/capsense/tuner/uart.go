package tuner

import (
	"runtime"

	"capsense-go/errcode"
)

// UART sends snapshot frames over a serial port and recovers commands from
// its receive ring.
type UART struct {
	port  Port
	rx    Ring
	snap  *Snapshot
	frame []byte
	win   window
}

// NewUART binds a serial transport to snap. valid is the integrity
// predicate applied to every candidate command.
func NewUART(port Port, rx Ring, snap *Snapshot, valid func([]byte) bool) *UART {
	return &UART{
		port:  port,
		rx:    rx,
		snap:  snap,
		frame: make([]byte, 0, FrameSize),
		win:   window{valid: valid},
	}
}

func (u *UART) Send() error {
	u.frame = AppendFrame(u.frame[:0], u.snap.Bytes())
	for p := u.frame; len(p) > 0; {
		n, err := u.port.Write(p)
		if err != nil {
			return errcode.Wrap(errcode.Error, "tuner.send", err)
		}
		if n == 0 {
			runtime.Gosched()
		}
		p = p[n:]
	}
	if tc, ok := u.port.(TxCompleter); ok {
		for !tc.TxComplete() {
			runtime.Gosched()
		}
	}
	return nil
}

func (u *UART) Receive() ([]byte, *Snapshot, bool) {
	cmd, ok := u.win.drain(u.rx)
	if !ok {
		return nil, nil, false
	}
	return cmd, u.snap, true
}

// Resyncs counts bytes discarded while hunting for a valid command.
func (u *UART) Resyncs() uint32 { return u.win.resyncs }
