package tuner

// Transport moves frames between the firmware and the tuning tool. Each
// transport is bound to one snapshot at construction.
type Transport interface {
	// Send transmits the current snapshot and returns once it is on the
	// wire, so successive frames never overlap.
	Send() error
	// Receive drains pending input and surfaces at most one valid command
	// together with the snapshot it applies to.
	Receive() (cmd []byte, snap *Snapshot, ok bool)
}

// Port is the transmit side of a byte stream.
type Port interface {
	Write(p []byte) (int, error)
}

// TxCompleter is implemented by ports that buffer writes in hardware.
type TxCompleter interface {
	TxComplete() bool
}

// Ring is the receive side: bytes an interrupt or reader goroutine has
// already buffered. shmring.Ring satisfies it.
type Ring interface {
	Available() int
	TryReadInto(dst []byte) int
}

// None is the transport used when no tuner is configured.
type None struct{}

func (None) Send() error                        { return nil }
func (None) Receive() ([]byte, *Snapshot, bool) { return nil, nil, false }

// window is the command accumulation buffer. Bytes slide through it one at
// a time until its content passes the integrity check.
type window struct {
	buf     [CommandSize]byte
	fill    int
	valid   func([]byte) bool
	resyncs uint32
}

// drain pulls from r until r is empty or one command is recognised. The
// returned slice aliases the window and is valid until the next drain.
func (w *window) drain(r Ring) ([]byte, bool) {
	for r.Available() > 0 {
		n := r.TryReadInto(w.buf[w.fill:])
		if n == 0 {
			break
		}
		w.fill += n
		if w.fill < CommandSize {
			continue
		}
		if w.valid(w.buf[:]) {
			w.fill = 0
			return w.buf[:], true
		}
		copy(w.buf[:], w.buf[1:])
		w.fill--
		w.resyncs++
	}
	return nil, false
}
