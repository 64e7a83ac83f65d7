package tuner

import (
	"bytes"

	"capsense-go/bus"
)

var (
	TopicSnapshot = bus.T("tuner", "window", "snapshot")
	TopicCommand  = bus.T("tuner", "window", "command")
)

// BusWindow exposes the snapshot on the in-process bus instead of a serial
// port. Commands arrive as []byte payloads and go through the same sliding
// window as serial input, so split or noisy packets are handled alike.
type BusWindow struct {
	conn *bus.Connection
	sub  *bus.Subscription
	snap *Snapshot
	q    byteQueue
	win  window

	frame []byte // scratch, reused every Send
	last  []byte // payload of the retained message, never mutated
}

func NewBusWindow(conn *bus.Connection, snap *Snapshot, valid func([]byte) bool) *BusWindow {
	return &BusWindow{
		conn:  conn,
		sub:   conn.Subscribe(TopicCommand),
		snap:  snap,
		win:   window{valid: valid},
		frame: make([]byte, 0, FrameSize),
	}
}

// Send publishes the snapshot framed as on the wire. The message is
// retained, so an unchanged frame is not published again.
func (w *BusWindow) Send() error {
	w.frame = AppendFrame(w.frame[:0], w.snap.Bytes())
	if bytes.Equal(w.frame, w.last) {
		return nil
	}
	w.last = append([]byte(nil), w.frame...)
	w.conn.Publish(w.conn.NewMessage(TopicSnapshot, w.last, true))
	return nil
}

func (w *BusWindow) Receive() ([]byte, *Snapshot, bool) {
	for {
		if cmd, ok := w.win.drain(&w.q); ok {
			return cmd, w.snap, true
		}
		select {
		case m, open := <-w.sub.Channel():
			if !open {
				return nil, nil, false
			}
			if b, ok := m.Payload.([]byte); ok {
				w.q.push(b)
			}
		default:
			return nil, nil, false
		}
	}
}

func (w *BusWindow) Close() { w.sub.Unsubscribe() }

// byteQueue adapts queued payloads to the Ring shape.
type byteQueue struct{ b []byte }

func (q *byteQueue) push(p []byte)  { q.b = append(q.b, p...) }
func (q *byteQueue) Available() int { return len(q.b) }

func (q *byteQueue) TryReadInto(dst []byte) int {
	n := copy(dst, q.b)
	q.b = q.b[n:]
	if len(q.b) == 0 {
		q.b = nil
	}
	return n
}
