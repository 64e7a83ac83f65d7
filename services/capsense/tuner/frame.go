// Package tuner implements the link between the firmware and an external
// tuning tool: the outbound status frame, the inbound command packet and
// the transports that carry them.
package tuner

import "bytes"

// Outbound frame: header | snapshot | trailer.
var (
	frameHeader  = [...]byte{0x0D, 0x0A}
	frameTrailer = [...]byte{0x00, 0xFF, 0xFF}
)

const (
	// FrameOverhead is the number of framing bytes around a snapshot.
	FrameOverhead = len(frameHeader) + len(frameTrailer)
	// FrameSize is the size of every outbound frame.
	FrameSize = SnapshotSize + FrameOverhead
)

// AppendFrame appends one framed snapshot to dst.
func AppendFrame(dst, snapshot []byte) []byte {
	dst = append(dst, frameHeader[:]...)
	dst = append(dst, snapshot...)
	return append(dst, frameTrailer[:]...)
}

// FindFrame scans buf for the first complete frame. It returns the
// snapshot bytes and how much of buf was consumed up to the frame's end.
// If no full frame is present, n is the number of leading bytes that can
// be discarded.
func FindFrame(buf []byte) (snapshot []byte, n int, ok bool) {
	for off := 0; ; {
		i := bytes.Index(buf[off:], frameHeader[:])
		if i < 0 {
			// Keep a trailing 0x0D: it may start the next header.
			if len(buf) > 0 && buf[len(buf)-1] == frameHeader[0] {
				return nil, len(buf) - 1, false
			}
			return nil, len(buf), false
		}
		start := off + i
		end := start + FrameSize
		if end > len(buf) {
			return nil, start, false
		}
		if bytes.Equal(buf[end-len(frameTrailer):end], frameTrailer[:]) {
			return buf[start+len(frameHeader) : end-len(frameTrailer)], end, true
		}
		off = start + 1
	}
}
