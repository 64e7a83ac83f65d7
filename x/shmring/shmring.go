// Package shmring is a lock-free single-producer, single-consumer byte ring.
// The producer is typically an interrupt or reader goroutine (UART RX) and
// the consumer a polling drain routine.
package shmring

import (
	"sync/atomic"
)

// Ring is a single-producer, single-consumer byte ring. Indices are
// monotonic and wrap through the power-of-two mask.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index
	wr   atomic.Uint32 // producer index

	readable chan struct{} // 0 -> >0 available edge
	writable chan struct{} // full -> not full edge

	drops atomic.Uint32 // producer bytes refused for lack of space
}

// New allocates a ring of size bytes. size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Cap returns the ring capacity in bytes.
func (r *Ring) Cap() int { return len(r.buf) }

// Space returns free bytes from the producer's point of view.
func (r *Ring) Space() int {
	return int(r.size() - (r.wr.Load() - r.rd.Load()))
}

// Available returns buffered bytes from the consumer's point of view.
func (r *Ring) Available() int {
	return int(r.wr.Load() - r.rd.Load())
}

// Drops returns how many producer bytes were refused because the ring was full.
func (r *Ring) Drops() uint32 { return r.drops.Load() }

// Producer side

// TryWriteFrom copies as much of src as fits and never blocks.
func (r *Ring) TryWriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	beforeAvail := wr - rd
	space := int(r.size() - beforeAvail)
	if space <= 0 {
		r.drops.Add(uint32(len(src)))
		return 0
	}
	n = len(src)
	if n > space {
		r.drops.Add(uint32(n - space))
		n = space
	}

	wrIdx := wr & r.mask
	first := int(r.size() - wrIdx)
	if first > n {
		first = n
	}
	copy(r.buf[wrIdx:wrIdx+uint32(first)], src[:first])
	if second := n - first; second > 0 {
		copy(r.buf[:second], src[first:n])
	}
	r.wr.Store(wr + uint32(n)) // release

	if beforeAvail == 0 {
		select {
		case r.readable <- struct{}{}:
		default:
		}
	}
	return n
}

// Consumer side

// TryReadInto moves up to len(dst) buffered bytes into dst and never blocks.
func (r *Ring) TryReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	avail := int(wr - rd)
	if avail <= 0 {
		return 0
	}
	n = avail
	if n > len(dst) {
		n = len(dst)
	}

	rdIdx := rd & r.mask
	first := int(r.size() - rdIdx)
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	r.rd.Store(rd + uint32(n)) // release

	if uint32(avail) == r.size() {
		select {
		case r.writable <- struct{}{}:
		default:
		}
	}
	return n
}

// Readable fires (coalesced) when the ring goes from empty to non-empty.
func (r *Ring) Readable() <-chan struct{} { return r.readable }

// Writable fires (coalesced) when the ring goes from full to non-full.
func (r *Ring) Writable() <-chan struct{} { return r.writable }
