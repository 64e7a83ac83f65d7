package platform

import (
	"sync"

	"capsense-go/services/capsense/internal/halcore"
)

// MemPin is an output latch with no hardware behind it.
type MemPin struct {
	mu    sync.RWMutex
	n     int
	level bool
}

func (p *MemPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *MemPin) Set(l bool) {
	p.mu.Lock()
	p.level = l
	p.mu.Unlock()
}

func (p *MemPin) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

func (p *MemPin) Number() int { return p.n }

// MemPins hands out stable *MemPin instances per number.
type MemPins struct {
	mu   sync.Mutex
	pins map[int]*MemPin
}

func NewMemPins() *MemPins { return &MemPins{pins: make(map[int]*MemPin)} }

func (f *MemPins) ByNumber(n int) (halcore.GPIOPin, bool) {
	if n < 0 {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	if !ok {
		p = &MemPin{n: n}
		f.pins[n] = p
	}
	return p, true
}

// Level reports a pin's latch, false if never claimed.
func (f *MemPins) Level(n int) bool {
	f.mu.Lock()
	p := f.pins[n]
	f.mu.Unlock()
	return p != nil && p.Get()
}
