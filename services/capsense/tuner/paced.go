package tuner

import "time"

// PacedPort wraps a port whose Write returns once bytes are queued in a
// driver buffer. It reports TX complete only after every queued byte has
// had time to leave the line at the configured rate.
type PacedPort struct {
	p        Port
	charTime time.Duration
	idleAt   time.Time
	now      func() time.Time
}

// NewPacedPort paces p for baud with charBits bit times per character.
func NewPacedPort(p Port, baud uint32, charBits int) *PacedPort {
	var ct time.Duration
	if baud > 0 {
		// Round up so the estimate never undercuts the line.
		ct = (time.Duration(charBits)*time.Second + time.Duration(baud) - 1) / time.Duration(baud)
	}
	return &PacedPort{p: p, charTime: ct, now: time.Now}
}

func (p *PacedPort) Write(b []byte) (int, error) {
	n, err := p.p.Write(b)
	if n > 0 {
		if t := p.now(); p.idleAt.Before(t) {
			p.idleAt = t
		}
		p.idleAt = p.idleAt.Add(time.Duration(n) * p.charTime)
	}
	return n, err
}

func (p *PacedPort) TxComplete() bool {
	if tc, ok := p.p.(TxCompleter); ok && !tc.TxComplete() {
		return false
	}
	return !p.now().Before(p.idleAt)
}
