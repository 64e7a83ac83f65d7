package sensing

import (
	"sync"

	"capsense-go/drivers/mpr121"
	"capsense-go/errcode"
	"capsense-go/services/capsense/config"
)

// MPR121 adapts the driver to halcore.TouchFrontEnd with its configuration
// bound, so a tuner restart can replay it.
type MPR121 struct {
	*mpr121.Device
	cfg mpr121.Config
}

func NewMPR121(dev *mpr121.Device, s config.SensingConfig) *MPR121 {
	return &MPR121{Device: dev, cfg: mpr121.Config{
		Address:          s.Address,
		Electrodes:       s.Electrodes,
		TouchThreshold:   s.TouchThreshold,
		ReleaseThreshold: s.ReleaseThreshold,
		Debounce:         s.Debounce,
	}}
}

func (m *MPR121) Configure() error { return m.Device.Configure(m.cfg) }

// Sim is an in-memory front end. Touch a slot and the next scan sees its
// filtered value fall below baseline by more than the touch threshold.
type Sim struct {
	mu       sync.Mutex
	slots    uint8
	touched  uint16
	touch    uint8
	release  uint8
	baseline uint16

	// FailConfigure makes Configure fail, for bring-up tests.
	FailConfigure bool
}

func NewSim(slots uint8) *Sim {
	return &Sim{slots: slots, baseline: 700}
}

func (s *Sim) Configure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailConfigure {
		return errcode.InitFailed
	}
	return nil
}

// Touch sets or clears the touched state of one slot.
func (s *Sim) Touch(slot uint8, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot >= s.slots {
		return
	}
	if on {
		s.touched |= 1 << slot
	} else {
		s.touched &^= 1 << slot
	}
}

func (s *Sim) Touched() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched, nil
}

func (s *Sim) ReadFiltered(first, count uint8, dst []uint16) error {
	if err := s.check(first, count, dst); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := uint8(0); i < count; i++ {
		v := s.baseline
		if s.touched&(1<<(first+i)) != 0 {
			v -= uint16(s.touch) * 2
		}
		dst[i] = v
	}
	return nil
}

func (s *Sim) ReadBaseline(first, count uint8, dst []uint16) error {
	if err := s.check(first, count, dst); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := uint8(0); i < count; i++ {
		dst[i] = s.baseline
	}
	return nil
}

func (s *Sim) SetThresholds(touch, release uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch, s.release = touch, release
	return nil
}

// Thresholds reports the last values set.
func (s *Sim) Thresholds() (touch, release uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touch, s.release
}

func (s *Sim) check(first, count uint8, dst []uint16) error {
	if count == 0 || first+count > s.slots || len(dst) < int(count) {
		return errcode.InvalidParams
	}
	return nil
}
