// Package mpr121 provides a driver for the MPR121 capacitive touch controller.
//
// The part does its own filtering, baseline tracking and threshold
// detection; the driver only configures it and reads results back.
//
// Datasheet: https://www.nxp.com/docs/en/data-sheet/MPR121.pdf
package mpr121

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

var (
	ErrNotFound   = errors.New("mpr121: device did not come out of reset")
	ErrElectrodes = errors.New("mpr121: electrode range out of bounds")
)

// Config holds the values written by Configure. Zero fields take defaults.
type Config struct {
	Address          uint16
	Electrodes       uint8 // default 12
	TouchThreshold   uint8 // default 12
	ReleaseThreshold uint8 // default 6
	Debounce         uint8 // samples, 0..7 for both touch and release
}

// Device wraps an I2C connection to an MPR121.
type Device struct {
	bus     drivers.I2C
	Address uint16

	electrodes uint8
	touch      uint8
	release    uint8

	w   [2]byte
	buf [2 * MaxElectrodes]byte
}

// New creates a Device. The I2C bus must already be configured. Nothing is
// written until Configure.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, Address: Address, electrodes: MaxElectrodes}
}

// Configure resets the part, programs filter, threshold and auto-config
// registers, and enters run mode.
func (d *Device) Configure(cfg Config) error {
	if cfg.Address != 0 {
		d.Address = cfg.Address
	}
	if cfg.Electrodes == 0 || cfg.Electrodes > MaxElectrodes {
		cfg.Electrodes = MaxElectrodes
	}
	if cfg.TouchThreshold == 0 {
		cfg.TouchThreshold = 12
	}
	if cfg.ReleaseThreshold == 0 {
		cfg.ReleaseThreshold = 6
	}
	d.electrodes = cfg.Electrodes

	if err := d.write(SOFTRESET, softResetMagic); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)

	v, err := d.read8(CONFIG2)
	if err != nil {
		return err
	}
	if v != config2ResetValue {
		return ErrNotFound
	}
	// Registers below are only writable in stop mode; reset leaves ECR=0.
	seq := [...][2]byte{
		{MHDR, 0x01}, {NHDR, 0x01}, {NCLR, 0x0E}, {FDLR, 0x00},
		{MHDF, 0x01}, {NHDF, 0x05}, {NCLF, 0x01}, {FDLF, 0x00},
		{NHDT, 0x00}, {NCLT, 0x00}, {FDLT, 0x00},
		{DEBOUNCE, (cfg.Debounce&7)<<4 | cfg.Debounce&7},
		{CONFIG1, 0x10}, // 16 uA charge current
		{CONFIG2, 0x20}, // 0.5 us charge time, 1 ms period
		// Auto-config for a 3.3 V supply.
		{AUTOCONFIG0, 0x0B},
		{UPLIMIT, 200},
		{TARGETLIMIT, 180},
		{LOWLIMIT, 130},
	}
	for _, kv := range seq {
		if err := d.write(kv[0], kv[1]); err != nil {
			return err
		}
	}
	if err := d.writeThresholds(cfg.TouchThreshold, cfg.ReleaseThreshold); err != nil {
		return err
	}
	return d.Run()
}

// Stop puts the part in stop mode; configuration registers become writable.
func (d *Device) Stop() error { return d.write(ECR, 0x00) }

// Run enables the configured electrodes.
func (d *Device) Run() error { return d.write(ECR, ecrRun|d.electrodes) }

// Electrodes returns the number of enabled electrodes.
func (d *Device) Electrodes() uint8 { return d.electrodes }

// Thresholds returns the last programmed touch and release thresholds.
func (d *Device) Thresholds() (touch, release uint8) { return d.touch, d.release }

// SetThresholds reprograms every electrode, pausing measurement meanwhile.
func (d *Device) SetThresholds(touch, release uint8) error {
	if err := d.Stop(); err != nil {
		return err
	}
	if err := d.writeThresholds(touch, release); err != nil {
		return err
	}
	return d.Run()
}

func (d *Device) writeThresholds(touch, release uint8) error {
	for i := uint8(0); i < MaxElectrodes; i++ {
		if err := d.write(TOUCHTH_0+2*i, touch); err != nil {
			return err
		}
		if err := d.write(RELEASETH_0+2*i, release); err != nil {
			return err
		}
	}
	d.touch, d.release = touch, release
	return nil
}

// Touched returns the 12-bit touch status, one bit per electrode.
func (d *Device) Touched() (uint16, error) {
	b := d.buf[:2]
	if err := d.bus.Tx(d.Address, []byte{TOUCHSTATUS_L}, b); err != nil {
		return 0, err
	}
	return (uint16(b[1])<<8 | uint16(b[0])) & 0x0FFF, nil
}

// ReadFiltered reads count 10-bit filtered values starting at electrode first.
func (d *Device) ReadFiltered(first, count uint8, dst []uint16) error {
	if err := d.checkRange(first, count, dst); err != nil {
		return err
	}
	b := d.buf[:2*int(count)]
	if err := d.bus.Tx(d.Address, []byte{FILTDATA_0L + 2*first}, b); err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		dst[i] = (uint16(b[2*i+1])<<8 | uint16(b[2*i])) & 0x03FF
	}
	return nil
}

// ReadBaseline reads count baselines starting at electrode first. The part
// stores the upper eight of ten bits; values are scaled back to 10 bits.
func (d *Device) ReadBaseline(first, count uint8, dst []uint16) error {
	if err := d.checkRange(first, count, dst); err != nil {
		return err
	}
	b := d.buf[:count]
	if err := d.bus.Tx(d.Address, []byte{BASELINE_0 + first}, b); err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		dst[i] = uint16(b[i]) << 2
	}
	return nil
}

func (d *Device) checkRange(first, count uint8, dst []uint16) error {
	if count == 0 || int(first)+int(count) > MaxElectrodes || len(dst) < int(count) {
		return ErrElectrodes
	}
	return nil
}

func (d *Device) write(reg, val byte) error {
	d.w[0], d.w[1] = reg, val
	return d.bus.Tx(d.Address, d.w[:], nil)
}

func (d *Device) read8(reg byte) (byte, error) {
	b := d.buf[:1]
	if err := d.bus.Tx(d.Address, []byte{reg}, b); err != nil {
		return 0, err
	}
	return b[0], nil
}
