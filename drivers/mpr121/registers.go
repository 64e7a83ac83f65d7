package mpr121

// I2C addresses selected by the ADDR pin.
const (
	Address    = 0x5A // ADDR to GND
	Address3Vo = 0x5B
	AddressSDA = 0x5C
	AddressSCL = 0x5D
)

// Registers.
const (
	TOUCHSTATUS_L = 0x00
	TOUCHSTATUS_H = 0x01
	FILTDATA_0L   = 0x04
	BASELINE_0    = 0x1E

	MHDR = 0x2B
	NHDR = 0x2C
	NCLR = 0x2D
	FDLR = 0x2E
	MHDF = 0x2F
	NHDF = 0x30
	NCLF = 0x31
	FDLF = 0x32
	NHDT = 0x33
	NCLT = 0x34
	FDLT = 0x35

	TOUCHTH_0   = 0x41
	RELEASETH_0 = 0x42
	DEBOUNCE    = 0x5B
	CONFIG1     = 0x5C
	CONFIG2     = 0x5D
	ECR         = 0x5E
	AUTOCONFIG0 = 0x7B
	UPLIMIT     = 0x7D
	LOWLIMIT    = 0x7E
	TARGETLIMIT = 0x7F

	SOFTRESET = 0x80
)

const (
	// MaxElectrodes is the number of sensing channels on the part.
	MaxElectrodes = 12

	config2ResetValue = 0x24
	softResetMagic    = 0x63

	// ecrRun enables baseline tracking seeded from the first five bits of
	// the initial reading (CL=10); the low nibble holds the electrode count.
	ecrRun = 0x80
)
