package types

// ------------------------
// Serial
// ------------------------

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

// ParseParity accepts "none", "even", "odd" and the single-letter forms.
func ParseParity(s string) (Parity, bool) {
	switch s {
	case "", "none", "N", "n":
		return ParityNone, true
	case "even", "E", "e":
		return ParityEven, true
	case "odd", "O", "o":
		return ParityOdd, true
	}
	return ParityNone, false
}

// Letter returns the N/E/O form used by host serial libraries.
func (p Parity) Letter() string {
	switch p {
	case ParityEven:
		return "E"
	case ParityOdd:
		return "O"
	default:
		return "N"
	}
}

// CharBits is the number of bit times one character occupies on the line,
// start bit included.
func CharBits(dataBits, stopBits uint8, p Parity) int {
	n := 1 + int(dataBits) + int(stopBits)
	if p != ParityNone {
		n++
	}
	return n
}
