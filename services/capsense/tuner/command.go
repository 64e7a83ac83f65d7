package tuner

import (
	"capsense-go/errcode"
)

// CommandSize is the fixed size of an inbound command packet.
//
//	0-1   0x0D 0x0A
//	2     code
//	3     counter (echoed in telemetry)
//	4     size of data (0..4)
//	5-6   offset into the snapshot, little endian
//	7-10  data
//	11-12 CRC-16/CCITT-FALSE over bytes 2..10, big endian
//	13-15 0x00 0xFF 0xFF
const CommandSize = 16

const (
	cmdCodeIdx   = 2
	cmdCntrIdx   = 3
	cmdSizeIdx   = 4
	cmdOffsIdx   = 5
	cmdDataIdx   = 7
	cmdCRCIdx    = 11
	cmdTailIdx   = 13
	MaxWriteSize = 4
)

type Code uint8

const (
	CmdNone Code = iota
	CmdSuspend
	CmdResume
	CmdRestart
	CmdPing
	CmdWrite
	cmdLast
)

func (c Code) String() string {
	switch c {
	case CmdSuspend:
		return "suspend"
	case CmdResume:
		return "resume"
	case CmdRestart:
		return "restart"
	case CmdPing:
		return "ping"
	case CmdWrite:
		return "write"
	default:
		return "none"
	}
}

// ParseCode maps a command name back to its code.
func ParseCode(s string) (Code, bool) {
	for c := CmdSuspend; c < cmdLast; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return CmdNone, false
}

// Command is a decoded command packet.
type Command struct {
	Code    Code
	Counter uint8
	Size    uint8
	Offset  uint16
	Data    [MaxWriteSize]byte
}

// Encode builds the wire packet including CRC and framing.
func (c Command) Encode() [CommandSize]byte {
	var p [CommandSize]byte
	p[0], p[1] = frameHeader[0], frameHeader[1]
	p[cmdCodeIdx] = byte(c.Code)
	p[cmdCntrIdx] = c.Counter
	p[cmdSizeIdx] = c.Size
	p[cmdOffsIdx] = byte(c.Offset)
	p[cmdOffsIdx+1] = byte(c.Offset >> 8)
	copy(p[cmdDataIdx:cmdCRCIdx], c.Data[:])
	crc := crc16(p[cmdCodeIdx:cmdCRCIdx])
	p[cmdCRCIdx] = byte(crc >> 8)
	p[cmdCRCIdx+1] = byte(crc)
	copy(p[cmdTailIdx:], frameTrailer[:])
	return p
}

// CheckIntegrity validates framing, code, size and CRC of a packet.
func CheckIntegrity(p []byte) error {
	if len(p) != CommandSize {
		return errcode.InvalidCommand
	}
	if p[0] != frameHeader[0] || p[1] != frameHeader[1] {
		return errcode.InvalidCommand
	}
	if p[cmdTailIdx] != frameTrailer[0] || p[cmdTailIdx+1] != frameTrailer[1] || p[cmdTailIdx+2] != frameTrailer[2] {
		return errcode.InvalidCommand
	}
	if c := Code(p[cmdCodeIdx]); c == CmdNone || c >= cmdLast {
		return errcode.InvalidCommand
	}
	if p[cmdSizeIdx] > MaxWriteSize {
		return errcode.InvalidCommand
	}
	if crc16(p[cmdCodeIdx:cmdCRCIdx]) != uint16(p[cmdCRCIdx])<<8|uint16(p[cmdCRCIdx+1]) {
		return errcode.InvalidCommand
	}
	return nil
}

// Valid is CheckIntegrity as a predicate, the shape transports take.
func Valid(p []byte) bool { return CheckIntegrity(p) == nil }

// ParseCommand checks and decodes a packet.
func ParseCommand(p []byte) (Command, error) {
	if err := CheckIntegrity(p); err != nil {
		return Command{}, err
	}
	c := Command{
		Code:    Code(p[cmdCodeIdx]),
		Counter: p[cmdCntrIdx],
		Size:    p[cmdSizeIdx],
		Offset:  uint16(p[cmdOffsIdx]) | uint16(p[cmdOffsIdx+1])<<8,
	}
	copy(c.Data[:], p[cmdDataIdx:cmdCRCIdx])
	return c, nil
}

// crc16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func crc16(b []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, v := range b {
		crc ^= uint16(v) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
