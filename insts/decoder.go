package insts

import (
	"fmt"
)

// Instruction text layout, one instruction per line:
//
//	NNC: OOOOOOSSSSSTTTTTBBBBBBBBBBBBBBBB
//	columns 0-2   node (2 bits) and processor (1 bit)
//	columns 3-4   literal ": " separator
//	columns 5-10  opcode (6 bits)
//	columns 11-15 rs field (5 bits, base word address)
//	columns 16-20 rt field (5 bits, register selector)
//	columns 21-36 byte offset (16 bits)
//
// All fields after the separator are contiguous binary digits.
const lineLength = 37

// Decoder decodes textual machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a single machine-code line.
func (d *Decoder) Decode(line string) (*Instruction, error) {
	if len(line) != lineLength {
		return nil, fmt.Errorf(
			"instruction must be %d characters, got %d", lineLength, len(line))
	}

	if line[3] != ':' || line[4] != ' ' {
		return nil, fmt.Errorf("missing ': ' separator at columns 3-4")
	}

	node, err := parseBits(line[0:2])
	if err != nil {
		return nil, fmt.Errorf("node field: %w", err)
	}

	proc, err := parseBits(line[2:3])
	if err != nil {
		return nil, fmt.Errorf("processor field: %w", err)
	}

	op, err := decodeOpcode(line[5:11])
	if err != nil {
		return nil, err
	}

	rs, err := parseBits(line[11:16])
	if err != nil {
		return nil, fmt.Errorf("rs field: %w", err)
	}

	rt, err := parseBits(line[16:21])
	if err != nil {
		return nil, fmt.Errorf("rt field: %w", err)
	}

	offset, err := parseBits(line[21:37])
	if err != nil {
		return nil, fmt.Errorf("offset field: %w", err)
	}

	return &Instruction{
		Op:          op,
		Node:        node,
		Proc:        proc,
		Base:        rs,
		RegSelector: rt,
		ByteOffset:  offset,
	}, nil
}

func decodeOpcode(bits string) (Op, error) {
	switch bits {
	case opcodeBitsLW:
		return OpLW, nil
	case opcodeBitsSW:
		return OpSW, nil
	default:
		return OpUnknown, fmt.Errorf("unknown opcode %q", bits)
	}
}

// parseBits converts a string of binary digits to an integer.
func parseBits(bits string) (int, error) {
	result := 0
	for _, c := range bits {
		switch c {
		case '0':
			result = result * 2
		case '1':
			result = result*2 + 1
		default:
			return 0, fmt.Errorf("invalid binary digit %q", c)
		}
	}
	return result, nil
}
