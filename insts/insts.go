// Package insts provides instruction definitions and decoding for the
// textual machine-code format consumed by dashsim.
package insts

// Op represents an opcode.
type Op uint8

// Supported opcodes. The machine only issues loads and stores against the
// globally addressed memory.
const (
	OpUnknown Op = iota
	OpLW         // load word
	OpSW         // store word
)

// String returns the assembly mnemonic for the opcode.
func (o Op) String() string {
	switch o {
	case OpLW:
		return "lw"
	case OpSW:
		return "sw"
	default:
		return "unknown"
	}
}

// Opcode field encodings, MIPS-style.
const (
	opcodeBitsLW = "100011"
	opcodeBitsSW = "101011"
)

// Instruction represents a decoded instruction.
//
// The rs field carries the base word address directly and rt selects one of
// the two per-processor registers. The 16-bit offset is a byte offset; the
// machine is word addressed, so the effective address drops the low two
// bits.
type Instruction struct {
	Op   Op
	Node int // node the instruction is issued on
	Proc int // processor within the node

	Base        int // rs field, base word address
	RegSelector int // raw rt field
	ByteOffset  int // 16-bit byte offset
}

// Address returns the effective global word address.
func (i *Instruction) Address() int {
	return i.Base + i.ByteOffset/4
}

// Register returns the register index the instruction targets. Odd rt
// values select register 0 ($s1), even values register 1 ($s2), matching
// the reference machine's encoding.
func (i *Instruction) Register() int {
	return (i.RegSelector + 1) % 2
}
