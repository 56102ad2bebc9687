package coherence

// RegFile holds the word-sized registers of one scalar processor.
type RegFile struct {
	regs []uint32
}

// NewRegFile creates a register file with n registers, all zero.
func NewRegFile(n int) *RegFile {
	return &RegFile{regs: make([]uint32, n)}
}

// Read reads a register value. Out-of-range registers read as 0.
func (r *RegFile) Read(reg int) uint32 {
	if reg < 0 || reg >= len(r.regs) {
		return 0
	}
	return r.regs[reg]
}

// Write writes a value to a register. Out-of-range writes are ignored.
func (r *RegFile) Write(reg int, value uint32) {
	if reg < 0 || reg >= len(r.regs) {
		return
	}
	r.regs[reg] = value
}

// Snapshot returns a copy of all register values.
func (r *RegFile) Snapshot() []uint32 {
	out := make([]uint32, len(r.regs))
	copy(out, r.regs)
	return out
}

// reset zeroes every register.
func (r *RegFile) reset() {
	for i := range r.regs {
		r.regs[i] = 0
	}
}
