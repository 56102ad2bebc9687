package coherence

// Memory is one node's partition of the globally addressed memory. Indexing
// is local; the mapper translates global addresses to partition indexes.
type Memory struct {
	words []uint32
}

// NewMemory creates a memory partition of n words.
func NewMemory(n int) *Memory {
	return &Memory{words: make([]uint32, n)}
}

// Read returns the word at the local index.
func (m *Memory) Read(index int) uint32 {
	return m.words[index]
}

// Write stores a word at the local index.
func (m *Memory) Write(index int, value uint32) {
	m.words[index] = value
}

// Snapshot returns a copy of the partition contents.
func (m *Memory) Snapshot() []uint32 {
	out := make([]uint32, len(m.words))
	copy(out, m.words)
	return out
}

// seed fills the partition with the deterministic startup pattern: the word
// at global address a holds a + bias.
func (m *Memory) seed(firstAddr int, bias uint32) {
	for i := range m.words {
		m.words[i] = uint32(firstAddr+i) + bias
	}
}
