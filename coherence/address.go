package coherence

// Location identifies where a global word address lives: which node is home
// to it, where it sits in that node's memory partition, and which cache
// line and tag it maps to in any processor's cache.
type Location struct {
	HomeNode   int
	MemIndex   int
	CacheIndex int
	Tag        uint32
}

// Mapper resolves global word addresses against a fixed geometry. It is a
// pure function over the address; all inputs are assumed validated by the
// caller.
type Mapper struct {
	geom Geometry
}

// NewMapper creates a mapper for the given geometry.
func NewMapper(geom Geometry) *Mapper {
	return &Mapper{geom: geom}
}

// Resolve maps a global word address to its Location.
func (m *Mapper) Resolve(addr int) Location {
	return Location{
		HomeNode:   addr / m.geom.WordsPerNode,
		MemIndex:   addr % m.geom.WordsPerNode,
		CacheIndex: addr % m.geom.LinesPerCache,
		Tag:        uint32(addr / m.geom.LinesPerCache),
	}
}

// AddressOf reconstructs the global word address held by a cache line from
// its index and tag. It is the inverse of Resolve's cache mapping and is
// used when writing back an evicted line.
func (m *Mapper) AddressOf(cacheIndex int, tag uint32) int {
	return int(tag)*m.geom.LinesPerCache + cacheIndex
}
