package coherence

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// wordBytes is the block size handed to the Akita cache directory. The
// machine is word addressed and each cache line holds exactly one 32-bit
// word.
const wordBytes = 4

// Cache is one processor's direct-mapped write-back cache. Tag and valid
// state live in an Akita cache directory with one way per set; the data
// words sit alongside, indexed by set.
type Cache struct {
	lines int
	tags  *akitacache.DirectoryImpl
	data  []uint32
}

// NewCache creates a cache with the given number of lines, all invalid.
func NewCache(lines int) *Cache {
	return &Cache{
		lines: lines,
		tags: akitacache.NewDirectory(
			lines,
			1, // direct-mapped
			wordBytes,
			akitacache.NewLRUVictimFinder(),
		),
		data: make([]uint32, lines),
	}
}

// blockAddr converts a global word address to the byte address the Akita
// directory keys on.
func blockAddr(addr int) uint64 {
	return uint64(addr) * wordBytes
}

// Lookup returns the cached word for addr if the line it maps to is valid
// with a matching tag.
func (c *Cache) Lookup(addr int) (uint32, bool) {
	block := c.tags.Lookup(0, blockAddr(addr))
	if block == nil || !block.IsValid {
		return 0, false
	}
	return c.data[block.SetID], true
}

// Install places a word into the line addr maps to, replacing whatever tag
// occupied it. Eviction write-back is the engine's responsibility and must
// happen before Install.
func (c *Cache) Install(addr int, word uint32) {
	victim := c.tags.FindVictim(blockAddr(addr))
	victim.Tag = blockAddr(addr)
	victim.IsValid = true
	victim.IsDirty = false
	c.data[victim.SetID] = word
	c.tags.Visit(victim)
}

// Update overwrites the data of an already-valid matching line. It reports
// whether such a line existed.
func (c *Cache) Update(addr int, word uint32) bool {
	block := c.tags.Lookup(0, blockAddr(addr))
	if block == nil || !block.IsValid {
		return false
	}
	c.data[block.SetID] = word
	c.tags.Visit(block)
	return true
}

// Invalidate clears the line holding addr, if any.
func (c *Cache) Invalidate(addr int) {
	block := c.tags.Lookup(0, blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Occupant reports the tag and data currently held by the line that addr
// maps to. It returns ok=false when the line is invalid. The occupant's
// global address is the mapper's to reconstruct from the tag.
func (c *Cache) Occupant(addr int) (tag uint32, word uint32, ok bool) {
	victim := c.tags.FindVictim(blockAddr(addr))
	if victim == nil || !victim.IsValid {
		return 0, 0, false
	}
	tag = uint32(victim.Tag/wordBytes) / uint32(c.lines)
	return tag, c.data[victim.SetID], true
}

// LineState is a read-only view of one cache line. Tag is the word-address
// tag (global address divided by the line count), matching what the
// directory and reporter work with.
type LineState struct {
	Valid bool
	Tag   uint32
	Data  uint32
}

// Lines returns the state of every cache line in index order.
func (c *Cache) Lines() []LineState {
	out := make([]LineState, c.lines)
	for i, set := range c.tags.GetSets() {
		block := set.Blocks[0]
		out[i] = LineState{
			Valid: block.IsValid,
			Tag:   uint32(block.Tag/wordBytes) / uint32(c.lines),
			Data:  c.data[i],
		}
	}
	return out
}

// reset invalidates every line and zeroes the data store.
func (c *Cache) reset() {
	c.tags.Reset()
	for i := range c.data {
		c.data[i] = 0
	}
}
