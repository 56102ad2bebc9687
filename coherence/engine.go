package coherence

import (
	"fmt"

	"github.com/sarchlab/dashsim/timing/latency"
)

// Engine implements the directory coherence protocol state machine. It
// resolves one load or store against the full node set and applies every
// state transition the resolved case requires before returning.
//
// The engine itself is not safe for concurrent use; the System serializes
// all requests through it.
type Engine struct {
	geom   Geometry
	mapper *Mapper
	nodes  []*Node
}

func newEngine(geom Geometry, mapper *Mapper, nodes []*Node) *Engine {
	return &Engine{geom: geom, mapper: mapper, nodes: nodes}
}

// Load resolves a load request. The four cases are mutually exclusive and
// checked in order; the local cases need no directory consultation.
func (e *Engine) Load(req Request) (uint32, latency.Case) {
	loc := e.mapper.Resolve(req.Addr)
	node := e.nodes[req.Node]
	cache := node.Caches[req.Proc]
	regs := node.Regs[req.Proc]

	// Case 1: the requesting processor's own cache holds the line.
	if word, ok := cache.Lookup(req.Addr); ok {
		regs.Write(req.Reg, word)
		return word, latency.LoadLocalHit
	}

	// The line addr maps to is about to be replaced on every miss path;
	// flush its current occupant first.
	e.writeBackVictim(req.Node, req.Proc, req.Addr)

	// Case 2: a sibling processor in the same node holds the line. The
	// directory is not consulted or changed; the node is already a sharer.
	if word, ok := e.siblingLookup(req.Node, req.Proc, req.Addr); ok {
		regs.Write(req.Reg, word)
		cache.Install(req.Addr, word)
		return word, latency.LoadSiblingHit
	}

	home := e.nodes[loc.HomeNode]
	entry := home.Directory.Entry(loc.MemIndex)

	// Case 3: home memory is authoritative (Uncached or Shared).
	if entry.Status != Dirty {
		word := home.Memory.Read(loc.MemIndex)
		regs.Write(req.Reg, word)
		cache.Install(req.Addr, word)
		entry.Status = Shared
		entry.SetPresent(req.Node, true)
		return word, latency.LoadHomeClean
	}

	// Case 4: a remote cache owns the only valid copy. Pull the word out
	// of the owner, write it back to home, hand it to the requester, and
	// downgrade the entry to Shared naming only the requester. The old
	// owner's copies are invalidated; leaving them valid while the entry
	// no longer names the owner would let a later store hit there go
	// unrecorded.
	word := e.takeFromDirtyOwner(entry, req.Addr)
	home.Memory.Write(loc.MemIndex, word)
	regs.Write(req.Reg, word)
	cache.Install(req.Addr, word)
	entry.Status = Shared
	entry.ClearPresent()
	entry.SetPresent(req.Node, true)
	return word, latency.LoadRemoteDirty
}

// Store resolves a store request.
func (e *Engine) Store(req Request) latency.Case {
	loc := e.mapper.Resolve(req.Addr)
	node := e.nodes[req.Node]
	cache := node.Caches[req.Proc]
	word := node.Regs[req.Proc].Read(req.Reg)

	home := e.nodes[loc.HomeNode]
	entry := home.Directory.Entry(loc.MemIndex)

	// Write hit: take exclusive ownership through the directory, then
	// update the line in place.
	if _, ok := cache.Lookup(req.Addr); ok {
		e.invalidateCopies(entry, req.Addr, req.Node, req.Proc)
		entry.Status = Dirty
		entry.ClearPresent()
		entry.SetPresent(req.Node, true)
		cache.Update(req.Addr, word)
		return latency.StoreHit
	}

	// Write miss: no-write-allocate. Memory takes the store directly and
	// every cached copy is invalidated. A Dirty entry downgrades to
	// Shared since memory is authoritative again.
	home.Memory.Write(loc.MemIndex, word)
	e.invalidateCopies(entry, req.Addr, -1, -1)
	entry.ClearPresent()
	if entry.Status == Dirty {
		entry.Status = Shared
	}
	return latency.StoreMiss
}

// siblingLookup searches the other processors of the requesting node for a
// valid matching line.
func (e *Engine) siblingLookup(nodeID, procID, addr int) (uint32, bool) {
	node := e.nodes[nodeID]
	for p, cache := range node.Caches {
		if p == procID {
			continue
		}
		if word, ok := cache.Lookup(addr); ok {
			return word, true
		}
	}
	return 0, false
}

// writeBackVictim flushes the line that addr is about to displace in the
// given processor's cache. Data only moves when the home directory still
// marks the occupant Dirty with this node as owner; in every other state
// home memory is already authoritative. After the write-back the entry is
// demoted: Shared if a sibling processor still holds the line, otherwise
// Uncached, so the directory never claims a dirty copy nobody holds.
func (e *Engine) writeBackVictim(nodeID, procID, addr int) {
	cache := e.nodes[nodeID].Caches[procID]
	tag, word, ok := cache.Occupant(addr)
	if !ok {
		return
	}

	victimAddr := e.mapper.AddressOf(e.mapper.Resolve(addr).CacheIndex, tag)
	loc := e.mapper.Resolve(victimAddr)
	entry := e.nodes[loc.HomeNode].Directory.Entry(loc.MemIndex)
	if entry.Status != Dirty || entry.SoleOwner() != nodeID {
		return
	}

	e.nodes[loc.HomeNode].Memory.Write(loc.MemIndex, word)

	if _, siblingHolds := e.siblingLookup(nodeID, procID, victimAddr); siblingHolds {
		entry.Status = Shared
		return
	}
	entry.Status = Uncached
	entry.ClearPresent()
}

// takeFromDirtyOwner reads the authoritative word out of the dirty owner's
// cache and invalidates the owner's copies. A sibling-hit load under a
// Dirty entry can leave both of the owner node's processors holding the
// line, so the first valid matching line wins; all copies are identical.
func (e *Engine) takeFromDirtyOwner(entry *Entry, addr int) uint32 {
	owner := entry.SoleOwner()
	node := e.nodes[owner]

	word, found := uint32(0), false
	for _, cache := range node.Caches {
		if w, ok := cache.Lookup(addr); ok {
			if !found {
				word, found = w, true
			}
			cache.Invalidate(addr)
		}
	}

	if !found {
		panic(fmt.Sprintf(
			"coherence: dirty entry names node %d but no processor there holds address %d",
			owner, addr))
	}
	return word
}

// invalidateCopies clears every cached copy of addr named by the entry's
// presence bits, in every processor of every sharing node. The requesting
// processor's own line survives when keepNode/keepProc identify it; pass
// -1 to invalidate unconditionally.
func (e *Engine) invalidateCopies(entry *Entry, addr, keepNode, keepProc int) {
	for _, n := range entry.Sharers() {
		for p, cache := range e.nodes[n].Caches {
			if n == keepNode && p == keepProc {
				continue
			}
			cache.Invalidate(addr)
		}
	}
}
