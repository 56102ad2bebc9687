package coherence

import (
	"fmt"
	"io"
	"sync"

	"github.com/sarchlab/dashsim/timing/latency"
)

// memorySeedBias is the startup pattern of the reference machine: the word
// at global address a is seeded with a + 5.
const memorySeedBias = 5

// System is the composition root: it owns every node, the coherence
// engine, the latency table, and the single global clock.
//
// Every request runs to completion under one lock. A request may touch up
// to three nodes (requester, home, dirty owner) and must appear atomic, so
// the serialization is global rather than per node.
type System struct {
	mu sync.Mutex

	geom   Geometry
	mapper *Mapper
	nodes  []*Node
	engine *Engine
	costs  *latency.Table

	clock uint64
	trace io.Writer
}

// Option configures a System.
type Option func(*System)

// WithCostTable sets a custom latency table.
func WithCostTable(t *latency.Table) Option {
	return func(s *System) {
		s.costs = t
	}
}

// WithTrace enables per-request tracing to w.
func WithTrace(w io.Writer) Option {
	return func(s *System) {
		s.trace = w
	}
}

// New creates a system with freshly initialized state.
func New(geom Geometry, opts ...Option) (*System, error) {
	if err := geom.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}

	s := &System{
		geom:   geom,
		mapper: NewMapper(geom),
		costs:  latency.NewTable(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.nodes = make([]*Node, geom.Nodes)
	for n := range s.nodes {
		s.nodes[n] = newNode(geom)
	}
	s.engine = newEngine(geom, s.mapper, s.nodes)

	s.Reset()
	return s, nil
}

// Geometry returns the machine shape the system was built with.
func (s *System) Geometry() Geometry {
	return s.geom
}

// Reset re-seeds memory and clears all caches, registers, directories, and
// the clock. The seeded pattern makes replays deterministic.
func (s *System) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock = 0
	for n, node := range s.nodes {
		node.Memory.seed(n*s.geom.WordsPerNode, memorySeedBias)
		node.Directory.reset()
		for p := 0; p < s.geom.ProcsPerNode; p++ {
			node.Caches[p].reset()
			node.Regs[p].reset()
		}
	}
}

// Apply runs one request to completion and charges its cost to the global
// clock. Malformed requests are rejected before any state changes.
func (s *System) Apply(req Request) (Outcome, error) {
	if err := s.validate(req); err != nil {
		return Outcome{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		word uint32
		c    latency.Case
	)
	switch req.Op {
	case Load:
		word, c = s.engine.Load(req)
	case Store:
		c = s.engine.Store(req)
		word = s.nodes[req.Node].Regs[req.Proc].Read(req.Reg)
	}

	cycles := s.costs.Cost(c)
	s.clock += cycles

	if s.trace != nil {
		fmt.Fprintf(s.trace,
			"req %s: %s node=%d proc=%d addr=%d reg=%d -> %s (%d cycles, clock=%d)\n",
			req.ID, req.Op, req.Node, req.Proc, req.Addr, req.Reg,
			c, cycles, s.clock)
	}

	return Outcome{Value: word, Cycles: cycles, Case: c}, nil
}

// Clock returns the cycles charged so far.
func (s *System) Clock() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

func (s *System) validate(req Request) error {
	reject := func(format string, args ...interface{}) error {
		return &MalformedRequestError{Reason: fmt.Sprintf(format, args...)}
	}

	if req.Op != Load && req.Op != Store {
		return reject("unknown op %d", req.Op)
	}
	if req.Node < 0 || req.Node >= s.geom.Nodes {
		return reject("node %d out of range [0, %d)", req.Node, s.geom.Nodes)
	}
	if req.Proc < 0 || req.Proc >= s.geom.ProcsPerNode {
		return reject("proc %d out of range [0, %d)",
			req.Proc, s.geom.ProcsPerNode)
	}
	if req.Addr < 0 || req.Addr >= s.geom.TotalWords() {
		return reject("address %d out of range [0, %d)",
			req.Addr, s.geom.TotalWords())
	}
	if req.Reg < 0 || req.Reg >= s.geom.RegsPerProc {
		return reject("register %d out of range [0, %d)",
			req.Reg, s.geom.RegsPerProc)
	}
	return nil
}

// NodeState is a read-only view of one node.
type NodeState struct {
	Registers [][]uint32    // indexed by processor, then register
	Caches    [][]LineState // indexed by processor, then line
	Memory    []uint32
	Directory []EntryState
}

// Snapshot is a read-only view of the whole system at one point in time.
type Snapshot struct {
	Geometry Geometry
	Clock    uint64
	Nodes    []NodeState
}

// Snapshot captures the full system state for reporting. The copy is deep;
// the caller may hold it across later requests.
func (s *System) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Geometry: s.geom,
		Clock:    s.clock,
		Nodes:    make([]NodeState, len(s.nodes)),
	}
	for n, node := range s.nodes {
		state := NodeState{
			Registers: make([][]uint32, s.geom.ProcsPerNode),
			Caches:    make([][]LineState, s.geom.ProcsPerNode),
			Memory:    node.Memory.Snapshot(),
			Directory: node.Directory.Snapshot(),
		}
		for p := 0; p < s.geom.ProcsPerNode; p++ {
			state.Registers[p] = node.Regs[p].Snapshot()
			state.Caches[p] = node.Caches[p].Lines()
		}
		snap.Nodes[n] = state
	}
	return snap
}
