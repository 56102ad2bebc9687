package coherence

import (
	"github.com/rs/xid"

	"github.com/sarchlab/dashsim/timing/latency"
)

// Op is the kind of memory operation a request performs.
type Op uint8

// Request operations.
const (
	Load Op = iota
	Store
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case Load:
		return "load"
	case Store:
		return "store"
	default:
		return "unknown"
	}
}

// Request is one load or store presented to the system. Loads read the
// addressed word into Reg; stores write Reg's value to the addressed word.
type Request struct {
	// ID uniquely identifies the request in traces.
	ID string

	Op   Op
	Node int // requesting node
	Proc int // requesting processor within the node
	Addr int // global word address
	Reg  int // destination register for Load, source for Store
}

// NewRequest builds a request with a fresh ID.
func NewRequest(op Op, node, proc, addr, reg int) Request {
	return Request{
		ID:   xid.New().String(),
		Op:   op,
		Node: node,
		Proc: proc,
		Addr: addr,
		Reg:  reg,
	}
}

// Outcome reports what a completed request did.
type Outcome struct {
	// Value is the register value after the request. For loads this is
	// the word that was read.
	Value uint32

	// Cycles is the cost of the case that fired.
	Cycles uint64

	// Case identifies which protocol case resolved the request.
	Case latency.Case
}

// MalformedRequestError rejects a request before any state changes.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return "malformed request: " + e.Reason
}
