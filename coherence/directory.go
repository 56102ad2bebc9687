package coherence

import "fmt"

// Status is the sharing state of one directory entry.
type Status uint8

// Directory statuses. Home memory is authoritative unless the entry is
// Dirty, in which case the sole present node's cache holds the only valid
// copy.
const (
	Uncached Status = iota
	Shared
	Dirty
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Uncached:
		return "uncached"
	case Shared:
		return "shared"
	case Dirty:
		return "dirty"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Entry tracks the sharing state of one home memory line: its status and
// which nodes currently hold a cached copy.
type Entry struct {
	Status  Status
	present []bool
}

// IsPresent reports whether the node holds a cached copy.
func (e *Entry) IsPresent(node int) bool {
	return e.present[node]
}

// SetPresent marks or clears the node's presence bit.
func (e *Entry) SetPresent(node int, present bool) {
	e.present[node] = present
}

// ClearPresent clears every presence bit.
func (e *Entry) ClearPresent() {
	for i := range e.present {
		e.present[i] = false
	}
}

// Sharers returns the ids of all nodes holding a cached copy.
func (e *Entry) Sharers() []int {
	var out []int
	for n, p := range e.present {
		if p {
			out = append(out, n)
		}
	}
	return out
}

// SoleOwner returns the one node holding the dirty copy. The caller must
// only ask when the entry is Dirty; any other shape means the protocol
// logic corrupted the directory, which is unrecoverable.
func (e *Entry) SoleOwner() int {
	if e.Status != Dirty {
		panic(fmt.Sprintf(
			"coherence: sole owner requested on %s entry", e.Status))
	}

	owner := -1
	for n, p := range e.present {
		if !p {
			continue
		}
		if owner >= 0 {
			panic(fmt.Sprintf(
				"coherence: dirty entry with multiple owners (%d, %d)",
				owner, n))
		}
		owner = n
	}

	if owner < 0 {
		panic("coherence: dirty entry with no owner")
	}
	return owner
}

// EntryState is a read-only view of one directory entry.
type EntryState struct {
	Status  Status
	Present []int // ids of nodes holding a copy
}

// Directory is one node's table of sharing state, one entry per line of the
// node's memory partition.
type Directory struct {
	entries []Entry
}

// NewDirectory creates a directory with one entry per memory line, sized
// for the given node count. All entries start Uncached.
func NewDirectory(lines, nodes int) *Directory {
	d := &Directory{entries: make([]Entry, lines)}
	for i := range d.entries {
		d.entries[i].present = make([]bool, nodes)
	}
	return d
}

// Entry returns the mutable entry for a local memory index.
func (d *Directory) Entry(index int) *Entry {
	return &d.entries[index]
}

// Snapshot returns a read-only copy of every entry.
func (d *Directory) Snapshot() []EntryState {
	out := make([]EntryState, len(d.entries))
	for i := range d.entries {
		out[i] = EntryState{
			Status:  d.entries[i].Status,
			Present: d.entries[i].Sharers(),
		}
	}
	return out
}

// reset returns every entry to Uncached with no sharers.
func (d *Directory) reset() {
	for i := range d.entries {
		d.entries[i].Status = Uncached
		d.entries[i].ClearPresent()
	}
}
