// Package latency provides the fixed cycle costs of resolved coherence
// cases.
//
// The protocol charges one flat cost per case rather than modeling message
// round trips; the whole system advances in lockstep on a single clock.
package latency

// Case identifies which protocol case resolved a request.
type Case uint8

// Protocol cases.
const (
	CaseUnknown Case = iota

	// LoadLocalHit: the requesting processor's own cache held the line.
	LoadLocalHit
	// LoadSiblingHit: another processor in the same node held the line.
	LoadSiblingHit
	// LoadHomeClean: home memory was authoritative (Uncached or Shared).
	LoadHomeClean
	// LoadRemoteDirty: a remote cache owned the only valid copy.
	LoadRemoteDirty

	// StoreHit: the requesting processor's cache held the line.
	StoreHit
	// StoreMiss: no local copy; memory was updated directly.
	StoreMiss
)

// String returns the case name.
func (c Case) String() string {
	switch c {
	case LoadLocalHit:
		return "load local hit"
	case LoadSiblingHit:
		return "load sibling hit"
	case LoadHomeClean:
		return "load home clean"
	case LoadRemoteDirty:
		return "load remote dirty"
	case StoreHit:
		return "store hit"
	case StoreMiss:
		return "store miss"
	default:
		return "unknown case"
	}
}

// Table provides per-case cost lookups.
type Table struct {
	config *CostConfig
}

// NewTable creates a latency table with the reference machine's costs.
func NewTable() *Table {
	return &Table{
		config: DefaultCostConfig(),
	}
}

// NewTableWithConfig creates a latency table with custom costs.
func NewTableWithConfig(config *CostConfig) *Table {
	return &Table{
		config: config,
	}
}

// Cost returns the cycle cost of the given case.
func (t *Table) Cost(c Case) uint64 {
	switch c {
	case LoadLocalHit:
		return t.config.LocalHitLatency
	case LoadSiblingHit:
		return t.config.SiblingHitLatency
	case LoadHomeClean:
		return t.config.HomeCleanLatency
	case LoadRemoteDirty:
		return t.config.RemoteDirtyLatency
	case StoreHit:
		return t.config.WriteHitLatency
	case StoreMiss:
		return t.config.WriteMissLatency
	default:
		return 1
	}
}

// Config returns the current cost configuration.
func (t *Table) Config() *CostConfig {
	return t.config
}
