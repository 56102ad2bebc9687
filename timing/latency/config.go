package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// CostConfig holds the cycle cost of each coherence case. The defaults are
// the reference machine's costs.
type CostConfig struct {
	// LocalHitLatency is charged when a load hits the requesting
	// processor's own cache. Default: 1 cycle.
	LocalHitLatency uint64 `json:"local_hit_latency"`

	// SiblingHitLatency is charged when a load is served by the other
	// processor in the same node. Default: 30 cycles.
	SiblingHitLatency uint64 `json:"sibling_hit_latency"`

	// HomeCleanLatency is charged when a load is served by home memory
	// with an Uncached or Shared directory entry. Default: 100 cycles.
	HomeCleanLatency uint64 `json:"home_clean_latency"`

	// RemoteDirtyLatency is charged when a load must pull the line out of
	// a remote dirty owner's cache. Default: 135 cycles.
	RemoteDirtyLatency uint64 `json:"remote_dirty_latency"`

	// WriteHitLatency is charged when a store hits the requesting
	// processor's cache. Default: 1 cycle.
	WriteHitLatency uint64 `json:"write_hit_latency"`

	// WriteMissLatency is charged when a store misses and updates home
	// memory directly. Default: 100 cycles.
	WriteMissLatency uint64 `json:"write_miss_latency"`
}

// DefaultCostConfig returns the reference machine's cost values.
func DefaultCostConfig() *CostConfig {
	return &CostConfig{
		LocalHitLatency:    1,
		SiblingHitLatency:  30,
		HomeCleanLatency:   100,
		RemoteDirtyLatency: 135,
		WriteHitLatency:    1,
		WriteMissLatency:   100,
	}
}

// LoadConfig loads a CostConfig from a JSON file. Fields missing from the
// file keep their defaults.
func LoadConfig(path string) (*CostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cost config file: %w", err)
	}

	config := DefaultCostConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse cost config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a CostConfig to a JSON file.
func (c *CostConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize cost config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cost config file: %w", err)
	}

	return nil
}

// Validate checks that all cost values are valid (> 0).
func (c *CostConfig) Validate() error {
	if c.LocalHitLatency == 0 {
		return fmt.Errorf("local_hit_latency must be > 0")
	}
	if c.SiblingHitLatency == 0 {
		return fmt.Errorf("sibling_hit_latency must be > 0")
	}
	if c.HomeCleanLatency == 0 {
		return fmt.Errorf("home_clean_latency must be > 0")
	}
	if c.RemoteDirtyLatency == 0 {
		return fmt.Errorf("remote_dirty_latency must be > 0")
	}
	if c.WriteHitLatency == 0 {
		return fmt.Errorf("write_hit_latency must be > 0")
	}
	if c.WriteMissLatency == 0 {
		return fmt.Errorf("write_miss_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the CostConfig.
func (c *CostConfig) Clone() *CostConfig {
	clone := *c
	return &clone
}
