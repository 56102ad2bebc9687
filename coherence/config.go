package coherence

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Geometry describes the machine shape: node count, processors per node,
// and the sizes of each node's cache and memory partition.
type Geometry struct {
	// Nodes is the number of SMP nodes in the system.
	Nodes int `json:"nodes"`

	// ProcsPerNode is the number of scalar processors per node.
	ProcsPerNode int `json:"procs_per_node"`

	// LinesPerCache is the number of direct-mapped lines in each
	// per-processor cache. Each line holds one word.
	LinesPerCache int `json:"lines_per_cache"`

	// WordsPerNode is the size of each node's memory partition.
	WordsPerNode int `json:"words_per_node"`

	// RegsPerProc is the number of word-sized registers per processor.
	RegsPerProc int `json:"regs_per_proc"`
}

// DefaultGeometry returns the reference machine: 4 nodes, 2 processors per
// node, 4-line caches, 16 words of memory per node, 2 registers per
// processor.
func DefaultGeometry() Geometry {
	return Geometry{
		Nodes:         4,
		ProcsPerNode:  2,
		LinesPerCache: 4,
		WordsPerNode:  16,
		RegsPerProc:   2,
	}
}

// TotalWords returns the size of the global address space in words.
func (g Geometry) TotalWords() int {
	return g.Nodes * g.WordsPerNode
}

// Validate checks that every dimension is positive.
func (g Geometry) Validate() error {
	if g.Nodes <= 0 {
		return fmt.Errorf("nodes must be > 0, got %d", g.Nodes)
	}
	if g.ProcsPerNode <= 0 {
		return fmt.Errorf("procs_per_node must be > 0, got %d", g.ProcsPerNode)
	}
	if g.LinesPerCache <= 0 {
		return fmt.Errorf("lines_per_cache must be > 0, got %d", g.LinesPerCache)
	}
	if g.WordsPerNode <= 0 {
		return fmt.Errorf("words_per_node must be > 0, got %d", g.WordsPerNode)
	}
	if g.RegsPerProc <= 0 {
		return fmt.Errorf("regs_per_proc must be > 0, got %d", g.RegsPerProc)
	}
	return nil
}

// Environment variable names recognized by GeometryFromEnv.
const (
	EnvNodes         = "DASHSIM_NODES"
	EnvProcsPerNode  = "DASHSIM_PROCS_PER_NODE"
	EnvLinesPerCache = "DASHSIM_LINES_PER_CACHE"
	EnvWordsPerNode  = "DASHSIM_WORDS_PER_NODE"
	EnvRegsPerProc   = "DASHSIM_REGS_PER_PROC"
)

// GeometryFromEnv builds a Geometry from DASHSIM_* environment variables,
// reading a .env file first when one is present in the working directory.
// Unset variables keep their defaults.
func GeometryFromEnv() (Geometry, error) {
	// A missing .env file is not an error; the environment still applies.
	_ = godotenv.Load()

	g := DefaultGeometry()

	fields := []struct {
		key string
		dst *int
	}{
		{EnvNodes, &g.Nodes},
		{EnvProcsPerNode, &g.ProcsPerNode},
		{EnvLinesPerCache, &g.LinesPerCache},
		{EnvWordsPerNode, &g.WordsPerNode},
		{EnvRegsPerProc, &g.RegsPerProc},
	}
	for _, f := range fields {
		if err := envInt(f.key, f.dst); err != nil {
			return Geometry{}, err
		}
	}

	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
