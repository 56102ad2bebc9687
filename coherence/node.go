package coherence

// Node is one SMP node: a memory partition with its directory, plus one
// cache and one register file per local processor. Nodes are peers; any
// request may touch any node's state through the engine.
type Node struct {
	Memory    *Memory
	Directory *Directory
	Caches    []*Cache
	Regs      []*RegFile
}

func newNode(geom Geometry) *Node {
	n := &Node{
		Memory:    NewMemory(geom.WordsPerNode),
		Directory: NewDirectory(geom.WordsPerNode, geom.Nodes),
		Caches:    make([]*Cache, geom.ProcsPerNode),
		Regs:      make([]*RegFile, geom.ProcsPerNode),
	}
	for p := 0; p < geom.ProcsPerNode; p++ {
		n.Caches[p] = NewCache(geom.LinesPerCache)
		n.Regs[p] = NewRegFile(geom.RegsPerProc)
	}
	return n
}
