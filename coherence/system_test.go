package coherence_test

import (
	"bytes"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dashsim/coherence"
	"github.com/sarchlab/dashsim/timing/latency"
)

// Handy addresses on the default geometry. All are home to node 0 and
// memory is seeded with address+5.
//
//	addrA = 1 (line 1, tag 0, value 6)
//	addrC = 2 (line 2, tag 0, value 7)
//	addrD = 5 (line 1, tag 1, value 10) -- conflicts with addrA
const (
	addrA = 1
	addrC = 2
	addrD = 5
)

func load(node, proc, addr, reg int) coherence.Request {
	return coherence.NewRequest(coherence.Load, node, proc, addr, reg)
}

func store(node, proc, addr, reg int) coherence.Request {
	return coherence.NewRequest(coherence.Store, node, proc, addr, reg)
}

var _ = Describe("System", func() {
	var sys *coherence.System

	mustApply := func(req coherence.Request) coherence.Outcome {
		outcome, err := sys.Apply(req)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return outcome
	}

	BeforeEach(func() {
		var err error
		sys, err = coherence.New(coherence.DefaultGeometry())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("initial state", func() {
		It("should seed memory with address plus five", func() {
			snap := sys.Snapshot()

			Expect(snap.Nodes[0].Memory[0]).To(Equal(uint32(5)))
			Expect(snap.Nodes[0].Memory[15]).To(Equal(uint32(20)))
			Expect(snap.Nodes[3].Memory[15]).To(Equal(uint32(68)))
		})

		It("should start with everything uncached and the clock at zero", func() {
			snap := sys.Snapshot()

			Expect(snap.Clock).To(BeZero())
			checkInvariants(snap)
			for _, node := range snap.Nodes {
				for _, entry := range node.Directory {
					Expect(entry.Status).To(Equal(coherence.Uncached))
				}
			}
		})
	})

	Describe("load resolution", func() {
		It("should serve a cold load from home memory at cost 100", func() {
			outcome := mustApply(load(1, 0, addrA, 0))

			Expect(outcome.Case).To(Equal(latency.LoadHomeClean))
			Expect(outcome.Cycles).To(Equal(uint64(100)))
			Expect(outcome.Value).To(Equal(uint32(6)))

			entry := sys.Snapshot().Nodes[0].Directory[addrA]
			Expect(entry.Status).To(Equal(coherence.Shared))
			Expect(entry.Present).To(Equal([]int{1}))
		})

		It("should serve a repeated load from the local cache at cost 1", func() {
			mustApply(load(1, 0, addrA, 0))
			outcome := mustApply(load(1, 0, addrA, 1))

			Expect(outcome.Case).To(Equal(latency.LoadLocalHit))
			Expect(outcome.Cycles).To(Equal(uint64(1)))
			Expect(outcome.Value).To(Equal(uint32(6)))
		})

		It("should serve a sibling's copy at cost 30 without touching the directory", func() {
			mustApply(load(2, 0, addrA, 0))
			before := sys.Snapshot().Nodes[0].Directory[addrA]

			outcome := mustApply(load(2, 1, addrA, 0))

			Expect(outcome.Case).To(Equal(latency.LoadSiblingHit))
			Expect(outcome.Cycles).To(Equal(uint64(30)))
			Expect(outcome.Value).To(Equal(uint32(6)))

			after := sys.Snapshot().Nodes[0].Directory[addrA]
			Expect(after).To(Equal(before))
		})
	})

	Describe("read-after-write", func() {
		It("should return the stored value from the local cache at cost 1", func() {
			mustApply(load(0, 0, addrA, 0))  // cache addrA
			mustApply(load(0, 0, addrC, 1))  // reg1 = 7
			hit := mustApply(store(0, 0, addrA, 1))
			Expect(hit.Case).To(Equal(latency.StoreHit))
			Expect(hit.Cycles).To(Equal(uint64(1)))

			outcome := mustApply(load(0, 0, addrA, 0))

			Expect(outcome.Case).To(Equal(latency.LoadLocalHit))
			Expect(outcome.Cycles).To(Equal(uint64(1)))
			Expect(outcome.Value).To(Equal(uint32(7)))
		})
	})

	Describe("store hit", func() {
		It("should take exclusive ownership and invalidate other copies", func() {
			mustApply(load(0, 0, addrA, 0))
			mustApply(load(1, 0, addrA, 0)) // node 1 shares the line
			mustApply(load(0, 0, addrC, 1)) // reg1 = 7

			mustApply(store(0, 0, addrA, 1))

			snap := sys.Snapshot()
			entry := snap.Nodes[0].Directory[addrA]
			Expect(entry.Status).To(Equal(coherence.Dirty))
			Expect(entry.Present).To(Equal([]int{0}))
			Expect(snap.Nodes[1].Caches[0][1].Valid).To(BeFalse())
			checkInvariants(snap)
		})
	})

	Describe("store miss", func() {
		It("should update home memory without allocating a line", func() {
			outcome := mustApply(store(2, 0, addrA, 0)) // reg 0 is still 0

			Expect(outcome.Case).To(Equal(latency.StoreMiss))
			Expect(outcome.Cycles).To(Equal(uint64(100)))

			snap := sys.Snapshot()
			Expect(snap.Nodes[0].Memory[addrA]).To(Equal(uint32(0)))
			Expect(snap.Nodes[2].Caches[0][1].Valid).To(BeFalse())
		})

		It("should invalidate every shared copy", func() {
			mustApply(load(0, 0, addrA, 0))
			mustApply(load(1, 0, addrA, 0))

			mustApply(store(2, 0, addrA, 0))

			snap := sys.Snapshot()
			Expect(snap.Nodes[0].Caches[0][1].Valid).To(BeFalse())
			Expect(snap.Nodes[1].Caches[0][1].Valid).To(BeFalse())
			Expect(snap.Nodes[0].Directory[addrA].Present).To(BeEmpty())
			checkInvariants(snap)

			// Both sharers must re-fetch from home.
			first := mustApply(load(0, 0, addrA, 0))
			second := mustApply(load(1, 0, addrA, 0))
			Expect(first.Case).To(Equal(latency.LoadHomeClean))
			Expect(first.Value).To(Equal(uint32(0)))
			Expect(second.Case).To(Equal(latency.LoadHomeClean))
		})

		It("should downgrade a dirty entry to shared", func() {
			mustApply(load(0, 0, addrA, 0))
			mustApply(load(0, 0, addrC, 1))
			mustApply(store(0, 0, addrA, 1)) // node 0 owns addrA dirty

			mustApply(store(3, 1, addrA, 0))

			snap := sys.Snapshot()
			entry := snap.Nodes[0].Directory[addrA]
			Expect(entry.Status).To(Equal(coherence.Shared))
			Expect(entry.Present).To(BeEmpty())
			Expect(snap.Nodes[0].Caches[0][1].Valid).To(BeFalse())
			checkInvariants(snap)
		})
	})

	Describe("dirty migration", func() {
		BeforeEach(func() {
			mustApply(load(0, 0, addrA, 0))
			mustApply(load(0, 0, addrC, 1))  // reg1 = 7
			mustApply(store(0, 0, addrA, 1)) // addrA dirty at node 0, value 7
		})

		It("should pull the line out of the dirty owner at cost 135", func() {
			outcome := mustApply(load(1, 0, addrA, 0))

			Expect(outcome.Case).To(Equal(latency.LoadRemoteDirty))
			Expect(outcome.Cycles).To(Equal(uint64(135)))
			Expect(outcome.Value).To(Equal(uint32(7)))

			snap := sys.Snapshot()
			entry := snap.Nodes[0].Directory[addrA]
			Expect(entry.Status).To(Equal(coherence.Shared))
			Expect(entry.Present).To(Equal([]int{1}))

			// Home memory was written back; the old owner is invalid.
			Expect(snap.Nodes[0].Memory[addrA]).To(Equal(uint32(7)))
			Expect(snap.Nodes[0].Caches[0][1].Valid).To(BeFalse())
			Expect(snap.Nodes[1].Caches[0][1].Valid).To(BeTrue())
			checkInvariants(snap)
		})

		It("should invalidate both owner copies when the sibling shares the line", func() {
			sibling := mustApply(load(0, 1, addrA, 0))
			Expect(sibling.Case).To(Equal(latency.LoadSiblingHit))

			outcome := mustApply(load(1, 0, addrA, 0))

			Expect(outcome.Value).To(Equal(uint32(7)))
			snap := sys.Snapshot()
			Expect(snap.Nodes[0].Caches[0][1].Valid).To(BeFalse())
			Expect(snap.Nodes[0].Caches[1][1].Valid).To(BeFalse())
			Expect(snap.Nodes[0].Directory[addrA].Present).To(Equal([]int{1}))
			checkInvariants(snap)
		})
	})

	Describe("eviction write-back", func() {
		BeforeEach(func() {
			mustApply(load(0, 0, addrA, 0))
			mustApply(load(0, 0, addrC, 1))  // reg1 = 7
			mustApply(store(0, 0, addrA, 1)) // addrA dirty at node 0, value 7
		})

		It("should flush a dirty victim to home memory", func() {
			// addrD conflicts with addrA in line 1.
			outcome := mustApply(load(0, 0, addrD, 0))
			Expect(outcome.Case).To(Equal(latency.LoadHomeClean))

			snap := sys.Snapshot()
			Expect(snap.Nodes[0].Memory[addrA]).To(Equal(uint32(7)))
			Expect(snap.Nodes[0].Directory[addrA].Status).To(Equal(coherence.Uncached))
			Expect(snap.Nodes[0].Directory[addrA].Present).To(BeEmpty())
			checkInvariants(snap)

			reload := mustApply(load(0, 0, addrA, 0))
			Expect(reload.Value).To(Equal(uint32(7)))
		})

		It("should keep the entry shared when the sibling still holds the line", func() {
			mustApply(load(0, 1, addrA, 0)) // sibling copy under the dirty entry

			mustApply(load(0, 0, addrD, 0)) // evicts proc 0's dirty copy

			snap := sys.Snapshot()
			entry := snap.Nodes[0].Directory[addrA]
			Expect(snap.Nodes[0].Memory[addrA]).To(Equal(uint32(7)))
			Expect(entry.Status).To(Equal(coherence.Shared))
			Expect(entry.Present).To(Equal([]int{0}))
			Expect(snap.Nodes[0].Caches[1][1].Valid).To(BeTrue())
			checkInvariants(snap)
		})
	})

	Describe("cross-node visibility", func() {
		It("should make a store visible to a load from another node", func() {
			mustApply(load(0, 0, addrC, 0)) // reg0 = 7
			mustApply(store(0, 0, addrA, 0))

			outcome := mustApply(load(1, 1, addrA, 0))

			Expect(outcome.Value).To(Equal(uint32(7)))
			entry := sys.Snapshot().Nodes[0].Directory[addrA]
			Expect(entry.Present).To(ContainElement(1))
		})
	})

	Describe("request validation", func() {
		rejected := func(req coherence.Request) {
			before := sys.Snapshot()
			clock := sys.Clock()

			_, err := sys.Apply(req)

			ExpectWithOffset(1, err).To(HaveOccurred())
			var malformed *coherence.MalformedRequestError
			ExpectWithOffset(1, err).To(BeAssignableToTypeOf(malformed))
			ExpectWithOffset(1, sys.Snapshot()).To(Equal(before))
			ExpectWithOffset(1, sys.Clock()).To(Equal(clock))
		}

		It("should reject an out-of-range address", func() {
			rejected(load(0, 0, 64, 0))
			rejected(load(0, 0, -1, 0))
		})

		It("should reject an out-of-range node", func() {
			rejected(load(4, 0, 0, 0))
		})

		It("should reject an out-of-range processor", func() {
			rejected(load(0, 2, 0, 0))
		})

		It("should reject an out-of-range register", func() {
			rejected(load(0, 0, 0, 2))
		})

		It("should reject an unknown op", func() {
			req := coherence.NewRequest(coherence.Op(9), 0, 0, 0, 0)
			rejected(req)
		})
	})

	Describe("clock accounting", func() {
		It("should accumulate the cost of every case that fired", func() {
			mustApply(load(0, 0, addrA, 0))  // 100
			mustApply(load(0, 1, addrA, 0))  // 30
			mustApply(load(0, 0, addrA, 1))  // 1
			mustApply(store(0, 0, addrA, 1)) // 1
			mustApply(store(1, 0, addrC, 0)) // 100

			Expect(sys.Clock()).To(Equal(uint64(232)))
		})

		It("should honor a custom cost table", func() {
			config := latency.DefaultCostConfig()
			config.HomeCleanLatency = 7

			var err error
			sys, err = coherence.New(
				coherence.DefaultGeometry(),
				coherence.WithCostTable(latency.NewTableWithConfig(config)),
			)
			Expect(err).NotTo(HaveOccurred())

			outcome := mustApply(load(0, 0, addrA, 0))
			Expect(outcome.Cycles).To(Equal(uint64(7)))
		})
	})

	Describe("invariant preservation", func() {
		It("should hold after every request of a mixed workload", func() {
			requests := []coherence.Request{
				load(0, 0, addrA, 0),
				load(0, 1, addrA, 0),
				load(1, 0, addrA, 1),
				store(0, 0, addrA, 0),
				load(2, 0, addrA, 0),
				load(0, 0, addrD, 0),
				store(3, 0, addrA, 0),
				load(1, 1, 17, 0),
				store(1, 1, 17, 0),
				load(1, 0, 17, 1),
				load(3, 0, 63, 0),
				store(2, 1, 63, 0),
				load(0, 0, addrA, 0),
			}

			for _, req := range requests {
				mustApply(req)
				checkInvariants(sys.Snapshot())
			}
		})
	})

	Describe("deterministic replay", func() {
		It("should reproduce state and clock bit for bit", func() {
			requests := []coherence.Request{
				load(0, 0, addrA, 0),
				load(0, 1, addrA, 0),
				store(0, 0, addrA, 0),
				load(1, 0, addrA, 0),
				store(2, 0, addrC, 1),
				load(3, 1, 63, 0),
			}

			run := func() coherence.Snapshot {
				s, err := coherence.New(coherence.DefaultGeometry())
				Expect(err).NotTo(HaveOccurred())
				for _, req := range requests {
					_, err := s.Apply(req)
					Expect(err).NotTo(HaveOccurred())
				}
				return s.Snapshot()
			}

			first := run()
			second := run()

			Expect(second).To(Equal(first))
		})

		It("should restore the initial state on Reset", func() {
			initial := sys.Snapshot()

			mustApply(load(0, 0, addrA, 0))
			mustApply(store(1, 0, addrC, 0))
			sys.Reset()

			Expect(sys.Snapshot()).To(Equal(initial))
			Expect(sys.Clock()).To(BeZero())
		})
	})

	Describe("tracing", func() {
		It("should log each request with its id and case", func() {
			buf := &bytes.Buffer{}
			var err error
			sys, err = coherence.New(
				coherence.DefaultGeometry(),
				coherence.WithTrace(buf),
			)
			Expect(err).NotTo(HaveOccurred())

			req := load(0, 0, addrA, 0)
			mustApply(req)

			Expect(buf.String()).To(ContainSubstring(req.ID))
			Expect(buf.String()).To(ContainSubstring("load home clean"))
		})
	})

	Describe("request ids", func() {
		It("should be unique", func() {
			a := load(0, 0, 0, 0)
			b := load(0, 0, 0, 0)

			Expect(a.ID).NotTo(BeEmpty())
			Expect(a.ID).NotTo(Equal(b.ID))
		})
	})
})

// checkInvariants asserts the directory invariants on a snapshot:
// Uncached entries name no sharers and no cache holds the line; Shared
// entries only name nodes whose valid copies match home memory; Dirty
// entries name exactly one owner that actually holds the line.
func checkInvariants(snap coherence.Snapshot) {
	geom := snap.Geometry

	for home, node := range snap.Nodes {
		for index, entry := range node.Directory {
			addr := home*geom.WordsPerNode + index
			line := addr % geom.LinesPerCache
			tag := uint32(addr / geom.LinesPerCache)

			holders := matchingLines(snap, line, tag)
			label := fmt.Sprintf("addr %d (%s)", addr, entry.Status)

			switch entry.Status {
			case coherence.Uncached:
				ExpectWithOffset(1, entry.Present).To(BeEmpty(), label)
				ExpectWithOffset(1, holders).To(BeEmpty(), label)

			case coherence.Shared:
				for holder := range holders {
					ExpectWithOffset(1, entry.Present).
						To(ContainElement(holder.node), label)
					ExpectWithOffset(1, holder.data).
						To(Equal(node.Memory[index]), label)
				}

			case coherence.Dirty:
				ExpectWithOffset(1, entry.Present).To(HaveLen(1), label)
				owner := entry.Present[0]
				ownerHolds := 0
				for holder := range holders {
					ExpectWithOffset(1, holder.node).To(Equal(owner), label)
					ownerHolds++
				}
				ExpectWithOffset(1, ownerHolds).
					To(BeNumerically(">=", 1), label)
			}
		}
	}
}

type lineHolder struct {
	node int
	proc int
	data uint32
}

// matchingLines finds every valid cache line in the system holding the
// given line/tag pair.
func matchingLines(snap coherence.Snapshot, line int, tag uint32) map[lineHolder]struct{} {
	holders := make(map[lineHolder]struct{})
	for n, node := range snap.Nodes {
		for p, cache := range node.Caches {
			state := cache[line]
			if state.Valid && state.Tag == tag {
				holders[lineHolder{node: n, proc: p, data: state.Data}] = struct{}{}
			}
		}
	}
	return holders
}
