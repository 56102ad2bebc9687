// Package report formats final system state: every node's registers,
// caches, memory and directory in the bit-level layout of the reference
// machine's dump.
package report

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/fatih/color"

	"github.com/sarchlab/dashsim/coherence"
)

// Reporter writes system state dumps.
type Reporter struct {
	w        io.Writer
	useColor bool
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithColor enables or disables highlighting of valid cache lines and
// dirty directory entries.
func WithColor(enabled bool) Option {
	return func(r *Reporter) {
		r.useColor = enabled
	}
}

// New creates a reporter writing to w. Color is off by default.
func New(w io.Writer, opts ...Option) *Reporter {
	r := &Reporter{w: w}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const wordWidth = 32

// Print writes the full state dump for a snapshot.
func (r *Reporter) Print(snap coherence.Snapshot) {
	plain := func(a ...interface{}) string { return fmt.Sprint(a...) }
	green, red := plain, plain
	if r.useColor {
		green = color.New(color.FgGreen).SprintFunc()
		red = color.New(color.FgRed).SprintFunc()
	}

	geom := snap.Geometry
	tagWidth := fieldWidth(geom.TotalWords()/geom.LinesPerCache - 1)

	for n, node := range snap.Nodes {
		fmt.Fprintf(r.w, "\n----------------------------------------\n")
		fmt.Fprintf(r.w, "Node #%d\n", n)

		for p := range node.Registers {
			fmt.Fprintf(r.w, "\n-- Processor #%d --\n", p)
			for reg, value := range node.Registers[p] {
				fmt.Fprintf(r.w, "$s%d: %s\n", reg+1, formatBits(uint64(value), wordWidth))
			}

			fmt.Fprintln(r.w, "Cache #: V : Tag  : Data Contents")
			for i, line := range node.Caches[p] {
				row := fmt.Sprintf("Cache %d: %s : %s : %s",
					i,
					formatBits(boolBit(line.Valid), 1),
					formatBits(uint64(line.Tag), tagWidth),
					formatBits(uint64(line.Data), wordWidth))
				if line.Valid {
					row = green(row)
				}
				fmt.Fprintln(r.w, row)
			}
		}

		fmt.Fprintf(r.w, "\n-- Memory --\n")
		for i, word := range node.Memory {
			addr := n*geom.WordsPerNode + i
			fmt.Fprintf(r.w, "%-3d: %s\n", addr, formatBits(uint64(word), wordWidth))
		}

		fmt.Fprintf(r.w, "\n-- Directory --\n")
		for i, entry := range node.Directory {
			addr := n*geom.WordsPerNode + i
			row := fmt.Sprintf("%-3d: %s : %s",
				addr, statusBits(entry.Status), presenceBits(entry.Present, geom.Nodes))
			if entry.Status == coherence.Dirty {
				row = red(row)
			}
			fmt.Fprintln(r.w, row)
		}
	}
}

// PrintClock writes the final clock total.
func (r *Reporter) PrintClock(clock uint64) {
	fmt.Fprintf(r.w, "\n---------------\nTotal Clock Count: %d\n", clock)
}

// statusBits renders a directory status in the reference machine's two-bit
// encoding: 00 uncached, 01 shared, 11 dirty.
func statusBits(s coherence.Status) string {
	switch s {
	case coherence.Shared:
		return "01"
	case coherence.Dirty:
		return "11"
	default:
		return "00"
	}
}

// presenceBits renders the sharer set as one bit per node.
func presenceBits(present []int, nodes int) string {
	set := make([]byte, nodes)
	for i := range set {
		set[i] = '0'
	}
	for _, n := range present {
		if n >= 0 && n < nodes {
			set[n] = '1'
		}
	}
	return string(set)
}

func formatBits(v uint64, width int) string {
	return fmt.Sprintf("%0*b", width, v)
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// fieldWidth returns the number of bits needed to represent maxValue, with
// a floor of one bit.
func fieldWidth(maxValue int) int {
	if maxValue <= 0 {
		return 1
	}
	return bits.Len(uint(maxValue))
}
