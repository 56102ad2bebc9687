// Package main provides the dashsim command line interface.
// dashsim replays a machine-code program against a simulated cc-NUMA
// machine and dumps the final state of every node.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/dashsim/coherence"
	"github.com/sarchlab/dashsim/insts"
	"github.com/sarchlab/dashsim/loader"
	"github.com/sarchlab/dashsim/report"
	"github.com/sarchlab/dashsim/timing/latency"
)

var (
	configPath = flag.String("config", "", "Path to cost configuration JSON file")
	verbose    = flag.Bool("v", false, "Trace every request to stderr")
	noColor    = flag.Bool("no-color", false, "Disable color in the state dump")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: dashsim [options] <program.txt>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	geom, err := coherence.GeometryFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading geometry: %v\n", err)
		os.Exit(1)
	}

	costs := latency.DefaultCostConfig()
	if *configPath != "" {
		costs, err = latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading cost config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := costs.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid cost config: %v\n", err)
		os.Exit(1)
	}

	opts := []coherence.Option{
		coherence.WithCostTable(latency.NewTableWithConfig(costs)),
	}
	if *verbose {
		opts = append(opts, coherence.WithTrace(os.Stderr))
	}

	sys, err := coherence.New(geom, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building system: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Loaded: %s (%d instructions)\n",
			programPath, len(prog.Insts))
	}

	for i, inst := range prog.Insts {
		req := requestFor(inst)
		if _, err := sys.Apply(req); err != nil {
			fmt.Fprintf(os.Stderr, "Instruction %d rejected: %v\n", i+1, err)
			os.Exit(1)
		}
	}

	reporter := report.New(os.Stdout, report.WithColor(!*noColor))
	reporter.Print(sys.Snapshot())
	reporter.PrintClock(sys.Clock())
}

func requestFor(inst *insts.Instruction) coherence.Request {
	op := coherence.Load
	if inst.Op == insts.OpSW {
		op = coherence.Store
	}
	return coherence.NewRequest(
		op, inst.Node, inst.Proc, inst.Address(), inst.Register())
}
