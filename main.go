// Package main provides the entry point for dashsim.
// dashsim simulates the directory-based cache-coherence protocol of a
// DASH-style cc-NUMA machine.
//
// For the full CLI, use: go run ./cmd/dashsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("dashsim - DASH cc-NUMA cache coherence simulator")
	fmt.Println("")
	fmt.Println("Usage: dashsim [options] <program.txt>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to cost configuration JSON file")
	fmt.Println("  -v         Trace every request to stderr")
	fmt.Println("  -no-color  Disable color in the state dump")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/dashsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/dashsim' instead.")
	}
}
