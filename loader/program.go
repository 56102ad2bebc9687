// Package loader reads dashsim machine-code programs.
package loader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/dashsim/insts"
)

// Program is a decoded instruction sequence.
type Program struct {
	// Path is the file the program was loaded from.
	Path string

	// Insts are the decoded instructions in program order.
	Insts []*insts.Instruction
}

// Load reads and decodes the program at path. Blank lines are skipped; any
// undecodable line fails the whole load.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program: %w", err)
	}
	defer f.Close()

	prog := &Program{Path: path}
	decoder := insts.NewDecoder()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		inst, err := decoder.Decode(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		prog.Insts = append(prog.Insts, inst)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	return prog, nil
}
