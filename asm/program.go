package asm

import (
	"iter"
	"slices"

	"github.com/ezrec/x86lite/isa"
)

// Program is an assembled program with its source listing.
type Program struct {
	Base    uint16         // Load address.
	Opcodes []Opcode       // Instructions in address order.
	Label   map[string]int // Label addresses.
}

// Opcode represents a line of assembled code with its source location and generated bytes.
type Opcode struct {
	LineNo      int
	Ip          int
	Words       []string
	Instruction isa.Instruction
	Code        []byte
	Data        bool // Raw bytes from DB, Instruction is unset.
}

type Debug struct {
	*Opcode
	Index int // Offset of the address into the opcode bytes.
}

// Debug finds the opcode covering an address.
// Debug.Opcode is nil if no opcode covers it.
func (prog *Program) Debug(ip uint16) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if int(ip) >= op.Ip && int(ip) < op.Ip+len(op.Code) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(ip) - op.Ip,
			}
			break
		}
	}

	return
}

// Binary returns the machine code to be loaded at Base.
func (prog *Program) Binary() (code []byte) {
	for _, op := range prog.Opcodes {
		code = append(code, op.Code...)
	}

	return
}

// End returns the address following the last instruction.
func (prog *Program) End() int {
	if len(prog.Opcodes) == 0 {
		return int(prog.Base)
	}

	last := prog.Opcodes[len(prog.Opcodes)-1]
	return last.Ip + len(last.Code)
}

// Instructions iterates over the program instructions by address, skipping data.
func (prog *Program) Instructions() iter.Seq2[uint16, isa.Instruction] {
	return func(yield func(ip uint16, ins isa.Instruction) bool) {
		for _, op := range prog.Opcodes {
			if op.Data {
				continue
			}
			if !yield(uint16(op.Ip), op.Instruction) {
				return
			}
		}
	}
}

// Labels returns the label names, sorted by address then name.
func (prog *Program) Labels() (names []string) {
	for name := range prog.Label {
		names = append(names, name)
	}

	slices.SortFunc(names, func(a, b string) int {
		if prog.Label[a] != prog.Label[b] {
			return prog.Label[a] - prog.Label[b]
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})

	return
}
