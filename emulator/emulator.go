// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"fmt"
	"io"
	"iter"
	"maps"
	"math/rand/v2"
	"strings"

	"github.com/ezrec/x86lite/asm"
	"github.com/ezrec/x86lite/cpu"
	"github.com/ezrec/x86lite/dis"
	"github.com/ezrec/x86lite/internal"
	"github.com/ezrec/x86lite/isa"
)

const (
	PROGRAM_BASE = 0x0100 // Default load address.
	DUMP_WIDTH   = 16     // Bytes per hex dump row.
)

var _emulator_defines = map[string]string{
	"PROGRAM_BASE": fmt.Sprintf("0x%04x", PROGRAM_BASE),
}

// Emulator state. CPU + program listing + entropy source.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *asm.Program // Reference to the currently running program listing.

	Seed uint64 // Seed of the RND entropy source.
	pcg  *rand.PCG
}

// NewEmulator creates a new emulator, with RND seeded from seed.
func NewEmulator(seed uint64) (emu *Emulator) {
	pcg := rand.NewPCG(seed, ^seed)

	emu = &Emulator{
		Cpu:     cpu.NewCpu(rand.New(pcg)),
		Program: &asm.Program{Base: PROGRAM_BASE},
		Seed:    seed,
		pcg:     pcg,
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Assemble assembles a program, and resets the emulator to run it.
// On error the current program is unchanged.
func (emu *Emulator) Assemble(input io.Reader) (err error) {
	assembler := &asm.Assembler{Verbose: emu.Verbose, Origin: PROGRAM_BASE}
	for name, value := range emu.Defines() {
		assembler.Predefine(name, value)
	}

	prog, err := assembler.Parse(input)
	if err != nil {
		return
	}

	emu.Program = prog
	emu.Reset()

	return
}

// Reset the CPU and entropy source, and reload the program.
func (emu *Emulator) Reset() {
	emu.Cpu.Verbose = emu.Verbose
	emu.pcg.Seed(emu.Seed, ^emu.Seed)
	emu.Cpu.Reset()
	emu.Cpu.LoadProgram(emu.Program.Binary(), emu.Program.Base)
}

// Ticks returns the total instructions executed since a reset.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// Ip returns current instruction pointer.
func (emu *Emulator) Ip() int {
	return int(emu.Cpu.Ip)
}

// Code returns the current instruction, and false if the instruction
// pointer is not at the start of a program instruction.
func (emu *Emulator) Code() (ins isa.Instruction, ok bool) {
	for ip, code := range emu.Program.Instructions() {
		if emu.Cpu.Ip == ip {
			return code, true
		}
	}

	return
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.Ip)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single instruction of the emulator.
// Returns true once the CPU has halted.
func (emu *Emulator) Tick() (done bool) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	if !emu.Cpu.Running {
		return true
	}

	return !emu.Cpu.Step()
}

// Run runs until the CPU halts, or limit instructions have been
// executed. A limit of zero or less is unlimited.
func (emu *Emulator) Run(limit int) (ticks int, err error) {
	for limit <= 0 || ticks < limit {
		if emu.Tick() {
			return
		}
		ticks++
	}

	if emu.Cpu.Running {
		err = &ErrRuntime{LineNo: emu.LineNo(), Err: ErrTickLimit}
	}

	return
}

// Listing disassembles the loaded program.
func (emu *Emulator) Listing() []dis.Line {
	return dis.Disassemble(emu.Cpu.Memory[:], int(emu.Program.Base), emu.Cpu.ProgramEnd)
}

// HexDump formats memory from start to end, DUMP_WIDTH bytes per row.
func (emu *Emulator) HexDump(start, end int) string {
	var out strings.Builder

	data := emu.Cpu.Dump(start, end)
	start = max(start, 0)

	for row := 0; row < len(data); row += DUMP_WIDTH {
		var hex, ascii []string
		for n := range DUMP_WIDTH {
			if row+n >= len(data) {
				hex = append(hex, "  ")
				continue
			}
			value := data[row+n]
			hex = append(hex, fmt.Sprintf("%02x", value))
			if value >= 32 && value < 127 {
				ascii = append(ascii, string(rune(value)))
			} else {
				ascii = append(ascii, ".")
			}
		}
		fmt.Fprintf(&out, "%04x  %s  |%s|\n", start+row, strings.Join(hex, " "), strings.Join(ascii, ""))
	}

	return out.String()
}
