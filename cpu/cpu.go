// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"math/rand/v2"
	"strings"

	"github.com/ezrec/x86lite/isa"
)

// Random is the entropy source of the RND instruction.
type Random interface {
	Uint32() uint32
}

var _cpu_defines = map[string]string{
	"MEM_SIZE":  fmt.Sprintf("0x%x", MEMORY_SIZE),
	"STACK_TOP": fmt.Sprintf("0x%x", STACK_TOP),
}

// Flags is the condition flag set.
type Flags struct {
	Zero     bool
	Sign     bool
	Carry    bool // Reserved, never set.
	Overflow bool // Reserved, never set.
}

// Cpu is the simulation context for the x86lite processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Ip       uint16                     // Current instruction pointer.
	Register [isa.REGISTER_COUNT]uint16 // Register bank. Only ESP uses the upper byte.
	Flags    Flags                      // Condition flags.
	Memory   [MEMORY_SIZE]byte          // Main memory.

	Running    bool  // Cleared when the CPU halts.
	Halt       error // Why the CPU last halted, nil while running.
	ProgramEnd int   // End of the loaded program, for display only.
	Ticks      int   // Instructions executed since reset.

	rng     Random
	wrapped bool // Ip wrapped to zero during this fetch.
	overrun bool // Bytes were fetched after Ip wrapped.
}

// NewCpu creates a new CPU drawing RND values from rng.
// If rng is nil, a randomly seeded generator is used.
func NewCpu(rng Random) (cpu *Cpu) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	cpu = &Cpu{
		rng: rng,
	}

	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reset the CPU state.
// - Clears the registers, flags and memory.
// - Sets the stack pointer to STACK_TOP.
// - Zeros statistics counters.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	clear(cpu.Memory[:])
	cpu.Register[isa.REG_ESP] = STACK_TOP
	cpu.Ip = 0
	cpu.Flags = Flags{}
	cpu.Running = false
	cpu.Halt = nil
	cpu.ProgramEnd = 0
	cpu.Ticks = 0
}

// LoadProgram clears memory, copies code to base, and points the
// instruction pointer at it.
func (cpu *Cpu) LoadProgram(code []byte, base uint16) {
	clear(cpu.Memory[:])

	n := copy(cpu.Memory[base:], code)
	if n < len(code) {
		copy(cpu.Memory[:], code[n:])
	}

	cpu.Ip = base
	cpu.ProgramEnd = int(base) + len(code)
	cpu.Running = true
	cpu.Halt = nil

	if cpu.Verbose {
		log.Printf("cpu: load %d bytes at 0x%04x", len(code), base)
	}
}

// GetRegister returns the value of a register.
func (cpu *Cpu) GetRegister(reg isa.Register) uint16 {
	return cpu.Register[reg&7]
}

// SetRegister sets a register, truncating to 8 bits for all but ESP.
func (cpu *Cpu) SetRegister(reg isa.Register, value uint16) {
	reg &= 7
	if reg != isa.REG_ESP {
		value &= 0xff
	}
	cpu.Register[reg] = value
}

// String returns the register readout.
func (cpu *Cpu) String() string {
	var regs []string
	for n := range isa.REGISTER_COUNT {
		reg := isa.Register(n)
		if reg == isa.REG_ESP {
			regs = append(regs, fmt.Sprintf("%v=%04x", reg, cpu.Register[reg]))
		} else {
			regs = append(regs, fmt.Sprintf("%v=%d", reg, cpu.Register[reg]))
		}
	}
	regs = append(regs, fmt.Sprintf("EIP=%04x", cpu.Ip))

	bit := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}

	return fmt.Sprintf("%v  |  ZF=%d SF=%d", strings.Join(regs, " "), bit(cpu.Flags.Zero), bit(cpu.Flags.Sign))
}

// Fetch reads the byte at the instruction pointer and advances it.
func (cpu *Cpu) Fetch() (value byte) {
	if cpu.wrapped {
		cpu.overrun = true
	}

	value = cpu.Memory[cpu.Ip]
	cpu.Ip++
	if cpu.Ip == 0 {
		cpu.wrapped = true
	}

	return
}

// Step executes a single instruction.
// Returns false when the CPU halted, either on HLT or on an instruction
// that could not be decoded.
func (cpu *Cpu) Step() (ok bool) {
	ip := cpu.Ip
	cpu.wrapped = false
	cpu.overrun = false

	ins, err := isa.Decode(cpu)
	if err == nil && cpu.overrun {
		err = ErrIpOverrun
	}
	if err != nil {
		cpu.stop(ip, err)
		return false
	}

	if cpu.Verbose {
		log.Printf("%04x: %v", ip, ins)
	}

	if !cpu.Execute(ins) {
		cpu.stop(ip, ErrHalted)
		return false
	}

	cpu.Ticks++

	return true
}

// stop halts the CPU.
func (cpu *Cpu) stop(ip uint16, reason error) {
	if cpu.Verbose {
		log.Printf("%04x: %v", ip, reason)
	}

	cpu.Running = false
	cpu.Halt = reason
}

// Execute executes a single decoded instruction, whose bytes have already
// been fetched. Returns false if the instruction halts the CPU.
func (cpu *Cpu) Execute(ins isa.Instruction) bool {
	switch ins.Op {
	case isa.OP_HLT:
		return false
	case isa.OP_MOV:
		value := cpu.read(ins.Args[1])
		cpu.write(ins.Args[0], value)
		cpu.setFlags(byte(value))
	case isa.OP_ADD, isa.OP_SUB, isa.OP_AND, isa.OP_OR, isa.OP_XOR:
		a := byte(cpu.read(ins.Args[0]))
		b := byte(cpu.read(ins.Args[1]))
		result := doAlu(ins.Op, a, b)
		cpu.write(ins.Args[0], uint16(result))
		cpu.setFlags(result)
	case isa.OP_INC, isa.OP_DEC, isa.OP_NOT:
		a := byte(cpu.read(ins.Args[0]))
		result := doAlu(ins.Op, a, 1)
		cpu.write(ins.Args[0], uint16(result))
		cpu.setFlags(result)
	case isa.OP_SHL, isa.OP_SHR:
		a := byte(cpu.read(ins.Args[0]))
		result := doAlu(ins.Op, a, ins.Count&7)
		cpu.write(ins.Args[0], uint16(result))
		cpu.setFlags(result)
	case isa.OP_CMP:
		a := byte(cpu.read(ins.Args[0]))
		b := byte(cpu.read(ins.Args[1]))
		cpu.setFlags(a - b)
	case isa.OP_RND:
		value := byte(cpu.rng.Uint32())
		cpu.write(ins.Args[0], uint16(value))
		cpu.setFlags(value)
	case isa.OP_PUSH:
		cpu.Push(byte(cpu.read(ins.Args[0])))
	case isa.OP_POP:
		value := cpu.Pop()
		cpu.write(ins.Args[0], uint16(value))
	case isa.OP_JMP:
		cpu.Ip = ins.Target
	case isa.OP_JZ:
		if cpu.Flags.Zero {
			cpu.Ip = ins.Target
		}
	case isa.OP_JNZ:
		if !cpu.Flags.Zero {
			cpu.Ip = ins.Target
		}
	case isa.OP_CALL:
		// Only the low byte of the return address is kept.
		cpu.Push(byte(cpu.Ip))
		cpu.Ip = ins.Target
	case isa.OP_RET:
		cpu.Ip = uint16(cpu.Pop())
	default:
		return false
	}

	return true
}

// setFlags recomputes the flags from a result.
func (cpu *Cpu) setFlags(result byte) {
	cpu.Flags = Flags{
		Zero: result == 0,
		Sign: (result & 0x80) != 0,
	}
}

// address returns the effective address of a memory operand.
func (cpu *Cpu) address(op isa.Operand) uint16 {
	switch op.Mode {
	case isa.MEM_REG:
		return cpu.GetRegister(op.Reg)
	case isa.MEM_OFFSET:
		return cpu.GetRegister(op.Reg) + uint16(int16(op.Offset))
	}
	return op.Addr
}

// read returns the value of an operand.
func (cpu *Cpu) read(op isa.Operand) uint16 {
	switch op.Kind {
	case isa.KIND_REG:
		return cpu.GetRegister(op.Reg)
	case isa.KIND_IMM:
		return uint16(op.Imm)
	case isa.KIND_MEM:
		return uint16(cpu.Memory[cpu.address(op)])
	}
	return 0
}

// write stores a value into a destination operand.
// Immediate destinations are silently dropped.
func (cpu *Cpu) write(op isa.Operand, value uint16) {
	switch op.Kind {
	case isa.KIND_REG:
		cpu.SetRegister(op.Reg, value)
	case isa.KIND_MEM:
		cpu.Memory[cpu.address(op)] = byte(value)
	}
}

// doAlu performs the requested ALU action, and returns the output value.
func doAlu(op isa.Opcode, input byte, value byte) (output byte) {
	switch op {
	case isa.OP_ADD, isa.OP_INC:
		output = input + value
	case isa.OP_SUB, isa.OP_DEC:
		output = input - value
	case isa.OP_AND:
		output = input & value
	case isa.OP_OR:
		output = input | value
	case isa.OP_XOR:
		output = input ^ value
	case isa.OP_NOT:
		output = ^input
	case isa.OP_SHL:
		output = input << value
	case isa.OP_SHR:
		output = input >> value
	}

	return
}
