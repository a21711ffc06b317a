package cpu

import (
	"github.com/ezrec/x86lite/isa"
)

// Push pre-decrements the stack pointer, then stores a byte.
func (cpu *Cpu) Push(value byte) {
	sp := cpu.Sp() - 1
	cpu.Register[isa.REG_ESP] = sp
	cpu.Memory[sp] = value
}

// Pop loads a byte, then post-increments the stack pointer.
func (cpu *Cpu) Pop() (value byte) {
	sp := cpu.Sp()
	value = cpu.Memory[sp]
	cpu.Register[isa.REG_ESP] = sp + 1
	return
}

// Sp returns the stack pointer.
func (cpu *Cpu) Sp() uint16 {
	return cpu.Register[isa.REG_ESP]
}
