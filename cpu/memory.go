package cpu

const (
	MEMORY_SIZE = 0x10000 // Bytes of addressable memory.
	STACK_TOP   = 0xff00  // Initial stack pointer.
)

// Peek returns the memory byte at an address.
func (cpu *Cpu) Peek(addr uint16) byte {
	return cpu.Memory[addr]
}

// Poke sets the memory byte at an address.
func (cpu *Cpu) Poke(addr uint16, value byte) {
	cpu.Memory[addr] = value
}

// Dump returns a copy of the memory range [start, end), clamped to memory.
func (cpu *Cpu) Dump(start, end int) (data []byte) {
	start = max(start, 0)
	end = min(end, MEMORY_SIZE)
	if start >= end {
		return
	}

	data = make([]byte, end-start)
	copy(data, cpu.Memory[start:end])
	return
}
