// Package cpu implements the x86lite virtual processor.
//
// The CPU has eight register slots (EAX, EBX, ECX, EDX, ESI, EDI, EBP and
// ESP), a 16-bit instruction pointer, zero and sign flags, and 64KiB of
// byte addressed memory. EAX through EBP hold 8-bit values; ESP is the
// 16-bit stack pointer, and the stack grows down from STACK_TOP.
//
// Instructions are fetched and decoded through the isa package, the same
// decoder the disassembler uses. The CPU never faults: an undecodable
// instruction halts it, and all address arithmetic wraps at 64KiB.
package cpu
