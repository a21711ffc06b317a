// Package isa is the binary contract shared by the x86lite assembler,
// disassembler and CPU.
//
// Every instruction starts with a one byte opcode. Opcodes with operands
// follow it with a mode byte holding the operand kinds in adjacent bit
// pairs (first operand in bits 0-1, second in bits 2-3), and then the raw
// bytes of each operand in order. Jumps and calls carry a little-endian
// 16-bit target address instead.
//
// Encode and Decode are the only encoder and decoder of that layout; the
// assembler sizes and emits with Encode, while the CPU and the disassembler
// both read through Decode, so instruction lengths cannot drift apart.
package isa
