package isa

import (
	"fmt"
	"strings"
)

// Opcode is the first byte of every instruction.
type Opcode byte

const (
	OP_MOV  = Opcode(0x10)
	OP_ADD  = Opcode(0x11)
	OP_SUB  = Opcode(0x12)
	OP_INC  = Opcode(0x13)
	OP_DEC  = Opcode(0x14)
	OP_CMP  = Opcode(0x15)
	OP_JMP  = Opcode(0x20)
	OP_JZ   = Opcode(0x21)
	OP_JNZ  = Opcode(0x22)
	OP_PUSH = Opcode(0x30)
	OP_POP  = Opcode(0x31)
	OP_CALL = Opcode(0x32)
	OP_RET  = Opcode(0x33)
	OP_AND  = Opcode(0x40)
	OP_OR   = Opcode(0x41)
	OP_XOR  = Opcode(0x42)
	OP_NOT  = Opcode(0x43)
	OP_SHL  = Opcode(0x44)
	OP_SHR  = Opcode(0x45)
	OP_RND  = Opcode(0x50)
	OP_HLT  = Opcode(0xff)
)

// Class is the operand layout class of an opcode.
type Class int

//go:generate go tool stringer -linecomment -type=Class
const (
	CLASS_NONE    = Class(0) // none
	CLASS_ONE     = Class(1) // one
	CLASS_SHIFT   = Class(2) // shift
	CLASS_TWO     = Class(3) // two
	CLASS_ADDRESS = Class(4) // address
)

// Operands returns the number of mode-byte operands of the class.
// CLASS_ADDRESS has none; its target is not a tagged operand.
func (class Class) Operands() int {
	switch class {
	case CLASS_ONE, CLASS_SHIFT:
		return 1
	case CLASS_TWO:
		return 2
	}
	return 0
}

// OpcodeInfo describes an opcode.
type OpcodeInfo struct {
	Mnemonic string
	Class    Class
	Writes   bool // The first operand is a destination.
}

// opcodeTable is the authoritative instruction set.
var opcodeTable = map[Opcode]OpcodeInfo{
	OP_MOV:  {"MOV", CLASS_TWO, true},
	OP_ADD:  {"ADD", CLASS_TWO, true},
	OP_SUB:  {"SUB", CLASS_TWO, true},
	OP_INC:  {"INC", CLASS_ONE, true},
	OP_DEC:  {"DEC", CLASS_ONE, true},
	OP_CMP:  {"CMP", CLASS_TWO, false},
	OP_JMP:  {"JMP", CLASS_ADDRESS, false},
	OP_JZ:   {"JZ", CLASS_ADDRESS, false},
	OP_JNZ:  {"JNZ", CLASS_ADDRESS, false},
	OP_PUSH: {"PUSH", CLASS_ONE, false},
	OP_POP:  {"POP", CLASS_ONE, true},
	OP_CALL: {"CALL", CLASS_ADDRESS, false},
	OP_RET:  {"RET", CLASS_NONE, false},
	OP_AND:  {"AND", CLASS_TWO, true},
	OP_OR:   {"OR", CLASS_TWO, true},
	OP_XOR:  {"XOR", CLASS_TWO, true},
	OP_NOT:  {"NOT", CLASS_ONE, true},
	OP_SHL:  {"SHL", CLASS_SHIFT, true},
	OP_SHR:  {"SHR", CLASS_SHIFT, true},
	OP_RND:  {"RND", CLASS_ONE, true},
	OP_HLT:  {"HLT", CLASS_NONE, false},
}

var mnemonicTable = func() map[string]Opcode {
	table := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		table[info.Mnemonic] = op
	}
	return table
}()

// Lookup returns the description of an opcode.
func Lookup(op Opcode) (info OpcodeInfo, ok bool) {
	info, ok = opcodeTable[op]
	return
}

// LookupMnemonic returns the opcode for a mnemonic, ignoring case.
func LookupMnemonic(name string) (op Opcode, ok bool) {
	op, ok = mnemonicTable[strings.ToUpper(name)]
	return
}

// Opcodes returns every defined opcode.
func Opcodes() (ops []Opcode) {
	for op := range 256 {
		if _, ok := opcodeTable[Opcode(op)]; ok {
			ops = append(ops, Opcode(op))
		}
	}
	return
}

// String returns the mnemonic, or the hex value of an undefined opcode.
func (op Opcode) String() string {
	info, ok := opcodeTable[op]
	if !ok {
		return fmt.Sprintf("0x%02x", byte(op))
	}
	return info.Mnemonic
}
