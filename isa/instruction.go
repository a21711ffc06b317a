package isa

import (
	"errors"
	"fmt"
	"strings"
)

// Instruction is a single decoded instruction.
type Instruction struct {
	Op     Opcode
	Args   []Operand
	Count  uint8  // Shift count of CLASS_SHIFT.
	Target uint16 // Jump target of CLASS_ADDRESS.
}

// Len returns the encoded length of the instruction.
func (ins Instruction) Len() int {
	return len(Encode(ins))
}

// Validate checks that the instruction can be encoded and is meaningful to
// execute.
func (ins Instruction) Validate() (err error) {
	info, ok := Lookup(ins.Op)
	if !ok {
		return ErrOpcode(ins.Op)
	}

	if len(ins.Args) != info.Class.Operands() {
		return ErrOperandCount
	}

	argErr := [2]error{ErrOpcodeArg1, ErrOpcodeArg2}
	for n, arg := range ins.Args {
		err = arg.validate()
		if err != nil {
			return errors.Join(argErr[n], err)
		}
	}

	if info.Writes && ins.Args[0].Kind == KIND_IMM {
		return errors.Join(ErrOpcodeArg1, ErrDestinationInvalid)
	}

	if info.Class == CLASS_SHIFT && ins.Count > 7 {
		return ErrShiftCount
	}

	return
}

// String returns the assembly text of the instruction.
func (ins Instruction) String() string {
	info, ok := Lookup(ins.Op)
	if !ok {
		return fmt.Sprintf("DB 0x%02x", byte(ins.Op))
	}

	var args []string
	for _, arg := range ins.Args {
		args = append(args, arg.String())
	}

	switch info.Class {
	case CLASS_ADDRESS:
		args = append(args, fmt.Sprintf("0x%04x", ins.Target))
	case CLASS_SHIFT:
		args = append(args, fmt.Sprintf("%d", ins.Count))
	}

	if len(args) == 0 {
		return info.Mnemonic
	}

	return info.Mnemonic + " " + strings.Join(args, ", ")
}
