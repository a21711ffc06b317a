package isa

import (
	"errors"

	"github.com/ezrec/x86lite/translate"
)

var f = translate.From

var (
	// Instruction decode errors
	ErrOpcodeInvalid = errors.New(f("opcode invalid"))
	ErrOperandKind   = errors.New(f("operand kind invalid"))
	ErrMemoryMode    = errors.New(f("memory mode invalid"))
	ErrOpcodeArg1    = errors.New(f("arg1"))
	ErrOpcodeArg2    = errors.New(f("arg2"))

	// Instruction validation errors
	ErrOperandCount       = errors.New(f("operand count"))
	ErrDestinationInvalid = errors.New(f("destination not writable"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrShiftCount         = errors.New(f("shift count out of range"))
)

type ErrOpcode Opcode

func (eo ErrOpcode) Error() string {
	return f("bad opcode 0x%02x", byte(eo))
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}
