package isa

import (
	"errors"
)

// Fetcher supplies an instruction stream one byte at a time.
type Fetcher interface {
	Fetch() byte
}

// Encode returns the machine code of an instruction.
//
// The length of the result only depends on the opcode and the operand
// kinds and memory modes, never on operand values.
func Encode(ins Instruction) (code []byte) {
	code = append(code, byte(ins.Op))

	info, ok := Lookup(ins.Op)
	if !ok {
		return
	}

	switch info.Class {
	case CLASS_ADDRESS:
		code = append(code, byte(ins.Target), byte(ins.Target>>8))
	case CLASS_ONE, CLASS_SHIFT, CLASS_TWO:
		var mode byte
		for n, arg := range ins.Args {
			mode |= byte(arg.Kind&3) << (2 * n)
		}
		code = append(code, mode)
		for _, arg := range ins.Args {
			code = arg.AppendBytes(code)
		}
		if info.Class == CLASS_SHIFT {
			code = append(code, ins.Count)
		}
	}

	return
}

// Decode reads one instruction from the stream.
//
// On error the stream has been advanced past the bytes examined, which
// may be fewer than an encoder would have written.
func Decode(in Fetcher) (ins Instruction, err error) {
	ins.Op = Opcode(in.Fetch())

	defer func() {
		if err != nil {
			err = errors.Join(ErrOpcode(ins.Op), err)
		}
	}()

	info, ok := Lookup(ins.Op)
	if !ok {
		err = ErrOpcodeInvalid
		return
	}

	switch info.Class {
	case CLASS_ADDRESS:
		ins.Target = fetch16(in)
	case CLASS_ONE, CLASS_SHIFT, CLASS_TWO:
		mode := in.Fetch()
		argErr := [2]error{ErrOpcodeArg1, ErrOpcodeArg2}
		ins.Args = make([]Operand, info.Class.Operands())
		for n := range ins.Args {
			ins.Args[n], err = decodeOperand(in, Kind((mode>>(2*n))&3))
			if err != nil {
				err = errors.Join(argErr[n], err)
				return
			}
		}
		if info.Class == CLASS_SHIFT {
			ins.Count = in.Fetch() & 7
		}
	}

	return
}

func fetch16(in Fetcher) uint16 {
	lo := in.Fetch()
	hi := in.Fetch()
	return uint16(hi)<<8 | uint16(lo)
}

// decodeOperand reads the bytes of one operand of the given kind.
func decodeOperand(in Fetcher, kind Kind) (op Operand, err error) {
	op.Kind = kind

	switch kind {
	case KIND_REG:
		op.Reg = Register(in.Fetch() & 7)
	case KIND_IMM:
		op.Imm = in.Fetch()
	case KIND_MEM:
		op.Mode = MemMode(in.Fetch())
		switch op.Mode {
		case MEM_ABS:
			op.Addr = fetch16(in)
		case MEM_REG:
			op.Reg = Register(in.Fetch() & 7)
		case MEM_OFFSET:
			op.Reg = Register(in.Fetch() & 7)
			op.Offset = int8(in.Fetch())
		default:
			err = ErrMemoryMode
		}
	default:
		err = ErrOperandKind
	}

	return
}
