package isa

import (
	"fmt"
	"strings"
)

// Register is a register index, as encoded in operand bytes.
type Register int

//go:generate go tool stringer -linecomment -type=Register
const (
	REG_EAX = Register(0) // EAX
	REG_EBX = Register(1) // EBX
	REG_ECX = Register(2) // ECX
	REG_EDX = Register(3) // EDX
	REG_ESI = Register(4) // ESI
	REG_EDI = Register(5) // EDI
	REG_EBP = Register(6) // EBP
	REG_ESP = Register(7) // ESP
)

const REGISTER_COUNT = 8 // Number of addressable registers.

// ParseRegister returns the register for a name, ignoring case.
func ParseRegister(name string) (reg Register, ok bool) {
	name = strings.ToUpper(name)
	for n := range REGISTER_COUNT {
		if Register(n).String() == name {
			return Register(n), true
		}
	}
	return
}

// Kind is the operand kind tag stored in the mode byte.
type Kind int

//go:generate go tool stringer -linecomment -type=Kind
const (
	KIND_REG = Kind(0) // reg
	KIND_IMM = Kind(1) // imm
	KIND_MEM = Kind(2) // mem
)

// MemMode is the sub-mode byte leading a memory operand.
type MemMode int

//go:generate go tool stringer -linecomment -type=MemMode
const (
	MEM_ABS    = MemMode(0) // abs
	MEM_REG    = MemMode(1) // reg
	MEM_OFFSET = MemMode(2) // off
)

// Operand is a decoded instruction operand.
type Operand struct {
	Kind   Kind
	Reg    Register // KIND_REG, and the base of MEM_REG and MEM_OFFSET.
	Imm    uint8    // KIND_IMM
	Mode   MemMode  // KIND_MEM
	Addr   uint16   // MEM_ABS
	Offset int8     // MEM_OFFSET
}

// Reg returns a register operand.
func Reg(reg Register) Operand {
	return Operand{Kind: KIND_REG, Reg: reg}
}

// Imm returns an immediate operand.
func Imm(value uint8) Operand {
	return Operand{Kind: KIND_IMM, Imm: value}
}

// Abs returns an absolute memory operand.
func Abs(addr uint16) Operand {
	return Operand{Kind: KIND_MEM, Mode: MEM_ABS, Addr: addr}
}

// Indirect returns a register-indirect memory operand.
func Indirect(reg Register) Operand {
	return Operand{Kind: KIND_MEM, Mode: MEM_REG, Reg: reg}
}

// Indexed returns a register plus offset memory operand.
func Indexed(reg Register, offset int8) Operand {
	return Operand{Kind: KIND_MEM, Mode: MEM_OFFSET, Reg: reg, Offset: offset}
}

// AppendBytes appends the encoded operand bytes, not including the kind tag.
func (op Operand) AppendBytes(code []byte) []byte {
	switch op.Kind {
	case KIND_REG:
		code = append(code, byte(op.Reg))
	case KIND_IMM:
		code = append(code, op.Imm)
	case KIND_MEM:
		code = append(code, byte(op.Mode))
		switch op.Mode {
		case MEM_ABS:
			code = append(code, byte(op.Addr), byte(op.Addr>>8))
		case MEM_REG:
			code = append(code, byte(op.Reg))
		case MEM_OFFSET:
			code = append(code, byte(op.Reg), byte(op.Offset))
		}
	}
	return code
}

// Len returns the number of bytes of the encoded operand.
func (op Operand) Len() int {
	return len(op.AppendBytes(nil))
}

// validate checks the operand fields are encodable.
func (op Operand) validate() error {
	switch op.Kind {
	case KIND_REG:
	case KIND_IMM:
		return nil
	case KIND_MEM:
		switch op.Mode {
		case MEM_ABS:
			return nil
		case MEM_REG, MEM_OFFSET:
		default:
			return ErrMemoryMode
		}
	default:
		return ErrOperandKind
	}
	if op.Reg < 0 || op.Reg >= REGISTER_COUNT {
		return ErrRegisterInvalid
	}
	return nil
}

// String returns the assembly text of the operand.
func (op Operand) String() string {
	switch op.Kind {
	case KIND_REG:
		return op.Reg.String()
	case KIND_IMM:
		return fmt.Sprintf("#%d", op.Imm)
	case KIND_MEM:
		switch op.Mode {
		case MEM_ABS:
			return fmt.Sprintf("[0x%04x]", op.Addr)
		case MEM_REG:
			return fmt.Sprintf("[%v]", op.Reg)
		case MEM_OFFSET:
			return fmt.Sprintf("[%v%+d]", op.Reg, op.Offset)
		}
	}
	return "?"
}
