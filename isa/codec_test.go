package isa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// byteStream is a Fetcher over a byte slice, reading zeros past the end.
type byteStream struct {
	data []byte
	pos  int
}

func (bs *byteStream) Fetch() (value byte) {
	if bs.pos < len(bs.data) {
		value = bs.data[bs.pos]
	}
	bs.pos++
	return
}

var operandSamples = []Operand{
	Reg(REG_EAX),
	Reg(REG_ESP),
	Imm(0),
	Imm(0xff),
	Abs(0x1234),
	Indirect(REG_ESI),
	Indexed(REG_EDI, -3),
	Indexed(REG_EBP, 127),
}

// sampleInstructions returns a set of instructions covering every opcode
// and every operand form the opcode accepts.
func sampleInstructions() (list []Instruction) {
	for _, op := range Opcodes() {
		info, _ := Lookup(op)
		switch info.Class {
		case CLASS_NONE:
			list = append(list, Instruction{Op: op})
		case CLASS_ADDRESS:
			list = append(list,
				Instruction{Op: op, Target: 0},
				Instruction{Op: op, Target: 0xbeef})
		case CLASS_ONE, CLASS_SHIFT:
			for n, arg := range operandSamples {
				if info.Writes && arg.Kind == KIND_IMM {
					continue
				}
				ins := Instruction{Op: op, Args: []Operand{arg}}
				if info.Class == CLASS_SHIFT {
					ins.Count = uint8(n & 7)
				}
				list = append(list, ins)
			}
		case CLASS_TWO:
			for _, dst := range operandSamples {
				if info.Writes && dst.Kind == KIND_IMM {
					continue
				}
				for _, src := range operandSamples {
					list = append(list, Instruction{Op: op, Args: []Operand{dst, src}})
				}
			}
		}
	}
	return
}

func TestEncodeLayout(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		ins  Instruction
		code []byte
	}){
		{"hlt", Instruction{Op: OP_HLT}, []byte{0xff}},
		{"ret", Instruction{Op: OP_RET}, []byte{0x33}},
		{"jmp", Instruction{Op: OP_JMP, Target: 0x1234}, []byte{0x20, 0x34, 0x12}},
		{"call", Instruction{Op: OP_CALL, Target: 0x0010}, []byte{0x32, 0x10, 0x00}},
		{"mov_reg_imm", Instruction{Op: OP_MOV, Args: []Operand{Reg(REG_EAX), Imm(72)}},
			[]byte{0x10, 0x04, 0x00, 72}},
		{"mov_abs_reg", Instruction{Op: OP_MOV, Args: []Operand{Abs(0x0010), Reg(REG_EAX)}},
			[]byte{0x10, 0x02, 0x00, 0x10, 0x00, 0x00}},
		{"mov_off_reg", Instruction{Op: OP_MOV, Args: []Operand{Indexed(REG_ESI, 1), Reg(REG_EAX)}},
			[]byte{0x10, 0x02, 0x02, 0x04, 0x01, 0x00}},
		{"add_reg_ind", Instruction{Op: OP_ADD, Args: []Operand{Reg(REG_EDX), Indirect(REG_EBX)}},
			[]byte{0x11, 0x08, 0x03, 0x01, 0x01}},
		{"inc_reg", Instruction{Op: OP_INC, Args: []Operand{Reg(REG_ESI)}},
			[]byte{0x13, 0x00, 0x04}},
		{"push_imm", Instruction{Op: OP_PUSH, Args: []Operand{Imm(5)}},
			[]byte{0x30, 0x01, 0x05}},
		{"shl_reg", Instruction{Op: OP_SHL, Args: []Operand{Reg(REG_EAX)}, Count: 1},
			[]byte{0x44, 0x00, 0x00, 0x01}},
		{"shr_mem", Instruction{Op: OP_SHR, Args: []Operand{Abs(0x0200)}, Count: 3},
			[]byte{0x45, 0x02, 0x00, 0x00, 0x02, 0x03}},
	}

	for _, entry := range table {
		assert.NoError(entry.ins.Validate(), entry.name)
		assert.Equal(entry.code, Encode(entry.ins), entry.name)
		assert.Equal(len(entry.code), entry.ins.Len(), entry.name)
	}
}

func TestEncodeLengthIgnoresValues(t *testing.T) {
	assert := assert.New(t)

	for _, op := range []Opcode{OP_JMP, OP_JZ, OP_JNZ, OP_CALL} {
		assert.Equal(Instruction{Op: op}.Len(), Instruction{Op: op, Target: 0xffff}.Len())
	}

	a := Instruction{Op: OP_MOV, Args: []Operand{Abs(0), Imm(0)}}
	b := Instruction{Op: OP_MOV, Args: []Operand{Abs(0xffff), Imm(0xff)}}
	assert.Equal(a.Len(), b.Len())
}

func TestDecodeRoundTrip(t *testing.T) {
	assert := assert.New(t)

	for _, ins := range sampleInstructions() {
		text := ins.String()
		assert.NoError(ins.Validate(), text)

		code := Encode(ins)
		in := &byteStream{data: code}
		got, err := Decode(in)
		assert.NoError(err, text)
		assert.Equal(len(code), in.pos, text)
		assert.Equal(text, got.String())
		assert.Equal(code, Encode(got), text)
	}
}

func TestDecodeErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name     string
		code     []byte
		consumed int
		err      error
	}){
		{"unknown", []byte{0x00}, 1, ErrOpcodeInvalid},
		{"unknown_high", []byte{0xfe, 0x00}, 1, ErrOpcodeInvalid},
		{"kind3_arg1", []byte{0x13, 0x03, 0x00}, 2, ErrOpcodeArg1},
		{"kind3_arg2", []byte{0x10, 0x0c, 0x00, 0x00}, 3, ErrOpcodeArg2},
		{"mem_mode", []byte{0x10, 0x02, 0x07, 0x00}, 3, ErrMemoryMode},
	}

	for _, entry := range table {
		in := &byteStream{data: entry.code}
		_, err := Decode(in)
		assert.ErrorIs(err, entry.err, entry.name)
		assert.True(errors.Is(err, ErrOpcode(0)), entry.name)
		assert.Equal(entry.consumed, in.pos, entry.name)
	}
}

func TestDecodeMasksFields(t *testing.T) {
	assert := assert.New(t)

	ins, err := Decode(&byteStream{data: []byte{0x13, 0x00, 0x0b}})
	assert.NoError(err)
	assert.Equal(REG_EDX, ins.Args[0].Reg)

	ins, err = Decode(&byteStream{data: []byte{0x44, 0x00, 0x00, 0x09}})
	assert.NoError(err)
	assert.Equal(uint8(1), ins.Count)
}
