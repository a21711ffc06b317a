package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/x86lite/isa"
)

func TestStack_Push(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(nil)
	cpu.Push(0x12)

	assert.Equal(uint16(STACK_TOP-1), cpu.Sp())
	assert.Equal(byte(0x12), cpu.Peek(STACK_TOP-1))
}

func TestStack_Pop(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(nil)
	cpu.Push(0x12)
	cpu.Push(0xab)

	assert.Equal(byte(0xab), cpu.Pop())
	assert.Equal(uint16(STACK_TOP-1), cpu.Sp())
	assert.Equal(byte(0x12), cpu.Pop())
	assert.Equal(uint16(STACK_TOP), cpu.Sp())
}

func TestStack_Wrap(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(nil)
	cpu.SetRegister(isa.REG_ESP, 0)

	cpu.Push(0x77)
	assert.Equal(uint16(0xffff), cpu.Sp())
	assert.Equal(byte(0x77), cpu.Peek(0xffff))

	assert.Equal(byte(0x77), cpu.Pop())
	assert.Equal(uint16(0), cpu.Sp())
}

func TestStack_Discipline(t *testing.T) {
	assert := assert.New(t)

	for count := range 32 {
		cpu := NewCpu(nil)

		var code []byte
		for n := range count {
			code = append(code, isa.Encode(isa.Instruction{Op: isa.OP_PUSH, Args: []isa.Operand{isa.Imm(uint8(n * 3))}})...)
		}
		for n := range count {
			code = append(code, isa.Encode(isa.Instruction{Op: isa.OP_POP, Args: []isa.Operand{isa.Abs(uint16(0x100 + n))}})...)
		}
		code = append(code, byte(isa.OP_HLT))

		cpu.LoadProgram(code, 0)
		sp := cpu.Sp()
		steps := run(t, cpu, 100)

		assert.Equal(2*count, steps)
		assert.Equal(sp, cpu.Sp(), "count %d", count)
		for n := range count {
			assert.Equal(byte((count-1-n)*3), cpu.Peek(uint16(0x100+n)), "count %d pop %d", count, n)
		}
	}
}

func TestStack_PopFlagsUnaffected(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(nil)
	cpu.Flags = Flags{Zero: true, Sign: true}
	cpu.Execute(isa.Instruction{Op: isa.OP_PUSH, Args: []isa.Operand{isa.Imm(1)}})
	cpu.Execute(isa.Instruction{Op: isa.OP_POP, Args: []isa.Operand{isa.Reg(isa.REG_EAX)}})

	assert.Equal(Flags{Zero: true, Sign: true}, cpu.Flags)
	assert.Equal(uint16(1), cpu.GetRegister(isa.REG_EAX))
}
