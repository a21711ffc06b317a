package emulator

import (
	"errors"
	"maps"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/x86lite/cpu"
	"github.com/ezrec/x86lite/isa"
	"github.com/ezrec/x86lite/samples"
)

func assemble(t *testing.T, emu *Emulator, program ...string) {
	err := emu.Assemble(strings.NewReader(strings.Join(program, "\n")))
	require.NoError(t, err)
}

func sample(t *testing.T, emu *Emulator, name string) {
	text, err := samples.Source(name)
	require.NoError(t, err)
	err = emu.Assemble(strings.NewReader(text))
	require.NoError(t, err)
}

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(0)

	assert.False(emu.Verbose)
	assert.NotNil(emu.Cpu)
	assert.NotNil(emu.Program)
	assert.Equal(uint16(cpu.STACK_TOP), emu.Cpu.Sp())

	defines := maps.Collect(emu.Defines())
	assert.Equal("0x0100", defines["PROGRAM_BASE"])
	assert.Equal("0x10000", defines["MEM_SIZE"])
	assert.Equal("0xff00", defines["STACK_TOP"])
}

func TestEmulatorSingle(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(0)
	program := []string{
		"MOV EAX, #72",
		"MOV [0x0010], EAX",
		"MOV EAX, #73",
		"MOV [0x0011], EAX",
		"HLT",
	}
	assemble(t, emu, program...)

	for _, op := range emu.Program.Opcodes {
		here := program[op.LineNo-1]
		assert.Equal(op.LineNo, emu.LineNo(), here)
		assert.Equal(op.Ip, emu.Ip(), here)

		ins, ok := emu.Code()
		assert.True(ok)
		assert.Equal(op.Instruction.Op, ins.Op, here)

		if ins.Op == isa.OP_HLT {
			break
		}
		assert.False(emu.Tick(), here)
	}

	assert.True(emu.Tick())
	assert.True(emu.Tick())
	assert.Equal(4, emu.Ticks())
	assert.Equal(byte(72), emu.Cpu.Peek(0x10))
	assert.Equal(byte(73), emu.Cpu.Peek(0x11))
	assert.ErrorIs(emu.Cpu.Halt, cpu.ErrHalted)
}

func TestEmulatorLoop(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(0)
	assemble(t, emu,
		"MOV ECX, #3",
		"loop: DEC ECX",
		"JNZ loop",
		"HLT",
	)

	ticks, err := emu.Run(0)
	assert.NoError(err)
	assert.Equal(7, ticks)
	assert.Equal(uint16(0), emu.Cpu.GetRegister(isa.REG_ECX))
	assert.True(emu.Cpu.Flags.Zero)
	assert.False(emu.Cpu.Running)
}

func TestEmulatorReset(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(0)
	sample(t, emu, "hello")

	_, err := emu.Run(100)
	assert.NoError(err)
	assert.Equal(byte(72), emu.Cpu.Peek(0x10))

	emu.Reset()
	assert.Equal(byte(0), emu.Cpu.Peek(0x10))
	assert.Equal(PROGRAM_BASE, emu.Ip())
	assert.Equal(0, emu.Ticks())
	assert.True(emu.Cpu.Running)
	assert.Equal(emu.Program.Binary(), emu.Cpu.Dump(PROGRAM_BASE, emu.Cpu.ProgramEnd))
}

func TestEmulatorSamples(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(0)

	sample(t, emu, "hello")
	_, err := emu.Run(100)
	assert.NoError(err)
	assert.Equal([]byte("HI"), emu.Cpu.Dump(0x10, 0x12))

	sample(t, emu, "fib")
	_, err = emu.Run(1000)
	assert.NoError(err)
	assert.Equal([]byte{0, 1, 1, 2, 3, 5, 8, 13, 21, 34}, emu.Cpu.Dump(0x30, 0x3a))
	assert.Equal(uint16(0x3a), emu.Cpu.GetRegister(isa.REG_ESI))

	sample(t, emu, "worm")
	ticks, err := emu.Run(1000)
	assert.Equal(1000, ticks)
	assert.ErrorIs(err, ErrTickLimit)
	var runtime *ErrRuntime
	assert.True(errors.As(err, &runtime))
	assert.NotZero(runtime.LineNo)
	assert.Equal([]byte("HI"), emu.Cpu.Dump(0x21, 0x23))
}

func TestEmulatorSeeded(t *testing.T) {
	assert := assert.New(t)

	run := func(emu *Emulator) []byte {
		_, err := emu.Run(8 * 7)
		assert.ErrorIs(err, ErrTickLimit)
		return emu.Cpu.Dump(0x20, 0x21)
	}

	one := NewEmulator(42)
	sample(t, one, "worm")
	two := NewEmulator(42)
	sample(t, two, "worm")

	first := run(one)
	assert.Equal(first, run(two))

	one.Reset()
	assert.Equal(first, run(one))
}

func TestEmulatorDefines(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(0)
	assemble(t, emu,
		"MOV EAX, #$(MEM_SIZE >> 12)",
		"MOV [STACK_TOP], EAX",
		"HLT",
	)

	_, err := emu.Run(10)
	assert.NoError(err)
	assert.Equal(byte(16), emu.Cpu.Peek(cpu.STACK_TOP))
}

func TestEmulatorAssembleError(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(0)
	sample(t, emu, "hello")
	prog := emu.Program

	err := emu.Assemble(strings.NewReader("HLT\nJMP nowhere\n"))
	assert.Error(err)
	assert.Same(prog, emu.Program)
}

func TestEmulatorHaltReason(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(0)
	assemble(t, emu, "INC EAX", "DB 0x01", "HLT")

	ticks, err := emu.Run(10)
	assert.NoError(err)
	assert.Equal(1, ticks)
	assert.ErrorIs(emu.Cpu.Halt, isa.ErrOpcode(0x01))
	assert.Equal(PROGRAM_BASE+4, emu.Ip())
	assert.Equal(3, emu.LineNo())

	emu.Cpu.Ip = PROGRAM_BASE + 1
	_, ok := emu.Code()
	assert.False(ok)
	assert.Equal(1, emu.LineNo())
}

func TestEmulatorListing(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(0)
	assemble(t, emu,
		".org 0x200",
		"MOV EAX, #72",
		"loop: JMP loop",
	)

	lines := emu.Listing()
	assert.Equal(2, len(lines))
	assert.Equal(uint16(0x200), lines[0].Address)
	assert.Equal("MOV EAX, #72", lines[0].Text)
	assert.Equal("JMP 0x0204", lines[1].Text)
	assert.Equal(0x200, emu.Ip())
}

func TestEmulatorHexDump(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(0)
	sample(t, emu, "hello")
	_, err := emu.Run(100)
	assert.NoError(err)

	dump := emu.HexDump(0x10, 0x30)
	rows := strings.Split(strings.TrimSuffix(dump, "\n"), "\n")
	assert.Equal(2, len(rows))
	assert.Equal("0010  48 49 00 00 00 00 00 00 00 00 00 00 00 00 00 00  |HI..............|", rows[0])
	assert.True(strings.HasPrefix(rows[1], "0020  00 00"))

	dump = emu.HexDump(0xfffe, 0x10010)
	assert.Equal("fffe  00 00                                            |..|\n", dump)

	assert.Equal("", emu.HexDump(0x20, 0x10))
}
