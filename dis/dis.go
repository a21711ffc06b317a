// Package dis renders x86lite machine code as assembly text.
//
// The listing reads memory through the same decoder as the CPU, so its
// addresses always line up with execution. Bytes that do not decode are
// shown as DB data, one byte at a time, and the listing never fails.
package dis

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ezrec/x86lite/isa"
)

// Line is one disassembled instruction.
type Line struct {
	Address uint16 // Address of the first byte.
	Bytes   []byte // Bytes consumed.
	Text    string // Assembly text.
}

// BYTES_WIDTH is the widest instruction, in bytes, for listing alignment.
const BYTES_WIDTH = 8

// String formats the line as address, raw bytes and text.
func (line Line) String() string {
	var hex []string
	for _, b := range line.Bytes {
		hex = append(hex, fmt.Sprintf("%02x", b))
	}
	return fmt.Sprintf("%04x: %-*s %s", line.Address, BYTES_WIDTH*3-1, strings.Join(hex, " "), line.Text)
}

// cursor fetches bytes from a memory slice.
type cursor struct {
	mem  []byte
	pc   int
	past bool // Set when a fetch ran off the end of mem.
}

func (cur *cursor) Fetch() (value byte) {
	if cur.pc >= len(cur.mem) {
		cur.past = true
		cur.pc++
		return
	}

	value = cur.mem[cur.pc]
	cur.pc++
	return
}

// data returns a one byte DB line.
func data(mem []byte, pc int) Line {
	return Line{
		Address: uint16(pc),
		Bytes:   []byte{mem[pc]},
		Text:    fmt.Sprintf("DB 0x%02x", mem[pc]),
	}
}

// Disassemble lists the instructions of mem from start up to end.
//
// The listing stops after a HLT instruction. The last instruction may
// extend past end, but never past the end of mem.
func Disassemble(mem []byte, start, end int) (lines []Line) {
	start = max(start, 0)
	end = min(end, len(mem))

	for pc := start; pc < end; {
		cur := &cursor{mem: mem, pc: pc}
		ins, err := isa.Decode(cur)
		if err != nil || cur.past {
			lines = append(lines, data(mem, pc))
			pc++
			continue
		}

		lines = append(lines, Line{
			Address: uint16(pc),
			Bytes:   slices.Clone(mem[pc:cur.pc]),
			Text:    ins.String(),
		})
		pc = cur.pc

		if ins.Op == isa.OP_HLT {
			break
		}
	}

	return
}

// Find returns the index of the line covering an address, or -1.
func Find(lines []Line, addr uint16) int {
	for n, line := range lines {
		if addr >= line.Address && int(addr) < int(line.Address)+len(line.Bytes) {
			return n
		}
	}
	return -1
}
