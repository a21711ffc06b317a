// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ezrec/x86lite/cpu"
	"github.com/ezrec/x86lite/dis"
	"github.com/ezrec/x86lite/emulator"
	"github.com/ezrec/x86lite/samples"
)

const (
	DUMP_START = 0x0000 // Hex dump range.
	DUMP_END   = 0x0200
)

func main() {
	var compile string
	var demo string
	var output string
	var disasm bool
	var hexdump bool
	var limit int
	var seed uint64
	var interactive bool
	var verbose bool

	flag.StringVar(&compile, "c", "", ".asm file to assemble")
	flag.StringVar(&demo, "demo", "", "Demo program to assemble: "+strings.Join(samples.Names(), ", "))
	flag.StringVar(&output, "o", "", "Write the assembled binary to a file")
	flag.BoolVar(&disasm, "d", false, "Print the disassembly before running")
	flag.BoolVar(&hexdump, "x", false, "Print a hex dump after running")
	flag.IntVar(&limit, "n", 10000, "Instruction limit, 0 for none")
	flag.Uint64Var(&seed, "seed", 1, "RND seed")
	flag.BoolVar(&interactive, "i", false, "Interactive step mode")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("x86lite: ")

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	var name string
	var input io.Reader

	switch {
	case len(compile) != 0 && len(demo) != 0:
		log.Fatalf("-c and -demo are exclusive")
	case len(compile) != 0:
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()
		name = compile
		input = inf
	default:
		if len(demo) == 0 {
			demo = "hello"
		}
		text, err := samples.Source(demo)
		if err != nil {
			log.Fatalf("%v", err)
		}
		name = demo
		input = strings.NewReader(text)
	}

	emu := emulator.NewEmulator(seed)
	emu.Verbose = verbose

	err := emu.Assemble(input)
	if err != nil {
		log.Fatalf("%v: %v", name, err)
	}

	if len(output) != 0 {
		err = os.WriteFile(output, emu.Program.Binary(), 0o644)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
	}

	if disasm {
		for _, line := range emu.Listing() {
			fmt.Println(line)
		}
	}

	if interactive {
		err = stepper(emu, limit)
	} else {
		_, err = emu.Run(limit)
	}
	if err != nil {
		log.Printf("%v: %v", name, err)
	}

	fmt.Println(emu.Cpu)
	if emu.Cpu.Halt != nil && !errors.Is(emu.Cpu.Halt, cpu.ErrHalted) {
		log.Printf("%v: halted at 0x%04x: %v", name, emu.Ip(), emu.Cpu.Halt)
	}

	if hexdump {
		fmt.Print(emu.HexDump(DUMP_START, DUMP_END))
	}
}

// show prints the listing with the current instruction marked.
func show(emu *emulator.Emulator, status error) {
	lines := emu.Listing()
	current := dis.Find(lines, uint16(emu.Ip()))

	fmt.Print("\033[H\033[2J")
	for n, line := range lines {
		mark := "  "
		if n == current {
			mark = "=>"
		}
		fmt.Printf("%s %v\r\n", mark, line)
	}
	fmt.Printf("\r\n%v\r\n", emu.Cpu)
	fmt.Printf("ticks %d, line %d\r\n", emu.Ticks(), emu.LineNo())
	if !emu.Cpu.Running {
		fmt.Printf("halted: %v\r\n", emu.Cpu.Halt)
	}
	if status != nil {
		fmt.Printf("%v\r\n", status)
	}
	fmt.Print("[s]tep [r]un rese[x] [q]uit\r\n")
}

// press applies one key to the emulator.
// A run that reaches the limit reports it in status and keeps the session.
func press(emu *emulator.Emulator, key byte, limit int) (quit bool, status error) {
	switch key {
	case 's', ' ':
		emu.Tick()
	case 'r':
		_, status = emu.Run(limit)
	case 'x':
		emu.Reset()
	case 'q', 3:
		quit = true
	}

	return
}

// stepper runs the emulator one keypress at a time.
func stepper(emu *emulator.Emulator, limit int) (err error) {
	enterRawTerm()
	defer exitRawTerm()

	var status error
	key := make([]byte, 1)
	for {
		show(emu, status)

		_, err = os.Stdin.Read(key)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return
		}

		var quit bool
		quit, status = press(emu, key[0], limit)
		if quit {
			return
		}
	}
}
