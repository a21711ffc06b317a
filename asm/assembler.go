// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/x86lite/isa"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// MACRO_DEPTH is the deepest permitted macro expansion.
const MACRO_DEPTH = 32

// Assembler is a two pass macro assembler for the x86-lite instruction set.
type Assembler struct {
	Verbose bool   // If set, verbosely logs the assembler actions.
	Origin  uint16 // Default load address.
	Base    uint16 // Load address of the program, Origin unless set by .org

	predefine map[string]string   // Predefines
	Label     map[string]int      // Map of jump labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	statements []statement // Pre-processed source lines.
	depth      int         // Macro expansion depth.
	expansion  int         // Count of macro expansions, for local labels.
	frames     []frame     // Macro invocations being expanded.
}

// frame is a macro invocation.
type frame struct {
	macro  string
	lineNo int
	line   string
}

// statement is a pre-processed line of source.
type statement struct {
	lineNo int
	line   string
	labels []string
	words  []string // Mnemonic, then operands.
	frames []frame  // Macro invocations, outermost first.
}

// wrap adds the statement and macro invocation context to an error.
func (stmt *statement) wrap(err error) error {
	err = &ErrSyntax{LineNo: stmt.lineNo, Line: stmt.line, Err: err}
	inner := stmt.lineNo
	for _, fr := range slices.Backward(stmt.frames) {
		err = &ErrMacro{Macro: fr.macro, Line: inner, Err: err}
		err = &ErrSyntax{LineNo: fr.lineNo, Line: fr.line, Err: err}
		inner = fr.lineNo
	}
	return err
}

// link is a label reference to be resolved in the second pass.
type link struct {
	arg   int // Operand index, or -1 for the jump target.
	label string
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

var (
	reCharacter  = regexp.MustCompile(`'\\?[^']'`)
	reExpression = regexp.MustCompile(`\$\([^\$]*\)`)
	reIdentifier = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\b`)
	reLabel      = regexp.MustCompile(`^[A-Za-z_.][A-Za-z0-9_.]*$`)
)

// valueOf returns the value of a simple numeric word.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	word = strings.TrimPrefix(word, "#")
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}

	value, err = strconv.ParseInt(word, 0, 64)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	return
}

// rangeOf returns the value of a numeric word within min..max.
func (asm *Assembler) rangeOf(word string, min, max int) (value int, err error) {
	v64, err := asm.valueOf(word)
	if err != nil {
		return
	}

	if v64 < int64(min) || v64 > int64(max) {
		err = &ErrRange{Word: word, Min: min, Max: max}
		return
	}

	value = int(v64)
	return
}

// isNumeric returns true if a word starts like a number.
func isNumeric(word string) bool {
	word = strings.TrimPrefix(word, "#")
	word = strings.TrimLeft(word, "+-")
	return len(word) > 0 && word[0] >= '0' && word[0] <= '9'
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var v64 int64
		v64, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = errors.Join(ErrParseExpression(expr), err)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// substitute replaces equate names in text with their values.
func (asm *Assembler) substitute(text string) string {
	return reIdentifier.ReplaceAllStringFunc(text, func(word string) string {
		equate, ok := asm.Equate[word]
		if ok {
			return equate
		}
		return word
	})
}

// parseLine pre-processes a single line into statements.
func (asm *Assembler) parseLine(line string, lineno int) (err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	source := line

	// Do 'x' evaluations
	line = reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "t":
				str = "\t"
			case "0":
				str = "\000"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	line = reExpression.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%d", value)
	})
	if err != nil {
		return
	}

	words := strings.Fields(line)
	if len(words) == 0 {
		return
	}

	switch strings.ToLower(words[0]) {
	case ".equ":
		// .equ CONST VALUE
		if len(words) != 3 || !reLabel.MatchString(words[1]) {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = asm.substitute(words[2])
		return
	case ".org":
		// .org ADDR
		if len(words) != 2 {
			err = ErrOrgSyntax
			return
		}
		for _, stmt := range asm.statements {
			if len(stmt.words) != 0 {
				err = ErrOrgPlacement
				return
			}
		}
		var base int
		base, err = asm.rangeOf(asm.substitute(words[1]), 0, 0xffff)
		if err != nil {
			return
		}
		asm.Base = uint16(base)
		return
	}

	words = strings.Fields(asm.substitute(line))

	var labels []string
	for len(words) > 0 && strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		if !reLabel.MatchString(label) {
			err = ErrLabelInvalid
			return
		}
		_, is_reg := isa.ParseRegister(label)
		if is_reg {
			err = ErrLabelInvalid
			return
		}
		labels = append(labels, label)
		words = words[1:]
	}

	if len(words) == 0 {
		asm.statements = append(asm.statements, asm.statement(lineno, source, labels, nil))
		return
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		if len(labels) > 0 {
			asm.statements = append(asm.statements, asm.statement(lineno, source, labels, nil))
		}

		args := splitOperands(strings.Join(words[1:], " "))
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}

		if asm.depth >= MACRO_DEPTH {
			err = ErrMacroRecursion
			return
		}

		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = args[n]
		}
		asm.depth++
		asm.expansion++
		prefix := fmt.Sprintf("%v_%v_", name, asm.expansion)
		asm.frames = append(asm.frames, frame{macro: name, lineNo: lineno, line: source})
		defer func() {
			asm.Equate = old_equate
			asm.depth--
			asm.frames = asm.frames[:len(asm.frames)-1]
		}()

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", prefix)
			err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		return
	}

	words = append([]string{words[0]}, splitOperands(strings.Join(words[1:], " "))...)
	asm.statements = append(asm.statements, asm.statement(lineno, source, labels, words))

	return
}

// statement creates a statement in the current macro context.
func (asm *Assembler) statement(lineno int, line string, labels []string, words []string) statement {
	return statement{
		lineNo: lineno,
		line:   line,
		labels: labels,
		words:  words,
		frames: slices.Clone(asm.frames),
	}
}

// splitOperands splits comma separated operands, removing white space.
func splitOperands(text string) (args []string) {
	if len(strings.TrimSpace(text)) == 0 {
		return
	}

	for _, arg := range strings.Split(text, ",") {
		args = append(args, strings.Join(strings.Fields(arg), ""))
	}

	return
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	var linking bool

	defer func() {
		if err != nil && !linking {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Base = asm.Origin
	asm.depth = 0
	asm.expansion = 0
	asm.frames = asm.frames[:0]
	asm.statements = asm.statements[:0]
	if asm.Label == nil {
		asm.Label = make(map[string]int, 16)
	}
	clear(asm.Label)
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		words := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		})

		// .macro NAME arg...
		if len(words) > 0 && strings.ToLower(words[0]) == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 || !reLabel.MatchString(words[1]) {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && strings.ToLower(words[0]) == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	linking = true
	prog, err = asm.assemble()

	return
}

// assemble runs both passes over the pre-processed statements.
func (asm *Assembler) assemble() (prog *Program, err error) {
	var stmt statement

	defer func() {
		if err != nil {
			err = stmt.wrap(err)
		}
	}()

	opcodes := make([]Opcode, 0, len(asm.statements))
	sources := make([]statement, 0, len(asm.statements))
	links := make([][]link, 0, len(asm.statements))

	// Pass 1: sizing and label addresses.
	ip := int(asm.Base)
	for _, stmt = range asm.statements {
		for _, label := range stmt.labels {
			_, ok := asm.Label[label]
			if ok {
				err = ErrLabelDuplicate
				return
			}
			asm.Label[label] = ip
			if asm.Verbose {
				log.Printf("%v: label %v = 0x%04x\n", stmt.lineNo, label, ip)
			}
		}

		if len(stmt.words) == 0 {
			continue
		}

		op := Opcode{
			LineNo: stmt.lineNo,
			Ip:     ip,
			Words:  stmt.words,
		}

		var link_list []link
		if strings.ToUpper(stmt.words[0]) == "DB" {
			op.Code, err = asm.parseData(stmt.words[1:])
			op.Data = true
		} else {
			op.Instruction, link_list, err = asm.parseInstruction(stmt.words)
			if err == nil {
				err = op.Instruction.Validate()
			}
			op.Code = isa.Encode(op.Instruction)
		}
		if err != nil {
			return
		}

		ip += len(op.Code)
		if ip > 0x10000 {
			err = ErrProgramSize
			return
		}

		opcodes = append(opcodes, op)
		sources = append(sources, stmt)
		links = append(links, link_list)
	}

	// Pass 2: label resolution and emission.
	for n := range opcodes {
		op := &opcodes[n]
		stmt = sources[n]

		if op.Data {
			continue
		}

		ins := op.Instruction
		ins.Args = slices.Clone(ins.Args)
		for _, ln := range links[n] {
			addr, ok := asm.Label[ln.label]
			if !ok {
				err = ErrLabelMissing(ln.label)
				return
			}
			switch {
			case ln.arg < 0:
				ins.Target = uint16(addr)
			case ins.Args[ln.arg].Kind == isa.KIND_IMM:
				ins.Args[ln.arg].Imm = uint8(addr)
			default:
				ins.Args[ln.arg].Addr = uint16(addr)
			}
		}

		code := isa.Encode(ins)
		if len(code) != len(op.Code) {
			err = ErrLengthMismatch
			return
		}

		op.Instruction = ins
		op.Code = code
	}

	prog = &Program{
		Base:    asm.Base,
		Opcodes: opcodes,
		Label:   maps.Clone(asm.Label),
	}

	return
}

// parseData parses the bytes of a DB statement.
func (asm *Assembler) parseData(words []string) (code []byte, err error) {
	if len(words) == 0 {
		err = ErrOperandMissing
		return
	}

	for _, word := range words {
		var value int
		value, err = asm.rangeOf(word, -128, 255)
		if err != nil {
			return
		}
		code = append(code, byte(value))
	}

	return
}

// parseInstruction parses a mnemonic and its operands.
func (asm *Assembler) parseInstruction(words []string) (ins isa.Instruction, links []link, err error) {
	mnemonic := words[0]
	args := words[1:]

	defer func() {
		if err != nil {
			err = &ErrMnemonic{Mnemonic: mnemonic, Err: err}
		}
	}()

	op, ok := isa.LookupMnemonic(mnemonic)
	if !ok {
		err = ErrInstructionInvalid
		return
	}
	info, _ := isa.Lookup(op)
	ins.Op = op

	for _, arg := range args {
		if len(arg) == 0 {
			err = ErrOperandMissing
			return
		}
	}

	want := info.Class.Operands()
	switch info.Class {
	case isa.CLASS_ADDRESS:
		want = 1
	case isa.CLASS_SHIFT:
		if len(args) == 1 {
			args = append(args, "1")
		}
		want = 2
	}
	if len(args) != want {
		err = isa.ErrOperandCount
		return
	}

	if info.Class == isa.CLASS_ADDRESS {
		var label string
		ins.Target, label, err = asm.parseTarget(args[0])
		if err != nil {
			return
		}
		if len(label) > 0 {
			links = append(links, link{arg: -1, label: label})
		}
		return
	}

	if info.Class == isa.CLASS_SHIFT {
		var count int
		count, err = asm.rangeOf(args[1], 0, 7)
		if err != nil {
			err = errors.Join(isa.ErrOpcodeArg2, isa.ErrShiftCount, err)
			return
		}
		ins.Count = uint8(count)
		args = args[:1]
	}

	argErr := [2]error{isa.ErrOpcodeArg1, isa.ErrOpcodeArg2}
	for n, arg := range args {
		var operand isa.Operand
		var label string
		operand, label, err = asm.parseOperand(arg, n == 0 && info.Writes)
		if err != nil {
			err = errors.Join(argErr[n], err)
			return
		}
		if len(label) > 0 {
			links = append(links, link{arg: n, label: label})
		}
		ins.Args = append(ins.Args, operand)
	}

	return
}

// parseTarget parses a jump target.
func (asm *Assembler) parseTarget(word string) (target uint16, label string, err error) {
	if strings.HasPrefix(word, "[") && strings.HasSuffix(word, "]") {
		word = word[1 : len(word)-1]
	}

	if isNumeric(word) {
		var value int
		value, err = asm.rangeOf(word, 0, 0xffff)
		target = uint16(value)
		return
	}

	if !reLabel.MatchString(word) {
		err = ErrParseValue(word)
		return
	}

	label = word
	return
}

// parseOperand parses a data operand.
// A destination that is not a register or memory reference names an unknown register.
func (asm *Assembler) parseOperand(word string, dest bool) (operand isa.Operand, label string, err error) {
	reg, ok := isa.ParseRegister(word)
	if ok {
		operand = isa.Reg(reg)
		return
	}

	if strings.HasPrefix(word, "[") {
		if !strings.HasSuffix(word, "]") {
			err = ErrParseMemory(word)
			return
		}
		return asm.parseMemory(word[1 : len(word)-1])
	}

	if isNumeric(word) {
		var value int
		value, err = asm.rangeOf(word, -128, 255)
		operand = isa.Imm(uint8(value))
		return
	}

	if dest {
		err = ErrRegister(word)
		return
	}

	name := strings.TrimPrefix(word, "#")
	if !reLabel.MatchString(name) {
		err = ErrParseValue(word)
		return
	}

	operand = isa.Imm(0)
	label = name
	return
}

// parseMemory parses the text inside a memory reference bracket.
func (asm *Assembler) parseMemory(inner string) (operand isa.Operand, label string, err error) {
	if len(inner) == 0 {
		err = ErrParseMemory("[]")
		return
	}

	if isNumeric(inner) {
		var value int
		value, err = asm.rangeOf(inner, 0, 0xffff)
		operand = isa.Abs(uint16(value))
		return
	}

	reg, ok := isa.ParseRegister(inner)
	if ok {
		operand = isa.Indirect(reg)
		return
	}

	split := strings.IndexAny(inner, "+-")
	if split < 0 {
		if !reLabel.MatchString(inner) {
			err = ErrParseMemory(inner)
			return
		}
		operand = isa.Abs(0)
		label = inner
		return
	}

	base := inner[:split]
	reg, ok = isa.ParseRegister(base)
	if !ok {
		if reLabel.MatchString(base) {
			err = ErrRegister(base)
		} else {
			err = ErrParseMemory(inner)
		}
		return
	}

	offset, err := asm.rangeOf(inner[split:], -128, 127)
	if err != nil {
		return
	}

	operand = isa.Indexed(reg, int8(offset))
	return
}
