// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package assembler

import (
	"bufio"
	"io"
	"math"
	"strconv"
)

// assembly carries the state threaded through both of Assemble's
// passes: the label table being built up as lines are encoded, the
// forward references that can't be resolved until the whole file has
// been seen, and the running program counter.
type assembly struct {
	labels    map[string]uint16
	labelRefs []labelRef
	fillRefs  []fillRef
	program   uint32
	result    []uint16
	errs      []error
	symtable  *SymTable
	lastWord  uint16
}

// Assemble tokenizes and encodes LC-3 assembly source line by line,
// resolving label references in a second, lightweight pass once the
// whole program has been read. origin is the operand of the .ORIG
// directive. On success result holds the words from origin up to the
// last word assembled (result[0] is the word at origin); when errs is
// non-empty it is the full 64K scratch image, indexed by absolute
// address. symtable, if non-nil, is filled in with a source-line
// cross-reference suitable for encoding/gob.
func Assemble(input io.ReadSeeker, symtable *SymTable) (origin uint16, result []uint16, errs []error) {
	asm := &assembly{
		labels:   make(map[string]uint16),
		result:   make([]uint16, 1<<16),
		errs:     make([]error, 0),
		symtable: symtable,
	}

	var originSet bool
	var lx lineLexer
	var lineByte int64
	lineNo := 1

	scanner := bufio.NewScanner(input)

	for scanner.Scan() {
		line := scanner.Text()
		errsBefore := len(asm.errs)

		tokens, lineErrs := lx.tokenize(line, lineNo, lineByte)
		asm.errs = append(asm.errs, lineErrs...)

		lineNo++
		lineByte += int64(len(line) + 1)

		if len(tokens) == 0 {
			continue
		}

		if len(asm.errs) > errsBefore {
			continue
		}

		if done := asm.assembleLine(tokens, &originSet, &origin); done {
			break
		}

		if asm.program >= math.MaxUint16 {
			asm.errs = append(asm.errs, &OversizedBinaryError{})
			return origin, asm.result, asm.errs
		}
	}

	asm.resolveLabels()
	asm.resolveFills()

	result = asm.trim(origin)
	return origin, result, asm.errs
}

// assembleLine dispatches one tokenized line to the directive or
// instruction encoder it names, or records it as a label definition.
// It reports true when the line was ".END" and the file should stop
// being read.
func (asm *assembly) assembleLine(tokens []Token, originSet *bool, origin *uint16) bool {
	var label *Token
	var keyword *Token
	var directive DirectiveType
	var instruction InstructionType
	var operands []Token

	hasKeyword := func(i int) bool {
		return i < len(tokens) && (isInstruction(tokens[i].Value) || isDirective(tokens[i].Value))
	}

	switch {
	case isInstruction(tokens[0].Value):
		instruction = parseInstruction(tokens[0].Value)
		keyword = &tokens[0]
		operands = tokens[1:]
	case isDirective(tokens[0].Value):
		directive = parseDirective(tokens[0].Value)
		keyword = &tokens[0]
		operands = tokens[1:]
	case hasKeyword(1):
		label = &tokens[0]
	}

	if label != nil {
		asm.declareLabel(label)

		switch {
		case isInstruction(tokens[1].Value):
			instruction = parseInstruction(tokens[1].Value)
			keyword = &tokens[1]
			operands = tokens[2:]
		case isDirective(tokens[1].Value):
			directive = parseDirective(tokens[1].Value)
			keyword = &tokens[1]
			operands = tokens[2:]
		}
	}

	if keyword == nil {
		asm.errs = append(asm.errs, &UnknownIdentifierError{at{tokens[0].Position}, tokens[0].Value})
		return false
	}

	if directive == DIRECTIVE_END {
		if n := len(operands); n != 0 {
			asm.errs = append(asm.errs, &InvalidNumArgumentsError{at{keyword.Position}, 0, n})
		}
		return true
	}

	addr := uint16(asm.program)

	asm.runDirective(directive, keyword, operands, originSet, origin)
	asm.runInstruction(instruction, keyword, operands)

	if instruction != INSTRUCTION_INVALID {
		if asm.symtable != nil {
			asm.symtable.Symbols[addr] = keyword.Position.LineByte
		}

		asm.result[asm.program] = asm.lastWord
		asm.program++
	}

	return false
}

func isInstruction(ident string) bool { return parseInstruction(ident) != INSTRUCTION_INVALID }
func isDirective(ident string) bool   { return parseDirective(ident) != DIRECTIVE_INVALID }

func (asm *assembly) declareLabel(label *Token) {
	if _, exists := asm.labels[label.Value]; exists {
		asm.errs = append(asm.errs, &RedeclaredLabelError{at{label.Position}, label.Value})
		return
	}

	asm.labels[label.Value] = uint16(asm.program)
}

// runDirective executes a .ORIG/.FILL/.BLKW/.STRINGZ directive,
// advancing the program counter and writing into result as needed.
// directive is DIRECTIVE_INVALID (a no-op) on an instruction-only line.
func (asm *assembly) runDirective(directive DirectiveType, keyword *Token, operands []Token, originSet *bool, origin *uint16) {
	switch directive {
	case DIRECTIVE_FILL:
		if !wantOperands(keyword, operands, 1, &asm.errs) {
			return
		}

		switch operands[0].Type {
		case TOKEN_LITERAL:
			literal, err := parseLiteral(&operands[0], LITERAL_WORD)
			if err != nil {
				asm.errs = append(asm.errs, err)
			}
			asm.result[asm.program] = literal

		case TOKEN_IDENT:
			if addr, exists := asm.labels[operands[0].Value]; exists {
				asm.result[asm.program] = addr
			} else {
				asm.fillRefs = append(asm.fillRefs, fillRef{
					operands[0].Value, uint16(asm.program), operands[0].Position,
				})
			}

		default:
			asm.errs = append(asm.errs, &InvalidOperandError{
				at{operands[0].Position}, []TokenType{TOKEN_LITERAL, TOKEN_IDENT}, operands[0].Type,
			})
		}

		asm.program++

	case DIRECTIVE_BLKW:
		if !wantOperands(keyword, operands, 1, &asm.errs) {
			return
		}

		if operands[0].Type != TOKEN_LITERAL {
			asm.errs = append(asm.errs, &InvalidOperandError{
				at{operands[0].Position}, []TokenType{TOKEN_LITERAL}, operands[0].Type,
			})
			return
		}

		literal, err := parseLiteral(&operands[0], LITERAL_WORD)
		if err != nil {
			asm.errs = append(asm.errs, err)
		}
		asm.program += uint32(literal)

	case DIRECTIVE_STRINGZ:
		if !wantOperands(keyword, operands, 1, &asm.errs) {
			return
		}

		if operands[0].Type != TOKEN_STRING {
			asm.errs = append(asm.errs, &InvalidOperandError{
				at{operands[0].Position}, []TokenType{TOKEN_STRING}, operands[0].Type,
			})
			return
		}

		s, err := strconv.Unquote(operands[0].Value)
		if err != nil {
			asm.errs = append(asm.errs, &InvalidStringError{at{operands[0].Position}})
		}

		for _, c := range s {
			asm.result[asm.program] = uint16(c)
			asm.program++
		}
		asm.result[asm.program] = 0
		asm.program++

	case DIRECTIVE_ORIG:
		if !wantOperands(keyword, operands, 1, &asm.errs) {
			return
		}

		if operands[0].Type != TOKEN_LITERAL {
			asm.errs = append(asm.errs, &InvalidOperandError{
				at{operands[0].Position}, []TokenType{TOKEN_LITERAL}, operands[0].Type,
			})
			return
		}

		literal, err := parseLiteral(&operands[0], LITERAL_WORD)
		if err != nil {
			asm.errs = append(asm.errs, err)
		}

		asm.program = uint32(literal)

		if !*originSet {
			*origin = literal
			*originSet = true
		}
	}
}

// runInstruction dispatches one instruction mnemonic to its encoder
// and leaves the resulting word in asm.lastWord for assembleLine to
// commit to result. instruction is INSTRUCTION_INVALID (a no-op) on a
// directive-only or label-only line.
func (asm *assembly) runInstruction(instruction InstructionType, keyword *Token, operands []Token) {
	switch instruction {
	case INSTRUCTION_ADD, INSTRUCTION_AND:
		asm.lastWord = encodeAddAnd(instruction, keyword, operands, &asm.errs)

	case INSTRUCTION_BR,
		INSTRUCTION_BRn, INSTRUCTION_BRz, INSTRUCTION_BRp,
		INSTRUCTION_BRnz, INSTRUCTION_BRzp, INSTRUCTION_BRnp, INSTRUCTION_BRnzp:
		asm.lastWord = encodeBranch(instruction, keyword, operands, asm.program, &asm.labelRefs, &asm.errs)

	case INSTRUCTION_JMP:
		asm.lastWord = encodeJMPJSRR(0b1100, keyword, operands, &asm.errs)

	case INSTRUCTION_RET:
		asm.lastWord = encodeRET(keyword, operands, &asm.errs)

	case INSTRUCTION_JSR:
		asm.lastWord = encodeJSR(keyword, operands, asm.program, &asm.labelRefs, &asm.errs)

	case INSTRUCTION_JSRR:
		asm.lastWord = encodeJMPJSRR(0b0100, keyword, operands, &asm.errs)

	case INSTRUCTION_LD, INSTRUCTION_LDI, INSTRUCTION_LEA, INSTRUCTION_ST, INSTRUCTION_STI:
		asm.lastWord = encodePCRelative(instruction, keyword, operands, asm.program, &asm.labelRefs, &asm.errs)

	case INSTRUCTION_LDR, INSTRUCTION_STR:
		asm.lastWord = encodeBaseOffset(instruction, keyword, operands, &asm.errs)

	case INSTRUCTION_NOT:
		asm.lastWord = encodeNOT(keyword, operands, &asm.errs)

	case INSTRUCTION_TRAP,
		INSTRUCTION_GETC, INSTRUCTION_OUT, INSTRUCTION_PUTS,
		INSTRUCTION_IN, INSTRUCTION_PUTSP, INSTRUCTION_HALT:
		asm.lastWord = encodeTrap(instruction, keyword, operands, &asm.errs)
	}
}

// resolveLabels patches every queued branch/jump/PC-relative operand
// now that every label in the file has been collected, and mirrors the
// final label table into the symbol table if one was requested.
func (asm *assembly) resolveLabels() {
	for _, ref := range asm.labelRefs {
		addr, exists := asm.labels[ref.Label]
		if !exists {
			asm.errs = append(asm.errs, &UnknownLabelError{at{ref.Position}, ref.Label})
			continue
		}

		limit := int64(1) << (ref.Size - 1)
		offset := int64(addr) - int64(ref.Addr) - 1

		if offset < -limit || offset >= limit {
			asm.errs = append(asm.errs, &OversizedLabelError{at{ref.Position}, limit, offset})
			continue
		}

		asm.result[ref.Addr] |= uint16(offset&0xFFFF) & ((1 << ref.Size) - 1)
	}

	if asm.symtable != nil {
		for label, addr := range asm.labels {
			asm.symtable.Labels[addr] = label
		}
	}
}

// resolveFills patches .FILL directives whose operand named a label
// that hadn't been declared yet when the directive was encoded.
func (asm *assembly) resolveFills() {
	for _, ref := range asm.fillRefs {
		addr, exists := asm.labels[ref.Label]
		if !exists {
			asm.errs = append(asm.errs, &UnknownLabelError{at{ref.Position}, ref.Label})
			continue
		}

		asm.result[ref.Addr] = addr
	}
}

// trim cuts result down from the full 64K scratch image to the span
// actually written (origin through program, the address one past the
// last word assembled), so callers writing a wire image don't have to
// chase down the high-water mark themselves. A file with errors keeps
// the full scratch buffer since program's high-water mark can't be
// trusted.
func (asm *assembly) trim(origin uint16) []uint16 {
	if len(asm.errs) > 0 {
		return asm.result
	}

	if uint32(origin) < asm.program {
		return asm.result[origin:asm.program]
	}

	return asm.result[origin:origin]
}
