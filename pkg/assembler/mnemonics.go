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

import "strings"

// directiveNames and instructionNames back parseDirective/parseInstruction
// with a case-insensitive lookup table instead of a chain of EqualFold
// comparisons, so adding a mnemonic is a one-line table edit.
var directiveNames = map[string]DirectiveType{
	".ORIG":    DIRECTIVE_ORIG,
	".FILL":    DIRECTIVE_FILL,
	".BLKW":    DIRECTIVE_BLKW,
	".STRINGZ": DIRECTIVE_STRINGZ,
	".END":     DIRECTIVE_END,
}

var instructionNames = map[string]InstructionType{
	"ADD":   INSTRUCTION_ADD,
	"AND":   INSTRUCTION_AND,
	"BR":    INSTRUCTION_BR,
	"BRN":   INSTRUCTION_BRn,
	"BRZ":   INSTRUCTION_BRz,
	"BRP":   INSTRUCTION_BRp,
	"BRNZ":  INSTRUCTION_BRnz,
	"BRZP":  INSTRUCTION_BRzp,
	"BRNP":  INSTRUCTION_BRnp,
	"BRNZP": INSTRUCTION_BRnzp,
	"JMP":   INSTRUCTION_JMP,
	"JSR":   INSTRUCTION_JSR,
	"JSRR":  INSTRUCTION_JSRR,
	"LD":    INSTRUCTION_LD,
	"LDI":   INSTRUCTION_LDI,
	"LDR":   INSTRUCTION_LDR,
	"LEA":   INSTRUCTION_LEA,
	"NOT":   INSTRUCTION_NOT,
	"RET":   INSTRUCTION_RET,
	"ST":    INSTRUCTION_ST,
	"STI":   INSTRUCTION_STI,
	"STR":   INSTRUCTION_STR,
	"TRAP":  INSTRUCTION_TRAP,
	"GETC":  INSTRUCTION_GETC,
	"OUT":   INSTRUCTION_OUT,
	"PUTS":  INSTRUCTION_PUTS,
	"IN":    INSTRUCTION_IN,
	"PUTSP": INSTRUCTION_PUTSP,
	"HALT":  INSTRUCTION_HALT,
}

// trapVectors gives the fixed TRAP vector for each of the six pseudo-op
// mnemonics; bare TRAP reads its vector from an operand instead.
var trapVectors = map[InstructionType]uint16{
	INSTRUCTION_GETC:  0x20,
	INSTRUCTION_OUT:   0x21,
	INSTRUCTION_PUTS:  0x22,
	INSTRUCTION_IN:    0x23,
	INSTRUCTION_PUTSP: 0x24,
	INSTRUCTION_HALT:  0x25,
}

var registerNames = map[string]uint16{
	"R0": 0, "R1": 1, "R2": 2, "R3": 3,
	"R4": 4, "R5": 5, "R6": 6, "R7": 7,
}

func parseDirective(ident string) DirectiveType {
	if d, ok := directiveNames[strings.ToUpper(ident)]; ok {
		return d
	}
	return DIRECTIVE_INVALID
}

func parseInstruction(ident string) InstructionType {
	if i, ok := instructionNames[strings.ToUpper(ident)]; ok {
		return i
	}
	return INSTRUCTION_INVALID
}

func parseRegister(token *Token) (uint16, bool) {
	reg, ok := registerNames[strings.ToUpper(token.Value)]
	return reg, ok
}
