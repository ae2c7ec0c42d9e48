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

// labelRef is the label operand of a branch, JSR, or PC-relative
// load/store. Every such operand is queued during the encoding pass,
// whether or not its label has been declared yet; Assemble patches
// these into result once every label has been collected.
type labelRef struct {
	Label    string
	Addr     uint16
	Size     LiteralType
	Position Cursor
}

// fillRef is the .FILL analog of labelRef: a .FILL operand that names
// a label instead of carrying a literal value.
type fillRef struct {
	Label    string
	Addr     uint16
	Position Cursor
}

// wantOperands reports (and records an error for) an operand count
// mismatch. Every instruction encoder starts with one of these.
func wantOperands(keyword *Token, operands []Token, want int, errs *[]error) bool {
	if len(operands) == want {
		return true
	}

	*errs = append(*errs, &InvalidNumArgumentsError{
		at{keyword.Position}, want, len(operands),
	})

	return false
}

func wantRegister(token *Token, errs *[]error) uint16 {
	if token.Type != TOKEN_IDENT {
		*errs = append(*errs, &InvalidOperandError{
			at{token.Position}, []TokenType{TOKEN_IDENT}, token.Type,
		})
		return 0
	}

	reg, ok := parseRegister(token)
	if !ok {
		*errs = append(*errs, &InvalidRegisterError{at{token.Position}})
	}

	return reg & 0x7
}

// encodeAddAnd packs ADD/AND's shared register-register-register or
// register-register-immediate layout.
//
// ADD  |0001    |DR   |SR1  |0|00 |SR2   | Register  addition
// ADD  |0001    |DR   |SR1  |1|imm5      | Immediate addition
// AND  |0101    |DR   |SR1  |0|00 |SR2   | Register  bitwise
// AND  |0101    |DR   |SR1  |1|imm5      | Immediate bitwise
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func encodeAddAnd(instruction InstructionType, keyword *Token, operands []Token, errs *[]error) uint16 {
	if !wantOperands(keyword, operands, 3, errs) {
		return 0
	}

	var scratch uint16
	if instruction == INSTRUCTION_ADD {
		scratch = 0b0001
	} else {
		scratch = 0b0101
	}

	scratch = scratch<<3 | wantRegister(&operands[0], errs)
	scratch = scratch<<3 | wantRegister(&operands[1], errs)

	switch operands[2].Type {
	case TOKEN_IDENT:
		reg := wantRegister(&operands[2], errs)
		scratch = scratch<<6 | reg

	case TOKEN_LITERAL:
		imm5, err := parseLiteral(&operands[2], LITERAL_IMM5)
		if err != nil {
			*errs = append(*errs, err)
		}
		scratch = scratch<<1 | 0x1
		scratch = scratch<<5 | (imm5 & 0x1F)

	default:
		*errs = append(*errs, &InvalidOperandError{
			at{operands[2].Position}, []TokenType{TOKEN_LITERAL, TOKEN_IDENT}, operands[2].Type,
		})
	}

	return scratch
}

var branchMasks = map[InstructionType]uint16{
	INSTRUCTION_BR:    0b000,
	INSTRUCTION_BRn:   0b100,
	INSTRUCTION_BRz:   0b010,
	INSTRUCTION_BRp:   0b001,
	INSTRUCTION_BRnz:  0b110,
	INSTRUCTION_BRzp:  0b011,
	INSTRUCTION_BRnp:  0b101,
	INSTRUCTION_BRnzp: 0b111,
}

// encodeBranch packs a conditional (or unconditional, BRnzp) branch
// and queues its label for the resolution pass.
//
// BR   |0000    |N|Z|P|PCoffset9         | Conditional branch
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func encodeBranch(instruction InstructionType, keyword *Token, operands []Token, program uint32, refs *[]labelRef, errs *[]error) uint16 {
	if !wantOperands(keyword, operands, 1, errs) {
		return 0
	}

	scratch := branchMasks[instruction]

	if operands[0].Type != TOKEN_IDENT {
		*errs = append(*errs, &InvalidOperandError{
			at{operands[0].Position}, []TokenType{TOKEN_IDENT}, operands[0].Type,
		})
		return scratch << 9
	}

	*refs = append(*refs, labelRef{
		operands[0].Value, uint16(program), LITERAL_PCOFFSET9, operands[0].Position,
	})

	return scratch << 9
}

// encodeJMPJSRR packs JMP/JSRR's shared "opcode, three reserved bits,
// base register, six reserved bits" layout; only the top nibble
// differs between them.
//
// JMP  |1100    |000  |BaseR|000000      | Jump
// JSRR |0100    |0|00 |BaseR|000000      | Jump to subroutine register
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func encodeJMPJSRR(top4 uint16, keyword *Token, operands []Token, errs *[]error) uint16 {
	if !wantOperands(keyword, operands, 1, errs) {
		return 0
	}

	if operands[0].Type != TOKEN_IDENT {
		*errs = append(*errs, &InvalidOperandError{
			at{operands[0].Position}, []TokenType{TOKEN_IDENT}, operands[0].Type,
		})
		return top4 << 12
	}

	reg := wantRegister(&operands[0], errs)

	scratch := top4<<6 | reg
	return scratch << 6
}

// encodeRET packs RET, a bare synonym for "JMP R7" with no operands.
//
// RET  |1100    |000  |111  |000000      | Return
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func encodeRET(keyword *Token, operands []Token, errs *[]error) uint16 {
	wantOperands(keyword, operands, 0, errs)
	return 0b1100000111000000
}

// encodeJSR packs JSR's PC-relative subroutine call and queues its
// label.
//
// JSR  |0100    |1|PCoffset11            | Jump to subroutine
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func encodeJSR(keyword *Token, operands []Token, program uint32, refs *[]labelRef, errs *[]error) uint16 {
	if !wantOperands(keyword, operands, 1, errs) {
		return 0
	}

	if operands[0].Type != TOKEN_IDENT {
		*errs = append(*errs, &InvalidOperandError{
			at{operands[0].Position}, []TokenType{TOKEN_IDENT}, operands[0].Type,
		})
		return 0b01001 << 11
	}

	*refs = append(*refs, labelRef{
		operands[0].Value, uint16(program), LITERAL_PCOFFSET11, operands[0].Position,
	})

	return 0b01001 << 11
}

var pcRelativeOpcodes = map[InstructionType]uint16{
	INSTRUCTION_LD:  0b0010,
	INSTRUCTION_LDI: 0b1010,
	INSTRUCTION_LEA: 0b1110,
	INSTRUCTION_ST:  0b0011,
	INSTRUCTION_STI: 0b1011,
}

// encodePCRelative packs LD/LDI/LEA/ST/STI's shared "opcode, register,
// PCoffset9" layout and queues the label reference.
//
// LD   |0010    |DR   |PCoffset9         | Load
// LDI  |1010    |DR   |PCoffset9         | Load indirect
// ST   |0011    |SR   |PCoffset9         | Store
// STI  |1011    |SR   |PCoffset9         | Store indirect
// LEA  |1110    |DR   |PCoffset9         | Load effective address
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func encodePCRelative(instruction InstructionType, keyword *Token, operands []Token, program uint32, refs *[]labelRef, errs *[]error) uint16 {
	if !wantOperands(keyword, operands, 2, errs) {
		return 0
	}

	scratch := pcRelativeOpcodes[instruction]
	scratch = scratch<<3 | wantRegister(&operands[0], errs)

	if operands[1].Type != TOKEN_IDENT {
		*errs = append(*errs, &InvalidOperandError{
			at{operands[1].Position}, []TokenType{TOKEN_IDENT}, operands[1].Type,
		})
		return scratch << 9
	}

	*refs = append(*refs, labelRef{
		operands[1].Value, uint16(program), LITERAL_PCOFFSET9, operands[1].Position,
	})

	return scratch << 9
}

// encodeBaseOffset packs LDR/STR's shared "opcode, register, base
// register, offset6" layout.
//
// LDR  |0110    |DR   |BaseR|offset6     | Load base+offset
// STR  |0111    |SR   |BaseR|offset6     | Store base+offset
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func encodeBaseOffset(instruction InstructionType, keyword *Token, operands []Token, errs *[]error) uint16 {
	if !wantOperands(keyword, operands, 3, errs) {
		return 0
	}

	var scratch uint16
	if instruction == INSTRUCTION_LDR {
		scratch = 0b0110
	} else {
		scratch = 0b0111
	}

	scratch = scratch<<3 | wantRegister(&operands[0], errs)
	scratch = scratch<<3 | wantRegister(&operands[1], errs)

	if operands[2].Type != TOKEN_LITERAL {
		*errs = append(*errs, &InvalidOperandError{
			at{operands[2].Position}, []TokenType{TOKEN_LITERAL}, operands[2].Type,
		})
		return scratch << 6
	}

	offset, err := parseLiteral(&operands[2], LITERAL_OFFSET6)
	if err != nil {
		*errs = append(*errs, err)
	}

	return scratch<<6 | (offset & 0x3F)
}

// encodeNOT packs NOT's bitwise-complement layout.
//
// NOT  |1001    |DR   |SR   |1|11111     | Bitwise complement
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func encodeNOT(keyword *Token, operands []Token, errs *[]error) uint16 {
	if !wantOperands(keyword, operands, 2, errs) {
		return 0
	}

	scratch := uint16(0b1001)
	scratch = scratch<<3 | wantRegister(&operands[0], errs)
	scratch = scratch<<3 | wantRegister(&operands[1], errs)

	return scratch<<6 | 0x3F
}

// encodeTrap packs bare TRAP (an explicit vector operand) and the six
// GETC/OUT/PUTS/IN/PUTSP/HALT pseudo-ops (a fixed vector each).
//
// TRAP |1111    |0000   |trapvect8       | Software trap
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func encodeTrap(instruction InstructionType, keyword *Token, operands []Token, errs *[]error) uint16 {
	vector, isPseudoOp := trapVectors[instruction]
	position := keyword.Position

	if !isPseudoOp {
		if !wantOperands(keyword, operands, 1, errs) {
			return 0b1111 << 12
		}

		position = operands[0].Position

		if operands[0].Type != TOKEN_LITERAL {
			*errs = append(*errs, &InvalidOperandError{
				at{position}, []TokenType{TOKEN_LITERAL}, operands[0].Type,
			})
			return 0b1111 << 12
		}

		literal, err := parseLiteral(&operands[0], LITERAL_TRAPVEC8)
		if err != nil {
			*errs = append(*errs, err)
		}

		vector = literal
	} else {
		wantOperands(keyword, operands, 0, errs)
	}

	if vector > 0xFF {
		*errs = append(*errs, &OversizedLiteralError{at{position}, uint16(0xFF), vector})
	}

	return 0b1111<<12 | (vector & 0xFF)
}
