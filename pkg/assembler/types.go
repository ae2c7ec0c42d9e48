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
	"fmt"
	"strings"
)

type LiteralType uint
type TokenType uint
type InstructionType uint
type DirectiveType uint

type Cursor struct {
	Line     int
	Column   int
	Byte     int64
	Size     int64
	LineByte int64
}

type Token struct {
	Type     TokenType
	Position Cursor
	Value    string
}

type SymTable struct {
	Source  string
	Symbols map[uint16]int64
	Labels  map[uint16]string
}

// TokenError is implemented by every error the assembler reports except
// OversizedBinaryError (which has no source position), so a caller
// (cmd/lc3vm-asm's diagnostic printer) can recover the source position
// without a type switch over each concrete kind.
type TokenError interface {
	GetPosition() Cursor
}

// at is embedded by every TokenError so the position field and its
// accessor are written once instead of once per error kind.
type at struct {
	Position Cursor
}

func (a at) GetPosition() Cursor {
	return a.Position
}

func (a at) locate() string {
	return fmt.Sprintf("%02d:%02d", a.Position.Line, a.Position.Column)
}

func tokenTypeName(t TokenType) string {
	switch t {
	case TOKEN_IDENT:
		return "Identifier"
	case TOKEN_DIRECTIVE:
		return "Directive"
	case TOKEN_STRING:
		return "String"
	case TOKEN_LITERAL:
		return "Literal"
	default:
		return "<invalid>"
	}
}

func tokenTypeList(types []TokenType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = tokenTypeName(t)
	}

	switch len(names) {
	case 0:
		return "<invalid>"
	case 1:
		return names[0]
	case 2:
		return names[0] + " or " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
	}
}

// InvalidOperandError reports an operand of the wrong kind, e.g. a
// string literal where a register was expected.
type InvalidOperandError struct {
	at
	Required []TokenType
	Received TokenType
}

func (err *InvalidOperandError) Error() string {
	return fmt.Sprintf(
		"%s: invalid operand (want %s, have %s)",
		err.locate(), tokenTypeList(err.Required), tokenTypeName(err.Received),
	)
}

// InvalidNumArgumentsError reports an instruction or directive given
// the wrong number of operands.
type InvalidNumArgumentsError struct {
	at
	Required int
	Received int
}

func (err *InvalidNumArgumentsError) Error() string {
	return fmt.Sprintf(
		"%s: wrong number of operands (want %d, have %d)",
		err.locate(), err.Required, err.Received,
	)
}

// OversizedLabelError reports a label reference whose resolved offset
// does not fit the instruction's PC-relative field.
type OversizedLabelError struct {
	at
	Required int64
	Received int64
}

func (err *OversizedLabelError) Error() string {
	return fmt.Sprintf(
		"%s: label out of range for this field (limit %d, got %d)",
		err.locate(), err.Required, err.Received,
	)
}

// InvalidLiteralError reports a numeric literal that failed to parse.
type InvalidLiteralError struct {
	at
}

func (err *InvalidLiteralError) Error() string {
	return fmt.Sprintf("%s: malformed numeric literal", err.locate())
}

// InvalidStringError reports a malformed (unterminated or unquotable)
// string literal.
type InvalidStringError struct {
	at
}

func (err *InvalidStringError) Error() string {
	return fmt.Sprintf("%s: malformed string literal", err.locate())
}

// OversizedLiteralError reports a literal that parsed cleanly but does
// not fit the field it's destined for.
type OversizedLiteralError struct {
	at
	Required interface{}
	Received interface{}
}

func (err *OversizedLiteralError) Error() string {
	return fmt.Sprintf(
		"%s: literal out of range (limit %d, got %d)",
		err.locate(), err.Required, err.Received,
	)
}

// InvalidRegisterError reports an identifier in register position that
// isn't one of R0-R7.
type InvalidRegisterError struct {
	at
}

func (err *InvalidRegisterError) Error() string {
	return fmt.Sprintf("%s: not a register (expected R0-R7)", err.locate())
}

// UnexpectedCharacterError reports a character the tokenizer can't
// place in any token it's currently building.
type UnexpectedCharacterError struct {
	at
	Received rune
}

func (err *UnexpectedCharacterError) Error() string {
	return fmt.Sprintf("%s: unexpected character %q", err.locate(), err.Received)
}

// OversizedCharacterError reports a rune outside the ASCII range the
// tokenizer accepts.
type OversizedCharacterError struct {
	at
}

func (err *OversizedCharacterError) Error() string {
	return fmt.Sprintf("%s: non-ASCII character", err.locate())
}

// RedeclaredLabelError reports a label defined more than once.
type RedeclaredLabelError struct {
	at
	Received string
}

func (err *RedeclaredLabelError) Error() string {
	return fmt.Sprintf("%s: label %q already defined", err.locate(), err.Received)
}

// UnknownLabelError reports a reference to a label that was never
// declared anywhere in the source.
type UnknownLabelError struct {
	at
	Received string
}

func (err *UnknownLabelError) Error() string {
	return fmt.Sprintf("%s: undefined label %q", err.locate(), err.Received)
}

// UnknownIdentifierError reports a leading identifier that is neither
// a known instruction/directive mnemonic nor followed by one, so it
// can't be treated as a label definition either.
type UnknownIdentifierError struct {
	at
	Received string
}

func (err *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("%s: unrecognized mnemonic %q", err.locate(), err.Received)
}

// OversizedBinaryError reports a program that grew past the 16-bit
// address space while being assembled.
type OversizedBinaryError struct{}

func (err *OversizedBinaryError) Error() string {
	return "assembled image exceeds the 16-bit address space"
}
