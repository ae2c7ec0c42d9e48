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
	"strings"

	"github.com/opcode3000/lc3vm/pkg/encoding"
)

// parseLiteral decodes a LITERAL token as either hex or decimal,
// depending on whether it contains an 'x'/'X', and checks the result
// fits in the given bit width. A field narrower than 16 bits comes back
// as its raw bit pattern, not sign-extended: a negative decimal is
// truncated to its low bits bits, ready to be masked into the
// instruction word.
func parseLiteral(token *Token, bits LiteralType) (uint16, error) {
	if strings.ContainsAny(token.Value, "xX") {
		return parseHexLiteral(token, bits)
	}
	return parseDecimalLiteral(token, bits)
}

func parseHexLiteral(token *Token, bits LiteralType) (uint16, error) {
	result, err := encoding.DecodeHex(token.Value)
	if err != nil {
		return 0, &InvalidLiteralError{at{token.Position}}
	}

	if bits >= 16 {
		return result, nil
	}

	limit := uint16(1) << bits
	if result >= limit {
		return 0, &OversizedLiteralError{at{token.Position}, limit, result}
	}

	if result&limit != 0 {
		result |= (uint16(1) << bits) - 1
	}

	return result, nil
}

func parseDecimalLiteral(token *Token, bits LiteralType) (uint16, error) {
	result, err := encoding.DecodeInt(token.Value)
	if err != nil {
		return 0, &InvalidLiteralError{at{token.Position}}
	}

	if bits >= 16 {
		return uint16(result), nil
	}

	limit := int16(1) << bits
	if result < -(limit>>1) || result >= limit {
		return 0, &OversizedLiteralError{at{token.Position}, limit, result}
	}

	if result&((1<<bits)-1) != 0 {
		result &= (int16(1) << bits) - 1
	}

	return uint16(result), nil
}
