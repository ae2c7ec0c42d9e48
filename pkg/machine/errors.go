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

package machine

import (
	"errors"
	"fmt"
)

// ErrReservedOpcode is decoded from opcode 0b1000 (RTI) or 0b1101 (RES).
// In permissive mode (the default) Step treats the instruction as a
// one-cycle no-op; in strict mode Step returns it to the caller.
var ErrReservedOpcode = errors.New("reserved opcode decoded")

// ErrUnknownTrap is what trap returns for a vector outside the six GETC/
// OUT/PUTS/IN/PUTSP/HALT defines. Step always treats it as a no-op and
// never returns it to the caller.
var ErrUnknownTrap = errors.New("unknown trap vector")

// ErrIO wraps a failed write to the console (Devices.Display); Step
// always returns it, inside an OpcodeError. LoadImage also wraps it for
// an image that is empty or ends on an odd byte. Keyboard reads never
// produce it: Poll has no error result.
var ErrIO = errors.New("console i/o failure")

// OpcodeError annotates ErrReservedOpcode/ErrIO with the address and raw
// instruction word that produced it.
type OpcodeError struct {
	Addr  uint16
	Instr uint16
	Err   error
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("%#04x: instr %#04x: %s", e.Addr, e.Instr, e.Err)
}

func (e *OpcodeError) Unwrap() error {
	return e.Err
}
