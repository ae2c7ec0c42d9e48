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
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/opcode3000/lc3vm/pkg/encoding"
)

// Reset zeroes every register and memory cell and parks PC at the
// conventional user-program load address with COND = Z.
func (mc *MachineState) Reset() {
	for i := range mc.Registers {
		mc.Registers[i] = 0x0000
	}

	for i := range mc.Memory {
		mc.Memory[i] = 0x0000
	}

	mc.Program = PCReset
	mc.Condition = FLAG_ZERO
	mc.Halted = false
}

// LoadImage reads a program image: a big-endian origin word followed by
// the program's words, also big-endian. Word i after the origin is
// stored at origin+i, wrapping at 2^16. Reset is called first, so the
// loaded image is the only state a fresh Machine carries into its first
// Step.
func (mc *Machine) LoadImage(r io.Reader) error {
	mc.State.Reset()

	scratch := make([]byte, 2)

	if _, err := io.ReadFull(r, scratch); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("lc3vm: image has no origin word: %w", ErrIO)
		}
		return err
	}

	addr := binary.BigEndian.Uint16(scratch)

	for {
		n, err := io.ReadFull(r, scratch)

		if err == io.EOF {
			return nil
		} else if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("lc3vm: image ends on an odd byte: %w", ErrIO)
		} else if err != nil {
			return err
		} else if n != 2 {
			return fmt.Errorf("lc3vm: short read loading image: %w", ErrIO)
		}

		mc.State.Memory[addr] = binary.BigEndian.Uint16(scratch)
		addr++
	}
}

// read implements the one side effect memory reads carry: reading
// DEV_KBSR polls the keyboard device and refreshes DEV_KBSR/DEV_KBDR
// before the read completes. Every other address is a plain load.
func (mc *Machine) read(addr uint16) uint16 {
	if addr == DEV_KBSR {
		mc.pollKeyboard()
	}

	if mc.Hooks != nil {
		mc.Hooks.Read(addr, mc)
	}

	return mc.State.Memory[addr]
}

// write is a plain store. Writes to DEV_KBSR/DEV_KBDR are allowed but
// are overwritten on the next read of DEV_KBSR.
func (mc *Machine) write(addr uint16, value uint16) {
	mc.State.Memory[addr] = value

	if mc.Hooks != nil {
		mc.Hooks.Write(addr, mc)
	}
}

// pollKeyboard asks the keyboard device for one byte and updates the
// KBSR/KBDR pair to match: a hit sets KBSR's high bit and lands the
// character in KBDR's low byte; a miss clears KBSR and leaves KBDR as it
// was.
func (mc *Machine) pollKeyboard() {
	var c byte
	var ok bool

	if mc.Devices != nil && mc.Devices.Keyboard != nil {
		c, ok = mc.Devices.Keyboard.Poll()
	}

	if ok {
		mc.State.Memory[DEV_KBSR] = 1 << 15
		mc.State.Memory[DEV_KBDR] = uint16(c)
	} else {
		mc.State.Memory[DEV_KBSR] = 0
	}
}

// setFlags sets COND to exactly one of P/Z/N -- never more than one bit.
func (mc *Machine) setFlags(value uint16) {
	if value == 0 {
		mc.State.Condition = FLAG_ZERO
	} else if value>>15 == 1 {
		mc.State.Condition = FLAG_NEG
	} else {
		mc.State.Condition = FLAG_POS
	}
}

// Step executes exactly one fetch-decode-execute cycle. PC is advanced
// before the handler runs, so any PC-relative computation a handler does
// already sees the advanced value. Step returns a non-nil error only for
// a reserved opcode while strict is true, or a console I/O failure;
// everything else -- an unknown trap vector, a reserved opcode in
// permissive mode -- is a no-op and execution continues.
func (mc *Machine) Step(strict bool) error {
	pc := mc.State.Program
	instruction := mc.read(pc)
	opcode := instruction >> 12

	mc.State.Program++

	switch opcode {
	// ADD  |0001    |DR   |SR1  |0|00 |SR2   | Register  addition
	// ADD  |0001    |DR   |SR1  |1|imm5      | Immediate addition
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_ADD:
		dest := (instruction >> 9) & 0x7
		src1 := (instruction >> 6) & 0x7

		if (instruction>>5)&0x1 == 1 {
			imm5 := encoding.SignExtend(instruction&0x1F, 5)
			mc.State.Registers[dest] = mc.State.Registers[src1] + imm5
		} else {
			src2 := instruction & 0x7
			mc.State.Registers[dest] = mc.State.Registers[src1] +
				mc.State.Registers[src2]
		}

		mc.setFlags(mc.State.Registers[dest])

	// AND  |0101    |DR   |SR1  |0|00 |SR2   | Register  bitwise
	// AND  |0101    |DR   |SR1  |1|imm5      | Immediate bitwise
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_AND:
		dest := (instruction >> 9) & 0x7
		src1 := (instruction >> 6) & 0x7

		if (instruction>>5)&0x1 == 1 {
			imm5 := encoding.SignExtend(instruction&0x1F, 5)
			mc.State.Registers[dest] = mc.State.Registers[src1] & imm5
		} else {
			src2 := instruction & 0x7
			mc.State.Registers[dest] = mc.State.Registers[src1] &
				mc.State.Registers[src2]
		}

		mc.setFlags(mc.State.Registers[dest])

	// BR   |0000    |N|Z|P|PCoffset9         | Conditional branch
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_BR:
		mask := (instruction >> 9) & 0x7

		if mask&mc.State.Condition != 0 {
			mc.State.Program += encoding.SignExtend(instruction&0x1FF, 9)
		}

	// JMP  |1100    |000  |BaseR|000000      | Jump
	// RET  |1100    |000  |111  |000000      | Return
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_JMP:
		base := (instruction >> 6) & 0x7
		mc.State.Program = mc.State.Registers[base]

	// JSR  |0100    |1|PCoffset11            | Jump to subroutine
	// JSRR |0100    |0|00 |BaseR|000000      | Jump to subroutine register
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_JSR:
		mc.State.Registers[7] = mc.State.Program

		if (instruction>>11)&0x1 == 1 {
			mc.State.Program += encoding.SignExtend(instruction&0x7FF, 11)
		} else {
			base := (instruction >> 6) & 0x7
			mc.State.Program = mc.State.Registers[base]
		}

	// LD   |0010    |DR   |PCoffset9         | Load
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LD:
		dest := (instruction >> 9) & 0x7
		addr := mc.State.Program + encoding.SignExtend(instruction&0x1FF, 9)

		mc.State.Registers[dest] = mc.read(addr)
		mc.setFlags(mc.State.Registers[dest])

	// LDI  |1010    |DR   |PCoffset9         | Load indirect
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LDI:
		dest := (instruction >> 9) & 0x7
		addr := mc.State.Program + encoding.SignExtend(instruction&0x1FF, 9)

		mc.State.Registers[dest] = mc.read(mc.read(addr))
		mc.setFlags(mc.State.Registers[dest])

	// LDR  |0110    |DR   |BaseR|offset6     | Load base+offset
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LDR:
		dest := (instruction >> 9) & 0x7
		base := (instruction >> 6) & 0x7
		addr := mc.State.Registers[base] +
			encoding.SignExtend(instruction&0x3F, 6)

		mc.State.Registers[dest] = mc.read(addr)
		mc.setFlags(mc.State.Registers[dest])

	// LEA  |1110    |DR   |PCoffset9         | Load effective address
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LEA:
		dest := (instruction >> 9) & 0x7
		mc.State.Registers[dest] = mc.State.Program +
			encoding.SignExtend(instruction&0x1FF, 9)

		mc.setFlags(mc.State.Registers[dest])

	// NOT  |1001    |DR   |SR   |1|11111     | Bitwise complement
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_NOT:
		dest := (instruction >> 9) & 0x7
		src := (instruction >> 6) & 0x7

		mc.State.Registers[dest] = ^mc.State.Registers[src]
		mc.setFlags(mc.State.Registers[dest])

	// ST   |0011    |SR   |PCoffset9         | Store
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_ST:
		src := (instruction >> 9) & 0x7
		addr := mc.State.Program + encoding.SignExtend(instruction&0x1FF, 9)

		mc.write(addr, mc.State.Registers[src])

	// STI  |1011    |SR   |PCoffset9         | Store indirect
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_STI:
		src := (instruction >> 9) & 0x7
		addr := mc.State.Program + encoding.SignExtend(instruction&0x1FF, 9)

		mc.write(mc.read(addr), mc.State.Registers[src])

	// STR  |0111    |SR   |BaseR|offset6     | Store base+offset
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_STR:
		src := (instruction >> 9) & 0x7
		base := (instruction >> 6) & 0x7
		addr := mc.State.Registers[base] +
			encoding.SignExtend(instruction&0x3F, 6)

		mc.write(addr, mc.State.Registers[src])

	// TRAP |1111    |0000   |trapvect8       | Software trap
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_TRAP:
		mc.State.Registers[7] = mc.State.Program

		if err := mc.trap(instruction & 0xFF); err != nil {
			if errors.Is(err, ErrUnknownTrap) {
				break
			}

			return &OpcodeError{Addr: pc, Instr: instruction, Err: err}
		}

	// RTI  |1000    | reserved -- no supervisor mode to return from |
	// RES  |1101    | reserved                                      |
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	default:
		err := &OpcodeError{Addr: pc, Instr: instruction, Err: ErrReservedOpcode}

		if strict {
			return err
		}
	}

	if mc.Hooks != nil {
		mc.Hooks.Step(mc)
	}

	return nil
}
