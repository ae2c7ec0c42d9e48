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
	"fmt"
	"time"
)

// trap dispatches on the low byte of a TRAP instruction. R7 already
// holds the return address by the time trap runs (Step sets it before
// calling in). An unknown vector reports ErrUnknownTrap, which Step
// treats as a no-op; every other failure (console write) is reported as
// ErrIO.
func (mc *Machine) trap(vector uint16) error {
	switch vector {
	case TRAP_GETC:
		// GETC never touches COND -- TRAP is flag-exempt same as every
		// other opcode outside ADD/AND/NOT/LD/LDI/LDR/LEA.
		c := mc.blockingReadByte()
		mc.State.Registers[0] = uint16(c)

	case TRAP_OUT:
		return mc.writeByte(byte(mc.State.Registers[0]))

	case TRAP_PUTS:
		addr := mc.State.Registers[0]

		for {
			w := mc.read(addr)
			if w == 0 {
				break
			}

			if err := mc.writeByte(byte(w)); err != nil {
				return err
			}

			addr++
		}

	case TRAP_IN:
		if err := mc.writeString("Enter a character: "); err != nil {
			return err
		}

		c := mc.blockingReadByte()

		if err := mc.writeByte(c); err != nil {
			return err
		}

		mc.State.Registers[0] = uint16(c)

	case TRAP_PUTSP:
		addr := mc.State.Registers[0]

		for {
			w := mc.read(addr)
			if w == 0 {
				break
			}

			if err := mc.writeByte(byte(w)); err != nil {
				return err
			}

			if hi := byte(w >> 8); hi != 0 {
				if err := mc.writeByte(hi); err != nil {
					return err
				}
			}

			addr++
		}

	case TRAP_HALT:
		mc.State.Halted = true

	default:
		return ErrUnknownTrap
	}

	return nil
}

// blockingReadByte spins on the keyboard poll until a byte arrives. This
// is the one suspension point the fetch loop has, and it reuses the
// exact poll a KBSR read does, so the device only ever has one code path
// to implement.
func (mc *Machine) blockingReadByte() byte {
	if mc.Devices == nil || mc.Devices.Keyboard == nil {
		return 0
	}

	for {
		if c, ok := mc.Devices.Keyboard.Poll(); ok {
			return c
		}

		time.Sleep(keyboardPollInterval)
	}
}

func (mc *Machine) writeByte(c byte) error {
	if mc.Devices == nil || mc.Devices.Display == nil {
		return nil
	}

	if _, err := mc.Devices.Display.Write([]byte{c}); err != nil {
		return fmt.Errorf("lc3vm: console write failed: %w: %v", ErrIO, err)
	}

	return nil
}

func (mc *Machine) writeString(s string) error {
	for _, c := range []byte(s) {
		if err := mc.writeByte(c); err != nil {
			return err
		}
	}

	return nil
}
