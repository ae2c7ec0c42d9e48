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
	"io"
)

// KeyboardDevice is polled by reads of DEV_KBSR and by the blocking GETC
// and IN traps. Poll must not block: it returns immediately with ok=false
// when no byte is currently available.
type KeyboardDevice interface {
	Poll() (c byte, ok bool)
}

// DeviceHandler wires the machine to its console. Either field may be
// nil, in which case the keyboard always reports "no key" and writes to
// the display are discarded.
type DeviceHandler struct {
	Keyboard KeyboardDevice
	Display  io.Writer
}

// MachineState is the full mutable state of one LC-3 core: eight general
// registers, PC, COND and the 64K word address space. It is deliberately
// a plain value so tests can construct one, mutate it directly, and diff
// it against an expected result without touching the Machine at all.
type MachineState struct {
	Registers [8]uint16
	Program   uint16 // PC
	Condition uint16 // COND, one-hot FLAG_POS/FLAG_ZERO/FLAG_NEG
	Memory    [1 << 16]uint16
	Halted    bool
}

// Hooks lets a debugger observe execution without the interpreter
// depending on any particular debugger implementation.
type Hooks interface {
	Step(mc *Machine)
	Read(addr uint16, mc *Machine)
	Write(addr uint16, mc *Machine)
}

// Machine is one LC-3 core: its state plus the collaborators (console,
// debugger) the spec treats as boundary concerns. The zero Machine is
// usable after State.Reset(); Devices and Hooks may be left nil.
type Machine struct {
	Devices *DeviceHandler
	State   MachineState
	Hooks   Hooks
}
