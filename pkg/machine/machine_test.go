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

package machine_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/opcode3000/lc3vm/pkg/machine"
)

type testCase struct {
	Name      string
	Steps     uint
	Registers [8]uint16
	Program   uint16
	Condition uint16
	Memory    map[uint16]uint16
	Keyboard  string
	Display   string

	WantRegisters [8]uint16
	WantProgram   uint16
	WantCondition uint16
	WantMemory    map[uint16]uint16
	WantDisplay   string
}

func runTest(t *testing.T, tc *testCase) *machine.Machine {
	t.Helper()

	var mc machine.Machine
	var devices machine.DeviceHandler
	var displayBuf bytes.Buffer

	if tc.Keyboard != "" {
		devices.Keyboard = machine.NewTermDevice(bytes.NewReader([]byte(tc.Keyboard)))
	}
	if tc.Display != "" || tc.WantDisplay != "" {
		devices.Display = &displayBuf
	}
	if devices.Keyboard != nil || devices.Display != nil {
		mc.Devices = &devices
	}

	mc.State.Reset()
	mc.State.Registers = tc.Registers
	mc.State.Program = tc.Program
	mc.State.Condition = tc.Condition

	for addr, value := range tc.Memory {
		mc.State.Memory[addr] = value
	}

	steps := tc.Steps
	if steps == 0 {
		steps = 1
	}

	for i := uint(0); i < steps; i++ {
		if err := mc.Step(false); err != nil {
			t.Fatalf("Step() returned unexpected error: %v", err)
		}
	}

	if mc.State.Registers != tc.WantRegisters {
		t.Errorf("Registers = %#04x, want %#04x", mc.State.Registers, tc.WantRegisters)
	}

	if mc.State.Program != tc.WantProgram {
		t.Errorf("Program = %#04x, want %#04x", mc.State.Program, tc.WantProgram)
	}

	if mc.State.Condition != tc.WantCondition {
		t.Errorf("Condition = %#03b, want %#03b", mc.State.Condition, tc.WantCondition)
	}

	for addr, want := range tc.WantMemory {
		if have := mc.State.Memory[addr]; have != want {
			t.Errorf("Memory[%#04x] = %#04x, want %#04x", addr, have, want)
		}
	}

	if tc.WantDisplay != "" && displayBuf.String() != tc.WantDisplay {
		t.Errorf("Display = %q, want %q", displayBuf.String(), tc.WantDisplay)
	}

	return &mc
}

func TestAdd(t *testing.T) {
	runTest(t, &testCase{
		Name:          "immediate",
		Program:       0x3000,
		Memory:        map[uint16]uint16{0x3000: 0x1261}, // ADD R1,R1,#1
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_POS,
		WantRegisters: [8]uint16{0: 0, 1: 1},
	})

	runTest(t, &testCase{
		Name:          "register",
		Program:       0x3000,
		Registers:     [8]uint16{1: 2, 2: 3},
		Memory:        map[uint16]uint16{0x3000: 0x1042}, // ADD R0,R1,R2
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_POS,
		WantRegisters: [8]uint16{0: 5, 1: 2, 2: 3},
	})

	runTest(t, &testCase{
		Name:          "wraps at 16 bits",
		Program:       0x3000,
		Registers:     [8]uint16{1: 0xFFFF},
		Memory:        map[uint16]uint16{0x3000: 0x1261}, // ADD R1,R1,#1
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_ZERO,
		WantRegisters: [8]uint16{1: 0},
	})
}

func TestAndZero(t *testing.T) {
	// AND R0,R0,#0
	runTest(t, &testCase{
		Program:       0x3000,
		Registers:     [8]uint16{0: 0x1234},
		Memory:        map[uint16]uint16{0x3000: 0x5020},
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_ZERO,
		WantRegisters: [8]uint16{0: 0},
	})
}

func TestNotAndBranch(t *testing.T) {
	// NOT R0,R0 then BRz #1 (does not branch because COND = N)
	mc := runTest(t, &testCase{
		Steps:         2,
		Program:       0x3000,
		Registers:     [8]uint16{0: 0},
		Memory:        map[uint16]uint16{0x3000: 0x903F, 0x3001: 0x0401},
		WantProgram:   0x3002,
		WantCondition: machine.FLAG_NEG,
		WantRegisters: [8]uint16{0: 0xFFFF},
	})

	if mc.State.Program != 0x3002 {
		t.Errorf("BRz should not have branched, Program = %#04x", mc.State.Program)
	}
}

func TestBranchUnconditional(t *testing.T) {
	// BRnzp #2 always branches regardless of COND.
	runTest(t, &testCase{
		Program:       0x3000,
		Condition:     machine.FLAG_NEG,
		Memory:        map[uint16]uint16{0x3000: 0x0E02},
		WantProgram:   0x3003,
		WantCondition: machine.FLAG_NEG,
	})
}

func TestBranchNeverFires(t *testing.T) {
	// BR with mask 0 never branches, even though the architecture never
	// actually encodes this form for a meaningful program.
	runTest(t, &testCase{
		Program:       0x3000,
		Condition:     machine.FLAG_ZERO,
		Memory:        map[uint16]uint16{0x3000: 0x0010},
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_ZERO,
	})
}

func TestJSRAndRET(t *testing.T) {
	// JSR #2 (to 0x3003), ADD R1,R1,#1, JMP R7 (RET)
	runTest(t, &testCase{
		Steps:         3,
		Program:       0x3000,
		Memory: map[uint16]uint16{
			0x3000: 0x4802, // JSR #2
			0x3003: 0x1261, // ADD R1,R1,#1
			0x3004: 0xC1C0, // JMP R7
		},
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_POS,
		WantRegisters: [8]uint16{1: 1, 7: 0x3001},
	})
}

func TestJSRR(t *testing.T) {
	runTest(t, &testCase{
		Program:       0x3000,
		Registers:     [8]uint16{2: 0x4000},
		Memory:        map[uint16]uint16{0x3000: 0x4080}, // JSRR R2
		WantProgram:   0x4000,
		WantRegisters: [8]uint16{2: 0x4000, 7: 0x3001},
	})
}

func TestLDI(t *testing.T) {
	// LDI R0, +2: PC is already advanced to 0x3001 by the time the
	// handler computes its address, so the pointer lives at 0x3003, not
	// 0x3002 -- PC-before-increment would break the "PC advances before
	// the handler runs" invariant.
	runTest(t, &testCase{
		Program: 0x3000,
		Memory: map[uint16]uint16{
			0x3000: 0xA002,
			0x3003: 0x3005,
			0x3005: 0x00AA,
		},
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_POS,
		WantRegisters: [8]uint16{0: 0x00AA},
	})
}

func TestLDR(t *testing.T) {
	// LDR R0,R1,#3
	runTest(t, &testCase{
		Program:       0x3000,
		Registers:     [8]uint16{1: 0x4000},
		Memory:        map[uint16]uint16{0x3000: 0x6043, 0x4003: 0x0007},
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_POS,
		WantRegisters: [8]uint16{0: 7, 1: 0x4000},
	})
}

func TestSTAndLD(t *testing.T) {
	// ST R0,#1 stores R0 at 0x3002; LD R1,#0 then reads it back.
	runTest(t, &testCase{
		Steps:     2,
		Program:   0x3000,
		Registers: [8]uint16{0: 0x00AB},
		Memory: map[uint16]uint16{
			0x3000: 0x3001, // ST R0, #1 -> mem[0x3002]
			0x3001: 0x2200, // LD R1, #0 -> mem[0x3002]
		},
		WantProgram:   0x3002,
		WantCondition: machine.FLAG_POS,
		WantRegisters: [8]uint16{0: 0x00AB, 1: 0x00AB},
		WantMemory:    map[uint16]uint16{0x3002: 0x00AB},
	})
}

func TestSTIAndSTR(t *testing.T) {
	// STI R0,#1: mem[0x3002] holds the target address 0x4000. COND
	// starts at Z and must stay there: stores never touch COND.
	runTest(t, &testCase{
		Program:   0x3000,
		Condition: machine.FLAG_ZERO,
		Registers: [8]uint16{0: 0x0042},
		Memory: map[uint16]uint16{
			0x3000: 0xB001,
			0x3002: 0x4000,
		},
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_ZERO,
		WantRegisters: [8]uint16{0: 0x0042},
		WantMemory:    map[uint16]uint16{0x3002: 0x4000, 0x4000: 0x0042},
	})

	// STR R0,R1,#1: stores R0 at R1+1 = 0x4001.
	runTest(t, &testCase{
		Program:   0x3000,
		Condition: machine.FLAG_ZERO,
		Registers: [8]uint16{0: 0x0042, 1: 0x4000},
		Memory: map[uint16]uint16{
			0x3000: 0x7041,
		},
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_ZERO,
		WantRegisters: [8]uint16{0: 0x0042, 1: 0x4000},
		WantMemory:    map[uint16]uint16{0x4001: 0x0042},
	})
}

func TestLEADoesNotTouchMemory(t *testing.T) {
	// LEA R0,#5: should never dereference the computed address.
	runTest(t, &testCase{
		Program:       0x3000,
		Memory:        map[uint16]uint16{0x3000: 0xE005, 0x3006: 0xDEAD},
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_POS,
		WantRegisters: [8]uint16{0: 0x3006},
		WantMemory:    map[uint16]uint16{0x3006: 0xDEAD},
	})
}

func TestJMPUsesRegisterValueNotIndex(t *testing.T) {
	// JMP R3 where R3 holds 0x5000: PC must become 0x5000, never 3.
	runTest(t, &testCase{
		Program:       0x3000,
		Registers:     [8]uint16{3: 0x5000},
		Memory:        map[uint16]uint16{0x3000: 0xC0C0},
		WantProgram:   0x5000,
		WantRegisters: [8]uint16{3: 0x5000},
	})
}

func TestReservedOpcodePermissive(t *testing.T) {
	var mc machine.Machine
	mc.State.Reset()
	mc.State.Program = 0x3000
	mc.State.Memory[0x3000] = 0x8000 // RTI, opcode 1000

	if err := mc.Step(false); err != nil {
		t.Fatalf("permissive Step() returned %v, want nil", err)
	}

	if mc.State.Program != 0x3001 {
		t.Errorf("Program = %#04x, want 0x3001", mc.State.Program)
	}
}

func TestReservedOpcodeStrict(t *testing.T) {
	var mc machine.Machine
	mc.State.Reset()
	mc.State.Program = 0x3000
	mc.State.Memory[0x3000] = 0xD000 // RES, opcode 1101

	err := mc.Step(true)

	if err == nil {
		t.Fatal("strict Step() returned nil, want ErrReservedOpcode")
	}

	if !errors.Is(err, machine.ErrReservedOpcode) {
		t.Errorf("Step() error = %v, want ErrReservedOpcode", err)
	}
}

func TestTrapPutsHi(t *testing.T) {
	// LEA R0,#2; PUTS; HALT; 'H'; 'i'; 0
	runTest(t, &testCase{
		Steps:   2,
		Program: 0x3000,
		Memory: map[uint16]uint16{
			0x3000: 0xE002, // LEA R0, #2 -> 0x3003
			0x3001: 0xF022, // PUTS
			0x3002: 0xF025, // HALT
			0x3003: 0x0048, // 'H'
			0x3004: 0x0069, // 'i'
			0x3005: 0x0000,
		},
		WantProgram:   0x3002,
		WantCondition: machine.FLAG_POS,
		WantRegisters: [8]uint16{0: 0x3003, 7: 0x3002},
		Display:       " ",
		WantDisplay:   "Hi",
	})
}

func TestTrapOut(t *testing.T) {
	runTest(t, &testCase{
		Program:       0x3000,
		Registers:     [8]uint16{0: 'A'},
		Memory:        map[uint16]uint16{0x3000: 0xF021},
		WantProgram:   0x3001,
		WantRegisters: [8]uint16{0: 'A', 7: 0x3001},
		Display:       " ",
		WantDisplay:   "A",
	})
}

func TestTrapPutsp(t *testing.T) {
	// Two packed characters per word: "ab" then a lone "c".
	runTest(t, &testCase{
		Steps:   1,
		Program: 0x3000,
		Registers: [8]uint16{
			0: 0x4000,
		},
		Memory: map[uint16]uint16{
			0x3000: 0xF024,
			0x4000: 0x6261, // 'a' 'b'
			0x4001: 0x0063, // 'c' \0
			0x4002: 0x0000,
		},
		WantProgram:   0x3001,
		WantRegisters: [8]uint16{0: 0x4000, 7: 0x3001},
		Display:       " ",
		WantDisplay:   "abc",
	})
}

func TestTrapHalt(t *testing.T) {
	var mc machine.Machine
	mc.State.Reset()
	mc.State.Program = 0x3000
	mc.State.Memory[0x3000] = 0xF025

	if err := mc.Step(false); err != nil {
		t.Fatalf("Step() returned %v", err)
	}

	if !mc.State.Halted {
		t.Error("Halted = false after TRAP HALT")
	}
}

func TestTrapGetc(t *testing.T) {
	// COND starts at FLAG_NEG and must stay there: TRAP never touches
	// COND, not even GETC's register write.
	runTest(t, &testCase{
		Program:       0x3000,
		Condition:     machine.FLAG_NEG,
		Memory:        map[uint16]uint16{0x3000: 0xF020},
		Keyboard:      "Z",
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_NEG,
		WantRegisters: [8]uint16{0: 'Z', 7: 0x3001},
	})
}

func TestTrapIn(t *testing.T) {
	// Same as TestTrapGetc: IN's register write must not touch COND.
	runTest(t, &testCase{
		Program:       0x3000,
		Condition:     machine.FLAG_NEG,
		Memory:        map[uint16]uint16{0x3000: 0xF023},
		Keyboard:      "Q",
		WantProgram:   0x3001,
		WantCondition: machine.FLAG_NEG,
		WantRegisters: [8]uint16{0: 'Q', 7: 0x3001},
		WantDisplay:   "Enter a character: Q",
	})
}

func TestTrapUnknownIsNoop(t *testing.T) {
	var mc machine.Machine
	mc.State.Reset()
	mc.State.Program = 0x3000
	mc.State.Memory[0x3000] = 0xF0FF // TRAP x0FF, undefined

	if err := mc.Step(true); err != nil {
		t.Fatalf("Step() returned %v, want nil (unknown trap is a no-op)", err)
	}

	if mc.State.Program != 0x3001 {
		t.Errorf("Program = %#04x, want 0x3001", mc.State.Program)
	}
}

func TestKeyboardPollCoherence(t *testing.T) {
	dev := machine.NewBufferDevice('x')

	var mc machine.Machine
	mc.Devices = &machine.DeviceHandler{Keyboard: dev}
	mc.State.Reset()

	if have := mc.State.Memory[machine.DEV_KBSR]; have != 0 {
		t.Fatalf("KBSR before any read = %#04x, want 0", have)
	}

	// Reading KBSR triggers a poll. LDR R1,R2,#0 with R2 = DEV_KBSR.
	mc.State.Registers[2] = machine.DEV_KBSR
	mc.State.Program = 0x3000
	mc.State.Memory[0x3000] = 0x6280
	mc.State.Memory[0x3001] = 0x6280

	if err := mc.Step(false); err != nil {
		t.Fatalf("Step() returned %v", err)
	}

	if have := mc.State.Memory[machine.DEV_KBSR]; have != 1<<15 {
		t.Errorf("KBSR after hit = %#04x, want 0x8000", have)
	}

	if have := mc.State.Memory[machine.DEV_KBDR]; have != uint16('x') {
		t.Errorf("KBDR after hit = %#04x, want 'x'", have)
	}

	// Second poll: buffer is now empty.
	if err := mc.Step(false); err != nil {
		t.Fatalf("Step() returned %v", err)
	}

	if have := mc.State.Memory[machine.DEV_KBSR]; have != 0 {
		t.Errorf("KBSR after miss = %#04x, want 0", have)
	}
}

func TestLoadImageHonorsOrigin(t *testing.T) {
	var buf bytes.Buffer
	for _, w := range []uint16{0x3500, 0x1261, 0xF025} {
		binary.Write(&buf, binary.BigEndian, w)
	}

	var mc machine.Machine

	if err := mc.LoadImage(&buf); err != nil {
		t.Fatalf("LoadImage() returned %v", err)
	}

	if have := mc.State.Memory[0x3500]; have != 0x1261 {
		t.Errorf("Memory[0x3500] = %#04x, want 0x1261", have)
	}

	if have := mc.State.Memory[0x3501]; have != 0xF025 {
		t.Errorf("Memory[0x3501] = %#04x, want 0xF025", have)
	}

	if mc.State.Program != machine.PCReset {
		t.Errorf("Program after LoadImage = %#04x, want %#04x", mc.State.Program, machine.PCReset)
	}
}

func TestRunHaltsOnTrap(t *testing.T) {
	var mc machine.Machine
	mc.State.Reset()
	mc.State.Program = 0x3000
	mc.State.Memory[0x3000] = 0xF025 // HALT

	if err := mc.Run(context.Background(), false); err != nil {
		t.Fatalf("Run() returned %v", err)
	}

	if !mc.State.Halted {
		t.Error("Halted = false after Run()")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	var mc machine.Machine
	mc.State.Reset()
	mc.State.Program = 0x3000
	mc.State.Memory[0x3000] = 0x0FFF // BRnzp -1, an infinite loop

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := mc.Run(ctx, false); err != nil {
		t.Fatalf("Run() returned %v", err)
	}

	if mc.State.Halted {
		t.Error("Halted = true, want false: Run should stop on cancellation, not halt")
	}
}
