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

package debugger

import (
	"bufio"
	"fmt"
	"os"

	"github.com/opcode3000/lc3vm/pkg/machine"
)

// Step satisfies machine.Hooks: called once per fetch-decode-execute
// cycle, after the instruction has already run.
func (dbg *Debugger) Step(mc *machine.Machine) {
	if dbg.Break || dbg.atBreakpoint(mc.State.Program) {
		dbg.HandleBreak(dbg, mc)
	}
}

func (dbg *Debugger) atBreakpoint(addr uint16) bool {
	for _, breakpoint := range dbg.Breakpoints {
		if breakpoint.Addr == addr {
			return true
		}
	}
	return false
}

// Read and Write satisfy machine.Hooks, firing HandleRead/HandleWrite
// whenever a watchpoint matching the access kind covers addr.
func (dbg *Debugger) Read(addr uint16, mc *machine.Machine) {
	if dbg.matchWatch(addr, WriteWatch) {
		dbg.HandleRead(addr, dbg, mc)
	}
}

func (dbg *Debugger) Write(addr uint16, mc *machine.Machine) {
	if dbg.matchWatch(addr, ReadWatch) {
		dbg.HandleWrite(addr, dbg, mc)
	}
}

// matchWatch reports whether some watchpoint on addr cares about this
// access; excluded is the watch type that does NOT apply (WriteWatch
// for a read access, ReadWatch for a write access), since ReadWriteWatch
// watchpoints always apply.
func (dbg *Debugger) matchWatch(addr uint16, excluded WatchpointType) bool {
	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Addr == addr && watchpoint.Type != excluded {
			return true
		}
	}
	return false
}

// sourceLines inverts SymTable.Symbols (address -> line byte offset)
// into offset -> address, so PrintSource can look up the address
// annotating each scanned line in constant time instead of rescanning
// the whole table per line.
func (dbg *Debugger) sourceLines() map[int64]uint16 {
	lines := make(map[int64]uint16, len(dbg.SymTable.Symbols))
	for addr, offset := range dbg.SymTable.Symbols {
		lines[offset] = addr
	}
	return lines
}

func (dbg *Debugger) PrintSource(addr uint16, count uint16) {
	if dbg.Source == nil {
		fmt.Println("No source file loaded")
		return
	}

	if dbg.SymTable == nil {
		fmt.Println("No symbol table loaded")
		return
	}

	offset, exists := dbg.SymTable.Symbols[addr]
	if !exists {
		fmt.Printf("No instruction found at %#04x\n", addr)
		return
	}

	if _, err := dbg.Source.Seek(offset, os.SEEK_SET); err != nil {
		panic(err)
	}

	lines := dbg.sourceLines()
	scanner := bufio.NewScanner(dbg.Source)
	scanner.Split(bufio.ScanLines)

	for i := uint16(0); i < count && scanner.Scan(); i++ {
		line := scanner.Text()

		if lineaddr, found := lines[offset]; found {
			fmt.Printf("\033[1m[%#04x]\033[0m ", lineaddr)
		} else {
			fmt.Print("\033[1;30m~~~~~~~~\033[0m ")
		}

		fmt.Println(line)
		offset += int64(len(line) + 1)
	}

	if err := scanner.Err(); err != nil {
		fmt.Println(err)
	}
}

// PrintMem dumps count words of memory starting at addr, four per
// line, each bracketed with its address and dimmed when zero.
func (dbg *Debugger) PrintMem(mc *machine.MachineState, addr, count uint16) {
	const perLine = 4

	for i := addr; i < addr+count; i++ {
		if col := i - addr; col%perLine == 0 {
			if col != 0 {
				fmt.Println()
			}
			fmt.Printf("\033[1m[%#04x]\033[0m ", i)
		}

		if word := mc.Memory[i]; word == 0 {
			fmt.Printf("\033[1;30m%#04x\033[0m ", word)
		} else {
			fmt.Printf("%#04x ", word)
		}
	}

	fmt.Println()
}
