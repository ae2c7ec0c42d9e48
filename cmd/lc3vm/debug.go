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

package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/opcode3000/lc3vm/pkg/debugger"
	"github.com/opcode3000/lc3vm/pkg/encoding"
	"github.com/opcode3000/lc3vm/pkg/machine"
)

var lastcmd []string

// countFmt builds a "#0<N>d: ..." Printf format wide enough to
// right-justify indices up to n without reallocating per call site.
func countFmt(n int, rest string) string {
	digits := int64(math.Floor(math.Log10(float64(n+1)))) + 1
	return fmt.Sprintf("#%%0%dd: %s\n", digits, rest)
}

func debugBreak(dbg *debugger.Debugger, args []string) {
	const usage = "break [add|list|remove]"

	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd, args := args[0], args[1:]

	switch cmd {
	case "a", "add":
		const usage = "break add [0x####]"

		if len(args) != 1 {
			log.Println(usage)
			return
		}

		addr, err := encoding.DecodeHex(args[0])
		if err != nil {
			log.Println(err)
			return
		}

		for _, breakpoint := range dbg.Breakpoints {
			if breakpoint.Addr == addr {
				return
			}
		}

		dbg.Breakpoints = append(dbg.Breakpoints, debugger.Breakpoint{Addr: addr})
		fmt.Printf("Breakpoint added [%#04x]\n", addr)

	case "l", "ls", "list":
		const usage = "break list"

		if len(args) != 0 {
			log.Println(usage)
			return
		}

		fmtstring := countFmt(len(dbg.Breakpoints), "%#x")
		for i, breakpoint := range dbg.Breakpoints {
			log.Printf(fmtstring, i, breakpoint.Addr)
		}

	case "r", "rm", "remove":
		const usage = "break remove [#]"

		i, ok := parseIndex(args, len(dbg.Breakpoints))
		if !ok {
			log.Println(usage)
			return
		}

		dbg.Breakpoints[i] = dbg.Breakpoints[len(dbg.Breakpoints)-1]
		dbg.Breakpoints = dbg.Breakpoints[:len(dbg.Breakpoints)-1]
		fmt.Printf("Breakpoint removed [%d]\n", i)

	case "clear":
		dbg.Breakpoints = nil
		fmt.Println("Breakpoints reset")

	default:
		log.Printf("break: '%s' is not a valid command\n", cmd)
	}
}

// parseIndex parses args[0] as a slice index valid for a slice of the
// given length, reporting success. Used by the various "remove #"
// subcommands; the usage message on failure is the caller's job since
// it differs per command.
func parseIndex(args []string, length int) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}

	i, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || i < 0 || i >= int64(length) {
		return 0, false
	}

	return int(i), true
}

func watchpointLabel(t debugger.WatchpointType) string {
	switch t {
	case debugger.ReadWatch:
		return "read"
	case debugger.WriteWatch:
		return "write"
	default:
		return "readwrite"
	}
}

func watchpointTitle(t debugger.WatchpointType) string {
	switch t {
	case debugger.ReadWatch:
		return "Read"
	case debugger.WriteWatch:
		return "Write"
	default:
		return "ReadWrite"
	}
}

func debugWatch(dbg *debugger.Debugger, args []string) {
	const usage = "watch [add|list|rm]"

	if len(args) == 0 {
		log.Println(usage)
		return
	}

	cmd, args := args[0], args[1:]

	switch cmd {
	case "a", "add":
		const usage = "watch add [0x####] [read|write|readwrite]"

		if len(args) != 2 {
			log.Println(usage)
			return
		}

		addr, err := encoding.DecodeHex(args[0])
		if err != nil {
			log.Println(err)
			return
		}

		var wtype debugger.WatchpointType
		switch args[1] {
		case "r", "read":
			wtype = debugger.ReadWatch
		case "w", "write":
			wtype = debugger.WriteWatch
		case "rw", "rwrite", "readwrite":
			wtype = debugger.ReadWriteWatch
		default:
			log.Println(usage)
			return
		}

		for _, watchpoint := range dbg.Watchpoints {
			if watchpoint.Addr == addr && watchpoint.Type == wtype {
				return
			}
		}

		dbg.Watchpoints = append(dbg.Watchpoints, debugger.Watchpoint{Addr: addr, Type: wtype})
		fmt.Printf("Watchpoint added [%#04x] (%s)\n", addr, watchpointTitle(wtype))

	case "l", "ls", "list":
		const usage = "watch list"

		if len(args) != 0 {
			log.Println(usage)
			return
		}

		fmtstring := countFmt(len(dbg.Watchpoints), "%#x %s")
		for i, watchpoint := range dbg.Watchpoints {
			log.Printf(fmtstring, i, watchpoint.Addr, watchpointLabel(watchpoint.Type))
		}

	case "r", "rm", "remove":
		const usage = "watch rm [#]"

		i, ok := parseIndex(args, len(dbg.Watchpoints))
		if !ok {
			log.Println(usage)
			return
		}

		dbg.Watchpoints[i] = dbg.Watchpoints[len(dbg.Watchpoints)-1]
		dbg.Watchpoints = dbg.Watchpoints[:len(dbg.Watchpoints)-1]
		fmt.Printf("Watchpoint removed [%d]\n", i)

	case "clear":
		dbg.Watchpoints = nil
		fmt.Println("Watchpoints reset")

	default:
		log.Printf("watch: '%s' is not a valid command\n", cmd)
	}
}

var registerNames = [...]string{"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7"}

func debugReg(dbg *debugger.Debugger, mc *machine.MachineState, args []string) {
	const usage = "register [R#|PC] [0x####]"

	if len(args) == 0 {
		printRegisters(mc)
		return
	}

	if len(args) != 2 {
		log.Println(usage)
		return
	}

	value, err := encoding.DecodeHex(args[1])
	if err != nil {
		log.Println(err)
		return
	}

	name := strings.ToUpper(args[0])

	if name == "PC" {
		mc.Program = value
	} else {
		reg, ok := registerIndex(name)
		if !ok {
			log.Println("Invalid register")
			return
		}
		mc.Registers[reg] = value
	}

	fmt.Printf("\033[1m%s:\033[0m %#04x\n", name, value)
}

func registerIndex(name string) (int, bool) {
	for i, reg := range registerNames {
		if reg == name {
			return i, true
		}
	}
	return 0, false
}

func printRegisters(mc *machine.MachineState) {
	for i, register := range mc.Registers {
		fmt.Printf("\033[1mR%d:\033[0m %#04x\t", i, register)
		if i == (len(mc.Registers)-1)/2 {
			fmt.Println()
		}
	}

	fmt.Println()
	fmt.Printf("\033[1mPC:\033[0m %#04x\t\033[1mCOND:\033[0m %#04x\n", mc.Program, mc.Condition)
}

// findLabel looks up a label by name, the inverse of SymTable.Labels'
// address-keyed map. Shared by debugSource and debugJump, both of
// which accept either a hex address or a label name.
func findLabel(dbg *debugger.Debugger, name string) (uint16, bool) {
	if dbg.SymTable == nil {
		return 0, false
	}

	for addr, label := range dbg.SymTable.Labels {
		if label == name {
			return addr, true
		}
	}

	return 0, false
}

func debugSource(dbg *debugger.Debugger, mc *machine.MachineState, args []string) {
	const usage = "source [0x####|label] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	if dbg.SymTable == nil {
		fmt.Println("No symbol table loaded")
		return
	}

	addr := mc.Program
	size := uint16(3)

	if len(args) > 0 {
		if labelAddr, ok := findLabel(dbg, args[0]); ok {
			addr = labelAddr
		} else if hexAddr, err := encoding.DecodeHex(args[0]); err == nil {
			addr = hexAddr
		} else if value, err := strconv.ParseInt(args[0], 10, 16); err == nil {
			size = uint16(value)
		} else {
			log.Println(err)
			return
		}
	}

	if len(args) > 1 {
		value, err := strconv.ParseInt(args[1], 10, 16)
		if err != nil {
			log.Println(err)
			return
		}
		size = uint16(value)
	}

	dbg.PrintSource(addr, size)
}

func debugLabels(dbg *debugger.Debugger, args []string) {
	const usage = "labels"

	if len(args) > 0 {
		fmt.Println(usage)
		return
	}

	if dbg.SymTable == nil {
		fmt.Println("No symbol table loaded")
		return
	}

	keys := make([]uint16, 0, len(dbg.SymTable.Labels))
	for addr := range dbg.SymTable.Labels {
		keys = append(keys, addr)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, addr := range keys {
		fmt.Printf("\033[1m[%#04x]\033[0m %s\n", addr, dbg.SymTable.Labels[addr])
	}
}

func debugJump(dbg *debugger.Debugger, mc *machine.MachineState, args []string) {
	const usage = "jump [0x####|label]"

	if len(args) != 1 {
		fmt.Println(usage)
		return
	}

	if addr, err := encoding.DecodeHex(args[0]); err == nil {
		mc.Program = addr
		fmt.Printf("\033[1mPC:\033[0m %#04x\n", addr)
		return
	}

	if dbg.SymTable == nil {
		fmt.Println("No symbol table loaded")
		return
	}

	if addr, ok := findLabel(dbg, args[0]); ok {
		mc.Program = addr
		fmt.Printf("\033[1mPC:\033[0m %#04x \033[1;30m(%s)\033[0m\n", addr, args[0])
		return
	}

	fmt.Printf("Unable to find '%s'\n", args[0])
}

func debugMemory(dbg *debugger.Debugger, mc *machine.MachineState, args []string) {
	const usage = "memory [0x####|#] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	addr := mc.Program
	size := uint16(1)

	if len(args) > 0 {
		if hexAddr, err := encoding.DecodeHex(args[0]); err == nil {
			addr = hexAddr
		} else if value, err := strconv.ParseInt(args[0], 10, 16); err == nil {
			size = uint16(value)
		} else {
			log.Println(err)
			return
		}
	}

	if len(args) > 1 {
		value, err := strconv.ParseInt(args[1], 10, 16)
		if err != nil {
			log.Println(err)
			return
		}
		size = uint16(value)
	}

	dbg.PrintMem(mc, addr, size)
}

func debugSet(dbg *debugger.Debugger, mc *machine.MachineState, args []string) {
	const usage = "set [0x####] [0x####]"

	if len(args) != 2 {
		log.Println(usage)
		return
	}

	addr, err := encoding.DecodeHex(args[0])
	if err != nil {
		log.Println(err)
		return
	}

	value, err := encoding.DecodeHex(args[1])
	if err != nil {
		log.Println(err)
		return
	}

	mc.Memory[addr] = value
	dbg.PrintMem(mc, addr, 1)
}

// replCommand is one REPL verb. It reports whether the REPL should
// stop reading input and hand control back to the run loop (true for
// continue/next/quit, false for everything that just prints or
// mutates debugger state in place).
type replCommand func(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool

var replCommands map[string]replCommand

func init() {
	replCommands = map[string]replCommand{
		"b": cmdBreak, "bp": cmdBreak, "break": cmdBreak, "breakpoint": cmdBreak,

		"w": cmdWatch, "wp": cmdWatch, "watch": cmdWatch, "watchpoint": cmdWatch,

		"r": cmdRegister, "reg": cmdRegister, "register": cmdRegister, "registers": cmdRegister,

		"s": cmdSource, "src": cmdSource, "source": cmdSource,

		"l": cmdLabels, "label": cmdLabels, "labels": cmdLabels,

		"j": cmdJump, "jmp": cmdJump, "jump": cmdJump,

		"m": cmdMemory, "mem": cmdMemory, "memory": cmdMemory,

		"set": cmdSet,

		"c": cmdContinue, "continue": cmdContinue,
		"n": cmdNext, "next": cmdNext,
		"q": cmdQuit, "quit": cmdQuit, "exit": cmdQuit,

		"clear": cmdClear,
		"reset": cmdReset,
	}
}

func cmdBreak(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	debugBreak(dbg, args)
	return false
}

func cmdWatch(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	debugWatch(dbg, args)
	return false
}

func cmdRegister(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	debugReg(dbg, &mc.State, args)
	return false
}

func cmdSource(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	debugSource(dbg, &mc.State, args)
	return false
}

func cmdLabels(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	debugLabels(dbg, args)
	return false
}

func cmdJump(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	debugJump(dbg, &mc.State, args)
	return false
}

func cmdMemory(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	debugMemory(dbg, &mc.State, args)
	return false
}

func cmdSet(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	debugSet(dbg, &mc.State, args)
	return false
}

func cmdContinue(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	dbg.Break = false
	return true
}

func cmdNext(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	dbg.Break = true
	return true
}

func cmdQuit(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	shouldexit = true
	return true
}

func cmdClear(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	fmt.Print("\033[H\033[2J")
	return false
}

func cmdReset(dbg *debugger.Debugger, mc *machine.Machine, args []string) bool {
	if dbg.Binary == nil {
		fmt.Println("No binary file loaded")
		return false
	}

	if _, err := dbg.Binary.Seek(0, io.SeekStart); err != nil {
		log.Println(err)
		return false
	}

	if err := mc.LoadImage(dbg.Binary); err != nil {
		log.Println(err)
	}

	return false
}

func debugREPL(dbg *debugger.Debugger, mc *machine.Machine) {
	exitRawTerm()
	defer enterRawTerm()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\033[1;30m(dbg)\033[0m ")

		if !scanner.Scan() {
			fmt.Println()
			shouldexit = true
			return
		}

		args := strings.Split(strings.TrimSpace(scanner.Text()), " ")

		if len(args[0]) == 0 {
			if len(lastcmd) == 0 {
				continue
			}
			args = lastcmd
		} else {
			lastcmd = append([]string(nil), args...)
		}

		cmd, args := args[0], args[1:]

		handler, ok := replCommands[cmd]
		if !ok {
			fmt.Printf("error: '%s' is not a valid command\n", cmd)
			continue
		}

		if handler(dbg, mc, args) {
			return
		}
	}
}

func handleBreak(dbg *debugger.Debugger, mc *machine.Machine) {
	if !dbg.Break {
		fmt.Println()
		fmt.Println("Program stopped")
		dbg.PrintSource(mc.State.Program, 8)
	}
	debugREPL(dbg, mc)
}

func handleRead(addr uint16, dbg *debugger.Debugger, mc *machine.Machine) {
	fmt.Println()
	fmt.Println("Program stopped")
	dbg.PrintMem(&mc.State, addr, 1)
	debugREPL(dbg, mc)
}

func handleWrite(addr uint16, dbg *debugger.Debugger, mc *machine.Machine) {
	fmt.Println()
	fmt.Println("Program stopped")
	dbg.PrintMem(&mc.State, addr, 1)
	debugREPL(dbg, mc)
}
