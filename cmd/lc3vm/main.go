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
	"context"
	"encoding/gob"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/opcode3000/lc3vm/pkg/assembler"
	"github.com/opcode3000/lc3vm/pkg/debugger"
	"github.com/opcode3000/lc3vm/pkg/machine"
)

var helpvar bool
var debugvar bool
var strictvar bool
var shouldexit bool

const usage = "lc3vm [-debug] [-strict] filename"

func init() {
	exe, _ := os.Executable()
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	log.SetOutput(os.Stderr)
}

func init() {
	flag.BoolVar(&helpvar, "help", false, "Displays command usage")
	flag.BoolVar(&debugvar, "debug", false, "Runs the machine in a debug CLI")
	flag.BoolVar(
		&strictvar, "strict", false,
		"Treats a reserved opcode (RTI/RES) as a fatal error instead of "+
			"skipping it",
	)
	flag.Parse()
}

func lc3vm() int {
	if helpvar {
		fmt.Println(usage)
		flag.PrintDefaults()
		return 0
	}

	args := flag.Args()

	if len(args) != 1 {
		log.Println(usage)
		return 1
	}

	file, err := os.Open(args[0])

	if err != nil {
		log.Println(err)
		return 1
	}

	defer file.Close()

	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()

	var mc machine.Machine
	var dh machine.DeviceHandler
	dh.Keyboard = machine.NewTermDevice(os.Stdin)
	dh.Display = stdout
	mc.Devices = &dh

	var dbg debugger.Debugger

	if debugvar {
		dbg.HandleBreak = handleBreak
		dbg.HandleRead = handleRead
		dbg.HandleWrite = handleWrite
		dbg.Binary = file
		mc.Hooks = &dbg

		filename := filepath.Dir(args[0]) + "/" + strings.ReplaceAll(
			filepath.Base(args[0]), filepath.Ext(args[0]), ".lc3db",
		)

		if file, err := os.Open(filename); err == nil {
			var symtable assembler.SymTable

			if err := gob.NewDecoder(file).Decode(&symtable); err == nil {
				dbg.SymTable = &symtable
			} else {
				log.Println("Error loading symbol file")
				log.Println(err)
			}

			file.Close()
		} else {
			log.Println("Error loading symbol file")
			log.Println(err)
		}

		if dbg.SymTable != nil && dbg.SymTable.Source != "" {
			if file, err := os.Open(dbg.SymTable.Source); err == nil {
				dbg.Source = file
				defer file.Close()
			} else {
				log.Println("Error loading source file")
				log.Println(err)
			}
		}
	}

	if err := mc.LoadImage(file); err != nil {
		log.Println(err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	enterRawTerm()
	defer exitRawTerm()

	if debugvar {
		debugREPL(&dbg, &mc)
	}

	if shouldexit {
		return 0
	}

	if err := mc.Run(ctx, strictvar); err != nil {
		exitRawTerm()
		log.Println(err)

		if errors.Is(err, machine.ErrReservedOpcode) {
			return 2
		}

		return 1
	}

	return 0
}

func main() {
	os.Exit(lc3vm())
}
