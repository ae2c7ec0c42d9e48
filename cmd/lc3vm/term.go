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
	"os"

	"golang.org/x/sys/unix"
)

// savedTermios holds stdin's terminal settings as they were before
// enterRawTerm last touched them, so exitRawTerm can put them back.
var savedTermios unix.Termios

func getTermios() *unix.Termios {
	termios, err := unix.IoctlGetTermios(int(os.Stdin.Fd()), unix.TCGETS)
	if err != nil {
		panic(err)
	}
	return termios
}

func setTermios(termios *unix.Termios) {
	if err := unix.IoctlSetTermios(int(os.Stdin.Fd()), unix.TCSETS, termios); err != nil {
		panic(err)
	}
}

// enterRawTerm disables line buffering and echo on stdin so the VM's
// GETC/IN traps see keystrokes as they happen rather than after Enter,
// and saves the prior settings for exitRawTerm to restore.
func enterRawTerm() {
	termios := getTermios()
	savedTermios = *termios

	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.INLCR
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8

	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	setTermios(termios)
}

func exitRawTerm() {
	setTermios(&savedTermios)
}
