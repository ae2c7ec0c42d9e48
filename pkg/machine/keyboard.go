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
	"bufio"
	"io"
)

// TermDevice is a KeyboardDevice backed by an io.Reader. In production
// that reader is stdin in raw mode with VMIN=0/VTIME=0 (cmd/lc3vm sets
// this up), which makes the underlying Read return immediately with
// zero bytes when nothing is waiting -- exactly the non-blocking
// contract Poll needs. Any read error, including io.EOF, is reported as
// "no key" rather than propagated.
type TermDevice struct {
	r *bufio.Reader
}

// NewTermDevice wraps r for polling. r is read one byte at a time.
func NewTermDevice(r io.Reader) *TermDevice {
	return &TermDevice{r: bufio.NewReader(r)}
}

func (d *TermDevice) Poll() (byte, bool) {
	c, err := d.r.ReadByte()
	if err != nil {
		return 0, false
	}
	return c, true
}

// BufferDevice is an in-memory KeyboardDevice for tests: a FIFO queue
// fed by Push, polled by the machine exactly like a real keyboard.
type BufferDevice struct {
	queue []byte
}

// NewBufferDevice returns a device preloaded with seed, in order.
func NewBufferDevice(seed ...byte) *BufferDevice {
	return &BufferDevice{queue: append([]byte(nil), seed...)}
}

// Push appends bytes to the end of the queue, simulating keys typed
// while the machine is running.
func (d *BufferDevice) Push(c ...byte) {
	d.queue = append(d.queue, c...)
}

func (d *BufferDevice) Poll() (byte, bool) {
	if len(d.queue) == 0 {
		return 0, false
	}
	c := d.queue[0]
	d.queue = d.queue[1:]
	return c, true
}
