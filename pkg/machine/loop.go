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

import "context"

// Run steps the machine until it halts, ctx is cancelled, or Step
// returns a fatal error. ctx cancellation (wired by the caller to
// os/signal in cmd/lc3vm) is how Ctrl-C terminates the loop immediately;
// the machine itself never imports os/signal.
func (mc *Machine) Run(ctx context.Context, strict bool) error {
	for !mc.State.Halted {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := mc.Step(strict); err != nil {
			return err
		}
	}

	return nil
}
