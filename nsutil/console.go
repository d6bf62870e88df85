// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nsutil

import (
	"os"

	"github.com/containerd/console"
	"github.com/kr/pty"
	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/nserror"
)

// OpenSlavePty opens a new pseudoterminal pair and returns the master (kept
// open by the caller for later I/O) and the slave file. The launcher does
// not call it; no code path dups the slave onto a child's stdio.
func OpenSlavePty() (master, slave *os.File, err error) {
	master, slave, err = pty.Open()
	if err != nil {
		return nil, nil, nserror.Wrap(nserror.Internal, err, "opening pty pair")
	}
	return master, slave, nil
}

// ResizeConsole propagates the terminal size of from onto the pty master
// backing to, used when a controlling terminal is resized.
func ResizeConsole(to *os.File, from *os.File) error {
	toConsole, err := console.ConsoleFromFile(to)
	if err != nil {
		return nserror.Wrap(nserror.Internal, err, "wrapping console fd")
	}
	fromConsole, err := console.ConsoleFromFile(from)
	if err != nil {
		return nserror.Wrap(nserror.Internal, err, "wrapping console fd")
	}
	if err := toConsole.ResizeFrom(fromConsole); err != nil {
		return nserror.Wrap(nserror.Internal, err, "resizing console")
	}
	return nil
}

// AttachToConsoleFd dups slaveFd onto stdin/stdout/stderr, closes it if it
// is above stderr, and best-effort sets it as the controlling terminal.
// TIOCSCTTY failure is neither logged as an error nor surfaced: not every
// platform and caller combination supports a controlling tty, and the
// source this is grounded on treats it purely as an optimistic ioctl.
func AttachToConsoleFd(slaveFd int) error {
	for _, dst := range []int{0, 1, 2} {
		if dst == slaveFd {
			continue
		}
		if err := unix.Dup2(slaveFd, dst); err != nil {
			return nserror.Wrap(nserror.Internal, err, "dup2 console fd onto %d", dst)
		}
	}
	if slaveFd > 2 {
		unix.Close(slaveFd)
	}
	unix.Syscall(unix.SYS_IOCTL, 0, unix.TIOCSCTTY, 0)
	return nil
}
