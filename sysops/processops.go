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

package sysops

import (
	"os"

	"golang.org/x/sys/unix"
)

// ProcessOps is the facade over process- and namespace-manipulating
// syscalls: setns, unshare, fork/exec, and the credential/FD calls
// RunSpecConfigurator needs. Entering a fresh set of namespaces via
// clone(2) is not modeled here: Go cannot safely run arbitrary Go code in a
// process forked by a raw clone(2) from a multi-threaded runtime, so the
// launcher creates namespaces by re-executing itself through os/exec with
// SysProcAttr.Cloneflags, the same pattern runsc's sandbox launcher uses for
// unshare by argv flags. Fork below is used by NewNsProcessInTarget and by
// the exec subcommand, which only ever attach to namespaces already entered
// via setns and need nothing heavier than a plain fork(2).
type ProcessOps interface {
	Setns(fd int, nstype int) error
	Unshare(flags int) error
	Setresuid(ruid, euid, suid int) error
	Setresgid(rgid, egid, sgid int) error
	Setgroups(gids []int) error
	Setsid() (int, error)
	FcntlCloseOnExec(fd int) error
	Kill(pid int, sig unix.Signal) error
	Fork() (int, error)
	Execve(argv0 string, argv, envv []string) error
	Getpid() int
	Gettid() int
	// Wait4 reaps pid (blocking), returning its exit status.
	Wait4(pid int) (int, error)
}

// Linux also implements ProcessOps.
var _ ProcessOps = Linux{}

func (Linux) Setns(fd int, nstype int) error {
	return unix.Setns(fd, nstype)
}

func (Linux) Unshare(flags int) error {
	return unix.Unshare(flags)
}

func (Linux) Setresuid(ruid, euid, suid int) error {
	return unix.Setresuid(ruid, euid, suid)
}

func (Linux) Setresgid(rgid, egid, sgid int) error {
	return unix.Setresgid(rgid, egid, sgid)
}

func (Linux) Setgroups(gids []int) error {
	return unix.Setgroups(gids)
}

func (Linux) Setsid() (int, error) {
	return unix.Setsid()
}

func (Linux) FcntlCloseOnExec(fd int) error {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC)
	return err
}

func (Linux) Kill(pid int, sig unix.Signal) error {
	return unix.Kill(pid, sig)
}

func (Linux) Fork() (int, error) {
	pid, _, errno := unix.RawSyscall(unix.SYS_FORK, 0, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(pid), nil
}

func (Linux) Execve(argv0 string, argv, envv []string) error {
	return unix.Exec(argv0, argv, envv)
}

func (Linux) Getpid() int { return os.Getpid() }
func (Linux) Gettid() int { return unix.Gettid() }

func (Linux) Wait4(pid int) (int, error) {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return ws.ExitStatus(), nil
	}
}
