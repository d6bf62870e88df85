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

// Package nsutil maps the closed set of namespace flags to their kernel
// names and /proc/self/ns entries, detects which the running kernel
// supports, and implements attach/unshare/save/restore over them.
package nsutil

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/sysops"
)

// Flag identifies one of the six namespace kinds nscon understands.
type Flag int

const (
	PID Flag = unix.CLONE_NEWPID
	MNT Flag = unix.CLONE_NEWNS
	IPC Flag = unix.CLONE_NEWIPC
	UTS Flag = unix.CLONE_NEWUTS
	User Flag = unix.CLONE_NEWUSER
	Net Flag = unix.CLONE_NEWNET
)

// orderedFlags lists every namespace flag in a stable registration order,
// used wherever iteration order matters (probing, default configurator
// factory order).
var orderedFlags = []Flag{PID, MNT, IPC, UTS, User, Net}

var flagNames = map[Flag]string{
	PID:  "pid",
	MNT:  "mnt",
	IPC:  "ipc",
	UTS:  "uts",
	User: "user",
	Net:  "net",
}

// Name returns the flag's canonical short name, e.g. "pid".
func (f Flag) Name() string { return flagNames[f] }

// ByName looks up a Flag by its canonical short name.
func ByName(name string) (Flag, bool) {
	for f, n := range flagNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// Set is an unordered collection of namespace flags, constructed from the
// OR of their kernel values where that's convenient (clone/unshare flags)
// but iterated in orderedFlags order for anything observable (configurator
// invocation, FD-open order).
type Set map[Flag]bool

// NewSet builds a Set from a list of flags.
func NewSet(flags ...Flag) Set {
	s := make(Set, len(flags))
	for _, f := range flags {
		s[f] = true
	}
	return s
}

// Ordered returns the set's members in orderedFlags order, with User always
// moved to the front: AttachNamespaces must enter the user namespace before
// any other, since that FD changes the effective credentials all later
// setns calls are evaluated under.
func (s Set) Ordered() []Flag {
	var out []Flag
	if s[User] {
		out = append(out, User)
	}
	for _, f := range orderedFlags {
		if f == User {
			continue
		}
		if s[f] {
			out = append(out, f)
		}
	}
	return out
}

// CloneFlags ORs the kernel CLONE_NEW* values of every flag in the set,
// suitable for passing to clone(2) alongside SIGCHLD.
func (s Set) CloneFlags() int {
	var flags int
	for f := range s {
		flags |= int(f)
	}
	return flags
}

// NsUtil bundles the syscall facades namespace operations are built on.
type NsUtil struct {
	Proc sysops.ProcessOps
	Fs   sysops.FsOps

	mu        sync.Mutex
	supported map[Flag]bool
}

// New creates an NsUtil over the given syscall facades.
func New(proc sysops.ProcessOps, fs sysops.FsOps) *NsUtil {
	return &NsUtil{Proc: proc, Fs: fs}
}

func nsPath(pid int, flag Flag) string {
	if pid <= 0 {
		return fmt.Sprintf("/proc/self/ns/%s", flag.Name())
	}
	return fmt.Sprintf("/proc/%d/ns/%s", pid, flag.Name())
}

// SupportedNamespaces probes /proc/self/ns/<name> once per process and
// caches the result: the set of namespaces the running kernel exposes.
func (u *NsUtil) SupportedNamespaces() (map[Flag]bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.supported != nil {
		return u.supported, nil
	}
	supported := make(map[Flag]bool, len(orderedFlags))
	for _, f := range orderedFlags {
		if _, err := u.Fs.Stat(nsPath(0, f)); err == nil {
			supported[f] = true
		}
	}
	u.supported = supported
	return supported, nil
}

// AttachNamespaces opens /proc/<pid>/ns/<name> for every flag in flags
// (caller-supplied order) and setns(2)s onto each. If flags includes User,
// it is entered first regardless of its position in the input, because
// later setns calls must run under the credentials the user namespace
// grants.
func (u *NsUtil) AttachNamespaces(flags []Flag, pid int) error {
	seen := Set{}
	ordered := make([]Flag, 0, len(flags))
	if NewSet(flags...)[User] {
		ordered = append(ordered, User)
		seen[User] = true
	}
	for _, f := range flags {
		if !seen[f] {
			ordered = append(ordered, f)
			seen[f] = true
		}
	}
	for _, f := range ordered {
		path := nsPath(pid, f)
		fd, err := u.Fs.Open(path, unix.O_RDONLY, 0)
		if err != nil {
			if os.IsNotExist(err) {
				return nserror.Wrap(nserror.NotFound, err, "namespace %s of pid %d not found", f.Name(), pid)
			}
			return nserror.Wrap(nserror.Internal, err, "opening %s", path)
		}
		err = u.Proc.Setns(fd, int(f))
		u.Fs.Close(fd)
		if err != nil {
			return nserror.Wrap(nserror.Internal, err, "setns(%s) onto pid %d", f.Name(), pid)
		}
	}
	return nil
}

// UnshareNamespaces detaches the caller from the given namespaces via a
// single unshare(2) call.
func (u *NsUtil) UnshareNamespaces(flags []Flag) error {
	set := NewSet(flags...)
	if err := u.Proc.Unshare(set.CloneFlags()); err != nil {
		return nserror.Wrap(nserror.Internal, err, "unshare %v", flags)
	}
	return nil
}

// GetNamespaceId returns the kernel's opaque identity string for pid's
// namespace of the given flag (the readlink target of /proc/<pid>/ns/<name>,
// e.g. "pid:[4026531836]"), used to compare namespace identity without
// holding the namespace open.
func (u *NsUtil) GetNamespaceId(flag Flag, pid int) (string, error) {
	path := nsPath(pid, flag)
	target, err := os.Readlink(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nserror.Wrap(nserror.NotFound, err, "namespace %s of pid %d not found", flag.Name(), pid)
		}
		return "", nserror.Wrap(nserror.Internal, err, "readlink %s", path)
	}
	return target, nil
}

// GetUnsharedNamespaces returns the subset of supported namespaces in which
// pid differs from the caller -- the namespaces Run/Exec must attach to in
// order to land inside pid's view.
func (u *NsUtil) GetUnsharedNamespaces(pid int) ([]Flag, error) {
	supported, err := u.SupportedNamespaces()
	if err != nil {
		return nil, err
	}
	var out []Flag
	for _, f := range orderedFlags {
		if !supported[f] {
			continue
		}
		theirs, err := u.GetNamespaceId(f, pid)
		if err != nil {
			return nil, err
		}
		ours, err := u.GetNamespaceId(f, 0)
		if err != nil {
			return nil, err
		}
		if theirs != ours {
			out = append(out, f)
		}
	}
	return out, nil
}

// SaveNamespace opens the caller's current namespace of the given flag and
// returns the FD, for later restoration via RestoreAndDelete.
func (u *NsUtil) SaveNamespace(flag Flag) (int, error) {
	fd, err := u.Fs.Open(nsPath(0, flag), unix.O_RDONLY, 0)
	if err != nil {
		return -1, nserror.Wrap(nserror.Internal, err, "saving namespace %s", flag.Name())
	}
	return fd, nil
}

// RestoreAndDelete setns(2)s back onto a namespace FD saved by
// SaveNamespace, then closes it.
func (u *NsUtil) RestoreAndDelete(flag Flag, fd int) error {
	err := u.Proc.Setns(fd, int(flag))
	u.Fs.Close(fd)
	if err != nil {
		return nserror.Wrap(nserror.Internal, err, "restoring namespace %s", flag.Name())
	}
	return nil
}
