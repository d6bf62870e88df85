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

// Package sysops is the narrow facade over libc and kernel syscalls used by
// nscon. It is the only package that calls mount/chroot/pivot_root
// directly; the configurators, cgroup, mountutil and nsutil go through
// FsOps, ProcessOps, or NetOps so that tests can substitute fakes instead of
// exercising the real kernel interfaces. Some packages (lock, fsutil) still
// open files and create directories through the os package.
package sysops

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// FsOps is the facade over filesystem syscalls.
type FsOps interface {
	Mkdir(path string, mode uint32) error
	Rmdir(path string) error
	Stat(path string) (os.FileInfo, error)
	Mount(source, target, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error
	Chroot(path string) error
	Chdir(path string) error
	PivotRoot(newRoot, putOld string) error
	Chown(path string, uid, gid int) error
	Symlink(oldname, newname string) error
	ReadDir(path string) ([]os.DirEntry, error)
	// Open returns a raw FD for path, used for setns targets and FD
	// donation where an *os.File would be closed by the garbage collector
	// before the FD is handed off.
	Open(path string, flags int, mode uint32) (int, error)
	Close(fd int) error
	Write(fd int, data []byte) error
	Access(path string, mode uint32) error
}

// Linux is the production FsOps backed directly by golang.org/x/sys/unix.
type Linux struct{}

var _ FsOps = Linux{}

func (Linux) Mkdir(path string, mode uint32) error {
	return unix.Mkdir(path, mode)
}

func (Linux) Rmdir(path string) error {
	return unix.Rmdir(path)
}

func (Linux) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (Linux) Mount(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

func (Linux) Unmount(target string, flags int) error {
	return unix.Unmount(target, flags)
}

func (Linux) Chroot(path string) error {
	return unix.Chroot(path)
}

func (Linux) Chdir(path string) error {
	return unix.Chdir(path)
}

func (Linux) PivotRoot(newRoot, putOld string) error {
	return unix.PivotRoot(newRoot, putOld)
}

func (Linux) Chown(path string, uid, gid int) error {
	return os.Chown(path, uid, gid)
}

func (Linux) Symlink(oldname, newname string) error {
	return unix.Symlink(oldname, newname)
}

func (Linux) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

func (Linux) Open(path string, flags int, mode uint32) (int, error) {
	return unix.Open(path, flags, mode)
}

func (Linux) Close(fd int) error {
	return unix.Close(fd)
}

func (Linux) Write(fd int, data []byte) error {
	_, err := unix.Write(fd, data)
	return err
}

// Access checks path against mode (e.g. unix.R_OK), the way the cgroup
// factory probes a mountpoint for accessibility before claiming it.
func (Linux) Access(path string, mode uint32) error {
	return unix.Access(path, mode)
}

// Errno extracts the underlying syscall.Errno from err, if any.
func Errno(err error) (syscall.Errno, bool) {
	e, ok := err.(syscall.Errno)
	return e, ok
}
