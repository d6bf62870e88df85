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

package cgroup

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/sysops"
)

// Controller operates on one cgroup directory within one hierarchy. Path is
// relative to Mountpoint, always slash-rooted ("/" for the hierarchy root).
type Controller struct {
	Fs         sysops.FsOps
	Hierarchy  string
	Mountpoint string
	Path       string

	// owns records whether this Controller's Factory created the
	// directory (as opposed to merely Get-ing a pre-existing one), which
	// gates Destroy: a non-owned root cgroup must never be rmdir'd.
	owns bool
}

func (c *Controller) dir() string {
	return filepath.Join(c.Mountpoint, c.Path)
}

func (c *Controller) file(name string) string {
	return filepath.Join(c.dir(), name)
}

// Enter moves thread tid into this cgroup by writing it to tasks. No-op if
// this Controller doesn't own the cgroup directory.
func (c *Controller) Enter(tid int) error {
	if !c.owns {
		return nil
	}
	return c.writeFile("tasks", strconv.Itoa(tid))
}

// Delegate chowns the cgroup directory and its tasks file to uid:gid so an
// unprivileged process can add its own threads. No-op if this Controller
// doesn't own the cgroup directory.
func (c *Controller) Delegate(uid, gid int) error {
	if !c.owns {
		return nil
	}
	if err := c.Fs.Chown(c.dir(), uid, gid); err != nil {
		return nserror.Wrap(nserror.FailedPrecondition, err, "chown %s", c.dir())
	}
	if err := c.Fs.Chown(c.file("tasks"), uid, gid); err != nil {
		return nserror.Wrap(nserror.FailedPrecondition, err, "chown %s", c.file("tasks"))
	}
	return nil
}

// GetThreads returns the thread IDs listed in tasks.
func (c *Controller) GetThreads() ([]int, error) {
	return c.readIntLines("tasks")
}

// GetProcesses returns the process IDs listed in cgroup.procs.
func (c *Controller) GetProcesses() ([]int, error) {
	return c.readIntLines("cgroup.procs")
}

func (c *Controller) readIntLines(name string) ([]int, error) {
	data, err := c.readFile(name)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// GetSubcontainers lists the immediate child cgroup directories.
func (c *Controller) GetSubcontainers() ([]string, error) {
	entries, err := c.Fs.ReadDir(c.dir())
	if err != nil {
		return nil, nserror.Wrap(nserror.Internal, err, "reading %s", c.dir())
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Destroy removes this cgroup and every subcontainer beneath it in
// post-order (children before parents), without recursion: a stack walks
// the tree and collects every directory, and the collected paths are then
// removed longest first, so each child goes before its parent. The hierarchy root (owns == false, Path == "/") can
// never be destroyed.
func (c *Controller) Destroy() error {
	if c.Path == "/" && !c.owns {
		return nserror.E(nserror.PermissionDenied, "refusing to destroy hierarchy root %s", c.Hierarchy)
	}

	var toVisit = []string{c.dir()}
	var order []string
	for len(toVisit) > 0 {
		dir := toVisit[len(toVisit)-1]
		toVisit = toVisit[:len(toVisit)-1]
		order = append(order, dir)
		entries, err := c.Fs.ReadDir(dir)
		if err != nil {
			return nserror.Wrap(nserror.Internal, err, "reading %s", dir)
		}
		for _, e := range entries {
			if e.IsDir() {
				toVisit = append(toVisit, filepath.Join(dir, e.Name()))
			}
		}
	}

	sort.Slice(order, func(i, j int) bool { return len(order[i]) > len(order[j]) })
	for _, dir := range order {
		if err := c.Fs.Rmdir(dir); err != nil {
			return nserror.Wrap(nserror.Internal, err, "rmdir %s", dir)
		}
	}
	return nil
}

// GetParamBool reads a boolean control file: "0" or "1" exactly, anything
// else is OutOfRange.
func (c *Controller) GetParamBool(name string) (bool, error) {
	data, err := c.readFile(name)
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(data) {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, nserror.E(nserror.OutOfRange, "%s: unexpected boolean value %q", name, data)
	}
}

func (c *Controller) SetParamBool(name string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return c.writeFile(name, v)
}

func (c *Controller) GetParamInt(name string) (int64, error) {
	data, err := c.readFile(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(data), 10, 64)
	if err != nil {
		return 0, nserror.Wrap(nserror.OutOfRange, err, "%s: %q", name, data)
	}
	return n, nil
}

func (c *Controller) SetParamInt(name string, value int64) error {
	return c.writeFile(name, strconv.FormatInt(value, 10))
}

func (c *Controller) GetParamString(name string) (string, error) {
	data, err := c.readFile(name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(data), nil
}

func (c *Controller) SetParamString(name, value string) error {
	return c.writeFile(name, value)
}

func (c *Controller) readFile(name string) (string, error) {
	path := c.file(name)
	fd, err := c.Fs.Open(path, os.O_RDONLY, 0)
	if err != nil {
		return "", nserror.Wrap(nserror.NotFound, err, "opening %s", path)
	}
	defer c.Fs.Close(fd)
	f := os.NewFile(uintptr(fd), path)
	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "", nserror.Wrap(nserror.Internal, err, "reading %s", path)
	}
	return string(buf[:n]), nil
}

func (c *Controller) writeFile(name, value string) error {
	path := c.file(name)
	fd, err := c.Fs.Open(path, os.O_WRONLY, 0)
	if err != nil {
		return nserror.Wrap(nserror.NotFound, err, "opening %s", path)
	}
	defer c.Fs.Close(fd)
	if err := c.Fs.Write(fd, []byte(value)); err != nil {
		return nserror.Wrap(nserror.Internal, err, "writing %s to %s", value, path)
	}
	return nil
}
