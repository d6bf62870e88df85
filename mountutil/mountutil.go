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

// Package mountutil implements bind mounts, tmpfs mounts, and recursive
// unmount, all layered on sysops.FsOps so that tests can observe the exact
// sequence of mount(2) calls made.
package mountutil

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/procutil"
	"github.com/nscon/nscon/sysops"
)

// BindOpt is one flag controlling how BindMount mounts a path.
type BindOpt int

const (
	// Recursive propagates the bind to submounts (MS_REC).
	Recursive BindOpt = iota
	// ReadOnly remounts the target read-only after binding.
	ReadOnly
	// Private marks the target MS_PRIVATE after binding.
	Private
	// Slave marks the target MS_SLAVE after binding.
	Slave
)

type optSet map[BindOpt]bool

func newOptSet(opts ...BindOpt) optSet {
	s := make(optSet, len(opts))
	for _, o := range opts {
		s[o] = true
	}
	return s
}

// MountUtils is the mount-verb façade.
type MountUtils interface {
	BindMount(source, target string, opts ...BindOpt) error
	MountTmpfs(path string, sizeBytes int64, opts []string) error
	UnmountRecursive(path string) error
	Unmount(target string, flags int) error
}

// Prod is the production MountUtils.
type Prod struct {
	Fs sysops.FsOps
}

// NewProd creates a production MountUtils.
func NewProd(fs sysops.FsOps) *Prod {
	return &Prod{Fs: fs}
}

var _ MountUtils = (*Prod)(nil)

// BindMount rejects PRIVATE∧SLAVE, binds with NODEV|NOSUID|MS_BIND(+MS_REC),
// then optionally remounts read-only and/or marks private/slave. The
// sequence of mount(2) calls is a pure function of opts, independent of call
// history.
func (p *Prod) BindMount(source, target string, opts ...BindOpt) error {
	set := newOptSet(opts...)
	if set[Private] && set[Slave] {
		return nserror.E(nserror.InvalidArgument, "bind mount %s: PRIVATE and SLAVE are mutually exclusive", target)
	}

	flags := uintptr(unix.MS_NODEV | unix.MS_NOSUID | unix.MS_BIND)
	if set[Recursive] {
		flags |= unix.MS_REC
	}
	if err := p.Fs.Mount(source, target, "", flags, ""); err != nil {
		return nserror.Wrap(nserror.Internal, err, "bind mount %s -> %s", source, target)
	}

	if set[ReadOnly] {
		roFlags := flags | unix.MS_REMOUNT | unix.MS_RDONLY
		if err := p.Fs.Mount(source, target, "", roFlags, ""); err != nil {
			return nserror.Wrap(nserror.Internal, err, "remount %s read-only", target)
		}
	}
	if set[Private] {
		pFlags := uintptr(unix.MS_PRIVATE)
		if set[Recursive] {
			pFlags |= unix.MS_REC
		}
		if err := p.Fs.Mount("", target, "", pFlags, ""); err != nil {
			return nserror.Wrap(nserror.Internal, err, "mark %s private", target)
		}
	}
	if set[Slave] {
		sFlags := uintptr(unix.MS_SLAVE)
		if set[Recursive] {
			sFlags |= unix.MS_REC
		}
		if err := p.Fs.Mount("", target, "", sFlags, ""); err != nil {
			return nserror.Wrap(nserror.Internal, err, "mark %s slave", target)
		}
	}
	return nil
}

// MountTmpfs strips any user-supplied size= option, appends
// size=<sizeBytes>, and mounts. If a tmpfs already mounts at path, remounts;
// if a non-tmpfs is there, fails FailedPrecondition.
func (p *Prod) MountTmpfs(path string, sizeBytes int64, opts []string) error {
	if sizeBytes <= 0 {
		return nserror.E(nserror.InvalidArgument, "tmpfs size must be positive, got %d", sizeBytes)
	}

	existing, existingType, err := currentMount(path)
	if err != nil {
		return err
	}
	flags := uintptr(0)
	if existing {
		if existingType != "tmpfs" {
			return nserror.E(nserror.FailedPrecondition, "%s is mounted with fs type %q, not tmpfs", path, existingType)
		}
		flags |= unix.MS_REMOUNT
	}

	var filtered []string
	for _, o := range opts {
		if strings.HasPrefix(o, "size=") {
			continue
		}
		filtered = append(filtered, o)
	}
	filtered = append(filtered, fmt.Sprintf("size=%d", sizeBytes))
	data := strings.Join(filtered, ",")

	if err := p.Fs.Mount("tmpfs", path, "tmpfs", flags, data); err != nil {
		return nserror.Wrap(nserror.Internal, err, "mount tmpfs at %s", path)
	}
	return nil
}

func currentMount(path string) (present bool, fsType string, err error) {
	entries, err := procutil.ReadMounts(procutil.ProcMountsPath(0))
	if err != nil {
		return false, "", nserror.Wrap(nserror.Internal, err, "reading /proc/mounts")
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Mountpoint == path {
			return true, entries[i].Type, nil
		}
	}
	return false, "", nil
}

// addSlash returns path with exactly one trailing slash, used to match
// mountpoints that are at or below path without matching unrelated
// mountpoints with path as a string prefix (e.g. /mnt vs /mnt2).
func addSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// UnmountRecursive unmounts every mountpoint under path (deepest first),
// then path itself. ENOENT/EINVAL on the final unmount are treated as
// success; EBUSY after sub-unmount failures is Internal carrying the
// failing list.
func (p *Prod) UnmountRecursive(path string) error {
	entries, err := procutil.ReadMounts(procutil.ProcMountsPath(0))
	if err != nil {
		return nserror.Wrap(nserror.Internal, err, "reading /proc/mounts")
	}

	prefix := addSlash(path)
	var subPaths []string
	for _, e := range entries {
		mp := strings.TrimSuffix(e.Mountpoint, "\t(deleted)")
		if mp != path && strings.HasPrefix(mp, prefix) {
			subPaths = append(subPaths, mp)
		}
	}
	// Deepest first: longer mountpoint paths sort before shorter ones.
	sort.Slice(subPaths, func(i, j int) bool {
		return len(subPaths[i]) > len(subPaths[j])
	})

	var failed []string
	for _, mp := range subPaths {
		if err := p.Unmount(mp, 0); err != nil {
			failed = append(failed, mp)
		}
	}

	err = p.Fs.Unmount(path, 0)
	if err == nil || err == unix.ENOENT || err == unix.EINVAL {
		if len(failed) > 0 {
			return nserror.E(nserror.Internal, "failed to unmount: %s", strings.Join(failed, ", "))
		}
		return nil
	}
	if err == unix.EBUSY && len(failed) > 0 {
		return nserror.E(nserror.Internal, "failed to unmount %s (EBUSY) and: %s", path, strings.Join(failed, ", "))
	}
	return nserror.Wrap(nserror.Internal, err, "unmount %s", path)
}

// Unmount is a thin pass-through used during filesystem preparation, which
// ignores EINVAL (not a mount point) and treats other errors as fatal.
func (p *Prod) Unmount(target string, flags int) error {
	if err := p.Fs.Unmount(target, flags); err != nil {
		if err == unix.EINVAL {
			return nil
		}
		return nserror.Wrap(nserror.Internal, err, "unmount %s", target)
	}
	return nil
}
