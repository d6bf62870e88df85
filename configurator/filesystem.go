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

package configurator

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/cleanup"
	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/log"
	"github.com/nscon/nscon/mountutil"
	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/procutil"
	"github.com/nscon/nscon/sysops"
	"github.com/nscon/nscon/timeutil"
)

// Filesystem prepares a minimal filesystem inside the new mount namespace:
// unmounts everything outside the chosen root, pivots or chroots into it,
// remounts proc/sysfs/devpts, and applies external bind mounts. It runs
// entirely in the inside-namespace phase.
type Filesystem struct {
	Base

	Fs    sysops.FsOps
	Mount mountutil.MountUtils
	Time  timeutil.TimeUtils
}

var _ NsConfigurator = Filesystem{}

const procFlags = unix.MS_NODEV | unix.MS_NOEXEC | unix.MS_NOSUID | unix.MS_RELATIME

func addSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

func (f Filesystem) SetupInsideNamespace(spec *containerspec.ContainerSpec) error {
	fs := spec.Namespaces.Fs
	if fs == nil {
		return nil
	}
	root := fs.RootfsPath
	if root == "" {
		root = "/"
	}

	if err := f.Fs.Chdir(root); err != nil {
		return nserror.Wrap(nserror.Internal, err, "chdir %s", root)
	}

	whitelist := make([]string, 0, len(fs.ExternalMounts))
	for _, m := range fs.ExternalMounts {
		whitelist = append(whitelist, m.Target)
	}

	if err := f.unmountOutsideRoot(root, whitelist); err != nil {
		return err
	}

	if fs.ChrootToRootfs {
		if err := f.Fs.Chroot(root); err != nil {
			return nserror.Wrap(nserror.Internal, err, "chroot %s", root)
		}
	} else if root != "/" {
		if err := f.pivotInto(root); err != nil {
			return err
		}
	}

	if err := f.Fs.Mount("proc", "/proc", "proc", procFlags, ""); err != nil {
		return nserror.Wrap(nserror.Internal, err, "mounting /proc")
	}
	if err := f.Fs.Mount("sysfs", "/sys", "sysfs", procFlags, ""); err != nil {
		return nserror.Wrap(nserror.Internal, err, "mounting /sys")
	}

	wantsConsole := spec.RunSpec.Console != nil
	if err := f.setupDevpts(); err != nil {
		if wantsConsole {
			return err
		}
		log.WarningfBestEffort("devpts setup failed: %v", err)
	}

	for _, m := range fs.ExternalMounts {
		if err := f.bindExternalMount(root, m); err != nil {
			return err
		}
	}

	return nil
}

// unmountOutsideRoot implements the unmount-sweep rule of §4.6 step 2-3:
// always keep "/"; for the default root, keep anything on the chain to a
// whitelisted bind target; for a custom root, keep anything under or above
// it (the chain pivot_root needs alive).
func (f Filesystem) unmountOutsideRoot(root string, whitelist []string) error {
	entries, err := procutil.ReadMounts(procutil.ProcMountsPath(0))
	if err != nil {
		return nserror.Wrap(nserror.Internal, err, "reading /proc/mounts")
	}

	rootSlash := addSlash(root)
	var toUnmount []string
	for _, e := range entries {
		mp := e.Mountpoint
		if mp == "/" {
			continue
		}
		if root != "/" {
			if strings.HasPrefix(mp, rootSlash) || strings.HasPrefix(rootSlash, addSlash(mp)) {
				continue
			}
		} else {
			keep := false
			for _, w := range whitelist {
				ws := addSlash(w)
				if strings.HasPrefix(mp, ws) || strings.HasPrefix(ws, addSlash(mp)) {
					keep = true
					break
				}
			}
			if keep {
				continue
			}
		}
		toUnmount = append(toUnmount, mp)
	}

	// Reverse discovery order, so later (deeper, typically) mounts go first.
	for i, j := 0, len(toUnmount)-1; i < j; i, j = i+1, j-1 {
		toUnmount[i], toUnmount[j] = toUnmount[j], toUnmount[i]
	}
	for _, mp := range toUnmount {
		if err := f.Mount.Unmount(mp, 0); err != nil {
			return nserror.Wrap(nserror.Internal, err, "unmounting %s", mp)
		}
	}
	return nil
}

func (f Filesystem) pivotInto(root string) error {
	oldRoot := fmt.Sprintf("nscon.old_root.%d", f.Time.MonotonicMicros())
	oldRootPath := filepath.Join(root, oldRoot)

	if err := f.Fs.Mkdir(oldRootPath, 0700); err != nil {
		return nserror.Wrap(nserror.Internal, err, "mkdir %s", oldRootPath)
	}
	c := cleanup.Make(func() {
		f.Mount.Unmount(oldRootPath, unix.MNT_DETACH)
		f.Fs.Rmdir(oldRootPath)
	})
	defer c.Clean()

	if err := f.Fs.PivotRoot(".", oldRoot); err != nil {
		return nserror.Wrap(nserror.Internal, err, "pivot_root(., %s)", oldRoot)
	}
	if err := f.Fs.Chdir("/"); err != nil {
		return nserror.Wrap(nserror.Internal, err, "chdir /")
	}
	if err := f.Mount.Unmount("/"+oldRoot, unix.MNT_DETACH); err != nil {
		return nserror.Wrap(nserror.Internal, err, "detaching old root")
	}
	if err := f.Fs.Rmdir("/" + oldRoot); err != nil {
		log.WarningfBestEffort("removing old root dir: %v", err)
	}
	c.Release()
	return nil
}

func (f Filesystem) exists(path string) bool {
	_, err := f.Fs.Stat(path)
	return err == nil
}

func (f Filesystem) setupDevpts() error {
	for _, p := range []string{"/dev/pts", "/dev/ptmx", "/dev/pts/ptmx"} {
		if !f.exists(p) {
			return nserror.E(nserror.FailedPrecondition, "%s missing, skipping devpts setup", p)
		}
	}
	if err := f.Fs.Mount("devpts", "/dev/pts", "devpts", 0, "newinstance,ptmxmode=0666,mode=620,gid=5"); err != nil {
		return nserror.Wrap(nserror.Internal, err, "mounting devpts")
	}
	if f.exists("/dev/pts/ptmx") {
		if err := f.Mount.BindMount("/dev/pts/ptmx", "/dev/ptmx"); err != nil {
			return nserror.Wrap(nserror.Internal, err, "bind-mounting /dev/pts/ptmx over /dev/ptmx")
		}
	}
	return nil
}

func (f Filesystem) bindExternalMount(root string, m containerspec.ExternalMount) error {
	if m.Source == "" || m.Target == "" {
		return nserror.E(nserror.InvalidArgument, "external mount missing source or target")
	}
	target := m.Target
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	if _, err := f.Fs.Stat(m.Source); err != nil {
		return nserror.Wrap(nserror.NotFound, err, "external mount source %s", m.Source)
	}
	if _, err := f.Fs.Stat(target); err != nil {
		return nserror.Wrap(nserror.NotFound, err, "external mount target %s", target)
	}

	var opts []mountutil.BindOpt
	opts = append(opts, mountutil.Recursive)
	if m.ReadOnly {
		opts = append(opts, mountutil.ReadOnly)
	}
	if m.Private {
		opts = append(opts, mountutil.Private)
	}
	if m.Slave {
		opts = append(opts, mountutil.Slave)
	}
	if err := f.Mount.BindMount(m.Source, target, opts...); err != nil {
		return nserror.Wrap(nserror.Internal, err, "bind mount %s -> %s", m.Source, target)
	}
	return nil
}
