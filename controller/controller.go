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

// Package controller implements NamespaceController: the orchestration
// layer translating a ContainerSpec into a registered set of configurators
// and a ProcessLauncher call, and the Run/Exec/Update/Destroy operations
// built on top.
package controller

import (
	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/configurator"
	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/launcher"
	"github.com/nscon/nscon/lock"
	"github.com/nscon/nscon/log"
	"github.com/nscon/nscon/mountutil"
	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/nshandle"
	"github.com/nscon/nscon/nsutil"
	"github.com/nscon/nscon/sysops"
	"github.com/nscon/nscon/timeutil"
)

// locksBaseDir is where the per-container file locks (spec.md §4.8) live,
// alongside the machine-spec dump's /run/lmctfy directory.
const locksBaseDir = "/run/lmctfy/locks"

// Controller is NamespaceController: it owns the syscall facades and builds
// the configurator set for each ContainerSpec it is asked to run.
type Controller struct {
	Proc  sysops.ProcessOps
	Fs    sysops.FsOps
	Net   sysops.NetOps
	Util  *nsutil.NsUtil
	Mount mountutil.MountUtils
	Time  timeutil.TimeUtils
	Gen   nshandle.Generator

	// Locks serializes Run/Destroy against the per-container file lock of
	// spec.md §4.8. Nil (the zero value) skips locking entirely, which test
	// Controllers rely on.
	Locks *lock.Factory

	Launcher *launcher.Launcher
}

// New wires a Controller and its Launcher over the given production
// facades, including the per-container lock factory rooted at
// /run/lmctfy/locks.
func New(proc sysops.ProcessOps, fs sysops.FsOps, net sysops.NetOps, mount mountutil.MountUtils, tu timeutil.TimeUtils) *Controller {
	util := nsutil.New(proc, fs)
	gen := nshandle.CookieGenerator{}
	locks := lock.NewFactory(locksBaseDir)
	if err := locks.InitMachine(); err != nil {
		log.WarningfBestEffort("initializing lock root %s: %v", locksBaseDir, err)
	}
	return &Controller{
		Proc:  proc,
		Fs:    fs,
		Net:   net,
		Util:  util,
		Mount: mount,
		Time:  tu,
		Gen:   gen,
		Locks: locks,
		Launcher: &launcher.Launcher{
			Proc: proc,
			Fs:   fs,
			Util: util,
			Time: tu,
			Gen:  gen,
		},
	}
}

// flagsFromSpec builds the nsutil.Set of namespace flags a ContainerSpec
// requests, used both to clone the right set of namespaces (Run) and to
// compute which namespaces an existing target differs in (Exec).
func flagsFromSpec(ns containerspec.NamespaceSpec) nsutil.Set {
	set := nsutil.Set{}
	if ns.Pid {
		set[nsutil.PID] = true
	}
	if ns.Mnt {
		set[nsutil.MNT] = true
	}
	if ns.Ipc {
		set[nsutil.IPC] = true
	}
	if ns.Uts != nil {
		set[nsutil.UTS] = true
	}
	if ns.Net != nil {
		set[nsutil.Net] = true
	}
	if ns.User != nil {
		set[nsutil.User] = true
	}
	return set
}

// ConfiguratorsFor is the exported form of configuratorsFor, used by the
// re-exec'd namespace child (see cmd/nscon and launcher.ChildMain) to build
// the same inside-namespace configurator list the parent registered on
// Launcher.InsideConfigurators, since the child is a fresh process
// invocation of this same binary rather than a continuation of the
// parent's Go state.
func (c *Controller) ConfiguratorsFor(spec *containerspec.ContainerSpec) (inside, outside []configurator.NsConfigurator) {
	return c.configuratorsFor(spec)
}

// configuratorsFor builds the inside- and outside-namespace configurator
// lists for spec. Inside, in order: Filesystem (or Mnt when mnt is requested
// without an fs subspec), Uts, Net, then always RunSpec and Machine. User is
// the only outside configurator. PID and IPC namespaces get no configurator
// of their own.
func (c *Controller) configuratorsFor(spec *containerspec.ContainerSpec) (inside, outside []configurator.NsConfigurator) {
	ns := spec.Namespaces

	if ns.Fs != nil {
		inside = append(inside, configurator.Filesystem{Fs: c.Fs, Mount: c.Mount, Time: c.Time})
	} else if ns.Mnt {
		inside = append(inside, configurator.Mnt{Mount: c.Mount})
	}

	if ns.Uts != nil {
		inside = append(inside, configurator.Uts{})
	}
	if ns.Net != nil {
		inside = append(inside, configurator.Net{Ops: c.Net, Fs: c.Fs})
	}
	if ns.User != nil {
		outside = append(outside, configurator.User{})
	}

	inside = append(inside, configurator.RunSpec{Proc: c.Proc, Fs: c.Fs, Whitelist: map[int]bool{0: true, 1: true, 2: true}})
	inside = append(inside, configurator.Machine{Fs: c.Fs, Proc: c.Proc, Gen: c.Gen})

	return inside, outside
}

// Run creates a new container from spec: clones the requested namespace
// set and starts spec.InitArgv as its init.
func (c *Controller) Run(spec *containerspec.ContainerSpec) (nshandle.Handle, error) {
	if spec.Namespaces.Fs != nil && !spec.Namespaces.Mnt {
		return nshandle.Handle{}, nserror.E(nserror.InvalidArgument, "fs subspec requires mnt namespace")
	}

	flags := flagsFromSpec(spec.Namespaces)
	supported, err := c.Util.SupportedNamespaces()
	if err != nil {
		return nshandle.Handle{}, err
	}
	for f := range flags {
		if !supported[f] {
			return nshandle.Handle{}, nserror.E(nserror.InvalidArgument, "namespace %s not supported by this kernel", f.Name())
		}
	}

	if len(spec.InitArgv) == 0 {
		spec.InitArgv = []string{"/bin/sh"}
	}

	inside, outside := c.configuratorsFor(spec)
	c.Launcher.InsideConfigurators = inside
	c.Launcher.OutsideConfigurators = outside

	_, handle, err := c.Launcher.NewNsProcess(flags, spec)
	if err != nil {
		return nshandle.Handle{}, err
	}

	if c.Locks != nil {
		if _, err := c.Locks.Create(handle.ToString(), false); err != nil {
			log.WarningfBestEffort("creating lock for container %s: %v", handle.ToString(), err)
		}
	}

	return handle, nil
}

// Exec starts spec.InitArgv inside an already-running container identified
// by handle, attaching to whichever namespaces the target differs in.
func (c *Controller) Exec(handle nshandle.Handle, spec *containerspec.ContainerSpec) (nshandle.Handle, error) {
	if !handle.IsValid(c.Gen) {
		return nshandle.Handle{}, nserror.E(nserror.NotFound, "stale or unknown container %s", handle.ToString())
	}

	unshared, err := c.Util.GetUnsharedNamespaces(handle.Pid)
	if err != nil {
		return nshandle.Handle{}, err
	}
	if err := c.Util.AttachNamespaces(unshared, handle.Pid); err != nil {
		return nshandle.Handle{}, err
	}

	enteredPid := false
	for _, f := range unshared {
		if f == nsutil.PID {
			enteredPid = true
		}
	}

	inside, _ := c.configuratorsFor(spec)
	c.Launcher.InsideConfigurators = inside

	_, newHandle, err := c.Launcher.NewNsProcessInTarget(enteredPid, spec)
	if err != nil {
		return nshandle.Handle{}, err
	}
	return newHandle, nil
}

// configuratorForFlag returns the single configurator tied to one namespace
// flag, for Update's per-namespace save/attach/run/restore loop. MNT maps to
// Filesystem with an fs subspec and to Mnt without one; PID and IPC have no
// standalone configurator and are skipped.
func (c *Controller) configuratorForFlag(spec *containerspec.ContainerSpec, f nsutil.Flag) configurator.NsConfigurator {
	ns := spec.Namespaces
	switch f {
	case nsutil.MNT:
		if ns.Fs != nil {
			return configurator.Filesystem{Fs: c.Fs, Mount: c.Mount, Time: c.Time}
		}
		return configurator.Mnt{Mount: c.Mount}
	case nsutil.UTS:
		return configurator.Uts{}
	case nsutil.Net:
		return configurator.Net{Ops: c.Net, Fs: c.Fs}
	case nsutil.User:
		return configurator.User{}
	default:
		return nil
	}
}

// presentFlags returns the namespace flags spec has a subspec for, in the
// order MNT, UTS, Net, User.
func presentFlags(ns containerspec.NamespaceSpec) []nsutil.Flag {
	var flags []nsutil.Flag
	if ns.Mnt || ns.Fs != nil {
		flags = append(flags, nsutil.MNT)
	}
	if ns.Uts != nil {
		flags = append(flags, nsutil.UTS)
	}
	if ns.Net != nil {
		flags = append(flags, nsutil.Net)
	}
	if ns.User != nil {
		flags = append(flags, nsutil.User)
	}
	return flags
}

// Update applies spec's present namespace subspecs to the running container
// identified by handle, one namespace at a time: save the caller's current
// namespace of that flag, attach to the target's, run the matching
// configurator's outside- then inside-phase, then restore the caller's
// original namespace and close the saved FD, per spec.md §4.9.
func (c *Controller) Update(handle nshandle.Handle, spec *containerspec.ContainerSpec) error {
	if !handle.IsValid(c.Gen) {
		return nserror.E(nserror.NotFound, "stale or unknown container %s", handle.ToString())
	}

	for _, f := range presentFlags(spec.Namespaces) {
		cfg := c.configuratorForFlag(spec, f)
		if cfg == nil {
			continue
		}

		saved, err := c.Util.SaveNamespace(f)
		if err != nil {
			return err
		}

		if err := c.Util.AttachNamespaces([]nsutil.Flag{f}, handle.Pid); err != nil {
			c.Util.RestoreAndDelete(f, saved)
			return err
		}

		runErr := cfg.SetupOutsideNamespace(spec, handle.Pid)
		if runErr == nil {
			runErr = cfg.SetupInsideNamespace(spec)
		}

		if err := c.Util.RestoreAndDelete(f, saved); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}
	}
	return nil
}

// Destroy sends SIGKILL to the container's init process. The operation is a
// total-order barrier against the container's lock handler (spec.md §5):
// SIGKILL is only sent once this process holds the lock exclusively, and the
// lock's own files are removed once the kill completes, so any caller still
// holding a shared lock at the time of destroy observes the handler gone
// afterward.
func (c *Controller) Destroy(handle nshandle.Handle) error {
	if !handle.IsValid(c.Gen) {
		return nserror.E(nserror.NotFound, "stale or unknown container %s", handle.ToString())
	}

	var h *lock.Handler
	if c.Locks != nil {
		if lh, err := c.Locks.Get(handle.ToString()); err == nil {
			if err := lh.Lock(); err != nil {
				return err
			}
			h = lh
		} else {
			log.WarningfBestEffort("no lock found for container %s: %v", handle.ToString(), err)
		}
	}

	if err := c.Proc.Kill(handle.Pid, unix.SIGKILL); err != nil {
		if h != nil {
			h.Unlock()
		}
		return nserror.Wrap(nserror.Internal, err, "kill(%d, SIGKILL)", handle.Pid)
	}

	if h != nil {
		if err := h.Unlock(); err != nil {
			log.WarningfBestEffort("unlocking container %s: %v", handle.ToString(), err)
		}
		if err := h.Destroy(); err != nil {
			log.WarningfBestEffort("removing lock for container %s: %v", handle.ToString(), err)
		}
	}
	return nil
}
