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

// Package cgroup implements the cgroup v1 factory and controller layer:
// hierarchy discovery from /proc/mounts, mount ownership tracking, and the
// per-hierarchy controller operations (enter, delegate, destroy, freeze).
package cgroup

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/procutil"
	"github.com/nscon/nscon/sysops"
)

// Mount records one discovered or created cgroup mountpoint: where it
// lives, whether this Factory instance was the one that mounted or first
// observed it, and the full set of hierarchy names co-mounted there (not
// just the one currently being queried), since Mount's conflict check is
// against the whole option set of an existing mountpoint.
type Mount struct {
	Mountpoint string
	Owns       bool
	Hierarchies map[string]bool
}

// Factory discovers and creates cgroup hierarchies.
type Factory struct {
	Fs sysops.FsOps

	mu         sync.Mutex
	byName     map[string]Mount
	discovered bool
}

// New returns a Factory that has not yet scanned /proc/mounts; the first
// call to Get, Create, or Mount triggers discovery.
func New(fs sysops.FsOps) *Factory {
	return &Factory{Fs: fs, byName: make(map[string]Mount)}
}

func (f *Factory) ensureDiscovered() error {
	if f.discovered {
		return nil
	}
	entries, err := procutil.ReadMounts(procutil.ProcMountsPath(0))
	if err != nil {
		return nserror.Wrap(nserror.Internal, err, "reading /proc/mounts")
	}
	for _, e := range entries {
		if e.Type != "cgroup" {
			continue
		}
		if err := f.Fs.Access(e.Mountpoint, unix.R_OK); err != nil {
			continue
		}
		names := make(map[string]bool)
		for _, opt := range e.Options {
			if isHierarchyOption(opt) {
				names[opt] = true
			}
		}
		if len(names) == 0 {
			continue
		}
		// The first hierarchy listed at a mountpoint owns it.
		owned := false
		for _, opt := range e.Options {
			if !names[opt] {
				continue
			}
			if _, exists := f.byName[opt]; exists {
				continue
			}
			f.byName[opt] = Mount{Mountpoint: e.Mountpoint, Owns: !owned, Hierarchies: names}
			owned = true
		}
	}
	f.discovered = true
	return nil
}

// isHierarchyOption reports whether a /proc/mounts cgroup option names a
// subsystem rather than a generic mount flag like "rw" or "relatime".
func isHierarchyOption(opt string) bool {
	switch opt {
	case "rw", "ro", "relatime", "noexec", "nosuid", "nodev":
		return false
	default:
		return true
	}
}

// Get returns the Controller for an already-mounted hierarchy.
func (f *Factory) Get(hierarchy string) (*Controller, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureDiscovered(); err != nil {
		return nil, err
	}
	m, ok := f.byName[hierarchy]
	if !ok {
		return nil, nserror.E(nserror.NotFound, "cgroup hierarchy %q not mounted", hierarchy)
	}
	return &Controller{Fs: f.Fs, Hierarchy: hierarchy, Mountpoint: m.Mountpoint, Path: "/"}, nil
}

// Create creates a subcontainer directory at path under hierarchy's
// mountpoint and returns a Controller bound to it.
func (f *Factory) Create(hierarchy, path string) (*Controller, error) {
	ctl, err := f.Get(hierarchy)
	if err != nil {
		return nil, err
	}
	full := filepath.Join(ctl.Mountpoint, path)
	if err := f.Fs.Mkdir(full, 0755); err != nil {
		if os.IsExist(err) {
			return nil, nserror.E(nserror.AlreadyExists, "cgroup %s already exists in %s", path, hierarchy)
		}
		return nil, nserror.Wrap(nserror.Internal, err, "creating cgroup %s", full)
	}
	ctl.Path = path
	ctl.owns = true
	return ctl, nil
}

// Mount mounts a cgroup hierarchy combining the given subsystem names at
// mountpoint, per spec.md §4.4 and §8's idempotence property:
//   - any requested hierarchy already mounted at a *different* path is a
//     conflict (InvalidArgument);
//   - mountpoint already hosting hierarchies outside the requested set is a
//     conflict (InvalidArgument) -- Mount never silently narrows a mount;
//   - if mountpoint already hosts exactly the requested set, the call is a
//     no-op (OK);
//   - if mountpoint hosts a proper subset of the requested set (a "strict
//     superset" request), the mount is refreshed to add the new
//     subsystems and ownership records are widened to the full set;
//   - otherwise mountpoint is fresh: mkdir (the final directory only; its
//     parents are not created and must already exist), mount, and
//     ownership is recorded for the first hierarchy only.
func (f *Factory) Mount(hierarchies []string, mountpoint string) (*Controller, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureDiscovered(); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(hierarchies))
	for _, h := range hierarchies {
		wanted[h] = true
	}

	var existing map[string]bool
	for _, h := range hierarchies {
		if m, ok := f.byName[h]; ok {
			if m.Mountpoint != mountpoint {
				return nil, nserror.E(nserror.InvalidArgument,
					"hierarchy %q already mounted at %s, not %s", h, m.Mountpoint, mountpoint)
			}
			existing = m.Hierarchies
		}
	}
	for name, m := range f.byName {
		if m.Mountpoint == mountpoint {
			existing = m.Hierarchies
			if !wanted[name] {
				return nil, nserror.E(nserror.InvalidArgument,
					"mountpoint %s already hosts unrequested hierarchy %q", mountpoint, name)
			}
		}
	}

	if existing != nil && sameSet(existing, wanted) {
		return &Controller{Fs: f.Fs, Hierarchy: hierarchies[0], Mountpoint: mountpoint, Path: "/"}, nil
	}

	if err := f.Fs.Mkdir(mountpoint, 0755); err != nil && !os.IsExist(err) {
		return nil, nserror.Wrap(nserror.Internal, err, "creating mountpoint %s", mountpoint)
	}
	opts := strings.Join(hierarchies, ",")
	if err := f.Fs.Mount("cgroup", mountpoint, "cgroup", 0, opts); err != nil {
		return nil, nserror.Wrap(nserror.Internal, err, "mounting cgroup %s at %s", opts, mountpoint)
	}

	owns := existing == nil
	for _, h := range hierarchies {
		prevOwns := owns && h == hierarchies[0]
		if m, ok := f.byName[h]; ok {
			prevOwns = m.Owns
		}
		f.byName[h] = Mount{Mountpoint: mountpoint, Owns: prevOwns, Hierarchies: wanted}
	}
	if existing == nil {
		f.byName[hierarchies[0]] = Mount{Mountpoint: mountpoint, Owns: true, Hierarchies: wanted}
	}
	return &Controller{Fs: f.Fs, Hierarchy: hierarchies[0], Mountpoint: mountpoint, Path: "/", owns: existing == nil}, nil
}

func sameSet(a map[string]bool, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// DetectCgroupPath returns the hierarchy-relative path tid currently
// belongs to within hierarchy, read from /proc/<tid>/cgroup.
func (f *Factory) DetectCgroupPath(tid int, hierarchy string) (string, error) {
	entries, err := procutil.ReadProcCgroup(tid)
	if err != nil {
		return "", nserror.Wrap(nserror.Internal, err, "reading /proc/%d/cgroup", tid)
	}
	path, ok := procutil.FindHierarchyPath(entries, hierarchy)
	if !ok {
		return "", nserror.E(nserror.NotFound, "pid %d not in hierarchy %q", tid, hierarchy)
	}
	return path, nil
}
