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
	"testing"

	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/sysops"
)

// preDiscovered builds a Factory seeded directly with byName, skipping the
// real /proc/mounts scan: ensureDiscovered is a no-op once f.discovered is
// true, so tests can exercise Get/Create/Mount's own logic in isolation.
func preDiscovered(t *testing.T, mounts map[string]Mount) *Factory {
	t.Helper()
	f := New(sysops.Linux{})
	f.discovered = true
	for name, m := range mounts {
		f.byName[name] = m
	}
	return f
}

func TestFactoryGetUnmountedHierarchy(t *testing.T) {
	f := preDiscovered(t, nil)
	if _, err := f.Get("cpu"); !nserror.Is(err, nserror.NotFound) {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestFactoryCreateAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	f := preDiscovered(t, map[string]Mount{
		"cpu": {Mountpoint: dir, Owns: true, Hierarchies: map[string]bool{"cpu": true}},
	})
	if err := os.Mkdir(filepath.Join(dir, "mycontainer"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Create("cpu", "mycontainer"); !nserror.Is(err, nserror.AlreadyExists) {
		t.Fatalf("got %v, want AlreadyExists", err)
	}
}

func TestFactoryCreateSucceeds(t *testing.T) {
	dir := t.TempDir()
	f := preDiscovered(t, map[string]Mount{
		"cpu": {Mountpoint: dir, Owns: true, Hierarchies: map[string]bool{"cpu": true}},
	})
	ctl, err := f.Create("cpu", "mycontainer")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ctl.Path != "mycontainer" {
		t.Fatalf("got path %q, want %q", ctl.Path, "mycontainer")
	}
	if _, err := os.Stat(filepath.Join(dir, "mycontainer")); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestFactoryMountIdempotentSamePath(t *testing.T) {
	dir := t.TempDir()
	f := preDiscovered(t, map[string]Mount{
		"cpu": {Mountpoint: dir, Owns: true, Hierarchies: map[string]bool{"cpu": true, "cpuacct": true}},
	})
	// Requesting the already-mounted exact set at the same path is a no-op.
	if _, err := f.Mount([]string{"cpu", "cpuacct"}, dir); err != nil {
		t.Fatalf("Mount (idempotent): %v", err)
	}
}

func TestFactoryMountConflictingPath(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	f := preDiscovered(t, map[string]Mount{
		"cpu": {Mountpoint: dir, Owns: true, Hierarchies: map[string]bool{"cpu": true}},
	})
	if _, err := f.Mount([]string{"cpu"}, other); !nserror.Is(err, nserror.InvalidArgument) {
		t.Fatalf("got %v, want InvalidArgument", err)
	}
}

func TestFactoryMountRejectsNarrowingExistingMountpoint(t *testing.T) {
	dir := t.TempDir()
	f := preDiscovered(t, map[string]Mount{
		"cpu":     {Mountpoint: dir, Owns: true, Hierarchies: map[string]bool{"cpu": true, "cpuacct": true}},
		"cpuacct": {Mountpoint: dir, Owns: false, Hierarchies: map[string]bool{"cpu": true, "cpuacct": true}},
	})
	// Requesting only "cpu" at a mountpoint that also hosts "cpuacct" would
	// silently narrow the recorded set, so it must be rejected.
	if _, err := f.Mount([]string{"cpu"}, dir); !nserror.Is(err, nserror.InvalidArgument) {
		t.Fatalf("got %v, want InvalidArgument", err)
	}
}

// fakeMountFs stubs the two syscalls Factory.Mount issues for a genuinely
// fresh mountpoint, so the test doesn't need CAP_SYS_ADMIN or a live cgroup
// v1 kernel to exercise the bookkeeping around a real mount(2) call.
type fakeMountFs struct {
	sysops.FsOps
	mounted []string
}

func (f *fakeMountFs) Mkdir(path string, mode uint32) error { return nil }
func (f *fakeMountFs) Mount(source, target, fstype string, flags uintptr, data string) error {
	f.mounted = append(f.mounted, target)
	return nil
}

func TestFactoryMountFreshPathOwnsFirstHierarchy(t *testing.T) {
	mountpoint := "/sys/fs/cgroup/fresh"
	fake := &fakeMountFs{}
	f := preDiscovered(t, nil)
	f.Fs = fake
	ctl, err := f.Mount([]string{"cpu", "cpuacct"}, mountpoint)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if ctl.Hierarchy != "cpu" {
		t.Fatalf("got hierarchy %q, want cpu", ctl.Hierarchy)
	}
	if !f.byName["cpu"].Owns {
		t.Fatal("expected cpu to own the fresh mountpoint")
	}
	if len(fake.mounted) != 1 || fake.mounted[0] != mountpoint {
		t.Fatalf("got mounted %v, want [%s]", fake.mounted, mountpoint)
	}
}

func TestFactoryDetectCgroupPathMissingHierarchy(t *testing.T) {
	f := preDiscovered(t, nil)
	if _, err := f.DetectCgroupPath(os.Getpid(), "nonexistent-hierarchy-xyz"); err == nil {
		t.Fatal("expected error for nonexistent hierarchy")
	}
}
