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
	"os"
	"sort"
	"testing"

	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/sysops"
)

type fakeFdFs struct {
	sysops.FsOps
	fds []string
}

func (f *fakeFdFs) ReadDir(path string) ([]os.DirEntry, error) {
	var out []os.DirEntry
	for _, name := range f.fds {
		out = append(out, fakeDirEntry(name))
	}
	return out, nil
}

type fakeDirEntry string

func (e fakeDirEntry) Name() string { return string(e) }
func (e fakeDirEntry) IsDir() bool { return false }
func (e fakeDirEntry) Type() os.FileMode { return 0 }
func (e fakeDirEntry) Info() (os.FileInfo, error) { return nil, nil }

type fakeCloexecProc struct {
	sysops.ProcessOps
	cloexeced []int
	groupsSet []int
	gid       *int
	uid       *int
}

func (p *fakeCloexecProc) FcntlCloseOnExec(fd int) error {
	p.cloexeced = append(p.cloexeced, fd)
	return nil
}

func (p *fakeCloexecProc) Setgroups(gids []int) error {
	p.groupsSet = gids
	return nil
}

func (p *fakeCloexecProc) Setresgid(rgid, egid, sgid int) error {
	g := egid
	p.gid = &g
	return nil
}

func (p *fakeCloexecProc) Setresuid(ruid, euid, suid int) error {
	u := euid
	p.uid = &u
	return nil
}

func TestRunSpecSweepsFdsNotOnWhitelist(t *testing.T) {
	fs := &fakeFdFs{fds: []string{"0", "1", "2", "3", "99", "1001"}}
	proc := &fakeCloexecProc{}
	rs := RunSpec{
		Proc:      proc,
		Fs:        fs,
		Whitelist: map[int]bool{99: true, 1001: true},
	}
	spec := &containerspec.ContainerSpec{}
	if err := rs.SetupInsideNamespace(spec); err != nil {
		t.Fatalf("SetupInsideNamespace: %v", err)
	}
	sort.Ints(proc.cloexeced)
	want := []int{0, 1, 2, 3}
	if len(proc.cloexeced) != len(want) {
		t.Fatalf("got cloexeced %v, want %v", proc.cloexeced, want)
	}
	for i, fd := range want {
		if proc.cloexeced[i] != fd {
			t.Fatalf("got cloexeced %v, want %v", proc.cloexeced, want)
		}
	}
}

func TestRunSpecSkipsSweepWhenInheritFds(t *testing.T) {
	fs := &fakeFdFs{fds: []string{"0", "1", "2", "3"}}
	proc := &fakeCloexecProc{}
	rs := RunSpec{Proc: proc, Fs: fs}
	spec := &containerspec.ContainerSpec{RunSpec: containerspec.RunSpec{InheritFds: true}}
	if err := rs.SetupInsideNamespace(spec); err != nil {
		t.Fatalf("SetupInsideNamespace: %v", err)
	}
	if len(proc.cloexeced) != 0 {
		t.Fatalf("expected no cloexec calls, got %v", proc.cloexeced)
	}
}

func TestRunSpecSetsUidGidAndClearsGroups(t *testing.T) {
	fs := &fakeFdFs{}
	proc := &fakeCloexecProc{}
	uid, gid := 1000, 1000
	rs := RunSpec{Proc: proc, Fs: fs, Whitelist: map[int]bool{}}
	spec := &containerspec.ContainerSpec{
		RunSpec: containerspec.RunSpec{Uid: &uid, Gid: &gid, InheritFds: true},
	}
	if err := rs.SetupInsideNamespace(spec); err != nil {
		t.Fatalf("SetupInsideNamespace: %v", err)
	}
	if proc.groupsSet != nil {
		t.Fatalf("expected supplementary groups cleared (nil), got %v", proc.groupsSet)
	}
	if proc.uid == nil || *proc.uid != uid {
		t.Fatalf("got uid %v, want %d", proc.uid, uid)
	}
	if proc.gid == nil || *proc.gid != gid {
		t.Fatalf("got gid %v, want %d", proc.gid, gid)
	}
}

func TestRunSpecSetsExplicitGroups(t *testing.T) {
	fs := &fakeFdFs{}
	proc := &fakeCloexecProc{}
	rs := RunSpec{Proc: proc, Fs: fs, Whitelist: map[int]bool{}}
	spec := &containerspec.ContainerSpec{
		RunSpec: containerspec.RunSpec{Groups: []int{27, 100}, InheritFds: true},
	}
	if err := rs.SetupInsideNamespace(spec); err != nil {
		t.Fatalf("SetupInsideNamespace: %v", err)
	}
	if len(proc.groupsSet) != 2 || proc.groupsSet[0] != 27 || proc.groupsSet[1] != 100 {
		t.Fatalf("got groups %v, want [27 100]", proc.groupsSet)
	}
}
