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

package controller

import (
	"fmt"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/nshandle"
	"github.com/nscon/nscon/nsutil"
	"github.com/nscon/nscon/sysops"
)

type fakeGen struct {
	valid map[int]bool
}

func (g fakeGen) Generate(pid int) (string, error) {
	if !g.valid[pid] {
		return "", os.ErrNotExist
	}
	return "cookie", nil
}

type fakeProc struct {
	sysops.ProcessOps
	killed []int
}

func (p *fakeProc) Kill(pid int, sig unix.Signal) error {
	p.killed = append(p.killed, pid)
	return nil
}

func validHandle(pid int) (nshandle.Handle, fakeGen) {
	gen := fakeGen{valid: map[int]bool{pid: true}}
	return nshandle.Handle{Cookie: "cookie", Pid: pid}, gen
}

func TestRunRejectsFsWithoutMnt(t *testing.T) {
	c := &Controller{Gen: fakeGen{}}
	spec := &containerspec.ContainerSpec{
		Namespaces: containerspec.NamespaceSpec{
			Fs: &containerspec.FsSpec{RootfsPath: "/tmp/root"},
		},
	}
	_, err := c.Run(spec)
	if err == nil {
		t.Fatal("expected error for fs subspec without mnt")
	}
}

func TestFlagsFromSpec(t *testing.T) {
	ns := containerspec.NamespaceSpec{
		Pid: true,
		Mnt: true,
		Uts: &containerspec.UtsSpec{Vhostname: "h"},
	}
	got := flagsFromSpec(ns)
	for _, f := range []nsutil.Flag{nsutil.PID, nsutil.MNT, nsutil.UTS} {
		if !got[f] {
			t.Fatalf("flag %s missing from %v", f.Name(), got)
		}
	}
	if got[nsutil.Net] || got[nsutil.User] || got[nsutil.IPC] {
		t.Fatalf("unrequested flag present in %v", got)
	}
}

func TestDestroyRejectsStaleHandle(t *testing.T) {
	proc := &fakeProc{}
	c := &Controller{Proc: proc, Gen: fakeGen{valid: map[int]bool{}}}
	err := c.Destroy(nshandle.Handle{Cookie: "cookie", Pid: 1234})
	if err == nil {
		t.Fatal("expected error for stale handle")
	}
	if len(proc.killed) != 0 {
		t.Fatalf("kill should not have been called, got %v", proc.killed)
	}
}

func TestDestroyKillsInitProcess(t *testing.T) {
	proc := &fakeProc{}
	handle, gen := validHandle(4242)
	c := &Controller{Proc: proc, Gen: gen}
	if err := c.Destroy(handle); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if len(proc.killed) != 1 || proc.killed[0] != 4242 {
		t.Fatalf("got killed %v, want [4242]", proc.killed)
	}
}

func TestExecRejectsStaleHandle(t *testing.T) {
	c := &Controller{Gen: fakeGen{valid: map[int]bool{}}}
	_, err := c.Exec(nshandle.Handle{Cookie: "cookie", Pid: 99}, &containerspec.ContainerSpec{})
	if err == nil {
		t.Fatal("expected error for stale handle")
	}
}

func TestUpdateRejectsStaleHandle(t *testing.T) {
	c := &Controller{Gen: fakeGen{valid: map[int]bool{}}}
	err := c.Update(nshandle.Handle{Cookie: "cookie", Pid: 99}, &containerspec.ContainerSpec{})
	if err == nil {
		t.Fatal("expected error for stale handle")
	}
}

func TestPresentFlagsOrdering(t *testing.T) {
	ns := containerspec.NamespaceSpec{
		Mnt:  true,
		Uts:  &containerspec.UtsSpec{Vhostname: "h"},
		Net:  &containerspec.NetSpec{Iface: "eth0"},
		User: &containerspec.UserSpec{},
	}
	got := presentFlags(ns)
	want := []nsutil.Flag{nsutil.MNT, nsutil.UTS, nsutil.Net, nsutil.User}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestConfiguratorForFlagSkipsPidAndIpc(t *testing.T) {
	c := &Controller{}
	spec := &containerspec.ContainerSpec{}
	if cfg := c.configuratorForFlag(spec, nsutil.PID); cfg != nil {
		t.Fatalf("expected nil configurator for PID, got %v", cfg)
	}
	if cfg := c.configuratorForFlag(spec, nsutil.IPC); cfg != nil {
		t.Fatalf("expected nil configurator for IPC, got %v", cfg)
	}
}

func TestConfiguratorForFlagMntPicksFilesystemWhenFsPresent(t *testing.T) {
	c := &Controller{}
	withFs := &containerspec.ContainerSpec{
		Namespaces: containerspec.NamespaceSpec{
			Mnt: true,
			Fs:  &containerspec.FsSpec{RootfsPath: "/rootfs"},
		},
	}
	withoutFs := &containerspec.ContainerSpec{Namespaces: containerspec.NamespaceSpec{Mnt: true}}

	gotType := fmt.Sprintf("%T", c.configuratorForFlag(withFs, nsutil.MNT))
	if gotType != "configurator.Filesystem" {
		t.Fatalf("got %s, want configurator.Filesystem", gotType)
	}
	gotType = fmt.Sprintf("%T", c.configuratorForFlag(withoutFs, nsutil.MNT))
	if gotType != "configurator.Mnt" {
		t.Fatalf("got %s, want configurator.Mnt", gotType)
	}
}
