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
	"testing"

	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/sysops"
)

func newTestController(t *testing.T, owns bool) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	return &Controller{Fs: sysops.Linux{}, Hierarchy: "cpu", Mountpoint: dir, Path: "/", owns: owns}, dir
}

func writeControlFile(t *testing.T, dir, name, value string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0644); err != nil {
		t.Fatalf("seeding %s: %v", name, err)
	}
}

func TestControllerParamStringRoundTrip(t *testing.T) {
	ctl, dir := newTestController(t, true)
	writeControlFile(t, dir, "some.param", "")
	if err := ctl.SetParamString("some.param", "hello"); err != nil {
		t.Fatalf("SetParamString: %v", err)
	}
	got, err := ctl.GetParamString("some.param")
	if err != nil {
		t.Fatalf("GetParamString: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestControllerParamBoolRejectsOutOfRange(t *testing.T) {
	ctl, dir := newTestController(t, true)
	writeControlFile(t, dir, "freezer.state", "FROZEN")
	if _, err := ctl.GetParamBool("freezer.state"); !nserror.Is(err, nserror.OutOfRange) {
		t.Fatalf("got %v, want OutOfRange", err)
	}
}

func TestControllerParamBoolLiterals(t *testing.T) {
	ctl, dir := newTestController(t, true)
	writeControlFile(t, dir, "notify_on_release", "")
	if err := ctl.SetParamBool("notify_on_release", true); err != nil {
		t.Fatalf("SetParamBool: %v", err)
	}
	got, err := ctl.GetParamBool("notify_on_release")
	if err != nil {
		t.Fatalf("GetParamBool: %v", err)
	}
	if !got {
		t.Fatal("got false, want true")
	}
}

func TestControllerParamIntRoundTrip(t *testing.T) {
	ctl, dir := newTestController(t, true)
	writeControlFile(t, dir, "cpu.shares", "")
	if err := ctl.SetParamInt("cpu.shares", 512); err != nil {
		t.Fatalf("SetParamInt: %v", err)
	}
	got, err := ctl.GetParamInt("cpu.shares")
	if err != nil {
		t.Fatalf("GetParamInt: %v", err)
	}
	if got != 512 {
		t.Fatalf("got %d, want 512", got)
	}
}

func TestControllerEnterWritesTasks(t *testing.T) {
	ctl, dir := newTestController(t, true)
	writeControlFile(t, dir, "tasks", "")
	if err := ctl.Enter(4242); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	got, err := ctl.GetThreads()
	if err != nil {
		t.Fatalf("GetThreads: %v", err)
	}
	if len(got) != 1 || got[0] != 4242 {
		t.Fatalf("got %v, want [4242]", got)
	}
}

func TestControllerGetSubcontainers(t *testing.T) {
	ctl, dir := newTestController(t, true)
	if err := os.Mkdir(filepath.Join(dir, "child-a"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "child-b"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tasks"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	got, err := ctl.GetSubcontainers()
	if err != nil {
		t.Fatalf("GetSubcontainers: %v", err)
	}
	sort.Strings(got)
	want := []string{"child-a", "child-b"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestControllerDestroyRefusesUnownedRoot(t *testing.T) {
	ctl, _ := newTestController(t, false)
	if err := ctl.Destroy(); !nserror.Is(err, nserror.PermissionDenied) {
		t.Fatalf("got %v, want PermissionDenied", err)
	}
}

func TestControllerDestroyRemovesSubtreePostOrder(t *testing.T) {
	ctl, dir := newTestController(t, true)
	ctl.Path = "/parent"
	parent := filepath.Join(dir, "parent")
	child := filepath.Join(parent, "child")
	if err := os.MkdirAll(child, 0755); err != nil {
		t.Fatal(err)
	}
	if err := ctl.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := os.Stat(parent); !os.IsNotExist(err) {
		t.Fatalf("parent dir still present: %v", err)
	}
}
