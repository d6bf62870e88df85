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
)

// newTestFreezer builds a Freezer directly around a Controller over a plain
// temp directory, bypassing NewFreezer's containerd/cgroups Load call: the
// properties under test here (SafeToUpdate, guard) only touch Ctl's raw
// control-file accessors, never the loaded cgroupsv1.Cgroup handle.
func newTestFreezer(t *testing.T) (*Freezer, string) {
	t.Helper()
	ctl, dir := newTestController(t, true)
	return &Freezer{Ctl: ctl}, dir
}

func TestFreezerSafeWhenParentFreezingSupported(t *testing.T) {
	f, dir := newTestFreezer(t)
	writeControlFile(t, dir, "freezer.parent_freezing", "0")
	if err := os.Mkdir(filepath.Join(dir, "child"), 0755); err != nil {
		t.Fatal(err)
	}
	ok, err := f.SafeToUpdate()
	if err != nil {
		t.Fatalf("SafeToUpdate: %v", err)
	}
	if !ok {
		t.Fatal("expected safe to update when freezer.parent_freezing exists, even with subcontainers")
	}
}

func TestFreezerUnsafeWithoutParentFreezingAndSubcontainers(t *testing.T) {
	f, dir := newTestFreezer(t)
	if err := os.Mkdir(filepath.Join(dir, "child"), 0755); err != nil {
		t.Fatal(err)
	}
	ok, err := f.SafeToUpdate()
	if err != nil {
		t.Fatalf("SafeToUpdate: %v", err)
	}
	if ok {
		t.Fatal("expected unsafe: no freezer.parent_freezing and a subcontainer exists")
	}
}

func TestFreezerSafeWithoutParentFreezingButNoSubcontainers(t *testing.T) {
	f, _ := newTestFreezer(t)
	ok, err := f.SafeToUpdate()
	if err != nil {
		t.Fatalf("SafeToUpdate: %v", err)
	}
	if !ok {
		t.Fatal("expected safe: no freezer.parent_freezing but also no subcontainers")
	}
}

func TestFreezerFreezeRejectsUnsafeWithoutWritingState(t *testing.T) {
	f, dir := newTestFreezer(t)
	if err := os.Mkdir(filepath.Join(dir, "child"), 0755); err != nil {
		t.Fatal(err)
	}
	writeControlFile(t, dir, "freezer.state", "THAWED")

	if err := f.Freeze(); !nserror.Is(err, nserror.FailedPrecondition) {
		t.Fatalf("got %v, want FailedPrecondition", err)
	}
	got, err := f.Ctl.GetParamString("freezer.state")
	if err != nil {
		t.Fatalf("GetParamString: %v", err)
	}
	if got != "THAWED" {
		t.Fatalf("freezer.state was modified despite guard rejection: %q", got)
	}
}
