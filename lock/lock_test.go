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

package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nscon/nscon/nserror"
)

func TestFactoryCreateThenGet(t *testing.T) {
	f := NewFactory(t.TempDir())
	h, err := f.Create("mycontainer", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if h.State() != Unlocked {
		t.Fatalf("got state %v, want Unlocked", h.State())
	}
	if _, err := f.Get("mycontainer"); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestFactoryCreateMakesChildDir(t *testing.T) {
	base := t.TempDir()
	f := NewFactory(base)
	if _, err := f.Create("mycontainer", false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if fi, err := os.Stat(filepath.Join(base, "mycontainer")); err != nil || !fi.IsDir() {
		t.Fatalf("expected child directory, stat: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "mycontainer.lock")); err != nil {
		t.Fatalf("expected lock file, stat: %v", err)
	}
}

func TestFactoryCreateTwiceFails(t *testing.T) {
	f := NewFactory(t.TempDir())
	if _, err := f.Create("mycontainer", false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.Create("mycontainer", false); !nserror.Is(err, nserror.AlreadyExists) {
		t.Fatalf("got %v, want AlreadyExists", err)
	}
}

func TestFactoryGetMissingIsNotFound(t *testing.T) {
	f := NewFactory(t.TempDir())
	if _, err := f.Get("nosuch"); !nserror.Is(err, nserror.NotFound) {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestLockUnlockCycle(t *testing.T) {
	f := NewFactory(t.TempDir())
	h, err := f.Create("mycontainer", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := h.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if h.State() != Exclusive {
		t.Fatalf("got state %v, want Exclusive", h.State())
	}
	if err := h.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if h.State() != Unlocked {
		t.Fatalf("got state %v, want Unlocked", h.State())
	}
}

func TestRLockUnlockCycle(t *testing.T) {
	f := NewFactory(t.TempDir())
	h, err := f.Create("mycontainer", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := h.RLock(); err != nil {
		t.Fatalf("RLock: %v", err)
	}
	if h.State() != Shared {
		t.Fatalf("got state %v, want Shared", h.State())
	}
	if err := h.RUnlock(); err != nil {
		t.Fatalf("RUnlock: %v", err)
	}
	if h.State() != Unlocked {
		t.Fatalf("got state %v, want Unlocked", h.State())
	}
}

func TestDestroyForbiddenOnRoot(t *testing.T) {
	f := NewFactory(t.TempDir())
	h, err := f.Create("/", true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := h.Destroy(); !nserror.Is(err, nserror.PermissionDenied) {
		t.Fatalf("got %v, want PermissionDenied", err)
	}
}

func TestDestroyRemovesLockAndChildDir(t *testing.T) {
	base := t.TempDir()
	f := NewFactory(base)
	h, err := f.Create("mycontainer", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := h.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "mycontainer.lock")); !os.IsNotExist(err) {
		t.Fatalf("lock file still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "mycontainer")); !os.IsNotExist(err) {
		t.Fatalf("child dir still present: %v", err)
	}
}

func TestInitMachineCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "locks")
	f := NewFactory(base)
	if err := f.InitMachine(); err != nil {
		t.Fatalf("InitMachine: %v", err)
	}
	if fi, err := os.Stat(base); err != nil || !fi.IsDir() {
		t.Fatalf("expected base dir, stat: %v", err)
	}
}
