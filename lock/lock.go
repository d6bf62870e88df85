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

// Package lock implements the per-container file lock handler: a kernel
// flock(2) tier (so independent nscon processes serialize on a container),
// composed with an intra-process sync.RWMutex tier (so goroutines within
// one process serialize too, since flock(2) alone is a no-op between
// threads of the same process).
package lock

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/cleanup"
	"github.com/nscon/nscon/nserror"
)

// State is the handler's current lock state.
type State int

const (
	Unlocked State = iota
	Shared
	Exclusive
)

// Handler is the lock for one container. Its lock file is "<name>.lock"
// next to a sibling "<name>/" directory that holds any child containers'
// own lock files, mirroring the container namespace's tree shape onto the
// filesystem.
type Handler struct {
	name     string
	path     string
	childDir string
	isRoot   bool

	file *flock.Flock
	rw   sync.RWMutex

	stateMu sync.Mutex
	state   State
}

// Factory creates and looks up Handlers rooted at a base directory.
type Factory struct {
	BaseDir string
}

func NewFactory(baseDir string) *Factory {
	return &Factory{BaseDir: baseDir}
}

func (f *Factory) paths(name string) (lockPath, childDir string) {
	return filepath.Join(f.BaseDir, name+".lock"), filepath.Join(f.BaseDir, name)
}

// Create makes a new Handler for name: exclusively creates its lock file,
// then its child directory. isRoot marks the top-level container whose
// Handler can never be destroyed.
func (f *Factory) Create(name string, isRoot bool) (*Handler, error) {
	lockPath, childDir := f.paths(name)

	fd, err := os.OpenFile(lockPath, os.O_RDONLY|os.O_CREATE|os.O_EXCL|unix.O_CLOEXEC, 0664)
	if err != nil {
		if os.IsExist(err) {
			return nil, nserror.E(nserror.AlreadyExists, "lock for %q already exists", name)
		}
		return nil, nserror.Wrap(nserror.Internal, err, "creating lock file %s", lockPath)
	}
	fd.Close()
	c := cleanup.Make(func() { os.Remove(lockPath) })
	defer c.Clean()

	if err := os.MkdirAll(childDir, 0755); err != nil {
		return nil, nserror.Wrap(nserror.Internal, err, "creating %s", childDir)
	}

	c.Release()
	return &Handler{
		name:     name,
		path:     lockPath,
		childDir: childDir,
		isRoot:   isRoot,
		file:     flock.New(lockPath),
	}, nil
}

// Get returns a Handler for an already-created name.
func (f *Factory) Get(name string) (*Handler, error) {
	lockPath, childDir := f.paths(name)
	if _, err := os.Stat(lockPath); err != nil {
		return nil, nserror.Wrap(nserror.NotFound, err, "lock for %q", name)
	}
	if _, err := os.Stat(childDir); err != nil {
		return nil, nserror.Wrap(nserror.NotFound, err, "lock directory for %q", name)
	}
	return &Handler{
		name:     name,
		path:     lockPath,
		childDir: childDir,
		file:     flock.New(lockPath),
	}, nil
}

// InitMachine ensures the base directory backing the whole lock tree exists,
// called once at startup the way lmctfy's machine-level lock root is
// created before any container lock.
func (f *Factory) InitMachine() error {
	if err := os.MkdirAll(f.BaseDir, 0755); err != nil {
		return nserror.Wrap(nserror.Internal, err, "creating lock root %s", f.BaseDir)
	}
	return nil
}

// ChildPath returns where a child container named child would keep its own
// lock file, under this Handler's child directory.
func (h *Handler) ChildPath(child string) string {
	return filepath.Join(h.childDir, child)
}

// Lock takes the lock exclusively: the in-process writer lock, then the
// cross-process flock. If the lock file was removed (by a concurrent
// Destroy) between this Handler's creation and the flock call, that race is
// surfaced as NotFound rather than a misleadingly-successful lock on a
// file a concurrent Destroy is already tearing down.
func (h *Handler) Lock() error {
	h.rw.Lock()
	if err := h.file.Lock(); err != nil {
		h.rw.Unlock()
		return nserror.Wrap(nserror.Internal, err, "flock %s", h.path)
	}
	if _, err := os.Stat(h.path); err != nil {
		h.file.Unlock()
		h.rw.Unlock()
		return nserror.Wrap(nserror.NotFound, err, "lock file %s removed concurrently", h.path)
	}
	h.setState(Exclusive)
	return nil
}

// RLock takes the lock shared.
func (h *Handler) RLock() error {
	h.rw.RLock()
	if err := h.file.RLock(); err != nil {
		h.rw.RUnlock()
		return nserror.Wrap(nserror.Internal, err, "flock shared %s", h.path)
	}
	h.setState(Shared)
	return nil
}

// Unlock releases an exclusive lock taken by Lock.
func (h *Handler) Unlock() error {
	if err := h.file.Unlock(); err != nil {
		return nserror.Wrap(nserror.Internal, err, "unflock %s", h.path)
	}
	h.rw.Unlock()
	h.setState(Unlocked)
	return nil
}

// RUnlock releases a shared lock taken by RLock.
func (h *Handler) RUnlock() error {
	if err := h.file.Unlock(); err != nil {
		return nserror.Wrap(nserror.Internal, err, "unflock %s", h.path)
	}
	h.rw.RUnlock()
	h.setState(Unlocked)
	return nil
}

func (h *Handler) setState(s State) {
	h.stateMu.Lock()
	h.state = s
	h.stateMu.Unlock()
}

// State returns the handler's last-known lock state.
func (h *Handler) State() State {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.state
}

// Destroy takes the lock exclusively, then removes this container's child
// directory and lock file, tolerating either already being gone. The root
// container's Handler can never be destroyed.
func (h *Handler) Destroy() error {
	if h.isRoot {
		return nserror.E(nserror.PermissionDenied, "cannot destroy the root container's lock")
	}
	if err := h.Lock(); err != nil {
		return err
	}
	if err := os.RemoveAll(h.childDir); err != nil {
		h.Unlock()
		return nserror.Wrap(nserror.Internal, err, "removing %s", h.childDir)
	}
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		h.Unlock()
		return nserror.Wrap(nserror.Internal, err, "removing %s", h.path)
	}
	return nil
}
