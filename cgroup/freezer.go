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
	cgroupsv1 "github.com/containerd/cgroups"

	"github.com/nscon/nscon/nserror"
)

// FreezerState mirrors the kernel's freezer.state values.
type FreezerState int

const (
	Unknown FreezerState = iota
	Thawed
	Freezing
	Frozen
)

// Freezer wraps a Controller bound to the freezer hierarchy with the
// THAWED/FREEZING/FROZEN state machine, delegated to containerd/cgroups
// rather than hand-rolled: its Cgroup.Freeze/Thaw/State already implement
// the kernel's freezer.state protocol, including the write-then-poll loop
// the raw interface requires.
type Freezer struct {
	Ctl *Controller

	cg cgroupsv1.Cgroup
}

// NewFreezer loads the containerd/cgroups handle for Ctl's directory; if
// loading fails it returns an Internal error and no Freezer.
func NewFreezer(ctl *Controller) (*Freezer, error) {
	cg, err := cgroupsv1.Load(cgroupsv1.V1, cgroupsv1.StaticPath(ctl.Path))
	if err != nil {
		return nil, nserror.Wrap(nserror.Internal, err, "loading freezer cgroup %s", ctl.Path)
	}
	return &Freezer{Ctl: ctl, cg: cg}, nil
}

// SafeToUpdate implements the precondition gating Freeze/Unfreeze: a
// kernel without freezer.parent_freezing support cannot correctly freeze a
// cgroup that has subcontainers of its own, since the child cgroups would
// not inherit the parent's frozen state.
func (f *Freezer) SafeToUpdate() (bool, error) {
	if _, err := f.Ctl.GetParamString("freezer.parent_freezing"); err == nil {
		return true, nil
	}
	subs, err := f.Ctl.GetSubcontainers()
	if err != nil {
		return false, err
	}
	return len(subs) == 0, nil
}

func (f *Freezer) guard() error {
	ok, err := f.SafeToUpdate()
	if err != nil {
		return err
	}
	if !ok {
		return nserror.E(nserror.FailedPrecondition,
			"cgroup %s has subcontainers and the kernel lacks freezer.parent_freezing", f.Ctl.Path)
	}
	return nil
}

func (f *Freezer) Freeze() error {
	if err := f.guard(); err != nil {
		return err
	}
	if err := f.cg.Freeze(); err != nil {
		return nserror.Wrap(nserror.Internal, err, "freezing %s", f.Ctl.Path)
	}
	return nil
}

func (f *Freezer) Unfreeze() error {
	if err := f.guard(); err != nil {
		return err
	}
	if err := f.cg.Thaw(); err != nil {
		return nserror.Wrap(nserror.Internal, err, "thawing %s", f.Ctl.Path)
	}
	return nil
}

func (f *Freezer) State() (FreezerState, error) {
	switch f.cg.State() {
	case cgroupsv1.Thawed:
		return Thawed, nil
	case cgroupsv1.Frozen:
		return Frozen, nil
	case cgroupsv1.Freezing:
		return Freezing, nil
	case cgroupsv1.Deleted:
		return Unknown, nserror.E(nserror.NotFound, "cgroup %s deleted", f.Ctl.Path)
	default:
		return Unknown, nserror.E(nserror.Internal, "unrecognized freezer state for %s", f.Ctl.Path)
	}
}
