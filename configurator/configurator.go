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

// Package configurator implements the per-namespace setup strategies the
// launcher runs around the clone barrier: one small configurator per
// namespace flag, plus the filesystem and machine-spec configurators that
// are not tied to a single namespace flag.
package configurator

import (
	"github.com/nscon/nscon/containerspec"
)

// NsConfigurator is the two-phase setup strategy every configurator
// implements. SetupOutsideNamespace runs in the parent, before the barrier
// releases the child; SetupInsideNamespace runs in the child, after. Either
// phase may be a no-op.
type NsConfigurator interface {
	// SetupOutsideNamespace runs in the launcher's process, observing the
	// freshly cloned child's pid.
	SetupOutsideNamespace(spec *containerspec.ContainerSpec, childPid int) error
	// SetupInsideNamespace runs in the child, after the barrier releases it
	// and before the RunSpec configurator and exec.
	SetupInsideNamespace(spec *containerspec.ContainerSpec) error
}

// Base gives every concrete configurator a no-op default for the phase it
// doesn't care about.
type Base struct{}

func (Base) SetupOutsideNamespace(spec *containerspec.ContainerSpec, childPid int) error {
	return nil
}

func (Base) SetupInsideNamespace(spec *containerspec.ContainerSpec) error {
	return nil
}
