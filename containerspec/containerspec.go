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

// Package containerspec defines the wire types describing a container to be
// created or updated: ContainerSpec, its per-namespace subspecs, and
// RunSpec. Namespace identity and ID mappings reuse the OCI runtime-spec
// types rather than a bespoke schema.
package containerspec

import (
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// FdPolicy controls what RunSpecConfigurator does with inherited file
// descriptors.
type FdPolicy int

const (
	// Detached closes every non-whitelisted FD (the default).
	Detached FdPolicy = iota
	// Inherit leaves all FDs open across exec.
	Inherit
)

// ConsoleSpec requests a pseudoterminal for the new process's stdio.
type ConsoleSpec struct {
	// SlavePtyDevice optionally pins the pty slave to a specific device
	// number; zero means "allocate the next free one".
	SlavePtyDevice int
}

// RunSpec is the process-attribute configuration applied inside the new
// namespace set, immediately before execve.
type RunSpec struct {
	Uid             *int
	Gid             *int
	Groups          []int
	ApparmorProfile string
	FdPolicy        FdPolicy
	Console         *ConsoleSpec
	InheritFds      bool
}

// UserSpec configures the user namespace's uid/gid mappings.
type UserSpec struct {
	UidMappings []specs.LinuxIDMapping
	GidMappings []specs.LinuxIDMapping
}

// UtsSpec configures the uts namespace's virtual hostname.
type UtsSpec struct {
	Vhostname string
}

// NetSpec configures the network namespace's interface setup.
type NetSpec struct {
	// Iface is the host interface moved into the new namespace, if any.
	Iface string
	// Cidr is the address assigned to Iface once inside the namespace,
	// e.g. "10.0.0.2/24".
	Cidr string
}

// ExternalMount is one bind-mount entry applied during filesystem
// preparation.
type ExternalMount struct {
	Source     string
	Target     string
	ReadOnly   bool
	Private    bool
	Slave      bool
}

// FsSpec configures the mount namespace's filesystem preparation.
type FsSpec struct {
	RootfsPath    string
	ChrootToRootfs bool
	ExternalMounts []ExternalMount
	// Machine, if true, causes the machine-spec configurator to record a
	// descriptor of the finished container at /run/lmctfy/.machine.spec.
	Machine bool
}

// NamespaceSpec collects the optional per-namespace subspecs. A nil field
// means that namespace is not requested, except Pid/Mnt/Ipc which are plain
// bools: their configuration is either absent or the zero-value strategy.
type NamespaceSpec struct {
	Pid  bool
	Mnt  bool
	Ipc  bool
	Uts  *UtsSpec
	Net  *NetSpec
	User *UserSpec
	Fs   *FsSpec
}

// ContainerSpec is the top-level request to create or update a container.
type ContainerSpec struct {
	Namespaces NamespaceSpec
	RunSpec    RunSpec
	// InitArgv is the argv of the container's init process. Empty means the
	// caller wants the default nsinit wrapper.
	InitArgv []string
}
