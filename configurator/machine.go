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
	"fmt"
	"os"
	"strings"

	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/log"
	"github.com/nscon/nscon/nshandle"
	"github.com/nscon/nscon/sysops"
)

// Machine writes a small descriptor of the finished container to
// /run/lmctfy/.machine.spec: hostname, the namespace set requested, and the
// container's handle cookie. It runs last in the inside-namespace phase,
// after Filesystem has mounted whatever /run ends up being, and never fails
// the launch: a missing or read-only /run just means no descriptor.
type Machine struct {
	Base

	Fs   sysops.FsOps
	Proc sysops.ProcessOps
	Gen  nshandle.Generator
}

var _ NsConfigurator = Machine{}

const machineSpecDir = "/run/lmctfy"
const machineSpecPath = machineSpecDir + "/.machine.spec"

func (m Machine) SetupInsideNamespace(spec *containerspec.ContainerSpec) error {
	if !wantsMachine(spec.Namespaces.Fs) {
		return nil
	}

	if err := m.Fs.Mkdir(machineSpecDir, 0755); err != nil && !os.IsExist(err) {
		log.WarningfBestEffort("creating %s: %v", machineSpecDir, err)
		return nil
	}

	hostname, _ := os.Hostname()
	ns := describeNamespaces(spec.Namespaces)

	handleStr := "unknown"
	if h, err := nshandle.New(m.Proc.Getpid(), m.Gen); err == nil {
		handleStr = h.ToString()
	}

	fd, err := m.Fs.Open(machineSpecPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		log.WarningfBestEffort("creating %s: %v", machineSpecPath, err)
		return nil
	}
	defer m.Fs.Close(fd)

	body := fmt.Sprintf("hostname: %s\nhandle: %s\nnamespaces: %s\n",
		hostname, handleStr, ns)
	if err := m.Fs.Write(fd, []byte(body)); err != nil {
		log.WarningfBestEffort("writing %s: %v", machineSpecPath, err)
	}
	return nil
}

func describeNamespaces(ns containerspec.NamespaceSpec) string {
	var parts []string
	if ns.Pid {
		parts = append(parts, "pid")
	}
	if ns.Mnt {
		parts = append(parts, "mnt")
	}
	if ns.Ipc {
		parts = append(parts, "ipc")
	}
	if ns.Uts != nil {
		parts = append(parts, "uts")
	}
	if ns.Net != nil {
		parts = append(parts, "net")
	}
	if ns.User != nil {
		parts = append(parts, "user")
	}
	if ns.Fs != nil {
		parts = append(parts, "mnt(fs)")
	}
	return strings.Join(parts, ",")
}

func wantsMachine(fs *containerspec.FsSpec) bool {
	return fs != nil && fs.Machine
}
