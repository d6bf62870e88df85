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

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/nserror"
)

// User writes the child's uid_map/gid_map from the parent side while the
// child still blocks on the barrier -- the only window in which a
// privileged parent can write another process's id maps for a namespace
// that process itself just created.
type User struct {
	Base
}

var _ NsConfigurator = User{}

func (User) SetupOutsideNamespace(spec *containerspec.ContainerSpec, childPid int) error {
	u := spec.Namespaces.User
	if u == nil {
		return nil
	}
	if len(u.GidMappings) > 0 {
		if err := os.WriteFile(fmt.Sprintf("/proc/%d/setgroups", childPid), []byte("deny"), 0644); err != nil && !os.IsNotExist(err) {
			return nserror.Wrap(nserror.Internal, err, "denying setgroups for pid %d", childPid)
		}
		if err := writeIDMap(childPid, "gid_map", u.GidMappings); err != nil {
			return err
		}
	}
	if len(u.UidMappings) > 0 {
		if err := writeIDMap(childPid, "uid_map", u.UidMappings); err != nil {
			return err
		}
	}
	return nil
}

func writeIDMap(pid int, file string, mappings []specs.LinuxIDMapping) error {
	path := fmt.Sprintf("/proc/%d/%s", pid, file)
	var data string
	for _, m := range mappings {
		data += fmt.Sprintf("%d %d %d\n", m.ContainerID, m.HostID, m.Size)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return nserror.Wrap(nserror.Internal, err, "writing %s", path)
	}
	return nil
}
