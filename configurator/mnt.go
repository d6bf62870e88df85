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
	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/mountutil"
	"github.com/nscon/nscon/nserror"
)

// Mnt is the minimal mount-namespace configurator registered whenever NEWNS
// is requested without an fs subspec: it marks the whole mount tree
// MS_PRIVATE|MS_REC so later mount/unmount actions inside the namespace
// never propagate back to the host. The heavier rootfs pivot/chroot work
// lives in Filesystem and only runs when fs is set.
type Mnt struct {
	Base

	Mount mountutil.MountUtils
}

var _ NsConfigurator = Mnt{}

func (m Mnt) SetupInsideNamespace(spec *containerspec.ContainerSpec) error {
	if spec.Namespaces.Fs != nil {
		// With an fs subspec Mnt does nothing; Filesystem's pivot/chroot
		// sequence does not change mount propagation either.
		return nil
	}
	if err := m.Mount.BindMount("none", "/", mountutil.Private, mountutil.Recursive); err != nil {
		return nserror.Wrap(nserror.Internal, err, "marking / private")
	}
	return nil
}
