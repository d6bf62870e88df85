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
	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/nserror"
)

// Uts sets the virtual hostname inside a new UTS namespace. It has no
// outside-namespace work.
type Uts struct {
	Base
}

var _ NsConfigurator = Uts{}

func (Uts) SetupInsideNamespace(spec *containerspec.ContainerSpec) error {
	u := spec.Namespaces.Uts
	if u == nil || u.Vhostname == "" {
		return nil
	}
	if err := unix.Sethostname([]byte(u.Vhostname)); err != nil {
		return nserror.Wrap(nserror.Internal, err, "sethostname(%q)", u.Vhostname)
	}
	return nil
}
