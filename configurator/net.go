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
	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/sysops"
)

// Net moves a host interface into the new network namespace and brings it
// up with an address. Moving a link requires an open FD onto the target
// namespace, which only exists once the child's namespace is live; this
// configurator therefore runs entirely inside the namespace, acting as its
// own subprocess-local step rather than reaching across the barrier.
type Net struct {
	Base

	Ops sysops.NetOps
	Fs  sysops.FsOps
}

var _ NsConfigurator = Net{}

func (n Net) SetupInsideNamespace(spec *containerspec.ContainerSpec) error {
	ns := spec.Namespaces.Net
	if ns == nil || ns.Iface == "" {
		return nil
	}
	selfFd, err := n.Fs.Open("/proc/self/ns/net", 0, 0)
	if err == nil {
		defer n.Fs.Close(selfFd)
	}
	if err := n.Ops.MoveToNamespace(ns.Iface, selfFd); err != nil {
		return nserror.Wrap(nserror.Internal, err, "moving interface %s into namespace", ns.Iface)
	}
	if ns.Cidr != "" {
		if err := n.Ops.SetUpWithAddr(ns.Iface, ns.Cidr); err != nil {
			return nserror.Wrap(nserror.Internal, err, "configuring interface %s", ns.Iface)
		}
	}
	return nil
}
