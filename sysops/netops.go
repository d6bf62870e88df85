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

package sysops

import (
	"github.com/vishvananda/netlink"
)

// NetOps is the narrow facade over network interface manipulation used by
// the net namespace configurator. It is intentionally thin: nscon does not
// implement network policy, only moving an existing host interface into a
// container's netns and bringing it up with an address.
type NetOps interface {
	// MoveToNamespace moves the interface named ifaceName into the network
	// namespace identified by the open file descriptor nsFd.
	MoveToNamespace(ifaceName string, nsFd int) error
	// SetUpWithAddr brings the interface named ifaceName up inside the
	// caller's current namespace and assigns it cidr, e.g. "10.0.0.2/24".
	SetUpWithAddr(ifaceName, cidr string) error
}

// Linux also implements NetOps via vishvananda/netlink.
var _ NetOps = Linux{}

func (Linux) MoveToNamespace(ifaceName string, nsFd int) error {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return err
	}
	return netlink.LinkSetNsFd(link, nsFd)
}

func (Linux) SetUpWithAddr(ifaceName, cidr string) error {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return err
	}
	if cidr != "" {
		addr, err := netlink.ParseAddr(cidr)
		if err != nil {
			return err
		}
		if err := netlink.AddrAdd(link, addr); err != nil {
			return err
		}
	}
	return netlink.LinkSetUp(link)
}
