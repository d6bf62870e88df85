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
	"os"

	"github.com/syndtr/gocapability/capability"

	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/log"
	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/nsutil"
	"github.com/nscon/nscon/sysops"
)

// RunSpec applies the process-attribute half of a container's spec: group
// and uid/gid changes, an AppArmor profile, a capability bounding-set
// restriction when dropping privilege, and the FD_CLOEXEC sweep that
// implements fd_policy. It runs after every namespace-specific configurator
// in the inside-namespace phase (only Machine follows it), since setresuid(2) away from root
// would otherwise block the writes those configurators still need to make.
type RunSpec struct {
	Base

	Proc sysops.ProcessOps
	Fs   sysops.FsOps

	// Whitelist holds FDs that must survive the sweep regardless of
	// fd_policy: stdio, the console slave, and the IPC agent's own FDs. The
	// launcher populates this per invocation, since it varies with which
	// console and IPC FDs a given process was handed.
	Whitelist map[int]bool
}

var _ NsConfigurator = RunSpec{}

func (r RunSpec) SetupInsideNamespace(spec *containerspec.ContainerSpec) error {
	rs := spec.RunSpec

	if rs.Groups != nil {
		if err := r.Proc.Setgroups(rs.Groups); err != nil {
			return nserror.Wrap(nserror.Internal, err, "setgroups")
		}
	} else if rs.Gid != nil || rs.Uid != nil {
		if err := r.Proc.Setgroups(nil); err != nil {
			return nserror.Wrap(nserror.Internal, err, "clearing supplementary groups")
		}
	}

	if rs.Gid != nil {
		if err := r.Proc.Setresgid(*rs.Gid, *rs.Gid, *rs.Gid); err != nil {
			return nserror.Wrap(nserror.Internal, err, "setresgid(%d)", *rs.Gid)
		}
	}
	if rs.Uid != nil {
		if err := r.Proc.Setresuid(*rs.Uid, *rs.Uid, *rs.Uid); err != nil {
			return nserror.Wrap(nserror.Internal, err, "setresuid(%d)", *rs.Uid)
		}
	}

	if rs.ApparmorProfile != "" {
		if err := r.applyApparmor(rs.ApparmorProfile); err != nil {
			log.WarningfBestEffort("applying apparmor profile %s: %v", rs.ApparmorProfile, err)
		}
	}

	if rs.Uid != nil && *rs.Uid != 0 {
		if err := dropBoundingCapabilities(); err != nil {
			return nserror.Wrap(nserror.Internal, err, "dropping bounding capabilities")
		}
	}

	if !rs.InheritFds && rs.FdPolicy != containerspec.Inherit {
		if err := r.sweepFds(); err != nil {
			return err
		}
	}

	return nil
}

// applyApparmor writes the requested profile to /proc/self/attr/exec, the
// standard way a process requests its own exec-time LSM label.
func (r RunSpec) applyApparmor(profile string) error {
	fd, err := r.Fs.Open("/proc/self/attr/exec", os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer r.Fs.Close(fd)
	return r.Fs.Write(fd, []byte("exec "+profile))
}

// dropBoundingCapabilities clears every capability from the effective,
// permitted, inheritable, bounding and ambient sets once the process has
// given up root, so a later setuid(0)-capable exploit
// cannot reacquire them. Grounded on the ambient-capability handling in
// runsc's sandbox launcher, which likewise narrows the capability set
// before handing control to untrusted code.
func dropBoundingCapabilities() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return err
	}
	if err := caps.Load(); err != nil {
		return err
	}
	caps.Clear(capability.CAPS | capability.BOUNDING | capability.AMBIENT)
	return caps.Apply(capability.CAPS | capability.BOUNDING | capability.AMBIENT)
}

// sweepFds applies FD_CLOEXEC to every open FD not on the whitelist, so a
// Detached fd_policy process doesn't leak the launcher's descriptors across
// exec.
func (r RunSpec) sweepFds() error {
	fds, err := nsutil.GetOpenFDs(r.Fs, 0)
	if err != nil {
		return nserror.Wrap(nserror.Internal, err, "enumerating open fds")
	}
	for _, fd := range fds {
		if r.Whitelist[fd] {
			continue
		}
		if err := r.Proc.FcntlCloseOnExec(fd); err != nil {
			log.WarningfBestEffort("marking fd %d close-on-exec: %v", fd, err)
		}
	}
	return nil
}
