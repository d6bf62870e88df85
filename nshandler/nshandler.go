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

// Package nshandler implements NamespaceHandler, the lmctfy integration
// glue named in spec.md §2's component table: it decides which top-level
// containers are "virtual hosts" (own a PID namespace and hence have their
// own init), locates a container's init process by walking the kernel's PID
// tree from PID 1, and wires Run/Exec/Destroy onto the underlying
// controller.Controller.
//
// Supplemented from original_source (the resources/nscon_namespace_handler.cc
// equivalent spec.md §2 points at, which the distillation dropped): the
// PID-tree walk races against the kernel publishing /proc/<pid>/task/<tid>/
// children entries for a just-cloned process, so lookups retry with a
// bounded exponential backoff the same way runsc/sandbox/sandbox.go retries
// sandbox-state reads.
package nshandler

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/controller"
	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/nshandle"
)

// initPid is the PID-namespace-global init process every PID tree walk
// starts from.
const initPid = 1

// Handler wires NamespaceController's Run/Exec/Destroy onto the notion of
// a "virtual host" container, per spec.md §2's NamespaceHandler row.
type Handler struct {
	Ctrl *controller.Controller

	// MaxElapsed bounds the PID-tree walk retry loop. Zero uses a 2s
	// default, generous enough to absorb the /proc/<pid>/task publishing
	// race without masking a genuinely dead container.
	MaxElapsed time.Duration
}

// IsVirtualHost reports whether spec's container owns a PID namespace --
// and hence has its own init distinct from the host's -- per spec.md's
// "virtual host" glossary entry.
func IsVirtualHost(spec *containerspec.ContainerSpec) bool {
	return spec.Namespaces.Pid
}

// Run creates a new container from spec and returns its handle.
func (h *Handler) Run(spec *containerspec.ContainerSpec) (nshandle.Handle, error) {
	return h.Ctrl.Run(spec)
}

// Exec starts spec.InitArgv inside the container identified by handle. For
// virtual hosts, the target init pid is first confirmed reachable by
// walking the PID tree from PID 1 (guarding against a handle that outlived
// its container's reparenting into a zombie state); non-virtual-host
// containers skip straight to the controller.
func (h *Handler) Exec(handle nshandle.Handle, spec *containerspec.ContainerSpec) (nshandle.Handle, error) {
	if IsVirtualHost(spec) {
		if _, err := h.LocateInit(handle.ToPid()); err != nil {
			return nshandle.Handle{}, err
		}
	}
	return h.Ctrl.Exec(handle, spec)
}

// Destroy tears down the container identified by handle.
func (h *Handler) Destroy(handle nshandle.Handle) error {
	return h.Ctrl.Destroy(handle)
}

// LocateInit confirms that pid is reachable by walking the PID tree from
// PID 1's /proc/1/task/1/children, retrying with a bounded exponential
// backoff to absorb the kernel's lag in publishing a just-cloned child
// before giving up with Unavailable -- spec.md §7's "transient PID-tree
// walk inconsistency after max retries".
func (h *Handler) LocateInit(pid int) (int, error) {
	maxElapsed := h.MaxElapsed
	if maxElapsed == 0 {
		maxElapsed = 2 * time.Second
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed

	var lastErr error
	op := func() error {
		found, err := pidTreeContains(initPid, pid)
		if err != nil {
			lastErr = err
			return err
		}
		if !found {
			lastErr = nserror.E(nserror.NotFound, "pid %d not reachable from init", pid)
			return lastErr
		}
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		if lastErr != nil {
			return 0, nserror.Wrap(nserror.Unavailable, lastErr, "locating init pid %d in pid tree", pid)
		}
		return 0, nserror.Wrap(nserror.Unavailable, err, "locating init pid %d in pid tree", pid)
	}
	return pid, nil
}

// pidTreeContains reports whether target appears anywhere in root's
// subtree, read from /proc/<tid>/task/<tid>/children at each level (the
// same file the kernel maintains for exactly this kind of tree walk,
// without needing CAP_SYS_PTRACE to read every process's /proc/<pid>/stat
// ppid field).
func pidTreeContains(root, target int) (bool, error) {
	if root == target {
		return true, nil
	}
	children, err := readChildren(root)
	if err != nil {
		return false, err
	}
	for _, c := range children {
		found, err := pidTreeContains(c, target)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

func readChildren(pid int) ([]int, error) {
	path := "/proc/" + strconv.Itoa(pid) + "/task/" + strconv.Itoa(pid) + "/children"
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nserror.Wrap(nserror.Internal, err, "reading %s", path)
	}
	fields := strings.Fields(string(data))
	children := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		children = append(children, n)
	}
	return children, nil
}
