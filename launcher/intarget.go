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

package launcher

import (
	"os"
	"strconv"

	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/ipc"
	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/nshandle"
)

// NewNsProcessInTarget attaches to an already-running target's namespaces
// and starts spec.InitArgv inside them. Unlike NewNsProcess, no new
// namespace is created, so there is no clone(2)-equivalent barrier to
// manage: the caller already has setns'd onto every namespace the target
// differs in (see nsutil.GetUnsharedNamespaces), and this only needs a
// plain fork(2) -- doubled when a PID namespace was entered, so the
// grandchild is reparented to become a child of the target's own init
// rather than of this launcher.
//
// Callers must invoke this from a single-threaded process: a raw fork(2)
// leaves only the calling goroutine's OS thread alive in the child, which
// is unsafe for the Go runtime's scheduler and GC in general but is exactly
// the constraint spec.md's concurrency model already requires of
// NewNsProcessInTarget's caller.
func (l *Launcher) NewNsProcessInTarget(enteredPid bool, spec *containerspec.ContainerSpec) (int, nshandle.Handle, error) {
	pidAgent, err := ipc.New(l.Time)
	if err != nil {
		return 0, nshandle.Handle{}, err
	}
	defer pidAgent.Destroy()

	errAgent, err := ipc.New(l.Time)
	if err != nil {
		return 0, nshandle.Handle{}, err
	}
	defer errAgent.Destroy()

	intermediatePid, err := l.Proc.Fork()
	if err != nil {
		return 0, nshandle.Handle{}, nserror.Wrap(nserror.Internal, err, "forking intermediate process")
	}

	if intermediatePid == 0 {
		l.runIntermediate(enteredPid, spec, pidAgent, errAgent)
		os.Exit(1) // unreachable; runIntermediate always exits
	}

	if _, err := l.Proc.Wait4(intermediatePid); err != nil {
		return 0, nshandle.Handle{}, nserror.Wrap(nserror.Internal, err, "waiting for intermediate process")
	}

	data, _, err := pidAgent.ReadData()
	if err != nil {
		errData, _, errErr := errAgent.ReadData()
		if errErr == nil {
			return 0, nshandle.Handle{}, nserror.E(nserror.Internal, "namespace child failed: %s", string(errData))
		}
		return 0, nshandle.Handle{}, err
	}

	childPid, convErr := strconv.Atoi(string(data))
	if convErr != nil {
		return 0, nshandle.Handle{}, nserror.Wrap(nserror.Internal, convErr, "parsing grandchild pid")
	}

	handle, err := nshandle.New(childPid, l.Gen)
	if err != nil {
		return 0, nshandle.Handle{}, err
	}
	return childPid, handle, nil
}

// runIntermediate is the body of the forked intermediate process: if a PID
// namespace was entered, it forks again so the grandchild's ppid becomes
// the target's own init, then exits itself; otherwise it runs the child
// body directly.
func (l *Launcher) runIntermediate(enteredPid bool, spec *containerspec.ContainerSpec, pidAgent, errAgent *ipc.Agent) {
	if !enteredPid {
		l.runNsChild(spec, pidAgent, errAgent)
		os.Exit(1)
	}

	grandchildPid, err := l.Proc.Fork()
	if err != nil {
		errAgent.WriteData([]byte(err.Error()))
		os.Exit(1)
	}
	if grandchildPid == 0 {
		l.runNsChild(spec, pidAgent, errAgent)
		os.Exit(1)
	}
	os.Exit(0)
}

// runNsChild runs the RunSpec and inside-namespace configurators, reports
// its own pid on pidAgent, and execs. Only reached on failure past this
// point.
func (l *Launcher) runNsChild(spec *containerspec.ContainerSpec, pidAgent, errAgent *ipc.Agent) {
	pid := l.Proc.Getpid()

	for _, c := range l.InsideConfigurators {
		if err := c.SetupInsideNamespace(spec); err != nil {
			errAgent.WriteData([]byte(err.Error()))
			os.Exit(1)
		}
	}

	if err := pidAgent.WriteData([]byte(strconv.Itoa(pid))); err != nil {
		errAgent.WriteData([]byte(err.Error()))
		os.Exit(1)
	}

	argv := spec.InitArgv
	if len(argv) == 0 {
		argv = []string{"/bin/sh"}
	}
	err := l.Proc.Execve(argv[0], argv, os.Environ())
	errAgent.WriteData([]byte(err.Error()))
	os.Exit(1)
}
