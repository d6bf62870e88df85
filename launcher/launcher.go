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

// Package launcher implements ProcessLauncher: starting a container's init
// process in a fresh set of namespaces (NewNsProcess) or inside a running
// container's existing namespaces (NewNsProcessInTarget).
//
// Go cannot safely run arbitrary Go code in a process produced by a raw
// clone(2) between the clone and the following exec(2): the runtime's
// scheduler, garbage collector, and signal handling all assume every OS
// thread they know about is still alive, which a bare clone(2) child
// violates until it execs. NewNsProcess therefore uses os/exec with
// SysProcAttr.Cloneflags -- Go's supported equivalent of clone(2) plus
// immediate exec -- to enter the new namespaces, and re-execs this same
// binary so the child can still run the inside-namespace configurators in
// Go before the final exec into the container's real init. This mirrors
// runsc's own sandbox launcher, which re-execs itself through os/exec
// rather than calling clone(2) directly.
package launcher

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/nscon/nscon/configurator"
	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/ipc"
	"github.com/nscon/nscon/log"
	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/nshandle"
	"github.com/nscon/nscon/nsutil"
	"github.com/nscon/nscon/sysops"
	"github.com/nscon/nscon/timeutil"
)

// ReexecSentinel is argv[1] the launcher passes to its own re-exec'd
// child, and the value main() checks to dispatch into ChildMain instead of
// the ordinary CLI.
const ReexecSentinel = "nscon-ns-child"

const (
	bootstrapListenFd = 3
	bootstrapPipeFd   = 4
	bootstrapDataFd   = 5
)

// bootstrapData is the JSON payload the parent writes across a dedicated
// pipe after Start(), once the child's new namespaces already exist but
// before anything inside them has run.
type bootstrapData struct {
	Argv []string
	Spec *containerspec.ContainerSpec
	Sock string
}

// Launcher implements ProcessLauncher.
type Launcher struct {
	Proc sysops.ProcessOps
	Fs   sysops.FsOps
	Util *nsutil.NsUtil
	Time timeutil.TimeUtils
	Gen  nshandle.Generator

	// InsideConfigurators run, in order, inside the new namespace set
	// before the final exec. RunSpec and Machine are expected to be last.
	InsideConfigurators []configurator.NsConfigurator
	// OutsideConfigurators run, in order, in the launching process after
	// the child's namespaces exist but before it is released from the
	// barrier (e.g. User, which must write uid_map/gid_map from outside).
	OutsideConfigurators []configurator.NsConfigurator
}

// New builds a Launcher over production syscall facades.
func New(proc sysops.ProcessOps, fs sysops.FsOps, util *nsutil.NsUtil, tu timeutil.TimeUtils) *Launcher {
	return &Launcher{Proc: proc, Fs: fs, Util: util, Time: tu, Gen: nshandle.CookieGenerator{}}
}

// NewNsProcess creates a new process in a fresh set of namespaces (flags)
// running spec.InitArgv as its init, per the clone-barrier algorithm:
// clone into the new namespaces, let the parent finish its outside-namespace
// setup, release the child, let it finish inside-namespace setup and exec,
// and detect success via the barrier pipe closing cleanly.
func (l *Launcher) NewNsProcess(flags nsutil.Set, spec *containerspec.ContainerSpec) (int, nshandle.Handle, error) {
	agent, err := ipc.New(l.Time)
	if err != nil {
		return 0, nshandle.Handle{}, err
	}
	defer agent.Destroy()

	dataR, dataW, err := os.Pipe()
	if err != nil {
		return 0, nshandle.Handle{}, nserror.Wrap(nserror.Internal, err, "creating bootstrap pipe")
	}
	defer dataR.Close()

	listenFile := os.NewFile(uintptr(agent.ListenFd()), "nscon-ipc-listen")
	pipeWriteFile := os.NewFile(uintptr(agent.PipeWriteFd()), "nscon-ipc-pipe-write")

	self, err := os.Executable()
	if err != nil {
		self = "/proc/self/exe"
	}
	cmd := exec.Command(self, ReexecSentinel)
	cmd.ExtraFiles = []*os.File{listenFile, pipeWriteFile, dataR}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = stdioFor(spec)
	cmd.SysProcAttr = &syscall.SysProcAttr{Cloneflags: uintptr(flags.CloneFlags())}

	if err := cmd.Start(); err != nil {
		dataW.Close()
		return 0, nshandle.Handle{}, nserror.Wrap(nserror.Internal, err, "starting namespace child")
	}
	childPid := cmd.Process.Pid

	abort := func(cause error) (int, nshandle.Handle, error) {
		cmd.Process.Kill()
		cmd.Wait()
		return 0, nshandle.Handle{}, cause
	}

	enc := json.NewEncoder(dataW)
	bd := bootstrapData{Argv: spec.InitArgv, Spec: spec, Sock: agent.SockPath()}
	if err := enc.Encode(bd); err != nil {
		dataW.Close()
		return abort(nserror.Wrap(nserror.Internal, err, "sending bootstrap data"))
	}
	dataW.Close()

	for _, c := range l.OutsideConfigurators {
		if err := c.SetupOutsideNamespace(spec, childPid); err != nil {
			return abort(err)
		}
	}

	// Release the child: it is blocked in Agent.ReadData, accepting on the
	// listening socket it inherited.
	if err := agent.WriteData([]byte{1}); err != nil {
		return abort(err)
	}

	// Detect the result over the barrier pipe: a clean close means exec
	// succeeded (Cancelled), anything else is the child's reported failure.
	if err := agent.WaitForChild(); err != nil {
		if !nserror.Is(err, nserror.Cancelled) {
			return abort(err)
		}
	}

	handle, err := nshandle.New(childPid, l.Gen)
	if err != nil {
		return abort(err)
	}
	return childPid, handle, nil
}

func stdioFor(spec *containerspec.ContainerSpec) (*os.File, *os.File, *os.File) {
	if spec.RunSpec.Console != nil {
		// The re-exec'd child starts with no stdio; nothing in the launch
		// path opens a pty slave or attaches one to the child.
		return nil, nil, nil
	}
	return os.Stdin, os.Stdout, os.Stderr
}

// ChildMain is the re-exec'd child's entry point, invoked by main() when
// argv[1] == ReexecSentinel. It runs entirely inside the namespaces the
// parent's os/exec call already created.
func ChildMain(insideConfigurators func(*containerspec.ContainerSpec) []configurator.NsConfigurator, proc sysops.ProcessOps) {
	dataFile := os.NewFile(uintptr(bootstrapDataFd), "nscon-bootstrap")
	var bd bootstrapData
	if err := json.NewDecoder(dataFile).Decode(&bd); err != nil {
		fmt.Fprintf(os.Stderr, "nscon: decoding bootstrap data: %v\n", err)
		os.Exit(1)
	}
	dataFile.Close()

	agent := ipc.AttachChild(bootstrapListenFd, bootstrapPipeFd, bd.Sock)

	if _, _, err := agent.ReadData(); err != nil {
		die(agent, err)
	}

	for _, c := range insideConfigurators(bd.Spec) {
		if err := c.SetupInsideNamespace(bd.Spec); err != nil {
			die(agent, err)
		}
	}

	argv := bd.Argv
	if len(argv) == 0 {
		argv = []string{"/bin/sh"}
	}
	// ExtraFiles arrive without close-on-exec; set it so a successful execve
	// closes the pipe and the parent sees the success signal.
	proc.FcntlCloseOnExec(bootstrapPipeFd)
	err := proc.Execve(argv[0], argv, os.Environ())
	// Only reached if execve failed; on success the process image (and
	// this FD along with it, O_CLOEXEC) is gone.
	die(agent, nserror.Wrap(nserror.Internal, err, "execve %s", argv[0]))
}

func die(agent *ipc.Agent, err error) {
	agent.WriteExecError(err.Error())
	log.WarningfBestEffort("namespace child exiting: %v", err)
	os.Exit(1)
}
