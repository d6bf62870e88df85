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

package cli

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/nshandle"
	"github.com/nscon/nscon/nsutil"
)

// Exec implements subcommands.Command for "exec".
//
// Usage: exec <handle> -- <argv>...
//
// Unlike Run (which forks a fresh process inside the target via
// NewNsProcessInTarget and returns its pid), Exec attaches the calling CLI
// process itself to the target's namespaces and execve's argv directly --
// "exec returns only on failure" in spec.md §6. Entering a PID namespace
// only takes effect for children of the attaching process, so an extra
// fork is required in that one case to actually land inside it; without a
// PID namespace among the attached set, the CLI process execve's in place.
type Exec struct{}

func (*Exec) Name() string     { return "exec" }
func (*Exec) Synopsis() string { return "exec a command inside an existing container, replacing this process" }
func (*Exec) Usage() string {
	return `exec <handle> -- <argv>... - exec a command in a container.
`
}
func (*Exec) SetFlags(f *flag.FlagSet) {}

func (c *Exec) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	handle, err := nshandle.Parse(f.Arg(0), nshandle.CookieGenerator{})
	if err != nil {
		return exitFor(err)
	}

	argv := f.Args()[1:]
	if len(argv) > 0 && argv[0] == "--" {
		argv = argv[1:]
	}
	if len(argv) == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	ctrl := newController()

	unshared, err := ctrl.Util.GetUnsharedNamespaces(handle.ToPid())
	if err != nil {
		return exitFor(err)
	}
	if err := ctrl.Util.AttachNamespaces(unshared, handle.ToPid()); err != nil {
		return exitFor(err)
	}

	enteredPid := false
	for _, ns := range unshared {
		if ns == nsutil.PID {
			enteredPid = true
		}
	}

	if !enteredPid {
		err := ctrl.Proc.Execve(argv[0], argv, os.Environ())
		return exitFor(nserror.Wrap(nserror.Internal, err, "execve %s", argv[0]))
	}

	// Entering a PID namespace only affects children: fork once so the
	// grandchild actually lands inside it, then replace the grandchild's
	// image and have this process wait and mirror its exit status.
	childPid, err := ctrl.Proc.Fork()
	if err != nil {
		return exitFor(nserror.Wrap(nserror.Internal, err, "forking into target pid namespace"))
	}
	if childPid == 0 {
		err := ctrl.Proc.Execve(argv[0], argv, os.Environ())
		os.Stderr.WriteString(err.Error())
		os.Exit(1)
	}
	status, err := ctrl.Proc.Wait4(childPid)
	if err != nil {
		return exitFor(nserror.Wrap(nserror.Internal, err, "waiting for exec'd child"))
	}
	os.Exit(status)
	return subcommands.ExitSuccess
}
