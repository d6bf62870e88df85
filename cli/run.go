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
	"encoding/json"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/nscon/nscon/config"
	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/nshandle"
)

// Run implements subcommands.Command for "run".
//
// Usage: run <handle> <run-spec-json> -- <argv>...
type Run struct{}

func (*Run) Name() string     { return "run" }
func (*Run) Synopsis() string { return "run a command inside an existing container" }
func (*Run) Usage() string {
	return `run <handle> <run-spec-json> -- <argv>... - run a command in a container.
`
}
func (*Run) SetFlags(f *flag.FlagSet) {}

func (c *Run) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 3 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	handle, err := nshandle.Parse(f.Arg(0), nshandle.CookieGenerator{})
	if err != nil {
		return exitFor(err)
	}

	var runSpec containerspec.RunSpec
	if err := json.Unmarshal([]byte(f.Arg(1)), &runSpec); err != nil {
		return exitFor(fmt.Errorf("parsing run spec: %w", err))
	}

	spec := &containerspec.ContainerSpec{RunSpec: runSpec, InitArgv: argvAfterDashDash(f)}
	if len(spec.InitArgv) == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	ctrl := newController()
	newHandle, err := ctrl.Exec(handle, spec)
	if err != nil {
		return exitFor(err)
	}
	fmt.Fprintln(conf.OutputWriter(), newHandle.ToPid())
	return subcommands.ExitSuccess
}

// argvAfterDashDash returns the positional arguments following the first
// two (handle, run-spec): by convention these are the "-- argv..." tail,
// since Go's flag package does not special-case "--" the argument after the
// handle and run-spec is simply everything remaining.
func argvAfterDashDash(f *flag.FlagSet) []string {
	rest := f.Args()[2:]
	if len(rest) > 0 && rest[0] == "--" {
		rest = rest[1:]
	}
	return rest
}
