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

// Package cli is the main entrypoint for namespace_controller_cli, the
// command line tool spec.md §6 describes: create/run/exec/update
// subcommands built on github.com/google/subcommands the way
// runsc/cli/main.go registers runsc's own subcommands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/nscon/nscon/config"
	"github.com/nscon/nscon/controller"
	"github.com/nscon/nscon/log"
	"github.com/nscon/nscon/mountutil"
	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/sysops"
	"github.com/nscon/nscon/timeutil"
)

// Main is the CLI entrypoint. It registers the create/run/exec/update
// subcommands, parses flags, and dispatches. Returns the process exit code.
func Main(args []string) int {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&Create{}, "")
	subcommands.Register(&Run{}, "")
	subcommands.Register(&Exec{}, "")
	subcommands.Register(&Update{}, "")

	config.RegisterFlags(flag.CommandLine)
	flag.CommandLine.Parse(args[1:])

	conf := config.NewFromFlags(flag.CommandLine)
	ctx := context.Background()
	return int(subcommands.Execute(ctx, conf))
}

// newController wires a controller.Controller over the production syscall
// facades, the same way every subcommand below needs it.
func newController() *controller.Controller {
	proc := sysops.Linux{}
	fs := sysops.Linux{}
	net := sysops.Linux{}
	mount := mountutil.NewProd(fs)
	return controller.New(proc, fs, net, mount, timeutil.Prod{})
}

// exitFor prints "kind: message" to stderr for a failed command and
// returns ExitFailure; every error kind yields the same exit status.
func exitFor(err error) subcommands.ExitStatus {
	if err == nil {
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", nserror.KindOf(err), err)
	log.Warningf("command failed: %v", err)
	return subcommands.ExitFailure
}
