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

	"github.com/google/subcommands"

	"github.com/nscon/nscon/nshandle"
)

// Update implements subcommands.Command for "update".
//
// Usage: update <handle> <spec-json>
type Update struct{}

func (*Update) Name() string     { return "update" }
func (*Update) Synopsis() string { return "apply a spec's namespace subspecs to an existing container" }
func (*Update) Usage() string {
	return `update <handle> <spec-json> - update a container's namespace configuration.
`
}
func (*Update) SetFlags(f *flag.FlagSet) {}

func (c *Update) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	handle, err := nshandle.Parse(f.Arg(0), nshandle.CookieGenerator{})
	if err != nil {
		return exitFor(err)
	}
	spec, err := parseSpec(f.Arg(1))
	if err != nil {
		return exitFor(err)
	}

	ctrl := newController()
	if err := ctrl.Update(handle, spec); err != nil {
		return exitFor(err)
	}
	return subcommands.ExitSuccess
}
