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
	"os"

	"github.com/google/subcommands"

	"github.com/nscon/nscon/config"
	"github.com/nscon/nscon/containerspec"
)

// Create implements subcommands.Command for "create".
//
// Usage: create <spec-json> [-- <init-argv>...]
//
// Spec serialization is a thin collaborator (spec.md §1 treats
// proto/textformat definitions as out of scope): nscon reads the spec
// argument as a JSON document unmarshaling into containerspec.ContainerSpec
// rather than a bespoke text-proto parser.
type Create struct{}

func (*Create) Name() string     { return "create" }
func (*Create) Synopsis() string { return "create a new container from a spec" }
func (*Create) Usage() string {
	return `create <spec-json> [-- <init-argv>...] - create a container.
`
}
func (*Create) SetFlags(f *flag.FlagSet) {}

func (c *Create) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	spec, err := parseSpec(f.Arg(0))
	if err != nil {
		return exitFor(err)
	}
	initArgv := f.Args()[1:]
	if len(initArgv) > 0 && initArgv[0] == "--" {
		initArgv = initArgv[1:]
	}
	if len(initArgv) > 0 {
		spec.InitArgv = initArgv
	}
	if len(spec.InitArgv) == 0 {
		spec.InitArgv = []string{conf.NsinitPath,
			fmt.Sprintf("--uid=%d", conf.NsinitUid),
			fmt.Sprintf("--gid=%d", conf.NsinitGid),
		}
	}

	ctrl := newController()
	handle, err := ctrl.Run(spec)
	if err != nil {
		return exitFor(err)
	}
	fmt.Fprintln(conf.OutputWriter(), handle.ToString())
	return subcommands.ExitSuccess
}

// parseSpec decodes a ContainerSpec from a JSON document: either inline
// text, or, if it names an existing file, that file's content.
func parseSpec(text string) (*containerspec.ContainerSpec, error) {
	raw := []byte(text)
	if b, err := os.ReadFile(text); err == nil {
		raw = b
	}
	var spec containerspec.ContainerSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parsing container spec: %w", err)
	}
	return &spec, nil
}
