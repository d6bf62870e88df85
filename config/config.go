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

// Package config registers and parses the flags the nscon CLI recognizes:
// --nsinit_path, --nsinit_uid, --nsinit_gid, --nscon_output_fd. It follows
// the RegisterFlags/NewFromFlags split runsc/config/flags.go uses to keep
// flag registration (which must happen before flag.Parse) separate from
// reading the parsed values into a plain struct subcommands can pass around.
package config

import (
	"flag"
	"os"
)

// Config holds the parsed CLI flags shared across the create/run/exec/update
// subcommands.
type Config struct {
	// NsinitPath is the default init binary used when a ContainerSpec's
	// InitArgv is empty.
	NsinitPath string
	// NsinitUid and NsinitGid are passed as --uid/--gid to the default
	// nsinit wrapper.
	NsinitUid int
	NsinitGid int
	// OutputFd redirects the CLI's structured stdout (the NsHandle string,
	// the run pid) to a specific file descriptor instead of fd 1.
	OutputFd int
}

// RegisterFlags registers nscon's flags against flagSet. Call before
// flagSet.Parse.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("nsinit_path", "/usr/local/bin/nsinit", "path to the default init binary used when a container spec supplies no init argv.")
	flagSet.Int("nsinit_uid", 0, "uid passed to the default nsinit wrapper as --uid.")
	flagSet.Int("nsinit_gid", 0, "gid passed to the default nsinit wrapper as --gid.")
	flagSet.Int("nscon_output_fd", 1, "file descriptor structured stdout (NsHandle strings, pids) is written to.")
}

// NewFromFlags reads the flags RegisterFlags registered on flagSet into a
// Config. Call after flagSet.Parse.
func NewFromFlags(flagSet *flag.FlagSet) *Config {
	c := &Config{OutputFd: 1}
	if f := flagSet.Lookup("nsinit_path"); f != nil {
		c.NsinitPath = f.Value.String()
	}
	if f := flagSet.Lookup("nsinit_uid"); f != nil {
		c.NsinitUid = intFlag(f)
	}
	if f := flagSet.Lookup("nsinit_gid"); f != nil {
		c.NsinitGid = intFlag(f)
	}
	if f := flagSet.Lookup("nscon_output_fd"); f != nil {
		c.OutputFd = intFlag(f)
	}
	return c
}

func intFlag(f *flag.Flag) int {
	type intGetter interface {
		Get() any
	}
	if g, ok := f.Value.(intGetter); ok {
		if v, ok := g.Get().(int); ok {
			return v
		}
	}
	return 0
}

// OutputWriter resolves c.OutputFd to an *os.File the CLI writes its
// structured stdout to: os.Stdout when OutputFd is 1 or not positive,
// otherwise a file wrapping OutputFd as is, without checking that it is open.
func (c *Config) OutputWriter() *os.File {
	if c.OutputFd == 1 || c.OutputFd <= 0 {
		return os.Stdout
	}
	return os.NewFile(uintptr(c.OutputFd), "nscon-output")
}
